package httphandler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/niksmo/storefront/internal/core/domain"
	"github.com/niksmo/storefront/internal/core/port"
)

// GET v1/products (200 OK)
// GET v1/cart (200 OK)
// POST v1/cart/items JSON {"name" string} (200 OK, 400 Bad request, 404 Not found)
// DELETE v1/cart/items/{name} (200 OK)
// POST v1/orders/confirm (201 Created, 409 Conflict, 503 Service unavailable)

type CartHandler struct {
	storefront port.Storefront
}

func RegisterCart(mux *http.ServeMux, sf port.Storefront) {
	h := CartHandler{sf}
	mux.HandleFunc("GET /v1/products", h.GetProducts)
	mux.HandleFunc("GET /v1/cart", h.GetCart)
	mux.HandleFunc("POST /v1/cart/items", h.PostCartItem)
	mux.HandleFunc("DELETE /v1/cart/items/{name}", h.DeleteCartItem)
	mux.HandleFunc("POST /v1/orders/confirm", h.PostConfirmOrder)
}

func (h CartHandler) GetProducts(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, toProducts(h.storefront.Products()))
}

func (h CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, toCart(h.storefront.Cart()))
}

func (h CartHandler) PostCartItem(w http.ResponseWriter, r *http.Request) {
	const op = "CartHandler.PostCartItem"
	log := slog.With("op", op)

	var req CartItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON data")
		log.Warn("failed to parse JSON", "err", err)
		return
	}

	v, err := h.storefront.AddToCart(r.Context(), req.Name)
	if err != nil {
		writeDomainError(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, toCart(v))
}

func (h CartHandler) DeleteCartItem(w http.ResponseWriter, r *http.Request) {
	v := h.storefront.RemoveFromCart(r.Context(), r.PathValue("name"))
	writeJSON(w, http.StatusOK, toCart(v))
}

func (h CartHandler) PostConfirmOrder(w http.ResponseWriter, r *http.Request) {
	const op = "CartHandler.PostConfirmOrder"

	c, err := h.storefront.ConfirmOrder(r.Context())
	if err != nil {
		writeDomainError(w, op, err)
		return
	}

	writeJSON(w, http.StatusCreated, Confirmation{
		ConfirmationID: c.ID,
		Total:          c.Total,
		Orders:         toOrders(c.Orders),
	})
}

// GET v1/orders?name=name (200 OK)
// GET v1/orders/{id} (200 OK, 400 Bad request, 404 Not found)
// PUT v1/orders/{id} JSON [OrderRequest] (200 OK, 400 Bad request)
// DELETE v1/orders/{id} (204 No content)

type OrdersHandler struct {
	orders port.OrdersKeeper
}

func RegisterOrders(mux *http.ServeMux, orders port.OrdersKeeper) {
	h := OrdersHandler{orders}
	mux.HandleFunc("GET /v1/orders", h.GetOrders)
	mux.HandleFunc("GET /v1/orders/{id}", h.GetOrder)
	mux.HandleFunc("PUT /v1/orders/{id}", h.PutOrder)
	mux.HandleFunc("DELETE /v1/orders/{id}", h.DeleteOrder)
}

func (h OrdersHandler) GetOrders(w http.ResponseWriter, r *http.Request) {
	const op = "OrdersHandler.GetOrders"

	var (
		orders []domain.Order
		err    error
	)
	if name := r.URL.Query().Get("name"); name != "" {
		orders, err = h.orders.OrdersByName(r.Context(), name)
	} else {
		orders, err = h.orders.Orders(r.Context())
	}
	if err != nil {
		writeDomainError(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrders(orders))
}

func (h OrdersHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	const op = "OrdersHandler.GetOrder"

	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	o, err := h.orders.Order(r.Context(), id)
	if err != nil {
		writeDomainError(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrder(o))
}

func (h OrdersHandler) PutOrder(w http.ResponseWriter, r *http.Request) {
	const op = "OrdersHandler.PutOrder"
	log := slog.With("op", op)

	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	var req OrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON data")
		log.Warn("failed to parse JSON", "err", err)
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}
	if msg := validateOrderRequest(req); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	o, err := h.orders.UpdateOrder(r.Context(), id, req.toDomain())
	if err != nil {
		writeDomainError(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrder(o))
}

func (h OrdersHandler) DeleteOrder(w http.ResponseWriter, r *http.Request) {
	const op = "OrdersHandler.DeleteOrder"

	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	if err := h.orders.DeleteOrder(r.Context(), id); err != nil {
		writeDomainError(w, op, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h OrdersHandler) pathID(w http.ResponseWriter, r *http.Request) (uint64, bool) {
	id, err := strconv.ParseUint(r.PathValue("id"), 10, 63)
	if err != nil || id == 0 {
		writeError(w, http.StatusBadRequest, "invalid order id")
		return 0, false
	}
	return id, true
}

func validateOrderRequest(req OrderRequest) string {
	switch {
	case req.Name == "":
		return "name is required"
	case req.Price.IsNegative():
		return "price must not be negative"
	case req.Quantity < 1:
		return "quantity must be positive"
	}
	return ""
}

func writeDomainError(w http.ResponseWriter, op string, err error) {
	log := slog.With("op", op)

	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, domain.ErrUnknownProduct):
		writeError(w, http.StatusNotFound, "unknown product")
	case errors.Is(err, domain.ErrEmptyCart):
		writeError(w, http.StatusConflict, "cart is empty")
	case errors.Is(err, domain.ErrNotInitialized),
		errors.Is(err, domain.ErrStorage):
		writeError(w, http.StatusServiceUnavailable, "storage unavailable")
		log.Error("storage failure", "err", err)
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
		log.Error("unexpected failure", "err", err)
	}
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, ErrorResponse{msg})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to write response body", "err", err)
	}
}
