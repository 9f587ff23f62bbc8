package httphandler

import (
	"errors"
	"html/template"
	"log/slog"
	"net/http"
	"time"

	"github.com/niksmo/storefront/internal/core/domain"
	"github.com/niksmo/storefront/internal/core/port"
)

// GET / renders product cards and the cart panel.
// POST /cart/items form "name" adds one unit (303 See Other to /).
// POST /cart/items/remove form "name" removes the line item.
// POST /orders/confirm confirms the order.

const (
	statusQuery     = "status"
	statusConfirmed = "confirmed"
	statusEmpty     = "empty"
	statusFailed    = "failed"
)

var failureMessages = map[string]string{
	statusEmpty:  "Your cart is empty.",
	statusFailed: "Order could not be saved. Your cart is kept, please try again.",
}

type productView struct {
	Name      string
	Category  string
	Price     string
	Thumbnail string
}

type pageData struct {
	Products              []productView
	Cart                  domain.CartView
	Confirmed             bool
	ConfirmationTTLMillis int64
	Failure               string
}

type StorefrontHandler struct {
	storefront      port.Storefront
	tmpl            *template.Template
	confirmationTTL time.Duration
}

func RegisterStorefront(
	mux *http.ServeMux, sf port.Storefront, confirmationTTL time.Duration,
) {
	h := StorefrontHandler{
		storefront:      sf,
		tmpl:            parseTemplates(),
		confirmationTTL: confirmationTTL,
	}
	mux.HandleFunc("GET /{$}", h.GetIndex)
	mux.HandleFunc("POST /cart/items", h.PostCartItem)
	mux.HandleFunc("POST /cart/items/remove", h.PostRemoveCartItem)
	mux.HandleFunc("POST /orders/confirm", h.PostConfirmOrder)
	mux.Handle("GET /static/", http.FileServerFS(staticFS))
}

// RegisterImages serves product images from dir under /images/.
func RegisterImages(mux *http.ServeMux, dir string) {
	fileServer := http.FileServer(http.Dir(dir))
	mux.Handle("GET /images/", http.StripPrefix("/images/", fileServer))
}

func (h StorefrontHandler) GetIndex(w http.ResponseWriter, r *http.Request) {
	const op = "StorefrontHandler.GetIndex"
	log := slog.With("op", op)

	status := r.URL.Query().Get(statusQuery)
	data := pageData{
		Products:              h.toProductViews(h.storefront.Products()),
		Cart:                  h.storefront.Cart(),
		Confirmed:             status == statusConfirmed,
		ConfirmationTTLMillis: h.confirmationTTL.Milliseconds(),
		Failure:               failureMessages[status],
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	if err := h.tmpl.ExecuteTemplate(w, "index", data); err != nil {
		log.Error("failed to render page", "err", err)
	}
}

func (h StorefrontHandler) PostCartItem(w http.ResponseWriter, r *http.Request) {
	const op = "StorefrontHandler.PostCartItem"
	log := slog.With("op", op)

	name := r.PostFormValue("name")
	if _, err := h.storefront.AddToCart(r.Context(), name); err != nil {
		if errors.Is(err, domain.ErrUnknownProduct) {
			http.Error(w, "unknown product", http.StatusNotFound)
			log.Warn("failed to add to cart", "err", err)
			return
		}
		http.Error(w, "failed to add to cart", http.StatusInternalServerError)
		log.Error("failed to add to cart", "err", err)
		return
	}

	h.redirect(w, r, "")
}

func (h StorefrontHandler) PostRemoveCartItem(
	w http.ResponseWriter, r *http.Request,
) {
	h.storefront.RemoveFromCart(r.Context(), r.PostFormValue("name"))
	h.redirect(w, r, "")
}

func (h StorefrontHandler) PostConfirmOrder(
	w http.ResponseWriter, r *http.Request,
) {
	const op = "StorefrontHandler.PostConfirmOrder"
	log := slog.With("op", op)

	_, err := h.storefront.ConfirmOrder(r.Context())
	switch {
	case err == nil:
		h.redirect(w, r, statusConfirmed)
	case errors.Is(err, domain.ErrEmptyCart):
		h.redirect(w, r, statusEmpty)
	default:
		log.Error("failed to confirm order", "err", err)
		h.redirect(w, r, statusFailed)
	}
}

func (h StorefrontHandler) redirect(
	w http.ResponseWriter, r *http.Request, status string,
) {
	target := "/"
	if status != "" {
		target += "?" + statusQuery + "=" + status
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

func (h StorefrontHandler) toProductViews(ps []domain.Product) []productView {
	vs := make([]productView, len(ps))
	for i, p := range ps {
		vs[i] = productView{
			Name:      p.Name,
			Category:  p.Category,
			Price:     p.Price.StringFixed(2),
			Thumbnail: p.Image.Thumbnail,
		}
	}
	return vs
}
