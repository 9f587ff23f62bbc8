package httphandler

import (
	"time"

	"github.com/niksmo/storefront/internal/core/domain"
	"github.com/shopspring/decimal"
)

type (
	Product struct {
		Name     string          `json:"name"`
		Category string          `json:"category"`
		Price    decimal.Decimal `json:"price"`
		Image    ProductImage    `json:"image"`
	}

	ProductImage struct {
		Thumbnail string `json:"thumbnail"`
		Mobile    string `json:"mobile"`
		Tablet    string `json:"tablet"`
		Desktop   string `json:"desktop"`
	}
)

type (
	Cart struct {
		Empty bool       `json:"empty"`
		Lines []CartLine `json:"lines"`
		Count int        `json:"count"`
		Total string     `json:"total"`
	}

	CartLine struct {
		Name      string `json:"name"`
		Category  string `json:"category"`
		Quantity  int    `json:"quantity"`
		UnitPrice string `json:"unit_price"`
		LineTotal string `json:"line_total"`
	}

	CartItemRequest struct {
		Name string `json:"name"`
	}
)

type (
	Order struct {
		ID             uint64          `json:"id"`
		Name           string          `json:"name"`
		Category       string          `json:"category"`
		Price          decimal.Decimal `json:"price"`
		Quantity       int             `json:"quantity"`
		ConfirmationID string          `json:"confirmation_id"`
		CreatedAt      time.Time       `json:"created_at"`
	}

	OrderRequest struct {
		Name           string          `json:"name"`
		Category       string          `json:"category"`
		Price          decimal.Decimal `json:"price"`
		Quantity       int             `json:"quantity"`
		ConfirmationID string          `json:"confirmation_id"`
		CreatedAt      time.Time       `json:"created_at"`
	}

	Confirmation struct {
		ConfirmationID string          `json:"confirmation_id"`
		Total          decimal.Decimal `json:"total"`
		Orders         []Order         `json:"orders"`
	}
)

type ErrorResponse struct {
	Error string `json:"error"`
}

func toProducts(ps []domain.Product) []Product {
	vs := make([]Product, len(ps))
	for i, p := range ps {
		vs[i] = Product{
			Name:     p.Name,
			Category: p.Category,
			Price:    p.Price,
			Image: ProductImage{
				Thumbnail: p.Image.Thumbnail,
				Mobile:    p.Image.Mobile,
				Tablet:    p.Image.Tablet,
				Desktop:   p.Image.Desktop,
			},
		}
	}
	return vs
}

func toCart(v domain.CartView) Cart {
	c := Cart{
		Empty: v.Empty,
		Lines: make([]CartLine, len(v.Lines)),
		Count: v.Count,
		Total: v.Total,
	}
	for i, l := range v.Lines {
		c.Lines[i] = CartLine(l)
	}
	return c
}

func toOrder(o domain.Order) Order {
	return Order{
		ID:             o.ID,
		Name:           o.Name,
		Category:       o.Category,
		Price:          o.Price,
		Quantity:       o.Quantity,
		ConfirmationID: o.ConfirmationID,
		CreatedAt:      o.CreatedAt,
	}
}

func toOrders(orders []domain.Order) []Order {
	vs := make([]Order, len(orders))
	for i, o := range orders {
		vs[i] = toOrder(o)
	}
	return vs
}

func (r OrderRequest) toDomain() domain.OrderFields {
	return domain.OrderFields{
		Name:           r.Name,
		Category:       r.Category,
		Price:          r.Price,
		Quantity:       r.Quantity,
		ConfirmationID: r.ConfirmationID,
		CreatedAt:      r.CreatedAt,
	}
}
