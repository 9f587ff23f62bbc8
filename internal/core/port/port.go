package port

import (
	"context"

	"github.com/niksmo/storefront/internal/core/domain"
)

type (
	initializer interface {
		Init(context.Context) error
	}

	closer interface {
		Close()
	}
)

type CatalogLoader interface {
	LoadProducts(context.Context) ([]domain.Product, error)
}

type OrdersStorage interface {
	initializer
	closer
	Insert(context.Context, domain.OrderFields) (domain.Order, error)
	InsertBatch(context.Context, []domain.OrderFields) ([]domain.Order, error)
	GetAll(context.Context) ([]domain.Order, error)
	GetByID(context.Context, uint64) (domain.Order, bool, error)
	GetByName(context.Context, string) ([]domain.Order, error)
	Update(context.Context, uint64, domain.OrderFields) (domain.Order, error)
	Delete(context.Context, uint64) error
}

type OrdersProducer interface {
	ProduceOrders(context.Context, []domain.Order) error
}

type Storefront interface {
	Products() []domain.Product
	Cart() domain.CartView
	AddToCart(context.Context, string) (domain.CartView, error)
	RemoveFromCart(context.Context, string) domain.CartView
	ConfirmOrder(context.Context) (domain.Confirmation, error)
}

type OrdersKeeper interface {
	Orders(context.Context) ([]domain.Order, error)
	OrdersByName(context.Context, string) ([]domain.Order, error)
	Order(context.Context, uint64) (domain.Order, error)
	UpdateOrder(context.Context, uint64, domain.OrderFields) (domain.Order, error)
	DeleteOrder(context.Context, uint64) error
}
