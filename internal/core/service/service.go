package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/niksmo/storefront/internal/core/domain"
	"github.com/niksmo/storefront/internal/core/port"
	"github.com/shopspring/decimal"
)

var _ port.Storefront = (*Service)(nil)
var _ port.OrdersKeeper = (*Service)(nil)

const defaultPublishTimeout = 10 * time.Second

type Opt func(*Service)

// TotalPrecisionOpt sets decimal places of the cart order total.
func TotalPrecisionOpt(places int32) Opt {
	return func(s *Service) {
		s.totalPrecision = places
	}
}

func ClockOpt(now func() time.Time) Opt {
	return func(s *Service) {
		s.now = now
	}
}

// PublishTimeoutOpt bounds the background publication of confirmed orders.
func PublishTimeoutOpt(d time.Duration) Opt {
	return func(s *Service) {
		s.publishTimeout = d
	}
}

func IDGeneratorOpt(newID func() string) Opt {
	return func(s *Service) {
		s.newID = newID
	}
}

type Service struct {
	products       []domain.Product
	productsByName map[string]domain.Product
	cart           *domain.Cart
	ordersStorage  port.OrdersStorage
	ordersProducer port.OrdersProducer
	totalPrecision int32
	now            func() time.Time
	newID          func() string
	publishTimeout time.Duration
	publishing     sync.WaitGroup
}

func New(
	products []domain.Product,
	cart *domain.Cart,
	ordersStorage port.OrdersStorage,
	ordersProducer port.OrdersProducer,
	opts ...Opt,
) *Service {
	if cart == nil || ordersStorage == nil || ordersProducer == nil {
		panic("service.New: nil dependency") // develop mistake
	}

	s := &Service{
		products:       products,
		productsByName: make(map[string]domain.Product, len(products)),
		cart:           cart,
		ordersStorage:  ordersStorage,
		ordersProducer: ordersProducer,
		now:            time.Now,
		newID:          uuid.NewString,
		publishTimeout: defaultPublishTimeout,
	}
	for _, p := range products {
		s.productsByName[p.Name] = p
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) Products() []domain.Product {
	return s.products
}

func (s *Service) Cart() domain.CartView {
	return s.cart.View(s.totalPrecision)
}

func (s *Service) AddToCart(
	ctx context.Context, name string,
) (domain.CartView, error) {
	const op = "Service.AddToCart"

	if err := ctx.Err(); err != nil {
		return domain.CartView{}, fmt.Errorf("%s: %w", op, err)
	}

	p, ok := s.productsByName[name]
	if !ok {
		return domain.CartView{}, fmt.Errorf(
			"%s: %q: %w", op, name, domain.ErrUnknownProduct,
		)
	}

	s.cart.AddOne(p)
	return s.Cart(), nil
}

func (s *Service) RemoveFromCart(
	ctx context.Context, name string,
) domain.CartView {
	s.cart.Remove(name)
	return s.Cart()
}

// ConfirmOrder persists every cart line item in one storage transaction,
// in cart order. The cart is cleared only after the commit, a failed
// commit leaves it untouched. Publication of the orders never fails the
// confirmation.
func (s *Service) ConfirmOrder(
	ctx context.Context,
) (domain.Confirmation, error) {
	const op = "Service.ConfirmOrder"
	log := slog.With("op", op)

	if err := ctx.Err(); err != nil {
		return domain.Confirmation{}, fmt.Errorf("%s: %w", op, err)
	}

	c := domain.Confirmation{ID: s.newID()}
	createdAt := s.now().UTC()

	err := s.cart.Checkout(func(items []domain.CartLineItem) error {
		fields := make([]domain.OrderFields, len(items))
		for i, item := range items {
			fields[i] = domain.OrderFields{
				Name:           item.Name,
				Category:       item.Category,
				Price:          item.Price,
				Quantity:       item.Quantity,
				ConfirmationID: c.ID,
				CreatedAt:      createdAt,
			}
		}

		orders, err := s.ordersStorage.InsertBatch(ctx, fields)
		if err != nil {
			return err
		}
		c.Orders = orders
		return nil
	})
	if err != nil {
		return domain.Confirmation{}, fmt.Errorf("%s: %w", op, err)
	}

	c.Total = decimal.Zero
	for _, o := range c.Orders {
		c.Total = c.Total.Add(o.LineTotal())
	}

	s.publish(ctx, c)

	log.Info("order confirmed",
		"confirmationID", c.ID, "nOrders", len(c.Orders), "total", c.Total)
	return c, nil
}

// publish sends confirmed orders in the background. The send outlives
// the request and is bounded by the publish timeout only.
func (s *Service) publish(ctx context.Context, c domain.Confirmation) {
	const op = "Service.publish"
	log := slog.With("op", op)

	s.publishing.Add(1)
	go func() {
		defer s.publishing.Done()

		ctx, cancel := context.WithTimeout(
			context.WithoutCancel(ctx), s.publishTimeout,
		)
		defer cancel()

		if err := s.ordersProducer.ProduceOrders(ctx, c.Orders); err != nil {
			log.Error("failed to publish confirmed orders",
				"confirmationID", c.ID, "err", err)
		}
	}()
}

// Close waits for background publications.
func (s *Service) Close() {
	s.publishing.Wait()
}

func (s *Service) Orders(ctx context.Context) ([]domain.Order, error) {
	const op = "Service.Orders"

	orders, err := s.ordersStorage.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return orders, nil
}

func (s *Service) OrdersByName(
	ctx context.Context, name string,
) ([]domain.Order, error) {
	const op = "Service.OrdersByName"

	orders, err := s.ordersStorage.GetByName(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return orders, nil
}

func (s *Service) Order(ctx context.Context, id uint64) (domain.Order, error) {
	const op = "Service.Order"

	o, ok, err := s.ordersStorage.GetByID(ctx, id)
	if err != nil {
		return domain.Order{}, fmt.Errorf("%s: %w", op, err)
	}
	if !ok {
		return domain.Order{}, fmt.Errorf("%s: id=%d: %w", op, id, domain.ErrNotFound)
	}
	return o, nil
}

func (s *Service) UpdateOrder(
	ctx context.Context, id uint64, fields domain.OrderFields,
) (domain.Order, error) {
	const op = "Service.UpdateOrder"

	o, err := s.ordersStorage.Update(ctx, id, fields)
	if err != nil {
		return domain.Order{}, fmt.Errorf("%s: %w", op, err)
	}
	return o, nil
}

func (s *Service) DeleteOrder(ctx context.Context, id uint64) error {
	const op = "Service.DeleteOrder"

	if err := s.ordersStorage.Delete(ctx, id); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
