package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// An OrderFields is the caller supplied part of an [Order].
type OrderFields struct {
	Name           string
	Category       string
	Price          decimal.Decimal
	Quantity       int
	ConfirmationID string
	CreatedAt      time.Time
}

// An Order is a persisted line of a confirmed cart.
//
// ID is assigned by the storage.
type Order struct {
	ID uint64
	OrderFields
}

func (o Order) LineTotal() decimal.Decimal {
	return o.Price.Mul(decimal.NewFromInt(int64(o.Quantity)))
}

type Confirmation struct {
	ID     string
	Orders []Order
	Total  decimal.Decimal
}
