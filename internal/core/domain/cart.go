package domain

import (
	"sync"

	"github.com/shopspring/decimal"
)

type CartLineItem struct {
	Name     string
	Category string
	Price    decimal.Decimal
	Quantity int
}

func (i CartLineItem) Total() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// A Cart keeps line items keyed by product name.
//
// Items are iterated in the order they were first added.
// The zero value is an empty cart ready to use.
type Cart struct {
	mu    sync.RWMutex
	items map[string]*CartLineItem
	order []string
}

func NewCart() *Cart {
	return &Cart{}
}

// AddOne creates a line item with quantity 1 or increments an existing one.
func (c *Cart) AddOne(p Product) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if item, ok := c.items[p.Name]; ok {
		item.Quantity++
		return
	}

	if c.items == nil {
		c.items = make(map[string]*CartLineItem)
	}
	c.items[p.Name] = &CartLineItem{
		Name:     p.Name,
		Category: p.Category,
		Price:    p.Price,
		Quantity: 1,
	}
	c.order = append(c.order, p.Name)
}

// Remove deletes the line item. Unknown names are ignored.
func (c *Cart) Remove(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.items[name]; !ok {
		return
	}
	delete(c.items, name)
	for i, n := range c.order {
		if n == name {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
}

func (c *Cart) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.clear()
}

// Checkout passes the line items to fn and clears the cart only when fn
// succeeds. The cart stays locked until fn returns.
func (c *Cart) Checkout(fn func([]CartLineItem) error) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	items := c.snapshot()
	if len(items) == 0 {
		return ErrEmptyCart
	}

	if err := fn(items); err != nil {
		return err
	}

	c.clear()
	return nil
}

func (c *Cart) clear() {
	c.items = nil
	c.order = nil
}

func (c *Cart) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.order)
}

// Items returns a copy of the line items.
func (c *Cart) Items() []CartLineItem {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snapshot()
}

// Totals returns the sum of quantities and the sum of line totals.
func (c *Cart) Totals() (count int, price decimal.Decimal) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return totals(c.snapshot())
}

func (c *Cart) snapshot() []CartLineItem {
	items := make([]CartLineItem, 0, len(c.order))
	for _, name := range c.order {
		items = append(items, *c.items[name])
	}
	return items
}

func totals(items []CartLineItem) (count int, price decimal.Decimal) {
	for _, item := range items {
		count += item.Quantity
		price = price.Add(item.Total())
	}
	return count, price
}

// View renders the cart under a single read lock, so rows and totals
// always agree.
func (c *Cart) View(totalPrecision int32) CartView {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return NewCartView(c.snapshot(), totalPrecision)
}
