package domain

type CartLineView struct {
	Name      string
	Category  string
	Quantity  int
	UnitPrice string
	LineTotal string
}

// A CartView is the cart prepared for display.
//
// Unit prices and line totals have two decimal places, the order total
// has totalPrecision places.
type CartView struct {
	Empty bool
	Lines []CartLineView
	Count int
	Total string
}

func NewCartView(items []CartLineItem, totalPrecision int32) CartView {
	count, price := totals(items)

	v := CartView{
		Empty: len(items) == 0,
		Lines: make([]CartLineView, 0, len(items)),
		Count: count,
		Total: price.StringFixed(totalPrecision),
	}
	for _, item := range items {
		v.Lines = append(v.Lines, CartLineView{
			Name:      item.Name,
			Category:  item.Category,
			Quantity:  item.Quantity,
			UnitPrice: item.Price.StringFixed(2),
			LineTotal: item.Total().StringFixed(2),
		})
	}
	return v
}
