package domain

import "github.com/shopspring/decimal"

type (
	Product struct {
		Name     string
		Category string
		Price    decimal.Decimal
		Image    ProductImage
	}

	ProductImage struct {
		Thumbnail string
		Mobile    string
		Tablet    string
		Desktop   string
	}
)
