package domain

import "errors"

var (
	ErrNotInitialized = errors.New("storage is not initialized")
	ErrStorage        = errors.New("storage failure")
	ErrNotFound       = errors.New("not found")
	ErrEmptyCart      = errors.New("cart is empty")
	ErrUnknownProduct = errors.New("unknown product")
)
