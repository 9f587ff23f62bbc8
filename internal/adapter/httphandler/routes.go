package httphandler

import (
	"net/http"
	"time"

	"github.com/niksmo/storefront/internal/core/port"
)

type RoutesConfig struct {
	ConfirmationTTL time.Duration
	ImagesDir       string
}

// NewRoutes builds the storefront pages and the JSON API.
//
// Only the /v1/ API requires JSON request bodies.
func NewRoutes(
	sf port.Storefront, orders port.OrdersKeeper, cfg RoutesConfig,
) http.Handler {
	api := http.NewServeMux()
	RegisterCart(api, sf)
	RegisterOrders(api, orders)

	mux := http.NewServeMux()
	RegisterStorefront(mux, sf, cfg.ConfirmationTTL)
	if cfg.ImagesDir != "" {
		RegisterImages(mux, cfg.ImagesDir)
	}
	mux.Handle("/v1/", AllowJSON(api))

	return LogRequests(mux)
}
