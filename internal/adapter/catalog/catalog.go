package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/niksmo/storefront/internal/core/domain"
	"github.com/niksmo/storefront/internal/core/port"
	"github.com/niksmo/storefront/pkg/retry"
	"github.com/shopspring/decimal"
)

var _ port.CatalogLoader = (*Loader)(nil)

var ErrInvalidProduct = errors.New("invalid product")

type (
	product struct {
		Name     string          `json:"name"`
		Category string          `json:"category"`
		Price    decimal.Decimal `json:"price"`
		Image    productImage    `json:"image"`
	}

	productImage struct {
		Thumbnail string `json:"thumbnail"`
		Mobile    string `json:"mobile"`
		Tablet    string `json:"tablet"`
		Desktop   string `json:"desktop"`
	}
)

// statusError reports an unexpected HTTP status. 5xx are retried.
type statusError struct {
	code int
}

func (e statusError) Error() string {
	return fmt.Sprintf("unexpected status code %d", e.code)
}

// A Loader reads the product catalog from a file path or an http(s) URL.
type Loader struct {
	source     string
	httpClient *http.Client
	retryCfg   retry.RetryConfig
}

func NewLoader(source string) Loader {
	return Loader{
		source:     source,
		httpClient: &http.Client{Timeout: 5 * time.Second},
		retryCfg: retry.RetryConfig{
			MaxAttempts: 3,
			Backoff:     retry.ExponentialBackoff(100 * time.Millisecond),
			ShouldRetry: shouldRetry,
		},
	}
}

func shouldRetry(err error) bool {
	var se statusError
	if errors.As(err, &se) {
		return se.code >= http.StatusInternalServerError
	}
	return !errors.Is(err, ErrInvalidProduct)
}

func (l Loader) LoadProducts(ctx context.Context) ([]domain.Product, error) {
	const op = "Loader.LoadProducts"
	log := slog.With("op", op)

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var (
		ps  []product
		err error
	)
	if l.isRemote() {
		ps, err = retry.DoWithResult(ctx, l.retryCfg, func() ([]product, error) {
			return l.fetch(ctx)
		})
	} else {
		ps, err = l.readFile()
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	products, skipped := l.toDomain(ps)
	for _, err := range skipped {
		log.Warn("skip catalog entry", "err", err)
	}

	log.Info("catalog is loaded", "source", l.source, "nProducts", len(products))
	return products, nil
}

func (l Loader) isRemote() bool {
	return strings.HasPrefix(l.source, "http://") ||
		strings.HasPrefix(l.source, "https://")
}

func (l Loader) fetch(ctx context.Context) ([]product, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.source, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	res, err := l.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		_, _ = io.Copy(io.Discard, res.Body)
		_ = res.Body.Close()
	}()

	if res.StatusCode != http.StatusOK {
		return nil, statusError{res.StatusCode}
	}
	return decode(res.Body)
}

func (l Loader) readFile() ([]product, error) {
	f, err := os.Open(l.source)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return decode(f)
}

func decode(r io.Reader) ([]product, error) {
	var ps []product
	if err := json.NewDecoder(r).Decode(&ps); err != nil {
		return nil, fmt.Errorf("invalid catalog JSON: %w", err)
	}
	return ps, nil
}

// toDomain keeps the source order and drops entries with an empty or
// duplicate name or a negative price.
func (l Loader) toDomain(
	ps []product,
) (products []domain.Product, skipped []error) {
	seen := make(map[string]bool, len(ps))
	for i, p := range ps {
		switch {
		case p.Name == "":
			skipped = append(skipped,
				fmt.Errorf("entry %d: empty name: %w", i, ErrInvalidProduct))
			continue
		case seen[p.Name]:
			skipped = append(skipped,
				fmt.Errorf("entry %d: duplicate name %q: %w", i, p.Name, ErrInvalidProduct))
			continue
		case p.Price.IsNegative():
			skipped = append(skipped,
				fmt.Errorf("entry %d: negative price: %w", i, ErrInvalidProduct))
			continue
		}
		seen[p.Name] = true

		products = append(products, domain.Product{
			Name:     p.Name,
			Category: p.Category,
			Price:    p.Price,
			Image: domain.ProductImage{
				Thumbnail: p.Image.Thumbnail,
				Mobile:    p.Image.Mobile,
				Tablet:    p.Image.Tablet,
				Desktop:   p.Image.Desktop,
			},
		})
	}
	return products, skipped
}
