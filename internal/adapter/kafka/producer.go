package kafka

import (
	"context"
	"log/slog"

	"github.com/niksmo/storefront/internal/core/domain"
	"github.com/niksmo/storefront/internal/core/port"
	"github.com/twmb/franz-go/pkg/kgo"
)

var _ port.OrdersProducer = (*OrdersProducer)(nil)
var _ port.OrdersProducer = NopOrdersProducer{}

// An OrdersProducer publishes confirmed [domain.Order] as Avro records.
type OrdersProducer struct {
	cl      ProducerClient
	encoder Encoder
}

func NewOrdersProducer(opts ...ProducerOpt) (OrdersProducer, error) {
	const op = "NewOrdersProducer"

	if len(opts) != 2 {
		panic(opErr(ErrTooFewOpts, op)) // develop mistake
	}

	var options producerOpts
	for _, opt := range opts {
		if err := opt(&options); err != nil {
			return OrdersProducer{}, opErr(err, op)
		}
	}
	return OrdersProducer{cl: options.cl, encoder: options.encoder}, nil
}

func (p OrdersProducer) Close() {
	log := slog.With("op", "OrdersProducer.Close")
	log.Info("closing producer...")
	p.cl.Close()
	log.Info("producer is closed")
}

// ProduceOrders sends one record per order, keyed by confirmation id, and
// waits for every record to be acknowledged.
func (p OrdersProducer) ProduceOrders(
	ctx context.Context, vs []domain.Order,
) error {
	const op = "OrdersProducer.ProduceOrders"

	if err := ctx.Err(); err != nil {
		return opErr(err, op)
	}
	if len(vs) == 0 {
		return nil
	}

	rs := make([]*kgo.Record, len(vs))
	for i, v := range vs {
		value, err := p.encoder.Encode(orderToSchemaV1(v))
		if err != nil {
			return opErr(err, op, "encode")
		}
		rs[i] = &kgo.Record{Key: []byte(v.ConfirmationID), Value: value}
	}

	if err := p.cl.ProduceSync(ctx, rs...).FirstErr(); err != nil {
		return opErr(err, op)
	}
	return nil
}

// A NopOrdersProducer drops orders, used when the broker is disabled.
type NopOrdersProducer struct{}

func (NopOrdersProducer) ProduceOrders(
	ctx context.Context, vs []domain.Order,
) error {
	slog.Debug("broker is disabled, orders are not published",
		"op", "NopOrdersProducer.ProduceOrders", "nOrders", len(vs))
	return nil
}

func (NopOrdersProducer) Close() {}
