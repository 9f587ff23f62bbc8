package kafka_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/niksmo/storefront/internal/adapter/kafka"
	"github.com/niksmo/storefront/internal/core/domain"
	"github.com/niksmo/storefront/pkg/schema"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"
)

type MockProducerClient struct {
	mock.Mock
}

func (c *MockProducerClient) ProduceSync(
	ctx context.Context, rs ...*kgo.Record,
) kgo.ProduceResults {
	args := c.Called(ctx, rs)
	if err := args.Error(0); err != nil {
		return kgo.ProduceResults{{Err: err}}
	}
	results := make(kgo.ProduceResults, len(rs))
	for i, r := range rs {
		results[i].Record = r
	}
	return results
}

func (c *MockProducerClient) Close() {
	c.Called()
}

type MockEncoder struct {
	mock.Mock
}

func (e *MockEncoder) Encode(v any) ([]byte, error) {
	args := e.Called(v)
	b, _ := args.Get(0).([]byte)
	return b, args.Error(1)
}

func testOrders() []domain.Order {
	createdAt := time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC)
	return []domain.Order{
		{ID: 1, OrderFields: domain.OrderFields{
			Name: "Tart", Category: "Pastry",
			Price: decimal.RequireFromString("4.50"), Quantity: 2,
			ConfirmationID: "c1", CreatedAt: createdAt,
		}},
		{ID: 2, OrderFields: domain.OrderFields{
			Name: "Cake", Category: "Cake",
			Price: decimal.RequireFromString("5"), Quantity: 1,
			ConfirmationID: "c1", CreatedAt: createdAt,
		}},
	}
}

func TestNewOrdersProducer(t *testing.T) {
	t.Run("TooFewOpts", func(t *testing.T) {
		assert.Panics(t, func() {
			_, _ = kafka.NewOrdersProducer(
				kafka.ProducerEncoderOpt(new(MockEncoder)),
			)
		})
	})

	t.Run("NilEncoder", func(t *testing.T) {
		_, err := kafka.NewOrdersProducer(
			kafka.ProducerWithClientOpt(new(MockProducerClient)),
			kafka.ProducerEncoderOpt(nil),
		)
		assert.Error(t, err)
	})
}

func TestOrdersProducer(t *testing.T) {
	t.Run("Produce", func(t *testing.T) {
		cl := new(MockProducerClient)
		enc := new(MockEncoder)

		p, err := kafka.NewOrdersProducer(
			kafka.ProducerWithClientOpt(cl),
			kafka.ProducerEncoderOpt(enc),
		)
		require.NoError(t, err)

		orders := testOrders()
		enc.On("Encode", mock.MatchedBy(func(v schema.OrderConfirmedV1) bool {
			return v.OrderID == 1 && v.Price == "4.5" && v.Quantity == 2
		})).Return([]byte("first"), nil).Once()
		enc.On("Encode", mock.MatchedBy(func(v schema.OrderConfirmedV1) bool {
			return v.OrderID == 2 && v.Price == "5"
		})).Return([]byte("second"), nil).Once()

		cl.On("ProduceSync", mock.Anything, mock.MatchedBy(func(rs []*kgo.Record) bool {
			return len(rs) == 2 &&
				string(rs[0].Key) == "c1" && string(rs[0].Value) == "first" &&
				string(rs[1].Value) == "second"
		})).Return(nil).Once()

		require.NoError(t, p.ProduceOrders(t.Context(), orders))
		enc.AssertExpectations(t)
		cl.AssertExpectations(t)
	})

	t.Run("Empty", func(t *testing.T) {
		cl := new(MockProducerClient)
		p, err := kafka.NewOrdersProducer(
			kafka.ProducerWithClientOpt(cl),
			kafka.ProducerEncoderOpt(new(MockEncoder)),
		)
		require.NoError(t, err)

		require.NoError(t, p.ProduceOrders(t.Context(), nil))
		cl.AssertNotCalled(t, "ProduceSync", mock.Anything, mock.Anything)
	})

	t.Run("BrokerFailure", func(t *testing.T) {
		cl := new(MockProducerClient)
		enc := new(MockEncoder)
		p, err := kafka.NewOrdersProducer(
			kafka.ProducerWithClientOpt(cl),
			kafka.ProducerEncoderOpt(enc),
		)
		require.NoError(t, err)

		errBroker := errors.New("not enough replicas")
		enc.On("Encode", mock.Anything).Return([]byte("v"), nil)
		cl.On("ProduceSync", mock.Anything, mock.Anything).Return(errBroker)

		err = p.ProduceOrders(t.Context(), testOrders())
		assert.ErrorIs(t, err, errBroker)
	})

	t.Run("Close", func(t *testing.T) {
		cl := new(MockProducerClient)
		cl.On("Close").Once()
		p, err := kafka.NewOrdersProducer(
			kafka.ProducerWithClientOpt(cl),
			kafka.ProducerEncoderOpt(new(MockEncoder)),
		)
		require.NoError(t, err)

		p.Close()
		cl.AssertExpectations(t)
	})
}

func TestOrdersProducerEncodeFailure(t *testing.T) {
	cl := new(MockProducerClient)
	enc := new(MockEncoder)
	p, err := kafka.NewOrdersProducer(
		kafka.ProducerWithClientOpt(cl),
		kafka.ProducerEncoderOpt(enc),
	)
	require.NoError(t, err)

	errEncode := errors.New("bad price")
	enc.On("Encode", mock.Anything).Return(nil, errEncode).Once()

	err = p.ProduceOrders(t.Context(), testOrders())
	assert.ErrorIs(t, err, errEncode)
	cl.AssertNotCalled(t, "ProduceSync", mock.Anything, mock.Anything)
}
