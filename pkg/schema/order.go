package schema

import (
	"time"

	"github.com/hamba/avro/v2"
)

const OrderConfirmedSchemaTextV1 = `{
	"type": "record",
	"namespace": "storefront",
	"name": "order_confirmed",
	"fields" : [
		{"name": "confirmation_id", "type": "string"},
		{"name": "order_id", "type": "long"},
		{"name": "name", "type": "string"},
		{"name": "category", "type": "string"},
		{"name": "price", "type": "string"},
		{"name": "quantity", "type": "int"},
		{"name": "created_at", "type": {"type": "long", "logicalType": "timestamp-millis"}}
	]
}`

// An OrderConfirmedV1 is one persisted line of a confirmed order.
//
// Price is a decimal string to keep it exact.
type OrderConfirmedV1 struct {
	ConfirmationID string    `avro:"confirmation_id"`
	OrderID        int64     `avro:"order_id"`
	Name           string    `avro:"name"`
	Category       string    `avro:"category"`
	Price          string    `avro:"price"`
	Quantity       int       `avro:"quantity"`
	CreatedAt      time.Time `avro:"created_at"`
}

func OrderConfirmedV1Avro() avro.Schema {
	return avro.MustParse(OrderConfirmedSchemaTextV1)
}
