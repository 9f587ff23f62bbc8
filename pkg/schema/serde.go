package schema

import (
	"context"
	"errors"
	"fmt"

	"github.com/hamba/avro/v2"
	"github.com/twmb/franz-go/pkg/sr"
)

var (
	ErrTooFewOpts = errors.New("too few options")
)

type Serde interface {
	Encode(v any) ([]byte, error)
	Decode(data []byte, v any) error
}

type serde struct {
	srSerde *sr.Serde
}

func (s serde) Encode(v any) ([]byte, error) {
	return s.srSerde.Encode(v)
}

func (s serde) Decode(data []byte, v any) error {
	return s.srSerde.Decode(data, v)
}

type Opt func(*serdeOpts) error

type serdeOpts struct {
	subject string
	si      SchemaIdentifier
}

func SubjectOpt(subject string) Opt {
	return func(so *serdeOpts) error {
		if subject == "" {
			return errors.New("subject is empty string")
		}
		so.subject = subject
		return nil
	}
}

func SchemaIdentifierOpt(sc SchemaIdentifier) Opt {
	return func(so *serdeOpts) error {
		if sc == nil {
			return errors.New("schema identifier is nil")
		}
		so.si = sc
		return nil
	}
}

// NewSerdeOrderConfirmedV1 registers the v1 order schema under the subject
// and returns a serde speaking the Schema Registry wire format. Both
// [SubjectOpt] and [SchemaIdentifierOpt] are required.
func NewSerdeOrderConfirmedV1(ctx context.Context, opts ...Opt) (Serde, error) {
	const op = "NewSerdeOrderConfirmedV1"

	if len(opts) != 2 {
		return serde{}, fmt.Errorf("%s: %w", op, ErrTooFewOpts)
	}
	var o serdeOpts
	for _, opt := range opts {
		if err := opt(&o); err != nil {
			return serde{}, fmt.Errorf("%s: %w", op, err)
		}
	}

	avroSchema, err := avro.Parse(OrderConfirmedSchemaTextV1)
	if err != nil {
		return serde{}, fmt.Errorf("%s: %w", op, err)
	}
	id, err := o.si.DetermineID(ctx, o.subject, OrderConfirmedSchemaTextV1)
	if err != nil {
		return serde{}, fmt.Errorf("%s: %w", op, err)
	}

	var srSerde sr.Serde
	srSerde.Register(id, OrderConfirmedV1{},
		sr.EncodeFn(AvroEncodeFn(avroSchema)),
		sr.DecodeFn(AvroDecodeFn(avroSchema)),
	)
	return serde{&srSerde}, nil
}
