package schema

import (
	"context"

	"github.com/hamba/avro/v2"
	"github.com/twmb/franz-go/pkg/sr"
)

func AvroEncodeFn(s avro.Schema) func(v any) ([]byte, error) {
	return func(v any) ([]byte, error) {
		return avro.Marshal(s, v)
	}
}

func AvroDecodeFn(s avro.Schema) func([]byte, any) error {
	return func(data []byte, v any) error {
		return avro.Unmarshal(s, data, v)
	}
}

// A SchemaIdentifier returns the registry id of the schema text
// under subject.
type SchemaIdentifier interface {
	DetermineID(ctx context.Context, subject, schemaText string) (int, error)
}

type schemaRegistryClient interface {
	CreateSchema(ctx context.Context, subject string, s sr.Schema) (sr.SubjectSchema, error)
}

// A SchemaCreater registers Avro schemas in the Schema Registry.
//
// Registering an already known schema returns its existing id.
type SchemaCreater struct {
	cl schemaRegistryClient
}

func NewSchemaCreater(cl schemaRegistryClient) SchemaCreater {
	return SchemaCreater{cl}
}

func (c SchemaCreater) DetermineID(
	ctx context.Context, subject, schemaText string,
) (int, error) {
	ss, err := c.cl.CreateSchema(ctx, subject, sr.Schema{
		Schema: schemaText,
		Type:   sr.TypeAvro,
	})
	if err != nil {
		return 0, err
	}
	return ss.ID, nil
}
