package schema

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOrderConfirmedV1Avro(t *testing.T) {
	require.NotPanics(t, func() {
		_ = OrderConfirmedV1Avro()
	})
}
