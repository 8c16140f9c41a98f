package fetcher

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTransportError(t *testing.T) {
	t.Parallel()

	err := error(&TransportError{URL: "https://example.com", StatusCode: 404, Err: errors.New("Not Found")})
	require.EqualError(t, err, "fetch https://example.com: status 404: Not Found")

	wrapped := &TransportError{URL: "https://example.com", Err: context.DeadlineExceeded}
	require.EqualError(t, wrapped, "fetch https://example.com: context deadline exceeded")
	require.ErrorIs(t, wrapped, context.DeadlineExceeded)

	var te *TransportError
	require.ErrorAs(t, errors.Join(errors.New("other"), wrapped), &te)
}
