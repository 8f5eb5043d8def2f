package shared

import (
	"errors"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestValidationErrorFields(t *testing.T) {
	err := NewValidationError("qty_per_piece", "must be greater than zero")
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	require.Equal(t, "qty_per_piece", ve.Field)
}

func TestInsufficientStockErrorMessage(t *testing.T) {
	err := &InsufficientStockError{
		ItemID:    7,
		Requested: decimal.NewFromInt(300),
		Available: decimal.NewFromInt(207),
	}
	require.Contains(t, err.Error(), "requested 300")
	require.Contains(t, err.Error(), "available 207")
}

func TestStorageErrorUnwraps(t *testing.T) {
	cause := errors.New("connection reset")
	err := WrapStorage("insert ledger entry", cause)
	require.ErrorIs(t, err, cause)
	require.Contains(t, err.Error(), "insert ledger entry")

	require.NoError(t, WrapStorage("noop", nil))
}

func TestNotFoundDetection(t *testing.T) {
	err := fmt.Errorf("lookup: %w", &NotFoundError{Entity: "recipe", ID: 4})
	require.True(t, IsNotFound(err))
	require.False(t, IsNotFound(errors.New("other")))
}
