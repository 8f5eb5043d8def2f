package inventory

import (
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/require"
)

type missRow struct{}

func (missRow) Scan(...any) error { return pgx.ErrNoRows }

func TestScanItemPropagatesNoRows(t *testing.T) {
	_, err := scanItem(missRow{})
	require.True(t, errors.Is(err, pgx.ErrNoRows),
		"a miss must surface untouched so the caller can name the requested id")
}
