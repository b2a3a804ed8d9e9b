package ingest

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fernwick/ledgerloom/internal/model"
)

func TestCSVReaderParseFile(t *testing.T) {
	input := `Transaction Date,Description,Memo,Amount
2024-03-15,AMZN Mktp US,Order 111-1234567-7654321,-87.30
2024-03-16,AMZN Mktp US,,12.99
2024-03-17,PAYMENT THANK YOU,,500.00
not-a-date,AMZN Mktp US,,-1.00
2024-03-18,AMZN Mktp US,,bogus
`

	records, err := NewCSVReader().ParseFile(context.Background(), strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, records, 3)

	assert.Equal(t, int64(-8730), records[0].AmountMinor)
	assert.Equal(t, model.DirectionPurchase, records[0].Direction)
	assert.Equal(t, "AMZN Mktp US", records[0].Merchant)
	assert.Equal(t, "Order 111-1234567-7654321", records[0].Memo)
	assert.True(t, time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC).Equal(records[0].Date))
	assert.NotEmpty(t, records[0].Hash)

	assert.Equal(t, model.DirectionRefund, records[1].Direction)
	assert.Equal(t, model.DirectionPayment, records[2].Direction)
}

func TestCSVReaderHeaderAliases(t *testing.T) {
	input := `Posted Date,Merchant,Amount
03/15/2024,Whole Foods,-90.00
`

	records, err := NewCSVReader().ParseFile(context.Background(), strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "Whole Foods", records[0].Merchant)
	assert.Equal(t, int64(-9000), records[0].AmountMinor)
}

func TestCSVReaderMissingColumns(t *testing.T) {
	input := `Description,Memo
AMZN Mktp US,hello
`
	_, err := NewCSVReader().ParseFile(context.Background(), strings.NewReader(input))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing required columns")
}

func TestCSVReaderDeduplicates(t *testing.T) {
	input := `Date,Description,Amount
2024-03-15,AMZN Mktp US,-87.30
2024-03-15,AMZN Mktp US,-87.30
`
	records, err := NewCSVReader().ParseFile(context.Background(), strings.NewReader(input))
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestCSVReaderCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	input := `Date,Description,Amount
2024-03-15,AMZN Mktp US,-87.30
`
	_, err := NewCSVReader().ParseFile(ctx, strings.NewReader(input))
	require.ErrorIs(t, err, context.Canceled)
}
