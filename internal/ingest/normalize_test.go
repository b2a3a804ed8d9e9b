package ingest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fernwick/ledgerloom/internal/model"
)

func TestDetectDirection(t *testing.T) {
	tests := []struct {
		name     string
		amount   int64
		merchant string
		memo     string
		want     model.Direction
	}{
		{name: "negative is purchase", amount: -8730, merchant: "AMZN Mktp", want: model.DirectionPurchase},
		{name: "positive is refund", amount: 1299, merchant: "AMZN Mktp", want: model.DirectionRefund},
		{name: "payment thank you", amount: 50000, merchant: "PAYMENT THANK YOU", want: model.DirectionPayment},
		{name: "autopay in memo", amount: -50000, merchant: "Chase", memo: "AUTOPAY 1234", want: model.DirectionPayment},
		{name: "payment marker beats sign", amount: -100, merchant: "Payment Thank You - Web", want: model.DirectionPayment},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, detectDirection(tt.amount, tt.merchant, tt.memo))
		})
	}
}

func TestParseDate(t *testing.T) {
	tests := []struct {
		input string
		want  time.Time
		ok    bool
	}{
		{input: "2024-03-15", want: time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC), ok: true},
		{input: "03/15/2024", want: time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC), ok: true},
		{input: "3/5/2024", want: time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC), ok: true},
		{input: "not a date", ok: false},
		{input: "", ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, ok := parseDate(tt.input)
			require.Equal(t, tt.ok, ok)
			if ok {
				assert.True(t, tt.want.Equal(got))
			}
		})
	}
}

func TestDedupe(t *testing.T) {
	date := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	a := model.ChargeRecord{Date: date, Merchant: "AMZN", AmountMinor: -8730}
	b := model.ChargeRecord{Date: date, Merchant: "AMZN", AmountMinor: -1299}
	a.Hash = a.GenerateHash()
	b.Hash = b.GenerateHash()

	got := Dedupe([]model.ChargeRecord{a, b, a, b, a})
	require.Len(t, got, 2)
	assert.Equal(t, a.Hash, got[0].Hash)
	assert.Equal(t, b.Hash, got[1].Hash)
}

func TestDedupeFillsMissingHashes(t *testing.T) {
	date := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	records := []model.ChargeRecord{
		{Date: date, Merchant: "AMZN", AmountMinor: -8730},
		{Date: date, Merchant: "AMZN", AmountMinor: -8730},
	}

	got := Dedupe(records)
	require.Len(t, got, 1)
	assert.NotEmpty(t, got[0].Hash)
}
