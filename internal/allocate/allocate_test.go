package allocate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fernwick/ledgerloom/internal/common"
	"github.com/fernwick/ledgerloom/internal/model"
)

func shipment(totals ...int64) *model.Shipment {
	s := &model.Shipment{}
	for _, t := range totals {
		s.Items = append(s.Items, model.Item{Name: "item", TotalMinor: t, Quantity: 1})
		s.TotalMinor += t
	}
	return s
}

func sum(allocated []model.AllocatedItem) int64 {
	var total int64
	for _, a := range allocated {
		total += a.AllocatedMinor
	}
	return total
}

func TestAllocateExactTotals(t *testing.T) {
	// Item totals already sum to the charge; they are used verbatim.
	allocated, err := Allocate(shipment(3000, 3000, 3000), 9000)
	require.NoError(t, err)
	require.Len(t, allocated, 3)
	for _, a := range allocated {
		assert.Equal(t, int64(3000), a.AllocatedMinor)
	}
}

func TestAllocateProportional(t *testing.T) {
	// 9000 of items charged at 8730: each takes its rounded share, exact sum.
	allocated, err := Allocate(shipment(3000, 3000, 3000), 8730)
	require.NoError(t, err)
	require.Len(t, allocated, 3)
	assert.Equal(t, int64(2910), allocated[0].AllocatedMinor)
	assert.Equal(t, int64(2910), allocated[1].AllocatedMinor)
	assert.Equal(t, int64(2910), allocated[2].AllocatedMinor)
}

func TestAllocateResidualGoesToLastItem(t *testing.T) {
	allocated, err := Allocate(shipment(3333, 3333, 3334), 10001)
	require.NoError(t, err)
	assert.Equal(t, int64(10001), sum(allocated))
}

func TestAllocateSumInvariantHolds(t *testing.T) {
	cases := []struct {
		totals []int64
		charge int64
	}{
		{totals: []int64{1, 1, 1}, charge: 100},
		{totals: []int64{999, 1}, charge: 500},
		{totals: []int64{1299, 2599, 899, 4500}, charge: 9000},
		{totals: []int64{5000}, charge: 4321},
		{totals: []int64{700, 300}, charge: 1},
	}
	for _, tc := range cases {
		allocated, err := Allocate(shipment(tc.totals...), tc.charge)
		require.NoError(t, err)
		assert.Equal(t, tc.charge, sum(allocated), "totals %v charge %d", tc.totals, tc.charge)
	}
}

func TestAllocateZeroTotalSingleItem(t *testing.T) {
	// Promotional items can zero out a shipment total; a lone item still
	// takes the whole charge.
	allocated, err := Allocate(shipment(0), 1299)
	require.NoError(t, err)
	require.Len(t, allocated, 1)
	assert.Equal(t, int64(1299), allocated[0].AllocatedMinor)
}

func TestAllocateZeroTotalMultipleItems(t *testing.T) {
	_, err := Allocate(shipment(0, 0), 1299)
	require.ErrorIs(t, err, common.ErrMatchAmbiguous)
}

func TestAllocateNoItems(t *testing.T) {
	_, err := Allocate(&model.Shipment{}, 1299)
	require.ErrorIs(t, err, common.ErrAllocationInvariant)
}

func TestAllocateNegativeCharge(t *testing.T) {
	_, err := Allocate(shipment(1000), -100)
	require.Error(t, err)
}

func TestAllocateDeterministic(t *testing.T) {
	first, err := Allocate(shipment(1299, 2599, 899), 4500)
	require.NoError(t, err)
	second, err := Allocate(shipment(1299, 2599, 899), 4500)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestRoundHalfUp(t *testing.T) {
	tests := []struct {
		num, den, want int64
	}{
		{num: 5, den: 10, want: 1},
		{num: 4, den: 10, want: 0},
		{num: 15, den: 10, want: 2},
		{num: 10, den: 10, want: 1},
		{num: 0, den: 10, want: 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, roundHalfUp(tt.num, tt.den), "%d/%d", tt.num, tt.den)
	}
}
