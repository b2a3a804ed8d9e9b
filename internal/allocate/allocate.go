// Package allocate distributes a charge across the items of its shipment.
package allocate

import (
	"fmt"

	"github.com/fernwick/ledgerloom/internal/common"
	"github.com/fernwick/ledgerloom/internal/model"
)

// Allocate apportions chargeMinor (unsigned) across the shipment's items.
// When item totals already sum to the charge they are used verbatim.
// Otherwise each item takes its proportional share rounded half up and the
// last item absorbs the residual, so the allocations always sum to the
// charge exactly.
//
// A zero-total shipment with a single item takes the whole charge; with
// multiple items there is no defensible split, so the caller gets an
// ambiguity error and routes the charge to review.
func Allocate(shipment *model.Shipment, chargeMinor int64) ([]model.AllocatedItem, error) {
	if chargeMinor < 0 {
		return nil, fmt.Errorf("charge amount must be unsigned, got %d", chargeMinor)
	}
	if len(shipment.Items) == 0 {
		return nil, fmt.Errorf("shipment has no items: %w", common.ErrAllocationInvariant)
	}

	if shipment.TotalMinor == 0 {
		if len(shipment.Items) == 1 {
			return []model.AllocatedItem{{Item: shipment.Items[0], AllocatedMinor: chargeMinor}}, nil
		}
		return nil, fmt.Errorf("zero-total shipment with %d items: %w",
			len(shipment.Items), common.ErrMatchAmbiguous)
	}

	allocated := make([]model.AllocatedItem, len(shipment.Items))
	if shipment.TotalMinor == chargeMinor {
		for i, item := range shipment.Items {
			allocated[i] = model.AllocatedItem{Item: item, AllocatedMinor: item.TotalMinor}
		}
		return allocated, nil
	}

	var assigned int64
	for i, item := range shipment.Items {
		if i == len(shipment.Items)-1 {
			allocated[i] = model.AllocatedItem{Item: item, AllocatedMinor: chargeMinor - assigned}
			break
		}
		share := roundHalfUp(item.TotalMinor*chargeMinor, shipment.TotalMinor)
		allocated[i] = model.AllocatedItem{Item: item, AllocatedMinor: share}
		assigned += share
	}

	return allocated, verify(allocated, chargeMinor)
}

// roundHalfUp divides num by den rounding .5 away from zero.
func roundHalfUp(num, den int64) int64 {
	return (2*num + den) / (2 * den)
}

// verify re-checks the sum invariant. Violations are a bug, never corrected
// silently.
func verify(allocated []model.AllocatedItem, chargeMinor int64) error {
	var sum int64
	for i := range allocated {
		sum += allocated[i].AllocatedMinor
	}
	if sum != chargeMinor {
		return fmt.Errorf("allocated %d of %d: %w", sum, chargeMinor, common.ErrAllocationInvariant)
	}
	return nil
}
