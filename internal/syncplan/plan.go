// Package syncplan decides what to do with each synthesized entry before
// anything touches the ledger. Planning is pure data; the engine executes.
package syncplan

import (
	"fmt"
	"strings"

	"github.com/fernwick/ledgerloom/internal/model"
)

// Recreate replaces a previously synced entry whose categories have
// diverged from the current classification. The ledger has no update, and
// it silently drops re-imports of keys it has already seen, so the old
// entry is deleted and the new one goes in under a bumped key version.
type Recreate struct {
	Entry            *model.SplitEntry
	OldImportKey     string
	DeleteExternalID string
	KeyVersion       int
}

// Plan is the complete disposition of a run's entries.
type Plan struct {
	Create   []*model.SplitEntry
	Recreate []Recreate
	// Skip lists import keys already present and unchanged.
	Skip []string
	// Conflicts lists import keys present in the ledger with no local sync
	// record. Those are left alone and surfaced for review.
	Conflicts []string
}

// BaseKey strips the version prefix from an import key. Entries are always
// synthesized at version 1, so snapshots recorded under bumped keys have to
// be resolved by their version-independent remainder.
func BaseKey(key string) (string, error) {
	rest := strings.TrimPrefix(key, "SPL")
	idx := strings.IndexByte(rest, ':')
	if rest == key || idx < 0 {
		return "", fmt.Errorf("malformed import key %q", key)
	}
	return rest[idx:], nil
}

// bumpKeyVersion rewrites an import key's version prefix.
func bumpKeyVersion(key string, version int) (string, error) {
	base, err := BaseKey(key)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("SPL%d%s", version, base), nil
}

// sameLines reports whether a fresh entry's category lines match the synced
// snapshot.
func sameLines(entry *model.SplitEntry, snapshot *model.SyncedEntry) bool {
	if len(entry.Lines) != len(snapshot.Lines) {
		return false
	}
	snap := make(map[string]int64, len(snapshot.Lines))
	for _, line := range snapshot.Lines {
		snap[line.CategoryID] += line.AmountMinor
	}
	for _, line := range entry.Lines {
		amount, ok := snap[line.CategoryID]
		if !ok || amount != line.AmountMinor {
			return false
		}
		delete(snap, line.CategoryID)
	}
	return len(snap) == 0
}

// Build computes the plan for one run.
//
// existingKeys is the ledger's view of import keys it holds; synced is the
// local snapshot index keyed by import key. Snapshots are resolved by their
// version-stripped base key, so a fresh version-1 entry still finds the
// snapshot a previous recreate left under a bumped key. An entry is skipped
// when its current key exists and the snapshot agrees, created when neither
// side knows it, and recreated when the local classification has moved away
// from what was uploaded.
func Build(entries []*model.SplitEntry, existingKeys map[string]bool, synced map[string]*model.SyncedEntry) (*Plan, error) {
	byBase := make(map[string]*model.SyncedEntry, len(synced))
	for key, snapshot := range synced {
		base, err := BaseKey(key)
		if err != nil {
			return nil, err
		}
		if cur, ok := byBase[base]; !ok || snapshot.KeyVersion > cur.KeyVersion {
			byBase[base] = snapshot
		}
	}

	plan := &Plan{}
	for _, entry := range entries {
		base, err := BaseKey(entry.ImportKey)
		if err != nil {
			return nil, err
		}
		snapshot := byBase[base]

		switch {
		case snapshot == nil && existingKeys[entry.ImportKey]:
			// Someone else created this key. Never touch it.
			plan.Conflicts = append(plan.Conflicts, entry.ImportKey)

		case snapshot == nil:
			plan.Create = append(plan.Create, entry)

		case existingKeys[snapshot.ImportKey] && sameLines(entry, snapshot):
			plan.Skip = append(plan.Skip, snapshot.ImportKey)

		default:
			// Categories diverged, or the ledger entry is gone but the key
			// is burned. Either way the replacement needs a fresh key.
			newKey, err := bumpKeyVersion(entry.ImportKey, snapshot.KeyVersion+1)
			if err != nil {
				return nil, err
			}
			recreated := *entry
			recreated.ImportKey = newKey
			rec := Recreate{
				Entry:        &recreated,
				OldImportKey: snapshot.ImportKey,
				KeyVersion:   snapshot.KeyVersion + 1,
			}
			if existingKeys[snapshot.ImportKey] {
				rec.DeleteExternalID = snapshot.ExternalID
			}
			plan.Recreate = append(plan.Recreate, rec)
		}
	}
	return plan, nil
}

// Total returns the number of planned operations, skips included.
func (p *Plan) Total() int {
	return len(p.Create) + len(p.Recreate) + len(p.Skip) + len(p.Conflicts)
}
