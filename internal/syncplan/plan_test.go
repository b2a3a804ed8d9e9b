package syncplan

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fernwick/ledgerloom/internal/model"
)

func entry(importKey string, lines ...model.SplitLine) *model.SplitEntry {
	var total int64
	for _, line := range lines {
		total += line.AmountMinor
	}
	return &model.SplitEntry{ImportKey: importKey, Lines: lines, TotalMinor: total}
}

func snapshot(importKey, externalID string, keyVersion int, lines ...model.SyncedLine) *model.SyncedEntry {
	return &model.SyncedEntry{
		ImportKey:  importKey,
		ExternalID: externalID,
		KeyVersion: keyVersion,
		Lines:      lines,
	}
}

func TestBuildCreatesUnknownEntries(t *testing.T) {
	e := entry("SPL1:111-1234567-7654321:8730:P", model.SplitLine{CategoryID: "a", AmountMinor: -8730})

	plan, err := Build([]*model.SplitEntry{e}, map[string]bool{}, map[string]*model.SyncedEntry{})
	require.NoError(t, err)
	require.Len(t, plan.Create, 1)
	assert.Empty(t, plan.Recreate)
	assert.Empty(t, plan.Skip)
	assert.Empty(t, plan.Conflicts)
	assert.Equal(t, 1, plan.Total())
}

func TestBuildSkipsUnchangedEntries(t *testing.T) {
	key := "SPL1:111-1234567-7654321:8730:P"
	e := entry(key,
		model.SplitLine{CategoryID: "a", AmountMinor: -6000},
		model.SplitLine{CategoryID: "b", AmountMinor: -2730})

	plan, err := Build([]*model.SplitEntry{e},
		map[string]bool{key: true},
		map[string]*model.SyncedEntry{key: snapshot(key, "ext-1", 1,
			model.SyncedLine{CategoryID: "b", AmountMinor: -2730},
			model.SyncedLine{CategoryID: "a", AmountMinor: -6000})})
	require.NoError(t, err)
	assert.Equal(t, []string{key}, plan.Skip)
	assert.Empty(t, plan.Create)
	assert.Empty(t, plan.Recreate)
}

func TestBuildRecreatesDivergedEntries(t *testing.T) {
	key := "SPL1:111-1234567-7654321:8730:P"
	e := entry(key,
		model.SplitLine{CategoryID: "a", AmountMinor: -6000},
		model.SplitLine{CategoryID: "c", AmountMinor: -2730})

	plan, err := Build([]*model.SplitEntry{e},
		map[string]bool{key: true},
		map[string]*model.SyncedEntry{key: snapshot(key, "ext-1", 1,
			model.SyncedLine{CategoryID: "a", AmountMinor: -6000},
			model.SyncedLine{CategoryID: "b", AmountMinor: -2730})})
	require.NoError(t, err)
	require.Len(t, plan.Recreate, 1)

	rec := plan.Recreate[0]
	assert.Equal(t, key, rec.OldImportKey)
	assert.Equal(t, "SPL2:111-1234567-7654321:8730:P", rec.Entry.ImportKey)
	assert.Equal(t, 2, rec.KeyVersion)
	assert.Equal(t, "ext-1", rec.DeleteExternalID)
	// The input entry is not mutated.
	assert.Equal(t, key, e.ImportKey)
}

func TestBuildRecreatesBurnedKeyWithoutDelete(t *testing.T) {
	// The user deleted the ledger entry but the key is burned; replacement
	// still needs a bumped key, with nothing to delete first.
	key := "SPL2:111-1234567-7654321:8730:P"
	e := entry(key, model.SplitLine{CategoryID: "a", AmountMinor: -8730})

	plan, err := Build([]*model.SplitEntry{e},
		map[string]bool{},
		map[string]*model.SyncedEntry{key: snapshot(key, "ext-1", 2,
			model.SyncedLine{CategoryID: "a", AmountMinor: -8730})})
	require.NoError(t, err)
	require.Len(t, plan.Recreate, 1)
	assert.Equal(t, "SPL3:111-1234567-7654321:8730:P", plan.Recreate[0].Entry.ImportKey)
	assert.Empty(t, plan.Recreate[0].DeleteExternalID)
}

func TestBuildResolvesSnapshotAcrossKeyVersions(t *testing.T) {
	// After a recreate, the snapshot and ledger only know the bumped key;
	// the next run's version-1 entry must still resolve to it instead of
	// planning a create against the burned version-1 key.
	bumped := "SPL2:111-1234567-7654321:8730:P"
	e := entry("SPL1:111-1234567-7654321:8730:P",
		model.SplitLine{CategoryID: "a", AmountMinor: -8730})

	// Unchanged lines: skip under the bumped key.
	plan, err := Build([]*model.SplitEntry{e},
		map[string]bool{bumped: true},
		map[string]*model.SyncedEntry{bumped: snapshot(bumped, "ext-2", 2,
			model.SyncedLine{CategoryID: "a", AmountMinor: -8730})})
	require.NoError(t, err)
	assert.Equal(t, []string{bumped}, plan.Skip)
	assert.Empty(t, plan.Create)
	assert.Empty(t, plan.Recreate)

	// Diverged lines: recreate from the bumped key, never a fresh create.
	plan, err = Build([]*model.SplitEntry{e},
		map[string]bool{bumped: true},
		map[string]*model.SyncedEntry{bumped: snapshot(bumped, "ext-2", 2,
			model.SyncedLine{CategoryID: "b", AmountMinor: -8730})})
	require.NoError(t, err)
	assert.Empty(t, plan.Create)
	require.Len(t, plan.Recreate, 1)
	rec := plan.Recreate[0]
	assert.Equal(t, bumped, rec.OldImportKey)
	assert.Equal(t, "SPL3:111-1234567-7654321:8730:P", rec.Entry.ImportKey)
	assert.Equal(t, 3, rec.KeyVersion)
	assert.Equal(t, "ext-2", rec.DeleteExternalID)
}

func TestBuildConflictsOnForeignKeys(t *testing.T) {
	key := "SPL1:111-1234567-7654321:8730:P"
	e := entry(key, model.SplitLine{CategoryID: "a", AmountMinor: -8730})

	plan, err := Build([]*model.SplitEntry{e},
		map[string]bool{key: true},
		map[string]*model.SyncedEntry{})
	require.NoError(t, err)
	assert.Equal(t, []string{key}, plan.Conflicts)
	assert.Empty(t, plan.Create)
	assert.Empty(t, plan.Recreate)
}

func TestBuildMalformedKey(t *testing.T) {
	key := "not-an-import-key"
	e := entry(key, model.SplitLine{CategoryID: "a", AmountMinor: -100})

	_, err := Build([]*model.SplitEntry{e},
		map[string]bool{key: true},
		map[string]*model.SyncedEntry{key: snapshot(key, "ext-1", 1,
			model.SyncedLine{CategoryID: "b", AmountMinor: -100})})
	require.Error(t, err)
}

func TestBuildSecondRunIsIdempotent(t *testing.T) {
	key := "SPL1:111-1234567-7654321:8730:P"
	e := entry(key,
		model.SplitLine{CategoryID: "a", AmountMinor: -6000},
		model.SplitLine{CategoryID: "b", AmountMinor: -2730})

	// First run: nothing exists.
	first, err := Build([]*model.SplitEntry{e}, map[string]bool{}, map[string]*model.SyncedEntry{})
	require.NoError(t, err)
	require.Len(t, first.Create, 1)

	// Second run with the same input after the first was executed.
	second, err := Build([]*model.SplitEntry{e},
		map[string]bool{key: true},
		map[string]*model.SyncedEntry{key: snapshot(key, "ext-1", 1,
			model.SyncedLine{CategoryID: "a", AmountMinor: -6000},
			model.SyncedLine{CategoryID: "b", AmountMinor: -2730})})
	require.NoError(t, err)
	assert.Empty(t, second.Create)
	assert.Empty(t, second.Recreate)
	assert.Equal(t, []string{key}, second.Skip)
}

func TestSameLines(t *testing.T) {
	e := entry("k",
		model.SplitLine{CategoryID: "a", AmountMinor: -100},
		model.SplitLine{CategoryID: "b", AmountMinor: -200})

	tests := []struct {
		name  string
		lines []model.SyncedLine
		want  bool
	}{
		{
			name: "same any order",
			lines: []model.SyncedLine{
				{CategoryID: "b", AmountMinor: -200},
				{CategoryID: "a", AmountMinor: -100},
			},
			want: true,
		},
		{
			name: "different category",
			lines: []model.SyncedLine{
				{CategoryID: "a", AmountMinor: -100},
				{CategoryID: "c", AmountMinor: -200},
			},
			want: false,
		},
		{
			name: "different amount",
			lines: []model.SyncedLine{
				{CategoryID: "a", AmountMinor: -100},
				{CategoryID: "b", AmountMinor: -201},
			},
			want: false,
		},
		{
			name: "missing line",
			lines: []model.SyncedLine{
				{CategoryID: "a", AmountMinor: -100},
			},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap := &model.SyncedEntry{Lines: tt.lines}
			assert.Equal(t, tt.want, sameLines(e, snap))
		})
	}
}

func TestBaseKey(t *testing.T) {
	base, err := BaseKey("SPL12:abc:1:R")
	require.NoError(t, err)
	assert.Equal(t, ":abc:1:R", base)

	_, err = BaseKey("garbage")
	assert.Error(t, err)
}

func TestBumpKeyVersion(t *testing.T) {
	got, err := bumpKeyVersion("SPL1:111-1234567-7654321:8730:P", 2)
	require.NoError(t, err)
	assert.Equal(t, "SPL2:111-1234567-7654321:8730:P", got)

	got, err = bumpKeyVersion("SPL12:abc:1:R", 13)
	require.NoError(t, err)
	assert.Equal(t, "SPL13:abc:1:R", got)

	_, err = bumpKeyVersion("garbage", 2)
	assert.Error(t, err)
}
