package learn

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fernwick/ledgerloom/internal/model"
	"github.com/fernwick/ledgerloom/internal/service"
)

// stubSink serves scripted ledger entries keyed by external id.
type stubSink struct {
	entries map[string]*service.LedgerEntry
}

func (s *stubSink) Create(context.Context, *model.SplitEntry) (string, error) {
	panic("not used")
}

func (s *stubSink) Delete(context.Context, string) error {
	panic("not used")
}

func (s *stubSink) Get(_ context.Context, externalID string) (*service.LedgerEntry, error) {
	return s.entries[externalID], nil
}

func (s *stubSink) ExistingImportKeys(context.Context) (map[string]bool, error) {
	panic("not used")
}

func syncedEntry(importKey, externalID string, lines ...model.SyncedLine) model.SyncedEntry {
	return model.SyncedEntry{
		ImportKey:  importKey,
		ExternalID: externalID,
		Lines:      lines,
	}
}

func TestDetectCorrectionsUnchangedEntry(t *testing.T) {
	sink := &stubSink{entries: map[string]*service.LedgerEntry{
		"ext-1": {ExternalID: "ext-1", Lines: []service.LedgerLine{
			{CategoryID: "cat-a", AmountMinor: -100},
		}},
	}}

	corrections, err := New(sink, nil).DetectCorrections(context.Background(), []model.SyncedEntry{
		syncedEntry("SPL1:o:100:P", "ext-1",
			model.SyncedLine{CategoryID: "cat-a", AmountMinor: -100, ItemKeys: []string{"widget"}}),
	})
	require.NoError(t, err)
	assert.Empty(t, corrections)
}

func TestDetectCorrectionsMovedLine(t *testing.T) {
	sink := &stubSink{entries: map[string]*service.LedgerEntry{
		"ext-1": {ExternalID: "ext-1", Lines: []service.LedgerLine{
			{CategoryID: "cat-b", AmountMinor: -100},
		}},
	}}

	corrections, err := New(sink, nil).DetectCorrections(context.Background(), []model.SyncedEntry{
		syncedEntry("SPL1:o:100:P", "ext-1",
			model.SyncedLine{CategoryID: "cat-a", AmountMinor: -100, ItemKeys: []string{"widget", "gadget"}}),
	})
	require.NoError(t, err)
	require.Len(t, corrections, 2)

	for _, c := range corrections {
		assert.Equal(t, "cat-a", c.OriginalCategoryID)
		assert.Equal(t, "cat-b", c.CorrectedCategoryID)
		assert.Equal(t, "SPL1:o:100:P", c.ImportKey)
	}
	assert.Equal(t, "widget", corrections[0].ItemKey)
	assert.Equal(t, "gadget", corrections[1].ItemKey)
}

func TestDetectCorrectionsPairsSameAmountLines(t *testing.T) {
	// Two lines share an amount; the untouched line pairs with its own
	// category so only the moved one produces a correction.
	sink := &stubSink{entries: map[string]*service.LedgerEntry{
		"ext-1": {ExternalID: "ext-1", Lines: []service.LedgerLine{
			{CategoryID: "cat-c", AmountMinor: -100},
			{CategoryID: "cat-b", AmountMinor: -100},
		}},
	}}

	corrections, err := New(sink, nil).DetectCorrections(context.Background(), []model.SyncedEntry{
		syncedEntry("SPL1:o:200:P", "ext-1",
			model.SyncedLine{CategoryID: "cat-a", AmountMinor: -100, ItemKeys: []string{"widget"}},
			model.SyncedLine{CategoryID: "cat-b", AmountMinor: -100, ItemKeys: []string{"gadget"}}),
	})
	require.NoError(t, err)
	require.Len(t, corrections, 1)
	assert.Equal(t, "widget", corrections[0].ItemKey)
	assert.Equal(t, "cat-c", corrections[0].CorrectedCategoryID)
}

func TestDetectCorrectionsSkipsDeletedEntries(t *testing.T) {
	sink := &stubSink{entries: map[string]*service.LedgerEntry{}}

	corrections, err := New(sink, nil).DetectCorrections(context.Background(), []model.SyncedEntry{
		syncedEntry("SPL1:o:100:P", "ext-gone",
			model.SyncedLine{CategoryID: "cat-a", AmountMinor: -100, ItemKeys: []string{"widget"}}),
	})
	require.NoError(t, err)
	assert.Empty(t, corrections)
}

func TestApplyCorrectionsDecaysConfidence(t *testing.T) {
	now := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	cache := map[string]model.CacheEntry{
		"widget": {
			Key:        "widget",
			CategoryID: "cat-a",
			Confidence: 0.90,
			TimesUsed:  9,
		},
	}
	categories := []model.Category{{ID: "cat-b", Name: "Household"}}

	ApplyCorrections(cache, []model.Correction{
		{ItemKey: "widget", CorrectedCategoryID: "cat-b"},
	}, categories, now)

	entry := cache["widget"]
	assert.Equal(t, "cat-b", entry.CategoryID)
	assert.Equal(t, "Household", entry.CategoryName)
	assert.Equal(t, 1, entry.TimesCorrected)
	// rate 1/10, decayed 0.90 * 0.9 = 0.81
	assert.InDelta(t, 0.81, entry.Confidence, 1e-9)
	assert.True(t, now.Equal(entry.LastUsedAt))
}

func TestApplyCorrectionsFloorsDecay(t *testing.T) {
	cache := map[string]model.CacheEntry{
		"widget": {
			Key:            "widget",
			CategoryID:     "cat-a",
			Confidence:     0.35,
			TimesUsed:      1,
			TimesCorrected: 4,
		},
	}

	ApplyCorrections(cache, []model.Correction{
		{ItemKey: "widget", CorrectedCategoryID: "cat-b"},
	}, nil, time.Now())

	assert.Equal(t, 0.30, cache["widget"].Confidence)
}

func TestApplyCorrectionsMonotone(t *testing.T) {
	cache := map[string]model.CacheEntry{
		"widget": {Key: "widget", CategoryID: "cat-a", Confidence: 0.90, TimesUsed: 5},
	}

	prev := cache["widget"].Confidence
	for i := 0; i < 10; i++ {
		ApplyCorrections(cache, []model.Correction{
			{ItemKey: "widget", CorrectedCategoryID: "cat-b"},
		}, nil, time.Now())
		cur := cache["widget"].Confidence
		assert.LessOrEqual(t, cur, prev)
		assert.GreaterOrEqual(t, cur, 0.30)
		prev = cur
	}
}

func TestApplyCorrectionsUnknownKeyCreatesEntry(t *testing.T) {
	cache := map[string]model.CacheEntry{}

	ApplyCorrections(cache, []model.Correction{
		{ItemKey: "never seen", CorrectedCategoryID: "cat-b"},
	}, nil, time.Now())

	entry, ok := cache["never seen"]
	require.True(t, ok)
	assert.Equal(t, "cat-b", entry.CategoryID)
	assert.Equal(t, 1, entry.TimesCorrected)
	// Fresh entries start at full confidence before decay: rate 1/1 would
	// zero it, so the floor holds.
	assert.Equal(t, 0.30, entry.Confidence)
}
