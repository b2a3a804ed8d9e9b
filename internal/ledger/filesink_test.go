package ledger

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fernwick/ledgerloom/internal/common"
	"github.com/fernwick/ledgerloom/internal/model"
)

func newTestSink(t *testing.T) *FileSink {
	t.Helper()
	sink, err := NewFileSink(filepath.Join(t.TempDir(), "ledger.json"))
	require.NoError(t, err)
	return sink
}

func testEntry(importKey string) *model.SplitEntry {
	return &model.SplitEntry{
		Date:       time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC),
		ImportKey:  importKey,
		Payee:      "Card charge",
		TotalMinor: -8730,
		Lines: []model.SplitLine{
			{CategoryID: "cat-a", AmountMinor: -6000},
			{CategoryID: "cat-b", AmountMinor: -2730},
		},
	}
}

func TestFileSinkCreateAndGet(t *testing.T) {
	ctx := context.Background()
	sink := newTestSink(t)

	id, err := sink.Create(ctx, testEntry("SPL1:o:8730:P"))
	require.NoError(t, err)
	require.NotEmpty(t, id)

	got, err := sink.Get(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "SPL1:o:8730:P", got.ImportKey)
	require.Len(t, got.Lines, 2)

	keys, err := sink.ExistingImportKeys(ctx)
	require.NoError(t, err)
	assert.True(t, keys["SPL1:o:8730:P"])
}

func TestFileSinkRejectsDuplicateKey(t *testing.T) {
	ctx := context.Background()
	sink := newTestSink(t)

	_, err := sink.Create(ctx, testEntry("SPL1:o:8730:P"))
	require.NoError(t, err)

	_, err = sink.Create(ctx, testEntry("SPL1:o:8730:P"))
	require.ErrorIs(t, err, common.ErrDuplicateEntry)
}

func TestFileSinkDeletedKeyStaysBurned(t *testing.T) {
	ctx := context.Background()
	sink := newTestSink(t)

	id, err := sink.Create(ctx, testEntry("SPL1:o:8730:P"))
	require.NoError(t, err)
	require.NoError(t, sink.Delete(ctx, id))

	// The entry is gone from listings.
	got, err := sink.Get(ctx, id)
	require.NoError(t, err)
	assert.Nil(t, got)
	keys, err := sink.ExistingImportKeys(ctx)
	require.NoError(t, err)
	assert.False(t, keys["SPL1:o:8730:P"])

	// But the key can never be reused.
	_, err = sink.Create(ctx, testEntry("SPL1:o:8730:P"))
	require.ErrorIs(t, err, common.ErrDuplicateEntry)

	// A bumped key version goes through.
	_, err = sink.Create(ctx, testEntry("SPL2:o:8730:P"))
	require.NoError(t, err)
}

func TestFileSinkDeleteUnknown(t *testing.T) {
	sink := newTestSink(t)
	err := sink.Delete(context.Background(), "no-such-id")
	require.ErrorIs(t, err, common.ErrNotFound)
}

func TestFileSinkSetCategory(t *testing.T) {
	ctx := context.Background()
	sink := newTestSink(t)

	id, err := sink.Create(ctx, testEntry("SPL1:o:8730:P"))
	require.NoError(t, err)

	require.NoError(t, sink.SetCategory(ctx, id, 1, "cat-c"))

	got, err := sink.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "cat-a", got.Lines[0].CategoryID)
	assert.Equal(t, "cat-c", got.Lines[1].CategoryID)

	assert.Error(t, sink.SetCategory(ctx, id, 5, "cat-c"))
	assert.Error(t, sink.SetCategory(ctx, "no-such-id", 0, "cat-c"))
}

func TestFileSinkPersistsAcrossInstances(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "ledger.json")

	first, err := NewFileSink(path)
	require.NoError(t, err)
	id, err := first.Create(ctx, testEntry("SPL1:o:8730:P"))
	require.NoError(t, err)

	second, err := NewFileSink(path)
	require.NoError(t, err)
	got, err := second.Get(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "SPL1:o:8730:P", got.ImportKey)
}

func TestFileSinkEmptyPath(t *testing.T) {
	_, err := NewFileSink("")
	require.ErrorIs(t, err, common.ErrMissingConfig)
}
