// Package ledger implements a file-backed LedgerSink. It mimics the
// external ledger's import semantics: at most one entry per import key, no
// partial updates, and deleted keys stay burned forever.
package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fernwick/ledgerloom/internal/common"
	"github.com/fernwick/ledgerloom/internal/model"
	"github.com/fernwick/ledgerloom/internal/service"
)

// fileEntry is the persisted form of one ledger entry.
type fileEntry struct {
	Date       time.Time            `json:"date"`
	ExternalID string               `json:"external_id"`
	ImportKey  string               `json:"import_key"`
	Payee      string               `json:"payee"`
	Memo       string               `json:"memo,omitempty"`
	Lines      []service.LedgerLine `json:"lines"`
	TotalMinor int64                `json:"total_minor"`
}

type fileState struct {
	Entries map[string]fileEntry `json:"entries"`
	// Tombstones remembers every import key that ever existed, including
	// deleted ones. Re-imports of a burned key are rejected.
	Tombstones map[string]bool `json:"tombstones"`
}

// FileSink stores ledger entries in a JSON file.
type FileSink struct {
	mu   sync.Mutex
	path string
}

// NewFileSink creates a sink backed by the given file path.
func NewFileSink(path string) (*FileSink, error) {
	if path == "" {
		return nil, fmt.Errorf("ledger file path is required: %w", common.ErrMissingConfig)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return nil, fmt.Errorf("failed to create ledger directory: %w", err)
	}
	return &FileSink{path: path}, nil
}

func (s *FileSink) load() (*fileState, error) {
	state := &fileState{
		Entries:    make(map[string]fileEntry),
		Tombstones: make(map[string]bool),
	}
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return state, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read ledger file: %w", err)
	}
	if err := json.Unmarshal(data, state); err != nil {
		return nil, fmt.Errorf("failed to parse ledger file: %w", err)
	}
	return state, nil
}

func (s *FileSink) save(state *fileState) error {
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal ledger state: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("failed to write ledger file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("failed to replace ledger file: %w", err)
	}
	return nil
}

// Create writes one entry. Keys the ledger has ever seen are rejected with
// ErrDuplicateEntry, deleted or not.
func (s *FileSink) Create(ctx context.Context, entry *model.SplitEntry) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	state, err := s.load()
	if err != nil {
		return "", err
	}
	if state.Tombstones[entry.ImportKey] {
		return "", fmt.Errorf("import key %s: %w", entry.ImportKey, common.ErrDuplicateEntry)
	}

	externalID := uuid.New().String()
	fe := fileEntry{
		Date:       entry.Date,
		ExternalID: externalID,
		ImportKey:  entry.ImportKey,
		Payee:      entry.Payee,
		Memo:       entry.Memo,
		TotalMinor: entry.TotalMinor,
	}
	for _, line := range entry.Lines {
		fe.Lines = append(fe.Lines, service.LedgerLine{
			CategoryID:  line.CategoryID,
			AmountMinor: line.AmountMinor,
		})
	}
	state.Entries[externalID] = fe
	state.Tombstones[entry.ImportKey] = true

	if err := s.save(state); err != nil {
		return "", err
	}
	return externalID, nil
}

// Delete removes an entry by external id. The import key stays burned.
func (s *FileSink) Delete(ctx context.Context, externalID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	state, err := s.load()
	if err != nil {
		return err
	}
	if _, ok := state.Entries[externalID]; !ok {
		return fmt.Errorf("ledger entry %s: %w", externalID, common.ErrNotFound)
	}
	delete(state.Entries, externalID)
	return s.save(state)
}

// Get returns the current state of an entry, or nil if it was deleted.
func (s *FileSink) Get(ctx context.Context, externalID string) (*service.LedgerEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	state, err := s.load()
	if err != nil {
		return nil, err
	}
	fe, ok := state.Entries[externalID]
	if !ok {
		return nil, nil
	}
	return &service.LedgerEntry{
		ExternalID: fe.ExternalID,
		ImportKey:  fe.ImportKey,
		Lines:      fe.Lines,
	}, nil
}

// ExistingImportKeys lists the keys of live entries. Burned keys of deleted
// entries are not included; creation checks those separately.
func (s *FileSink) ExistingImportKeys(ctx context.Context) (map[string]bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	state, err := s.load()
	if err != nil {
		return nil, err
	}
	keys := make(map[string]bool, len(state.Entries))
	for _, fe := range state.Entries {
		keys[fe.ImportKey] = true
	}
	return keys, nil
}

// SetCategory changes the category of one line, the way a user would
// recategorize in the ledger UI. Amounts cannot change.
func (s *FileSink) SetCategory(ctx context.Context, externalID string, lineIndex int, categoryID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	state, err := s.load()
	if err != nil {
		return err
	}
	fe, ok := state.Entries[externalID]
	if !ok {
		return fmt.Errorf("ledger entry %s: %w", externalID, common.ErrNotFound)
	}
	if lineIndex < 0 || lineIndex >= len(fe.Lines) {
		return fmt.Errorf("ledger entry %s has no line %d", externalID, lineIndex)
	}
	fe.Lines[lineIndex].CategoryID = categoryID
	state.Entries[externalID] = fe
	return s.save(state)
}
