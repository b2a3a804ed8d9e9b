package classify

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/fernwick/ledgerloom/internal/model"
	"github.com/fernwick/ledgerloom/internal/service"
)

// KeywordService is a deterministic ClassificationService built on the
// keyword scorer. It needs no network and no credentials, so it serves as
// the default provider and as the offline degradation target.
type KeywordService struct {
	mu      sync.Mutex
	batches map[string][]service.ClassificationResult
}

// NewKeywordService creates the deterministic provider.
func NewKeywordService() *KeywordService {
	return &KeywordService{
		batches: make(map[string][]service.ClassificationResult),
	}
}

func (s *KeywordService) classifyOne(req service.ClassificationRequest, categories []model.Category) service.ClassificationResult {
	best := service.ClassificationResult{
		Key:      req.Key,
		Category: model.UncategorizedName,
	}
	for _, cat := range categories {
		if !cat.IsActive {
			continue
		}
		if score := fallbackScore(req.Description, cat.Name, cat.Description); score > best.Confidence {
			best.Category = cat.Name
			best.Confidence = score
			best.Reasoning = "keyword overlap"
		}
	}
	return best
}

// Classify scores every item against every category synchronously.
func (s *KeywordService) Classify(_ context.Context, items []service.ClassificationRequest, categories []model.Category) ([]service.ClassificationResult, error) {
	results := make([]service.ClassificationResult, len(items))
	for i, req := range items {
		results[i] = s.classifyOne(req, categories)
	}
	return results, nil
}

// SubmitBatch computes results immediately and parks them for a later
// PollBatch, mirroring the two-phase contract.
func (s *KeywordService) SubmitBatch(ctx context.Context, items []service.ClassificationRequest, categories []model.Category) (string, error) {
	results, err := s.Classify(ctx, items, categories)
	if err != nil {
		return "", err
	}
	id := uuid.New().String()
	s.mu.Lock()
	s.batches[id] = results
	s.mu.Unlock()
	return id, nil
}

// PollBatch returns the parked results for a submitted batch.
func (s *KeywordService) PollBatch(_ context.Context, providerID string) ([]service.ClassificationResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	results, ok := s.batches[providerID]
	if !ok {
		return nil, fmt.Errorf("unknown batch %q", providerID)
	}
	delete(s.batches, providerID)
	return results, nil
}
