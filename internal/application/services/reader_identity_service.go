package services

import (
	"fmt"
	"sort"

	"github.com/AtRiskMedia/campaigns-go/internal/domain/reader"
	"github.com/AtRiskMedia/campaigns-go/internal/infrastructure/observability/logging"
)

// ReaderIdentityService links client ids that share a user account.
type ReaderIdentityService struct {
	repo   reader.Repository
	maxIDs int
	logger *logging.ChanneledLogger
}

// NewReaderIdentityService creates a new identity reconciler returning at most maxIDs ids.
func NewReaderIdentityService(repo reader.Repository, maxIDs int, logger *logging.ChanneledLogger) *ReaderIdentityService {
	if maxIDs < 1 {
		maxIDs = 1
	}
	return &ReaderIdentityService{repo: repo, maxIDs: maxIDs, logger: logger}
}

// ReconcileClientIDs returns clientID followed by the other client ids that
// recorded a user_account event for one of the same accounts.
func (s *ReaderIdentityService) ReconcileClientIDs(clientID string) ([]string, error) {
	ids := []string{clientID}

	accounts, err := s.repo.GetReaderEvents(clientID, []reader.EventType{reader.EventUserAccount}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to load user accounts: %w", err)
	}

	var contexts []string
	seenContext := make(map[string]bool)
	for _, ev := range accounts {
		c := string(ev.Context)
		if c == "" || seenContext[c] {
			continue
		}
		seenContext[c] = true
		contexts = append(contexts, c)
	}
	if len(contexts) == 0 {
		return ids, nil
	}

	// one extra row in case the input id is among the first results
	linked, err := s.repo.FindClientIDsByEvent(reader.EventUserAccount, contexts, s.maxIDs+1)
	if err != nil {
		return nil, fmt.Errorf("failed to find linked client ids: %w", err)
	}
	for _, id := range linked {
		if len(ids) >= s.maxIDs {
			break
		}
		if id != clientID {
			ids = append(ids, id)
		}
	}

	if len(ids) > 1 && s.logger != nil {
		s.logger.WithClient(logging.ChannelReaders, clientID).Debug("Reconciled linked client ids", "count", len(ids))
	}
	return ids, nil
}

// MergedEvents loads events of every client id and merges them newest-first.
func (s *ReaderIdentityService) MergedEvents(clientIDs []string, types []reader.EventType) ([]*reader.Event, error) {
	var merged []*reader.Event
	for _, id := range clientIDs {
		events, err := s.repo.GetReaderEvents(id, types, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to load events of linked client: %w", err)
		}
		merged = append(merged, events...)
	}
	if len(clientIDs) > 1 {
		sort.SliceStable(merged, func(i, j int) bool {
			if !merged[i].DateCreated.Equal(merged[j].DateCreated) {
				return merged[i].DateCreated.After(merged[j].DateCreated)
			}
			return merged[i].ID > merged[j].ID
		})
	}
	return merged, nil
}
