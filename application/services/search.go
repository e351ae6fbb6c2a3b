package services

import (
	"context"
	"encoding/json"
	"strings"

	"contexthub-backend/application/ports"
	"contexthub-backend/domain/config"
	"contexthub-backend/domain/contexts"
)

// NaiveSearcher scans a project's entries and matches case-insensitive
// substrings against the serialized content. Adequate for small
// projects; swap the Searcher port for an indexed backend when entry
// counts grow.
type NaiveSearcher struct {
	entries ports.EntryRepository
}

// NewNaiveSearcher creates a scan-based searcher
func NewNaiveSearcher(entries ports.EntryRepository) *NaiveSearcher {
	return &NaiveSearcher{entries: entries}
}

// Search implements ports.Searcher
func (s *NaiveSearcher) Search(ctx context.Context, query ports.SearchQuery) ([]*contexts.Entry, error) {
	limit := query.Limit
	if limit <= 0 {
		limit = config.DefaultSearchLimit
	}

	text := strings.ToLower(query.Text)
	matched := make([]*contexts.Entry, 0, limit)
	offset := 0

	for len(matched) < limit {
		batch, err := s.entries.GetByProject(ctx, ports.EntryQuery{
			ProjectID: query.ProjectID,
			Limit:     config.MaxListLimit,
			Offset:    offset,
		})
		if err != nil {
			return nil, err
		}
		if len(batch) == 0 {
			break
		}
		offset += len(batch)

		for _, entry := range batch {
			if !entry.HasAllTags(query.Tags) {
				continue
			}
			if text != "" && !contentMatches(entry.Content, text) {
				continue
			}
			matched = append(matched, entry)
			if len(matched) == limit {
				break
			}
		}

		if len(batch) < config.MaxListLimit {
			break
		}
	}

	return matched, nil
}

func contentMatches(content contexts.Content, loweredText string) bool {
	data, err := json.Marshal(content)
	if err != nil {
		return false
	}
	return strings.Contains(strings.ToLower(string(data)), loweredText)
}
