package search

import (
	"log"
)

// Service is the facade that tries the primary backend first and falls back
// to the secondary one. In production the primary is Meilisearch and the
// fallback is Postgres full-text search.
type Service struct {
	primary  Searcher
	fallback Searcher
	indexer  Indexer
}

// NewService creates a search service. primary and indexer may be nil if
// Meilisearch is not configured; fallback must not be nil.
func NewService(primary Searcher, fallback Searcher, indexer Indexer) *Service {
	return &Service{primary: primary, fallback: fallback, indexer: indexer}
}

// Search tries the primary backend if healthy, otherwise uses the fallback.
func (s *Service) Search(q Query) Response {
	if s.primary != nil && s.primary.Healthy() {
		results, total, err := s.primary.Search(q)
		if err == nil {
			return Response{Results: nonNil(results), Total: total, Query: q.Text}
		}
		log.Printf("search: primary backend error, falling back: %v", err)
	}

	results, total, err := s.fallback.Search(q)
	if err != nil {
		log.Printf("search: fallback error: %v", err)
		return Response{Results: []Result{}, Total: 0, Query: q.Text}
	}
	return Response{Results: nonNil(results), Total: total, Query: q.Text}
}

// IndexSuggestion indexes a suggestion (fire-and-forget).
func (s *Service) IndexSuggestion(record SuggestionRecord) {
	if s.indexer == nil {
		return
	}
	go func() {
		if err := s.indexer.IndexSuggestion(record); err != nil {
			log.Printf("search: index suggestion %s: %v", record.ID, err)
		}
	}()
}

// IndexMessage indexes a discussion message (fire-and-forget).
func (s *Service) IndexMessage(record MessageRecord) {
	if s.indexer == nil {
		return
	}
	go func() {
		if err := s.indexer.IndexMessage(record); err != nil {
			log.Printf("search: index message %s: %v", record.ID, err)
		}
	}()
}

// IndexDecision indexes a history ledger entry (fire-and-forget).
func (s *Service) IndexDecision(record DecisionRecord) {
	if s.indexer == nil {
		return
	}
	go func() {
		if err := s.indexer.IndexDecision(record); err != nil {
			log.Printf("search: index decision %s: %v", record.ID, err)
		}
	}()
}

func nonNil(results []Result) []Result {
	if results == nil {
		return []Result{}
	}
	return results
}
