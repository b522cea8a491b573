package memory

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/ashishsingh-beep/dreamforce-bot-playwright/internal/scrape"
)

// CredentialStore maps account identifiers to secrets.
type CredentialStore struct {
	mu      sync.RWMutex
	secrets map[string]string
}

// NewCredentialStore seeds a store from identifier → secret pairs.
func NewCredentialStore(secrets map[string]string) *CredentialStore {
	cp := make(map[string]string, len(secrets))
	for k, v := range secrets {
		cp[k] = v
	}
	return &CredentialStore{secrets: cp}
}

// FetchCredentialSecret returns the secret for identifier or scrape.ErrNotFound.
func (s *CredentialStore) FetchCredentialSecret(_ context.Context, identifier string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	secret, ok := s.secrets[identifier]
	if !ok || secret == "" {
		return "", fmt.Errorf("credential %s: %w", scrape.MaskIdentifier(identifier), scrape.ErrNotFound)
	}
	return secret, nil
}

// Lead is one candidate target row.
type Lead struct {
	URL       string
	Tag       string
	CreatedAt time.Time
	Scraped   bool
}

// TargetStore holds candidate leads in insertion order.
type TargetStore struct {
	mu    sync.RWMutex
	leads []Lead
}

// NewTargetStore creates a store seeded with leads.
func NewTargetStore(leads ...Lead) *TargetStore {
	return &TargetStore{leads: append([]Lead(nil), leads...)}
}

// Add appends leads.
func (s *TargetStore) Add(leads ...Lead) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.leads = append(s.leads, leads...)
}

// FetchCandidateTargets returns unscraped leads inside the filter, oldest first.
func (s *TargetStore) FetchCandidateTargets(_ context.Context, filter scrape.TargetFilter) ([]scrape.WorkItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	matched := make([]Lead, 0, len(s.leads))
	for _, l := range s.leads {
		if l.Scraped || l.URL == "" {
			continue
		}
		if !filter.From.IsZero() && l.CreatedAt.Before(filter.From) {
			continue
		}
		if !filter.To.IsZero() && l.CreatedAt.After(filter.To) {
			continue
		}
		if len(filter.Tags) > 0 && !slices.Contains(filter.Tags, l.Tag) {
			continue
		}
		matched = append(matched, l)
	}
	slices.SortStableFunc(matched, func(a, b Lead) int { return a.CreatedAt.Compare(b.CreatedAt) })
	out := make([]scrape.WorkItem, len(matched))
	for i, l := range matched {
		out[i] = scrape.WorkItem(l.URL)
	}
	return out, nil
}

// MarkScraped flags leads whose URL is in urls.
func (s *TargetStore) MarkScraped(urls ...string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for i := range s.leads {
		if !s.leads[i].Scraped && slices.Contains(urls, s.leads[i].URL) {
			s.leads[i].Scraped = true
			n++
		}
	}
	return n
}

// ResultStore upserts records by id and keeps first-insertion order.
type ResultStore struct {
	mu      sync.RWMutex
	order   []string
	records map[string]scrape.ExtractedRecord
	targets *TargetStore
}

// NewResultStore creates an empty ResultStore.
func NewResultStore() *ResultStore {
	return &ResultStore{records: make(map[string]scrape.ExtractedRecord)}
}

// MarkingTargets makes Persist flag matching leads in targets as scraped.
func (s *ResultStore) MarkingTargets(targets *TargetStore) *ResultStore {
	s.targets = targets
	return s
}

// Persist upserts records and returns how many were new.
func (s *ResultStore) Persist(_ context.Context, records []scrape.ExtractedRecord) (int, error) {
	s.mu.Lock()
	inserted := 0
	urls := make([]string, 0, len(records)*2)
	for _, rec := range records {
		if rec.ID == "" {
			s.mu.Unlock()
			return inserted, fmt.Errorf("record id is required: %w", scrape.ErrInvalidInput)
		}
		if _, ok := s.records[rec.ID]; !ok {
			s.order = append(s.order, rec.ID)
			inserted++
		}
		s.records[rec.ID] = rec
		urls = append(urls, rec.URL, rec.SourceURL)
	}
	s.mu.Unlock()
	if s.targets != nil {
		s.targets.MarkScraped(urls...)
	}
	return inserted, nil
}

// Records returns every stored record in first-insertion order.
func (s *ResultStore) Records() []scrape.ExtractedRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]scrape.ExtractedRecord, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.records[id])
	}
	return out
}
