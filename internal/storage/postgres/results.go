package postgres

import (
	"context"
	"fmt"

	"github.com/ashishsingh-beep/dreamforce-bot-playwright/internal/scrape"
)

const upsertLeadDetail = `
INSERT INTO lead_details (
	lead_id,
	name,
	title,
	location,
	profile_url,
	bio,
	source_url,
	job_id,
	extracted_at
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8,$9
)
ON CONFLICT (lead_id) DO UPDATE SET
	name = EXCLUDED.name,
	title = EXCLUDED.title,
	location = EXCLUDED.location,
	profile_url = EXCLUDED.profile_url,
	bio = EXCLUDED.bio,
	source_url = EXCLUDED.source_url,
	job_id = EXCLUDED.job_id,
	extracted_at = EXCLUDED.extracted_at
RETURNING (xmax = 0) AS inserted`

const markScraped = `UPDATE all_leads SET scrapped = true WHERE linkedin_url = ANY($1)`

// Persist upserts records into lead_details keyed by record id and flags the
// matching all_leads rows as scraped, all in one transaction. It returns how
// many rows were new.
func (s *Store) Persist(ctx context.Context, records []scrape.ExtractedRecord) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin persist: %w", err)
	}
	rollback := func(cause error) (int, error) {
		_ = tx.Rollback(ctx)
		return 0, cause
	}

	inserted := 0
	urls := make([]string, 0, len(records)*2)
	seen := make(map[string]struct{}, len(records)*2)
	addURL := func(u string) {
		if u == "" {
			return
		}
		if _, ok := seen[u]; ok {
			return
		}
		seen[u] = struct{}{}
		urls = append(urls, u)
	}
	for _, rec := range records {
		if rec.ID == "" {
			return rollback(fmt.Errorf("record id is required: %w", scrape.ErrInvalidInput))
		}
		var isNew bool
		err := tx.QueryRow(ctx, upsertLeadDetail,
			rec.ID,
			rec.Name,
			rec.Headline,
			rec.Location,
			rec.URL,
			rec.Text,
			rec.SourceURL,
			rec.JobID,
			rec.ExtractedAt,
		).Scan(&isNew)
		if err != nil {
			return rollback(fmt.Errorf("upsert lead detail: %w", err))
		}
		if isNew {
			inserted++
		}
		addURL(rec.URL)
		addURL(rec.SourceURL)
	}
	if _, err := tx.Exec(ctx, markScraped, urls); err != nil {
		return rollback(fmt.Errorf("mark leads scraped: %w", err))
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit persist: %w", err)
	}
	return inserted, nil
}
