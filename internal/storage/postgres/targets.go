package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/ashishsingh-beep/dreamforce-bot-playwright/internal/scrape"
)

// FetchCandidateTargets returns unscraped lead URLs matching filter, oldest
// first. Zero bounds and an empty tag list are not applied.
func (s *Store) FetchCandidateTargets(ctx context.Context, filter scrape.TargetFilter) ([]scrape.WorkItem, error) {
	query, args := candidateQuery(filter)
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query candidate targets: %w", err)
	}
	urls, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("scan candidate targets: %w", err)
	}
	out := make([]scrape.WorkItem, 0, len(urls))
	for _, u := range urls {
		if strings.TrimSpace(u) == "" {
			continue
		}
		out = append(out, scrape.WorkItem(u))
	}
	return out, nil
}

func candidateQuery(filter scrape.TargetFilter) (string, []any) {
	var (
		b    strings.Builder
		args []any
	)
	b.WriteString(`SELECT linkedin_url FROM all_leads WHERE scrapped = false`)
	if !filter.From.IsZero() {
		args = append(args, filter.From)
		fmt.Fprintf(&b, ` AND created_at >= $%d`, len(args))
	}
	if !filter.To.IsZero() {
		args = append(args, filter.To)
		fmt.Fprintf(&b, ` AND created_at <= $%d`, len(args))
	}
	if len(filter.Tags) > 0 {
		args = append(args, filter.Tags)
		fmt.Fprintf(&b, ` AND tag = ANY($%d)`, len(args))
	}
	b.WriteString(` ORDER BY created_at`)
	return b.String(), args
}
