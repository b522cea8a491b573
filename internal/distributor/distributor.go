// Package distributor splits a list of work items across a pool of credentials.
package distributor

import (
	"fmt"
	"math/rand/v2"
	"strings"

	"github.com/ashishsingh-beep/dreamforce-bot-playwright/internal/scrape"
)

// Partition assigns items to credentials in contiguous, input-ordered slices.
// With n credentials, base = len(items)/n and the first len(items)%n
// credentials take one extra item. Credentials that would receive nothing are
// dropped, so the result never contains an empty partition.
func Partition(items []scrape.WorkItem, creds []scrape.Credential) ([]scrape.Partition, error) {
	if len(items) == 0 {
		return nil, fmt.Errorf("partition: no work items: %w", scrape.ErrInvalidInput)
	}
	if len(creds) == 0 {
		return nil, fmt.Errorf("partition: no credentials: %w", scrape.ErrInvalidInput)
	}

	n := len(creds)
	base, rem := len(items)/n, len(items)%n
	out := make([]scrape.Partition, 0, min(n, len(items)))
	start := 0
	for i, cred := range creds {
		size := base
		if i < rem {
			size++
		}
		if size == 0 {
			continue
		}
		chunk := make([]scrape.WorkItem, size)
		copy(chunk, items[start:start+size])
		out = append(out, scrape.Partition{Credential: cred, Items: chunk})
		start += size
	}
	return out, nil
}

// Dedupe removes blank and repeated items, keeping the first occurrence.
func Dedupe(items []scrape.WorkItem) []scrape.WorkItem {
	seen := make(map[scrape.WorkItem]struct{}, len(items))
	out := make([]scrape.WorkItem, 0, len(items))
	for _, item := range items {
		item = scrape.WorkItem(strings.TrimSpace(string(item)))
		if item == "" {
			continue
		}
		if _, dup := seen[item]; dup {
			continue
		}
		seen[item] = struct{}{}
		out = append(out, item)
	}
	return out
}

// Shuffle returns a uniformly shuffled copy of items. A nil rng uses the
// global source.
func Shuffle(items []scrape.WorkItem, rng *rand.Rand) []scrape.WorkItem {
	out := append([]scrape.WorkItem(nil), items...)
	swap := func(i, j int) { out[i], out[j] = out[j], out[i] }
	if rng == nil {
		rand.Shuffle(len(out), swap)
		return out
	}
	rng.Shuffle(len(out), swap)
	return out
}
