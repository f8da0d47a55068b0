package analyzer

import (
	"context"
	"fmt"

	"github.com/rk-analyzer/internal/store"
)

// Sample fixes the population of one run: N = min(limit, total). Within the
// limit every record is used and counts are exact; above it a random sample
// of limit records is drawn once. limit <= 0 disables the cap.
func Sample(ctx context.Context, q store.Query, name string, limit int) (store.Population, error) {
	total, err := q.Count(ctx, name)
	if err != nil {
		return store.Population{}, fmt.Errorf("failed to count %s: %w", name, err)
	}

	pop := store.Population{Dataset: name, Total: total, Size: int(total)}
	if limit <= 0 || total <= int64(limit) {
		return pop, nil
	}

	ids, err := q.SampleIDs(ctx, name, limit)
	if err != nil {
		return store.Population{}, fmt.Errorf("failed to sample %s: %w", name, err)
	}
	pop.IDs = ids
	pop.Size = len(ids)
	pop.Sampled = true
	return pop, nil
}
