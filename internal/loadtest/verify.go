package loadtest

import (
	"fmt"

	"github.com/okian/fitrec/internal/domain/types"
)

// verifyRecommendation checks the ordering guarantees of one response:
// ratings never increase down the list and the row cap holds.
func verifyRecommendation(rec types.Recommendation, maxResults int) error {
	if maxResults > 0 && len(rec.Rows) > maxResults {
		return fmt.Errorf("%d rows exceed the cap of %d", len(rec.Rows), maxResults)
	}
	for i := 1; i < len(rec.Rows); i++ {
		if rec.Rows[i].Rating > rec.Rows[i-1].Rating {
			return fmt.Errorf("row %d (%s, %.2f) outranks row %d (%s, %.2f)",
				i, rec.Rows[i].Name, rec.Rows[i].Rating, i-1, rec.Rows[i-1].Name, rec.Rows[i-1].Rating)
		}
	}
	if rec.Seeds == 0 && len(rec.Rows) > 0 {
		return fmt.Errorf("%d rows returned without seeds", len(rec.Rows))
	}
	return nil
}

// verifyIdempotency checks that submissions sharing a key share a job.
func verifyIdempotency(keys []string, ids []string) error {
	byKey := make(map[string]string, len(keys))
	for i, k := range keys {
		if ids[i] == "" {
			continue // rejected submission
		}
		if prev, ok := byKey[k]; ok && prev != ids[i] {
			return fmt.Errorf("key %s mapped to jobs %s and %s", k, prev, ids[i])
		}
		byKey[k] = ids[i]
	}
	return nil
}
