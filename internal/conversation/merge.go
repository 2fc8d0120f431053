// Package conversation keeps a client-side view of one teacher/student
// conversation in sync with the server. Push events, fallback polls and local
// sends all flow through Merge, so the visible list converges to the server's
// message set whatever order or multiplicity they arrive in.
package conversation

import (
	"sort"

	"github.com/noah-isme/tutor-api/internal/models"
)

// Merge returns current plus incoming, deduplicated by id and ordered by
// (created_at, id). Neither input is modified. When both sides carry the same
// id the incoming copy wins so refreshed fields such as is_read propagate.
func Merge(current, incoming []models.Message) []models.Message {
	byID := make(map[int64]int, len(current)+len(incoming))
	out := make([]models.Message, 0, len(current)+len(incoming))
	for _, batch := range [][]models.Message{current, incoming} {
		for _, m := range batch {
			if idx, ok := byID[m.ID]; ok {
				out[idx] = m
				continue
			}
			byID[m.ID] = len(out)
			out = append(out, m)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return less(out[i], out[j])
	})
	return out
}

func less(a, b models.Message) bool {
	if a.CreatedAt.Equal(b.CreatedAt) {
		return a.ID < b.ID
	}
	return a.CreatedAt.Before(b.CreatedAt)
}
