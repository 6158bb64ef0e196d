// Package view holds presentation helpers applied to catalog results by the
// HTTP API and the CLI.
package view

import "animesync/internal/model"

type dedupeKey struct {
	id    int
	title string
}

// Dedupe drops later entries sharing the same (ID, DisplayTitle) pair.
// The first occurrence wins and order is preserved.
func Dedupe(list []model.Anime) []model.Anime {
	seen := make(map[dedupeKey]struct{}, len(list))
	out := make([]model.Anime, 0, len(list))
	for _, a := range list {
		k := dedupeKey{id: a.ID, title: a.DisplayTitle()}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, a)
	}
	return out
}
