package service

import (
	"time"

	"animesync/internal/model"
)

// MergeFavorite reconciles a freshly fetched record with the cached one.
// Every attribute comes from incoming; Favorite comes from existing (false
// when there is none); LastUpdated is the fetch time.
func MergeFavorite(incoming model.Anime, existing *model.Anime, fetchedAt time.Time) model.Anime {
	merged := incoming
	merged.Favorite = existing != nil && existing.Favorite
	merged.LastUpdated = fetchedAt
	return merged
}
