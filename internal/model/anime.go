package model

import (
	"sort"
	"time"
)

// UnknownTitle is returned by DisplayTitle when no title is known.
const UnknownTitle = "Unknown Title"

// Anime represents one catalog item.
// Descriptive attributes come verbatim from the remote payload; absent strings
// are empty, absent numbers and nested objects are nil.
type Anime struct {
	ID             int        `json:"mal_id" bson:"_id"`
	Title          string     `json:"title,omitempty" bson:"title,omitempty"`
	TitleEnglish   string     `json:"title_english,omitempty" bson:"title_english,omitempty"`
	TitleJapanese  string     `json:"title_japanese,omitempty" bson:"title_japanese,omitempty"`
	Type           string     `json:"type,omitempty" bson:"type,omitempty"`
	Source         string     `json:"source,omitempty" bson:"source,omitempty"`
	Episodes       *int       `json:"episodes,omitempty" bson:"episodes,omitempty"`
	Status         string     `json:"status,omitempty" bson:"status,omitempty"`
	Airing         *bool      `json:"airing,omitempty" bson:"airing,omitempty"`
	Duration       string     `json:"duration,omitempty" bson:"duration,omitempty"`
	Rating         string     `json:"rating,omitempty" bson:"rating,omitempty"`
	Score          *float64   `json:"score,omitempty" bson:"score,omitempty"`
	ScoredBy       *int       `json:"scored_by,omitempty" bson:"scored_by,omitempty"`
	Rank           *int       `json:"rank,omitempty" bson:"rank,omitempty"`
	Popularity     *int       `json:"popularity,omitempty" bson:"popularity,omitempty"`
	Members        *int       `json:"members,omitempty" bson:"members,omitempty"`
	Favorites      *int       `json:"favorites,omitempty" bson:"favorites,omitempty"`
	Synopsis       string     `json:"synopsis,omitempty" bson:"synopsis,omitempty"`
	Season         string     `json:"season,omitempty" bson:"season,omitempty"`
	Year           *int       `json:"year,omitempty" bson:"year,omitempty"`
	Broadcast      *Broadcast `json:"broadcast,omitempty" bson:"broadcast,omitempty"`
	Producers      []Entry    `json:"producers,omitempty" bson:"producers,omitempty"`
	Licensors      []Entry    `json:"licensors,omitempty" bson:"licensors,omitempty"`
	Studios        []Entry    `json:"studios,omitempty" bson:"studios,omitempty"`
	Genres         []Entry    `json:"genres,omitempty" bson:"genres,omitempty"`
	ExplicitGenres []Entry    `json:"explicit_genres,omitempty" bson:"explicit_genres,omitempty"`
	Themes         []Entry    `json:"themes,omitempty" bson:"themes,omitempty"`
	Demographics   []Entry    `json:"demographics,omitempty" bson:"demographics,omitempty"`
	Images         *Images    `json:"images,omitempty" bson:"images,omitempty"`
	Trailer        *Trailer   `json:"trailer,omitempty" bson:"trailer,omitempty"`
	URL            string     `json:"url,omitempty" bson:"url,omitempty"`
	Aired          *Aired     `json:"aired,omitempty" bson:"aired,omitempty"`

	// Favorite is owned by the user and never taken from the remote payload.
	Favorite bool `json:"favorite" bson:"favorite"`

	// LastUpdated is set by remote-triggered writes only.
	LastUpdated time.Time `json:"last_updated" bson:"last_updated"`
}

// Broadcast describes the weekly airing slot.
type Broadcast struct {
	Day      string `json:"day,omitempty" bson:"day,omitempty"`
	Time     string `json:"time,omitempty" bson:"time,omitempty"`
	Timezone string `json:"timezone,omitempty" bson:"timezone,omitempty"`
	String   string `json:"string,omitempty" bson:"string,omitempty"`
}

// Entry is a named reference (producer, studio, genre, ...).
type Entry struct {
	MalID int    `json:"mal_id" bson:"mal_id"`
	Type  string `json:"type,omitempty" bson:"type,omitempty"`
	Name  string `json:"name,omitempty" bson:"name,omitempty"`
	URL   string `json:"url,omitempty" bson:"url,omitempty"`
}

// Images holds poster URLs per format.
type Images struct {
	JPG  *ImageURLs `json:"jpg,omitempty" bson:"jpg,omitempty"`
	WebP *ImageURLs `json:"webp,omitempty" bson:"webp,omitempty"`
}

// ImageURLs lists the available sizes of one image.
type ImageURLs struct {
	ImageURL      string `json:"image_url,omitempty" bson:"image_url,omitempty"`
	SmallImageURL string `json:"small_image_url,omitempty" bson:"small_image_url,omitempty"`
	LargeImageURL string `json:"large_image_url,omitempty" bson:"large_image_url,omitempty"`
}

// Trailer is the promotional video reference.
type Trailer struct {
	YoutubeID string         `json:"youtube_id,omitempty" bson:"youtube_id,omitempty"`
	URL       string         `json:"url,omitempty" bson:"url,omitempty"`
	EmbedURL  string         `json:"embed_url,omitempty" bson:"embed_url,omitempty"`
	Images    *TrailerImages `json:"images,omitempty" bson:"images,omitempty"`
}

// TrailerImages lists trailer thumbnails.
type TrailerImages struct {
	ImageURL        string `json:"image_url,omitempty" bson:"image_url,omitempty"`
	SmallImageURL   string `json:"small_image_url,omitempty" bson:"small_image_url,omitempty"`
	MediumImageURL  string `json:"medium_image_url,omitempty" bson:"medium_image_url,omitempty"`
	LargeImageURL   string `json:"large_image_url,omitempty" bson:"large_image_url,omitempty"`
	MaximumImageURL string `json:"maximum_image_url,omitempty" bson:"maximum_image_url,omitempty"`
}

// Aired is the airing period.
type Aired struct {
	From   string     `json:"from,omitempty" bson:"from,omitempty"`
	To     string     `json:"to,omitempty" bson:"to,omitempty"`
	Prop   *AiredProp `json:"prop,omitempty" bson:"prop,omitempty"`
	String string     `json:"string,omitempty" bson:"string,omitempty"`
}

// AiredProp splits the airing period into dates.
type AiredProp struct {
	From *AiredDate `json:"from,omitempty" bson:"from,omitempty"`
	To   *AiredDate `json:"to,omitempty" bson:"to,omitempty"`
}

// AiredDate is a partial calendar date.
type AiredDate struct {
	Day   *int `json:"day,omitempty" bson:"day,omitempty"`
	Month *int `json:"month,omitempty" bson:"month,omitempty"`
	Year  *int `json:"year,omitempty" bson:"year,omitempty"`
}

// AnimePage is one page of a ranked listing.
type AnimePage struct {
	Pagination Pagination `json:"pagination"`
	Data       []Anime    `json:"data"`
}

// Pagination is the listing metadata returned with a page.
type Pagination struct {
	LastVisiblePage int             `json:"last_visible_page"`
	HasNextPage     bool            `json:"has_next_page"`
	CurrentPage     int             `json:"current_page"`
	Items           PaginationItems `json:"items"`
}

// PaginationItems holds item counters for a page.
type PaginationItems struct {
	Count   int `json:"count"`
	Total   int `json:"total"`
	PerPage int `json:"per_page"`
}

// Valid reports whether the identifier can be persisted or fetched.
func (a *Anime) Valid() bool {
	return a.ID > 0
}

// DisplayTitle returns the first non-empty title, or UnknownTitle.
func (a *Anime) DisplayTitle() string {
	for _, t := range []string{a.Title, a.TitleEnglish, a.TitleJapanese} {
		if t != "" {
			return t
		}
	}
	return UnknownTitle
}

func (a *Anime) DisplayType() string     { return orDefault(a.Type, "Unknown") }
func (a *Anime) DisplayStatus() string   { return orDefault(a.Status, "Unknown") }
func (a *Anime) DisplayDuration() string { return orDefault(a.Duration, "Unknown") }
func (a *Anime) DisplaySource() string   { return orDefault(a.Source, "Unknown") }
func (a *Anime) DisplaySynopsis() string { return orDefault(a.Synopsis, "No synopsis available") }

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

// SortByRank orders a slice by rank ascending; unranked items go last, ties by ID.
func SortByRank(list []Anime) {
	sort.SliceStable(list, func(i, j int) bool {
		ri, rj := list[i].Rank, list[j].Rank
		switch {
		case ri != nil && rj != nil && *ri != *rj:
			return *ri < *rj
		case ri != nil && rj == nil:
			return true
		case ri == nil && rj != nil:
			return false
		}
		return list[i].ID < list[j].ID
	})
}

// SortByLastUpdatedDesc orders a slice with the most recently refreshed first.
func SortByLastUpdatedDesc(list []Anime) {
	sort.SliceStable(list, func(i, j int) bool {
		if !list[i].LastUpdated.Equal(list[j].LastUpdated) {
			return list[i].LastUpdated.After(list[j].LastUpdated)
		}
		return list[i].ID < list[j].ID
	})
}
