package view

import (
	"sort"

	"animesync/internal/model"
)

// AllGenres selects every title in FilterByGenre.
const AllGenres = "All"

// Genres lists AllGenres followed by the sorted, unique genre, theme and
// demographic names found in list.
func Genres(list []model.Anime) []string {
	set := make(map[string]struct{})
	for i := range list {
		for _, name := range tagNames(&list[i]) {
			set[name] = struct{}{}
		}
	}

	names := make([]string, 0, len(set))
	for name := range set {
		names = append(names, name)
	}
	sort.Strings(names)
	return append([]string{AllGenres}, names...)
}

// FilterByGenre keeps titles tagged with genre as a genre, theme or demographic.
// An empty genre or AllGenres returns list unchanged.
func FilterByGenre(list []model.Anime, genre string) []model.Anime {
	if genre == "" || genre == AllGenres {
		return list
	}
	out := make([]model.Anime, 0)
	for i := range list {
		for _, name := range tagNames(&list[i]) {
			if name == genre {
				out = append(out, list[i])
				break
			}
		}
	}
	return out
}

func tagNames(a *model.Anime) []string {
	var names []string
	for _, group := range [][]model.Entry{a.Genres, a.Themes, a.Demographics} {
		for _, e := range group {
			if e.Name != "" {
				names = append(names, e.Name)
			}
		}
	}
	return names
}
