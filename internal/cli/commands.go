package cli

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"animesync/internal/app"
	"animesync/internal/model"
	"animesync/internal/view"
)

// NewTopCommand creates the top command.
func NewTopCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		page  int
		genre string
	)

	cmd := &cobra.Command{
		Use:   "top",
		Short: "List the top-ranked anime",
		Long: `List one page of the top-ranked anime.

The cached collection is printed first when present. A stale or empty cache
is refreshed from the Jikan API; the refreshed list is printed only when
nothing was cached.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(rootOpts, cmd, func(a *app.App, out *OutputFormatter) error {
				emitted := 0
				for res := range a.Catalog.TopAnime(cmd.Context(), page) {
					if res.Err != nil {
						return out.Fail("failed to read top anime", res.Err)
					}
					list := view.FilterByGenre(view.Dedupe(res.Value), genre)
					if err := out.Emit(res.Source.String(), list, func(w io.Writer) {
						writeList(w, list)
					}); err != nil {
						return err
					}
					emitted++
				}
				out.VerboseLog("%d emission(s)", emitted)
				return nil
			})
		},
	}

	cmd.Flags().IntVarP(&page, "page", "p", 1, "page of the ranking")
	cmd.Flags().StringVarP(&genre, "genre", "g", "", "only titles tagged with this genre, theme or demographic")

	return cmd
}

// NewGetCommand creates the get command.
func NewGetCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Show one anime",
		Long: `Show one anime by its MyAnimeList ID.

A fresh cached record is printed alone. A stale record is printed, then
refreshed from the Jikan API and printed again.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(rootOpts, cmd, func(a *app.App, out *OutputFormatter) error {
				id, err := parseID(out, args[0])
				if err != nil {
					return err
				}
				for res := range a.Catalog.Anime(cmd.Context(), id) {
					if res.Err != nil {
						return out.Fail("failed to read anime", res.Err)
					}
					anime := res.Value
					if err := out.Emit(res.Source.String(), anime, func(w io.Writer) {
						writeDetail(w, &anime)
					}); err != nil {
						return err
					}
				}
				return nil
			})
		},
	}
}

// NewFavoriteCommand creates the favorite command.
func NewFavoriteCommand(rootOpts *RootOptions) *cobra.Command {
	var value bool

	cmd := &cobra.Command{
		Use:   "favorite <id>",
		Short: "Toggle or set the favorite flag of a cached anime",
		Long: `Toggle the favorite flag of a cached anime, or set it with --set.

Only cached records can be favorited; run get or top first.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(rootOpts, cmd, func(a *app.App, out *OutputFormatter) error {
				id, err := parseID(out, args[0])
				if err != nil {
					return err
				}

				favorite := value
				if cmd.Flags().Changed("set") {
					err = a.Catalog.SetFavorite(cmd.Context(), id, value)
				} else {
					var toggled model.Anime
					toggled, err = a.Catalog.ToggleFavoriteByID(cmd.Context(), id)
					favorite = toggled.Favorite
				}
				if err != nil {
					return out.Fail("failed to update favorite", err)
				}

				data := map[string]interface{}{"id": id, "favorite": favorite}
				return out.Emit("", data, func(w io.Writer) {
					if favorite {
						fmt.Fprintf(w, "%d added to favorites\n", id)
					} else {
						fmt.Fprintf(w, "%d removed from favorites\n", id)
					}
				})
			})
		},
	}

	cmd.Flags().BoolVar(&value, "set", false, "set the flag to this value instead of toggling")

	return cmd
}

// NewFavoritesCommand creates the favorites command.
func NewFavoritesCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "favorites",
		Short: "List favorited anime, most recently refreshed first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(rootOpts, cmd, func(a *app.App, out *OutputFormatter) error {
				list, err := a.Catalog.Favorites(cmd.Context())
				if err != nil {
					return out.Fail("failed to list favorites", err)
				}
				return out.Emit("", list, func(w io.Writer) {
					if len(list) == 0 {
						fmt.Fprintln(w, "No favorites yet")
						return
					}
					writeList(w, list)
				})
			})
		},
	}
}

// NewRefreshCommand creates the refresh command.
func NewRefreshCommand(rootOpts *RootOptions) *cobra.Command {
	var page int

	cmd := &cobra.Command{
		Use:   "refresh",
		Short: "Replace the cached top collection with a fresh page",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(rootOpts, cmd, func(a *app.App, out *OutputFormatter) error {
				list, err := a.Catalog.RefreshTop(cmd.Context(), page)
				if err != nil {
					return out.Fail("failed to refresh", err)
				}
				return out.Emit("remote", list, func(w io.Writer) {
					fmt.Fprintf(w, "Refreshed %d anime from page %d\n", len(list), max(page, 1))
				})
			})
		},
	}

	cmd.Flags().IntVarP(&page, "page", "p", 1, "page of the ranking")

	return cmd
}

// NewClearCommand creates the clear command.
func NewClearCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove every cached anime, favorites included",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(rootOpts, cmd, func(a *app.App, out *OutputFormatter) error {
				if err := a.Catalog.ClearCache(cmd.Context()); err != nil {
					return out.Fail("failed to clear cache", err)
				}
				return out.Emit("", map[string]bool{"cleared": true}, func(w io.Writer) {
					fmt.Fprintln(w, "Cache cleared")
				})
			})
		},
	}
}

// NewStatsCommand creates the stats command.
func NewStatsCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show cache store statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(rootOpts, cmd, func(a *app.App, out *OutputFormatter) error {
				stats, err := a.Catalog.Stats(cmd.Context())
				if err != nil {
					return out.Fail("failed to read stats", err)
				}
				return out.Emit("", stats, func(w io.Writer) {
					writeStats(w, stats)
				})
			})
		},
	}
}

func parseID(out *OutputFormatter, raw string) (int, error) {
	id, err := strconv.Atoi(raw)
	if err != nil {
		return 0, out.Fail("invalid id", fmt.Errorf("id %q is not a number: %w", raw, model.ErrInvalidArgument))
	}
	return id, nil
}

func writeList(w io.Writer, list []model.Anime) {
	for i := range list {
		a := &list[i]
		rank := "-"
		if a.Rank != nil {
			rank = "#" + strconv.Itoa(*a.Rank)
		}
		star := ""
		if a.Favorite {
			star = " *"
		}
		fmt.Fprintf(w, "%6s  %-7d %s%s\n", rank, a.ID, a.DisplayTitle(), star)
	}
}

func writeDetail(w io.Writer, a *model.Anime) {
	fmt.Fprintf(w, "%s (%d)\n", a.DisplayTitle(), a.ID)
	fmt.Fprintf(w, "  Type:     %s\n", a.DisplayType())
	fmt.Fprintf(w, "  Status:   %s\n", a.DisplayStatus())
	fmt.Fprintf(w, "  Episodes: %s\n", optInt(a.Episodes))
	fmt.Fprintf(w, "  Duration: %s\n", a.DisplayDuration())
	fmt.Fprintf(w, "  Source:   %s\n", a.DisplaySource())
	fmt.Fprintf(w, "  Rank:     %s\n", optInt(a.Rank))
	if a.Score != nil {
		fmt.Fprintf(w, "  Score:    %.2f\n", *a.Score)
	} else {
		fmt.Fprintln(w, "  Score:    N/A")
	}
	fmt.Fprintf(w, "  Favorite: %t\n", a.Favorite)
	fmt.Fprintf(w, "  Updated:  %s\n", a.LastUpdated.Format(time.RFC3339))
	fmt.Fprintf(w, "\n%s\n", a.DisplaySynopsis())
}

func writeStats(w io.Writer, stats map[string]interface{}) {
	for _, key := range []string{"backend", "total_anime", "favorites", "oldest_update", "last_sync", "freshness_ttl", "db_size_bytes"} {
		if v, ok := stats[key]; ok {
			fmt.Fprintf(w, "%-14s %v\n", key+":", v)
		}
	}
}

func optInt(v *int) string {
	if v == nil {
		return "N/A"
	}
	return strconv.Itoa(*v)
}
