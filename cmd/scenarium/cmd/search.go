package cmd

import (
	"encoding/json"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hanulsoft/scenarium/internal/output"
	"github.com/hanulsoft/scenarium/internal/query"
	"github.com/hanulsoft/scenarium/internal/store"
)

type searchOptions struct {
	limit        int
	tags         []string
	favorite     bool
	minLevel     int
	maxLevel     int
	completed    bool
	notCompleted bool
	minRating    int
	sortKey      string
	format       string
	missing      bool
}

func newSearchCmd() *cobra.Command {
	var opts searchOptions

	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Search indexed scenarios",
		Long: `Search matches against title, author, and synopsis,
case-insensitively, with title matches ranked highest. Without a query
it lists scenarios matching the filters alone.

Examples:
  scenarium search dawn
  scenarium search --tag puzzle --max-level 5
  scenarium search "귀환" --favorite
  scenarium search --sort rating --format json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(cmd, strings.Join(args, " "), opts)
		},
	}

	cmd.Flags().IntVarP(&opts.limit, "limit", "n", 20, "Maximum number of results")
	cmd.Flags().StringSliceVarP(&opts.tags, "tag", "t", nil, "Require a tag (repeatable)")
	cmd.Flags().BoolVar(&opts.favorite, "favorite", false, "Only favorites")
	cmd.Flags().IntVar(&opts.minLevel, "min-level", 0, "Minimum character level")
	cmd.Flags().IntVar(&opts.maxLevel, "max-level", 0, "Maximum character level")
	cmd.Flags().BoolVar(&opts.completed, "completed", false, "Only completed scenarios")
	cmd.Flags().BoolVar(&opts.notCompleted, "not-completed", false, "Only scenarios not completed yet")
	cmd.Flags().IntVar(&opts.minRating, "min-rating", 0, "Minimum user rating (1-5)")
	cmd.Flags().StringVar(&opts.sortKey, "sort", "", "Sort: relevance, title, author, modified, rating")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "text", "Output format: text, json")
	cmd.Flags().BoolVar(&opts.missing, "missing", false, "Include scenarios whose files have gone missing")

	return cmd
}

func runSearch(cmd *cobra.Command, text string, opts searchOptions) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	st, err := openStoreRead(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	req := &query.Request{
		Text:            text,
		Tags:            opts.tags,
		FavoriteOnly:    opts.favorite,
		MinLevel:        opts.minLevel,
		MaxLevel:        opts.maxLevel,
		MinRating:       opts.minRating,
		IncludeOrphaned: opts.missing,
		Sort:            opts.sortKey,
		Limit:           opts.limit,
	}
	if opts.completed != opts.notCompleted {
		done := opts.completed
		req.Completed = &done
	}

	resp, err := query.NewEngine(st).Search(req)
	if err != nil {
		return err
	}

	if opts.format == "json" {
		return writeJSON(cmd, resp)
	}
	output.New(cmd.OutOrStdout()).Results(resp)
	return nil
}

// jsonResult flattens a query result for machine consumption.
type jsonResult struct {
	Identity string              `json:"identity"`
	Path     string              `json:"path"`
	Title    string              `json:"title"`
	Author   string              `json:"author"`
	Synopsis string              `json:"synopsis,omitempty"`
	Tags     []string            `json:"tags,omitempty"`
	LevelMin int                 `json:"level_min,omitempty"`
	LevelMax int                 `json:"level_max,omitempty"`
	Missing  bool                `json:"missing,omitempty"`
	Score    float64             `json:"score,omitempty"`
	User     *store.UserMetadata `json:"user,omitempty"`
}

func writeJSON(cmd *cobra.Command, resp *query.Response) error {
	out := struct {
		Total   int          `json:"total"`
		Results []jsonResult `json:"results"`
	}{Total: resp.Total, Results: make([]jsonResult, 0, len(resp.Results))}

	for _, r := range resp.Results {
		out.Results = append(out.Results, jsonResult{
			Identity: string(r.Entry.Identity),
			Path:     r.Entry.Path,
			Title:    r.Entry.Metadata.Title,
			Author:   r.Entry.Metadata.Author,
			Synopsis: r.Entry.Metadata.Synopsis,
			Tags:     r.Entry.Metadata.Tags,
			LevelMin: r.Entry.Metadata.LevelMin,
			LevelMax: r.Entry.Metadata.LevelMax,
			Missing:  r.Entry.State == store.StateOrphaned,
			Score:    r.Score,
			User:     r.User,
		})
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
