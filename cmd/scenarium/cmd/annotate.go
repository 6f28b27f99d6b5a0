package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/hanulsoft/scenarium/internal/output"
	"github.com/hanulsoft/scenarium/internal/query"
	"github.com/hanulsoft/scenarium/internal/store"
)

type annotateOptions struct {
	favorite     bool
	noFavorite   bool
	rating       int
	clearRating  bool
	notes        string
	addTags      []string
	removeTags   []string
	completed    bool
	notCompleted bool
	playTime     time.Duration
}

func newAnnotateCmd() *cobra.Command {
	var opts annotateOptions

	cmd := &cobra.Command{
		Use:   "annotate <path>",
		Short: "Record your notes, rating, and tags for a scenario",
		Long: `Annotate attaches personal metadata to a scenario. Annotations
follow the scenario's content identity: they survive moves, renames, and
rescans, and reattach if a deleted scenario reappears.

Examples:
  scenarium annotate ./dawn-patrol --favorite --rating 5
  scenarium annotate ./dawn-patrol --tag one-shot --tag "level 1-3"
  scenarium annotate ./dawn-patrol --completed --play-time 3h30m
  scenarium annotate ./dawn-patrol --notes "great opener for new parties"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnnotate(cmd, args[0], opts)
		},
	}

	cmd.Flags().BoolVar(&opts.favorite, "favorite", false, "Mark as favorite")
	cmd.Flags().BoolVar(&opts.noFavorite, "no-favorite", false, "Clear favorite mark")
	cmd.Flags().IntVar(&opts.rating, "rating", 0, "Rate 1-5")
	cmd.Flags().BoolVar(&opts.clearRating, "clear-rating", false, "Remove the rating")
	cmd.Flags().StringVar(&opts.notes, "notes", "", "Replace notes")
	cmd.Flags().StringSliceVar(&opts.addTags, "tag", nil, "Add a tag (repeatable)")
	cmd.Flags().StringSliceVar(&opts.removeTags, "untag", nil, "Remove a tag (repeatable)")
	cmd.Flags().BoolVar(&opts.completed, "completed", false, "Mark as played to completion")
	cmd.Flags().BoolVar(&opts.notCompleted, "not-completed", false, "Clear the completed mark")
	cmd.Flags().DurationVar(&opts.playTime, "play-time", 0, "Record total play time (e.g. 3h30m)")

	return cmd
}

func runAnnotate(cmd *cobra.Command, path string, opts annotateOptions) error {
	if opts.favorite && opts.noFavorite {
		return fmt.Errorf("--favorite and --no-favorite are mutually exclusive")
	}
	if opts.completed && opts.notCompleted {
		return fmt.Errorf("--completed and --not-completed are mutually exclusive")
	}
	if cmd.Flags().NFlag() == 0 {
		return fmt.Errorf("nothing to change; pass at least one annotation flag")
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	st, err := openStore(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	entry, err := findEntry(st.Snapshot(), path)
	if err != nil {
		return err
	}

	snap, err := st.SetUserMetadata(cmd.Context(), entry.Identity, func(um *store.UserMetadata) {
		applyAnnotations(um, cmd, opts)
	})
	if err != nil {
		return err
	}

	out := output.New(cmd.OutOrStdout())
	out.Successf("updated %s", entry.Metadata.Title)
	user, _ := snap.User(entry.Identity)
	out.Entry(query.Result{Entry: entry, User: user})
	return nil
}

func applyAnnotations(um *store.UserMetadata, cmd *cobra.Command, opts annotateOptions) {
	if opts.favorite {
		um.Favorite = true
	}
	if opts.noFavorite {
		um.Favorite = false
	}
	if cmd.Flags().Changed("rating") {
		um.Rating = opts.rating
	}
	if opts.clearRating {
		um.Rating = 0
	}
	if cmd.Flags().Changed("notes") {
		um.Notes = opts.notes
	}
	for _, tag := range opts.addTags {
		um.Tags = appendTag(um.Tags, tag)
	}
	for _, tag := range opts.removeTags {
		um.Tags = removeTag(um.Tags, tag)
	}
	if opts.completed {
		um.Completed = true
	}
	if opts.notCompleted {
		um.Completed = false
	}
	if cmd.Flags().Changed("play-time") {
		um.PlayTime = opts.playTime
	}
}

func appendTag(tags []string, tag string) []string {
	for _, t := range tags {
		if t == tag {
			return tags
		}
	}
	return append(append([]string(nil), tags...), tag)
}

func removeTag(tags []string, tag string) []string {
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		if t != tag {
			out = append(out, t)
		}
	}
	return out
}
