// Package output renders CLI output: search results, entry details, and
// status messages, with colors when stdout is a terminal.
package output

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/mattn/go-isatty"

	"github.com/hanulsoft/scenarium/internal/index"
	"github.com/hanulsoft/scenarium/internal/query"
	"github.com/hanulsoft/scenarium/internal/store"
)

// Writer renders formatted output to one stream.
type Writer struct {
	out    io.Writer
	styles Styles
}

// New creates a Writer, picking colored or plain styles from the stream
// and the NO_COLOR convention.
func New(out io.Writer) *Writer {
	styles := NoColorStyles()
	if isTTY(out) && !noColor() {
		styles = DefaultStyles()
	}
	return &Writer{out: out, styles: styles}
}

// NewPlain creates a Writer that never colors.
func NewPlain(out io.Writer) *Writer {
	return &Writer{out: out, styles: NoColorStyles()}
}

func isTTY(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func noColor() bool {
	_, set := os.LookupEnv("NO_COLOR")
	return set
}

// Write errors are ignored throughout: console output failing is not
// actionable.

// Successf prints a success line.
func (w *Writer) Successf(format string, args ...any) {
	_, _ = fmt.Fprintln(w.out, w.styles.Success.Render(fmt.Sprintf(format, args...)))
}

// Warningf prints a warning line.
func (w *Writer) Warningf(format string, args ...any) {
	_, _ = fmt.Fprintln(w.out, w.styles.Warning.Render(fmt.Sprintf(format, args...)))
}

// Errorf prints an error line.
func (w *Writer) Errorf(format string, args ...any) {
	_, _ = fmt.Fprintln(w.out, w.styles.Error.Render(fmt.Sprintf(format, args...)))
}

// Printf prints an unstyled line.
func (w *Writer) Printf(format string, args ...any) {
	_, _ = fmt.Fprintf(w.out, format+"\n", args...)
}

// Newline prints an empty line.
func (w *Writer) Newline() {
	_, _ = fmt.Fprintln(w.out)
}

// Results renders a search response as a compact list.
func (w *Writer) Results(resp *query.Response) {
	if len(resp.Results) == 0 {
		_, _ = fmt.Fprintln(w.out, w.styles.Dim.Render("no scenarios found"))
		return
	}

	for _, r := range resp.Results {
		w.resultLine(r)
	}

	if resp.Total > len(resp.Results) {
		_, _ = fmt.Fprintln(w.out, w.styles.Dim.Render(
			fmt.Sprintf("showing %d of %d", len(resp.Results), resp.Total)))
	}
}

func (w *Writer) resultLine(r query.Result) {
	e := r.Entry
	title := w.styles.Title.Render(e.Metadata.Title)
	if e.State == store.StateOrphaned {
		title = w.styles.Orphan.Render(e.Metadata.Title + " (missing)")
	}

	var marks []string
	if r.User != nil {
		if r.User.Favorite {
			marks = append(marks, w.styles.Rating.Render("★"))
		}
		if r.User.Rating > 0 {
			marks = append(marks, w.styles.Rating.Render(stars(r.User.Rating)))
		}
		if r.User.Completed {
			marks = append(marks, w.styles.Success.Render("done"))
		}
	}

	line := title
	if e.Metadata.Author != "" {
		line += " " + w.styles.Author.Render("by "+e.Metadata.Author)
	}
	if lv := levelRange(e); lv != "" {
		line += " " + w.styles.Dim.Render(lv)
	}
	if len(marks) > 0 {
		line += " " + strings.Join(marks, " ")
	}
	_, _ = fmt.Fprintln(w.out, line)

	if tags := allTags(r); len(tags) > 0 {
		_, _ = fmt.Fprintln(w.out, "  "+w.styles.Tag.Render(strings.Join(tags, ", ")))
	}
	_, _ = fmt.Fprintln(w.out, "  "+w.styles.Dim.Render(e.Path))
}

// Entry renders one scenario in full detail.
func (w *Writer) Entry(r query.Result) {
	e := r.Entry
	_, _ = fmt.Fprintln(w.out, w.styles.Title.Render(e.Metadata.Title))
	if e.Metadata.Author != "" {
		_, _ = fmt.Fprintln(w.out, w.styles.Author.Render("by "+e.Metadata.Author))
	}
	w.Newline()

	if e.Metadata.Synopsis != "" {
		_, _ = fmt.Fprintln(w.out, w.styles.Synopsis.Render(e.Metadata.Synopsis))
		w.Newline()
	}

	w.field("Path", e.Path)
	if lv := levelRange(e); lv != "" {
		w.field("Levels", lv)
	}
	if e.Metadata.Revision != "" {
		w.field("Revision", e.Metadata.Revision)
	}
	if e.Metadata.Language != "" {
		w.field("Language", e.Metadata.Language)
	}
	if tags := allTags(r); len(tags) > 0 {
		w.field("Tags", strings.Join(tags, ", "))
	}
	if e.Metadata.Coupons.Number > 0 {
		w.field("Coupons", fmt.Sprintf("%d required", e.Metadata.Coupons.Number))
	}
	w.field("First seen", e.FirstSeen.Format("2006-01-02"))
	if e.State == store.StateOrphaned {
		_, _ = fmt.Fprintln(w.out, w.styles.Warning.Render(
			"files missing since "+e.OrphanedAt.Format("2006-01-02 15:04")))
	}

	if r.User != nil {
		w.Newline()
		if r.User.Favorite {
			w.field("Favorite", "yes")
		}
		if r.User.Rating > 0 {
			w.field("Rating", stars(r.User.Rating))
		}
		if r.User.Completed {
			w.field("Completed", "yes")
		}
		if r.User.PlayTime > 0 {
			w.field("Play time", r.User.PlayTime.Round(time.Minute).String())
		}
		if r.User.Notes != "" {
			w.field("Notes", r.User.Notes)
		}
	}
}

// Report renders a rescan summary.
func (w *Writer) Report(rep *index.Report) {
	w.Successf("scan finished in %s", rep.Duration.Round(time.Millisecond))
	w.Printf("  added %d, updated %d, moved %d, orphaned %d, purged %d, unchanged %d",
		rep.Added, rep.Updated, rep.Moved, rep.Orphaned, rep.Purged, rep.Skipped)

	for _, warn := range rep.Warnings {
		w.Warningf("  %s: %s: %v", warn.Kind, warn.Path, warn.Err)
	}
}

func (w *Writer) field(name, value string) {
	_, _ = fmt.Fprintf(w.out, "%s %s\n", w.styles.Dim.Render(name+":"), value)
}

func stars(rating int) string {
	return strings.Repeat("★", rating) + strings.Repeat("☆", store.MaxRating-rating)
}

func levelRange(e *store.Entry) string {
	switch {
	case e.Metadata.LevelMin == 0 && e.Metadata.LevelMax == 0:
		return ""
	case e.Metadata.LevelMin == e.Metadata.LevelMax:
		return fmt.Sprintf("Lv.%d", e.Metadata.LevelMin)
	default:
		return fmt.Sprintf("Lv.%d-%d", e.Metadata.LevelMin, e.Metadata.LevelMax)
	}
}

// allTags merges scan-derived and user tags, deduplicated, scan tags first.
func allTags(r query.Result) []string {
	seen := make(map[string]struct{})
	var tags []string
	add := func(list []string) {
		for _, tag := range list {
			key := strings.ToLower(tag)
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			tags = append(tags, tag)
		}
	}
	add(r.Entry.Metadata.Tags)
	if r.User != nil {
		add(r.User.Tags)
	}
	return tags
}
