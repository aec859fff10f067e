package render

import (
	"fmt"
	"io"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/muesli/reflow/truncate"
	"github.com/rivo/uniseg"
	"github.com/shellsync/unihist/internal/history"
	"github.com/shellsync/unihist/internal/timefmt"
)

// Renderer writes history results to a terminal or pipe.
type Renderer struct {
	writer    io.Writer
	styles    Styles
	mode      timefmt.Mode
	termWidth func() int
}

// Options configures a Renderer.
type Options struct {
	Color     bool
	TimeMode  timefmt.Mode
	TermWidth func() int
}

// New creates a Renderer writing to w.
func New(w io.Writer, opts Options) *Renderer {
	mode := opts.TimeMode
	if mode == "" {
		mode = timefmt.Compact
	}
	return &Renderer{
		writer:    w,
		styles:    NewStyles(w, opts.Color),
		mode:      mode,
		termWidth: opts.TermWidth,
	}
}

// Styles exposes the styles so callers can decorate one-off messages.
func (r *Renderer) Styles() Styles {
	return r.styles
}

// Highlight renders text with the given spans emphasised.
func (r *Renderer) Highlight(text string, spans []history.Span) string {
	segments, matched := history.Highlight(text, spans)
	var b strings.Builder
	for i, segment := range segments {
		if matched[i] {
			b.WriteString(r.styles.Highlight.Render(segment))
		} else {
			b.WriteString(segment)
		}
	}
	return b.String()
}

// RenderSearch prints search matches followed by a summary line.
func (r *Renderer) RenderSearch(pattern string, result *history.SearchResult) {
	if result.Total == 0 {
		fmt.Fprintf(r.writer, "No matches for %q\n", pattern)
		return
	}

	width := len(fmt.Sprint(result.Total))
	for _, m := range result.Matches {
		fmt.Fprintf(r.writer, "%*d  %s  %s\n",
			width, m.Index,
			r.styles.Dim.Render("["+m.Record.Timestamp(r.mode)+"]"),
			r.Highlight(m.Record.Text, m.Spans),
		)
	}

	if result.Truncated {
		r.RenderNote(fmt.Sprintf("Showing last %d of %d matches (use --all to show everything)", len(result.Matches), result.Total))
	} else {
		r.RenderNote(fmt.Sprintf("%d %s", result.Total, plural(result.Total, "match", "matches")))
	}
}

// RenderContext prints one block per match with the surrounding records.
func (r *Renderer) RenderContext(pattern string, blocks []history.ContextBlock) {
	if len(blocks) == 0 {
		fmt.Fprintf(r.writer, "No matches for %q\n", pattern)
		return
	}

	for i, block := range blocks {
		if i > 0 {
			fmt.Fprintln(r.writer)
		}
		header := fmt.Sprintf("── match %d at #%d ──", block.Match.Index, block.Match.Record.Position+1)
		fmt.Fprintln(r.writer, r.styles.Header.Render(header))

		for _, line := range block.Lines {
			marker := " "
			text := line.Record.Text
			if line.IsMatch {
				marker = r.styles.Highlight.Render(SymbolMatch)
				text = r.Highlight(text, block.Match.Spans)
			}
			fmt.Fprintf(r.writer, "%s %6d  %s  %s\n",
				marker,
				line.Record.Position+1,
				r.styles.Dim.Render("["+line.Record.Timestamp(r.mode)+"]"),
				text,
			)
		}
	}
}

// RenderRecent prints records oldest first.
func (r *Renderer) RenderRecent(records []history.Record) {
	if len(records) == 0 {
		fmt.Fprintln(r.writer, "No history yet")
		return
	}
	for _, rec := range records {
		fmt.Fprintf(r.writer, "%6d  %s  %s\n",
			rec.Position+1,
			r.styles.Dim.Render("["+rec.Timestamp(r.mode)+"]"),
			rec.Text,
		)
	}
}

// RenderStats prints totals and the top commands table. Long commands are
// truncated to fit the terminal.
func (r *Renderer) RenderStats(stats *history.Stats) {
	fmt.Fprintln(r.writer, r.styles.Header.Render("History statistics"))
	fmt.Fprintf(r.writer, "  Total commands:  %d\n", stats.Total)
	fmt.Fprintf(r.writer, "  Unique commands: %d\n", stats.Unique)

	if len(stats.Top) == 0 {
		return
	}

	fmt.Fprintln(r.writer)
	fmt.Fprintln(r.writer, r.styles.Header.Render("Top commands"))

	maxName := r.getTerminalWidth() - 20
	nameWidth := 0
	names := make([]string, len(stats.Top))
	for i, row := range stats.Top {
		names[i] = truncate.StringWithTail(row.Command, uint(max(maxName, 8)), "…")
		nameWidth = max(nameWidth, uniseg.StringWidth(names[i]))
	}

	for i, row := range stats.Top {
		padding := strings.Repeat(" ", nameWidth-uniseg.StringWidth(names[i]))
		fmt.Fprintf(r.writer, "  %2d. %s%s  %s\n", i+1, names[i], padding, r.styles.Dim.Render(fmt.Sprintf("%6d", row.Count)))
	}
}

// RenderDedup prints the before/after counts of a deduplication.
func (r *Renderer) RenderDedup(result history.DedupResult) {
	r.RenderSuccess("Deduplicated history")
	fmt.Fprintf(r.writer, "  Before:  %d\n", result.Before)
	fmt.Fprintf(r.writer, "  After:   %d\n", result.After)
	fmt.Fprintf(r.writer, "  Removed: %d\n", result.Removed)
}

// RenderBackup prints where a backup was written.
func (r *Renderer) RenderBackup(result history.BackupResult) {
	r.RenderSuccess(fmt.Sprintf("Backup written to %s (%s)", result.Path, humanize.Bytes(uint64(result.Size))))
}

// RenderImport prints the outcome of an import.
func (r *Renderer) RenderImport(result history.ImportResult) {
	if result.Adopted {
		r.RenderSuccess(fmt.Sprintf("No existing history; adopted %s (%d lines)", result.Source, result.Lines))
		return
	}
	if result.Backup != nil {
		r.RenderNote("Previous history backed up to " + result.Backup.Path)
	}
	r.RenderSuccess(fmt.Sprintf("Imported %s: %d lines, %d duplicates removed", result.Source, result.Lines, result.Removed))
}

// RenderSync prints the outcome of a sync.
func (r *Renderer) RenderSync(result history.SyncResult) {
	if result.Degraded {
		r.RenderWarning("History store unavailable; keeping session-local history")
		return
	}
	r.RenderSuccess(fmt.Sprintf("History synced (%d appended, %d loaded)", result.Appended, result.Loaded))
}

// RenderInfo prints store location and size.
func (r *Renderer) RenderInfo(info history.Info, journalCount int64) {
	fmt.Fprintf(r.writer, "Store:    %s\n", info.Path)
	if !info.Exists {
		fmt.Fprintln(r.writer, "          (not created yet)")
	} else {
		fmt.Fprintf(r.writer, "Size:     %s\n", humanize.Bytes(uint64(info.Size)))
		fmt.Fprintf(r.writer, "Records:  %d (%d markers)\n", info.Records, info.Markers)
		fmt.Fprintf(r.writer, "Modified: %s\n", humanize.Time(info.Modified))
	}
	fmt.Fprintf(r.writer, "Journal:  %d local commands\n", journalCount)
}

// RenderOrigin tells the user when results come from somewhere other than
// the shared store.
func (r *Renderer) RenderOrigin(origin history.Origin) {
	switch origin {
	case history.OriginJournal:
		r.RenderWarning("Shared history not found; showing this machine's local history")
	case history.OriginEmpty:
		r.RenderWarning("No history found")
	}
}

func (r *Renderer) RenderSuccess(message string) {
	fmt.Fprintln(r.writer, r.styles.Success.Render(SymbolSuccess)+" "+message)
}

func (r *Renderer) RenderWarning(message string) {
	fmt.Fprintln(r.writer, r.styles.Highlight.Render(SymbolWarning)+" "+message)
}

func (r *Renderer) RenderError(message string) {
	fmt.Fprintln(r.writer, r.styles.Error.Render(SymbolError)+" "+message)
}

func (r *Renderer) RenderNote(message string) {
	fmt.Fprintln(r.writer, r.styles.Dim.Render(message))
}

// getTerminalWidth returns the current terminal width, with a sensible default
func (r *Renderer) getTerminalWidth() int {
	if r.termWidth != nil {
		width := r.termWidth()
		if width > 0 {
			return width
		}
	}
	return 80
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
