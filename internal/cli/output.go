// Package cli provides terminal output for plagiview views.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/hyperjump/plagiview/internal/models"
	"github.com/hyperjump/plagiview/internal/render"
	"github.com/hyperjump/plagiview/pkg/utils"
)

// OutputFormat is the format for rendered views.
type OutputFormat string

const (
	// OutputText is the document with ANSI colored matches (default).
	OutputText OutputFormat = "text"
	// OutputCompact is one line per run.
	OutputCompact OutputFormat = "compact"
	// OutputJSON is the view as JSON for machine consumption.
	OutputJSON OutputFormat = "json"
	// OutputHTML is a standalone HTML page.
	OutputHTML OutputFormat = "html"
)

// ParseFormat maps a flag value to an OutputFormat.
func ParseFormat(s string) (OutputFormat, error) {
	switch f := OutputFormat(s); f {
	case OutputText, OutputCompact, OutputJSON, OutputHTML:
		return f, nil
	}
	return "", fmt.Errorf("unknown output format %q; use text, compact, json, or html", s)
}

// Options tune text output.
type Options struct {
	// NoColor disables ANSI escapes; matched runs are bracketed instead.
	NoColor bool
}

// WriteView writes a *render.ReportView or *render.DiffView in the given format.
func WriteView(w io.Writer, view any, format OutputFormat, opts Options) error {
	switch format {
	case OutputJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(view)
	case OutputHTML:
		return render.WriteHTML(w, view)
	}
	switch v := view.(type) {
	case *render.ReportView:
		if format == OutputCompact {
			writeReportCompact(w, v)
		} else {
			writeReportText(w, v, opts)
		}
	case *render.DiffView:
		if format == OutputCompact {
			writeDiffCompact(w, v)
		} else {
			writeDiffText(w, v, opts)
		}
	default:
		return fmt.Errorf("unsupported view type %T", view)
	}
	return nil
}

func writeReportText(w io.Writer, v *render.ReportView, opts Options) {
	fmt.Fprintf(w, "\n%s  %d%% semantic, %d%% lexical  [%s]\n", utils.StripControl(v.Filename), v.SemanticPercent, v.LexicalPercent, v.Severity)
	fmt.Fprintf(w, "─────────────────────────────────────────────────────────\n")
	if !v.HasText {
		fmt.Fprintln(w, "No text could be extracted from this document.")
	}
	for _, run := range v.Runs {
		text := utils.StripControl(run.Text)
		if !run.Owned {
			fmt.Fprint(w, text)
			continue
		}
		if opts.NoColor {
			fmt.Fprintf(w, "[%d:%s]", run.MatchIndex+1, text)
			continue
		}
		fmt.Fprintf(w, "%s%s%s", ansiColor(run.Color.Base), text, ansiReset)
	}
	fmt.Fprintf(w, "\n─────────────────────────────────────────────────────────\n")
	if len(v.Matches) == 0 {
		fmt.Fprintln(w, "No matches found. This document appears to be original.")
		return
	}
	for _, m := range v.Matches {
		marker := fmt.Sprintf("%d", m.Rank)
		if !opts.NoColor {
			marker = ansiColor(m.Color.Base) + "■ " + marker + ansiReset
		}
		fmt.Fprintf(w, "%s  %s  Sem %d%%  Lex %d%%  (%d chars)\n", marker, utils.StripControl(m.Name), m.Percent, m.LexicalPercent, m.OwnedChars)
		for _, seg := range m.Segments {
			fmt.Fprintf(w, "     \"%s\"\n", utils.Truncate(utils.StripControl(seg), 100))
		}
	}
}

func writeReportCompact(w io.Writer, v *render.ReportView) {
	for _, run := range v.Runs {
		owner := "-"
		if run.Owned {
			owner = strconv.Itoa(run.MatchIndex + 1)
		}
		fmt.Fprintf(w, "%d\t%d\t%s\t%s\n", run.Start, run.End, owner, strconv.Quote(utils.Truncate(run.Text, 60)))
	}
}

func writeDiffText(w io.Writer, v *render.DiffView, opts Options) {
	fmt.Fprintf(w, "\nSimilarity %.2f%%  [%s]\n", v.SimilarityScore, v.Severity)
	writePane(w, "Source", v.SourceFilename, v.Source, opts)
	writePane(w, "Target", v.TargetFilename, v.Target, opts)
}

func writePane(w io.Writer, side, name string, p render.Pane, opts Options) {
	fmt.Fprintf(w, "─── %s: %s (%d/%d chars matched) ───\n", side, utils.StripControl(name), p.CoveredChars, p.TotalChars)
	for _, run := range p.Runs {
		text := utils.StripControl(run.Text)
		switch {
		case !run.Highlighted:
			fmt.Fprint(w, text)
		case opts.NoColor:
			fmt.Fprintf(w, "[%s]", text)
		default:
			fmt.Fprintf(w, "%s%s%s", ansiColor("#b91c1c"), text, ansiReset)
		}
	}
	fmt.Fprintln(w)
}

func writeDiffCompact(w io.Writer, v *render.DiffView) {
	for _, pane := range []struct {
		side string
		p    render.Pane
	}{{"source", v.Source}, {"target", v.Target}} {
		for _, run := range pane.p.Runs {
			mark := "-"
			if run.Highlighted {
				mark = "*"
			}
			fmt.Fprintf(w, "%s\t%d\t%d\t%s\t%s\n", pane.side, run.Start, run.End, mark, strconv.Quote(utils.Truncate(run.Text, 60)))
		}
	}
}

// WriteDocuments writes a repository listing as a table or JSON.
func WriteDocuments(w io.Writer, list *models.DocumentList, format OutputFormat) error {
	if format == OutputJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(list)
	}
	if len(list.Documents) == 0 {
		fmt.Fprintln(w, "No documents in repository.")
		return nil
	}
	for _, d := range list.Documents {
		fmt.Fprintf(w, "%-36s  %-40s  %4d chunks  %s\n", utils.StripControl(d.DocumentID), utils.Truncate(utils.StripControl(d.FileName), 37), d.NumChunks, d.IndexedAt)
	}
	fmt.Fprintf(w, "%d document(s)\n", len(list.Documents))
	return nil
}

// WriteUsers writes an account listing as a table or JSON.
func WriteUsers(w io.Writer, list *models.UserList, format OutputFormat) error {
	if format == OutputJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(list)
	}
	if len(list.Users) == 0 {
		fmt.Fprintln(w, "No users.")
		return nil
	}
	for _, u := range list.Users {
		nsuID := u.NSUID
		if nsuID == "" {
			nsuID = "-"
		}
		fmt.Fprintf(w, "%6d  %-8s  %-28s  %-36s  %s\n", u.ID, utils.StripControl(u.Role),
			utils.Truncate(utils.StripControl(u.Name), 25), utils.Truncate(utils.StripControl(u.Email), 33), utils.StripControl(nsuID))
	}
	fmt.Fprintf(w, "%d user(s)\n", len(list.Users))
	return nil
}

const ansiReset = "\x1b[0m"

// ansiColor returns a bold 24-bit foreground escape for a #rrggbb color.
// Anything else falls back to bold only.
func ansiColor(hex string) string {
	hex = strings.TrimPrefix(hex, "#")
	if len(hex) == 3 {
		hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
	}
	if len(hex) != 6 {
		return "\x1b[1m"
	}
	rgb, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return "\x1b[1m"
	}
	return fmt.Sprintf("\x1b[1;38;2;%d;%d;%dm", rgb>>16&0xff, rgb>>8&0xff, rgb&0xff)
}
