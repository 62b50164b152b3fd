// Package output renders results to a terminal or pipe: pretty JSON,
// or the classic text layouts with optional color and markdown
// rendering when stdout is a TTY.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"

	"websearch/internal/domain"
)

// Format selects the output encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatText Format = "text"
)

// Valid reports whether f is a known format.
func (f Format) Valid() bool {
	return f == FormatJSON || f == FormatText
}

const markdownWrap = 100

// Printer writes results in the selected format. In text mode,
// headings and URLs are styled and answers are rendered as markdown
// when the writer is a TTY; Plain forces the unstyle path (also taken
// when NO_COLOR is set).
type Printer struct {
	w      io.Writer
	format Format
	styled bool

	heading  lipgloss.Style
	url      lipgloss.Style
	faint    lipgloss.Style
	errStyle lipgloss.Style

	md *glamour.TermRenderer
}

// NewPrinter creates a printer for w.
func NewPrinter(w io.Writer, format Format, plain bool) *Printer {
	p := &Printer{
		w:      w,
		format: format,
		styled: !plain && os.Getenv("NO_COLOR") == "" && isTerminal(w),
	}
	if p.styled {
		p.heading = lipgloss.NewStyle().Bold(true)
		p.url = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))
		p.faint = lipgloss.NewStyle().Faint(true)
		p.errStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	}
	return p
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// PrintWeb renders a keyword search result.
func (p *Printer) PrintWeb(res *domain.WebResult) error {
	if p.format == FormatJSON {
		return p.printJSON(res)
	}

	fmt.Fprintf(p.w, "%s\n\n", p.heading.Render("Brave Search Results for: "+res.Query))
	p.printEntries(res.Results, res.Query)
	return nil
}

// PrintAnswer renders a synthesized answer.
func (p *Printer) PrintAnswer(res *domain.AnswerResult) error {
	if p.format == FormatJSON {
		return p.printJSON(res)
	}

	fmt.Fprintf(p.w, "%s\n\n", p.heading.Render(fmt.Sprintf("Perplexity Search Answer (%s):", res.Model)))
	fmt.Fprintln(p.w, p.renderMarkdown(res.Answer))
	return nil
}

// PrintCombined renders a merged result. Degraded halves report their
// error in place of content.
func (p *Printer) PrintCombined(res *domain.CombinedResult) error {
	if p.format == FormatJSON {
		return p.printJSON(res)
	}

	fmt.Fprintf(p.w, "%s\n\n", p.heading.Render("--- Synthesized Answer (Perplexity) ---"))
	if res.PerplexityFailed {
		fmt.Fprintf(p.w, "%s\n", p.errStyle.Render("Perplexity search failed: "+res.PerplexityError))
	} else {
		fmt.Fprintln(p.w, p.renderMarkdown(res.PerplexityAnswer))
	}

	fmt.Fprintf(p.w, "\n\n%s\n\n", p.heading.Render("--- Source Reference Links (Brave) ---"))
	if res.BraveFailed {
		fmt.Fprintf(p.w, "%s\n", p.errStyle.Render("Brave search failed: "+res.BraveError))
		return nil
	}
	p.printEntries(res.BraveResults, res.Query)
	return nil
}

// PrintPage renders a fetched page.
func (p *Printer) PrintPage(res *domain.PageResult) error {
	if p.format == FormatJSON {
		return p.printJSON(res)
	}

	if res.Title != "" {
		fmt.Fprintf(p.w, "%s\n", p.heading.Render(res.Title))
	}
	fmt.Fprintf(p.w, "%s\n\n", p.url.Render("URL: "+res.URL))
	fmt.Fprintln(p.w, res.Text)
	return nil
}

// PrintHistory renders the query log, newest first.
func (p *Printer) PrintHistory(entries []domain.HistoryEntry) error {
	if p.format == FormatJSON {
		return p.printJSON(entries)
	}

	if len(entries) == 0 {
		fmt.Fprintln(p.w, "No searches recorded.")
		return nil
	}

	for _, e := range entries {
		flags := make([]string, 0, 2)
		if e.Cached {
			flags = append(flags, "cached")
		}
		if e.Error != "" {
			flags = append(flags, "failed")
		}
		suffix := ""
		if len(flags) > 0 {
			suffix = " [" + strings.Join(flags, ", ") + "]"
		}

		fmt.Fprintf(p.w, "%s  %-10s  %3d results  %s%s\n",
			p.faint.Render(e.CreatedAt.Local().Format("2006-01-02 15:04:05")),
			e.Engine, e.Results, e.Query, suffix)
		if e.Error != "" {
			fmt.Fprintf(p.w, "%20s%s\n", "", p.errStyle.Render(e.Error))
		}
	}
	return nil
}

func (p *Printer) printEntries(entries []domain.SearchEntry, query string) {
	if len(entries) == 0 {
		fmt.Fprintf(p.w, "No search results found for %q.\n", query)
		return
	}
	for i, e := range entries {
		fmt.Fprintf(p.w, "%d. %s\n", i+1, e.Title)
		fmt.Fprintf(p.w, "   %s\n", p.url.Render("URL: "+e.URL))
		fmt.Fprintf(p.w, "   %s\n\n", e.Description)
	}
}

// printJSON writes v with two-space indentation and HTML escaping off,
// so URLs with & and query text survive untouched.
func (p *Printer) printJSON(v any) error {
	enc := json.NewEncoder(p.w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// renderMarkdown renders answer text as terminal markdown when styling
// is on; otherwise the raw text passes through.
func (p *Printer) renderMarkdown(content string) string {
	if !p.styled {
		return content
	}
	if p.md == nil {
		r, err := glamour.NewTermRenderer(
			glamour.WithAutoStyle(),
			glamour.WithWordWrap(markdownWrap),
		)
		if err != nil {
			return content
		}
		p.md = r
	}
	rendered, err := p.md.Render(content)
	if err != nil {
		return content
	}
	return strings.TrimRight(rendered, "\n")
}
