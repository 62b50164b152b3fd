package tui

import (
	"bytes"
	"context"

	tea "github.com/charmbracelet/bubbletea"

	"websearch/internal/adapter/output"
	"websearch/internal/domain"
	"websearch/internal/usecase"
)

// searchDoneMsg carries a finished pipeline call back into Update. gen
// identifies the request so results from a superseded search are
// discarded.
type searchDoneMsg struct {
	gen    uint64
	output string
	err    error
}

// quitMsg asks the program to exit.
type quitMsg struct{}

// searchCmd runs one pipeline call in a background goroutine and
// renders it with the plain text printer, ready for the result pane.
func searchCmd(ctx context.Context, svc *usecase.Service, engine domain.Engine, query string, gen uint64) tea.Cmd {
	return func() tea.Msg {
		out, err := runQuery(ctx, svc, engine, query)
		return searchDoneMsg{gen: gen, output: out, err: err}
	}
}

func runQuery(ctx context.Context, svc *usecase.Service, engine domain.Engine, query string) (string, error) {
	var buf bytes.Buffer
	printer := output.NewPrinter(&buf, output.FormatText, true)

	switch engine {
	case domain.EnginePerplexity:
		res, err := svc.Answer(ctx, query)
		if err != nil {
			return "", err
		}
		if err := printer.PrintAnswer(res); err != nil {
			return "", err
		}

	case domain.EngineBoth:
		if err := printer.PrintCombined(svc.SearchBoth(ctx, query, domain.SearchOptions{})); err != nil {
			return "", err
		}

	case domain.EngineFetch:
		res, err := svc.FetchPage(ctx, query)
		if err != nil {
			return "", err
		}
		if err := printer.PrintPage(res); err != nil {
			return "", err
		}

	default:
		res, err := svc.Search(ctx, query, domain.SearchOptions{})
		if err != nil {
			return "", err
		}
		if err := printer.PrintWeb(res); err != nil {
			return "", err
		}
	}

	return buf.String(), nil
}

// Run starts the interactive browser and blocks until the user quits.
func Run(ctx context.Context, deps Deps) error {
	program := tea.NewProgram(New(deps), tea.WithAltScreen())

	// Quit cleanly when the surrounding context is cancelled, e.g. on
	// SIGINT delivered to the process group.
	go func() {
		<-ctx.Done()
		program.Send(quitMsg{})
	}()

	_, err := program.Run()
	return err
}
