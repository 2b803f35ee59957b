package ui

import (
	"fmt"
	"io"
	"maps"
	"slices"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	pretty "github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// SessionSummary is printed when the chat screen exits.
type SessionSummary struct {
	Strangers int
	Sent      int
	Received  int
	Duration  time.Duration
}

func SessionSummaryView(summary SessionSummary) string {
	headers := []string{"Metric", "Value"}
	rows := [][]string{
		{"Strangers met", fmt.Sprintf("%d", summary.Strangers)},
		{"Messages sent", fmt.Sprintf("%d", summary.Sent)},
		{"Messages received", fmt.Sprintf("%d", summary.Received)},
		{"Duration", summary.Duration.Round(time.Second).String()},
	}

	tbl := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(Primary)).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return TableHeaderStyle
			case row%2 == 0:
				return TableRowStyle
			default:
				return TableRowAltStyle
			}
		})

	return tbl.Render()
}

func RenderSessionSummary(summary SessionSummary) {
	fmt.Println(SessionSummaryView(summary))
}

// RelayStats mirrors the relay's /stats response.
type RelayStats struct {
	Online      int            `json:"online"`
	Waiting     int            `json:"waiting"`
	Pairings    int            `json:"pairings"`
	Negotiation map[string]int `json:"negotiation,omitempty"`
}

// RenderRelayStats writes stats as a table.
func RenderRelayStats(w io.Writer, source string, stats RelayStats) {
	t := pretty.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(pretty.StyleRounded)
	t.SetTitle("Relay stats: " + source)
	t.AppendHeader(pretty.Row{"Metric", "Value"})
	t.AppendRows([]pretty.Row{
		{"Online", stats.Online},
		{"Waiting", stats.Waiting},
		{"Pairings", stats.Pairings},
	})
	if len(stats.Negotiation) > 0 {
		t.AppendSeparator()
		for _, state := range slices.Sorted(maps.Keys(stats.Negotiation)) {
			t.AppendRow(pretty.Row{"Negotiation " + state, stats.Negotiation[state]})
		}
	}
	t.SetColumnConfigs([]pretty.ColumnConfig{
		{Number: 2, Align: text.AlignRight},
	})
	t.Render()
}
