package cmd

import (
	"io"

	"github.com/jedib0t/go-pretty/v6/table"

	"mspro-labs/coffee-prices/internal/models"
)

func renderReport(w io.Writer, report models.PriceReport) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetTitle("%s (%s)", report.Source, report.LastUpdated)
	t.AppendHeader(table.Row{"Grade", "Price (₹ / 50 kg)"})
	for _, q := range report.Prices {
		t.AppendRow(table.Row{q.Name, q.Price})
	}
	if report.IsFallback {
		t.SetCaption("cached fallback, live sources unavailable")
	} else if report.Note != "" {
		t.SetCaption("%s", report.Note)
	}
	t.SetStyle(table.StyleRounded)
	t.Render()
}
