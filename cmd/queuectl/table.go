package main

import (
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/stemsi/help-queue/internal/model"
)

// renderRequests draws requests in the order given.
func renderRequests(reqs []model.HelpRequest) string {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(table.Row{"#", "Name", "Rating", "Submitted", "Status", "ID"})

	for i, r := range reqs {
		tw.AppendRow(table.Row{
			strconv.Itoa(i + 1),
			r.Name,
			strconv.Itoa(r.Rating),
			r.Timestamp.UTC().Format("2006-01-02 15:04:05"),
			string(r.Status),
			r.ID,
		})
	}

	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignRight, AlignHeader: text.AlignLeft},
		{Number: 3, Align: text.AlignRight, AlignHeader: text.AlignLeft},
	})
	return tw.Render()
}
