package ui

import (
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"

	"flakeload/internal/pipeline"
)

// ShowSummary renders the report as a table.
func (p *Printer) ShowSummary(report *pipeline.Report) {
	if report == nil || len(report.Steps) == 0 {
		return
	}

	table := tablewriter.NewWriter(p.out)
	table.SetHeader([]string{"#", "Step", "Target", "Status", "Detail", "Duration"})
	table.SetBorder(false)
	table.SetAutoWrapText(false)
	table.SetAlignment(tablewriter.ALIGN_LEFT)

	for i, s := range report.Steps {
		table.Append([]string{
			fmt.Sprintf("%d", i+1),
			s.Name,
			s.Target,
			p.status(s.Status),
			s.Detail,
			formatDuration(s.Duration),
		})
	}
	table.Render()
}

func (p *Printer) status(s pipeline.Status) string {
	if !p.color {
		return string(s)
	}
	if s == pipeline.StatusFailed {
		return color.RedString(string(s))
	}
	return color.GreenString(string(s))
}

func formatDuration(d time.Duration) string {
	switch {
	case d < time.Millisecond:
		return "<1ms"
	case d < time.Second:
		return fmt.Sprintf("%dms", d.Milliseconds())
	case d < time.Minute:
		return fmt.Sprintf("%.1fs", d.Seconds())
	default:
		return fmt.Sprintf("%dm%02ds", int(d.Minutes()), int(d.Seconds())%60)
	}
}
