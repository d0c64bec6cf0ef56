// Package report turns offender samples into a typed table and serializes it
// as Teams adaptive cards or as an email body.
package report

import (
	"fmt"

	"github.com/YumeNoTenshi/utilwatch/internal/models"
	"github.com/YumeNoTenshi/utilwatch/internal/severity"
)

const emptyMessage = "No WARN/ALERT instances."

// LinkFunc builds the console deep link of an instance.
type LinkFunc func(region, instanceID string) string

// Style is the color/icon pair of one metric cell. The zero Style means the
// metric is unavailable.
type Style struct {
	Color string
	Icon  string
}

var (
	styleOK    = Style{Color: "good", Icon: "🟢"}
	styleWarn  = Style{Color: "warning", Icon: "🟡"}
	styleAlert = Style{Color: "attention", Icon: "🔴"}
)

// StyleFor styles a reading from its own thresholds, independently of the
// combined level of the row.
func StyleFor(r models.Reading, warn, alert float64) Style {
	if !r.Valid {
		return Style{}
	}
	switch severity.Level(r, warn, alert) {
	case models.LevelAlert:
		return styleAlert
	case models.LevelWarn:
		return styleWarn
	default:
		return styleOK
	}
}

// HTMLColor maps the card color name to a CSS color.
func (s Style) HTMLColor() string {
	switch s.Color {
	case styleOK.Color:
		return "#2e7d32"
	case styleWarn.Color:
		return "#b7791f"
	case styleAlert.Color:
		return "#c62828"
	}
	return ""
}

type Cell struct {
	Text  string
	Style Style
}

func metricCell(r models.Reading, warn, alert float64) Cell {
	st := StyleFor(r, warn, alert)
	text := r.String()
	if st.Icon != "" {
		text = st.Icon + " " + text
	}
	return Cell{Text: text, Style: st}
}

type Row struct {
	InstanceID string
	Name       string
	Link       string
	Level      models.Level
	CPU        Cell
	Mem        Cell
	Disk       Cell
	Sample     models.InstanceSample
}

// Metrics returns the CPU, Mem and Disk cells in column order.
func (r Row) Metrics() []Cell {
	return []Cell{r.CPU, r.Mem, r.Disk}
}

// Identity is the markdown identity cell: a link to the instance and the
// display name on a second line.
func (r Row) Identity() string {
	text := fmt.Sprintf("[%s](%s)", r.InstanceID, r.Link)
	if r.Name != "" {
		text += "\n" + r.Name
	}
	return text
}

type Table struct {
	Header []string
	Rows   []Row
}

var header = []string{"Instance-ID / Name", "CPU", "Mem", "Disk"}

func BuildTable(samples []models.InstanceSample, link LinkFunc) Table {
	t := Table{Header: header, Rows: make([]Row, 0, len(samples))}
	for _, s := range samples {
		th := s.Thresholds
		row := Row{
			InstanceID: s.ID,
			Name:       s.Name,
			Level:      severity.Sample(s),
			CPU:        metricCell(s.CPU, th.CPUWarn, th.CPUAlert),
			Mem:        metricCell(s.Mem, th.MemWarn, th.MemAlert),
			Disk:       metricCell(s.Disk, th.DiskWarn, th.DiskAlert),
			Sample:     s,
		}
		if link != nil {
			row.Link = link(s.Region, s.ID)
		}
		t.Rows = append(t.Rows, row)
	}
	return t
}
