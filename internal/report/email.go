package report

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"
)

var emailTemplate = template.Must(template.New("email").Parse(`<html><head>
<style>
table { border-collapse: collapse; width: 100%; font-family: Arial, sans-serif; font-size: 13px; }
th, td { border: 1px solid #ddd; padding: 6px 8px; }
th { background: #f5f5f5; text-align: left; }
</style></head><body>
<h3>{{.Title}}</h3>
<p>Only instances breaching <b>WARN</b>/<b>ALERT</b> thresholds are listed below.</p>
<table>
<tr><th>Instance (link) / Name</th><th style="text-align:right">CPU</th><th style="text-align:right">Mem</th><th style="text-align:right">Disk</th></tr>
{{range .Rows}}<tr><td><a href="{{.Link}}">{{.InstanceID}}</a>{{if .Name}}<br/><span style="color:#555">{{.Name}}</span>{{end}}</td>{{range .Cells}}<td style="{{.Style}}">{{.Text}}</td>{{end}}</tr>
{{end}}</table>
{{if .Agent}}<p style="color:#777">Tip: Install {{.Agent}} to populate Mem/Disk metrics.</p>
{{end}}</body></html>`))

var emptyEmailTemplate = template.Must(template.New("empty").Parse(
	`<html><body><h3>{{.Title}}</h3><p>{{.Message}}</p></body></html>`))

type Email struct {
	Text string
	HTML string
}

// EmailRenderer renders the table as a plain text body and an equivalent
// HTML body.
type EmailRenderer struct {
	// Service names the compute service in the title, e.g. "EC2".
	Service string
	// Agent names the metrics agent mentioned in the footer tip.
	Agent string
}

func (r EmailRenderer) Title(account string) string {
	service := r.Service
	if service == "" {
		service = "Compute"
	}
	return fmt.Sprintf("%s - %s Utilization Alerts (CPU/Mem/Disk)", account, service)
}

type emailCell struct {
	Text  string
	Style template.CSS
}

type emailRow struct {
	InstanceID string
	Name       string
	Link       string
	Cells      []emailCell
}

func (r EmailRenderer) Render(account string, t Table) (Email, error) {
	title := r.Title(account)

	var html bytes.Buffer
	if len(t.Rows) == 0 {
		if err := emptyEmailTemplate.Execute(&html, map[string]string{"Title": title, "Message": emptyMessage}); err != nil {
			return Email{}, fmt.Errorf("render empty email: %w", err)
		}
		return Email{Text: title + "\n" + emptyMessage + "\n", HTML: html.String()}, nil
	}

	rows := make([]emailRow, 0, len(t.Rows))
	for _, row := range t.Rows {
		er := emailRow{InstanceID: row.InstanceID, Name: row.Name, Link: row.Link}
		for _, c := range row.Metrics() {
			style := "text-align:right"
			if color := c.Style.HTMLColor(); color != "" {
				style += ";color:" + color
			}
			er.Cells = append(er.Cells, emailCell{Text: c.Text, Style: template.CSS(style)})
		}
		rows = append(rows, er)
	}

	err := emailTemplate.Execute(&html, struct {
		Title string
		Agent string
		Rows  []emailRow
	}{title, r.Agent, rows})
	if err != nil {
		return Email{}, fmt.Errorf("render email: %w", err)
	}

	return Email{Text: renderText(title, t), HTML: html.String()}, nil
}

func renderText(title string, t Table) string {
	blocks := make([]string, 0, len(t.Rows))
	for _, row := range t.Rows {
		name := ""
		if row.Name != "" {
			name = " " + row.Name
		}
		s := row.Sample
		blocks = append(blocks, fmt.Sprintf("%s%s\n  CPU=%s  MEM=%s  DISK=%s\n  %s\n",
			row.InstanceID, name, s.CPU, s.Mem, s.Disk, row.Link))
	}
	return title + "\n\n" + strings.Join(blocks, "\n")
}
