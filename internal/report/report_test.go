package report

import (
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/YumeNoTenshi/utilwatch/internal/models"
)

var thresholds = models.ThresholdSet{CPUWarn: 70, CPUAlert: 90, MemWarn: 70, MemAlert: 90, DiskWarn: 80, DiskAlert: 90}

func link(region, id string) string {
	return fmt.Sprintf("https://console/%s/%s", region, id)
}

func offender() models.InstanceSample {
	return models.InstanceSample{
		ID:         "i-abc",
		Name:       "web-1",
		CPU:        models.Some(95),
		Mem:        models.None,
		Disk:       models.Some(50),
		Thresholds: thresholds,
		Region:     "us-east-1",
	}
}

func TestBuildTableCellStyles(t *testing.T) {
	table := BuildTable([]models.InstanceSample{offender()}, link)
	if len(table.Rows) != 1 {
		t.Fatalf("rows = %d", len(table.Rows))
	}
	row := table.Rows[0]
	want := []Cell{
		{Text: "🔴 95%", Style: Style{Color: "attention", Icon: "🔴"}},
		{Text: "N/A"},
		{Text: "🟢 50%", Style: Style{Color: "good", Icon: "🟢"}},
	}
	if diff := cmp.Diff(want, row.Metrics()); diff != "" {
		t.Fatalf("cells mismatch (-want +got):\n%s", diff)
	}
	if row.Level != models.LevelAlert {
		t.Fatalf("level = %v", row.Level)
	}
	if got := row.Identity(); got != "[i-abc](https://console/us-east-1/i-abc)\nweb-1" {
		t.Fatalf("Identity() = %q", got)
	}
}

func TestStyleUsesOwnThresholds(t *testing.T) {
	// Disk at 85 is a warning even though CPU drives the row to ALERT.
	s := offender()
	s.Disk = models.Some(85)
	row := BuildTable([]models.InstanceSample{s}, link).Rows[0]
	if row.Disk.Style.Color != "warning" || row.Disk.Text != "🟡 85%" {
		t.Fatalf("disk cell = %+v", row.Disk)
	}
}

func TestIdentityWithoutName(t *testing.T) {
	s := offender()
	s.Name = ""
	row := BuildTable([]models.InstanceSample{s}, link).Rows[0]
	if strings.Contains(row.Identity(), "\n") {
		t.Fatalf("Identity() = %q", row.Identity())
	}
}

func TestCardRenderPages(t *testing.T) {
	var samples []models.InstanceSample
	for i := range 5 {
		s := offender()
		s.ID = fmt.Sprintf("i-%d", i)
		samples = append(samples, s)
	}
	cards := CardRenderer{RowsPerCard: 2}.Render("AWS 123", BuildTable(samples, link))
	if len(cards) != 3 {
		t.Fatalf("cards = %d, want 3", len(cards))
	}

	var rows []int
	for _, c := range cards {
		body := c.Attachments[0].Content.Body
		title := body[0].(TextBlock).Text
		if title != "AWS 123 - Compute (CPU/Mem/Disk) - ⚠️ Offenders" {
			t.Fatalf("title = %q", title)
		}
		// title, header, then one ColumnSet per row
		rows = append(rows, len(body)-2)
	}
	if diff := cmp.Diff([]int{2, 2, 1}, rows); diff != "" {
		t.Fatalf("rows per card mismatch (-want +got):\n%s", diff)
	}
}

func TestCardRenderDefaultPageSize(t *testing.T) {
	var samples []models.InstanceSample
	for i := range DefaultRowsPerCard + 1 {
		s := offender()
		s.ID = fmt.Sprintf("i-%d", i)
		samples = append(samples, s)
	}
	if n := len(CardRenderer{}.Render("AWS 1", BuildTable(samples, link))); n != 2 {
		t.Fatalf("cards = %d, want 2", n)
	}
}

func TestCardJSON(t *testing.T) {
	cards := CardRenderer{}.Render("AWS 123", BuildTable([]models.InstanceSample{offender()}, link))
	b, err := json.Marshal(cards[0])
	if err != nil {
		t.Fatal(err)
	}
	var doc struct {
		Type        string `json:"type"`
		Attachments []struct {
			ContentType string `json:"contentType"`
			Content     struct {
				Version string            `json:"version"`
				Body    []json.RawMessage `json:"body"`
			} `json:"content"`
		} `json:"attachments"`
	}
	if err := json.Unmarshal(b, &doc); err != nil {
		t.Fatal(err)
	}
	if doc.Type != "message" || doc.Attachments[0].ContentType != "application/vnd.microsoft.card.adaptive" || doc.Attachments[0].Content.Version != "1.4" {
		t.Fatalf("unexpected envelope: %s", b)
	}
	if !strings.Contains(string(b), `"color":"attention"`) || !strings.Contains(string(b), `"width":"8"`) {
		t.Fatalf("missing row styling: %s", b)
	}
	// metric cells always carry wrap, the title never does
	if !strings.Contains(string(b), `"wrap":false,"maxLines":1`) || !strings.Contains(string(b), `"wrap":true,"maxLines":0`) {
		t.Fatalf("cells missing wrap: %s", b)
	}
	var title map[string]any
	if err := json.Unmarshal(doc.Attachments[0].Content.Body[0], &title); err != nil {
		t.Fatal(err)
	}
	if _, ok := title["wrap"]; ok {
		t.Fatalf("title has wrap: %v", title)
	}
}

func TestCardRenderEmpty(t *testing.T) {
	cards := CardRenderer{}.Render("AWS 123", BuildTable(nil, link))
	if len(cards) != 1 {
		t.Fatalf("cards = %d", len(cards))
	}
	body := cards[0].Attachments[0].Content.Body
	if body[0].(TextBlock).Text != "AWS 123 - Compute (CPU/Mem/Disk)" || body[1].(TextBlock).Text != "No WARN/ALERT instances." {
		t.Fatalf("unexpected empty card: %+v", body)
	}
}

func TestEmailRender(t *testing.T) {
	r := EmailRenderer{Service: "EC2", Agent: "CloudWatch Agent"}
	email, err := r.Render("AWS 123", BuildTable([]models.InstanceSample{offender()}, link))
	if err != nil {
		t.Fatal(err)
	}

	wantText := "AWS 123 - EC2 Utilization Alerts (CPU/Mem/Disk)\n\n" +
		"i-abc web-1\n  CPU=95%  MEM=N/A  DISK=50%\n  https://console/us-east-1/i-abc\n"
	if diff := cmp.Diff(wantText, email.Text); diff != "" {
		t.Fatalf("text mismatch (-want +got):\n%s", diff)
	}
	for _, want := range []string{
		`<a href="https://console/us-east-1/i-abc">i-abc</a>`,
		"color:#c62828",
		"web-1",
		"Tip: Install CloudWatch Agent",
	} {
		if !strings.Contains(email.HTML, want) {
			t.Errorf("html missing %q:\n%s", want, email.HTML)
		}
	}
}

func TestEmailEscapesNames(t *testing.T) {
	s := offender()
	s.Name = "<script>x</script>"
	email, err := EmailRenderer{Service: "EC2"}.Render("AWS 1", BuildTable([]models.InstanceSample{s}, link))
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(email.HTML, "<script>") {
		t.Fatalf("name not escaped:\n%s", email.HTML)
	}
}

func TestEmailRenderEmpty(t *testing.T) {
	email, err := EmailRenderer{Service: "EC2"}.Render("AWS 123", BuildTable(nil, link))
	if err != nil {
		t.Fatal(err)
	}
	if email.Text != "AWS 123 - EC2 Utilization Alerts (CPU/Mem/Disk)\nNo WARN/ALERT instances.\n" {
		t.Fatalf("text = %q", email.Text)
	}
	if !strings.Contains(email.HTML, "No WARN/ALERT instances.") {
		t.Fatalf("html = %q", email.HTML)
	}
}
