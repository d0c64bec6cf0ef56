package report

import "fmt"

const (
	DefaultRowsPerCard = 20

	adaptiveContentType = "application/vnd.microsoft.card.adaptive"
	adaptiveSchema      = "http://adaptivecards.io/schemas/adaptive-card.json"
	adaptiveVersion     = "1.4"
)

var columnWidths = []string{"8", "2", "2", "2"}

// Message is a Teams webhook payload carrying one adaptive card.
type Message struct {
	Type        string       `json:"type"`
	Attachments []Attachment `json:"attachments"`
}

type Attachment struct {
	ContentType string       `json:"contentType"`
	Content     AdaptiveCard `json:"content"`
}

type AdaptiveCard struct {
	Schema  string    `json:"$schema"`
	Type    string    `json:"type"`
	Version string    `json:"version"`
	Body    []Element `json:"body"`
}

// Element is a card body element: a TextBlock or a ColumnSet.
type Element interface {
	element()
}

type TextBlock struct {
	Type     string `json:"type"`
	Text     string `json:"text"`
	Wrap     *bool  `json:"wrap,omitempty"`
	MaxLines *int   `json:"maxLines,omitempty"`
	Size     string `json:"size,omitempty"`
	Spacing  string `json:"spacing,omitempty"`
	Weight   string `json:"weight,omitempty"`
	Color    string `json:"color,omitempty"`
}

func (TextBlock) element() {}

type Column struct {
	Type  string    `json:"type"`
	Width string    `json:"width"`
	Items []Element `json:"items"`
}

type ColumnSet struct {
	Type      string   `json:"type"`
	Separator bool     `json:"separator,omitempty"`
	Spacing   string   `json:"spacing,omitempty"`
	Columns   []Column `json:"columns"`
}

func (ColumnSet) element() {}

func newMessage(body []Element) Message {
	return Message{
		Type: "message",
		Attachments: []Attachment{{
			ContentType: adaptiveContentType,
			Content: AdaptiveCard{
				Schema:  adaptiveSchema,
				Type:    "AdaptiveCard",
				Version: adaptiveVersion,
				Body:    body,
			},
		}},
	}
}

var wrapped = true

// SimpleCard is a card with a bold title and one wrapped paragraph.
func SimpleCard(title, text string) Message {
	return newMessage([]Element{
		TextBlock{Type: "TextBlock", Text: title, Weight: "Bolder", Size: "Medium"},
		TextBlock{Type: "TextBlock", Text: text, Wrap: &wrapped},
	})
}

type cellOpts struct {
	bold  bool
	color string
	width string
	wrap  bool
}

func cell(text string, o cellOpts) Column {
	maxLines := 1
	if o.wrap {
		maxLines = 0
	}
	block := TextBlock{
		Type:     "TextBlock",
		Text:     text,
		Wrap:     &o.wrap,
		MaxLines: &maxLines,
		Size:     "Small",
		Spacing:  "Small",
		Color:    o.color,
	}
	if o.bold {
		block.Weight = "Bolder"
	}
	width := o.width
	if width == "" {
		width = "auto"
	}
	return Column{Type: "Column", Width: width, Items: []Element{block}}
}

type CardRenderer struct {
	RowsPerCard int
}

func (r CardRenderer) rowsPerCard() int {
	if r.RowsPerCard <= 0 {
		return DefaultRowsPerCard
	}
	return r.RowsPerCard
}

// Render pages the table into one card per RowsPerCard rows. An empty table
// renders as a single "no offenders" card.
func (r CardRenderer) Render(account string, t Table) []Message {
	title := fmt.Sprintf("%s - Compute (CPU/Mem/Disk)", account)
	if len(t.Rows) == 0 {
		return []Message{SimpleCard(title, emptyMessage)}
	}

	size := r.rowsPerCard()
	cards := make([]Message, 0, (len(t.Rows)+size-1)/size)
	for start := 0; start < len(t.Rows); start += size {
		end := min(start+size, len(t.Rows))
		cards = append(cards, newMessage(r.page(title, t.Header, t.Rows[start:end])))
	}
	return cards
}

func (r CardRenderer) page(title string, header []string, rows []Row) []Element {
	headerCols := make([]Column, 0, len(header))
	for i, h := range header {
		headerCols = append(headerCols, cell(h, cellOpts{bold: true, width: width(i)}))
	}

	body := []Element{
		TextBlock{Type: "TextBlock", Text: title + " - ⚠️ Offenders", Weight: "Bolder", Size: "Medium"},
		ColumnSet{Type: "ColumnSet", Separator: true, Spacing: "Medium", Columns: headerCols},
	}
	for _, row := range rows {
		cols := []Column{cell(row.Identity(), cellOpts{width: width(0), wrap: true})}
		for i, c := range row.Metrics() {
			cols = append(cols, cell(c.Text, cellOpts{width: width(i + 1), color: c.Style.Color}))
		}
		body = append(body, ColumnSet{Type: "ColumnSet", Columns: cols})
	}
	return body
}

func width(i int) string {
	if i < len(columnWidths) {
		return columnWidths[i]
	}
	return "auto"
}
