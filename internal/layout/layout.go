package layout

import (
	"bufio"
	"fmt"
	"html/template"
	"os"
	"regexp"
	"strconv"
	"strings"
)

// Version is the framework release exported documents are pinned to.
// The CDN rewrite in internal/capture keys off it.
const Version = "0.4.2"

// DocumentTitle is used for exported standalone documents.
const DocumentTitle = "Halide App"

// Component is anything that can render itself into an exported document.
// Widgets render their *current* value, so an export taken from inside a
// callback reflects live application state.
type Component interface {
	HTML() template.HTML
}

// Column stacks children vertically.
type Column struct {
	Children []Component
}

func NewColumn(children ...Component) *Column {
	return &Column{Children: children}
}

func (c *Column) HTML() template.HTML {
	return container("hl-column", c.Children)
}

// Row lays children out horizontally.
type Row struct {
	Children []Component
}

func NewRow(children ...Component) *Row {
	return &Row{Children: children}
}

func (r *Row) HTML() template.HTML {
	return container("hl-row", r.Children)
}

// Divider is a horizontal rule between sections.
type Divider struct{}

func (Divider) HTML() template.HTML {
	return `<hr class="hl-divider">`
}

// FloatSlider is a numeric range widget.
type FloatSlider struct {
	Name  string
	Start float64
	End   float64
	Step  float64
	Value float64
}

func (s *FloatSlider) HTML() template.HTML {
	step := s.Step
	if step <= 0 {
		step = 0.1
	}
	return template.HTML(fmt.Sprintf(
		`<div class="hl-widget hl-slider"><label>%s: %s</label>`+
			`<input type="range" min="%s" max="%s" step="%s" value="%s"></div>`,
		template.HTMLEscapeString(s.Name), num(s.Value),
		num(s.Start), num(s.End), num(step), num(s.Value)))
}

// TextInput is a single-line text widget.
type TextInput struct {
	Name        string
	Placeholder string
	Value       string
}

func (t *TextInput) HTML() template.HTML {
	return template.HTML(fmt.Sprintf(
		`<div class="hl-widget hl-input"><label>%s</label>`+
			`<input type="text" placeholder="%s" value="%s"></div>`,
		template.HTMLEscapeString(t.Name),
		template.HTMLEscapeString(t.Placeholder),
		template.HTMLEscapeString(t.Value)))
}

// Button is a clickable action widget. Kind maps to a style variant
// such as "success" or "danger"; empty means the default style.
type Button struct {
	Name string
	Kind string
}

func (b *Button) HTML() template.HTML {
	kind := b.Kind
	if kind == "" {
		kind = "default"
	}
	return template.HTML(fmt.Sprintf(
		`<button class="hl-button hl-button-%s" type="button">%s</button>`,
		template.HTMLEscapeString(kind), template.HTMLEscapeString(b.Name)))
}

// Markdown renders a constrained markdown subset: #/## headings,
// **bold** spans, and paragraphs. Source is re-evaluated on every
// export, which is what makes Bind panes live.
type Markdown struct {
	Source func() string
}

func NewMarkdown(text string) *Markdown {
	return &Markdown{Source: func() string { return text }}
}

// Bind returns a markdown pane whose content is recomputed at export
// time, typically from the current values of other widgets.
func Bind(f func() string) *Markdown {
	return &Markdown{Source: f}
}

func (m *Markdown) HTML() template.HTML {
	src := ""
	if m.Source != nil {
		src = m.Source()
	}
	var b strings.Builder
	b.WriteString(`<div class="hl-markdown">`)
	scanner := bufio.NewScanner(strings.NewReader(src))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
		case strings.HasPrefix(line, "## "):
			b.WriteString("<h2>" + inline(strings.TrimPrefix(line, "## ")) + "</h2>")
		case strings.HasPrefix(line, "# "):
			b.WriteString("<h1>" + inline(strings.TrimPrefix(line, "# ")) + "</h1>")
		default:
			b.WriteString("<p>" + inline(line) + "</p>")
		}
	}
	b.WriteString(`</div>`)
	return template.HTML(b.String())
}

var boldPattern = regexp.MustCompile(`\*\*([^*]+)\*\*`)

func inline(text string) string {
	escaped := template.HTMLEscapeString(text)
	return boldPattern.ReplaceAllString(escaped, "<strong>$1</strong>")
}

func container(class string, children []Component) template.HTML {
	var b strings.Builder
	b.WriteString(`<div class="` + class + `">`)
	for _, child := range children {
		b.WriteString(string(child.HTML()))
	}
	b.WriteString(`</div>`)
	return template.HTML(b.String())
}

func num(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// documentTmpl is the standalone export shell. The runtime script is
// inlined; framework stylesheets are referenced relatively, the same
// paths the framework's own HTTP server serves them under.
var documentTmpl = template.Must(template.New("document").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<link rel="stylesheet" href="static/extensions/halide/css/widgets.css?v={{.Version}}">
<link rel="stylesheet" href="static/extensions/halide/css/markdown.css?v={{.Version}}">
<style>{{.BaseCSS}}</style>
<script>{{.Runtime}}</script>
</head>
<body>
<div class="hl-root">
{{.Body}}
</div>
</body>
</html>
`))

// baseCSS keeps an exported document legible even before the CDN
// stylesheets load.
const baseCSS = template.CSS(`
.hl-root { font-family: Helvetica, Arial, sans-serif; margin: 1.5rem; }
.hl-column > * { display: block; margin-bottom: 0.75rem; }
.hl-row { display: flex; gap: 0.75rem; align-items: center; }
.hl-widget label { display: block; font-size: 0.85rem; margin-bottom: 0.2rem; }
.hl-button-success { background: #28a745; color: #fff; }
.hl-divider { border: none; border-top: 1px solid #ccc; }
`)

// runtimeJS marks the document as an export so widgets stay inert.
const runtimeJS = template.JS(`window.__halide = { version: "` + Version + `", exported: true };`)

// Save writes a standalone HTML document for the component's current
// state. Widget values are read at call time.
func Save(c Component, path string) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()
	return documentTmpl.Execute(file, struct {
		Title   string
		Version string
		BaseCSS template.CSS
		Runtime template.JS
		Body    template.HTML
	}{
		Title:   DocumentTitle,
		Version: Version,
		BaseCSS: baseCSS,
		Runtime: runtimeJS,
		Body:    c.HTML(),
	})
}
