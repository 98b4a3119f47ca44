package layout

import "fmt"

// DemoApp is the sample application used by cmd/demo and by the serve
// endpoint when no document is posted. The widget pointers stay live:
// mutate them and the next export reflects the new values.
type DemoApp struct {
	Slider *FloatSlider
	Text   *TextInput
	Root   Component
}

func NewDemoApp() *DemoApp {
	slider := &FloatSlider{Name: "Value", Start: 0, End: 10, Value: 5}
	text := &TextInput{Name: "Name", Placeholder: "Enter something..."}
	display := Bind(func() string {
		return fmt.Sprintf("**%s**: %g", text.Value, slider.Value)
	})
	root := NewColumn(
		NewMarkdown("# Demo App"),
		NewColumn(
			NewMarkdown("## Parameters"),
			slider,
			text,
			display,
		),
		Divider{},
		NewRow(&Button{Name: "Run Report", Kind: "success"}),
	)
	return &DemoApp{Slider: slider, Text: text, Root: root}
}
