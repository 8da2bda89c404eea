package worker

import (
	"bytes"
	"fmt"
	"html/template"
)

// palettes 把档案的配色标识映射为打印样式用的颜色组。
// 未知标识回落到 clean-blue。
var palettes = map[string]struct {
	Accent string
	Text   string
	Muted  string
}{
	"clean-blue": {Accent: "#2563eb", Text: "#1f2937", Muted: "#6b7280"},
	"ink":        {Accent: "#111827", Text: "#111827", Muted: "#4b5563"},
	"forest":     {Accent: "#166534", Text: "#1f2937", Muted: "#6b7280"},
	"plum":       {Accent: "#7c3aed", Text: "#1f2937", Muted: "#6b7280"},
}

var printTemplate = template.Must(template.New("print").Parse(`<!DOCTYPE html>
<html lang="{{.Locale}}">
<head>
<meta charset="utf-8">
<style>
  @page { size: A4; margin: 18mm 16mm; }
  body { font-family: "Helvetica Neue", "PingFang SC", "Microsoft YaHei", sans-serif;
         color: {{.Text}}; margin: 0; }
  header { border-bottom: 2px solid {{.Accent}}; padding-bottom: 8px; margin-bottom: 16px; }
  h1 { margin: 0; font-size: 22pt; color: {{.Accent}}; }
  .headline { font-size: 12pt; color: {{.Muted}}; margin-top: 2px; }
  .contacts { font-size: 9pt; color: {{.Muted}}; margin-top: 6px; }
  section { margin-bottom: 14px; {{if .TwoColumn}}break-inside: avoid;{{end}} }
  {{if .TwoColumn}}main { column-count: 2; column-gap: 24px; }{{end}}
  h2 { font-size: 12pt; color: {{.Accent}}; border-bottom: 1px solid {{.Accent}};
       padding-bottom: 2px; margin: 0 0 6px; }
  .entry { margin-bottom: 8px; }
  .entry-head { display: flex; justify-content: space-between; font-size: 10pt; font-weight: 600; }
  .entry-sub { font-size: 9pt; color: {{.Muted}}; }
  .entry-detail { font-size: 9pt; margin-top: 2px; white-space: pre-wrap; }
  .period { font-weight: 400; color: {{.Muted}}; }
</style>
</head>
<body>
<header>
  <h1>{{.Name}}</h1>
  {{if .Headline}}<div class="headline">{{.Headline}}</div>{{end}}
  {{if .Contacts}}<div class="contacts">{{range $i, $c := .Contacts}}{{if $i}} · {{end}}{{if $.ShowIcons}}• {{end}}{{$c}}{{end}}</div>{{end}}
</header>
<main>
{{range .Sections}}
<section>
  <h2>{{.Title}}</h2>
  {{range .Items}}
  <div class="entry">
    <div class="entry-head"><span>{{.Heading}}</span>{{if .Period}}<span class="period">{{.Period}}</span>{{end}}</div>
    {{if .Sub}}<div class="entry-sub">{{.Sub}}</div>{{end}}
    {{if .Detail}}<div class="entry-detail">{{.Detail}}</div>{{end}}
  </div>
  {{end}}
</section>
{{end}}
</main>
</body>
</html>`))

type printTemplateInput struct {
	Locale    string
	Name      string
	Headline  string
	Contacts  []string
	Sections  []printSection
	Accent    string
	Text      string
	Muted     string
	ShowIcons bool
	TwoColumn bool
}

type printSection struct {
	Title string
	Items []printEntry
}

type printEntry struct {
	Heading string
	Sub     string
	Period  string
	Detail  string
}

// renderPrintHTML 把打印输入渲染成最终 HTML。
func renderPrintHTML(data *PrintData) (string, error) {
	palette, ok := palettes[data.Palette]
	if !ok {
		palette = palettes["clean-blue"]
	}

	name := data.Document.Basics.Name
	if name == "" {
		name = data.ProfileName
	}

	input := printTemplateInput{
		Locale:    data.Locale,
		Name:      name,
		Headline:  data.Document.Basics.Headline,
		Contacts:  data.Document.Basics.Contacts,
		Accent:    palette.Accent,
		Text:      palette.Text,
		Muted:     palette.Muted,
		ShowIcons: data.ShowIcons,
		TwoColumn: data.Layout == "compact",
	}
	for _, s := range data.Document.Sections {
		section := printSection{Title: s.Title}
		for _, e := range s.Items {
			section.Items = append(section.Items, printEntry(e))
		}
		input.Sections = append(input.Sections, section)
	}

	var buf bytes.Buffer
	if err := printTemplate.Execute(&buf, input); err != nil {
		return "", fmt.Errorf("render print template: %w", err)
	}
	return buf.String(), nil
}
