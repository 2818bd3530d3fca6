package domain

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"
	"text/template"

	"github.com/pelletier/go-toml/v2"
)

//go:embed prompts.toml
var promptsTOML []byte

type promptFile struct {
	IPC struct {
		System string `toml:"system"`
		Header string `toml:"header"`
	} `toml:"ipc"`
	Summary struct {
		System string `toml:"system"`
		Prompt string `toml:"prompt"`
	} `toml:"summary"`
	Classify struct {
		System string `toml:"system"`
		Prompt string `toml:"prompt"`
	} `toml:"classify"`
}

type promptTemplates struct {
	ipcSystem      *template.Template
	ipcHeader      *template.Template
	summarySystem  string
	summaryPrompt  *template.Template
	classifySystem string
	classifyPrompt *template.Template
}

var templates = mustLoadTemplates(promptsTOML)

func mustLoadTemplates(data []byte) promptTemplates {
	var file promptFile
	if err := toml.Unmarshal(data, &file); err != nil {
		panic(fmt.Errorf("parse prompts: %w", err))
	}
	return promptTemplates{
		ipcSystem:      template.Must(template.New("ipc.system").Parse(file.IPC.System)),
		ipcHeader:      template.Must(template.New("ipc.header").Parse(file.IPC.Header)),
		summarySystem:  file.Summary.System,
		summaryPrompt:  template.Must(template.New("summary.prompt").Parse(file.Summary.Prompt)),
		classifySystem: file.Classify.System,
		classifyPrompt: template.Must(template.New("classify.prompt").Parse(file.Classify.Prompt)),
	}
}

// ComposerOptions fixes the run-level inputs to prompt composition.
type ComposerOptions struct {
	BackdateMonths int
	// LegacyTitleEcho appends a second, title-only listing of the articles
	// after the full listing, reproducing older prompts byte for byte.
	LegacyTitleEcho bool
}

// Composer builds model prompts. It holds no mutable state and is safe for
// concurrent use.
type Composer struct {
	opts ComposerOptions
}

// NewComposer creates a Composer.
func NewComposer(opts ComposerOptions) *Composer {
	return &Composer{opts: opts}
}

type headerData struct {
	District         string
	PredictionPeriod string
	BackdateMonths   int
}

// Compose renders the prediction prompt for a district. The output is a pure
// function of the options and the request.
func (c *Composer) Compose(req PredictionRequest) (Prompt, error) {
	data := headerData{
		District:         req.District,
		PredictionPeriod: req.PredictionPeriod,
		BackdateMonths:   c.opts.BackdateMonths,
	}
	system, err := render(templates.ipcSystem, data)
	if err != nil {
		return Prompt{}, err
	}
	header, err := render(templates.ipcHeader, data)
	if err != nil {
		return Prompt{}, err
	}

	var b strings.Builder
	b.WriteString(header)
	if req.Summary != "" {
		b.WriteString("Summary: ")
		b.WriteString(req.Summary)
	} else {
		b.WriteString(articleBlocks(req.Articles, true))
		if c.opts.LegacyTitleEcho {
			b.WriteString(articleBlocks(req.Articles, false))
		}
	}
	b.WriteString("\n\n")
	b.WriteString(weatherLines(req.Weather))

	return Prompt{System: system, User: b.String()}, nil
}

// ComposeSummaryRequest renders the first stage of two-stage prediction.
func (c *Composer) ComposeSummaryRequest(district string, articles []Article) (Prompt, error) {
	head, err := render(templates.summaryPrompt, headerData{District: district})
	if err != nil {
		return Prompt{}, err
	}
	return Prompt{
		System: templates.summarySystem,
		User:   head + articleBlocks(articles, true),
	}, nil
}

// ComposeClassification renders the location and feature prompt for one article.
func ComposeClassification(ref *Reference, content string) (Prompt, error) {
	names := make([]string, 0, len(ref.districts))
	for _, d := range ref.districts {
		names = append(names, d.Name)
	}
	head, err := render(templates.classifyPrompt, struct {
		Districts, Provinces, Features string
	}{
		Districts: strings.Join(names, ", "),
		Provinces: strings.Join(ref.provinces, ", "),
		Features:  strings.Join(ref.features, ", "),
	})
	if err != nil {
		return Prompt{}, err
	}
	return Prompt{
		System: templates.classifySystem,
		User:   head + "\nArticle:\n\"\"\"" + content + "\"\"\"",
	}, nil
}

func articleBlocks(articles []Article, withContent bool) string {
	blocks := make([]string, len(articles))
	for i, a := range articles {
		if withContent {
			blocks[i] = fmt.Sprintf("Article %d:\n%s\n%s\n%s", i+1, a.Date, a.Title, NormalizeWhitespace(a.Content))
		} else {
			blocks[i] = fmt.Sprintf("Article %d:\n%s\n%s\n", i+1, a.Date, a.Title)
		}
	}
	return strings.Join(blocks, "\n\n")
}

func weatherLines(w WeatherMonths) string {
	if len(w) == 0 {
		return "No weather data available."
	}
	lines := make([]string, 0, len(w))
	for _, month := range w.Months() {
		// encoding/json sorts map keys, so the mapping renders deterministically.
		vars, err := json.Marshal(w[month])
		if err != nil {
			vars = []byte("{}")
		}
		lines = append(lines, fmt.Sprintf("Weather data for %s: %s", month, vars))
	}
	return strings.Join(lines, "\n")
}

// NormalizeWhitespace collapses runs of whitespace to single spaces.
func NormalizeWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func render(t *template.Template, data any) (string, error) {
	var b strings.Builder
	if err := t.Execute(&b, data); err != nil {
		return "", fmt.Errorf("render %s: %w", t.Name(), err)
	}
	return b.String(), nil
}
