// Package report provides template-based rendering of evaluation reports.
package report

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"strings"
	"text/template"

	"github.com/distill-go/distill/evaluator"
)

// Engine renders report templates using Go text/template with custom functions.
type Engine struct {
	leftDelim  string
	rightDelim string
	funcMap    template.FuncMap
}

// EngineOption configures the engine.
type EngineOption func(*Engine)

// WithDelims sets custom delimiters (default "{{" and "}}").
func WithDelims(left, right string) EngineOption {
	return func(e *Engine) {
		e.leftDelim = left
		e.rightDelim = right
	}
}

// WithFuncMap adds custom template functions.
func WithFuncMap(fm template.FuncMap) EngineOption {
	return func(e *Engine) {
		for k, v := range fm {
			e.funcMap[k] = v
		}
	}
}

// NewEngine creates a new report engine with default or custom options.
func NewEngine(opts ...EngineOption) *Engine {
	e := &Engine{
		leftDelim:  "{{",
		rightDelim: "}}",
		funcMap:    defaultFuncMap(),
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

func defaultFuncMap() template.FuncMap {
	return template.FuncMap{
		"join":  strings.Join,
		"upper": strings.ToUpper,
		"lower": strings.ToLower,
		"trim":  strings.TrimSpace,
		"f4":    f4Func,
		"pct":   pctFunc,
	}
}

func f4Func(v float64) string {
	return strconv.FormatFloat(v, 'f', 4, 64)
}

func pctFunc(v float64) string {
	return strconv.FormatFloat(v*100, 'f', 1, 64) + "%"
}

// Summary is the data passed to report templates.
type Summary struct {
	Model   string
	Epoch   int
	Steps   int
	Metrics evaluator.Metrics
	Extra   map[string]interface{}
}

// DefaultTemplate is a plain-text summary of one evaluation.
const DefaultTemplate = `Evaluation report for {{.Model}}
Epoch: {{.Epoch}}  Steps: {{.Steps}}
{{range $k, $v := .Metrics}}{{$k}}: {{f4 $v}}
{{end}}`

// Render executes a template string with the given summary.
func (e *Engine) Render(ctx context.Context, tpl string, s Summary) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	default:
	}
	if tpl == "" {
		tpl = DefaultTemplate
	}
	out, err := e.execute(tpl, s)
	if err != nil {
		return "", fmt.Errorf("report render: %w", err)
	}
	return out, nil
}

// execute parses and executes a single template string with data.
func (e *Engine) execute(tpl string, data interface{}) (string, error) {
	t, err := template.New("").Delims(e.leftDelim, e.rightDelim).Funcs(e.funcMap).Parse(tpl)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
