package report

import (
	"context"
	"strings"
	"testing"
	"text/template"

	"github.com/distill-go/distill/evaluator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEngine_DefaultTemplate(t *testing.T) {
	e := NewEngine()
	out, err := e.Render(context.Background(), "", Summary{
		Model:   "student-1",
		Epoch:   2,
		Steps:   100,
		Metrics: evaluator.Metrics{"en-de_negative_mse": -3.14159},
	})
	require.NoError(t, err)
	assert.Contains(t, out, "Evaluation report for student-1")
	assert.Contains(t, out, "Epoch: 2  Steps: 100")
	assert.Contains(t, out, "en-de_negative_mse: -3.1416")
}

func TestEngine_CustomTemplate(t *testing.T) {
	e := NewEngine()
	out, err := e.Render(context.Background(), "{{upper .Model}} {{pct (index .Metrics \"acc\")}}", Summary{
		Model:   "student-1",
		Metrics: evaluator.Metrics{"acc": 0.925},
	})
	require.NoError(t, err)
	assert.Equal(t, "STUDENT-1 92.5%", out)
}

func TestEngine_CustomDelims(t *testing.T) {
	e := NewEngine(WithDelims("<%", "%>"))
	out, err := e.Render(context.Background(), "model=<%.Model%>", Summary{Model: "m"})
	require.NoError(t, err)
	assert.Equal(t, "model=m", out)
}

func TestEngine_CustomFuncs(t *testing.T) {
	e := NewEngine(WithFuncMap(template.FuncMap{
		"rev": func(s string) string {
			r := []rune(s)
			for i, j := 0, len(r)-1; i < j; i, j = i+1, j-1 {
				r[i], r[j] = r[j], r[i]
			}
			return string(r)
		},
	}))
	out, err := e.Render(context.Background(), "{{rev .Model}}", Summary{Model: "abc"})
	require.NoError(t, err)
	assert.Equal(t, "cba", out)
}

func TestEngine_ParseError(t *testing.T) {
	e := NewEngine()
	_, err := e.Render(context.Background(), "{{.Model", Summary{})
	require.Error(t, err)
	assert.True(t, strings.HasPrefix(err.Error(), "report render:"))
}

func TestEngine_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewEngine().Render(ctx, "{{.Model}}", Summary{})
	assert.ErrorIs(t, err, context.Canceled)
}
