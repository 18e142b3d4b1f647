// Package app is the page controller: one pure evaluation pass per user interaction
// over the memoized dataset and split.
package app

import (
	"context"
	"net/url"
	"sync"

	"github.com/YuminosukeSato/binclass/internal/dataset"
	"github.com/YuminosukeSato/binclass/internal/evaluate"
	"github.com/YuminosukeSato/binclass/internal/form"
	"github.com/YuminosukeSato/binclass/internal/render"
	"github.com/YuminosukeSato/binclass/model_selection"
	"github.com/YuminosukeSato/binclass/pkg/errors"
	"github.com/YuminosukeSato/binclass/pkg/log"
)

//go:generate mockgen -source=app.go -destination=mock_app_test.go -package=app

const (
	Title   = "Binary Classification Web App"
	Tagline = "Are your mushrooms edible or poisonous? 🍄 Let's find out."

	DefaultPreviewRows = 100
)

// Evaluator fits and scores one fresh model.
type Evaluator interface {
	Evaluate(ctx context.Context, params form.Params, split *model_selection.Split) (*evaluate.Result, error)
}

// Renderer draws the requested figures of a result.
type Renderer interface {
	Render(res *evaluate.Result, kinds []form.PlotKind) ([]render.Figure, error)
}

// DataSource provides the memoized dataset and split.
type DataSource interface {
	Get(ctx context.Context) (*dataset.Dataset, error)
	Split(ctx context.Context) (*model_selection.Split, error)
}

// Selection is the state of every control on the page.
type Selection struct {
	Algorithm form.Algorithm
	Values    map[string][]string // hyperparameter values keyed by control name
	Plots     []string
	ShowRaw   bool
	Classify  bool
}

// ShownField names the form value carrying the algorithm whose controls were on screen.
const ShownField = "shown"

// SelectionFromValues reads a Selection from query or form values.
// Hyperparameter values submitted for another algorithm than the selected one
// (the classifier was just switched) are dropped.
func SelectionFromValues(v url.Values) Selection {
	alg := form.Algorithm(v.Get("classifier"))
	if a, err := form.ParseAlgorithm(v.Get("classifier")); err == nil {
		alg = a
	}
	values := v
	if shown := v.Get(ShownField); shown != "" && shown != string(alg) {
		values = nil
	}
	return Selection{
		Algorithm: alg,
		Values:    values,
		Plots:     v["metrics"],
		ShowRaw:   v.Get("raw") == "on" || v.Get("raw") == "true",
		Classify:  v.Get("classify") != "",
	}
}

// RawView is the optional raw data table.
type RawView struct {
	Title       string
	Description string // markdown
	Columns     []string
	Rows        [][]string
	TotalRows   int
}

// ResultView is the output of a successful classify action.
type ResultView struct {
	Heading string
	RunID   string
	Report  evaluate.Report // rounded to 2 decimals
	Raw     evaluate.Report
	Figures []render.Figure
}

// Page is everything shown for one interaction.
type Page struct {
	Title      string
	Tagline    string
	Algorithm  form.Algorithm
	Algorithms []form.Algorithm
	Controls   []form.Control
	Values     map[string]string
	PlotKinds  []form.PlotKind
	Plots      []form.PlotKind // selected
	Raw        *RawView
	Result     *ResultView
	Error      string
}

// Selected reports whether kind is among the selected plots.
func (p *Page) Selected(kind form.PlotKind) bool {
	for _, k := range p.Plots {
		if k == kind {
			return true
		}
	}
	return false
}

// Option configures a Controller.
type Option func(*Controller)

// WithPreviewRows sets the number of rows shown in the raw data view.
func WithPreviewRows(n int) Option {
	return func(c *Controller) {
		if n > 0 {
			c.previewRows = n
		}
	}
}

// WithLogger replaces the component logger.
func WithLogger(l log.Logger) Option {
	return func(c *Controller) {
		c.logger = l
	}
}

// Controller builds pages. Classify passes are serialized: one evaluation runs at a time.
type Controller struct {
	data      DataSource
	evaluator Evaluator
	renderer  Renderer

	previewRows int
	logger      log.Logger

	mu sync.Mutex
}

// New creates a Controller.
func New(data DataSource, evaluator Evaluator, renderer Renderer, opts ...Option) *Controller {
	c := &Controller{
		data:        data,
		evaluator:   evaluator,
		renderer:    renderer,
		previewRows: DefaultPreviewRows,
		logger:      log.GetLoggerWithName("app"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Page returns the page for sel. The controls of the selected algorithm are always
// present. A failed classify action yields a page with Error set and no Result;
// only an unavailable dataset or an unknown algorithm is returned as an error.
func (c *Controller) Page(ctx context.Context, sel Selection) (*Page, error) {
	alg := sel.Algorithm
	if alg == "" {
		alg = form.Algorithms()[0]
	}
	if !alg.Valid() {
		return nil, errors.NewValueError("app.Page", "unknown classifier: "+string(alg))
	}

	ds, err := c.data.Get(ctx)
	if err != nil {
		return nil, err
	}

	page := &Page{
		Title:      Title,
		Tagline:    Tagline,
		Algorithm:  alg,
		Algorithms: form.Algorithms(),
		Controls:   form.Controls(alg),
		Values:     controlValues(alg, sel.Values),
		PlotKinds:  form.PlotKinds(),
	}

	// clamped values are shown back once they decode
	params, paramErr := form.Decode(alg, sel.Values)
	if paramErr == nil {
		page.Values = params.Values()
	}

	plots, plotErr := form.ParsePlotKinds(sel.Plots)
	page.Plots = plots

	if sel.ShowRaw {
		page.Raw = &RawView{
			Title:       dataset.Title,
			Description: dataset.Description,
			Columns:     ds.Columns(),
			Rows:        ds.RawRows(c.previewRows),
			TotalRows:   ds.NRows(),
		}
	}

	if !sel.Classify {
		return page, nil
	}
	if err := errors.CombineErrors(paramErr, plotErr); err != nil {
		c.logger.Warn("invalid selection", err, log.ModelNameKey, string(alg))
		page.Error = err.Error()
		return page, nil
	}

	split, err := c.data.Split(ctx)
	if err != nil {
		return nil, err
	}
	result, err := c.classify(ctx, alg, params, plots, split)
	if err != nil {
		c.logger.Warn("classify failed", err, log.ModelNameKey, string(alg))
		page.Error = err.Error()
		return page, nil
	}
	page.Result = result
	return page, nil
}

func (c *Controller) classify(ctx context.Context, alg form.Algorithm, params form.Params,
	plots []form.PlotKind, split *model_selection.Split) (*ResultView, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	res, err := c.evaluator.Evaluate(ctx, params, split)
	if err != nil {
		return nil, err
	}
	figures, err := c.renderer.Render(res, plots)
	if err != nil {
		return nil, err
	}
	return &ResultView{
		Heading: alg.DisplayName() + " Results",
		RunID:   res.RunID,
		Report:  res.Report.Rounded(),
		Raw:     res.Report,
		Figures: figures,
	}, nil
}

// controlValues は既定値に送信された値を重ねる
func controlValues(alg form.Algorithm, submitted map[string][]string) map[string]string {
	values := make(map[string]string)
	for _, ctl := range form.Controls(alg) {
		values[ctl.Name] = ctl.Default
		if vs := submitted[ctl.Name]; len(vs) > 0 && vs[0] != "" {
			values[ctl.Name] = vs[0]
		}
	}
	return values
}
