// Package terminal is the command-line face of the page: an interactive form
// for the selection and styled output for the report and the raw data view.
package terminal

import (
	"io"
	"net/url"
	"os"
	"strconv"

	"github.com/charmbracelet/huh"
	"golang.org/x/term"

	"github.com/YuminosukeSato/binclass/internal/app"
	"github.com/YuminosukeSato/binclass/internal/form"
	"github.com/YuminosukeSato/binclass/pkg/errors"
)

// Prompter collects a selection with huh forms.
type Prompter struct {
	in  io.Reader
	out io.Writer
}

// NewPrompter creates a Prompter reading from in and drawing to out.
func NewPrompter(in io.Reader, out io.Writer) *Prompter {
	return &Prompter{in: in, out: out}
}

// accessible reports whether the input is not a terminal (tests, piped input).
func (p *Prompter) accessible() bool {
	f, ok := p.in.(*os.File)
	return !ok || !term.IsTerminal(int(f.Fd()))
}

func (p *Prompter) run(groups ...*huh.Group) error {
	f := huh.NewForm(groups...).WithInput(p.in).WithOutput(p.out)
	if p.accessible() {
		f = f.WithAccessible(true)
	}
	return f.Run()
}

// Prompt asks for the classifier, then its hyperparameters and the plots.
// The returned selection always has Classify set.
func (p *Prompter) Prompt(initial form.Algorithm) (app.Selection, error) {
	alg := string(initial)
	if !initial.Valid() {
		alg = string(form.SVM)
	}

	options := make([]huh.Option[string], 0, len(form.Algorithms()))
	for _, a := range form.Algorithms() {
		options = append(options, huh.NewOption(a.DisplayName(), string(a)))
	}
	err := p.run(huh.NewGroup(
		huh.NewSelect[string]().
			Title("Choose Classifier").
			Options(options...).
			Value(&alg),
	))
	if err != nil {
		return app.Selection{}, errors.Wrap(err, "classifier prompt failed")
	}

	a := newAnswers(form.Algorithm(alg))
	if err := p.run(a.groups()...); err != nil {
		return app.Selection{}, errors.Wrap(err, "hyperparameter prompt failed")
	}
	return a.selection(), nil
}

// answers holds the values bound to the hyperparameter form.
type answers struct {
	alg      form.Algorithm
	controls []form.Control
	values   map[string]*string
	plots    []string
	raw      bool
}

func newAnswers(alg form.Algorithm) *answers {
	a := &answers{
		alg:      alg,
		controls: form.Controls(alg),
		values:   make(map[string]*string),
	}
	for _, ctl := range a.controls {
		v := ctl.Default
		a.values[ctl.Name] = &v
	}
	return a
}

func (a *answers) groups() []*huh.Group {
	fields := make([]huh.Field, 0, len(a.controls))
	for _, ctl := range a.controls {
		if ctl.Kind == form.KindRadio {
			fields = append(fields, huh.NewSelect[string]().
				Title(ctl.Label).
				Options(huh.NewOptions(ctl.Options...)...).
				Value(a.values[ctl.Name]))
			continue
		}
		fields = append(fields, huh.NewInput().
			Title(ctl.Label).
			Description(rangeHint(ctl)).
			Value(a.values[ctl.Name]).
			Validate(validator(ctl)))
	}

	plotOptions := make([]huh.Option[string], 0, len(form.PlotKinds()))
	for _, k := range form.PlotKinds() {
		plotOptions = append(plotOptions, huh.NewOption(k.Title(), string(k)))
	}

	return []*huh.Group{
		huh.NewGroup(fields...).Title("Model Hyperparameters"),
		huh.NewGroup(
			huh.NewMultiSelect[string]().
				Title("What metrics to plot?").
				Options(plotOptions...).
				Value(&a.plots),
			huh.NewConfirm().
				Title("Show raw data").
				Value(&a.raw),
		),
	}
}

func (a *answers) selection() app.Selection {
	values := url.Values{"classifier": {string(a.alg)}}
	for name, v := range a.values {
		values.Set(name, *v)
	}
	return app.Selection{
		Algorithm: a.alg,
		Values:    values,
		Plots:     a.plots,
		ShowRaw:   a.raw,
		Classify:  true,
	}
}

func rangeHint(ctl form.Control) string {
	return formatNumber(ctl.Min) + " to " + formatNumber(ctl.Max)
}

// validator accepts numbers inside the control's range.
func validator(ctl form.Control) func(string) error {
	return func(s string) error {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return errors.Newf("%s must be a number", ctl.Name)
		}
		if v < ctl.Min || v > ctl.Max {
			return errors.Newf("%s must be between %s and %s", ctl.Name, formatNumber(ctl.Min), formatNumber(ctl.Max))
		}
		return nil
	}
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
