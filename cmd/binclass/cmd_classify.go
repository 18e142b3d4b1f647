package main

import (
	"fmt"
	"net/url"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/YuminosukeSato/binclass/internal/app"
	"github.com/YuminosukeSato/binclass/internal/form"
	"github.com/YuminosukeSato/binclass/internal/terminal"
)

type classifyOptions struct {
	classifier  string
	c           float64
	kernel      string
	gamma       string
	maxIter     int
	nEstimators int
	maxDepth    int
	bootstrap   bool
	plots       []string
	out         string
	raw         bool
	interactive bool
}

// flagControls maps command-line flags to form control names.
var flagControls = map[string]string{
	"C":            "C",
	"kernel":       "kernel",
	"gamma":        "gamma",
	"max-iter":     "max_iter",
	"n-estimators": "n_estimators",
	"max-depth":    "max_depth",
	"bootstrap":    "bootstrap",
}

func newClassifyCommand(e *env) *cobra.Command {
	opts := &classifyOptions{}

	cmd := &cobra.Command{
		Use:   "classify",
		Short: "Train one classifier and report holdout metrics",
		Long: `Train one classifier on the training split and report accuracy, precision and
recall on the holdout split. Unset hyperparameters take their page defaults.

Requested plots are written as PNG files into --out.`,
		Example: `  binclass classify --classifier svm --C 1 --kernel linear
  binclass classify --classifier random_forest --n-estimators 200 --max-depth 5 --plots roc_curve --out figures
  binclass classify --interactive`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runClassify(cmd, e, opts)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.classifier, "classifier", string(form.SVM), "Classifier: svm, logistic_regression or random_forest")
	f.Float64Var(&opts.c, "C", form.CMin, "Regularization parameter (svm, logistic_regression)")
	f.StringVar(&opts.kernel, "kernel", form.KernelRBF, "Kernel: rbf or linear (svm)")
	f.StringVar(&opts.gamma, "gamma", form.GammaScale, "Kernel coefficient: scale or auto (svm)")
	f.IntVar(&opts.maxIter, "max-iter", form.MaxIterMin, "Maximum number of iterations (logistic_regression)")
	f.IntVar(&opts.nEstimators, "n-estimators", form.NEstimatorsMin, "Number of trees (random_forest)")
	f.IntVar(&opts.maxDepth, "max-depth", form.MaxDepthMin, "Maximum depth of each tree (random_forest)")
	f.BoolVar(&opts.bootstrap, "bootstrap", true, "Bootstrap samples when building trees (random_forest)")
	f.StringSliceVar(&opts.plots, "plots", nil, "Plots to draw: confusion_matrix, roc_curve, precision_recall_curve")
	f.StringVar(&opts.out, "out", "", "Directory for PNG figures")
	f.BoolVar(&opts.raw, "raw", false, "Also print the raw data preview")
	f.BoolVarP(&opts.interactive, "interactive", "i", false, "Choose the classifier and hyperparameters in a form")

	return cmd
}

func runClassify(cmd *cobra.Command, e *env, opts *classifyOptions) error {
	var sel app.Selection
	if opts.interactive {
		var err error
		alg, _ := form.ParseAlgorithm(opts.classifier)
		sel, err = terminal.NewPrompter(cmd.InOrStdin(), cmd.ErrOrStderr()).Prompt(alg)
		if err != nil {
			return err
		}
	} else {
		sel = app.SelectionFromValues(selectionValues(cmd, opts))
		sel.Classify = true
	}

	ctrl, err := e.controller(cmd.Context())
	if err != nil {
		return err
	}
	page, err := ctrl.Page(cmd.Context(), sel)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	terminal.WriteReport(out, page)
	terminal.WriteTable(out, page.Raw)
	if page.Error != "" {
		return &ClassifyFailureError{Message: page.Error}
	}

	if opts.out != "" {
		paths, err := terminal.SaveFigures(opts.out, page.Result.Figures)
		if err != nil {
			return err
		}
		for _, p := range paths {
			fmt.Fprintln(out, "wrote", p) //nolint:errcheck
		}
	}
	return nil
}

// selectionValues builds form values from the flags set on the command line only,
// so unset hyperparameters fall back to the form defaults.
func selectionValues(cmd *cobra.Command, opts *classifyOptions) url.Values {
	values := url.Values{"classifier": {opts.classifier}}
	for flag, control := range flagControls {
		if !cmd.Flags().Changed(flag) {
			continue
		}
		values.Set(control, cmd.Flags().Lookup(flag).Value.String())
	}
	for _, p := range opts.plots {
		values.Add("metrics", p)
	}
	if opts.raw {
		values.Set("raw", strconv.FormatBool(true))
	}
	return values
}
