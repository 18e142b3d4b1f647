// This file contains the attribute keys shared by every log call in binclass.
// Keys follow a hierarchical naming convention ("model.name", "data.samples")
// so that records from the estimators, the evaluator and the page controller
// can be filtered the same way.

package log

// Model and Operation Context
const (
	// ModelNameKey identifies the type of machine learning model.
	// Examples: "SVC", "LogisticRegression", "RandomForestClassifier"
	ModelNameKey = "model.name"

	// EstimatorIDKey identifies one classify action (a fresh model instance).
	EstimatorIDKey = "estimator.id"

	// OperationKey specifies the machine learning operation being performed.
	OperationKey = "ml.operation"

	// ComponentKey identifies which component or package is logging.
	ComponentKey = "ml.component"

	// PhaseKey indicates the phase of the model lifecycle.
	PhaseKey = "ml.phase"
)

// Data Shape and Characteristics
const (
	// SamplesKey indicates the number of samples (rows) in the dataset.
	SamplesKey = "data.samples"

	// FeaturesKey indicates the number of features (columns) in the dataset.
	FeaturesKey = "data.features"

	// DataPathKey is the path of the dataset file.
	DataPathKey = "data.path"

	// TestSamplesKey is the size of the holdout split.
	TestSamplesKey = "data.test_samples"
)

// Performance Metrics
const (
	// DurationMsKey records the execution time of an operation in milliseconds.
	DurationMsKey = "perf.duration_ms"

	// AccuracyKey records model accuracy on the holdout split.
	AccuracyKey = "metrics.accuracy"

	// PrecisionKey records precision for the positive class.
	PrecisionKey = "metrics.precision"

	// RecallKey records recall for the positive class.
	RecallKey = "metrics.recall"

	// LossKey records the loss value of an iterative solver.
	LossKey = "metrics.loss"

	// IterationKey records the number of solver iterations.
	IterationKey = "training.iteration"
)

// Prediction and Output Context
const (
	// PredsKey indicates the number of predictions made.
	PredsKey = "preds.count"

	// PlotKindsKey lists the requested diagnostic plots.
	PlotKindsKey = "preds.plot_kinds"
)

// Error and Warning Context
const (
	// ErrorTypeKey categorizes the type of error encountered.
	ErrorTypeKey = "error.type"

	// ErrorDetailKey carries the structured fields of an error implementing
	// zerolog.LogObjectMarshaler.
	ErrorDetailKey = "error.detail"
)

// Hyperparameters and Configuration
const (
	// HyperParamsKey contains model hyperparameters as a structured object.
	HyperParamsKey = "model.hyperparams"

	// RandomSeedKey records the random seed for reproducibility.
	RandomSeedKey = "config.random_seed"
)

// HTTP request context
const (
	// HTTPMethodKey is the request method.
	HTTPMethodKey = "http.method"

	// HTTPPathKey is the request path.
	HTTPPathKey = "http.path"

	// HTTPStatusKey is the response status code.
	HTTPStatusKey = "http.status"
)

// Standard attribute values.
const (
	OperationFit     = "fit"
	OperationPredict = "predict"
	OperationScore   = "score"
	OperationLoad    = "load"
	OperationSplit   = "split"
	OperationRender  = "render"

	PhaseTraining      = "training"
	PhaseTesting       = "testing"
	PhasePreprocessing = "preprocessing"
)
