// Package binclass is an interactive binary classification demo on the
// mushrooms dataset, built on a small scikit-learn-like library for Go.
//
// A user picks one of three classifiers, sets its hyperparameters and asks for
// diagnostic plots. The classifier is trained on a fixed 80/20 split of the
// label-encoded dataset and the holdout accuracy, precision and recall are
// reported together with the requested figures.
//
// # Quick Start
//
// Serve the page:
//
//	go run ./cmd/binclass serve
//
// Or classify in the terminal:
//
//	go run ./cmd/binclass classify --classifier random_forest --n-estimators 200 --max-depth 5 \
//	    --plots confusion_matrix,roc_curve --out figures
//
// The library can be used on its own:
//
//	clf := ensemble.NewRandomForestClassifier(
//	    ensemble.WithNEstimators(100),
//	    ensemble.WithMaxDepth(5),
//	    ensemble.WithRandomState(0),
//	)
//	if err := clf.Fit(split.XTrain, split.YTrain); err != nil {
//	    log.Fatal(err)
//	}
//	yPred, err := clf.Predict(split.XTest)
//
// # Packages
//
// The library is organized into several packages:
//
//   - sklearn/svm: support vector classifier (SMO, rbf and linear kernels)
//   - sklearn/linear_model: L2-regularized logistic regression (L-BFGS)
//   - sklearn/tree, sklearn/ensemble: decision trees and random forests
//   - metrics: accuracy, precision, recall, confusion matrix, ROC and PR curves
//   - preprocessing: label encoding
//   - model_selection: seeded train/test split
//   - plotting: confusion matrix, ROC and PR figures on gonum/plot
//   - core/model, core/parallel: estimator state and parallel helpers
//   - pkg/errors, pkg/log: error taxonomy and structured logging
//
// The application lives under internal/ and the command under cmd/binclass.
//
// # License
//
// binclass is released under the MIT License.
package binclass
