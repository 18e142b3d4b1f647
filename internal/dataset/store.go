package dataset

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/YuminosukeSato/binclass/model_selection"
	"github.com/YuminosukeSato/binclass/pkg/errors"
	"github.com/YuminosukeSato/binclass/pkg/log"
)

// SplitOptions configures the holdout split memoized by Store.
type SplitOptions struct {
	TestSize    float64
	RandomState uint64
	Stratify    bool
}

// DefaultSplitOptions is the 80/20 split with seed 0.
func DefaultSplitOptions() SplitOptions {
	return SplitOptions{TestSize: model_selection.DefaultTestSize}
}

// Store memoizes the encoded dataset and its split for the process lifetime.
// Both values are immutable once computed and may be shared across goroutines.
type Store struct {
	path        string
	labelColumn string
	split       SplitOptions
	logger      log.Logger

	loadOnce sync.Once
	ds       *Dataset
	loadErr  error

	mu     sync.RWMutex
	splits map[string]*model_selection.Split // keyed by Dataset.Fingerprint
	group  singleflight.Group
}

// NewStore creates a Store; nothing is read until the first Get.
func NewStore(path, labelColumn string, split SplitOptions) *Store {
	return &Store{
		path:        path,
		labelColumn: labelColumn,
		split:       split,
		logger:      log.GetLoggerWithName("dataset"),
		splits:      make(map[string]*model_selection.Split),
	}
}

// Path returns the configured dataset path
func (s *Store) Path() string { return s.path }

// Get loads and encodes the dataset once. Later calls return the same *Dataset,
// or the same error if the first load failed.
func (s *Store) Get(ctx context.Context) (*Dataset, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.loadOnce.Do(func() {
		start := time.Now()
		s.ds, s.loadErr = Load(s.path, s.labelColumn)
		if s.loadErr != nil {
			s.logger.Error("dataset unavailable", s.loadErr, log.DataPathKey, s.path)
			return
		}
		s.logger.Info("dataset loaded",
			log.DataPathKey, s.path,
			log.SamplesKey, s.ds.NRows(),
			log.FeaturesKey, s.ds.NFeatures(),
			"fingerprint", s.ds.Fingerprint()[:12],
			log.DurationMsKey, time.Since(start).Milliseconds())
	})
	return s.ds, s.loadErr
}

// Split returns the holdout split of the dataset, computed once per fingerprint.
func (s *Store) Split(ctx context.Context) (*model_selection.Split, error) {
	ds, err := s.Get(ctx)
	if err != nil {
		return nil, err
	}
	return s.SplitOf(ds)
}

// SplitOf returns the memoized split of ds.
func (s *Store) SplitOf(ds *Dataset) (*model_selection.Split, error) {
	key := ds.Fingerprint()
	s.mu.RLock()
	cached, ok := s.splits[key]
	s.mu.RUnlock()
	if ok {
		return cached, nil
	}

	v, err, _ := s.group.Do(key, func() (interface{}, error) {
		s.mu.RLock()
		cached, ok := s.splits[key]
		s.mu.RUnlock()
		if ok {
			return cached, nil
		}

		split, err := model_selection.TrainTestSplit(ds.Features(), ds.LabelVector(),
			model_selection.WithTestSize(s.split.TestSize),
			model_selection.WithRandomState(s.split.RandomState),
			model_selection.WithStratify(s.split.Stratify),
		)
		if err != nil {
			return nil, errors.Wrap(err, "splitting dataset")
		}

		s.mu.Lock()
		s.splits[key] = split
		s.mu.Unlock()

		s.logger.Debug("dataset split",
			log.SamplesKey, len(split.TrainIndices),
			log.TestSamplesKey, len(split.TestIndices),
			"random_state", s.split.RandomState)
		return split, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*model_selection.Split), nil
}
