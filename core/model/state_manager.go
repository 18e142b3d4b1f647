package model

import (
	"sync"

	"github.com/YuminosukeSato/binclass/pkg/errors"
)

// StateManager manages the fitted state of a model in a thread-safe manner.
// Estimators embed it by composition instead of a BaseEstimator.
type StateManager struct {
	mu     sync.RWMutex
	fitted bool

	nFeatures int
	nSamples  int
}

// NewStateManager creates a new StateManager instance.
func NewStateManager() *StateManager {
	return &StateManager{}
}

// IsFitted returns whether the model has been fitted.
func (s *StateManager) IsFitted() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.fitted
}

// SetFitted marks the model as fitted.
func (s *StateManager) SetFitted() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fitted = true
}

// Reset resets the fitted state.
func (s *StateManager) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fitted = false
	s.nFeatures = 0
	s.nSamples = 0
}

// SetDimensions sets the number of features and samples seen during fitting.
func (s *StateManager) SetDimensions(nFeatures, nSamples int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nFeatures = nFeatures
	s.nSamples = nSamples
}

// GetDimensions returns the number of features and samples seen during fitting.
func (s *StateManager) GetDimensions() (nFeatures, nSamples int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nFeatures, s.nSamples
}

// RequireFitted returns a NotFittedError if the model has not been fitted.
func (s *StateManager) RequireFitted(modelName, method string) error {
	if !s.IsFitted() {
		return errors.NewNotFittedError(modelName, method)
	}
	return nil
}

// CheckFeatures returns a DimensionError when X does not have the number of
// columns seen during fitting.
func (s *StateManager) CheckFeatures(op string, nFeatures int) error {
	want, _ := s.GetDimensions()
	if want != nFeatures {
		return errors.NewDimensionError(op, want, nFeatures, 1)
	}
	return nil
}
