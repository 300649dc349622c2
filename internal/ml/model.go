package ml

import (
	"context"
	"encoding/gob"
)

// Model is a fitted regressor over encoded feature vectors.
type Model interface {
	Predict(x []float64) float64
}

// Algorithm fits a Model. Implementations must be deterministic for a given input.
type Algorithm interface {
	Fit(ctx context.Context, X [][]float64, y []float64) (Model, error)
}

func NewAlgorithm(cfg Config) Algorithm {
	if cfg.ModelType == ModelLinear {
		return LinearRegression{}
	}
	return RandomForest{Params: cfg.Forest, Seed: cfg.Seed}
}

func init() {
	gob.Register(&LinearModel{})
	gob.Register(&Forest{})
}
