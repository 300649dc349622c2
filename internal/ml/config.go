package ml

import (
	"strings"

	"github.com/yungbote/cropyield-backend/internal/domain/dataset"
	domainerrors "github.com/yungbote/cropyield-backend/internal/pkg/errors"
)

type ModelType string

const (
	ModelLinear       ModelType = "linear"
	ModelRandomForest ModelType = "random-forest"
)

func ParseModelType(s string) (ModelType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "random-forest", "random_forest", "randomforest", "rf", "forest":
		return ModelRandomForest, nil
	case "linear", "linear_regression", "linear-regression", "ols":
		return ModelLinear, nil
	}
	return "", domainerrors.Config("unknown model type %q (want linear or random-forest)", s)
}

// ForestParams are the random-forest hyperparameters. MaxDepth 0 grows trees
// until leaves are pure; MaxFeatures 0 considers every feature at each split.
type ForestParams struct {
	NEstimators    int `json:"n_estimators"`
	MaxDepth       int `json:"max_depth"`
	MinSamplesLeaf int `json:"min_samples_leaf"`
	MaxFeatures    int `json:"max_features"`
}

type Config struct {
	Target    string       `json:"target"`
	ModelType ModelType    `json:"model_type"`
	Features  []string     `json:"features,omitempty"`
	TestSize  float64      `json:"test_size"`
	Seed      int64        `json:"random_state"`
	MinRows   int          `json:"min_rows"`
	Forest    ForestParams `json:"forest"`
}

func DefaultConfig() Config {
	return Config{
		Target:    dataset.ColYield,
		ModelType: ModelRandomForest,
		TestSize:  0.2,
		Seed:      42,
		MinRows:   10,
		Forest: ForestParams{
			NEstimators:    300,
			MaxDepth:       16,
			MinSamplesLeaf: 1,
		},
	}
}

// Validate normalizes the config in place and reports the first problem as a ConfigError.
func (c *Config) Validate() error {
	mt, err := ParseModelType(string(c.ModelType))
	if err != nil {
		return err
	}
	c.ModelType = mt
	c.Target = strings.TrimSpace(c.Target)
	if c.Target == "" {
		c.Target = dataset.ColYield
	}
	if c.TestSize <= 0 || c.TestSize > 0.5 {
		return domainerrors.Config("test_size must be in (0, 0.5], got %v", c.TestSize)
	}
	if c.MinRows < 2 {
		c.MinRows = 2
	}
	if c.ModelType == ModelRandomForest {
		if c.Forest.NEstimators < 1 {
			return domainerrors.Config("n_estimators must be positive, got %d", c.Forest.NEstimators)
		}
		if c.Forest.MaxDepth < 0 || c.Forest.MaxFeatures < 0 {
			return domainerrors.Config("max_depth and max_features must not be negative")
		}
		if c.Forest.MinSamplesLeaf < 1 {
			c.Forest.MinSamplesLeaf = 1
		}
	}
	return nil
}
