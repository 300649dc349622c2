package artifact

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"time"

	"github.com/yungbote/cropyield-backend/internal/ml"
)

// Artifact is the persisted form of a trained pipeline: the model plus the
// exact feature list and encoder needed to score new records.
type Artifact struct {
	ModelKey    string
	Version     int
	ModelType   ml.ModelType
	Target      string
	Features    []ml.FeatureSpec
	Encoder     *ml.Encoder
	Model       ml.Model
	Config      ml.Config
	Metrics     ml.Metrics
	DatasetRows int
	LabeledRows int
	TrainedAt   time.Time
}

func FromResult(key string, res *ml.Result) *Artifact {
	return &Artifact{
		ModelKey:    key,
		ModelType:   res.ModelType,
		Target:      res.Target,
		Features:    res.Features,
		Encoder:     res.Encoder,
		Model:       res.Model,
		Config:      res.Config,
		Metrics:     res.Metrics,
		DatasetRows: res.DatasetRows,
		LabeledRows: res.LabeledRows,
		TrainedAt:   time.Now().UTC(),
	}
}

func (a *Artifact) Encode() ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(a); err != nil {
		return nil, fmt.Errorf("encode artifact: %w", err)
	}
	return buf.Bytes(), nil
}

func Decode(b []byte) (*Artifact, error) {
	a := &Artifact{}
	if err := gob.NewDecoder(bytes.NewReader(b)).Decode(a); err != nil {
		return nil, fmt.Errorf("decode artifact: %w", err)
	}
	if a.Model == nil || a.Encoder == nil {
		return nil, fmt.Errorf("decode artifact: incomplete pipeline")
	}
	return a, nil
}
