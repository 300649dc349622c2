package ml

import (
	"context"
	"fmt"

	"github.com/yungbote/cropyield-backend/internal/domain/dataset"
	domainerrors "github.com/yungbote/cropyield-backend/internal/pkg/errors"
)

// ProgressFunc receives coarse training progress as a percentage and a message.
type ProgressFunc func(pct int, msg string)

func noProgress(int, string) {}

// Result is everything a fitted pipeline needs to score new records.
type Result struct {
	ModelType   ModelType
	Target      string
	Features    []FeatureSpec
	Encoder     *Encoder
	Model       Model
	Metrics     Metrics
	Config      Config
	DatasetRows int
	LabeledRows int
}

// Train fits cfg.ModelType on the labeled records and evaluates it on a seeded hold-out split.
func Train(ctx context.Context, records []*dataset.CropRecord, cfg Config, progress ProgressFunc) (*Result, error) {
	if progress == nil {
		progress = noProgress
	}
	progress(0, "starting training pipeline")

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, &domainerrors.InsufficientDataError{Rows: 0, Min: cfg.MinRows}
	}

	views := make([]rowView, len(records))
	for i, r := range records {
		v, err := newRowView(r)
		if err != nil {
			return nil, err
		}
		views[i] = v
	}
	if err := checkTarget(views, cfg.Target); err != nil {
		return nil, err
	}

	progress(5, fmt.Sprintf("dropping rows without %q", cfg.Target))
	labeled := make([]rowView, 0, len(views))
	y := make([]float64, 0, len(views))
	for _, v := range views {
		if t, ok := v.numeric(cfg.Target); ok {
			labeled = append(labeled, v)
			y = append(y, t)
		}
	}
	if len(labeled) < cfg.MinRows {
		return nil, &domainerrors.InsufficientDataError{Rows: len(labeled), Min: cfg.MinRows}
	}

	progress(15, "selecting features")
	features, err := selectFeatures(labeled, cfg.Target, cfg.Features)
	if err != nil {
		return nil, err
	}

	progress(25, "extracting feature values")
	cells := make([][]Cell, len(labeled))
	for i, v := range labeled {
		row := make([]Cell, len(features))
		for j, f := range features {
			row[j] = v.cell(f)
		}
		cells[i] = row
	}

	progress(35, fmt.Sprintf("building model: %s", cfg.ModelType))
	algo := NewAlgorithm(cfg)

	progress(45, fmt.Sprintf("train/test split (test_size=%.2f)", cfg.TestSize))
	trainIdx, testIdx := Split(len(labeled), cfg.TestSize, cfg.Seed)
	trainCells, yTrain := pick(cells, y, trainIdx)
	testCells, yTest := pick(cells, y, testIdx)

	enc := FitEncoder(features, trainCells)
	xTrain := enc.TransformAll(trainCells)
	xTest := enc.TransformAll(testCells)

	progress(60, "fitting model")
	model, err := algo.Fit(ctx, xTrain, yTrain)
	if err != nil {
		return nil, fmt.Errorf("fit %s: %w", cfg.ModelType, err)
	}

	progress(85, "scoring hold-out set")
	yHat := make([]float64, len(xTest))
	for i, x := range xTest {
		yHat[i] = model.Predict(x)
	}
	metrics := Evaluate(yTest, yHat, cfg.Target, len(trainIdx))

	return &Result{
		ModelType:   cfg.ModelType,
		Target:      cfg.Target,
		Features:    features,
		Encoder:     enc,
		Model:       model,
		Metrics:     metrics,
		Config:      cfg,
		DatasetRows: len(records),
		LabeledRows: len(labeled),
	}, nil
}

func pick(cells [][]Cell, y []float64, idx []int) ([][]Cell, []float64) {
	outC := make([][]Cell, len(idx))
	outY := make([]float64, len(idx))
	for k, i := range idx {
		outC[k] = cells[i]
		outY[k] = y[i]
	}
	return outC, outY
}
