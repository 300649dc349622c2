package ml

import (
	"errors"
	"math"

	"github.com/yungbote/cropyield-backend/internal/domain/dataset"
	domainerrors "github.com/yungbote/cropyield-backend/internal/pkg/errors"
)

// Score encodes rec exactly as at training time and returns the model's prediction.
func Score(features []FeatureSpec, enc *Encoder, model Model, rec *dataset.CropRecord) (float64, error) {
	cells, missing, invalid, err := ExtractRow(rec, features)
	if err != nil {
		return 0, err
	}
	if len(missing) > 0 {
		return 0, &domainerrors.MissingFeatureError{Fields: missing}
	}
	if len(invalid) > 0 {
		return 0, domainerrors.Validation(invalid[0], "value is not a number")
	}
	v := model.Predict(enc.Transform(cells))
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, errors.New("model produced a non-finite prediction")
	}
	return v, nil
}
