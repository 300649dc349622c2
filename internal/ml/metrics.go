package ml

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

type Metrics struct {
	R2      float64 `json:"r2"`
	MAE     float64 `json:"mae"`
	RMSE    float64 `json:"rmse"`
	NTrain  int     `json:"n_train"`
	NTest   int     `json:"n_test"`
	R2Text  string  `json:"r2_text"`
	MAEText string  `json:"mae_text"`
}

// Evaluate scores held-out predictions. Undefined values (R² on a constant
// test target) are reported as 0.
func Evaluate(yTrue, yPred []float64, target string, nTrain int) Metrics {
	m := Metrics{NTrain: nTrain, NTest: len(yTrue)}
	if len(yTrue) == 0 {
		return m
	}
	n := float64(len(yTrue))
	m.R2 = finite(stat.RSquaredFrom(yPred, yTrue, nil))
	m.MAE = finite(floats.Distance(yTrue, yPred, 1) / n)
	m.RMSE = finite(floats.Distance(yTrue, yPred, 2) / math.Sqrt(n))

	m.R2 = round(m.R2, 4)
	m.MAE = round(m.MAE, 3)
	m.RMSE = round(m.RMSE, 3)
	m.R2Text = fmt.Sprintf("%.2f%% of variance explained", m.R2*100)
	m.MAEText = fmt.Sprintf("%.1f %s (mean absolute error)", m.MAE, target)
	return m
}

func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
