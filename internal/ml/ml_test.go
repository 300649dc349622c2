package ml

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/yungbote/cropyield-backend/internal/domain/dataset"
	domainerrors "github.com/yungbote/cropyield-backend/internal/pkg/errors"
)

func fptr(v float64) *float64 { return &v }
func iptr(v int) *int         { return &v }

// synthRecords builds n labeled records where yield depends on crop, rain and area.
func synthRecords(n int, seed int64) []*dataset.CropRecord {
	rng := rand.New(rand.NewSource(seed))
	crops := []string{"soybean", "corn", "wheat"}
	base := map[string]float64{"soybean": 3, "corn": 6, "wheat": 2.5}
	out := make([]*dataset.CropRecord, n)
	for i := range out {
		crop := crops[i%len(crops)]
		rain := 800 + rng.Float64()*600
		area := 100 + rng.Float64()*900
		y := base[crop] + 0.002*rain - 0.0005*area + rng.NormFloat64()*0.05
		out[i] = &dataset.CropRecord{
			Crop:   crop,
			Year:   iptr(2000 + i%20),
			Area:   fptr(area),
			RainMM: fptr(rain),
			Yield:  fptr(y),
		}
	}
	return out
}

func TestLinearRegressionRecoversCoefficients(t *testing.T) {
	X := [][]float64{}
	y := []float64{}
	for i := 0; i < 30; i++ {
		x1, x2 := float64(i), float64((i*7)%11)
		X = append(X, []float64{x1, x2, 0})
		y = append(y, 2+3*x1-x2)
	}
	m, err := LinearRegression{}.Fit(context.Background(), X, y)
	if err != nil {
		t.Fatalf("Fit: %v", err)
	}
	lm := m.(*LinearModel)
	want := []float64{3, -1, 0}
	for j, w := range want {
		if math.Abs(lm.Coef[j]-w) > 1e-8 {
			t.Fatalf("coef[%d]: want=%v got=%v", j, w, lm.Coef[j])
		}
	}
	if math.Abs(lm.Intercept-2) > 1e-8 {
		t.Fatalf("intercept: want=2 got=%v", lm.Intercept)
	}
}

func TestRandomForestIsDeterministic(t *testing.T) {
	X := [][]float64{}
	y := []float64{}
	for i := 0; i < 60; i++ {
		x := float64(i)
		X = append(X, []float64{x, float64(i % 3)})
		if x < 30 {
			y = append(y, 1)
		} else {
			y = append(y, 5)
		}
	}
	rf := RandomForest{Params: ForestParams{NEstimators: 25, MaxDepth: 6, MinSamplesLeaf: 1}, Seed: 7}
	a, err := rf.Fit(context.Background(), X, y)
	if err != nil {
		t.Fatalf("Fit a: %v", err)
	}
	b, err := rf.Fit(context.Background(), X, y)
	if err != nil {
		t.Fatalf("Fit b: %v", err)
	}
	if diff := cmp.Diff(a, b); diff != "" {
		t.Fatalf("forests differ (-a +b):\n%s", diff)
	}
	if got := a.Predict([]float64{5, 0}); math.Abs(got-1) > 0.5 {
		t.Fatalf("Predict low: got=%v", got)
	}
	if got := a.Predict([]float64{55, 0}); math.Abs(got-5) > 0.5 {
		t.Fatalf("Predict high: got=%v", got)
	}
}

func TestSplitDeterministicAndSized(t *testing.T) {
	tr1, te1 := Split(20, 0.2, 42)
	tr2, te2 := Split(20, 0.2, 42)
	if diff := cmp.Diff(te1, te2); diff != "" {
		t.Fatalf("test split differs:\n%s", diff)
	}
	if diff := cmp.Diff(tr1, tr2); diff != "" {
		t.Fatalf("train split differs:\n%s", diff)
	}
	if len(te1) != 4 || len(tr1) != 16 {
		t.Fatalf("sizes: train=%d test=%d", len(tr1), len(te1))
	}
	if _, te := Split(3, 0.1, 1); len(te) != 1 {
		t.Fatalf("minimum test size: want=1 got=%d", len(te))
	}
}

func TestEncoderUnknownBucket(t *testing.T) {
	features := []FeatureSpec{{Name: "crop", Kind: KindCategorical}, {Name: "rain_mm", Kind: KindNumeric}}
	rows := [][]Cell{
		{{Cat: "Soybean", OK: true}, {Num: 10, OK: true}},
		{{Cat: "corn", OK: true}, {Num: 30, OK: true}},
		{{OK: false}, {OK: false}},
	}
	enc := FitEncoder(features, rows)
	if diff := cmp.Diff([]string{"crop=corn", "crop=soybean", "crop=__unknown__", "rain_mm"}, enc.ColumnNames()); diff != "" {
		t.Fatalf("ColumnNames (-want +got):\n%s", diff)
	}
	got := enc.Transform([]Cell{{Cat: "SOYBEAN", OK: true}, {Num: 20, OK: true}})
	if diff := cmp.Diff([]float64{0, 1, 0, 0}, got); diff != "" {
		t.Fatalf("Transform known (-want +got):\n%s", diff)
	}
	got = enc.Transform([]Cell{{Cat: "sorghum", OK: true}, {OK: false}})
	if diff := cmp.Diff([]float64{0, 0, 1, 0}, got); diff != "" {
		t.Fatalf("Transform unknown (-want +got):\n%s", diff)
	}
}

func TestTrainIsDeterministic(t *testing.T) {
	records := synthRecords(60, 1)
	for _, mt := range []ModelType{ModelLinear, ModelRandomForest} {
		t.Run(string(mt), func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.ModelType = mt
			cfg.Forest.NEstimators = 30
			a, err := Train(context.Background(), records, cfg, nil)
			if err != nil {
				t.Fatalf("Train a: %v", err)
			}
			b, err := Train(context.Background(), records, cfg, nil)
			if err != nil {
				t.Fatalf("Train b: %v", err)
			}
			if diff := cmp.Diff(a.Metrics, b.Metrics); diff != "" {
				t.Fatalf("metrics differ (-a +b):\n%s", diff)
			}
			if a.Metrics.NTrain != 48 || a.Metrics.NTest != 12 {
				t.Fatalf("split: train=%d test=%d", a.Metrics.NTrain, a.Metrics.NTest)
			}
			if a.Metrics.MAE < 0 {
				t.Fatalf("mae: got=%v", a.Metrics.MAE)
			}
			if diff := cmp.Diff([]string{"crop", "year", "area", "rain_mm"}, FeatureNames(a.Features)); diff != "" {
				t.Fatalf("features (-want +got):\n%s", diff)
			}
		})
	}
}

func TestTrainLinearFitsSyntheticData(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ModelType = ModelLinear
	res, err := Train(context.Background(), synthRecords(90, 3), cfg, nil)
	if err != nil {
		t.Fatalf("Train: %v", err)
	}
	if res.Metrics.R2 < 0.9 {
		t.Fatalf("r2: want>=0.9 got=%v", res.Metrics.R2)
	}
}

func TestTrainReportsProgress(t *testing.T) {
	var stages []int
	cfg := DefaultConfig()
	cfg.ModelType = ModelLinear
	if _, err := Train(context.Background(), synthRecords(20, 1), cfg, func(pct int, _ string) {
		stages = append(stages, pct)
	}); err != nil {
		t.Fatalf("Train: %v", err)
	}
	if diff := cmp.Diff([]int{0, 5, 15, 25, 35, 45, 60, 85}, stages); diff != "" {
		t.Fatalf("stages (-want +got):\n%s", diff)
	}
}

func TestTrainErrors(t *testing.T) {
	ctx := context.Background()
	records := synthRecords(20, 2)

	t.Run("empty dataset", func(t *testing.T) {
		_, err := Train(ctx, nil, DefaultConfig(), nil)
		var ide *domainerrors.InsufficientDataError
		if !errors.As(err, &ide) {
			t.Fatalf("want InsufficientDataError got=%v", err)
		}
	})
	t.Run("too few labeled rows", func(t *testing.T) {
		few := synthRecords(12, 2)
		for _, r := range few[:3] {
			r.Yield = nil
		}
		_, err := Train(ctx, few, DefaultConfig(), nil)
		var ide *domainerrors.InsufficientDataError
		if !errors.As(err, &ide) || ide.Rows != 9 || ide.Min != 10 {
			t.Fatalf("want InsufficientDataError{9,10} got=%v", err)
		}
	})

	t.Run("corrupt extra columns", func(t *testing.T) {
		bad := synthRecords(20, 2)
		bad[4].Extra = []byte(`["not", "an", "object"]`)
		_, err := Train(ctx, bad, DefaultConfig(), nil)
		if err == nil {
			t.Fatalf("want error for undecodable extra columns")
		}
		var ce *domainerrors.ConfigError
		if errors.As(err, &ce) {
			t.Fatalf("want decode error got ConfigError: %v", err)
		}
	})

	configErrs := map[string]func(*Config){
		"unknown model type":  func(c *Config) { c.ModelType = "svm" },
		"categorical target":  func(c *Config) { c.Target = "crop" },
		"absent target":       func(c *Config) { c.Target = "production" },
		"feature is target":   func(c *Config) { c.Features = []string{"area", "yield"} },
		"unknown feature":     func(c *Config) { c.Features = []string{"soil_ph"} },
		"bad test size":       func(c *Config) { c.TestSize = 0.9 },
		"no trees":            func(c *Config) { c.Forest.NEstimators = 0 },
		"identifier as target": func(c *Config) { c.Target = "id" },
	}
	for name, mut := range configErrs {
		t.Run(name, func(t *testing.T) {
			cfg := DefaultConfig()
			mut(&cfg)
			_, err := Train(ctx, records, cfg, nil)
			var ce *domainerrors.ConfigError
			if !errors.As(err, &ce) {
				t.Fatalf("want ConfigError got=%v", err)
			}
		})
	}
}

func TestTrainWithDeclaredExtraFeature(t *testing.T) {
	records := synthRecords(30, 4)
	for i, r := range records {
		r.SetExtras(map[string]string{"soil_ph": []string{"5,5", "6,0", "6,5"}[i%3]})
	}
	cfg := DefaultConfig()
	cfg.ModelType = ModelLinear
	cfg.Features = []string{"crop", "soil_ph"}
	res, err := Train(context.Background(), records, cfg, nil)
	if err != nil {
		t.Fatalf("Train: %v", err)
	}
	want := []FeatureSpec{{Name: "crop", Kind: KindCategorical}, {Name: "soil_ph", Kind: KindNumeric}}
	if diff := cmp.Diff(want, res.Features); diff != "" {
		t.Fatalf("features (-want +got):\n%s", diff)
	}
}

func TestScore(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ModelType = ModelRandomForest
	cfg.Forest.NEstimators = 20
	res, err := Train(context.Background(), synthRecords(40, 5), cfg, nil)
	if err != nil {
		t.Fatalf("Train: %v", err)
	}

	rec := &dataset.CropRecord{Crop: "quinoa", Year: iptr(2022), Area: fptr(550), RainMM: fptr(1120)}
	v, err := Score(res.Features, res.Encoder, res.Model, rec)
	if err != nil {
		t.Fatalf("Score unseen category: %v", err)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		t.Fatalf("Score: non-finite %v", v)
	}

	_, err = Score(res.Features, res.Encoder, res.Model, &dataset.CropRecord{Crop: "soybean", Area: fptr(1)})
	var mfe *domainerrors.MissingFeatureError
	if !errors.As(err, &mfe) {
		t.Fatalf("want MissingFeatureError got=%v", err)
	}
	if diff := cmp.Diff([]string{"year", "rain_mm"}, mfe.Fields); diff != "" {
		t.Fatalf("missing fields (-want +got):\n%s", diff)
	}
}
