package analytics

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/yungbote/cropyield-backend/internal/domain/dataset"
	"github.com/yungbote/cropyield-backend/internal/normalize"
)

const StatusNoData = "no_data"

// summaryColumns are the numeric columns described when they have values.
var summaryColumns = []string{dataset.ColYield, dataset.ColRainMM, dataset.ColArea, dataset.ColProduction}

type NumericStats struct {
	Count  int     `json:"count"`
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
	Std    float64 `json:"std"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
}

type CropStats struct {
	Crop        string   `json:"crop"`
	Count       int      `json:"count"`
	YieldMean   *float64 `json:"yield_mean"`
	YieldMedian *float64 `json:"yield_median"`
	RainMean    *float64 `json:"rain_mm_mean"`
}

type Summary struct {
	Rows    int                     `json:"rows"`
	Status  string                  `json:"status,omitempty"`
	Crops   int                     `json:"crops,omitempty"`
	States  int                     `json:"states,omitempty"`
	YearMin *int                    `json:"year_min,omitempty"`
	YearMax *int                    `json:"year_max,omitempty"`
	Numeric map[string]NumericStats `json:"numeric,omitempty"`
	PerCrop []CropStats             `json:"per_crop,omitempty"`
}

// Summarize computes descriptive statistics over the whole dataset.
func Summarize(records []*dataset.CropRecord) Summary {
	if len(records) == 0 {
		return Summary{Rows: 0, Status: StatusNoData}
	}
	s := Summary{Rows: len(records), Numeric: map[string]NumericStats{}}

	states := map[string]struct{}{}
	for _, r := range records {
		if r.Year != nil {
			y := *r.Year
			if s.YearMin == nil || y < *s.YearMin {
				s.YearMin = &y
			}
			if s.YearMax == nil || y > *s.YearMax {
				s.YearMax = &y
			}
		}
		if st, ok := r.Category(dataset.ColState); ok {
			states[normalize.Fold(st)] = struct{}{}
		}
	}
	s.States = len(states)

	for _, col := range summaryColumns {
		if vals := columnValues(records, col); len(vals) > 0 {
			s.Numeric[col] = describe(vals)
		}
	}

	groups := groupByCrop(records)
	s.Crops = len(groups)
	for _, g := range groups {
		cs := CropStats{Crop: g.label, Count: len(g.rows)}
		if ys := columnValues(g.rows, dataset.ColYield); len(ys) > 0 {
			mean := round3(stat.Mean(ys, nil))
			med := round3(median(ys))
			cs.YieldMean, cs.YieldMedian = &mean, &med
		}
		if rs := columnValues(g.rows, dataset.ColRainMM); len(rs) > 0 {
			mean := round3(stat.Mean(rs, nil))
			cs.RainMean = &mean
		}
		s.PerCrop = append(s.PerCrop, cs)
	}
	sort.SliceStable(s.PerCrop, func(i, j int) bool {
		if s.PerCrop[i].Count != s.PerCrop[j].Count {
			return s.PerCrop[i].Count > s.PerCrop[j].Count
		}
		return s.PerCrop[i].Crop < s.PerCrop[j].Crop
	})
	return s
}

func describe(vals []float64) NumericStats {
	out := NumericStats{
		Count:  len(vals),
		Mean:   round3(stat.Mean(vals, nil)),
		Median: round3(median(vals)),
		Min:    round3(floats.Min(vals)),
		Max:    round3(floats.Max(vals)),
	}
	if len(vals) > 1 {
		out.Std = round3(stat.StdDev(vals, nil))
	}
	return out
}

type cropGroup struct {
	key   string
	label string
	rows  []*dataset.CropRecord
}

// groupByCrop groups records by folded crop name, labelled with the first
// spelling seen. Groups come back in first-seen order.
func groupByCrop(records []*dataset.CropRecord) []*cropGroup {
	idx := map[string]*cropGroup{}
	var out []*cropGroup
	for _, r := range records {
		key := normalize.Fold(r.Crop)
		if key == "" {
			continue
		}
		g, ok := idx[key]
		if !ok {
			g = &cropGroup{key: key, label: r.Crop}
			idx[key] = g
			out = append(out, g)
		}
		g.rows = append(g.rows, r)
	}
	return out
}

func columnValues(records []*dataset.CropRecord, col string) []float64 {
	out := make([]float64, 0, len(records))
	for _, r := range records {
		if v, ok := r.Numeric(col); ok && !math.IsNaN(v) && !math.IsInf(v, 0) {
			out = append(out, v)
		}
	}
	return out
}

func median(vals []float64) float64 {
	s := append([]float64(nil), vals...)
	sort.Float64s(s)
	mid := len(s) / 2
	if len(s)%2 == 1 {
		return s[mid]
	}
	return (s[mid-1] + s[mid]) / 2
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
