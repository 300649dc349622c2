package ml

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/yungbote/cropyield-backend/internal/normalize"
)

// UnknownLevel is the one-hot bucket for categories not seen during training.
const UnknownLevel = "__unknown__"

// ColumnEncoding is the fitted transform of one feature. Numeric features are
// median-imputed then standardized; categorical ones are one-hot over Levels
// plus a trailing unknown bucket.
type ColumnEncoding struct {
	Name   string
	Kind   Kind
	Median float64
	Mean   float64
	Std    float64
	Levels []string
}

type Encoder struct {
	Columns []ColumnEncoding
}

// FitEncoder learns imputation, scaling and category levels from the training rows only.
func FitEncoder(features []FeatureSpec, rows [][]Cell) *Encoder {
	enc := &Encoder{Columns: make([]ColumnEncoding, len(features))}
	for j, f := range features {
		col := ColumnEncoding{Name: f.Name, Kind: f.Kind}
		if f.Kind == KindCategorical {
			col.Levels = sortedLevels(rows, j)
			enc.Columns[j] = col
			continue
		}
		vals := make([]float64, 0, len(rows))
		for _, r := range rows {
			if r[j].OK {
				vals = append(vals, r[j].Num)
			}
		}
		col.Std = 1
		if len(vals) > 0 {
			col.Median = median(vals)
			mean, std := stat.PopMeanStdDev(vals, nil)
			col.Mean = mean
			if std > 0 && !math.IsNaN(std) {
				col.Std = std
			}
		}
		enc.Columns[j] = col
	}
	return enc
}

func (e *Encoder) Width() int {
	w := 0
	for _, c := range e.Columns {
		if c.Kind == KindCategorical {
			w += len(c.Levels) + 1
		} else {
			w++
		}
	}
	return w
}

// Transform encodes one row into a fresh slice of Width() values.
func (e *Encoder) Transform(row []Cell) []float64 {
	out := make([]float64, 0, e.Width())
	for j, c := range e.Columns {
		cell := row[j]
		if c.Kind != KindCategorical {
			v := c.Median
			if cell.OK {
				v = cell.Num
			}
			out = append(out, (v-c.Mean)/c.Std)
			continue
		}
		hot := len(c.Levels)
		if cell.OK {
			key := normalize.Fold(cell.Cat)
			if i := sort.SearchStrings(c.Levels, key); i < len(c.Levels) && c.Levels[i] == key {
				hot = i
			}
		}
		for i := 0; i <= len(c.Levels); i++ {
			if i == hot {
				out = append(out, 1)
			} else {
				out = append(out, 0)
			}
		}
	}
	return out
}

func (e *Encoder) TransformAll(rows [][]Cell) [][]float64 {
	out := make([][]float64, len(rows))
	for i, r := range rows {
		out[i] = e.Transform(r)
	}
	return out
}

// ColumnNames labels the encoded columns, e.g. "crop=soybean" or "crop=__unknown__".
func (e *Encoder) ColumnNames() []string {
	out := make([]string, 0, e.Width())
	for _, c := range e.Columns {
		if c.Kind != KindCategorical {
			out = append(out, c.Name)
			continue
		}
		for _, l := range c.Levels {
			out = append(out, c.Name+"="+l)
		}
		out = append(out, c.Name+"="+UnknownLevel)
	}
	return out
}

func median(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	s := append([]float64(nil), vals...)
	sort.Float64s(s)
	mid := len(s) / 2
	if len(s)%2 == 1 {
		return s[mid]
	}
	return (s[mid-1] + s[mid]) / 2
}
