package analytics

import (
	"bytes"
	"context"
	"fmt"
	"image/color"
	"math"
	"runtime"
	"sort"
	"strconv"
	"sync"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/yungbote/cropyield-backend/internal/domain/dataset"
	"github.com/yungbote/cropyield-backend/internal/normalize"
)

const (
	ChartTopCrops         = "bar_top_crops"
	ChartYieldByYear      = "yield_by_year"
	ChartRainVsYield      = "rain_vs_yield"
	ChartYieldByState     = "yield_by_state"
	ChartBoxBySeasonMacro = "box_by_season_macro"
	ChartProductionByYear = "production_by_year"
	ChartCorrMatrix       = "corr_matrix"
)

// ChartNames is the fixed chart set produced for a non-empty dataset.
var ChartNames = []string{
	ChartTopCrops,
	ChartYieldByYear,
	ChartRainVsYield,
	ChartYieldByState,
	ChartBoxBySeasonMacro,
	ChartProductionByYear,
	ChartCorrMatrix,
}

type Options struct {
	// ProductionCrop selects the crop for production_by_year. Portuguese and
	// English names of common crops are treated as the same crop.
	ProductionCrop string
}

func DefaultOptions() Options {
	return Options{ProductionCrop: "soybean"}
}

type renderFunc func(records []*dataset.CropRecord, opts Options) ([]byte, error)

var renderers = map[string]renderFunc{
	ChartTopCrops:         renderTopCrops,
	ChartYieldByYear:      renderYieldByYear,
	ChartRainVsYield:      renderRainVsYield,
	ChartYieldByState:     renderYieldByState,
	ChartBoxBySeasonMacro: renderBoxBySeasonMacro,
	ChartProductionByYear: renderProductionByYear,
	ChartCorrMatrix:       renderCorrMatrix,
}

var (
	barColor   = color.RGBA{R: 46, G: 125, B: 50, A: 255}
	lineColor  = color.RGBA{R: 21, G: 101, B: 192, A: 255}
	pointColor = color.RGBA{R: 239, G: 108, B: 0, A: 200}
)

// Render draws every chart as PNG. Charts whose inputs are missing come back
// as placeholder images; an empty dataset yields an empty map.
func Render(ctx context.Context, records []*dataset.CropRecord, opts Options) (map[string][]byte, error) {
	out := make(map[string][]byte, len(ChartNames))
	if len(records) == 0 {
		return out, nil
	}
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for _, name := range ChartNames {
		name := name
		render := renderers[name]
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			img, err := render(records, opts)
			if err != nil {
				return fmt.Errorf("render %s: %w", name, err)
			}
			mu.Lock()
			out[name] = img
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func newPlot(title, xLabel, yLabel string) *plot.Plot {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = xLabel
	p.Y.Label.Text = yLabel
	p.Add(plotter.NewGrid())
	return p
}

func rotateXLabels(p *plot.Plot) {
	p.X.Tick.Label.Rotation = math.Pi / 4
	p.X.Tick.Label.XAlign = draw.XRight
	p.X.Tick.Label.YAlign = draw.YCenter
}

func encodePlot(p *plot.Plot) ([]byte, error) {
	wt, err := p.WriterTo(8*vg.Inch, 5*vg.Inch, "png")
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if _, err := wt.WriteTo(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func barPlot(title, yLabel string, labels []string, values []float64) ([]byte, error) {
	p := newPlot(title, "", yLabel)
	bars, err := plotter.NewBarChart(plotter.Values(values), vg.Points(18))
	if err != nil {
		return nil, err
	}
	bars.Color = barColor
	bars.LineStyle.Width = 0
	p.Add(bars)
	p.NominalX(labels...)
	rotateXLabels(p)
	return encodePlot(p)
}

func renderTopCrops(records []*dataset.CropRecord, _ Options) ([]byte, error) {
	groups := groupByCrop(records)
	if len(groups) == 0 {
		return placeholder("Top crops by row count", "no crop values in the dataset")
	}
	sort.SliceStable(groups, func(i, j int) bool {
		if len(groups[i].rows) != len(groups[j].rows) {
			return len(groups[i].rows) > len(groups[j].rows)
		}
		return groups[i].label < groups[j].label
	})
	if len(groups) > 10 {
		groups = groups[:10]
	}
	labels := make([]string, len(groups))
	values := make([]float64, len(groups))
	for i, g := range groups {
		labels[i] = g.label
		values[i] = float64(len(g.rows))
	}
	return barPlot("Top crops by row count", "rows", labels, values)
}

// meanByYear averages col per year; years come back ascending.
func meanByYear(records []*dataset.CropRecord, col string) plotter.XYs {
	sums := map[int]float64{}
	counts := map[int]int{}
	for _, r := range records {
		if r.Year == nil {
			continue
		}
		v, ok := r.Numeric(col)
		if !ok || math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		sums[*r.Year] += v
		counts[*r.Year]++
	}
	years := make([]int, 0, len(sums))
	for y := range sums {
		years = append(years, y)
	}
	sort.Ints(years)
	xys := make(plotter.XYs, len(years))
	for i, y := range years {
		xys[i].X = float64(y)
		xys[i].Y = sums[y] / float64(counts[y])
	}
	return xys
}

func renderYieldByYear(records []*dataset.CropRecord, _ Options) ([]byte, error) {
	xys := meanByYear(records, dataset.ColYield)
	if len(xys) == 0 {
		return placeholder("Mean yield by year", "needs rows with both year and yield")
	}
	p := newPlot("Mean yield by year", "year", "yield")
	line, points, err := plotter.NewLinePoints(xys)
	if err != nil {
		return nil, err
	}
	line.Color = lineColor
	points.Color = lineColor
	p.Add(line, points)
	return encodePlot(p)
}

func renderRainVsYield(records []*dataset.CropRecord, _ Options) ([]byte, error) {
	var xys plotter.XYs
	for _, r := range records {
		rain, ok1 := r.Numeric(dataset.ColRainMM)
		y, ok2 := r.Numeric(dataset.ColYield)
		if ok1 && ok2 && isFinite(rain) && isFinite(y) {
			xys = append(xys, plotter.XY{X: rain, Y: y})
		}
	}
	if len(xys) == 0 {
		return placeholder("Rainfall vs yield", "needs rows with both rain_mm and yield")
	}
	p := newPlot("Rainfall vs yield", "rain (mm)", "yield")
	sc, err := plotter.NewScatter(xys)
	if err != nil {
		return nil, err
	}
	sc.GlyphStyle.Color = pointColor
	sc.GlyphStyle.Radius = vg.Points(3)
	p.Add(sc)
	return encodePlot(p)
}

func renderYieldByState(records []*dataset.CropRecord, _ Options) ([]byte, error) {
	type agg struct {
		label string
		sum   float64
		n     int
	}
	byKey := map[string]*agg{}
	for _, r := range records {
		st, ok := r.Category(dataset.ColState)
		if !ok {
			continue
		}
		y, ok := r.Numeric(dataset.ColYield)
		if !ok || !isFinite(y) {
			continue
		}
		key := normalize.Fold(st)
		a, seen := byKey[key]
		if !seen {
			a = &agg{label: st}
			byKey[key] = a
		}
		a.sum += y
		a.n++
	}
	if len(byKey) == 0 {
		return placeholder("Mean yield by state", "needs rows with both state and yield")
	}
	all := make([]*agg, 0, len(byKey))
	for _, a := range byKey {
		all = append(all, a)
	}
	sort.Slice(all, func(i, j int) bool {
		mi, mj := all[i].sum/float64(all[i].n), all[j].sum/float64(all[j].n)
		if mi != mj {
			return mi > mj
		}
		return all[i].label < all[j].label
	})
	if len(all) > 15 {
		all = all[:15]
	}
	labels := make([]string, len(all))
	values := make([]float64, len(all))
	for i, a := range all {
		labels[i] = a.label
		values[i] = a.sum / float64(a.n)
	}
	return barPlot("Mean yield by state (top 15)", "yield", labels, values)
}

func renderBoxBySeasonMacro(records []*dataset.CropRecord, _ Options) ([]byte, error) {
	groups := map[string][]float64{}
	for _, r := range records {
		macro, ok := r.Category(dataset.ColSeasonMacro)
		if !ok {
			continue
		}
		y, ok := r.Numeric(dataset.ColYield)
		if !ok || !isFinite(y) {
			continue
		}
		key := normalize.Fold(macro)
		groups[key] = append(groups[key], y)
	}
	var labels []string
	for _, m := range normalize.SeasonMacros {
		if len(groups[m]) > 0 {
			labels = append(labels, m)
		}
	}
	if len(labels) == 0 {
		return placeholder("Yield by season", "needs rows with both season and yield")
	}
	p := newPlot("Yield distribution by season", "", "yield")
	for i, m := range labels {
		box, err := plotter.NewBoxPlot(vg.Points(40), float64(i), plotter.Values(groups[m]))
		if err != nil {
			return nil, err
		}
		box.FillColor = barColor
		p.Add(box)
	}
	p.NominalX(labels...)
	return encodePlot(p)
}

// cropSynonyms groups Portuguese and English names of the same crop, folded.
var cropSynonyms = [][]string{
	{"soybean", "soybeans", "soy", "soja"},
	{"corn", "maize", "milho"},
	{"wheat", "trigo"},
	{"rice", "arroz"},
	{"cotton", "algodao"},
	{"coffee", "cafe"},
	{"beans", "bean", "feijao"},
	{"sugarcane", "sugar cane", "cana", "cana de acucar", "cana-de-acucar"},
}

func cropMatcher(name string) func(string) bool {
	want := map[string]bool{normalize.Fold(name): true}
	for _, group := range cropSynonyms {
		for _, s := range group {
			if want[s] {
				for _, t := range group {
					want[t] = true
				}
				break
			}
		}
	}
	return func(crop string) bool { return want[normalize.Fold(crop)] }
}

func renderProductionByYear(records []*dataset.CropRecord, opts Options) ([]byte, error) {
	crop := opts.ProductionCrop
	if crop == "" {
		crop = DefaultOptions().ProductionCrop
	}
	match := cropMatcher(crop)
	sums := map[int]float64{}
	for _, r := range records {
		if r.Year == nil || !match(r.Crop) {
			continue
		}
		v, ok := r.Numeric(dataset.ColProduction)
		if !ok || !isFinite(v) {
			continue
		}
		sums[*r.Year] += v
	}
	title := fmt.Sprintf("Total %s production by year", crop)
	if len(sums) == 0 {
		return placeholder(title, fmt.Sprintf("needs %s rows with year and production", crop))
	}
	years := make([]int, 0, len(sums))
	for y := range sums {
		years = append(years, y)
	}
	sort.Ints(years)
	labels := make([]string, len(years))
	values := make([]float64, len(years))
	for i, y := range years {
		labels[i] = strconv.Itoa(y)
		values[i] = sums[y]
	}
	return barPlot(title, "production", labels, values)
}

// CorrelationMatrix returns the Pearson correlation of every numeric column
// with at least three values and non-zero spread. Pairs with fewer than three
// joint values are NaN.
func CorrelationMatrix(records []*dataset.CropRecord) ([]string, [][]float64) {
	var cols []string
	for _, col := range dataset.CanonicalColumns {
		if !dataset.IsNumeric(col) {
			continue
		}
		vals := columnValues(records, col)
		if len(vals) < 3 || stat.StdDev(vals, nil) == 0 {
			continue
		}
		cols = append(cols, col)
	}
	m := make([][]float64, len(cols))
	for i := range cols {
		m[i] = make([]float64, len(cols))
	}
	for i := range cols {
		m[i][i] = 1
		for j := i + 1; j < len(cols); j++ {
			var xs, ys []float64
			for _, r := range records {
				x, ok1 := r.Numeric(cols[i])
				y, ok2 := r.Numeric(cols[j])
				if ok1 && ok2 && isFinite(x) && isFinite(y) {
					xs = append(xs, x)
					ys = append(ys, y)
				}
			}
			c := math.NaN()
			if len(xs) >= 3 {
				c = stat.Correlation(xs, ys, nil)
			}
			m[i][j], m[j][i] = c, c
		}
	}
	return cols, m
}

func renderCorrMatrix(records []*dataset.CropRecord, _ Options) ([]byte, error) {
	cols, m := CorrelationMatrix(records)
	if len(cols) < 2 {
		return placeholder("Correlation matrix", "needs at least two numeric columns with varying values")
	}
	return heatmap("Correlation matrix (Pearson)", cols, m)
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
