package analytics

import (
	"bytes"
	"context"
	"math"
	"os"
	"sort"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/yungbote/cropyield-backend/internal/domain/dataset"
	"github.com/yungbote/cropyield-backend/internal/platform/logger"
)

var pngMagic = []byte("\x89PNG\r\n\x1a\n")

func fptr(v float64) *float64 { return &v }
func iptr(v int) *int         { return &v }
func sptr(v string) *string   { return &v }

func sampleRecords() []*dataset.CropRecord {
	var out []*dataset.CropRecord
	crops := []string{"Soja", "soja", "Milho", "Trigo"}
	states := []string{"PR", "MT", "RS"}
	seasons := []string{"rainy", "dry", "annual"}
	for i := 0; i < 24; i++ {
		rain := 900 + float64(i)*10
		out = append(out, &dataset.CropRecord{
			Crop:        crops[i%len(crops)],
			Year:        iptr(2015 + i%5),
			State:       sptr(states[i%len(states)]),
			SeasonMacro: sptr(seasons[i%len(seasons)]),
			Area:        fptr(100 + float64(i)),
			Production:  fptr(300 + float64(i)*3),
			RainMM:      fptr(rain),
			Yield:       fptr(rain / 300),
		})
	}
	return out
}

func TestSummarizeEmpty(t *testing.T) {
	got := Summarize(nil)
	if diff := cmp.Diff(Summary{Rows: 0, Status: StatusNoData}, got); diff != "" {
		t.Fatalf("Summarize (-want +got):\n%s", diff)
	}
}

func TestSummarize(t *testing.T) {
	s := Summarize(sampleRecords())
	if s.Rows != 24 || s.Crops != 3 || s.States != 3 {
		t.Fatalf("counts: rows=%d crops=%d states=%d", s.Rows, s.Crops, s.States)
	}
	if *s.YearMin != 2015 || *s.YearMax != 2019 {
		t.Fatalf("years: want=2015..2019 got=%d..%d", *s.YearMin, *s.YearMax)
	}
	area := s.Numeric[dataset.ColArea]
	if area.Count != 24 || area.Min != 100 || area.Max != 123 || area.Mean != 111.5 || area.Median != 111.5 {
		t.Fatalf("area stats: %+v", area)
	}
	if _, ok := s.Numeric[dataset.ColFertilizer]; ok {
		t.Fatalf("fertilizer has no values and must not be described")
	}
	var order []string
	for _, c := range s.PerCrop {
		order = append(order, c.Crop)
	}
	if diff := cmp.Diff([]string{"Soja", "Milho", "Trigo"}, order); diff != "" {
		t.Fatalf("per_crop order (-want +got):\n%s", diff)
	}
	if s.PerCrop[0].Count != 12 || s.PerCrop[0].YieldMean == nil {
		t.Fatalf("per_crop[0]: %+v", s.PerCrop[0])
	}
}

func TestRenderEmptyDataset(t *testing.T) {
	imgs, err := Render(context.Background(), nil, DefaultOptions())
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if len(imgs) != 0 {
		t.Fatalf("images: want=0 got=%d", len(imgs))
	}
}

func TestRenderProducesEveryChartDeterministically(t *testing.T) {
	ctx := context.Background()
	recs := sampleRecords()
	a, err := Render(ctx, recs, DefaultOptions())
	if err != nil {
		t.Fatalf("Render a: %v", err)
	}
	b, err := Render(ctx, recs, DefaultOptions())
	if err != nil {
		t.Fatalf("Render b: %v", err)
	}
	var names []string
	for name, img := range a {
		names = append(names, name)
		if !bytes.HasPrefix(img, pngMagic) {
			t.Fatalf("%s: not a PNG", name)
		}
		if !bytes.Equal(img, b[name]) {
			t.Fatalf("%s: output differs between renders", name)
		}
	}
	sort.Strings(names)
	want := append([]string(nil), ChartNames...)
	sort.Strings(want)
	if diff := cmp.Diff(want, names); diff != "" {
		t.Fatalf("chart names (-want +got):\n%s", diff)
	}
}

func TestRenderFallsBackToPlaceholders(t *testing.T) {
	recs := []*dataset.CropRecord{{Crop: "corn"}, {Crop: "wheat"}}
	imgs, err := Render(context.Background(), recs, DefaultOptions())
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if len(imgs) != len(ChartNames) {
		t.Fatalf("images: want=%d got=%d", len(ChartNames), len(imgs))
	}
	for name, img := range imgs {
		if !bytes.HasPrefix(img, pngMagic) {
			t.Fatalf("%s: not a PNG", name)
		}
	}
}

func TestCorrelationMatrix(t *testing.T) {
	cols, m := CorrelationMatrix(sampleRecords())
	if diff := cmp.Diff([]string{"year", "area", "production", "rain_mm", "yield"}, cols); diff != "" {
		t.Fatalf("columns (-want +got):\n%s", diff)
	}
	idx := map[string]int{}
	for i, c := range cols {
		idx[c] = i
	}
	if got := m[idx["rain_mm"]][idx["yield"]]; math.Abs(got-1) > 1e-9 {
		t.Fatalf("corr(rain, yield): want=1 got=%v", got)
	}
	if got := m[idx["area"]][idx["area"]]; got != 1 {
		t.Fatalf("diagonal: want=1 got=%v", got)
	}
}

func TestCropMatcherUsesSynonyms(t *testing.T) {
	match := cropMatcher("soybean")
	for _, c := range []string{"Soja", "SOYBEAN", "soy"} {
		if !match(c) {
			t.Fatalf("match(%q): want=true", c)
		}
	}
	if match("milho") {
		t.Fatalf("match(milho): want=false")
	}
	if !cropMatcher("Milho")("maize") {
		t.Fatalf("milho should match maize")
	}
}

func TestFingerprintTracksContent(t *testing.T) {
	recs := sampleRecords()
	a := Fingerprint(recs, DefaultOptions())
	if b := Fingerprint(sampleRecords(), DefaultOptions()); a != b {
		t.Fatalf("fingerprint not stable")
	}
	if b := Fingerprint(recs[:len(recs)-1], DefaultOptions()); a == b {
		t.Fatalf("fingerprint ignores removed row")
	}
	recs[0].Yield = fptr(99)
	if b := Fingerprint(recs, DefaultOptions()); a == b {
		t.Fatalf("fingerprint ignores changed value")
	}
	if b := Fingerprint(sampleRecords(), Options{ProductionCrop: "corn"}); a == b {
		t.Fatalf("fingerprint ignores options")
	}
}

func TestMemoryCache(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(time.Hour)
	if _, ok := c.Get(ctx, "k"); ok {
		t.Fatalf("Get on empty cache: want miss")
	}
	res := &Result{Summary: Summary{Rows: 3}}
	c.Set(ctx, "k", res)
	if got, ok := c.Get(ctx, "k"); !ok || got != res {
		t.Fatalf("Get: want hit")
	}
	if _, ok := c.Get(ctx, "other"); ok {
		t.Fatalf("Get other key: want miss")
	}

	expired := NewMemoryCache(time.Nanosecond)
	expired.Set(ctx, "k", res)
	time.Sleep(time.Millisecond)
	if _, ok := expired.Get(ctx, "k"); ok {
		t.Fatalf("Get after ttl: want miss")
	}
}

func TestRedisCacheIntegration(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	ctx := context.Background()
	c, err := NewRedisCache(addr, time.Minute, logger.Nop())
	if err != nil {
		t.Fatalf("NewRedisCache: %v", err)
	}
	defer c.Close()
	res := &Result{Summary: Summary{Rows: 1}, Images: map[string][]byte{"x": pngMagic}}
	key := Fingerprint(sampleRecords(), DefaultOptions())
	c.Set(ctx, key, res)
	got, ok := c.Get(ctx, key)
	if !ok {
		t.Fatalf("Get: want hit")
	}
	if diff := cmp.Diff(res, got); diff != "" {
		t.Fatalf("round trip (-want +got):\n%s", diff)
	}
}
