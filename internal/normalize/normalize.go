package normalize

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/yungbote/cropyield-backend/internal/domain/dataset"
	domainerrors "github.com/yungbote/cropyield-backend/internal/pkg/errors"
)

// Result is a normalized upload plus the bookkeeping reported back to the caller.
type Result struct {
	Records       []*dataset.CropRecord
	RowsRead      int
	RowsRejected  int
	InvalidValues map[string]int
	Columns       map[string]string
	Delimiter     string
	Encoding      string
}

type Normalizer struct {
	aliases *Aliases
}

func New(aliases *Aliases) *Normalizer {
	if aliases == nil {
		aliases = DefaultAliases()
	}
	return &Normalizer{aliases: aliases}
}

func (n *Normalizer) Aliases() *Aliases { return n.aliases }

type columnPlan struct {
	name      string
	canonical bool
}

func (n *Normalizer) plan(header []string) ([]columnPlan, map[string]string) {
	plans := make([]columnPlan, len(header))
	used := map[string]bool{}
	mapping := make(map[string]string, len(header))
	for i, h := range header {
		canon, san, ok := n.aliases.Resolve(h)
		if ok && !used[canon] {
			plans[i] = columnPlan{name: canon, canonical: true}
			used[canon] = true
			mapping[h] = canon
			continue
		}
		if san == "" {
			san = "col"
		}
		name := san
		for k := 2; used[name]; k++ {
			name = fmt.Sprintf("%s_%d", san, k)
		}
		used[name] = true
		plans[i] = columnPlan{name: name}
		mapping[h] = name
	}
	return plans, mapping
}

// Normalize maps a raw table onto the canonical schema. A table without a
// crop column is rejected as a whole; individual bad rows are skipped and counted.
func (n *Normalizer) Normalize(t *Table) (*Result, error) {
	if t == nil || len(t.Header) == 0 {
		return nil, domainerrors.Validation("file", "empty upload")
	}
	plans, mapping := n.plan(t.Header)

	hasCrop, hasMacro := false, false
	for _, p := range plans {
		if p.canonical && p.name == dataset.ColCrop {
			hasCrop = true
		}
		if p.canonical && p.name == dataset.ColSeasonMacro {
			hasMacro = true
		}
	}
	if !hasCrop {
		return nil, domainerrors.Validation(dataset.ColCrop,
			"no column maps to %q (accepted names: %s)", dataset.ColCrop,
			strings.Join(n.aliases.Known()[dataset.ColCrop], ", "))
	}

	res := &Result{
		InvalidValues: map[string]int{},
		Columns:       mapping,
		Delimiter:     t.Delimiter,
		Encoding:      t.Encoding,
	}
	for _, row := range t.Rows {
		res.RowsRead++
		if len(row) != len(t.Header) {
			res.RowsRejected++
			continue
		}
		rec := &dataset.CropRecord{}
		extras := map[string]string{}
		for i, p := range plans {
			val := strings.TrimSpace(row[i])
			if val == "" {
				continue
			}
			if !p.canonical {
				extras[p.name] = val
				continue
			}
			if !assign(rec, p.name, val, !hasMacro) {
				res.InvalidValues[p.name]++
			}
		}
		if rec.Crop == "" {
			res.RowsRejected++
			continue
		}
		rec.SetExtras(extras)
		res.Records = append(res.Records, rec)
	}
	return res, nil
}

// assign stores one canonical cell, reporting false when a numeric value can't be parsed.
func assign(rec *dataset.CropRecord, col, val string, deriveMacro bool) bool {
	switch {
	case col == dataset.ColYear:
		y, ok := ParseYear(val)
		if ok {
			rec.Year = &y
		}
		return ok
	case dataset.IsNumeric(col):
		f, ok := ParseNumber(val)
		if ok {
			rec.SetNumeric(col, f)
		}
		return ok
	case col == dataset.ColSeason:
		season, macro := CanonSeason(val)
		rec.SetCategory(dataset.ColSeason, season)
		if deriveMacro {
			rec.SetCategory(dataset.ColSeasonMacro, macro)
		}
	default:
		rec.SetCategory(col, strings.Join(strings.Fields(val), " "))
	}
	return true
}

// NormalizeRecord applies the upload aliases and coercions to a single
// prediction record. Unlike uploads, an unparseable numeric value is an error.
func (n *Normalizer) NormalizeRecord(in map[string]any) (*dataset.CropRecord, error) {
	rec := &dataset.CropRecord{}
	extras := map[string]string{}

	keys := make([]string, 0, len(in))
	for k := range in {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	seen := map[string]bool{}
	hasMacro := false
	for _, k := range keys {
		if canon, _, ok := n.aliases.Resolve(k); ok && canon == dataset.ColSeasonMacro {
			if _, present := stringify(in[k]); present {
				hasMacro = true
			}
		}
	}
	for _, k := range keys {
		val, present := stringify(in[k])
		if !present {
			continue
		}
		canon, san, ok := n.aliases.Resolve(k)
		if !ok || seen[canon] {
			if san != "" {
				extras[san] = val
			}
			continue
		}
		seen[canon] = true
		if !assign(rec, canon, val, !hasMacro) {
			return nil, domainerrors.Validation(canon, "value %q is not a number", val)
		}
	}
	rec.SetExtras(extras)
	return rec, nil
}

func stringify(v any) (string, bool) {
	switch t := v.(type) {
	case nil:
		return "", false
	case string:
		s := strings.TrimSpace(t)
		return s, s != ""
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32), true
	case int:
		return strconv.Itoa(t), true
	case int64:
		return strconv.FormatInt(t, 10), true
	case json.Number:
		return t.String(), true
	case bool:
		return strconv.FormatBool(t), true
	default:
		return fmt.Sprint(t), true
	}
}
