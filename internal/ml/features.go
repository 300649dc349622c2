package ml

import (
	"sort"

	"github.com/yungbote/cropyield-backend/internal/domain/dataset"
	"github.com/yungbote/cropyield-backend/internal/normalize"
	domainerrors "github.com/yungbote/cropyield-backend/internal/pkg/errors"
)

type Kind string

const (
	KindNumeric     Kind = "numeric"
	KindCategorical Kind = "categorical"
)

type FeatureSpec struct {
	Name string `json:"name"`
	Kind Kind   `json:"kind"`
}

// Cell is one feature value of one row. OK is false when the value is missing.
type Cell struct {
	Num float64
	Cat string
	OK  bool
}

type rowView struct {
	rec    *dataset.CropRecord
	extras map[string]string
}

func newRowView(rec *dataset.CropRecord) (rowView, error) {
	extras, err := rec.Extras()
	if err != nil {
		return rowView{}, err
	}
	return rowView{rec: rec, extras: extras}, nil
}

func (v rowView) raw(name string) (string, bool) {
	s, ok := v.extras[name]
	return s, ok && s != ""
}

func (v rowView) numeric(name string) (float64, bool) {
	if dataset.IsNumeric(name) {
		return v.rec.Numeric(name)
	}
	s, ok := v.raw(name)
	if !ok {
		return 0, false
	}
	return normalize.ParseNumber(s)
}

func (v rowView) cell(f FeatureSpec) Cell {
	if f.Kind == KindNumeric {
		n, ok := v.numeric(f.Name)
		return Cell{Num: n, OK: ok}
	}
	if dataset.IsCategorical(f.Name) {
		s, ok := v.rec.Category(f.Name)
		return Cell{Cat: s, OK: ok}
	}
	s, ok := v.raw(f.Name)
	return Cell{Cat: s, OK: ok}
}

// ExtractRow reads the declared features from a record. It reports features
// that are absent and numeric features whose value doesn't parse.
func ExtractRow(rec *dataset.CropRecord, features []FeatureSpec) (cells []Cell, missing, invalid []string, err error) {
	v, err := newRowView(rec)
	if err != nil {
		return nil, nil, nil, err
	}
	cells = make([]Cell, len(features))
	for i, f := range features {
		c := v.cell(f)
		if !c.OK {
			if s, present := v.raw(f.Name); present && f.Kind == KindNumeric && s != "" {
				invalid = append(invalid, f.Name)
			} else {
				missing = append(missing, f.Name)
			}
		}
		cells[i] = c
	}
	return cells, missing, invalid, nil
}

// extraKind classifies a passthrough column; ok is false when no row has a value.
func extraKind(views []rowView, name string) (kind Kind, ok bool) {
	kind = KindNumeric
	for _, v := range views {
		s, present := v.raw(name)
		if !present {
			continue
		}
		ok = true
		if _, isNum := normalize.ParseNumber(s); !isNum {
			kind = KindCategorical
		}
	}
	return kind, ok
}

// checkTarget requires the target to be a numeric column with at least one value.
func checkTarget(views []rowView, target string) error {
	if dataset.IsIdentifier(target) {
		return domainerrors.Config("target %q is an identifier column", target)
	}
	if dataset.IsCategorical(target) {
		return domainerrors.Config("target %q is not numeric", target)
	}
	if dataset.IsNumeric(target) {
		for _, v := range views {
			if _, ok := v.rec.Numeric(target); ok {
				return nil
			}
		}
		return domainerrors.Config("target %q has no values in the dataset", target)
	}
	kind, ok := extraKind(views, target)
	if !ok {
		return domainerrors.Config("target %q is not a column of the dataset", target)
	}
	if kind != KindNumeric {
		return domainerrors.Config("target %q is not numeric", target)
	}
	return nil
}

// selectFeatures returns the ordered feature list. Without an explicit list it
// takes every canonical column that has a value in some labeled row.
func selectFeatures(views []rowView, target string, declared []string) ([]FeatureSpec, error) {
	if len(declared) > 0 {
		out := make([]FeatureSpec, 0, len(declared))
		seen := map[string]bool{}
		for _, name := range declared {
			switch {
			case name == "":
				continue
			case name == target:
				return nil, domainerrors.Config("feature %q is the target", name)
			case dataset.IsIdentifier(name):
				return nil, domainerrors.Config("feature %q is an identifier column", name)
			case seen[name]:
				continue
			}
			seen[name] = true
			if dataset.IsCanonical(name) {
				if !columnHasValue(views, name) {
					return nil, domainerrors.Config("feature %q has no values in the dataset", name)
				}
				out = append(out, canonicalSpec(name))
				continue
			}
			kind, ok := extraKind(views, name)
			if !ok {
				return nil, domainerrors.Config("feature %q is not a column of the dataset", name)
			}
			out = append(out, FeatureSpec{Name: name, Kind: kind})
		}
		if len(out) == 0 {
			return nil, domainerrors.Config("no features declared")
		}
		return out, nil
	}

	out := []FeatureSpec{}
	for _, col := range dataset.CanonicalColumns {
		if col == target || !columnHasValue(views, col) {
			continue
		}
		out = append(out, canonicalSpec(col))
	}
	if len(out) == 0 {
		return nil, domainerrors.Config("dataset has no usable feature columns besides %q", target)
	}
	return out, nil
}

func canonicalSpec(col string) FeatureSpec {
	if dataset.IsCategorical(col) {
		return FeatureSpec{Name: col, Kind: KindCategorical}
	}
	return FeatureSpec{Name: col, Kind: KindNumeric}
}

func columnHasValue(views []rowView, col string) bool {
	f := canonicalSpec(col)
	for _, v := range views {
		if v.cell(f).OK {
			return true
		}
	}
	return false
}

func FeatureNames(features []FeatureSpec) []string {
	out := make([]string, len(features))
	for i, f := range features {
		out[i] = f.Name
	}
	return out
}

// sortedLevels returns the distinct folded categories of column j.
func sortedLevels(rows [][]Cell, j int) []string {
	set := map[string]struct{}{}
	for _, r := range rows {
		if r[j].OK {
			set[normalize.Fold(r[j].Cat)] = struct{}{}
		}
	}
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
