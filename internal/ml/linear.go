package ml

import (
	"context"
	"errors"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// rankTol drops singular values below rankTol times the largest one, which
// absorbs the collinearity of a full one-hot block next to the intercept.
const rankTol = 1e-10

type LinearModel struct {
	Intercept float64
	Coef      []float64
}

func (m *LinearModel) Predict(x []float64) float64 {
	return m.Intercept + floats.Dot(m.Coef, x)
}

// LinearRegression is ordinary least squares with an intercept, solved as the
// minimum-norm solution through an SVD so rank-deficient designs still fit.
type LinearRegression struct{}

func (LinearRegression) Fit(ctx context.Context, X [][]float64, y []float64) (Model, error) {
	n := len(X)
	if n == 0 || n != len(y) {
		return nil, errors.New("linear: empty or mismatched training data")
	}
	p := len(X[0])

	a := mat.NewDense(n, p+1, nil)
	for i, row := range X {
		a.Set(i, 0, 1)
		for j, v := range row {
			a.Set(i, j+1, v)
		}
	}
	b := mat.NewDense(n, 1, append([]float64(nil), y...))

	var svd mat.SVD
	if ok := svd.Factorize(a, mat.SVDThin); !ok {
		return nil, errors.New("linear: svd factorization failed")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rank := svd.Rank(rankTol)
	if rank == 0 {
		return &LinearModel{Intercept: stat.Mean(y, nil), Coef: make([]float64, p)}, nil
	}

	var beta mat.Dense
	svd.SolveTo(&beta, b, rank)

	m := &LinearModel{Intercept: beta.At(0, 0), Coef: make([]float64, p)}
	for j := 0; j < p; j++ {
		m.Coef[j] = beta.At(j+1, 0)
	}
	return m, nil
}
