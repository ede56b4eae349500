package models

import (
	"context"

	"github.com/btracey/crossval"
	"github.com/btracey/crossval/lsq"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// LeastSquares trains one-vs-rest least-squares classifiers. For every class
// a ridge regression onto +1 (member) and -1 (non-member) targets is fit
// with polynomial terms up to Order, and the class with the largest
// regression output is predicted.
type LeastSquares struct {
	// Order is the polynomial order. Zero is treated as one.
	Order int
	// Lambda is the ridge penalty on the non-constant terms. Values below
	// 1e-6 are raised to 1e-6.
	Lambda float64
}

var _ crossval.Trainer = (*LeastSquares)(nil)

// LeastSquaresModel is a fitted one-vs-rest least-squares classifier.
type LeastSquaresModel struct {
	Coeffs [][]float64 // One coefficient vector per class.
	Terms  lsq.Polynomial
	Scale  scaler
}

func (l *LeastSquares) New() crossval.Model {
	return &LeastSquaresModel{}
}

func (l *LeastSquares) Fit(ctx context.Context, m crossval.Model, d *crossval.Dataset) (crossval.Model, error) {
	n := d.Len()
	if n == 0 {
		return nil, errors.Wrap(ErrEmptyDataset, "least squares")
	}
	if l.Lambda < 0 {
		return nil, errors.Errorf("models: negative ridge penalty %v", l.Lambda)
	}
	lambda := l.Lambda
	if lambda < minRidge {
		lambda = minRidge
	}
	order := l.Order
	if order < 1 {
		order = 1
	}
	sc := fitScaler(d.Matrix())
	x := sc.transformAll(d.Matrix())
	terms := lsq.Polynomial{Order: order}

	inds := make([]int, n)
	for i := range inds {
		inds[i] = i
	}
	ys := make([]float64, n)
	fit := &LeastSquaresModel{
		Coeffs: make([][]float64, d.NumClasses()),
		Terms:  terms,
		Scale:  sc,
	}
	for c := range fit.Coeffs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for i := range ys {
			ys[i] = -1
			if d.Label(i) == c {
				ys[i] = 1
			}
		}
		beta, err := lsq.Coeffs(x, ys, nil, inds, lambda, terms)
		if err != nil {
			// A poorly conditioned system still has a usable solution.
			if _, ok := errors.Cause(err).(mat.Condition); !ok {
				return nil, errors.Wrapf(err, "class %d", c)
			}
		}
		fit.Coeffs[c] = beta
	}
	return fit, nil
}

// minRidge is the smallest ridge penalty used. Collinear terms, such as x and
// x² of a binary feature, have no unique unpenalized solution; the ridge
// picks the shortest one.
const minRidge = 1e-6

func (l *LeastSquares) Evaluate(m crossval.Model, d *crossval.Dataset) (float64, error) {
	return Accuracy(m.(*LeastSquaresModel), d)
}

func (m *LeastSquaresModel) Predict(x []float64) int {
	z := m.Scale.transform(nil, x)
	out := make([]float64, len(m.Coeffs))
	for c, beta := range m.Coeffs {
		out[c] = lsq.Predict(beta, z, m.Terms)
	}
	return floats.MaxIdx(out)
}
