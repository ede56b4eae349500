// package lsq is a simple package for making regularized least-squares fits.
// This package assumes that the functional approximation is
//  f(x) = β_0 * t_0(x) + β_1 * t_1(x) + ... + β_n * t_n(x)
// where the t_i are functions of the input as set by the Termer, and the β_i
// are free parameters that are set by minimizing
//  \sum_i w_i (f(x_i) - y_i)^2 + λ \sum_{j>0} β_j^2
// over a set of training samples. The constant term β_0 is not penalized.
package lsq

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Termer is a type that can set the nonlinear functions from a particular input.
// See the package documentation for more information.
type Termer interface {
	// NumTerms returns the number of terms in the least squares fit as a function
	// of the input dimension of x.
	NumTerms(dim int) int
	// Terms computes the terms given the input, and stores them in-place into
	// terms.
	Terms(terms, x []float64)
}

// Coeffs finds the optimal coefficients given the input data and the Termer.
// Only the rows of xs listed in inds are used. weights may be nil, in which
// case every sample has weight one. lambda is the ridge penalty and must be
// non-negative.
func Coeffs(xs mat.Matrix, ys, weights []float64, inds []int, lambda float64, t Termer) (beta []float64, err error) {
	if lambda < 0 {
		panic("lsq: negative ridge penalty")
	}
	_, nDim := xs.Dims()

	nTerms := t.NumTerms(nDim)
	nRows := len(inds)
	if lambda > 0 {
		// Augment the system with sqrt(λ) on the diagonal of the
		// non-constant terms.
		nRows += nTerms - 1
	}
	A := mat.NewDense(nRows, nTerms, nil)
	b := mat.NewVecDense(nRows, nil)

	terms := make([]float64, nTerms)
	row := make([]float64, nDim)
	for i, idx := range inds {
		mat.Row(row, idx, xs)
		t.Terms(terms, row)
		sw := 1.0
		if weights != nil {
			// Weighted least squares multiplies both sides by sqrt(weight).
			sw = math.Sqrt(weights[idx])
		}
		for j := range terms {
			terms[j] *= sw
		}
		A.SetRow(i, terms)
		b.SetVec(i, ys[idx]*sw)
	}
	if lambda > 0 {
		sl := math.Sqrt(lambda)
		for j := 1; j < nTerms; j++ {
			A.Set(len(inds)+j-1, j, sl)
		}
	}

	beta = make([]float64, nTerms)
	betaVec := mat.NewVecDense(len(beta), beta)
	err = betaVec.SolveVec(A, b)
	if err != nil {
		r, c := A.Dims()
		return beta, errors.Wrapf(err, "lsq: solving %d×%d system", r, c)
	}
	return beta, nil
}

// Predict evaluates the fit with coefficients beta at x.
func Predict(beta, x []float64, t Termer) float64 {
	terms := make([]float64, len(beta))
	t.Terms(terms, x)
	return floats.Dot(terms, beta)
}

// Polynomial uses all of the individual terms up to Order, but none of the
// cross-terms:
//  1, x_1, x_2, ... x_n , x_1^2, ..., x_n^2, ... , x_1^order, ..., x_n^order
type Polynomial struct {
	Order int
}

func (p Polynomial) NumTerms(dim int) int {
	return 1 + p.Order*dim
}

func (p Polynomial) Terms(terms, x []float64) {
	dim := len(x)
	terms[0] = 1
	for i := 0; i < p.Order; i++ {
		for j, v := range x {
			terms[1+j+dim*i] = math.Pow(v, float64(i)+1)
		}
	}
}
