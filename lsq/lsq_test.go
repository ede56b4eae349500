package lsq

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

func TestPolynomialTerms(t *testing.T) {
	p := Polynomial{Order: 3}
	if n := p.NumTerms(2); n != 7 {
		t.Fatalf("NumTerms = %d, want 7", n)
	}
	terms := make([]float64, 7)
	p.Terms(terms, []float64{2, -1})
	want := []float64{1, 2, -1, 4, 1, 8, -1}
	if !floats.Equal(terms, want) {
		t.Errorf("terms = %v, want %v", terms, want)
	}
}

func TestCoeffs(t *testing.T) {
	const tol = 1e-10
	// y = 1 + 2x - 3x^2 sampled without noise.
	xs := mat.NewDense(6, 1, []float64{-2, -1, 0, 1, 2, 3})
	ys := make([]float64, 6)
	for i := range ys {
		x := xs.At(i, 0)
		ys[i] = 1 + 2*x - 3*x*x
	}
	all := []int{0, 1, 2, 3, 4, 5}
	p := Polynomial{Order: 2}

	for _, test := range []struct {
		Name    string
		Weights []float64
		Inds    []int
	}{
		{Name: "Unweighted", Inds: all},
		{Name: "Weighted", Weights: []float64{1, 2, 3, 4, 5, 6}, Inds: all},
		{Name: "Subset", Inds: []int{0, 2, 5}},
	} {
		beta, err := Coeffs(xs, ys, test.Weights, test.Inds, 0, p)
		if err != nil {
			t.Errorf("Case %s: %v", test.Name, err)
			continue
		}
		if !floats.EqualApprox(beta, []float64{1, 2, -3}, tol) {
			t.Errorf("Case %s: beta = %v", test.Name, beta)
		}
		if got := Predict(beta, []float64{0.5}, p); math.Abs(got-1.25) > tol {
			t.Errorf("Case %s: prediction %v, want 1.25", test.Name, got)
		}
	}
}

// The ridge penalty shrinks the slope but leaves the intercept free.
func TestCoeffsRidge(t *testing.T) {
	xs := mat.NewDense(4, 1, []float64{-3, -1, 1, 3})
	ys := []float64{4, 4.5, 5.5, 6}
	inds := []int{0, 1, 2, 3}
	p := Polynomial{Order: 1}

	var prev = math.Inf(1)
	for _, lambda := range []float64{0, 1, 10, 1000} {
		beta, err := Coeffs(xs, ys, nil, inds, lambda, p)
		if err != nil {
			t.Fatal(err)
		}
		if math.Abs(beta[0]-5) > 1e-10 {
			t.Errorf("lambda %v: intercept %v, want 5", lambda, beta[0])
		}
		if beta[1] >= prev || beta[1] <= 0 {
			t.Errorf("lambda %v: slope %v did not shrink from %v", lambda, beta[1], prev)
		}
		prev = beta[1]
	}
}
