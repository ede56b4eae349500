// package models provides baseline classifiers that implement
// crossval.Trainer, and a Builder that constructs them from hyperparameter
// candidates.
//
// The classifiers standardize every feature with the mean and standard
// deviation of the training set before fitting, and predict the class with
// the largest score.
package models

import (
	"github.com/btracey/crossval"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

var (
	ErrEmptyDataset  = errors.New("models: empty dataset")
	ErrUnknownSolver = errors.New("models: unknown solver")
)

// Classifier predicts a class label for a feature vector.
type Classifier interface {
	Predict(x []float64) int
}

// Accuracy returns the fraction of samples in d whose label c predicts
// correctly.
func Accuracy(c Classifier, d *crossval.Dataset) (float64, error) {
	n := d.Len()
	if n == 0 {
		return 0, errors.Wrap(ErrEmptyDataset, "accuracy")
	}
	var correct int
	for i := 0; i < n; i++ {
		if c.Predict(d.Row(i)) == d.Label(i) {
			correct++
		}
	}
	return float64(correct) / float64(n), nil
}

// scaler standardizes features column by column.
type scaler struct {
	Mean []float64 `json:"mean"`
	Std  []float64 `json:"std"`
}

func fitScaler(x mat.Matrix) scaler {
	r, c := x.Dims()
	s := scaler{
		Mean: make([]float64, c),
		Std:  make([]float64, c),
	}
	col := make([]float64, r)
	for j := 0; j < c; j++ {
		mat.Col(col, j, x)
		mean, std := stat.MeanStdDev(col, nil)
		if !(std > 0) {
			// Constant column, or a single sample.
			std = 1
		}
		s.Mean[j] = mean
		s.Std[j] = std
	}
	return s
}

// transform stores the standardized x into dst and returns dst.
func (s scaler) transform(dst, x []float64) []float64 {
	if dst == nil {
		dst = make([]float64, len(x))
	}
	for j, v := range x {
		dst[j] = (v - s.Mean[j]) / s.Std[j]
	}
	return dst
}

// transformAll returns a standardized copy of x.
func (s scaler) transformAll(x *mat.Dense) *mat.Dense {
	r, c := x.Dims()
	z := mat.NewDense(r, c, nil)
	for i := 0; i < r; i++ {
		s.transform(z.RawRowView(i), x.RawRowView(i))
	}
	return z
}
