package crossval

import (
	"context"
	"math"

	"github.com/pkg/errors"
)

// CurvePoint is the score of a model trained on the first Samples samples of
// the training pool.
type CurvePoint struct {
	Samples         int     `json:"samples"`
	TrainScore      float64 `json:"train_score"`
	ValidationScore float64 `json:"validation_score"`
}

// LearningCurve measures how the scores change with the amount of training
// data. The first floor(validationFraction*N) samples of d are held out for
// validation, and the remaining samples form the training pool, in order. The
// pool is divided into numIncrements equal chunks, and step i trains a new
// model on chunks 1 through i and scores it on those chunks and on the
// held-out samples.
//
// numIncrements must evenly divide the pool size; samples are never silently
// dropped. If no samples are held out, ValidationScore is NaN.
func LearningCurve(ctx context.Context, d *Dataset, validationFraction float64, numIncrements int, t Trainer, s *Settings) ([]CurvePoint, error) {
	if d == nil {
		panic("crossval: nil Dataset")
	}
	if t == nil {
		panic("crossval: nil Trainer")
	}
	if math.IsNaN(validationFraction) || validationFraction < 0 || validationFraction >= 1 {
		return nil, errors.Wrapf(ErrInvalidValidationFraction, "%v", validationFraction)
	}
	n := d.Len()
	split := int(math.Floor(validationFraction * float64(n)))
	pool := n - split
	if numIncrements < 1 || pool == 0 || pool%numIncrements != 0 {
		return nil, errors.Wrapf(ErrInvalidIncrementCount, "%d increments for %d training samples", numIncrements, pool)
	}
	chunk := pool / numIncrements

	inds := make([]int, n)
	for i := range inds {
		inds[i] = i
	}
	validation := d.Subset(inds[:split])
	trainPool := inds[split:]

	points := make([]CurvePoint, 0, numIncrements)
	for i := 1; i <= numIncrements; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		train := d.Subset(trainPool[:i*chunk])
		m, err := t.Fit(ctx, t.New(), train)
		if err != nil {
			return nil, errors.Wrapf(err, "increment %d: fit", i)
		}
		trainScore, err := score(t, m, train)
		if err != nil {
			return nil, errors.Wrapf(err, "increment %d: evaluate training set", i)
		}
		validScore := math.NaN()
		if split > 0 {
			validScore, err = score(t, m, validation)
			if err != nil {
				return nil, errors.Wrapf(err, "increment %d: evaluate validation set", i)
			}
		}
		p := CurvePoint{
			Samples:         train.Len(),
			TrainScore:      trainScore,
			ValidationScore: validScore,
		}
		points = append(points, p)
		s.logf("%d samples: train %.3f, validation %.3f", p.Samples, p.TrainScore, p.ValidationScore)
	}
	return points, nil
}
