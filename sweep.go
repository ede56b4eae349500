package crossval

import (
	"context"
	"fmt"
	"math"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Builder constructs the Trainer for a hyperparameter candidate.
type Builder func(c Candidate) (Trainer, error)

// SweepResult aggregates the fold results for one candidate.
type SweepResult struct {
	Candidate           Candidate    `json:"candidate"`
	MeanTrainScore      float64      `json:"mean_train_score"`
	MeanValidationScore float64      `json:"mean_validation_score"`
	MaxTrainScore       float64      `json:"max_train_score"`
	MaxValidationScore  float64      `json:"max_validation_score"`
	StdValidationScore  float64      `json:"std_validation_score"` // sample standard deviation over folds
	Folds               []FoldResult `json:"folds"`
}

// Sweep cross-validates every candidate on the same k folds of d and returns
// the aggregated results in candidate order. Candidates are evaluated
// concurrently according to s; the folds of a single candidate run serially.
//
// If s.Store is set, a stored result for the same dataset, k, seed, and
// candidate is used instead of training, and new results are stored.
func Sweep(ctx context.Context, d *Dataset, k int, seed uint64, candidates []Candidate, b Builder, s *Settings) ([]SweepResult, error) {
	if d == nil {
		panic("crossval: nil Dataset")
	}
	if b == nil {
		panic("crossval: nil Builder")
	}
	folds, err := StratifiedKFold(d, k, seed)
	if err != nil {
		return nil, err
	}
	var store ResultStore
	var fingerprint uuid.UUID
	if s != nil && s.Store != nil {
		store = s.Store
		fingerprint = d.Fingerprint()
	}

	inner := &Settings{Concurrent: 1}
	results := make([]SweepResult, len(candidates))
	err = forEachIndex(ctx, len(candidates), s.concurrent(), func(ctx context.Context, i int) error {
		c := candidates[i]
		var key string
		if store != nil {
			key = runKey(fingerprint, k, seed, c)
			r, ok, err := store.Get(ctx, key)
			if err != nil {
				return errors.Wrapf(err, "candidate %d (%v): store lookup", i, c)
			}
			if ok {
				r.Candidate = c
				results[i] = r
				s.logf("%v: stored, mean validation %.3f", c, r.MeanValidationScore)
				return nil
			}
		}

		t, err := b(c)
		if err != nil {
			return errors.Wrapf(err, "candidate %d (%v)", i, c)
		}
		fr, err := RunFolds(ctx, d, folds, t, inner)
		if err != nil {
			return errors.Wrapf(err, "candidate %d (%v)", i, c)
		}
		r := Summarize(c, fr)
		results[i] = r
		s.logf("%v: mean train %.3f, mean validation %.3f, max validation %.3f",
			c, r.MeanTrainScore, r.MeanValidationScore, r.MaxValidationScore)

		if store != nil {
			if err := store.Put(ctx, key, r); err != nil {
				return errors.Wrapf(err, "candidate %d (%v): store update", i, c)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}

// Best returns the result with the highest mean validation score. If several
// results share the highest score, the first of them is returned.
func Best(results []SweepResult) (SweepResult, error) {
	if len(results) == 0 {
		return SweepResult{}, ErrNoResults
	}
	valid := make([]float64, len(results))
	for i, r := range results {
		valid[i] = r.MeanValidationScore
	}
	return results[floats.MaxIdx(valid)], nil
}

// RunKey returns the key under which Sweep stores the result of evaluating c
// on d with k folds and the given seed.
func RunKey(d *Dataset, k int, seed uint64, c Candidate) string {
	return runKey(d.Fingerprint(), k, seed, c)
}

func runKey(fingerprint uuid.UUID, k int, seed uint64, c Candidate) string {
	name := fmt.Sprintf("k=%d;seed=%d;%s", k, seed, c)
	return uuid.NewSHA1(fingerprint, []byte(name)).String()
}

// Summarize aggregates the fold results of a candidate. folds must not be
// empty.
func Summarize(c Candidate, folds []FoldResult) SweepResult {
	train := make([]float64, len(folds))
	valid := make([]float64, len(folds))
	for i, f := range folds {
		train[i] = f.TrainScore
		valid[i] = f.ValidationScore
	}
	mean, std := stat.MeanStdDev(valid, nil)
	if len(valid) < 2 || math.IsNaN(std) {
		std = 0
	}
	return SweepResult{
		Candidate:           c,
		MeanTrainScore:      stat.Mean(train, nil),
		MeanValidationScore: mean,
		MaxTrainScore:       floats.Max(train),
		MaxValidationScore:  floats.Max(valid),
		StdValidationScore:  std,
		Folds:               folds,
	}
}
