// package crossval implements stratified k-fold cross-validation and
// hyperparameter selection for classifiers.
//
// The model itself is opaque to this package. A Trainer supplies fresh,
// untrained models, fits them to a subset of the data, and scores them. The
// routines here decide which samples each model sees, run the folds (in
// parallel when asked), and aggregate the scores:
//
//   - StratifiedKFold partitions a Dataset into label-balanced folds.
//   - Run trains and scores one model per fold.
//   - Sweep runs cross-validation for each of a set of hyperparameter
//     Candidates, and Best selects the winner.
//   - LearningCurve scores models trained on increasing amounts of data.
//
// No routine retries a failed fit. Errors from the Trainer are returned to the
// caller, annotated with the fold or candidate that produced them.
package crossval

import (
	"context"
	"log"
	"math"

	"github.com/pkg/errors"
)

// Model is a trained or untrained model. Its contents are defined by the
// Trainer that created it.
type Model interface{}

// Trainer creates, fits, and scores models. A Trainer must be safe to use
// from multiple goroutines as long as each goroutine works on its own Model.
type Trainer interface {
	// New returns a fresh, untrained model.
	New() Model
	// Fit trains m on d, and returns the trained model. The returned model
	// may be m itself.
	Fit(ctx context.Context, m Model, d *Dataset) (Model, error)
	// Evaluate returns a score in [0, 1] for m on d, such as accuracy.
	Evaluate(m Model, d *Dataset) (float64, error)
}

// TrainerFuncs adapts three functions to a Trainer.
type TrainerFuncs struct {
	NewFunc      func() Model
	FitFunc      func(ctx context.Context, m Model, d *Dataset) (Model, error)
	EvaluateFunc func(m Model, d *Dataset) (float64, error)
}

func (t TrainerFuncs) New() Model { return t.NewFunc() }

func (t TrainerFuncs) Fit(ctx context.Context, m Model, d *Dataset) (Model, error) {
	return t.FitFunc(ctx, m, d)
}

func (t TrainerFuncs) Evaluate(m Model, d *Dataset) (float64, error) {
	return t.EvaluateFunc(m, d)
}

// ResultStore caches sweep results between runs. See package store for
// implementations.
type ResultStore interface {
	Get(ctx context.Context, key string) (SweepResult, bool, error)
	Put(ctx context.Context, key string, r SweepResult) error
}

// Settings controls how the routines execute. A nil *Settings is valid and
// uses the defaults.
type Settings struct {
	// Concurrent is the number of workers. If 0, defaults to GOMAXPROCS.
	Concurrent int
	// Store, if non-nil, is consulted by Sweep before evaluating a candidate
	// and updated afterwards.
	Store ResultStore
	// Logger, if non-nil, receives a line per finished candidate or curve
	// point.
	Logger *log.Logger
}

func (s *Settings) concurrent() int {
	if s == nil {
		return 0
	}
	return s.Concurrent
}

func (s *Settings) logf(format string, args ...interface{}) {
	if s == nil || s.Logger == nil {
		return
	}
	s.Logger.Printf(format, args...)
}

// FoldResult is the score of the model trained on one fold.
type FoldResult struct {
	Fold            int     `json:"fold"`
	TrainScore      float64 `json:"train_score"`
	ValidationScore float64 `json:"validation_score"`
}

// Run partitions d into k stratified folds using seed, and for each fold
// trains a new model on the training samples and scores it on both the
// training and the held-out samples. Results are returned in fold order.
//
// If any fold fails, Run returns the error from the lowest-numbered failing
// fold and no results.
func Run(ctx context.Context, d *Dataset, k int, seed uint64, t Trainer, s *Settings) ([]FoldResult, error) {
	if d == nil {
		panic("crossval: nil Dataset")
	}
	if t == nil {
		panic("crossval: nil Trainer")
	}
	folds, err := StratifiedKFold(d, k, seed)
	if err != nil {
		return nil, err
	}
	return RunFolds(ctx, d, folds, t, s)
}

// RunFolds is like Run but uses the given folds.
func RunFolds(ctx context.Context, d *Dataset, folds []Fold, t Trainer, s *Settings) ([]FoldResult, error) {
	if d == nil {
		panic("crossval: nil Dataset")
	}
	if t == nil {
		panic("crossval: nil Trainer")
	}
	results := make([]FoldResult, len(folds))
	err := forEachIndex(ctx, len(folds), s.concurrent(), func(ctx context.Context, i int) error {
		r, err := runFold(ctx, d, folds[i], t)
		if err != nil {
			return errors.Wrapf(err, "fold %d", i)
		}
		r.Fold = i
		results[i] = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}

func runFold(ctx context.Context, d *Dataset, fold Fold, t Trainer) (res FoldResult, err error) {
	defer recoverPanic(&err)
	train := d.Subset(fold.Train)
	validation := d.Subset(fold.Validation)

	m, err := t.Fit(ctx, t.New(), train)
	if err != nil {
		return FoldResult{}, errors.Wrap(err, "fit")
	}
	trainScore, err := score(t, m, train)
	if err != nil {
		return FoldResult{}, errors.Wrap(err, "evaluate training set")
	}
	validScore, err := score(t, m, validation)
	if err != nil {
		return FoldResult{}, errors.Wrap(err, "evaluate validation set")
	}
	return FoldResult{
		TrainScore:      trainScore,
		ValidationScore: validScore,
	}, nil
}

// score evaluates m on d and checks the result is a valid score.
func score(t Trainer, m Model, d *Dataset) (float64, error) {
	v, err := t.Evaluate(m, d)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || v < 0 || v > 1 {
		return 0, errors.Wrapf(ErrScoreOutOfRange, "score %v", v)
	}
	return v, nil
}
