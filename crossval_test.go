package crossval

import (
	"context"
	"fmt"
	"math"
	"sync"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/pkg/errors"
)

// sizeModel remembers the number of samples it was fit to.
type sizeModel struct {
	fitted bool
	n      int
}

// sizeTrainer scores a model by the fraction of the full dataset it was
// trained on, so the expected scores have a closed form.
type sizeTrainer struct {
	total int

	mu     sync.Mutex
	models []*sizeModel
}

func (s *sizeTrainer) New() Model {
	m := &sizeModel{}
	s.mu.Lock()
	s.models = append(s.models, m)
	s.mu.Unlock()
	return m
}

func (s *sizeTrainer) Fit(ctx context.Context, m Model, d *Dataset) (Model, error) {
	sm := m.(*sizeModel)
	if sm.fitted {
		return nil, errors.New("model fit twice")
	}
	sm.fitted = true
	sm.n = d.Len()
	return sm, nil
}

func (s *sizeTrainer) Evaluate(m Model, d *Dataset) (float64, error) {
	return float64(m.(*sizeModel).n) / float64(s.total), nil
}

func TestRun(t *testing.T) {
	for _, test := range []struct {
		Name       string
		Sizes      []int
		K          int
		Concurrent int
	}{
		{Name: "Serial", Sizes: []int{25, 25}, K: 5, Concurrent: 1},
		{Name: "Parallel", Sizes: []int{25, 25}, K: 5, Concurrent: 3},
		{Name: "Default workers", Sizes: []int{12, 9, 14}, K: 3},
		{Name: "More workers than folds", Sizes: []int{7, 7}, K: 7, Concurrent: 20},
	} {
		d := labelled(t, test.Sizes...)
		tr := &sizeTrainer{total: d.Len()}
		results, err := Run(context.Background(), d, test.K, 2, tr, &Settings{Concurrent: test.Concurrent})
		if err != nil {
			t.Errorf("Case %s: %v", test.Name, err)
			continue
		}
		folds, _ := StratifiedKFold(d, test.K, 2)
		if len(results) != test.K {
			t.Errorf("Case %s: %d results, want %d", test.Name, len(results), test.K)
			continue
		}
		for i, r := range results {
			want := float64(len(folds[i].Train)) / float64(d.Len())
			if r.Fold != i {
				t.Errorf("Case %s: result %d is for fold %d", test.Name, i, r.Fold)
			}
			if r.TrainScore != want || r.ValidationScore != want {
				t.Errorf("Case %s: fold %d scores %v, %v, want %v", test.Name, i, r.TrainScore, r.ValidationScore, want)
			}
		}
		// One fresh model per fold.
		if len(tr.models) != test.K {
			t.Errorf("Case %s: %d models created for %d folds", test.Name, len(tr.models), test.K)
		}
		for i, m := range tr.models {
			if !m.fitted {
				t.Errorf("Case %s: model %d never fit", test.Name, i)
			}
		}
	}
}

// firstHeldOut identifies the fold a training subset of labelled belongs to.
// The rows hold their sample index, so the first gap is the smallest held-out
// sample, and held-out sets are disjoint.
func firstHeldOut(d *Dataset) int {
	for i := 0; i < d.Len(); i++ {
		if int(d.Row(i)[0]) != i {
			return i
		}
	}
	return d.Len()
}

func TestRunErrors(t *testing.T) {
	d := labelled(t, 10, 10)
	errFit := errors.New("fit failed")
	errEval := errors.New("evaluate failed")

	failOn := func(fitFail, evalFail map[int]bool, score float64) Trainer {
		return TrainerFuncs{
			NewFunc: func() Model { return new(int) },
			FitFunc: func(ctx context.Context, m Model, d *Dataset) (Model, error) {
				first := firstHeldOut(d)
				if fitFail[first] {
					return nil, errFit
				}
				*m.(*int) = first
				return m, nil
			},
			EvaluateFunc: func(m Model, d *Dataset) (float64, error) {
				if evalFail[*m.(*int)] {
					return 0, errEval
				}
				return score, nil
			},
		}
	}
	folds, err := StratifiedKFold(d, 4, 1)
	if err != nil {
		t.Fatal(err)
	}
	firstOf := func(fold int) int { return folds[fold].Validation[0] }

	for _, test := range []struct {
		Name    string
		Trainer Trainer
		Err     error
		Fold    int
	}{
		{
			Name:    "Fit",
			Trainer: failOn(map[int]bool{firstOf(2): true}, nil, 0.5),
			Err:     errFit,
			Fold:    2,
		},
		{
			Name:    "Evaluate",
			Trainer: failOn(nil, map[int]bool{firstOf(1): true}, 0.5),
			Err:     errEval,
			Fold:    1,
		},
		{
			Name: "Fit panics",
			Trainer: TrainerFuncs{
				NewFunc: func() Model { return nil },
				FitFunc: func(ctx context.Context, m Model, d *Dataset) (Model, error) {
					if firstHeldOut(d) == firstOf(3) {
						panic("fit exploded")
					}
					return nil, nil
				},
				EvaluateFunc: func(m Model, d *Dataset) (float64, error) { return 0.5, nil },
			},
			Err:  ErrPanic,
			Fold: 3,
		},
		{
			Name:    "Score above one",
			Trainer: failOn(nil, nil, 1.5),
			Err:     ErrScoreOutOfRange,
			Fold:    0,
		},
		{
			Name:    "NaN score",
			Trainer: failOn(nil, nil, math.NaN()),
			Err:     ErrScoreOutOfRange,
			Fold:    0,
		},
	} {
		for _, concurrent := range []int{1, 4} {
			results, err := RunFolds(context.Background(), d, folds, test.Trainer, &Settings{Concurrent: concurrent})
			if results != nil {
				t.Errorf("Case %s: results returned with an error", test.Name)
			}
			if errors.Cause(err) != test.Err {
				t.Errorf("Case %s (%d workers): got %v, want %v", test.Name, concurrent, err, test.Err)
				continue
			}
			// Several folds may fail at once; the lowest is reported.
			if concurrent == 1 || test.Err != ErrScoreOutOfRange {
				prefix := fmt.Sprintf("fold %d:", test.Fold)
				if got := err.Error(); len(got) < len(prefix) || got[:len(prefix)] != prefix {
					t.Errorf("Case %s: error %q does not start with %q", test.Name, got, prefix)
				}
			}
		}
	}
}

// A panicking trainer must not take down the process, whatever the number
// of workers.
func TestRunPanicInWorker(t *testing.T) {
	d := labelled(t, 10, 10)
	tr := TrainerFuncs{
		NewFunc: func() Model { return nil },
		FitFunc: func(ctx context.Context, m Model, d *Dataset) (Model, error) {
			panic("fit exploded")
		},
		EvaluateFunc: func(m Model, d *Dataset) (float64, error) { return 1, nil },
	}
	for _, concurrent := range []int{1, 2, 0} {
		results, err := Run(context.Background(), d, 5, 1, tr, &Settings{Concurrent: concurrent})
		if errors.Cause(err) != ErrPanic || results != nil {
			t.Errorf("%d workers: got %v, %v, want %v", concurrent, results, err, ErrPanic)
			continue
		}
		if !strings.Contains(err.Error(), "fit exploded") {
			t.Errorf("%d workers: error %q lost the panic value", concurrent, err)
		}
	}
}

func TestRunCancel(t *testing.T) {
	d := labelled(t, 20, 20)
	ctx, cancel := context.WithCancel(context.Background())
	var fits int64
	tr := TrainerFuncs{
		NewFunc: func() Model { return nil },
		FitFunc: func(ctx context.Context, m Model, d *Dataset) (Model, error) {
			if atomic.AddInt64(&fits, 1) == 2 {
				cancel()
			}
			return nil, nil
		},
		EvaluateFunc: func(m Model, d *Dataset) (float64, error) { return 1, nil },
	}
	results, err := Run(ctx, d, 10, 1, tr, &Settings{Concurrent: 1})
	if err != context.Canceled {
		t.Errorf("got %v, want context.Canceled", err)
	}
	if results != nil {
		t.Errorf("results returned after cancellation")
	}
	if fits != 2 {
		t.Errorf("%d folds fit after cancellation at the second", fits)
	}
}

func TestRunPanics(t *testing.T) {
	d := labelled(t, 4, 4)
	ctx := context.Background()
	build := func(Candidate) (Trainer, error) { return &sizeTrainer{}, nil }
	for name, f := range map[string]func(){
		"nil dataset":                 func() { RunFolds(ctx, nil, nil, &sizeTrainer{}, nil) },
		"nil trainer":                 func() { RunFolds(ctx, d, nil, nil, nil) },
		"Run nil dataset":             func() { Run(ctx, nil, 2, 1, &sizeTrainer{}, nil) },
		"Run nil trainer":             func() { Run(ctx, d, 2, 1, nil, nil) },
		"StratifiedKFold nil dataset": func() { StratifiedKFold(nil, 2, 1) },
		"Sweep nil dataset":           func() { Sweep(ctx, nil, 2, 1, nil, build, nil) },
		"Sweep nil builder":           func() { Sweep(ctx, d, 2, 1, nil, nil, nil) },
	} {
		func() {
			defer func() {
				r := recover()
				if r == nil {
					t.Errorf("%s: no panic", name)
					return
				}
				if msg, ok := r.(string); !ok || !strings.HasPrefix(msg, "crossval: nil") {
					t.Errorf("%s: panicked with %v", name, r)
				}
			}()
			f()
		}()
	}
}
