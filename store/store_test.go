package store

import (
	"context"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/btracey/crossval"
	"github.com/google/uuid"
)

func testDataset(t *testing.T) *crossval.Dataset {
	rows := make([][]float64, 20)
	labels := make([]int, 20)
	for i := range rows {
		rows[i] = []float64{float64(i)}
		labels[i] = i % 2
	}
	d, err := crossval.NewDatasetRows(rows, labels, 2)
	if err != nil {
		t.Fatal(err)
	}
	return d
}

// countingBuilder scores every fold with the candidate's "score" setting and
// counts the calls to Fit.
func countingBuilder(fits *int64) crossval.Builder {
	return func(c crossval.Candidate) (crossval.Trainer, error) {
		score, err := c.Float("score")
		if err != nil {
			return nil, err
		}
		return crossval.TrainerFuncs{
			NewFunc: func() crossval.Model { return nil },
			FitFunc: func(ctx context.Context, m crossval.Model, d *crossval.Dataset) (crossval.Model, error) {
				atomic.AddInt64(fits, 1)
				return nil, nil
			},
			EvaluateFunc: func(m crossval.Model, d *crossval.Dataset) (float64, error) {
				return score, nil
			},
		}, nil
	}
}

func testSweepStore(t *testing.T, s Store) {
	ctx := context.Background()
	d := testDataset(t)
	cands := crossval.Grid{{Name: "score", Values: crossval.Floats(0.25, 0.75)}}.Candidates()

	var fits int64
	settings := &crossval.Settings{Store: s}
	first, err := crossval.Sweep(ctx, d, 4, 1, cands, countingBuilder(&fits), settings)
	if err != nil {
		t.Fatal(err)
	}
	if fits != 8 {
		t.Errorf("first sweep fit %d models, want 8", fits)
	}

	second, err := crossval.Sweep(ctx, d, 4, 1, cands, countingBuilder(&fits), settings)
	if err != nil {
		t.Fatal(err)
	}
	if fits != 8 {
		t.Errorf("second sweep fit %d more models, want 0", fits-8)
	}
	for i := range first {
		if first[i].MeanValidationScore != second[i].MeanValidationScore {
			t.Errorf("candidate %d: stored mean %v, computed %v", i, second[i].MeanValidationScore, first[i].MeanValidationScore)
		}
		if second[i].Candidate.String() != cands[i].String() {
			t.Errorf("candidate %d: stored result is for %v", i, second[i].Candidate)
		}
		if len(second[i].Folds) != 4 {
			t.Errorf("candidate %d: stored result has %d folds", i, len(second[i].Folds))
		}
	}

	// A different seed is a different run.
	if _, err := crossval.Sweep(ctx, d, 4, 2, cands, countingBuilder(&fits), settings); err != nil {
		t.Fatal(err)
	}
	if fits != 16 {
		t.Errorf("sweep with a new seed fit %d models, want 8", fits-8)
	}
}

func TestMemory(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	if _, ok, err := m.Get(ctx, "absent"); ok || err != nil {
		t.Errorf("empty store: ok = %v, err = %v", ok, err)
	}
	testSweepStore(t, m)
	if m.Len() != 4 {
		t.Errorf("store holds %d results, want 4", m.Len())
	}
}

func TestRedis(t *testing.T) {
	addr := os.Getenv("CROSSVAL_TEST_REDIS")
	if addr == "" {
		t.Skip("CROSSVAL_TEST_REDIS not set")
	}
	ctx := context.Background()
	r, err := NewRedis(ctx, RedisOptions{
		Addr:   addr,
		Prefix: "crossval-test:" + uuid.New().String() + ":",
		TTL:    time.Minute,
	})
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	if _, ok, err := r.Get(ctx, "absent"); ok || err != nil {
		t.Errorf("empty store: ok = %v, err = %v", ok, err)
	}
	testSweepStore(t, r)

	d := testDataset(t)
	key := crossval.RunKey(d, 4, 1, crossval.NewCandidate().With("score", 0.25))
	if _, ok, _ := r.Get(ctx, key); !ok {
		t.Errorf("no result under %s", key)
	}
	if err := r.Delete(ctx, key); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := r.Get(ctx, key); ok {
		t.Errorf("result under %s survived Delete", key)
	}
}
