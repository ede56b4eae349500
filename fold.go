package crossval

import (
	"math/rand/v2"
	"sort"

	"github.com/pkg/errors"
)

// Fold is one partition of the samples. Each index refers to a sample in the
// Dataset the fold was generated from. Both lists are sorted.
type Fold struct {
	Train      []int // samples used to fit the model
	Validation []int // held-out samples used to score the fit
}

// newRand returns the generator used for every shuffle in the package, so
// that a seed always means the same sequence.
func newRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// KFold partitions nData samples into k folds without regard to labels. The
// held-out sets are contiguous runs of a seeded permutation, and the first
// nData%k folds hold one extra sample.
func KFold(nData, k int, seed uint64) ([]Fold, error) {
	if k < 2 || k > nData {
		return nil, errors.Wrapf(ErrInvalidFoldCount, "k = %d with %d samples", k, nData)
	}
	perm := newRand(seed).Perm(nData)

	nSampPerFold := nData / k
	remainder := nData % k

	validation := make([][]int, k)
	idx := 0
	for i := 0; i < k; i++ {
		nTestElems := nSampPerFold
		if i < remainder {
			nTestElems++
		}
		validation[i] = make([]int, nTestElems)
		copy(validation[i], perm[idx:idx+nTestElems])
		idx += nTestElems
	}
	if idx != nData {
		panic("crossval: bad partition")
	}
	return complementFolds(nData, validation), nil
}

// StratifiedKFold partitions the samples of d into k folds such that each
// held-out set preserves the label distribution of d to within one sample per
// class. The members of each class are shuffled and then dealt round-robin to
// the folds, continuing from the fold where the previous class stopped, so
// fold sizes also differ by at most one.
//
// The same dataset, k and seed always produce the same folds.
func StratifiedKFold(d *Dataset, k int, seed uint64) ([]Fold, error) {
	if d == nil {
		panic("crossval: nil Dataset")
	}
	nData := d.Len()
	if k < 2 || k > nData {
		return nil, errors.Wrapf(ErrInvalidFoldCount, "k = %d with %d samples", k, nData)
	}
	members := d.classMembers()
	for class, m := range members {
		if len(m) > 0 && len(m) < k {
			return nil, errors.Wrapf(ErrInsufficientSamplesPerClass,
				"class %d has %d samples, k = %d", class, len(m), k)
		}
	}

	rnd := newRand(seed)
	validation := make([][]int, k)
	for i := range validation {
		validation[i] = make([]int, 0, nData/k+1)
	}
	next := 0
	for _, m := range members {
		shuffled := make([]int, len(m))
		copy(shuffled, m)
		rnd.Shuffle(len(shuffled), func(i, j int) {
			shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
		})
		for _, idx := range shuffled {
			validation[next] = append(validation[next], idx)
			next = (next + 1) % k
		}
	}
	return complementFolds(nData, validation), nil
}

// complementFolds sorts each held-out set and builds the matching training
// set from every other index.
func complementFolds(nData int, validation [][]int) []Fold {
	folds := make([]Fold, len(validation))
	held := make([]bool, nData)
	for i, v := range validation {
		sort.Ints(v)
		for j := range held {
			held[j] = false
		}
		for _, idx := range v {
			held[idx] = true
		}
		train := make([]int, 0, nData-len(v))
		for j, h := range held {
			if !h {
				train = append(train, j)
			}
		}
		folds[i] = Fold{Train: train, Validation: v}
	}
	return folds
}
