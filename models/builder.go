package models

import (
	"sort"

	"github.com/btracey/crossval"
	"github.com/pkg/errors"
)

// Model kinds understood by Builder.
const (
	KindLogistic     = "logistic"
	KindLeastSquares = "lsq"
)

var (
	ErrUnknownKind = errors.New("models: unknown model kind")
	ErrUnknownGrid = errors.New("models: unknown grid")
)

// Builder returns a crossval.Builder that constructs trainers of the given
// kind from candidates. Settings a candidate does not name keep their
// defaults. The recognized settings are
//  logistic: solver, penalty, C, lambda, learning_rate, max_iter, epochs, l1, l2, best_epoch
//  lsq:      order, lambda
func Builder(kind string) (crossval.Builder, error) {
	switch kind {
	case KindLogistic:
		return func(c crossval.Candidate) (crossval.Trainer, error) {
			return NewLogistic(c)
		}, nil
	case KindLeastSquares:
		return func(c crossval.Candidate) (crossval.Trainer, error) {
			return NewLeastSquares(c)
		}, nil
	}
	return nil, errors.Wrapf(ErrUnknownKind, "%q", kind)
}

// NewLogistic builds a Logistic trainer from c.
//
// Setting C without a penalty selects the l2 penalty. The boolean l1 and l2
// settings select their penalty when true. A learning_rate without a solver
// selects gradient descent, and epochs is a synonym for max_iter. best_epoch
// scores each fold by its most accurate epoch.
func NewLogistic(c crossval.Candidate) (*Logistic, error) {
	l := &Logistic{}
	var err error
	if l.Solver, err = optText(c, "solver", ""); err != nil {
		return nil, err
	}
	if l.Penalty, err = optText(c, "penalty", ""); err != nil {
		return nil, err
	}
	if l.C, err = optFloat(c, "C", 0); err != nil {
		return nil, err
	}
	if l.Lambda, err = optFloat(c, "lambda", 0); err != nil {
		return nil, err
	}
	if l.LearningRate, err = optFloat(c, "learning_rate", 0); err != nil {
		return nil, err
	}
	if l.MaxIter, err = optInt(c, "epochs", 0); err != nil {
		return nil, err
	}
	if l.MaxIter, err = optInt(c, "max_iter", l.MaxIter); err != nil {
		return nil, err
	}
	l1, err := optBool(c, "l1", false)
	if err != nil {
		return nil, err
	}
	l2, err := optBool(c, "l2", false)
	if err != nil {
		return nil, err
	}
	if l.BestEpoch, err = optBool(c, "best_epoch", false); err != nil {
		return nil, err
	}

	switch {
	case l1 && l2:
		return nil, errors.Errorf("models: %v selects both l1 and l2 penalties", c)
	case l1:
		l.Penalty = PenaltyL1
	case l2:
		l.Penalty = PenaltyL2
	case l.Penalty == "" && l.C != 0:
		l.Penalty = PenaltyL2
	}
	if l.Solver == "" && l.LearningRate > 0 {
		l.Solver = "gd"
	}
	if _, err := l.method(); err != nil {
		return nil, err
	}
	return l, nil
}

// NewLeastSquares builds a LeastSquares trainer from c.
func NewLeastSquares(c crossval.Candidate) (*LeastSquares, error) {
	order, err := optInt(c, "order", 1)
	if err != nil {
		return nil, err
	}
	lambda, err := optFloat(c, "lambda", 0)
	if err != nil {
		return nil, err
	}
	if order < 1 {
		return nil, errors.Errorf("models: polynomial order %d is less than one", order)
	}
	if lambda < 0 {
		return nil, errors.Errorf("models: negative ridge penalty %v", lambda)
	}
	return &LeastSquares{Order: order, Lambda: lambda}, nil
}

// LogisticGrid is the C × solver × max_iter sweep for logistic regression.
var LogisticGrid = crossval.Grid{
	{Name: "C", Values: crossval.Floats(0.01, 0.1, 1, 10, 100, 1000, 10000)},
	{Name: "solver", Values: crossval.Strings("cg", "lbfgs", "bfgs", "gd")},
	{Name: "max_iter", Values: crossval.Ints(100, 1000, 100000, 1000000)},
}

var (
	gradientRates  = crossval.Floats(0.001, 0.002, 0.005, 0.01, 0.02, 0.05, 0.1)
	gradientLambda = crossval.Floats(0.0001, 0.0002, 0.0005, 0.001, 0.002, 0.005, 0.01, 0.02, 0.05, 0.1)
	gradientEpochs = crossval.Ints(10, 20, 30, 50, 100)
)

// RegularizedGrids are the gradient-descent sweeps with an l1 penalty and
// with an l2 penalty, over learning rate, penalty strength and epochs. Like
// UnregularizedGrid, they score every fold by its best epoch.
var RegularizedGrids = []crossval.Grid{
	{
		{Name: "learning_rate", Values: gradientRates},
		{Name: "lambda", Values: gradientLambda},
		{Name: "epochs", Values: gradientEpochs},
		{Name: "l1", Values: []interface{}{true}},
		{Name: "l2", Values: []interface{}{false}},
		{Name: "best_epoch", Values: []interface{}{true}},
	},
	{
		{Name: "learning_rate", Values: gradientRates},
		{Name: "lambda", Values: gradientLambda},
		{Name: "epochs", Values: gradientEpochs},
		{Name: "l1", Values: []interface{}{false}},
		{Name: "l2", Values: []interface{}{true}},
		{Name: "best_epoch", Values: []interface{}{true}},
	},
}

// UnregularizedGrid is the gradient-descent sweep with no penalty.
var UnregularizedGrid = crossval.Grid{
	{Name: "learning_rate", Values: gradientRates},
	{Name: "epochs", Values: gradientEpochs},
	{Name: "best_epoch", Values: []interface{}{true}},
}

// LeastSquaresGrid sweeps the polynomial order and ridge penalty.
var LeastSquaresGrid = crossval.Grid{
	{Name: "order", Values: crossval.Ints(1, 2, 3)},
	{Name: "lambda", Values: crossval.Floats(0, 0.01, 0.1, 1, 10)},
}

var grids = map[string]func() []crossval.Candidate{
	"logistic":      LogisticGrid.Candidates,
	"regularized":   func() []crossval.Candidate { return crossval.Concat(RegularizedGrids...) },
	"unregularized": UnregularizedGrid.Candidates,
	"lsq":           LeastSquaresGrid.Candidates,
}

// GridNames returns the names accepted by Candidates, sorted.
func GridNames() []string {
	names := make([]string, 0, len(grids))
	for name := range grids {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Candidates returns the candidates of the named built-in grid.
func Candidates(grid string) ([]crossval.Candidate, error) {
	f, ok := grids[grid]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownGrid, "%q (have %v)", grid, GridNames())
	}
	return f(), nil
}

func missing(err error) bool {
	return errors.Cause(err) == crossval.ErrMissingSetting
}

func optFloat(c crossval.Candidate, name string, def float64) (float64, error) {
	v, err := c.Float(name)
	if missing(err) {
		return def, nil
	}
	return v, err
}

func optInt(c crossval.Candidate, name string, def int) (int, error) {
	v, err := c.Int(name)
	if missing(err) {
		return def, nil
	}
	return v, err
}

func optText(c crossval.Candidate, name, def string) (string, error) {
	v, err := c.Text(name)
	if missing(err) {
		return def, nil
	}
	return v, err
}

func optBool(c crossval.Candidate, name string, def bool) (bool, error) {
	v, err := c.Bool(name)
	if missing(err) {
		return def, nil
	}
	return v, err
}
