package models

import (
	"context"
	"math"

	"github.com/btracey/crossval"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize"
)

// Penalty kinds for Logistic.
const (
	PenaltyNone = "none"
	PenaltyL1   = "l1"
	PenaltyL2   = "l2"
)

var ErrUnknownPenalty = errors.New("models: unknown penalty")

// Logistic trains multinomial logistic regression models. The objective is
// the mean cross-entropy of the softmax of W·[x, 1] plus a penalty on the
// weights (the bias column is not penalized):
//  l2:  λ/2 ‖W‖²
//  l1:  λ ‖W‖₁  (minimized with its sign subgradient)
// The minimization itself is done by gonum/optimize.
type Logistic struct {
	// Solver is one of "lbfgs" (the default), "bfgs", "cg", or "gd".
	Solver  string
	Penalty string // PenaltyNone, PenaltyL1, or PenaltyL2. Empty means none.
	// Lambda is the penalty strength. If C is non-zero, Lambda is ignored
	// and the strength is 1/(C·N) for N training samples, which matches
	// penalizing the summed loss with C.
	Lambda float64
	C      float64
	// LearningRate is the initial step size for "gd". If zero, the line
	// search picks the step.
	LearningRate float64
	// MaxIter limits the number of major iterations. If zero, the solver
	// runs to convergence.
	MaxIter int
	// BestEpoch keeps the weights after every major iteration (an epoch),
	// and Evaluate scores a model by its most accurate epoch on the data
	// instead of by the final weights.
	BestEpoch bool
}

var _ crossval.Trainer = (*Logistic)(nil)

// LogisticModel is a fitted multinomial logistic regression.
type LogisticModel struct {
	// Weights has one row per class. The last column is the bias.
	Weights *mat.Dense
	Scale   scaler
	// Epochs holds the weights after each major iteration, ending with
	// Weights. It is only filled when the trainer has BestEpoch set.
	Epochs []*mat.Dense
}

func (l *Logistic) New() crossval.Model {
	return &LogisticModel{}
}

func (l *Logistic) method() (optimize.Method, error) {
	switch l.Solver {
	case "", "lbfgs":
		return &optimize.LBFGS{}, nil
	case "bfgs":
		return &optimize.BFGS{}, nil
	case "cg":
		return &optimize.CG{}, nil
	case "gd":
		gd := &optimize.GradientDescent{}
		if l.LearningRate > 0 {
			gd.StepSizer = &optimize.ConstantStepSize{Size: l.LearningRate}
		}
		return gd, nil
	}
	return nil, errors.Wrapf(ErrUnknownSolver, "%q", l.Solver)
}

// Fit fits the model to d. The Model passed in is replaced, not updated.
func (l *Logistic) Fit(ctx context.Context, m crossval.Model, d *crossval.Dataset) (crossval.Model, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	n := d.Len()
	if n == 0 {
		return nil, errors.Wrap(ErrEmptyDataset, "logistic")
	}
	method, err := l.method()
	if err != nil {
		return nil, err
	}
	var lambda float64
	switch l.Penalty {
	case "", PenaltyNone:
	case PenaltyL1, PenaltyL2:
		lambda = l.Lambda
		if l.C != 0 {
			lambda = 1 / (l.C * float64(n))
		}
	default:
		return nil, errors.Wrapf(ErrUnknownPenalty, "%q", l.Penalty)
	}

	sc := fitScaler(d.Matrix())
	obj := &softmaxObjective{
		x:       sc.transformAll(d.Matrix()),
		labels:  d.Labels(),
		classes: d.NumClasses(),
		penalty: l.Penalty,
		lambda:  lambda,
	}
	problem := optimize.Problem{
		Func: obj.Func,
		Grad: obj.Grad,
	}
	settings := &optimize.Settings{
		MajorIterations: l.MaxIter,
	}
	var rec *epochRecorder
	if l.BestEpoch {
		rec = &epochRecorder{rows: obj.classes, cols: d.Dim() + 1}
		settings.Recorder = rec
	}
	init := make([]float64, obj.classes*(d.Dim()+1))
	result, err := optimize.Minimize(problem, init, settings, method)
	if result == nil && err != nil {
		return nil, errors.Wrap(err, "logistic: minimize")
	}
	// A line search that cannot make progress still leaves a usable
	// location, so only a missing result is fatal.
	fit := &LogisticModel{
		Weights: mat.NewDense(obj.classes, d.Dim()+1, result.X),
		Scale:   sc,
	}
	if rec != nil {
		fit.Epochs = rec.finish(fit.Weights)
	}
	return fit, ctx.Err()
}

// Evaluate returns the accuracy of m on d. With BestEpoch set it is the
// highest accuracy of any epoch.
func (l *Logistic) Evaluate(m crossval.Model, d *crossval.Dataset) (float64, error) {
	lm := m.(*LogisticModel)
	if !l.BestEpoch || len(lm.Epochs) == 0 {
		return Accuracy(lm, d)
	}
	scores, err := lm.EpochScores(d)
	if err != nil {
		return 0, err
	}
	return floats.Max(scores), nil
}

// EpochScores returns the accuracy on d of the weights after each epoch.
func (m *LogisticModel) EpochScores(d *crossval.Dataset) ([]float64, error) {
	scores := make([]float64, len(m.Epochs))
	for i, w := range m.Epochs {
		acc, err := Accuracy(&LogisticModel{Weights: w, Scale: m.Scale}, d)
		if err != nil {
			return nil, errors.Wrapf(err, "epoch %d", i+1)
		}
		scores[i] = acc
	}
	return scores, nil
}

// epochRecorder is an optimize.Recorder that copies the location of every
// major iteration.
type epochRecorder struct {
	rows, cols int
	epochs     []*mat.Dense
}

func (r *epochRecorder) Init() error {
	r.epochs = r.epochs[:0]
	return nil
}

func (r *epochRecorder) Record(loc *optimize.Location, op optimize.Operation, _ *optimize.Stats) error {
	if op != optimize.MajorIteration {
		return nil
	}
	w := make([]float64, len(loc.X))
	copy(w, loc.X)
	r.epochs = append(r.epochs, mat.NewDense(r.rows, r.cols, w))
	return nil
}

// finish returns the recorded epochs. The iteration that ends the
// minimization is not passed to the recorder, so the final weights are
// appended unless they are already last.
func (r *epochRecorder) finish(final *mat.Dense) []*mat.Dense {
	n := len(r.epochs)
	if n == 0 || !mat.Equal(r.epochs[n-1], final) {
		r.epochs = append(r.epochs, mat.DenseCopyOf(final))
	}
	return r.epochs
}

// Predict returns the most probable class for x.
func (m *LogisticModel) Predict(x []float64) int {
	return floats.MaxIdx(m.Scores(x))
}

// Scores returns the linear class scores (logits) for x.
func (m *LogisticModel) Scores(x []float64) []float64 {
	classes, cols := m.Weights.Dims()
	z := m.Scale.transform(nil, x)
	scores := make([]float64, classes)
	for k := range scores {
		w := m.Weights.RawRowView(k)
		scores[k] = floats.Dot(w[:cols-1], z) + w[cols-1]
	}
	return scores
}

// Probabilities returns the softmax class probabilities for x.
func (m *LogisticModel) Probabilities(x []float64) []float64 {
	s := m.Scores(x)
	lse := floats.LogSumExp(s)
	for i, v := range s {
		s[i] = math.Exp(v - lse)
	}
	return s
}

// softmaxObjective is the penalized mean cross-entropy. The parameters are
// the row-major classes×(dim+1) weight matrix.
type softmaxObjective struct {
	x       *mat.Dense
	labels  []int
	classes int
	penalty string
	lambda  float64
}

func (o *softmaxObjective) Func(w []float64) float64 {
	n, dim := o.x.Dims()
	cols := dim + 1
	scores := make([]float64, o.classes)
	var loss float64
	for i := 0; i < n; i++ {
		o.scores(scores, w, o.x.RawRowView(i))
		loss += floats.LogSumExp(scores) - scores[o.labels[i]]
	}
	loss /= float64(n)

	for k := 0; k < o.classes; k++ {
		row := w[k*cols : k*cols+dim]
		switch o.penalty {
		case PenaltyL2:
			loss += 0.5 * o.lambda * floats.Dot(row, row)
		case PenaltyL1:
			loss += o.lambda * floats.Norm(row, 1)
		}
	}
	return loss
}

func (o *softmaxObjective) Grad(grad, w []float64) {
	n, dim := o.x.Dims()
	cols := dim + 1
	for i := range grad {
		grad[i] = 0
	}
	scores := make([]float64, o.classes)
	for i := 0; i < n; i++ {
		x := o.x.RawRowView(i)
		o.scores(scores, w, x)
		lse := floats.LogSumExp(scores)
		for k := 0; k < o.classes; k++ {
			p := math.Exp(scores[k] - lse)
			if k == o.labels[i] {
				p--
			}
			g := grad[k*cols : (k+1)*cols]
			floats.AddScaled(g[:dim], p, x)
			g[dim] += p
		}
	}
	floats.Scale(1/float64(n), grad)

	for k := 0; k < o.classes; k++ {
		for j := 0; j < dim; j++ {
			idx := k*cols + j
			switch o.penalty {
			case PenaltyL2:
				grad[idx] += o.lambda * w[idx]
			case PenaltyL1:
				if w[idx] != 0 {
					grad[idx] += o.lambda * math.Copysign(1, w[idx])
				}
			}
		}
	}
}

func (o *softmaxObjective) scores(dst, w, x []float64) {
	dim := len(x)
	cols := dim + 1
	for k := range dst {
		row := w[k*cols : (k+1)*cols]
		dst[k] = floats.Dot(row[:dim], x) + row[dim]
	}
}
