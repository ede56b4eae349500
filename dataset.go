package crossval

import (
	"encoding/binary"
	"math"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// Dataset is an ordered set of samples, each a fixed-length feature vector
// with a class label drawn from [0, NumClasses). Routines in this package
// never modify a Dataset; Subset copies the selected rows.
type Dataset struct {
	x       *mat.Dense // nil when there are no samples
	labels  []int
	dim     int
	classes int
}

// NewDataset constructs a Dataset from the rows of x. The number of rows must
// equal len(labels) and every label must be in [0, numClasses). x may be nil
// only if labels is empty.
func NewDataset(x mat.Matrix, dim int, labels []int, numClasses int) (*Dataset, error) {
	if numClasses < 1 {
		return nil, errors.Wrapf(ErrLabelOutOfRange, "%d classes", numClasses)
	}
	d := &Dataset{
		labels:  make([]int, len(labels)),
		dim:     dim,
		classes: numClasses,
	}
	copy(d.labels, labels)
	for i, l := range labels {
		if l < 0 || l >= numClasses {
			return nil, errors.Wrapf(ErrLabelOutOfRange, "sample %d has label %d", i, l)
		}
	}
	if x == nil {
		if len(labels) != 0 {
			return nil, errors.Wrapf(ErrDimensionMismatch, "nil features with %d labels", len(labels))
		}
		return d, nil
	}
	r, c := x.Dims()
	if r != len(labels) {
		return nil, errors.Wrapf(ErrDimensionMismatch, "%d rows, %d labels", r, len(labels))
	}
	if c != dim {
		return nil, errors.Wrapf(ErrDimensionMismatch, "%d columns, dim %d", c, dim)
	}
	d.x = mat.DenseCopyOf(x)
	return d, nil
}

// NewDatasetRows is like NewDataset but takes the features as a slice of rows.
// All rows must have the same length.
func NewDatasetRows(rows [][]float64, labels []int, numClasses int) (*Dataset, error) {
	if len(rows) == 0 {
		return NewDataset(nil, 0, labels, numClasses)
	}
	dim := len(rows[0])
	if dim == 0 {
		return nil, errors.Wrap(ErrDimensionMismatch, "rows have no features")
	}
	x := mat.NewDense(len(rows), dim, nil)
	for i, row := range rows {
		if len(row) != dim {
			return nil, errors.Wrapf(ErrDimensionMismatch, "row %d has length %d, want %d", i, len(row), dim)
		}
		x.SetRow(i, row)
	}
	return NewDataset(x, dim, labels, numClasses)
}

// Len returns the number of samples.
func (d *Dataset) Len() int { return len(d.labels) }

// Dim returns the length of each feature vector.
func (d *Dataset) Dim() int { return d.dim }

// NumClasses returns the size of the label alphabet.
func (d *Dataset) NumClasses() int { return d.classes }

// Matrix returns the features as an N×Dim matrix, or nil if the Dataset is
// empty. The returned matrix must not be modified.
func (d *Dataset) Matrix() *mat.Dense { return d.x }

// Row returns a view of the features of sample i.
func (d *Dataset) Row(i int) []float64 { return d.x.RawRowView(i) }

// Label returns the label of sample i.
func (d *Dataset) Label(i int) int { return d.labels[i] }

// Labels returns the labels of all samples. The returned slice must not be
// modified.
func (d *Dataset) Labels() []int { return d.labels }

// Subset returns a new Dataset with the samples at inds, in the order given.
func (d *Dataset) Subset(inds []int) *Dataset {
	sub := &Dataset{
		labels:  make([]int, len(inds)),
		dim:     d.dim,
		classes: d.classes,
	}
	if len(inds) == 0 {
		return sub
	}
	sub.x = mat.NewDense(len(inds), d.dim, nil)
	for i, idx := range inds {
		sub.x.SetRow(i, d.x.RawRowView(idx))
		sub.labels[i] = d.labels[idx]
	}
	return sub
}

// ClassCounts returns the number of samples of each class.
func (d *Dataset) ClassCounts() []int {
	counts := make([]int, d.classes)
	for _, l := range d.labels {
		counts[l]++
	}
	return counts
}

// classMembers returns the sample indices of each class in increasing order.
func (d *Dataset) classMembers() [][]int {
	members := make([][]int, d.classes)
	for i, l := range d.labels {
		members[l] = append(members[l], i)
	}
	return members
}

// Fingerprint returns a name-based UUID computed from the shape, features,
// and labels of the Dataset. Equal datasets have equal fingerprints.
func (d *Dataset) Fingerprint() uuid.UUID {
	buf := make([]byte, 0, 8*(3+d.Len()*(d.dim+1)))
	buf = binary.LittleEndian.AppendUint64(buf, uint64(d.Len()))
	buf = binary.LittleEndian.AppendUint64(buf, uint64(d.dim))
	buf = binary.LittleEndian.AppendUint64(buf, uint64(d.classes))
	for i := 0; i < d.Len(); i++ {
		for _, v := range d.x.RawRowView(i) {
			buf = binary.LittleEndian.AppendUint64(buf, math.Float64bits(v))
		}
		buf = binary.LittleEndian.AppendUint64(buf, uint64(d.labels[i]))
	}
	return uuid.NewSHA1(uuid.NameSpaceOID, buf)
}
