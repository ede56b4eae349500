// package dataio reads labelled samples from delimited text files into
// crossval Datasets.
//
// Every record holds the feature values and one label column. Labels are
// arbitrary strings; they are mapped to class indices through an alphabet,
// the sorted list of distinct labels. Numeric labels are sorted by value.
package dataio

import (
	"encoding/csv"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/btracey/crossval"
	"github.com/pkg/errors"
)

var (
	ErrUnknownLabel = errors.New("dataio: label not in alphabet")
	ErrNoSamples    = errors.New("dataio: no samples")
)

// Options controls parsing.
type Options struct {
	// Comma is the field delimiter. If zero, ';' is used.
	Comma rune
	// Header skips the first record.
	Header bool
	// LabelColumn is the index of the label field. Negative values count
	// from the end of the record, so -1 is the last field.
	LabelColumn int
}

// DefaultOptions reads ';'-separated files with a header row and the label
// in the last column.
func DefaultOptions() Options {
	return Options{Comma: ';', Header: true, LabelColumn: -1}
}

// ReadDelimited reads a dataset from r and returns it with its alphabet.
func ReadDelimited(r io.Reader, opts Options) (*crossval.Dataset, []string, error) {
	rows, labels, err := readRecords(r, opts)
	if err != nil {
		return nil, nil, err
	}
	alphabet := Alphabet(labels)
	d, err := build(rows, labels, alphabet)
	if err != nil {
		return nil, nil, err
	}
	return d, alphabet, nil
}

// ReadWithAlphabet reads a dataset from r whose labels are indexed by an
// existing alphabet, typically the one of the training file. A label missing
// from the alphabet is an error.
func ReadWithAlphabet(r io.Reader, opts Options, alphabet []string) (*crossval.Dataset, error) {
	rows, labels, err := readRecords(r, opts)
	if err != nil {
		return nil, err
	}
	return build(rows, labels, alphabet)
}

// ReadFile is ReadDelimited on the named file.
func ReadFile(path string, opts Options) (*crossval.Dataset, []string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, errors.Wrap(err, "dataio")
	}
	defer f.Close()
	d, alphabet, err := ReadDelimited(f, opts)
	if err != nil {
		return nil, nil, errors.Wrap(err, path)
	}
	return d, alphabet, nil
}

// ReadFileWithAlphabet is ReadWithAlphabet on the named file.
func ReadFileWithAlphabet(path string, opts Options, alphabet []string) (*crossval.Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "dataio")
	}
	defer f.Close()
	d, err := ReadWithAlphabet(f, opts, alphabet)
	return d, errors.Wrap(err, path)
}

// Alphabet returns the distinct labels in sorted order. If every label is a
// number they are ordered by value, and otherwise lexically.
func Alphabet(labels []string) []string {
	seen := make(map[string]bool)
	var alphabet []string
	for _, l := range labels {
		if !seen[l] {
			seen[l] = true
			alphabet = append(alphabet, l)
		}
	}
	values := make([]float64, len(alphabet))
	numeric := true
	for i, l := range alphabet {
		v, err := strconv.ParseFloat(l, 64)
		if err != nil {
			numeric = false
			break
		}
		values[i] = v
	}
	if numeric {
		sort.Sort(byValue{alphabet, values})
	} else {
		sort.Strings(alphabet)
	}
	return alphabet
}

type byValue struct {
	labels []string
	values []float64
}

func (b byValue) Len() int           { return len(b.labels) }
func (b byValue) Less(i, j int) bool { return b.values[i] < b.values[j] }
func (b byValue) Swap(i, j int) {
	b.labels[i], b.labels[j] = b.labels[j], b.labels[i]
	b.values[i], b.values[j] = b.values[j], b.values[i]
}

func readRecords(r io.Reader, opts Options) ([][]float64, []string, error) {
	cr := csv.NewReader(r)
	cr.Comma = opts.Comma
	if cr.Comma == 0 {
		cr.Comma = ';'
	}
	cr.TrimLeadingSpace = true
	records, err := cr.ReadAll()
	if err != nil {
		return nil, nil, errors.Wrap(err, "dataio: parsing")
	}
	if opts.Header && len(records) > 0 {
		records = records[1:]
	}
	if len(records) == 0 {
		return nil, nil, ErrNoSamples
	}

	// The csv reader guarantees every record has the same number of fields.
	nFields := len(records[0])
	if nFields < 2 {
		return nil, nil, errors.Errorf("dataio: records have %d field, need features and a label", nFields)
	}
	labelCol := opts.LabelColumn
	if labelCol < 0 {
		labelCol += nFields
	}
	if labelCol < 0 || labelCol >= nFields {
		return nil, nil, errors.Errorf("dataio: label column %d out of range for %d fields", opts.LabelColumn, nFields)
	}

	rows := make([][]float64, len(records))
	labels := make([]string, len(records))
	for i, rec := range records {
		row := make([]float64, 0, nFields-1)
		for j, field := range rec {
			if j == labelCol {
				labels[i] = strings.TrimSpace(field)
				continue
			}
			v, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
			if err != nil {
				return nil, nil, errors.Wrapf(err, "dataio: sample %d, field %d", i, j)
			}
			row = append(row, v)
		}
		rows[i] = row
	}
	return rows, labels, nil
}

func build(rows [][]float64, labels, alphabet []string) (*crossval.Dataset, error) {
	index := make(map[string]int, len(alphabet))
	for i, l := range alphabet {
		index[l] = i
	}
	classes := make([]int, len(labels))
	for i, l := range labels {
		c, ok := index[l]
		if !ok {
			return nil, errors.Wrapf(ErrUnknownLabel, "sample %d has label %q", i, l)
		}
		classes[i] = c
	}
	return crossval.NewDatasetRows(rows, classes, len(alphabet))
}
