package crossval

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/stat/combin"
)

// Setting is a single named hyperparameter value.
type Setting struct {
	Name  string      `json:"name"`
	Value interface{} `json:"value"`
}

// Candidate is an immutable, ordered set of hyperparameter settings. The zero
// value is an empty candidate.
type Candidate struct {
	settings []Setting
}

// NewCandidate returns a Candidate with the given settings. If a name appears
// more than once, the last value wins but the position of the first is kept.
func NewCandidate(settings ...Setting) Candidate {
	var c Candidate
	for _, s := range settings {
		c = c.With(s.Name, s.Value)
	}
	return c
}

// With returns a copy of c with name set to value.
func (c Candidate) With(name string, value interface{}) Candidate {
	s := make([]Setting, len(c.settings), len(c.settings)+1)
	copy(s, c.settings)
	for i := range s {
		if s[i].Name == name {
			s[i].Value = value
			return Candidate{s}
		}
	}
	return Candidate{append(s, Setting{Name: name, Value: value})}
}

// Settings returns a copy of the settings in order.
func (c Candidate) Settings() []Setting {
	s := make([]Setting, len(c.settings))
	copy(s, c.settings)
	return s
}

// Len returns the number of settings.
func (c Candidate) Len() int { return len(c.settings) }

// Lookup returns the value of the named setting.
func (c Candidate) Lookup(name string) (interface{}, bool) {
	for _, s := range c.settings {
		if s.Name == name {
			return s.Value, true
		}
	}
	return nil, false
}

func (c Candidate) lookup(name string) (interface{}, error) {
	v, ok := c.Lookup(name)
	if !ok {
		return nil, errors.Wrapf(ErrMissingSetting, "%q", name)
	}
	return v, nil
}

// Float returns the named setting as a float64. Integer values are converted.
func (c Candidate) Float(name string) (float64, error) {
	v, err := c.lookup(name)
	if err != nil {
		return 0, err
	}
	switch t := v.(type) {
	case float64:
		return t, nil
	case float32:
		return float64(t), nil
	case int:
		return float64(t), nil
	case int64:
		return float64(t), nil
	}
	return 0, errors.Wrapf(ErrSettingType, "%q is %T, want a number", name, v)
}

// Int returns the named setting as an int. Float values with no fractional
// part are accepted, since that is how numbers come back from JSON.
func (c Candidate) Int(name string) (int, error) {
	v, err := c.lookup(name)
	if err != nil {
		return 0, err
	}
	switch t := v.(type) {
	case int:
		return t, nil
	case int64:
		return int(t), nil
	case float64:
		if t == math.Trunc(t) {
			return int(t), nil
		}
	}
	return 0, errors.Wrapf(ErrSettingType, "%q is %v (%T), want an integer", name, v, v)
}

// Text returns the named setting as a string.
func (c Candidate) Text(name string) (string, error) {
	v, err := c.lookup(name)
	if err != nil {
		return "", err
	}
	s, ok := v.(string)
	if !ok {
		return "", errors.Wrapf(ErrSettingType, "%q is %T, want a string", name, v)
	}
	return s, nil
}

// Bool returns the named setting as a bool. The numbers 0 and 1 are accepted
// as false and true.
func (c Candidate) Bool(name string) (bool, error) {
	v, err := c.lookup(name)
	if err != nil {
		return false, err
	}
	var n float64
	switch t := v.(type) {
	case bool:
		return t, nil
	case int:
		n = float64(t)
	case int64:
		n = float64(t)
	case float64:
		n = t
	default:
		return false, errors.Wrapf(ErrSettingType, "%q is %T, want a bool", name, v)
	}
	if n != 0 && n != 1 {
		return false, errors.Wrapf(ErrSettingType, "%q is %v, want a bool", name, v)
	}
	return n == 1, nil
}

// String formats c as space-separated name=value pairs in order.
func (c Candidate) String() string {
	parts := make([]string, len(c.settings))
	for i, s := range c.settings {
		parts[i] = fmt.Sprintf("%s=%v", s.Name, s.Value)
	}
	return strings.Join(parts, " ")
}

func (c Candidate) MarshalJSON() ([]byte, error) {
	if c.settings == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(c.settings)
}

func (c *Candidate) UnmarshalJSON(b []byte) error {
	var s []Setting
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	*c = NewCandidate(s...)
	return nil
}

// Axis is one dimension of a hyperparameter grid.
type Axis struct {
	Name   string
	Values []interface{}
}

// Grid is an ordered set of axes. Its candidates are all combinations of one
// value from each axis.
type Grid []Axis

// Candidates returns every combination of axis values in lexicographic order,
// with the last axis varying fastest. A grid with no axes, or with an empty
// axis, has no candidates.
func (g Grid) Candidates() []Candidate {
	if len(g) == 0 {
		return nil
	}
	lens := make([]int, len(g))
	for i, axis := range g {
		if len(axis.Values) == 0 {
			return nil
		}
		lens[i] = len(axis.Values)
	}
	product := combin.Cartesian(lens)
	candidates := make([]Candidate, len(product))
	for i, sub := range product {
		settings := make([]Setting, len(g))
		for j, idx := range sub {
			settings[j] = Setting{Name: g[j].Name, Value: g[j].Values[idx]}
		}
		candidates[i] = NewCandidate(settings...)
	}
	return candidates
}

// Concat returns the candidates of each grid in turn.
func Concat(grids ...Grid) []Candidate {
	var candidates []Candidate
	for _, g := range grids {
		candidates = append(candidates, g.Candidates()...)
	}
	return candidates
}

// Floats is a convenience for building axis values.
func Floats(v ...float64) []interface{} {
	s := make([]interface{}, len(v))
	for i, f := range v {
		s[i] = f
	}
	return s
}

// Ints is a convenience for building axis values.
func Ints(v ...int) []interface{} {
	s := make([]interface{}, len(v))
	for i, n := range v {
		s[i] = n
	}
	return s
}

// Strings is a convenience for building axis values.
func Strings(v ...string) []interface{} {
	s := make([]interface{}, len(v))
	for i, str := range v {
		s[i] = str
	}
	return s
}
