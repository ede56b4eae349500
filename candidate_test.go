package crossval

import (
	"encoding/json"
	"testing"

	"github.com/pkg/errors"
)

func TestGridCandidates(t *testing.T) {
	g := Grid{
		{Name: "C", Values: Floats(0.1, 1)},
		{Name: "solver", Values: Strings("lbfgs", "cg", "gd")},
		{Name: "max_iter", Values: Ints(100)},
	}
	want := []string{
		"C=0.1 solver=lbfgs max_iter=100",
		"C=0.1 solver=cg max_iter=100",
		"C=0.1 solver=gd max_iter=100",
		"C=1 solver=lbfgs max_iter=100",
		"C=1 solver=cg max_iter=100",
		"C=1 solver=gd max_iter=100",
	}
	got := g.Candidates()
	if len(got) != len(want) {
		t.Fatalf("got %d candidates, want %d", len(got), len(want))
	}
	for i, c := range got {
		if c.String() != want[i] {
			t.Errorf("candidate %d is %q, want %q", i, c, want[i])
		}
	}

	if c := (Grid{}).Candidates(); c != nil {
		t.Errorf("empty grid has candidates %v", c)
	}
	if c := (Grid{{Name: "a", Values: Ints(1)}, {Name: "b"}}).Candidates(); c != nil {
		t.Errorf("grid with an empty axis has candidates %v", c)
	}

	joined := Concat(g, Grid{{Name: "lr", Values: Floats(0.01)}})
	if len(joined) != 7 || joined[6].String() != "lr=0.01" {
		t.Errorf("concatenated candidates %v", joined)
	}
}

func TestCandidateAccessors(t *testing.T) {
	c := NewCandidate(
		Setting{Name: "C", Value: 10},
		Setting{Name: "lr", Value: 0.5},
		Setting{Name: "epochs", Value: 30.0},
		Setting{Name: "solver", Value: "lbfgs"},
		Setting{Name: "l1", Value: true},
		Setting{Name: "frac", Value: 2.5},
	)
	if c.Len() != 6 {
		t.Errorf("Len = %d", c.Len())
	}
	if v, err := c.Float("C"); err != nil || v != 10 {
		t.Errorf("Float(C) = %v, %v", v, err)
	}
	if v, err := c.Int("epochs"); err != nil || v != 30 {
		t.Errorf("Int(epochs) = %v, %v", v, err)
	}
	if v, err := c.Text("solver"); err != nil || v != "lbfgs" {
		t.Errorf("Text(solver) = %v, %v", v, err)
	}
	if v, err := c.Bool("l1"); err != nil || !v {
		t.Errorf("Bool(l1) = %v, %v", v, err)
	}
	flags := NewCandidate().With("l1", 1).With("l2", 0).With("on", 1.0)
	for _, f := range []struct {
		name string
		want bool
	}{{"l1", true}, {"l2", false}, {"on", true}} {
		if v, err := flags.Bool(f.name); err != nil || v != f.want {
			t.Errorf("Bool(%s) = %v, %v, want %v", f.name, v, err, f.want)
		}
	}

	for _, test := range []struct {
		Name string
		Err  error
		Get  func() error
	}{
		{Name: "Missing", Err: ErrMissingSetting, Get: func() error { _, err := c.Float("lambda"); return err }},
		{Name: "Fractional int", Err: ErrSettingType, Get: func() error { _, err := c.Int("frac"); return err }},
		{Name: "String as float", Err: ErrSettingType, Get: func() error { _, err := c.Float("solver"); return err }},
		{Name: "Number as text", Err: ErrSettingType, Get: func() error { _, err := c.Text("C"); return err }},
		{Name: "Number as bool", Err: ErrSettingType, Get: func() error { _, err := c.Bool("lr"); return err }},
		{Name: "Integer as bool", Err: ErrSettingType, Get: func() error { _, err := c.Bool("C"); return err }},
		{Name: "Text as bool", Err: ErrSettingType, Get: func() error { _, err := c.Bool("solver"); return err }},
	} {
		if err := test.Get(); errors.Cause(err) != test.Err {
			t.Errorf("Case %s: got %v, want %v", test.Name, err, test.Err)
		}
	}
}

func TestCandidateImmutable(t *testing.T) {
	base := NewCandidate().With("a", 1)
	b := base.With("b", 2)
	c := base.With("a", 3)
	if base.String() != "a=1" {
		t.Errorf("base changed to %v", base)
	}
	if b.String() != "a=1 b=2" || c.String() != "a=3" {
		t.Errorf("derived candidates %v and %v", b, c)
	}
	s := b.Settings()
	s[0].Value = 100
	if v, _ := b.Int("a"); v != 1 {
		t.Errorf("modifying Settings changed the candidate")
	}
	dup := NewCandidate(Setting{"x", 1}, Setting{"y", 2}, Setting{"x", 3})
	if dup.String() != "x=3 y=2" {
		t.Errorf("duplicate settings gave %v", dup)
	}
}

func TestCandidateJSON(t *testing.T) {
	c := NewCandidate().With("C", 10).With("solver", "cg").With("l2", true)
	b, err := json.Marshal(c)
	if err != nil {
		t.Fatal(err)
	}
	const want = `[{"name":"C","value":10},{"name":"solver","value":"cg"},{"name":"l2","value":true}]`
	if string(b) != want {
		t.Errorf("encoded as %s, want %s", b, want)
	}
	var back Candidate
	if err := json.Unmarshal(b, &back); err != nil {
		t.Fatal(err)
	}
	if back.String() != c.String() {
		t.Errorf("decoded %v, want %v", back, c)
	}
	// Numbers come back as float64, which Int still accepts.
	if v, err := back.Int("C"); err != nil || v != 10 {
		t.Errorf("Int(C) after decoding = %v, %v", v, err)
	}
}
