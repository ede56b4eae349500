// cvsweep cross-validates the baseline classifiers on a delimited data file.
//
// Modes:
//  cv     k-fold cross-validation of the candidate given by -set
//  sweep  k-fold cross-validation of every candidate of -grid, and the best
//  curve  learning curve of the -set candidate
//  test   fit the -set candidate to -data and score it on -test
//
// Defaults come from the CROSSVAL_* environment variables and .env (see
// package config). For example
//  cvsweep -data wine.csv -mode sweep -grid logistic -out sweep.json
//  cvsweep -data wine.csv -test wine_test.csv -mode test -set C=10,solver=lbfgs,max_iter=1000
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/btracey/crossval"
	"github.com/btracey/crossval/config"
	"github.com/btracey/crossval/dataio"
	"github.com/btracey/crossval/models"
	"github.com/btracey/crossval/store"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/pkg/profile"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		log.Fatal(err)
	}
}

type options struct {
	data, test string
	delim      string
	header     bool
	label      int
	model      string
	grid       string
	mode       string
	set        string
	folds      int
	seed       uint64
	workers    int
	valfrac    float64
	increments int
	out        string
	redis      string
	cpuprofile string
}

// report is the JSON document written to -out.
type report struct {
	RunID    string                `json:"run_id"`
	Mode     string                `json:"mode"`
	Model    string                `json:"model"`
	Data     string                `json:"data"`
	Alphabet []string              `json:"alphabet"`
	Folds    int                   `json:"folds,omitempty"`
	Seed     uint64                `json:"seed"`
	Results  interface{}           `json:"results"`
	Best     *crossval.SweepResult `json:"best,omitempty"`
}

func run(ctx context.Context, args []string, stdout io.Writer) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	var o options
	fs := flag.NewFlagSet("cvsweep", flag.ContinueOnError)
	fs.StringVar(&o.data, "data", "", "delimited training data file")
	fs.StringVar(&o.test, "test", "", "delimited test data file (test mode)")
	fs.StringVar(&o.delim, "delim", string(cfg.Delimiter), "field delimiter")
	fs.BoolVar(&o.header, "header", true, "data files start with a header row")
	fs.IntVar(&o.label, "label", -1, "label column; negative counts from the end")
	fs.StringVar(&o.model, "model", models.KindLogistic, "model kind: logistic or lsq")
	fs.StringVar(&o.grid, "grid", "", "built-in grid for sweep mode (default: the model kind)")
	fs.StringVar(&o.mode, "mode", "cv", "cv, sweep, curve, or test")
	fs.StringVar(&o.set, "set", "", "candidate settings, as name=value,name=value")
	fs.IntVar(&o.folds, "folds", cfg.Folds, "number of folds")
	fs.Uint64Var(&o.seed, "seed", cfg.Seed, "fold shuffling seed")
	fs.IntVar(&o.workers, "workers", cfg.Workers, "number of workers; 0 uses GOMAXPROCS")
	fs.Float64Var(&o.valfrac, "valfrac", cfg.ValidationFraction, "held-out fraction for curve mode")
	fs.IntVar(&o.increments, "increments", cfg.Increments, "number of learning curve steps")
	fs.StringVar(&o.out, "out", "", "write JSON results to this file")
	fs.StringVar(&o.redis, "redis", cfg.RedisConf.Addr, "redis address for sweep results; empty keeps them in memory")
	fs.StringVar(&o.cpuprofile, "cpuprofile", "", "write a CPU profile to this directory")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if o.data == "" {
		return errors.New("cvsweep: -data is required")
	}
	if o.cpuprofile != "" {
		defer profile.Start(profile.CPUProfile, profile.ProfilePath(o.cpuprofile), profile.Quiet).Stop()
	}

	runID := uuid.New().String()
	logger := log.New(os.Stderr, "["+runID[:8]+"] ", log.LstdFlags)
	logger.Printf("run %s: %s %s on %s", runID, o.mode, o.model, o.data)

	opts, err := o.readOptions()
	if err != nil {
		return err
	}
	d, alphabet, err := dataio.ReadFile(o.data, opts)
	if err != nil {
		return err
	}
	logger.Printf("%d samples, %d features, classes %v with counts %v", d.Len(), d.Dim(), alphabet, d.ClassCounts())

	build, err := models.Builder(o.model)
	if err != nil {
		return err
	}
	cand, err := parseCandidate(o.set)
	if err != nil {
		return err
	}
	settings := &crossval.Settings{
		Concurrent: o.workers,
		Logger:     logger,
	}
	rep := report{
		RunID:    runID,
		Mode:     o.mode,
		Model:    o.model,
		Data:     o.data,
		Alphabet: alphabet,
		Seed:     o.seed,
	}

	switch o.mode {
	case "cv":
		t, err := build(cand)
		if err != nil {
			return err
		}
		results, err := crossval.Run(ctx, d, o.folds, o.seed, t, settings)
		if err != nil {
			return err
		}
		r := crossval.Summarize(cand, results)
		fmt.Fprintf(stdout, "%v\n", cand)
		fmt.Fprintf(stdout, "max train accuracy: %.3f, max validation accuracy: %.3f\n", r.MaxTrainScore, r.MaxValidationScore)
		fmt.Fprintf(stdout, "mean train accuracy: %.3f, mean validation accuracy: %.3f\n", r.MeanTrainScore, r.MeanValidationScore)
		rep.Folds = o.folds
		rep.Results = results
	case "sweep":
		grid := o.grid
		if grid == "" {
			grid = o.model
		}
		cands, err := models.Candidates(grid)
		if err != nil {
			return err
		}
		st, err := o.openStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer st.Close()
		settings.Store = st
		logger.Printf("sweeping %d candidates of grid %s", len(cands), grid)
		results, err := crossval.Sweep(ctx, d, o.folds, o.seed, cands, build, settings)
		if err != nil {
			return err
		}
		best, err := crossval.Best(results)
		if err != nil {
			return err
		}
		fmt.Fprintf(stdout, "best: %v\n", best.Candidate)
		fmt.Fprintf(stdout, "mean train accuracy: %.3f, mean validation accuracy: %.3f (std %.3f)\n",
			best.MeanTrainScore, best.MeanValidationScore, best.StdValidationScore)
		rep.Folds = o.folds
		rep.Results = results
		rep.Best = &best
	case "curve":
		// JSON cannot hold the NaN score of an empty validation slice.
		if !(o.valfrac > 0) {
			return errors.Errorf("cvsweep: curve mode needs a positive -valfrac, have %v", o.valfrac)
		}
		t, err := build(cand)
		if err != nil {
			return err
		}
		points, err := crossval.LearningCurve(ctx, d, o.valfrac, o.increments, t, settings)
		if err != nil {
			return err
		}
		for _, p := range points {
			fmt.Fprintf(stdout, "%d samples: train accuracy %.3f, validation accuracy %.3f\n",
				p.Samples, p.TrainScore, p.ValidationScore)
		}
		rep.Results = points
	case "test":
		if o.test == "" {
			return errors.New("cvsweep: test mode needs -test")
		}
		test, err := dataio.ReadFileWithAlphabet(o.test, opts, alphabet)
		if err != nil {
			return err
		}
		t, err := build(cand)
		if err != nil {
			return err
		}
		m, err := t.Fit(ctx, t.New(), d)
		if err != nil {
			return errors.Wrap(err, "fit")
		}
		trainAcc, err := t.Evaluate(m, d)
		if err != nil {
			return err
		}
		testAcc, err := t.Evaluate(m, test)
		if err != nil {
			return err
		}
		fmt.Fprintf(stdout, "train accuracy: %.3f, test accuracy: %.3f\n", trainAcc, testAcc)
		rep.Results = map[string]float64{"train": trainAcc, "test": testAcc}
	default:
		return errors.Errorf("cvsweep: unknown mode %q", o.mode)
	}

	if o.out == "" {
		return nil
	}
	b, err := json.MarshalIndent(rep, "", "\t")
	if err != nil {
		return errors.Wrap(err, "cvsweep: encoding results")
	}
	if err := os.WriteFile(o.out, b, 0644); err != nil {
		return err
	}
	logger.Printf("results written to %s", o.out)
	return nil
}

func (o *options) readOptions() (dataio.Options, error) {
	opts := dataio.Options{Header: o.header, LabelColumn: o.label}
	delim := o.delim
	if delim == `\t` {
		delim = "\t"
	}
	r, size := utf8.DecodeRuneInString(delim)
	if size == 0 || size != len(delim) {
		return opts, errors.Errorf("cvsweep: delimiter %q is not a single character", o.delim)
	}
	opts.Comma = r
	return opts, nil
}

func (o *options) openStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	if o.redis == "" {
		return store.NewMemory(), nil
	}
	return store.NewRedis(ctx, store.RedisOptions{
		Addr:     o.redis,
		Password: cfg.RedisConf.Password,
		DB:       cfg.RedisConf.DB,
		Prefix:   cfg.RedisConf.Prefix,
		TTL:      cfg.RedisConf.TTL,
	})
}

// parseCandidate parses comma-separated name=value settings. Values are
// stored as int, float64 or bool when they parse as one, and as strings
// otherwise.
func parseCandidate(s string) (crossval.Candidate, error) {
	var c crossval.Candidate
	if strings.TrimSpace(s) == "" {
		return c, nil
	}
	for _, field := range strings.Split(s, ",") {
		name, value, ok := strings.Cut(field, "=")
		name = strings.TrimSpace(name)
		value = strings.TrimSpace(value)
		if !ok || name == "" {
			return c, errors.Errorf("cvsweep: setting %q is not name=value", field)
		}
		if _, dup := c.Lookup(name); dup {
			return c, errors.Errorf("cvsweep: setting %q given twice", name)
		}
		c = c.With(name, parseValue(value))
	}
	return c, nil
}

func parseValue(s string) interface{} {
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	if b, err := strconv.ParseBool(s); err == nil {
		return b
	}
	return s
}
