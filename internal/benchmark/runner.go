package benchmark

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/schollz/progressbar/v3"
	"github.com/user/cipherbench/internal/storage"
	"github.com/user/cipherbench/pkg/sysinfo"
)

// ResultSink receives raw rows after every completed (profile, size) group
// and aggregate rows once per successful run.
type ResultSink interface {
	WriteSamples(samples []Sample) error
	WriteAggregates(results []AggregateResult) error
}

type ProgressUpdate struct {
	RunID      string  `json:"run_id"`
	State      State   `json:"state"`
	Profile    string  `json:"profile"`
	FileSize   int     `json:"file_size"`
	Current    int     `json:"current"`
	Total      int     `json:"total"`
	Percentage float64 `json:"percentage"`
}

type Report struct {
	RunID      string               `json:"run_id"`
	Config     Config               `json:"config"`
	SystemInfo *sysinfo.SystemInfo  `json:"system_info,omitempty"`
	Profiles   []string             `json:"profiles"`
	Samples    []Sample             `json:"samples"`
	Aggregates []AggregateResult    `json:"aggregates,omitempty"`
	Keys       []*storage.KeyRecord `json:"keys"`
	States     []Transition         `json:"states"`
	FinalState State                `json:"final_state"`
	Error      string               `json:"error,omitempty"`
	StartedAt  time.Time            `json:"started_at"`
	FinishedAt time.Time            `json:"finished_at"`
}

func (r *Report) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

type Option func(*Runner)

func WithProvider(p Provider) Option {
	return func(r *Runner) { r.provider = p }
}

func WithLogger(l *slog.Logger) Option {
	return func(r *Runner) { r.logger = l }
}

func WithSink(s ResultSink) Option {
	return func(r *Runner) { r.sink = s }
}

func WithKeyRing(kr *storage.KeyRing) Option {
	return func(r *Runner) { r.keyRing = kr }
}

// WithProgress sends updates without blocking; updates are dropped when ch
// is full.
func WithProgress(ch chan<- ProgressUpdate) Option {
	return func(r *Runner) { r.progressChan = ch }
}

func WithRunID(id string) Option {
	return func(r *Runner) { r.runID = id }
}

// Runner measures every selected profile strictly sequentially. A Runner is
// good for one Run.
type Runner struct {
	config       Config
	provider     Provider
	logger       *slog.Logger
	sink         ResultSink
	keyRing      *storage.KeyRing
	progressChan chan<- ProgressUpdate
	runID        string

	machine  *stateMachine
	progress progressState
}

type progressState struct {
	current int
	total   int
}

func NewRunner(config Config, opts ...Option) *Runner {
	r := &Runner{
		config:   config,
		provider: NewStdProvider(),
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		keyRing:  storage.NewKeyRing(),
		runID:    uuid.New().String(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.machine = newStateMachine(func(t Transition) {
		r.logger.Debug("state transition", "run_id", r.runID, "from", t.From, "to", t.To)
	})
	return r
}

func (r *Runner) RunID() string { return r.runID }

// State is the current lifecycle stage.
func (r *Runner) State() State { return r.machine.State() }

// Run executes the whole lifecycle. The returned report is never nil; on
// failure it holds the samples accepted so far but no aggregates.
func (r *Runner) Run(ctx context.Context) (report *Report, err error) {
	report = &Report{
		RunID:     r.runID,
		Config:    r.config,
		StartedAt: time.Now(),
	}
	defer func() {
		report.States = r.machine.History()
		report.FinalState = r.machine.State()
		report.FinishedAt = time.Now()
		if err != nil {
			report.Error = err.Error()
		}
	}()

	if r.machine.State() != StateIdle {
		return report, fmt.Errorf("runner %s already used", r.runID)
	}
	if err := r.config.Validate(); err != nil {
		return report, err
	}

	report.SystemInfo, _ = sysinfo.Collect()

	names, _ := ResolveProfileNames(r.config.Profiles)
	profiles, err := BuildProfiles(r.config, r.provider)
	if err != nil {
		return report, r.fail(err, nil)
	}
	defer func() {
		for _, p := range profiles {
			p.Destroy()
		}
	}()

	for _, p := range profiles {
		report.Profiles = append(report.Profiles, p.Name())
		if kd, ok := p.(KeyDescriber); ok {
			desc := kd.KeyDescription()
			report.Keys = append(report.Keys, r.keyRing.Record(r.runID, p.Name(), desc.Algorithm, desc.Bits, desc.Public))
		}
	}

	corpus, err := storage.NewCorpusStore(string(r.config.CorpusBackend), r.config.CorpusDir)
	if err != nil {
		return report, r.fail(&Error{Kind: KindIOFailure, Stage: StateIdle, Message: "cannot open corpus store", Cause: err}, nil)
	}

	r.logger.Info("run started",
		"run_id", r.runID,
		"profiles", report.Profiles,
		"iterations", r.config.Iterations,
		"generations", r.config.Generations,
		"timing_policy", r.config.TimingPolicy,
		"corpus_backend", corpus.Backend(),
	)

	collector := NewSampleCollector()
	r.progress = progressState{total: r.totalOperations(names)}

	if err := r.measureAll(ctx, names, profiles, corpus, collector); err != nil {
		report.Samples = collector.Samples()
		return report, r.fail(err, corpus)
	}
	report.Samples = collector.Samples()

	if err := r.machine.transition(StateAggregating); err != nil {
		return report, r.fail(err, corpus)
	}
	report.Aggregates = Aggregate(report.Samples, r.config.WarmupExclude)
	for _, a := range report.Aggregates {
		if !a.Valid {
			r.logger.Warn("aggregate marked invalid", "run_id", r.runID, "profile", a.Profile, "size", a.FileSize, "error", a.Error)
		}
	}

	if err := r.machine.transition(StatePersisting); err != nil {
		return report, r.fail(err, corpus)
	}
	if r.sink != nil {
		if err := r.sink.WriteAggregates(report.Aggregates); err != nil {
			return report, r.fail(&Error{Kind: KindIOFailure, Stage: StatePersisting, Message: "failed to persist aggregates", Cause: err}, corpus)
		}
	}

	if err := r.machine.transition(StateCleaningUp); err != nil {
		return report, r.fail(err, corpus)
	}
	r.logger.Debug("corpus store before cleanup", "run_id", r.runID, "stats", corpus.Stats())
	removed, err := corpus.Cleanup()
	if err != nil {
		return report, r.fail(&Error{Kind: KindIOFailure, Stage: StateCleaningUp, Message: "corpus cleanup failed", Cause: err}, nil)
	}
	if removed > 0 {
		r.logger.Warn("removed residual corpus items", "run_id", r.runID, "count", removed)
	}

	if err := r.machine.transition(StateDone); err != nil {
		return report, err
	}
	r.logger.Info("run completed", "run_id", r.runID, "samples", len(report.Samples), "duration", time.Since(report.StartedAt))
	r.sendProgress("", 0)

	return report, nil
}

// fail moves to Failed and removes whatever corpus items are still tracked.
// Cleanup errors are logged; the original failure is what gets returned.
func (r *Runner) fail(cause error, corpus *storage.CorpusStore) error {
	if !r.machine.State().Terminal() {
		_ = r.machine.transition(StateFailed)
	}
	r.logger.Error("run failed", "run_id", r.runID, "error", cause)

	if corpus != nil {
		residual := corpus.Residual()
		if _, err := corpus.Cleanup(); err != nil {
			r.logger.Error("best-effort corpus cleanup failed", "run_id", r.runID, "error", err)
		} else if len(residual) > 0 {
			r.logger.Info("removed corpus items after failure", "run_id", r.runID, "items", residual)
		}
	}
	r.sendProgress("", 0)
	return cause
}

func (r *Runner) totalOperations(names []string) int {
	total := 0
	for _, name := range names {
		total += len(r.config.SizesFor(name)) * r.config.Generations * r.config.Iterations
	}
	return total
}

// measureAll walks profile, then size, then corpus item, then iteration.
// A size's items are deleted before the next size is generated.
func (r *Runner) measureAll(ctx context.Context, names []string, profiles []Profile, corpus *storage.CorpusStore, collector *SampleCollector) error {
	gen := NewCorpusGenerator(corpus)

	for i, p := range profiles {
		sizes := r.config.SizesFor(names[i])
		bar := r.newProgressBar(p.Name(), len(sizes)*r.config.Generations*r.config.Iterations)

		for _, size := range sizes {
			if err := r.machine.transition(StateGeneratingCorpus); err != nil {
				return err
			}

			var items []*storage.Item
			for g := 1; g <= r.config.Generations; g++ {
				generated, err := gen.Generate([]int{size}, g, r.config.FillPolicy)
				if err != nil {
					if be, ok := AsError(err); ok {
						be.Profile = p.Name()
					}
					return err
				}
				items = append(items, generated...)
			}

			if err := r.machine.transition(StateMeasuring); err != nil {
				return err
			}

			mark := collector.Len()
			for _, item := range items {
				if err := r.measureItem(ctx, p, corpus, item, collector, bar); err != nil {
					return err
				}
				if err := corpus.Remove(item); err != nil {
					return &Error{Kind: KindIOFailure, Stage: StateMeasuring, Profile: p.Name(), FileSize: size, Message: "failed to delete corpus item", Cause: err}
				}
			}

			if r.sink != nil {
				if err := r.sink.WriteSamples(collector.Since(mark)); err != nil {
					return &Error{Kind: KindIOFailure, Stage: StateMeasuring, Profile: p.Name(), FileSize: size, Message: "failed to persist samples", Cause: err}
				}
			}
			r.logger.Debug("group completed", "run_id", r.runID, "profile", p.Name(), "size", size, "samples", collector.Len()-mark)
		}

		if bar != nil {
			bar.Finish()
		}
	}

	return nil
}

func (r *Runner) measureItem(ctx context.Context, p Profile, corpus *storage.CorpusStore, item *storage.Item, collector *SampleCollector, bar *progressbar.ProgressBar) error {
	data, err := corpus.Read(item)
	if err != nil {
		return &Error{Kind: KindIOFailure, Stage: StateMeasuring, Profile: p.Name(), FileSize: item.Size, Message: "failed to read corpus item", Cause: err}
	}

	for it := 1; it <= r.config.Iterations; it++ {
		if err := ctx.Err(); err != nil {
			return &Error{Kind: KindInterrupted, Stage: StateMeasuring, Profile: p.Name(), FileSize: item.Size, Iteration: it, Cause: err}
		}

		sample, err := r.measureOnce(p, data, item.Size, it)
		if err != nil {
			return err
		}
		sample.Generation = item.Generation
		collector.Add(sample)

		if bar != nil {
			bar.Add(1)
		}
		r.progress.current++
		r.sendProgress(p.Name(), item.Size)
	}
	return nil
}

// measureOnce produces one verified sample or an error; nothing is recorded
// for an iteration that fails verification.
func (r *Runner) measureOnce(p Profile, data []byte, size, iteration int) (Sample, error) {
	sample := Sample{
		Profile:   p.Name(),
		Kind:      p.Capabilities(),
		FileSize:  size,
		Iteration: iteration,
	}
	policy := r.config.TimingPolicy

	switch prof := p.(type) {
	case CipherProfile:
		ct, encUs, err := timeOp(policy, prof.NewContext, func(c CipherContext) ([]byte, error) {
			return c.Encrypt(data)
		})
		if err != nil {
			return sample, annotate(err, prof.Name(), size, iteration)
		}
		pt, decUs, err := timeOp(policy, prof.NewContext, func(c CipherContext) ([]byte, error) {
			return c.Decrypt(ct)
		})
		if err != nil {
			return sample, annotate(err, prof.Name(), size, iteration)
		}
		if !VerifyRoundTrip(data, pt) {
			return sample, correctnessViolation(prof.Name(), size, iteration, "decrypted plaintext does not match original")
		}
		sample.Encrypt, sample.Decrypt = encUs, decUs

	case HashProfile:
		digest, hashUs, err := timeOp(policy, prof.NewContext, func(c DigestContext) ([]byte, error) {
			return c.Digest(data)
		})
		if err != nil {
			return sample, annotate(err, prof.Name(), size, iteration)
		}
		// Verification recomputes the digest with a fresh context and compares.
		ok, verifyUs, err := Measure(func() (bool, error) {
			c, err := prof.NewContext()
			if err != nil {
				return false, err
			}
			again, err := c.Digest(data)
			if err != nil {
				return false, err
			}
			return VerifyDeterminism(digest, again), nil
		})
		if err != nil {
			return sample, annotate(err, prof.Name(), size, iteration)
		}
		if !ok {
			return sample, correctnessViolation(prof.Name(), size, iteration, "digest is not deterministic")
		}
		sample.Digest, sample.Verify = hashUs, verifyUs

	default:
		return sample, &Error{Kind: KindCryptoFailure, Stage: StateMeasuring, Profile: p.Name(), Message: "profile exposes no operation"}
	}

	return sample, nil
}

// timeOp times op, with context construction inside the timed region unless
// policy excludes it.
func timeOp[C any](policy TimingPolicy, newContext func() (C, error), op func(C) ([]byte, error)) ([]byte, float64, error) {
	if policy == TimingExcludeSetup {
		c, err := newContext()
		if err != nil {
			return nil, 0, err
		}
		return Measure(func() ([]byte, error) { return op(c) })
	}
	return Measure(func() ([]byte, error) {
		c, err := newContext()
		if err != nil {
			return nil, err
		}
		return op(c)
	})
}

// annotate fills in measurement coordinates on a failure raised below the
// runner.
func annotate(err error, profile string, size, iteration int) error {
	be, ok := AsError(err)
	if !ok {
		return &Error{Kind: KindCryptoFailure, Stage: StateMeasuring, Profile: profile, FileSize: size, Iteration: iteration, Cause: err}
	}
	if be.Profile == "" {
		be.Profile = profile
	}
	be.FileSize = size
	be.Iteration = iteration
	return err
}

func (r *Runner) newProgressBar(name string, total int) *progressbar.ProgressBar {
	if !r.config.ShowProgress {
		return nil
	}
	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetDescription(fmt.Sprintf("[%s]", name)),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprintln(os.Stderr)
		}),
	)
}

func (r *Runner) sendProgress(profile string, size int) {
	if r.progressChan == nil {
		return
	}

	update := ProgressUpdate{
		RunID:    r.runID,
		State:    r.machine.State(),
		Profile:  profile,
		FileSize: size,
		Current:  r.progress.current,
		Total:    r.progress.total,
	}
	if update.Total > 0 {
		update.Percentage = float64(update.Current) / float64(update.Total) * 100
	}

	select {
	case r.progressChan <- update:
	default:
	}
}
