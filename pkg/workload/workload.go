// Package workload drives a YCSB-style core workload through the binding.
//
// The load phase inserts RecordCount records. The run phase issues
// OperationCount operations picked by the configured proportions. Both
// phases split their work over Threads goroutines sharing one client.
package workload

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/segmentio/ksuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ssargent/freyjabench/pkg/binding"
	"github.com/ssargent/freyjabench/pkg/config"
)

const (
	PhaseLoad = "load"
	PhaseRun  = "run"
)

// LoadRecorder is told how many records each load worker inserted
type LoadRecorder interface {
	RecordLoaded(n int)
}

// Option configures a Runner
type Option func(*Runner)

// WithLogger sets the runner's logger
func WithLogger(logger *zap.SugaredLogger) Option {
	return func(r *Runner) {
		if logger != nil {
			r.log = logger
		}
	}
}

// WithLoadRecorder reports load progress to rec
func WithLoadRecorder(rec LoadRecorder) Option {
	return func(r *Runner) {
		r.recorder = rec
	}
}

// WithSeed fixes the random seed instead of deriving it from the run ID
func WithSeed(seed int64) Option {
	return func(r *Runner) {
		r.seed = seed
	}
}

// Runner executes load and run phases
type Runner struct {
	client   *binding.Client
	cfg      config.Workload
	log      *zap.SugaredLogger
	recorder LoadRecorder
	runID    ksuid.KSUID
	seed     int64
	fields   []string
	ops      []weightedOp

	// key numbers handed to inserts and the ones known to be written
	keyseq *ackCounter
}

type weightedOp struct {
	name       string
	cumulative float64
}

// New creates a runner. The workload configuration must be valid.
func New(client *binding.Client, cfg config.Workload, opts ...Option) (*Runner, error) {
	if cfg.Threads <= 0 {
		return nil, fmt.Errorf("workload threads must be positive, got %d", cfg.Threads)
	}
	if cfg.FieldCount <= 0 {
		return nil, fmt.Errorf("workload field count must be positive, got %d", cfg.FieldCount)
	}

	ops, err := buildChooser(cfg)
	if err != nil {
		return nil, err
	}

	runID := ksuid.New()
	r := &Runner{
		client: client,
		cfg:    cfg,
		log:    zap.NewNop().Sugar(),
		runID:  runID,
		seed:   int64(xxhash.Sum64(runID.Bytes())),
		fields: FieldNames(cfg.FieldCount),
		ops:    ops,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.keyseq = newAckCounter(int64(cfg.RecordCount))
	return r, nil
}

func buildChooser(cfg config.Workload) ([]weightedOp, error) {
	candidates := []struct {
		name string
		p    float64
	}{
		{binding.OpRead, cfg.ReadProportion},
		{binding.OpUpdate, cfg.UpdateProportion},
		{binding.OpInsert, cfg.InsertProportion},
		{binding.OpDelete, cfg.DeleteProportion},
		{binding.OpScan, cfg.ScanProportion},
	}

	var total float64
	for _, c := range candidates {
		if c.p < 0 {
			return nil, fmt.Errorf("negative %s proportion", c.name)
		}
		total += c.p
	}
	if total <= 0 {
		return nil, fmt.Errorf("operation proportions sum to zero")
	}

	var ops []weightedOp
	var cumulative float64
	for _, c := range candidates {
		if c.p == 0 {
			continue
		}
		cumulative += c.p / total
		ops = append(ops, weightedOp{name: c.name, cumulative: cumulative})
	}
	ops[len(ops)-1].cumulative = 1
	return ops, nil
}

// RunID returns the identifier logged with every summary of this runner
func (r *Runner) RunID() string {
	return r.runID.String()
}

// Load inserts RecordCount records
func (r *Runner) Load(ctx context.Context) (*Summary, error) {
	summary := newSummary(r.RunID(), PhaseLoad)
	start := time.Now()

	g, ctx := errgroup.WithContext(ctx)
	for w, part := range partition(int64(r.cfg.RecordCount), r.cfg.Threads) {
		w, part := w, part
		g.Go(func() error {
			rng := rand.New(rand.NewSource(r.seed + int64(w)))
			tally := newSummary(summary.RunID, PhaseLoad)
			defer summary.merge(tally)

			loaded := 0
			defer func() {
				if r.recorder != nil {
					r.recorder.RecordLoaded(loaded)
				}
			}()

			for keynum := part.start; keynum < part.end; keynum++ {
				if err := ctx.Err(); err != nil {
					return err
				}
				status := r.insert(rng, keynum, binding.OpInsert, tally)
				if status == binding.StatusOK {
					loaded++
				} else {
					r.keyseq.markFailed(keynum)
				}
			}
			return nil
		})
	}

	err := g.Wait()
	summary.Elapsed = time.Since(start)
	r.logSummary(summary)
	return summary, err
}

// Run issues OperationCount operations
func (r *Runner) Run(ctx context.Context) (*Summary, error) {
	summary := newSummary(r.RunID(), PhaseRun)
	start := time.Now()

	g, ctx := errgroup.WithContext(ctx)
	for w, part := range partition(int64(r.cfg.OperationCount), r.cfg.Threads) {
		w, part := w, part
		g.Go(func() error {
			rng := rand.New(rand.NewSource(r.seed + int64(r.cfg.Threads) + int64(w)))
			tally := newSummary(summary.RunID, PhaseRun)
			defer summary.merge(tally)

			for i := part.start; i < part.end; i++ {
				if err := ctx.Err(); err != nil {
					return err
				}
				r.doOperation(rng, tally)
			}
			return nil
		})
	}

	err := g.Wait()
	summary.Elapsed = time.Since(start)
	r.logSummary(summary)
	return summary, err
}

func (r *Runner) doOperation(rng *rand.Rand, tally *Summary) {
	table := r.cfg.Table
	op := r.choose(rng)
	start := time.Now()

	var status binding.Status
	switch op {
	case binding.OpRead:
		status, _ = r.client.DoRead(table, r.existingKey(rng), r.readFields(rng))
	case binding.OpUpdate:
		r.insert(rng, r.existingKeyNum(rng), binding.OpUpdate, tally)
		return
	case binding.OpInsert:
		keynum := r.keyseq.reserve()
		status = r.insert(rng, keynum, binding.OpInsert, tally)
		r.keyseq.acknowledge(keynum, status == binding.StatusOK)
		return
	case binding.OpDelete:
		status = r.client.DoDelete(table, r.existingKey(rng))
	case binding.OpScan:
		status, _ = r.client.DoScan(table, r.existingKey(rng), 1+rng.Intn(100), r.readFields(rng))
	}
	tally.record(op, status, time.Since(start))
}

func (r *Runner) insert(rng *rand.Rand, keynum int64, op string, tally *Summary) binding.Status {
	key := KeyName(keynum, r.cfg.OrderedInserts)
	values := BuildValues(rng, r.cfg.FieldCount, r.cfg.FieldLength)

	start := time.Now()
	var status binding.Status
	if op == binding.OpUpdate {
		status = r.client.DoUpdate(r.cfg.Table, key, values)
	} else {
		status = r.client.DoInsert(r.cfg.Table, key, values)
	}
	tally.record(op, status, time.Since(start))
	return status
}

func (r *Runner) choose(rng *rand.Rand) string {
	x := rng.Float64()
	for _, op := range r.ops {
		if x < op.cumulative {
			return op.name
		}
	}
	return r.ops[len(r.ops)-1].name
}

// existingKeyNum draws from inserts that are known to have succeeded
func (r *Runner) existingKeyNum(rng *rand.Rand) int64 {
	keynum, _ := r.keyseq.draw(rng)
	return keynum
}

func (r *Runner) existingKey(rng *rand.Rand) string {
	return KeyName(r.existingKeyNum(rng), r.cfg.OrderedInserts)
}

// readFields returns nil for whole-record reads, otherwise one random field
func (r *Runner) readFields(rng *rand.Rand) []string {
	if r.cfg.ReadAllFields {
		return nil
	}
	return []string{r.fields[rng.Intn(len(r.fields))]}
}

func (r *Runner) logSummary(s *Summary) {
	r.log.Infow("phase complete",
		"run_id", s.RunID,
		"phase", s.Phase,
		"operations", s.Total(),
		"elapsed", s.Elapsed,
		"ops_per_sec", s.Throughput())
}

type span struct {
	start, end int64
}

// partition splits [0, total) into at most workers contiguous spans
func partition(total int64, workers int) []span {
	if total <= 0 || workers <= 0 {
		return nil
	}
	if int64(workers) > total {
		workers = int(total)
	}

	spans := make([]span, 0, workers)
	per := total / int64(workers)
	extra := total % int64(workers)
	var next int64
	for w := 0; w < workers; w++ {
		size := per
		if int64(w) < extra {
			size++
		}
		spans = append(spans, span{start: next, end: next + size})
		next += size
	}
	return spans
}
