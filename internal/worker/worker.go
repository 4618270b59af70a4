// Package worker implements the execution engine: it claims queue
// tokens, dispatches them to the registered adapter, enforces retry and
// deadline policy, and stages one result row per job for later
// consolidation into the system-of-record.
//
// A session processes tokens sequentially; parallelism comes from
// running multiple worker processes against the shared workspace, which
// is safe because claiming is an atomic rename and result rows go to
// per-job staging files.
package worker

import (
	"context"
	"fmt"
	"log"
	"os/user"
	"path/filepath"
	"strconv"
	"time"

	"github.com/quantaleap/meshbench/internal/adapters"
	"github.com/quantaleap/meshbench/internal/config"
	"github.com/quantaleap/meshbench/internal/inputs"
	"github.com/quantaleap/meshbench/internal/jobid"
	"github.com/quantaleap/meshbench/internal/metrics"
	"github.com/quantaleap/meshbench/internal/models"
	"github.com/quantaleap/meshbench/internal/queue"
	"github.com/quantaleap/meshbench/internal/tabular"
	"github.com/quantaleap/meshbench/internal/workspace"
)

// Session is one worker invocation over a run's queue.
type Session struct {
	Config   *config.Config
	Layout   workspace.Layout
	Registry *adapters.Registry

	RunID     string
	Algorithm string // empty processes every algorithm
	Limit     int    // max tokens this session; 0 = unlimited
	DryRun    bool
	WorkerID  string // defaults to the OS user
}

// Counts aggregates a session's outcomes.
type Counts struct {
	Processed int `yaml:"processed"`
	Completed int `yaml:"completed"`
	Failed    int `yaml:"failed"`
}

// Run claims and processes todo tokens until the session limit is
// reached or no claimable token remains.
func (s *Session) Run(ctx context.Context) (Counts, error) {
	if s.RunID == "" {
		return Counts{}, fmt.Errorf("worker: run id is required")
	}
	if s.WorkerID == "" {
		s.WorkerID = osUser()
	}

	var counts Counts
	dir := s.Layout.QueueDir(s.RunID)

	for {
		if ctx.Err() != nil {
			return counts, ctx.Err()
		}
		if s.Limit > 0 && counts.Processed >= s.Limit {
			return counts, nil
		}

		todos, err := queue.ListTodo(dir)
		if err != nil {
			return counts, err
		}

		claimedAny := false
		for _, todoPath := range todos {
			if ctx.Err() != nil {
				return counts, ctx.Err()
			}
			if s.Limit > 0 && counts.Processed >= s.Limit {
				return counts, nil
			}

			// Peek before claiming so an algorithm-scoped session
			// leaves other algorithms' tokens alone.
			tok, err := queue.Read(todoPath)
			if err != nil {
				log.Printf("worker: skipping unreadable token %s: %v", todoPath, err)
				continue
			}
			if s.Algorithm != "" && tok.Algorithm != s.Algorithm {
				continue
			}

			if s.DryRun {
				counts.Processed++
				continue
			}

			claimedPath, ok, err := queue.Claim(todoPath, s.WorkerID)
			if err != nil {
				return counts, err
			}
			if !ok {
				continue // another worker got it first
			}
			claimedAny = true

			counts.Processed++
			if s.process(ctx, claimedPath, tok) {
				counts.Completed++
			} else {
				counts.Failed++
			}
		}

		if !claimedAny {
			return counts, nil
		}
	}
}

// process executes one claimed token end to end. The token always
// reaches a terminal state: the rename runs in a defer so a panic or
// unexpected return cannot leave it inprogress forever.
func (s *Session) process(ctx context.Context, tokenPath string, tok models.QueueToken) (succeeded bool) {
	terminal := queue.StateFailed
	defer func() {
		if _, err := queue.Finish(tokenPath, terminal); err != nil {
			log.Printf("worker: finish token %s: %v", tokenPath, err)
		}
	}()

	started := time.Now()
	metrics.JobsProcessed.WithLabelValues(tok.Algorithm).Inc()

	fail := func(msg string) bool {
		s.record(tok, models.StatusFailed, started, time.Now(), "", nil, msg)
		metrics.JobsFailed.WithLabelValues(tok.Algorithm).Inc()
		return false
	}

	// Integrity check: the token's stored job id must match what its
	// own content hashes to. A mismatch means corruption or hand
	// editing and is never retried.
	want := jobid.Compute(tok.Algorithm, tok.ProductID, tok.Variant, tok.SelectedInputs, tok.CodeVersion)
	if want != tok.JobID {
		return fail(fmt.Sprintf("integrity: token job id %s does not match recomputed %s", tok.JobID, want))
	}

	algoCfg, ok := s.Config.Algorithms[tok.Algorithm]
	if !ok {
		return fail(fmt.Sprintf("permanent: algorithm %q is not configured", tok.Algorithm))
	}
	adapter, err := s.Registry.Lookup(algoCfg.Adapter)
	if err != nil {
		return fail(err.Error())
	}

	absInputs := make([]string, len(tok.SelectedInputs))
	for i, ref := range tok.SelectedInputs {
		absInputs[i] = s.Layout.Resolve(ref)
	}

	outDir := s.Layout.OutputDir(tok.RunID, tok.JobID)
	stem := queue.Stem(tok.ProductID, tok.Variant, tok.Algorithm, len(tok.SelectedInputs), inputs.TagSuffix(tok.SelectedInputs), tok.RunID, tok.JobID)
	artifact := filepath.Join(outDir, stem+".glb")

	spec := adapters.JobSpec{
		RunID:      tok.RunID,
		Algorithm:  tok.Algorithm,
		ProductID:  tok.ProductID,
		Variant:    tok.Variant,
		JobID:      tok.JobID,
		InputPaths: absInputs,
		OutputDir:  outDir,
	}

	res, err := s.attempts(ctx, adapter, spec, tok, s.Config.Deadline(tok.Algorithm))
	if err != nil {
		return fail(err.Error())
	}

	if err := materialize(res.OutputRef, artifact); err != nil {
		return fail(fmt.Sprintf("materialize output: %v", err))
	}
	s.materializePreviews(res, outDir)

	finished := time.Now()
	s.record(tok, models.StatusCompleted, started, finished, artifact, res, "")
	metrics.JobsCompleted.WithLabelValues(tok.Algorithm).Inc()
	metrics.JobDuration.WithLabelValues(tok.Algorithm).Observe(finished.Sub(started).Seconds())
	terminal = queue.StateCompleted
	return true
}

// attempts runs the adapter on the fixed retry schedule: one immediate
// attempt, then one per configured delay. Permanent errors abort
// immediately; exhausting the schedule returns the last transient error.
func (s *Session) attempts(ctx context.Context, adapter adapters.Adapter, spec adapters.JobSpec, tok models.QueueToken, deadline time.Duration) (*adapters.Result, error) {
	delays := append([]time.Duration{0}, s.Config.RetryDelays()...)
	marker := s.Layout.MarkerPath(tok.RunID, tok.JobID, queue.StateInProgress)

	var lastErr error
	for i, delay := range delays {
		if delay > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}

		if err := writeMarker(s.Layout, tok.RunID, tok.JobID, queue.StateInProgress, s.WorkerID); err != nil {
			return nil, err
		}
		stop := startHeartbeat(marker, time.Duration(s.Config.Worker.HeartbeatSeconds)*time.Second)
		res, err := executeOnce(ctx, adapter, spec, deadline)
		stop()

		if err == nil {
			return res, nil
		}
		lastErr = err
		if adapters.IsPermanent(err) {
			return nil, err
		}
		log.Printf("worker: job %s attempt %d/%d failed: %v", tok.JobID, i+1, len(delays), err)
	}
	return nil, lastErr
}

// executeOnce bounds one adapter call by the deadline. The call runs in
// its own goroutine; on expiry the job is abandoned locally (the remote
// side is not cancelled) and reported as a transient timeout.
func executeOnce(ctx context.Context, adapter adapters.Adapter, spec adapters.JobSpec, deadline time.Duration) (*adapters.Result, error) {
	cctx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	type outcome struct {
		res *adapters.Result
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		res, err := adapter.Execute(cctx, spec)
		done <- outcome{res, err}
	}()

	select {
	case o := <-done:
		return o.res, o.err
	case <-cctx.Done():
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, adapters.Transient(fmt.Sprintf("deadline %s exceeded, abandoning remote job", deadline), context.DeadlineExceeded)
	}
}

// record writes the job's result row to its staging file and the state
// markers. Staging files are per-job, so concurrent workers never
// contend on the shared table.
func (s *Session) record(tok models.QueueToken, status string, started, finished time.Time, artifact string, res *adapters.Result, errMsg string) {
	rec := models.GenerationRecord{
		RunID:        tok.RunID,
		JobID:        tok.JobID,
		ProductID:    tok.ProductID,
		Variant:      tok.Variant,
		Algorithm:    tok.Algorithm,
		InputCount:   strconv.Itoa(len(tok.SelectedInputs)),
		ImageSetHash: jobid.ImageSetHash(tok.SelectedInputs),
		Status:       status,
		QueuedAt:     tok.QueuedAt,
		StartedAt:    started.UTC().Format(models.Timestamp),
		FinishedAt:   finished.UTC().Format(models.Timestamp),
		DurationS:    strconv.FormatFloat(finished.Sub(started).Seconds(), 'f', 1, 64),
		WorkerID:     s.WorkerID,
		Error:        errMsg,
		CodeVersion:  tok.CodeVersion,
	}
	if status == models.StatusCompleted {
		rec.OutputPath = s.relative(artifact)
		if res != nil {
			rec.ProviderRequestID = res.ProviderRequestID
		}
		if a, ok := s.Config.Algorithms[tok.Algorithm]; ok && a.PriceUSD > 0 {
			rec.CostUSD = strconv.FormatFloat(a.PriceUSD, 'f', 4, 64)
		}
	}

	t := &tabular.Table{Columns: models.GenerationColumns, Rows: []map[string]string{rec.Row()}}
	if err := t.Write(s.Layout.StagingPath(tok.RunID, tok.JobID)); err != nil {
		log.Printf("worker: write staging row for %s: %v", tok.JobID, err)
	}

	markerState := queue.StateCompleted
	if status != models.StatusCompleted {
		markerState = queue.StateFailed
		if errMsg != "" {
			writeErrorSidecar(s.Layout, tok.RunID, tok.JobID, errMsg)
		}
	}
	if err := writeMarker(s.Layout, tok.RunID, tok.JobID, markerState, s.WorkerID); err != nil {
		log.Printf("worker: write %s marker for %s: %v", markerState, tok.JobID, err)
	}
	clearInProgress(s.Layout, tok.RunID, tok.JobID)
}

// materializePreviews saves up to 3 preview artifacts next to the model.
func (s *Session) materializePreviews(res *adapters.Result, outDir string) {
	for i, ref := range res.PreviewRefs {
		if i >= 3 {
			break
		}
		dest := filepath.Join(outDir, fmt.Sprintf("preview_%d.png", i))
		if err := materialize(ref, dest); err != nil {
			log.Printf("worker: preview %d: %v", i, err)
		}
	}
}

func (s *Session) relative(path string) string {
	if rel, err := filepath.Rel(s.Layout.Root, path); err == nil {
		return filepath.ToSlash(rel)
	}
	return path
}

func osUser() string {
	if u, err := user.Current(); err == nil && u.Username != "" {
		return u.Username
	}
	return "worker"
}
