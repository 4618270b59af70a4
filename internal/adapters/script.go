package adapters

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// ScriptAdapter shells out to a configured command. It exists for local
// generators and for wiring new providers before a native adapter is
// written. The command template supports the placeholders {inputs}
// (space-joined absolute paths), {output_dir}, {job_id}, {product_id}
// and {variant}.
//
// The command's last non-empty stdout line is taken as the output
// reference (a local path or URL). Exit status 2 is treated as a
// permanent failure; any other non-zero exit is transient.
type ScriptAdapter struct {
	Command string
}

// Execute runs the configured command for one job.
func (s *ScriptAdapter) Execute(ctx context.Context, spec JobSpec) (*Result, error) {
	if s.Command == "" {
		return nil, Permanent("script adapter has no command configured", nil)
	}

	cmdStr := strings.NewReplacer(
		"{inputs}", strings.Join(spec.InputPaths, " "),
		"{output_dir}", spec.OutputDir,
		"{job_id}", spec.JobID,
		"{product_id}", spec.ProductID,
		"{variant}", spec.Variant,
	).Replace(s.Command)

	started := time.Now()
	cmd := exec.CommandContext(ctx, "sh", "-c", cmdStr)
	out, err := cmd.Output()
	if err != nil {
		if ctx.Err() != nil {
			return nil, Transient("script timed out", ctx.Err())
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && exitErr.ExitCode() == 2 {
			return nil, Permanent(fmt.Sprintf("script rejected job: %s", strings.TrimSpace(string(exitErr.Stderr))), err)
		}
		return nil, Transient("script failed", err)
	}

	ref := lastLine(string(out))
	if ref == "" {
		return nil, Permanent("script produced no output reference", nil)
	}
	return &Result{
		OutputRef:  ref,
		StartedAt:  started,
		FinishedAt: time.Now(),
	}, nil
}

func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if l := strings.TrimSpace(lines[i]); l != "" {
			return l
		}
	}
	return ""
}
