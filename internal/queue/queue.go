// Package queue implements the filesystem-encoded task queue. Each job
// is one token file whose body is written once at creation and whose
// state lives entirely in the filename suffix:
//
//	<stem>.todo
//	<stem>.inprogress.<worker-id>
//	<stem>.completed
//	<stem>.failed
//
// Claiming renames todo → inprogress.<worker>; rename atomicity within
// one directory gives at-most-one claim per token without any lock.
// Tokens are never deleted; terminal tokens remain as an audit trail.
package queue

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/quantaleap/meshbench/internal/models"
)

// Token states, encoded as filename suffixes.
const (
	StateTodo       = "todo"
	StateInProgress = "inprogress"
	StateCompleted  = "completed"
	StateFailed     = "failed"
)

// Create writes a new token in state todo. The body is YAML and is
// write-once: creation fails if a token file with the same name exists.
func Create(dir string, stem string, tok models.QueueToken) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("queue: mkdir %s: %w", dir, err)
	}
	path := filepath.Join(dir, stem+"."+StateTodo)
	data, err := yaml.Marshal(tok)
	if err != nil {
		return "", fmt.Errorf("queue: marshal token %s: %w", tok.JobID, err)
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("queue: create token %s: %w", path, err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return "", fmt.Errorf("queue: write token %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("queue: close token %s: %w", path, err)
	}
	return path, nil
}

// Read parses a token file's YAML body.
func Read(path string) (models.QueueToken, error) {
	var tok models.QueueToken
	data, err := os.ReadFile(path)
	if err != nil {
		return tok, fmt.Errorf("queue: read token %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &tok); err != nil {
		return tok, fmt.Errorf("queue: parse token %s: %w", path, err)
	}
	return tok, nil
}

// ListTodo returns the run's todo token paths in lexicographic order,
// which is the worker's discovery order.
func ListTodo(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("queue: list %s: %w", dir, err)
	}
	var paths []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), "."+StateTodo) {
			paths = append(paths, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(paths)
	return paths, nil
}

// HasToken reports whether any token for the job (in any state) exists
// in dir. Used by the batch builder to skip already-queued work.
func HasToken(dir, jobID string) (bool, error) {
	prefix := jobID
	if len(prefix) > 8 {
		prefix = prefix[:8]
	}
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("queue: list %s: %w", dir, err)
	}
	for _, e := range entries {
		if stem, _, _ := splitState(e.Name()); strings.HasSuffix(stem, "_"+prefix) {
			return true, nil
		}
	}
	return false, nil
}

// Claim attempts to move a todo token to inprogress.<workerID>. It
// returns ok=false without error when another worker claimed the token
// first (the source file no longer exists).
func Claim(todoPath, workerID string) (string, bool, error) {
	stem, state, _ := splitState(filepath.Base(todoPath))
	if state != StateTodo {
		return "", false, fmt.Errorf("queue: claim %s: not a todo token", todoPath)
	}
	claimed := filepath.Join(filepath.Dir(todoPath), stem+"."+StateInProgress+"."+workerID)
	if err := os.Rename(todoPath, claimed); err != nil {
		if os.IsNotExist(err) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("queue: claim %s: %w", todoPath, err)
	}
	return claimed, true, nil
}

// Finish renames a token to a terminal state (completed or failed).
func Finish(path, terminal string) (string, error) {
	if terminal != StateCompleted && terminal != StateFailed {
		return "", fmt.Errorf("queue: finish %s: invalid terminal state %q", path, terminal)
	}
	stem, _, _ := splitState(filepath.Base(path))
	dest := filepath.Join(filepath.Dir(path), stem+"."+terminal)
	if err := os.Rename(path, dest); err != nil {
		return "", fmt.Errorf("queue: finish %s: %w", path, err)
	}
	return dest, nil
}

// StateOf returns a token file's state and, for inprogress tokens, the
// worker id that holds the claim.
func StateOf(path string) (state, workerID string) {
	_, state, workerID = splitState(filepath.Base(path))
	return state, workerID
}

// splitState splits a token filename into stem, state and (for
// inprogress) the claiming worker id.
func splitState(name string) (stem, state, workerID string) {
	for _, s := range []string{StateTodo, StateCompleted, StateFailed} {
		if strings.HasSuffix(name, "."+s) {
			return strings.TrimSuffix(name, "."+s), s, ""
		}
	}
	if i := strings.Index(name, "."+StateInProgress+"."); i >= 0 {
		return name[:i], StateInProgress, name[i+len(StateInProgress)+2:]
	}
	return name, "", ""
}
