package worker

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/quantaleap/meshbench/internal/adapters"
)

// materialize moves the adapter's result into the job's deterministic
// output path: remote references are stream-downloaded, local artifacts
// are moved (or copied across filesystems) into place.
func materialize(ref, dest string) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("worker: mkdir output dir: %w", err)
	}
	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		return download(ref, dest)
	}
	if ref == dest {
		return nil
	}
	if err := os.Rename(ref, dest); err == nil {
		return nil
	}
	return copyFile(ref, dest)
}

// download streams a remote artifact to dest. HTTP failures are
// transient: providers serve results from short-lived URLs that
// occasionally hiccup.
func download(url, dest string) error {
	resp, err := http.Get(url)
	if err != nil {
		return adapters.Transient(fmt.Sprintf("download %s", url), err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return adapters.Transient(fmt.Sprintf("download %s: status %d", url, resp.StatusCode), nil)
	}

	tmp := dest + ".part"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("worker: create %s: %w", tmp, err)
	}
	if _, err := io.Copy(f, resp.Body); err != nil {
		f.Close()
		os.Remove(tmp)
		return adapters.Transient(fmt.Sprintf("download %s", url), err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("worker: close %s: %w", tmp, err)
	}
	return os.Rename(tmp, dest)
}

func copyFile(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("worker: open artifact %s: %w", src, err)
	}
	defer in.Close()
	out, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("worker: create %s: %w", dest, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("worker: copy artifact to %s: %w", dest, err)
	}
	return out.Close()
}
