package knowledge

import (
	"fmt"
	"os"
	"path/filepath"
)

// WriteAtomic writes data to path via tmp file, fsync, and rename, so
// readers and the reconciler never observe a half-written document.
func WriteAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("knowledge: mkdir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".knowledge-tmp-*")
	if err != nil {
		return fmt.Errorf("knowledge: create temp: %w", err)
	}
	tmpName := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		return fmt.Errorf("knowledge: write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("knowledge: fsync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("knowledge: close temp: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("knowledge: rename: %w", err)
	}
	success = true
	return nil
}
