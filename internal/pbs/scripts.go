package pbs

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"k2ledger/internal/runstore"
)

//go:embed scripts/*.pbs
var scriptFS embed.FS

// InstallScripts copies the bundled batch scripts into dir and returns the paths it
// wrote. Existing scripts are kept unless overwrite is set.
func InstallScripts(dir string, overwrite bool) ([]string, error) {
	entries, err := fs.ReadDir(scriptFS, "scripts")
	if err != nil {
		return nil, fmt.Errorf("read bundled scripts: %w", err)
	}
	written := make([]string, 0, len(entries))
	for _, e := range entries {
		dest := filepath.Join(dir, e.Name())
		if !overwrite {
			if _, err := os.Stat(dest); err == nil {
				continue
			}
		}
		data, err := scriptFS.ReadFile("scripts/" + e.Name())
		if err != nil {
			return written, fmt.Errorf("read bundled script %s: %w", e.Name(), err)
		}
		if err := runstore.WriteBytes(dest, data); err != nil {
			return written, err
		}
		if err := os.Chmod(dest, 0o755); err != nil {
			return written, fmt.Errorf("chmod %s: %w", dest, err)
		}
		written = append(written, dest)
	}
	return written, nil
}
