package ledger

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"k2ledger/internal/campaign"
	"k2ledger/internal/layout"
)

// visitFunc is called once per target directory that belongs to the universe.
type visitFunc func(target int64, dir string)

// walkTargets enumerates <campaign>/<prefix>00000/<suffix> and calls visit for every
// directory whose id is in universe, in directory order. Structural problems never
// abort the walk; they are handed to anomaly. Only context cancellation is returned.
func walkTargets(ctx context.Context, tree layout.Tree, id campaign.ID, universe map[int64]struct{}, anomaly func(path string, err error), visit visitFunc) error {
	root := tree.CampaignDir(id)
	prefixes, err := os.ReadDir(root)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			anomaly(root, err)
		}
		return nil
	}

	for _, p := range prefixes {
		if err := ctx.Err(); err != nil {
			return err
		}
		name := p.Name()
		prefixDir := filepath.Join(root, name)
		if !strings.HasSuffix(name, layout.PrefixSuffix) || !isDir(prefixDir, p, anomaly) {
			continue
		}
		if len(name) != 4+len(layout.PrefixSuffix) {
			anomaly(prefixDir, fmt.Errorf("unexpected prefix directory name %q", name))
			continue
		}
		suffixes, err := os.ReadDir(prefixDir)
		if err != nil {
			// a prefix directory that vanished mid-scan simply has no targets
			if !errors.Is(err, fs.ErrNotExist) {
				anomaly(prefixDir, err)
			}
			continue
		}
		for _, s := range suffixes {
			if !s.IsDir() && s.Type()&fs.ModeSymlink == 0 {
				continue
			}
			dir := filepath.Join(prefixDir, s.Name())
			target, err := layout.JoinID(name[:4], s.Name())
			if err != nil {
				anomaly(dir, err)
				continue
			}
			if _, ok := universe[target]; !ok {
				continue
			}
			if !isDir(dir, s, anomaly) {
				continue
			}
			visit(target, dir)
		}
	}
	return nil
}

// isDir reports whether a directory entry is, or links to, a directory. A link that
// cannot be resolved goes to anomaly.
func isDir(path string, e fs.DirEntry, anomaly func(path string, err error)) bool {
	if e.IsDir() {
		return true
	}
	if e.Type()&fs.ModeSymlink == 0 {
		return false
	}
	info, err := os.Stat(path)
	if err != nil {
		anomaly(path, fmt.Errorf("unresolvable link: %w", err))
		return false
	}
	return info.IsDir()
}

// exists reports whether a marker is present. Anything but a clean answer counts as
// absent; unexpected stat failures go to anomaly.
func exists(path string, anomaly func(path string, err error)) bool {
	_, err := os.Stat(path)
	if err == nil {
		return true
	}
	if !errors.Is(err, fs.ErrNotExist) {
		anomaly(path, err)
	}
	return false
}

// removeIfExists deletes an error marker. An already-absent file is not an error.
func removeIfExists(path string) (bool, error) {
	err := os.Remove(path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, err
}

func universeSet(targets []int64) map[int64]struct{} {
	out := make(map[int64]struct{}, len(targets))
	for _, t := range targets {
		out[t] = struct{}{}
	}
	return out
}
