package catalog

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"k2ledger/internal/campaign"
	"k2ledger/internal/layout"
)

var ErrNoTable = errors.New("campaign table not found")

// Resolver returns the ordered target universe of a campaign or decile.
type Resolver interface {
	ResolveCampaignTargets(ctx context.Context, id campaign.ID, cadence string) ([]int64, error)
}

// TableResolver reads target lists from c<NN>.csv (long cadence) and c<NN>-sc.csv (short cadence).
type TableResolver struct {
	Dir string
}

func NewTableResolver(dir string) *TableResolver {
	return &TableResolver{Dir: strings.TrimSpace(dir)}
}

func (r *TableResolver) TablePath(number int, cadence string) string {
	name := fmt.Sprintf("c%02d.csv", number)
	if layout.NormalizeCadence(cadence) == layout.CadenceShort {
		name = fmt.Sprintf("c%02d-sc.csv", number)
	}
	return filepath.Join(r.Dir, name)
}

func (r *TableResolver) ResolveCampaignTargets(ctx context.Context, id campaign.ID, cadence string) ([]int64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path := r.TablePath(id.Number, cadence)
	targets, err := readTable(path)
	if err != nil {
		return nil, err
	}
	if !id.IsDecile() {
		return targets, nil
	}
	return Decile(targets, id.Sub), nil
}

func readTable(path string) ([]int64, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNoTable, path)
		}
		return nil, fmt.Errorf("open campaign table %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.Comment = '#'
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	out := make([]int64, 0, 1024)
	line := 0
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse campaign table %s: %w", path, err)
		}
		line++
		if len(rec) == 0 {
			continue
		}
		field := strings.TrimSpace(rec[0])
		if field == "" {
			continue
		}
		id, err := strconv.ParseInt(field, 10, 64)
		if err != nil {
			if line == 1 {
				// header row
				continue
			}
			return nil, fmt.Errorf("parse campaign table %s: row %d: invalid target id %q", path, line, field)
		}
		if err := layout.CheckID(id); err != nil {
			return nil, fmt.Errorf("parse campaign table %s: row %d: %w", path, line, err)
		}
		out = append(out, id)
	}
	return out, nil
}

// Decile returns the n-th of ten contiguous chunks of targets. The first len%10 chunks
// carry one extra target.
func Decile(targets []int64, n int) []int64 {
	if n < 0 || n >= campaign.DecileCount {
		return []int64{}
	}
	total := len(targets)
	base := total / campaign.DecileCount
	extra := total % campaign.DecileCount
	start := n*base + min(n, extra)
	size := base
	if n < extra {
		size++
	}
	out := make([]int64, size)
	copy(out, targets[start:start+size])
	return out
}

// Static is an in-memory resolver keyed by campaign number.
type Static map[int][]int64

func (s Static) ResolveCampaignTargets(_ context.Context, id campaign.ID, _ string) ([]int64, error) {
	targets, ok := s[id.Number]
	if !ok {
		return nil, fmt.Errorf("%w: campaign %d", ErrNoTable, id.Number)
	}
	if id.IsDecile() {
		return Decile(targets, id.Sub), nil
	}
	out := make([]int64, len(targets))
	copy(out, targets)
	return out, nil
}
