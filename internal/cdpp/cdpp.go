// Package cdpp computes and compares the 6-hour combined differential photometric
// precision of de-trended light curves.
package cdpp

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"k2ledger/internal/layout"
	"k2ledger/internal/stats"
)

const (
	savGolWindow = 49
	savGolOrder  = 2
)

type Options struct {
	Targets     []int64
	LightCurves string
	Out         string
	Logger      *zap.Logger
}

type Result struct {
	Total   int `json:"total"`
	Already int `json:"already"`
	Added   int `json:"added"`
	Failed  int `json:"failed"`
}

type Row struct {
	ID        int64   `json:"id"`
	Raw       float64 `json:"raw"`
	Detrended float64 `json:"detrended"`
}

// LightCurvePath is where a target's light curve is expected: <dir>/<id %09d>.txt.
func LightCurvePath(dir string, target int64) string {
	return filepath.Join(dir, layout.FormatID(target)+".txt")
}

// Compute appends one row per target not yet present in the output table. Targets
// whose light curve cannot be read or measured are written as zeros so a rerun does
// not retry them.
func Compute(ctx context.Context, opts Options) (Result, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if strings.TrimSpace(opts.Out) == "" {
		return Result{}, fmt.Errorf("output table is required")
	}
	existing, err := ReadTable(opts.Out)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return Result{}, err
	}
	done := make(map[int64]bool, len(existing))
	for _, r := range existing {
		done[r.ID] = true
	}

	if err := os.MkdirAll(filepath.Dir(opts.Out), 0o755); err != nil {
		return Result{}, fmt.Errorf("create output directory: %w", err)
	}
	f, err := os.OpenFile(opts.Out, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return Result{}, fmt.Errorf("open output table: %w", err)
	}
	defer f.Close()

	res := Result{Total: len(opts.Targets)}
	for _, target := range opts.Targets {
		if done[target] {
			res.Already++
			continue
		}
		if err := ctx.Err(); err != nil {
			return res, err
		}
		row, err := measure(LightCurvePath(opts.LightCurves, target))
		row.ID = target
		if err != nil {
			res.Failed++
			logger.Warn("light curve not measured", zap.Int64("target", target), zap.Error(err))
			row = Row{ID: target}
		}
		if err := writeRow(f, row); err != nil {
			return res, err
		}
		done[target] = true
		res.Added++
	}
	return res, nil
}

func measure(path string) (Row, error) {
	flux, err := readFlux(path)
	if err != nil {
		return Row{}, err
	}
	if len(flux) < savGolWindow {
		return Row{}, fmt.Errorf("%s: %d samples, need at least %d", path, len(flux), savGolWindow)
	}
	med := stats.Median(flux)
	if med == 0 || math.IsNaN(med) {
		return Row{}, fmt.Errorf("%s: cannot normalise flux with median %v", path, med)
	}
	norm := make([]float64, len(flux))
	for i, v := range flux {
		norm[i] = v / med
	}
	trend, err := stats.SavGol(flux, savGolWindow, savGolOrder)
	if err != nil {
		return Row{}, err
	}
	detrended := make([]float64, len(flux))
	for i, v := range flux {
		detrended[i] = v - trend[i] + med
	}
	dmed := stats.Median(detrended)
	for i := range detrended {
		detrended[i] /= dmed
	}
	return Row{
		Raw:       stats.RMS(norm, stats.DefaultRMSWindow, true),
		Detrended: stats.RMS(detrended, stats.DefaultRMSWindow, true),
	}, nil
}

// readFlux takes the last column of every data line; '#' starts a comment and NaNs
// are dropped.
func readFlux(path string) ([]float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var flux []float64
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.FieldsFunc(line, func(r rune) bool {
			return r == ',' || r == ' ' || r == '\t'
		})
		if len(fields) == 0 {
			continue
		}
		v := stats.ParseFloat(fields[len(fields)-1])
		if math.IsNaN(v) {
			continue
		}
		flux = append(flux, v)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return flux, nil
}

func writeRow(w io.Writer, r Row) error {
	_, err := fmt.Fprintf(w, "%09d %15.3f %15.3f\n", r.ID, r.Raw, r.Detrended)
	return err
}

// ReadTable parses a CDPP table. Rows with an unparsable id are skipped.
func ReadTable(path string) ([]Row, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var rows []Row
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 3 {
			continue
		}
		id, err := strconv.ParseInt(fields[0], 10, 64)
		if err != nil {
			continue
		}
		rows = append(rows, Row{ID: id, Raw: stats.ParseFloat(fields[1]), Detrended: stats.ParseFloat(fields[2])})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return rows, nil
}
