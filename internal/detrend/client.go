package detrend

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"
	"sync"

	"k2ledger/internal/campaign"
)

type OutputStream string

const (
	StreamStdout OutputStream = "stdout"
	StreamStderr OutputStream = "stderr"
)

// Client runs the external pipeline executables. The de-trending itself happens
// there; this package only builds arguments and supervises the process.
type Client struct {
	DetrendCommand  string
	DownloadCommand string
	LogWriter       io.Writer
	Progress        func(target int64, stream OutputStream, line string)
}

type Options struct {
	EPIC     int64
	Campaign campaign.ID
	Model    string
	Cadence  string
	Publish  bool
	CSV      bool
	Extra    []string
}

type Result struct {
	Command []string
}

type DependencyReport struct {
	DetrendFound  bool   `json:"detrend_found"`
	DetrendPath   string `json:"detrend_path,omitempty"`
	DownloadFound bool   `json:"download_found"`
	DownloadPath  string `json:"download_path,omitempty"`
}

func (c Client) DependencyStatus() DependencyReport {
	report := DependencyReport{}
	if path, err := exec.LookPath(c.DetrendCommand); err == nil {
		report.DetrendFound = true
		report.DetrendPath = path
	}
	if path, err := exec.LookPath(c.DownloadCommand); err == nil {
		report.DownloadFound = true
		report.DownloadPath = path
	}
	return report
}

// DetrendArgs is the argument list handed to the detrend command for one target.
func DetrendArgs(opts Options) []string {
	args := []string{
		"--model", opts.Model,
		"--epic", strconv.FormatInt(opts.EPIC, 10),
		"--campaign", opts.Campaign.String(),
		"--cadence", opts.Cadence,
	}
	if opts.Publish {
		args = append(args, "--publish")
	}
	if opts.CSV {
		args = append(args, "--csv")
	}
	return append(args, opts.Extra...)
}

func (c Client) Detrend(ctx context.Context, opts Options) (Result, error) {
	if opts.EPIC <= 0 {
		return Result{}, fmt.Errorf("target id is required")
	}
	if strings.TrimSpace(opts.Model) == "" {
		return Result{}, fmt.Errorf("model is required")
	}
	args := DetrendArgs(opts)
	cmd := append([]string{c.DetrendCommand}, args...)
	if err := c.runCommand(ctx, opts.EPIC, c.DetrendCommand, args); err != nil {
		return Result{Command: cmd}, err
	}
	return Result{Command: cmd}, nil
}

// Download fetches the raw data of one target; the command is expected to leave data.npz.
func (c Client) Download(ctx context.Context, epic int64, id campaign.ID) (Result, error) {
	if epic <= 0 {
		return Result{}, fmt.Errorf("target id is required")
	}
	args := []string{"--epic", strconv.FormatInt(epic, 10), "--campaign", strconv.Itoa(id.Number)}
	cmd := append([]string{c.DownloadCommand}, args...)
	if err := c.runCommand(ctx, epic, c.DownloadCommand, args); err != nil {
		return Result{Command: cmd}, err
	}
	return Result{Command: cmd}, nil
}

func (c Client) runCommand(ctx context.Context, target int64, bin string, args []string) error {
	if strings.TrimSpace(bin) == "" {
		return fmt.Errorf("command is not configured")
	}
	cmd := exec.CommandContext(ctx, bin, args...)

	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("setup stdout pipe: %w", err)
	}
	stderrPipe, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("setup stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start %s: %w", bin, err)
	}

	var outBuf strings.Builder
	var errBuf strings.Builder
	var mu sync.Mutex
	var wg sync.WaitGroup

	read := func(stream OutputStream, r io.Reader) {
		defer wg.Done()
		scanner := bufio.NewScanner(r)
		buf := make([]byte, 0, 64*1024)
		scanner.Buffer(buf, 1024*1024)
		scanner.Split(splitByNewlineOrCR)
		for scanner.Scan() {
			line := scanner.Text()
			mu.Lock()
			appendLimited(&outBuf, &errBuf, stream, line)
			if c.LogWriter != nil {
				_, _ = fmt.Fprintf(c.LogWriter, "[%09d] %s\n", target, line)
			}
			mu.Unlock()
			if c.Progress != nil {
				c.Progress(target, stream, line)
			}
		}
	}

	wg.Add(2)
	go read(StreamStdout, stdoutPipe)
	go read(StreamStderr, stderrPipe)
	wg.Wait()

	if err := cmd.Wait(); err != nil {
		mu.Lock()
		defer mu.Unlock()
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("%s interrupted: %w", bin, ctxErr)
		}
		return fmt.Errorf("%s failed: %w\n%s\n%s", bin, err, strings.TrimSpace(errBuf.String()), strings.TrimSpace(outBuf.String()))
	}
	return nil
}

func splitByNewlineOrCR(data []byte, atEOF bool) (advance int, token []byte, err error) {
	for i := 0; i < len(data); i++ {
		if data[i] == '\n' || data[i] == '\r' {
			if i == 0 {
				return 1, nil, nil
			}
			return i + 1, data[:i], nil
		}
	}
	if atEOF && len(data) > 0 {
		return len(data), data, nil
	}
	return 0, nil, nil
}

func appendLimited(outBuf, errBuf *strings.Builder, stream OutputStream, line string) {
	const maxKeep = 8192
	b := outBuf
	if stream == StreamStderr {
		b = errBuf
	}
	if b.Len() >= maxKeep {
		return
	}
	toWrite := line + "\n"
	remain := maxKeep - b.Len()
	if len(toWrite) > remain {
		toWrite = toWrite[:remain]
	}
	b.WriteString(toWrite)
}
