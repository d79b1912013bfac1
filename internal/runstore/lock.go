package runstore

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const jobLockOwnerFile = "owner.json"

var ErrLocked = errors.New("job is locked")

// JobLock keeps two batch jobs with the same name from working the same targets.
type JobLock struct {
	lockDir string
}

type jobLockOwner struct {
	Job       string `json:"job"`
	PID       int    `json:"pid"`
	CreatedAt string `json:"created_at"`
	Hostname  string `json:"hostname,omitempty"`
}

func AcquireJobLock(locksDir, job string) (JobLock, error) {
	dir := strings.TrimSpace(locksDir)
	name := strings.TrimSpace(job)
	if dir == "" || name == "" {
		return JobLock{}, fmt.Errorf("lock directory and job name are required")
	}
	if err := Mkdir(dir); err != nil {
		return JobLock{}, err
	}

	lockDir := filepath.Join(dir, name+".lock")
	if err := os.Mkdir(lockDir, 0o755); err != nil {
		if os.IsExist(err) {
			var owner jobLockOwner
			if readErr := ReadJSON(filepath.Join(lockDir, jobLockOwnerFile), &owner); readErr == nil && owner.PID > 0 {
				return JobLock{}, fmt.Errorf("%w: %s (pid=%d created_at=%s host=%s)",
					ErrLocked, name, owner.PID, owner.CreatedAt, owner.Hostname)
			}
			return JobLock{}, fmt.Errorf("%w: %s", ErrLocked, name)
		}
		return JobLock{}, fmt.Errorf("acquire job lock for %s: %w", name, err)
	}

	owner := jobLockOwner{
		Job:       name,
		PID:       os.Getpid(),
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
		Hostname:  Hostname(),
	}
	if err := WriteJSON(filepath.Join(lockDir, jobLockOwnerFile), owner); err != nil {
		_ = os.RemoveAll(lockDir)
		return JobLock{}, fmt.Errorf("write job lock owner for %s: %w", name, err)
	}
	return JobLock{lockDir: lockDir}, nil
}

func (l JobLock) Release() error {
	if strings.TrimSpace(l.lockDir) == "" {
		return nil
	}
	_ = os.Remove(filepath.Join(l.lockDir, jobLockOwnerFile))
	if err := os.Remove(l.lockDir); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("release job lock %s: %w", l.lockDir, err)
	}
	return nil
}

// Hostname never fails; batch nodes without a name report "unknown".
func Hostname() string {
	host, err := os.Hostname()
	if err != nil {
		return "unknown"
	}
	host = strings.TrimSpace(host)
	if host == "" {
		return "unknown"
	}
	return host
}
