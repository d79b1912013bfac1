package layout

import (
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"k2ledger/internal/campaign"
)

const (
	DefaultMission = "k2"

	// PrefixSuffix terminates every prefix directory name: 1234 + 00000.
	PrefixSuffix = "00000"

	DataMarker = "data.npz"

	// MaxID is the largest target id the 4/5 directory split can hold.
	MaxID = 999999999

	CadenceLong  = "lc"
	CadenceShort = "sc"
)

var ErrIDRange = errors.New("target id outside the nine digit range")

// Tree is the on-disk layout rooted at <data_root>/<mission>.
type Tree struct {
	DataRoot string
	Mission  string
}

func NewTree(dataRoot, mission string) Tree {
	m := strings.TrimSpace(mission)
	if m == "" {
		m = DefaultMission
	}
	return Tree{DataRoot: strings.TrimSpace(dataRoot), Mission: m}
}

func (t Tree) MissionDir() string {
	return filepath.Join(t.DataRoot, t.Mission)
}

func (t Tree) CampaignDir(id campaign.ID) string {
	return filepath.Join(t.MissionDir(), id.Dir())
}

func (t Tree) TargetDir(id campaign.ID, target int64) (string, error) {
	prefix, suffix, err := SplitID(target)
	if err != nil {
		return "", err
	}
	return filepath.Join(t.CampaignDir(id), prefix+PrefixSuffix, suffix), nil
}

func (t Tree) JobsDir() string {
	return filepath.Join(t.MissionDir(), "jobs")
}

func (t Tree) LocksDir() string {
	return filepath.Join(t.MissionDir(), "locks")
}

// LogPath is where the queue manager writes a job's combined output.
func (t Tree) LogPath(jobName string) string {
	return filepath.Join(t.MissionDir(), jobName+".log")
}

// SplitID formats a target id as nine zero-padded digits and splits it 4/5. Ids
// outside [0, MaxID] have no place in the directory layout.
func SplitID(id int64) (prefix, suffix string, err error) {
	if err := CheckID(id); err != nil {
		return "", "", err
	}
	s := fmt.Sprintf("%09d", id)
	return s[:4], s[4:], nil
}

// CheckID rejects ids that do not fit the nine digit layout.
func CheckID(id int64) error {
	if id < 0 || id > MaxID {
		return fmt.Errorf("%w: %d", ErrIDRange, id)
	}
	return nil
}

// JoinID rebuilds a target id from its prefix and suffix path segments.
func JoinID(prefix, suffix string) (int64, error) {
	raw := prefix + suffix
	if len(prefix) != 4 || len(suffix) != 5 {
		return 0, fmt.Errorf("invalid target id segments %q/%q", prefix, suffix)
	}
	for _, r := range raw {
		if r < '0' || r > '9' {
			return 0, fmt.Errorf("invalid target id %q", raw)
		}
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid target id %q: %w", raw, err)
	}
	return id, nil
}

// FormatID renders a target id the way the ledger lists it.
func FormatID(id int64) string {
	return fmt.Sprintf("%09d", id)
}

// StageName applies the cadence convention to a model name: short cadence runs write <model>.sc.*
func StageName(model, cadence string) string {
	if NormalizeCadence(cadence) == CadenceShort {
		return model + "." + CadenceShort
	}
	return model
}

func NormalizeCadence(raw string) string {
	if strings.EqualFold(strings.TrimSpace(raw), CadenceShort) {
		return CadenceShort
	}
	return CadenceLong
}

func SuccessMarker(stage string) string {
	return stage + ".npz"
}

func ErrorMarker(stage string) string {
	return stage + ".err"
}

// FITSFile is the published artifact name for a target.
func FITSFile(target int64, campaignNumber int, version, cadence string) string {
	return fmt.Sprintf("hlsp_everest_k2_llc_%d-c%02d_kepler_v%s_%s.fits",
		target, campaignNumber, version, NormalizeCadence(cadence))
}

// InjectionStage names the marker stem of one injection run: <model>_Inject_<U|M><depth>.
func InjectionStage(model string, masked bool, depth float64) string {
	mask := "U"
	if masked {
		mask = "M"
	}
	return fmt.Sprintf("%s_Inject_%s%s", model, mask, strconv.FormatFloat(depth, 'g', -1, 64))
}
