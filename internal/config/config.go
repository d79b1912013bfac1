package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"k2ledger/internal/layout"
	"k2ledger/internal/runstore"
)

const (
	DefaultConfigPath = "config/k2ledger.yaml"
	SchemaVersion     = 1

	// DataRootEnv overrides data_root from the file.
	DataRootEnv = "EVEREST_DAT"

	DefaultFITSVersion     = "2.0"
	DefaultQsub            = "qsub"
	DefaultDetrendCommand  = "everest-detrend"
	DefaultDownloadCommand = "everest-download"
	DefaultDownloadQueue   = "build"
	DefaultDownloadHours   = 8
	DefaultNodes           = 5
	DefaultPPN             = 12
	DefaultRunHours        = 100

	// BackfillQueue jobs are capped at BackfillMaxHours in dev mode.
	BackfillQueue    = "bf"
	BackfillMaxHours = 10
)

var ErrUnsupportedSchema = errors.New("unsupported config schema version")

type Config struct {
	SchemaVersion int      `yaml:"schema_version" json:"schema_version"`
	DataRoot      string   `yaml:"data_root" json:"data_root"`
	Mission       string   `yaml:"mission" json:"mission"`
	CatalogDir    string   `yaml:"catalog_dir,omitempty" json:"catalog_dir,omitempty"`
	Dev           bool     `yaml:"dev,omitempty" json:"dev,omitempty"`
	Workers       int      `yaml:"workers,omitempty" json:"workers,omitempty"`
	FITSVersion   string   `yaml:"fits_version" json:"fits_version"`
	PBS           PBS      `yaml:"pbs" json:"pbs"`
	Commands      Commands `yaml:"commands" json:"commands"`
	Logging       Logging  `yaml:"logging" json:"logging"`
}

type PBS struct {
	Qsub      string `yaml:"qsub" json:"qsub"`
	ScriptDir string `yaml:"script_dir,omitempty" json:"script_dir,omitempty"`
	Email     string `yaml:"email,omitempty" json:"email,omitempty"`
	Download  Queue  `yaml:"download" json:"download"`
	Run       Queue  `yaml:"run" json:"run"`
	Publish   Queue  `yaml:"publish" json:"publish"`
}

// Queue holds the resource request of one job kind. Walltime is in hours, MPN is the
// memory per node in GB (0 leaves it unset).
type Queue struct {
	Queue    string `yaml:"queue,omitempty" json:"queue,omitempty"`
	Nodes    int    `yaml:"nodes,omitempty" json:"nodes,omitempty"`
	PPN      int    `yaml:"ppn,omitempty" json:"ppn,omitempty"`
	Walltime int    `yaml:"walltime" json:"walltime"`
	MPN      int    `yaml:"mpn,omitempty" json:"mpn,omitempty"`
}

type Commands struct {
	Detrend  string `yaml:"detrend" json:"detrend"`
	Download string `yaml:"download" json:"download"`
}

type Logging struct {
	File        string `yaml:"file,omitempty" json:"file,omitempty"`
	Level       string `yaml:"level,omitempty" json:"level,omitempty"`
	ScreenLevel string `yaml:"screen_level,omitempty" json:"screen_level,omitempty"`
}

func Default() Config {
	return Config{
		SchemaVersion: SchemaVersion,
		DataRoot:      defaultDataRoot(),
		Mission:       layout.DefaultMission,
		FITSVersion:   DefaultFITSVersion,
		PBS: PBS{
			Qsub:     DefaultQsub,
			Download: Queue{Queue: DefaultDownloadQueue, Walltime: DefaultDownloadHours},
			Run:      Queue{Nodes: DefaultNodes, PPN: DefaultPPN, Walltime: DefaultRunHours},
			Publish:  Queue{Nodes: DefaultNodes, PPN: DefaultPPN, Walltime: DefaultRunHours},
		},
		Commands: Commands{
			Detrend:  DefaultDetrendCommand,
			Download: DefaultDownloadCommand,
		},
		Logging: Logging{
			Level:       "debug",
			ScreenLevel: "error",
		},
	}
}

func defaultDataRoot() string {
	home, err := os.UserHomeDir()
	if err != nil || strings.TrimSpace(home) == "" {
		return ".everest2"
	}
	return filepath.Join(home, ".everest2")
}

// ResolvePath returns path, or the default config location when it is empty.
func ResolvePath(path string) string {
	p := strings.TrimSpace(path)
	if p == "" {
		return DefaultConfigPath
	}
	return p
}

// Load reads the config file, falling back to defaults when it does not exist, then
// applies the environment override and fills unset fields.
func Load(path string) (Config, error) {
	cfg := Default()
	configPath := ResolvePath(path)
	if _, err := os.Stat(configPath); err == nil {
		cfg = Config{}
		if err := runstore.ReadYAML(configPath, &cfg); err != nil {
			return Config{}, err
		}
		if cfg.SchemaVersion != SchemaVersion {
			return Config{}, fmt.Errorf("%w: %d in %s (want %d)", ErrUnsupportedSchema, cfg.SchemaVersion, configPath, SchemaVersion)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("stat config %s: %w", configPath, err)
	}

	if env := strings.TrimSpace(os.Getenv(DataRootEnv)); env != "" {
		cfg.DataRoot = env
	}
	cfg = Normalize(cfg)
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("config %s: %w", configPath, err)
	}
	return cfg, nil
}

// Save writes cfg to path. An existing file is only replaced when overwrite is set.
func Save(path string, cfg Config, overwrite bool) (string, error) {
	configPath := ResolvePath(path)
	if !overwrite {
		if _, err := os.Stat(configPath); err == nil {
			return "", fmt.Errorf("config already exists: %s", configPath)
		}
	}
	cfg.SchemaVersion = SchemaVersion
	if err := runstore.WriteYAML(configPath, cfg); err != nil {
		return "", err
	}
	return configPath, nil
}

func Normalize(raw Config) Config {
	def := Default()
	norm := raw
	norm.DataRoot = strings.TrimSpace(norm.DataRoot)
	if norm.DataRoot == "" {
		norm.DataRoot = def.DataRoot
	}
	norm.Mission = strings.TrimSpace(norm.Mission)
	if norm.Mission == "" {
		norm.Mission = def.Mission
	}
	norm.CatalogDir = strings.TrimSpace(norm.CatalogDir)
	if norm.CatalogDir == "" {
		norm.CatalogDir = filepath.Join(norm.DataRoot, norm.Mission, "tables")
	}
	if norm.Workers < 0 {
		norm.Workers = 0
	}
	norm.FITSVersion = strings.TrimSpace(norm.FITSVersion)
	if norm.FITSVersion == "" {
		norm.FITSVersion = def.FITSVersion
	}

	norm.PBS.Qsub = firstNonEmpty(norm.PBS.Qsub, def.PBS.Qsub)
	norm.PBS.ScriptDir = strings.TrimSpace(norm.PBS.ScriptDir)
	if norm.PBS.ScriptDir == "" {
		norm.PBS.ScriptDir = filepath.Join(norm.DataRoot, norm.Mission, "pbs")
	}
	norm.PBS.Email = strings.TrimSpace(norm.PBS.Email)
	norm.PBS.Download = normalizeQueue(norm.PBS.Download, def.PBS.Download)
	norm.PBS.Run = normalizeQueue(norm.PBS.Run, def.PBS.Run)
	norm.PBS.Publish = normalizeQueue(norm.PBS.Publish, def.PBS.Publish)

	norm.Commands.Detrend = firstNonEmpty(norm.Commands.Detrend, def.Commands.Detrend)
	norm.Commands.Download = firstNonEmpty(norm.Commands.Download, def.Commands.Download)

	norm.Logging.File = strings.TrimSpace(norm.Logging.File)
	norm.Logging.Level = firstNonEmpty(norm.Logging.Level, def.Logging.Level)
	norm.Logging.ScreenLevel = firstNonEmpty(norm.Logging.ScreenLevel, def.Logging.ScreenLevel)
	return norm
}

func normalizeQueue(raw, def Queue) Queue {
	q := raw
	q.Queue = strings.TrimSpace(q.Queue)
	if q.Queue == "" {
		q.Queue = def.Queue
	}
	if q.Nodes <= 0 {
		q.Nodes = def.Nodes
	}
	if q.PPN <= 0 {
		q.PPN = def.PPN
	}
	if q.Walltime <= 0 {
		q.Walltime = def.Walltime
	}
	if q.MPN < 0 {
		q.MPN = 0
	}
	return q
}

func (c Config) Validate() error {
	if strings.ContainsAny(c.Mission, `/\`) {
		return fmt.Errorf("mission must be a single directory name, got %q", c.Mission)
	}
	for kind, q := range map[string]Queue{"download": c.PBS.Download, "run": c.PBS.Run, "publish": c.PBS.Publish} {
		if q.Walltime <= 0 {
			return fmt.Errorf("pbs.%s.walltime must be > 0", kind)
		}
	}
	if strings.Contains(c.DataRoot, ",") {
		return fmt.Errorf("data_root must not contain commas (it travels through qsub -v): %q", c.DataRoot)
	}
	return nil
}

// Walltime returns the hours to request on queue q, honouring the dev backfill cap.
func (c Config) Walltime(q Queue) int {
	if c.Dev && q.Queue == BackfillQueue {
		return min(BackfillMaxHours, q.Walltime)
	}
	return q.Walltime
}

func (c Config) Tree() layout.Tree {
	return layout.NewTree(c.DataRoot, c.Mission)
}

// ScriptPath is the PBS script submitted for a job kind.
func (c Config) ScriptPath(kind JobKind) string {
	return filepath.Join(c.PBS.ScriptDir, string(kind)+".pbs")
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}
