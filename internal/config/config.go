package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"

	"cargo-kelvin/internal/errdefs"
)

const DefaultKelvinURL = "https://kelvin.cs.vsb.cz"

type Config struct {
	Env      string `yaml:"env" toml:"env" json:"env" env:"KELVIN_ENV" env-default:"local"`
	LogLevel string `yaml:"log_level" toml:"log_level" json:"log_level" env:"KELVIN_LOG_LEVEL" env-default:"info"`
	Submit   Submit `yaml:"submit" toml:"submit" json:"submit"`
	Scan     Scan   `yaml:"scan" toml:"scan" json:"scan"`
}

type Submit struct {
	URL     string        `yaml:"url" toml:"url" json:"url" env:"KELVIN_URL" env-default:"https://kelvin.cs.vsb.cz"`
	Token   string        `yaml:"token" toml:"token" json:"token" env:"KELVIN_API_TOKEN"`
	Timeout time.Duration `yaml:"timeout" toml:"timeout" json:"timeout" env:"KELVIN_TIMEOUT" env-default:"60s"`
}

type Scan struct {
	Manifest    string   `yaml:"manifest" toml:"manifest" json:"manifest" env:"KELVIN_MANIFEST" env-default:"Cargo.toml"`
	Extensions  []string `yaml:"extensions" toml:"extensions" json:"extensions" env:"KELVIN_EXTENSIONS" env-default:".rs,.toml,.lock,.md,.txt"`
	ExcludeDirs []string `yaml:"exclude_dirs" toml:"exclude_dirs" json:"exclude_dirs" env:"KELVIN_EXCLUDE_DIRS" env-default:"target"`
	MaxFileSize int64    `yaml:"max_file_size" toml:"max_file_size" json:"max_file_size" env:"KELVIN_MAX_FILE_SIZE" env-default:"1048576"`
	TempDir     string   `yaml:"temp_dir" toml:"temp_dir" json:"temp_dir" env:"KELVIN_TEMP_DIR"`
}

// Load reads the configuration file at path, falling back to the
// environment only when path is empty.
func Load(path string) (*Config, error) {
	var cfg Config
	if path == "" {
		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return nil, fmt.Errorf("read env: %w", err)
		}
		return &cfg, nil
	}
	if err := cleanenv.ReadConfig(path, &cfg); err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	return &cfg, nil
}

// Overrides hold values given explicitly on the command line. Empty fields
// leave the loaded value untouched.
type Overrides struct {
	AssignmentID string
	Token        string
	URL          string
	Dir          string
	LogLevel     string
}

// Run is the fully resolved configuration of one invocation.
type Run struct {
	AssignmentID string
	Dir          string
	Config
}

// Resolve merges flag overrides over cfg and validates what a submission
// needs before any I/O is attempted.
func Resolve(cfg Config, o Overrides, workDir string) (*Run, error) {
	run := &Run{Config: cfg}

	if o.Token != "" {
		run.Submit.Token = o.Token
	}
	if o.URL != "" {
		run.Submit.URL = o.URL
	}
	if o.LogLevel != "" {
		run.LogLevel = o.LogLevel
	}
	run.Submit.URL = strings.TrimRight(strings.TrimSpace(run.Submit.URL), "/")
	if run.Submit.URL == "" {
		run.Submit.URL = DefaultKelvinURL
	}

	id := strings.TrimSpace(o.AssignmentID)
	if id == "" {
		return nil, errdefs.Config("resolve", "missing assignment id")
	}
	if _, err := strconv.ParseUint(id, 10, 64); err != nil {
		return nil, errdefs.Config("resolve", "assignment id %q is not a number", id)
	}
	run.AssignmentID = id

	if strings.TrimSpace(run.Submit.Token) == "" {
		return nil, errdefs.Config("resolve", "missing API token: pass --token or set KELVIN_API_TOKEN")
	}

	run.Dir = o.Dir
	if run.Dir == "" {
		run.Dir = workDir
	}
	if run.Dir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, errdefs.Config("resolve", "working directory: %v", err)
		}
		run.Dir = wd
	}

	if run.Submit.Timeout <= 0 {
		run.Submit.Timeout = 60 * time.Second
	}
	if run.Scan.Manifest == "" {
		run.Scan.Manifest = "Cargo.toml"
	}
	return run, nil
}
