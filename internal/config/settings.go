package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

const (
	defaultSettingsPath = "configs/settings.yaml"
	DefaultRepairCap    = 1
	MaxRepairCap        = 2
)

const (
	AuditDepthQuick    = "quick"
	AuditDepthStandard = "standard"
	AuditDepthDeep     = "deep"
)

// Settings is read once at the start of every run.
type Settings struct {
	RepairCap int           `yaml:"repair_cap" json:"repair_cap" validate:"min=0,max=2"`
	Audit     AuditSettings `yaml:"audit" json:"audit"`
}

type AuditSettings struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Depth   string `yaml:"depth" json:"depth" validate:"omitempty,oneof=quick standard deep"`
	Model   string `yaml:"model" json:"model"`
}

// settingsFile keeps repair_cap optional so that an explicit 0 survives
// decoding.
type settingsFile struct {
	RepairCap *int          `yaml:"repair_cap"`
	Audit     AuditSettings `yaml:"audit"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

func DefaultSettings() Settings {
	return Settings{
		RepairCap: DefaultRepairCap,
		Audit:     AuditSettings{Depth: AuditDepthStandard},
	}
}

func (s Settings) Validate() error {
	if err := validate.Struct(s); err != nil {
		return fmt.Errorf("invalid settings: %w", err)
	}
	return nil
}

// AuditorCount maps the audit depth to how many configured auditors run.
// Zero means all of them.
func (a AuditSettings) AuditorCount() int {
	switch a.Depth {
	case AuditDepthQuick:
		return 1
	case AuditDepthStandard:
		return 2
	default:
		return 0
	}
}

func ParseSettings(data []byte) (Settings, error) {
	var raw settingsFile
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return Settings{}, fmt.Errorf("failed to parse YAML: %w", err)
	}

	s := DefaultSettings()
	if raw.RepairCap != nil {
		s.RepairCap = *raw.RepairCap
	}
	s.Audit = raw.Audit
	if s.Audit.Depth == "" {
		s.Audit.Depth = AuditDepthStandard
	}

	if err := s.Validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}

// FileSettings re-reads the settings file on every Load so edits apply to
// the next run. A missing file yields the defaults.
type FileSettings struct {
	Path string
}

func NewFileSettings() *FileSettings {
	path := os.Getenv("SETTINGS_CONFIG_PATH")
	if path == "" {
		path = defaultSettingsPath
	}
	return &FileSettings{Path: path}
}

func (f *FileSettings) Load() (Settings, error) {
	data, err := os.ReadFile(f.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return DefaultSettings(), nil
	}
	if err != nil {
		return Settings{}, fmt.Errorf("failed to read config file %s: %w", f.Path, err)
	}
	return ParseSettings(data)
}

// StaticSettings always returns the same value.
type StaticSettings Settings

func (s StaticSettings) Load() (Settings, error) {
	v := Settings(s)
	if err := v.Validate(); err != nil {
		return Settings{}, err
	}
	return v, nil
}
