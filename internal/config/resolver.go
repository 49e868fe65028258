// Package config resolves settings from built-in defaults, the YAML config
// file, a .env file, the environment and CLI flags, in increasing order of
// precedence. Every resolved value remembers where it came from so
// `syllabus config` can explain itself.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cast"
	"gopkg.in/yaml.v3"

	"github.com/hurttlocker/syllabus/internal/dates"
	"github.com/hurttlocker/syllabus/internal/llm"
)

type ValueSource string

const (
	SourceUnknown ValueSource = "unknown"
	SourceDefault ValueSource = "default"
	SourceConfig  ValueSource = "config"
	SourceDotenv  ValueSource = "dotenv"
	SourceEnv     ValueSource = "env"
	SourceCLI     ValueSource = "cli"
)

const (
	DefaultExtractors = "google/gemini-2.5-flash"
	DefaultCalendarID = "primary"
	DefaultAddr       = ":8080"
)

type ResolvedValue struct {
	Value  string      `json:"value"`
	Source ValueSource `json:"source"`
	From   string      `json:"from,omitempty"`
}

// Set reports whether the value came from anywhere but the defaults.
func (v ResolvedValue) Set() bool {
	return v.Source != SourceDefault && v.Source != SourceUnknown && v.Source != ""
}

type ResolveOptions struct {
	ConfigPath string
	// EnvFile is the dotenv file to read. Empty means ".env" in the working
	// directory; a missing file is not an error.
	EnvFile string

	CLIExtractors string
	CLIDBPath     string
	CLIAddr       string
	CLICalendarID string
}

type ResolvedConfig struct {
	ConfigPath string `json:"config_path"`

	DBPath     ResolvedValue `json:"db_path"`
	Extractors ResolvedValue `json:"extractors"`

	AcademicYear ResolvedValue `json:"academic_year"`
	TermStart    ResolvedValue `json:"term_start"`
	FallbackDays ResolvedValue `json:"fallback_days"`

	CalendarID          ResolvedValue `json:"calendar_id"`
	CalendarCredentials ResolvedValue `json:"calendar_credentials_file"`

	Addr ResolvedValue `json:"server_addr"`

	LLMKeys map[string]ResolvedValue `json:"llm_keys,omitempty"`
}

type fileConfig struct {
	DBPath string `yaml:"db_path"`
	LLM    struct {
		Extractors []string `yaml:"extractors"`
		APIKey     string   `yaml:"api_key"`
	} `yaml:"llm"`
	Academic struct {
		Year         int    `yaml:"year"`
		TermStart    string `yaml:"term_start"`
		FallbackDays int    `yaml:"fallback_days"`
	} `yaml:"academic"`
	Calendar struct {
		ID              string `yaml:"id"`
		CredentialsFile string `yaml:"credentials_file"`
	} `yaml:"calendar"`
	Server struct {
		Addr string `yaml:"addr"`
	} `yaml:"server"`
}

func DefaultConfigPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".syllabus", "config.yaml")
}

func DefaultDBPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".syllabus", "syllabus.db")
}

// apiKeyEnv maps provider key variables to the provider they unlock.
var apiKeyEnv = []struct{ env, provider string }{
	{"GOOGLE_API_KEY", "google"},
	{"GEMINI_API_KEY", "google"},
	{"OPENROUTER_API_KEY", "openrouter"},
	{"OLLAMA_API_KEY", "ollama"},
}

func ResolveConfig(opts ResolveOptions) (ResolvedConfig, error) {
	path := strings.TrimSpace(opts.ConfigPath)
	if path == "" {
		path = DefaultConfigPath()
	}

	out := ResolvedConfig{
		ConfigPath:   path,
		DBPath:       defaultValue(DefaultDBPath()),
		Extractors:   defaultValue(DefaultExtractors),
		AcademicYear: defaultValue(fmt.Sprint(dates.DefaultAcademicYear)),
		FallbackDays: defaultValue(fmt.Sprint(dates.DefaultFallbackDays)),
		CalendarID:   defaultValue(DefaultCalendarID),
		Addr:         defaultValue(DefaultAddr),
		LLMKeys:      map[string]ResolvedValue{},
	}

	cfg, err := loadConfig(path)
	if err != nil {
		return out, err
	}
	if cfg != nil {
		apply(&out.DBPath, cfg.DBPath, SourceConfig, path)
		apply(&out.Extractors, strings.Join(cfg.LLM.Extractors, ","), SourceConfig, path)
		if cfg.Academic.Year > 0 {
			apply(&out.AcademicYear, fmt.Sprint(cfg.Academic.Year), SourceConfig, path)
		}
		apply(&out.TermStart, cfg.Academic.TermStart, SourceConfig, path)
		if cfg.Academic.FallbackDays > 0 {
			apply(&out.FallbackDays, fmt.Sprint(cfg.Academic.FallbackDays), SourceConfig, path)
		}
		apply(&out.CalendarID, cfg.Calendar.ID, SourceConfig, path)
		apply(&out.CalendarCredentials, cfg.Calendar.CredentialsFile, SourceConfig, path)
		apply(&out.Addr, cfg.Server.Addr, SourceConfig, path)

		if key := strings.TrimSpace(cfg.LLM.APIKey); key != "" {
			out.LLMKeys["default"] = ResolvedValue{Value: key, Source: SourceConfig, From: path}
		}
	}

	env, err := loadEnv(opts.EnvFile)
	if err != nil {
		return out, err
	}

	env.apply(&out.DBPath, "SYLLABUS_DB")
	env.apply(&out.Extractors, "SYLLABUS_EXTRACTORS")
	env.apply(&out.AcademicYear, "SYLLABUS_ACADEMIC_YEAR")
	env.apply(&out.TermStart, "SYLLABUS_TERM_START")
	env.apply(&out.FallbackDays, "SYLLABUS_FALLBACK_DAYS")
	env.apply(&out.CalendarID, "SYLLABUS_CALENDAR_ID")
	env.apply(&out.CalendarCredentials, "GOOGLE_APPLICATION_CREDENTIALS")
	env.apply(&out.CalendarCredentials, "SYLLABUS_CALENDAR_CREDENTIALS")
	env.apply(&out.Addr, "SYLLABUS_ADDR")
	for _, k := range apiKeyEnv {
		v := out.LLMKeys[k.provider]
		if env.apply(&v, k.env) {
			out.LLMKeys[k.provider] = v
		}
	}

	apply(&out.Extractors, opts.CLIExtractors, SourceCLI, "--extractors")
	apply(&out.DBPath, opts.CLIDBPath, SourceCLI, "--db")
	apply(&out.Addr, opts.CLIAddr, SourceCLI, "--addr")
	apply(&out.CalendarID, opts.CLICalendarID, SourceCLI, "--calendar")

	out.DBPath.Value = expandUserPath(out.DBPath.Value)
	out.CalendarCredentials.Value = expandUserPath(out.CalendarCredentials.Value)

	return out, nil
}

// Anchor builds the academic-calendar anchor for date resolution.
func (r ResolvedConfig) Anchor() (dates.Anchor, error) {
	var a dates.Anchor
	if r.AcademicYear.Value != "" {
		year, err := cast.ToIntE(r.AcademicYear.Value)
		if err != nil || year < 1900 || year > 2200 {
			return a, fmt.Errorf("invalid academic year %q (from %s)", r.AcademicYear.Value, r.AcademicYear.describe())
		}
		a.AcademicYear = year
	}
	if r.TermStart.Value != "" {
		ts, err := time.ParseInLocation("2006-01-02", r.TermStart.Value, time.Local)
		if err != nil {
			return a, fmt.Errorf("invalid term start %q (from %s): want YYYY-MM-DD", r.TermStart.Value, r.TermStart.describe())
		}
		a.TermStart = ts
	}
	if r.FallbackDays.Value != "" {
		days, err := cast.ToIntE(r.FallbackDays.Value)
		if err != nil || days < 0 {
			return a, fmt.Errorf("invalid fallback days %q (from %s)", r.FallbackDays.Value, r.FallbackDays.describe())
		}
		a.FallbackDays = days
	}
	return a, nil
}

// ExtractorSpecs parses the extractor priority list and attaches the API key
// resolved for each provider.
func (r ResolvedConfig) ExtractorSpecs() ([]llm.Config, error) {
	specs, err := llm.ParseSpecs(r.Extractors.Value)
	if err != nil {
		return nil, fmt.Errorf("extractors (from %s): %w", r.Extractors.describe(), err)
	}
	for i := range specs {
		specs[i].APIKey = r.APIKeyForProvider(specs[i].Provider).Value
	}
	return specs, nil
}

func (r ResolvedConfig) APIKeyForProvider(providerOrModel string) ResolvedValue {
	provider := providerOf(providerOrModel)
	if provider == "" {
		return ResolvedValue{}
	}
	if v, ok := r.LLMKeys[provider]; ok && strings.TrimSpace(v.Value) != "" {
		return v
	}
	if provider == "ollama" {
		return ResolvedValue{}
	}
	if v, ok := r.LLMKeys["default"]; ok && strings.TrimSpace(v.Value) != "" {
		return v
	}
	return ResolvedValue{}
}

func (v ResolvedValue) describe() string {
	if v.From == "" {
		return string(v.Source)
	}
	return string(v.Source) + " " + v.From
}

func providerOf(providerOrModel string) string {
	v := strings.ToLower(strings.TrimSpace(providerOrModel))
	if v == "" {
		return ""
	}
	if idx := strings.Index(v, "/"); idx > 0 {
		v = v[:idx]
	}
	if v == "gemini" {
		return "google"
	}
	return v
}

func defaultValue(v string) ResolvedValue {
	return ResolvedValue{Value: v, Source: SourceDefault, From: "built-in default"}
}

func apply(dst *ResolvedValue, raw string, source ValueSource, from string) {
	v := strings.TrimSpace(raw)
	if v == "" {
		return
	}
	*dst = ResolvedValue{Value: v, Source: source, From: from}
}

// envLayer holds the dotenv file contents beneath the real environment.
// The file never overrides a variable that is actually set.
type envLayer struct {
	path   string
	dotenv map[string]string
}

func loadEnv(path string) (envLayer, error) {
	explicit := strings.TrimSpace(path) != ""
	if !explicit {
		path = ".env"
	}
	m, err := godotenv.Read(path)
	if err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return envLayer{path: path}, nil
		}
		return envLayer{}, fmt.Errorf("reading %s: %w", path, err)
	}
	return envLayer{path: path, dotenv: m}, nil
}

func (e envLayer) apply(dst *ResolvedValue, key string) bool {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = ResolvedValue{Value: v, Source: SourceEnv, From: key}
		return true
	}
	if v := strings.TrimSpace(e.dotenv[key]); v != "" {
		*dst = ResolvedValue{Value: v, Source: SourceDotenv, From: e.path + ":" + key}
		return true
	}
	return false
}

func loadConfig(path string) (*fileConfig, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	var cfg fileConfig
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return &cfg, nil
}

func expandUserPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}
