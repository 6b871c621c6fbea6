package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration that unmarshals from YAML strings like "2s".
type Duration time.Duration

func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) String() string { return time.Duration(d).String() }

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err == nil {
		out, perr := time.ParseDuration(s)
		if perr != nil {
			return fmt.Errorf("invalid duration %q: %w", s, perr)
		}
		*d = Duration(out)
		return nil
	}
	var n int64
	if err := value.Decode(&n); err != nil {
		return fmt.Errorf("invalid duration node: %w", err)
	}
	*d = Duration(time.Duration(n) * time.Second)
	return nil
}

// Config carries every knob for one pipeline run. It replaces the ambient
// globals of earlier script generations: nothing in the pipeline reads the
// environment or hardcoded paths directly.
type Config struct {
	// Inputs holds the batch extract and reference source locations.
	Inputs InputsConfig `yaml:"inputs"`

	// Rules tunes the reconciliation behavior that used to drift between
	// script variants.
	Rules RulesConfig `yaml:"rules"`

	// Workers is the vendor fan-out pool size. Zero means GOMAXPROCS.
	Workers int `yaml:"workers"`

	Enrichment EnrichmentConfig `yaml:"enrichment"`
	Report     ReportConfig     `yaml:"report"`
	Notify     NotifyConfig     `yaml:"notify"`
}

type InputsConfig struct {
	// BatchDir is scanned for the first .txt TSV extract.
	BatchDir string `yaml:"batch_dir"`
	// BatchFile, when set, bypasses directory discovery.
	BatchFile string `yaml:"batch_file"`

	// OldReferenceDir and NewReferenceDir each hold one CSV per label type
	// (the file stem is the label type).
	OldReferenceDir string `yaml:"old_reference_dir"`
	NewReferenceDir string `yaml:"new_reference_dir"`

	// RegistryFile maps SKU prefixes to label types.
	RegistryFile string `yaml:"registry_file"`
}

type RulesConfig struct {
	// RemovedRowPattern excludes return/inventory-adjustment rows by SKU.
	RemovedRowPattern string `yaml:"removed_row_pattern"`

	// EnableBulkBuyCheck flags surviving orders at or above
	// BulkBuyThreshold units.
	EnableBulkBuyCheck bool `yaml:"enable_bulk_buy_check"`
	BulkBuyThreshold   int  `yaml:"bulk_buy_threshold"`
}

type EnrichmentConfig struct {
	Enabled bool `yaml:"enabled"`

	// Backend selects the attribute source: "http" or "gemini".
	Backend string `yaml:"backend"`

	BaseURL string `yaml:"base_url"`
	APIKey  string `yaml:"api_key"`

	GeminiModel string `yaml:"gemini_model"`

	BatchSize      int      `yaml:"batch_size"`
	MaxRetries     int      `yaml:"max_retries"`
	RetryDelay     Duration `yaml:"retry_delay"`
	Concurrency    int      `yaml:"concurrency"`
	RequestTimeout Duration `yaml:"request_timeout"`
	RateLimitRPS   float64  `yaml:"rate_limit_rps"`
}

type ReportConfig struct {
	OutputDir string `yaml:"output_dir"`

	// DropColumns are removed from the Label/Non-Label partition reports.
	// Empty means the built-in default list.
	DropColumns []string `yaml:"drop_columns"`

	// EnableTimezoneAnnotation renders the generated-at stamp in Timezone
	// instead of UTC.
	EnableTimezoneAnnotation bool   `yaml:"enable_timezone_annotation"`
	Timezone                 string `yaml:"timezone"`
}

type NotifyConfig struct {
	WebhookURL string   `yaml:"webhook_url"`
	Timeout    Duration `yaml:"timeout"`
}

// Default returns the configuration used when no file or environment
// overrides are present.
func Default() Config {
	return Config{
		Inputs: InputsConfig{
			BatchDir:        "Upload",
			OldReferenceDir: "OLD_DATA",
			NewReferenceDir: "Upload/master",
			RegistryFile:    "Upload/vendors.csv",
		},
		Rules: RulesConfig{
			RemovedRowPattern: "RET|INV",
			BulkBuyThreshold:  10,
		},
		Enrichment: EnrichmentConfig{
			Backend:        "http",
			BatchSize:      20,
			MaxRetries:     3,
			RetryDelay:     Duration(2 * time.Second),
			Concurrency:    4,
			RequestTimeout: Duration(30 * time.Second),
		},
		Report: ReportConfig{
			OutputDir: "Output",
			Timezone:  "UTC",
		},
		Notify: NotifyConfig{
			Timeout: Duration(10 * time.Second),
		},
	}
}

// Load reads the YAML config at path (optional) and applies environment
// overrides on top of the defaults.
func Load(path string) (Config, error) {
	cfg := Default()

	if strings.TrimSpace(path) != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	envStr("UNSHIPPED_BATCH_DIR", &c.Inputs.BatchDir)
	envStr("UNSHIPPED_BATCH_FILE", &c.Inputs.BatchFile)
	envStr("UNSHIPPED_OLD_REFERENCE_DIR", &c.Inputs.OldReferenceDir)
	envStr("UNSHIPPED_NEW_REFERENCE_DIR", &c.Inputs.NewReferenceDir)
	envStr("UNSHIPPED_REGISTRY_FILE", &c.Inputs.RegistryFile)
	envStr("UNSHIPPED_OUTPUT_DIR", &c.Report.OutputDir)
	envStr("UNSHIPPED_WEBHOOK_URL", &c.Notify.WebhookURL)
	envStr("ENRICHMENT_BASE_URL", &c.Enrichment.BaseURL)
	envStr("ENRICHMENT_API_KEY", &c.Enrichment.APIKey)
	envStr("GEMINI_API_KEY", &c.Enrichment.APIKey)
	envStr("GEMINI_MODEL", &c.Enrichment.GeminiModel)

	if err := envInt("UNSHIPPED_WORKERS", &c.Workers); err != nil {
		return err
	}
	if err := envInt("ENRICHMENT_BATCH_SIZE", &c.Enrichment.BatchSize); err != nil {
		return err
	}
	if err := envInt("ENRICHMENT_MAX_RETRIES", &c.Enrichment.MaxRetries); err != nil {
		return err
	}
	if err := envInt("ENRICHMENT_CONCURRENCY", &c.Enrichment.Concurrency); err != nil {
		return err
	}
	if err := envDuration("ENRICHMENT_RETRY_DELAY", &c.Enrichment.RetryDelay); err != nil {
		return err
	}
	if err := envDuration("ENRICHMENT_REQUEST_TIMEOUT", &c.Enrichment.RequestTimeout); err != nil {
		return err
	}
	if err := envBool("ENRICHMENT_ENABLED", &c.Enrichment.Enabled); err != nil {
		return err
	}
	return nil
}

// Validate rejects configurations that would make a run undefined before any
// input is touched.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Inputs.BatchDir) == "" && strings.TrimSpace(c.Inputs.BatchFile) == "" {
		return fmt.Errorf("inputs: batch_dir or batch_file is required")
	}
	if strings.TrimSpace(c.Inputs.RegistryFile) == "" {
		return fmt.Errorf("inputs: registry_file is required")
	}
	if strings.TrimSpace(c.Report.OutputDir) == "" {
		return fmt.Errorf("report: output_dir is required")
	}
	if c.Workers < 0 {
		return fmt.Errorf("workers must be >= 0, got %d", c.Workers)
	}
	if c.Enrichment.Enabled {
		switch strings.TrimSpace(c.Enrichment.Backend) {
		case "http":
			if strings.TrimSpace(c.Enrichment.BaseURL) == "" {
				return fmt.Errorf("enrichment: base_url is required for the http backend")
			}
		case "gemini":
			if strings.TrimSpace(c.Enrichment.APIKey) == "" {
				return fmt.Errorf("enrichment: api_key is required for the gemini backend")
			}
			if strings.TrimSpace(c.Enrichment.GeminiModel) == "" {
				return fmt.Errorf("enrichment: gemini_model is required for the gemini backend")
			}
		default:
			return fmt.Errorf("enrichment: unknown backend %q", c.Enrichment.Backend)
		}
		if c.Enrichment.BatchSize <= 0 {
			return fmt.Errorf("enrichment: batch_size must be > 0, got %d", c.Enrichment.BatchSize)
		}
		if c.Enrichment.MaxRetries < 0 {
			return fmt.Errorf("enrichment: max_retries must be >= 0, got %d", c.Enrichment.MaxRetries)
		}
		if c.Enrichment.Concurrency <= 0 {
			return fmt.Errorf("enrichment: concurrency must be > 0, got %d", c.Enrichment.Concurrency)
		}
	}
	if c.Report.EnableTimezoneAnnotation {
		if _, err := time.LoadLocation(c.Report.Timezone); err != nil {
			return fmt.Errorf("report: invalid timezone %q: %w", c.Report.Timezone, err)
		}
	}
	if c.Rules.EnableBulkBuyCheck && c.Rules.BulkBuyThreshold <= 0 {
		return fmt.Errorf("rules: bulk_buy_threshold must be > 0, got %d", c.Rules.BulkBuyThreshold)
	}
	return nil
}

func envStr(name string, dst *string) {
	if v := strings.TrimSpace(os.Getenv(name)); v != "" {
		*dst = v
	}
}

func envInt(name string, dst *int) error {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return nil
	}
	out, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("invalid %s=%q: %w", name, v, err)
	}
	*dst = out
	return nil
}

func envBool(name string, dst *bool) error {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return nil
	}
	out, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("invalid %s=%q: %w", name, v, err)
	}
	*dst = out
	return nil
}

func envDuration(name string, dst *Duration) error {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return nil
	}
	out, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("invalid %s=%q: %w", name, v, err)
	}
	*dst = Duration(out)
	return nil
}
