// Package config loads the typed application configuration once at startup.
// Values come from an optional YAML file (CONFIG_PATH) overlaid with
// environment variables; .env is honoured for local runs.
package config

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"sort"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"github.com/kiko9987/itglobal/internal/models"
	"github.com/kiko9987/itglobal/internal/validator"
)

// Config holds application configuration
type Config struct {
	Env            string `yaml:"env" env:"ENV" env-default:"development" validate:"required"`
	Port           string `yaml:"port" env:"PORT" env-default:"8080" validate:"required,numeric"`
	PipelineAPIKey string `yaml:"pipeline_api_key" env:"PIPELINE_API_KEY"`
	DashboardURL   string `yaml:"dashboard_url" env:"DASHBOARD_URL" validate:"omitempty,url"`
	AllowedOrigin  string `yaml:"allowed_origin" env:"ALLOWED_ORIGIN" validate:"omitempty,url"`

	Database Database `yaml:"database"`
	Store    Store    `yaml:"store"`
	Redis    Redis    `yaml:"redis"`
	Engine   Engine   `yaml:"engine"`
	Notify   Notify   `yaml:"notify"`
	SMTP     SMTP     `yaml:"smtp"`
	Slack    Slack    `yaml:"slack"`
}

// Database selects and addresses the relational store.
type Database struct {
	Driver     string `yaml:"driver" env:"DB_DRIVER" env-default:"postgres" validate:"oneof=postgres sqlite"`
	Host       string `yaml:"host" env:"DB_HOST" env-default:"localhost"`
	Port       string `yaml:"port" env:"DB_PORT" env-default:"5432"`
	User       string `yaml:"user" env:"DB_USER" env-default:"itglobal"`
	Password   string `yaml:"password" env:"DB_PASSWORD" env-default:"itglobal"`
	Name       string `yaml:"name" env:"DB_NAME" env-default:"itglobal"`
	SSLMode    string `yaml:"sslmode" env:"DB_SSLMODE" env-default:"disable"`
	SQLitePath string `yaml:"sqlite_path" env:"SQLITE_PATH" env-default:"itglobal.db"`
}

// Store selects where project records live.
type Store struct {
	Backend         string        `yaml:"backend" env:"STORE_BACKEND" env-default:"database" validate:"oneof=database sheets"`
	SpreadsheetID   string        `yaml:"spreadsheet_id" env:"SHEETS_SPREADSHEET_ID" validate:"required_if=Backend sheets"`
	CredentialsFile string        `yaml:"credentials_file" env:"SHEETS_CREDENTIALS_FILE" validate:"required_if=Backend sheets"`
	Range           string        `yaml:"range" env:"SHEETS_RANGE" env-default:"Sheet1"`
	Timeout         time.Duration `yaml:"timeout" env:"STORE_TIMEOUT" env-default:"10s" validate:"gt=0"`
}

// Redis is optional; when Addr is empty counters and dedup live in the database.
type Redis struct {
	Addr     string `yaml:"addr" env:"REDIS_ADDR"`
	Password string `yaml:"password" env:"REDIS_PASSWORD"`
	DB       int    `yaml:"db" env:"REDIS_DB" env-default:"0" validate:"gte=0"`
}

// Engine carries the business rules.
type Engine struct {
	Regions          []string      `yaml:"regions" env:"REGIONS" env-default:"A,B,C" validate:"min=1,dive,region_code"`
	CodeWidth        int           `yaml:"code_width" env:"CODE_WIDTH" env-default:"3" validate:"min=1,max=9"`
	RequiredFields   []string      `yaml:"required_fields" env:"REQUIRED_FIELDS" env-default:"region,owner,company,client,site_address,work_description" validate:"min=1"`
	VATRate          string        `yaml:"vat_rate" env:"VAT_RATE" env-default:"0.1" validate:"required"`
	MissingThreshold int           `yaml:"missing_threshold" env:"MISSING_FIELDS_THRESHOLD" env-default:"3" validate:"min=1"`
	SnapshotInterval time.Duration `yaml:"snapshot_interval" env:"SNAPSHOT_INTERVAL" env-default:"1m" validate:"gt=0"`
}

// Notify configures the notification scheduler.
type Notify struct {
	Times           []string      `yaml:"times" env:"NOTIFY_TIMES" env-default:"09:00,18:00" validate:"min=1,dive,hhmm"`
	SummaryTime     string        `yaml:"summary_time" env:"SUMMARY_TIME" env-default:"18:00" validate:"hhmm"`
	Timezone        string        `yaml:"timezone" env:"TIMEZONE" env-default:"Asia/Seoul" validate:"required"`
	OwnerRecipients RecipientMap  `yaml:"owner_recipients" env:"OWNER_RECIPIENTS" validate:"dive,recipient"`
	AdminRecipients []string      `yaml:"admin_recipients" env:"ADMIN_RECIPIENTS" validate:"dive,recipient"`
	SinkTimeout     time.Duration `yaml:"sink_timeout" env:"SINK_TIMEOUT" env-default:"15s" validate:"gt=0"`
	Parallelism     int           `yaml:"parallelism" env:"NOTIFY_PARALLELISM" env-default:"4" validate:"min=1"`
}

// SMTP configures the email sink. Host empty disables it.
type SMTP struct {
	Host     string `yaml:"host" env:"SMTP_HOST"`
	Port     int    `yaml:"port" env:"SMTP_PORT" env-default:"587"`
	Username string `yaml:"username" env:"SMTP_USERNAME"`
	Password string `yaml:"password" env:"SMTP_PASSWORD"`
	From     string `yaml:"from" env:"SMTP_FROM" validate:"required_with=Host"`
}

// Slack configures the Slack webhook sink. WebhookURL empty disables it.
type Slack struct {
	WebhookURL string `yaml:"webhook_url" env:"SLACK_WEBHOOK_URL" validate:"omitempty,url"`
	Username   string `yaml:"username" env:"SLACK_USERNAME" env-default:"project-bot"`
}

// RecipientMap maps an owner to a "channel:address" recipient. From the
// environment it is read as a JSON object.
type RecipientMap map[string]string

// SetValue implements cleanenv.Setter.
func (m *RecipientMap) SetValue(s string) error {
	if strings.TrimSpace(s) == "" {
		*m = RecipientMap{}
		return nil
	}
	parsed := map[string]string{}
	if err := json.Unmarshal([]byte(s), &parsed); err != nil {
		return fmt.Errorf("OWNER_RECIPIENTS must be a JSON object: %w", err)
	}
	*m = parsed
	return nil
}

// Owners returns the owners with a registered recipient, sorted.
func (m RecipientMap) Owners() []string {
	owners := make([]string, 0, len(m))
	for owner := range m {
		owners = append(owners, owner)
	}
	sort.Strings(owners)
	return owners
}

var appConfig *Config

// Load reads and validates the configuration.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found")
	}

	var cfg Config
	var err error
	if path := os.Getenv("CONFIG_PATH"); path != "" {
		err = cleanenv.ReadConfig(path, &cfg)
	} else {
		err = cleanenv.ReadEnv(&cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	appConfig = &cfg
	return appConfig, nil
}

// MustLoad loads the configuration or exits the process.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	return cfg
}

// Get returns the application configuration
func Get() *Config {
	if appConfig == nil {
		return MustLoad()
	}
	return appConfig
}

// Validate checks struct tags and the cross-field rules tags cannot express.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	rate, err := decimal.NewFromString(c.Engine.VATRate)
	if err != nil || rate.IsNegative() || rate.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return fmt.Errorf("invalid config: VAT_RATE %q must be a decimal in [0, 1)", c.Engine.VATRate)
	}

	seen := make(map[string]bool, len(c.Engine.Regions))
	for _, r := range c.Engine.Regions {
		if seen[r] {
			return fmt.Errorf("invalid config: region %q listed twice", r)
		}
		seen[r] = true
	}

	for _, f := range c.Engine.RequiredFields {
		if !models.IsKnownField(f) {
			return fmt.Errorf("invalid config: unknown required field %q", f)
		}
		if f == models.FieldCode {
			return fmt.Errorf("invalid config: %q is generated and cannot be required", f)
		}
	}

	if _, err := time.LoadLocation(c.Notify.Timezone); err != nil {
		return fmt.Errorf("invalid config: TIMEZONE: %w", err)
	}

	summarySlot := false
	for _, t := range c.Notify.Times {
		if t == c.Notify.SummaryTime {
			summarySlot = true
		}
	}
	if !summarySlot {
		return fmt.Errorf("invalid config: SUMMARY_TIME %s is not one of NOTIFY_TIMES", c.Notify.SummaryTime)
	}

	return nil
}

// VATRate returns the validated VAT rate.
func (c *Config) VATRate() decimal.Decimal {
	return decimal.RequireFromString(c.Engine.VATRate)
}

// Location returns the validated scheduler time zone.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Notify.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// IsProduction reports whether the service runs in production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}
