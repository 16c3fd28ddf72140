package cmd

import (
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/shortlister/internal/logger"
	"github.com/spigell/shortlister/internal/profile"
	"github.com/spigell/shortlister/internal/shortlist"
)

const (
	app = "shortlister"

	backendAirtable = "airtable"
	backendSQLite   = "sqlite"
)

type Config struct {
	Backend    string             `mapstructure:"backend" validate:"oneof=airtable sqlite"`
	SQLitePath string             `mapstructure:"sqlite-path" validate:"required_if=Backend sqlite"`
	Airtable   AirtableConfig     `mapstructure:"airtable"`
	Tables     profile.Tables     `mapstructure:"tables"`
	Fields     profile.Fields     `mapstructure:"fields"`
	Shortlist  shortlist.Criteria `mapstructure:"shortlist"`
	LLM        LLMConfig          `mapstructure:"llm"`
}

type AirtableConfig struct {
	APIKey     string `mapstructure:"api-key"`
	APIKeyFile string `mapstructure:"api-key-file"`
	BaseID     string `mapstructure:"base-id"`
}

type LLMConfig struct {
	// Provider is one of openai, anthropic, google or gemini. Empty or none disables
	// the assessment.
	Provider        string         `mapstructure:"provider" validate:"omitempty,oneof=openai anthropic google gemini none"`
	MaxOutputTokens int            `mapstructure:"max-output-tokens" validate:"gt=0"`
	RetryMax        int            `mapstructure:"retry-max" validate:"gte=1"`
	RetryBase       float64        `mapstructure:"retry-base" validate:"gte=0"`
	OpenAI          ProviderConfig `mapstructure:"openai"`
	Anthropic       ProviderConfig `mapstructure:"anthropic"`
	Gemini          ProviderConfig `mapstructure:"gemini"`
}

type ProviderConfig struct {
	APIKey     string `mapstructure:"api-key"`
	APIKeyFile string `mapstructure:"api-key-file"`
	Model      string `mapstructure:"model"`
	BaseURL    string `mapstructure:"base-url"`
}

func (c *Config) Schema() profile.Schema {
	return profile.Schema{Tables: c.Tables, Fields: c.Fields}
}

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   app,
		Short: "shortlister compresses applicant records, shortlists them and asks an LLM for an assessment",
	}
)

// env maps configuration keys to the environment variables they historically used.
var env = map[string]string{
	"backend":                    "SHORTLISTER_BACKEND",
	"sqlite-path":                "SHORTLISTER_SQLITE_PATH",
	"airtable.api-key":           "AIRTABLE_API_KEY",
	"airtable.api-key-file":      "AIRTABLE_API_KEY_FILE",
	"airtable.base-id":           "AIRTABLE_BASE_ID",
	"tables.applicants":          "AIRTABLE_TABLE_APPLICANTS",
	"tables.personal":            "AIRTABLE_TABLE_PERSONAL",
	"tables.experience":          "AIRTABLE_TABLE_EXPERIENCE",
	"tables.salary":              "AIRTABLE_TABLE_SALARY",
	"tables.shortlist":           "AIRTABLE_TABLE_SHORTLIST",
	"fields.applicant-id":        "FIELD_APPLICANT_ID",
	"fields.compressed-json":     "FIELD_COMPRESSED_JSON",
	"fields.llm-summary":         "FIELD_LLM_SUMMARY",
	"fields.llm-score":           "FIELD_LLM_SCORE",
	"fields.llm-followups":       "FIELD_LLM_FOLLOWUPS",
	"fields.lead-applicant":      "FIELD_SL_APPLICANT",
	"fields.lead-json":           "FIELD_SL_JSON",
	"fields.lead-reason":         "FIELD_SL_REASON",
	"shortlist.tier1-companies":  "TIER1_COMPANIES",
	"shortlist.countries":        "SHORTLIST_COUNTRIES",
	"shortlist.max-rate":         "MAX_RATE_USD",
	"shortlist.min-availability": "MIN_AVAIL_HOURS",
	"shortlist.min-years":        "SHORTLIST_MIN_YEARS",
	"llm.provider":               "LLM_PROVIDER",
	"llm.max-output-tokens":      "LLM_MAX_OUTPUT_TOKENS",
	"llm.retry-max":              "LLM_RETRY_MAX",
	"llm.retry-base":             "LLM_RETRY_BASE_SECONDS",
	"llm.openai.api-key":         "OPENAI_API_KEY",
	"llm.openai.api-key-file":    "OPENAI_API_KEY_FILE",
	"llm.openai.model":           "OPENAI_MODEL",
	"llm.openai.base-url":        "OPENAI_BASE_URL",
	"llm.anthropic.api-key":      "ANTHROPIC_API_KEY",
	"llm.anthropic.api-key-file": "ANTHROPIC_API_KEY_FILE",
	"llm.anthropic.model":        "ANTHROPIC_MODEL",
	"llm.anthropic.base-url":     "ANTHROPIC_BASE_URL",
	"llm.gemini.api-key":         "GEMINI_API_KEY",
	"llm.gemini.api-key-file":    "GEMINI_API_KEY_FILE",
	"llm.gemini.model":           "GEMINI_MODEL",
}

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// A missing .env file is fine; real environment variables still apply.
	_ = godotenv.Load()

	if err := configure(viper.GetViper()); err != nil {
		log.Fatal(err)
	}

	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is shortlister.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")
	rootCmd.PersistentFlags().String("backend", backendAirtable, "record store: airtable or sqlite")
	rootCmd.PersistentFlags().String("sqlite-path", app+".db", "database file used by the sqlite backend")

	for _, name := range []string{"debug", "json", "backend", "sqlite-path"} {
		if err := viper.BindPFlag(name, rootCmd.PersistentFlags().Lookup(name)); err != nil {
			log.Fatalf("binding %s flag: %v", name, err)
		}
	}
}

// configure binds the environment variables and sets the defaults.
func configure(v *viper.Viper) error {
	for key, name := range env {
		if err := v.BindEnv(key, name); err != nil {
			return fmt.Errorf("binding %s environment variable: %w", name, err)
		}
	}
	setDefaults(v)
	return nil
}

func setDefaults(v *viper.Viper) {
	schema := profile.DefaultSchema()
	criteria := shortlist.DefaultCriteria()

	defaults := map[string]any{
		"backend":                    backendAirtable,
		"tables.applicants":          schema.Tables.Applicants,
		"tables.personal":            schema.Tables.Personal,
		"tables.experience":          schema.Tables.Experience,
		"tables.salary":              schema.Tables.Salary,
		"tables.shortlist":           schema.Tables.Shortlist,
		"fields.applicant-id":        schema.Fields.ApplicantID,
		"fields.compressed-json":     schema.Fields.CompressedJSON,
		"fields.llm-summary":         schema.Fields.LLMSummary,
		"fields.llm-score":           schema.Fields.LLMScore,
		"fields.llm-followups":       schema.Fields.LLMFollowUps,
		"fields.lead-applicant":      schema.Fields.LeadApplicant,
		"fields.lead-json":           schema.Fields.LeadJSON,
		"fields.lead-reason":         schema.Fields.LeadReason,
		"shortlist.max-rate":         criteria.MaxRate,
		"shortlist.min-availability": criteria.MinAvailability,
		"shortlist.min-years":        criteria.MinYears,
		"llm.provider":               "openai",
		"llm.max-output-tokens":      350,
		"llm.retry-max":              3,
		"llm.retry-base":             1.2,
	}
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(app)
		viper.SetConfigType("yaml")
	}

	// The file is optional unless it was given explicitly.
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			log.Fatal(err)
		}
	}
}

func getConfig() (*Config, error) {
	return decodeConfig(viper.GetViper())
}

func decodeConfig(v *viper.Viper) (*Config, error) {
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}

	config.Backend = strings.ToLower(strings.TrimSpace(config.Backend))
	config.LLM.Provider = strings.ToLower(strings.TrimSpace(config.LLM.Provider))

	if err := validator.New().Struct(&config); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &config, nil
}

func newLogger() *zap.Logger {
	l, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}
	return l
}
