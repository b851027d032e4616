package cfg

import (
	"errors"
	"flag"
	"fmt"
)

// Config adds service-specific configuration fields to the
// common cfg.Registerable and cfg.Validatable interfaces
type Config struct {
	DrainSeconds          int
	ShutdownBudgetSeconds int
	APIPort               int
	APIToken              string
	DatabaseURL           string
	SlackWebhookURL       string
	RulesFile             string
	PediatricAgeMax       int
	ElderlyAgeMin         int
	BatchConcurrency      int
	ClaudeAPIKey          string
	ClaudeModel           string
}

// RegisterFlags binds Config fields to the given FlagSet with defaults inline
func (c *Config) RegisterFlags(fs *flag.FlagSet) {
	fs.IntVar(&c.DrainSeconds, "drain-seconds", 60, "seconds to wait for in-flight requests to drain before shutdown (1..300)")
	fs.IntVar(&c.ShutdownBudgetSeconds, "shutdown-budget-seconds", 90, "total seconds for component shutdown after drain (1..300)")
	fs.IntVar(&c.APIPort, "http-port", 8080, "API listen TCP port (1..65535)")
	fs.StringVar(&c.APIToken, "api-token", "", "bearer token required on API requests (empty = no auth)")
	fs.StringVar(&c.DatabaseURL, "database-url", "", "PostgreSQL connection URL (empty = in-memory store)")
	fs.StringVar(&c.SlackWebhookURL, "slack-webhook-url", "", "Slack webhook URL for escalation notices")
	fs.StringVar(&c.RulesFile, "rules-file", "", "YAML rule table overriding the built-in rules (empty = built-ins)")
	fs.IntVar(&c.PediatricAgeMax, "pediatric-age-max", 5, "ages below this get the pediatric urgency bump (0..150)")
	fs.IntVar(&c.ElderlyAgeMin, "elderly-age-min", 65, "ages above this get the elderly urgency bump (0..150)")
	fs.IntVar(&c.BatchConcurrency, "batch-concurrency", 8, "max encounters scored in parallel per batch request (1..64)")
	fs.StringVar(&c.ClaudeAPIKey, "claude-api-key", "", "API key for transcript entity extraction (empty = extraction disabled)")
	fs.StringVar(&c.ClaudeModel, "claude-model", "claude-sonnet-4-20250514", "Claude model for transcript entity extraction")
}

// Validate checks all configuration fields for correctness.
// It returns an error if any field is invalid, or nil if all fields are valid.
func (c *Config) Validate() error {
	var errs []error

	// Drain and shutdown budgets
	if c.DrainSeconds <= 0 || c.DrainSeconds > 300 {
		errs = append(errs, fmt.Errorf("invalid DRAIN_SECONDS %d (must be 1..300)", c.DrainSeconds))
	}
	if c.ShutdownBudgetSeconds <= 0 || c.ShutdownBudgetSeconds > 300 {
		errs = append(errs, fmt.Errorf("invalid SHUTDOWN_BUDGET_SECONDS %d (must be 1..300)", c.ShutdownBudgetSeconds))
	}

	// Shutdown budget must be greater than drain time
	if c.ShutdownBudgetSeconds <= c.DrainSeconds {
		errs = append(errs, fmt.Errorf("SHUTDOWN_BUDGET_SECONDS %d must be greater than DRAIN_SECONDS %d", c.ShutdownBudgetSeconds, c.DrainSeconds))
	}

	// API port must be valid TCP port number
	if c.APIPort <= 0 || c.APIPort > 65535 {
		errs = append(errs, fmt.Errorf("invalid HTTP_PORT %d (must be 1..65535)", c.APIPort))
	}

	if c.PediatricAgeMax < 0 || c.PediatricAgeMax > 150 {
		errs = append(errs, fmt.Errorf("invalid PEDIATRIC_AGE_MAX %d (must be 0..150)", c.PediatricAgeMax))
	}
	if c.ElderlyAgeMin < 0 || c.ElderlyAgeMin > 150 {
		errs = append(errs, fmt.Errorf("invalid ELDERLY_AGE_MIN %d (must be 0..150)", c.ElderlyAgeMin))
	}
	if c.PediatricAgeMax >= c.ElderlyAgeMin {
		errs = append(errs, fmt.Errorf("PEDIATRIC_AGE_MAX %d must be less than ELDERLY_AGE_MIN %d", c.PediatricAgeMax, c.ElderlyAgeMin))
	}

	if c.BatchConcurrency <= 0 || c.BatchConcurrency > 64 {
		errs = append(errs, fmt.Errorf("invalid BATCH_CONCURRENCY %d (must be 1..64)", c.BatchConcurrency))
	}

	// Extraction is optional, but a key without a model is a misconfiguration
	if c.ClaudeAPIKey != "" && c.ClaudeModel == "" {
		errs = append(errs, errors.New("CLAUDE_MODEL is required when CLAUDE_API_KEY is set"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}
