package cfg

import (
	"flag"
	"math"
	"strings"
	"testing"
)

// validBase returns a Config with all fields set to valid values.
func validBase() Config {
	return Config{
		DrainSeconds:          60,
		ShutdownBudgetSeconds: 90,
		APIPort:               8080,
		PediatricAgeMax:       5,
		ElderlyAgeMin:         65,
		BatchConcurrency:      8,
		ClaudeAPIKey:          "sk-test-key",
		ClaudeModel:           "claude-sonnet-4-20250514",
		APIToken:              "test-token-123",
	}
}

func TestRegisterFlags_Defaults(t *testing.T) {
	t.Parallel()

	var c Config
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	c.RegisterFlags(fs)

	if err := fs.Parse(nil); err != nil {
		t.Fatalf("parse empty args: %v", err)
	}

	if c.DrainSeconds != 60 {
		t.Errorf("DrainSeconds = %d, want 60", c.DrainSeconds)
	}
	if c.ShutdownBudgetSeconds != 90 {
		t.Errorf("ShutdownBudgetSeconds = %d, want 90", c.ShutdownBudgetSeconds)
	}
	if c.APIPort != 8080 {
		t.Errorf("APIPort = %d, want 8080", c.APIPort)
	}
	if c.PediatricAgeMax != 5 {
		t.Errorf("PediatricAgeMax = %d, want 5", c.PediatricAgeMax)
	}
	if c.ElderlyAgeMin != 65 {
		t.Errorf("ElderlyAgeMin = %d, want 65", c.ElderlyAgeMin)
	}
	if c.BatchConcurrency != 8 {
		t.Errorf("BatchConcurrency = %d, want 8", c.BatchConcurrency)
	}
	if c.ClaudeModel != "claude-sonnet-4-20250514" {
		t.Errorf("ClaudeModel = %q, want %q", c.ClaudeModel, "claude-sonnet-4-20250514")
	}
}

func TestRegisterFlags_Override(t *testing.T) {
	t.Parallel()

	var c Config
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	c.RegisterFlags(fs)

	args := []string{
		"-drain-seconds", "30",
		"-shutdown-budget-seconds", "120",
		"-http-port", "9090",
		"-rules-file", "/etc/acuity/rules.yaml",
		"-pediatric-age-max", "12",
		"-elderly-age-min", "70",
		"-batch-concurrency", "16",
		"-claude-api-key", "sk-override",
	}
	if err := fs.Parse(args); err != nil {
		t.Fatalf("parse args: %v", err)
	}

	if c.DrainSeconds != 30 {
		t.Errorf("DrainSeconds = %d, want 30", c.DrainSeconds)
	}
	if c.ShutdownBudgetSeconds != 120 {
		t.Errorf("ShutdownBudgetSeconds = %d, want 120", c.ShutdownBudgetSeconds)
	}
	if c.APIPort != 9090 {
		t.Errorf("APIPort = %d, want 9090", c.APIPort)
	}
	if c.RulesFile != "/etc/acuity/rules.yaml" {
		t.Errorf("RulesFile = %q, want %q", c.RulesFile, "/etc/acuity/rules.yaml")
	}
	if c.PediatricAgeMax != 12 {
		t.Errorf("PediatricAgeMax = %d, want 12", c.PediatricAgeMax)
	}
	if c.ElderlyAgeMin != 70 {
		t.Errorf("ElderlyAgeMin = %d, want 70", c.ElderlyAgeMin)
	}
	if c.BatchConcurrency != 16 {
		t.Errorf("BatchConcurrency = %d, want 16", c.BatchConcurrency)
	}
	if c.ClaudeAPIKey != "sk-override" {
		t.Errorf("ClaudeAPIKey = %q, want %q", c.ClaudeAPIKey, "sk-override")
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		mutate    func(*Config)
		wantErr   bool
		errSubstr []string // substrings that must appear in error message
	}{
		{
			name:    "defaults are valid",
			mutate:  func(*Config) {},
			wantErr: false,
		},
		{
			name: "minimum valid values",
			mutate: func(c *Config) {
				c.DrainSeconds = 1
				c.ShutdownBudgetSeconds = 2
				c.APIPort = 1
				c.BatchConcurrency = 1
			},
			wantErr: false,
		},
		{
			name: "maximum valid values",
			mutate: func(c *Config) {
				c.DrainSeconds = 299
				c.ShutdownBudgetSeconds = 300
				c.APIPort = 65535
				c.BatchConcurrency = 64
			},
			wantErr: false,
		},
		// DrainSeconds boundaries
		{
			name:      "drain zero",
			mutate:    func(c *Config) { c.DrainSeconds = 0 },
			wantErr:   true,
			errSubstr: []string{"DRAIN_SECONDS"},
		},
		{
			name:      "drain negative",
			mutate:    func(c *Config) { c.DrainSeconds = -1 },
			wantErr:   true,
			errSubstr: []string{"DRAIN_SECONDS"},
		},
		{
			name: "drain above max",
			mutate: func(c *Config) {
				c.DrainSeconds = 301
				c.ShutdownBudgetSeconds = 302
			},
			wantErr:   true,
			errSubstr: []string{"DRAIN_SECONDS"},
		},
		// ShutdownBudgetSeconds boundaries
		{
			name:      "budget zero",
			mutate:    func(c *Config) { c.ShutdownBudgetSeconds = 0 },
			wantErr:   true,
			errSubstr: []string{"SHUTDOWN_BUDGET_SECONDS"},
		},
		{
			name:      "budget above max",
			mutate:    func(c *Config) { c.ShutdownBudgetSeconds = 301 },
			wantErr:   true,
			errSubstr: []string{"SHUTDOWN_BUDGET_SECONDS"},
		},
		// Cross-field: budget vs drain
		{
			name: "budget equals drain",
			mutate: func(c *Config) {
				c.DrainSeconds = 60
				c.ShutdownBudgetSeconds = 60
			},
			wantErr:   true,
			errSubstr: []string{"must be greater than"},
		},
		{
			name: "budget less than drain",
			mutate: func(c *Config) {
				c.DrainSeconds = 60
				c.ShutdownBudgetSeconds = 30
			},
			wantErr:   true,
			errSubstr: []string{"must be greater than"},
		},
		// APIPort boundaries
		{
			name:      "port zero",
			mutate:    func(c *Config) { c.APIPort = 0 },
			wantErr:   true,
			errSubstr: []string{"HTTP_PORT"},
		},
		{
			name:      "port above max",
			mutate:    func(c *Config) { c.APIPort = 65536 },
			wantErr:   true,
			errSubstr: []string{"HTTP_PORT"},
		},
		// Age thresholds
		{
			name:      "pediatric age negative",
			mutate:    func(c *Config) { c.PediatricAgeMax = -1 },
			wantErr:   true,
			errSubstr: []string{"PEDIATRIC_AGE_MAX"},
		},
		{
			name:      "elderly age above max",
			mutate:    func(c *Config) { c.ElderlyAgeMin = 151 },
			wantErr:   true,
			errSubstr: []string{"ELDERLY_AGE_MIN"},
		},
		{
			name: "pediatric overlaps elderly",
			mutate: func(c *Config) {
				c.PediatricAgeMax = 70
				c.ElderlyAgeMin = 65
			},
			wantErr:   true,
			errSubstr: []string{"must be less than"},
		},
		// Batch concurrency
		{
			name:      "batch concurrency zero",
			mutate:    func(c *Config) { c.BatchConcurrency = 0 },
			wantErr:   true,
			errSubstr: []string{"BATCH_CONCURRENCY"},
		},
		{
			name:      "batch concurrency above max",
			mutate:    func(c *Config) { c.BatchConcurrency = 65 },
			wantErr:   true,
			errSubstr: []string{"BATCH_CONCURRENCY"},
		},
		// Extraction config
		{
			name: "key without model",
			mutate: func(c *Config) {
				c.ClaudeAPIKey = "k"
				c.ClaudeModel = ""
			},
			wantErr:   true,
			errSubstr: []string{"CLAUDE_MODEL"},
		},
		{
			name: "no key no model is fine",
			mutate: func(c *Config) {
				c.ClaudeAPIKey = ""
				c.ClaudeModel = ""
			},
			wantErr: false,
		},
		// Error accumulation
		{
			name: "multiple fields invalid",
			mutate: func(c *Config) {
				c.DrainSeconds = 0
				c.APIPort = 0
				c.BatchConcurrency = 0
			},
			wantErr:   true,
			errSubstr: []string{"DRAIN_SECONDS", "HTTP_PORT", "BATCH_CONCURRENCY"},
		},
		{
			name: "extreme negative values",
			mutate: func(c *Config) {
				c.DrainSeconds = math.MinInt32
				c.ShutdownBudgetSeconds = math.MinInt32
				c.APIPort = math.MinInt32
			},
			wantErr:   true,
			errSubstr: []string{"DRAIN_SECONDS", "SHUTDOWN_BUDGET_SECONDS", "HTTP_PORT"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			c := validBase()
			tt.mutate(&c)
			err := c.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				errMsg := err.Error()
				for _, sub := range tt.errSubstr {
					if !strings.Contains(errMsg, sub) {
						t.Errorf("error %q does not contain %q", errMsg, sub)
					}
				}
			}
		})
	}
}

func FuzzValidate(f *testing.F) {
	// Seeds: defaults, boundaries, extremes
	seeds := []struct {
		drain, budget, port, ped, eld, batch int
	}{
		{60, 90, 8080, 5, 65, 8},
		{1, 2, 1, 0, 1, 1},
		{299, 300, 65535, 149, 150, 64},
		{0, 0, 0, 0, 0, 0},
		{-1, -1, -1, -1, -1, -1},
		{300, 300, 65535, 5, 65, 8},
		{301, 302, 65536, 151, 151, 65},
		{150, 100, 8080, 65, 5, 8},
		{math.MinInt32, math.MinInt32, math.MinInt32, math.MinInt32, math.MinInt32, math.MinInt32},
		{math.MaxInt32, math.MaxInt32, math.MaxInt32, math.MaxInt32, math.MaxInt32, math.MaxInt32},
	}
	for _, s := range seeds {
		f.Add(s.drain, s.budget, s.port, s.ped, s.eld, s.batch)
	}

	f.Fuzz(func(t *testing.T, drain, budget, port, ped, eld, batch int) {
		c := Config{
			DrainSeconds:          drain,
			ShutdownBudgetSeconds: budget,
			APIPort:               port,
			PediatricAgeMax:       ped,
			ElderlyAgeMin:         eld,
			BatchConcurrency:      batch,
			ClaudeModel:           "claude-sonnet-4-20250514",
		}
		err := c.Validate()

		drainOK := drain >= 1 && drain <= 300
		budgetOK := budget >= 1 && budget <= 300
		portOK := port >= 1 && port <= 65535
		crossOK := budget > drain
		pedOK := ped >= 0 && ped <= 150
		eldOK := eld >= 0 && eld <= 150
		ageCrossOK := ped < eld
		batchOK := batch >= 1 && batch <= 64

		allValid := drainOK && budgetOK && portOK && crossOK && pedOK && eldOK && ageCrossOK && batchOK

		if allValid && err != nil {
			t.Errorf("expected no error for valid config %+v, got: %v", c, err)
		}
		if !allValid && err == nil {
			t.Errorf("expected error for invalid config %+v, got nil", c)
		}
	})
}
