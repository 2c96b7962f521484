package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/bursar-dev/bursar/internal/model"
	"github.com/bursar-dev/bursar/internal/statutory"
)

// FileName is the config file at the repo root.
const FileName = "bursar.yaml"

// Storage backends for finalized payroll history.
const (
	BackendCSV    = "csv"
	BackendSQLite = "sqlite"
)

// Template calculation types.
const (
	TypeFixed          = "fixed"
	TypePercentOfBasic = "percent_of_basic"
)

// Config represents the top-level bursar.yaml configuration.
type Config struct {
	School    SchoolConfig    `yaml:"school"`
	Statutory StatutoryConfig `yaml:"statutory"`
	Payroll   PayrollConfig   `yaml:"payroll"`
	Storage   StorageConfig   `yaml:"storage"`
	Git       GitConfig       `yaml:"git"`
}

// SchoolConfig identifies the school.
type SchoolConfig struct {
	Name     string `yaml:"name"`
	Currency string `yaml:"currency"`
}

// StatutoryConfig holds the tax table and levy rates. Money and rates are
// strings so they round-trip without float error.
type StatutoryConfig struct {
	Brackets        []BracketConfig `yaml:"brackets"`
	PersonalRelief  string          `yaml:"personal_relief"`
	PensionRate     string          `yaml:"pension_rate"`
	PensionCeiling  string          `yaml:"pension_ceiling"`
	HealthLevyRate  string          `yaml:"health_levy_rate"`
	HousingLevyRate string          `yaml:"housing_levy_rate"`
}

// BracketConfig is one annual PAYE band. An empty upper bound is the top band.
type BracketConfig struct {
	UpperBound string `yaml:"upper_bound,omitempty"`
	Rate       string `yaml:"rate"`
}

// PayrollConfig controls worksheet generation.
type PayrollConfig struct {
	PayDay    int              `yaml:"pay_day"`
	Templates []TemplateConfig `yaml:"templates,omitempty"`
}

// TemplateConfig is a configured earning or deduction.
type TemplateConfig struct {
	Name      string `yaml:"name"`
	Category  string `yaml:"category"`
	Type      string `yaml:"type"`
	Amount    string `yaml:"amount,omitempty"` // fixed
	Rate      string `yaml:"rate,omitempty"`   // percent_of_basic, 10 means 10%
	Recurring bool   `yaml:"recurring"`
}

// StorageConfig selects where finalized payroll is kept.
type StorageConfig struct {
	Backend    string `yaml:"backend"`
	SQLitePath string `yaml:"sqlite_path,omitempty"`
}

// GitConfig controls git integration.
type GitConfig struct {
	AutoCommit  bool   `yaml:"auto_commit"`
	AuthorName  string `yaml:"author_name"`
	AuthorEmail string `yaml:"author_email"`
}

// Load reads a bursar.yaml file from disk.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

// Save writes a Config to a YAML file.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// Default returns a Config with the current Kenyan statutory table.
func Default(schoolName string) *Config {
	return &Config{
		School: SchoolConfig{
			Name:     schoolName,
			Currency: "KES",
		},
		Statutory: StatutoryConfig{
			Brackets: []BracketConfig{
				{UpperBound: "288000", Rate: "0.10"},
				{UpperBound: "388000", Rate: "0.25"},
				{UpperBound: "6000000", Rate: "0.30"},
				{UpperBound: "9600000", Rate: "0.325"},
				{Rate: "0.35"},
			},
			PersonalRelief:  "2400",
			PensionRate:     "0.06",
			PensionCeiling:  "72000",
			HealthLevyRate:  "0.0275",
			HousingLevyRate: "0.015",
		},
		Payroll: PayrollConfig{
			PayDay: 28,
		},
		Storage: StorageConfig{
			Backend:    BackendCSV,
			SQLitePath: "data/bursar.db",
		},
		Git: GitConfig{
			AutoCommit:  true,
			AuthorName:  "Bursar",
			AuthorEmail: "bursar@bursar.dev",
		},
	}
}

// Validate checks everything that StatutoryTable and Templates would reject, plus
// the plain fields.
func (c *Config) Validate() error {
	var errs []error
	if c.Payroll.PayDay < 1 || c.Payroll.PayDay > 31 {
		errs = append(errs, fmt.Errorf("payroll.pay_day must be 1-31, got %d", c.Payroll.PayDay))
	}
	switch c.Storage.Backend {
	case BackendCSV:
	case BackendSQLite:
		if c.Storage.SQLitePath == "" {
			errs = append(errs, errors.New("storage.sqlite_path is required for sqlite backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("storage.backend must be %q or %q, got %q", BackendCSV, BackendSQLite, c.Storage.Backend))
	}
	if _, err := c.StatutoryTable(); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.Templates(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// StatutoryTable converts the YAML table into a calculator config.
func (c *Config) StatutoryTable() (statutory.Config, error) {
	s := c.Statutory
	var out statutory.Config
	var err error

	for i, b := range s.Brackets {
		var br statutory.Bracket
		if b.UpperBound != "" {
			if br.UpperBound, err = parse(fmt.Sprintf("statutory.brackets[%d].upper_bound", i), b.UpperBound); err != nil {
				return statutory.Config{}, err
			}
		}
		if br.Rate, err = parse(fmt.Sprintf("statutory.brackets[%d].rate", i), b.Rate); err != nil {
			return statutory.Config{}, err
		}
		out.Brackets = append(out.Brackets, br)
	}

	fields := []struct {
		name string
		raw  string
		dst  *decimal.Decimal
	}{
		{"statutory.personal_relief", s.PersonalRelief, &out.PersonalRelief},
		{"statutory.pension_rate", s.PensionRate, &out.PensionRate},
		{"statutory.pension_ceiling", s.PensionCeiling, &out.PensionCeiling},
		{"statutory.health_levy_rate", s.HealthLevyRate, &out.HealthLevyRate},
		{"statutory.housing_levy_rate", s.HousingLevyRate, &out.HousingLevyRate},
	}
	for _, f := range fields {
		if *f.dst, err = parse(f.name, f.raw); err != nil {
			return statutory.Config{}, err
		}
	}

	if err := out.Validate(); err != nil {
		return statutory.Config{}, err
	}
	return out, nil
}

// Templates converts the configured payroll items.
func (c *Config) Templates() ([]model.PayrollItemTemplate, error) {
	out := make([]model.PayrollItemTemplate, 0, len(c.Payroll.Templates))
	for i, t := range c.Payroll.Templates {
		field := fmt.Sprintf("payroll.templates[%d]", i)
		tpl := model.PayrollItemTemplate{
			Name:      t.Name,
			Category:  model.Category(t.Category),
			Recurring: t.Recurring,
		}
		if t.Name == "" {
			return nil, fmt.Errorf("%s.name is required", field)
		}
		if !tpl.Category.Valid() {
			return nil, fmt.Errorf("%s.category must be earning or deduction, got %q", field, t.Category)
		}
		switch t.Type {
		case TypeFixed:
			amt, err := parse(field+".amount", t.Amount)
			if err != nil {
				return nil, err
			}
			tpl.Calculation = model.Fixed{Amount: amt}
		case TypePercentOfBasic:
			rate, err := parse(field+".rate", t.Rate)
			if err != nil {
				return nil, err
			}
			tpl.Calculation = model.PercentOfBasic{Rate: rate}
		default:
			return nil, fmt.Errorf("%s.type must be %q or %q, got %q", field, TypeFixed, TypePercentOfBasic, t.Type)
		}
		out = append(out, tpl)
	}
	return out, nil
}

func parse(field, raw string) (decimal.Decimal, error) {
	if raw == "" {
		return decimal.Zero, fmt.Errorf("%s is required", field)
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%s: invalid number %q", field, raw)
	}
	return d, nil
}
