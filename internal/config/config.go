package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"gopkg.in/yaml.v3"
)

// Config models hireline.yml. One config exists per company and is stored in
// the database alongside it; the YAML file is only the import/export format.
type Config struct {
	Company struct {
		ID   string `yaml:"id"`
		Name string `yaml:"name"`
	} `yaml:"company"`
	Pipeline struct {
		// DefaultStages seeds a job's stage list when the author does not
		// provide one.
		DefaultStages []StageTemplate `yaml:"default_stages"`
	} `yaml:"pipeline"`
	Tags struct {
		DefaultColor     string `yaml:"default_color"`
		DefaultTextColor string `yaml:"default_text_color"`
	} `yaml:"tags"`
	Webhooks []WebhookConfig `yaml:"webhooks"`
}

type StageTemplate struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
}

// WebhookConfig is one outbound target for stage-history notifications.
type WebhookConfig struct {
	URL            string `yaml:"url"`
	Secret         string `yaml:"secret"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	Enabled        *bool  `yaml:"enabled"`
}

var hexColor = regexp.MustCompile(`^#[0-9A-Fa-f]{6}$`)

// Load reads and validates config from workspace.
func Load(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config %s not found; import with hl company config import --file <path>", path)
		}
		return nil, err
	}
	return FromYAML(data)
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if c.Company.ID == "" {
		return fmt.Errorf("config.company.id is required")
	}
	if len(c.Pipeline.DefaultStages) == 0 {
		return fmt.Errorf("config.pipeline.default_stages must list at least one stage")
	}
	seen := map[string]bool{}
	for i, s := range c.Pipeline.DefaultStages {
		if s.Name == "" {
			return fmt.Errorf("default stage %d has empty name", i)
		}
		if seen[s.Name] {
			return fmt.Errorf("default stage name %s duplicated", s.Name)
		}
		seen[s.Name] = true
	}
	if c.Tags.DefaultColor != "" && !hexColor.MatchString(c.Tags.DefaultColor) {
		return fmt.Errorf("tags.default_color %s is not a #RRGGBB color", c.Tags.DefaultColor)
	}
	if c.Tags.DefaultTextColor != "" && !hexColor.MatchString(c.Tags.DefaultTextColor) {
		return fmt.Errorf("tags.default_text_color %s is not a #RRGGBB color", c.Tags.DefaultTextColor)
	}
	for i, hook := range c.Webhooks {
		if hook.URL == "" {
			return fmt.Errorf("webhook %d has empty url", i)
		}
	}
	return nil
}

// TagColor returns the configured default tag background color.
func (c *Config) TagColor() string {
	if c.Tags.DefaultColor != "" {
		return c.Tags.DefaultColor
	}
	return "#3B82F6"
}

// TagTextColor returns the configured default tag text color.
func (c *Config) TagTextColor() string {
	if c.Tags.DefaultTextColor != "" {
		return c.Tags.DefaultTextColor
	}
	return "#FFFFFF"
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "hireline.yml")
}

// Default returns the default Config struct for a company.
func Default(companyID string) *Config {
	cfg, _ := FromYAML([]byte(fmt.Sprintf(defaultTemplate, companyID)))
	if cfg == nil {
		cfg = &Config{}
		cfg.Company.ID = companyID
	}
	return cfg
}

// FromYAML parses and validates config from raw YAML bytes.
func FromYAML(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// FromFile reads YAML config from the given path.
func FromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromYAML(data)
}

const defaultTemplate = `company:
  id: %s

pipeline:
  default_stages:
    - name: Triagem
      description: "Analise inicial do curriculo"
    - name: Entrevista
      description: "Entrevista com o time"
    - name: "Contratação"
      description: "Proposta e contratação"

tags:
  default_color: "#3B82F6"
  default_text_color: "#FFFFFF"
`
