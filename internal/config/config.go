package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config models sprintline.yml. It is stored per project in the
// project_configs table and seeds the status catalog at provisioning.
type Config struct {
	Project struct {
		ID   string `yaml:"id"`
		Name string `yaml:"name"`
	} `yaml:"project"`
	Flows  map[string]FlowTemplate `yaml:"flows"`
	Sprint struct {
		LengthDays int `yaml:"length_days"`
	} `yaml:"sprint"`
	Webhooks []WebhookConfig `yaml:"webhooks,omitempty"`
}

// FlowTemplate describes the default status flow for one entity kind.
type FlowTemplate struct {
	Name     string           `yaml:"name"`
	Statuses []StatusTemplate `yaml:"statuses"`
}

type StatusTemplate struct {
	Name    string `yaml:"name"`
	Color   string `yaml:"color"`
	Order   int    `yaml:"order"`
	Initial bool   `yaml:"initial"`
	Final   bool   `yaml:"final"`
}

type WebhookConfig struct {
	URL            string   `yaml:"url"`
	Secret         string   `yaml:"secret,omitempty"`
	Events         []string `yaml:"events,omitempty"`
	TimeoutSeconds int      `yaml:"timeout_seconds,omitempty"`
	Enabled        *bool    `yaml:"enabled,omitempty"`
}

var flowKinds = []string{"task", "story", "epic"}

// Validate ensures the config meets required structure. Note that
// duplicate initial statuses within a flow are allowed; the catalog
// does not enforce initial-status uniqueness.
func (c *Config) Validate() error {
	if c.Project.ID == "" {
		return fmt.Errorf("config.project.id is required")
	}
	if c.Flows == nil {
		return fmt.Errorf("config.flows is required")
	}
	for _, kind := range flowKinds {
		tpl, ok := c.Flows[kind]
		if !ok {
			return fmt.Errorf("config.flows.%s is required", kind)
		}
		if tpl.Name == "" {
			return fmt.Errorf("flow for kind %s has empty name", kind)
		}
		if len(tpl.Statuses) == 0 {
			return fmt.Errorf("flow for kind %s has no statuses", kind)
		}
		for _, st := range tpl.Statuses {
			if st.Name == "" {
				return fmt.Errorf("flow for kind %s has a status with empty name", kind)
			}
		}
	}
	for kind := range c.Flows {
		if kind != "task" && kind != "story" && kind != "epic" {
			return fmt.Errorf("config.flows has unknown kind %s", kind)
		}
	}
	if c.Sprint.LengthDays < 0 {
		return fmt.Errorf("config.sprint.length_days must not be negative")
	}
	for i, hook := range c.Webhooks {
		if hook.URL == "" {
			return fmt.Errorf("webhook %d has empty url", i)
		}
	}
	return nil
}

// Load reads and validates config from workspace.
func Load(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config %s not found; import with spr project config import --file <path>", path)
		}
		return nil, err
	}
	return FromYAML(data)
}

// LoadOptional returns nil,nil if the config file does not exist.
func LoadOptional(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "sprintline.yml")
}

// GenerateDefault returns default config YAML.
func GenerateDefault(projectID string) string {
	return fmt.Sprintf(defaultTemplate, projectID, projectID)
}

// Default returns the default Config struct for a project.
func Default(projectID string) *Config {
	var cfg Config
	_ = yaml.NewDecoder(bytes.NewBufferString(GenerateDefault(projectID))).Decode(&cfg)
	cfg.Project.ID = projectID
	return &cfg
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

const defaultTemplate = `project:
  id: %s
  name: %s

flows:
  task:
    name: Task flow
    statuses:
      - { name: To Do, color: "#94a3b8", order: 1, initial: true }
      - { name: In Progress, color: "#3b82f6", order: 2 }
      - { name: Blocked, color: "#ef4444", order: 3 }
      - { name: Done, color: "#22c55e", order: 4, final: true }

  story:
    name: Story flow
    statuses:
      - { name: Backlog, color: "#94a3b8", order: 1, initial: true }
      - { name: Ready, color: "#a855f7", order: 2 }
      - { name: In Progress, color: "#3b82f6", order: 3 }
      - { name: In Review, color: "#f59e0b", order: 4 }
      - { name: Done, color: "#22c55e", order: 5, final: true }

  epic:
    name: Epic flow
    statuses:
      - { name: Proposed, color: "#94a3b8", order: 1, initial: true }
      - { name: In Progress, color: "#3b82f6", order: 2 }
      - { name: Completed, color: "#22c55e", order: 3, final: true }
      - { name: Abandoned, color: "#6b7280", order: 4, final: true }

sprint:
  length_days: 14
`
