package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"sprintline/internal/config"
)

func TestDefaultValidates(t *testing.T) {
	cfg := config.Default("proj-1")
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.Project.ID != "proj-1" {
		t.Fatalf("expected project id kept, got %s", cfg.Project.ID)
	}
	if cfg.Sprint.LengthDays != 14 {
		t.Fatalf("expected 14 day default, got %d", cfg.Sprint.LengthDays)
	}
	for _, kind := range []string{"task", "story", "epic"} {
		tpl, ok := cfg.Flows[kind]
		if !ok {
			t.Fatalf("missing %s flow", kind)
		}
		var initial, final bool
		for _, st := range tpl.Statuses {
			initial = initial || st.Initial
			final = final || st.Final
		}
		if !initial || !final {
			t.Fatalf("%s flow missing initial or final status", kind)
		}
	}
}

func TestFromYAMLRejectsMissingFlow(t *testing.T) {
	data := []byte(`project:
  id: p1
  name: p1
flows:
  task:
    name: Task flow
    statuses:
      - { name: To Do, order: 1, initial: true }
sprint:
  length_days: 7
`)
	_, err := config.FromYAML(data)
	if err == nil || !strings.Contains(err.Error(), "config.flows.story") {
		t.Fatalf("expected missing story flow error, got %v", err)
	}
}

func TestFromYAMLRejectsUnknownKind(t *testing.T) {
	cfg := config.Default("p1")
	cfg.Flows["widget"] = cfg.Flows["task"]
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected unknown kind rejection")
	}
}

func TestLoadOptional(t *testing.T) {
	dir := t.TempDir()
	cfg, err := config.LoadOptional(dir)
	if err != nil || cfg != nil {
		t.Fatalf("expected nil config for empty workspace, got %v %v", cfg, err)
	}
	path := filepath.Join(dir, "sprintline.yml")
	if err := os.WriteFile(path, []byte(config.GenerateDefault("p1")), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err = config.LoadOptional(dir)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Project.ID != "p1" {
		t.Fatalf("expected project p1, got %s", cfg.Project.ID)
	}
}
