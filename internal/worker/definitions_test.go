package worker

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/sotaru/tasuke/pkg/models"
)

func TestLoadDefinitionsMissingFile(t *testing.T) {
	defs, err := LoadDefinitions(filepath.Join(t.TempDir(), "workers.yaml"))
	if err != nil {
		t.Fatalf("missing file should not error: %v", err)
	}
	if defs.Workers.File.Root != "" {
		t.Error("expected zero-valued definitions")
	}
}

func TestLoadDefinitionsParsesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "workers.yaml")
	content := `workers:
  web:
    disabled: true
  file:
    root: /srv/docs
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	defs, err := LoadDefinitions(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if !defs.Workers.Web.Disabled {
		t.Error("web worker should be disabled")
	}
	if defs.Workers.File.Root != "/srv/docs" {
		t.Errorf("file root = %q, want /srv/docs", defs.Workers.File.Root)
	}
}

func TestBuildRegistryDefaults(t *testing.T) {
	defs := &Definitions{}
	reg, err := defs.BuildRegistry(nil)
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	for _, at := range []models.AgentType{models.AgentTypeWeb, models.AgentTypeCoder, models.AgentTypeCasual, models.AgentTypeFile} {
		if _, err := reg.Get(at); err != nil {
			t.Errorf("missing default worker for %s: %v", at, err)
		}
	}
}

func TestBuildRegistryDisablesWorkers(t *testing.T) {
	defs := &Definitions{}
	defs.Workers.Coder.Disabled = true
	reg, err := defs.BuildRegistry(nil)
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	if _, err := reg.Get(models.AgentTypeCoder); !errors.Is(err, models.ErrUnknownAgentType) {
		t.Errorf("disabled worker should be absent, got %v", err)
	}
}
