package worker

import (
	"os"

	"go.yaml.in/yaml/v3"

	"github.com/sotaru/tasuke/internal/llm"
	"github.com/sotaru/tasuke/pkg/models"
)

// Definitions is the workers.yaml file structure. Every setting is optional;
// a missing file yields the defaults.
type Definitions struct {
	Workers struct {
		Web struct {
			Disabled bool `yaml:"disabled"`
		} `yaml:"web"`
		Coder struct {
			Disabled bool `yaml:"disabled"`
		} `yaml:"coder"`
		Casual struct {
			Disabled bool `yaml:"disabled"`
		} `yaml:"casual"`
		File struct {
			Disabled bool   `yaml:"disabled"`
			Root     string `yaml:"root"`
		} `yaml:"file"`
	} `yaml:"workers"`
}

// LoadDefinitions reads a workers.yaml file. A missing file is not an error;
// it returns zero-valued definitions.
func LoadDefinitions(path string) (*Definitions, error) {
	defs := &Definitions{}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return defs, nil
		}
		return nil, err
	}
	if err := yaml.Unmarshal(data, defs); err != nil {
		return nil, err
	}
	return defs, nil
}

// BuildRegistry registers the enabled built-in workers. completer may be nil;
// the LLM-backed workers then use their canned fallbacks.
func (d *Definitions) BuildRegistry(completer llm.Completer) (*Registry, error) {
	reg := NewRegistry()
	if !d.Workers.Web.Disabled {
		if err := reg.Register(models.AgentTypeWeb, NewWebWorker()); err != nil {
			return nil, err
		}
	}
	if !d.Workers.Coder.Disabled {
		if err := reg.Register(models.AgentTypeCoder, NewCoderWorker(completer)); err != nil {
			return nil, err
		}
	}
	if !d.Workers.Casual.Disabled {
		if err := reg.Register(models.AgentTypeCasual, NewCasualWorker(completer)); err != nil {
			return nil, err
		}
	}
	if !d.Workers.File.Disabled {
		root := d.Workers.File.Root
		if root == "" {
			root = "."
		}
		if err := reg.Register(models.AgentTypeFile, NewFileWorker(root)); err != nil {
			return nil, err
		}
	}
	return reg, nil
}
