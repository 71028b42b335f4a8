package process

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the action file the CLI looks for in the tree directory.
const DefaultConfigFile = "actions.yaml"

// ProcessConfig describes an external command exposed as a call_action.
type ProcessConfig struct {
	Name        string            `yaml:"name" json:"name"`
	Command     string            `yaml:"command" json:"command"`
	Args        []string          `yaml:"args" json:"args"`
	Environment map[string]string `yaml:"env" json:"env"`
	Description string            `yaml:"description" json:"description"`
	// Timeout kills the process when it runs longer. Zero uses the runner default.
	Timeout time.Duration `yaml:"timeout" json:"timeout"`
}

// ConfigFile represents the structure of actions.yaml.
type ConfigFile struct {
	Actions []ProcessConfig `yaml:"actions" json:"actions"`
}

// LoadActions reads a configuration file (YAML or JSON) and returns the
// actions by name. A missing file yields no actions.
func LoadActions(path string) (map[string]ProcessConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return map[string]ProcessConfig{}, nil
		}
		return nil, fmt.Errorf("read actions config: %w", err)
	}

	var cfg ConfigFile
	if strings.ToLower(filepath.Ext(path)) == ".json" {
		err = json.Unmarshal(data, &cfg)
	} else {
		err = yaml.Unmarshal(data, &cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}

	actions := make(map[string]ProcessConfig, len(cfg.Actions))
	for _, a := range cfg.Actions {
		if a.Name == "" || a.Command == "" {
			return nil, fmt.Errorf("parse %s: every action needs a name and a command", filepath.Base(path))
		}
		if _, dup := actions[a.Name]; dup {
			return nil, fmt.Errorf("parse %s: duplicate action %q", filepath.Base(path), a.Name)
		}
		actions[a.Name] = a
	}
	return actions, nil
}
