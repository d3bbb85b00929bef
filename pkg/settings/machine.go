package settings

import (
	"strings"

	"github.com/pkg/errors"
)

// MachineConfig identifies the assistant and where its worker lives.
// Work is a worker locator such as "openai:gpt-4o-mini" or "exec:multilogue worker".
type MachineConfig struct {
	Name string `json:"name" yaml:"name" mapstructure:"name"`
	Work string `json:"work" yaml:"work" mapstructure:"work"`
}

func (m MachineConfig) Validate() error {
	if strings.TrimSpace(m.Name) == "" {
		return errors.New("machine name is required")
	}
	if strings.TrimSpace(m.Work) == "" {
		return errors.New("machine work locator is required")
	}
	return nil
}
