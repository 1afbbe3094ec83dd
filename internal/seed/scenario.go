// Package seed provides helpers to create demo ban data for a guild. These
// helpers are intended for development and testing only.
package seed

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Scenario describes one guild to populate.
type Scenario struct {
	GuildID   uint64 `yaml:"guild_id" validate:"required"`
	GuildName string `yaml:"guild_name" validate:"max=100"`
	Options   `yaml:",inline"`
}

// Options sizes the generated data.
type Options struct {
	Players int `yaml:"players" validate:"min=1,max=10000"`
	Bans    int `yaml:"bans" validate:"min=0,max=100000"`
	// ActiveRatio is the share of bans still running at seed time.
	ActiveRatio float64 `yaml:"active_ratio" validate:"min=0,max=1"`
	// ManualRatio is the share of active bans that get unbanned afterwards.
	ManualRatio float64 `yaml:"manual_ratio" validate:"min=0,max=1"`
	MaxDays     int     `yaml:"max_days" validate:"min=1,max=3650"`
	Clean       bool    `yaml:"clean"`
	Seed        int64   `yaml:"seed"`
}

// DefaultOptions returns a small, mixed data set.
func DefaultOptions() Options {
	return Options{
		Players:     25,
		Bans:        60,
		ActiveRatio: 0.3,
		ManualRatio: 0.2,
		MaxDays:     30,
		Clean:       true,
	}
}

// LoadScenario reads a YAML scenario file. Missing fields take the values of
// DefaultOptions.
func LoadScenario(path string) (*Scenario, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	sc := Scenario{Options: DefaultOptions()}
	if err := yaml.Unmarshal(raw, &sc); err != nil {
		return nil, fmt.Errorf("unmarshal YAML: %w", err)
	}
	if err := sc.Validate(); err != nil {
		return nil, err
	}
	return &sc, nil
}

// Validate checks the scenario bounds.
func (s *Scenario) Validate() error {
	if err := validator.New().Struct(s); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("invalid scenario: %s failed %q (%s)", fe.Namespace(), fe.Tag(), fe.Param())
		}
		return fmt.Errorf("validate scenario: %w", err)
	}
	return nil
}
