package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ============================
// 🔷 Family Profile (loaded from YAML)
type FamilyProfile struct {
	ParentName  string `yaml:"parent_name"`
	ParentPhone string `yaml:"parent_phone"`
	ParentEmail string `yaml:"parent_email"`
	HomeAddress string `yaml:"home_address"`

	Children []Child  `yaml:"children"`
	Members  []Member `yaml:"members"`

	// Days ahead of an event where timing scores highest
	SweetSpotDays int `yaml:"sweet_spot_days"`
}

type Child struct {
	Name string `yaml:"name"`
	Age  int    `yaml:"age"`
}

// Member is a family member whose calendar is checked for conflicts
type Member struct {
	ID         string `yaml:"id"`
	Name       string `yaml:"name"`
	CalendarID string `yaml:"calendar_id"`
}

// LoadFamily reads the family profile YAML used for scoring, conflict
// checks and registration form filling
func LoadFamily(path string) (*FamilyProfile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read family config %s: %w", path, err)
	}

	var profile FamilyProfile
	if err := yaml.Unmarshal(data, &profile); err != nil {
		return nil, fmt.Errorf("failed to parse family config: %w", err)
	}

	if err := profile.Validate(); err != nil {
		return nil, err
	}

	if profile.SweetSpotDays <= 0 {
		profile.SweetSpotDays = 7
	}

	return &profile, nil
}

// Validate checks the minimum fields the pipeline needs to run
func (p *FamilyProfile) Validate() error {
	if p.ParentPhone == "" {
		return errors.New("family config: parent_phone is required")
	}
	if len(p.Children) == 0 {
		return errors.New("family config: at least one child is required")
	}
	for i, c := range p.Children {
		if c.Age < 0 || c.Age > 18 {
			return fmt.Errorf("family config: child %d has invalid age %d", i, c.Age)
		}
	}
	return nil
}
