package config

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/Mahboob22-bit/crowpanel-oev-display/backend-go/internal/ojp"
	"github.com/Mahboob22-bit/crowpanel-oev-display/backend-go/internal/trial"
)

// TrialCatalog is the YAML form of a candidate list.
type TrialCatalog struct {
	Trials []TrialEntry `yaml:"trials" validate:"required,min=1,unique=Name,dive"`
}

type TrialEntry struct {
	Name     string `yaml:"name" validate:"required"`
	Endpoint string `yaml:"endpoint" validate:"required,url"`
	Dialect  string `yaml:"dialect" validate:"required,oneof=v1 v2"`
	Auth     string `yaml:"auth" validate:"required,oneof=bearer token none"`
}

// LoadTrialCatalog reads and validates a trial catalog, keeping file order.
func LoadTrialCatalog(path string) ([]trial.Trial, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading trial catalog: %w", err)
	}
	return ParseTrialCatalog(data)
}

func ParseTrialCatalog(data []byte) ([]trial.Trial, error) {
	var catalog TrialCatalog
	if err := yaml.Unmarshal(data, &catalog); err != nil {
		return nil, fmt.Errorf("parsing trial catalog: %w", err)
	}

	v := validator.New()
	if err := v.Struct(catalog); err != nil {
		return nil, fmt.Errorf("invalid trial catalog: %w", err)
	}

	trials := make([]trial.Trial, 0, len(catalog.Trials))
	for _, e := range catalog.Trials {
		d, err := ojp.ParseDialect(e.Dialect)
		if err != nil {
			return nil, fmt.Errorf("trial %s: %w", e.Name, err)
		}
		a, err := trial.ParseAuthStrategy(e.Auth)
		if err != nil {
			return nil, fmt.Errorf("trial %s: %w", e.Name, err)
		}
		trials = append(trials, trial.Trial{
			Name:        e.Name,
			EndpointURL: e.Endpoint,
			Dialect:     d,
			Auth:        a,
		})
	}
	return trials, nil
}
