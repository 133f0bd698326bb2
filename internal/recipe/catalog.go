package recipe

import (
	"fmt"
	"os"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// Catalog is a YAML seed file of recipes. Used to load starter and fallback
// recipes into the repository.
type Catalog struct {
	Recipes []Recipe `yaml:"recipes"`
}

// LoadCatalog reads and validates a YAML catalog file. Entries without an ID
// get one assigned.
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog file %s: %w", path, err)
	}
	return ParseCatalog(data)
}

// ParseCatalog parses YAML catalog content.
func ParseCatalog(data []byte) (*Catalog, error) {
	var cat Catalog
	if err := yaml.Unmarshal(data, &cat); err != nil {
		return nil, fmt.Errorf("failed to parse catalog YAML: %w", err)
	}

	for i := range cat.Recipes {
		if cat.Recipes[i].ID == "" {
			cat.Recipes[i].ID = uuid.NewString()
		}
		if err := cat.Recipes[i].Validate(); err != nil {
			return nil, fmt.Errorf("catalog entry %d: %w", i+1, err)
		}
	}
	return &cat, nil
}
