package country

import (
	_ "embed"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// AllCode is the sentinel meaning "every supported country".
const AllCode = "ALL"

var ErrNotFound = errors.New("country not found")

//go:embed countries.yml
var catalogYAML []byte

type Country struct {
	Code           string   `yaml:"code" json:"code"`
	Name           string   `yaml:"name" json:"name"`
	Flag           string   `yaml:"flag" json:"flag"`
	Lat            float64  `yaml:"lat" json:"lat"`
	Lng            float64  `yaml:"lng" json:"lng"`
	CurrencySymbol string   `yaml:"currency_symbol" json:"currency_symbol"`
	Cities         []string `yaml:"cities" json:"cities"`
}

// IsAll reports whether c is the "all countries" sentinel.
func (c Country) IsAll() bool {
	return c.Code == AllCode
}

func (c Country) clone() Country {
	c.Cities = slices.Clone(c.Cities)
	return c
}

type catalog struct {
	Countries []Country `yaml:"countries"`
}

// Registry is the fixed, ordered catalog of supported countries.
// It is immutable once built and safe for concurrent use.
type Registry struct {
	countries []Country
	index     map[string]int
}

func NewRegistry(countries []Country) (*Registry, error) {
	if len(countries) == 0 {
		return nil, fmt.Errorf("registry must contain at least one country")
	}
	if countries[0].Code != AllCode {
		return nil, fmt.Errorf("first registry entry must be %s, got %q", AllCode, countries[0].Code)
	}

	r := &Registry{
		countries: make([]Country, 0, len(countries)),
		index:     make(map[string]int, len(countries)),
	}

	for i, c := range countries {
		if c.Code == "" {
			return nil, fmt.Errorf("country at index %d has no code", i)
		}
		if c.Name == "" {
			return nil, fmt.Errorf("country %s has no name", c.Code)
		}
		if _, dup := r.index[c.Code]; dup {
			return nil, fmt.Errorf("duplicate country code %s", c.Code)
		}

		seen := make(map[string]bool, len(c.Cities))
		for _, city := range c.Cities {
			if strings.TrimSpace(city) == "" {
				return nil, fmt.Errorf("country %s has an empty city name", c.Code)
			}
			if seen[city] {
				return nil, fmt.Errorf("country %s lists city %q twice", c.Code, city)
			}
			seen[city] = true
		}

		r.index[c.Code] = len(r.countries)
		r.countries = append(r.countries, c.clone())
	}

	return r, nil
}

// LoadRegistry parses a YAML catalog with a top-level "countries" sequence.
func LoadRegistry(data []byte) (*Registry, error) {
	var cat catalog
	if err := yaml.Unmarshal(data, &cat); err != nil {
		return nil, fmt.Errorf("failed to parse country catalog: %w", err)
	}
	return NewRegistry(cat.Countries)
}

var (
	defaultRegistry     *Registry
	defaultRegistryOnce sync.Once
)

// Default returns the registry built from the embedded catalog.
func Default() *Registry {
	defaultRegistryOnce.Do(func() {
		reg, err := LoadRegistry(catalogYAML)
		if err != nil {
			panic(fmt.Sprintf("embedded country catalog is invalid: %v", err))
		}
		defaultRegistry = reg
	})
	return defaultRegistry
}

// List returns every country in declaration order, starting with ALL.
func (r *Registry) List() []Country {
	out := make([]Country, len(r.countries))
	for i, c := range r.countries {
		out[i] = c.clone()
	}
	return out
}

func (r *Registry) ByCode(code string) (Country, error) {
	i, ok := r.index[code]
	if !ok {
		return Country{}, fmt.Errorf("%w: %q", ErrNotFound, code)
	}
	return r.countries[i].clone(), nil
}

// Has reports whether code is in the registry.
func (r *Registry) Has(code string) bool {
	_, ok := r.index[code]
	return ok
}

// ByCodeOr returns the country for code, or fallback when code is unknown.
func (r *Registry) ByCodeOr(code string, fallback Country) Country {
	c, err := r.ByCode(code)
	if err != nil {
		return fallback
	}
	return c
}

// All returns the ALL sentinel.
func (r *Registry) All() Country {
	return r.countries[0].clone()
}

func (r *Registry) Len() int {
	return len(r.countries)
}
