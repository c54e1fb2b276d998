// Package catalog holds the table of data providers and the categories custom variables
// can be derived from. It is loaded once at process start and read-only afterwards.
package catalog

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	ddsTypes "github.com/ddsurveys/dds-backend/pkg/dds/types"
	"gopkg.in/yaml.v2"
)

//go:embed default-catalog.yaml
var defaultCatalogYaml []byte

type Category struct {
	Name         string                `yaml:"name" json:"name"`
	VariableType ddsTypes.VariableType `yaml:"variableType" json:"variableType"`
	Fractional   bool                  `yaml:"fractional" json:"fractional"`
	Precision    int                   `yaml:"precision" json:"precision"`
	Description  string                `yaml:"description" json:"description"`
}

type providerEntry struct {
	Name       string                    `yaml:"name"`
	Type       ddsTypes.DataProviderType `yaml:"type"`
	Label      string                    `yaml:"label"`
	Categories []Category                `yaml:"categories"`
}

type catalogFile struct {
	Providers []providerEntry `yaml:"providers"`
}

type Catalog struct {
	providers  []providerEntry
	byProvider map[string]int
	categories map[string]Category
}

func categoryKey(provider, category string) string {
	return provider + "/" + category
}

// Parse reads a catalog from yaml and checks it for duplicate or ill-typed entries.
func Parse(data []byte) (*Catalog, error) {
	var f catalogFile
	if err := yaml.UnmarshalStrict(data, &f); err != nil {
		return nil, err
	}

	c := &Catalog{
		byProvider: map[string]int{},
		categories: map[string]Category{},
	}
	for i, p := range f.Providers {
		if p.Name == "" {
			return nil, fmt.Errorf("provider at index %d has no name", i)
		}
		if _, ok := c.byProvider[p.Name]; ok {
			return nil, fmt.Errorf("duplicate provider: %s", p.Name)
		}
		switch p.Type {
		case ddsTypes.DATA_PROVIDER_TYPE_GENERIC, ddsTypes.DATA_PROVIDER_TYPE_OAUTH, ddsTypes.DATA_PROVIDER_TYPE_FRONTEND:
		default:
			return nil, fmt.Errorf("provider %s has unknown type: %s", p.Name, p.Type)
		}
		for _, cat := range p.Categories {
			key := categoryKey(p.Name, cat.Name)
			if _, ok := c.categories[key]; ok {
				return nil, fmt.Errorf("duplicate category: %s", ddsTypes.VariableName(p.Name, cat.Name))
			}
			if !cat.VariableType.IsValid() {
				return nil, fmt.Errorf("category %s has unknown variable type: %s", ddsTypes.VariableName(p.Name, cat.Name), cat.VariableType)
			}
			if cat.Fractional && cat.VariableType != ddsTypes.VARIABLE_TYPE_SCALE {
				return nil, fmt.Errorf("category %s: only Scale categories can be fractional", ddsTypes.VariableName(p.Name, cat.Name))
			}
			c.categories[key] = cat
		}
		c.byProvider[p.Name] = len(c.providers)
		c.providers = append(c.providers, p)
	}
	return c, nil
}

// Default returns the catalog shipped with the binary.
func Default() *Catalog {
	c, err := Parse(defaultCatalogYaml)
	if err != nil {
		panic("invalid embedded catalog: " + err.Error())
	}
	return c
}

// Load reads the catalog from path, or returns the default catalog if path is empty.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

func (c *Catalog) Providers() []ddsTypes.DataProvider {
	providers := make([]ddsTypes.DataProvider, len(c.providers))
	for i, p := range c.providers {
		providers[i] = ddsTypes.DataProvider{Name: p.Name, Type: p.Type, Label: p.Label}
	}
	return providers
}

func (c *Catalog) Provider(name string) (ddsTypes.DataProvider, bool) {
	i, ok := c.byProvider[name]
	if !ok {
		return ddsTypes.DataProvider{}, false
	}
	p := c.providers[i]
	return ddsTypes.DataProvider{Name: p.Name, Type: p.Type, Label: p.Label}, true
}

func (c *Catalog) Categories(provider string) []Category {
	i, ok := c.byProvider[provider]
	if !ok {
		return nil
	}
	return append([]Category(nil), c.providers[i].Categories...)
}

func (c *Catalog) Lookup(provider string, category string) (Category, bool) {
	cat, ok := c.categories[categoryKey(provider, category)]
	return cat, ok
}

// LookupVariable resolves a dds.<provider>.<category> name.
func (c *Catalog) LookupVariable(name string) (string, Category, bool) {
	provider, category, ok := ddsTypes.SplitVariableName(name)
	if !ok {
		return "", Category{}, false
	}
	cat, ok := c.Lookup(provider, category)
	return provider, cat, ok
}

// ValidateDefinition checks a custom variable against the catalog.
func (c *Catalog) ValidateDefinition(def ddsTypes.CustomVariable) error {
	if _, ok := c.Provider(def.Provider); !ok {
		return fmt.Errorf("unknown provider %q", def.Provider)
	}
	cat, ok := c.Lookup(def.Provider, def.Category)
	if !ok {
		return fmt.Errorf("unknown category %q", def.Field())
	}
	if def.VariableType != "" && def.VariableType != cat.VariableType {
		return fmt.Errorf("%s is of type %s, not %s", def.Field(), cat.VariableType, def.VariableType)
	}
	return nil
}

// ValidateDefinitions checks all definitions and reports every problem in one ConfigurationError.
func (c *Catalog) ValidateDefinitions(defs []ddsTypes.CustomVariable) error {
	problems := []error{}
	seen := map[string]bool{}
	for _, def := range defs {
		if err := c.ValidateDefinition(def); err != nil {
			problems = append(problems, err)
			continue
		}
		if seen[def.Field()] {
			problems = append(problems, fmt.Errorf("duplicate variable %s", def.Field()))
		}
		seen[def.Field()] = true
	}
	if len(problems) == 0 {
		return nil
	}
	return ddsTypes.NewConfigurationError("invalid custom variables", errors.Join(problems...))
}

// VariableNames lists all dds.<provider>.<category> names, sorted.
func (c *Catalog) VariableNames() []string {
	names := make([]string, 0, len(c.categories))
	for _, p := range c.providers {
		for _, cat := range p.Categories {
			names = append(names, ddsTypes.VariableName(p.Name, cat.Name))
		}
	}
	sort.Strings(names)
	return names
}

// String lists provider names, for log lines.
func (c *Catalog) String() string {
	names := make([]string, len(c.providers))
	for i, p := range c.providers {
		names[i] = p.Name
	}
	return strings.Join(names, ",")
}
