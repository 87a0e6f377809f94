package provider

import (
	"fmt"
	"io"
	"net/url"
	"os"
	"sort"
	"strings"

	"dario.cat/mergo"
	"gopkg.in/yaml.v3"
)

// Catalog is the ordered, immutable set of providers for the process.
type Catalog struct {
	providers []Descriptor
}

// NewCatalog validates the descriptors and orders them by ascending priority.
// Providers sharing a priority keep their input order.
func NewCatalog(descriptors []Descriptor) (*Catalog, error) {
	if len(descriptors) == 0 {
		return nil, ErrEmptyCatalog
	}

	seen := make(map[string]bool, len(descriptors))
	sorted := make([]Descriptor, len(descriptors))
	copy(sorted, descriptors)

	for _, d := range sorted {
		if err := validate(d); err != nil {
			return nil, err
		}
		if seen[d.Name] {
			return nil, fmt.Errorf("%w: duplicate provider name %q", ErrInvalidDescriptor, d.Name)
		}
		seen[d.Name] = true
	}

	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Priority < sorted[j].Priority
	})

	return &Catalog{providers: sorted}, nil
}

func validate(d Descriptor) error {
	if d.Adapter == nil {
		return fmt.Errorf("%w: %q has no adapter", ErrUnsupportedProvider, d.Name)
	}
	if strings.TrimSpace(d.Name) == "" {
		return fmt.Errorf("%w: missing name", ErrInvalidDescriptor)
	}
	if d.Priority <= 0 {
		return fmt.Errorf("%w: %q priority must be positive, got %d", ErrInvalidDescriptor, d.Name, d.Priority)
	}
	if d.CredentialKey == "" {
		return fmt.Errorf("%w: %q missing credential key", ErrInvalidDescriptor, d.Name)
	}
	if d.Model == "" {
		return fmt.Errorf("%w: %q missing model", ErrInvalidDescriptor, d.Name)
	}
	if _, err := url.ParseRequestURI(d.Endpoint); err != nil {
		return fmt.Errorf("%w: %q endpoint: %v", ErrInvalidDescriptor, d.Name, err)
	}
	return nil
}

// Providers returns the descriptors in priority order. The slice is a copy.
func (c *Catalog) Providers() []Descriptor {
	out := make([]Descriptor, len(c.providers))
	copy(out, c.providers)
	return out
}

// Len returns the number of providers.
func (c *Catalog) Len() int { return len(c.providers) }

// AdapterFor returns the adapter implementing the named family.
func AdapterFor(family string) (Adapter, error) {
	switch family {
	case FamilyChatCompletions:
		return ChatCompletionsAdapter{}, nil
	case FamilyGenerativeText:
		return GenerativeTextAdapter{}, nil
	default:
		return nil, fmt.Errorf("%w: unknown family %q", ErrUnsupportedProvider, family)
	}
}

// DefaultDescriptors returns the built-in provider chain: OpenRouter, then
// OpenAI, then Gemini.
func DefaultDescriptors() []Descriptor {
	return []Descriptor{
		{
			Name:          "openrouter",
			Endpoint:      "https://openrouter.ai/api/v1/chat/completions",
			CredentialKey: "OPENROUTER_API_KEY",
			Model:         "openai/gpt-4o-mini",
			Priority:      1,
			Adapter:       ChatCompletionsAdapter{},
		},
		{
			Name:          "openai",
			Endpoint:      "https://api.openai.com/v1/chat/completions",
			CredentialKey: "OPENAI_API_KEY",
			Model:         "gpt-4o-mini",
			Priority:      2,
			Adapter:       ChatCompletionsAdapter{},
		},
		{
			Name:          "gemini",
			Endpoint:      "https://generativelanguage.googleapis.com/v1beta/models/{model}:generateContent",
			CredentialKey: "GEMINI_API_KEY",
			Model:         "gemini-2.0-flash",
			Priority:      3,
			Adapter:       GenerativeTextAdapter{},
		},
	}
}

// DefaultCatalog builds a catalog from DefaultDescriptors.
func DefaultCatalog() *Catalog {
	c, err := NewCatalog(DefaultDescriptors())
	if err != nil {
		panic(err)
	}
	return c
}

// ---------------------------------------------------------------------------
// Catalog files
// ---------------------------------------------------------------------------

type catalogFile struct {
	Defaults  descriptorFile   `yaml:"defaults"`
	Providers []descriptorFile `yaml:"providers"`
}

type descriptorFile struct {
	Name          string `yaml:"name"`
	Family        string `yaml:"family"`
	Endpoint      string `yaml:"endpoint"`
	CredentialKey string `yaml:"credential_key"`
	Model         string `yaml:"model"`
	Priority      int    `yaml:"priority"`
}

// LoadCatalog reads a YAML provider list. Fields an entry leaves empty are
// taken from the optional defaults block; name is never inherited.
//
//	defaults:
//	  family: chat-completions
//	providers:
//	  - name: openai
//	    endpoint: https://api.openai.com/v1/chat/completions
//	    credential_key: OPENAI_API_KEY
//	    model: gpt-4o-mini
//	    priority: 1
func LoadCatalog(r io.Reader) (*Catalog, error) {
	var f catalogFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && err != io.EOF {
		return nil, fmt.Errorf("provider: decode catalog: %w", err)
	}

	f.Defaults.Name = ""

	descriptors := make([]Descriptor, 0, len(f.Providers))
	for _, p := range f.Providers {
		if err := mergo.Merge(&p, f.Defaults); err != nil {
			return nil, fmt.Errorf("provider %q: apply defaults: %w", p.Name, err)
		}
		adapter, err := AdapterFor(p.Family)
		if err != nil {
			return nil, fmt.Errorf("provider %q: %w", p.Name, err)
		}
		descriptors = append(descriptors, Descriptor{
			Name:          p.Name,
			Endpoint:      p.Endpoint,
			CredentialKey: p.CredentialKey,
			Model:         p.Model,
			Priority:      p.Priority,
			Adapter:       adapter,
		})
	}
	return NewCatalog(descriptors)
}

// LoadCatalogFile reads a YAML provider list from disk.
func LoadCatalogFile(path string) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("provider: open catalog: %w", err)
	}
	defer f.Close()
	return LoadCatalog(f)
}
