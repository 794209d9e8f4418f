// Package models holds the fixed catalog of chat backends a request fans out to.
package models

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"explorer/internal/types"

	"gopkg.in/yaml.v3"
)

// Catalog is an immutable, ordered list of model descriptors. It is safe for
// unsynchronized concurrent reads.
type Catalog struct {
	models []types.ModelDescriptor
}

// Lister is what the fan-out path needs from a catalog.
type Lister interface {
	ListAll() []types.ModelDescriptor
}

var builtin = []types.ModelDescriptor{
	{ID: "moonshotai/kimi-k2:free", DisplayName: "Kimi K2", MaxTokens: 4000},
	{ID: "deepseek/deepseek-chat-v3.1:free", DisplayName: "DeepSeek V3.1", MaxTokens: 4000},
	{ID: "google/gemini-2.0-flash-exp:free", DisplayName: "Gemini 2.0 Flash", MaxTokens: 3500},
	{ID: "openai/gpt-oss-120b:free", DisplayName: "GPT-OSS-120B", MaxTokens: 3000},
	{ID: "mistralai/mistral-small-3.1-24b-instruct:free", DisplayName: "Mistral Small 3.1", MaxTokens: 3000},
}

// DefaultCatalog returns the built-in OpenRouter free-tier table.
func DefaultCatalog() *Catalog {
	c, _ := NewCatalog(builtin)
	return c
}

// NewCatalog copies models into a new catalog after validating them.
func NewCatalog(models []types.ModelDescriptor) (*Catalog, error) {
	if len(models) == 0 {
		return nil, fmt.Errorf("model catalog requires at least one model")
	}
	seen := make(map[string]bool, len(models))
	out := make([]types.ModelDescriptor, 0, len(models))
	for i, m := range models {
		m.ID = strings.TrimSpace(m.ID)
		m.DisplayName = strings.TrimSpace(m.DisplayName)
		if m.ID == "" {
			return nil, fmt.Errorf("models[%d]: id is required", i)
		}
		if m.DisplayName == "" {
			return nil, fmt.Errorf("models[%d] (%s): name is required", i, m.ID)
		}
		if m.MaxTokens <= 0 {
			return nil, fmt.Errorf("models[%d] (%s): max_tokens must be > 0", i, m.ID)
		}
		if seen[m.ID] {
			return nil, fmt.Errorf("models[%d]: duplicate id %s", i, m.ID)
		}
		seen[m.ID] = true
		out = append(out, m)
	}
	return &Catalog{models: out}, nil
}

// ListAll returns the models in catalog order. The slice is a fresh copy.
func (c *Catalog) ListAll() []types.ModelDescriptor {
	if c == nil {
		return nil
	}
	out := make([]types.ModelDescriptor, len(c.models))
	copy(out, c.models)
	return out
}

func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.models)
}

// Lookup finds a model by id.
func (c *Catalog) Lookup(id string) (types.ModelDescriptor, bool) {
	if c == nil {
		return types.ModelDescriptor{}, false
	}
	id = strings.TrimSpace(id)
	for _, m := range c.models {
		if m.ID == id {
			return m, true
		}
	}
	return types.ModelDescriptor{}, false
}

type catalogFile struct {
	Models []types.ModelDescriptor `yaml:"models"`
}

// LoadCatalogFile reads a YAML catalog (models: [{id, name, max_tokens}]).
// It is meant to be called once at start-up.
func LoadCatalogFile(path string) (*Catalog, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read model catalog failed: %w", err)
	}
	var file catalogFile
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil {
		return nil, fmt.Errorf("parse model catalog failed: %w", err)
	}
	return NewCatalog(file.Models)
}

// Resolve returns the catalog from path, or the built-in one when path is empty.
func Resolve(path string) (*Catalog, error) {
	if strings.TrimSpace(path) == "" {
		return DefaultCatalog(), nil
	}
	return LoadCatalogFile(path)
}
