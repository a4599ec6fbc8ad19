// Package taskcatalog resolves named task presets into task descriptors.
package taskcatalog

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kirillkom/file-insights/internal/core/domain"
	"github.com/kirillkom/file-insights/internal/core/ports"
)

//go:embed tasks.yaml
var defaultTasks []byte

type fileFormat struct {
	DefaultModel string         `yaml:"default_model"`
	ContextChars map[string]int `yaml:"context_chars"`
	Tasks        []presetEntry  `yaml:"tasks"`
}

type presetEntry struct {
	Name                 string             `yaml:"name"`
	Kind                 domain.TaskKind    `yaml:"kind"`
	Model                string             `yaml:"model"`
	MaxTokens            int                `yaml:"max_tokens"`
	Temperature          float64            `yaml:"temperature"`
	Instructions         string             `yaml:"instructions"`
	RequiresInstructions bool               `yaml:"requires_instructions"`
	Categories           []domain.Category  `yaml:"categories"`
	Criteria             []domain.Criterion `yaml:"criteria"`
}

// Catalog implements ports.TaskCatalog. It is read-only after construction.
type Catalog struct {
	presets      []presetEntry
	byName       map[string]int
	contextChars map[string]int
}

// Default returns the catalog built from the embedded presets.
func Default() (*Catalog, error) {
	return Parse(defaultTasks)
}

// Load reads presets from path, or the embedded presets when path is empty.
func Load(path string) (*Catalog, error) {
	if strings.TrimSpace(path) == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read task catalog: %w", err)
	}
	return Parse(data)
}

func Parse(data []byte) (*Catalog, error) {
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)

	var file fileFormat
	if err := decoder.Decode(&file); err != nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, "parse task catalog", err)
	}
	if len(file.Tasks) == 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "parse task catalog", errors.New("no tasks defined"))
	}

	catalog := &Catalog{
		presets:      make([]presetEntry, 0, len(file.Tasks)),
		byName:       make(map[string]int, len(file.Tasks)),
		contextChars: make(map[string]int, len(file.ContextChars)),
	}
	for model, chars := range file.ContextChars {
		catalog.contextChars[strings.ToLower(model)] = chars
	}
	for _, preset := range file.Tasks {
		preset.Name = strings.TrimSpace(preset.Name)
		if preset.Model == "" {
			preset.Model = file.DefaultModel
		}
		key := strings.ToLower(preset.Name)
		if key == "" {
			return nil, domain.WrapError(domain.ErrInvalidInput, "parse task catalog", errors.New("task without name"))
		}
		if _, dup := catalog.byName[key]; dup {
			return nil, domain.WrapError(domain.ErrInvalidInput, "parse task catalog", fmt.Errorf("duplicate task %q", preset.Name))
		}
		if err := catalog.descriptor(preset).Validate(); err != nil {
			return nil, fmt.Errorf("task %q: %w", preset.Name, err)
		}
		catalog.byName[key] = len(catalog.presets)
		catalog.presets = append(catalog.presets, preset)
	}
	return catalog, nil
}

// Resolve returns the named preset with overrides applied. Label overrides keep the preset
// description of a label they repeat.
func (c *Catalog) Resolve(name string, overrides ports.TaskOverrides) (domain.TaskDescriptor, error) {
	idx, ok := c.byName[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return domain.TaskDescriptor{}, domain.WrapError(domain.ErrInvalidInput, "resolve task", fmt.Errorf("unknown task %q", name))
	}
	preset := c.presets[idx]

	if model := strings.TrimSpace(overrides.Model); model != "" {
		preset.Model = model
	}
	if overrides.MaxTokens > 0 {
		preset.MaxTokens = overrides.MaxTokens
	}
	if instructions := strings.TrimSpace(overrides.Instructions); instructions != "" {
		preset.Instructions = instructions
	}
	if labels := cleanLabels(overrides.Categories); len(labels) > 0 {
		preset.Categories = overrideCategories(preset.Categories, labels)
	}
	if labels := cleanLabels(overrides.Criteria); len(labels) > 0 {
		preset.Criteria = overrideCriteria(preset.Criteria, labels)
	}
	if preset.RequiresInstructions && strings.TrimSpace(preset.Instructions) == "" {
		return domain.TaskDescriptor{}, domain.WrapError(domain.ErrInvalidInput, "resolve task", fmt.Errorf("task %q requires instructions", preset.Name))
	}

	task := c.descriptor(preset)
	if err := task.Validate(); err != nil {
		return domain.TaskDescriptor{}, err
	}
	return task, nil
}

// List returns the presets in declaration order.
func (c *Catalog) List() []domain.TaskDescriptor {
	out := make([]domain.TaskDescriptor, 0, len(c.presets))
	for _, preset := range c.presets {
		out = append(out, c.descriptor(preset))
	}
	return out
}

func (c *Catalog) descriptor(preset presetEntry) domain.TaskDescriptor {
	return domain.TaskDescriptor{
		Name:         preset.Name,
		Kind:         preset.Kind,
		Categories:   append([]domain.Category(nil), preset.Categories...),
		Criteria:     append([]domain.Criterion(nil), preset.Criteria...),
		Instructions: strings.TrimSpace(preset.Instructions),
		Model:        preset.Model,
		MaxTokens:    preset.MaxTokens,
		Temperature:  preset.Temperature,
		ContentChars: c.contextChars[strings.ToLower(preset.Model)],
	}
}

func cleanLabels(labels []string) []string {
	out := make([]string, 0, len(labels))
	for _, label := range labels {
		if label = strings.TrimSpace(label); label != "" {
			out = append(out, label)
		}
	}
	return out
}

func overrideCategories(preset []domain.Category, labels []string) []domain.Category {
	known := make(map[string]string, len(preset))
	for _, c := range preset {
		known[strings.ToLower(c.Label)] = c.Description
	}
	out := make([]domain.Category, 0, len(labels))
	for _, label := range labels {
		out = append(out, domain.Category{Label: label, Description: known[strings.ToLower(label)]})
	}
	return out
}

func overrideCriteria(preset []domain.Criterion, labels []string) []domain.Criterion {
	known := make(map[string]string, len(preset))
	for _, c := range preset {
		known[strings.ToLower(c.Label)] = c.Description
	}
	out := make([]domain.Criterion, 0, len(labels))
	for _, label := range labels {
		out = append(out, domain.Criterion{Label: label, Description: known[strings.ToLower(label)]})
	}
	return out
}
