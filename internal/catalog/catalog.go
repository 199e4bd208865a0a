package catalog

import (
	_ "embed"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/KoDakness/404syndicate-sub000/internal/core/domain"
)

//go:embed catalog.yaml
var defaultCatalog []byte

// File is the on-disk layout of a catalog.
type File struct {
	Jobs      []domain.JobTemplate       `yaml:"jobs"`
	Equipment []domain.EquipmentTemplate `yaml:"equipment"`
	Events    []domain.EventTemplate     `yaml:"events"`
}

// Catalog is an immutable set of templates.
type Catalog struct {
	jobs      []domain.JobTemplate
	equipment []domain.EquipmentTemplate
	events    []domain.EventTemplate
	byID      map[string]domain.EquipmentTemplate
}

// Load reads the catalog at path, or the embedded default when path is empty.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Parse(defaultCatalog)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog %s: %w", path, err)
	}
	return Parse(data)
}

// Default returns the embedded catalog.
func Default() *Catalog {
	c, err := Parse(defaultCatalog)
	if err != nil {
		panic(fmt.Sprintf("embedded catalog is invalid: %v", err))
	}
	return c
}

// Parse decodes and validates catalog YAML.
func Parse(data []byte) (*Catalog, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}
	if err := Validate(f); err != nil {
		return nil, err
	}
	c := &Catalog{
		jobs:      f.Jobs,
		equipment: f.Equipment,
		events:    f.Events,
		byID:      make(map[string]domain.EquipmentTemplate, len(f.Equipment)),
	}
	for _, e := range f.Equipment {
		c.byID[e.ID] = e
	}
	return c, nil
}

// Validate reports every problem found in f.
func Validate(f File) error {
	var errs []error
	seen := map[string]string{}
	dup := func(kind, id string) {
		if id == "" {
			errs = append(errs, fmt.Errorf("%s with empty id", kind))
			return
		}
		if prev, ok := seen[id]; ok {
			errs = append(errs, fmt.Errorf("duplicate id %q (%s and %s)", id, prev, kind))
			return
		}
		seen[id] = kind
	}

	validDifficulty := map[domain.Difficulty]bool{
		domain.DifficultyEasy: true, domain.DifficultyMedium: true, domain.DifficultyHard: true,
	}
	for _, j := range f.Jobs {
		dup("job", j.ID)
		if j.DurationMs < 0 {
			errs = append(errs, fmt.Errorf("job %s: negative duration", j.ID))
		}
		if j.Reward < 0 {
			errs = append(errs, fmt.Errorf("job %s: negative reward", j.ID))
		}
		if !validDifficulty[j.Difficulty] {
			errs = append(errs, fmt.Errorf("job %s: unknown difficulty %q", j.ID, j.Difficulty))
		}
		for skill := range j.SkillRequirements {
			if _, ok := domain.NewSkills().Level(skill); !ok {
				errs = append(errs, fmt.Errorf("job %s: unknown skill %q", j.ID, skill))
			}
		}
	}

	slotTypes := map[string]bool{}
	for _, e := range f.Equipment {
		if e.Category == domain.CategoryMotherboard {
			for _, s := range e.Slots {
				slotTypes[s] = true
			}
		}
	}
	for _, e := range f.Equipment {
		dup("equipment", e.ID)
		if e.Price < 0 {
			errs = append(errs, fmt.Errorf("equipment %s: negative price", e.ID))
		}
		switch e.Currency {
		case "", domain.CurrencyCredits, domain.CurrencyTorcoins, domain.CurrencyWraithcoins:
		default:
			errs = append(errs, fmt.Errorf("equipment %s: unknown currency %q", e.ID, e.Currency))
		}
		switch e.Category {
		case domain.CategoryBase:
		case domain.CategoryMotherboard:
			if len(e.Slots) == 0 {
				errs = append(errs, fmt.Errorf("motherboard %s: no slots", e.ID))
			}
		case domain.CategoryComponent:
			if !slotTypes[e.SlotType] {
				errs = append(errs, fmt.Errorf("component %s: no motherboard has a %q slot", e.ID, e.SlotType))
			}
		default:
			errs = append(errs, fmt.Errorf("equipment %s: unknown category %q", e.ID, e.Category))
		}
	}

	for _, ev := range f.Events {
		dup("event", ev.ID)
		if ev.Reward <= 0 {
			errs = append(errs, fmt.Errorf("event %s: reward must be positive", ev.ID))
		}
	}

	return errors.Join(errs...)
}

func (c *Catalog) Jobs() []domain.JobTemplate            { return c.jobs }
func (c *Catalog) Equipment() []domain.EquipmentTemplate { return c.equipment }
func (c *Catalog) Events() []domain.EventTemplate        { return c.events }

func (c *Catalog) FindEquipment(id string) (domain.EquipmentTemplate, bool) {
	e, ok := c.byID[id]
	return e, ok
}
