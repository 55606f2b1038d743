// Package catalog loads the static dungeon and preset task definitions
// bundled with the application. Definitions are decoded and validated
// once at load; lookups after that are infallible except for unknown
// names.
package catalog

import (
	"embed"
	"errors"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/IntricEight/MentalHealthDungeon/internal/domain"
)

//go:embed data/dungeons.yaml data/preset_tasks.yaml
var defaultsFS embed.FS

// DefaultDungeonName is the dungeon selected when an account has not
// picked one yet.
const DefaultDungeonName = "Dark Cave"

// ErrDefinitionNotFound is returned when no dungeon or preset matches
// the requested name.
var ErrDefinitionNotFound = errors.New("no definition was found with that name")

// Catalog holds the loaded, validated definitions.
type Catalog struct {
	dungeons []domain.Dungeon
	presets  []domain.PresetTask
}

type dungeonsFile struct {
	Dungeons []struct {
		ID          int      `yaml:"id"`
		Name        string   `yaml:"name"`
		Description string   `yaml:"description"`
		ImageNames  []string `yaml:"image_names"`
		Cost        int      `yaml:"cost"`
		Hours       float64  `yaml:"hours"`
		Rewards     []struct {
			Item  string `yaml:"item"`
			Value int    `yaml:"value"`
		} `yaml:"rewards"`
	} `yaml:"dungeons"`
}

type presetsFile struct {
	Presets []struct {
		ID      int     `yaml:"id"`
		Name    string  `yaml:"name"`
		Details string  `yaml:"details"`
		Points  int     `yaml:"points"`
		Hours   float64 `yaml:"hours"`
	} `yaml:"presets"`
}

// Default loads the catalog bundled with the binary.
func Default() (*Catalog, error) {
	dungeonData, err := defaultsFS.ReadFile("data/dungeons.yaml")
	if err != nil {
		return nil, err
	}
	presetData, err := defaultsFS.ReadFile("data/preset_tasks.yaml")
	if err != nil {
		return nil, err
	}
	return FromYAML(dungeonData, presetData)
}

// FromFiles loads a catalog from external definition files, for
// overriding the bundled content.
func FromFiles(dungeonPath, presetPath string) (*Catalog, error) {
	dungeonData, err := os.ReadFile(dungeonPath)
	if err != nil {
		return nil, err
	}
	presetData, err := os.ReadFile(presetPath)
	if err != nil {
		return nil, err
	}
	return FromYAML(dungeonData, presetData)
}

// FromYAML decodes and validates raw definition data. Reward tags are
// resolved here so unknown kinds surface at load time, not at use time.
func FromYAML(dungeonData, presetData []byte) (*Catalog, error) {
	var df dungeonsFile
	if err := yaml.Unmarshal(dungeonData, &df); err != nil {
		return nil, fmt.Errorf("decode dungeon catalog: %w", err)
	}
	var pf presetsFile
	if err := yaml.Unmarshal(presetData, &pf); err != nil {
		return nil, fmt.Errorf("decode preset catalog: %w", err)
	}

	c := &Catalog{}
	seen := map[string]bool{}
	for _, d := range df.Dungeons {
		if d.Name == "" {
			return nil, fmt.Errorf("dungeon %d has no name", d.ID)
		}
		if seen[d.Name] {
			return nil, fmt.Errorf("duplicate dungeon name %q", d.Name)
		}
		seen[d.Name] = true
		if d.Cost < 0 {
			return nil, fmt.Errorf("dungeon %q has negative cost", d.Name)
		}
		if d.Hours <= 0 {
			return nil, fmt.Errorf("dungeon %q has non-positive duration", d.Name)
		}
		dungeon := domain.Dungeon{
			ID:          d.ID,
			Name:        d.Name,
			Description: d.Description,
			ImageNames:  d.ImageNames,
			Cost:        d.Cost,
			Hours:       d.Hours,
		}
		for _, r := range d.Rewards {
			dungeon.Rewards = append(dungeon.Rewards, domain.ParseReward(r.Item, r.Value))
		}
		c.dungeons = append(c.dungeons, dungeon)
	}

	seen = map[string]bool{}
	for _, p := range pf.Presets {
		if p.Name == "" {
			return nil, fmt.Errorf("preset %d has no name", p.ID)
		}
		if seen[p.Name] {
			return nil, fmt.Errorf("duplicate preset name %q", p.Name)
		}
		seen[p.Name] = true
		c.presets = append(c.presets, domain.PresetTask{
			ID:      p.ID,
			Name:    p.Name,
			Details: p.Details,
			Points:  p.Points,
			Hours:   p.Hours,
		})
	}

	sort.Slice(c.dungeons, func(i, j int) bool { return c.dungeons[i].ID < c.dungeons[j].ID })
	sort.Slice(c.presets, func(i, j int) bool { return c.presets[i].ID < c.presets[j].ID })
	return c, nil
}

// Dungeons lists all dungeon definitions, sorted by id ascending.
func (c *Catalog) Dungeons() []domain.Dungeon {
	out := make([]domain.Dungeon, len(c.dungeons))
	copy(out, c.dungeons)
	return out
}

// Presets lists all preset task definitions, sorted by id ascending.
func (c *Catalog) Presets() []domain.PresetTask {
	out := make([]domain.PresetTask, len(c.presets))
	copy(out, c.presets)
	return out
}

// DungeonByName looks up a dungeon definition.
func (c *Catalog) DungeonByName(name string) (domain.Dungeon, error) {
	for _, d := range c.dungeons {
		if d.Name == name {
			return d, nil
		}
	}
	return domain.Dungeon{}, fmt.Errorf("dungeon %q: %w", name, ErrDefinitionNotFound)
}

// PresetByName looks up a preset task definition.
func (c *Catalog) PresetByName(name string) (domain.PresetTask, error) {
	for _, p := range c.presets {
		if p.Name == name {
			return p, nil
		}
	}
	return domain.PresetTask{}, fmt.Errorf("preset %q: %w", name, ErrDefinitionNotFound)
}
