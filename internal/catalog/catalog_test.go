package catalog_test

import (
	"errors"
	"sort"
	"testing"

	"github.com/IntricEight/MentalHealthDungeon/internal/catalog"
	"github.com/IntricEight/MentalHealthDungeon/internal/domain"
)

func TestDefaultCatalogLoads(t *testing.T) {
	c, err := catalog.Default()
	if err != nil {
		t.Fatalf("load default catalog: %v", err)
	}
	if len(c.Dungeons()) == 0 || len(c.Presets()) == 0 {
		t.Fatalf("default catalog is empty")
	}
	if _, err := c.DungeonByName(catalog.DefaultDungeonName); err != nil {
		t.Fatalf("default dungeon missing: %v", err)
	}
}

func TestListingsSortedByID(t *testing.T) {
	c, err := catalog.Default()
	if err != nil {
		t.Fatal(err)
	}
	dungeons := c.Dungeons()
	if !sort.SliceIsSorted(dungeons, func(i, j int) bool { return dungeons[i].ID < dungeons[j].ID }) {
		t.Fatalf("dungeons not sorted by id")
	}
	presets := c.Presets()
	if !sort.SliceIsSorted(presets, func(i, j int) bool { return presets[i].ID < presets[j].ID }) {
		t.Fatalf("presets not sorted by id")
	}
}

func TestLookupNotFound(t *testing.T) {
	c, err := catalog.Default()
	if err != nil {
		t.Fatal(err)
	}
	if _, err := c.DungeonByName("Bottomless Pit"); !errors.Is(err, catalog.ErrDefinitionNotFound) {
		t.Fatalf("dungeon lookup err = %v, want ErrDefinitionNotFound", err)
	}
	if _, err := c.PresetByName("Slay the dragon"); !errors.Is(err, catalog.ErrDefinitionNotFound) {
		t.Fatalf("preset lookup err = %v, want ErrDefinitionNotFound", err)
	}
}

func TestRewardKindsResolvedAtLoad(t *testing.T) {
	dungeonData := []byte(`
dungeons:
  - id: 1
    name: Test Hall
    cost: 5
    hours: 1
    rewards:
      - item: ipMaxIncrease
        value: 5
      - item: mysteryChest
        value: 1
`)
	c, err := catalog.FromYAML(dungeonData, []byte("presets: []"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	d, err := c.DungeonByName("Test Hall")
	if err != nil {
		t.Fatal(err)
	}
	if d.Rewards[0].Kind != domain.RewardIPMaxIncrease {
		t.Fatalf("known reward kind = %q", d.Rewards[0].Kind)
	}
	if d.Rewards[1].Kind != domain.RewardUnknown || d.Rewards[1].Raw != "mysteryChest" {
		t.Fatalf("unknown reward not preserved: %+v", d.Rewards[1])
	}
}

func TestMalformedCatalogRejected(t *testing.T) {
	if _, err := catalog.FromYAML([]byte("dungeons: {not: a list}"), []byte("presets: []")); err == nil {
		t.Fatalf("expected decode error")
	}
	bad := []byte(`
dungeons:
  - id: 1
    name: Free Lunch
    cost: 5
    hours: 0
`)
	if _, err := catalog.FromYAML(bad, []byte("presets: []")); err == nil {
		t.Fatalf("expected validation error for zero duration")
	}
	dup := []byte(`
dungeons:
  - {id: 1, name: Twin, cost: 1, hours: 1}
  - {id: 2, name: Twin, cost: 2, hours: 2}
`)
	if _, err := catalog.FromYAML(dup, []byte("presets: []")); err == nil {
		t.Fatalf("expected duplicate name error")
	}
}
