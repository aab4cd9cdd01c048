package data

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Registry holds the immutable static game data the combat core looks
// up: spell, creature and loot-table definitions. It is built once at
// startup and read concurrently without locking afterwards.
type Registry struct {
	spells     map[int32]*SpellDef
	creatures  map[int32]*CreatureDef
	lootTables map[int32]*LootTableDef
}

// NewRegistry builds a registry from already-parsed definitions.
// Used by tests and by Load.
func NewRegistry(spells []SpellDef, creatures []CreatureDef, tables []LootTableDef) *Registry {
	r := &Registry{
		spells:     make(map[int32]*SpellDef, len(spells)),
		creatures:  make(map[int32]*CreatureDef, len(creatures)),
		lootTables: make(map[int32]*LootTableDef, len(tables)),
	}
	for i := range spells {
		r.spells[spells[i].ID] = &spells[i]
	}
	for i := range creatures {
		r.creatures[creatures[i].TemplateID] = &creatures[i]
	}
	for i := range tables {
		r.lootTables[tables[i].ID] = &tables[i]
	}
	return r
}

// Spell returns the spell definition for id, nil if unknown.
func (r *Registry) Spell(id int32) *SpellDef { return r.spells[id] }

// Creature returns the creature template for id, nil if unknown.
func (r *Registry) Creature(templateID int32) *CreatureDef { return r.creatures[templateID] }

// LootTable returns the loot table for id, nil if unknown.
func (r *Registry) LootTable(id int32) *LootTableDef { return r.lootTables[id] }

// SpellCount returns the number of loaded spells.
func (r *Registry) SpellCount() int { return len(r.spells) }

// Load reads spells.yaml, creatures.yaml and loot_tables.yaml from dir.
// A missing file loads as empty; a malformed file is an error.
func Load(dir string) (*Registry, error) {
	var spells []SpellDef
	if err := loadYAML(filepath.Join(dir, "spells.yaml"), &spells); err != nil {
		return nil, fmt.Errorf("loading spells: %w", err)
	}

	var creatures []CreatureDef
	if err := loadYAML(filepath.Join(dir, "creatures.yaml"), &creatures); err != nil {
		return nil, fmt.Errorf("loading creatures: %w", err)
	}

	var tables []LootTableDef
	if err := loadYAML(filepath.Join(dir, "loot_tables.yaml"), &tables); err != nil {
		return nil, fmt.Errorf("loading loot tables: %w", err)
	}

	return NewRegistry(spells, creatures, tables), nil
}

func loadYAML(path string, out any) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("reading %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	return nil
}
