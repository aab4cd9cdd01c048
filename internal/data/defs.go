package data

import "github.com/arkadianet/worldserver/internal/model"

// TargetType describes what a spell may legally be cast on.
type TargetType string

const (
	TargetSelf   TargetType = "self"
	TargetEnemy  TargetType = "enemy"
	TargetAlly   TargetType = "ally"
	TargetGround TargetType = "ground"
	TargetArea   TargetType = "area"
)

// StackRule describes what happens when the same spell is re-applied to
// the same target while its effect is still active.
type StackRule string

const (
	StackRefresh     StackRule = "refresh"     // reset remaining duration
	StackIndependent StackRule = "independent" // both instances run
	StackReject      StackRule = "reject"      // re-application rejected
)

// EffectDef is one effect a spell produces on resolution.
// DurationMs 0 means instant; TickMs > 0 means periodic.
type EffectDef struct {
	Kind       string    `yaml:"kind"` // damage, heal, dot, hot, stat
	Magnitude  int32     `yaml:"magnitude"`
	DurationMs int32     `yaml:"duration_ms"`
	TickMs     int32     `yaml:"tick_ms"`
	Stat       string    `yaml:"stat"` // for stat modifiers
	Stacking   StackRule `yaml:"stacking"`
}

// SpellDef is a static spell template.
type SpellDef struct {
	ID         int32       `yaml:"id"`
	Name       string      `yaml:"name"`
	Target     TargetType  `yaml:"target"`
	CastTimeMs int32       `yaml:"cast_time_ms"` // 0 = instant
	CooldownMs int32       `yaml:"cooldown_ms"`
	RangeUnits int32       `yaml:"range_units"`
	Effects    []EffectDef `yaml:"effects"`
}

// IsInstant reports whether the spell resolves without a cast bar.
func (s *SpellDef) IsInstant() bool { return s.CastTimeMs <= 0 }

// CreatureDef is a static creature template.
type CreatureDef struct {
	TemplateID  int32  `yaml:"template_id"`
	Name        string `yaml:"name"`
	Level       int32  `yaml:"level"`
	MaxHealth   int32  `yaml:"max_health"`
	Power       int32  `yaml:"power"`
	Armor       int32  `yaml:"armor"`
	LootTableID int32  `yaml:"loot_table_id"`
}

// Stats converts the template's flat values to a stat block.
func (c *CreatureDef) Stats() model.StatBlock {
	return model.StatBlock{Power: c.Power, Armor: c.Armor}
}

// LootEntry is one row of a loot table: independent drop chance and a
// quantity range.
type LootEntry struct {
	ItemID   int32   `yaml:"item_id"`
	Chance   float64 `yaml:"chance"` // percent, 0-100
	MinCount int32   `yaml:"min_count"`
	MaxCount int32   `yaml:"max_count"`
}

// LootTableDef is a static loot table.
type LootTableDef struct {
	ID      int32       `yaml:"id"`
	Entries []LootEntry `yaml:"entries"`
}
