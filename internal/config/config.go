package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// WorldServer holds all configuration for the world simulation server.
type WorldServer struct {
	// Logging
	LogLevel string `yaml:"log_level"` // debug, info, warn, error

	// Database
	Database DatabaseConfig `yaml:"database"`

	// Static data registries
	DataDir string `yaml:"data_dir"`

	// Combat policies
	Combat CombatConfig `yaml:"combat"`

	// Loot policies
	Loot LootConfig `yaml:"loot"`

	// Duel policies
	Duel DuelConfig `yaml:"duel"`
}

// DatabaseConfig holds PostgreSQL connection parameters.
type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
	SSLMode  string `yaml:"sslmode"`
}

// DSN returns the PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

// CombatConfig holds kill-credit policy knobs.
type CombatConfig struct {
	// MinSharePercent is the assist floor: any attacker on the ledger
	// receives at least this share of the reward, remaining shares are
	// rescaled.
	MinSharePercent int `yaml:"min_share_percent"`

	// MailboxBuffer is the per-creature command queue depth.
	MailboxBuffer int `yaml:"mailbox_buffer"`
}

// LootConfig holds loot generation and roll-session policy knobs.
type LootConfig struct {
	// DropChanceMultiplier scales per-entry drop chance.
	DropChanceMultiplier float64 `yaml:"drop_chance_multiplier"`

	// DropAmountMultiplier scales dropped item quantity.
	DropAmountMultiplier float64 `yaml:"drop_amount_multiplier"`

	// RollTimeoutSeconds bounds a need/greed roll session; unresolved
	// slots auto-pass at expiry.
	RollTimeoutSeconds int `yaml:"roll_timeout_seconds"`
}

// DuelConfig holds duel protocol timing knobs.
type DuelConfig struct {
	CountdownSeconds      int `yaml:"countdown_seconds"`
	RequestTimeoutSeconds int `yaml:"request_timeout_seconds"`
	MaxDurationSeconds    int `yaml:"max_duration_seconds"`
	ArenaRadius           int `yaml:"arena_radius"`
}

// DefaultWorldServer returns WorldServer config with sensible defaults.
func DefaultWorldServer() WorldServer {
	return WorldServer{
		LogLevel: "info",
		DataDir:  "data",
		Database: DatabaseConfig{
			Host:     "127.0.0.1",
			Port:     5432,
			User:     "worldserver",
			Password: "worldserver",
			DBName:   "worldserver",
			SSLMode:  "disable",
		},
		Combat: CombatConfig{
			MinSharePercent: 10,
			MailboxBuffer:   64,
		},
		Loot: LootConfig{
			DropChanceMultiplier: 1.0,
			DropAmountMultiplier: 1.0,
			RollTimeoutSeconds:   60,
		},
		Duel: DuelConfig{
			CountdownSeconds:      5,
			RequestTimeoutSeconds: 30,
			MaxDurationSeconds:    120,
			ArenaRadius:           1600,
		},
	}
}

// LoadWorldServer loads world server config from a YAML file.
// If the file doesn't exist, returns defaults.
func LoadWorldServer(path string) (WorldServer, error) {
	cfg := DefaultWorldServer()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config %s: %w", path, err)
	}

	return cfg, nil
}
