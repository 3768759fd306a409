package world

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"kiln/server/internal/actor"
)

const (
	DefaultSeed     = "prototype"
	DefaultWidth    = 40.0
	DefaultHeight   = 40.0
	DefaultCellSize = 1.0
)

// Config describes one scenario: world extent, grid resolution, obstacle and
// agent population, and control tuning. It is authored as YAML and validated
// at startup.
type Config struct {
	Seed     string  `json:"seed" yaml:"seed" jsonschema:"description=Root seed for every deterministic RNG stream"`
	Width    float64 `json:"width" yaml:"width" jsonschema:"description=World extent along X in world units"`
	Height   float64 `json:"height" yaml:"height" jsonschema:"description=World extent along Y in world units"`
	CellSize float64 `json:"cellSize" yaml:"cellSize" jsonschema:"description=Occupancy grid cell size in world units"`
	Inflate  float64 `json:"inflate" yaml:"inflate" jsonschema:"description=Obstacle inflation radius applied when rasterizing the grid"`

	Obstacles     bool `json:"obstacles" yaml:"obstacles" jsonschema:"description=Whether to scatter static obstacles"`
	ObstacleCount int  `json:"obstacleCount" yaml:"obstacleCount" jsonschema:"description=Number of obstacles to place"`

	Car      bool `json:"car" yaml:"car" jsonschema:"description=Whether to spawn the controllable car"`
	NPCCount int  `json:"npcCount" yaml:"npcCount" jsonschema:"description=Number of roaming NPC agents"`

	ControlMode string  `json:"controlMode" yaml:"controlMode" jsonschema:"description=Actuation mode for every agent,enum=kinematic,enum=force_torque"`
	MinForce    float64 `json:"minForce" yaml:"minForce" jsonschema:"description=Minimum contact force for collision events; 0 disables force filtering"`
}

// DefaultConfig is a small origin-centered scenario with a car and a handful
// of roaming NPCs.
func DefaultConfig() Config {
	return Config{
		Seed:          DefaultSeed,
		Width:         DefaultWidth,
		Height:        DefaultHeight,
		CellSize:      DefaultCellSize,
		Inflate:       0.5,
		Obstacles:     true,
		ObstacleCount: 12,
		Car:           true,
		NPCCount:      4,
		ControlMode:   string(actor.ModeKinematic),
		MinForce:      0,
	}
}

func (cfg Config) normalized() Config {
	normalized := cfg
	normalized.Seed = strings.TrimSpace(normalized.Seed)
	if normalized.Seed == "" {
		normalized.Seed = DefaultSeed
	}
	if normalized.Width <= 0 {
		normalized.Width = DefaultWidth
	}
	if normalized.Height <= 0 {
		normalized.Height = DefaultHeight
	}
	if normalized.CellSize <= 0 {
		normalized.CellSize = DefaultCellSize
	}
	if normalized.Inflate < 0 {
		normalized.Inflate = 0
	}
	if normalized.ObstacleCount < 0 {
		normalized.ObstacleCount = 0
	}
	if normalized.NPCCount < 0 {
		normalized.NPCCount = 0
	}
	if normalized.ControlMode == "" {
		normalized.ControlMode = string(actor.ModeKinematic)
	}
	if normalized.MinForce < 0 {
		normalized.MinForce = 0
	}
	return normalized
}

// Normalized fills defaults without validating.
func (cfg Config) Normalized() Config {
	return cfg.normalized()
}

// Validate rejects configuration the world constructor must not accept.
func (cfg Config) Validate() error {
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return fmt.Errorf("world extent must be positive, got %vx%v", cfg.Width, cfg.Height)
	}
	if cfg.CellSize <= 0 {
		return fmt.Errorf("cell size must be > 0, got %v", cfg.CellSize)
	}
	if _, err := actor.ParseControlMode(cfg.ControlMode); err != nil {
		return err
	}
	return nil
}

// LoadConfig reads a YAML scenario file, fills defaults, and validates.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg = cfg.normalized()
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}
