package server

import (
	"fmt"
	"os"
	"time"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"

	"github.com/lox/doudizhu/internal/game"
)

// Config is the complete server configuration.
type Config struct {
	Server   ServerSettings  `hcl:"server,block"`
	Game     GameSettings    `hcl:"game,block"`
	Profiles ProfileSettings `hcl:"profiles,block"`
}

// ServerSettings contains listener-level configuration.
type ServerSettings struct {
	Addr     string `hcl:"addr,optional"`
	LogLevel string `hcl:"log_level,optional"`
}

// GameSettings contains the tick and countdown knobs, all in milliseconds,
// plus the scoring bases.
type GameSettings struct {
	TickMS         int `hcl:"tick_ms,optional"`
	WaitTimeMS     int `hcl:"wait_time_ms,optional"`
	AIDelayMS      int `hcl:"ai_delay_ms,optional"`
	IdleTimeoutMS  int `hcl:"idle_timeout_ms,optional"`
	SessionGraceMS int `hcl:"session_grace_ms,optional"`
	BaseScore      int `hcl:"base_score,optional"`
	BaseGold       int `hcl:"base_gold,optional"`
}

// ProfileSettings locates the persistent profile store.
type ProfileSettings struct {
	Dir string `hcl:"dir,optional"`
}

// DefaultConfig returns the configuration used when no file is present.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerSettings{
			Addr:     "localhost:9339",
			LogLevel: "info",
		},
		Game: GameSettings{
			TickMS:         50,
			WaitTimeMS:     30000,
			AIDelayMS:      2000,
			IdleTimeoutMS:  90000,
			SessionGraceMS: 60000,
			BaseScore:      10,
			BaseGold:       100,
		},
		Profiles: ProfileSettings{
			Dir: "profiles",
		},
	}
}

// LoadConfig loads configuration from an HCL file, falling back to defaults
// when the file does not exist.
func LoadConfig(filename string) (*Config, error) {
	if _, err := os.Stat(filename); os.IsNotExist(err) {
		return DefaultConfig(), nil
	}

	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL file: %s", diags.Error())
	}

	var cfg Config
	diags = gohcl.DecodeBody(file.Body, nil, &cfg)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode HCL: %s", diags.Error())
	}

	def := DefaultConfig()
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = def.Server.Addr
	}
	if cfg.Server.LogLevel == "" {
		cfg.Server.LogLevel = def.Server.LogLevel
	}
	if cfg.Game.TickMS == 0 {
		cfg.Game.TickMS = def.Game.TickMS
	}
	if cfg.Game.WaitTimeMS == 0 {
		cfg.Game.WaitTimeMS = def.Game.WaitTimeMS
	}
	if cfg.Game.AIDelayMS == 0 {
		cfg.Game.AIDelayMS = def.Game.AIDelayMS
	}
	if cfg.Game.IdleTimeoutMS == 0 {
		cfg.Game.IdleTimeoutMS = def.Game.IdleTimeoutMS
	}
	if cfg.Game.SessionGraceMS == 0 {
		cfg.Game.SessionGraceMS = def.Game.SessionGraceMS
	}
	if cfg.Game.BaseScore == 0 {
		cfg.Game.BaseScore = def.Game.BaseScore
	}
	if cfg.Game.BaseGold == 0 {
		cfg.Game.BaseGold = def.Game.BaseGold
	}
	if cfg.Profiles.Dir == "" {
		cfg.Profiles.Dir = def.Profiles.Dir
	}

	return &cfg, nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("server addr must be set")
	}
	if c.Game.TickMS <= 0 {
		return fmt.Errorf("tick_ms must be positive")
	}
	if c.Game.WaitTimeMS <= 0 || c.Game.IdleTimeoutMS <= 0 || c.Game.SessionGraceMS <= 0 {
		return fmt.Errorf("countdowns must be positive")
	}
	if c.Game.BaseScore <= 0 || c.Game.BaseGold <= 0 {
		return fmt.Errorf("base_score and base_gold must be positive")
	}
	return nil
}

// Tick returns the game tick interval.
func (c *Config) Tick() time.Duration {
	return time.Duration(c.Game.TickMS) * time.Millisecond
}

// IdleTimeout returns the session idle countdown.
func (c *Config) IdleTimeout() time.Duration {
	return time.Duration(c.Game.IdleTimeoutMS) * time.Millisecond
}

// SessionGrace returns how long a session outlives a lost connection.
func (c *Config) SessionGrace() time.Duration {
	return time.Duration(c.Game.SessionGraceMS) * time.Millisecond
}

// Rules converts the game settings into the seat machine's rule set.
func (c *Config) Rules() game.Rules {
	return game.Rules{
		WaitTime:  time.Duration(c.Game.WaitTimeMS) * time.Millisecond,
		AIDelay:   time.Duration(c.Game.AIDelayMS) * time.Millisecond,
		BaseScore: int32(c.Game.BaseScore),
		BaseGold:  int32(c.Game.BaseGold),
	}
}
