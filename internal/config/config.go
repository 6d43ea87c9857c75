package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dyluth/labyrinth/internal/explorer"
	"github.com/dyluth/labyrinth/internal/frontier"
	"github.com/redis/go-redis/v9"
	"gopkg.in/yaml.v3"
)

// Default values applied by Validate when a section or field is omitted
const (
	DefaultAgents   = 1
	DefaultPolicy   = "nearest"
	DefaultTimeout  = 10 * time.Second
	DefaultBackend  = "memory"
	DefaultRedisURL = "redis://localhost:6379"
)

// LabyrinthConfig represents the top-level labyrinth.yml configuration
type LabyrinthConfig struct {
	Version  string          `yaml:"version"`
	Maze     MazeConfig      `yaml:"maze"`
	Swarm    *SwarmConfig    `yaml:"swarm,omitempty"`
	Explorer *ExplorerConfig `yaml:"explorer,omitempty"`
	Store    *StoreConfig    `yaml:"store,omitempty"`
}

// MazeConfig says where the maze drawing comes from; exactly one field is set
type MazeConfig struct {
	File  string `yaml:"file,omitempty"`  // Path relative to the config file
	ASCII string `yaml:"ascii,omitempty"` // Inline drawing
}

// SwarmConfig specifies how many agents explore and how they pick frontiers
type SwarmConfig struct {
	Agents     int            `yaml:"agents"`                 // 0 or omitted: DefaultAgents
	Policy     string         `yaml:"policy,omitempty"`       // nearest or round_robin
	Timeout    *time.Duration `yaml:"timeout,omitempty"`      // 0s disables the deadline; Default: 10s
	StopOnExit *bool          `yaml:"stop_on_exit,omitempty"` // Default: true
}

// ExplorerConfig overrides explorer loop bounds; zero keeps the built-in default
type ExplorerConfig struct {
	MaxIterations       int           `yaml:"max_iterations,omitempty"`
	MaxNoProgressRounds int           `yaml:"max_no_progress_rounds,omitempty"`
	DoorAttempts        int           `yaml:"door_attempts,omitempty"`
	DoorBackoffInitial  time.Duration `yaml:"door_backoff_initial,omitempty"`
	DoorBackoffMax      time.Duration `yaml:"door_backoff_max,omitempty"`
}

// StoreConfig selects the discovered-map backend
type StoreConfig struct {
	Backend  string `yaml:"backend"`             // memory or redis
	RedisURL string `yaml:"redis_url,omitempty"` // Used when backend is redis
	Session  string `yaml:"session,omitempty"`   // Generated when empty
}

// Default returns a configuration exploring an inline maze with one agent.
func Default() *LabyrinthConfig {
	cfg := &LabyrinthConfig{Version: "1.0"}
	cfg.applyDefaults()
	return cfg
}

func (c *LabyrinthConfig) applyDefaults() {
	if c.Swarm == nil {
		c.Swarm = &SwarmConfig{}
	}
	if c.Swarm.Agents == 0 {
		c.Swarm.Agents = DefaultAgents
	}
	if c.Swarm.Policy == "" {
		c.Swarm.Policy = DefaultPolicy
	}
	if c.Swarm.Timeout == nil {
		timeout := DefaultTimeout
		c.Swarm.Timeout = &timeout
	}
	if c.Swarm.StopOnExit == nil {
		stop := true
		c.Swarm.StopOnExit = &stop
	}

	if c.Explorer == nil {
		c.Explorer = &ExplorerConfig{}
	}

	if c.Store == nil {
		c.Store = &StoreConfig{}
	}
	if c.Store.Backend == "" {
		c.Store.Backend = DefaultBackend
	}
	if c.Store.Backend == "redis" && c.Store.RedisURL == "" {
		c.Store.RedisURL = DefaultRedisURL
	}
}

// Validate performs strict validation on the configuration and applies defaults
func (c *LabyrinthConfig) Validate() error {
	// Required: version
	if c.Version != "1.0" {
		return fmt.Errorf("unsupported version: %s (expected: 1.0)", c.Version)
	}

	// Required: exactly one maze source
	if c.Maze.File == "" && c.Maze.ASCII == "" {
		return fmt.Errorf("maze: either file or ascii is required")
	}
	if c.Maze.File != "" && c.Maze.ASCII != "" {
		return fmt.Errorf("maze: file and ascii are mutually exclusive")
	}

	c.applyDefaults()

	if c.Swarm.Agents < 1 {
		return fmt.Errorf("swarm.agents must be >= 1, got %d", c.Swarm.Agents)
	}
	if _, err := frontier.ParsePolicy(c.Swarm.Policy); err != nil {
		return fmt.Errorf("swarm.policy: %w", err)
	}
	if *c.Swarm.Timeout < 0 {
		return fmt.Errorf("swarm.timeout must be >= 0, got %s", *c.Swarm.Timeout)
	}

	if err := c.Explorer.Validate(); err != nil {
		return err
	}
	return c.Store.Validate()
}

// Validate checks explorer overrides
func (e *ExplorerConfig) Validate() error {
	if e.MaxIterations < 0 || e.MaxNoProgressRounds < 0 || e.DoorAttempts < 0 {
		return fmt.Errorf("explorer: limits must be >= 0 (0 = default)")
	}
	if e.DoorBackoffInitial < 0 || e.DoorBackoffMax < 0 {
		return fmt.Errorf("explorer: door backoff durations must be >= 0")
	}
	if e.DoorBackoffInitial > 0 && e.DoorBackoffMax > 0 && e.DoorBackoffInitial > e.DoorBackoffMax {
		return fmt.Errorf("explorer: door_backoff_initial (%s) exceeds door_backoff_max (%s)", e.DoorBackoffInitial, e.DoorBackoffMax)
	}
	return nil
}

// Validate checks the store backend and its connection settings
func (s *StoreConfig) Validate() error {
	switch s.Backend {
	case "memory":
		return nil
	case "redis":
		if _, err := redis.ParseURL(s.RedisURL); err != nil {
			return fmt.Errorf("store.redis_url: %w", err)
		}
		return nil
	}
	return fmt.Errorf("invalid store.backend: %s (must be 'memory' or 'redis')", s.Backend)
}

// RedisOptions parses the configured Redis URL.
func (s *StoreConfig) RedisOptions() (*redis.Options, error) {
	opts, err := redis.ParseURL(s.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}
	return opts, nil
}

// Policy returns the parsed frontier policy.
func (c *LabyrinthConfig) Policy() frontier.Policy {
	p, _ := frontier.ParsePolicy(c.Swarm.Policy)
	return p
}

// Deadline returns the swarm timeout; zero means none.
func (c *LabyrinthConfig) Deadline() time.Duration {
	if c.Swarm == nil || c.Swarm.Timeout == nil {
		return DefaultTimeout
	}
	return *c.Swarm.Timeout
}

// ExplorerLimits converts the explorer section into explorer limits.
func (c *LabyrinthConfig) ExplorerLimits() explorer.Limits {
	l := explorer.Limits{}
	if c.Explorer != nil {
		l.MaxIterations = c.Explorer.MaxIterations
		l.MaxNoProgressRounds = c.Explorer.MaxNoProgressRounds
		l.DoorAttempts = c.Explorer.DoorAttempts
		l.DoorBackoffInitial = c.Explorer.DoorBackoffInitial
		l.DoorBackoffMax = c.Explorer.DoorBackoffMax
	}
	return l.WithDefaults()
}

// MazeSource returns the maze drawing, reading maze.file relative to baseDir.
func (c *LabyrinthConfig) MazeSource(baseDir string) (string, error) {
	if c.Maze.ASCII != "" {
		return c.Maze.ASCII, nil
	}
	path := c.Maze.File
	if !filepath.IsAbs(path) {
		path = filepath.Join(baseDir, path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read maze file: %w", err)
	}
	return string(data), nil
}

// Load reads and validates labyrinth.yml from the specified path
func Load(path string) (*LabyrinthConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var config LabyrinthConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}
