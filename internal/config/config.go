// Package config loads the YAML configuration of the savestate demo and its
// components.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/klauspost/compress/zstd"
	"gopkg.in/yaml.v3"

	"github.com/zeusync/savestate/internal/core/observability/log"
)

var ErrInvalid = errors.New("config: invalid")

type Config struct {
	Log    LogConfig    `yaml:"log"`
	Sim    SimConfig    `yaml:"sim"`
	Rewind RewindConfig `yaml:"rewind"`
	Slots  SlotsConfig  `yaml:"slots"`
	Demo   DemoConfig   `yaml:"demo"`
}

type LogConfig struct {
	Level       string   `yaml:"level"`
	Encoding    string   `yaml:"encoding"`
	Development bool     `yaml:"development"`
	OutputPaths []string `yaml:"output_paths,omitempty"`
}

type SimConfig struct {
	TickRate     int           `yaml:"tick_rate"`
	Seed         uint64        `yaml:"seed"`
	WaveInterval time.Duration `yaml:"wave_interval"`
	ArenaSize    float64       `yaml:"arena_size"`
}

type RewindConfig struct {
	MaxFrames int           `yaml:"max_frames"`
	MaxAge    time.Duration `yaml:"max_age"`
	KeepClock bool          `yaml:"keep_clock"`
}

const (
	BackendFile  = "file"
	BackendRedis = "redis"
)

type SlotsConfig struct {
	Backend     string      `yaml:"backend"`
	Dir         string      `yaml:"dir"`
	Version     string      `yaml:"version"`
	Compression string      `yaml:"compression"`
	Workers     int         `yaml:"workers"`
	ShiftClock  bool        `yaml:"shift_clock"`
	Redis       RedisConfig `yaml:"redis"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"`
}

// DemoConfig drives cmd/savestate.
type DemoConfig struct {
	Ticks     int    `yaml:"ticks"`
	StepBack  int    `yaml:"step_back"`
	Slot      string `yaml:"slot"`
	VerifyRun bool   `yaml:"verify_replay"`
}

func Default() Config {
	return Config{
		Log: LogConfig{Level: "info", Encoding: "console", Development: true},
		Sim: SimConfig{
			TickRate:     60,
			Seed:         1,
			WaveInterval: 2 * time.Second,
			ArenaSize:    20,
		},
		Rewind: RewindConfig{MaxFrames: 600},
		Slots: SlotsConfig{
			Backend:     BackendFile,
			Dir:         "saves",
			Version:     "1",
			Compression: "default",
			Workers:     2,
			Redis:       RedisConfig{Addr: "localhost:6379", Prefix: "savestate:"},
		},
		Demo: DemoConfig{Ticks: 600, StepBack: 30, Slot: "quicksave", VerifyRun: true},
	}
}

// Load reads path on top of Default. A missing file is an error.
func Load(path string) (Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	defer f.Close()
	return Decode(f)
}

// Decode reads YAML on top of Default and validates the result. Unknown keys
// are rejected.
func Decode(r io.Reader) (Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	var errs []error
	bad := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalid}, args...)...))
	}

	if _, ok := log.ParseLevel(c.Log.Level); !ok {
		bad("log.level %q", c.Log.Level)
	}
	if c.Log.Encoding != "json" && c.Log.Encoding != "console" {
		bad("log.encoding %q", c.Log.Encoding)
	}
	if c.Sim.TickRate <= 0 {
		bad("sim.tick_rate must be positive")
	}
	if c.Sim.WaveInterval <= 0 {
		bad("sim.wave_interval must be positive")
	}
	if c.Sim.ArenaSize <= 0 {
		bad("sim.arena_size must be positive")
	}
	if c.Rewind.MaxFrames < 0 || c.Rewind.MaxAge < 0 {
		bad("rewind limits must not be negative")
	}
	switch c.Slots.Backend {
	case BackendFile:
		if c.Slots.Dir == "" {
			bad("slots.dir is required for the file backend")
		}
	case BackendRedis:
		if c.Slots.Redis.Addr == "" {
			bad("slots.redis.addr is required for the redis backend")
		}
	default:
		bad("slots.backend %q", c.Slots.Backend)
	}
	if c.Slots.Version == "" {
		bad("slots.version is required")
	}
	if _, err := c.Slots.EncoderLevel(); err != nil {
		errs = append(errs, err)
	}
	if c.Demo.Ticks < 0 || c.Demo.StepBack < 0 {
		bad("demo counts must not be negative")
	}
	return errors.Join(errs...)
}

// EncoderLevel maps the compression name to a zstd level.
func (s SlotsConfig) EncoderLevel() (zstd.EncoderLevel, error) {
	ok, level := zstd.EncoderLevelFromString(s.Compression)
	if !ok {
		return 0, fmt.Errorf("%w: slots.compression %q", ErrInvalid, s.Compression)
	}
	return level, nil
}

// LogOptions converts the log section. Validate must have passed.
func (c LogConfig) LogOptions() log.Options {
	level, _ := log.ParseLevel(c.Level)
	return log.Options{
		Level:       level,
		Encoding:    c.Encoding,
		Development: c.Development,
		OutputPaths: c.OutputPaths,
	}
}
