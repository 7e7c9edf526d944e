package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/park285/cheese-solo-chess/internal/obslog"
	yaml "gopkg.in/yaml.v3"
)

const (
	appDir  = "cheese-chess"
	cfgFile = appDir + "/config.yaml"
)

type InvalidConfig struct {
	err string
}

func (e *InvalidConfig) Error() string {
	return fmt.Sprintf("config error: %s", e.err)
}

type AppConfig struct {
	StockfishPath string        `yaml:"engine_path"`
	Strength      int           `yaml:"strength"`
	ThinkTime     time.Duration `yaml:"think_time"`
	HumanColor    string        `yaml:"human_color"`
	PieceSet      string        `yaml:"piece_set"`
	AssetDir      string        `yaml:"asset_dir"`
	MessageDir    string        `yaml:"message_dir"`
	HistoryLimit  int           `yaml:"history_limit"`
	SnapshotDir   string        `yaml:"snapshot_dir"`
	OpponentName  string        `yaml:"opponent_name"`

	RedisURL    string `yaml:"redis_url"`
	DatabaseURL string `yaml:"database_url"`

	Log obslog.LogConfig `yaml:"log"`

	// Source is the config file that was read, empty when none was found.
	Source string `yaml:"-"`
}

// Overrides carries command-line values. Zero values leave the loaded config alone.
type Overrides struct {
	EnginePath string
	Strength   int
	ThinkTime  time.Duration
	HumanColor string
	PieceSet   string
}

func Defaults() AppConfig {
	return AppConfig{
		StockfishPath: "stockfish",
		Strength:      1200,
		ThinkTime:     500 * time.Millisecond,
		HumanColor:    "white",
		PieceSet:      "classic",
		AssetDir:      filepath.Join(xdg.DataHome, appDir),
		HistoryLimit:  10,
		SnapshotDir:   filepath.Join(xdg.DataHome, appDir, "snapshots"),
		OpponentName:  "Stockfish",
		Log: obslog.LogConfig{
			Level:  "info",
			Format: "legacy",
			File:   filepath.Join(xdg.StateHome, appDir, appDir+".log"),
		},
	}
}

// Load reads defaults, then the YAML file at path (or the XDG config file when
// path is empty), then environment variables.
func Load(path string) (*AppConfig, error) {
	cfg := Defaults()

	path = strings.TrimSpace(path)
	if path == "" {
		if found, err := xdg.SearchConfigFile(cfgFile); err == nil {
			path = found
		}
	} else if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("config file: %w", err)
	}
	if path != "" {
		if err := readFile(path, &cfg); err != nil {
			return nil, err
		}
		cfg.Source = path
	}

	if err := applyEnv(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func readFile(path string, cfg *AppConfig) error {
	raw, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return &InvalidConfig{fmt.Sprintf("parse %s: %v", path, err)}
	}
	return nil
}

func applyEnv(cfg *AppConfig) error {
	if v := strings.TrimSpace(os.Getenv("STOCKFISH_PATH")); v != "" {
		cfg.StockfishPath = v
	}
	if v := strings.TrimSpace(os.Getenv("CHESS_DEFAULT_STRENGTH")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return &InvalidConfig{fmt.Sprintf("CHESS_DEFAULT_STRENGTH: %v", err)}
		}
		cfg.Strength = n
	}
	if v := strings.TrimSpace(os.Getenv("CHESS_THINK_TIME")); v != "" {
		d, err := parseThinkTime(v)
		if err != nil {
			return &InvalidConfig{fmt.Sprintf("CHESS_THINK_TIME: %v", err)}
		}
		cfg.ThinkTime = d
	}
	if v := strings.TrimSpace(os.Getenv("CHESS_HUMAN_COLOR")); v != "" {
		cfg.HumanColor = v
	}
	if v := strings.TrimSpace(os.Getenv("CHESS_PIECE_SET")); v != "" {
		cfg.PieceSet = v
	}
	if v := strings.TrimSpace(os.Getenv("CHESS_ASSET_DIR")); v != "" {
		cfg.AssetDir = v
	}
	if v := strings.TrimSpace(os.Getenv("CHESS_MESSAGE_DIR")); v != "" {
		cfg.MessageDir = v
	}
	if v := strings.TrimSpace(os.Getenv("CHESS_HISTORY_LIMIT")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.HistoryLimit = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("CHESS_SNAPSHOT_DIR")); v != "" {
		cfg.SnapshotDir = v
	}
	if v := strings.TrimSpace(os.Getenv("REDIS_URL")); v != "" {
		cfg.RedisURL = v
	}
	if v := strings.TrimSpace(os.Getenv("DATABASE_URL")); v != "" {
		cfg.DatabaseURL = v
	}

	if v := strings.TrimSpace(os.Getenv("LOG_LEVEL")); v != "" {
		cfg.Log.Level = v
	}
	if v := strings.TrimSpace(os.Getenv("LOG_FORMAT")); v != "" {
		cfg.Log.Format = v
	}
	if v := strings.TrimSpace(os.Getenv("LOG_FILE")); v != "" {
		cfg.Log.File = v
	}
	if v := strings.TrimSpace(os.Getenv("LOG_TO_CONSOLE")); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Log.Console = b
		}
	}
	if v := strings.TrimSpace(os.Getenv("LOG_CALLER")); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Log.Caller = b
		}
	}
	return nil
}

// parseThinkTime accepts Go durations ("500ms", "2s") and plain seconds ("0.5").
func parseThinkTime(v string) (time.Duration, error) {
	if d, err := time.ParseDuration(v); err == nil {
		return d, nil
	}
	secs, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q", v)
	}
	return time.Duration(secs * float64(time.Second)), nil
}

func (c *AppConfig) Apply(o Overrides) {
	if v := strings.TrimSpace(o.EnginePath); v != "" {
		c.StockfishPath = v
	}
	if o.Strength != 0 {
		c.Strength = o.Strength
	}
	if o.ThinkTime != 0 {
		c.ThinkTime = o.ThinkTime
	}
	if v := strings.TrimSpace(o.HumanColor); v != "" {
		c.HumanColor = v
	}
	if v := strings.TrimSpace(o.PieceSet); v != "" {
		c.PieceSet = v
	}
}

func (c *AppConfig) Validate() error {
	if strings.TrimSpace(c.StockfishPath) == "" {
		return &InvalidConfig{"engine path is required (STOCKFISH_PATH or -engine)"}
	}
	if c.Strength <= 0 {
		return &InvalidConfig{fmt.Sprintf("strength must be positive, got %d", c.Strength)}
	}
	if c.ThinkTime < time.Millisecond {
		return &InvalidConfig{fmt.Sprintf("think time must be at least 1ms, got %v", c.ThinkTime)}
	}
	switch strings.ToLower(strings.TrimSpace(c.HumanColor)) {
	case "white", "black", "w", "b":
	default:
		return &InvalidConfig{fmt.Sprintf("human colour must be white or black, got %q", c.HumanColor)}
	}
	if c.HistoryLimit <= 0 {
		return &InvalidConfig{fmt.Sprintf("history limit must be positive, got %d", c.HistoryLimit)}
	}
	return nil
}
