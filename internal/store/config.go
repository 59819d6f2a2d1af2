package store

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
	_ "time/tzdata"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Symbol string `yaml:"symbol"`
	Paths  struct {
		DataDir         string `yaml:"data_dir"`
		Playbook        string `yaml:"playbook"`
		PlaybookHistory string `yaml:"playbook_history"`
		Sessions        string `yaml:"sessions"`
		Reflections     string `yaml:"reflections"`
		Cache           string `yaml:"cache"`
	} `yaml:"paths"`
	LLM struct {
		Provider           string  `yaml:"provider"`
		GeneratorModel     string  `yaml:"generator_model"`
		ReflectorModel     string  `yaml:"reflector_model"`
		MaxTokens          int     `yaml:"max_tokens"`
		ReflectorMaxTokens int     `yaml:"reflector_max_tokens"`
		Temperature        float32 `yaml:"temperature"`
		TimeoutSeconds     int     `yaml:"timeout_seconds"`
		Endpoint           string  `yaml:"endpoint"`
	} `yaml:"llm"`
	Simulation struct {
		Mode            string  `yaml:"mode"`
		SessionStartUTC string  `yaml:"session_start_utc"`
		SessionHours    int     `yaml:"session_hours"`
		Interval        string  `yaml:"interval"`
		PipMultiplier   float64 `yaml:"pip_multiplier"`
		USDPerPip       float64 `yaml:"usd_per_pip"`
	} `yaml:"simulation"`
	Market struct {
		Source             string            `yaml:"source"`
		SymbolMap          map[string]string `yaml:"symbol_map"`
		Intermarket        map[string]string `yaml:"intermarket"`
		KiteInstruments    map[string]int    `yaml:"kite_instruments"`
		CacheTTLHours      int               `yaml:"cache_ttl_hours"`
		RateLimitPerMinute int               `yaml:"rate_limit_per_minute"`
		LookbackDays       int               `yaml:"lookback_days"`
	} `yaml:"market"`
	Calendar struct {
		Enabled        bool     `yaml:"enabled"`
		URL            string   `yaml:"url"`
		Currencies     []string `yaml:"currencies"`
		TimeoutSeconds int      `yaml:"timeout_seconds"`
	} `yaml:"calendar"`
	Notify struct {
		Telegram struct {
			Enabled   bool   `yaml:"enabled"`
			ParseMode string `yaml:"parse_mode"`
		} `yaml:"telegram"`
	} `yaml:"notify"`
	Schedule struct {
		Timezone string `yaml:"timezone"`
		Daily    string `yaml:"daily"`
		Weekly   string `yaml:"weekly"`
	} `yaml:"schedule"`
	Server struct {
		Addr           string   `yaml:"addr"`
		AllowedOrigins []string `yaml:"allowed_origins"`
	} `yaml:"server"`
	Backup struct {
		Enabled  bool   `yaml:"enabled"`
		Bucket   string `yaml:"bucket"`
		Prefix   string `yaml:"prefix"`
		Region   string `yaml:"region"`
		Endpoint string `yaml:"endpoint"`
	} `yaml:"backup"`
	Retention struct {
		DebugDays int `yaml:"debug_days"`
	} `yaml:"retention"`
}

func (c *Config) Validate() error {
	if c.Symbol == "" {
		return errors.New("symbol cannot be empty")
	}
	switch c.LLM.Provider {
	case "GEMINI", "OPENAI", "CLAUDE", "NONE":
	default:
		return fmt.Errorf("invalid llm.provider '%s': must be 'GEMINI', 'OPENAI', 'CLAUDE' or 'NONE'", c.LLM.Provider)
	}
	if c.Simulation.Mode != "DETERMINISTIC" && c.Simulation.Mode != "PRICE_DATA" {
		return fmt.Errorf("invalid simulation.mode '%s': must be 'DETERMINISTIC' or 'PRICE_DATA'", c.Simulation.Mode)
	}
	if _, err := time.Parse("15:04", c.Simulation.SessionStartUTC); err != nil {
		return fmt.Errorf("simulation.session_start_utc must be HH:MM, got '%s'", c.Simulation.SessionStartUTC)
	}
	if c.Simulation.SessionHours <= 0 || c.Simulation.SessionHours > 24 {
		return fmt.Errorf("simulation.session_hours must be between 1-24, got %d", c.Simulation.SessionHours)
	}
	switch c.Simulation.Interval {
	case "15m", "1h":
	default:
		return fmt.Errorf("simulation.interval must be '15m' or '1h', got '%s'", c.Simulation.Interval)
	}
	switch c.Market.Source {
	case "STATIC", "POLYGON", "KITE":
	default:
		return fmt.Errorf("invalid market.source '%s': must be 'STATIC', 'POLYGON' or 'KITE'", c.Market.Source)
	}
	if c.Simulation.Mode == "PRICE_DATA" && c.Market.Source == "KITE" {
		if _, ok := c.Market.KiteInstruments[c.Symbol]; !ok {
			return fmt.Errorf("market.kite_instruments has no token for %s", c.Symbol)
		}
	}
	if _, err := time.LoadLocation(c.Schedule.Timezone); err != nil {
		return fmt.Errorf("invalid schedule.timezone '%s': %w", c.Schedule.Timezone, err)
	}
	if c.Backup.Enabled && c.Backup.Bucket == "" {
		return errors.New("backup.bucket is required when backup is enabled")
	}
	return nil
}

// Default returns a config with every default applied, used when no file exists.
func Default() *Config {
	var c Config
	c.applyDefaults()
	return &c
}

func (c *Config) applyDefaults() {
	if c.Symbol == "" {
		c.Symbol = "EURUSD"
	}
	if c.Paths.DataDir == "" {
		c.Paths.DataDir = "data"
	}
	if c.Paths.Playbook == "" {
		c.Paths.Playbook = c.Paths.DataDir + "/playbook.json"
	}
	if c.Paths.PlaybookHistory == "" {
		c.Paths.PlaybookHistory = c.Paths.DataDir + "/playbook_history"
	}
	if c.Paths.Sessions == "" {
		c.Paths.Sessions = "trading_session"
	}
	if c.Paths.Reflections == "" {
		c.Paths.Reflections = "weekly_reflections"
	}
	if c.Paths.Cache == "" {
		c.Paths.Cache = "cache/prices"
	}

	c.LLM.Provider = strings.ToUpper(c.LLM.Provider)
	if c.LLM.Provider == "" {
		c.LLM.Provider = "GEMINI"
	}
	if c.LLM.GeneratorModel == "" {
		c.LLM.GeneratorModel = defaultModel(c.LLM.Provider)
	}
	if c.LLM.ReflectorModel == "" {
		c.LLM.ReflectorModel = c.LLM.GeneratorModel
	}
	if c.LLM.MaxTokens == 0 {
		c.LLM.MaxTokens = 2048
	}
	if c.LLM.ReflectorMaxTokens == 0 {
		c.LLM.ReflectorMaxTokens = 3072
	}
	if c.LLM.Temperature == 0 {
		c.LLM.Temperature = 0.2
	}
	if c.LLM.TimeoutSeconds == 0 {
		c.LLM.TimeoutSeconds = 60
	}

	c.Simulation.Mode = strings.ToUpper(c.Simulation.Mode)
	if c.Simulation.Mode == "" {
		c.Simulation.Mode = "PRICE_DATA"
	}
	if c.Simulation.SessionStartUTC == "" {
		c.Simulation.SessionStartUTC = "13:00"
	}
	if c.Simulation.SessionHours == 0 {
		c.Simulation.SessionHours = 8
	}
	if c.Simulation.Interval == "" {
		c.Simulation.Interval = "15m"
	}
	if c.Simulation.PipMultiplier == 0 {
		c.Simulation.PipMultiplier = 10000
	}
	if c.Simulation.USDPerPip == 0 {
		c.Simulation.USDPerPip = 10
	}

	c.Market.Source = strings.ToUpper(c.Market.Source)
	if c.Market.Source == "" {
		c.Market.Source = "STATIC"
	}
	if c.Market.CacheTTLHours == 0 {
		c.Market.CacheTTLHours = 24
	}
	if c.Market.RateLimitPerMinute == 0 {
		c.Market.RateLimitPerMinute = 5
	}
	if c.Market.LookbackDays == 0 {
		c.Market.LookbackDays = 30
	}

	if c.Calendar.URL == "" {
		c.Calendar.URL = "https://www.forexfactory.com/calendar?day=today"
	}
	if len(c.Calendar.Currencies) == 0 {
		c.Calendar.Currencies = []string{"EUR", "USD"}
	}
	if c.Calendar.TimeoutSeconds == 0 {
		c.Calendar.TimeoutSeconds = 20
	}
	if c.Notify.Telegram.ParseMode == "" {
		c.Notify.Telegram.ParseMode = "Markdown"
	}

	if c.Schedule.Timezone == "" {
		c.Schedule.Timezone = "America/New_York"
	}
	if c.Schedule.Daily == "" {
		c.Schedule.Daily = "0 8 * * MON-FRI"
	}
	if c.Schedule.Weekly == "" {
		c.Schedule.Weekly = "0 17 * * FRI"
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Backup.Prefix == "" {
		c.Backup.Prefix = "ace"
	}
	if c.Backup.Region == "" {
		c.Backup.Region = "auto"
	}
	if c.Retention.DebugDays == 0 {
		c.Retention.DebugDays = 14
	}
}

func defaultModel(provider string) string {
	switch provider {
	case "OPENAI":
		return "gpt-4o-mini"
	case "CLAUDE":
		return "claude-3-5-haiku-latest"
	default:
		return "gemini-2.5-flash"
	}
}

// SessionStart returns the configured session start on the given day.
func (c *Config) SessionStart(day time.Time) time.Time {
	hm, err := time.Parse("15:04", c.Simulation.SessionStartUTC)
	if err != nil {
		hm = time.Date(0, 1, 1, 13, 0, 0, 0, time.UTC)
	}
	y, m, d := day.Date()
	return time.Date(y, m, d, hm.Hour(), hm.Minute(), 0, 0, time.UTC)
}

func LoadConfig(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, err
	}

	c.applyDefaults()

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &c, nil
}
