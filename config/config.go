// Package config loads the bot configuration from a yaml file or CLI flags.
package config

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

const (
	defaultTickInterval   = 5 * time.Minute
	defaultCandleInterval = "30m"
	defaultCandleLimit    = 200
	defaultEMAPeriod      = 89
	defaultStateDir       = "wal/state"
	defaultJournalDir     = "wal/journal"
)

// CampaignConfig declares one DCA campaign to run.
type CampaignConfig struct {
	ID         string
	Symbol     string
	BaseAmount decimal.Decimal
	MaxOrders  int
}

// Config is the fully parsed bot configuration.
type Config struct {
	Platform       string
	QuoteAsset     string
	TickInterval   time.Duration
	CandleInterval string
	CandleLimit    int
	EMAPeriod      int
	FlattenOnClose bool
	StateDir       string
	JournalDir     string
	Campaigns      []CampaignConfig
}

type campaignTmp struct {
	ID         string `yaml:"id"`
	Symbol     string `yaml:"symbol"`
	BaseAmount string `yaml:"base_amount"`
	MaxOrders  int    `yaml:"max_orders"`
}

type configTmp struct {
	Platform       string        `yaml:"platform"`
	QuoteAsset     string        `yaml:"quote_asset,omitempty"`
	TickInterval   time.Duration `yaml:"tick_interval,omitempty"`
	CandleInterval string        `yaml:"candle_interval,omitempty"`
	CandleLimit    int           `yaml:"candle_limit,omitempty"`
	EMAPeriod      int           `yaml:"ema_period,omitempty"`
	FlattenOnClose bool          `yaml:"flatten_on_close,omitempty"`
	StateDir       string        `yaml:"state_dir,omitempty"`
	JournalDir     string        `yaml:"journal_dir,omitempty"`
	Campaigns      []campaignTmp `yaml:"campaigns"`
}

// Get parses the configuration from --config when given, otherwise from the
// remaining CLI flags.
func Get() (*Config, error) {
	configPath := flag.String("config", "", "path to yaml config")
	platform := flag.String("platform", "binance", "trading platform: binance or bybit")
	symbol := flag.String("symbol", "BTCUSDT", "trade symbol, example: BTCUSDT")
	baseAmount := flag.String("baseamount", "100", "quote amount of the first DCA order")
	maxOrders := flag.Int("maxorders", 10, "maximum number of DCA orders")
	tickInterval := flag.Duration("tickinterval", defaultTickInterval, "evaluation interval")
	flag.Parse()

	if *configPath != "" {
		return getYaml(*configPath)
	}

	amount, err := decimal.NewFromString(*baseAmount)
	if err != nil {
		return nil, fmt.Errorf("invalid --baseamount provided, --baseamount=%s: %w", *baseAmount, err)
	}

	cfg := &Config{
		Platform:     *platform,
		TickInterval: *tickInterval,
		Campaigns: []CampaignConfig{
			{
				ID:         fmt.Sprintf("dca-%s", *symbol),
				Symbol:     *symbol,
				BaseAmount: amount,
				MaxOrders:  *maxOrders,
			},
		},
	}
	applyDefaults(cfg)

	return cfg, validate(cfg)
}

// Load reads the configuration from a yaml file directly, bypassing flags.
func Load(path string) (*Config, error) {
	return getYaml(path)
}

func getYaml(path string) (*Config, error) {
	f, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var tmp configTmp
	if err := yaml.Unmarshal(f, &tmp); err != nil {
		return nil, err
	}

	cfg := &Config{
		Platform:       tmp.Platform,
		QuoteAsset:     tmp.QuoteAsset,
		TickInterval:   tmp.TickInterval,
		CandleInterval: tmp.CandleInterval,
		CandleLimit:    tmp.CandleLimit,
		EMAPeriod:      tmp.EMAPeriod,
		FlattenOnClose: tmp.FlattenOnClose,
		StateDir:       tmp.StateDir,
		JournalDir:     tmp.JournalDir,
	}

	for _, c := range tmp.Campaigns {
		amount, err := decimal.NewFromString(c.BaseAmount)
		if err != nil {
			return nil, fmt.Errorf("incorrect 'base_amount' param for campaign %s: %w", c.ID, err)
		}
		cfg.Campaigns = append(cfg.Campaigns, CampaignConfig{
			ID:         c.ID,
			Symbol:     c.Symbol,
			BaseAmount: amount,
			MaxOrders:  c.MaxOrders,
		})
	}

	applyDefaults(cfg)

	return cfg, validate(cfg)
}

// Save writes the configuration to a yaml file in the shape Get reads.
func Save(cfg *Config, path string) error {
	tmp := configTmp{
		Platform:       cfg.Platform,
		QuoteAsset:     cfg.QuoteAsset,
		TickInterval:   cfg.TickInterval,
		CandleInterval: cfg.CandleInterval,
		CandleLimit:    cfg.CandleLimit,
		EMAPeriod:      cfg.EMAPeriod,
		FlattenOnClose: cfg.FlattenOnClose,
		StateDir:       cfg.StateDir,
		JournalDir:     cfg.JournalDir,
	}
	for _, c := range cfg.Campaigns {
		tmp.Campaigns = append(tmp.Campaigns, campaignTmp{
			ID:         c.ID,
			Symbol:     c.Symbol,
			BaseAmount: c.BaseAmount.String(),
			MaxOrders:  c.MaxOrders,
		})
	}

	data, err := yaml.Marshal(&tmp)
	if err != nil {
		return fmt.Errorf("failed to generate yaml: %w", err)
	}

	return os.WriteFile(path, data, 0o644)
}

func applyDefaults(cfg *Config) {
	if cfg.QuoteAsset == "" {
		cfg.QuoteAsset = "USDT"
	}
	if cfg.TickInterval == 0 {
		cfg.TickInterval = defaultTickInterval
	}
	if cfg.CandleInterval == "" {
		cfg.CandleInterval = defaultCandleInterval
	}
	if cfg.CandleLimit == 0 {
		cfg.CandleLimit = defaultCandleLimit
	}
	if cfg.EMAPeriod == 0 {
		cfg.EMAPeriod = defaultEMAPeriod
	}
	if cfg.StateDir == "" {
		cfg.StateDir = defaultStateDir
	}
	if cfg.JournalDir == "" {
		cfg.JournalDir = defaultJournalDir
	}
}

func validate(cfg *Config) error {
	if cfg.Platform != "binance" && cfg.Platform != "bybit" {
		return fmt.Errorf("unknown platform %q, supported: binance, bybit", cfg.Platform)
	}
	// Bybit lacks candle history and balance lookup, which DCA needs.
	if cfg.Platform == "bybit" && len(cfg.Campaigns) > 0 {
		return fmt.Errorf("DCA campaigns require the binance platform, got %q", cfg.Platform)
	}
	if cfg.CandleLimit < cfg.EMAPeriod {
		return fmt.Errorf("candle_limit (%d) must be at least ema_period (%d)", cfg.CandleLimit, cfg.EMAPeriod)
	}

	seen := make(map[string]struct{}, len(cfg.Campaigns))
	for _, c := range cfg.Campaigns {
		if c.ID == "" {
			return fmt.Errorf("campaign for symbol %s is missing an id", c.Symbol)
		}
		if _, dup := seen[c.ID]; dup {
			return fmt.Errorf("duplicate campaign id %q", c.ID)
		}
		seen[c.ID] = struct{}{}

		if c.Symbol == "" {
			return fmt.Errorf("campaign %s is missing a symbol", c.ID)
		}
		if c.BaseAmount.LessThanOrEqual(decimal.Zero) {
			return fmt.Errorf("campaign %s base_amount must be positive, got %s", c.ID, c.BaseAmount)
		}
		if c.MaxOrders < 1 {
			return fmt.Errorf("campaign %s max_orders must be >= 1, got %d", c.ID, c.MaxOrders)
		}
	}

	return nil
}
