package config

import (
	"log"
	"os"
	"strings"
	"sync"

	"github.com/mitchellh/mapstructure"
)

// AppConfig holds global application configuration
var AppConfig *Config
var once sync.Once

type Config struct {
	AppName string `mapstructure:"APP_NAME"`
	Port    string `mapstructure:"PORT"`
	Env     string `mapstructure:"APP_ENV"`
	Debug   bool   `mapstructure:"DEBUG"`

	// One ledger per company, each fronted by a local agent.
	OfficialAgentURL   string `mapstructure:"OFFICIAL_AGENT_URL"`
	UnofficialAgentURL string `mapstructure:"UNOFFICIAL_AGENT_URL"`

	StorePath string `mapstructure:"STORE_PATH"`
	RedisAddr string `mapstructure:"REDIS_ADDR"`

	// Passed through on every sale; agents fall back to their own config
	// when empty/zero.
	PricingCurrency string  `mapstructure:"PRICING_CURRENCY"`
	ExchangeRate    float64 `mapstructure:"EXCHANGE_RATE"`
}

// LoadAppConfig initializes the global AppConfig variable
func LoadAppConfig() {
	once.Do(func() {
		env := map[string]string{}
		for _, kv := range os.Environ() {
			if k, v, ok := strings.Cut(kv, "="); ok {
				env[k] = v
			}
		}

		cfg := &Config{}
		dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
			Result:           cfg,
			WeaklyTypedInput: true,
		})
		if err != nil {
			log.Fatalf("config: decoder: %v", err)
		}
		if err := dec.Decode(env); err != nil {
			log.Fatalf("config: decode environment: %v", err)
		}

		if cfg.AppName == "" {
			cfg.AppName = "pos"
		}
		if cfg.Port == "" {
			cfg.Port = "8080"
		}
		if cfg.OfficialAgentURL == "" {
			cfg.OfficialAgentURL = "http://127.0.0.1:7070"
		}
		if cfg.UnofficialAgentURL == "" {
			cfg.UnofficialAgentURL = "http://127.0.0.1:7071"
		}
		if cfg.StorePath == "" {
			cfg.StorePath = "pos.db"
		}
		AppConfig = cfg
	})
}
