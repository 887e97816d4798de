// Package config loads the daemon configuration from a JSON file via
// viper, with MANGO_GO_* environment overrides for deploy-time secrets.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/gagliardetto/solana-go"
	"github.com/spf13/viper"
)

type Config struct {
	RPCList         []string `mapstructure:"rpc_list"`
	WebSocketURL    string   `mapstructure:"websocket_url"`
	ProgramID       string   `mapstructure:"program_id"`
	Group           string   `mapstructure:"group"`
	RefreshInterval int      `mapstructure:"refresh_interval"` // seconds
	Retries         int      `mapstructure:"retries"`
	DebugLogging    bool     `mapstructure:"debug_logging"`
	RedisAddr       string   `mapstructure:"redis_addr"`
	RedisPassword   string   `mapstructure:"redis_password"`
	PostgresURL     string   `mapstructure:"postgres_url"`
	LogFile         string   `mapstructure:"log_file"`
}

const (
	DefaultRefreshInterval = 300
	DefaultRetries         = 3
	DefaultLogFile         = "mangod.log"
)

func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	defaults := map[string]interface{}{
		"refresh_interval": DefaultRefreshInterval,
		"retries":          DefaultRetries,
		"log_file":         DefaultLogFile,
	}
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	loadEnvironmentVariables(v, &cfg)

	return &cfg, cfg.Validate()
}

func (cfg *Config) Validate() error {
	if len(cfg.RPCList) == 0 {
		return errors.New("rpc_list is empty")
	}
	for _, rpcURL := range cfg.RPCList {
		if err := validateURL(rpcURL, "http"); err != nil {
			return fmt.Errorf("invalid RPC URL %q: %w", rpcURL, err)
		}
	}
	if cfg.WebSocketURL != "" {
		if err := validateURL(cfg.WebSocketURL, "ws"); err != nil {
			return fmt.Errorf("invalid websocket URL %q: %w", cfg.WebSocketURL, err)
		}
	}
	if cfg.ProgramID == "" {
		return errors.New("program_id is required")
	}
	if _, err := solana.PublicKeyFromBase58(cfg.ProgramID); err != nil {
		return fmt.Errorf("invalid program_id: %w", err)
	}
	if cfg.Group == "" {
		return errors.New("group is required")
	}
	if _, err := solana.PublicKeyFromBase58(cfg.Group); err != nil {
		return fmt.Errorf("invalid group: %w", err)
	}
	if cfg.RefreshInterval <= 0 {
		return errors.New("invalid refresh_interval")
	}
	if cfg.Retries < 0 {
		return errors.New("invalid retries count")
	}
	return nil
}

// ProgramKey returns the parsed program id. Call only after Validate.
func (cfg *Config) ProgramKey() solana.PublicKey {
	return solana.MustPublicKeyFromBase58(cfg.ProgramID)
}

// GroupKey returns the parsed group pubkey. Call only after Validate.
func (cfg *Config) GroupKey() solana.PublicKey {
	return solana.MustPublicKeyFromBase58(cfg.Group)
}

func validateURL(rawURL string, protocol string) error {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return errors.New("invalid URL format")
	}
	if !strings.HasPrefix(parsed.Scheme, protocol) {
		return errors.New("invalid URL protocol")
	}
	return nil
}

func loadEnvironmentVariables(v *viper.Viper, cfg *Config) {
	v.AutomaticEnv()
	v.SetEnvPrefix("MANGO_GO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if envRPCList := v.GetString("RPC_LIST"); envRPCList != "" {
		var cleanRPCs []string
		for _, rpc := range strings.Split(envRPCList, ",") {
			if clean := strings.TrimSpace(rpc); clean != "" {
				cleanRPCs = append(cleanRPCs, clean)
			}
		}
		if len(cleanRPCs) > 0 {
			cfg.RPCList = cleanRPCs
		}
	}
	if envRedisPassword := v.GetString("REDIS_PASSWORD"); envRedisPassword != "" {
		cfg.RedisPassword = envRedisPassword
	}
	if envPostgresURL := v.GetString("POSTGRES_URL"); envPostgresURL != "" {
		cfg.PostgresURL = envPostgresURL
	}
}
