package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/mango-go/internal/cache"
	"github.com/rovshanmuradov/mango-go/internal/config"
	"github.com/rovshanmuradov/mango-go/internal/monitor"
)

func main() {
	configPath := flag.String("config", "configs/config.json", "path to config file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if cfg.RedisAddr == "" {
		fmt.Fprintln(os.Stderr, "monitor needs redis_addr in the config; it reads the daemon's mirror")
		os.Exit(1)
	}

	c, err := cache.New(context.Background(), cfg.RedisAddr, cfg.RedisPassword, cfg.Group, zap.NewNop())
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to connect to redis: %v\n", err)
		os.Exit(1)
	}
	defer c.Close()

	program := tea.NewProgram(monitor.New(c, cfg.Group))
	if _, err := program.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "monitor error: %v\n", err)
		os.Exit(1)
	}
}
