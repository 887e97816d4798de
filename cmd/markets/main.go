// Command markets queries the postgres mirror: the group's serum3 market
// listing with each side's latest bank snapshot, or one market by key.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"text/tabwriter"

	"go.uber.org/zap"

	"github.com/rovshanmuradov/mango-go/internal/config"
	"github.com/rovshanmuradov/mango-go/internal/storage"
	"github.com/rovshanmuradov/mango-go/internal/storage/postgres"
)

func main() {
	configPath := flag.String("config", "configs/config.json", "path to config file")
	marketKey := flag.String("market", "", "show a single market by its public key")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if cfg.PostgresURL == "" {
		fmt.Fprintln(os.Stderr, "markets needs postgres_url in the config; it reads the daemon's mirror")
		os.Exit(1)
	}

	store, err := postgres.NewStorage(cfg.PostgresURL, zap.NewNop())
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to connect to postgres: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	ctx := context.Background()
	if *marketKey != "" {
		err = showMarket(ctx, store, *marketKey)
	} else {
		err = listMarkets(ctx, store, cfg.Group)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "query failed: %v\n", err)
		os.Exit(1)
	}
}

func showMarket(ctx context.Context, store storage.Storage, publicKey string) error {
	market, err := store.GetMarket(ctx, publicKey)
	if err != nil {
		return err
	}

	fmt.Printf("%s (index %d)\n", market.Name, market.MarketIndex)
	fmt.Printf("  public key:      %s\n", market.PublicKey)
	fmt.Printf("  group:           %s\n", market.GroupKey)
	fmt.Printf("  serum program:   %s\n", market.SerumProgram)
	fmt.Printf("  external market: %s\n", market.SerumMarketExternal)
	fmt.Printf("  base/quote:      %d/%d\n", market.BaseTokenIndex, market.QuoteTokenIndex)
	fmt.Printf("  updated slot:    %d\n", market.UpdatedSlot)
	return nil
}

func listMarkets(ctx context.Context, store storage.Storage, group string) error {
	markets, err := store.ListMarkets(ctx, group)
	if err != nil {
		return err
	}
	if len(markets) == 0 {
		fmt.Println("no markets mirrored for this group yet")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "IDX\tMARKET\tBASE BANK\tDEPOSIT IDX\tBORROW IDX\tSLOT")
	for _, m := range markets {
		base := "-"
		deposit, borrow := "-", "-"
		slot := fmt.Sprintf("%d", m.UpdatedSlot)
		if snap, err := store.LatestBankSnapshot(ctx, group, m.BaseTokenIndex); err == nil {
			base = snap.Name
			deposit = fmt.Sprintf("%.6f", snap.DepositIndex)
			borrow = fmt.Sprintf("%.6f", snap.BorrowIndex)
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\n",
			m.MarketIndex, m.Name, base, deposit, borrow, slot)
	}
	return w.Flush()
}
