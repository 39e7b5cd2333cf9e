package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/angelmondragon/wishlist-backend/internal/payments"
	"github.com/angelmondragon/wishlist-backend/pkg/config"
	"github.com/angelmondragon/wishlist-backend/pkg/logger"
)

type options struct {
	apiURL    string
	query     string
	walletURL string
	network   string
	timeout   time.Duration
}

func main() {
	logg := logger.New(logger.Options{ServiceName: "insights", Format: "console"})

	_ = godotenv.Load()

	var opts options
	flag.StringVar(&opts.apiURL, "api", "http://localhost:8000", "base url of the wishlist api")
	flag.StringVar(&opts.query, "query", "", "insights query to buy")
	flag.StringVar(&opts.walletURL, "wallet", os.Getenv(config.EnvPaymentsWallet), "wallet service url that pays the 402 requirement")
	flag.StringVar(&opts.network, "network", "base-sepolia", "network the wallet pays on")
	flag.DurationVar(&opts.timeout, "timeout", 30*time.Second, "per request timeout")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{"api": opts.apiURL, "network": opts.network})

	if err := run(ctx, opts, os.Stdout); err != nil {
		logg.Error(ctx, "insights query failed", err)
		os.Exit(1)
	}
}

// run buys one insights answer and prints it as indented JSON.
func run(ctx context.Context, opts options, out io.Writer) error {
	query := strings.TrimSpace(opts.query)
	if query == "" {
		return errors.New("missing -query")
	}
	wallet, err := payments.NewHTTPWallet(opts.walletURL, opts.network, opts.timeout)
	if err != nil {
		return err
	}
	client, err := payments.NewClient(&http.Client{Timeout: opts.timeout}, wallet)
	if err != nil {
		return err
	}

	var envelope struct {
		Data payments.InsightsResponse `json:"data"`
	}
	endpoint := strings.TrimRight(opts.apiURL, "/") + "/api/v1/query"
	if err := client.PostJSON(ctx, endpoint, nil, map[string]string{"query": query}, &envelope); err != nil {
		return fmt.Errorf("query %s: %w", endpoint, err)
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(envelope.Data)
}
