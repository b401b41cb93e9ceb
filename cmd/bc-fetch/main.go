package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Sternrassler/bigcommerce-client/pkg/bigcommerce"
	"github.com/Sternrassler/bigcommerce-client/pkg/client"
	"github.com/Sternrassler/bigcommerce-client/pkg/logging"
	"github.com/Sternrassler/bigcommerce-client/pkg/metrics"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

var version = "0.1.0"

const dateLayout = "2006-01-02"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := newRootCmd(os.Getenv, os.Stdin, os.Stdout)
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// settings are the connection parameters read from the environment.
type settings struct {
	StoreHash   string
	ClientID    string
	AccessToken string
	BaseURL     string
	RedisAddr   string
	UserAgent   string
}

func loadSettings(getenv func(string) string) (settings, error) {
	s := settings{
		StoreHash:   getenv("BIGCOMMERCE_STORE_HASH"),
		ClientID:    getenv("BIGCOMMERCE_CLIENT_ID"),
		AccessToken: getenv("BIGCOMMERCE_ACCESS_TOKEN"),
		BaseURL:     getenv("BIGCOMMERCE_BASE_URL"),
		RedisAddr:   getenv("REDIS_URL"),
		UserAgent:   getEnv(getenv, "USER_AGENT", "bc-fetch/"+version),
	}

	if s.StoreHash == "" {
		return s, fmt.Errorf("BIGCOMMERCE_STORE_HASH is required")
	}
	if s.ClientID == "" || s.AccessToken == "" {
		return s, fmt.Errorf("BIGCOMMERCE_CLIENT_ID and BIGCOMMERCE_ACCESS_TOKEN are required")
	}
	return s, nil
}

// app carries what every subcommand needs once flags are parsed.
type app struct {
	getenv func(string) string
	in     io.Reader
	out    io.Writer

	mode           string
	pageSize       int
	maxConcurrency int
	rps            float64
	logLevel       string
	metricsAddr    string

	redis   *redis.Client
	client  *client.Client
	service *bigcommerce.Service
}

func newRootCmd(getenv func(string) string, in io.Reader, out io.Writer) *cobra.Command {
	a := &app{getenv: getenv, in: in, out: out}

	root := &cobra.Command{
		Use:   "bc-fetch",
		Short: "Fetch and update BigCommerce orders and products",
		Long: `bc-fetch reads complete order and product graphs from a BigCommerce
store while honouring the store's call budget, and pushes inventory updates.

Connection settings come from the environment:
  BIGCOMMERCE_STORE_HASH, BIGCOMMERCE_CLIENT_ID, BIGCOMMERCE_ACCESS_TOKEN
  BIGCOMMERCE_BASE_URL (optional), REDIS_URL (optional), LOG_LEVEL, LOG_FORMAT`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd.Context())
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if a.redis != nil {
				return a.redis.Close()
			}
			return nil
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.mode, "mode", string(bigcommerce.ModeConcurrent), "execution mode: concurrent or sequential")
	flags.IntVar(&a.pageSize, "page-size", bigcommerce.MaxPageSize, "records per page (1-250)")
	flags.IntVar(&a.maxConcurrency, "max-concurrency", bigcommerce.DefaultConfig().MaxConcurrency, "fan-out width under an unlimited budget")
	flags.Float64Var(&a.rps, "rps", 0, "client-side requests per second (0 disables pacing)")
	flags.StringVar(&a.logLevel, "log-level", "", "log level (overrides LOG_LEVEL)")
	flags.StringVar(&a.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address while running")

	root.AddCommand(ordersCmd(a))
	root.AddCommand(productsCmd(a))
	root.AddCommand(updateCmd(a))
	root.AddCommand(budgetCmd(a))

	return root
}

func (a *app) setup(ctx context.Context) error {
	logCfg, err := logging.FromEnv(a.getenv)
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		if logCfg.Level, err = logging.ParseLevel(a.logLevel); err != nil {
			return err
		}
	}
	logging.Setup(logCfg)

	s, err := loadSettings(a.getenv)
	if err != nil {
		return err
	}
	logger := logging.ForStore(logging.NewLogger("bc-fetch"), s.StoreHash)

	if s.RedisAddr != "" {
		a.redis = redis.NewClient(&redis.Options{Addr: s.RedisAddr})
		if err := a.redis.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("failed to connect to Redis at %s: %w", s.RedisAddr, err)
		}
		logger.Debug().Str("redis", s.RedisAddr).Msg("Connected to Redis")
	}

	ccfg := client.DefaultConfig(s.StoreHash, s.ClientID, s.AccessToken)
	ccfg.BaseURL = s.BaseURL
	ccfg.UserAgent = s.UserAgent
	ccfg.RequestsPerSecond = a.rps
	ccfg.Redis = a.redis
	if a.client, err = client.New(ccfg); err != nil {
		return err
	}

	cfg := bigcommerce.DefaultConfig()
	cfg.Mode = bigcommerce.Mode(a.mode)
	cfg.PageSize = a.pageSize
	cfg.MaxConcurrency = a.maxConcurrency
	if a.service, err = bigcommerce.NewService(a.client, cfg, bigcommerce.WithLogger(logger)); err != nil {
		return err
	}

	if a.metricsAddr != "" {
		go func() {
			if err := metrics.Serve(ctx, a.metricsAddr); err != nil {
				logger.Error().Err(err).Msg("Metrics listener failed")
			}
		}()
	}

	logger.Info().Str("mode", a.mode).Int("page_size", a.pageSize).Msg("bc-fetch ready")
	return nil
}

func (a *app) printJSON(v any) error {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func ordersCmd(a *app) *cobra.Command {
	var from, to string

	cmd := &cobra.Command{
		Use:   "orders",
		Short: "Fetch orders with line items and shipping addresses",
		Long: `Fetch every order created in a date range, each with its line items and
shipping addresses, and print them as JSON.

Example:
  bc-fetch orders --from 2024-01-01 --to 2024-02-01`,
		RunE: func(cmd *cobra.Command, args []string) error {
			now := time.Now()
			start, err := parseTime(from, now.Add(-24*time.Hour))
			if err != nil {
				return fmt.Errorf("--from: %w", err)
			}
			end, err := parseTime(to, now)
			if err != nil {
				return fmt.Errorf("--to: %w", err)
			}
			if end.Before(start) {
				return fmt.Errorf("--to must not be before --from")
			}

			orders, err := a.service.GetOrders(cmd.Context(), start, end)
			if err != nil {
				return err
			}
			return a.printJSON(orders)
		},
	}

	cmd.Flags().StringVar(&from, "from", "", "earliest creation time (RFC3339 or YYYY-MM-DD, default 24h ago)")
	cmd.Flags().StringVar(&to, "to", "", "latest creation time (RFC3339 or YYYY-MM-DD, default now)")
	return cmd
}

func productsCmd(a *app) *cobra.Command {
	var extended bool

	cmd := &cobra.Command{
		Use:   "products",
		Short: "Fetch products with their SKUs",
		RunE: func(cmd *cobra.Command, args []string) error {
			products, err := a.service.GetProducts(cmd.Context(), extended)
			if err != nil {
				return err
			}
			return a.printJSON(products)
		},
	}

	cmd.Flags().BoolVar(&extended, "extended", false, "include store weight unit and brand")
	return cmd
}

func updateCmd(a *app) *cobra.Command {
	var file string
	var options bool

	cmd := &cobra.Command{
		Use:   "update-inventory",
		Short: "Set inventory levels from a JSON file",
		Long: `Set inventory levels of products or product options.

Products are read as [{"id": 1, "inventory_level": 5}, ...].
With --options, entries are [{"id": 7, "product_id": 1, "quantity": 5}, ...].
Use --file - to read from stdin.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := a.readInput(file)
			if err != nil {
				return err
			}

			if options {
				var opts []bigcommerce.ProductOption
				if err := json.Unmarshal(data, &opts); err != nil {
					return fmt.Errorf("parse product options: %w", err)
				}
				if err := a.service.UpdateProductOptions(cmd.Context(), opts); err != nil {
					return err
				}
				fmt.Fprintf(a.out, "Updated %d product options\n", len(opts))
				return nil
			}

			var products []bigcommerce.Product
			if err := json.Unmarshal(data, &products); err != nil {
				return fmt.Errorf("parse products: %w", err)
			}
			if err := a.service.UpdateProducts(cmd.Context(), products); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Updated %d products\n", len(products))
			return nil
		},
	}

	cmd.Flags().StringVar(&file, "file", "", "JSON input file, or - for stdin")
	cmd.Flags().BoolVar(&options, "options", false, "input holds product options instead of products")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func budgetCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "budget",
		Short: "Show the last call budget recorded in Redis",
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.redis == nil {
				return fmt.Errorf("REDIS_URL is required to read the recorded budget")
			}

			state, ok, err := a.client.Tracker().LastState(cmd.Context())
			if err != nil {
				return err
			}
			if !ok {
				fmt.Fprintln(a.out, "No budget recorded")
				return nil
			}
			return a.printJSON(state)
		},
	}
}

func (a *app) readInput(file string) ([]byte, error) {
	if file == "-" {
		return io.ReadAll(a.in)
	}
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", file, err)
	}
	return data, nil
}

// parseTime accepts RFC3339 or a bare date; empty returns def.
func parseTime(s string, def time.Time) (time.Time, error) {
	if s == "" {
		return def, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid time %q (want RFC3339 or %s)", s, dateLayout)
	}
	return t, nil
}

func getEnv(getenv func(string) string, key, defaultValue string) string {
	if value := getenv(key); value != "" {
		return value
	}
	return defaultValue
}
