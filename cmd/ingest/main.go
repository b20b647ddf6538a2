package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"solana-dex-ledger/internal/decoder"
	"solana-dex-ledger/internal/domain"
	"solana-dex-ledger/internal/ingestion"
	"solana-dex-ledger/internal/observability"
	"solana-dex-ledger/internal/registry"
	"solana-dex-ledger/internal/sequencer"
	"solana-dex-ledger/internal/solana"
	"solana-dex-ledger/internal/storage"
	chstore "solana-dex-ledger/internal/storage/clickhouse"
	"solana-dex-ledger/internal/storage/memory"
	"solana-dex-ledger/internal/storage/migrations"
	pgstore "solana-dex-ledger/internal/storage/postgres"
	"solana-dex-ledger/internal/writer"
)

// DEX aliases mapped to program IDs.
var dexAliases = map[string]string{
	string(domain.DexRaydiumAmm):  domain.RaydiumAmmProgramID,
	string(domain.DexPumpfun):     domain.PumpfunProgramID,
	string(domain.DexPumpAmm):     domain.PumpAmmProgramID,
	string(domain.DexMeteoraDlmm): domain.MeteoraDlmmProgramID,
	string(domain.DexMeteoraDamm): domain.MeteoraDammProgramID,
}

func main() {
	// Parse flags
	rpcEndpoint := flag.String("rpc-endpoint", "", "Solana RPC HTTP endpoint")
	wsEndpoint := flag.String("ws-endpoint", "", "Solana WebSocket endpoint")
	postgresDSN := flag.String("postgres-dsn", "", "PostgreSQL connection string")
	clickhouseDSN := flag.String("clickhouse-dsn", "", "ClickHouse DSN for the trade archive (empty to disable)")
	programs := flag.String("programs", "", "Comma-separated DEX program IDs to monitor")
	dex := flag.String("dex", strings.Join(dexNames(), ","), "Comma-separated DEX names")
	workers := flag.Int("workers", 4, "Transaction processing workers")
	batchSize := flag.Int("batch-size", writer.DefaultConfig().BatchSize, "Trades per insert batch")
	flushInterval := flag.Duration("flush-interval", writer.DefaultConfig().FlushInterval, "Maximum time a trade waits in the write buffer")
	dedupWindow := flag.Duration("dedup-window", sequencer.DefaultWindow, "Recent-trade dedup window")
	backfill := flag.Bool("backfill", true, "Backfill the gap since the highest stored slot before going live")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage instead of PostgreSQL")
	metricsAddr := flag.String("metrics-addr", ":9090", "Prometheus metrics HTTP address (empty to disable)")

	flag.Parse()

	// Setup logger
	logger := log.New(os.Stdout, "[ingest] ", log.LstdFlags|log.Lshortfile)

	// Start metrics server if enabled
	if *metricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", observability.Handler())
			mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
				w.Write([]byte("ok"))
			})
			logger.Printf("Starting metrics server on %s", *metricsAddr)
			if err := http.ListenAndServe(*metricsAddr, mux); err != nil && err != http.ErrServerClosed {
				logger.Printf("Metrics server error: %v", err)
			}
		}()
	}

	// Resolve DEX programs
	programList := resolvePrograms(*programs, *dex)
	if len(programList) == 0 {
		logger.Fatal("No DEX programs specified. Use --programs or --dex")
	}
	logger.Printf("Monitoring DEX programs: %v", programList)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())

	// Handle shutdown signals with graceful timeout
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	// Channel to signal main goroutine completion
	done := make(chan error, 1)

	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, initiating graceful shutdown...", sig)
		cancel()

		// Wait for second signal for immediate shutdown
		select {
		case sig := <-sigCh:
			logger.Printf("Received second signal %v, forcing immediate shutdown", sig)
			os.Exit(1)
		case <-time.After(30 * time.Second):
			logger.Println("Graceful shutdown timed out after 30s, forcing exit")
			os.Exit(1)
		case <-done:
			// Normal shutdown completed
		}
	}()

	err := run(ctx, logger, options{
		rpcEndpoint:   *rpcEndpoint,
		wsEndpoint:    *wsEndpoint,
		postgresDSN:   *postgresDSN,
		clickhouseDSN: *clickhouseDSN,
		programs:      programList,
		workers:       *workers,
		batchSize:     *batchSize,
		flushInterval: *flushInterval,
		dedupWindow:   *dedupWindow,
		backfill:      *backfill,
		useMemory:     *useMemory,
	})

	// Signal completion to shutdown handler
	done <- err
	cancel()

	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatalf("Error: %v", err)
	}

	logger.Println("Shutdown complete")
}

type options struct {
	rpcEndpoint   string
	wsEndpoint    string
	postgresDSN   string
	clickhouseDSN string
	programs      []string
	workers       int
	batchSize     int
	flushInterval time.Duration
	dedupWindow   time.Duration
	backfill      bool
	useMemory     bool
}

// run wires the pipeline and blocks until the context is cancelled.
func run(ctx context.Context, logger *log.Logger, opts options) error {
	if opts.rpcEndpoint == "" {
		return fmt.Errorf("--rpc-endpoint is required")
	}
	if opts.wsEndpoint == "" {
		return fmt.Errorf("--ws-endpoint is required")
	}
	if !opts.useMemory && opts.postgresDSN == "" {
		return fmt.Errorf("--postgres-dsn is required (use --use-memory for in-memory storage)")
	}

	rpc := solana.NewHTTPClient(opts.rpcEndpoint)

	ws, err := solana.NewWSClient(ctx, opts.wsEndpoint, nil)
	if err != nil {
		return fmt.Errorf("create websocket client: %w", err)
	}
	defer ws.Close()

	// Create stores (use interfaces)
	var poolStore storage.PoolStore = memory.NewPoolStore()
	var tradeStore storage.TradeStore = memory.NewTradeStore()

	if !opts.useMemory {
		pool, err := pgstore.NewPool(ctx, opts.postgresDSN)
		if err != nil {
			return fmt.Errorf("connect to postgres: %w", err)
		}
		defer pool.Close()

		if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			return fmt.Errorf("run postgres migrations: %w", err)
		}

		poolStore = pgstore.NewPoolStore(pool)
		tradeStore = pgstore.NewTradeStore(pool)
	}

	// Optional ClickHouse archive
	var archive storage.TradeArchive
	if opts.clickhouseDSN != "" {
		conn, err := migrations.RunClickhouseMigrations(ctx, opts.clickhouseDSN)
		if err != nil {
			return fmt.Errorf("run clickhouse migrations: %w", err)
		}
		ch := chstore.NewTradeArchive(conn)
		defer ch.Close()
		archive = ch
		logger.Println("ClickHouse trade archive enabled")
	}

	pools := registry.New(poolStore, rpc)

	seq, err := sequencer.New(opts.dedupWindow)
	if err != nil {
		return fmt.Errorf("create sequencer: %w", err)
	}
	defer seq.Close()

	w := writer.New(tradeStore, archive, writer.Config{
		BatchSize:     opts.batchSize,
		FlushInterval: opts.flushInterval,
	})

	processor := ingestion.NewProcessor(decoder.NewRegistry(), pools, seq, w, logger)

	// The writer outlives the runner so the final batch still flushes.
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	writerDone := make(chan error, 1)
	go func() { writerDone <- w.Run(runCtx) }()

	if opts.backfill {
		highest, err := tradeStore.HighestSlot(ctx)
		if err != nil {
			return fmt.Errorf("highest stored slot: %w", err)
		}
		backfiller := ingestion.NewBackfiller(ingestion.BackfillOptions{
			RPC:       rpc,
			Processor: processor,
			Programs:  opts.programs,
			Logger:    logger,
		})
		if _, err := backfiller.BackfillSince(runCtx, highest); err != nil {
			cancel()
			<-writerDone
			return fmt.Errorf("backfill: %w", err)
		}
	}

	runner := ingestion.NewRunner(ingestion.RunnerOptions{
		WS:        ws,
		RPC:       rpc,
		Processor: processor,
		Programs:  opts.programs,
		Workers:   opts.workers,
		Logger:    logger,
	})

	logger.Println("Starting live ingestion...")
	runErr := runner.Run(runCtx)

	cancel()
	writeErr := <-writerDone
	logger.Printf("Writer stopped: %d trades written, %d duplicates", w.Written(), w.Duplicates())

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return runErr
	}
	if writeErr != nil && !errors.Is(writeErr, context.Canceled) {
		return writeErr
	}
	return nil
}

// dexNames returns all supported DEX names, sorted.
func dexNames() []string {
	names := make([]string, 0, len(dexAliases))
	for name := range dexAliases {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// resolvePrograms resolves program IDs from flags.
func resolvePrograms(programs, dex string) []string {
	result := make(map[string]bool)

	// Add explicit programs
	if programs != "" {
		for _, p := range strings.Split(programs, ",") {
			p = strings.TrimSpace(p)
			if p != "" {
				result[p] = true
			}
		}
	}

	// Add programs from DEX aliases
	if dex != "" {
		for _, alias := range strings.Split(dex, ",") {
			alias = strings.TrimSpace(strings.ToLower(alias))
			if programID, ok := dexAliases[alias]; ok {
				result[programID] = true
			}
		}
	}

	// Convert to slice
	list := make([]string, 0, len(result))
	for p := range result {
		list = append(list, p)
	}
	sort.Strings(list)
	return list
}
