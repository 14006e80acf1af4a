package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/edge-index/internal/index"
	"github.com/Adithya-Monish-Kumar-K/edge-index/internal/ingest"
	"github.com/Adithya-Monish-Kumar-K/edge-index/internal/searcher"
	"github.com/Adithya-Monish-Kumar-K/edge-index/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/edge-index/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/edge-index/internal/searchset"
	"github.com/Adithya-Monish-Kumar-K/edge-index/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/edge-index/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/edge-index/pkg/metrics"
	pkgredis "github.com/Adithya-Monish-Kumar-K/edge-index/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/edge-index/pkg/resilience"
)

var (
	flagQueryLimit   int
	flagQueryJSON    bool
	flagQueryPlans   bool
	flagStatsTop     int
	flagServePoll    time.Duration
	flagServeNoKafka bool
)

var queryCmd = &cobra.Command{
	Use:   "query <search terms>",
	Short: "Search the current generation",
	Long: `Search the current generation. Besides keywords the query accepts
-word or NOT word to exclude, set:<name> to restrict to a search set, and
constraints such as q>=5, year>2010, size<100 or rank=0.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runQuery,
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show the size of the current generation",
	RunE:  runStats,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve searches from stdin and follow newly built generations",
	Long: `serve keeps the current generation open, switches to every generation
announced on the index-complete topic and answers one search per stdin line
with one JSON result per stdout line.`,
	RunE: runServe,
}

func init() {
	queryCmd.Flags().IntVar(&flagQueryLimit, "limit", 0, "Number of results (0 uses search.defaultLimit)")
	queryCmd.Flags().BoolVar(&flagQueryJSON, "json", false, "Print the raw result as JSON")
	queryCmd.Flags().BoolVar(&flagQueryPlans, "plans", false, "Print the query plan of every head")
	statsCmd.Flags().IntVar(&flagStatsTop, "top", 0, "Also list the terms with the longest posting lists")
	serveCmd.Flags().DurationVar(&flagServePoll, "poll", 0, "Also look for a next generation on this interval (0 disables)")
	serveCmd.Flags().BoolVar(&flagServeNoKafka, "no-kafka", false, "Do not follow the index-complete topic")
	rootCmd.AddCommand(queryCmd, statsCmd, serveCmd)
}

type stack struct {
	idx     *index.SearchIndex
	svc     *searcher.Service
	redis   *pkgredis.Client
	closers []func() error
}

func (s *stack) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			slog.Warn("close failed", "error", err)
		}
	}
}

// openStack opens the index directory and everything a search needs. The
// Redis cache is used only when enabled and reachable.
func openStack(ctx context.Context, m *metrics.Metrics) (*stack, error) {
	idx, err := index.NewSearchIndex(ctx, index.Files{Dir: cfg.Index.DataDir},
		index.WithMetrics(m),
		index.WithLockTimeout(cfg.Construction.LockTimeout),
	)
	if err != nil {
		return nil, err
	}
	s := &stack{idx: idx, closers: []func() error{idx.Close}}

	sets, err := searchset.LoadDir(cfg.Index.SearchSetDir)
	if err != nil {
		s.Close()
		return nil, err
	}

	var queryCache *cache.QueryCache
	if cfg.Redis.Enabled {
		client, err := pkgredis.NewClient(cfg.Redis)
		if err != nil {
			slog.Warn("redis unavailable, search caching disabled", "error", err)
		} else {
			s.redis = client
			s.closers = append(s.closers, client.Close)
			breaker := resilience.NewCircuitBreaker("redis", resilience.CircuitBreakerConfig{
				OnStateChange: func(name string, to resilience.State) {
					m.SetCircuitState(name, int(to))
				},
			})
			queryCache = cache.New(client, cfg.Redis.CacheTTL, breaker)
		}
	}

	exec := executor.New(idx, sets, cfg.Search, m)
	s.svc = searcher.New(idx, exec, queryCache, m)
	idx.OnSwitch(s.svc.InvalidateOnSwitch(ctx))
	return s, nil
}

func runQuery(cmd *cobra.Command, args []string) error {
	s, err := openStack(cmd.Context(), nil)
	if err != nil {
		return err
	}
	defer s.Close()

	res, err := s.svc.Search(cmd.Context(), strings.Join(args, " "), flagQueryLimit)
	if err != nil {
		return err
	}
	if flagQueryJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}
	printResults(res)
	return nil
}

func printResults(res *executor.SearchResult) {
	fmt.Printf("\n=== %q (generation %s) ===\n", res.Query, res.Generation)
	if flagQueryPlans {
		for _, p := range res.Plans {
			fmt.Printf("  ~  %s\n", p)
		}
	}
	if len(res.Results) == 0 {
		fmt.Println("  -  no results")
		return
	}
	tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "  DOC\tDOMAIN\tRANK\tHEAD\tQUALITY\tYEAR\tSIZE")
	for _, r := range res.Results {
		fmt.Fprintf(tw, "  %d\t%d\t%d\t%s\t%d\t%d\t%d\n",
			r.DocID, r.Domain, r.Rank, r.Head, r.Meta.Quality, r.Meta.Year, r.Meta.Size)
	}
	tw.Flush()
	fmt.Printf("\n  %d shown of %d found", len(res.Results), res.TotalHits)
	if res.BudgetExhausted {
		fmt.Print(", time budget exhausted")
	}
	fmt.Println()
}

func runStats(cmd *cobra.Command, args []string) error {
	idx, err := index.NewSearchIndex(cmd.Context(), index.Files{Dir: cfg.Index.DataDir})
	if err != nil {
		return err
	}
	defer idx.Close()
	st, err := idx.Stats()
	if err != nil {
		return err
	}
	top, err := idx.LargestTerms(flagStatsTop)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(struct {
		index.Stats
		LargestTerms []index.TermCount `json:"largestTerms,omitempty"`
	}{st, top})
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	m := metrics.New(prometheus.DefaultRegisterer)
	s, err := openStack(ctx, m)
	if err != nil {
		return err
	}
	defer s.Close()

	checker := health.NewChecker()
	checker.Register("index", health.IndexCheck(s.idx))
	if s.redis != nil {
		checker.Register("redis", health.PingCheck(s.redis.Ping))
	}
	if cfg.Metrics.Enabled {
		shutdown := metrics.StartServer(cfg.Metrics.Port, checker.Mount)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			shutdown(shutdownCtx)
		}()
	}

	if !flagServeNoKafka {
		// Every searcher must see every announcement, so each host reads in
		// its own consumer group.
		kcfg := cfg.Kafka
		host, _ := os.Hostname()
		kcfg.ConsumerGroup = fmt.Sprintf("%s-searcher-%s", kcfg.ConsumerGroup, host)
		consumer := kafka.NewConsumer(kcfg, kcfg.Topics.IndexComplete, ingest.HandleIndexComplete(s.idx))
		go func() {
			if err := consumer.Start(ctx); err != nil {
				slog.Error("index complete consumer error", "error", err)
			}
		}()
	}
	if flagServePoll > 0 {
		go poll(ctx, s.idx, flagServePoll)
	}

	slog.Info("serving searches from stdin", "generation", s.idx.CurrentID())
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	enc := json.NewEncoder(os.Stdout)
	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				lines = nil
				continue
			}
			if strings.TrimSpace(line) == "" {
				continue
			}
			res, err := s.svc.Search(ctx, line, 0)
			if err != nil {
				enc.Encode(map[string]string{"query": line, "error": err.Error()})
				continue
			}
			enc.Encode(res)
		}
	}
}

func poll(ctx context.Context, idx *index.SearchIndex, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := idx.SwitchIndex(ctx); err != nil {
				slog.Error("index switch failed", "error", err)
			}
		}
	}
}
