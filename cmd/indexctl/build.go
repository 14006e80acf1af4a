package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/edge-index/internal/index"
	"github.com/Adithya-Monish-Kumar-K/edge-index/internal/ingest"
	"github.com/Adithya-Monish-Kumar-K/edge-index/internal/journal"
	"github.com/Adithya-Monish-Kumar-K/edge-index/internal/ranking"
	"github.com/Adithya-Monish-Kumar-K/edge-index/pkg/postgres"
)

var (
	flagBuildRankings  bool
	flagBuildSwitch    bool
	flagBuildJournalFn string
)

var importCmd = &cobra.Command{
	Use:   "import <events.jsonl>",
	Short: "Append JSON-lines document events to the journal",
	Args:  cobra.ExactArgs(1),
	RunE:  runImport,
}

var constructCmd = &cobra.Command{
	Use:   "construct",
	Short: "Build the next generation from the journal",
	RunE:  runConstruct,
}

var switchCmd = &cobra.Command{
	Use:   "switch",
	Short: "Promote a waiting next generation to current",
	RunE:  runSwitch,
}

func init() {
	constructCmd.Flags().BoolVar(&flagBuildRankings, "rankings", true, "Load domain rankings from Postgres")
	constructCmd.Flags().BoolVar(&flagBuildSwitch, "switch", false, "Promote the generation once built")
	constructCmd.Flags().StringVar(&flagBuildJournalFn, "journal-file", "", "Build from a single journal file instead of the journal directory")
	rootCmd.AddCommand(importCmd, constructCmd, switchCmd)
}

func runImport(cmd *cobra.Command, args []string) error {
	f, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer f.Close()

	w, err := journal.NewPagedWriter(cfg.Index.JournalDir, cfg.Construction.JournalPageSize, journal.WithoutSync())
	if err != nil {
		return err
	}
	handle := ingest.HandleDocuments(w, nil)

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	lines := 0
	for scanner.Scan() {
		if len(scanner.Bytes()) == 0 {
			continue
		}
		if err := handle(cmd.Context(), nil, scanner.Bytes()); err != nil {
			w.Close()
			return fmt.Errorf("line %d: %w", lines+1, err)
		}
		lines++
	}
	if err := scanner.Err(); err != nil {
		w.Close()
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	fmt.Printf("  ✓  %d events read into %s\n", lines, cfg.Index.JournalDir)
	return nil
}

func loadRankings(ctx context.Context) *ranking.DomainRankings {
	if !flagBuildRankings {
		return ranking.New(nil)
	}
	pg, err := postgres.New(cfg.Postgres)
	if err != nil {
		slog.Warn("postgres unavailable, every domain gets the worst rank", "error", err)
		return ranking.New(nil)
	}
	defer pg.Close()
	r, err := ranking.LoadFromPostgres(ctx, pg.DB)
	if err != nil {
		slog.Warn("domain rankings not loaded", "error", err)
		return ranking.New(nil)
	}
	return r
}

func runConstruct(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	c := index.NewConstructor(cfg, loadRankings(ctx), nil)

	open := func() (journal.Reader, error) { return journal.OpenPaged(cfg.Index.JournalDir) }
	if flagBuildJournalFn != "" {
		open = func() (journal.Reader, error) { return journal.OpenFile(flagBuildJournalFn) }
	}
	res, err := c.Build(ctx, open)
	if err != nil {
		return err
	}
	fmt.Printf("  ✓  generation %s built in %s\n", res.Generation, res.Elapsed.Round(time.Millisecond))
	fmt.Printf("     entries %d, documents %d, terms %d, postings %d\n",
		res.Entries, res.Full.Documents, res.Full.Terms, res.Full.Postings)
	fmt.Printf("     priority documents %d, terms %d, postings %d\n",
		res.Prio.Documents, res.Prio.Terms, res.Prio.Postings)

	if flagBuildSwitch {
		return runSwitch(cmd, nil)
	}
	return nil
}

func runSwitch(cmd *cobra.Command, args []string) error {
	files := index.Files{Dir: cfg.Index.DataDir}
	if !files.HasNext() {
		fmt.Println("  ○  no next generation waiting")
		return nil
	}
	idx, err := index.NewSearchIndex(cmd.Context(), files, index.WithLockTimeout(cfg.Construction.LockTimeout))
	if err != nil {
		return err
	}
	defer idx.Close()
	fmt.Printf("  ✓  serving generation %s\n", idx.CurrentID())
	return nil
}
