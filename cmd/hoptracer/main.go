package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/HORNET-Storage/dht-hop-tracer/analyzer"
	"github.com/HORNET-Storage/dht-hop-tracer/diff"
	"github.com/HORNET-Storage/dht-hop-tracer/record"
	"github.com/HORNET-Storage/dht-hop-tracer/responders"
	"github.com/HORNET-Storage/dht-hop-tracer/server"
	"github.com/HORNET-Storage/dht-hop-tracer/tree"
)

type command struct {
	usage string
	run   func(config *analyzer.Config, args []string) error
}

var commands = map[string]command{
	"analyze": {"analyze -cid <cid> [-daemon <log>]", runAnalyze},
	"batch":   {"batch -daemon <log> [-cids <file>] [-date YYYY-MM-DD] [-out <dir>]", runBatch},
	"export":  {"export -cid <cid> [-daemon <log>] [-o <file>]", runExport},
	"diff":    {"diff <old_summary.json> <new_summary.json>", runDiff},
	"serve":   {"serve [-addr :8080] [-daemon <log>] [-summary <file>]", runServe},
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	cmd, ok := commands[os.Args[1]]
	if !ok {
		usage()
		os.Exit(2)
	}

	config, err := analyzer.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	zerolog.SetGlobalLevel(config.Level())

	if err := cmd.run(config, os.Args[2:]); err != nil {
		log.Error().Err(err).Str("command", os.Args[1]).Msg("command failed")
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: hoptracer <command> [flags]")
	for _, name := range []string{"analyze", "batch", "export", "diff", "serve"} {
		fmt.Fprintf(os.Stderr, "  hoptracer %s\n", commands[name].usage)
	}
}

// commonFlags registers the flags every log-reading command accepts and
// returns the daemon log path flag.
func commonFlags(fs *flag.FlagSet, config *analyzer.Config) *string {
	fs.StringVar(&config.Dir, "dir", config.Dir, "directory holding the per-CID logs")
	fs.BoolVar(&config.StrictOrigins, "strict", config.StrictOrigins, "drop responses from peers that were never queried")
	fs.StringVar(&config.LogLevel, "log-level", config.LogLevel, "log level")
	return fs.String("daemon", "", "daemon log with the provider responders")
}

func parseFlags(fs *flag.FlagSet, config *analyzer.Config, args []string) error {
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := config.Validate(); err != nil {
		return err
	}
	zerolog.SetGlobalLevel(config.Level())
	return nil
}

func loadMapping(path string) (*responders.Mapping, error) {
	if path == "" {
		return responders.NewMapping(), nil
	}
	mapping, err := responders.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read daemon log: %w", err)
	}
	return mapping, nil
}

func runAnalyze(config *analyzer.Config, args []string) error {
	fs := flag.NewFlagSet("analyze", flag.ExitOnError)
	daemon := commonFlags(fs, config)
	cid := fs.String("cid", "", "content identifier to analyze")
	fs.BoolVar(&config.Visualize, "visualize", config.Visualize, "write the tree export next to the logs")
	if err := parseFlags(fs, config, args); err != nil {
		return err
	}
	if *cid == "" {
		return fmt.Errorf("-cid is required")
	}

	mapping, err := loadMapping(*daemon)
	if err != nil {
		return err
	}

	report, err := analyzer.Analyze(config, *cid, mapping.Responders(*cid))
	if err != nil {
		return err
	}

	fmt.Print(tree.Print(*cid, report.Forest, report.Buckets))

	if report.Result.Reachable() {
		color.HiGreen("ipfs_hop %d (via %v)\n", report.Result.Hops, report.Result.Matched)
	} else {
		color.Yellow("ipfs_hop 0: no provider reached\n")
	}

	if report.Forest.Dropped > 0 {
		color.Yellow("%d responses had no origin query and were dropped\n", report.Forest.Dropped)
	}
	if config.Visualize {
		color.Cyan("tree written to %s\n", config.ExportPath(*cid))
	}

	return nil
}

func runBatch(config *analyzer.Config, args []string) error {
	fs := flag.NewFlagSet("batch", flag.ExitOnError)
	daemon := commonFlags(fs, config)
	cidList := fs.String("cids", "", "file with one CID per line (default: every CID in the daemon log)")
	dateFlag := fs.String("date", time.Now().Format(record.DateLayout), "run date")
	out := fs.String("out", ".", "directory for the summary and stats files")
	fs.IntVar(&config.MaxWorkers, "workers", config.MaxWorkers, "concurrent analyses (0 = NumCPU, -1 = one per CID)")
	fs.BoolVar(&config.Visualize, "visualize", config.Visualize, "write the tree export of every CID")
	if err := parseFlags(fs, config, args); err != nil {
		return err
	}

	date, err := time.Parse(record.DateLayout, *dateFlag)
	if err != nil {
		return fmt.Errorf("invalid date %q: %w", *dateFlag, err)
	}

	mapping, err := loadMapping(*daemon)
	if err != nil {
		return err
	}

	var cids []string
	if *cidList != "" {
		if cids, err = analyzer.ReadCIDList(*cidList); err != nil {
			return err
		}
	}

	summary, err := analyzer.RunBatch(config, mapping, cids, date)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(*out, 0755); err != nil {
		return err
	}
	if err := summary.WriteFiles(*out); err != nil {
		return err
	}

	color.HiYellow("total_cid %d reachable_cid %d\n", summary.TotalCID, summary.ReachableCID)
	color.Cyan("summary written to %s\n", record.SummaryPath(*out, summary.Date))

	return nil
}

func runExport(config *analyzer.Config, args []string) error {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	daemon := commonFlags(fs, config)
	cid := fs.String("cid", "", "content identifier to export")
	out := fs.String("o", "", "output file (default: the configured export path)")
	if err := parseFlags(fs, config, args); err != nil {
		return err
	}
	if *cid == "" {
		return fmt.Errorf("-cid is required")
	}

	mapping, err := loadMapping(*daemon)
	if err != nil {
		return err
	}

	config.Visualize = false
	report, err := analyzer.Analyze(config, *cid, mapping.Responders(*cid))
	if err != nil {
		return err
	}

	path := *out
	if path == "" {
		path = config.ExportPath(*cid)
	}

	levels := tree.Export(report.Forest, report.Buckets, mapping.Responders(*cid))
	if err := levels.WriteFile(path); err != nil {
		return err
	}

	color.Cyan("%d levels written to %s\n", len(levels), path)
	return nil
}

func runDiff(_ *analyzer.Config, args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("diff needs two summary files")
	}

	oldSummary, err := record.ReadSummary(args[0])
	if err != nil {
		return err
	}
	newSummary, err := record.ReadSummary(args[1])
	if err != nil {
		return err
	}

	d, err := diff.Diff(oldSummary, newSummary)
	if err != nil {
		return err
	}

	if d.IsEmpty() {
		color.HiGreen("no changes between %s and %s\n", oldSummary.Date, newSummary.Date)
		return nil
	}

	for _, entry := range d.GetByType(diff.DiffTypeAdded) {
		color.Green("+ %s (hop %d)\n", entry.CID, entry.NewHop)
	}
	for _, entry := range d.GetByType(diff.DiffTypeRemoved) {
		color.Red("- %s (hop %d)\n", entry.CID, entry.OldHop)
	}
	for _, entry := range d.GetByType(diff.DiffTypeReachable) {
		color.HiGreen("reachable   %s (hop %d)\n", entry.CID, entry.NewHop)
	}
	for _, entry := range d.GetByType(diff.DiffTypeUnreachable) {
		color.HiRed("unreachable %s (was hop %d)\n", entry.CID, entry.OldHop)
	}
	for _, entry := range d.GetByType(diff.DiffTypeHopChanged) {
		color.Yellow("hop changed %s %d -> %d\n", entry.CID, entry.OldHop, entry.NewHop)
	}

	color.HiYellow("%d changes\n", d.Summary.Total)
	return nil
}

func runServe(config *analyzer.Config, args []string) error {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	daemon := commonFlags(fs, config)
	addr := fs.String("addr", ":8080", "listen address")
	summaryPath := fs.String("summary", "", "summary file to serve")
	if err := parseFlags(fs, config, args); err != nil {
		return err
	}

	mapping, err := loadMapping(*daemon)
	if err != nil {
		return err
	}

	var summary *record.Summary
	if *summaryPath != "" {
		if summary, err = record.ReadSummary(*summaryPath); err != nil {
			return err
		}
	}

	router := server.NewRouter(server.NewHandler(config, mapping, summary))

	log.Info().Str("addr", *addr).Int("cids", mapping.Len()).Msg("serving")
	return router.Run(*addr)
}
