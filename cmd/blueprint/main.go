// Package main provides the CLI entry point for blueprint.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/exportdocs/blueprint/internal/config"
	"github.com/exportdocs/blueprint/internal/logging"
	"github.com/exportdocs/blueprint/internal/server"
	"github.com/exportdocs/blueprint/pkg/blueprint"
	"github.com/exportdocs/blueprint/pkg/blueprint/bundle"
	"github.com/exportdocs/blueprint/pkg/blueprint/rules"
	"github.com/exportdocs/blueprint/pkg/blueprint/scanner"
)

var (
	bundleRoot string
	customer   string
	mappings   []string
	outputPath string
	pretty     bool
	dryRun     bool
	serveAddr  string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "blueprint",
		Short: "Turn customer Excel workbooks into reusable invoice blueprints",
		Long: `blueprint scans a customer's packing-list or invoice workbook, maps its
columns onto the system vocabulary and produces a persisted bundle: a
sanitized template plus the configuration needed to generate documents
from it.`,
	}
	rootCmd.PersistentFlags().StringVar(&bundleRoot, "bundle-root", "./bundles", "Directory bundles are persisted under")

	scanCmd := &cobra.Command{
		Use:   "scan [input.xlsx]",
		Short: "Analyze a workbook and report its layout and unknown headers",
		Args:  cobra.ExactArgs(1),
		RunE:  runScan,
	}
	scanCmd.Flags().StringVarP(&outputPath, "output", "o", "", "Output file path (default: stdout)")
	scanCmd.Flags().BoolVar(&pretty, "pretty", false, "Pretty-print JSON output")

	generateCmd := &cobra.Command{
		Use:   "generate [input.xlsx]",
		Short: "Build and install a blueprint bundle from a workbook",
		Args:  cobra.ExactArgs(1),
		RunE:  runGenerate,
	}
	generateCmd.Flags().StringVar(&customer, "customer", "", "Customer code the bundle is stored under (default: file stem)")
	generateCmd.Flags().StringArrayVar(&mappings, "mapping", nil, "Header confirmation as 'Header Text=col_id' (repeatable)")
	generateCmd.Flags().BoolVar(&dryRun, "dry-run", false, "Scan and report without installing a bundle")

	optionsCmd := &cobra.Command{
		Use:   "options",
		Short: "List the column identifier vocabulary",
		RunE:  runOptions,
	}

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the blueprint HTTP API",
		RunE:  runServe,
	}
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address, overrides SERVER_HOST/SERVER_PORT")

	rootCmd.AddCommand(scanCmd, generateCmd, optionsCmd, serveCmd)
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runScan(cmd *cobra.Command, args []string) error {
	inputPath := args[0]
	if _, err := os.Stat(inputPath); os.IsNotExist(err) {
		return fmt.Errorf("file not found: %s", inputPath)
	}

	analysis, err := scanner.New(nil).Scan(inputPath)
	if err != nil {
		return fmt.Errorf("scan failed: %w", err)
	}

	var data []byte
	if pretty {
		data, err = json.MarshalIndent(analysis, "", "  ")
	} else {
		data, err = json.Marshal(analysis)
	}
	if err != nil {
		return fmt.Errorf("serialization failed: %w", err)
	}
	if outputPath != "" {
		if err := os.WriteFile(outputPath, data, 0o644); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
	} else {
		fmt.Println(string(data))
	}

	if unknown := analysis.UnknownHeaders(); len(unknown) > 0 {
		fmt.Fprintf(os.Stderr, "unrecognized headers: %s\n", strings.Join(unknown, ", "))
		fmt.Fprintln(os.Stderr, "confirm them with --mapping 'Header Text=col_id' when generating")
	}
	return nil
}

func runGenerate(cmd *cobra.Command, args []string) error {
	inputPath := args[0]
	if _, err := os.Stat(inputPath); os.IsNotExist(err) {
		return fmt.Errorf("file not found: %s", inputPath)
	}

	confirmations, err := parseMappings(mappings)
	if err != nil {
		return err
	}
	code := customer
	if code == "" {
		code = bundle.CustomerPrefix(inputPath)
	}
	if code == "" {
		return fmt.Errorf("cannot derive a customer code from %s, pass --customer", inputPath)
	}

	if dryRun {
		return runScan(cmd, args)
	}

	store, err := bundle.NewStore(bundleRoot)
	if err != nil {
		return err
	}
	generator := blueprint.NewGenerator(store, blueprint.DefaultOptions())
	result, err := generator.Build(inputPath, code, confirmations)
	if err != nil {
		return fmt.Errorf("generation failed: %w", err)
	}

	fmt.Printf("bundle installed for %s\n", result.CustomerCode)
	fmt.Printf("  config:   %s\n", result.ConfigPath)
	fmt.Printf("  template: %s\n", result.TemplatePath)
	if result.Fallback {
		fmt.Printf("  note: template kept as-is (%s)\n", result.FallbackReason)
	}
	return nil
}

func runOptions(cmd *cobra.Command, args []string) error {
	for _, opt := range rules.Options() {
		fmt.Printf("%-16s %s\n", opt.ID, opt.Label)
	}
	return nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if serveAddr != "" {
		host, port, err := net.SplitHostPort(serveAddr)
		if err != nil {
			return fmt.Errorf("invalid --addr %q: %w", serveAddr, err)
		}
		cfg.Server.Host = host
		if cfg.Server.Port, err = strconv.Atoi(port); err != nil {
			return fmt.Errorf("invalid --addr port %q: %w", port, err)
		}
	}
	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	store, err := bundle.NewStore(cfg.Store.BundleRoot)
	if err != nil {
		return err
	}
	generator := blueprint.NewGenerator(store, blueprint.Options{
		TokenTTL:        cfg.Generator.TokenTTL,
		RequireComplete: cfg.Generator.RequireComplete,
	})
	srv := server.NewServer(cfg, generator)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case <-sigCh:
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(ctx)
	}
}

// parseMappings turns repeated 'Header Text=col_id' flags into a
// confirmation map.
func parseMappings(pairs []string) (map[string]string, error) {
	out := map[string]string{}
	for _, pair := range pairs {
		idx := strings.LastIndex(pair, "=")
		if idx <= 0 || idx == len(pair)-1 {
			return nil, fmt.Errorf("invalid mapping %q, expected 'Header Text=col_id'", pair)
		}
		header := strings.TrimSpace(pair[:idx])
		id := strings.TrimSpace(pair[idx+1:])
		if !rules.IsKnownID(id) {
			return nil, fmt.Errorf("unknown column identifier %q in mapping %q", id, pair)
		}
		out[header] = id
	}
	return out, nil
}
