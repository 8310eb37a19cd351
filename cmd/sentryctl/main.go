package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/jmerrifield20/TrafficSentry/internal/collector"
	"github.com/jmerrifield20/TrafficSentry/internal/config"
	"github.com/jmerrifield20/TrafficSentry/internal/inference"
	"github.com/jmerrifield20/TrafficSentry/internal/snapshot"
	"github.com/spf13/cobra"
)

// version is overridden via -ldflags "-X main.version=...".
var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// cli holds state shared by subcommands.
type cli struct {
	cfgFile string
	cfg     *config.Config
}

func newRootCmd() *cobra.Command {
	c := &cli{}
	root := &cobra.Command{
		Use:   "sentryctl",
		Short: "Traffic Sentry CLI",
		Long: `sentryctl scores traffic records offline with the same normaliser and
model the sentry server uses, and inspects the bounds table and the latest
normalised snapshot.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := config.Load(config.Options{ConfigFile: c.cfgFile})
			if err != nil {
				return err
			}
			c.cfg = cfg
			return nil
		},
	}
	root.PersistentFlags().StringVar(&c.cfgFile, "config", "", "config file (default configs/sentry.yaml)")

	root.AddCommand(c.scoreCmd())
	root.AddCommand(c.boundsCmd())
	root.AddCommand(c.snapshotCmd())
	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the sentryctl version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "sentryctl %s (Traffic Sentry)\n", version)
		},
	})
	return root
}

// ── score ────────────────────────────────────────────────────────────────────

func (c *cli) scoreCmd() *cobra.Command {
	var (
		sourceIP   string
		sourcePort int
		host       string
		duration   time.Duration
		modelPath  string
		servingURL string
		asJSON     bool
	)
	cmd := &cobra.Command{
		Use:   "score",
		Short: "Normalise and classify a single traffic record",
		RunE: func(cmd *cobra.Command, args []string) error {
			mc := c.cfg.Model
			if modelPath != "" {
				mc.Path, mc.ServingURL = modelPath, ""
			}
			if servingURL != "" {
				mc.ServingURL = servingURL
			}
			predictor, err := inference.Load(mc)
			if err != nil {
				return fmt.Errorf("load model: %w", err)
			}

			addr := net.JoinHostPort(sourceIP, strconv.Itoa(sourcePort))
			obs, err := collector.New().FromAddr(addr, host, time.Now().Add(-duration))
			if err != nil {
				return err
			}
			normalized, err := c.cfg.Bounds.Normalize(obs.Record)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			verdict, err := inference.NewAdapter(predictor).Classify(ctx, normalized)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(map[string]any{
					"raw":        obs.Record,
					"normalized": normalized,
					"verdict":    verdict,
				})
			}

			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "FEATURE\tRAW\tNORMALIZED")
			for i, f := range obs.Record {
				fmt.Fprintf(w, "%s\t%g\t%.6g\n", f.Name, f.Value, normalized[i].Value)
			}
			w.Flush()
			fmt.Fprintf(out, "\nverdict: %s (score %.6f)\n", verdict.Label, verdict.Score)
			return nil
		},
	}
	cmd.Flags().StringVar(&sourceIP, "source-ip", "127.0.0.1", "Source IP address")
	cmd.Flags().IntVar(&sourcePort, "source-port", 5000, "Source port")
	cmd.Flags().StringVar(&host, "host", "localhost", "Destination host")
	cmd.Flags().DurationVar(&duration, "duration", 0, "Connection duration (e.g. 250ms)")
	cmd.Flags().StringVar(&modelPath, "model", "", "Model artifact path (overrides model.path)")
	cmd.Flags().StringVar(&servingURL, "serving-url", "", "Model server base URL (overrides model.serving_url)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON instead of a table")
	return cmd
}

// ── bounds ───────────────────────────────────────────────────────────────────

func (c *cli) boundsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "bounds",
		Short: "Print the effective feature bounds table",
		RunE: func(cmd *cobra.Command, args []string) error {
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "FEATURE\tMIN\tMAX")
			for _, e := range c.cfg.Bounds.Entries() {
				fmt.Fprintf(w, "%s\t%g\t%g\n", e.Name, e.Min, e.Max)
			}
			return w.Flush()
		},
	}
}

// ── snapshot ─────────────────────────────────────────────────────────────────

func (c *cli) snapshotCmd() *cobra.Command {
	var path string
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Print the most recent normalised snapshot",
		RunE: func(cmd *cobra.Command, args []string) error {
			if path == "" {
				path = c.cfg.Snapshot
			}
			rec, err := snapshot.ReadFile(path)
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			return printRecord(cmd.OutOrStdout(), rec.Names(), rec.Values())
		},
	}
	cmd.Flags().StringVar(&path, "path", "", "Snapshot file (overrides snapshot.path)")
	return cmd
}

func printRecord(out io.Writer, names []string, values []float64) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "FEATURE\tVALUE")
	for i, n := range names {
		fmt.Fprintf(w, "%s\t%.6g\n", n, values[i])
	}
	return w.Flush()
}
