// Package main provides the Melvin CLI entry point.
package main

import (
	"bufio"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Jak3Gil/melvin/pkg/config"
	"github.com/Jak3Gil/melvin/pkg/melvin"
)

var (
	version = "0.1.0"
	commit  = "dev"
)

func main() {
	var brainPath string
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "melvin",
		Short: "Melvin - byte-level associative graph engine",
		Long: `Melvin learns sequential patterns from raw byte streams and
generates continuations from a stochastic walk over its graph.

Everything it knows lives in one brain file: a content-addressed
byte-payload graph with hierarchy nodes for frequent spans, context-
tagged forward edges, trained stop edges, and the RNG state that makes
generation reproducible.`,
	}
	rootCmd.PersistentFlags().StringVar(&brainPath, "brain", "brain.melvin", "Brain file path")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Optional YAML parameter file")

	loadConfig := func() (*config.Config, error) {
		cfg := config.LoadFromEnv()
		if configPath != "" {
			if err := cfg.LoadFile(configPath); err != nil {
				return nil, err
			}
		}
		return cfg, cfg.Validate()
	}

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("Melvin v%s (%s)\n", version, commit)
		},
	})

	rootCmd.AddCommand(&cobra.Command{
		Use:   "create",
		Short: "Create an empty brain file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			db, err := melvin.Create(brainPath, cfg)
			if err != nil {
				return err
			}
			fmt.Printf("created %s\n", brainPath)
			return db.Close()
		},
	})

	rootCmd.AddCommand(&cobra.Command{
		Use:   "stats",
		Short: "Print brain statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			db, err := melvin.Load(brainPath, cfg)
			if err != nil {
				return err
			}
			defer db.Close()
			s := db.Stats()
			fmt.Printf("nodes:       %d\n", s.NodeCount)
			fmt.Printf("edges:       %d\n", s.EdgeCount)
			fmt.Printf("activations: %d\n", s.ActivationsTotal)
			fmt.Printf("hierarchy:   %d\n", s.HierarchyNodes)
			return nil
		},
	})

	ingestCmd := &cobra.Command{
		Use:   "ingest [text...]",
		Short: "Ingest arguments (or stdin when none) as complete sequences",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			db, err := melvin.Load(brainPath, cfg)
			if err != nil {
				return err
			}
			defer db.Close()
			if len(args) > 0 {
				for _, a := range args {
					if err := db.Ingest([]byte(a), true); err != nil {
						return err
					}
				}
				return nil
			}
			scanner := bufio.NewScanner(os.Stdin)
			for scanner.Scan() {
				if err := db.Ingest(scanner.Bytes(), true); err != nil {
					return err
				}
			}
			return scanner.Err()
		},
	}
	rootCmd.AddCommand(ingestCmd)

	generateCmd := &cobra.Command{
		Use:   "generate <prefix>",
		Short: "Ingest a prefix without completing it, then generate a continuation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			maxBytes, _ := cmd.Flags().GetInt("max-bytes")
			db, err := melvin.Load(brainPath, cfg)
			if err != nil {
				return err
			}
			defer db.Close()
			if err := db.Ingest([]byte(args[0]), false); err != nil {
				return err
			}
			out, err := db.Generate(maxBytes)
			if err != nil {
				return err
			}
			fmt.Printf("%s\n", out)
			return nil
		},
	}
	generateCmd.Flags().Int("max-bytes", 256, "Upper bound on emitted bytes")
	rootCmd.AddCommand(generateCmd)

	rootCmd.AddCommand(&cobra.Command{
		Use:   "repl",
		Short: "Interactive loop: ingest each line, print a continuation",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			db, err := melvin.Load(brainPath, cfg)
			if err != nil {
				return err
			}
			defer db.Close()
			return runREPL(db)
		},
	})

	rootCmd.AddCommand(&cobra.Command{
		Use:   "maintain",
		Short: "Run one decay maintenance pass",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			db, err := melvin.Load(brainPath, cfg)
			if err != nil {
				return err
			}
			defer db.Close()
			return db.Maintain()
		},
	})

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// runREPL mirrors the reference driver: each stdin line is ingested as a
// complete sequence, then re-ingested as an open prefix and continued.
func runREPL(db *melvin.DB) error {
	scanner := bufio.NewScanner(os.Stdin)
	fmt.Print("> ")
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) > 0 {
			if err := db.Ingest(line, true); err != nil {
				return err
			}
			if err := db.Ingest(line, false); err != nil {
				return err
			}
			out, err := db.Generate(256)
			if err != nil {
				return err
			}
			fmt.Printf("%s\n", out)
		}
		fmt.Print("> ")
	}
	return scanner.Err()
}
