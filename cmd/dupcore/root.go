package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	dupcoreconfig "github.com/repomemory/dupcore/internal/config"
	"github.com/repomemory/dupcore/internal/detector"
	"github.com/repomemory/dupcore/internal/embedding"
	"github.com/repomemory/dupcore/internal/storage"
	"github.com/repomemory/dupcore/internal/storage/postgres"
	"github.com/repomemory/dupcore/internal/storage/sqlite"
)

// det is the process-wide detector every subcommand operates on, built
// in rootCmd's PersistentPreRunE, mirroring cmd/vc's global `store`.
var det *detector.Detector

var configPath string

var rootCmd = &cobra.Command{
	Use:   "dupcore",
	Short: "Repository-memory duplicate PR detector",
	Long:  "dupcore checks pull request descriptors for near-duplicates against a repository's history of prior PRs.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "help" || cmd.Name() == "dupcore" {
			return nil
		}
		d, err := buildDetector()
		if err != nil {
			return err
		}
		det = d
		return nil
	},
}

func buildDetector() (*detector.Detector, error) {
	emb, err := embedding.NewLocalEmbedder(512)
	if err != nil {
		return nil, fmt.Errorf("construct embedder: %w", err)
	}

	var cfg detector.Config
	var sc dupcoreconfig.StorageConfig
	if configPath != "" {
		cfg, sc, err = dupcoreconfig.LoadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("load config %s: %w", configPath, err)
		}
	} else {
		cfg, err = detector.ConfigFromEnv()
		if err != nil {
			return nil, fmt.Errorf("load config from environment: %w", err)
		}
		sc.Backend = "sqlite"
		sc.Path = "dupcore.db"
	}
	cfg.Embedder = emb

	store, err := buildStorage(sc)
	if err != nil {
		return nil, fmt.Errorf("construct storage: %w", err)
	}
	cfg.Storage = store

	d, err := detector.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("construct detector: %w", err)
	}
	if err := d.Init(cmdContext()); err != nil {
		return nil, fmt.Errorf("initialize detector: %w", err)
	}
	return d, nil
}

func buildStorage(sc dupcoreconfig.StorageConfig) (storage.Storage, error) {
	switch sc.Backend {
	case "", "memory":
		return storage.NewMemoryStorage(), nil
	case "sqlite":
		path := sc.Path
		if path == "" {
			path = "dupcore.db"
		}
		return sqlite.New(path)
	case "postgres":
		pgCfg := postgres.DefaultConfig()
		if sc.Host != "" {
			pgCfg.Host = sc.Host
		}
		if sc.Port != 0 {
			pgCfg.Port = sc.Port
		}
		if sc.Database != "" {
			pgCfg.Database = sc.Database
		}
		if sc.User != "" {
			pgCfg.User = sc.User
		}
		if sc.Password != "" {
			pgCfg.Password = sc.Password
		}
		if sc.SSLMode != "" {
			pgCfg.SSLMode = sc.SSLMode
		}
		return postgres.New(cmdContext(), pgCfg)
	default:
		return nil, fmt.Errorf("unsupported storage backend %q from the CLI (pass --config with storage.backend set to memory, sqlite, or postgres)", sc.Backend)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to a YAML/JSON config file (DUPCORE_* env vars override it)")
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(serveReplCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
