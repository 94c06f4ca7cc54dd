package main

import (
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/ehr/searchindex/internal/config"
	"github.com/ehr/searchindex/internal/platform/fhirpath"
	"github.com/ehr/searchindex/internal/platform/searchparam"
	"github.com/ehr/searchindex/internal/platform/terminology"
	"github.com/ehr/searchindex/internal/platform/tokenindex"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "search-indexer",
		Short:        "FHIR token search index and query compiler",
		SilenceUsage: true,
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(reindexCmd())
	rootCmd.AddCommand(explainCmd())
	rootCmd.AddCommand(paramsCmd())
	rootCmd.AddCommand(valueSetCmd())
	return rootCmd
}

// newLogger writes JSON to out, or console output in development.
func newLogger(cfg *config.Config, out io.Writer) zerolog.Logger {
	logger := zerolog.New(out).With().Timestamp().Logger()
	if cfg.IsDev() {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: out}).With().Timestamp().Logger()
	}
	return logger.Level(cfg.Level())
}

// app holds the components every command builds from the configuration.
type app struct {
	cfg      *config.Config
	logger   zerolog.Logger
	registry *searchparam.Registry
	compiler *tokenindex.Compiler
	store    *tokenindex.Store
}

func newApp(logOut io.Writer) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	logger := newLogger(cfg, logOut)

	defs := searchparam.Defaults()
	if cfg.SearchParametersFile != "" {
		extra, err := searchparam.LoadFile(cfg.SearchParametersFile)
		if err != nil {
			return nil, err
		}
		defs = append(defs, extra...)
	}
	registry, err := searchparam.NewRegistry(defs, logger)
	if err != nil {
		return nil, fmt.Errorf("build search parameter registry: %w", err)
	}

	valueSets := terminology.NewResolver()
	extractor := tokenindex.NewExtractor(registry, fhirpath.NewEngine(), logger)
	return &app{
		cfg:      cfg,
		logger:   logger,
		registry: registry,
		compiler: tokenindex.NewCompiler(registry, valueSets, logger, tokenindex.WithLegacyCaseMatch(cfg.TokenLegacyCaseMatch)),
		store:    tokenindex.NewStore(registry, extractor, logger),
	}, nil
}

// resourceTypes returns the explicitly requested types, else RESOURCE_TYPES,
// else every registered type. Unknown types are rejected.
func (a *app) resourceTypes(requested []string) ([]string, error) {
	types := requested
	if len(types) == 0 {
		types = a.cfg.ResourceTypes
	}
	if len(types) == 0 {
		return a.registry.ResourceTypes(), nil
	}
	for _, rt := range types {
		if len(a.registry.SearchParameters(rt)) == 0 {
			return nil, fmt.Errorf("unknown resource type %q", rt)
		}
	}
	return types, nil
}
