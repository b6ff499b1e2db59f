// Package cli provides the sercha-ingest command line interface.
package cli

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/sercha-ingest/internal/core/ports/driving"
	"github.com/custodia-labs/sercha-ingest/internal/logger"
)

// Services are the core services the commands drive.
type Services struct {
	Ingestor driving.Ingestor
	Query    driving.QueryService
	Settings driving.SettingsService

	// Warnings are printed once before the command runs.
	Warnings []string

	// Close releases adapters. May be nil.
	Close func()
}

// Needs says which services a command uses.
type Needs int

// Service levels, from least to most.
const (
	// NeedsNothing commands run without any services (version).
	NeedsNothing Needs = iota

	// NeedsSettings commands only read and write configuration.
	NeedsSettings

	// NeedsStore commands use settings and the index but never a model provider.
	NeedsStore

	// NeedsModels commands embed text, so the embedding provider must be reachable.
	NeedsModels
)

// Factory builds Services for a run. configPath is the --config flag; empty
// means the default location.
type Factory func(ctx context.Context, configPath string, needs Needs) (*Services, error)

const needsAnnotation = "needs"

// Annotations for commands; subcommands inherit their parent's level.
var (
	settingsAnnotations = map[string]string{needsAnnotation: "settings"}
	storeAnnotations    = map[string]string{needsAnnotation: "store"}
	modelAnnotations    = map[string]string{needsAnnotation: "models"}
)

var (
	version = "dev"

	// Services set by the factory, or directly by tests.
	ingestor        driving.Ingestor
	queryService    driving.QueryService
	settingsService driving.SettingsService
	closeServices   func()

	factory    Factory
	configPath string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "sercha-ingest",
	Short: "Ingest PDFs into a searchable vector index",
	Long: `sercha-ingest turns folders of PDFs into chunks in a vector index.

Each document is parsed page by page. Text, tables, figures and charts are
extracted, scanned pages are OCR'd, and every chunk is quality gated,
embedded and stored with a citation back to its page.`,
	SilenceUsage:      true,
	PersistentPreRunE: loadServices,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default ~/.sercha-ingest/config.toml)")
}

// SetVersion sets the version reported by the version command.
func SetVersion(v string) {
	if v != "" {
		version = v
	}
}

// SetFactory sets how commands obtain their services.
func SetFactory(f Factory) {
	factory = f
}

// Execute runs the root command and releases services afterwards.
func Execute(ctx context.Context) error {
	defer releaseServices()
	return rootCmd.ExecuteContext(ctx)
}

// needsOf returns the service level declared by cmd or its nearest parent.
func needsOf(cmd *cobra.Command) Needs {
	for c := cmd; c != nil; c = c.Parent() {
		switch c.Annotations[needsAnnotation] {
		case "settings":
			return NeedsSettings
		case "store":
			return NeedsStore
		case "models":
			return NeedsModels
		}
	}
	return NeedsNothing
}

func loadServices(cmd *cobra.Command, _ []string) error {
	logger.SetVerbose(verbose)

	needs := needsOf(cmd)
	if factory == nil || needs == NeedsNothing {
		return nil
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	svc, err := factory(ctx, configPath, needs)
	if err != nil {
		return err
	}
	if svc == nil {
		return errors.New("no services configured")
	}

	ingestor = svc.Ingestor
	queryService = svc.Query
	settingsService = svc.Settings
	closeServices = svc.Close

	for _, w := range svc.Warnings {
		cmd.PrintErrf("warning: %s\n", w)
	}
	return nil
}

func releaseServices() {
	if closeServices != nil {
		closeServices()
		closeServices = nil
	}
}
