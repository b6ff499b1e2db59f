package cli

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
	"github.com/custodia-labs/sercha-ingest/internal/core/services"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Manage application settings",
	Long: `View and configure ingestion, OCR, chunking, model and storage settings.

Settings are read from the config file and may be overridden by INGEST_*
environment variables (INGEST_CHUNK_SIZE overrides chunk.size).`,
	Annotations: settingsAnnotations,
	RunE:        runSettingsShow,
}

var settingsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current settings",
	RunE:  runSettingsShow,
}

var settingsGetCmd = &cobra.Command{
	Use:   "get [key]",
	Short: "Print one setting",
	Args:  cobra.ExactArgs(1),
	RunE:  runSettingsGet,
}

var settingsSetCmd = &cobra.Command{
	Use:   "set [key] [value]",
	Short: "Change one setting",
	Long: `Change one setting and save it to the config file.

The value is parsed according to the key's type and the change is rejected
if the resulting settings are invalid. Run "settings keys" for the key list.`,
	Args: cobra.ExactArgs(2),
	RunE: runSettingsSet,
}

var settingsKeysCmd = &cobra.Command{
	Use:   "keys",
	Short: "List recognised setting keys",
	RunE:  runSettingsKeys,
}

var settingsPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the config file path",
	RunE:  runSettingsPath,
}

var settingsValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check that the configured model providers are reachable",
	RunE:  runSettingsValidate,
}

var settingsEmbeddingCmd = &cobra.Command{
	Use:   "embedding",
	Short: "Configure embedding provider",
	Long:  `Interactively choose the embedding provider, model and API key.`,
	RunE:  runSettingsEmbedding,
}

var settingsChartCmd = &cobra.Command{
	Use:   "chart",
	Short: "Configure chart model provider",
	Long:  `Interactively choose the vision model used to describe and digitise charts.`,
	RunE:  runSettingsChart,
}

func init() {
	settingsCmd.AddCommand(settingsShowCmd)
	settingsCmd.AddCommand(settingsGetCmd)
	settingsCmd.AddCommand(settingsSetCmd)
	settingsCmd.AddCommand(settingsKeysCmd)
	settingsCmd.AddCommand(settingsPathCmd)
	settingsCmd.AddCommand(settingsValidateCmd)
	settingsCmd.AddCommand(settingsEmbeddingCmd)
	settingsCmd.AddCommand(settingsChartCmd)
	rootCmd.AddCommand(settingsCmd)
}

func runSettingsShow(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}

	settings, err := settingsService.Get()
	if err != nil {
		return fmt.Errorf("failed to get settings: %w", err)
	}

	p := newPrinter(cmd.OutOrStdout())
	cmd.Println(p.Title("Current Settings"))
	cmd.Println(p.Muted(settingsService.Path()))

	section := ""
	for _, key := range settingsService.Keys() {
		prefix, name, _ := strings.Cut(key, ".")
		if prefix != section {
			section = prefix
			cmd.Println()
			cmd.Println(p.Heading("[" + section + "]"))
		}
		value, _ := services.Value(settings, key)
		if value == "" {
			value = p.Muted("(not set)")
		}
		cmd.Printf("  %-24s %s\n", name, value)
	}

	cmd.Println()
	cmd.Printf("Embedding: %s\n", configuredStatus(p, settings.Embedding.IsConfigured()))
	cmd.Printf("Chart model: %s\n", configuredStatus(p, settings.Chart.IsConfigured()))
	return nil
}

func configuredStatus(p *printer, ok bool) string {
	if ok {
		return p.Success("configured")
	}
	return p.Warning("not configured")
}

func runSettingsGet(cmd *cobra.Command, args []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}

	settings, err := settingsService.Get()
	if err != nil {
		return fmt.Errorf("failed to get settings: %w", err)
	}
	value, ok := services.Value(settings, args[0])
	if !ok {
		return fmt.Errorf("unknown setting %q", args[0])
	}
	cmd.Println(value)
	return nil
}

func runSettingsSet(cmd *cobra.Command, args []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}

	if err := settingsService.Set(args[0], args[1]); err != nil {
		return fmt.Errorf("failed to set %s: %w", args[0], err)
	}
	cmd.Printf("%s updated.\n", args[0])
	return nil
}

func runSettingsKeys(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}

	for _, key := range settingsService.Keys() {
		cmd.Println(key)
	}
	return nil
}

func runSettingsPath(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}

	cmd.Println(settingsService.Path())
	return nil
}

func runSettingsValidate(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}

	settings, err := settingsService.Get()
	if err != nil {
		return fmt.Errorf("invalid settings: %w", err)
	}
	cmd.Println("Settings: OK")

	var errs []error
	cmd.Print("Embedding provider... ")
	if err := settingsService.ValidateEmbeddingConfig(); err != nil {
		cmd.Printf("FAILED: %v\n", err)
		errs = append(errs, fmt.Errorf("embedding: %w", err))
	} else {
		cmd.Println("OK")
	}

	cmd.Print("Chart model... ")
	if !settings.Chart.IsConfigured() {
		cmd.Println("disabled")
	} else if err := settingsService.ValidateChartConfig(); err != nil {
		cmd.Printf("FAILED: %v\n", err)
		errs = append(errs, fmt.Errorf("chart model: %w", err))
	} else {
		cmd.Println("OK")
	}

	return errors.Join(errs...)
}

func runSettingsEmbedding(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}
	reader := bufio.NewReader(cmd.InOrStdin())
	return configureProvider(cmd, reader, providerPrompt{
		label:     "Embedding",
		prefix:    "embedding",
		providers: domain.AllEmbeddingProviders(),
		defaults:  domain.DefaultEmbeddingModels(),
		validate:  settingsService.ValidateEmbeddingConfig,
	})
}

func runSettingsChart(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}
	reader := bufio.NewReader(cmd.InOrStdin())
	return configureProvider(cmd, reader, providerPrompt{
		label:     "Chart model",
		prefix:    "chart",
		providers: append(domain.AllChartProviders(), domain.AIProviderNone),
		defaults:  domain.DefaultChartModels(),
		validate:  settingsService.ValidateChartConfig,
	})
}

// providerPrompt describes one interactive provider setup.
type providerPrompt struct {
	label     string
	prefix    string
	providers []domain.AIProvider
	defaults  map[domain.AIProvider]string
	validate  func() error
}

func configureProvider(cmd *cobra.Command, reader *bufio.Reader, pp providerPrompt) error {
	cmd.Printf("Select %s Provider\n", pp.label)
	for i, p := range pp.providers {
		cmd.Printf("  %d. %s\n", i+1, p.Description())
	}
	cmd.Print("\nEnter choice [1]: ")
	input := readLine(reader)
	idx := parseChoice(input, len(pp.providers), 1)
	selectedProvider := pp.providers[idx-1]

	if selectedProvider == domain.AIProviderNone {
		if err := settingsService.Set(pp.prefix+".provider", selectedProvider.String()); err != nil {
			return fmt.Errorf("failed to configure %s provider: %w", pp.prefix, err)
		}
		cmd.Printf("%s disabled.\n", pp.label)
		return nil
	}

	// Get model
	defaultModel := pp.defaults[selectedProvider]
	cmd.Printf("Enter model name [%s]: ", defaultModel)
	model := readLine(reader)
	if model == "" {
		model = defaultModel
	}

	// Get API key if needed
	var apiKey string
	if selectedProvider.RequiresAPIKey() {
		cmd.Print("Enter API key: ")
		apiKey = readPassword(reader)
		cmd.Println()
		if apiKey == "" {
			return errors.New("API key is required for this provider")
		}
	}

	changes := [][2]string{
		{pp.prefix + ".provider", selectedProvider.String()},
		{pp.prefix + ".model", model},
	}
	if apiKey != "" {
		changes = append(changes, [2]string{pp.prefix + ".api_key", apiKey})
	}
	for _, c := range changes {
		if err := settingsService.Set(c[0], c[1]); err != nil {
			return fmt.Errorf("failed to configure %s provider: %w", pp.prefix, err)
		}
	}

	// Validate the configuration by pinging the service
	cmd.Print("Validating configuration... ")
	if err := pp.validate(); err != nil {
		cmd.Printf("FAILED: %v\n", err)
		return fmt.Errorf("%s configuration validation failed: %w", pp.prefix, err)
	}
	cmd.Println("OK")

	cmd.Printf("%s provider configured: %s (%s)", pp.label, selectedProvider.Description(), model)
	if apiKey != "" {
		cmd.Printf(", key %s", maskAPIKey(apiKey))
	}
	cmd.Print("\n\n")
	return nil
}

// Helper functions.

//nolint:errcheck // CLI helper, error ignored for UX
func readLine(reader *bufio.Reader) string {
	input, _ := reader.ReadString('\n')
	return strings.TrimSpace(input)
}

func parseChoice(input string, maxVal, defaultVal int) int {
	if input == "" {
		return defaultVal
	}
	val, err := strconv.Atoi(input)
	if err != nil || val < 1 || val > maxVal {
		return defaultVal
	}
	return val
}

// readPassword reads without echo on a terminal, otherwise falls back to reader.
func readPassword(reader *bufio.Reader) string {
	if term.IsTerminal(int(os.Stdin.Fd())) {
		password, err := term.ReadPassword(int(os.Stdin.Fd()))
		if err == nil {
			return string(password)
		}
	}
	return readLine(reader)
}

func maskAPIKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "..." + key[len(key)-4:]
}
