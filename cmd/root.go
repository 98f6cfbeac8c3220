package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/joescharf/qam/internal/obs"
	"github.com/joescharf/qam/internal/output"
	"github.com/joescharf/qam/internal/review"
	"github.com/joescharf/qam/internal/store"
	"github.com/joescharf/qam/internal/testreport"
)

// Package-level shared dependencies, initialized in cobra.OnInitialize.
var (
	ui          *output.UI
	journal     store.Store
	obsClient   *obs.CachedClient
	oscRunner   *obs.OscRunner
	reportsSrc  *testreport.Fetcher
	sessionUser string

	verbose bool
	dryRun  bool
)

var rootCmd = &cobra.Command{
	Use:   "qam",
	Short: "QA maintenance review workflow for the build service",
	Long: `qam assigns, unassigns, approves and rejects QA maintenance reviews.

Review assignments are not stored by the build service; qam infers them
from each request's review history. The inferred state is what the
history says, not an authoritative record.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	DisableAutoGenTag: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		resetSession()
	},
}

// Execute is the main entry point called from main.go.
func Execute(version, commit, date string) {
	buildVersion = version
	buildCommit = commit
	buildDate = date

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig, initDeps)

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")
	rootCmd.PersistentFlags().BoolVarP(&dryRun, "dry-run", "n", false, "Show what would happen without making changes")
	rootCmd.PersistentFlags().String("config", "", "Config file (default ~/.config/qam/config.yaml)")
	rootCmd.PersistentFlags().StringP("apiurl", "A", "", "Build service API URL")
	_ = viper.BindPFlag("apiurl", rootCmd.PersistentFlags().Lookup("apiurl"))
}

func initConfig() {
	// If --config is explicitly set, use that file
	if cfgFile, _ := rootCmd.PersistentFlags().GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: cannot find home directory: %v\n", err)
			os.Exit(1)
		}

		configDir := filepath.Join(home, ".config", "qam")
		viper.AddConfigPath(configDir)
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("QAM")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	_ = viper.BindEnv("anthropic.api_key", "QAM_ANTHROPIC_API_KEY", "ANTHROPIC_API_KEY")

	setDefaults()

	// Read config file if it exists (optional)
	_ = viper.ReadInConfig()
}

func setDefaults() {
	home, _ := os.UserHomeDir()
	defaultConfigDir := filepath.Join(home, ".config", "qam")

	viper.SetDefault("apiurl", "https://api.suse.de")
	viper.SetDefault("osc_command", "osc")
	viper.SetDefault("user", "")
	viper.SetDefault("workers", 8)
	viper.SetDefault("timeout", "60s")
	viper.SetDefault("testreport.base_url", testreport.DefaultBaseURL)
	viper.SetDefault("testreport.fancy_base_url", testreport.DefaultFancyBaseURL)
	viper.SetDefault("smelt.url", "https://smelt.suse.de/graphql/")
	viper.SetDefault("journal_path", filepath.Join(defaultConfigDir, "journal.db"))
	viper.SetDefault("anthropic.api_key", "")
	viper.SetDefault("anthropic.model", "claude-haiku-4-5-20251001")
}

func initDeps() {
	ui = output.New()
	ui.Verbose = verbose
	ui.DryRun = dryRun

	// Clients are created lazily so that config and version run without osc.
}

// resetSession drops memoized build service reads. Each command invocation
// is one session.
func resetSession() {
	if obsClient != nil {
		obsClient.Reset()
	}
	sessionUser = ""
}

// getRunner returns the shared osc runner.
func getRunner() (*obs.OscRunner, error) {
	if oscRunner != nil {
		return oscRunner, nil
	}
	r, err := obs.NewOscRunner(viper.GetString("osc_command"), viper.GetString("apiurl"))
	if err != nil {
		return nil, err
	}
	oscRunner = r.WithTimeout(viper.GetDuration("timeout"))
	return oscRunner, nil
}

// getClient returns the shared, session-cached build service client.
func getClient() (*obs.CachedClient, error) {
	if obsClient != nil {
		return obsClient, nil
	}
	r, err := getRunner()
	if err != nil {
		return nil, err
	}
	c := obs.NewClient(r, obs.Config{
		APIURL:   viper.GetString("apiurl"),
		SmeltURL: viper.GetString("smelt.url"),
		Workers:  viper.GetInt("workers"),
	})
	obsClient = obs.NewCachedClient(c)
	return obsClient, nil
}

// getReports returns the shared test report fetcher.
func getReports() *testreport.Fetcher {
	if reportsSrc == nil {
		reportsSrc = testreport.NewFetcher(
			viper.GetString("testreport.base_url"),
			viper.GetString("testreport.fancy_base_url"),
		)
	}
	return reportsSrc
}

// getJournal returns the shared journal store, initializing it on first call.
func getJournal() (store.Store, error) {
	if journal != nil {
		return journal, nil
	}

	dbPath := viper.GetString("journal_path")
	s, err := store.NewSQLiteStore(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}

	if err := s.Migrate(context.Background()); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("migrate journal: %w", err)
	}

	journal = s
	return journal, nil
}

// getService wires the review workflow. A journal that cannot be opened is
// reported and skipped.
func getService() (*review.Service, error) {
	c, err := getClient()
	if err != nil {
		return nil, err
	}
	j, err := getJournal()
	if err != nil {
		ui.Warning("Journal disabled: %v", err)
		j = nil
	}
	return review.NewService(c, getReports(), j).WithDryRun(dryRun), nil
}

// currentUser returns the configured user, or asks osc who is logged in.
func currentUser(ctx context.Context) (string, error) {
	if sessionUser != "" {
		return sessionUser, nil
	}
	if u := viper.GetString("user"); u != "" {
		sessionUser = u
		return u, nil
	}
	r, err := getRunner()
	if err != nil {
		return "", err
	}
	u, err := r.Whoami(ctx)
	if err != nil {
		return "", fmt.Errorf("determine user (set 'user' in the config or pass -U): %w", err)
	}
	ui.VerboseLog("Acting as %s", u)
	sessionUser = u
	return u, nil
}
