package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"cmsdl/internal/downloader"
	"cmsdl/pkg/auth"
	"cmsdl/pkg/config"
	"cmsdl/pkg/logger"
	"cmsdl/pkg/scraper"
	"cmsdl/pkg/ui"

	"github.com/spf13/cobra"
)

var (
	// Version information
	version   = "1.0.0"
	gitCommit = "unknown"
	buildDate = "unknown"

	// Global flags
	configFile string
	logLevel   string
	quiet      bool
	noProgress bool

	// Sync flags
	host          string
	outputDir     string
	extensions    []string
	concurrent    int
	rateLimit     int
	credsBackend  string
	notifications bool
)

var rootCmd = &cobra.Command{
	Use:   "cmsdl",
	Short: "Download course material from the GUC CMS",
	Long: `cmsdl mirrors every file published on the GUC course management system
into a local folder tree:

  <downloads>/[CODE] Course Name/W MM-DD/File Title.ext

Files already on disk are never downloaded again, so running cmsdl
repeatedly only fetches what is new. The course list is cached in
.courses.json; run 'cmsdl cache clear' after registering for new courses.`,
	Example: `  # Sync everything into ./downloads
  cmsdl

  # Only slides and PDFs, eight workers
  cmsdl --extensions pdf,pptx --concurrent 8

  # Use the system keychain for the password
  cmsdl --credentials-backend keyring`,
	Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, gitCommit, buildDate),
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if quiet {
			ui.Stdout = io.Discard
		}
		if cmd.Name() != "version" && cmd.Name() != "help" {
			ui.PrintBanner()
		}
		return nil
	},
	RunE: runSync,
}

// Execute runs the root command and exits non-zero on failure
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, ui.Red("Error: "+err.Error()))
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (default is ./config.yml or ~/.config/cmsdl/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress all output except errors")
	rootCmd.PersistentFlags().BoolVar(&noProgress, "no-progress", false, "disable the progress bar")

	rootCmd.Flags().StringVar(&host, "host", "", "portal base URL")
	rootCmd.Flags().StringVarP(&outputDir, "output", "o", "", "downloads directory")
	rootCmd.Flags().StringSliceVar(&extensions, "extensions", nil, "only download these extensions (comma separated)")
	rootCmd.Flags().IntVar(&concurrent, "concurrent", 0, "number of concurrent downloads")
	rootCmd.Flags().IntVar(&rateLimit, "rate-limit", -1, "download requests per minute (0 disables limiting)")
	rootCmd.Flags().StringVar(&credsBackend, "credentials-backend", "", "credential store: file, keyring, encrypted, env")
	rootCmd.Flags().BoolVar(&notifications, "notifications", false, "send a desktop notification when the sync ends")

	rootCmd.SetVersionTemplate(`cmsdl {{.Version}}
Go Version: ` + runtime.Version() + `
OS/Arch: ` + runtime.GOOS + `/` + runtime.GOARCH + `
`)

	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

// loadConfig resolves configuration from every source and initialises logging
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	flags := make(map[string]interface{})
	flagSet := cmd.Flags()
	if flagSet.Changed("host") {
		flags["host"] = host
	}
	if flagSet.Changed("output") {
		flags["output"] = outputDir
	}
	if flagSet.Changed("extensions") {
		flags["extensions"] = extensions
	}
	if flagSet.Changed("concurrent") {
		flags["concurrent"] = concurrent
	}
	if flagSet.Changed("rate-limit") {
		flags["rate-limit"] = rateLimit
	}
	if flagSet.Changed("credentials-backend") {
		flags["credentials-backend"] = credsBackend
	}
	if flagSet.Changed("notifications") {
		flags["notifications"] = notifications
	}
	if logLevel != "" {
		flags["log-level"] = logLevel
	}

	cfg, err := config.Load(configFile, flags)
	if err != nil {
		return nil, err
	}
	if quiet && logLevel == "" {
		cfg.Logging.Level = "error"
	}

	if err := logger.Initialize(&cfg.Logging); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return cfg, nil
}

func runSync(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	log := logger.GetLogger()
	log.WithField("version", version).Info("cmsdl starting")

	notifier := ui.NewNotifier(cfg.Notifications)

	store, err := auth.NewStore(cfg.Credentials)
	if err != nil {
		return err
	}
	var prompter auth.Prompter
	if auth.IsInteractive() {
		prompter = auth.NewTerminalPrompter()
	}

	var display *ui.ProgressDisplay
	var opts []scraper.Option
	if !quiet && !noProgress {
		opts = append(opts, scraper.WithProgress(func(total int) downloader.ProgressReporter {
			display = ui.NewProgressDisplay(os.Stdout, total)
			return display
		}))
	}

	p, err := scraper.New(cfg, auth.NewManager(store, prompter, log), log, opts...)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ui.PrintInfo("Portal", cfg.Portal.Host)
	ui.PrintInfo("Downloads", cfg.Output.DownloadsDir)

	report, err := p.Run(ctx)
	if display != nil {
		display.Complete()
	}
	if err != nil {
		notifier.NotifyError(err)
		return err
	}

	printReport(report)
	notifier.NotifyComplete(report.Downloaded, report.Failed)
	return nil
}

func printReport(r *scraper.Report) {
	if r.Queued == 0 {
		ui.PrintSuccess("Everything is up to date")
		return
	}

	ui.PrintInfo("Courses", fmt.Sprintf("%d (%d failed)", r.Courses, r.CoursesFailed))
	ui.PrintInfo("Downloaded", fmt.Sprintf("%d of %d files, %s", r.Downloaded, r.Queued, ui.FormatBytes(r.Bytes)))
	if r.Failed > 0 {
		ui.PrintWarning("Some files failed to download", fmt.Sprintf("%d", r.Failed))
		return
	}
	ui.PrintSuccess(fmt.Sprintf("Sync finished in %s", r.Duration.Round(time.Millisecond)))
}
