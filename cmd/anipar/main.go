package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/BurntSushi/toml"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/Nomadcxx/anipar/internal/batch"
	"github.com/Nomadcxx/anipar/internal/config"
	"github.com/Nomadcxx/anipar/internal/logging"
	"github.com/Nomadcxx/anipar/internal/parser"
	"github.com/Nomadcxx/anipar/internal/reporter"
	"github.com/Nomadcxx/anipar/internal/ui"
)

// Version information (set via -ldflags during build)
var (
	version   = "dev"
	commit    = "unknown"
	buildTime = "unknown"
)

// app carries the flags and config shared by every subcommand
type app struct {
	cfgFile string
	verbose bool
	quiet   bool

	fs     afero.Fs
	stdin  io.Reader
	config *config.Config
}

func newRootCmd() *cobra.Command {
	a := &app{fs: afero.NewOsFs()}

	rootCmd := &cobra.Command{
		Use:           "anipar",
		Short:         "Anime release title parser",
		Long:          getLongDescription(),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			a.stdin = cmd.InOrStdin()
			return a.setup()
		},
	}

	var parseFormat string
	parseCmd := &cobra.Command{
		Use:   "parse [title...]",
		Short: "Parse release titles from arguments or stdin",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runParse(cmd, args, parseFormat)
		},
	}
	parseCmd.Flags().StringVarP(&parseFormat, "format", "f", "", "output format: json, yaml, toml, csv, text (default from config)")

	var batchFormat string
	var useTUI bool
	batchCmd := &cobra.Command{
		Use:   "batch <title-list|->",
		Short: "Parse a title list concurrently and write a report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if useTUI {
				return a.runBatchTUI(cmd.Context(), args[0])
			}
			return a.runBatch(cmd, args[0], batchFormat)
		},
	}
	batchCmd.Flags().StringVarP(&batchFormat, "format", "f", "", "also print the report to stdout in this format")
	batchCmd.Flags().BoolVar(&useTUI, "tui", false, "show progress and browse the result in the TUI")

	viewCmd := &cobra.Command{
		Use:   "view <report.json>",
		Short: "Browse a parse report in the TUI",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runView(args[0])
		},
	}

	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Show configuration file location and contents",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runConfig(cmd.OutOrStdout())
		},
	}

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "anipar %s\n", version)
			fmt.Fprintf(out, "  Commit:     %s\n", commit)
			fmt.Fprintf(out, "  Built:      %s\n", buildTime)
		},
	}

	rootCmd.PersistentFlags().StringVar(&a.cfgFile, "config", "", "config file (default is $XDG_CONFIG_HOME/anipar/config.toml)")
	rootCmd.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "debug logging on stderr")
	rootCmd.PersistentFlags().BoolVarP(&a.quiet, "quiet", "q", false, "only log errors")
	rootCmd.MarkFlagsMutuallyExclusive("verbose", "quiet")

	rootCmd.AddCommand(parseCmd, batchCmd, viewCmd, configCmd, versionCmd)
	return rootCmd
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, "Cancelled by user")
			os.Exit(130) // Exit code 130 for SIGINT
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// setup loads the config and points the logger at it
func (a *app) setup() error {
	cfg, err := a.loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	a.config = cfg

	opts := logging.Options{Verbose: a.verbose, Quiet: a.quiet}
	if a.verbose {
		opts.Console = logging.ConsoleWriter()
	}
	if err := logging.Init(cfg.Logging, opts); err != nil {
		return fmt.Errorf("failed to set up logging: %w", err)
	}
	return nil
}

func (a *app) loadConfig() (*config.Config, error) {
	if a.cfgFile != "" {
		return config.LoadFrom(a.fs, a.cfgFile)
	}
	return config.Load()
}

func (a *app) configPath() (string, error) {
	if a.cfgFile != "" {
		return a.cfgFile, nil
	}
	return config.ConfigPath()
}

// outputFormat returns the flag value, falling back to the config
func (a *app) outputFormat(flag string) (string, error) {
	format := flag
	if format == "" {
		format = a.config.Output.Format
	}
	if !config.ValidFormat(format) {
		return "", fmt.Errorf("unknown format %q (must be json, yaml, toml, csv, or text)", format)
	}
	return format, nil
}

func (a *app) batchConfig() batch.Config {
	cfg := batch.DefaultConfig()
	if a.config.Batch.Workers > 0 {
		cfg.Workers = a.config.Batch.Workers
	}
	return cfg
}

func (a *app) runParse(cmd *cobra.Command, args []string, formatFlag string) error {
	format, err := a.outputFormat(formatFlag)
	if err != nil {
		return err
	}

	sr, err := reporter.NewStreamingReporter(cmd.OutOrStdout(), format)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	write := func(t batch.Title) error {
		e := batch.Entry{Line: t.Line, Raw: t.Text, Result: parser.Parse(t.Text)}
		if err := sr.Write(ctx, e); err != nil {
			return err
		}
		log.Debug().Int("line", t.Line).Str("title", e.Result.Title).Msg("parsed title")
		return nil
	}

	if len(args) > 0 {
		for i, text := range args {
			if err := write(batch.Title{Line: i + 1, Text: text}); err != nil {
				return err
			}
		}
		return sr.Close()
	}

	// Flush per line so piped input streams
	err = batch.EachTitle(cmd.InOrStdin(), func(t batch.Title) error {
		if err := write(t); err != nil {
			return err
		}
		return sr.Flush()
	})
	if err != nil {
		return err
	}
	return sr.Close()
}

// parseFile parses a title list and writes its report files. A path of -
// reads the list from stdin.
func (a *app) parseFile(ctx context.Context, path string, progress chan<- batch.Progress) (reporter.Report, reporter.Files, error) {
	var titles []batch.Title
	var err error
	source := path
	if path == "-" {
		source = "stdin"
		titles, err = batch.ReadTitlesFrom(a.stdin)
	} else {
		titles, err = batch.ReadTitles(a.fs, path)
	}
	if err != nil {
		return reporter.Report{}, reporter.Files{}, err
	}

	cfg := a.batchConfig()
	entries, err := batch.ParseAll(ctx, titles, cfg, progress)
	if err != nil {
		return reporter.Report{}, reporter.Files{}, err
	}

	report := reporter.New(cfg.Clock, source, entries)
	files, err := reporter.Generate(a.fs, a.config.Output.ReportDir, report)
	if err != nil {
		return reporter.Report{}, reporter.Files{}, err
	}

	log.Info().
		Str("file", source).
		Int("titles", len(entries)).
		Str("report", files.JSON).
		Msg("batch complete")

	return report, files, nil
}

func (a *app) runBatch(cmd *cobra.Command, path, formatFlag string) error {
	var format string
	if formatFlag != "" {
		var err error
		if format, err = a.outputFormat(formatFlag); err != nil {
			return err
		}
	}

	progress := make(chan batch.Progress, 64)
	drained := make(chan struct{})
	go func() {
		defer close(drained)
		for p := range progress {
			log.Debug().Int("current", p.Current).Int("total", p.Total).Msg(p.Message)
		}
	}()

	report, files, err := a.parseFile(cmd.Context(), path, progress)
	close(progress)
	<-drained
	if err != nil {
		return err
	}

	if format != "" {
		return reporter.Export(cmd.OutOrStdout(), report, format)
	}

	out := cmd.OutOrStdout()
	s := report.Summary
	fmt.Fprintln(out, ui.FormatStatusOK(fmt.Sprintf("Parsed %d titles from %s", s.Total, filepath.Base(report.Source))))
	fmt.Fprintf(out, "  With episode: %d\n", s.WithEpisode)
	fmt.Fprintf(out, "  With fansub:  %d\n", s.WithFansub)
	if s.Untitled > 0 {
		fmt.Fprintln(out, ui.FormatStatusWarn(fmt.Sprintf("%d titles without a recovered name", s.Untitled)))
	}
	fmt.Fprintf(out, "\nReport saved to:\n  %s\n  %s\n\n", files.Text, files.JSON)
	fmt.Fprintf(out, "View report with: anipar view %s\n", files.JSON)
	return nil
}

func (a *app) runBatchTUI(ctx context.Context, path string) error {
	run := func(ctx context.Context, progress chan<- batch.Progress) (reporter.Report, error) {
		report, _, err := a.parseFile(ctx, path, progress)
		return report, err
	}

	p := tea.NewProgram(ui.NewParsingModel(ctx, run), tea.WithAltScreen(), tea.WithContext(ctx))
	finalModel, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) {
		return context.Canceled
	}
	if err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}

	m := finalModel.(ui.Model)
	if m.Cancelled() {
		return context.Canceled
	}
	return m.Err()
}

func (a *app) runView(path string) error {
	report, err := reporter.Load(a.fs, path)
	if err != nil {
		return fmt.Errorf("error loading report: %w", err)
	}

	p := tea.NewProgram(ui.NewModel(*report), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}
	return nil
}

func (a *app) runConfig(out io.Writer) error {
	path, err := a.configPath()
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Configuration file: %s\n\n", path)
	fmt.Fprintln(out, "Current configuration:")
	fmt.Fprintln(out)
	return toml.NewEncoder(out).Encode(a.config)
}

func getLongDescription() string {
	return ui.FormatASCIIHeader() + "\n\n" +
		"anipar recovers title, fansub, episode and media details from anime release names.\n" +
		"It parses single titles, whole title lists, and provides a TUI for browsing reports."
}
