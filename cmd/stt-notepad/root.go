package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/chaz8081/stt-notepad/internal/audio"
	"github.com/chaz8081/stt-notepad/internal/config"
	"github.com/chaz8081/stt-notepad/internal/transcribe"
)

var version = "dev"

// logLevel is adjusted once the settings file has been read.
var logLevel = new(slog.LevelVar)

type rootOptions struct {
	configPath string
	debug      bool
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "stt-notepad",
		Short: "Dictate notes with cloud speech-to-text",
		Long: `stt-notepad records audio from your microphone, transcribes it with a
cloud speech-to-text API (Gladia or OpenAI) and collects the text in a
notepad you can clean up, copy or save as Markdown.

Long recordings are split into segments that fit the API's limits and the
pieces are joined back in order.`,
		Version:      version,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "path to settings file (default: ~/.config/stt-notepad/settings.yaml)")
	cmd.PersistentFlags().BoolVar(&opts.debug, "debug", false, "Enable debug logging")
	cmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		setupLogging(opts.debug)
		if err := config.LoadEnv(); err != nil {
			slog.Warn("[config] could not load .env", "error", err)
		}
		return nil
	}

	run := newRunCommand(opts)
	cmd.RunE = run.RunE

	cmd.AddCommand(run)
	cmd.AddCommand(newTranscribeCommand(opts))
	cmd.AddCommand(newOptimizeCommand(opts))
	cmd.AddCommand(newDevicesCommand(opts))
	cmd.AddCommand(newConfigCommand(opts))

	return cmd
}

func execute() error {
	return newRootCommand().Execute()
}

func setupLogging(debug bool) {
	if debug {
		logLevel.Set(slog.LevelDebug)
	}
	h := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})
	slog.SetDefault(slog.New(h))
}

func (o *rootOptions) path() string {
	if o.configPath != "" {
		return o.configPath
	}
	return config.DefaultConfigPath()
}

// store opens the settings file and applies its log level unless --debug
// was given.
func (o *rootOptions) store() (*config.Store, error) {
	s, err := config.Open(o.path())
	if err != nil {
		return nil, err
	}
	if !o.debug {
		logLevel.Set(config.ParseLogLevel(s.Config().LogLevel))
	}
	slog.Debug("[config] settings loaded", "path", s.Path())
	return s, nil
}

// coordinatorOptions maps settings onto the coordinator, capping the
// segment length at what the backend accepts.
func coordinatorOptions(cfg config.TranscribeConfig) transcribe.Options {
	return transcribe.Options{
		MaxSegment:  transcribe.MaxSegmentFor(cfg.Backend, cfg.MaxSegmentDuration),
		Overlap:     cfg.SegmentOverlap,
		Concurrency: cfg.Concurrency,
		Format:      transcribe.FormatWAV,
	}
}

// newCoordinator builds the transcription client for cfg and wraps it in a
// coordinator reading segments from WAV recordings.
func newCoordinator(cfg *config.Config, onProgress func(done, total int)) (*transcribe.Coordinator, error) {
	client, err := transcribe.New(cfg.Transcribe)
	if err != nil {
		return nil, fmt.Errorf("%w\nSet one with: stt-notepad config set transcribe.api_key", err)
	}
	opts := coordinatorOptions(cfg.Transcribe)
	opts.OnProgress = onProgress
	source := audio.WAVSource{TempDir: cfg.Audio.TempDir}
	return transcribe.NewCoordinator(client, source, opts), nil
}
