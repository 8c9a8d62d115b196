package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/chaz8081/stt-notepad/internal/app"
	"github.com/chaz8081/stt-notepad/internal/audio"
	"github.com/chaz8081/stt-notepad/internal/config"
	"github.com/chaz8081/stt-notepad/internal/hotkey"
	"github.com/chaz8081/stt-notepad/internal/inject"
	"github.com/chaz8081/stt-notepad/internal/optimize"
)

func newRunCommand(opts *rootOptions) *cobra.Command {
	var noHotkeys bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start an interactive notepad session",
		Long: `Start an interactive notepad session. Type a command letter and press
Enter: r records, t transcribes, o optimizes, s saves. Type h for the full
list. Global hotkeys are available when hotkey.enabled is set.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := opts.store()
			if err != nil {
				return err
			}
			return runSession(cmd.Context(), store.Config(), noHotkeys)
		},
	}
	cmd.Flags().BoolVar(&noHotkeys, "no-hotkeys", false, "disable global hotkeys for this session")
	return cmd
}

func runSession(ctx context.Context, cfg *config.Config, noHotkeys bool) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	coord, err := newCoordinator(cfg, func(done, total int) {
		slog.Info("[transcribe] segment finished", "done", done, "total", total)
	})
	if err != nil {
		return err
	}

	var opt optimize.Optimizer
	if o, err := optimize.New(cfg.Optimize); err != nil {
		slog.Info("[optimize] text optimization disabled", "reason", err)
	} else {
		opt = o
	}

	recorder, err := audio.NewRecorder(audio.Options{
		Device:     cfg.Audio.Device,
		SampleRate: cfg.Audio.SampleRate,
		Channels:   cfg.Audio.Channels,
		TempDir:    cfg.Audio.TempDir,
	})
	if err != nil {
		return fmt.Errorf("%w\n\nEnsure microphone access is granted to your terminal", err)
	}
	defer func() {
		if err := recorder.Close(); err != nil {
			slog.Warn("[audio] closing recorder failed", "error", err)
		}
	}()

	var actions <-chan hotkey.Action
	if cfg.Hotkey.Enabled && !noHotkeys {
		bindings := hotkey.Bindings(cfg.Hotkey)
		listener := hotkey.NewListener(bindings)
		go listener.Start()
		defer listener.Stop()
		actions = listener.Events()

		names := make([]string, 0, len(bindings))
		for _, b := range bindings {
			names = append(names, fmt.Sprintf("%s=%s", b.Action, b))
		}
		slog.Info("[hotkey] global hotkeys active", "bindings", strings.Join(names, " "))
	}

	printBanner(cfg, opt != nil)

	session := app.NewSession(app.Deps{
		Recorder:    recorder,
		Transcriber: coord,
		Optimizer:   opt,
		Injector:    inject.NewInjector(cfg.Output.Inject),
		Copy:        inject.Copy,
	}, app.Options{
		OutputDir: cfg.Output.Dir,
		AutoCopy:  cfg.Output.AutoCopy,
		Quiet:     cfg.UI.MinimizeToTray,
	}, os.Stdout)

	return session.Run(ctx, os.Stdin, actions)
}

// printBanner displays the startup configuration summary.
func printBanner(cfg *config.Config, optimizer bool) {
	device := cfg.Audio.Device
	if device == "" {
		device = "system default"
	}
	optimizeState := "off (no API key)"
	if optimizer {
		optimizeState = cfg.Optimize.Provider
	}
	fmt.Println("=== stt-notepad ===")
	fmt.Printf("  Backend:   %s\n", cfg.Transcribe.Backend)
	fmt.Printf("  Segments:  %s max, %d at a time\n", coordinatorOptions(cfg.Transcribe).MaxSegment, max(cfg.Transcribe.Concurrency, 1))
	fmt.Printf("  Audio:     %s, %dHz, %dch\n", device, cfg.Audio.SampleRate, cfg.Audio.Channels)
	fmt.Printf("  Optimize:  %s\n", optimizeState)
	fmt.Printf("  Notes dir: %s\n", cfg.Output.Dir)
	fmt.Println("===================")
}
