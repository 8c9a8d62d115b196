package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/chaz8081/stt-notepad/internal/audio"
	"github.com/chaz8081/stt-notepad/internal/config"
	"github.com/chaz8081/stt-notepad/internal/inject"
	"github.com/chaz8081/stt-notepad/internal/notepad"
	"github.com/chaz8081/stt-notepad/internal/optimize"
	"github.com/chaz8081/stt-notepad/internal/transcribe"
)

type transcribeFlags struct {
	maxSegment  time.Duration
	overlap     time.Duration
	concurrency int
	optimize    bool
	save        bool
	copy        bool
}

func newTranscribeCommand(opts *rootOptions) *cobra.Command {
	var f transcribeFlags

	cmd := &cobra.Command{
		Use:   "transcribe <file.wav>",
		Short: "Transcribe an existing WAV recording",
		Long: `Transcribe an existing 16-bit PCM WAV recording and print the transcript.
Recordings longer than the segment limit are split, transcribed segment by
segment and joined in order. Ctrl+C cancels without printing partial text.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := opts.store()
			if err != nil {
				return err
			}
			cfg := store.Config()
			if err := f.apply(cfg); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return transcribeFile(ctx, cfg, args[0], f, cmd.OutOrStdout())
		},
	}

	cmd.Flags().DurationVar(&f.maxSegment, "max-segment", 0, "override transcribe.max_segment_duration")
	cmd.Flags().DurationVar(&f.overlap, "overlap", -1, "override transcribe.segment_overlap")
	cmd.Flags().IntVar(&f.concurrency, "concurrency", 0, "override transcribe.concurrency")
	cmd.Flags().BoolVar(&f.optimize, "optimize", false, "clean up the transcript with the configured language model")
	cmd.Flags().BoolVar(&f.save, "save", false, "also save the transcript as Markdown in output.dir")
	cmd.Flags().BoolVar(&f.copy, "copy", false, "also copy the transcript to the clipboard")
	return cmd
}

// apply overrides settings with the flags that were given and checks the
// result the same way a settings file is checked.
func (f transcribeFlags) apply(cfg *config.Config) error {
	t := &cfg.Transcribe
	if f.maxSegment > 0 {
		t.MaxSegmentDuration = f.maxSegment
	}
	if f.overlap >= 0 {
		t.SegmentOverlap = f.overlap
	}
	if f.concurrency > 0 {
		t.Concurrency = f.concurrency
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid flags: %w", err)
	}
	return nil
}

func transcribeFile(ctx context.Context, cfg *config.Config, path string, f transcribeFlags, out io.Writer) error {
	rec, err := audio.Probe(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}

	copts := coordinatorOptions(cfg.Transcribe)
	total := len(transcribe.Plan(rec.Duration, copts.MaxSegment, copts.Overlap))
	slog.Info("[transcribe] transcribing", "file", path, "duration", rec.Duration, "segments", total)

	bar := newProgressBar(total)
	coord, err := newCoordinator(cfg, func(done, _ int) {
		if bar != nil {
			_ = bar.Set(done)
		}
	})
	if err != nil {
		return err
	}

	start := time.Now()
	text, err := coord.Transcribe(ctx, rec)
	if bar != nil {
		_ = bar.Finish()
	}
	if err != nil {
		return err
	}
	slog.Info("[transcribe] done", "elapsed", time.Since(start).Round(time.Millisecond))

	if f.optimize {
		opt, err := optimize.New(cfg.Optimize)
		if err != nil {
			return err
		}
		if text, err = opt.Optimize(ctx, text); err != nil {
			return err
		}
	}

	fmt.Fprintln(out, text)

	if f.copy {
		if err := inject.Copy(text); err != nil {
			return err
		}
	}
	if f.save {
		var doc notepad.Document
		doc.Set(text)
		saved, err := doc.SaveMarkdown(cfg.Output.Dir, time.Now())
		if err != nil {
			return err
		}
		slog.Info("[notepad] saved", "path", saved)
	}
	return nil
}

// newProgressBar returns a segment progress bar on an interactive stderr,
// or nil for single-segment runs and redirected output.
func newProgressBar(total int) *progressbar.ProgressBar {
	if total < 2 || !term.IsTerminal(int(os.Stderr.Fd())) {
		return nil
	}
	return progressbar.NewOptions(
		total,
		progressbar.OptionSetDescription("transcribing segments"),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)
}
