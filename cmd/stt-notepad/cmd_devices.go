package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/chaz8081/stt-notepad/internal/audio"
)

func newDevicesCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "devices",
		Short: "List audio input devices",
		Long: `List audio input devices. The selected one (audio.device) is marked
with '*'. Select another with: stt-notepad config set audio.device "<name>"`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := opts.store()
			if err != nil {
				return err
			}
			cfg := store.Config()

			rec, err := audio.NewRecorder(audio.Options{SampleRate: cfg.Audio.SampleRate, Channels: cfg.Audio.Channels})
			if err != nil {
				return err
			}
			defer rec.Close()

			names, err := rec.ListDevices()
			if err != nil {
				return err
			}
			if len(names) == 0 {
				return fmt.Errorf("%w: no input devices found", audio.ErrCaptureUnavailable)
			}

			out := cmd.OutOrStdout()
			for _, name := range names {
				fmt.Fprintln(out, deviceLine(name, cfg.Audio.Device))
			}
			if cfg.Audio.Device == "" {
				fmt.Fprintln(out, "(using the system default device)")
			}
			return nil
		},
	}
}

func deviceLine(name, selected string) string {
	if name == selected {
		return "* " + name
	}
	return "  " + name
}
