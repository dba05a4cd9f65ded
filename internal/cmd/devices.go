package cmd

import (
	"fmt"
	"io"

	"github.com/petems/rolling-sampler/internal/audio"
	"github.com/spf13/cobra"
)

func newDevicesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "devices",
		Short: "List audio input and output devices",
		Long: `List the capture and playback devices with their native format.
The ID column is what audio.input_device_id and audio.output_device_id expect.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			backend, err := openBackend()
			if err != nil {
				return fmt.Errorf("failed to initialize audio: %w", err)
			}
			defer backend.Close()

			inputs, err := backend.InputDevices()
			if err != nil {
				return fmt.Errorf("failed to list input devices: %w", err)
			}
			outputs, err := backend.OutputDevices()
			if err != nil {
				return fmt.Errorf("failed to list output devices: %w", err)
			}

			out := cmd.OutOrStdout()
			printDevices(out, "Input devices", inputs)
			fmt.Fprintln(out)
			printDevices(out, "Output devices", outputs)
			return nil
		},
	}
}

func printDevices(w io.Writer, title string, devices []audio.Device) {
	fmt.Fprintf(w, "%s:\n", title)
	if len(devices) == 0 {
		fmt.Fprintln(w, "  (none)")
		return
	}
	for _, d := range devices {
		marker := " "
		if d.Default {
			marker = "*"
		}
		fmt.Fprintf(w, "  %s %s  [%s]\n", marker, d.ID, d.NativeFormat())
	}
}
