package cmd

import (
	"github.com/petems/rolling-sampler/internal/audio"
	"github.com/petems/rolling-sampler/internal/config"
	"github.com/spf13/cobra"
)

// openBackend is replaced in tests.
var openBackend = func() (audio.Backend, error) {
	b, err := audio.NewPortAudio()
	if err != nil {
		return nil, err
	}
	return b, nil
}

type rootOptions struct {
	configPath string
	logLevel   string
}

func (o *rootOptions) path() string {
	if o.configPath != "" {
		return o.configPath
	}
	return config.Path()
}

// NewRootCmd builds the rolling-sampler command tree. Without a subcommand it
// runs the tray application.
func NewRootCmd(version, commit string) *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:   "rolling-sampler",
		Short: "Always-on audio sampler that keeps the last few seconds",
		Long: `rolling-sampler keeps the most recent seconds of microphone input in
memory. Grabbing freezes that window and keeps recording until the grab
ends, then writes everything to a timestamped WAV file.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: false,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runTray(cmd, opts, version, commit)
		},
	}
	root.SetVersionTemplate("{{.Name}} {{.Version}} (" + commit + ")\n")

	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "config file (default is "+config.Path()+")")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "override the configured log level")

	root.AddCommand(newDevicesCmd())
	root.AddCommand(newConfigCmd(opts))
	return root
}
