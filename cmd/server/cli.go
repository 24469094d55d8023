package main

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newRootCmd() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:           "camrelay",
		Short:         "Camera discovery and WebRTC signaling relay",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if path, _ := cmd.Flags().GetString("config"); path != "" {
				v.SetConfigFile(path)
			}
			return run(cmd.Context(), v)
		},
	}

	flags := cmd.Flags()
	flags.String("config", "", "path to a yaml config file (default config/config.$CONFIG_ENV.yaml)")
	flags.Int("port", 8080, "HTTP listen port")
	flags.String("mode", "release", "gin mode: release, debug or test")
	flags.String("static-path", "./web", "directory with the browser pages")
	flags.String("log-level", "info", "zerolog level")

	_ = v.BindPFlag("port", flags.Lookup("port"))
	_ = v.BindPFlag("mode", flags.Lookup("mode"))
	_ = v.BindPFlag("static_path", flags.Lookup("static-path"))
	_ = v.BindPFlag("log_level", flags.Lookup("log-level"))

	return cmd
}
