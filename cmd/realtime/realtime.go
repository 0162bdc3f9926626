package realtime

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/herdwatch/herdwatch-go/internal/analysis"
	"github.com/herdwatch/herdwatch-go/internal/conf"
)

// Command creates a new command for continuous herd monitoring.
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "realtime",
		Short: "Monitor livestock in realtime mode",
		Long:  "Start capturing frames from the configured source and run the detection, identification and health pipeline continuously.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return analysis.RealtimeAnalysis(settings)
		},
	}

	if err := setupFlags(cmd, settings); err != nil {
		fmt.Printf("error setting up flags: %v\n", err)
		os.Exit(1)
	}

	return cmd
}

// setupFlags configures flags specific to the realtime command.
func setupFlags(cmd *cobra.Command, settings *conf.Settings) error {
	cmd.Flags().StringVar(&settings.Monitor.Source, "source", viper.GetString("monitor.source"), "Directory to capture frames from")
	cmd.Flags().IntVar(&settings.Monitor.Interval, "interval", viper.GetInt("monitor.interval"), "Seconds between captures")
	cmd.Flags().IntVar(&settings.Monitor.DebounceMinutes, "debounce", viper.GetInt("monitor.debounceminutes"), "Minutes to suppress repeat attendance marks per animal")
	cmd.Flags().BoolVar(&settings.Monitor.LiveDisplay, "livedisplay", viper.GetBool("monitor.livedisplay"), "Print pipeline counters after each frame")
	cmd.Flags().BoolVar(&settings.Monitor.ConcurrentPipeline, "concurrent", viper.GetBool("monitor.concurrentpipeline"), "Process frames on a worker decoupled from capture")
	cmd.Flags().BoolVar(&settings.MQTT.Enabled, "mqtt", viper.GetBool("mqtt.enabled"), "Publish alerts to the configured MQTT broker")
	cmd.Flags().BoolVar(&settings.WebServer.Enabled, "webserver", viper.GetBool("webserver.enabled"), "Enable the HTTP API and metrics endpoint")
	cmd.Flags().StringVar(&settings.WebServer.Port, "port", viper.GetString("webserver.port"), "HTTP API listen port")

	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return fmt.Errorf("error binding flags: %w", err)
	}

	return nil
}
