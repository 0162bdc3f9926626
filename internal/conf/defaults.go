// defaults.go default values for viper settings
package conf

import (
	"github.com/spf13/viper"
)

// setDefaultConfig sets default values for the configuration.
func setDefaultConfig() {
	viper.SetDefault("debug", false)

	// Main settings
	viper.SetDefault("main.name", "HerdWatch")
	viper.SetDefault("main.log.enabled", true)
	viper.SetDefault("main.log.path", "herdwatch.log")
	viper.SetDefault("main.log.rotation", RotationDaily)
	viper.SetDefault("main.log.maxsize", 10485760)

	// Monitor settings
	viper.SetDefault("monitor.source", "captures")
	viper.SetDefault("monitor.name", "Barn Camera")
	viper.SetDefault("monitor.interval", 30)
	viper.SetDefault("monitor.debounceminutes", 5)
	viper.SetDefault("monitor.capturetimeout", 10)
	viper.SetDefault("monitor.livedisplay", false)
	viper.SetDefault("monitor.concurrentpipeline", false)
	viper.SetDefault("monitor.savecaptures", false)
	viper.SetDefault("monitor.capturepath", "captures")
	viper.SetDefault("monitor.locationzone", "")

	// Threshold settings
	viper.SetDefault("thresholds.detectionconfidence", 0.5)
	viper.SetDefault("thresholds.healthconfidence", 0.7)
	viper.SetDefault("thresholds.ocrconfidence", 0.6)
	viper.SetDefault("thresholds.criticalhealth", 0.3)
	viper.SetDefault("thresholds.attentionhealth", 0.6)

	// Identification settings
	viper.SetDefault("identify.useocr", true)
	viper.SetDefault("identify.usemuzzle", false)

	// MQTT settings
	viper.SetDefault("mqtt.enabled", false)
	viper.SetDefault("mqtt.broker", "tcp://localhost:1883")
	viper.SetDefault("mqtt.topic", "herdwatch/alerts")
	viper.SetDefault("mqtt.username", "")
	viper.SetDefault("mqtt.password", "")
	viper.SetDefault("mqtt.retain", false)

	// Web server settings
	viper.SetDefault("webserver.enabled", true)
	viper.SetDefault("webserver.port", "8080")

	// Jobs settings
	viper.SetDefault("jobs.missingsweepenabled", true)
	viper.SetDefault("jobs.missingsweepschedule", "0 18 * * *")

	// Output settings
	viper.SetDefault("output.sqlite.enabled", true)
	viper.SetDefault("output.sqlite.path", "herdwatch.db")
	viper.SetDefault("output.mysql.enabled", false)
	viper.SetDefault("output.mysql.username", "herdwatch")
	viper.SetDefault("output.mysql.password", "secret")
	viper.SetDefault("output.mysql.database", "herdwatch")
	viper.SetDefault("output.mysql.host", "localhost")
	viper.SetDefault("output.mysql.port", "3306")
}
