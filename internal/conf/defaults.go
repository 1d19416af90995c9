// defaults.go default values for viper settings
package conf

import (
	"github.com/spf13/viper"
)

// setDefaultConfig sets the default values for each configuration parameter.
func setDefaultConfig() {
	viper.SetDefault("debug", false)

	// Web server
	viper.SetDefault("webserver.port", "8000")
	viper.SetDefault("webserver.debug", false)
	viper.SetDefault("webserver.bodylimit", "32M")

	// Inference sidecar
	viper.SetDefault("inference.url", "http://localhost:8500")
	viper.SetDefault("inference.timeout", 30)
	viper.SetDefault("inference.confidencethreshold", 0.5)
	viper.SetDefault("inference.iouthreshold", 0.45)
	viper.SetDefault("inference.ndthreshold", 0.7)
	viper.SetDefault("inference.modelversion", "yolov8s-1.0.0")
	viper.SetDefault("inference.cachettl", 10)
	viper.SetDefault("inference.ratelimit", 10)

	// Datastore
	viper.SetDefault("output.sqlite.enabled", true)
	viper.SetDefault("output.sqlite.path", "radikal.db")
	viper.SetDefault("output.mysql.enabled", false)
	viper.SetDefault("output.mysql.username", "radikal")
	viper.SetDefault("output.mysql.password", "")
	viper.SetDefault("output.mysql.database", "radikal")
	viper.SetDefault("output.mysql.host", "localhost")
	viper.SetDefault("output.mysql.port", "3306")

	// Exports
	viper.SetDefault("export.path", "exports")
	viper.SetDefault("export.retention", 72)

	// Compliance
	viper.SetDefault("compliance.defaultstandard", "AWS D1.1")
}
