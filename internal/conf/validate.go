// validate.go settings validation
package conf

import (
	"strconv"

	"github.com/ZenleX-Dost/RadiKal-V2.0-sub001/internal/errors"
)

// ValidateSettings checks the loaded settings for obvious misconfiguration.
func ValidateSettings(settings *Settings) error {
	if err := validateWebServerSettings(&settings.WebServer); err != nil {
		return err
	}
	if err := validateInferenceSettings(&settings.Inference); err != nil {
		return err
	}
	return validateOutputSettings(&settings.Output)
}

func validateWebServerSettings(ws *WebServerSettings) error {
	if ws.Port == "" {
		return errors.Newf("webserver port must not be empty").
			Category(errors.CategoryValidation).
			Context("setting", "webserver.port").
			Build()
	}
	port, err := strconv.Atoi(ws.Port)
	if err != nil || port < 1 || port > 65535 {
		return errors.Newf("invalid webserver port: %s", ws.Port).
			Category(errors.CategoryValidation).
			Context("setting", "webserver.port").
			Build()
	}
	return nil
}

func validateInferenceSettings(inf *InferenceSettings) error {
	if inf.URL == "" {
		return errors.Newf("inference sidecar URL must not be empty").
			Category(errors.CategoryValidation).
			Context("setting", "inference.url").
			Build()
	}
	for name, v := range map[string]float64{
		"inference.confidencethreshold": inf.ConfidenceThreshold,
		"inference.iouthreshold":        inf.IoUThreshold,
		"inference.ndthreshold":         inf.NDThreshold,
	} {
		if v < 0 || v > 1 {
			return errors.Newf("threshold out of range [0,1]: %f", v).
				Category(errors.CategoryValidation).
				Context("setting", name).
				Build()
		}
	}
	if inf.Timeout <= 0 {
		return errors.Newf("inference timeout must be positive").
			Category(errors.CategoryValidation).
			Context("setting", "inference.timeout").
			Build()
	}
	return nil
}

func validateOutputSettings(out *OutputSettings) error {
	if !out.SQLite.Enabled && !out.MySQL.Enabled {
		return errors.Newf("no datastore enabled, enable output.sqlite or output.mysql").
			Category(errors.CategoryValidation).
			Build()
	}
	if out.SQLite.Enabled && out.MySQL.Enabled {
		return errors.Newf("only one datastore may be enabled at a time").
			Category(errors.CategoryValidation).
			Build()
	}
	if out.SQLite.Enabled && out.SQLite.Path == "" {
		return errors.Newf("sqlite path must not be empty").
			Category(errors.CategoryValidation).
			Context("setting", "output.sqlite.path").
			Build()
	}
	if out.MySQL.Enabled && out.MySQL.Database == "" {
		return errors.Newf("mysql database must not be empty").
			Category(errors.CategoryValidation).
			Context("setting", "output.mysql.database").
			Build()
	}
	return nil
}
