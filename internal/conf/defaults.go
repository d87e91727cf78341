package conf

import (
	"github.com/spf13/viper"
)

// setDefaultConfig sets default values for every key on v.
func setDefaultConfig(v *viper.Viper) {
	v.SetDefault("debug", false)

	v.SetDefault("server.host", "")
	v.SetDefault("server.port", 5000)
	v.SetDefault("server.cors", false)

	v.SetDefault("model.path", "plant_model.onnx")
	v.SetDefault("model.classindices", "class_indices.json")
	v.SetDefault("model.backend", "")
	v.SetDefault("model.imagesize", 224)
	v.SetDefault("model.layout", "nhwc")
	v.SetDefault("model.interpolation", "nearest")
	v.SetDefault("model.inputname", "")
	v.SetDefault("model.outputname", "")
	v.SetDefault("model.threads", 0)
	v.SetDefault("model.sharedlibrarypath", "")

	v.SetDefault("upload.dir", "uploads")
	v.SetDefault("upload.maxsize", "10M")
	v.SetDefault("upload.retention", "0s")
	v.SetDefault("upload.minfreebytes", 104857600)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.timezone", "")
	v.SetDefault("log.file.enabled", false)
	v.SetDefault("log.file.path", "logs/plant-disease-api.log")
	v.SetDefault("log.file.maxsize", 100)
	v.SetDefault("log.file.maxbackups", 3)
	v.SetDefault("log.file.maxage", 28)

	v.SetDefault("metrics.enabled", true)

	v.SetDefault("telemetry.sentrydsn", "")
}
