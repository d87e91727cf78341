package main

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Brownie44l1/plant-disease-api/internal/conf"
)

// settingsLoader resolves the final settings once flags have been parsed.
type settingsLoader func() (*conf.Settings, error)

// newRootCommand creates the root command. Running it without a subcommand
// starts the server.
func newRootCommand() *cobra.Command {
	v := conf.New()
	var configFile string

	load := func() (*conf.Settings, error) {
		return conf.Load(v, configFile)
	}

	rootCmd := &cobra.Command{
		Use:           conf.AppName,
		Short:         "Leaf disease detection web service",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			settings, err := load()
			if err != nil {
				return err
			}
			return runServe(cmd.Context(), settings)
		},
	}

	setupFlags(rootCmd, v, &configFile)

	rootCmd.AddCommand(
		serveCommand(load),
		predictCommand(load),
	)
	return rootCmd
}

// setupFlags defines the persistent flags and binds them to viper keys.
func setupFlags(cmd *cobra.Command, v *viper.Viper, configFile *string) {
	flags := cmd.PersistentFlags()
	flags.StringVar(configFile, "config", "", "config file (default: ./config.yaml or ~/.config/"+conf.AppName+"/config.yaml)")
	flags.Bool("debug", false, "enable debug logging")
	flags.Int("port", 5000, "HTTP listen port")
	flags.String("model", "plant_model.onnx", "path to the .onnx or .tflite model")
	flags.String("classes", "class_indices.json", "path to the class index JSON file")
	flags.String("upload-dir", "uploads", "directory for uploaded images")

	bindings := map[string]string{
		"debug":              "debug",
		"server.port":        "port",
		"model.path":         "model",
		"model.classindices": "classes",
		"upload.dir":         "upload-dir",
	}
	for key, flag := range bindings {
		if err := v.BindPFlag(key, flags.Lookup(flag)); err != nil {
			panic(err)
		}
	}
}
