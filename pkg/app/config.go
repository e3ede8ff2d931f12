package app

import (
	"fmt"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/gatewing-io/gatewing/pkg/log"
)

const configFlagName = "config"

// addConfigFlag registers the --config flag on the global flag set.
func addConfigFlag(a *App, fs *pflag.FlagSet) {
	fs.StringVarP(&a.configFile, configFlagName, "c", "",
		"Read configuration from the specified YAML file, overriding flag defaults.")
}

// applyConfigFile merges the config file, if any, into the option structs and
// starts watching it so a changed log level takes effect without a restart.
func (a *App) applyConfigFile() error {
	v := viper.New()

	if a.configFile != "" {
		v.SetConfigFile(a.configFile)
	} else {
		v.SetConfigName(a.name)
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/gatewing")
	}

	v.SetEnvPrefix(strings.ReplaceAll(strings.ToUpper(a.name), "-", "_"))
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok && a.configFile == "" {
			// No config file is fine; flags and env carry the configuration.
			return nil
		}
		return fmt.Errorf("failed to read configuration file: %w", err)
	}

	if err := v.Unmarshal(a.options); err != nil {
		return fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	log.Info("Loaded configuration file", "file", v.ConfigFileUsed())

	v.OnConfigChange(func(e fsnotify.Event) {
		log.Info("Configuration file changed", "file", e.Name, "op", e.Op.String())
		if err := v.ReadInConfig(); err != nil {
			log.Error(err, "Failed to re-read configuration file")
			return
		}
		if level := v.GetString("log.level"); level != "" {
			log.SetLevel(level)
		}
	})
	v.WatchConfig()

	return nil
}
