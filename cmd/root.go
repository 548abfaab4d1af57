/*
Copyright © 2024 NAME HERE <EMAIL ADDRESS>

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"errors"
	"fmt"
	"github.com/rotblauer/tripd/common"
	"github.com/rotblauer/tripd/params"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"log/slog"
	"os"
	"strings"
)

var cfgFile string
var optVerbosity string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   params.AppName,
	Short: "Find trips in GPS waypoints",
	Long: `tripd cleans a time-ordered series of GPS waypoints of implausible jumps
and segments what is left into trips: intervals that start with a clear
acceleration and end with a sustained stop.

Configuration is read from (in increasing precedence) built-in defaults,
the config file, TRIPD_* environment variables, and flags.
Nested config keys map to environment variables with dots as underscores,
e.g. detector.stop_duration is TRIPD_DETECTOR_STOP_DURATION.
`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	pFlags := rootCmd.PersistentFlags()
	pFlags.StringVar(&cfgFile, "config", "", fmt.Sprintf("config file (default is %s)", params.DefaultConfigPath))
	pFlags.StringVar(&optVerbosity, "verbosity", "info", "log level: debug, info, warn, error")
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if err := loadViper(viper.GetViper(), cfgFile); err != nil {
		slog.Error("Failed to read config", "error", err)
		os.Exit(1)
	}
}

// loadViper registers the defaults and environment binding on v, then reads the config file.
// A missing default config file is fine; a missing named one is not.
func loadViper(v *viper.Viper, file string) error {
	setConfigDefaults(v)
	v.SetEnvPrefix(params.EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.AddConfigPath(params.DatadirRoot)
		v.SetConfigName(params.ConfigFileName)
		v.SetConfigType(params.ConfigFileType)
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file == "" && errors.As(err, &notFound) {
			return nil
		}
		return err
	}
	slog.Debug("Using config file", "file", v.ConfigFileUsed())
	return nil
}

// setConfigDefaults makes every key known to v, so that env variables
// are seen by Unmarshal even when no config file sets them.
func setConfigDefaults(v *viper.Viper) {
	c := params.DefaultConfig()
	v.SetDefault("cleaner.implausible_speed", c.ImplausibleSpeed)

	v.SetDefault("detector.start_distance", c.StartDistance)
	v.SetDefault("detector.start_acceleration", c.StartAcceleration)
	v.SetDefault("detector.stationary_speed", c.StationarySpeed)
	v.SetDefault("detector.stop_distance", c.StopDistance)
	v.SetDefault("detector.stop_distance_parity", c.StopDistanceParity)
	v.SetDefault("detector.stop_duration", c.StopDuration)
	v.SetDefault("detector.flush_open_trip", c.FlushOpenTrip)

	v.SetDefault("geodesy.method", c.Method)
	v.SetDefault("geodesy.cache_size", c.CacheSize)

	v.SetDefault("source.dedupe", c.Dedupe)
	v.SetDefault("source.dedupe_cache_size", c.DedupeCacheSize)
	v.SetDefault("source.s3_region", c.S3Region)

	w := params.DefaultWebDaemonConfig()
	v.SetDefault("webd.network", w.Network)
	v.SetDefault("webd.address", w.Address)
	v.SetDefault("webd.cache_ttl", w.CacheTTL)
	v.SetDefault("webd.max_body_bytes", w.MaxBodyBytes)
	v.SetDefault("webd.token", w.Token)
}

// bindFlags binds each config key to the named flag in flags, so a set flag overrides the config.
func bindFlags(v *viper.Viper, flags *pflag.FlagSet, keyFlags map[string]string) error {
	for key, name := range keyFlags {
		flag := flags.Lookup(name)
		if flag == nil {
			return fmt.Errorf("no flag %q for config key %q", name, key)
		}
		if err := v.BindPFlag(key, flag); err != nil {
			return err
		}
	}
	return nil
}

// pipelineConfig decodes the pipeline config from v.
func pipelineConfig(v *viper.Viper) (*params.Config, error) {
	c := params.DefaultConfig()
	if err := v.Unmarshal(c); err != nil {
		return nil, fmt.Errorf("pipeline config: %w", err)
	}
	return c, nil
}

// webDaemonConfig decodes the webd section of v, with the pipeline config attached.
func webDaemonConfig(v *viper.Viper) (*params.WebDaemonConfig, error) {
	c := params.DefaultWebDaemonConfig()
	if err := v.UnmarshalKey("webd", c); err != nil {
		return nil, fmt.Errorf("webd config: %w", err)
	}
	pipeline, err := pipelineConfig(v)
	if err != nil {
		return nil, err
	}
	c.Pipeline = pipeline
	return c, nil
}

// setDefaultSlog installs the default text logger on stderr at the --verbosity level.
func setDefaultSlog(cmd *cobra.Command, args []string) {
	level := common.ParseSlogLevel(optVerbosity)
	slog.SetDefault(common.NewTextLogger(os.Stderr, level))
	slog.Debug("Command", "name", cmd.Name(), "args", args)
}
