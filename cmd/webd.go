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
	"context"
	"github.com/rotblauer/tripd/daemon/webd"
	"github.com/rotblauer/tripd/params"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// webdCmd represents the serve command
var webdCmd = &cobra.Command{
	Use:   "webd",
	Short: "Start the webserver",
	Long: `Serves trip extraction over HTTP.

  POST /trips    body is a waypoint batch (JSON array or GeoJSON lines, optionally gzipped).
                 ?format=geojson for a FeatureCollection, ?summary=true for the full result.
  GET  /status   uptime, config, and pipeline counters.
  GET  /ping     pong.
  GET  /socket   websocket; trips from every POST are broadcast here.
`,
	Run: func(cmd *cobra.Command, args []string) {
		setDefaultSlog(cmd, args)
		slog.Info("webd.Run")

		config, err := webDaemonConfig(viper.GetViper())
		if err != nil {
			log.Fatalln(err)
		}
		server, err := webd.NewWebDaemon(config)
		if err != nil {
			log.Fatalln(err)
		}

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		if err := server.Run(ctx); err != nil {
			log.Fatalln(err)
		}
	},
}

func init() {
	rootCmd.AddCommand(webdCmd)

	defaults := params.DefaultWebDaemonConfig()

	pFlags := webdCmd.PersistentFlags()
	pFlags.String("address", defaults.Address, "HTTP address to listen on")
	pFlags.Duration("cache-ttl", defaults.CacheTTL, "how long to remember results for identical requests (0 disables)")
	pFlags.String("token", defaults.Token, "if set, required with every POST")

	err := bindFlags(viper.GetViper(), pFlags, map[string]string{
		"webd.address":   "address",
		"webd.cache_ttl": "cache-ttl",
		"webd.token":     "token",
	})
	if err != nil {
		log.Fatalln(err)
	}
}
