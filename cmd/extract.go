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
	"encoding/json"
	"errors"
	"fmt"
	"github.com/rotblauer/tripd/api"
	"github.com/rotblauer/tripd/catz"
	"github.com/rotblauer/tripd/geo/tripdetector"
	"github.com/rotblauer/tripd/params"
	"github.com/rotblauer/tripd/source"
	"github.com/rotblauer/tripd/stream"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
)

type extractOptions struct {
	Format  string
	Summary bool
	Stream  bool
	Out     string
}

var optExtract extractOptions

// extractCmd represents the extract command
var extractCmd = &cobra.Command{
	Use:   "extract [path]",
	Short: "Extract trips from a file of waypoints",
	Long: `Reads waypoints, drops implausible GPS jumps, and writes the detected trips.

The path may be a local file, a .gz file, an s3://bucket/key object, or - for stdin (default).
Input is either a JSON array of {"lat","lng","timestamp"} objects
or newline-delimited GeoJSON Point features with a Time (or timestamp) property.

Flags:

  --format      json (default) or geojson.
  --summary     Also write the run summary as JSON to stderr.
  --stream      Process newline-delimited GeoJSON as it arrives, writing each trip as one line.
  --out         Write to this file instead of stdout. A .gz suffix compresses it.
  --geodesy     Distance method: geodesic (default), haversine, s2.
  --flush-open  Emit a trip still in progress when the input ends.
  --dedupe      Drop waypoints exactly repeating a recent one.

Examples:

  tripd extract waypoints.json
  zcat tracks.geojson.gz | tripd extract --stream --format geojson
  tripd extract --summary --out trips.json.gz s3://my-bucket/waypoints.json
`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		setDefaultSlog(cmd, args)

		name := source.Stdin
		if len(args) > 0 {
			name = args[0]
		}

		config, err := pipelineConfig(viper.GetViper())
		if err != nil {
			log.Fatalln(err)
		}

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		if err := runExtract(ctx, config, name, optExtract, os.Stdout, os.Stderr); err != nil {
			slog.Error("Extract failed", "source", name, "error", err)
			log.Fatalln(err)
		}
	},
}

func init() {
	rootCmd.AddCommand(extractCmd)

	defaults := params.DefaultConfig()

	flags := extractCmd.Flags()
	flags.StringVar(&optExtract.Format, "format", string(api.OutputJSON), "output format: json, geojson")
	flags.BoolVar(&optExtract.Summary, "summary", false, "write the run summary to stderr")
	flags.BoolVar(&optExtract.Stream, "stream", false, "stream newline-delimited GeoJSON input")
	flags.StringVar(&optExtract.Out, "out", "", "output file (default stdout)")

	flags.String("geodesy", defaults.Method, "distance method: geodesic, haversine, s2")
	flags.Bool("flush-open", defaults.FlushOpenTrip, "emit a trip still open at the end of input")
	flags.Bool("dedupe", defaults.Dedupe, "drop exactly repeated waypoints")

	err := bindFlags(viper.GetViper(), flags, map[string]string{
		"geodesy.method":           "geodesy",
		"detector.flush_open_trip": "flush-open",
		"source.dedupe":            "dedupe",
	})
	if err != nil {
		log.Fatalln(err)
	}
}

// runExtract reads the named source and writes its trips to opts.Out, or stdout.
// A nil config uses the defaults.
func runExtract(ctx context.Context, config *params.Config, name string, opts extractOptions, stdout, stderr io.Writer) (err error) {
	if config == nil {
		config = params.DefaultConfig()
	}
	format, err := api.ParseOutputFormat(opts.Format)
	if err != nil {
		return err
	}
	pipeline, err := api.NewPipeline(config)
	if err != nil {
		return err
	}

	w := stdout
	if opts.Out != "" {
		out, openErr := openOutput(opts.Out)
		if openErr != nil {
			return openErr
		}
		defer func() {
			err = errors.Join(err, out.Close())
		}()
		w = out
	}

	if opts.Stream {
		if opts.Summary {
			slog.Warn("Summary is not available when streaming")
		}
		return extractStream(ctx, pipeline, name, format, w)
	}

	points, err := source.Read(ctx, &config.SourceConfig, name)
	if err != nil {
		return err
	}
	res, err := pipeline.Extract(ctx, points)
	if err != nil {
		return err
	}
	if err := api.WriteTrips(w, format, res.Trips); err != nil {
		return err
	}
	if opts.Summary {
		enc := json.NewEncoder(stderr)
		enc.SetIndent("", "  ")
		return enc.Encode(res.Summary)
	}
	return nil
}

// extractStream writes one JSON line per trip as soon as it is detected.
func extractStream(ctx context.Context, pipeline *api.Pipeline, name string, format api.OutputFormat, w io.Writer) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	rc, err := source.Open(ctx, &pipeline.Config.SourceConfig, name)
	if err != nil {
		return err
	}
	defer rc.Close()

	points, pointErrs := source.StreamGeoJSON(ctx, rc)
	trips, tripErrs := pipeline.ExtractStream(ctx, points, pointErrs)

	values := stream.Transform(ctx, func(trip tripdetector.Trip) any {
		if format == api.OutputGeoJSON {
			return api.TripFeature(trip)
		}
		return trip
	}, trips)

	enc := json.NewEncoder(w)
	n := 0
	for v := range values {
		if err := enc.Encode(v); err != nil {
			return err
		}
		n++
	}
	if err := <-tripErrs; err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	if err := <-pointErrs; err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	slog.Info("Streamed trips", "source", name, "trips", n)
	return nil
}

// openOutput creates the named file, gzip-compressed if the name ends in .gz.
func openOutput(name string) (io.WriteCloser, error) {
	if catz.IsGZPath(name) {
		return catz.NewGZFileWriter(name, nil)
	}
	return os.Create(name)
}
