package params

import (
	"github.com/rotblauer/tripd/common"
	"github.com/rotblauer/tripd/geo/geodesy"
	"time"
)

type Config struct {
	CleanConfig        `mapstructure:"cleaner"`
	TripDetectorConfig `mapstructure:"detector"`
	GeodesyConfig      `mapstructure:"geodesy"`
	SourceConfig       `mapstructure:"source"`
}

type CleanConfig struct {
	// ImplausibleSpeed is the raw implied speed (m/s) at or above which
	// a waypoint-to-waypoint transition is considered a GPS jump and dropped.
	ImplausibleSpeed float64 `mapstructure:"implausible_speed"`
}

var DefaultCleanConfig = &CleanConfig{
	ImplausibleSpeed: common.SpeedOfGroundVehicleImplausible,
}

type TripDetectorConfig struct {
	// StartDistance is the minimum cumulative distance (meters) covered
	// between two consecutive segments for a trip to start.
	StartDistance float64 `mapstructure:"start_distance"`

	// StartAcceleration is the speed gain (m/s) between two consecutive segments
	// that must be exceeded for a trip to start.
	StartAcceleration float64 `mapstructure:"start_acceleration"`

	// StationarySpeed is the speed (m/s) below which a segment is considered not moving.
	StationarySpeed float64 `mapstructure:"stationary_speed"`

	// StopDistance is the maximum cumulative distance (meters) between two
	// consecutive stationary segments for them to count toward a stop.
	StopDistance float64 `mapstructure:"stop_distance"`

	// StopDistanceParity disables the StopDistance check between consecutive segments,
	// so that every pair of stationary segments counts toward a stop.
	StopDistanceParity bool `mapstructure:"stop_distance_parity"`

	// StopDuration must be exceeded by accumulated stationary time to end a trip.
	StopDuration time.Duration `mapstructure:"stop_duration"`

	// FlushOpenTrip emits a trip that is still in progress when the segments run out.
	// By default such a trip is dropped.
	FlushOpenTrip bool `mapstructure:"flush_open_trip"`
}

var DefaultTripDetectorConfig = &TripDetectorConfig{
	StartDistance:      20,
	StartAcceleration:  1.0,
	StationarySpeed:    common.SpeedOfStationary,
	StopDistance:       20,
	StopDistanceParity: false,
	StopDuration:       5 * time.Minute,
	FlushOpenTrip:      false,
}

type GeodesyConfig struct {
	// Method names the distance implementation: geodesic, haversine, or s2.
	Method string `mapstructure:"method"`

	// CacheSize is the number of recent point pairs whose distances are memoized.
	// Zero disables the cache.
	CacheSize int `mapstructure:"cache_size"`
}

var DefaultGeodesyConfig = &GeodesyConfig{
	Method:    geodesy.MethodGeodesic,
	CacheSize: 4096,
}

type SourceConfig struct {
	// Dedupe drops waypoints that exactly repeat a recently seen waypoint.
	Dedupe bool `mapstructure:"dedupe"`

	// DedupeCacheSize bounds the number of recent waypoints remembered for Dedupe.
	DedupeCacheSize int `mapstructure:"dedupe_cache_size"`

	// S3Region is the AWS region used for s3:// sources.
	S3Region string `mapstructure:"s3_region"`
}

var DefaultSourceConfig = &SourceConfig{
	Dedupe:          false,
	DedupeCacheSize: 10_000,
	S3Region:        "us-east-1",
}

// DefaultConfig returns a copy of all the default configs.
func DefaultConfig() *Config {
	return &Config{
		CleanConfig:        *DefaultCleanConfig,
		TripDetectorConfig: *DefaultTripDetectorConfig,
		GeodesyConfig:      *DefaultGeodesyConfig,
		SourceConfig:       *DefaultSourceConfig,
	}
}
