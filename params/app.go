package params

import (
	"compress/gzip"
	"github.com/mitchellh/go-homedir"
	"path/filepath"
)

const (
	AppName         = "tripd"
	EnvPrefix       = "TRIPD"
	ConfigFileName  = "config"
	ConfigFileType  = "yaml"
	TripsGZFileName = "trips.json.gz"
)

var DatadirRoot = func() string {
	home, err := homedir.Dir()
	if err != nil {
		return filepath.Join(".", "."+AppName)
	}
	return filepath.Join(home, "."+AppName)
}()

// DefaultConfigPath is where the config file is looked for when none is named.
var DefaultConfigPath = filepath.Join(DatadirRoot, ConfigFileName+"."+ConfigFileType)

var DefaultGZipCompressionLevel = gzip.BestCompression
