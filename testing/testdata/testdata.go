package testdata

import (
	"path/filepath"
	"runtime"
)

// basepath is the root directory of this package.
var basepath string

func init() {
	_, currentFile, _, _ := runtime.Caller(0)
	basepath = filepath.Dir(currentFile)
}

// Path returns the absolute path the given relative file or directory path,
// relative to this testdata/ directory in the user's GOPATH.
// If rel is already absolute, it is returned unmodified.
// Taken from https://github.com/grpc/grpc-go/blob/master/testdata/testdata.go.
func Path(rel string) string {
	if filepath.IsAbs(rel) {
		return rel
	}

	return filepath.Join(basepath, rel)
}

// Source_Waypoints is a 40-point track of two drives, each followed by a long stop.
// The first stop contains a one-point GPS jump of about 55 km.
//
// With the default configuration it yields 37 segments (2 pairs discarded) and two trips:
//
//	20:03:00Z -> 20:08:00Z, 2682 m
//	20:18:00Z -> 20:21:00Z, 1490 m
var Source_Waypoints = "./waypoints.json"
