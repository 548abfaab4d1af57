// Package catz reads and writes gzip files, and transparently unwraps gzip streams.
package catz

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"github.com/rotblauer/tripd/params"
	"io"
	"os"
	"path/filepath"
	"strings"
	"syscall"
)

// gzipMagic is the two-byte header every gzip stream starts with.
var gzipMagic = []byte{0x1f, 0x8b}

type GZFileWriter struct {
	f      *os.File
	gzw    *gzip.Writer
	locked bool
	closed bool

	GZFileWriterConfig
}

type GZFileWriterConfig struct {
	CompressionLevel int
	Flag             int
	FilePerm         os.FileMode
	DirPerm          os.FileMode
}

func DefaultGZFileWriterConfig() *GZFileWriterConfig {
	return &GZFileWriterConfig{
		CompressionLevel: params.DefaultGZipCompressionLevel,
		Flag:             os.O_WRONLY | os.O_TRUNC | os.O_CREATE,
		FilePerm:         0660,
		DirPerm:          0770,
	}
}

func NewGZFileWriter(path string, config *GZFileWriterConfig) (*GZFileWriter, error) {
	if config == nil {
		config = DefaultGZFileWriterConfig()
	}
	if err := os.MkdirAll(filepath.Dir(path), config.DirPerm); err != nil {
		return nil, err
	}
	fi, err := os.OpenFile(path, config.Flag, config.FilePerm)
	if err != nil {
		return nil, err
	}
	gzw, err := gzip.NewWriterLevel(fi, config.CompressionLevel)
	if err != nil {
		_ = fi.Close()
		return nil, err
	}
	return &GZFileWriter{
		f:                  fi,
		gzw:                gzw,
		GZFileWriterConfig: *config,
	}, nil
}

func (g *GZFileWriter) Write(p []byte) (int, error) {
	g.lock()
	return g.gzw.Write(p)
}

// lock locks the file for exclusive access.
// The lock will be invalidated if and when the file is closed.
func (g *GZFileWriter) lock() {
	if g.locked || g.closed || g.f == nil {
		return
	}
	_ = syscall.Flock(int(g.f.Fd()), syscall.LOCK_EX)
	g.locked = true
}

func (g *GZFileWriter) unlock() {
	if !g.locked || g.closed || g.f == nil {
		return
	}
	_ = syscall.Flock(int(g.f.Fd()), syscall.LOCK_UN)
	g.locked = false
}

func (g *GZFileWriter) Close() error {
	if g.closed {
		return nil
	}
	defer func() {
		g.closed = true
	}()
	defer g.unlock()
	if err := g.gzw.Close(); err != nil {
		return err
	}
	if err := g.f.Sync(); err != nil {
		return err
	}
	return g.f.Close()
}

// GZReader reads the decompressed contents of a gzip stream
// and closes both the stream and its source.
type GZReader struct {
	src    io.Closer
	gzr    *gzip.Reader
	closed bool
}

func NewGZReader(rc io.ReadCloser) (*GZReader, error) {
	gzr, err := gzip.NewReader(rc)
	if err != nil {
		return nil, err
	}
	return &GZReader{src: rc, gzr: gzr}, nil
}

// NewGZFileReader opens path and reads it as gzip.
func NewGZFileReader(path string) (*GZReader, error) {
	fi, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	r, err := NewGZReader(fi)
	if err != nil {
		_ = fi.Close()
		return nil, err
	}
	return r, nil
}

// Read satisfies the io.Reader interface.
func (g *GZReader) Read(p []byte) (int, error) {
	return g.gzr.Read(p)
}

// Close closes the gzip reader and its source.
func (g *GZReader) Close() error {
	if g.closed {
		return nil
	}
	g.closed = true
	if err := g.gzr.Close(); err != nil {
		_ = g.src.Close()
		return err
	}
	return g.src.Close()
}

func (g *GZReader) LineCount() (int, error) {
	count := 0
	scanner := bufio.NewScanner(g.gzr)
	for scanner.Scan() {
		count++
	}
	return count, scanner.Err()
}

// IsGZPath reports whether name looks like a gzip file by its extension.
func IsGZPath(name string) bool {
	return strings.HasSuffix(strings.ToLower(name), ".gz")
}

// MaybeGZReader returns a reader of rc's decompressed contents if rc starts
// with the gzip header, otherwise a reader of rc as is.
// Closing the result closes rc.
func MaybeGZReader(rc io.ReadCloser) (io.ReadCloser, error) {
	br := bufio.NewReader(rc)
	head, err := br.Peek(len(gzipMagic))
	if err != nil && err != io.EOF {
		_ = rc.Close()
		return nil, err
	}
	wrapped := readCloser{Reader: br, Closer: rc}
	if !bytes.Equal(head, gzipMagic) {
		return wrapped, nil
	}
	return NewGZReader(wrapped)
}

type readCloser struct {
	io.Reader
	io.Closer
}
