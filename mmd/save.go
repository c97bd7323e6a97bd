package mmd

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Format is an output file format.
type Format string

const (
	FormatPMD Format = "pmd"
	FormatPMX Format = "pmx"
)

// FormatFromPath picks the format from the file extension.
func FormatFromPath(path string) (Format, error) {
	switch f := Format(strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")); f {
	case FormatPMD, FormatPMX:
		return f, nil
	}
	return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
}

// Write validates m, including the limits of the format, and writes it.
func Write(m *Model, w *bufio.Writer, format Format, opts *WriterOptions) error {
	if err := m.Validate(); err != nil {
		return err
	}
	var err error
	switch format {
	case FormatPMD:
		if err := m.ValidatePMD(); err != nil {
			return err
		}
		err = WritePMD(m, w, opts)
	case FormatPMX:
		err = WritePMX(m, w, opts)
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
	if err != nil {
		return err
	}
	if err := w.Flush(); err != nil {
		return WriteError{Section: "flush", Cause: err}
	}
	return nil
}

// SaveFile writes m to path. A partially written file is removed on failure.
func SaveFile(path string, m *Model, format Format, opts *WriterOptions) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = WriteError{Section: "close", Cause: cerr}
		}
		if err != nil {
			os.Remove(path)
		}
	}()
	return Write(m, bufio.NewWriter(f), format, opts)
}

// LoadFile reads a .pmd or .pmx model.
func LoadFile(path string) (*Model, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Read(f)
}
