package engine

import (
	"fmt"
	"os"
	"sync"
)

// FileWriter places decoded parts into one output file. Parts arrive out of
// order from several workers.
type FileWriter struct {
	mu      sync.Mutex
	path    string
	file    *os.File
	written int64
}

func NewFileWriter(path string) *FileWriter {
	return &FileWriter{path: path}
}

// WriteAt opens the file on first use and writes data at offset.
func (fw *FileWriter) WriteAt(data []byte, offset int64) error {
	fw.mu.Lock()
	defer fw.mu.Unlock()

	if fw.file == nil {
		f, err := os.OpenFile(fw.path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0644)
		if err != nil {
			return fmt.Errorf("could not open output file: %w", err)
		}
		fw.file = f
	}

	// WriteAt is thread-safe on Linux/Unix for the same file descriptor,
	// the lock guards the lazy open and the counter
	n, err := fw.file.WriteAt(data, offset)
	fw.written += int64(n)
	return err
}

// Written is the number of bytes written so far.
func (fw *FileWriter) Written() int64 {
	fw.mu.Lock()
	defer fw.mu.Unlock()
	return fw.written
}

// Close truncates the file to finalSize when it is known, syncs and closes.
func (fw *FileWriter) Close(finalSize int64) error {
	fw.mu.Lock()
	defer fw.mu.Unlock()

	if fw.file == nil {
		return nil
	}
	f := fw.file
	fw.file = nil

	// Ensure the file is exactly the size yEnc reported
	if finalSize > 0 {
		if err := f.Truncate(finalSize); err != nil {
			f.Close()
			return fmt.Errorf("failed to truncate to final size: %w", err)
		}
	}

	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
