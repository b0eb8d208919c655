package writer

import (
	"errors"
	"fmt"
	"io"
	"os"
)

var errWriterClosed = errors.New("writer is closed")

// CreateMode selects what happens when the target file exists.
type CreateMode int

const (
	// ModeTruncate replaces an existing file.
	ModeTruncate CreateMode = iota
	// ModeExclusive fails if the file exists.
	ModeExclusive
)

func (m CreateMode) flags() (int, error) {
	switch m {
	case ModeTruncate:
		return os.O_RDWR | os.O_CREATE | os.O_TRUNC, nil
	case ModeExclusive:
		return os.O_RDWR | os.O_CREATE | os.O_EXCL, nil
	}
	return 0, fmt.Errorf("invalid create mode: %d", m)
}

// FileWriter places byte blocks in an output file at addresses handed out by
// its Allocator. Not safe for concurrent use.
type FileWriter struct {
	file      *os.File
	allocator *Allocator
}

// NewFileWriter creates filename. Allocation starts at initialOffset, which
// leaves room for the superblock.
func NewFileWriter(filename string, mode CreateMode, initialOffset uint64) (*FileWriter, error) {
	flags, err := mode.flags()
	if err != nil {
		return nil, err
	}
	//nolint:gosec // G304: caller chooses the output path
	f, err := os.OpenFile(filename, flags, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to create file: %w", err)
	}
	return &FileWriter{file: f, allocator: NewAllocator(initialOffset)}, nil
}

// Allocate reserves size bytes and returns their address.
func (w *FileWriter) Allocate(size uint64) (uint64, error) {
	if w.file == nil {
		return 0, errWriterClosed
	}
	return w.allocator.Allocate(size)
}

// WriteAt implements io.WriterAt. A short write is an error.
func (w *FileWriter) WriteAt(data []byte, offset int64) (int, error) {
	if w.file == nil {
		return 0, errWriterClosed
	}
	if len(data) == 0 {
		return 0, nil
	}
	n, err := w.file.WriteAt(data, offset)
	switch {
	case err != nil:
		return n, fmt.Errorf("write at address %d failed: %w", offset, err)
	case n != len(data):
		return n, fmt.Errorf("incomplete write at address %d: wrote %d of %d bytes", offset, n, len(data))
	}
	return n, nil
}

// WriteAtAddress writes data at addr.
func (w *FileWriter) WriteAtAddress(data []byte, addr uint64) error {
	_, err := w.WriteAt(data, int64(addr)) //nolint:gosec // G115: addresses come from the allocator
	return err
}

// WriteAtWithAllocation stores data in newly allocated space and returns its
// address.
func (w *FileWriter) WriteAtWithAllocation(data []byte) (uint64, error) {
	if len(data) == 0 {
		return 0, errors.New("cannot write empty data")
	}
	addr, err := w.Allocate(uint64(len(data)))
	if err != nil {
		return 0, err
	}
	return addr, w.WriteAtAddress(data, addr)
}

// ReadAt implements io.ReaderAt over what has been written so far.
func (w *FileWriter) ReadAt(buf []byte, addr int64) (int, error) {
	if w.file == nil {
		return 0, errWriterClosed
	}
	return w.file.ReadAt(buf, addr)
}

// EndOfFile is where the next allocation starts.
func (w *FileWriter) EndOfFile() uint64 {
	return w.allocator.EndOfFile()
}

// Flush commits writes to disk.
func (w *FileWriter) Flush() error {
	if w.file == nil {
		return errWriterClosed
	}
	return w.file.Sync()
}

// Close flushes and closes the file. Closing twice is a no-op.
func (w *FileWriter) Close() error {
	if w.file == nil {
		return nil
	}
	err := w.Flush()
	if cerr := w.file.Close(); err == nil {
		err = cerr
	}
	w.file = nil
	return err
}

// Discard closes and removes the file.
func (w *FileWriter) Discard() error {
	if w.file == nil {
		return nil
	}
	name := w.file.Name()
	err := w.file.Close()
	w.file = nil
	if rerr := os.Remove(name); err == nil {
		err = rerr
	}
	return err
}

var (
	_ io.ReaderAt = (*FileWriter)(nil)
	_ io.WriterAt = (*FileWriter)(nil)
)
