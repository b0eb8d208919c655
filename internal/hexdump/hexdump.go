// Package hexdump prints raw file bytes as offset, hex and ASCII columns.
package hexdump

import (
	"errors"
	"fmt"
	"io"
	"strings"
)

// Region is the byte range actually dumped after clamping to the file.
type Region struct {
	Offset    int64
	Length    int
	Truncated bool // the request ran past the end of the file
}

// Clamp validates a request against the file size.
func Clamp(offset int64, length int, size int64) (Region, error) {
	if offset < 0 || offset >= size {
		return Region{}, fmt.Errorf("invalid offset: %d (file size: %d)", offset, size)
	}
	if length < 1 {
		return Region{}, fmt.Errorf("invalid length: %d", length)
	}
	reg := Region{Offset: offset, Length: length}
	if remaining := size - offset; int64(length) > remaining {
		reg.Length = int(remaining)
		reg.Truncated = true
	}
	return reg, nil
}

// Read loads the region from r.
func Read(r io.ReaderAt, reg Region) ([]byte, error) {
	buf := make([]byte, reg.Length)
	n, err := r.ReadAt(buf, reg.Offset)
	if err != nil && !(errors.Is(err, io.EOF) && n == reg.Length) {
		return buf[:n], fmt.Errorf("read %d of %d bytes: %w", n, reg.Length, err)
	}
	return buf, nil
}

// Write dumps buf, numbering lines from base.
func Write(w io.Writer, buf []byte, base int64) error {
	var sb strings.Builder
	for i := 0; i < len(buf); i += 16 {
		chunk := buf[i:min(i+16, len(buf))]

		sb.Reset()
		fmt.Fprintf(&sb, "%08x: ", base+int64(i))
		for j := range 16 {
			if j < len(chunk) {
				fmt.Fprintf(&sb, "%02x ", chunk[j])
			} else {
				sb.WriteString("   ")
			}
			if j == 7 {
				sb.WriteByte(' ')
			}
		}
		sb.WriteString(" |")
		for _, b := range chunk {
			if b >= 32 && b <= 126 {
				sb.WriteByte(b)
			} else {
				sb.WriteByte('.')
			}
		}
		sb.WriteString("|\n")

		if _, err := io.WriteString(w, sb.String()); err != nil {
			return err
		}
	}
	return nil
}

// Dump clamps, reads and writes in one step.
func Dump(w io.Writer, r io.ReaderAt, size, offset int64, length int) (Region, error) {
	reg, err := Clamp(offset, length, size)
	if err != nil {
		return reg, err
	}
	buf, err := Read(r, reg)
	if err != nil {
		return reg, err
	}
	return reg, Write(w, buf, reg.Offset)
}
