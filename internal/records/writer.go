package records

import (
	"bufio"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/pkg/errors"
)

// Writer appends encoded records to a stream.
type Writer struct {
	bw    *bufio.Writer
	zw    *zstd.Encoder
	count int
	buf   []byte
}

// NewWriter writes plain 73-byte records to w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{bw: bufio.NewWriterSize(w, Size*1024), buf: make([]byte, 0, Size)}
}

// NewZstdWriter writes a zstd-compressed record stream to w.
func NewZstdWriter(w io.Writer) (*Writer, error) {
	zw, err := zstd.NewWriter(w)
	if err != nil {
		return nil, errors.Wrap(err, "zstd writer")
	}
	return &Writer{bw: bufio.NewWriterSize(zw, Size*1024), zw: zw, buf: make([]byte, 0, Size)}, nil
}

// Write appends one record.
func (w *Writer) Write(r Record) error {
	w.buf = r.AppendEncode(w.buf[:0])
	if _, err := w.bw.Write(w.buf); err != nil {
		return errors.Wrapf(ErrIO, "write record %d: %v", w.count, err)
	}
	w.count++
	return nil
}

// Count is the number of records written so far.
func (w *Writer) Count() int {
	return w.count
}

// Close flushes buffered data. It does not close the underlying writer.
func (w *Writer) Close() error {
	if err := w.bw.Flush(); err != nil {
		return errors.Wrapf(ErrIO, "flush: %v", err)
	}
	if w.zw != nil {
		if err := w.zw.Close(); err != nil {
			return errors.Wrapf(ErrIO, "zstd close: %v", err)
		}
	}
	return nil
}

// WriteFile creates (or replaces) path and writes all records to it, zstd
// compressed when the name ends in ".zst".
func WriteFile(path string, recs []Record) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(ErrIO, "create %s: %v", path, err)
	}

	var w *Writer
	if strings.HasSuffix(path, ZstdSuffix) {
		if w, err = NewZstdWriter(f); err != nil {
			f.Close()
			return err
		}
	} else {
		w = NewWriter(f)
	}

	for _, r := range recs {
		if err := w.Write(r); err != nil {
			f.Close()
			return errors.WithMessage(err, path)
		}
	}
	if err := w.Close(); err != nil {
		f.Close()
		return errors.WithMessage(err, path)
	}
	if err := f.Close(); err != nil {
		return errors.Wrapf(ErrIO, "close %s: %v", path, err)
	}
	return nil
}
