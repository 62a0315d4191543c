package records

import (
	"bufio"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
	"k8s.io/klog/v2"
)

// ZstdSuffix marks record files stored as a zstd stream.
const ZstdSuffix = ".zst"

// TruncateResult describes what TruncateToWholeRecords did to a file.
type TruncateResult struct {
	Path         string
	OriginalSize int64
	NewSize      int64
	Skipped      bool // resulting size would be zero, file left untouched
}

// Truncated reports whether bytes were cut from the file.
func (t TruncateResult) Truncated() bool {
	return !t.Skipped && t.NewSize < t.OriginalSize
}

// Records is the number of whole records left in the file.
func (t TruncateResult) Records() int64 {
	return t.NewSize / Size
}

// TruncateToWholeRecords shortens the file at path to the largest multiple of
// Size. A file that would end up empty is skipped and left as it is.
// Compressed files are not touched.
func TruncateToWholeRecords(path string) (TruncateResult, error) {
	res := TruncateResult{Path: path}

	info, err := os.Stat(path)
	if err != nil {
		return res, errors.Wrapf(ErrIO, "stat %s: %v", path, err)
	}
	res.OriginalSize = info.Size()
	res.NewSize = res.OriginalSize

	if strings.HasSuffix(path, ZstdSuffix) {
		return res, nil
	}

	whole := (res.OriginalSize / Size) * Size
	if whole <= 0 {
		res.Skipped = true
		res.NewSize = 0
		klog.Warningf("[Records] skipping %s: %d bytes is less than one record", path, res.OriginalSize)
		return res, nil
	}
	if whole == res.OriginalSize {
		return res, nil
	}

	if err := os.Truncate(path, whole); err != nil {
		return res, errors.Wrapf(ErrIO, "truncate %s: %v", path, err)
	}
	res.NewSize = whole
	klog.V(1).Infof("[Records] truncated %s from %d to %d bytes", path, res.OriginalSize, whole)
	return res, nil
}

// ReadAll decodes whole records from r. Trailing bytes that do not form a
// full record are ignored and returned as the second value.
func ReadAll(r io.Reader) ([]Record, int, error) {
	br := bufio.NewReaderSize(r, Size*1024)
	var (
		out []Record
		buf [Size]byte
	)
	for {
		n, err := io.ReadFull(br, buf[:])
		if err == io.EOF {
			return out, 0, nil
		}
		if err == io.ErrUnexpectedEOF {
			return out, n, nil
		}
		if err != nil {
			return out, 0, errors.Wrapf(ErrIO, "read: %v", err)
		}
		rec, _ := Decode(buf[:])
		out = append(out, rec)
	}
}

// LoadFile decodes all whole records in a file. Files ending in ".zst" are
// decompressed on the fly.
func LoadFile(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(ErrIO, "open %s: %v", path, err)
	}
	defer f.Close()

	var r io.Reader = f
	if strings.HasSuffix(path, ZstdSuffix) {
		dec, err := zstd.NewReader(f)
		if err != nil {
			return nil, errors.Wrapf(ErrIO, "zstd %s: %v", path, err)
		}
		defer dec.Close()
		r = dec
	}

	recs, trailing, err := ReadAll(r)
	if err != nil {
		return nil, errors.WithMessagef(err, "load %s", path)
	}
	if trailing > 0 {
		klog.V(1).Infof("[Records] %s: ignored %d trailing bytes", path, trailing)
	}
	return recs, nil
}

// FileResult is the outcome of loading one file.
type FileResult struct {
	Path     string
	Records  int
	Truncate TruncateResult
	Err      error
}

// LoadReport summarizes a bulk load. Files listed in Failed contributed no
// records.
type LoadReport struct {
	Files     []FileResult
	Loaded    int
	Failed    int
	Skipped   int
	Truncated int
	Records   int
}

// Errors returns the per-file errors, in input order.
func (r LoadReport) Errors() []error {
	var errs []error
	for _, f := range r.Files {
		if f.Err != nil {
			errs = append(errs, f.Err)
		}
	}
	return errs
}

// LoadAll truncates and loads every file with up to workers files in flight.
// Records are merged in input-path order. Per-file failures end up in the
// report and never abort the load. A non-nil progress is called once per
// finished file.
func LoadAll(paths []string, workers int, progress func(FileResult)) ([]Record, LoadReport) {
	if workers < 1 {
		workers = 1
	}

	results := make([]FileResult, len(paths))
	loaded := make([][]Record, len(paths))

	var g errgroup.Group
	g.SetLimit(workers)
	for i, path := range paths {
		i, path := i, path
		g.Go(func() error {
			res := FileResult{Path: path}
			res.Truncate, res.Err = TruncateToWholeRecords(path)
			if res.Err == nil && !res.Truncate.Skipped {
				loaded[i], res.Err = LoadFile(path)
				res.Records = len(loaded[i])
			}
			if res.Err != nil {
				klog.Warningf("[Records] %s: %v", path, res.Err)
				loaded[i] = nil
				res.Records = 0
			}
			results[i] = res
			if progress != nil {
				progress(res)
			}
			return nil
		})
	}
	_ = g.Wait()

	report := LoadReport{Files: results}
	total := 0
	for i, res := range results {
		switch {
		case res.Err != nil:
			report.Failed++
		case res.Truncate.Skipped:
			report.Skipped++
		default:
			report.Loaded++
		}
		if res.Truncate.Truncated() {
			report.Truncated++
		}
		total += len(loaded[i])
	}

	all := make([]Record, 0, total)
	for _, recs := range loaded {
		all = append(all, recs...)
	}
	report.Records = len(all)
	return all, report
}

// FindFiles lists regular files directly under dir whose names end in one of
// the suffixes, sorted by name.
func FindFiles(dir string, suffixes ...string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrapf(ErrIO, "read dir %s: %v", dir, err)
	}

	var paths []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		for _, suffix := range suffixes {
			if strings.HasSuffix(e.Name(), suffix) {
				paths = append(paths, filepath.Join(dir, e.Name()))
				break
			}
		}
	}
	sort.Strings(paths)
	return paths, nil
}
