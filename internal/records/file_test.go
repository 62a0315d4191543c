package records

import (
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleRecords(n int) []Record {
	recs := make([]Record, n)
	for i := range recs {
		recs[i] = Record{
			Kings: 1<<4 | 1<<60,
			White: 1 << 4,
			Black: 1 << 60,
			STM:   STMWhite,
			Eval:  int16(i * 10),
			WDL:   float32(i) / float32(n),
		}
	}
	return recs
}

func writeRaw(t *testing.T, path string, recs []Record, extra int) {
	t.Helper()
	var buf []byte
	for _, r := range recs {
		buf = r.AppendEncode(buf)
	}
	buf = append(buf, make([]byte, extra)...)
	require.NoError(t, os.WriteFile(path, buf, 0o644))
}

func TestTruncateToWholeRecords(t *testing.T) {
	dir := t.TempDir()

	t.Run("partial tail", func(t *testing.T) {
		path := filepath.Join(dir, "tail.bin")
		writeRaw(t, path, sampleRecords(3), 10)

		res, err := TruncateToWholeRecords(path)
		require.NoError(t, err)
		assert.Equal(t, int64(3*Size+10), res.OriginalSize)
		assert.Equal(t, int64(3*Size), res.NewSize)
		assert.True(t, res.Truncated())
		assert.Equal(t, int64(3), res.Records())

		info, err := os.Stat(path)
		require.NoError(t, err)
		assert.Equal(t, int64(3*Size), info.Size())
	})

	t.Run("already whole", func(t *testing.T) {
		path := filepath.Join(dir, "whole.bin")
		writeRaw(t, path, sampleRecords(2), 0)

		res, err := TruncateToWholeRecords(path)
		require.NoError(t, err)
		assert.False(t, res.Truncated())
		assert.False(t, res.Skipped)
	})

	t.Run("too short", func(t *testing.T) {
		path := filepath.Join(dir, "short.bin")
		require.NoError(t, os.WriteFile(path, make([]byte, 50), 0o644))

		res, err := TruncateToWholeRecords(path)
		require.NoError(t, err)
		assert.True(t, res.Skipped)

		info, err := os.Stat(path)
		require.NoError(t, err)
		assert.Equal(t, int64(50), info.Size(), "skipped file must be left alone")
	})

	t.Run("missing", func(t *testing.T) {
		_, err := TruncateToWholeRecords(filepath.Join(dir, "nope.bin"))
		assert.True(t, errors.Is(err, ErrIO))
	})
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	want := sampleRecords(5)

	plain := filepath.Join(dir, "a.bin")
	writeRaw(t, plain, want, 20)
	got, err := LoadFile(plain)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	zst := filepath.Join(dir, "a.bin.zst")
	require.NoError(t, WriteFile(zst, want))
	got, err = LoadFile(zst)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	_, err = LoadFile(filepath.Join(dir, "missing.bin"))
	assert.True(t, errors.Is(err, ErrIO))
}

func TestLoadAll(t *testing.T) {
	dir := t.TempDir()
	recs := sampleRecords(10)

	first := filepath.Join(dir, "1.pgn.evals.bin")
	second := filepath.Join(dir, "2.pgn.evals.bin")
	short := filepath.Join(dir, "3.pgn.evals.bin")
	missing := filepath.Join(dir, "4.pgn.evals.bin")

	writeRaw(t, first, recs[:4], 7)
	writeRaw(t, second, recs[4:], 0)
	require.NoError(t, os.WriteFile(short, []byte{1, 2, 3}, 0o644))

	var calls atomic.Int32
	got, report := LoadAll([]string{first, second, short, missing}, 3, func(FileResult) {
		calls.Add(1)
	})

	assert.Equal(t, recs, got, "records merged in path order")
	assert.Equal(t, int32(4), calls.Load())
	assert.Equal(t, 2, report.Loaded)
	assert.Equal(t, 1, report.Skipped)
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, 1, report.Truncated)
	assert.Equal(t, 10, report.Records)

	require.Len(t, report.Errors(), 1)
	assert.True(t, errors.Is(report.Errors()[0], ErrIO))
	assert.Equal(t, missing, report.Files[3].Path)
}

func TestFindFiles(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.pgn.evals.bin", "a.pgn.evals.bin", "c.txt", "d.pgn.evals.bin.zst"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0o644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "x.pgn.evals.bin"), 0o755))

	got, err := FindFiles(dir, ".pgn.evals.bin", ".pgn.evals.bin.zst")
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "a.pgn.evals.bin"),
		filepath.Join(dir, "b.pgn.evals.bin"),
		filepath.Join(dir, "d.pgn.evals.bin.zst"),
	}, got)
}

func TestWriterCount(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.bin")
	require.NoError(t, WriteFile(path, sampleRecords(7)))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, int64(7*Size), info.Size())
}
