// nnue-dump prints the records of a record file as FEN with their labels.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/janpfeifer/must"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/loldot/lolbot/internal/records"
)

var (
	flagFile   = flag.String("file", "", "record file, optionally zstd compressed (.zst)")
	flagN      = flag.Int("n", 10, "number of records to print, 0 prints all")
	flagFormat = flag.String("format", "both", "fen, eval, wdl or both")
)

func main() {
	klog.InitFlags(nil)
	flag.Parse()
	defer klog.Flush()

	if *flagFile == "" {
		klog.Exit("-file is required")
	}
	format := must.M1(parseFormat(*flagFormat))

	recs, err := records.LoadFile(*flagFile)
	if err != nil {
		klog.Exitf("%+v", err)
	}
	klog.V(1).Infof("%s: %d records", *flagFile, len(recs))

	n := len(recs)
	if *flagN > 0 {
		n = min(n, *flagN)
	}
	w := bufio.NewWriter(os.Stdout)
	dump(w, recs[:n], format)
	must.M(w.Flush())
}

type outputFormat int

const (
	formatFEN outputFormat = iota
	formatEval
	formatWDL
	formatBoth
)

func parseFormat(s string) (outputFormat, error) {
	switch s {
	case "fen":
		return formatFEN, nil
	case "eval":
		return formatEval, nil
	case "wdl":
		return formatWDL, nil
	case "both":
		return formatBoth, nil
	}
	return 0, errors.Errorf("unknown format %q, want fen, eval, wdl or both", s)
}

func dump(w io.Writer, recs []records.Record, format outputFormat) {
	for i, r := range recs {
		if err := r.Validate(); err != nil {
			fmt.Fprintf(w, "%d: INVALID (%v)\n", i, err)
			continue
		}
		fen := r.Position().ToFEN()
		switch format {
		case formatFEN:
			fmt.Fprintln(w, fen)
		case formatEval:
			fmt.Fprintf(w, "%s | eval %d\n", fen, r.Eval)
		case formatWDL:
			fmt.Fprintf(w, "%s | wdl %.4f\n", fen, r.WDL)
		default:
			fmt.Fprintf(w, "%s | eval %d | wdl %.4f\n", fen, r.Eval, r.WDL)
		}
	}
}
