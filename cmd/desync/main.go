package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/rotisserie/eris"

	persistsnap "parkstep.io/internal/persistence/snapshot"
	"parkstep.io/internal/sim/desync"
)

func main() {
	var (
		basePath = flag.String("base", "", "reference snapshot (.snap.zst), usually the server's")
		cmpPath  = flag.String("cmp", "", "snapshot to compare against the reference")
		outPath  = flag.String("out", "", "write the report here instead of stdout")
	)
	flag.Parse()

	if *basePath == "" || *cmpPath == "" {
		fmt.Fprintln(os.Stderr, "missing -base or -cmp")
		os.Exit(2)
	}
	equal, err := run(*basePath, *cmpPath, *outPath, os.Stdout)
	if err != nil {
		fmt.Fprintln(os.Stderr, "desync:", err)
		os.Exit(1)
	}
	if !equal {
		os.Exit(3)
	}
}

// run diffs two snapshot files and reports whether they match.
func run(basePath, cmpPath, outPath string, stdout io.Writer) (bool, error) {
	base, err := persistsnap.ReadSnapshot(basePath)
	if err != nil {
		return false, eris.Wrapf(err, "read %s", basePath)
	}
	cmp, err := persistsnap.ReadSnapshot(cmpPath)
	if err != nil {
		return false, eris.Wrapf(err, "read %s", cmpPath)
	}
	if base.Header.Tick != cmp.Header.Tick {
		fmt.Fprintf(stdout, "warning: comparing tick %d with tick %d\n", base.Header.Tick, cmp.Header.Tick)
	}
	res, err := desync.Compare(&base.Snapshot, &cmp.Snapshot)
	if err != nil {
		return false, err
	}
	if outPath != "" {
		if !desync.LogCompareDataToFile(outPath, res) {
			return false, eris.Errorf("could not write %s", outPath)
		}
		fmt.Fprintf(stdout, "report written to %s (%d changes)\n", outPath, len(res.Changes))
		return res.Equal(), nil
	}
	_, _ = io.WriteString(stdout, desync.GetCompareDataText(res))
	return res.Equal(), nil
}
