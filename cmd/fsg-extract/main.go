// fsg-extract - Extract FSG file-system images
//
// Usage:
//
//	fsg-extract [-o dir] [-v] [-j workers] [-pprof addr] [-trace file] <image>
//	fsg-extract ls <image>
//	fsg-extract info <image>
//	fsg-extract cat <image> <path>
//	fsg-extract diff <old-image> <new-image> <path>
//
// When <image> ends in ".part0" the continuation parts <stem>.part1,
// <stem>.part2, … are picked up automatically.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	fsg "github.com/ahrav/go-fsg"
)

const usage = "Usage: fsg-extract [-o dir] [-v] [-j workers] <file>\n" +
	"       fsg-extract ls|info <file>\n" +
	"       fsg-extract cat <file> <path>\n" +
	"       fsg-extract diff <old> <new> <path>"

// errUsage marks argument errors; the message is the usage text.
var errUsage = errors.New(usage)

func main() {
	if err := run(context.Background(), os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, describe(err))
		os.Exit(1)
	}
}

// describe maps an error to the message printed before exiting.
func describe(err error) string {
	var xerr *fsg.ExtractionError
	switch {
	case errors.Is(err, errUsage):
		return usage
	case errors.Is(err, fsg.ErrInvalidFormat):
		return "Invalid file header, is this actually an FSG image?"
	case errors.As(err, &xerr):
		return fmt.Sprintf("Unexpected extraction error: %v", err)
	case errors.Is(err, fsg.ErrNotFound):
		return fmt.Sprintf("File not found: %s", strings.TrimPrefix(err.Error(), fsg.ErrNotFound.Error()+": "))
	default:
		return fmt.Sprintf("fsg-extract: %v", err)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	if len(args) > 0 {
		switch args[0] {
		case "ls":
			return runLs(args[1:], stdout)
		case "info":
			return runInfo(args[1:], stdout)
		case "cat":
			return runCat(args[1:], stdout)
		case "diff":
			return runDiff(args[1:], stdout)
		}
	}
	return runExtract(ctx, args, stdout, stderr)
}

func runExtract(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("fsg-extract", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	outDir := fs.String("o", fsg.DefaultOutputDir, "output directory")
	verbose := fs.Bool("v", false, "log every extracted file")
	workers := fs.Int("j", 0, "concurrent index reads (0 = GOMAXPROCS)")
	pprofAddr := fs.String("pprof", "", "serve pprof handlers on this address")
	tracePath := fs.String("trace", "", "write an execution trace to this file")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	if fs.NArg() != 1 {
		return errUsage
	}

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

	prof, err := startProfiling(*pprofAddr, *tracePath, logger)
	if err != nil {
		return err
	}
	defer prof.stop()

	a, err := fsg.Open(fs.Arg(0), fsg.WithLogger(logger), fsg.WithIndexWorkers(*workers))
	if err != nil {
		return err
	}
	defer a.Close()

	total := int(a.Header().FileCount)
	fmt.Fprintf(stdout, "Extracting %d files\n", total)

	st, err := a.Extract(ctx, *outDir, fsg.WithProgress(progressPrinter(stderr, total)))
	fmt.Fprintln(stderr)
	if err != nil {
		return err
	}

	fmt.Fprintf(stdout, "Extracted %s files (%s) in %d directories to %s in %s\n",
		humanize.Comma(int64(st.Files)),
		humanize.IBytes(uint64(st.Bytes)),
		st.Dirs,
		*outDir,
		st.Elapsed.Round(time.Millisecond),
	)
	return nil
}

// progressPrinter returns a callback that redraws a one-line counter on w.
func progressPrinter(w io.Writer, total int) func(fsg.Progress) {
	return func(p fsg.Progress) {
		if p.Done%64 != 0 && p.Done != total {
			return
		}
		fmt.Fprintf(w, "\r[%d/%d]", p.Done, total)
	}
}

func openImage(path string) (*fsg.Archive, error) {
	return fsg.Open(path)
}

func runLs(args []string, out io.Writer) error {
	if len(args) != 1 {
		return errUsage
	}
	a, err := openImage(args[0])
	if err != nil {
		return err
	}
	defer a.Close()

	return a.Walk(func(e fsg.Entry) error {
		if e.IsDir {
			_, err := fmt.Fprintf(out, "%s/\n", e.Path)
			return err
		}
		_, err := fmt.Fprintf(out, "%10s  %s\n", humanize.IBytes(uint64(e.Node.Size)), e.Path)
		return err
	})
}

func runInfo(args []string, out io.Writer) error {
	if len(args) != 1 {
		return errUsage
	}
	a, err := openImage(args[0])
	if err != nil {
		return err
	}
	defer a.Close()

	h := a.Header()
	orphans, err := a.Orphans()
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Parts:             %d\n", a.NumParts())
	fmt.Fprintf(out, "Image size:        %s (%s bytes)\n", humanize.IBytes(uint64(a.Size())), humanize.Comma(a.Size()))
	fmt.Fprintf(out, "Header length:     %d\n", h.HeaderLength)
	fmt.Fprintf(out, "Sectors:           %s\n", humanize.Comma(int64(h.SectorCount)))
	fmt.Fprintf(out, "Sector map offset: %#x\n", h.SectorMapOffset)
	fmt.Fprintf(out, "Base offset:       %#x\n", h.BaseOffset)
	fmt.Fprintf(out, "File count:        %s\n", humanize.Comma(int64(h.FileCount)))
	fmt.Fprintf(out, "Checksum:          %#08x\n", h.Checksum)
	fmt.Fprintf(out, "Indexed hashes:    %d\n", a.Len())
	fmt.Fprintf(out, "Unreachable:       %d\n", len(orphans))
	return nil
}

func runCat(args []string, out io.Writer) error {
	if len(args) != 2 {
		return errUsage
	}
	a, err := openImage(args[0])
	if err != nil {
		return err
	}
	defer a.Close()

	r, err := a.OpenFile(args[1])
	if err != nil {
		return err
	}
	_, err = io.Copy(out, r)
	return err
}

func runDiff(args []string, out io.Writer) error {
	if len(args) != 3 {
		return errUsage
	}
	oldA, err := openImage(args[0])
	if err != nil {
		return err
	}
	defer oldA.Close()
	newA, err := openImage(args[1])
	if err != nil {
		return err
	}
	defer newA.Close()

	d, err := fsg.DiffFile(oldA, newA, args[2])
	if err != nil {
		return err
	}
	_, err = io.WriteString(out, d)
	return err
}
