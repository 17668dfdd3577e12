package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/himanishpuri/EarMark/pkg/earmark"
	"github.com/himanishpuri/EarMark/pkg/utils"
	"github.com/mattn/go-isatty"
	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
)

func handleIngest(args []string) int {
	cmd := flag.NewFlagSet("ingest", flag.ExitOnError)
	tags := cmd.Bool("tags", false, "Name songs from embedded tags when present")
	youtube := cmd.String("youtube", "", "YouTube URL to download and ingest")
	cmd.Parse(args)

	if *youtube == "" && cmd.NArg() == 0 {
		fmt.Println("Usage: earmark ingest <file|dir>... [-tags]")
		fmt.Println("   OR: earmark ingest -youtube <url>")
		return 1
	}

	svc := mustService(earmark.WithTagNames(*tags))
	defer svc.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	code := 0
	if *youtube != "" {
		fmt.Println("Downloading audio from YouTube...")
		status, err := svc.IngestYouTube(ctx, *youtube)
		printReport(earmark.IngestReport{Path: *youtube, Status: status, Err: err})
		code |= status.ExitCode()
	}
	if cmd.NArg() > 0 {
		code |= ingestPaths(ctx, svc, cmd.Args())
	}
	return code
}

func ingestPaths(ctx context.Context, svc earmark.Service, paths []string) int {
	files, err := utils.ExpandAudioPaths(paths)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s %v\n", errText("error:"), err)
		return 1
	}

	// the bar only makes sense on a terminal; lines are printed once it is done
	fd := os.Stdout.Fd()
	tty := isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
	if !tty || len(files) < 2 {
		code, err := svc.IngestPaths(ctx, files, printReport)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s %v\n", errText("interrupted:"), err)
		}
		return code
	}

	p := mpb.NewWithContext(ctx, mpb.WithWidth(64))
	bar := p.AddBar(int64(len(files)),
		mpb.PrependDecorators(
			decor.Name("Ingesting: "),
			decor.CountersNoUnit("%d / %d"),
		),
		mpb.AppendDecorators(
			decor.Percentage(),
			decor.EwmaETA(decor.ET_STYLE_GO, 60),
		),
	)

	var reports []earmark.IngestReport
	last := time.Now()
	code, err := svc.IngestPaths(ctx, files, func(r earmark.IngestReport) {
		reports = append(reports, r)
		bar.EwmaIncrement(time.Since(last))
		last = time.Now()
	})
	if err != nil {
		bar.Abort(false)
	}
	p.Wait()

	for _, r := range reports {
		printReport(r)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s %v\n", errText("interrupted:"), err)
	}
	return code
}

func printReport(r earmark.IngestReport) {
	switch r.Status {
	case earmark.Inserted:
		fmt.Printf("%s %q\n", okText("Inserted"), r.Path)
	case earmark.Skipped:
		fmt.Printf("%s %q\n", warnText("Skipping"), r.Path)
	case earmark.BadFile:
		fmt.Printf("%s %q: %v\n", errText("Bad file"), r.Path, r.Err)
	default:
		fmt.Printf("%s %q: %v\n", errText("Failed"), r.Path, r.Err)
	}
}
