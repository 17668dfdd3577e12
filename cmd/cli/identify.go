package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/himanishpuri/EarMark/pkg/earmark"
	"github.com/himanishpuri/EarMark/pkg/earmark/listen"
	"github.com/himanishpuri/EarMark/pkg/earmark/match"
	"github.com/himanishpuri/EarMark/pkg/models"
)

func handleIdentify(args []string) int {
	cmd := flag.NewFlagSet("identify", flag.ExitOnError)
	file := cmd.String("file", "", "Identify a recorded clip instead of the microphone")
	rate := cmd.Int("rate", 48000, "Microphone sample rate")
	cmd.Parse(args)

	svc := mustService()
	defer svc.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if *file != "" {
		return identifyFile(ctx, svc, *file)
	}
	return identifyMic(ctx, svc, *rate)
}

func identifyFile(ctx context.Context, svc earmark.Service, path string) int {
	fmt.Printf("Analyzing %s...\n", path)
	d, err := svc.IdentifyFile(ctx, path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s %v\n", errText("error:"), err)
		return 2
	}
	if d.Verdict != match.Match {
		fmt.Printf("%s best score %d after %v\n", warnText("No match:"), d.Best.Count, d.Elapsed)
		return 1
	}
	printMatch(d.Result())
	return 0
}

func identifyMic(ctx context.Context, svc earmark.Service, rate int) int {
	src, err := micSource(rate, earmark.DefaultChunkFrames*rate/48000)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s %v\n", errText("error:"), err)
		return 2
	}

	sess, err := svc.NewSession(src.SampleRate(), src.Channels())
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s %v\n", errText("error:"), err)
		return 2
	}

	done := make(chan struct{})
	go showStatus(sess, done)
	res, err := svc.Listen(ctx, sess, src)
	close(done)
	fmt.Println()

	if err != nil {
		fmt.Fprintf(os.Stderr, "%s %v\n", errText("error:"), err)
		return 2
	}
	if res.Outcome != listen.Found {
		fmt.Printf("%s %s, best score %d\n", warnText("No match:"), res.Outcome, res.Score)
		return 1
	}
	printMatch(res.MatchResult)
	return 0
}

// showStatus redraws the session status line until done is closed.
func showStatus(sess *listen.Session, done <-chan struct{}) {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	last := ""
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if text := sess.Status().Text; text != last {
				fmt.Printf("\r\033[K%s", text)
				last = text
			}
		}
	}
}

func printMatch(m models.MatchResult) {
	fmt.Printf("%s %s\n", okText("result:"), m.Name)
	fmt.Printf("score: %d\n", m.Score)
	fmt.Printf("elapsed time: %s\n", m.Clock())
}
