package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/fatih/color"
	"github.com/himanishpuri/EarMark/pkg/earmark"
	"github.com/himanishpuri/EarMark/pkg/logger"
	"github.com/joho/godotenv"
)

// Global flags
var (
	dataDir   string
	backend   string
	tempDir   string
	threshold int
	timeout   time.Duration
)

var (
	errText  = color.New(color.FgRed).SprintFunc()
	okText   = color.New(color.FgGreen).SprintFunc()
	warnText = color.New(color.FgYellow).SprintFunc()
)

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if n, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return n
	}
	return defaultValue
}

func registerFlags() {
	flag.StringVar(&dataDir, "data", getEnvOrDefault("EARMARK_DATA_DIR", "earmark-data"), "Directory holding the fingerprint store")
	flag.StringVar(&backend, "backend", getEnvOrDefault("EARMARK_BACKEND", earmark.BackendBadger), "Storage backend: badger or sqlite")
	flag.StringVar(&tempDir, "temp", getEnvOrDefault("EARMARK_TEMP_DIR", "/tmp"), "Directory for downloads")
	flag.IntVar(&threshold, "threshold", getEnvIntOrDefault("EARMARK_THRESHOLD", 6), "Votes needed to declare a match")
	flag.DurationVar(&timeout, "timeout", 15*time.Second, "Listening time before giving up")
	flag.Usage = printUsage
}

// createService opens the store selected by the global flags.
func createService(extra ...earmark.Option) (earmark.Service, error) {
	opts := append([]earmark.Option{
		earmark.WithDataDir(dataDir),
		earmark.WithBackend(backend),
		earmark.WithTempDir(tempDir),
		earmark.WithThreshold(threshold),
		earmark.WithTimeout(timeout),
	}, extra...)
	return earmark.NewService(opts...)
}

func mustService(extra ...earmark.Option) earmark.Service {
	svc, err := createService(extra...)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s failed to open store: %v\n", errText("error:"), err)
		logger.GetLogger().Debugf("service initialization failed: %+v", err)
		os.Exit(2)
	}
	return svc
}

func main() {
	// a missing .env is fine
	_ = godotenv.Load()
	registerFlags()
	flag.Parse()

	if flag.NArg() < 1 {
		printUsage()
		os.Exit(1)
	}

	command, args := flag.Arg(0), flag.Args()[1:]
	logger.GetLogger().Debugf("executing command: %s", command)

	var code int
	switch command {
	case "ingest":
		code = handleIngest(args)
	case "identify":
		code = handleIdentify(args)
	case "list":
		code = handleList()
	case "stats":
		code = handleStats()
	case "prune":
		code = handlePrune()
	case "delete":
		code = handleDelete(args)
	case "spectrogram":
		code = handleSpectrogram(args)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		printUsage()
		code = 1
	}
	os.Exit(code)
}

func printUsage() {
	fmt.Println("earmark - audio fingerprinting and identification")
	fmt.Println("\nGlobal Options:")
	fmt.Println("  -data <dir>        Store directory (env: EARMARK_DATA_DIR, default: earmark-data)")
	fmt.Println("  -backend <name>    badger or sqlite (env: EARMARK_BACKEND, default: badger)")
	fmt.Println("  -temp <dir>        Download directory (env: EARMARK_TEMP_DIR, default: /tmp)")
	fmt.Println("  -threshold <n>     Votes needed for a match (default: 6)")
	fmt.Println("  -timeout <d>       Listening limit (default: 15s)")
	fmt.Println("\nUsage:")
	fmt.Println("  earmark [global-options] ingest <file|dir>... [-tags]")
	fmt.Println("  earmark [global-options] ingest -youtube <url>")
	fmt.Println("  earmark [global-options] identify [-file <clip>]")
	fmt.Println("  earmark [global-options] list")
	fmt.Println("  earmark [global-options] stats")
	fmt.Println("  earmark [global-options] prune")
	fmt.Println("  earmark [global-options] delete <song_id>")
	fmt.Println("  earmark [global-options] spectrogram <wav> [-out <png>]")
	fmt.Println("\nExamples:")
	fmt.Println("  earmark ingest ~/Music/album")
	fmt.Println("  earmark -backend sqlite identify -file clip.mp3")
}
