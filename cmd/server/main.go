//go:build !js && !wasm

package main

import (
	"flag"
	"os"
	"strings"

	"github.com/himanishpuri/EarMark/pkg/earmark"
	"github.com/himanishpuri/EarMark/pkg/logger"
	"github.com/joho/godotenv"
)

var (
	port           int
	dataDir        string
	backend        string
	tempDir        string
	allowedOrigins string
)

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func registerFlags() {
	flag.IntVar(&port, "port", 8080, "HTTP server port")
	flag.StringVar(&dataDir, "data", getEnvOrDefault("EARMARK_DATA_DIR", "earmark-data"), "Directory holding the fingerprint store")
	flag.StringVar(&backend, "backend", getEnvOrDefault("EARMARK_BACKEND", earmark.BackendBadger), "Storage backend: badger or sqlite")
	flag.StringVar(&tempDir, "temp", getEnvOrDefault("EARMARK_TEMP_DIR", os.TempDir()), "Directory for uploads")
	flag.StringVar(&allowedOrigins, "origins", getEnvOrDefault("EARMARK_ORIGINS", "*"), "Comma-separated list of allowed CORS origins (use * for all)")
}

func parseOrigins(list string) []string {
	if list == "*" {
		return []string{"*"}
	}
	origins := strings.Split(list, ",")
	for i := range origins {
		origins[i] = strings.TrimSpace(origins[i])
	}
	return origins
}

func main() {
	_ = godotenv.Load()
	registerFlags()
	flag.Parse()
	log := logger.GetLogger()

	service, err := earmark.NewService(
		earmark.WithDataDir(dataDir),
		earmark.WithBackend(backend),
		earmark.WithTempDir(tempDir),
	)
	if err != nil {
		log.Fatalf("Failed to create service: %v", err)
	}
	defer service.Close()

	config := &ServerConfig{
		Port:           port,
		DataDir:        dataDir,
		Backend:        backend,
		TempDir:        tempDir,
		AllowedOrigins: parseOrigins(allowedOrigins),
	}

	server := NewServer(service, config)
	if err := server.Start(); err != nil {
		log.Errorf("Server failed: %v", err)
	}
}
