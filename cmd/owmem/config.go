package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"github.com/arloliu/go-onewire/logger"
)

// Environment variables read from the process environment or a .env file in
// the working directory. Flags override them.
const (
	envStore    = "OWMEM_STORE"
	envLogLevel = "OWMEM_LOG_LEVEL"
	envVerify   = "OWMEM_VERIFY"
	envConsole  = "ENV"
)

const defaultStorePath = "owmem.db"

type config struct {
	storePath string
	logLevel  string
	verify    bool
	console   bool
}

func loadConfig() config {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "owmem: ignoring .env: %v\n", err)
	}

	cfg := config{
		storePath: defaultStorePath,
		logLevel:  "warn",
		verify:    true,
		console:   os.Getenv(envConsole) == "development",
	}
	if v := os.Getenv(envStore); v != "" {
		cfg.storePath = v
	}
	if v := os.Getenv(envLogLevel); v != "" {
		cfg.logLevel = v
	}
	if v := os.Getenv(envVerify); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.verify = b
		}
	}

	return cfg
}

func parseLevel(s string) (logger.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return logger.DebugLevel, nil
	case "info":
		return logger.InfoLevel, nil
	case "warn", "warning":
		return logger.WarnLevel, nil
	case "error":
		return logger.ErrorLevel, nil
	default:
		return logger.InfoLevel, fmt.Errorf("owmem: unknown log level %q", s)
	}
}
