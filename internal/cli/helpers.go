package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"fruitcounter/internal/app"
	"fruitcounter/internal/config"
	"fruitcounter/internal/logger"
	"fruitcounter/internal/service"
)

// environment is shared by all subcommands of one parser.
type environment struct {
	globals *GlobalFlags
	out     io.Writer
	manager *service.Manager
}

// open returns the injected manager, or builds one from the configuration.
// The returned func releases what open created.
func (e *environment) open(ctx context.Context) (*service.Manager, func(), error) {
	if e.manager != nil {
		return e.manager, func() {}, nil
	}

	cfg, err := config.LoadFrom(e.configPath())
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}

	level := "warn"
	if e.globals.Verbose {
		level = "info"
	}
	log := logger.NewWriterLogger(os.Stderr, level)

	a, err := app.NewApp(ctx, cfg, log)
	if err != nil {
		return nil, nil, err
	}
	return a.Manager(), func() { a.Close() }, nil
}

func (e *environment) configPath() string {
	if e.globals.Config != "" {
		return e.globals.Config
	}
	return os.Getenv("CONFIG_FILE")
}

func (e *environment) jsonOutput() bool {
	return e.globals != nil && e.globals.JSON
}

func (e *environment) printJSON(v any) error {
	enc := json.NewEncoder(e.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (e *environment) printf(format string, args ...any) {
	fmt.Fprintf(e.out, format, args...)
}
