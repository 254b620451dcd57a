// Command bimkit loads BIM models (XKT, glTF/GLB, dotbim) into the scene
// model, stores manifests and metadata through a configured storage backend
// and manages saved BCF viewpoints.
package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bimkit/bimkit/internal/config"
	"github.com/bimkit/bimkit/internal/loader"
	"github.com/bimkit/bimkit/internal/loader/dotbim"
	"github.com/bimkit/bimkit/internal/loader/gltf"
	"github.com/bimkit/bimkit/internal/loader/xkt"
	"github.com/bimkit/bimkit/internal/logging"
	"github.com/bimkit/bimkit/internal/otel"
)

var (
	// Version is set at build time.
	Version = "0.0.1"

	sessionStart = time.Now()

	logManager   *logging.SlogManager
	otelProvider *otel.Provider
	registry     *loader.Registry
)

func usage() {
	fmt.Fprintf(os.Stderr, `bimkit %s

Usage:
  bimkit info <file>...          load models and print their statistics
  bimkit load <file>...          load models and save them to storage
  bimkit viewpoints <modelId>    list saved viewpoints for a model

Configuration is read from bimkit.cfg.json in the working directory.
`, Version)
}

func main() {
	cfgErr := config.Load(".")

	if err := setupLogging(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to set up logging: %v\n", err)
		os.Exit(1)
	}
	log := logManager.Logger()

	if cfgErr != nil {
		log.Warn("No config file found, using defaults", "error", cfgErr)
	}

	registry = loader.NewRegistry(log)
	registry.Register(xkt.New(log))
	registry.Register(gltf.New(log))
	registry.Register(dotbim.New(log))

	args := os.Args[1:]
	if len(args) < 2 {
		usage()
		os.Exit(2)
	}

	var err error
	switch strings.ToLower(args[0]) {
	case "info":
		err = runInfo(args[1:])
	case "load":
		err = runLoad(args[1:])
	case "viewpoints":
		err = runViewpoints(args[1])
	default:
		usage()
		os.Exit(2)
	}

	shutdown()

	if err != nil {
		log.Error("Command failed", "error", err)
		os.Exit(1)
	}
}

func setupLogging() error {
	logsDir := config.GetString("logsDir")
	if err := os.MkdirAll(logsDir, 0755); err != nil {
		return fmt.Errorf("failed to create logs directory: %w", err)
	}

	logFile, err := os.Create(logging.LogFilePath(logsDir, "bimkit", sessionStart))
	if err != nil {
		return fmt.Errorf("failed to create log file: %w", err)
	}

	var gelfWriter io.Writer
	if config.GetBool("graylog.enabled") {
		w, err := logging.NewGelfWriter(config.GetString("graylog.address"))
		if err != nil {
			fmt.Fprintf(os.Stderr, "graylog disabled: %v\n", err)
		} else {
			gelfWriter = w
		}
	}

	oc := config.GetOTelConfig()
	otelCfg := otel.Config{
		Enabled:      oc.Enabled,
		ServiceName:  oc.ServiceName,
		BatchTimeout: oc.BatchTimeout,
		Endpoint:     oc.Endpoint,
		Insecure:     oc.Insecure,
	}
	if oc.Enabled {
		otelFile, err := os.Create(filepath.Join(logsDir,
			fmt.Sprintf("bimkit.otel.%s.log", sessionStart.Format("20060102_150405"))))
		if err != nil {
			return fmt.Errorf("failed to create otel log file: %w", err)
		}
		otelCfg.LogWriter = otelFile
	}

	otelProvider, err = otel.New(otelCfg)
	if err != nil {
		return fmt.Errorf("failed to set up otel: %w", err)
	}

	logManager = logging.NewSlogManager()
	logManager.Setup(logFile, gelfWriter, config.GetString("logLevel"), otelProvider.LoggerProvider())
	return nil
}
