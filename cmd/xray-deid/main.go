package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/rs/zerolog"

	xraydeid "github.com/menta2k/xray-deid"
	"github.com/menta2k/xray-deid/internal/config"
	xerrors "github.com/menta2k/xray-deid/internal/errors"
	"github.com/menta2k/xray-deid/internal/logging"
	"github.com/menta2k/xray-deid/internal/utils"
	"github.com/menta2k/xray-deid/pkg/ocr"
	"github.com/menta2k/xray-deid/pkg/output"
	"github.com/menta2k/xray-deid/pkg/pipeline"
)

// Exit codes
const (
	exitOK     = 0
	exitFailed = 1
	exitConfig = 2
)

func main() {
	os.Exit(run())
}

func run() int {
	var configPath, in, outDir, mode, backend, model, url, format string
	var workers int
	var debug, jsonLogs, version bool

	flag.StringVar(&configPath, "config", "", "YAML configuration file (default ~/.config/xray-deid/config.yaml if present)")
	flag.StringVar(&in, "in", "", "input directory of x-ray images")
	flag.StringVar(&outDir, "out", "", "output directory for cleaned images and the record table")
	flag.StringVar(&mode, "mode", "", "text removal: inpaint or mask")
	flag.StringVar(&backend, "backend", "", "OCR backend: tesseract, ollama or llamacpp")
	flag.StringVar(&model, "model", "", "vision model name (ollama/llamacpp)")
	flag.StringVar(&url, "url", "", "vision server URL (ollama/llamacpp)")
	flag.StringVar(&format, "format", "", "output image format: png|jpg|tiff|bmp|webp (default keep input format)")
	flag.IntVar(&workers, "workers", 0, "number of images processed concurrently")
	flag.BoolVar(&debug, "debug", false, "write intermediate masks and overlays under <out>/debug")
	flag.BoolVar(&jsonLogs, "json", false, "log JSON lines instead of console output")
	flag.BoolVar(&version, "version", false, "print version and exit")
	flag.Parse()

	if version {
		fmt.Println("xray-deid", xraydeid.Version)
		return exitOK
	}

	cfg, err := loadConfig(configPath)
	if err == nil {
		// Flags win over file and environment, but only when given
		flag.Visit(func(f *flag.Flag) {
			switch f.Name {
			case "in":
				cfg.InputPath = in
			case "out":
				cfg.OutputPath = outDir
			case "mode":
				cfg.ProcessingMode = mode
			case "backend":
				cfg.OCR.Backend = backend
			case "model":
				cfg.OCR.Model = model
			case "url":
				cfg.OCR.URL = url
			case "format":
				cfg.Output.ImageFormat = format
			case "workers":
				cfg.Workers = workers
			case "debug":
				cfg.Debug = debug
			}
		})
		err = cfg.Validate()
	}

	var base zerolog.Logger
	if jsonLogs {
		base = logging.NewJSON(os.Stderr, cfg.Debug)
	} else {
		base = logging.New(os.Stderr, cfg.Debug)
	}
	log, runID := logging.WithRun(base)

	if err != nil {
		cerr := xerrors.NewConfigurationError("config", err)
		log.Error().Err(cerr.Cause).Str("error_code", string(cerr.Code)).Msg("invalid configuration")
		return exitConfig
	}
	if !utils.DirExists(cfg.InputPath) {
		log.Error().Str("error_code", string(xerrors.ErrorConfigurationInvalid)).
			Str("input_path", cfg.InputPath).Msg("input directory does not exist")
		return exitConfig
	}

	engine, err := xraydeid.NewRecognizer(xraydeid.RecognizerConfig{
		Backend:     cfg.OCR.Backend,
		Languages:   cfg.OCR.Languages,
		PageSegMode: cfg.OCR.PageSegMode,
		Model:       cfg.OCR.Model,
		URL:         cfg.OCR.URL,
		APIKey:      cfg.OCR.APIKey,
	})
	if err != nil {
		if errors.Is(err, ocr.ErrOCRNotEnabled) {
			log.Error().Err(err).Msg("rebuild with -tags ocr or choose -backend ollama|llamacpp")
		} else {
			log.Error().Err(err).Str("backend", cfg.OCR.Backend).Msg("failed to create text recognizer")
		}
		return exitConfig
	}

	processor, err := pipeline.NewProcessor(pipeline.Options{
		Mode:    cfg.Mode(),
		Mask:    cfg.MaskParams(),
		Removal: cfg.RemovalConfig(),
		Crop:    cfg.CropConfig(),
	})
	if err != nil {
		log.Error().Err(err).Msg("failed to create processor")
		return exitConfig
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := utils.EnsureDir(cfg.OutputPath); err != nil {
		log.Error().Err(err).Str("output_path", cfg.OutputPath).Msg("failed to create output directory")
		return exitFailed
	}

	sink, err := openSinks(ctx, cfg)
	if err != nil {
		log.Error().Err(err).Str("error_code", string(xerrors.ErrorOutputFailed)).Msg("failed to open record table")
		return exitFailed
	}
	defer sink.Close()

	paths, err := utils.ListImageFiles(cfg.InputPath)
	if err != nil {
		log.Error().Err(err).Str("input_path", cfg.InputPath).Msg("failed to list input images")
		return exitFailed
	}

	orch := pipeline.NewOrchestrator(pipeline.OrchestratorOptions{
		Processor:  processor,
		Identifier: pipeline.NewIdentifier(ocr.NewReader(engine, nil)),
		Images:     output.NewImageWriter(cfg.InputPath, cfg.OutputPath, cfg.Output.ImageFormat, cfg.Output.Quality),
		Sink:       sink,
		Logger:     log,
		RunID:      runID,
		Workers:    cfg.Workers,
		Debug:      cfg.Debug,
	})

	summary, err := orch.Run(ctx, paths)
	if err != nil {
		log.Error().Err(err).Str("error_code", string(xerrors.CodeOf(err))).Msg("run failed")
		return exitFailed
	}

	log.Info().
		Int("records", len(summary.Records)).
		Int("failures", len(summary.Failures)).
		Dur("duration", summary.Duration).
		Str("table", filepath.Join(cfg.OutputPath, cfg.Output.TableName)).
		Msg("run complete")
	return exitOK
}

// loadConfig layers defaults, the YAML file, .env and XRAY_* variables
func loadConfig(path string) (*config.Config, error) {
	cfg := config.Default()
	if path == "" && utils.FileExists(config.GetConfigPath()) {
		path = config.GetConfigPath()
	}
	if path != "" {
		loaded, err := config.LoadFromFile(path)
		if err != nil {
			return cfg, err
		}
		cfg = loaded
	}

	if err := config.LoadDotEnv(".env"); err != nil {
		return cfg, err
	}
	if err := cfg.ApplyEnv(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func openSinks(ctx context.Context, cfg *config.Config) (output.Sink, error) {
	sinks := output.MultiSink{output.NewCSVSink(filepath.Join(cfg.OutputPath, cfg.Output.TableName))}
	if cfg.Output.DatabaseURL != "" {
		pg, err := output.NewPostgresSink(ctx, cfg.Output.DatabaseURL, cfg.Output.DatabaseTable)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, pg)
	}
	return sinks, nil
}
