package pipeline

import (
	"context"
	"errors"
	"image"
	"sync"
	"time"

	"github.com/rs/zerolog"

	xerrors "github.com/menta2k/xray-deid/internal/errors"
	"github.com/menta2k/xray-deid/pkg/cropper"
	"github.com/menta2k/xray-deid/pkg/output"
	"github.com/menta2k/xray-deid/pkg/processing"
	"github.com/menta2k/xray-deid/pkg/types"
)

// OrchestratorOptions configures a run
type OrchestratorOptions struct {
	Processor  *Processor
	Identifier *Identifier
	Images     *output.ImageWriter
	// Sink receives all records once every image is done; nil skips the table
	Sink    output.Sink
	Logger  zerolog.Logger
	RunID   string
	Workers int
	// Debug writes intermediate masks and an overlay next to the output
	Debug bool
}

// Summary describes a finished run
type Summary struct {
	RunID    string
	Records  []types.PatientRecord
	Failures []*xerrors.ProcessingError
	Duration time.Duration
}

// Orchestrator processes images on a worker pool. Images are independent;
// the record table is written once, in input order, after all workers finish.
type Orchestrator struct {
	opts   OrchestratorOptions
	loader *processing.Processor
}

// NewOrchestrator creates an Orchestrator
func NewOrchestrator(opts OrchestratorOptions) *Orchestrator {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	return &Orchestrator{opts: opts, loader: processing.NewProcessor()}
}

type outcome struct {
	record types.PatientRecord
	err    error
	done   bool
}

// Run processes every path. Per-image failures are logged and collected in
// the summary; the returned error is reserved for the record table and for
// context cancellation.
func (o *Orchestrator) Run(ctx context.Context, paths []string) (*Summary, error) {
	start := time.Now()
	log := o.opts.Logger
	log.Info().Int("images", len(paths)).Int("workers", o.opts.Workers).
		Str("strategy", o.opts.Processor.Strategy()).Msg("starting run")

	outcomes := make([]outcome, len(paths))
	jobs := make(chan int)

	var wg sync.WaitGroup
	for w := 0; w < o.opts.Workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				rec, err := o.ProcessFile(ctx, paths[i])
				outcomes[i] = outcome{record: rec, err: err, done: true}
			}
		}()
	}

feed:
	for i := range paths {
		select {
		case jobs <- i:
		case <-ctx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()

	summary := &Summary{RunID: o.opts.RunID}
	for _, out := range outcomes {
		switch {
		case !out.done:
		case out.err != nil:
			var pe *xerrors.ProcessingError
			if !errors.As(out.err, &pe) {
				pe = xerrors.NewImageLoadError("", out.err)
			}
			summary.Failures = append(summary.Failures, pe)
		default:
			summary.Records = append(summary.Records, out.record)
		}
	}

	if o.opts.Sink != nil {
		if err := o.opts.Sink.Write(ctx, summary.Records); err != nil {
			summary.Duration = time.Since(start)
			return summary, xerrors.NewOutputError("", "record table", err)
		}
	}

	summary.Duration = time.Since(start)
	log.Info().Int("records", len(summary.Records)).Int("failures", len(summary.Failures)).
		Dur("duration", summary.Duration).Msg("run finished")

	if err := ctx.Err(); err != nil {
		return summary, err
	}
	return summary, nil
}

// ProcessFile de-identifies one image and writes its cropped output.
// Failures are returned as *errors.ProcessingError from internal/errors.
func (o *Orchestrator) ProcessFile(ctx context.Context, path string) (types.PatientRecord, error) {
	start := time.Now()
	log := o.opts.Logger.With().Str("path", path).Logger()

	rec, perr := o.processFile(ctx, path, log)
	if perr != nil {
		log.Error().Err(perr.Cause).Str("error_code", string(perr.Code)).Str("stage", perr.Stage).
			Fields(perr.Details).Msg(perr.Message)
		return types.PatientRecord{}, perr
	}

	log.Info().Str("patient_id", rec.PatientID).Dur("duration", time.Since(start)).Msg("image processed")
	return rec, nil
}

func (o *Orchestrator) processFile(ctx context.Context, path string, log zerolog.Logger) (types.PatientRecord, *xerrors.ProcessingError) {
	img, err := o.loader.LoadImage(path)
	if err == nil {
		err = o.loader.ValidateImage(img)
	}
	if err != nil {
		return types.PatientRecord{}, xerrors.NewImageLoadError(path, err)
	}
	log.Debug().Int("width", img.Bounds().Dx()).Int("height", img.Bounds().Dy()).Msg("loaded")

	res, err := o.opts.Processor.Clean(img)
	if err != nil {
		if errors.Is(err, cropper.ErrNoForeground) {
			return types.PatientRecord{}, xerrors.NewRegionExtractionError(path, err)
		}
		return types.PatientRecord{}, xerrors.NewTextRemovalError(path, err)
	}
	log.Debug().Interface("box", res.Box).Msg("cropped")

	if o.opts.Debug {
		o.writeDebug(path, img, res, log)
	}

	ident, err := o.opts.Identifier.Identify(ctx, res.Variants)
	if err != nil {
		variant := "unknown"
		var ve *VariantError
		if errors.As(err, &ve) {
			variant = ve.Variant
		}
		return types.PatientRecord{}, xerrors.NewOCRFailedError(path, variant, err)
	}
	log.Debug().Interface("reads", ident.Reads).Interface("voted", ident.Fields).Msg("identified")

	dst, err := o.opts.Images.Write(path, res.Cropped)
	if err != nil {
		return types.PatientRecord{}, xerrors.NewOutputError(path, "image", err)
	}

	return types.PatientRecord{
		PatientID:    ident.PatientID,
		XrayDateTime: ident.Fields.DateTime,
		Gender:       ident.Fields.Gender,
		Path:         dst,
	}, nil
}

func (o *Orchestrator) writeDebug(path string, img image.Image, res *Result, log zerolog.Logger) {
	artefacts := []struct {
		name string
		img  image.Image
	}{
		{"structural", res.Masks.Structural},
		{"tight", res.Masks.TightText},
		{"dilated", res.Masks.DilatedText},
		{"text_only", res.TextOnly},
		{"detexted", res.Detexted},
		{"overlay", o.loader.CreateDebugOverlay(img, res.Masks.Structural, res.Box)},
	}
	for _, a := range artefacts {
		dst, err := o.opts.Images.WriteDebug(path, a.name, a.img)
		if err != nil {
			log.Warn().Err(err).Str("artefact", a.name).Msg("debug output skipped")
			continue
		}
		log.Debug().Str("artefact", dst).Msg("debug output written")
	}
}
