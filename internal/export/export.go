package export

import (
	"context"
	"log/slog"
)

// Report lists where a bundle was written.
type Report struct {
	Path     string
	Location string // s3:// location, empty when uploads are disabled
}

// Exporter writes bundles to a local path and, when an uploader is set, to S3.
type Exporter struct {
	outputPath string
	uploader   *S3Uploader
	logger     *slog.Logger
}

// NewExporter creates an Exporter. uploader may be nil.
func NewExporter(outputPath string, uploader *S3Uploader, logger *slog.Logger) *Exporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Exporter{outputPath: outputPath, uploader: uploader, logger: logger}
}

// Export writes the bundle. The local file is written first; an upload failure
// is returned with the local path already filled in.
func (e *Exporter) Export(ctx context.Context, b *Bundle) (Report, error) {
	report := Report{}

	if e.outputPath != "" {
		if err := b.WriteFile(e.outputPath); err != nil {
			return report, err
		}
		report.Path = e.outputPath
		e.logger.Info("bundle written", "path", e.outputPath, "detections", b.Stats.Detections)
	}

	if e.uploader != nil {
		loc, err := e.uploader.Upload(ctx, b)
		if err != nil {
			return report, err
		}
		report.Location = loc
		e.logger.Info("bundle uploaded", "location", loc)
	}

	return report, nil
}
