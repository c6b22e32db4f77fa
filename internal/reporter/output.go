package reporter

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"statement-ledger/pkg/errors"
	"statement-ledger/pkg/logger"
)

// SafeReportGenerator wraps ReportGenerator with file handling and error categorization
type SafeReportGenerator struct {
	*ReportGenerator
	logger logger.Logger
}

// NewSafeReportGenerator creates a new safe report generator with error handling
func NewSafeReportGenerator(config *ReportConfig, log logger.Logger) (*SafeReportGenerator, error) {
	if log == nil {
		log = logger.GetGlobalLogger()
	}

	generator, err := NewReportGenerator(config)
	if err != nil {
		return nil, errors.ConfigurationError(
			errors.CodeInvalidConfig,
			"report_config",
			config,
			err,
		).WithSuggestion("Check the --format value")
	}

	return &SafeReportGenerator{
		ReportGenerator: generator,
		logger:          log.WithComponent("reporter"),
	}, nil
}

// WriteFile writes the document to path, creating parent directories. The
// file is written next to its destination and renamed into place so a failed
// run never leaves a truncated document behind.
func (srg *SafeReportGenerator) WriteFile(doc *Document, path string) error {
	srg.logger.WithFields(logger.Fields{
		"format": srg.config.Format,
		"output": path,
	}).Info("Writing statement document")

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.FileError(errors.CodeDirectoryError, dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return srg.fileError(path, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if err := srg.GenerateReport(doc, tmp); err != nil {
		tmp.Close()
		return srg.wrapGenerationError(err)
	}
	if err := tmp.Close(); err != nil {
		return srg.fileError(path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return srg.fileError(path, err)
	}

	srg.logger.WithField("output", path).Debug("Statement document written")
	return nil
}

// WriteTo writes the document to an arbitrary writer
func (srg *SafeReportGenerator) WriteTo(doc *Document, writer io.Writer) error {
	if writer == nil {
		return errors.InternalError(errors.CodeUnexpectedError, "report_output", fmt.Errorf("writer is nil"))
	}
	if err := srg.GenerateReport(doc, writer); err != nil {
		srg.logger.WithError(err).Error("Report generation failed")
		return srg.wrapGenerationError(err)
	}
	return nil
}

func (srg *SafeReportGenerator) fileError(path string, err error) error {
	srg.logger.WithError(err).WithField("output", path).Error("Cannot write statement document")
	if os.IsPermission(err) {
		return errors.FileError(errors.CodeFilePermission, path, err)
	}
	return errors.FileError(errors.CodeDirectoryError, path, err)
}

// wrapGenerationError wraps generation errors with context
func (srg *SafeReportGenerator) wrapGenerationError(err error) error {
	if ledgerErr, ok := errors.AsLedgerError(err); ok {
		return ledgerErr
	}

	return errors.InternalError(
		errors.CodeUnexpectedError,
		"report_generation",
		err,
	).WithSuggestion("Check the output destination and report format settings")
}
