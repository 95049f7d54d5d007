// Package main provides the entry point for screenpilot.
package main

import (
	"context"
	"errors"
	"io"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"screenpilot/internal/cli"
	"screenpilot/internal/detector"
	"screenpilot/internal/ocr"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err := cli.Execute(ctx, os.Args[1:], cli.WithLabelerFactory(openOCR))
	if err != nil && !errors.Is(err, context.Canceled) {
		os.Exit(1)
	}
}

// openOCR opens the Tesseract labeler.
func openOCR(language string, logger *zap.Logger) (detector.Labeler, io.Closer, error) {
	eng, err := ocr.NewEngine(ocr.WithLanguage(language), ocr.WithLogger(logger))
	if err != nil {
		return nil, nil, err
	}
	return eng, eng, nil
}
