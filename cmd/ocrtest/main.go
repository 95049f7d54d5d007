// Command ocrtest runs the OCR labeler over a screenshot, or one region of
// it, and prints the words Tesseract found and the resulting label.
//
// Usage: ocrtest -image <path> [-region x,y,w,h] [-lang eng]
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"screenpilot/internal/image"
	"screenpilot/internal/ocr"
	"screenpilot/pkg/geometry"
)

func parseRegion(s string) (geometry.Rect, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return geometry.Rect{}, fmt.Errorf("region must be x,y,w,h, got %q", s)
	}
	var v [4]float64
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return geometry.Rect{}, fmt.Errorf("region: %w", err)
		}
		v[i] = f
	}
	return geometry.NewRect(v[0], v[1], v[2], v[3]), nil
}

func main() {
	imagePath := flag.String("image", "", "Path to screenshot")
	region := flag.String("region", "", "Region to read as x,y,w,h (default whole image)")
	lang := flag.String("lang", "eng", "Tesseract language")
	minConf := flag.Float64("min-confidence", 0.4, "Mean word confidence (0-1) needed to assign a kind")
	flag.Parse()

	if *imagePath == "" {
		fmt.Println("Usage: ocrtest -image <path> [-region x,y,w,h] [-lang eng]")
		os.Exit(1)
	}

	buf, err := image.Load(*imagePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load image: %v\n", err)
		os.Exit(1)
	}

	bounds := buf.Bounds()
	if *region != "" {
		bounds, err = parseRegion(*region)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		buf = buf.Crop(bounds)
		if buf.Empty() {
			fmt.Fprintln(os.Stderr, "Region lies outside the image")
			os.Exit(1)
		}
	}
	fmt.Printf("Region: (%.0f,%.0f) %.0fx%.0f\n", bounds.X, bounds.Y, bounds.Width, bounds.Height)

	eng, err := ocr.NewEngine(ocr.WithLanguage(*lang), ocr.WithMinConfidence(*minConf))
	if err != nil {
		fmt.Fprintf(os.Stderr, "OCR unavailable: %v\n", err)
		os.Exit(1)
	}
	defer eng.Close()

	words, err := eng.Words(buf)
	if err != nil {
		fmt.Fprintf(os.Stderr, "OCR failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("\n%-24s %6s %6s %6s %6s %6s\n", "Word", "X", "Y", "W", "H", "Conf")
	fmt.Println(strings.Repeat("-", 60))
	for _, w := range words {
		fmt.Printf("%-24s %6d %6d %6d %6d %6.1f\n",
			w.Text, w.Bounds.X, w.Bounds.Y, w.Bounds.Width, w.Bounds.Height, w.Confidence)
	}

	label, err := eng.Label(context.Background(), buf, bounds)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Labeling failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("\nLabel: %s (confidence %.2f)\n", label.Kind, label.Confidence)
	if label.Text != "" {
		fmt.Printf("Text:\n%s\n", label.Text)
	}
}
