// Command matchtest template-matches a small image against a screenshot and
// prints the placements found.
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"screenpilot/internal/image"
	"screenpilot/internal/imgproc"
	"screenpilot/internal/imgproc/cvproc"
)

func main() {
	screenPath := flag.String("image", "", "Path to screenshot (PNG, JPEG, TIFF, BMP or WebP)")
	templatePath := flag.String("template", "", "Path to template image")
	threshold := flag.Float64("threshold", imgproc.MatchThreshold, "Minimum NCC score")
	useCV := flag.Bool("opencv", false, "Use the OpenCV matcher instead of the exhaustive search")
	limit := flag.Int("limit", 20, "Maximum matches to print")
	flag.Parse()

	if *screenPath == "" || *templatePath == "" {
		fmt.Println("Usage: matchtest -image <path> -template <path> [-threshold 0.8] [-opencv]")
		os.Exit(1)
	}

	img, err := image.Load(*screenPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load image: %v\n", err)
		os.Exit(1)
	}
	tmpl, err := image.Load(*templatePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load template: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Image: %dx%d (%d channels)\n", img.Width, img.Height, img.Channels)
	fmt.Printf("Template: %dx%d (%d channels)\n", tmpl.Width, tmpl.Height, tmpl.Channels)

	method := "exhaustive"
	if *useCV {
		method = "opencv"
	}
	fmt.Printf("\nMatching (%s, threshold %.2f)...\n", method, *threshold)

	start := time.Now()
	var matches []imgproc.Match
	if *useCV {
		matches, err = cvproc.MatchTemplate(img, tmpl, *threshold)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Matching failed: %v\n", err)
			os.Exit(1)
		}
	} else {
		matches = imgproc.MatchTemplateThreshold(img, tmpl, *threshold)
	}
	elapsed := time.Since(start)

	fmt.Printf("\nFound %d placements in %s:\n", len(matches), elapsed.Round(time.Millisecond))
	fmt.Printf("%8s %8s %10s\n", "X", "Y", "Score")
	fmt.Println(strings.Repeat("-", 28))
	for i, m := range matches {
		if i >= *limit {
			fmt.Printf("... %d more\n", len(matches)-*limit)
			break
		}
		fmt.Printf("%8d %8d %10.4f\n", m.Offset.X, m.Offset.Y, m.Score)
	}

	if best, ok := imgproc.Best(matches); ok {
		fmt.Printf("\nBest: (%d,%d) score %.4f\n", best.Offset.X, best.Offset.Y, best.Score)
	}
}
