package detector

import (
	"strconv"

	"screenpilot/internal/image"
	"screenpilot/internal/imgproc"
	"screenpilot/pkg/colorutil"
	"screenpilot/pkg/geometry"
)

// edgeDensityLevel is the Sobel magnitude that counts as an edge when
// measuring a region's edge density. It is independent of
// Params.EdgeThreshold, which only drives segmentation.
const edgeDensityLevel = 50

// features are the region measurements the heuristic looks at.
type features struct {
	area        float64
	aspect      float64
	brightness  float64
	edgeDensity float64
}

// classify applies the shape rules in priority order; the first rule that
// matches wins.
func classify(f features) (ElementKind, float64) {
	switch {
	case f.area > 500 && f.area < 50000 && f.edgeDensity > 0.3 && f.aspect > 0.2 && f.aspect < 5:
		return KindButton, 0.8
	case f.aspect > 2 && f.edgeDensity > 0.2 && f.edgeDensity < 0.6 && f.brightness > 200:
		return KindTextBox, 0.7
	case f.area > 100000 && f.edgeDensity > 0.1 && f.edgeDensity < 0.4:
		return KindWindow, 0.6
	case f.area < 2000 && f.aspect > 0.5 && f.aspect < 2 && f.edgeDensity > 0.4:
		return KindIcon, 0.7
	case f.aspect > 3 && f.edgeDensity < 0.3:
		return KindLabel, 0.6
	case (f.aspect > 1.5 || f.edgeDensity > 0.5) && f.area > 1000 && f.area < 100000:
		return KindMenu, 0.5
	default:
		return KindUnknown, 0.3
	}
}

// measure computes the features and the property map for one region. src is
// the original frame and edges its full-frame Sobel map.
func measure(src, edges *image.PixelBuffer, bounds geometry.Rect) (features, map[string]string) {
	region := src.Crop(bounds)
	f := features{
		area:        bounds.Area(),
		aspect:      bounds.AspectRatio(),
		brightness:  imgproc.MeanIntensity(region),
		edgeDensity: imgproc.EdgeDensity(edges.Crop(bounds), edgeDensityLevel),
	}

	props := map[string]string{
		PropBrightness:  strconv.FormatFloat(f.brightness, 'f', 2, 64),
		PropEdgeDensity: strconv.FormatFloat(f.edgeDensity, 'f', 4, 64),
		PropAspectRatio: strconv.FormatFloat(f.aspect, 'f', 4, 64),
		PropArea:        strconv.FormatFloat(f.area, 'f', 0, 64),
		PropTone:        string(colorutil.ToneOf(f.brightness)),
	}
	if region.Channels >= 3 {
		r, g, b := meanRGB(region)
		h, s, _ := colorutil.RGBToHSV(r, g, b)
		props[PropHue] = strconv.FormatFloat(h, 'f', 1, 64)
		props[PropSaturation] = strconv.FormatFloat(s, 'f', 1, 64)
	}
	return f, props
}

func meanRGB(buf *image.PixelBuffer) (r, g, b float64) {
	n := buf.Width * buf.Height
	if n == 0 {
		return 0, 0, 0
	}
	var sr, sg, sb uint64
	for i := 0; i < len(buf.Pix); i += buf.Channels {
		sr += uint64(buf.Pix[i])
		sg += uint64(buf.Pix[i+1])
		sb += uint64(buf.Pix[i+2])
	}
	fn := float64(n)
	return float64(sr) / fn, float64(sg) / fn, float64(sb) / fn
}
