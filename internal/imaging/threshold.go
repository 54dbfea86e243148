package imaging

// OtsuThreshold computes the global threshold maximizing between-class
// variance over the luminance histogram. Returns a cut in [0,1].
func OtsuThreshold(gray []float32) float64 {
	var hist [256]int
	for _, v := range gray {
		b := int(v * 255)
		if b < 0 {
			b = 0
		} else if b > 255 {
			b = 255
		}
		hist[b]++
	}
	total := len(gray)
	if total == 0 {
		return 0.5
	}

	var sumAll float64
	for i, n := range hist {
		sumAll += float64(i) * float64(n)
	}

	var sumB, wB float64
	bestVar := -1.0
	best := 127
	for t := 0; t < 256; t++ {
		wB += float64(hist[t])
		if wB == 0 {
			continue
		}
		wF := float64(total) - wB
		if wF == 0 {
			break
		}
		sumB += float64(t) * float64(hist[t])
		mB := sumB / wB
		mF := (sumAll - sumB) / wF
		between := wB * wF * (mB - mF) * (mB - mF)
		if between > bestVar {
			bestVar = between
			best = t
		}
	}
	return float64(best) / 255
}

// ThresholdGlobal binarizes with a single cut: pixels darker than the cut
// become ink.
func ThresholdGlobal(gray []float32, w, h int, cut float64) *Bitmap {
	out := NewBitmap(w, h)
	for i, v := range gray {
		out.Bits[i] = float64(v) < cut
	}
	return out
}

// ThresholdAdaptive binarizes against the local window mean minus an offset.
// Window is the square window edge (odd); offset is subtracted from the mean
// before comparison, suppressing noise in flat areas. Uses a summed-area
// table so cost is independent of window size.
func ThresholdAdaptive(gray []float32, w, h, window int, offset float64) *Bitmap {
	if window < 3 {
		window = 15
	}
	if window%2 == 0 {
		window++
	}
	radius := window / 2

	// Summed-area table with one pad row/column.
	sat := make([]float64, (w+1)*(h+1))
	for y := 0; y < h; y++ {
		var rowSum float64
		for x := 0; x < w; x++ {
			rowSum += float64(gray[y*w+x])
			sat[(y+1)*(w+1)+(x+1)] = sat[y*(w+1)+(x+1)] + rowSum
		}
	}

	out := NewBitmap(w, h)
	for y := 0; y < h; y++ {
		y0 := clampInt(y-radius, 0, h-1)
		y1 := clampInt(y+radius, 0, h-1)
		for x := 0; x < w; x++ {
			x0 := clampInt(x-radius, 0, w-1)
			x1 := clampInt(x+radius, 0, w-1)
			area := float64((y1 - y0 + 1) * (x1 - x0 + 1))
			sum := sat[(y1+1)*(w+1)+(x1+1)] - sat[y0*(w+1)+(x1+1)] -
				sat[(y1+1)*(w+1)+x0] + sat[y0*(w+1)+x0]
			mean := sum / area
			out.Bits[y*w+x] = float64(gray[y*w+x]) < mean-offset
		}
	}
	return out
}
