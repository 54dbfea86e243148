package imaging

// Erode shrinks ink regions: a pixel survives only if every neighbor within
// the square radius is also ink.
func Erode(b *Bitmap, radius int) *Bitmap {
	if radius <= 0 {
		return b
	}
	out := NewBitmap(b.W, b.H)
	for y := 0; y < b.H; y++ {
		for x := 0; x < b.W; x++ {
			if !b.Get(x, y) {
				continue
			}
			keep := true
		scan:
			for dy := -radius; dy <= radius; dy++ {
				for dx := -radius; dx <= radius; dx++ {
					if !b.Get(x+dx, y+dy) {
						keep = false
						break scan
					}
				}
			}
			out.Bits[y*b.W+x] = keep
		}
	}
	return out
}

// Dilate grows ink regions: a pixel is set if any neighbor within the square
// radius is ink.
func Dilate(b *Bitmap, radius int) *Bitmap {
	if radius <= 0 {
		return b
	}
	out := NewBitmap(b.W, b.H)
	for y := 0; y < b.H; y++ {
		for x := 0; x < b.W; x++ {
			if b.Get(x, y) {
				out.Bits[y*b.W+x] = true
				continue
			}
			found := false
		scan:
			for dy := -radius; dy <= radius; dy++ {
				for dx := -radius; dx <= radius; dx++ {
					if b.Get(x+dx, y+dy) {
						found = true
						break scan
					}
				}
			}
			out.Bits[y*b.W+x] = found
		}
	}
	return out
}

// Open removes speckle smaller than the structuring element (erode then
// dilate).
func Open(b *Bitmap, radius int) *Bitmap {
	return Dilate(Erode(b, radius), radius)
}

// Close fills pinholes smaller than the structuring element (dilate then
// erode).
func Close(b *Bitmap, radius int) *Bitmap {
	return Erode(Dilate(b, radius), radius)
}
