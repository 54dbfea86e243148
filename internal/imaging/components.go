package imaging

// Component is one 8-connected region of ink pixels.
type Component struct {
	Label int
	Area  int
	// Bounding box, inclusive.
	MinX, MinY, MaxX, MaxY int
}

// LabelComponents labels 8-connected ink components with a scanline flood
// fill. Labels start at 1; the returned label map is row-major, 0 meaning
// background.
func LabelComponents(b *Bitmap) ([]int32, []Component) {
	labels := make([]int32, b.W*b.H)
	var comps []Component
	next := int32(1)

	// Explicit stack keeps worst-case input from exhausting goroutine stacks.
	stack := make([][2]int, 0, 256)

	for sy := 0; sy < b.H; sy++ {
		for sx := 0; sx < b.W; sx++ {
			if !b.Bits[sy*b.W+sx] || labels[sy*b.W+sx] != 0 {
				continue
			}
			comp := Component{Label: int(next), MinX: sx, MinY: sy, MaxX: sx, MaxY: sy}
			stack = append(stack[:0], [2]int{sx, sy})
			labels[sy*b.W+sx] = next
			for len(stack) > 0 {
				p := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				x, y := p[0], p[1]
				comp.Area++
				comp.MinX = min(comp.MinX, x)
				comp.MinY = min(comp.MinY, y)
				comp.MaxX = max(comp.MaxX, x)
				comp.MaxY = max(comp.MaxY, y)
				for dy := -1; dy <= 1; dy++ {
					for dx := -1; dx <= 1; dx++ {
						if dx == 0 && dy == 0 {
							continue
						}
						nx, ny := x+dx, y+dy
						if nx < 0 || nx >= b.W || ny < 0 || ny >= b.H {
							continue
						}
						i := ny*b.W + nx
						if b.Bits[i] && labels[i] == 0 {
							labels[i] = next
							stack = append(stack, [2]int{nx, ny})
						}
					}
				}
			}
			comps = append(comps, comp)
			next++
		}
	}
	return labels, comps
}

// FilterComponents clears ink pixels belonging to components smaller than
// minArea. Returns the surviving components.
func FilterComponents(b *Bitmap, minArea int) []Component {
	labels, comps := LabelComponents(b)
	if minArea <= 1 {
		return comps
	}
	drop := make(map[int32]bool)
	kept := comps[:0]
	for _, c := range comps {
		if c.Area < minArea {
			drop[int32(c.Label)] = true
		} else {
			kept = append(kept, c)
		}
	}
	if len(drop) > 0 {
		for i, l := range labels {
			if l != 0 && drop[l] {
				b.Bits[i] = false
			}
		}
	}
	return kept
}
