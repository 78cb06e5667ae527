package removal

import (
	"image"
)

// Diffuse fills the non-zero pixels of m in img in place and returns img.
//
// The hole is filled from its border inward one ring at a time, each pixel
// taking the inverse-square-distance weighted mean of the known pixels within
// radius. A few relaxation sweeps then smooth the filled pixels towards the
// harmonic solution while the known pixels stay fixed.
func Diffuse(img *image.NRGBA, m *image.Gray, radius int) *image.NRGBA {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w == 0 || h == 0 {
		return img
	}

	known := make([]bool, w*h)
	var hole []int
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if m.Pix[y*m.Stride+x] == 0 {
				known[y*w+x] = true
			} else {
				hole = append(hole, y*w+x)
			}
		}
	}
	if len(hole) == 0 || len(hole) == w*h {
		return img
	}

	queued := make([]bool, w*h)
	var front []int
	for _, idx := range hole {
		if hasKnownNeighbour(known, idx, w, h) {
			front = append(front, idx)
			queued[idx] = true
		}
	}

	pix := func(idx int) int {
		return (idx/w)*img.Stride + (idx%w)*4
	}

	for len(front) > 0 {
		vals := make([][3]float64, len(front))
		for k, idx := range front {
			x, y := idx%w, idx/w
			var sum [3]float64
			var wsum float64
			for dy := -radius; dy <= radius; dy++ {
				for dx := -radius; dx <= radius; dx++ {
					nx, ny := x+dx, y+dy
					if (dx == 0 && dy == 0) || nx < 0 || ny < 0 || nx >= w || ny >= h {
						continue
					}
					if !known[ny*w+nx] {
						continue
					}
					wt := 1.0 / float64(dx*dx+dy*dy)
					p := pix(ny*w + nx)
					sum[0] += wt * float64(img.Pix[p])
					sum[1] += wt * float64(img.Pix[p+1])
					sum[2] += wt * float64(img.Pix[p+2])
					wsum += wt
				}
			}
			if wsum > 0 {
				vals[k] = [3]float64{sum[0] / wsum, sum[1] / wsum, sum[2] / wsum}
			}
		}

		for k, idx := range front {
			p := pix(idx)
			img.Pix[p] = clamp8(vals[k][0])
			img.Pix[p+1] = clamp8(vals[k][1])
			img.Pix[p+2] = clamp8(vals[k][2])
			known[idx] = true
		}

		var next []int
		for _, idx := range front {
			x, y := idx%w, idx/w
			for dy := -1; dy <= 1; dy++ {
				for dx := -1; dx <= 1; dx++ {
					nx, ny := x+dx, y+dy
					if nx < 0 || ny < 0 || nx >= w || ny >= h {
						continue
					}
					n := ny*w + nx
					if !known[n] && !queued[n] {
						queued[n] = true
						next = append(next, n)
					}
				}
			}
		}
		front = next
	}

	for sweep := 0; sweep < 2*radius; sweep++ {
		for _, idx := range hole {
			x, y := idx%w, idx/w
			var sum [3]float64
			n := 0
			for _, d := range [4][2]int{{-1, 0}, {1, 0}, {0, -1}, {0, 1}} {
				nx, ny := x+d[0], y+d[1]
				if nx < 0 || ny < 0 || nx >= w || ny >= h {
					continue
				}
				p := pix(ny*w + nx)
				sum[0] += float64(img.Pix[p])
				sum[1] += float64(img.Pix[p+1])
				sum[2] += float64(img.Pix[p+2])
				n++
			}
			if n == 0 {
				continue
			}
			p := pix(idx)
			img.Pix[p] = clamp8(sum[0] / float64(n))
			img.Pix[p+1] = clamp8(sum[1] / float64(n))
			img.Pix[p+2] = clamp8(sum[2] / float64(n))
		}
	}

	return img
}

func hasKnownNeighbour(known []bool, idx, w, h int) bool {
	x, y := idx%w, idx/w
	for dy := -1; dy <= 1; dy++ {
		for dx := -1; dx <= 1; dx++ {
			nx, ny := x+dx, y+dy
			if (dx == 0 && dy == 0) || nx < 0 || ny < 0 || nx >= w || ny >= h {
				continue
			}
			if known[ny*w+nx] {
				return true
			}
		}
	}
	return false
}

func clamp8(v float64) uint8 {
	if v <= 0 {
		return 0
	}
	if v >= 255 {
		return 255
	}
	return uint8(v + 0.5)
}
