//go:build !gocv

package cropper

import (
	"image"
	"math"

	"github.com/menta2k/xray-deid/pkg/types"
)

// Moore neighbourhood, clockwise from east with y pointing down
var neighbours = [8]image.Point{
	{1, 0}, {1, 1}, {0, 1}, {-1, 1}, {-1, 0}, {-1, -1}, {0, -1}, {1, -1},
}

// LargestRegion returns the bounding box and enclosed area of the 8-connected
// foreground region of fg whose outer boundary encloses the most area, plus
// the number of regions. On equal areas the region found first in raster
// order wins.
func LargestRegion(fg *image.Gray) (types.BoundingBox, float64, int, error) {
	b := fg.Bounds()
	w, h := b.Dx(), b.Dy()
	lit := func(x, y int) bool {
		return x >= 0 && y >= 0 && x < w && y < h && fg.Pix[y*fg.Stride+x] != 0
	}

	seen := make([]bool, w*h)
	stack := make([]int, 0, 64)

	var best types.BoundingBox
	bestArea, regions := -1.0, 0

	for start := 0; start < w*h; start++ {
		if seen[start] || !lit(start%w, start/w) {
			continue
		}
		regions++
		box := types.BoundingBox{XMin: w, YMin: h}

		seen[start] = true
		stack = append(stack[:0], start)
		for len(stack) > 0 {
			idx := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			x, y := idx%w, idx/w
			box.XMin = min(box.XMin, x)
			box.YMin = min(box.YMin, y)
			box.XMax = max(box.XMax, x+1)
			box.YMax = max(box.YMax, y+1)

			for _, d := range neighbours {
				nx, ny := x+d.X, y+d.Y
				if !lit(nx, ny) || seen[ny*w+nx] {
					continue
				}
				seen[ny*w+nx] = true
				stack = append(stack, ny*w+nx)
			}
		}

		area := polygonArea(traceBoundary(image.Pt(start%w, start/w), lit, 8*(w+h)+4*w*h))
		if area > bestArea {
			best, bestArea = box, area
		}
	}

	if regions == 0 {
		return types.BoundingBox{}, 0, 0, ErrNoForeground
	}
	return best, bestArea, regions, nil
}

// traceBoundary follows the outer boundary of the region containing s with
// Moore neighbour tracing. s must be the region's first pixel in raster
// order, so its west neighbour is background. Tracing stops when the walk
// leaves s towards the same pixel it left s for the first time.
func traceBoundary(s image.Point, lit func(x, y int) bool, limit int) []image.Point {
	pts := []image.Point{s}
	p, back := s, 4

	for step := 0; step < limit; step++ {
		d := -1
		for i := 1; i <= 8; i++ {
			c := (back + i) % 8
			if q := p.Add(neighbours[c]); lit(q.X, q.Y) {
				d = c
				break
			}
		}
		if d < 0 {
			break
		}

		next := p.Add(neighbours[d])
		if p == s && len(pts) > 1 && next == pts[1] {
			break
		}
		// the last background pixel examined, seen from next
		back = direction(p.Add(neighbours[(d+7)%8]).Sub(next))
		pts = append(pts, next)
		p = next
	}
	return pts
}

func direction(v image.Point) int {
	for i, n := range neighbours {
		if n == v {
			return i
		}
	}
	return 0
}

// polygonArea is the shoelace area of the closed polygon through pts
func polygonArea(pts []image.Point) float64 {
	sum := 0
	for i, p := range pts {
		q := pts[(i+1)%len(pts)]
		sum += p.X*q.Y - q.X*p.Y
	}
	return math.Abs(float64(sum)) / 2
}
