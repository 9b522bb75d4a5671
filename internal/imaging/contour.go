package imaging

import (
	"image"
	"math"
)

// Contour is the traced outer boundary of one connected group of edge pixels.
type Contour struct {
	// Points is the boundary in traversal order (clockwise on screen),
	// with straight horizontal, vertical and diagonal runs reduced to their
	// end points.
	Points []image.Point

	// Area is the absolute polygon area enclosed by Points.
	Area float64

	// Bounds is the bounding box of the component (Max exclusive).
	Bounds image.Rectangle
}

// neighbours lists the 8-neighbourhood clockwise on screen, starting west.
var neighbours = [8]image.Point{
	{-1, 0}, {-1, -1}, {0, -1}, {1, -1},
	{1, 0}, {1, 1}, {0, 1}, {-1, 1},
}

// FindExternalContours extracts the external contours of an edge map.
//
// # Algorithm
//
//  1. Components: flood-fill groups 8-connected edge pixels
//  2. Boundary: Moore-neighbour tracing walks the outer border of each
//     component starting from its top-left pixel
//  3. Compression: interior points of straight runs are dropped
//  4. Nesting: contours lying inside another contour's polygon are
//     discarded, leaving only the outermost ones
//
// Contours are returned in raster order of their starting pixel.
func FindExternalContours(edges *EdgeMap) []Contour {
	width, height := edges.Width, edges.Height
	labels := make([]int, width*height)

	contours := make([]Contour, 0)
	label := 0
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			i := y*width + x
			if !edges.Pix[i] || labels[i] != 0 {
				continue
			}
			label++
			bounds, size := floodFill(edges, labels, x, y, label)
			points := traceBoundary(labels, width, height, image.Pt(x, y), label, size)
			points = compressChain(points)
			contours = append(contours, Contour{
				Points: points,
				Area:   polygonArea(points),
				Bounds: bounds,
			})
		}
	}

	return dropNested(contours)
}

// LargestContour returns the index of the first contour with maximal area,
// or -1 if there are none.
func LargestContour(contours []Contour) int {
	best := -1
	for i, c := range contours {
		if best < 0 || c.Area > contours[best].Area {
			best = i
		}
	}
	return best
}

// floodFill labels the component containing (startX, startY).
//
// Uses a stack-based approach (not recursive) to avoid stack overflow
// on large components. Returns the component's bounds and pixel count.
func floodFill(edges *EdgeMap, labels []int, startX, startY, label int) (image.Rectangle, int) {
	width := edges.Width
	bounds := image.Rect(startX, startY, startX+1, startY+1)
	size := 0

	stack := []image.Point{{X: startX, Y: startY}}
	for len(stack) > 0 {
		p := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if !edges.At(p.X, p.Y) {
			continue
		}
		i := p.Y*width + p.X
		if labels[i] != 0 {
			continue
		}

		labels[i] = label
		size++
		bounds = bounds.Union(image.Rect(p.X, p.Y, p.X+1, p.Y+1))

		for _, d := range neighbours {
			stack = append(stack, p.Add(d))
		}
	}

	return bounds, size
}

// traceBoundary walks the outer border of a labelled component.
//
// start must be the component's first pixel in raster order, so its west,
// north-west, north and north-east neighbours are background. Tracing stops
// when the walk returns to start and is about to repeat its first move.
func traceBoundary(labels []int, width, height int, start image.Point, label, size int) []image.Point {
	inside := func(p image.Point) bool {
		return p.X >= 0 && p.Y >= 0 && p.X < width && p.Y < height && labels[p.Y*width+p.X] == label
	}

	points := []image.Point{start}
	cur, back := start, 0
	var second image.Point
	haveSecond := false

	// Each border pixel is entered at most four times.
	limit := 4*size + 8
	for step := 0; step < limit; step++ {
		next, nextBack, ok := mooreStep(cur, back, inside)
		if !ok {
			break
		}
		if cur == start && haveSecond && next == second {
			break
		}
		if !haveSecond {
			second, haveSecond = next, true
		}
		points = append(points, next)
		cur, back = next, nextBack
	}

	if len(points) > 1 && points[len(points)-1] == start {
		points = points[:len(points)-1]
	}
	return points
}

// mooreStep finds the next border pixel clockwise from the backtrack
// direction. It returns the new pixel and the direction, seen from it, of the
// last background pixel examined.
func mooreStep(cur image.Point, back int, inside func(image.Point) bool) (image.Point, int, bool) {
	for k := 1; k <= 8; k++ {
		n := cur.Add(neighbours[(back+k)%8])
		if inside(n) {
			prev := cur.Add(neighbours[(back+k-1)%8])
			return n, direction(prev.Sub(n)), true
		}
	}
	return cur, back, false
}

// direction returns the neighbours index of a unit offset.
func direction(d image.Point) int {
	for i, n := range neighbours {
		if n == d {
			return i
		}
	}
	return 0
}

// compressChain keeps only the points where the walking direction changes.
func compressChain(points []image.Point) []image.Point {
	n := len(points)
	if n < 3 {
		return points
	}

	out := make([]image.Point, 0, n)
	for i, p := range points {
		prev := points[(i-1+n)%n]
		next := points[(i+1)%n]
		if p.Sub(prev) != next.Sub(p) {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return points[:1]
	}
	return out
}

// polygonArea computes the absolute area with the shoelace formula.
func polygonArea(points []image.Point) float64 {
	if len(points) < 3 {
		return 0
	}
	var sum float64
	for i, p := range points {
		q := points[(i+1)%len(points)]
		sum += float64(p.X*q.Y - q.X*p.Y)
	}
	return math.Abs(sum) / 2
}

// dropNested removes contours whose first point lies inside another
// contour's polygon.
func dropNested(contours []Contour) []Contour {
	if len(contours) < 2 {
		return contours
	}

	out := make([]Contour, 0, len(contours))
	for i, c := range contours {
		nested := false
		for j, outer := range contours {
			if i == j || outer.Area == 0 || !c.Bounds.In(outer.Bounds) {
				continue
			}
			if pointInPolygon(c.Points[0], outer.Points) {
				nested = true
				break
			}
		}
		if !nested {
			out = append(out, c)
		}
	}
	return out
}

// pointInPolygon uses ray casting; points on the boundary count as outside
// for components that do not touch (which external contours never do).
func pointInPolygon(p image.Point, poly []image.Point) bool {
	inside := false
	px, py := float64(p.X), float64(p.Y)
	for i, j := 0, len(poly)-1; i < len(poly); j, i = i, i+1 {
		xi, yi := float64(poly[i].X), float64(poly[i].Y)
		xj, yj := float64(poly[j].X), float64(poly[j].Y)
		if (yi > py) != (yj > py) && px < (xj-xi)*(py-yi)/(yj-yi)+xi {
			inside = !inside
		}
	}
	return inside
}
