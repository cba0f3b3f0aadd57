// Package track holds the static race geometry: the path AI cars follow,
// the ground surface vehicles are probed against, the finish gate and
// fixed obstacles. Everything here is built before a race and read-only
// while it runs.
package track

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/go-gl/mathgl/mgl64"
)

var (
	// ErrTooFewPoints is returned when a path has fewer than two distinct points.
	ErrTooFewPoints = errors.New("track: path needs at least two distinct points")
	// ErrUpCount is returned when per-point up vectors don't match the control points.
	ErrUpCount = errors.New("track: up vector count does not match control points")
)

// WorldUp is the fixed up reference.
var WorldUp = mgl64.Vec3{0, 1, 0}

// PathOptions tunes how control points are turned into a vertex path.
type PathOptions struct {
	// SamplesPerSegment > 1 enables Catmull-Rom smoothing between control points.
	SamplesPerSegment int
	// Ups optionally carries one up vector per control point.
	Ups []mgl64.Vec3
}

// Path is an immutable polyline parameterized by travelled distance.
type Path struct {
	points []mgl64.Vec3
	ups    []mgl64.Vec3
	cum    []float64
	length float64
	closed bool
}

// NewPath builds a path through the control points. For closed paths the
// last point connects back to the first.
func NewPath(control []mgl64.Vec3, closed bool, opts PathOptions) (*Path, error) {
	if len(opts.Ups) > 0 && len(opts.Ups) != len(control) {
		return nil, fmt.Errorf("%w: %d ups for %d points", ErrUpCount, len(opts.Ups), len(control))
	}

	pts, ups := dedupe(control, opts.Ups)
	if closed && len(pts) > 2 && pts[len(pts)-1].Sub(pts[0]).Len() < 1e-9 {
		pts = pts[:len(pts)-1]
		if ups != nil {
			ups = ups[:len(ups)-1]
		}
	}
	if len(pts) < 2 {
		return nil, ErrTooFewPoints
	}
	if opts.SamplesPerSegment > 1 {
		pts, ups = catmullRom(pts, ups, closed, opts.SamplesPerSegment)
	}
	if closed {
		pts = append(pts, pts[0])
		if ups != nil {
			ups = append(ups, ups[0])
		}
	}

	cum := make([]float64, len(pts))
	for i := 1; i < len(pts); i++ {
		cum[i] = cum[i-1] + pts[i].Sub(pts[i-1]).Len()
	}
	if cum[len(cum)-1] <= 0 {
		return nil, ErrTooFewPoints
	}

	return &Path{
		points: pts,
		ups:    ups,
		cum:    cum,
		length: cum[len(cum)-1],
		closed: closed,
	}, nil
}

// Length returns the total path length.
func (p *Path) Length() float64 { return p.length }

// Closed reports whether distance wraps around.
func (p *Path) Closed() bool { return p.closed }

// Wrap maps any distance onto [0, Length]: modulo for closed paths, clamp otherwise.
func (p *Path) Wrap(d float64) float64 {
	if p.closed {
		d = math.Mod(d, p.length)
		if d < 0 {
			d += p.length
		}
		return d
	}
	return clamp(d, 0, p.length)
}

// PointAt returns the position at distance d.
func (p *Path) PointAt(d float64) mgl64.Vec3 {
	i, t := p.locate(d)
	return lerpVec(p.points[i], p.points[i+1], t)
}

// TangentAt returns the unit direction of travel at distance d.
func (p *Path) TangentAt(d float64) mgl64.Vec3 {
	i, _ := p.locate(d)
	return p.points[i+1].Sub(p.points[i]).Normalize()
}

// UpAt returns the up vector at distance d, world up when the path has none.
func (p *Path) UpAt(d float64) mgl64.Vec3 {
	if p.ups == nil {
		return WorldUp
	}
	i, t := p.locate(d)
	up := lerpVec(p.ups[i], p.ups[i+1], t)
	if up.Len() < 1e-9 {
		return WorldUp
	}
	return up.Normalize()
}

// NearestDistance returns the travelled distance of the path point closest to
// pos, searching only the window [from, to].
func (p *Path) NearestDistance(pos mgl64.Vec3, from, to, step float64) float64 {
	if step <= 0 {
		step = 1
	}
	best, bestD := math.Inf(1), from
	for d := from; d <= to; d += step {
		if dist := p.PointAt(d).Sub(pos).LenSqr(); dist < best {
			best, bestD = dist, d
		}
	}
	return p.Wrap(bestD)
}

// locate returns the segment index and interpolation factor for distance d.
func (p *Path) locate(d float64) (int, float64) {
	d = p.Wrap(d)
	i := sort.SearchFloat64s(p.cum, d)
	// SearchFloat64s returns the first index with cum >= d; step back to the segment start.
	if i > 0 {
		i--
	}
	if i >= len(p.points)-1 {
		i = len(p.points) - 2
	}
	seg := p.cum[i+1] - p.cum[i]
	if seg <= 0 {
		return i, 0
	}
	return i, clamp((d-p.cum[i])/seg, 0, 1)
}

func dedupe(pts, ups []mgl64.Vec3) ([]mgl64.Vec3, []mgl64.Vec3) {
	out := make([]mgl64.Vec3, 0, len(pts))
	var outUps []mgl64.Vec3
	if len(ups) > 0 {
		outUps = make([]mgl64.Vec3, 0, len(ups))
	}
	for i, pt := range pts {
		if len(out) > 0 && pt.Sub(out[len(out)-1]).Len() < 1e-9 {
			continue
		}
		out = append(out, pt)
		if outUps != nil {
			outUps = append(outUps, ups[i])
		}
	}
	return out, outUps
}

// catmullRom samples a uniform Catmull-Rom spline through pts.
func catmullRom(pts, ups []mgl64.Vec3, closed bool, samples int) ([]mgl64.Vec3, []mgl64.Vec3) {
	n := len(pts)
	at := func(i int) int {
		if closed {
			return ((i % n) + n) % n
		}
		if i < 0 {
			return 0
		}
		if i >= n {
			return n - 1
		}
		return i
	}

	segments := n - 1
	if closed {
		segments = n
	}

	out := make([]mgl64.Vec3, 0, segments*samples+1)
	var outUps []mgl64.Vec3
	if ups != nil {
		outUps = make([]mgl64.Vec3, 0, segments*samples+1)
	}
	for s := 0; s < segments; s++ {
		p0, p1, p2, p3 := pts[at(s-1)], pts[at(s)], pts[at(s+1)], pts[at(s+2)]
		for k := 0; k < samples; k++ {
			t := float64(k) / float64(samples)
			out = append(out, catmullRomPoint(p0, p1, p2, p3, t))
			if ups != nil {
				outUps = append(outUps, lerpVec(ups[at(s)], ups[at(s+1)], t))
			}
		}
	}
	if !closed {
		out = append(out, pts[n-1])
		if ups != nil {
			outUps = append(outUps, ups[n-1])
		}
	}
	return out, outUps
}

func catmullRomPoint(p0, p1, p2, p3 mgl64.Vec3, t float64) mgl64.Vec3 {
	t2 := t * t
	t3 := t2 * t
	a := p1.Mul(2)
	b := p2.Sub(p0).Mul(t)
	c := p0.Mul(2).Sub(p1.Mul(5)).Add(p2.Mul(4)).Sub(p3).Mul(t2)
	d := p1.Mul(3).Sub(p0).Sub(p2.Mul(3)).Add(p3).Mul(t3)
	return a.Add(b).Add(c).Add(d).Mul(0.5)
}

func lerpVec(a, b mgl64.Vec3, t float64) mgl64.Vec3 {
	return a.Add(b.Sub(a).Mul(t))
}

func clamp(v, minV, maxV float64) float64 {
	if v < minV {
		return minV
	}
	if v > maxV {
		return maxV
	}
	return v
}

// Oval returns n control points on an axis-aligned ellipse in the XZ plane.
func Oval(center mgl64.Vec3, radiusX, radiusZ float64, n int) []mgl64.Vec3 {
	if n < 3 {
		n = 3
	}
	pts := make([]mgl64.Vec3, n)
	for i := range pts {
		a := 2 * math.Pi * float64(i) / float64(n)
		pts[i] = center.Add(mgl64.Vec3{radiusX * math.Cos(a), 0, radiusZ * math.Sin(a)})
	}
	return pts
}
