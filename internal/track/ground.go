package track

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Layer bits used to filter ground probes.
const (
	LayerRoad    uint32 = 1 << 0
	LayerTerrain uint32 = 1 << 1
	LayerAll            = ^uint32(0)
)

// Collider tags.
const (
	TagRoad     = "road"
	TagTerrain  = "terrain"
	TagCar      = "car"
	TagObstacle = "obstacle"
	FinishTag   = "finish"
)

// IsTrackTag reports whether contacts with the tag are regular driving surface.
func IsTrackTag(tag string) bool {
	return tag == TagRoad || tag == TagTerrain
}

// Hit describes the surface found by a downward probe.
type Hit struct {
	Point    mgl64.Vec3
	Normal   mgl64.Vec3
	Distance float64
	Layer    uint32
	Tag      string
}

// Ground answers downward probes against the driving surface.
type Ground interface {
	ProbeDown(origin mgl64.Vec3, maxDistance float64, mask uint32) (Hit, bool)
}

// Plane is an infinite flat (possibly inclined) surface.
type Plane struct {
	Point  mgl64.Vec3
	Normal mgl64.Vec3
	Layer  uint32
	Tag    string
}

// FlatGround returns a horizontal road plane at the given height.
func FlatGround(height float64) Plane {
	return Plane{Point: mgl64.Vec3{0, height, 0}, Normal: WorldUp, Layer: LayerRoad, Tag: TagRoad}
}

// ProbeDown intersects a vertical ray with the plane.
func (p Plane) ProbeDown(origin mgl64.Vec3, maxDistance float64, mask uint32) (Hit, bool) {
	if p.Layer&mask == 0 || maxDistance <= 0 {
		return Hit{}, false
	}
	n := p.Normal.Normalize()
	denom := n.Dot(mgl64.Vec3{0, -1, 0})
	if math.Abs(denom) < 1e-9 {
		return Hit{}, false
	}
	t := n.Dot(p.Point.Sub(origin)) / denom
	if t < 0 || t > maxDistance {
		return Hit{}, false
	}
	if n.Y() < 0 {
		n = n.Mul(-1)
	}
	return Hit{
		Point:    origin.Add(mgl64.Vec3{0, -t, 0}),
		Normal:   n,
		Distance: t,
		Layer:    p.Layer,
		Tag:      p.Tag,
	}, true
}

// HeightField is a regular grid of heights over the XZ plane, sampled
// bilinearly between cells.
type HeightField struct {
	OriginX float64
	OriginZ float64
	Cell    float64
	Cols    int
	Rows    int
	Heights []float64 // row-major, Rows*Cols
	Layer   uint32
	Tag     string
}

// NewHeightField builds a field by sampling fn at every grid node.
func NewHeightField(originX, originZ, cell float64, cols, rows int, fn func(x, z float64) float64) *HeightField {
	hf := &HeightField{
		OriginX: originX,
		OriginZ: originZ,
		Cell:    cell,
		Cols:    cols,
		Rows:    rows,
		Heights: make([]float64, cols*rows),
		Layer:   LayerTerrain,
		Tag:     TagTerrain,
	}
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			hf.Heights[r*cols+c] = fn(originX+float64(c)*cell, originZ+float64(r)*cell)
		}
	}
	return hf
}

// HeightAt returns the surface height at (x, z) and whether it lies on the grid.
func (h *HeightField) HeightAt(x, z float64) (float64, bool) {
	if h.Cols < 2 || h.Rows < 2 || h.Cell <= 0 {
		return 0, false
	}
	fx := (x - h.OriginX) / h.Cell
	fz := (z - h.OriginZ) / h.Cell
	if fx < 0 || fz < 0 || fx > float64(h.Cols-1) || fz > float64(h.Rows-1) {
		return 0, false
	}
	c0 := int(math.Min(math.Floor(fx), float64(h.Cols-2)))
	r0 := int(math.Min(math.Floor(fz), float64(h.Rows-2)))
	tx := fx - float64(c0)
	tz := fz - float64(r0)

	h00 := h.at(c0, r0)
	h10 := h.at(c0+1, r0)
	h01 := h.at(c0, r0+1)
	h11 := h.at(c0+1, r0+1)
	top := h00 + (h10-h00)*tx
	bottom := h01 + (h11-h01)*tx
	return top + (bottom-top)*tz, true
}

// NormalAt estimates the surface normal with central differences.
func (h *HeightField) NormalAt(x, z float64) mgl64.Vec3 {
	e := h.Cell * 0.5
	sample := func(sx, sz float64) float64 {
		v, ok := h.HeightAt(sx, sz)
		if !ok {
			v, _ = h.HeightAt(x, z)
		}
		return v
	}
	dx := sample(x+e, z) - sample(x-e, z)
	dz := sample(x, z+e) - sample(x, z-e)
	return mgl64.Vec3{-dx, 2 * e, -dz}.Normalize()
}

// ProbeDown samples the field straight below origin.
func (h *HeightField) ProbeDown(origin mgl64.Vec3, maxDistance float64, mask uint32) (Hit, bool) {
	if h.Layer&mask == 0 {
		return Hit{}, false
	}
	y, ok := h.HeightAt(origin.X(), origin.Z())
	if !ok {
		return Hit{}, false
	}
	dist := origin.Y() - y
	if dist < 0 || dist > maxDistance {
		return Hit{}, false
	}
	return Hit{
		Point:    mgl64.Vec3{origin.X(), y, origin.Z()},
		Normal:   h.NormalAt(origin.X(), origin.Z()),
		Distance: dist,
		Layer:    h.Layer,
		Tag:      h.Tag,
	}, true
}

func (h *HeightField) at(c, r int) float64 {
	return h.Heights[r*h.Cols+c]
}

// Surfaces combines several grounds and reports the closest hit.
type Surfaces []Ground

// ProbeDown returns the nearest hit across all surfaces.
func (s Surfaces) ProbeDown(origin mgl64.Vec3, maxDistance float64, mask uint32) (Hit, bool) {
	var best Hit
	found := false
	for _, g := range s {
		if hit, ok := g.ProbeDown(origin, maxDistance, mask); ok && (!found || hit.Distance < best.Distance) {
			best, found = hit, true
		}
	}
	return best, found
}

// SlopeDegrees returns the angle between a surface normal and world up.
func SlopeDegrees(normal mgl64.Vec3) float64 {
	l := normal.Len()
	if l < 1e-9 {
		return 90
	}
	cos := clamp(normal.Dot(WorldUp)/l, -1, 1)
	return mgl64.RadToDeg(math.Acos(cos))
}
