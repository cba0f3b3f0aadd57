package simulation

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/dttson/drifting-car/internal/config"
	"github.com/dttson/drifting-car/internal/track"
	"github.com/dttson/drifting-car/internal/vehicle"
)

const (
	// CarRadius is the collision sphere used for every car.
	CarRadius = 1.2
	// finishMargin keeps the gate of an open course short of the very end,
	// where AI cars park.
	finishMargin = 2.0
	// gridMargin is how far behind the gate the front of the grid starts.
	gridMargin = 3.0
)

// Course is the static geometry of one race.
type Course struct {
	Path      *track.Path
	Ground    track.Ground
	Gate      *track.FinishGate
	Obstacles []track.Box
}

// BuildCourse turns track settings into geometry. Without control points an
// oval is generated.
func BuildCourse(ts config.TrackSettings) (Course, error) {
	control := make([]mgl64.Vec3, 0, len(ts.Points))
	for _, p := range ts.Points {
		control = append(control, mgl64.Vec3(p))
	}
	closed := ts.Closed
	if len(control) == 0 {
		control = track.Oval(mgl64.Vec3{0, ts.GroundHeight, 0}, ts.OvalRadiusX, ts.OvalRadiusZ, ts.OvalPoints)
		closed = true
	}

	opts := track.PathOptions{SamplesPerSegment: ts.SamplesPerSegment}
	if len(ts.Ups) > 0 {
		opts.Ups = make([]mgl64.Vec3, 0, len(ts.Ups))
		for _, u := range ts.Ups {
			opts.Ups = append(opts.Ups, mgl64.Vec3(u))
		}
	}
	path, err := track.NewPath(control, closed, opts)
	if err != nil {
		return Course{}, fmt.Errorf("build course: %w", err)
	}

	gateAt := 0.0
	if !path.Closed() {
		gateAt = math.Max(0, path.Length()-finishMargin)
	}
	gate := track.NewFinishGate(path.PointAt(gateAt), path.TangentAt(gateAt), ts.GateHalfWidth, ts.GateHeight)

	obstacles := make([]track.Box, 0, len(ts.Obstacles))
	for _, o := range ts.Obstacles {
		obstacles = append(obstacles, track.Box{
			Min: mgl64.Vec3(o.Min),
			Max: mgl64.Vec3(o.Max),
			Tag: track.TagObstacle,
		})
	}

	return Course{
		Path:      path,
		Ground:    buildGround(ts),
		Gate:      gate,
		Obstacles: obstacles,
	}, nil
}

// buildGround returns the road plane, with terrain rising out of it when a
// height field is configured. Probes report the closest surface, so the car
// rides whichever of the two is higher.
func buildGround(ts config.TrackSettings) track.Ground {
	road := track.FlatGround(ts.GroundHeight)
	t := ts.Terrain
	if !t.Enabled() {
		return road
	}
	wavelength := t.Wavelength
	if wavelength <= 0 {
		wavelength = 1
	}
	field := track.NewHeightField(t.OriginX, t.OriginZ, t.Cell, t.Cols, t.Rows, func(x, z float64) float64 {
		return ts.GroundHeight + t.Amplitude*math.Sin(x/wavelength)*math.Sin(z/wavelength)
	})
	return track.Surfaces{road, field}
}

// Grid is the starting layout: where the player and each rival begin.
type Grid struct {
	Player vehicle.State
	Rivals []float64 // path distances
}

// StartingGrid lines the player up just behind the finish gate, offset to
// one side, with rivals queued behind on the racing line.
func (c Course) StartingGrid(rivals int, spacing, laneOffset, groundOffset float64) Grid {
	length := c.Path.Length()
	front := length - gridMargin
	if !c.Path.Closed() {
		front = gridMargin + spacing*float64(rivals)
	}
	front = c.Path.Wrap(front)

	tangent := c.Path.TangentAt(front)
	side := track.WorldUp.Cross(tangent)
	if side.Len() > 1e-9 {
		side = side.Normalize()
	}
	pos := c.Path.PointAt(front).
		Add(side.Mul(laneOffset)).
		Add(track.WorldUp.Mul(groundOffset))

	g := Grid{
		Player: vehicle.NewStateFacing(pos, tangent),
		Rivals: make([]float64, rivals),
	}
	for i := range g.Rivals {
		g.Rivals[i] = c.Path.Wrap(front - spacing*float64(i+1))
	}
	return g
}
