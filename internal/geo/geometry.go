// Package geo provides the planar geometry operations the shadow engine
// depends on: areas, containment, envelopes, buffering, convex hulls and
// sampled coverage estimation. All polygons are WGS84 lon/lat rings; area
// and distance helpers convert to metres using a local equirectangular
// approximation, which is accurate well below a metre at patio scale.
package geo

import (
	"math"
	"sort"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

const (
	// metersPerDegreeLat is effectively constant across latitudes.
	metersPerDegreeLat = 111320.0
)

// Planar implements the geometry operations on paulmach/orb types.
// It is a value type with no state; services hold it behind the small
// interfaces they declare so tests can substitute a fake.
type Planar struct{}

// NewPlanar returns a Planar geometry engine.
func NewPlanar() Planar {
	return Planar{}
}

// MetersPerDegreeLon returns the east-west metres spanned by one degree of
// longitude at the given latitude.
func MetersPerDegreeLon(lat float64) float64 {
	return metersPerDegreeLat * math.Cos(lat*math.Pi/180.0)
}

// NewPolygon builds a closed single-ring polygon from a point list.
// The ring is closed if the input does not repeat the first point.
func NewPolygon(points []orb.Point) orb.Polygon {
	ring := make(orb.Ring, 0, len(points)+1)
	ring = append(ring, points...)
	if len(ring) > 0 && ring[0] != ring[len(ring)-1] {
		ring = append(ring, ring[0])
	}
	return orb.Polygon{ring}
}

// AreaSquareMeters returns the area of the polygon in square metres.
func (Planar) AreaSquareMeters(p orb.Polygon) float64 {
	if len(p) == 0 {
		return 0
	}
	_, centroidLat := centerOf(p)
	areaDeg := math.Abs(planar.Area(p))
	return areaDeg * metersPerDegreeLat * MetersPerDegreeLon(centroidLat)
}

// Centroid returns the area-weighted centroid of the polygon.
func (Planar) Centroid(p orb.Polygon) orb.Point {
	c, _ := planar.CentroidArea(p)
	return c
}

// Contains reports whether the point lies inside the polygon.
func (Planar) Contains(p orb.Polygon, pt orb.Point) bool {
	return planar.PolygonContains(p, pt)
}

// Envelope returns the bounding box of all given polygons.
func (Planar) Envelope(polys ...orb.Polygon) orb.Bound {
	bound := polys[0].Bound()
	for _, p := range polys[1:] {
		bound = bound.Union(p.Bound())
	}
	return bound
}

// ExpandBound grows the bound by the given distance in metres on every side.
func (Planar) ExpandBound(b orb.Bound, meters float64) orb.Bound {
	midLat := (b.Min[1] + b.Max[1]) / 2
	dLat := meters / metersPerDegreeLat
	dLon := meters / MetersPerDegreeLon(midLat)
	return orb.Bound{
		Min: orb.Point{b.Min[0] - dLon, b.Min[1] - dLat},
		Max: orb.Point{b.Max[0] + dLon, b.Max[1] + dLat},
	}
}

// Translate shifts the polygon by the given eastward/northward offset in
// metres, converted to degrees at the polygon's own latitude.
func (Planar) Translate(p orb.Polygon, eastM, northM float64) orb.Polygon {
	_, lat := centerOf(p)
	dLon := eastM / MetersPerDegreeLon(lat)
	dLat := northM / metersPerDegreeLat
	out := make(orb.Polygon, len(p))
	for i, ring := range p {
		r := make(orb.Ring, len(ring))
		for j, pt := range ring {
			r[j] = orb.Point{pt[0] + dLon, pt[1] + dLat}
		}
		out[i] = r
	}
	return out
}

// Hull returns the convex hull of the points as a closed ring, using
// Andrew's monotone chain. Returns nil for fewer than three distinct points.
func (Planar) Hull(points []orb.Point) orb.Ring {
	pts := make([]orb.Point, len(points))
	copy(pts, points)
	sort.Slice(pts, func(i, j int) bool {
		if pts[i][0] != pts[j][0] {
			return pts[i][0] < pts[j][0]
		}
		return pts[i][1] < pts[j][1]
	})

	// Drop duplicates so collinear handling stays simple.
	uniq := pts[:0]
	for i, p := range pts {
		if i == 0 || p != pts[i-1] {
			uniq = append(uniq, p)
		}
	}
	pts = uniq
	if len(pts) < 3 {
		return nil
	}

	var lower, upper []orb.Point
	for _, p := range pts {
		for len(lower) >= 2 && cross(lower[len(lower)-2], lower[len(lower)-1], p) <= 0 {
			lower = lower[:len(lower)-1]
		}
		lower = append(lower, p)
	}
	for i := len(pts) - 1; i >= 0; i-- {
		p := pts[i]
		for len(upper) >= 2 && cross(upper[len(upper)-2], upper[len(upper)-1], p) <= 0 {
			upper = upper[:len(upper)-1]
		}
		upper = append(upper, p)
	}

	hull := make(orb.Ring, 0, len(lower)+len(upper)-1)
	hull = append(hull, lower[:len(lower)-1]...)
	hull = append(hull, upper[:len(upper)-1]...)
	hull = append(hull, hull[0])
	return hull
}

// ClipToConvex intersects the subject polygon's outer ring with a convex
// clip polygon (Sutherland-Hodgman). The second return is false when the
// intersection is empty.
func (Planar) ClipToConvex(subject, clip orb.Polygon) (orb.Polygon, bool) {
	if len(subject) == 0 || len(clip) == 0 {
		return nil, false
	}
	output := openRing(subject[0])
	clipRing := openRing(clip[0])
	if signedRingArea(clipRing) < 0 {
		reverse(clipRing)
	}

	n := len(clipRing)
	for i := 0; i < n && len(output) > 0; i++ {
		a := clipRing[i]
		b := clipRing[(i+1)%n]

		input := output
		output = nil
		for j := 0; j < len(input); j++ {
			cur := input[j]
			prev := input[(j+len(input)-1)%len(input)]
			curIn := cross(a, b, cur) >= 0
			prevIn := cross(a, b, prev) >= 0
			if curIn {
				if !prevIn {
					output = append(output, segmentIntersection(prev, cur, a, b))
				}
				output = append(output, cur)
			} else if prevIn {
				output = append(output, segmentIntersection(prev, cur, a, b))
			}
		}
	}
	if len(output) < 3 {
		return nil, false
	}
	return NewPolygon(output), true
}

// CoverageRatio estimates the fraction of the subject polygon covered by the
// union of the cover polygons, by sampling a regular grid of cell centres
// across the subject's bound. With the default resolution the error is well
// below the 0.5% geometric tolerance the exposure invariants allow.
func (Planar) CoverageRatio(subject orb.Polygon, covers []orb.Polygon) float64 {
	return coverageRatio(subject, covers, 64)
}

func coverageRatio(subject orb.Polygon, covers []orb.Polygon, resolution int) float64 {
	if len(subject) == 0 {
		return 0
	}
	bound := subject.Bound()
	dx := (bound.Max[0] - bound.Min[0]) / float64(resolution)
	dy := (bound.Max[1] - bound.Min[1]) / float64(resolution)
	if dx == 0 || dy == 0 {
		return 0
	}

	inside, covered := 0, 0
	for i := 0; i < resolution; i++ {
		for j := 0; j < resolution; j++ {
			pt := orb.Point{
				bound.Min[0] + (float64(i)+0.5)*dx,
				bound.Min[1] + (float64(j)+0.5)*dy,
			}
			if !planar.PolygonContains(subject, pt) {
				continue
			}
			inside++
			for _, c := range covers {
				if planar.PolygonContains(c, pt) {
					covered++
					break
				}
			}
		}
	}
	if inside == 0 {
		return 0
	}
	return float64(covered) / float64(inside)
}

func centerOf(p orb.Polygon) (lon, lat float64) {
	b := p.Bound()
	return (b.Min[0] + b.Max[0]) / 2, (b.Min[1] + b.Max[1]) / 2
}

func cross(o, a, b orb.Point) float64 {
	return (a[0]-o[0])*(b[1]-o[1]) - (a[1]-o[1])*(b[0]-o[0])
}

func signedRingArea(ring []orb.Point) float64 {
	sum := 0.0
	n := len(ring)
	for i := 0; i < n; i++ {
		j := (i + 1) % n
		sum += ring[i][0]*ring[j][1] - ring[j][0]*ring[i][1]
	}
	return sum / 2
}

func reverse(ring []orb.Point) {
	for i, j := 0, len(ring)-1; i < j; i, j = i+1, j-1 {
		ring[i], ring[j] = ring[j], ring[i]
	}
}

func openRing(r orb.Ring) []orb.Point {
	pts := []orb.Point(r)
	if len(pts) > 1 && pts[0] == pts[len(pts)-1] {
		pts = pts[:len(pts)-1]
	}
	out := make([]orb.Point, len(pts))
	copy(out, pts)
	return out
}

func segmentIntersection(p1, p2, a, b orb.Point) orb.Point {
	d1 := cross(a, b, p1)
	d2 := cross(a, b, p2)
	t := d1 / (d1 - d2)
	return orb.Point{
		p1[0] + t*(p2[0]-p1[0]),
		p1[1] + t*(p2[1]-p1[1]),
	}
}
