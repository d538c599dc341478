package envelope

import (
	"math"
	"sort"
)

const eps = 1e-12

func distinct(pts []Point) []Point {
	out := append([]Point(nil), pts...)
	sort.Slice(out, func(i, j int) bool {
		if out[i].P != out[j].P {
			return out[i].P < out[j].P
		}
		return out[i].Q < out[j].Q
	})
	n := 0
	for i, p := range out {
		if i == 0 || p != out[n-1] {
			out[n] = p
			n++
		}
	}
	return out[:n]
}

func cross(o, a, b Point) float64 {
	return (a.P-o.P)*(b.Q-o.Q) - (a.Q-o.Q)*(b.P-o.P)
}

// ConvexHull returns the hull of pts counter-clockwise (monotone chain), without
// repeating the first vertex.
func ConvexHull(pts []Point) []Point {
	ps := distinct(pts)
	if len(ps) <= 2 {
		return ps
	}
	hull := make([]Point, 0, 2*len(ps))
	for _, p := range ps {
		for len(hull) >= 2 && cross(hull[len(hull)-2], hull[len(hull)-1], p) <= 0 {
			hull = hull[:len(hull)-1]
		}
		hull = append(hull, p)
	}
	lower := len(hull) + 1
	for i := len(ps) - 2; i >= 0; i-- {
		p := ps[i]
		for len(hull) >= lower && cross(hull[len(hull)-2], hull[len(hull)-1], p) <= 0 {
			hull = hull[:len(hull)-1]
		}
		hull = append(hull, p)
	}
	return hull[:len(hull)-1]
}

func almostEqual(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol*math.Max(1, math.Max(math.Abs(a), math.Abs(b)))
}

func onSegment(p, a, b Point, tol float64) bool {
	area := (b.P-a.P)*(p.Q-a.Q) - (b.Q-a.Q)*(p.P-a.P)
	if !almostEqual(area, 0, tol) {
		return false
	}
	return math.Min(a.P, b.P)-tol <= p.P && p.P <= math.Max(a.P, b.P)+tol &&
		math.Min(a.Q, b.Q)-tol <= p.Q && p.Q <= math.Max(a.Q, b.Q)+tol
}

// inPolygon is true inside or on the boundary of a simple polygon of either orientation.
func inPolygon(p Point, poly []Point, tol float64) bool {
	if len(poly) < 3 {
		return false
	}
	minP, maxP := math.Inf(1), math.Inf(-1)
	minQ, maxQ := math.Inf(1), math.Inf(-1)
	for _, v := range poly {
		minP, maxP = math.Min(minP, v.P), math.Max(maxP, v.P)
		minQ, maxQ = math.Min(minQ, v.Q), math.Max(maxQ, v.Q)
	}
	if p.P < minP-tol || p.P > maxP+tol || p.Q < minQ-tol || p.Q > maxQ+tol {
		return false
	}
	n := len(poly)
	for i := range poly {
		if onSegment(p, poly[i], poly[(i+1)%n], tol) {
			return true
		}
	}
	// 水平射线
	inside := false
	for i := range poly {
		a, b := poly[i], poly[(i+1)%n]
		if a.Q > b.Q {
			a, b = b, a
		}
		if p.Q < a.Q || p.Q >= b.Q || almostEqual(a.Q, b.Q, tol) {
			continue
		}
		x := a.P + (p.Q-a.Q)/(b.Q-a.Q)*(b.P-a.P)
		if x > p.P+tol {
			inside = !inside
		}
	}
	return inside
}
