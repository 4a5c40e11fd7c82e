// Copyright (c) 2025 hitoshi.mukai.b@gmail.com. All rights reserved.
// You are free to use this source code for any purpose. The copyright remains with the author.
// The author accepts no liability for any damages arising from the use of this source code.
//
// Last modified: 2025.11.16
//

package radioloc

import (
	"fmt"
	"math"
	"strings"
)

//-------------------------------------------------------------------
// Point
//-------------------------------------------------------------------

// Point is an ordered coordinate vector in 2 or 3 spatial dimensions.
// All distances are in meters. The estimators treat points as read-only
// and always hand out freshly constructed instances.
type Point []float64

// NewPoint2D creates a 2D point
func NewPoint2D(x, y float64) Point {
	return Point{x, y}
}

// NewPoint3D creates a 3D point
func NewPoint3D(x, y, z float64) Point {
	return Point{x, y, z}
}

// Dim returns the number of spatial dimensions
func (p Point) Dim() int {
	return len(p)
}

// Clone returns a deep copy of the point
func (p Point) Clone() Point {
	q := make(Point, len(p))
	copy(q, p)
	return q
}

// SqrDistance returns the squared Euclidean distance to another point.
// Both points must have the same dimension.
func (p Point) SqrDistance(q Point) float64 {
	d := 0.0
	for i := range p {
		d += SQ(p[i] - q[i])
	}
	return d
}

// Distance returns the Euclidean distance to another point
func (p Point) Distance(q Point) float64 {
	return math.Sqrt(p.SqrDistance(q))
}

// NormSq returns the squared Euclidean norm of the point
func (p Point) NormSq() float64 {
	d := 0.0
	for _, v := range p {
		d += SQ(v)
	}
	return d
}

// Convert to string
func (p Point) String() string {
	s := make([]string, len(p))
	for i, v := range p {
		s[i] = fmt.Sprintf("%.4f", v)
	}
	return "[" + strings.Join(s, " ") + "]"
}

// Centroid returns the coordinate-wise arithmetic mean of the given points.
// All points must share the same dimension and the list must be non-empty.
func Centroid(points []Point) Point {
	c := make(Point, points[0].Dim())
	for _, p := range points {
		for i, v := range p {
			c[i] += v
		}
	}
	for i := range c {
		c[i] /= float64(len(points))
	}
	return c
}
