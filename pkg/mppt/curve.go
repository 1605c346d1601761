package mppt

// Point is one measured point of the duty/current curve.
type Point struct {
	Duty    int
	Current uint16
}

// Decimate reduces points to at most maxPoints by taking evenly spaced
// entries. It reuses dst when it has enough capacity and returns the result.
func Decimate(dst []Point, points []Point, maxPoints int) []Point {
	if maxPoints <= 0 {
		return dst[:0]
	}

	if len(points) <= maxPoints {
		if cap(dst) < len(points) {
			dst = make([]Point, len(points))
		}
		dst = dst[:len(points)]
		copy(dst, points)
		return dst
	}

	if cap(dst) >= maxPoints {
		dst = dst[:0]
	} else {
		dst = make([]Point, 0, maxPoints)
	}

	step := float64(len(points)) / float64(maxPoints)
	for i := range maxPoints {
		dst = append(dst, points[int(float64(i)*step)])
	}

	return dst
}
