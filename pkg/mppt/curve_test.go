package mppt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ramp(n int) []Point {
	points := make([]Point, n)
	for i := range points {
		points[i] = Point{Duty: 500 + 20*i, Current: uint16(i)}
	}
	return points
}

func TestDecimate_NoDecimation(t *testing.T) {
	points := ramp(5)

	result := Decimate(nil, points, 10)
	assert.Equal(t, points, result)

	dst := make([]Point, 0, 10)
	result = Decimate(dst, points, 10)
	assert.Equal(t, points, result)
	assert.Equal(t, cap(dst), cap(result))
}

func TestDecimate_WithDecimation(t *testing.T) {
	points := ramp(76)

	result := Decimate(make([]Point, 0, 20), points, 16)
	require.Len(t, result, 16)
	assert.Equal(t, points[0], result[0])
	for i := 1; i < len(result); i++ {
		assert.Greater(t, result[i].Duty, result[i-1].Duty)
	}
	assert.GreaterOrEqual(t, result[len(result)-1].Duty, points[60].Duty)
}

func TestDecimate_DestinationReuse(t *testing.T) {
	dst := make([]Point, 0, 16)
	first := Decimate(dst, ramp(2), 16)
	second := Decimate(first, ramp(40), 16)

	require.Len(t, second, 16)
	assert.Equal(t, cap(first), cap(second))
}

func TestDecimate_Empty(t *testing.T) {
	assert.Empty(t, Decimate(nil, nil, 10))
	assert.Empty(t, Decimate(nil, ramp(10), 0))
}
