package attendance

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDistanceMeters(t *testing.T) {
	center := Coordinates{Lat: 12.9716, Long: 77.5946}

	t.Run("zero at center", func(t *testing.T) {
		assert.Zero(t, DistanceMeters(center, center))
	})

	t.Run("symmetric", func(t *testing.T) {
		other := Coordinates{Lat: 12.9800, Long: 77.6000}
		assert.InDelta(t, DistanceMeters(center, other), DistanceMeters(other, center), 1e-9)
	})

	t.Run("monotonic with displacement", func(t *testing.T) {
		near := Coordinates{Lat: center.Lat + 0.0005, Long: center.Long}
		far := Coordinates{Lat: center.Lat + 0.0010, Long: center.Long}
		assert.Less(t, DistanceMeters(center, near), DistanceMeters(center, far))
	})

	t.Run("known distance", func(t *testing.T) {
		// ~1 degree of latitude is ~111.2km.
		oneDegree := Coordinates{Lat: center.Lat + 1, Long: center.Long}
		assert.InDelta(t, 111195, DistanceMeters(center, oneDegree), 200)
	})

	t.Run("just outside radius fails the fence", func(t *testing.T) {
		// ~111m north of center against a 100m radius.
		outside := Coordinates{Lat: center.Lat + 0.0010, Long: center.Long}
		assert.Greater(t, DistanceMeters(center, outside), 100.0)
	})
}

func TestCoordinatesValid(t *testing.T) {
	tests := []struct {
		name   string
		coords Coordinates
		want   bool
	}{
		{"origin", Coordinates{0, 0}, true},
		{"poles", Coordinates{90, 180}, true},
		{"lat too high", Coordinates{90.1, 0}, false},
		{"lat too low", Coordinates{-90.1, 0}, false},
		{"long too high", Coordinates{0, 180.1}, false},
		{"long too low", Coordinates{0, -180.1}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.coords.Valid())
		})
	}
}
