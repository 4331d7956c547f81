package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCourseStatusFromBytes(t *testing.T) {
	tests := []struct {
		name string
		in   []byte
		want CourseStatus
	}{
		{
			name: "north west heading 26",
			in:   []byte{0x0C, 0x1A},
			want: CourseStatus{West: true, North: true, Heading: 26},
		},
		{
			name: "valid fix north east",
			in:   []byte{0x14, 0x5A},
			want: CourseStatus{PositionValid: true, North: true, Heading: 90},
		},
		{
			name: "heading over 360 kept verbatim",
			in:   []byte{0x15, 0x90},
			want: CourseStatus{PositionValid: true, North: true, Heading: 400},
		},
		{
			name: "all clear southern hemisphere",
			in:   []byte{0x00, 0x00},
			want: CourseStatus{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CourseStatusFromBytes(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCourseStatusFromBytes_WrongSize(t *testing.T) {
	_, err := CourseStatusFromBytes([]byte{0x0C})
	assert.Error(t, err)
}

func TestCoordinatesFromRaw(t *testing.T) {
	cs := CourseStatus{North: true, West: true}
	got := CoordinatesFromRaw(41660928, 101500992, cs)
	assert.InDelta(t, 23.144960, got.Latitude, 1e-9)
	assert.InDelta(t, -56.389440, got.Longitude, 1e-9)
}

func TestCoordinatesFromRaw_SouthEast(t *testing.T) {
	got := CoordinatesFromRaw(41660928, 101500992, CourseStatus{})
	assert.InDelta(t, -23.144960, got.Latitude, 1e-9)
	assert.InDelta(t, 56.389440, got.Longitude, 1e-9)
}

func TestCoordinatesIsValid(t *testing.T) {
	assert.True(t, Coordinates{Latitude: 48.8566, Longitude: 2.3522}.IsValid())
	assert.True(t, Coordinates{}.IsValid())
	assert.False(t, Coordinates{Latitude: 91, Longitude: 0}.IsValid())
	assert.False(t, Coordinates{Latitude: 0, Longitude: 181}.IsValid())
}
