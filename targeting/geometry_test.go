package targeting

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProjectReferenceFrame(t *testing.T) {
	t.Parallel()

	g := DefaultCameraGeometry()
	b := box(300, 200, 60, 40)

	got, err := g.Project(b, 640, 480)
	require.NoError(t, err)

	// right edge 360 minus half width 30; bottom edge 240 plus half height 20
	xn := 2*(330.0/640.0) - 1
	yn := 2*(260.0/480.0) - 1

	assert.Equal(t, 60.0, got.Width)
	assert.InDelta(t, 0-xn*49/2.0, got.Pan, 1e-12)
	assert.InDelta(t, 55-yn*34/2.0, got.Tilt, 1e-12)
	assert.InDelta(t, yn*34/2+55, got.TargetAngle, 1e-12)
}

func TestProjectUsesIntegerHalves(t *testing.T) {
	t.Parallel()

	g := DefaultCameraGeometry()
	got, err := g.Project(box(0, 0, 31, 31), 100, 100)
	require.NoError(t, err)

	// 31/2 == 15, so x = 31-15 = 16 and y = 31+15 = 46
	assert.InDelta(t, -(2*0.16-1)*49/2.0, got.Pan, 1e-12)
	assert.InDelta(t, 55-(2*0.46-1)*34/2.0, got.Tilt, 1e-12)
}

func TestProjectIsPure(t *testing.T) {
	t.Parallel()

	g := DefaultCameraGeometry()
	b := box(123, 77, 45, 52)

	first, err := g.Project(b, 640, 480)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := g.Project(b, 640, 480)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestProjectRejectsEmptyFrame(t *testing.T) {
	t.Parallel()

	_, err := DefaultCameraGeometry().Project(box(0, 0, 30, 30), 0, 480)
	assert.Error(t, err)
}

func TestDistance(t *testing.T) {
	t.Parallel()
	g := DefaultCameraGeometry()

	d, err := g.Distance(45)
	require.NoError(t, err)
	assert.InDelta(t, 87.0, d, 1e-9)

	d, err = g.Distance(56.5)
	require.NoError(t, err)
	assert.InDelta(t, 87/math.Tan(56.5*math.Pi/180), d, 1e-9)

	for _, angle := range []float64{0, 90, -90, 180, 270, math.NaN(), math.Inf(1)} {
		_, err := g.Distance(angle)
		assert.True(t, errors.Is(err, ErrDegenerateGeometry), "angle %v", angle)
	}
}

func TestCameraGeometryValidate(t *testing.T) {
	t.Parallel()

	assert.NoError(t, DefaultCameraGeometry().Validate())

	g := DefaultCameraGeometry()
	g.HorizontalFOV = 0
	assert.Error(t, g.Validate())

	g = DefaultCameraGeometry()
	g.CameraHeight = math.Inf(1)
	assert.Error(t, g.Validate())
}
