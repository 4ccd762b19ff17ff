package exam_test

import (
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/require"

	"github.com/mind-engage/masterclass/internal/exam"
)

func TestPostAvailability_Boundary(t *testing.T) {
	loc, err := time.LoadLocation("Europe/Paris")
	require.NoError(t, err)

	before := time.Date(2025, 11, 10, 14, 59, 59, 0, loc)
	at := time.Date(2025, 11, 10, 15, 0, 0, 0, loc)

	av := exam.PostAvailability("2025-11-10", true, false, before, loc)
	require.False(t, av.Available)
	require.NotNil(t, av.UnlocksAt)
	require.True(t, av.UnlocksAt.Equal(at))

	av = exam.PostAvailability("2025-11-10", true, false, at, loc)
	require.True(t, av.Available)
}

func TestPostAvailability_Rules(t *testing.T) {
	now := time.Date(2025, 11, 11, 9, 0, 0, 0, time.UTC)

	av := exam.PostAvailability("2025-11-10", false, false, now, time.UTC)
	require.False(t, av.Available, "pre-test missing")
	require.NotNil(t, av.UnlocksAt)

	av = exam.PostAvailability("2025-11-10", true, true, now, time.UTC)
	require.False(t, av.Available)
	require.True(t, av.AlreadyTaken)

	av = exam.PostAvailability("", true, false, now, time.UTC)
	require.False(t, av.Available)
	require.Nil(t, av.UnlocksAt)

	av = exam.PostAvailability("10/11/2025", true, false, now, time.UTC)
	require.False(t, av.Available)
}

func TestUnlockInstant_UsesLocation(t *testing.T) {
	loc := time.FixedZone("UTC+1", 3600)
	u, err := exam.UnlockInstant("2025-11-10", loc)
	require.NoError(t, err)
	require.Equal(t, time.Date(2025, 11, 10, 14, 0, 0, 0, time.UTC), u.UTC())

	_, err = exam.UnlockInstant("nope", loc)
	require.ErrorIs(t, err, exam.ErrValidation)
}
