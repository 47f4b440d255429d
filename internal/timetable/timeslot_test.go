package timetable

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputePeriodsBackToBack(t *testing.T) {
	periods, err := ComputePeriods("08:00", 40, 3)
	require.NoError(t, err)
	assert.Equal(t, []Period{
		{Start: "08:00", End: "08:40"},
		{Start: "08:40", End: "09:20"},
		{Start: "09:20", End: "10:00"},
	}, periods)
}

func TestComputePeriodsWrapsAcrossHour(t *testing.T) {
	periods, err := ComputePeriods("07:45", 45, 2)
	require.NoError(t, err)
	assert.Equal(t, "08:30", periods[0].End)
	assert.Equal(t, "09:15", periods[1].End)
}

func TestComputePeriodsWrapsAcrossMidnight(t *testing.T) {
	periods, err := ComputePeriods("23:30", 45, 2)
	require.NoError(t, err)
	assert.Equal(t, Period{Start: "23:30", End: "00:15"}, periods[0])
	assert.Equal(t, Period{Start: "00:15", End: "01:00"}, periods[1])
}

func TestComputePeriodsRejectsBadInput(t *testing.T) {
	_, err := ComputePeriods("08:00", 0, 3)
	assert.Error(t, err)

	_, err = ComputePeriods("08:00", 40, 0)
	assert.Error(t, err)

	_, err = ComputePeriods("8am", 40, 3)
	assert.Error(t, err)

	_, err = ComputePeriods("25:00", 40, 3)
	assert.Error(t, err)

	_, err = ComputePeriods("08:61", 40, 3)
	assert.Error(t, err)
}
