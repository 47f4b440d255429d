package timetable

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fiveDayWeek = []string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday"}

func newTestAllocator(t *testing.T, cfg Config, seed int64) *Allocator {
	t.Helper()
	allocator, err := NewAllocator(cfg, WithRand(rand.New(rand.NewSource(seed))))
	require.NoError(t, err)
	return allocator
}

func TestNewAllocatorRejectsMalformedConfig(t *testing.T) {
	base := Config{PeriodsPerDay: 8, StartTime: "08:00", PeriodMinutes: 40, Days: fiveDayWeek}

	bad := base
	bad.PeriodsPerDay = 0
	_, err := NewAllocator(bad)
	assert.Error(t, err)

	bad = base
	bad.Days = nil
	_, err = NewAllocator(bad)
	assert.Error(t, err)

	bad = base
	bad.PeriodMinutes = -5
	_, err = NewAllocator(bad)
	assert.Error(t, err)

	bad = base
	bad.StartTime = "late"
	_, err = NewAllocator(bad)
	assert.Error(t, err)
}

func TestAllocateSingleObligationEvenDistribution(t *testing.T) {
	cfg := Config{PeriodsPerDay: 8, StartTime: "08:00", PeriodMinutes: 40, Days: fiveDayWeek}
	allocator := newTestAllocator(t, cfg, 1)

	slots, shortfalls := allocator.Allocate([]Obligation{
		{TeacherID: "t-1", ClassID: "c-1", SubjectID: "math", WeeklyCount: 5},
	})
	require.Empty(t, shortfalls)
	require.Len(t, slots, 5)

	byDay := map[string]int{}
	for _, slot := range slots {
		byDay[slot.Day]++
		assert.Equal(t, "08:00", slot.StartTime)
		assert.Equal(t, "08:40", slot.EndTime)
	}
	for _, day := range fiveDayWeek {
		assert.Equal(t, 1, byDay[day], "expected exactly one lesson on %s", day)
	}
}

func TestAllocateSharedTeacherContention(t *testing.T) {
	cfg := Config{PeriodsPerDay: 8, StartTime: "07:30", PeriodMinutes: 45, Days: fiveDayWeek}
	allocator := newTestAllocator(t, cfg, 1)

	slots, shortfalls := allocator.Allocate([]Obligation{
		{TeacherID: "t-1", ClassID: "c-1", SubjectID: "math", WeeklyCount: 5},
		{TeacherID: "t-1", ClassID: "c-2", SubjectID: "math", WeeklyCount: 5},
	})
	require.Empty(t, shortfalls)
	require.Len(t, slots, 10)
	assertNoDoubleBooking(t, slots)
}

func TestAllocateRespectsConsecutiveCap(t *testing.T) {
	cfg := Config{PeriodsPerDay: 8, StartTime: "08:00", PeriodMinutes: 40, Days: []string{"Monday"}}
	allocator := newTestAllocator(t, cfg, 1)

	slots, shortfalls := allocator.Allocate([]Obligation{
		{TeacherID: "t-1", ClassID: "c-1", SubjectID: "math", WeeklyCount: 5},
	})
	require.Empty(t, shortfalls)
	require.Len(t, slots, 5)
	assertConsecutiveCap(t, slots)
}

func TestAllocateReportsShortfall(t *testing.T) {
	// One day with four periods can hold at most three lessons of the same
	// teacher+class pair under the consecutive cap.
	cfg := Config{PeriodsPerDay: 4, StartTime: "08:00", PeriodMinutes: 40, Days: []string{"Monday"}}
	allocator := newTestAllocator(t, cfg, 1)

	obligation := Obligation{TeacherID: "t-1", ClassID: "c-1", SubjectID: "math", WeeklyCount: 10}
	slots, shortfalls := allocator.Allocate([]Obligation{obligation})

	assert.Len(t, slots, 3)
	require.Len(t, shortfalls, 1)
	assert.Equal(t, obligation, shortfalls[0].Obligation)
	assert.Equal(t, 3, shortfalls[0].Placed)
	assertConsecutiveCap(t, slots)
}

func TestAllocateQuotaUpperBound(t *testing.T) {
	cfg := Config{PeriodsPerDay: 6, StartTime: "08:00", PeriodMinutes: 40, Days: fiveDayWeek}
	allocator := newTestAllocator(t, cfg, 1)

	obligations := []Obligation{
		{TeacherID: "t-1", ClassID: "c-1", SubjectID: "math", WeeklyCount: 6},
		{TeacherID: "t-2", ClassID: "c-1", SubjectID: "science", WeeklyCount: 4},
		{TeacherID: "t-1", ClassID: "c-2", SubjectID: "math", WeeklyCount: 3},
	}
	slots, _ := allocator.Allocate(obligations)

	counts := map[Obligation]int{}
	for _, slot := range slots {
		for _, obligation := range obligations {
			if slot.TeacherID == obligation.TeacherID && slot.ClassID == obligation.ClassID && slot.SubjectID == obligation.SubjectID {
				counts[obligation]++
			}
		}
	}
	for _, obligation := range obligations {
		assert.LessOrEqual(t, counts[obligation], obligation.WeeklyCount)
	}
	assertNoDoubleBooking(t, slots)
	assertConsecutiveCap(t, slots)
}

func TestAllocateLargerQuotasPlacedFirst(t *testing.T) {
	cfg := Config{PeriodsPerDay: 4, StartTime: "08:00", PeriodMinutes: 40, Days: fiveDayWeek}
	allocator := newTestAllocator(t, cfg, 1)

	slots, _ := allocator.Allocate([]Obligation{
		{TeacherID: "t-1", ClassID: "c-1", SubjectID: "art", WeeklyCount: 2},
		{TeacherID: "t-2", ClassID: "c-1", SubjectID: "math", WeeklyCount: 8},
	})
	require.NotEmpty(t, slots)
	assert.Equal(t, "math", slots[0].SubjectID, "largest weekly quota should be placed first")
}

func TestAllocateDeterministicWithSeededFallback(t *testing.T) {
	cfg := Config{PeriodsPerDay: 6, StartTime: "08:00", PeriodMinutes: 40, Days: fiveDayWeek}
	obligations := []Obligation{
		{TeacherID: "t-1", ClassID: "c-1", SubjectID: "math", WeeklyCount: 6},
		{TeacherID: "t-2", ClassID: "c-1", SubjectID: "science", WeeklyCount: 5},
		{TeacherID: "t-1", ClassID: "c-2", SubjectID: "math", WeeklyCount: 4},
		{TeacherID: "t-3", ClassID: "c-2", SubjectID: "art", WeeklyCount: 3},
	}

	first := newTestAllocator(t, cfg, 42)
	second := newTestAllocator(t, cfg, 42)

	slotsA, shortA := first.Allocate(obligations)
	slotsB, shortB := second.Allocate(obligations)

	assert.Equal(t, slotsA, slotsB)
	assert.Equal(t, shortA, shortB)
}

func assertNoDoubleBooking(t *testing.T, slots []PlacedSlot) {
	t.Helper()
	teacherSeen := map[string]bool{}
	classSeen := map[string]bool{}
	for _, slot := range slots {
		teacherKey := fmt.Sprintf("%s/%d/%s", slot.Day, slot.Period, slot.TeacherID)
		classKey := fmt.Sprintf("%s/%d/%s", slot.Day, slot.Period, slot.ClassID)
		assert.False(t, teacherSeen[teacherKey], "teacher double-booked at %s period %d", slot.Day, slot.Period)
		assert.False(t, classSeen[classKey], "class double-booked at %s period %d", slot.Day, slot.Period)
		teacherSeen[teacherKey] = true
		classSeen[classKey] = true
	}
}

func assertConsecutiveCap(t *testing.T, slots []PlacedSlot) {
	t.Helper()
	pairPeriods := map[string]map[int]bool{}
	for _, slot := range slots {
		key := slot.TeacherID + "/" + slot.ClassID + "/" + slot.Day
		if pairPeriods[key] == nil {
			pairPeriods[key] = map[int]bool{}
		}
		pairPeriods[key][slot.Period] = true
	}
	for key, periods := range pairPeriods {
		for period := range periods {
			if periods[period+1] && periods[period+2] {
				t.Errorf("run of 3+ consecutive periods for %s starting at period %d", key, period)
			}
		}
	}
}
