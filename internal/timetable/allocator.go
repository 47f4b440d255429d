package timetable

import (
	"fmt"
	"math/rand"
	"sort"
	"time"

	"go.uber.org/zap"
)

// attemptsPerSlot scales the per-obligation attempt budget so the allocator
// terminates even when no open slot remains anywhere in the week.
const attemptsPerSlot = 20

// maxConsecutive caps back-to-back periods for the same teacher+class on one day.
const maxConsecutive = 2

// PlacedSlot is one concrete lesson placement produced by a generation run.
type PlacedSlot struct {
	TeacherID string `json:"teacherId"`
	ClassID   string `json:"classId"`
	SubjectID string `json:"subjectId"`
	Day       string `json:"day"`
	Period    int    `json:"period"`
	StartTime string `json:"startTime"`
	EndTime   string `json:"endTime"`
}

// Shortfall records an obligation whose weekly quota could not be met within
// the attempt budget. Shortfalls are reported, never raised as errors.
type Shortfall struct {
	Obligation Obligation `json:"obligation"`
	Placed     int        `json:"placed"`
}

type occupancy struct {
	day    int
	period int
	id     string
}

type pairDay struct {
	teacherID string
	classID   string
	day       int
}

// Allocator owns the occupancy state of a single generation run. Runs never
// share state; build a fresh Allocator per run.
type Allocator struct {
	cfg         Config
	periods     []Period
	teacherBusy map[occupancy]bool
	classBusy   map[occupancy]bool
	pairPeriods map[pairDay]map[int]bool
	rng         *rand.Rand
	logger      *zap.Logger
}

// AllocatorOption customises allocator construction.
type AllocatorOption func(*Allocator)

// WithLogger attaches a logger for shortfall reporting.
func WithLogger(logger *zap.Logger) AllocatorOption {
	return func(a *Allocator) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// WithRand overrides the fallback random source, used by tests to make the
// fallback pass deterministic.
func WithRand(rng *rand.Rand) AllocatorOption {
	return func(a *Allocator) {
		if rng != nil {
			a.rng = rng
		}
	}
}

// NewAllocator validates the configuration and prepares run-local state.
// Malformed configuration is rejected here, before any placement happens.
func NewAllocator(cfg Config, opts ...AllocatorOption) (*Allocator, error) {
	if cfg.PeriodsPerDay < 1 {
		return nil, fmt.Errorf("periods per day must be positive, got %d", cfg.PeriodsPerDay)
	}
	if len(cfg.Days) == 0 {
		return nil, fmt.Errorf("day list must not be empty")
	}
	periods, err := ComputePeriods(cfg.StartTime, cfg.PeriodMinutes, cfg.PeriodsPerDay)
	if err != nil {
		return nil, err
	}

	a := &Allocator{
		cfg:         cfg,
		periods:     periods,
		teacherBusy: make(map[occupancy]bool),
		classBusy:   make(map[occupancy]bool),
		pairPeriods: make(map[pairDay]map[int]bool),
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())),
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Allocate places each obligation's weekly lessons into day/period coordinates.
// Obligations with larger quotas go first since they are the hardest to fit as
// the week fills up. Quotas that cannot be met within the attempt budget are
// left partially placed and reported as shortfalls.
func (a *Allocator) Allocate(obligations []Obligation) ([]PlacedSlot, []Shortfall) {
	ordered := make([]Obligation, len(obligations))
	copy(ordered, obligations)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].WeeklyCount > ordered[j].WeeklyCount
	})

	var slots []PlacedSlot
	var shortfalls []Shortfall
	for _, obligation := range ordered {
		placed := a.placeObligation(obligation, &slots)
		if placed < obligation.WeeklyCount {
			a.logger.Warn("obligation under-placed",
				zap.String("teacher_id", obligation.TeacherID),
				zap.String("class_id", obligation.ClassID),
				zap.String("subject_id", obligation.SubjectID),
				zap.Int("placed", placed),
				zap.Int("required", obligation.WeeklyCount),
			)
			shortfalls = append(shortfalls, Shortfall{Obligation: obligation, Placed: placed})
		}
	}
	return slots, shortfalls
}

func (a *Allocator) placeObligation(obligation Obligation, out *[]PlacedSlot) int {
	numDays := len(a.cfg.Days)
	dayTarget := (obligation.WeeklyCount + numDays - 1) / numDays
	perDay := make([]int, numDays)

	placed := 0
	budget := numDays * a.cfg.PeriodsPerDay * attemptsPerSlot
	for attempt := 0; placed < obligation.WeeklyCount && attempt < budget; attempt++ {
		day, period, ok := a.scanPrimary(obligation, perDay, dayTarget)
		if !ok {
			// No acceptable candidate among under-target days; try a random
			// coordinate under the same acceptance rules. This may skew the
			// even-distribution heuristic but keeps the run terminating.
			day = a.rng.Intn(numDays)
			period = a.rng.Intn(a.cfg.PeriodsPerDay) + 1
			if !a.accepts(obligation, day, period) {
				continue
			}
		}
		a.place(obligation, day, period, out)
		perDay[day]++
		placed++
	}
	return placed
}

// scanPrimary walks days ranked by how few lessons this obligation already has
// on them (ties keep the configured day order) and returns the first free,
// rule-respecting period on a day still under its share of the weekly quota.
func (a *Allocator) scanPrimary(obligation Obligation, perDay []int, dayTarget int) (int, int, bool) {
	order := make([]int, len(a.cfg.Days))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool {
		return perDay[order[i]] < perDay[order[j]]
	})

	for _, day := range order {
		if perDay[day] >= dayTarget {
			continue
		}
		for period := 1; period <= a.cfg.PeriodsPerDay; period++ {
			if a.accepts(obligation, day, period) {
				return day, period, true
			}
		}
	}
	return 0, 0, false
}

func (a *Allocator) accepts(obligation Obligation, day, period int) bool {
	if a.teacherBusy[occupancy{day: day, period: period, id: obligation.TeacherID}] {
		return false
	}
	if a.classBusy[occupancy{day: day, period: period, id: obligation.ClassID}] {
		return false
	}
	return a.runLengthWith(obligation, day, period) <= maxConsecutive
}

// runLengthWith inspects the actually placed neighbouring periods for the same
// teacher+class pair and returns the consecutive run length that accepting the
// candidate period would create.
func (a *Allocator) runLengthWith(obligation Obligation, day, period int) int {
	placed := a.pairPeriods[pairDay{teacherID: obligation.TeacherID, classID: obligation.ClassID, day: day}]
	run := 1
	for p := period - 1; p >= 1 && placed[p]; p-- {
		run++
	}
	for p := period + 1; p <= a.cfg.PeriodsPerDay && placed[p]; p++ {
		run++
	}
	return run
}

func (a *Allocator) place(obligation Obligation, day, period int, out *[]PlacedSlot) {
	a.teacherBusy[occupancy{day: day, period: period, id: obligation.TeacherID}] = true
	a.classBusy[occupancy{day: day, period: period, id: obligation.ClassID}] = true

	key := pairDay{teacherID: obligation.TeacherID, classID: obligation.ClassID, day: day}
	if a.pairPeriods[key] == nil {
		a.pairPeriods[key] = make(map[int]bool)
	}
	a.pairPeriods[key][period] = true

	interval := a.periods[period-1]
	*out = append(*out, PlacedSlot{
		TeacherID: obligation.TeacherID,
		ClassID:   obligation.ClassID,
		SubjectID: obligation.SubjectID,
		Day:       a.cfg.Days[day],
		Period:    period,
		StartTime: interval.Start,
		EndTime:   interval.End,
	})
}
