// Package timetable implements the automatic timetable generation engine:
// deriving teaching obligations from the teacher/class/subject relationship
// graph, computing wall-clock periods, and placing weekly lessons into
// conflict-free day/period slots. The package performs no I/O; callers load
// the snapshot, run a generation, and persist the result as a version.
package timetable

// DefaultWeeklyCount is used for subjects without a configured weekly lesson count.
const DefaultWeeklyCount = 3

// Break marks an interval excluded from teaching, carried for rendering only.
type Break struct {
	Name  string `json:"name"`
	Start string `json:"start"`
	End   string `json:"end"`
}

// Config describes the shape of the school week for one generation run.
type Config struct {
	PeriodsPerDay int
	StartTime     string
	PeriodMinutes int
	Days          []string
	Breaks        []Break
	// WeeklyCounts maps subject ID to its weekly lesson quota. Subjects
	// absent from the map fall back to DefaultWeeklyCount.
	WeeklyCounts map[string]int
}

// TeacherNode is a teacher snapshot within the relationship graph.
type TeacherNode struct {
	ID       string
	Subjects []string
	Classes  []string
}

// ClassNode is a class snapshot within the relationship graph.
type ClassNode struct {
	ID       string
	Subjects []string
}

// Graph is the read-only relationship snapshot a generation run consumes.
type Graph struct {
	Teachers []TeacherNode
	Classes  []ClassNode
	Subjects []string
}

func (c Config) weeklyCount(subjectID string) int {
	if n, ok := c.WeeklyCounts[subjectID]; ok && n > 0 {
		return n
	}
	return DefaultWeeklyCount
}
