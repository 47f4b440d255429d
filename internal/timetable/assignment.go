package timetable

import "errors"

// ErrNoEligiblePairs signals that no (class, subject) pair has a qualified
// teacher. Callers should route this to Diagnose rather than treat it as an
// opaque failure.
var ErrNoEligiblePairs = errors.New("no eligible teacher-class-subject pairs")

// Obligation is a derived requirement that one teacher delivers one subject to
// one class a fixed number of times per week. Obligations are rebuilt on every
// run and never persisted.
type Obligation struct {
	TeacherID   string
	ClassID     string
	SubjectID   string
	WeeklyCount int
}

// BuildAssignments derives the ordered obligation list from the relationship
// graph. For every subject a class offers, the first active teacher that both
// teaches the subject and is assigned to the class wins; co-qualified teachers
// are not load-balanced. Returns ErrNoEligiblePairs when the scan yields no
// obligation at all.
func BuildAssignments(graph Graph, cfg Config) ([]Obligation, error) {
	var obligations []Obligation
	for _, class := range graph.Classes {
		for _, subjectID := range class.Subjects {
			teacherID, ok := firstQualified(graph.Teachers, class.ID, subjectID)
			if !ok {
				continue
			}
			obligations = append(obligations, Obligation{
				TeacherID:   teacherID,
				ClassID:     class.ID,
				SubjectID:   subjectID,
				WeeklyCount: cfg.weeklyCount(subjectID),
			})
		}
	}
	if len(obligations) == 0 {
		return nil, ErrNoEligiblePairs
	}
	return obligations, nil
}

func firstQualified(teachers []TeacherNode, classID, subjectID string) (string, bool) {
	for _, teacher := range teachers {
		if contains(teacher.Subjects, subjectID) && contains(teacher.Classes, classID) {
			return teacher.ID, true
		}
	}
	return "", false
}

func contains(items []string, target string) bool {
	for _, item := range items {
		if item == target {
			return true
		}
	}
	return false
}
