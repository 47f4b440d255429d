package timetable

// UnstaffedPair names a subject a class offers without any qualified teacher.
type UnstaffedPair struct {
	ClassID   string `json:"classId"`
	SubjectID string `json:"subjectId"`
}

// Report explains why assignment derivation produced nothing. It is returned
// to the caller in place of an empty schedule so the data gap is actionable.
type Report struct {
	TeachersWithoutClasses  []string        `json:"teachersWithoutClasses"`
	TeachersWithoutSubjects []string        `json:"teachersWithoutSubjects"`
	ClassesWithoutSubjects  []string        `json:"classesWithoutSubjects"`
	UnstaffedPairs          []UnstaffedPair `json:"unstaffedPairs"`
}

// Empty reports whether the graph showed no gaps at all.
func (r Report) Empty() bool {
	return len(r.TeachersWithoutClasses) == 0 &&
		len(r.TeachersWithoutSubjects) == 0 &&
		len(r.ClassesWithoutSubjects) == 0 &&
		len(r.UnstaffedPairs) == 0
}

// Diagnose inspects the relationship graph without attempting placement and
// lists every missing linkage: teachers with no classes, teachers with no
// subjects, classes with no subjects, and each offered (class, subject) pair
// that no active teacher can serve.
func Diagnose(graph Graph) Report {
	var report Report
	for _, teacher := range graph.Teachers {
		if len(teacher.Classes) == 0 {
			report.TeachersWithoutClasses = append(report.TeachersWithoutClasses, teacher.ID)
		}
		if len(teacher.Subjects) == 0 {
			report.TeachersWithoutSubjects = append(report.TeachersWithoutSubjects, teacher.ID)
		}
	}
	for _, class := range graph.Classes {
		if len(class.Subjects) == 0 {
			report.ClassesWithoutSubjects = append(report.ClassesWithoutSubjects, class.ID)
			continue
		}
		for _, subjectID := range class.Subjects {
			if _, ok := firstQualified(graph.Teachers, class.ID, subjectID); !ok {
				report.UnstaffedPairs = append(report.UnstaffedPairs, UnstaffedPair{
					ClassID:   class.ID,
					SubjectID: subjectID,
				})
			}
		}
	}
	return report
}
