package organize

import (
	"slices"
	"sort"
	"time"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/intellego-platform/report-exporter/internal/model"
)

// newCollator builds the Spanish collator used for locale-aware string
// comparison. Collators are not safe for concurrent use, so each sort
// creates its own.
func newCollator() *collate.Collator {
	return collate.New(language.Spanish)
}

// SortStudentsByID returns a copy of students stably sorted by their
// business student ID using Spanish collation. Missing IDs sort as empty
// strings; ties keep their original relative order.
func SortStudentsByID(students []model.Student) []model.Student {
	c := newCollator()
	out := slices.Clone(students)
	sort.SliceStable(out, func(i, j int) bool {
		return c.CompareString(out[i].StudentID, out[j].StudentID) < 0
	})
	return out
}

// SortReportsByDateAndSubject returns a copy of reports stably sorted by
// submission time descending (newest first), then by subject ascending.
func SortReportsByDateAndSubject(reports []model.Report) []model.Report {
	c := newCollator()
	out := slices.Clone(reports)
	sort.SliceStable(out, func(i, j int) bool {
		return reportLess(c, out[i], out[j])
	})
	return out
}

func reportLess(c *collate.Collator, a, b model.Report) bool {
	at := submissionTime(a)
	bt := submissionTime(b)
	if !at.Equal(bt) {
		return at.After(bt)
	}
	return c.CompareString(a.Subject, b.Subject) < 0
}

// submissionTime parses a report's submission timestamp, mapping
// unparseable values to the zero time so ordering stays total.
func submissionTime(r model.Report) time.Time {
	t, err := ParseTimestamp(r.SubmittedAt)
	if err != nil {
		return time.Time{}
	}
	return t
}

// GroupReportsByPath groups organized reports by their full file path.
// Every report maps to exactly one file, so the grouping key is the file
// path rather than the directory. Members of each group are reordered
// newest first, then by subject.
func GroupReportsByPath(reports []model.OrganizedReport) map[string][]model.OrganizedReport {
	groups := make(map[string][]model.OrganizedReport)
	for _, r := range reports {
		groups[r.FullPath] = append(groups[r.FullPath], r)
	}

	c := newCollator()
	for key, group := range groups {
		sort.SliceStable(group, func(i, j int) bool {
			return reportLess(c, group[i].Report, group[j].Report)
		})
		groups[key] = group
	}
	return groups
}
