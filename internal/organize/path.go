package organize

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/intellego-platform/report-exporter/internal/model"
)

// monthNames maps UTC month indices to Spanish month names used in semana
// labels.
var monthNames = [12]string{
	"enero", "febrero", "marzo", "abril", "mayo", "junio",
	"julio", "agosto", "septiembre", "octubre", "noviembre", "diciembre",
}

// timestampLayouts are the accepted formats for date-like report fields,
// tried in order.
var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseTimestamp parses an ISO-8601-ish timestamp string as stored in the
// database. Zoneless layouts are interpreted as UTC.
func ParseTimestamp(s string) (time.Time, error) {
	value := strings.TrimSpace(s)
	if value == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

// GenerateCurso combines division and academic year into a curso
// identifier such as "d-5to-ano". Either input missing yields
// "unknown-curso".
func GenerateCurso(division, academicYear string) string {
	if division == "" || academicYear == "" {
		return "unknown-curso"
	}
	return Normalize(division) + "-" + Normalize(academicYear)
}

// GenerateAlumno combines the business student ID with the normalized
// student name, e.g. "EST-2025-001_maria-gonzalez". The student ID keeps
// its canonical casing and is not normalized.
func GenerateAlumno(studentID, studentName string) string {
	if studentID == "" {
		return "unknown-student"
	}
	return studentID + "_" + NormalizeStudentName(studentName)
}

// WeekOfMonth returns the month-relative week index of the given date's
// UTC day: days 1-7 are week 1, days 8-14 week 2, and so on up to week 5.
// Week boundaries reset every calendar month regardless of weekday.
func WeekOfMonth(date time.Time) int {
	return (date.UTC().Day() + 6) / 7
}

// GenerateSemana builds the "{month}-semana-{n}" label for a report date
// using its UTC calendar fields.
func GenerateSemana(date time.Time) string {
	month := int(date.UTC().Month())
	name := "unknown-month"
	if month >= 1 && month <= 12 {
		name = monthNames[month-1]
	}
	return fmt.Sprintf("%s-semana-%d", name, WeekOfMonth(date))
}

// GenerateHierarchicalPath derives all six path segments for a report.
// Missing student attributes default to their "unknown-*" sentinel before
// normalization so degraded records still produce a complete path and are
// flagged by the path validator.
func GenerateHierarchicalPath(student model.Student, subject string, reportDate time.Time) model.HierarchicalPath {
	sede := student.Sede
	if sede == "" {
		sede = "unknown-sede"
	}
	year := student.AcademicYear
	if year == "" {
		year = "unknown-year"
	}
	division := student.Division
	if division == "" {
		division = "unknown-division"
	}
	studentID := student.StudentID
	if studentID == "" {
		studentID = "unknown-id"
	}
	name := student.Name
	if name == "" {
		name = "Unknown Student"
	}

	return model.HierarchicalPath{
		Sede:    NormalizeSede(sede),
		Anio:    Normalize(year),
		Materia: NormalizeSubject(subject),
		Curso:   GenerateCurso(division, year),
		Alumno:  GenerateAlumno(studentID, name),
		Semana:  GenerateSemana(reportDate),
	}
}

// FilePath joins the six path segments in the fixed hierarchy order
// sede/año/materia/curso/alumno/semana. This order is the hierarchy
// contract and must never change.
func FilePath(p model.HierarchicalPath) string {
	return strings.Join([]string{p.Sede, p.Anio, p.Materia, p.Curso, p.Alumno, p.Semana}, "/")
}

// FileName builds the "{YYYY-MM-DD}_{subject}_reporte.json" file name from
// the report date's UTC calendar day.
func FileName(date time.Time, subject string) string {
	return date.UTC().Format("2006-01-02") + "_" + NormalizeSubject(subject) + "_reporte.json"
}

// PathCache memoizes hierarchical paths within one export run. The same
// student, subject, and calendar day recur across many reports, and path
// derivation is pure, so recomputation is wasted work. A cache instance
// belongs to exactly one run; it is never shared across runs.
type PathCache struct {
	mu    sync.Mutex
	paths map[string]model.HierarchicalPath
}

// NewPathCache creates an empty per-run path cache.
func NewPathCache() *PathCache {
	return &PathCache{paths: make(map[string]model.HierarchicalPath)}
}

// CacheKey builds the composite memoization key for a student, subject,
// and UTC calendar day.
func CacheKey(student model.Student, subject string, date time.Time) string {
	return strings.Join([]string{
		student.Sede,
		student.AcademicYear,
		subject,
		student.Division,
		student.StudentID,
		date.UTC().Format("2006-01-02"),
	}, "|")
}

// Get returns the memoized path for the student/subject/day combination,
// deriving and storing it on first use. Safe for concurrent batches.
func (c *PathCache) Get(student model.Student, subject string, reportDate time.Time) model.HierarchicalPath {
	key := CacheKey(student, subject, reportDate)

	c.mu.Lock()
	defer c.mu.Unlock()
	if p, ok := c.paths[key]; ok {
		return p
	}
	p := GenerateHierarchicalPath(student, subject, reportDate)
	c.paths[key] = p
	return p
}

// Len reports the number of memoized paths.
func (c *PathCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.paths)
}
