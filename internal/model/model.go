package model

import "time"

// Student is an active student record as read from the User table.
// ID is the opaque join key to reports; StudentID is the human-meaningful
// business identifier (expected format EST-YYYY-NNN) embedded in paths.
type Student struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Email        string   `json:"email"`
	StudentID    string   `json:"studentId"`
	Sede         string   `json:"sede"`
	AcademicYear string   `json:"academicYear"`
	Division     string   `json:"division"`
	Subjects     []string `json:"subjects"`
}

// Answer is a single answer attached to a progress report.
type Answer struct {
	ID         string `json:"id"`
	QuestionID string `json:"questionId"`
	Answer     string `json:"answer"`
}

// Report is a weekly progress report. Date fields are kept as the ISO-8601
// strings stored in the database; the validator checks that they parse.
type Report struct {
	ID          string   `json:"id"`
	UserID      string   `json:"userId"`
	Subject     string   `json:"subject"`
	WeekStart   string   `json:"weekStart"`
	WeekEnd     string   `json:"weekEnd"`
	SubmittedAt string   `json:"submittedAt"`
	Answers     []Answer `json:"answers"`
}

// HierarchicalPath is the six-level directory location of an exported
// report: sede/año/materia/curso/alumno/semana. Each field is normalized
// independently and no field may be empty.
type HierarchicalPath struct {
	Sede    string `json:"sede"`
	Anio    string `json:"año"`
	Materia string `json:"materia"`
	Curso   string `json:"curso"`
	Alumno  string `json:"alumno"`
	Semana  string `json:"semana"`
}

// OrganizedReport joins one student and one report with the derived
// hierarchical path and target file name. It lives only for the duration
// of an export run.
type OrganizedReport struct {
	Student  Student
	Report   Report
	Path     HierarchicalPath
	FileName string
	FullPath string
}

// ValidationResult carries the outcome of a validation pass. Errors block
// persistence of the record; warnings are counted but never stop processing.
type ValidationResult struct {
	IsValid  bool
	Errors   []string
	Warnings []string
}

// ProcessingMetrics is the finished snapshot of one monitored operation.
type ProcessingMetrics struct {
	Operation         string        `json:"operation"`
	StartTime         time.Time     `json:"startTime"`
	EndTime           time.Time     `json:"endTime"`
	Duration          time.Duration `json:"duration"`
	RecordsProcessed  int64         `json:"recordsProcessed"`
	ErrorsEncountered int64         `json:"errorsEncountered"`
	WarningsGenerated int64         `json:"warningsGenerated"`
}
