package model

// ExportedReportJSON is the on-disk representation of a single exported
// report. It is the only persisted artifact and must be re-derivable from
// the same student, report, and export date.
type ExportedReportJSON struct {
	Metadata ExportMetadata `json:"metadata"`
	Data     ExportData     `json:"data"`
}

// ExportMetadata describes where the file came from and where it lives in
// the hierarchy.
type ExportMetadata struct {
	ExportDate       string        `json:"exportDate"`
	Version          string        `json:"version"`
	HierarchicalPath string        `json:"hierarchicalPath"`
	Student          StudentExport `json:"student"`
	Report           ReportExport  `json:"report"`
}

// StudentExport is the student subset embedded in export metadata.
type StudentExport struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Email        string `json:"email"`
	StudentID    string `json:"studentId"`
	Sede         string `json:"sede"`
	AcademicYear string `json:"academicYear"`
	Division     string `json:"division"`
	Curso        string `json:"curso"`
}

// ReportExport is the report subset embedded in export metadata.
type ReportExport struct {
	ID          string `json:"id"`
	Subject     string `json:"subject"`
	WeekStart   string `json:"weekStart"`
	WeekEnd     string `json:"weekEnd"`
	SubmittedAt string `json:"submittedAt"`
	Semana      string `json:"semana"`
}

// ExportData holds the report payload.
type ExportData struct {
	Answers []AnswerExport `json:"answers"`
}

// AnswerExport is one answer in the exported payload.
type AnswerExport struct {
	QuestionID string `json:"questionId"`
	Answer     string `json:"answer"`
}
