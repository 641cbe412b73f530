package organize

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/intellego-platform/report-exporter/internal/model"
)

var (
	emailPattern     = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	studentIDPattern = regexp.MustCompile(`^EST-\d{4}-\d{3}$`)
)

// ValidateStudent checks the structural integrity of a student record.
// Missing required fields are errors; suspicious-but-present values
// (placeholder email, off-format student ID) are warnings so the record
// is still exported for human review.
func ValidateStudent(student *model.Student) model.ValidationResult {
	var errors, warnings []string

	if student == nil {
		errors = append(errors, "student data is missing")
		return model.ValidationResult{IsValid: false, Errors: errors}
	}

	if student.ID == "" {
		errors = append(errors, "student id is required")
	}
	if student.Name == "" {
		errors = append(errors, "student name is required")
	}
	if student.Email == "" {
		errors = append(errors, "student email is required")
	} else if !emailPattern.MatchString(student.Email) {
		warnings = append(warnings, "student email format appears invalid")
	}
	if student.StudentID == "" {
		errors = append(errors, "student studentId is required")
	} else if !studentIDPattern.MatchString(student.StudentID) {
		warnings = append(warnings, "student studentId does not follow expected format (EST-YYYY-NNN)")
	}

	return model.ValidationResult{
		IsValid:  len(errors) == 0,
		Errors:   errors,
		Warnings: warnings,
	}
}

// ValidateReport checks the structural integrity of a report record.
// Unparseable date fields are errors because the derived path would be
// meaningless; per-answer problems are warnings.
func ValidateReport(report *model.Report) model.ValidationResult {
	var errors, warnings []string

	if report == nil {
		errors = append(errors, "report data is missing")
		return model.ValidationResult{IsValid: false, Errors: errors}
	}

	if report.ID == "" {
		errors = append(errors, "report id is required")
	}
	if report.UserID == "" {
		errors = append(errors, "report userId is required")
	}
	if report.Subject == "" {
		errors = append(errors, "report subject is required")
	}

	for _, field := range []struct {
		name, value string
	}{
		{"weekStart", report.WeekStart},
		{"weekEnd", report.WeekEnd},
		{"submittedAt", report.SubmittedAt},
	} {
		if field.value == "" {
			errors = append(errors, fmt.Sprintf("report %s is required", field.name))
		} else if _, err := ParseTimestamp(field.value); err != nil {
			errors = append(errors, fmt.Sprintf("report %s must be a valid date: %v", field.name, err))
		}
	}

	for i, answer := range report.Answers {
		if answer.ID == "" {
			warnings = append(warnings, fmt.Sprintf("answer %d: id is missing", i))
		}
		if answer.QuestionID == "" {
			warnings = append(warnings, fmt.Sprintf("answer %d: questionId is missing", i))
		}
		if answer.Answer == "" {
			warnings = append(warnings, fmt.Sprintf("answer %d: answer is missing", i))
		}
	}

	return model.ValidationResult{
		IsValid:  len(errors) == 0,
		Errors:   errors,
		Warnings: warnings,
	}
}

// ValidatePath checks a derived hierarchical path. Empty segments are
// errors; segments carrying an "unknown" sentinel flag degraded source
// data and are warnings only.
func ValidatePath(path model.HierarchicalPath) model.ValidationResult {
	var errors, warnings []string

	for _, segment := range []struct {
		name, value string
	}{
		{"sede", path.Sede},
		{"año", path.Anio},
		{"materia", path.Materia},
		{"curso", path.Curso},
		{"alumno", path.Alumno},
		{"semana", path.Semana},
	} {
		if segment.value == "" {
			errors = append(errors, fmt.Sprintf("hierarchical path %s is required", segment.name))
		} else if strings.Contains(segment.value, "unknown") {
			warnings = append(warnings, fmt.Sprintf("hierarchical path %s contains unknown value: %s", segment.name, segment.value))
		}
	}

	return model.ValidationResult{
		IsValid:  len(errors) == 0,
		Errors:   errors,
		Warnings: warnings,
	}
}
