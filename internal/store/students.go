package store

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/intellego-platform/report-exporter/internal/model"
)

// ActiveStudents returns all active students ordered by their business
// student ID. The comma-delimited subjects column is split into a list.
func (s *Store) ActiveStudents(ctx context.Context) ([]model.Student, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, email, studentId, sede, academicYear, division, subjects
		 FROM User
		 WHERE role = 'STUDENT' AND status = 'ACTIVE'
		 ORDER BY studentId ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var students []model.Student
	for rows.Next() {
		var st model.Student
		var subjects string
		if err := rows.Scan(&st.ID, &st.Name, &st.Email, &st.StudentID, &st.Sede, &st.AcademicYear, &st.Division, &subjects); err != nil {
			return nil, err
		}
		st.Subjects = splitSubjects(subjects)
		students = append(students, st)
	}
	return students, rows.Err()
}

// splitSubjects parses the comma-delimited subjects column, dropping
// empty entries.
func splitSubjects(raw string) []string {
	if raw == "" {
		return nil
	}
	var subjects []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			subjects = append(subjects, trimmed)
		}
	}
	return subjects
}

// InsertStudent stores a student, generating an ID when none is set.
// Used by dataset import and tests.
func (s *Store) InsertStudent(ctx context.Context, st model.Student) (string, error) {
	if st.ID == "" {
		st.ID = uuid.NewString()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO User (id, name, email, studentId, role, status, sede, academicYear, division, subjects)
		 VALUES (?, ?, ?, ?, 'STUDENT', 'ACTIVE', ?, ?, ?, ?)`,
		st.ID, st.Name, st.Email, st.StudentID, st.Sede, st.AcademicYear, st.Division,
		strings.Join(st.Subjects, ","),
	)
	if err != nil {
		return "", err
	}
	return st.ID, nil
}

// SetStudentStatus updates a student's status (ACTIVE, INACTIVE).
func (s *Store) SetStudentStatus(ctx context.Context, id, status string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE User SET status = ? WHERE id = ?`, status, id)
	return err
}
