package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/intellego-platform/report-exporter/internal/model"
)

// boundaryLayout formats date-range boundaries for lexical comparison
// against stored timestamps. Stored values carry milliseconds
// ("2025-07-28T00:00:00.000Z"), and '.' sorts before 'Z', so a boundary
// without milliseconds would exclude reports submitted at that exact
// instant.
const boundaryLayout = "2006-01-02T15:04:05.000Z07:00"

// ReportFilter narrows the reports returned by Reports. Zero values mean
// no filtering on that dimension.
type ReportFilter struct {
	Start    *time.Time
	End      *time.Time
	Subjects []string
	Sedes    []string
}

// Reports returns progress reports matching the filter, newest first and
// then by subject. When includeAnswers is set, each report's answers are
// fetched with one query per report, ordered by question ID; the N+1
// pattern is bounded by the caller's batch size.
func (s *Store) Reports(ctx context.Context, filter ReportFilter, includeAnswers bool) ([]model.Report, error) {
	query := `SELECT pr.id, pr.userId, pr.subject, pr.weekStart, pr.weekEnd, pr.submittedAt
		FROM ProgressReport pr
		JOIN User u ON pr.userId = u.id
		WHERE 1=1`
	var args []any

	if filter.Start != nil {
		query += ` AND pr.submittedAt >= ?`
		args = append(args, filter.Start.UTC().Format(boundaryLayout))
	}
	if filter.End != nil {
		query += ` AND pr.submittedAt <= ?`
		args = append(args, filter.End.UTC().Format(boundaryLayout))
	}
	if len(filter.Subjects) > 0 {
		query += ` AND pr.subject IN (` + placeholders(len(filter.Subjects)) + `)`
		for _, subject := range filter.Subjects {
			args = append(args, subject)
		}
	}
	if len(filter.Sedes) > 0 {
		query += ` AND u.sede IN (` + placeholders(len(filter.Sedes)) + `)`
		for _, sede := range filter.Sedes {
			args = append(args, sede)
		}
	}
	query += ` ORDER BY pr.submittedAt DESC, pr.subject ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var reports []model.Report
	for rows.Next() {
		var r model.Report
		if err := rows.Scan(&r.ID, &r.UserID, &r.Subject, &r.WeekStart, &r.WeekEnd, &r.SubmittedAt); err != nil {
			return nil, err
		}
		reports = append(reports, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if includeAnswers {
		for i := range reports {
			answers, err := s.answersFor(ctx, reports[i].ID)
			if err != nil {
				return nil, err
			}
			reports[i].Answers = answers
		}
	}
	return reports, nil
}

// ReportWithStudent fetches one report by ID together with its student
// and answers, for selective export.
func (s *Store) ReportWithStudent(ctx context.Context, reportID string) (model.Report, model.Student, error) {
	var r model.Report
	var st model.Student
	var subjects string
	err := s.db.QueryRowContext(ctx,
		`SELECT pr.id, pr.userId, pr.subject, pr.weekStart, pr.weekEnd, pr.submittedAt,
		        u.id, u.name, u.email, u.studentId, u.sede, u.academicYear, u.division, u.subjects
		 FROM ProgressReport pr
		 JOIN User u ON pr.userId = u.id
		 WHERE pr.id = ?`, reportID,
	).Scan(&r.ID, &r.UserID, &r.Subject, &r.WeekStart, &r.WeekEnd, &r.SubmittedAt,
		&st.ID, &st.Name, &st.Email, &st.StudentID, &st.Sede, &st.AcademicYear, &st.Division, &subjects)
	if err != nil {
		return model.Report{}, model.Student{}, err
	}
	st.Subjects = splitSubjects(subjects)

	answers, err := s.answersFor(ctx, r.ID)
	if err != nil {
		return model.Report{}, model.Student{}, err
	}
	r.Answers = answers
	return r, st, nil
}

func (s *Store) answersFor(ctx context.Context, reportID string) ([]model.Answer, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, questionId, answer
		 FROM Answer
		 WHERE progressReportId = ?
		 ORDER BY questionId ASC`, reportID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var answers []model.Answer
	for rows.Next() {
		var a model.Answer
		if err := rows.Scan(&a.ID, &a.QuestionID, &a.Answer); err != nil {
			return nil, err
		}
		answers = append(answers, a)
	}
	return answers, rows.Err()
}

// InsertReport stores a report and its answers in one transaction,
// generating IDs when none are set. Used by dataset import and tests.
func (s *Store) InsertReport(ctx context.Context, r model.Report) (string, error) {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO ProgressReport (id, userId, subject, weekStart, weekEnd, submittedAt)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		r.ID, r.UserID, r.Subject, r.WeekStart, r.WeekEnd, r.SubmittedAt)
	if err != nil {
		return "", err
	}

	for _, a := range r.Answers {
		if a.ID == "" {
			a.ID = uuid.NewString()
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO Answer (id, progressReportId, questionId, answer) VALUES (?, ?, ?, ?)`,
			a.ID, r.ID, a.QuestionID, a.Answer)
		if err != nil {
			return "", err
		}
	}

	return r.ID, tx.Commit()
}

// InsertAnswer attaches one answer to an existing report, generating an
// ID when none is set.
func (s *Store) InsertAnswer(ctx context.Context, reportID string, a model.Answer) (string, error) {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO Answer (id, progressReportId, questionId, answer) VALUES (?, ?, ?, ?)`,
		a.ID, reportID, a.QuestionID, a.Answer)
	if err != nil {
		return "", err
	}
	return a.ID, nil
}

// ReportCount returns the number of stored progress reports.
func (s *Store) ReportCount(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM ProgressReport`).Scan(&count)
	return count, err
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	out := "?"
	for i := 1; i < n; i++ {
		out += ", ?"
	}
	return out
}
