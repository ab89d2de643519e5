package grading

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mathclass/mathclass-lms/internal/rbac"
)

var (
	ErrSubmissionNotFound = errors.New("submission not found")
	ErrAlreadyGraded      = errors.New("submission already graded")
	ErrScoreOutOfRange    = errors.New("score out of range")
	ErrNotQuizOwner       = errors.New("quiz belongs to another teacher")
)

// MaxManualPoints is the grading-view ceiling for an essay score. The quiz's
// passing score minus the points covered by the other questions, plus one,
// floored at the question's own point value (default 10). A heuristic, not a
// hard rule, but graders rely on it so it is pinned here.
func MaxManualPoints(passingScore, otherPointsSum, questionPoints float64) float64 {
	if questionPoints <= 0 {
		questionPoints = 10
	}
	if v := passingScore - otherPointsSum + 1; v > questionPoints {
		return v
	}
	return questionPoints
}

// PendingSubmission is one essay answer awaiting a teacher.
type PendingSubmission struct {
	SubmissionID  string  `json:"submission_id"`
	AttemptID     string  `json:"attempt_id"`
	QuestionID    string  `json:"question_id"`
	QuestionText  string  `json:"question_text"`
	StudentID     string  `json:"student_id"`
	Answer        string  `json:"answer,omitempty"`
	AnswerFileURL string  `json:"answer_file_url,omitempty"`
	MaxPoints     float64 `json:"max_points"`
	SubmittedAt   int64   `json:"submitted_at,omitempty"`
}

// PendingGroup groups pending submissions under their quiz for display.
type PendingGroup struct {
	QuizID    string              `json:"quiz_id"`
	QuizTitle string              `json:"quiz_title"`
	Items     []PendingSubmission `json:"items"`
}

type GradeInput struct {
	Score    float64 `json:"score"`
	Feedback string  `json:"feedback,omitempty"`
}

// Service owns the manual-grading workflow: list pending essays, apply a
// teacher's score, recalculate the parent result.
type Service struct {
	db *sql.DB
}

func NewService(db *sql.DB) *Service { return &Service{db: db} }

// ListPending returns ungraded essay submissions grouped by quiz. Teachers
// see only quizzes they authored or that sit on their courses; admins see
// everything.
func (s *Service) ListPending(ctx context.Context, viewerID string, role rbac.Role) ([]PendingGroup, error) {
	q := `
		SELECT sub.id, sub.attempt_id, sub.question_id, qn.text, sub.user_id,
		       sub.selected_answer, sub.answer_file_url, a.submitted_at,
		       qz.id, qz.title, qz.passing_score, qn.points
		  FROM submissions sub
		  JOIN questions qn ON qn.id = sub.question_id
		  JOIN quizzes qz ON qz.id = sub.quiz_id
		  JOIN attempts a ON a.id = sub.attempt_id
		 WHERE sub.requires_grading = $1
		   AND sub.graded_at IS NULL
		   AND sub.status = 'finalized'`
	args := []any{true}
	if role != rbac.RoleAdmin {
		q += `
		   AND (qz.created_by = $2
		        OR EXISTS(SELECT 1 FROM courses c WHERE c.id = qz.course_id AND c.teacher_id = $2))`
		args = append(args, viewerID)
	}
	q += ` ORDER BY qz.title, a.submitted_at, sub.id`

	// Non-essay point sums per quiz, fetched before the main cursor so the
	// loop below never needs a second connection from the pool.
	otherPoints := map[string]float64{}
	sums, err := s.db.QueryContext(ctx,
		`SELECT quiz_id, COALESCE(SUM(points),0) FROM questions WHERE type <> 'essay' GROUP BY quiz_id`)
	if err != nil {
		return nil, err
	}
	for sums.Next() {
		var id string
		var sum float64
		if err := sums.Scan(&id, &sum); err != nil {
			sums.Close()
			return nil, err
		}
		otherPoints[id] = sum
	}
	if err := sums.Close(); err != nil {
		return nil, err
	}
	if err := sums.Err(); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	groups := []PendingGroup{}
	byQuiz := map[string]int{}
	for rows.Next() {
		var (
			p            PendingSubmission
			submittedAt  sql.NullInt64
			quizID       string
			quizTitle    string
			passingScore float64
			points       float64
		)
		if err := rows.Scan(&p.SubmissionID, &p.AttemptID, &p.QuestionID, &p.QuestionText, &p.StudentID,
			&p.Answer, &p.AnswerFileURL, &submittedAt,
			&quizID, &quizTitle, &passingScore, &points); err != nil {
			return nil, err
		}
		p.SubmittedAt = submittedAt.Int64
		p.MaxPoints = MaxManualPoints(passingScore, otherPoints[quizID], points)

		i, ok := byQuiz[quizID]
		if !ok {
			groups = append(groups, PendingGroup{QuizID: quizID, QuizTitle: quizTitle})
			i = len(groups) - 1
			byQuiz[quizID] = i
		}
		groups[i].Items = append(groups[i].Items, p)
	}
	return groups, rows.Err()
}

// ApplyManualGrade records the teacher's score and feedback on one submission
// and refreshes the parent result in the same transaction. Teachers may only
// grade submissions on quizzes they authored or that sit on their courses.
func (s *Service) ApplyManualGrade(ctx context.Context, submissionID string, in GradeInput, gradedBy string, role rbac.Role) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var (
		quizID, questionID string
		resultID           sql.NullString
		gradedAt           sql.NullInt64
		requiresGrading    bool
	)
	err = tx.QueryRowContext(ctx,
		`SELECT quiz_id, question_id, result_id, graded_at, requires_grading FROM submissions WHERE id=$1`,
		submissionID).Scan(&quizID, &questionID, &resultID, &gradedAt, &requiresGrading)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrSubmissionNotFound
	}
	if err != nil {
		return err
	}
	if !requiresGrading || gradedAt.Valid {
		return ErrAlreadyGraded
	}

	if role != rbac.RoleAdmin {
		var owns bool
		if err := tx.QueryRowContext(ctx,
			`SELECT EXISTS(
			    SELECT 1 FROM quizzes qz
			     WHERE qz.id = $1
			       AND (qz.created_by = $2
			            OR EXISTS(SELECT 1 FROM courses c WHERE c.id = qz.course_id AND c.teacher_id = $2)))`,
			quizID, gradedBy).Scan(&owns); err != nil {
			return err
		}
		if !owns {
			return ErrNotQuizOwner
		}
	}

	var passingScore, points, otherSum float64
	if err := tx.QueryRowContext(ctx,
		`SELECT qz.passing_score, qn.points FROM quizzes qz JOIN questions qn ON qn.quiz_id = qz.id
		 WHERE qn.id=$1`, questionID).Scan(&passingScore, &points); err != nil {
		return err
	}
	if err := tx.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(points),0) FROM questions WHERE quiz_id=$1 AND type <> 'essay'`,
		quizID).Scan(&otherSum); err != nil {
		return err
	}
	max := MaxManualPoints(passingScore, otherSum, points)
	if in.Score < 0 || in.Score > max {
		return fmt.Errorf("%w: %.1f not in [0, %.1f]", ErrScoreOutOfRange, in.Score, max)
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE submissions
		    SET manual_score=$1, teacher_feedback=$2, graded_by=$3, graded_at=$4, requires_grading=$5
		  WHERE id=$6`,
		in.Score, in.Feedback, gradedBy, time.Now().Unix(), false, submissionID)
	if err != nil {
		return err
	}

	if resultID.Valid {
		if err := recalcTx(ctx, tx, resultID.String); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// Recalculate refreshes a result's totals from its finalized submissions.
func (s *Service) Recalculate(ctx context.Context, resultID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	if err := recalcTx(ctx, tx, resultID); err != nil {
		return err
	}
	return tx.Commit()
}

func recalcTx(ctx context.Context, tx *sql.Tx, resultID string) error {
	var total, pending float64
	if err := tx.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(auto_score + COALESCE(manual_score,0)),0),
		        COALESCE(SUM(CASE WHEN requires_grading AND graded_at IS NULL THEN 1 ELSE 0 END),0)
		   FROM submissions WHERE result_id=$1`, resultID).Scan(&total, &pending); err != nil {
		return err
	}
	var totalPoints float64
	if err := tx.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(qn.points),0)
		   FROM submissions sub JOIN questions qn ON qn.id = sub.question_id
		  WHERE sub.result_id=$1`, resultID).Scan(&totalPoints); err != nil {
		return err
	}
	pct := 0.0
	if totalPoints > 0 {
		pct = total / totalPoints * 100
	}
	_, err := tx.ExecContext(ctx,
		`UPDATE results SET total_score=$1, total_points=$2, percentage=$3, pending_grading=$4 WHERE id=$5`,
		total, totalPoints, pct, int(pending), resultID)
	return err
}
