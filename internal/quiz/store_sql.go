package quiz

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mathclass/mathclass-lms/internal/rbac"
)

var ErrNotFound = errors.New("quiz not found")

type ListOpts struct {
	CourseID   string
	Q          string
	ViewerID   string
	ViewerRole rbac.Role
	Limit      int
	Offset     int
}

type Store interface {
	CreateQuiz(ctx context.Context, q Quiz) (Quiz, error)
	// GetQuiz is student-safe: answer keys and explanations are stripped.
	GetQuiz(ctx context.Context, id string) (Quiz, error)
	// GetQuizAdmin returns the full quiz including keys, for teachers/grading.
	GetQuizAdmin(ctx context.Context, id string) (Quiz, error)
	UpdateQuiz(ctx context.Context, q Quiz) (Quiz, error)
	DeleteQuiz(ctx context.Context, id string) error
	ListQuizzes(ctx context.Context, opts ListOpts) ([]Quiz, error)

	CreateQuestion(ctx context.Context, q Question) (Question, error)
	UpdateQuestion(ctx context.Context, q Question) (Question, error)
	DeleteQuestion(ctx context.Context, id string) error
}

type SQLStore struct {
	db *sql.DB
}

func NewSQLStore(db *sql.DB) *SQLStore { return &SQLStore{db: db} }

func (s *SQLStore) CreateQuiz(ctx context.Context, q Quiz) (Quiz, error) {
	if q.ID == "" {
		q.ID = uuid.NewString()
	}
	if q.TimeLimitMinutes <= 0 {
		q.TimeLimitMinutes = 30
	}
	if q.MaxAttempts <= 0 {
		q.MaxAttempts = 1
	}
	q.CreatedAt = time.Now().Unix()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO quizzes (id, course_id, title, description, time_limit_minutes, passing_score, max_attempts, created_by, created_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		q.ID, nullStr(q.CourseID), q.Title, q.Description, q.TimeLimitMinutes, q.PassingScore, q.MaxAttempts, q.CreatedBy, q.CreatedAt)
	if err != nil {
		return Quiz{}, err
	}
	return q, nil
}

func (s *SQLStore) GetQuiz(ctx context.Context, id string) (Quiz, error) {
	q, err := s.GetQuizAdmin(ctx, id)
	if err != nil {
		return Quiz{}, err
	}
	for i := range q.Questions {
		q.Questions[i].StripKey()
	}
	return q, nil
}

func (s *SQLStore) GetQuizAdmin(ctx context.Context, id string) (Quiz, error) {
	var q Quiz
	var courseID sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT id, course_id, title, description, time_limit_minutes, passing_score, max_attempts, created_by, created_at
		 FROM quizzes WHERE id=$1`, id,
	).Scan(&q.ID, &courseID, &q.Title, &q.Description, &q.TimeLimitMinutes, &q.PassingScore, &q.MaxAttempts, &q.CreatedBy, &q.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Quiz{}, ErrNotFound
	}
	if err != nil {
		return Quiz{}, err
	}
	q.CourseID = courseID.String

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, quiz_id, position, text, type, options_json, correct_answer, points, explanation
		 FROM questions WHERE quiz_id=$1 ORDER BY position, id`, id)
	if err != nil {
		return Quiz{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var qq Question
		var optsJSON string
		if err := rows.Scan(&qq.ID, &qq.QuizID, &qq.Position, &qq.Text, &qq.Type, &optsJSON, &qq.CorrectAnswer, &qq.Points, &qq.Explanation); err != nil {
			return Quiz{}, err
		}
		if err := json.Unmarshal([]byte(optsJSON), &qq.Options); err != nil {
			qq.Options = nil
		}
		q.Questions = append(q.Questions, qq)
	}
	return q, rows.Err()
}

func (s *SQLStore) UpdateQuiz(ctx context.Context, q Quiz) (Quiz, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE quizzes SET course_id=$1, title=$2, description=$3, time_limit_minutes=$4, passing_score=$5, max_attempts=$6
		 WHERE id=$7`,
		nullStr(q.CourseID), q.Title, q.Description, q.TimeLimitMinutes, q.PassingScore, q.MaxAttempts, q.ID)
	if err != nil {
		return Quiz{}, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return Quiz{}, ErrNotFound
	}
	return s.GetQuizAdmin(ctx, q.ID)
}

func (s *SQLStore) DeleteQuiz(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM quizzes WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLStore) ListQuizzes(ctx context.Context, opts ListOpts) ([]Quiz, error) {
	limit := opts.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	offset := opts.Offset
	if offset < 0 {
		offset = 0
	}
	where := []string{"1=1"}
	args := []any{}
	n := 0
	arg := func(v any) string {
		n++
		args = append(args, v)
		return "$" + strconv.Itoa(n)
	}
	if opts.CourseID != "" {
		where = append(where, "q.course_id="+arg(opts.CourseID))
	}
	if qs := strings.TrimSpace(opts.Q); qs != "" {
		where = append(where, "LOWER(q.title) LIKE '%' || LOWER("+arg(qs)+") || '%'")
	}
	switch opts.ViewerRole {
	case rbac.RoleTeacher:
		where = append(where, "q.created_by="+arg(opts.ViewerID))
	case rbac.RoleStudent:
		// quizzes on courses the student is enrolled in, plus course-less practice quizzes
		where = append(where,
			"(q.course_id IS NULL OR EXISTS(SELECT 1 FROM enrollments e WHERE e.course_id=q.course_id AND e.student_id="+arg(opts.ViewerID)+"))")
	}
	sqlStr := `SELECT q.id, q.course_id, q.title, q.description, q.time_limit_minutes, q.passing_score, q.max_attempts, q.created_by, q.created_at
		 FROM quizzes q WHERE ` + strings.Join(where, " AND ") +
		` ORDER BY q.created_at DESC LIMIT ` + arg(limit) + ` OFFSET ` + arg(offset)

	rows, err := s.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Quiz{}
	for rows.Next() {
		var q Quiz
		var courseID sql.NullString
		if err := rows.Scan(&q.ID, &courseID, &q.Title, &q.Description, &q.TimeLimitMinutes, &q.PassingScore, &q.MaxAttempts, &q.CreatedBy, &q.CreatedAt); err != nil {
			return nil, err
		}
		q.CourseID = courseID.String
		out = append(out, q)
	}
	return out, rows.Err()
}

func (s *SQLStore) CreateQuestion(ctx context.Context, q Question) (Question, error) {
	if q.ID == "" {
		q.ID = uuid.NewString()
	}
	if q.Points <= 0 {
		q.Points = 10
	}
	if len(q.Options) > 4 {
		q.Options = q.Options[:4]
	}
	if q.Position < 0 {
		// PositionAppend: place after the current last question. Zero is a
		// real position, so the sentinel is negative.
		if err := s.db.QueryRowContext(ctx,
			`SELECT COALESCE(MAX(position),-1)+1 FROM questions WHERE quiz_id=$1`, q.QuizID,
		).Scan(&q.Position); err != nil {
			return Question{}, err
		}
	}
	optsJSON, _ := json.Marshal(q.Options)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO questions (id, quiz_id, position, text, type, options_json, correct_answer, points, explanation)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		q.ID, q.QuizID, q.Position, q.Text, q.Type, string(optsJSON), q.CorrectAnswer, q.Points, q.Explanation)
	if err != nil {
		return Question{}, err
	}
	return q, nil
}

func (s *SQLStore) UpdateQuestion(ctx context.Context, q Question) (Question, error) {
	if len(q.Options) > 4 {
		q.Options = q.Options[:4]
	}
	optsJSON, _ := json.Marshal(q.Options)
	res, err := s.db.ExecContext(ctx,
		`UPDATE questions
		    SET position=(CASE WHEN $1 < 0 THEN position ELSE $1 END),
		        text=$2, type=$3, options_json=$4, correct_answer=$5, points=$6, explanation=$7
		  WHERE id=$8`,
		q.Position, q.Text, q.Type, string(optsJSON), q.CorrectAnswer, q.Points, q.Explanation, q.ID)
	if err != nil {
		return Question{}, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return Question{}, ErrNotFound
	}
	if q.Position < 0 {
		if err := s.db.QueryRowContext(ctx,
			`SELECT position FROM questions WHERE id=$1`, q.ID).Scan(&q.Position); err != nil {
			return Question{}, err
		}
	}
	return q, nil
}

func (s *SQLStore) DeleteQuestion(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM questions WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func nullStr(s string) any {
	if s == "" {
		return nil
	}
	return s
}
