package attempt

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/mathclass/mathclass-lms/internal/grading"
	"github.com/mathclass/mathclass-lms/internal/quiz"
)

var (
	ErrNotFound        = errors.New("attempt not found")
	ErrNotOwner        = errors.New("attempt belongs to another user")
	ErrNotEnrolled     = errors.New("not enrolled in the quiz's course")
	ErrClosed          = errors.New("attempt already submitted")
	ErrMaxAttempts     = errors.New("max attempts reached")
	ErrSubmitInFlight  = errors.New("submit already in progress")
	ErrResultNotFound  = errors.New("result not found")
	ErrUnknownQuestion = errors.New("question not part of attempt")
)

// Service drives the attempt lifecycle: start, save answers, countdown,
// finalize into exactly one result. The server clock is authoritative for the
// deadline; an expired attempt is finalized lazily on the next touch.
type Service struct {
	db       *sql.DB
	quizzes  quiz.Store
	grader   grading.Grader
	sessions *Registry
	now      func() time.Time
}

func NewService(db *sql.DB, quizzes quiz.Store, grader grading.Grader) *Service {
	return &Service{
		db:       db,
		quizzes:  quizzes,
		grader:   grader,
		sessions: NewRegistry(),
		now:      time.Now,
	}
}

// Start opens a new attempt: one row in attempts, one draft submission per
// question, remaining time seeded from the quiz's time limit. An attempt
// already in progress for this (user, quiz) is resumed, not duplicated. A
// quiz on a course is only startable by students enrolled in that course;
// course-less practice quizzes are open to everyone.
func (s *Service) Start(ctx context.Context, quizID, userID string) (Attempt, error) {
	qz, err := s.quizzes.GetQuizAdmin(ctx, quizID)
	if err != nil {
		return Attempt{}, err
	}
	if qz.CourseID != "" {
		var enrolled bool
		if err := s.db.QueryRowContext(ctx,
			`SELECT EXISTS(SELECT 1 FROM enrollments WHERE course_id=$1 AND student_id=$2)`,
			qz.CourseID, userID).Scan(&enrolled); err != nil {
			return Attempt{}, err
		}
		if !enrolled {
			return Attempt{}, ErrNotEnrolled
		}
	}

	// resume an open attempt if there is one
	existing, err := s.openAttempt(ctx, quizID, userID)
	if err == nil {
		return s.withRemaining(ctx, existing)
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return Attempt{}, err
	}

	// enforce max attempts against finalized results
	var used int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM results WHERE quiz_id=$1 AND user_id=$2`, quizID, userID,
	).Scan(&used); err != nil {
		return Attempt{}, err
	}
	if qz.MaxAttempts > 0 && used >= qz.MaxAttempts {
		return Attempt{}, ErrMaxAttempts
	}

	now := s.now()
	a := Attempt{
		ID:        uuid.NewString(),
		QuizID:    quizID,
		UserID:    userID,
		Status:    StatusInProgress,
		StartedAt: now.Unix(),
		Deadline:  now.Add(time.Duration(qz.TimeLimitMinutes) * time.Minute).Unix(),
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Attempt{}, err
	}
	defer func() { _ = tx.Rollback() }()

	// The partial unique index on open attempts turns a concurrent Start
	// into an insert error here; whoever lost resumes the winner's attempt.
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO attempts (id, quiz_id, user_id, status, started_at, deadline)
		 VALUES ($1,$2,$3,$4,$5,$6)`,
		a.ID, a.QuizID, a.UserID, a.Status, a.StartedAt, a.Deadline); err != nil {
		_ = tx.Rollback()
		return s.resumeAfterInsertRace(ctx, quizID, userID, err)
	}
	for _, qn := range qz.Questions {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO submissions (id, attempt_id, quiz_id, question_id, user_id, status)
			 VALUES ($1,$2,$3,$4,$5,$6)`,
			uuid.NewString(), a.ID, a.QuizID, qn.ID, userID, SubmissionDraft); err != nil {
			return Attempt{}, err
		}
	}
	if err := tx.Commit(); err != nil {
		return s.resumeAfterInsertRace(ctx, quizID, userID, err)
	}

	s.sessions.GetOrCreate(a.ID, a.QuizID, a.UserID, time.Unix(a.Deadline, 0))
	a.RemainingSec = qz.TimeLimitMinutes * 60
	return a, nil
}

func (s *Service) openAttempt(ctx context.Context, quizID, userID string) (Attempt, error) {
	var a Attempt
	err := s.db.QueryRowContext(ctx,
		`SELECT id, quiz_id, user_id, status, started_at, deadline FROM attempts
		 WHERE quiz_id=$1 AND user_id=$2 AND status=$3`,
		quizID, userID, StatusInProgress,
	).Scan(&a.ID, &a.QuizID, &a.UserID, &a.Status, &a.StartedAt, &a.Deadline)
	return a, err
}

func (s *Service) resumeAfterInsertRace(ctx context.Context, quizID, userID string, cause error) (Attempt, error) {
	if a, err := s.openAttempt(ctx, quizID, userID); err == nil {
		return s.withRemaining(ctx, a)
	}
	return Attempt{}, cause
}

// Get returns the attempt with server-derived remaining time; an expired
// attempt is auto-submitted first.
func (s *Service) Get(ctx context.Context, attemptID string) (Attempt, error) {
	a, err := s.load(ctx, attemptID)
	if err != nil {
		return Attempt{}, err
	}
	return s.withRemaining(ctx, a)
}

// Remaining reports the authoritative remaining seconds for a running
// attempt; 0 means the attempt is (now) finalized.
func (s *Service) Remaining(ctx context.Context, attemptID string) (int, error) {
	a, err := s.Get(ctx, attemptID)
	if err != nil {
		return 0, err
	}
	return a.RemainingSec, nil
}

// SaveAnswer updates the draft submission for one question in place. Past the
// deadline the attempt is finalized instead and the save is rejected.
func (s *Service) SaveAnswer(ctx context.Context, attemptID, questionID, userID string, in AnswerInput) (Submission, error) {
	a, err := s.load(ctx, attemptID)
	if err != nil {
		return Submission{}, err
	}
	if a.UserID != userID {
		return Submission{}, ErrNotOwner
	}
	if a.Status != StatusInProgress {
		return Submission{}, ErrClosed
	}
	if s.expired(a) {
		_, _ = s.Submit(ctx, attemptID)
		return Submission{}, ErrClosed
	}

	// Omitted fields keep their stored value: a text-only save must not
	// wipe an earlier file upload, and vice versa.
	res, err := s.db.ExecContext(ctx,
		`UPDATE submissions
		    SET selected_answer=COALESCE($1, selected_answer),
		        answer_file_url=COALESCE($2, answer_file_url)
		  WHERE attempt_id=$3 AND question_id=$4 AND status=$5`,
		in.SelectedAnswer, in.AnswerFileURL, attemptID, questionID, SubmissionDraft)
	if err != nil {
		return Submission{}, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return Submission{}, ErrUnknownQuestion
	}
	return s.getSubmission(ctx, attemptID, questionID)
}

// Submit finalizes the attempt. The per-session one-shot guard plus a status
// check inside the transaction make duplicate calls (manual submit racing the
// timeout, repeated timer callbacks) finalize at most once; the UNIQUE
// constraint on results(attempt_id) backstops both. On failure nothing is
// cleared and the guard re-arms so the caller can retry.
func (s *Service) Submit(ctx context.Context, attemptID string) (Result, error) {
	a, err := s.load(ctx, attemptID)
	if err != nil {
		return Result{}, err
	}
	if a.Status != StatusInProgress {
		return s.ResultForAttempt(ctx, attemptID)
	}

	sess := s.sessions.GetOrCreate(a.ID, a.QuizID, a.UserID, time.Unix(a.Deadline, 0))
	if !sess.beginSubmit() {
		if r, err := s.ResultForAttempt(ctx, attemptID); err == nil {
			return r, nil
		}
		return Result{}, ErrSubmitInFlight
	}

	r, err := s.finalize(ctx, a)
	if err != nil {
		sess.resetSubmit()
		return Result{}, err
	}
	s.sessions.Remove(attemptID)
	return r, nil
}

func (s *Service) finalize(ctx context.Context, a Attempt) (Result, error) {
	qz, err := s.quizzes.GetQuizAdmin(ctx, a.QuizID)
	if err != nil {
		return Result{}, err
	}
	questions := map[string]quiz.Question{}
	totalPoints := 0.0
	for _, qn := range qz.Questions {
		questions[qn.ID] = qn
		totalPoints += qn.Points
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Result{}, err
	}
	defer func() { _ = tx.Rollback() }()

	now := s.now().Unix()
	res, err := tx.ExecContext(ctx,
		`UPDATE attempts SET status=$1, submitted_at=$2 WHERE id=$3 AND status=$4`,
		StatusSubmitted, now, a.ID, StatusInProgress)
	if err != nil {
		return Result{}, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		// lost the race to another finalizer; release the tx's connection
		// before reading the winner's result
		_ = tx.Rollback()
		return s.ResultForAttempt(ctx, a.ID)
	}

	rows, err := tx.QueryContext(ctx,
		`SELECT id, question_id, selected_answer FROM submissions WHERE attempt_id=$1 AND status=$2`,
		a.ID, SubmissionDraft)
	if err != nil {
		return Result{}, err
	}
	type drafted struct{ id, questionID, answer string }
	drafts := []drafted{}
	for rows.Next() {
		var d drafted
		if err := rows.Scan(&d.id, &d.questionID, &d.answer); err != nil {
			rows.Close()
			return Result{}, err
		}
		drafts = append(drafts, d)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return Result{}, err
	}

	resultID := uuid.NewString()
	totalScore := 0.0
	pending := 0
	for _, d := range drafts {
		qn, ok := questions[d.questionID]
		if !ok {
			continue
		}
		gr, err := s.grader.Grade(ctx, grading.Q{Type: qn.Type, Points: qn.Points, CorrectAnswer: qn.CorrectAnswer}, d.answer)
		if err != nil {
			return Result{}, err
		}
		totalScore += gr.AutoPoints
		if gr.NeedsManual {
			pending++
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE submissions SET status=$1, requires_grading=$2, auto_score=$3, result_id=$4 WHERE id=$5`,
			SubmissionFinalized, gr.NeedsManual, gr.AutoPoints, resultID, d.id); err != nil {
			return Result{}, err
		}
	}

	pct := 0.0
	if totalPoints > 0 {
		pct = totalScore / totalPoints * 100
	}
	r := Result{
		ID:             resultID,
		AttemptID:      a.ID,
		QuizID:         a.QuizID,
		UserID:         a.UserID,
		TotalScore:     totalScore,
		TotalPoints:    totalPoints,
		Percentage:     pct,
		PendingGrading: pending,
		CompletedAt:    now,
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO results (id, attempt_id, quiz_id, user_id, total_score, total_points, percentage, pending_grading, completed_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		r.ID, r.AttemptID, r.QuizID, r.UserID, r.TotalScore, r.TotalPoints, r.Percentage, r.PendingGrading, r.CompletedAt); err != nil {
		return Result{}, err
	}
	if err := tx.Commit(); err != nil {
		return Result{}, err
	}
	return r, nil
}

// ---- reads ----

func (s *Service) load(ctx context.Context, attemptID string) (Attempt, error) {
	var a Attempt
	var submittedAt sql.NullInt64
	err := s.db.QueryRowContext(ctx,
		`SELECT id, quiz_id, user_id, status, started_at, deadline, submitted_at FROM attempts WHERE id=$1`,
		attemptID,
	).Scan(&a.ID, &a.QuizID, &a.UserID, &a.Status, &a.StartedAt, &a.Deadline, &submittedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Attempt{}, ErrNotFound
	}
	if err != nil {
		return Attempt{}, err
	}
	if submittedAt.Valid {
		a.SubmittedAt = &submittedAt.Int64
	}
	return a, nil
}

func (s *Service) expired(a Attempt) bool {
	return a.Status == StatusInProgress && s.now().Unix() >= a.Deadline
}

func (s *Service) withRemaining(ctx context.Context, a Attempt) (Attempt, error) {
	if s.expired(a) {
		if _, err := s.Submit(ctx, a.ID); err != nil && !errors.Is(err, ErrSubmitInFlight) {
			return Attempt{}, err
		}
		return s.load(ctx, a.ID)
	}
	if a.Status == StatusInProgress {
		if rem := a.Deadline - s.now().Unix(); rem > 0 {
			a.RemainingSec = int(rem)
		}
	}
	return a, nil
}

func (s *Service) getSubmission(ctx context.Context, attemptID, questionID string) (Submission, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, attempt_id, quiz_id, question_id, user_id, selected_answer, answer_file_url,
		        status, requires_grading, auto_score, manual_score, teacher_feedback, graded_by, graded_at, result_id
		   FROM submissions WHERE attempt_id=$1 AND question_id=$2`, attemptID, questionID)
	return scanSubmission(row)
}

// Submissions lists the attempt's rows in question order.
func (s *Service) Submissions(ctx context.Context, attemptID string) ([]Submission, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT sub.id, sub.attempt_id, sub.quiz_id, sub.question_id, sub.user_id, sub.selected_answer, sub.answer_file_url,
		        sub.status, sub.requires_grading, sub.auto_score, sub.manual_score, sub.teacher_feedback, sub.graded_by, sub.graded_at, sub.result_id
		   FROM submissions sub
		   JOIN questions qn ON qn.id = sub.question_id
		  WHERE sub.attempt_id=$1 ORDER BY qn.position, qn.id`, attemptID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Submission{}
	for rows.Next() {
		sub, err := scanSubmission(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sub)
	}
	return out, rows.Err()
}

type rowScanner interface{ Scan(dest ...any) error }

func scanSubmission(row rowScanner) (Submission, error) {
	var sub Submission
	var manualScore sql.NullFloat64
	var gradedBy, resultID sql.NullString
	var gradedAt sql.NullInt64
	err := row.Scan(&sub.ID, &sub.AttemptID, &sub.QuizID, &sub.QuestionID, &sub.UserID,
		&sub.SelectedAnswer, &sub.AnswerFileURL, &sub.Status, &sub.RequiresGrading,
		&sub.AutoScore, &manualScore, &sub.TeacherFeedback, &gradedBy, &gradedAt, &resultID)
	if errors.Is(err, sql.ErrNoRows) {
		return Submission{}, ErrNotFound
	}
	if err != nil {
		return Submission{}, err
	}
	if manualScore.Valid {
		sub.ManualScore = &manualScore.Float64
	}
	if gradedBy.Valid {
		sub.GradedBy = &gradedBy.String
	}
	if gradedAt.Valid {
		sub.GradedAt = &gradedAt.Int64
	}
	if resultID.Valid {
		sub.ResultID = &resultID.String
	}
	return sub, nil
}

// GetResult fetches one result row.
func (s *Service) GetResult(ctx context.Context, resultID string) (Result, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, attempt_id, quiz_id, user_id, total_score, total_points, percentage, pending_grading, completed_at
		   FROM results WHERE id=$1`, resultID)
	return scanResult(row)
}

// ResultForAttempt fetches the (single) result of a finalized attempt.
func (s *Service) ResultForAttempt(ctx context.Context, attemptID string) (Result, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, attempt_id, quiz_id, user_id, total_score, total_points, percentage, pending_grading, completed_at
		   FROM results WHERE attempt_id=$1`, attemptID)
	return scanResult(row)
}

// ListResults lists a user's results, optionally filtered by quiz.
func (s *Service) ListResults(ctx context.Context, userID, quizID string) ([]Result, error) {
	q := `SELECT id, attempt_id, quiz_id, user_id, total_score, total_points, percentage, pending_grading, completed_at
	        FROM results WHERE user_id=$1`
	args := []any{userID}
	if quizID != "" {
		q += ` AND quiz_id=$2`
		args = append(args, quizID)
	}
	q += ` ORDER BY completed_at DESC`
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Result{}
	for rows.Next() {
		r, err := scanResult(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func scanResult(row rowScanner) (Result, error) {
	var r Result
	err := row.Scan(&r.ID, &r.AttemptID, &r.QuizID, &r.UserID, &r.TotalScore, &r.TotalPoints,
		&r.Percentage, &r.PendingGrading, &r.CompletedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Result{}, ErrResultNotFound
	}
	if err != nil {
		return Result{}, err
	}
	return r, nil
}

// SetClock overrides the service clock; tests only.
func (s *Service) SetClock(now func() time.Time) { s.now = now }
