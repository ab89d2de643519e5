package grading_test

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/mathclass/mathclass-lms/internal/attempt"
	"github.com/mathclass/mathclass-lms/internal/db"
	"github.com/mathclass/mathclass-lms/internal/grading"
	"github.com/mathclass/mathclass-lms/internal/quiz"
	"github.com/mathclass/mathclass-lms/internal/rbac"
)

func TestMaxManualPoints(t *testing.T) {
	cases := []struct {
		name                              string
		passing, otherSum, questionPoints float64
		want                              float64
	}{
		{"passing dominates", 60, 20, 10, 41},
		{"question points floor", 50, 45, 10, 10},
		{"zero points defaults to ten", 5, 0, 0, 10},
		{"default beaten by passing gap", 60, 0, 0, 61},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := grading.MaxManualPoints(tc.passing, tc.otherSum, tc.questionPoints); got != tc.want {
				t.Fatalf("MaxManualPoints(%v, %v, %v) = %v, want %v",
					tc.passing, tc.otherSum, tc.questionPoints, got, tc.want)
			}
		})
	}
}

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	d, err := sql.Open("sqlite", dsn)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	d.SetMaxOpenConns(1)
	if err := db.EnsureSchema(context.Background(), d, db.DriverSQLite); err != nil {
		t.Fatalf("ensure schema: %v", err)
	}
	t.Cleanup(func() { d.Close() })
	return d
}

// finalizedEssay drives a full attempt through submit so exactly one essay
// submission is left requiring manual grading, and returns its id plus the
// attempt's result.
func finalizedEssay(t *testing.T, d *sql.DB, qs quiz.Store) (string, attempt.Result) {
	t.Helper()
	ctx := context.Background()

	qz, err := qs.CreateQuiz(ctx, quiz.Quiz{
		Title:            "Algebra check",
		TimeLimitMinutes: 30,
		PassingScore:     60,
		MaxAttempts:      1,
		CreatedBy:        "teacher-1",
	})
	if err != nil {
		t.Fatalf("create quiz: %v", err)
	}
	mc1, err := qs.CreateQuestion(ctx, quiz.Question{
		QuizID: qz.ID, Position: 0, Text: "2x=6, x=?",
		Type: quiz.TypeMultipleChoice, Options: []string{"2", "3", "4", "6"},
		CorrectAnswer: "3", Points: 10,
	})
	if err != nil {
		t.Fatalf("create question: %v", err)
	}
	mc2, err := qs.CreateQuestion(ctx, quiz.Question{
		QuizID: qz.ID, Position: 1, Text: "x+1=2, x=?",
		Type: quiz.TypeMultipleChoice, Options: []string{"0", "1", "2", "3"},
		CorrectAnswer: "1", Points: 10,
	})
	if err != nil {
		t.Fatalf("create question: %v", err)
	}
	essay, err := qs.CreateQuestion(ctx, quiz.Question{
		QuizID: qz.ID, Position: 2, Text: "Explain your reasoning.",
		Type: quiz.TypeEssay, Points: 10,
	})
	if err != nil {
		t.Fatalf("create question: %v", err)
	}

	svc := attempt.NewService(d, qs, grading.NewDefaultGrader())
	a, err := svc.Start(ctx, qz.ID, "student-1")
	if err != nil {
		t.Fatalf("start attempt: %v", err)
	}
	for _, ans := range []struct{ q, a string }{
		{mc1.ID, "3"}, {mc2.ID, "1"}, {essay.ID, "because both sides divide evenly"},
	} {
		if _, err := svc.SaveAnswer(ctx, a.ID, ans.q, "student-1", attempt.AnswerInput{SelectedAnswer: &ans.a}); err != nil {
			t.Fatalf("save answer: %v", err)
		}
	}
	res, err := svc.Submit(ctx, a.ID)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	var subID string
	if err := d.QueryRow(
		`SELECT id FROM submissions WHERE attempt_id=$1 AND question_id=$2`, a.ID, essay.ID,
	).Scan(&subID); err != nil {
		t.Fatalf("lookup essay submission: %v", err)
	}
	return subID, res
}

func TestListPendingComputesMaxPoints(t *testing.T) {
	d := newTestDB(t)
	qs := quiz.NewSQLStore(d)
	subID, _ := finalizedEssay(t, d, qs)

	gsvc := grading.NewService(d)
	groups, err := gsvc.ListPending(context.Background(), "teacher-1", rbac.RoleTeacher)
	if err != nil {
		t.Fatalf("list pending: %v", err)
	}
	if len(groups) != 1 || len(groups[0].Items) != 1 {
		t.Fatalf("pending = %+v, want one group with one item", groups)
	}
	item := groups[0].Items[0]
	if item.SubmissionID != subID {
		t.Fatalf("submission id = %s, want %s", item.SubmissionID, subID)
	}
	// passing 60, non-essay points 20 -> 60-20+1 = 41 beats the 10-point question
	if item.MaxPoints != 41 {
		t.Fatalf("max points = %v, want 41", item.MaxPoints)
	}

	// another teacher sees nothing
	other, err := gsvc.ListPending(context.Background(), "teacher-2", rbac.RoleTeacher)
	if err != nil {
		t.Fatalf("list pending (other): %v", err)
	}
	if len(other) != 0 {
		t.Fatalf("other teacher's pending = %+v, want empty", other)
	}
}

func TestApplyManualGradeClearsPendingAndRecalculates(t *testing.T) {
	d := newTestDB(t)
	qs := quiz.NewSQLStore(d)
	subID, res := finalizedEssay(t, d, qs)

	if res.PendingGrading != 1 {
		t.Fatalf("result pending = %d, want 1", res.PendingGrading)
	}

	gsvc := grading.NewService(d)
	ctx := context.Background()
	if err := gsvc.ApplyManualGrade(ctx, subID, grading.GradeInput{Score: 35, Feedback: "solid work"}, "teacher-1", rbac.RoleTeacher); err != nil {
		t.Fatalf("apply grade: %v", err)
	}

	var requiresGrading bool
	var manualScore sql.NullFloat64
	var gradedBy sql.NullString
	if err := d.QueryRow(
		`SELECT requires_grading, manual_score, graded_by FROM submissions WHERE id=$1`, subID,
	).Scan(&requiresGrading, &manualScore, &gradedBy); err != nil {
		t.Fatalf("reload submission: %v", err)
	}
	if requiresGrading {
		t.Fatal("requires_grading still set after manual grade")
	}
	if !manualScore.Valid || manualScore.Float64 != 35 {
		t.Fatalf("manual score = %+v, want 35", manualScore)
	}
	if gradedBy.String != "teacher-1" {
		t.Fatalf("graded_by = %q, want teacher-1", gradedBy.String)
	}

	groups, err := gsvc.ListPending(ctx, "teacher-1", rbac.RoleTeacher)
	if err != nil {
		t.Fatalf("list pending: %v", err)
	}
	if len(groups) != 0 {
		t.Fatalf("pending after grading = %+v, want empty", groups)
	}

	var total, pct float64
	var pending int
	if err := d.QueryRow(
		`SELECT total_score, percentage, pending_grading FROM results WHERE id=$1`, res.ID,
	).Scan(&total, &pct, &pending); err != nil {
		t.Fatalf("reload result: %v", err)
	}
	if total != 55 { // 20 auto + 35 manual
		t.Fatalf("total = %v, want 55", total)
	}
	if pending != 0 {
		t.Fatalf("pending = %d, want 0", pending)
	}

	// grading twice is rejected
	err = gsvc.ApplyManualGrade(ctx, subID, grading.GradeInput{Score: 10}, "teacher-1", rbac.RoleTeacher)
	if !errors.Is(err, grading.ErrAlreadyGraded) {
		t.Fatalf("second grade: err = %v, want ErrAlreadyGraded", err)
	}
}

func TestApplyManualGradeBounds(t *testing.T) {
	d := newTestDB(t)
	qs := quiz.NewSQLStore(d)
	subID, _ := finalizedEssay(t, d, qs)

	gsvc := grading.NewService(d)
	ctx := context.Background()
	for _, score := range []float64{-1, 41.5} {
		err := gsvc.ApplyManualGrade(ctx, subID, grading.GradeInput{Score: score}, "teacher-1", rbac.RoleTeacher)
		if !errors.Is(err, grading.ErrScoreOutOfRange) {
			t.Fatalf("score %v: err = %v, want ErrScoreOutOfRange", score, err)
		}
	}
	if err := gsvc.ApplyManualGrade(ctx, "missing", grading.GradeInput{Score: 1}, "teacher-1", rbac.RoleTeacher); !errors.Is(err, grading.ErrSubmissionNotFound) {
		t.Fatalf("missing submission: err = %v, want ErrSubmissionNotFound", err)
	}
}

func TestApplyManualGradeRejectsForeignTeacher(t *testing.T) {
	d := newTestDB(t)
	qs := quiz.NewSQLStore(d)
	subID, _ := finalizedEssay(t, d, qs)

	gsvc := grading.NewService(d)
	ctx := context.Background()

	err := gsvc.ApplyManualGrade(ctx, subID, grading.GradeInput{Score: 5}, "teacher-2", rbac.RoleTeacher)
	if !errors.Is(err, grading.ErrNotQuizOwner) {
		t.Fatalf("foreign teacher grade: err = %v, want ErrNotQuizOwner", err)
	}

	// admins grade anything
	if err := gsvc.ApplyManualGrade(ctx, subID, grading.GradeInput{Score: 5}, "admin", rbac.RoleAdmin); err != nil {
		t.Fatalf("admin grade: %v", err)
	}
}
