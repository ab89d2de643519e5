package quiz

import (
	"context"
	"database/sql"
	"fmt"
	"testing"

	"github.com/mathclass/mathclass-lms/internal/db"
	"github.com/mathclass/mathclass-lms/internal/rbac"
)

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

func TestCreateQuizDefaults(t *testing.T) {
	s := NewSQLStore(newTestDB(t))
	q, err := s.CreateQuiz(context.Background(), Quiz{Title: "Untimed?", CreatedBy: "teacher-1"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if q.TimeLimitMinutes != 30 {
		t.Fatalf("time limit = %d, want default 30", q.TimeLimitMinutes)
	}
	if q.MaxAttempts != 1 {
		t.Fatalf("max attempts = %d, want default 1", q.MaxAttempts)
	}
}

func TestGetQuizStripsAnswerKeys(t *testing.T) {
	s := NewSQLStore(newTestDB(t))
	ctx := context.Background()

	qz, err := s.CreateQuiz(ctx, Quiz{Title: "Fractions", CreatedBy: "teacher-1"})
	if err != nil {
		t.Fatalf("create quiz: %v", err)
	}
	_, err = s.CreateQuestion(ctx, Question{
		QuizID:        qz.ID,
		Text:          "1/2 + 1/4 = ?",
		Type:          TypeMultipleChoice,
		Options:       []string{"1/2", "3/4", "2/3", "1/4"},
		CorrectAnswer: "3/4",
		Explanation:   "common denominator is 4",
	})
	if err != nil {
		t.Fatalf("create question: %v", err)
	}

	student, err := s.GetQuiz(ctx, qz.ID)
	if err != nil {
		t.Fatalf("get quiz: %v", err)
	}
	if len(student.Questions) != 1 {
		t.Fatalf("questions = %d, want 1", len(student.Questions))
	}
	if got := student.Questions[0]; got.CorrectAnswer != "" || got.Explanation != "" {
		t.Fatalf("answer key leaked to student view: %+v", got)
	}
	if len(student.Questions[0].Options) != 4 {
		t.Fatalf("options = %v, want all four kept", student.Questions[0].Options)
	}

	admin, err := s.GetQuizAdmin(ctx, qz.ID)
	if err != nil {
		t.Fatalf("get quiz admin: %v", err)
	}
	if admin.Questions[0].CorrectAnswer != "3/4" {
		t.Fatalf("admin view missing key: %+v", admin.Questions[0])
	}
}

func TestCreateQuestionCapsOptionsAndAssignsPosition(t *testing.T) {
	s := NewSQLStore(newTestDB(t))
	ctx := context.Background()

	qz, err := s.CreateQuiz(ctx, Quiz{Title: "Geometry", CreatedBy: "teacher-1"})
	if err != nil {
		t.Fatalf("create quiz: %v", err)
	}
	q1, err := s.CreateQuestion(ctx, Question{
		QuizID:   qz.ID,
		Position: PositionAppend,
		Text:     "pick one",
		Type:     TypeMultipleChoice,
		Options:  []string{"a", "b", "c", "d", "e", "f"},
	})
	if err != nil {
		t.Fatalf("create question: %v", err)
	}
	if len(q1.Options) != 4 {
		t.Fatalf("options = %d, want capped at 4", len(q1.Options))
	}
	if q1.Points != 10 {
		t.Fatalf("points = %v, want default 10", q1.Points)
	}

	q2, err := s.CreateQuestion(ctx, Question{QuizID: qz.ID, Position: PositionAppend, Text: "explain", Type: TypeEssay})
	if err != nil {
		t.Fatalf("create second question: %v", err)
	}
	if q2.Position <= q1.Position {
		t.Fatalf("positions not appended in order: %d then %d", q1.Position, q2.Position)
	}
}

func TestCreateQuestionHonorsExplicitZeroPosition(t *testing.T) {
	s := NewSQLStore(newTestDB(t))
	ctx := context.Background()

	qz, err := s.CreateQuiz(ctx, Quiz{Title: "Ordering", CreatedBy: "teacher-1"})
	if err != nil {
		t.Fatalf("create quiz: %v", err)
	}
	first, err := s.CreateQuestion(ctx, Question{QuizID: qz.ID, Position: 0, Text: "first", Type: TypeEssay})
	if err != nil {
		t.Fatalf("create first: %v", err)
	}
	second, err := s.CreateQuestion(ctx, Question{QuizID: qz.ID, Position: 1, Text: "second", Type: TypeEssay})
	if err != nil {
		t.Fatalf("create second: %v", err)
	}
	if first.Position != 0 || second.Position != 1 {
		t.Fatalf("stored positions = %d, %d, want 0, 1", first.Position, second.Position)
	}

	appended, err := s.CreateQuestion(ctx, Question{QuizID: qz.ID, Position: PositionAppend, Text: "last", Type: TypeEssay})
	if err != nil {
		t.Fatalf("create appended: %v", err)
	}
	if appended.Position != 2 {
		t.Fatalf("appended position = %d, want 2", appended.Position)
	}

	got, err := s.GetQuizAdmin(ctx, qz.ID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	var order []string
	for _, q := range got.Questions {
		order = append(order, q.Text)
	}
	if len(order) != 3 || order[0] != "first" || order[1] != "second" || order[2] != "last" {
		t.Fatalf("question order = %v", order)
	}
}

func TestListQuizzesStudentScope(t *testing.T) {
	d := newTestDB(t)
	s := NewSQLStore(d)
	ctx := context.Background()

	// one course the student is enrolled in, one they are not, one practice quiz
	if _, err := d.Exec(`INSERT INTO courses (id, title, teacher_id, published, created_at) VALUES
		('c1','Algebra','teacher-1',1,1), ('c2','Calculus','teacher-2',1,1)`); err != nil {
		t.Fatalf("seed courses: %v", err)
	}
	if _, err := d.Exec(`INSERT INTO enrollments (course_id, student_id, enrolled_at) VALUES ('c1','student-1',1)`); err != nil {
		t.Fatalf("seed enrollment: %v", err)
	}
	for _, q := range []Quiz{
		{Title: "Enrolled", CourseID: "c1", CreatedBy: "teacher-1"},
		{Title: "Not enrolled", CourseID: "c2", CreatedBy: "teacher-2"},
		{Title: "Practice", CreatedBy: "teacher-1"},
	} {
		if _, err := s.CreateQuiz(ctx, q); err != nil {
			t.Fatalf("create quiz %q: %v", q.Title, err)
		}
	}

	got, err := s.ListQuizzes(ctx, ListOpts{ViewerID: "student-1", ViewerRole: rbac.RoleStudent})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("student sees %d quizzes, want 2 (enrolled + practice): %+v", len(got), got)
	}
}
