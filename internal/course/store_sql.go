package course

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mathclass/mathclass-lms/internal/rbac"
)

type SQLStore struct {
	db *sql.DB
}

func NewSQLStore(db *sql.DB) *SQLStore { return &SQLStore{db: db} }

// ---- courses ----

func (s *SQLStore) CreateCourse(ctx context.Context, c Course) (Course, error) {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	c.CreatedAt = time.Now().Unix()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO courses (id, title, description, teacher_id, published, created_at)
		 VALUES ($1,$2,$3,$4,$5,$6)`,
		c.ID, c.Title, c.Description, c.TeacherID, c.Published, c.CreatedAt)
	if err != nil {
		return Course{}, err
	}
	return c, nil
}

func (s *SQLStore) GetCourse(ctx context.Context, id string) (Course, error) {
	var c Course
	err := s.db.QueryRowContext(ctx,
		`SELECT id, title, description, teacher_id, published, created_at FROM courses WHERE id=$1`, id,
	).Scan(&c.ID, &c.Title, &c.Description, &c.TeacherID, &c.Published, &c.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Course{}, ErrNotFound
	}
	if err != nil {
		return Course{}, err
	}
	return c, nil
}

func (s *SQLStore) UpdateCourse(ctx context.Context, c Course) (Course, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE courses SET title=$1, description=$2, published=$3 WHERE id=$4`,
		c.Title, c.Description, c.Published, c.ID)
	if err != nil {
		return Course{}, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return Course{}, ErrNotFound
	}
	return s.GetCourse(ctx, c.ID)
}

// DeleteCourse removes the course; lessons and enrollments go with it via FK
// cascade, quizzes keep existing with course_id set NULL.
func (s *SQLStore) DeleteCourse(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM courses WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// ListCourses scopes by viewer: teachers see their own courses, students see
// published courses (enrolled or open for enrollment), admins see all.
func (s *SQLStore) ListCourses(ctx context.Context, opts ListOpts) ([]Course, error) {
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

	switch opts.ViewerRole {
	case rbac.RoleTeacher:
		where = append(where, "teacher_id="+arg(opts.ViewerID))
	case rbac.RoleStudent:
		where = append(where, "published="+arg(true))
	case rbac.RoleAdmin:
		// no scoping
	default:
		where = append(where, "published="+arg(true))
	}
	if q := strings.TrimSpace(opts.Q); q != "" {
		where = append(where, "LOWER(title) LIKE '%' || LOWER("+arg(q)+") || '%'")
	}

	sqlStr := `SELECT id, title, description, teacher_id, published, created_at
		 FROM courses WHERE ` + strings.Join(where, " AND ") +
		` ORDER BY created_at DESC LIMIT ` + arg(limit) + ` OFFSET ` + arg(offset)

	rows, err := s.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Course{}
	for rows.Next() {
		var c Course
		if err := rows.Scan(&c.ID, &c.Title, &c.Description, &c.TeacherID, &c.Published, &c.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// ---- lessons ----

func (s *SQLStore) CreateLesson(ctx context.Context, l Lesson) (Lesson, error) {
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	if l.Position < 0 {
		// append after the current last lesson; zero is a real position
		if err := s.db.QueryRowContext(ctx,
			`SELECT COALESCE(MAX(position),-1)+1 FROM lessons WHERE course_id=$1`, l.CourseID,
		).Scan(&l.Position); err != nil {
			return Lesson{}, err
		}
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO lessons (id, course_id, title, content, position) VALUES ($1,$2,$3,$4,$5)`,
		l.ID, l.CourseID, l.Title, l.Content, l.Position)
	if err != nil {
		return Lesson{}, err
	}
	return l, nil
}

func (s *SQLStore) GetLesson(ctx context.Context, id string) (Lesson, error) {
	var l Lesson
	err := s.db.QueryRowContext(ctx,
		`SELECT id, course_id, title, content, position FROM lessons WHERE id=$1`, id,
	).Scan(&l.ID, &l.CourseID, &l.Title, &l.Content, &l.Position)
	if errors.Is(err, sql.ErrNoRows) {
		return Lesson{}, ErrNotFound
	}
	if err != nil {
		return Lesson{}, err
	}
	return l, nil
}

func (s *SQLStore) UpdateLesson(ctx context.Context, l Lesson) (Lesson, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE lessons SET title=$1, content=$2, position=$3 WHERE id=$4`,
		l.Title, l.Content, l.Position, l.ID)
	if err != nil {
		return Lesson{}, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return Lesson{}, ErrNotFound
	}
	return s.GetLesson(ctx, l.ID)
}

func (s *SQLStore) DeleteLesson(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM lessons WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLStore) ListLessons(ctx context.Context, courseID string) ([]Lesson, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, course_id, title, content, position FROM lessons WHERE course_id=$1 ORDER BY position, id`,
		courseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Lesson{}
	for rows.Next() {
		var l Lesson
		if err := rows.Scan(&l.ID, &l.CourseID, &l.Title, &l.Content, &l.Position); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// ---- materials ----

func (s *SQLStore) CreateMaterial(ctx context.Context, m Material) (Material, error) {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.Type == MaterialVideo {
		m.ContentURL = NormalizeYouTubeURL(m.ContentURL)
	}
	m.CreatedAt = time.Now().Unix()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO materials (id, title, type, content_url, lesson_id, created_at)
		 VALUES ($1,$2,$3,$4,$5,$6)`,
		m.ID, m.Title, m.Type, m.ContentURL, nullStr(m.LessonID), m.CreatedAt)
	if err != nil {
		return Material{}, err
	}
	return m, nil
}

func (s *SQLStore) GetMaterial(ctx context.Context, id string) (Material, error) {
	var m Material
	var lessonID sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT id, title, type, content_url, lesson_id, created_at FROM materials WHERE id=$1`, id,
	).Scan(&m.ID, &m.Title, &m.Type, &m.ContentURL, &lessonID, &m.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Material{}, ErrNotFound
	}
	if err != nil {
		return Material{}, err
	}
	m.LessonID = lessonID.String
	return m, nil
}

func (s *SQLStore) UpdateMaterial(ctx context.Context, m Material) (Material, error) {
	if m.Type == MaterialVideo {
		m.ContentURL = NormalizeYouTubeURL(m.ContentURL)
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE materials SET title=$1, type=$2, content_url=$3, lesson_id=$4 WHERE id=$5`,
		m.Title, m.Type, m.ContentURL, nullStr(m.LessonID), m.ID)
	if err != nil {
		return Material{}, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return Material{}, ErrNotFound
	}
	return s.GetMaterial(ctx, m.ID)
}

func (s *SQLStore) DeleteMaterial(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM materials WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLStore) ListMaterials(ctx context.Context, opts MaterialListOpts) ([]Material, error) {
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
	if opts.LessonID != "" {
		where = append(where, "lesson_id="+arg(opts.LessonID))
	}
	if opts.Type != "" {
		where = append(where, "type="+arg(opts.Type))
	}
	sqlStr := `SELECT id, title, type, content_url, lesson_id, created_at FROM materials WHERE ` +
		strings.Join(where, " AND ") + ` ORDER BY created_at DESC LIMIT ` + arg(limit) + ` OFFSET ` + arg(offset)
	rows, err := s.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Material{}
	for rows.Next() {
		var m Material
		var lessonID sql.NullString
		if err := rows.Scan(&m.ID, &m.Title, &m.Type, &m.ContentURL, &lessonID, &m.CreatedAt); err != nil {
			return nil, err
		}
		m.LessonID = lessonID.String
		out = append(out, m)
	}
	return out, rows.Err()
}

// ---- enrollments ----

func (s *SQLStore) Enroll(ctx context.Context, courseID, studentID string) error {
	if _, err := s.GetCourse(ctx, courseID); err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO enrollments (course_id, student_id, enrolled_at) VALUES ($1,$2,$3)
		 ON CONFLICT (course_id, student_id) DO NOTHING`,
		courseID, studentID, time.Now().Unix())
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrAlreadyEnrolled
	}
	return nil
}

func (s *SQLStore) Unenroll(ctx context.Context, courseID, studentID string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM enrollments WHERE course_id=$1 AND student_id=$2`, courseID, studentID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLStore) IsEnrolled(ctx context.Context, courseID, studentID string) (bool, error) {
	var ok bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM enrollments WHERE course_id=$1 AND student_id=$2)`,
		courseID, studentID).Scan(&ok)
	return ok, err
}

// EnrollBatch enrolls a student into several courses. Items are independent:
// one failing course never rolls back the others, and every item carries its
// own outcome back to the caller.
func (s *SQLStore) EnrollBatch(ctx context.Context, studentID string, courseIDs []string) []EnrollOutcome {
	out := make([]EnrollOutcome, 0, len(courseIDs))
	for _, id := range courseIDs {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		o := EnrollOutcome{CourseID: id}
		switch err := s.Enroll(ctx, id, studentID); {
		case err == nil:
			o.Enrolled = true
		case errors.Is(err, ErrAlreadyEnrolled):
			o.Enrolled = true
			o.Error = ErrAlreadyEnrolled.Error()
		default:
			o.Error = err.Error()
		}
		out = append(out, o)
	}
	return out
}

func (s *SQLStore) ListEnrollments(ctx context.Context, courseID string) ([]Enrollment, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT course_id, student_id, enrolled_at FROM enrollments WHERE course_id=$1 ORDER BY enrolled_at`,
		courseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Enrollment{}
	for rows.Next() {
		var e Enrollment
		if err := rows.Scan(&e.CourseID, &e.StudentID, &e.EnrolledAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// ---- helpers ----

func nullStr(s string) any {
	if s == "" {
		return nil
	}
	return s
}
