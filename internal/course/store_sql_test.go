package course

import (
	"context"
	"database/sql"
	"errors"
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

func mustCourse(t *testing.T, s *SQLStore, title, teacherID string, published bool) Course {
	t.Helper()
	c, err := s.CreateCourse(context.Background(), Course{Title: title, TeacherID: teacherID, Published: published})
	if err != nil {
		t.Fatalf("create course %q: %v", title, err)
	}
	return c
}

func TestListCoursesScoping(t *testing.T) {
	s := NewSQLStore(newTestDB(t))
	ctx := context.Background()

	mustCourse(t, s, "Algebra", "teacher-1", true)
	mustCourse(t, s, "Geometry", "teacher-1", false)
	mustCourse(t, s, "Calculus", "teacher-2", true)

	cases := []struct {
		name string
		opts ListOpts
		want int
	}{
		{"teacher sees own, drafts included", ListOpts{ViewerID: "teacher-1", ViewerRole: rbac.RoleTeacher}, 2},
		{"student sees published only", ListOpts{ViewerID: "student-1", ViewerRole: rbac.RoleStudent}, 2},
		{"admin sees all", ListOpts{ViewerID: "admin", ViewerRole: rbac.RoleAdmin}, 3},
		{"title filter", ListOpts{ViewerRole: rbac.RoleAdmin, Q: "alg"}, 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := s.ListCourses(ctx, tc.opts)
			if err != nil {
				t.Fatalf("list: %v", err)
			}
			if len(got) != tc.want {
				t.Fatalf("len = %d, want %d (%+v)", len(got), tc.want, got)
			}
		})
	}
}

func TestEnrollIsIdempotentlyRejected(t *testing.T) {
	s := NewSQLStore(newTestDB(t))
	ctx := context.Background()
	c := mustCourse(t, s, "Algebra", "teacher-1", true)

	if err := s.Enroll(ctx, c.ID, "student-1"); err != nil {
		t.Fatalf("enroll: %v", err)
	}
	if err := s.Enroll(ctx, c.ID, "student-1"); !errors.Is(err, ErrAlreadyEnrolled) {
		t.Fatalf("re-enroll: err = %v, want ErrAlreadyEnrolled", err)
	}
	ok, err := s.IsEnrolled(ctx, c.ID, "student-1")
	if err != nil || !ok {
		t.Fatalf("IsEnrolled = %v, %v; want true", ok, err)
	}
}

func TestEnrollBatchReportsPerItemOutcomes(t *testing.T) {
	s := NewSQLStore(newTestDB(t))
	ctx := context.Background()
	c1 := mustCourse(t, s, "Algebra", "teacher-1", true)
	c2 := mustCourse(t, s, "Geometry", "teacher-1", true)

	if err := s.Enroll(ctx, c2.ID, "student-1"); err != nil {
		t.Fatalf("pre-enroll: %v", err)
	}

	out := s.EnrollBatch(ctx, "student-1", []string{c1.ID, c2.ID, "no-such-course", " "})
	if len(out) != 3 {
		t.Fatalf("outcomes = %d, want 3 (blank skipped): %+v", len(out), out)
	}
	if !out[0].Enrolled || out[0].Error != "" {
		t.Fatalf("fresh enroll outcome = %+v", out[0])
	}
	if !out[1].Enrolled || out[1].Error == "" {
		t.Fatalf("already-enrolled outcome = %+v", out[1])
	}
	if out[2].Enrolled || out[2].Error == "" {
		t.Fatalf("missing-course outcome = %+v", out[2])
	}

	// the failing item did not undo the successful one
	if ok, _ := s.IsEnrolled(ctx, c1.ID, "student-1"); !ok {
		t.Fatal("successful item lost after batch with failures")
	}
}

func TestVideoMaterialURLNormalizedOnWrite(t *testing.T) {
	s := NewSQLStore(newTestDB(t))
	ctx := context.Background()

	m, err := s.CreateMaterial(ctx, Material{
		Title:      "Intro to fractions",
		Type:       MaterialVideo,
		ContentURL: "https://youtu.be/abc12345678",
	})
	if err != nil {
		t.Fatalf("create material: %v", err)
	}
	want := "https://www.youtube.com/watch?v=abc12345678"
	if m.ContentURL != want {
		t.Fatalf("content url = %q, want %q", m.ContentURL, want)
	}

	// non-video types pass through untouched
	d, err := s.CreateMaterial(ctx, Material{
		Title:      "Worksheet",
		Type:       MaterialDocument,
		ContentURL: "https://example.com/sheet.pdf",
	})
	if err != nil {
		t.Fatalf("create document: %v", err)
	}
	if d.ContentURL != "https://example.com/sheet.pdf" {
		t.Fatalf("document url rewritten: %q", d.ContentURL)
	}
}
