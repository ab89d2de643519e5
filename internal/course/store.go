package course

import (
	"context"
	"errors"

	"github.com/mathclass/mathclass-lms/internal/rbac"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrAlreadyEnrolled = errors.New("already enrolled")
)

type ListOpts struct {
	Q          string
	ViewerID   string
	ViewerRole rbac.Role
	Limit      int
	Offset     int
}

type MaterialListOpts struct {
	LessonID string
	Type     string
	Limit    int
	Offset   int
}

type Store interface {
	CreateCourse(ctx context.Context, c Course) (Course, error)
	GetCourse(ctx context.Context, id string) (Course, error)
	UpdateCourse(ctx context.Context, c Course) (Course, error)
	DeleteCourse(ctx context.Context, id string) error
	ListCourses(ctx context.Context, opts ListOpts) ([]Course, error)

	CreateLesson(ctx context.Context, l Lesson) (Lesson, error)
	GetLesson(ctx context.Context, id string) (Lesson, error)
	UpdateLesson(ctx context.Context, l Lesson) (Lesson, error)
	DeleteLesson(ctx context.Context, id string) error
	ListLessons(ctx context.Context, courseID string) ([]Lesson, error)

	CreateMaterial(ctx context.Context, m Material) (Material, error)
	GetMaterial(ctx context.Context, id string) (Material, error)
	UpdateMaterial(ctx context.Context, m Material) (Material, error)
	DeleteMaterial(ctx context.Context, id string) error
	ListMaterials(ctx context.Context, opts MaterialListOpts) ([]Material, error)

	Enroll(ctx context.Context, courseID, studentID string) error
	Unenroll(ctx context.Context, courseID, studentID string) error
	IsEnrolled(ctx context.Context, courseID, studentID string) (bool, error)
	EnrollBatch(ctx context.Context, studentID string, courseIDs []string) []EnrollOutcome
	ListEnrollments(ctx context.Context, courseID string) ([]Enrollment, error)
}
