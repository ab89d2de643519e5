package course

type Course struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	TeacherID   string `json:"teacher_id"`
	Published   bool   `json:"published"`
	CreatedAt   int64  `json:"created_at,omitempty"`
}

// PositionAppend places a lesson after the course's current last lesson.
// Position zero is a real slot, so "append" is expressed as a negative.
const PositionAppend = -1

type Lesson struct {
	ID       string `json:"id"`
	CourseID string `json:"course_id"`
	Title    string `json:"title"`
	Content  string `json:"content,omitempty"`
	Position int    `json:"position"`
}

// Material content types.
const (
	MaterialVideo       = "video"
	MaterialDocument    = "document"
	MaterialInteractive = "interactive"
	MaterialImage       = "image"
)

type Material struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	Type       string `json:"type"` // video|document|interactive|image
	ContentURL string `json:"content_url"`
	LessonID   string `json:"lesson_id,omitempty"`
	CreatedAt  int64  `json:"created_at,omitempty"`
}

type Enrollment struct {
	CourseID   string `json:"course_id"`
	StudentID  string `json:"student_id"`
	EnrolledAt int64  `json:"enrolled_at"`
}

// EnrollOutcome reports one item of a batch enrollment. The batch is not
// atomic; every course gets its own verdict instead of a single collapsed
// error.
type EnrollOutcome struct {
	CourseID string `json:"course_id"`
	Enrolled bool   `json:"enrolled"`
	Error    string `json:"error,omitempty"`
}
