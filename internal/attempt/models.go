package attempt

// Attempt statuses.
const (
	StatusInProgress = "in_progress"
	StatusSubmitted  = "submitted"
)

// Submission statuses. A draft row is mutated in place while the student
// answers; finalize flips it to finalized and attaches the result id.
const (
	SubmissionDraft     = "draft"
	SubmissionFinalized = "finalized"
)

type Attempt struct {
	ID          string `json:"id"`
	QuizID      string `json:"quiz_id"`
	UserID      string `json:"user_id"`
	Status      string `json:"status"`
	StartedAt   int64  `json:"started_at"`
	Deadline    int64  `json:"deadline"`
	SubmittedAt *int64 `json:"submitted_at,omitempty"`

	// RemainingSec is derived from Deadline against the server clock.
	RemainingSec int `json:"remaining_sec"`
}

type Submission struct {
	ID              string   `json:"id"`
	AttemptID       string   `json:"attempt_id"`
	QuizID          string   `json:"quiz_id"`
	QuestionID      string   `json:"question_id"`
	UserID          string   `json:"user_id"`
	SelectedAnswer  string   `json:"selected_answer,omitempty"`
	AnswerFileURL   string   `json:"answer_file_url,omitempty"`
	Status          string   `json:"status"`
	RequiresGrading bool     `json:"requires_grading"`
	AutoScore       float64  `json:"auto_score"`
	ManualScore     *float64 `json:"manual_score,omitempty"`
	TeacherFeedback string   `json:"teacher_feedback,omitempty"`
	GradedBy        *string  `json:"graded_by,omitempty"`
	GradedAt        *int64   `json:"graded_at,omitempty"`
	ResultID        *string  `json:"result_id,omitempty"`
}

type Result struct {
	ID             string  `json:"id"`
	AttemptID      string  `json:"attempt_id"`
	QuizID         string  `json:"quiz_id"`
	UserID         string  `json:"user_id"`
	TotalScore     float64 `json:"total_score"`
	TotalPoints    float64 `json:"total_points"`
	Percentage     float64 `json:"percentage"`
	PendingGrading int     `json:"pending_grading"`
	CompletedAt    int64   `json:"completed_at"`
}

// AnswerInput is one answer save during an attempt. Nil fields are left
// untouched on the stored submission.
type AnswerInput struct {
	SelectedAnswer *string `json:"selected_answer,omitempty"`
	AnswerFileURL  *string `json:"answer_file_url,omitempty"`
}
