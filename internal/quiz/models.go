package quiz

// Question types. TypeTrueFalse is legacy: existing rows still load and grade
// as an exact-match answer, but new questions cannot be created with it.
const (
	TypeMultipleChoice = "multiple_choice"
	TypeEssay          = "essay"
	TypeTrueFalse      = "true_false"
)

// PositionAppend places a question after the quiz's current last question.
// Position zero is a real slot, so "append" is expressed as a negative.
const PositionAppend = -1

type Quiz struct {
	ID               string `json:"id"`
	CourseID         string `json:"course_id,omitempty"`
	Title            string `json:"title"`
	Description      string `json:"description,omitempty"`
	TimeLimitMinutes int    `json:"time_limit_minutes"`
	PassingScore     float64 `json:"passing_score"`
	MaxAttempts      int    `json:"max_attempts"`
	CreatedBy        string `json:"created_by,omitempty"`
	CreatedAt        int64  `json:"created_at,omitempty"`

	Questions []Question `json:"questions,omitempty"`
}

type Question struct {
	ID       string   `json:"id"`
	QuizID   string   `json:"quiz_id"`
	Position int      `json:"position"`
	Text     string   `json:"text"`
	Type     string   `json:"type"`
	Options  []string `json:"options,omitempty"` // up to four, for multiple choice
	// CorrectAnswer and Explanation are stripped when serving students.
	CorrectAnswer string  `json:"correct_answer,omitempty"`
	Points        float64 `json:"points"`
	Explanation   string  `json:"explanation,omitempty"`
}

// StripKey blanks out the fields a student must not see mid-attempt.
func (q *Question) StripKey() {
	q.CorrectAnswer = ""
	q.Explanation = ""
}
