package domain

import "time"

// Role distinguishes quiz authors from quiz takers.
type Role string

const (
	RoleTeacher Role = "teacher"
	RoleStudent Role = "student"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r == RoleTeacher || r == RoleStudent
}

// User is an account in the credential store.
type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	CreatedAt    time.Time `json:"createdAt"`
}

// IsTeacher reports whether the user may author quizzes.
func (u User) IsTeacher() bool {
	return u.Role == RoleTeacher
}

// Quiz is a timed collection of questions owned by a teacher.
// LastModified moves forward on every question write and is what
// open attempts are compared against.
type Quiz struct {
	ID              int64     `json:"id"`
	Title           string    `json:"title"`
	OwnerID         int64     `json:"ownerId"`
	DurationMinutes int       `json:"durationMinutes"`
	CreatedAt       time.Time `json:"createdAt"`
	LastModified    time.Time `json:"lastModified"`
}

// TimeLimit is the wall-clock allowance for a single attempt.
func (q Quiz) TimeLimit() time.Duration {
	return time.Duration(q.DurationMinutes) * time.Minute
}

// OwnedBy reports whether userID authored the quiz.
func (q Quiz) OwnedBy(userID int64) bool {
	return q.OwnerID == userID
}

// Answer letters accepted for a question.
const (
	AnswerA = "A"
	AnswerB = "B"
	AnswerC = "C"
	AnswerD = "D"
)

// ValidAnswer reports whether letter is one of A-D.
func ValidAnswer(letter string) bool {
	switch letter {
	case AnswerA, AnswerB, AnswerC, AnswerD:
		return true
	}
	return false
}

// Question models an MCQ question with exactly four options.
type Question struct {
	ID            int64  `json:"id"`
	QuizID        int64  `json:"quizId"`
	Text          string `json:"text"`
	OptionA       string `json:"optionA"`
	OptionB       string `json:"optionB"`
	OptionC       string `json:"optionC"`
	OptionD       string `json:"optionD"`
	CorrectAnswer string `json:"correctAnswer"`
}

// QuestionDraft carries the author-editable fields of a question.
type QuestionDraft struct {
	Text          string
	OptionA       string
	OptionB       string
	OptionC       string
	OptionD       string
	CorrectAnswer string
}

// AttemptStatus records how an attempt left the open state.
type AttemptStatus string

const (
	AttemptOpen        AttemptStatus = "open"
	AttemptSubmitted   AttemptStatus = "submitted"
	AttemptTimedOut    AttemptStatus = "timed_out"
	AttemptInvalidated AttemptStatus = "invalidated"
)

// Terminal reports whether the status is a final one. Only open is not.
func (s AttemptStatus) Terminal() bool {
	return s == AttemptSubmitted || s == AttemptTimedOut || s == AttemptInvalidated
}

// Attempt is one sitting of a user at a quiz, timed from the first view.
type Attempt struct {
	ID          int64         `json:"id"`
	QuizID      int64         `json:"quizId"`
	UserID      int64         `json:"userId"`
	StartedAt   time.Time     `json:"startedAt"`
	Completed   bool          `json:"completed"`
	CompletedAt *time.Time    `json:"completedAt,omitempty"`
	Status      AttemptStatus `json:"status"`
}

// Deadline is the instant after which a submission counts as timed out.
func (a Attempt) Deadline(q Quiz) time.Time {
	return a.StartedAt.Add(q.TimeLimit())
}

// StaleFor reports whether the quiz changed after the attempt began.
func (a Attempt) StaleFor(q Quiz) bool {
	return q.LastModified.After(a.StartedAt)
}

// Result is the immutable final score of a user at a quiz.
type Result struct {
	ID        int64     `json:"id"`
	QuizID    int64     `json:"quizId"`
	UserID    int64     `json:"userId"`
	Score     int       `json:"score"`
	CreatedAt time.Time `json:"createdAt"`
}

// LeaderboardEntry is a ranked row of the leaderboard.
type LeaderboardEntry struct {
	UserID      int64     `json:"userId"`
	Username    string    `json:"username"`
	Score       int       `json:"score"`
	SubmittedAt time.Time `json:"submittedAt"`
}

// Leaderboard captures the ordered results for a quiz.
type Leaderboard struct {
	QuizID    int64              `json:"quizId"`
	Entries   []LeaderboardEntry `json:"entries"`
	UpdatedAt time.Time          `json:"updatedAt"`
}
