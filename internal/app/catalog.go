package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"timed-quiz-service/internal/domain"
)

const questionFieldsMessage = "All fields are required and a valid correct answer must be selected."

// CreateQuiz adds a quiz owned by a teacher.
func (s *QuizService) CreateQuiz(ctx context.Context, actor domain.User, title string, durationMinutes int) (domain.Quiz, error) {
	if !actor.IsTeacher() {
		return domain.Quiz{}, domain.ErrForbidden
	}
	title = strings.TrimSpace(title)
	fields := map[string]string{}
	if title == "" {
		fields["title"] = "Title is required."
	}
	if durationMinutes <= 0 {
		fields["duration"] = "Duration must be a positive number of minutes."
	}
	if len(fields) > 0 {
		return domain.Quiz{}, &domain.ValidationError{Fields: fields}
	}

	now := s.clock()
	quiz, err := s.store.CreateQuiz(ctx, domain.Quiz{
		Title:           title,
		OwnerID:         actor.ID,
		DurationMinutes: durationMinutes,
		CreatedAt:       now,
		LastModified:    now,
	})
	if err != nil {
		return domain.Quiz{}, fmt.Errorf("create quiz: %w", err)
	}
	s.log.WithFields(logrus.Fields{"quiz_id": quiz.ID, "user_id": actor.ID}).Info("quiz created")
	return quiz, nil
}

// Dashboard lists the quizzes a teacher owns, or every quiz for a student.
func (s *QuizService) Dashboard(ctx context.Context, actor domain.User) ([]domain.Quiz, error) {
	if actor.IsTeacher() {
		return s.store.ListQuizzesByOwner(ctx, actor.ID)
	}
	return s.store.ListQuizzes(ctx)
}

// Quiz returns a quiz by id.
func (s *QuizService) Quiz(ctx context.Context, quizID int64) (domain.Quiz, error) {
	return s.store.Quiz(ctx, quizID)
}

// QuizForEditing returns an owned quiz with its current questions.
func (s *QuizService) QuizForEditing(ctx context.Context, actor domain.User, quizID int64) (domain.Quiz, []domain.Question, error) {
	quiz, err := s.ownedQuiz(ctx, actor, quizID)
	if err != nil {
		return domain.Quiz{}, nil, err
	}
	questions, err := s.store.Questions(ctx, quiz.ID)
	if err != nil {
		return domain.Quiz{}, nil, fmt.Errorf("list questions: %w", err)
	}
	return quiz, questions, nil
}

// AddQuestion appends a question and bumps the quiz's last_modified.
func (s *QuizService) AddQuestion(ctx context.Context, actor domain.User, quizID int64, draft domain.QuestionDraft) (domain.Question, error) {
	quiz, err := s.ownedQuiz(ctx, actor, quizID)
	if err != nil {
		return domain.Question{}, err
	}
	draft, err = normalizeDraft(draft)
	if err != nil {
		return domain.Question{}, err
	}

	question, err := s.store.AddQuestion(ctx, applyDraft(domain.Question{QuizID: quiz.ID}, draft), s.clock())
	if err != nil {
		return domain.Question{}, fmt.Errorf("add question: %w", err)
	}
	s.log.WithFields(logrus.Fields{"quiz_id": quiz.ID, "question_id": question.ID}).Info("question added")
	return question, nil
}

// QuestionForEditing returns a question and its quiz when the actor owns the quiz.
func (s *QuizService) QuestionForEditing(ctx context.Context, actor domain.User, questionID int64) (domain.Question, domain.Quiz, error) {
	question, err := s.store.Question(ctx, questionID)
	if err != nil {
		return domain.Question{}, domain.Quiz{}, err
	}
	quiz, err := s.ownedQuiz(ctx, actor, question.QuizID)
	if err != nil {
		return domain.Question{}, domain.Quiz{}, err
	}
	return question, quiz, nil
}

// EditQuestion rewrites a question and bumps the quiz's last_modified.
func (s *QuizService) EditQuestion(ctx context.Context, actor domain.User, questionID int64, draft domain.QuestionDraft) (domain.Question, error) {
	question, quiz, err := s.QuestionForEditing(ctx, actor, questionID)
	if err != nil {
		return domain.Question{}, err
	}
	draft, err = normalizeDraft(draft)
	if err != nil {
		return domain.Question{}, err
	}

	question = applyDraft(question, draft)
	if err := s.store.UpdateQuestion(ctx, question, s.clock()); err != nil {
		return domain.Question{}, fmt.Errorf("update question: %w", err)
	}
	s.log.WithFields(logrus.Fields{"quiz_id": quiz.ID, "question_id": question.ID}).Info("question updated")
	return question, nil
}

func (s *QuizService) ownedQuiz(ctx context.Context, actor domain.User, quizID int64) (domain.Quiz, error) {
	quiz, err := s.store.Quiz(ctx, quizID)
	if err != nil {
		return domain.Quiz{}, err
	}
	if !actor.IsTeacher() || !quiz.OwnedBy(actor.ID) {
		return domain.Quiz{}, domain.ErrForbidden
	}
	return quiz, nil
}

func normalizeDraft(d domain.QuestionDraft) (domain.QuestionDraft, error) {
	d = domain.QuestionDraft{
		Text:          strings.TrimSpace(d.Text),
		OptionA:       strings.TrimSpace(d.OptionA),
		OptionB:       strings.TrimSpace(d.OptionB),
		OptionC:       strings.TrimSpace(d.OptionC),
		OptionD:       strings.TrimSpace(d.OptionD),
		CorrectAnswer: strings.ToUpper(strings.TrimSpace(d.CorrectAnswer)),
	}
	if d.Text == "" || d.OptionA == "" || d.OptionB == "" || d.OptionC == "" || d.OptionD == "" || !domain.ValidAnswer(d.CorrectAnswer) {
		return d, domain.NewValidationError("question", questionFieldsMessage)
	}
	return d, nil
}

func applyDraft(q domain.Question, d domain.QuestionDraft) domain.Question {
	q.Text = d.Text
	q.OptionA = d.OptionA
	q.OptionB = d.OptionB
	q.OptionC = d.OptionC
	q.OptionD = d.OptionD
	q.CorrectAnswer = d.CorrectAnswer
	return q
}
