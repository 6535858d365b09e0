package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"timed-quiz-service/internal/domain"
)

// AttemptView is what a user sees when opening a quiz.
type AttemptView struct {
	Attempt   domain.Attempt
	Quiz      domain.Quiz
	Questions []domain.Question
	Deadline  time.Time
	Remaining time.Duration
}

// Submission is the outcome of a graded or timed-out attempt.
type Submission struct {
	Result        domain.Result
	Status        domain.AttemptStatus
	QuestionCount int
}

// TimedOut reports whether the submission arrived after the deadline.
func (s Submission) TimedOut() bool {
	return s.Status == domain.AttemptTimedOut
}

// OpenAttempt returns the single current attempt of actor at quizID, creating
// one on first view. An open attempt that predates the quiz's last edit is
// invalidated and replaced with a fresh one.
func (s *QuizService) OpenAttempt(ctx context.Context, actor domain.User, quizID int64) (AttemptView, error) {
	if _, err := s.store.Quiz(ctx, quizID); err != nil {
		return AttemptView{}, err
	}

	var (
		quiz      domain.Quiz
		attempt   domain.Attempt
		questions []domain.Question
	)
	err := s.withAttemptLock(ctx, quizID, actor.ID, func() error {
		if err := s.ensureNoResult(ctx, quizID, actor.ID); err != nil {
			return err
		}
		// staleness is judged against the quiz as of lock acquisition
		var err error
		quiz, err = s.store.Quiz(ctx, quizID)
		if err != nil {
			return err
		}
		attempt, err = s.currentAttempt(ctx, quiz, actor.ID)
		if err != nil {
			return err
		}
		questions, err = s.store.Questions(ctx, quiz.ID)
		if err != nil {
			return fmt.Errorf("list questions: %w", err)
		}
		return nil
	})
	if err != nil {
		return AttemptView{}, err
	}

	deadline := attempt.Deadline(quiz)
	remaining := deadline.Sub(s.clock())
	if remaining < 0 {
		remaining = 0
	}
	return AttemptView{
		Attempt:   attempt,
		Quiz:      quiz,
		Questions: questions,
		Deadline:  deadline,
		Remaining: remaining,
	}, nil
}

func (s *QuizService) currentAttempt(ctx context.Context, quiz domain.Quiz, userID int64) (domain.Attempt, error) {
	attempt, found, err := s.store.OpenAttempt(ctx, quiz.ID, userID)
	if err != nil {
		return domain.Attempt{}, fmt.Errorf("load open attempt: %w", err)
	}
	if found && attempt.StaleFor(quiz) {
		if err := s.store.CloseAttempt(ctx, attempt.ID, domain.AttemptInvalidated, s.clock()); err != nil {
			return domain.Attempt{}, fmt.Errorf("invalidate attempt: %w", err)
		}
		s.attemptLog(attempt, domain.AttemptInvalidated).Info("stale attempt invalidated")
		found = false
	}
	if found {
		return attempt, nil
	}

	attempt, err = s.store.CreateAttempt(ctx, domain.Attempt{
		QuizID:    quiz.ID,
		UserID:    userID,
		StartedAt: s.clock(),
		Status:    domain.AttemptOpen,
	})
	if err != nil {
		return domain.Attempt{}, fmt.Errorf("create attempt: %w", err)
	}
	s.attemptLog(attempt, domain.AttemptOpen).Info("attempt started")
	return attempt, nil
}

// ValidateSubmission checks that attemptID names an open attempt of actor at
// quiz and returns it with the time elapsed since it started.
func (s *QuizService) ValidateSubmission(ctx context.Context, attemptID int64, actor domain.User, quiz domain.Quiz, now time.Time) (domain.Attempt, time.Duration, error) {
	if attemptID <= 0 {
		return domain.Attempt{}, 0, domain.ErrInvalidAttempt
	}
	attempt, err := s.store.Attempt(ctx, attemptID)
	if err != nil {
		if errors.Is(err, domain.ErrAttemptNotFound) {
			return domain.Attempt{}, 0, domain.ErrInvalidAttempt
		}
		return domain.Attempt{}, 0, fmt.Errorf("load attempt: %w", err)
	}
	if attempt.UserID != actor.ID || attempt.QuizID != quiz.ID || attempt.Completed {
		return domain.Attempt{}, 0, domain.ErrInvalidAttempt
	}
	return attempt, now.Sub(attempt.StartedAt), nil
}

// Submit grades answers for an attempt and records the single result of
// actor at quizID. A late submission is recorded as timed out with score 0.
func (s *QuizService) Submit(ctx context.Context, actor domain.User, quizID, attemptID int64, answers map[string]string) (Submission, error) {
	quiz, err := s.store.Quiz(ctx, quizID)
	if err != nil {
		return Submission{}, err
	}

	var sub Submission
	err = s.withAttemptLock(ctx, quiz.ID, actor.ID, func() error {
		if err := s.ensureNoResult(ctx, quiz.ID, actor.ID); err != nil {
			return err
		}
		now := s.clock()
		attempt, elapsed, err := s.ValidateSubmission(ctx, attemptID, actor, quiz, now)
		if err != nil {
			return err
		}

		// grading always uses the question set as of submission
		questions, err := s.store.Questions(ctx, quiz.ID)
		if err != nil {
			return fmt.Errorf("list questions: %w", err)
		}

		status := domain.AttemptSubmitted
		score := 0
		if elapsed > quiz.TimeLimit() {
			status = domain.AttemptTimedOut
		} else {
			score = Grade(questions, answers)
		}

		result, err := s.store.CompleteWithResult(ctx, attempt.ID, status, domain.Result{
			QuizID:    quiz.ID,
			UserID:    actor.ID,
			Score:     score,
			CreatedAt: now,
		})
		if err != nil {
			if errors.Is(err, domain.ErrAlreadyAttempted) || errors.Is(err, domain.ErrInvalidAttempt) {
				return err
			}
			return fmt.Errorf("record result: %w", err)
		}
		s.attemptLog(attempt, status).WithField("score", score).Info("attempt completed")
		sub = Submission{Result: result, Status: status, QuestionCount: len(questions)}
		return nil
	})
	if err != nil {
		return Submission{}, err
	}

	s.resultsChanged(ctx, quiz.ID)
	return sub, nil
}

func (s *QuizService) ensureNoResult(ctx context.Context, quizID, userID int64) error {
	_, found, err := s.store.ResultFor(ctx, quizID, userID)
	if err != nil {
		return fmt.Errorf("load result: %w", err)
	}
	if found {
		return domain.ErrAlreadyAttempted
	}
	return nil
}

func (s *QuizService) attemptLog(a domain.Attempt, status domain.AttemptStatus) logrus.FieldLogger {
	return s.log.WithFields(logrus.Fields{
		"quiz_id":    a.QuizID,
		"user_id":    a.UserID,
		"attempt_id": a.ID,
		"status":     status,
	})
}
