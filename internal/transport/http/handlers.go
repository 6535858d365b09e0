package http

import (
	"errors"
	"fmt"
	"net/http"
	"sort"
	"time"

	"timed-quiz-service/internal/app"
	"timed-quiz-service/internal/domain"
)

type questionView struct {
	ID      int64  `json:"id"`
	Text    string `json:"text"`
	OptionA string `json:"optionA"`
	OptionB string `json:"optionB"`
	OptionC string `json:"optionC"`
	OptionD string `json:"optionD"`
}

// takeQuizView never carries correct answers.
type takeQuizView struct {
	Quiz             domain.Quiz    `json:"quiz"`
	Questions        []questionView `json:"questions"`
	AttemptID        int64          `json:"attempt_id"`
	StartedAt        time.Time      `json:"started_at"`
	Deadline         time.Time      `json:"deadline"`
	RemainingSeconds int64          `json:"remaining_seconds"`
}

func newTakeQuizView(v app.AttemptView) takeQuizView {
	questions := make([]questionView, 0, len(v.Questions))
	for _, q := range v.Questions {
		questions = append(questions, questionView{
			ID:      q.ID,
			Text:    q.Text,
			OptionA: q.OptionA,
			OptionB: q.OptionB,
			OptionC: q.OptionC,
			OptionD: q.OptionD,
		})
	}
	return takeQuizView{
		Quiz:             v.Quiz,
		Questions:        questions,
		AttemptID:        v.Attempt.ID,
		StartedAt:        v.Attempt.StartedAt,
		Deadline:         v.Deadline,
		RemainingSeconds: int64(v.Remaining / time.Second),
	}
}

type editorView struct {
	Quiz      domain.Quiz       `json:"quiz"`
	Questions []domain.Question `json:"questions"`
}

type questionEditView struct {
	Quiz     domain.Quiz     `json:"quiz"`
	Question domain.Question `json:"question"`
}

type dashboardView struct {
	User    domain.User   `json:"user"`
	Quizzes []domain.Quiz `json:"quizzes"`
}

func (s *Server) index(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusOK, "index", nil)
}

func (s *Server) registerPage(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusOK, "register", nil)
}

func (s *Server) register(w http.ResponseWriter, r *http.Request) {
	var form registerForm
	if err := s.forms.decode(r, &form); err != nil {
		redirect(w, r, "/register", flashWarning, "Please provide a username, password and select a valid role.")
		return
	}
	_, err := s.accounts.Register(r.Context(), form.Username, form.Password, domain.Role(form.Role))
	var invalid *domain.ValidationError
	switch {
	case err == nil:
		redirect(w, r, "/login", flashSuccess, "Registered successfully! Please log in.")
	case errors.As(err, &invalid):
		redirect(w, r, "/register", flashWarning, validationMessage(invalid))
	case errors.Is(err, domain.ErrDuplicateUsername):
		redirect(w, r, "/register", flashDanger, "Username already taken. Please choose another.")
	default:
		s.serverError(w, r, err)
	}
}

func (s *Server) loginPage(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusOK, "login", nil)
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var form loginForm
	if err := s.forms.decode(r, &form); err != nil {
		s.renderWith(w, r, http.StatusBadRequest, "login", nil, []Flash{{Category: flashDanger, Message: "Invalid credentials. Please try again."}})
		return
	}
	user, err := s.accounts.Authenticate(r.Context(), form.Username, form.Password)
	if errors.Is(err, domain.ErrInvalidCredentials) {
		s.renderWith(w, r, http.StatusOK, "login", nil, []Flash{{Category: flashDanger, Message: "Invalid credentials. Please try again."}})
		return
	}
	if err != nil {
		s.serverError(w, r, err)
		return
	}
	if err := s.sessions.Issue(w, user); err != nil {
		s.serverError(w, r, err)
		return
	}
	s.log.WithField("user_id", user.ID).Info("user logged in")
	http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
}

func (s *Server) logout(w http.ResponseWriter, r *http.Request) {
	s.sessions.Clear(w)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) dashboard(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)
	quizzes, err := s.quizzes.Dashboard(r.Context(), user)
	if err != nil {
		s.serverError(w, r, err)
		return
	}
	s.render(w, r, http.StatusOK, "dashboard", dashboardView{User: user, Quizzes: quizzes})
}

func (s *Server) createQuizPage(w http.ResponseWriter, r *http.Request) {
	if !currentUser(r).IsTeacher() {
		redirect(w, r, "/dashboard", flashWarning, "Only teachers can create quizzes.")
		return
	}
	s.render(w, r, http.StatusOK, "create_quiz", nil)
}

func (s *Server) createQuiz(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)
	if !user.IsTeacher() {
		redirect(w, r, "/dashboard", flashWarning, "Only teachers can create quizzes.")
		return
	}
	form := createQuizForm{Duration: 10}
	if err := s.forms.decode(r, &form); err != nil {
		redirect(w, r, "/create_quiz", flashWarning, "Please provide a title and a positive duration in minutes.")
		return
	}
	quiz, err := s.quizzes.CreateQuiz(r.Context(), user, form.Title, form.Duration)
	var invalid *domain.ValidationError
	switch {
	case err == nil:
		redirect(w, r, fmt.Sprintf("/add_question/%d", quiz.ID), flashSuccess, "Quiz created! Now add questions.")
	case errors.As(err, &invalid):
		redirect(w, r, "/create_quiz", flashWarning, validationMessage(invalid))
	case errors.Is(err, domain.ErrForbidden):
		redirect(w, r, "/dashboard", flashWarning, "Only teachers can create quizzes.")
	default:
		s.serverError(w, r, err)
	}
}

func (s *Server) addQuestionPage(w http.ResponseWriter, r *http.Request) {
	quizID, ok := pathID(r, "quizID")
	if !ok {
		s.notFound(w, r)
		return
	}
	quiz, questions, err := s.quizzes.QuizForEditing(r.Context(), currentUser(r), quizID)
	if err != nil {
		s.fail(w, r, err, "You are not authorized to edit this quiz.")
		return
	}
	s.render(w, r, http.StatusOK, "add_question", editorView{Quiz: quiz, Questions: questions})
}

func (s *Server) addQuestion(w http.ResponseWriter, r *http.Request) {
	quizID, ok := pathID(r, "quizID")
	if !ok {
		s.notFound(w, r)
		return
	}
	var form questionForm
	if err := s.forms.decode(r, &form); err != nil {
		redirect(w, r, fmt.Sprintf("/add_question/%d", quizID), flashWarning, "All fields are required and a valid correct answer must be selected.")
		return
	}
	if _, finish := r.PostForm["finish"]; finish {
		// ownership still applies to the finish button
		if _, _, err := s.quizzes.QuizForEditing(r.Context(), currentUser(r), quizID); err != nil {
			s.fail(w, r, err, "You are not authorized to edit this quiz.")
			return
		}
		http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
		return
	}

	_, err := s.quizzes.AddQuestion(r.Context(), currentUser(r), quizID, form.draft())
	var invalid *domain.ValidationError
	switch {
	case err == nil:
		redirect(w, r, fmt.Sprintf("/add_question/%d", quizID), flashSuccess, "Question added!")
	case errors.As(err, &invalid):
		redirect(w, r, fmt.Sprintf("/add_question/%d", quizID), flashWarning, validationMessage(invalid))
	default:
		s.fail(w, r, err, "You are not authorized to edit this quiz.")
	}
}

func (s *Server) editQuestionPage(w http.ResponseWriter, r *http.Request) {
	questionID, ok := pathID(r, "questionID")
	if !ok {
		s.notFound(w, r)
		return
	}
	question, quiz, err := s.quizzes.QuestionForEditing(r.Context(), currentUser(r), questionID)
	if err != nil {
		s.fail(w, r, err, "You are not authorized to edit this question.")
		return
	}
	s.render(w, r, http.StatusOK, "edit_question", questionEditView{Quiz: quiz, Question: question})
}

func (s *Server) editQuestion(w http.ResponseWriter, r *http.Request) {
	questionID, ok := pathID(r, "questionID")
	if !ok {
		s.notFound(w, r)
		return
	}
	user := currentUser(r)
	var form questionForm
	if err := s.forms.decode(r, &form); err != nil {
		s.fail(w, r, domain.NewValidationError("question", "All fields are required and a valid correct answer must be selected."), "")
		return
	}
	updated, err := s.quizzes.EditQuestion(r.Context(), user, questionID, form.draft())
	var invalid *domain.ValidationError
	switch {
	case err == nil:
		redirect(w, r, fmt.Sprintf("/add_question/%d", updated.QuizID), flashSuccess, "Question updated successfully.")
	case errors.As(err, &invalid):
		// the stored question is shown again unchanged
		question, quiz, lookupErr := s.quizzes.QuestionForEditing(r.Context(), user, questionID)
		if lookupErr != nil {
			s.fail(w, r, lookupErr, "You are not authorized to edit this question.")
			return
		}
		s.renderWith(w, r, http.StatusBadRequest, "edit_question", questionEditView{Quiz: quiz, Question: question},
			[]Flash{{Category: flashWarning, Message: validationMessage(invalid)}})
	default:
		s.fail(w, r, err, "You are not authorized to edit this question.")
	}
}

func (s *Server) takeQuizPage(w http.ResponseWriter, r *http.Request) {
	quizID, ok := pathID(r, "quizID")
	if !ok {
		s.notFound(w, r)
		return
	}
	view, err := s.quizzes.OpenAttempt(r.Context(), currentUser(r), quizID)
	if err != nil {
		s.fail(w, r, err, "")
		return
	}
	s.render(w, r, http.StatusOK, "take_quiz", newTakeQuizView(view))
}

func (s *Server) submitQuiz(w http.ResponseWriter, r *http.Request) {
	quizID, ok := pathID(r, "quizID")
	if !ok {
		s.notFound(w, r)
		return
	}
	var form submissionForm
	if err := s.forms.decode(r, &form); err != nil {
		form.AttemptID = 0
	}
	sub, err := s.quizzes.Submit(r.Context(), currentUser(r), quizID, form.AttemptID, answers(r))
	if err != nil {
		s.fail(w, r, err, "")
		return
	}
	location := fmt.Sprintf("/leaderboard/%d", quizID)
	if sub.TimedOut() {
		redirect(w, r, location, flashWarning, "Time expired. Your attempt was recorded as timed-out and scored 0.")
		return
	}
	redirect(w, r, location, flashInfo, fmt.Sprintf("Quiz submitted! You scored %d/%d", sub.Result.Score, sub.QuestionCount))
}

func (s *Server) leaderboard(w http.ResponseWriter, r *http.Request) {
	quizID, ok := pathID(r, "quizID")
	if !ok {
		s.notFound(w, r)
		return
	}
	quiz, err := s.quizzes.Quiz(r.Context(), quizID)
	if err != nil {
		s.fail(w, r, err, "")
		return
	}
	lb, err := s.quizzes.Leaderboard(r.Context(), quizID)
	if err != nil {
		s.fail(w, r, err, "")
		return
	}
	s.render(w, r, http.StatusOK, "leaderboard", struct {
		Quiz        domain.Quiz        `json:"quiz"`
		Leaderboard domain.Leaderboard `json:"leaderboard"`
	}{Quiz: quiz, Leaderboard: lb})
}

// fail maps service errors onto redirects and status codes. forbidden is the
// message shown when the actor does not own the resource.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error, forbidden string) {
	var invalid *domain.ValidationError
	switch {
	case errors.As(err, &invalid):
		s.renderWith(w, r, http.StatusBadRequest, "error", nil, []Flash{{Category: flashWarning, Message: validationMessage(invalid)}})
	case errors.Is(err, domain.ErrForbidden):
		if forbidden == "" {
			forbidden = "You are not authorized to perform this action."
		}
		redirect(w, r, "/dashboard", flashDanger, forbidden)
	case errors.Is(err, domain.ErrAlreadyAttempted):
		quizID, _ := pathID(r, "quizID")
		redirect(w, r, fmt.Sprintf("/leaderboard/%d", quizID), flashInfo, "You have already attempted this quiz. You can view the leaderboard.")
	case errors.Is(err, domain.ErrInvalidAttempt):
		redirect(w, r, "/dashboard", flashDanger, "Invalid or expired attempt. Please try opening the quiz again.")
	case errors.Is(err, domain.ErrQuizNotFound), errors.Is(err, domain.ErrQuestionNotFound):
		s.notFound(w, r)
	default:
		s.serverError(w, r, err)
	}
}

func (s *Server) notFound(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusNotFound, "not_found", nil)
}

func (s *Server) serverError(w http.ResponseWriter, r *http.Request, err error) {
	s.log.WithError(err).WithField("path", r.URL.Path).Error("request failed")
	s.render(w, r, http.StatusInternalServerError, "error", nil)
}

// validationMessage picks a single message to flash, stable across calls.
func validationMessage(err *domain.ValidationError) string {
	keys := make([]string, 0, len(err.Fields))
	for k := range err.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	if len(keys) == 0 {
		return "Invalid input."
	}
	return err.Fields[keys[0]]
}
