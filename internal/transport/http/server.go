package http

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"timed-quiz-service/internal/app"
)

// Server exposes the quiz use cases over HTTP.
type Server struct {
	accounts *app.AccountService
	quizzes  *app.QuizService
	sessions *SessionManager
	forms    *formDecoder
	upgrader websocket.Upgrader
	log      logrus.FieldLogger
}

func NewServer(accounts *app.AccountService, quizzes *app.QuizService, sessions *SessionManager, logger logrus.FieldLogger) *Server {
	return &Server{
		accounts: accounts,
		quizzes:  quizzes,
		sessions: sessions,
		forms:    newFormDecoder(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		log: logger,
	}
}

// Router wires every route.
func (s *Server) Router() http.Handler {
	router := mux.NewRouter()
	router.Use(s.recoverPanics, s.logRequests)

	router.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	}).Methods(http.MethodGet)
	router.HandleFunc("/", s.index).Methods(http.MethodGet)
	router.HandleFunc("/register", s.registerPage).Methods(http.MethodGet)
	router.HandleFunc("/register", s.register).Methods(http.MethodPost)
	router.HandleFunc("/login", s.loginPage).Methods(http.MethodGet)
	router.HandleFunc("/login", s.login).Methods(http.MethodPost)

	auth := router.PathPrefix("").Subrouter()
	auth.Use(s.requireUser)
	auth.HandleFunc("/logout", s.logout).Methods(http.MethodGet)
	auth.HandleFunc("/dashboard", s.dashboard).Methods(http.MethodGet)
	auth.HandleFunc("/create_quiz", s.createQuizPage).Methods(http.MethodGet)
	auth.HandleFunc("/create_quiz", s.createQuiz).Methods(http.MethodPost)
	auth.HandleFunc("/add_question/{quizID:[0-9]+}", s.addQuestionPage).Methods(http.MethodGet)
	auth.HandleFunc("/add_question/{quizID:[0-9]+}", s.addQuestion).Methods(http.MethodPost)
	auth.HandleFunc("/edit_question/{questionID:[0-9]+}", s.editQuestionPage).Methods(http.MethodGet)
	auth.HandleFunc("/edit_question/{questionID:[0-9]+}", s.editQuestion).Methods(http.MethodPost)
	auth.HandleFunc("/take_quiz/{quizID:[0-9]+}", s.takeQuizPage).Methods(http.MethodGet)
	auth.HandleFunc("/take_quiz/{quizID:[0-9]+}", s.submitQuiz).Methods(http.MethodPost)
	auth.HandleFunc("/leaderboard/{quizID:[0-9]+}", s.leaderboard).Methods(http.MethodGet)
	auth.HandleFunc("/ws/leaderboard/{quizID:[0-9]+}", s.leaderboardWS).Methods(http.MethodGet)

	return router
}
