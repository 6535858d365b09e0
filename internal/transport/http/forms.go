package http

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/schema"

	"timed-quiz-service/internal/domain"
)

type registerForm struct {
	Username string `schema:"username" validate:"required"`
	Password string `schema:"password" validate:"required"`
	Role     string `schema:"role" validate:"required,oneof=student teacher"`
}

type loginForm struct {
	Username string `schema:"username"`
	Password string `schema:"password"`
}

type createQuizForm struct {
	Title    string `schema:"title" validate:"required"`
	Duration int    `schema:"duration" validate:"gt=0"`
}

type questionForm struct {
	Question string `schema:"question"`
	OptionA  string `schema:"option_a"`
	OptionB  string `schema:"option_b"`
	OptionC  string `schema:"option_c"`
	OptionD  string `schema:"option_d"`
	Correct  string `schema:"correct"`
}

func (f questionForm) draft() domain.QuestionDraft {
	return domain.QuestionDraft{
		Text:          f.Question,
		OptionA:       f.OptionA,
		OptionB:       f.OptionB,
		OptionC:       f.OptionC,
		OptionD:       f.OptionD,
		CorrectAnswer: f.Correct,
	}
}

type submissionForm struct {
	AttemptID int64 `schema:"attempt_id"`
}

// formDecoder binds url-encoded bodies onto form structs and validates them.
type formDecoder struct {
	decoder  *schema.Decoder
	validate *validator.Validate
}

func newFormDecoder() *formDecoder {
	decoder := schema.NewDecoder()
	decoder.IgnoreUnknownKeys(true)
	return &formDecoder{decoder: decoder, validate: validator.New()}
}

// decode fills dst from the request body. Fields absent from the body keep
// the value dst already holds.
func (d *formDecoder) decode(r *http.Request, dst interface{}) error {
	if err := r.ParseForm(); err != nil {
		return err
	}
	if err := d.decoder.Decode(dst, r.PostForm); err != nil {
		return err
	}
	return d.validate.Struct(dst)
}

// answers collects question id -> letter pairs from a submission body.
func answers(r *http.Request) map[string]string {
	out := make(map[string]string, len(r.PostForm))
	for key, values := range r.PostForm {
		if key == "attempt_id" || len(values) == 0 {
			continue
		}
		out[key] = values[0]
	}
	return out
}
