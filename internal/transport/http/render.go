package http

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
)

// page is the JSON view model returned for every GET page.
type page struct {
	Page    string      `json:"page"`
	Flashes []Flash     `json:"flashes"`
	Data    interface{} `json:"data,omitempty"`
}

func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, name string, data interface{}) {
	s.renderWith(w, r, status, name, data, nil)
}

// renderWith adds inline messages that belong to this response only.
func (s *Server) renderWith(w http.ResponseWriter, r *http.Request, status int, name string, data interface{}, inline []Flash) {
	flashes := append(popFlashes(w, r), inline...)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(page{Page: name, Flashes: flashes, Data: data}); err != nil {
		s.log.WithError(err).Warn("write response failed")
	}
}

// redirect sends 303 See Other, optionally queueing a flash message.
func redirect(w http.ResponseWriter, r *http.Request, location, category, message string) {
	if message != "" {
		setFlash(w, r, category, message)
	}
	http.Redirect(w, r, location, http.StatusSeeOther)
}

func pathID(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)[name], 10, 64)
	return id, err == nil && id > 0
}
