// Package webform is the browser-facing collaborator: a single form that
// accepts a phone number and hands it to the call dispatcher.
package webform

import (
	"context"
	"html/template"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/outdial-ai/outdial/pkg/outbound"
)

// CallDispatcher is the slice of the dispatcher the form needs.
type CallDispatcher interface {
	Dispatch(ctx context.Context, metadata, roomName string) (*outbound.DispatchResult, error)
}

const flashCookie = "outdial_flash"

type flash struct {
	Message  string
	Category string // "success" or "danger"
}

// Server renders the call form and dispatches submissions.
type Server struct {
	dispatcher CallDispatcher
	tmpl       *template.Template
	logger     *slog.Logger
}

// New creates a webform server.
func New(dispatcher CallDispatcher, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		dispatcher: dispatcher,
		tmpl:       template.Must(template.New("index").Parse(indexTemplate)),
		logger:     logger,
	}
}

// Handler returns the HTTP handler for the form.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/", s.handleIndex).Methods(http.MethodGet)
	r.HandleFunc("/", s.handleDispatch).Methods(http.MethodPost)
	return r
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	data := struct{ Flash *flash }{Flash: popFlash(w, r)}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.tmpl.Execute(w, data); err != nil {
		s.logger.Error("render form", "error", err)
	}
}

// handleDispatch triggers a call, then redirects back to the form so a
// refresh can't resubmit the dial.
func (s *Server) handleDispatch(w http.ResponseWriter, r *http.Request) {
	phone := strings.TrimSpace(r.FormValue("phone"))
	if phone == "" {
		setFlash(w, flash{Message: "A phone number is required.", Category: "danger"})
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	if _, err := s.dispatcher.Dispatch(r.Context(), phone, ""); err != nil {
		s.logger.Error("dispatch from form failed", "phone", phone, "error", err)
		setFlash(w, flash{Message: "Error: " + err.Error(), Category: "danger"})
	} else {
		setFlash(w, flash{Message: "Call initiated to " + phone, Category: "success"})
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func setFlash(w http.ResponseWriter, f flash) {
	http.SetCookie(w, &http.Cookie{
		Name:     flashCookie,
		Value:    url.QueryEscape(f.Category + "|" + f.Message),
		Path:     "/",
		MaxAge:   60,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func popFlash(w http.ResponseWriter, r *http.Request) *flash {
	cookie, err := r.Cookie(flashCookie)
	if err != nil {
		return nil
	}
	http.SetCookie(w, &http.Cookie{
		Name:    flashCookie,
		Value:   "",
		Path:    "/",
		MaxAge:  -1,
		Expires: time.Unix(0, 0),
	})

	raw, err := url.QueryUnescape(cookie.Value)
	if err != nil {
		return nil
	}
	category, message, ok := strings.Cut(raw, "|")
	if !ok || message == "" {
		return nil
	}
	return &flash{Message: message, Category: category}
}

const indexTemplate = `<!doctype html>
<html lang="en">
<head>
  <meta charset="utf-8">
  <title>Outbound Caller</title>
  <style>
    body { font-family: sans-serif; max-width: 32rem; margin: 4rem auto; }
    .flash { padding: .75rem 1rem; border-radius: .25rem; margin-bottom: 1rem; }
    .flash.success { background: #d4edda; color: #155724; }
    .flash.danger { background: #f8d7da; color: #721c24; }
    input[type=tel] { width: 100%; padding: .5rem; margin: .5rem 0 1rem; }
    button { padding: .5rem 1.5rem; }
  </style>
</head>
<body>
  <h1>Place an outbound call</h1>
  {{if .Flash}}<div class="flash {{.Flash.Category}}">{{.Flash.Message}}</div>{{end}}
  <form method="post" action="/">
    <label for="phone">Phone number</label>
    <input type="tel" id="phone" name="phone" placeholder="+15551234567" required>
    <button type="submit">Call</button>
  </form>
</body>
</html>
`
