// Package httpform serves form stores over HTTP. Each visitor gets a session
// backed by its own form.Store; the routes mirror what a browser form does:
//
//	GET    /        current state and field descriptors
//	POST   /        submit (form-encoded, multipart or JSON)
//	PATCH  /field   update one field, the input change event
//	POST   /reset   reset the form or one field
//	GET    /events  websocket stream of state changes
package httpform

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/goliatone/go-formstate/pkg/form"
	"github.com/goliatone/go-formstate/pkg/schema"
)

// Handler routes form requests to per-session stores.
type Handler struct {
	opts     Options
	sessions *Sessions
	mux      *http.ServeMux
}

// State is the JSON body returned by every route.
type State struct {
	Session   string `json:"session"`
	Submitted *bool  `json:"submitted,omitempty"`
	form.Snapshot
	Fields []schema.Field `json:"fields,omitempty"`
}

type errorBody struct {
	Error string `json:"error"`
}

// NewHandler returns a Handler creating stores with factory.
func NewHandler(factory Factory, fns ...OptionFn) *Handler {
	opts := NewOptions(fns...)
	h := &Handler{
		opts:     opts,
		sessions: NewSessions(factory, opts.IdleTimeout, opts.Now),
		mux:      http.NewServeMux(),
	}
	h.mux.HandleFunc("GET /{$}", h.withSession(h.getState))
	h.mux.HandleFunc("POST /{$}", h.withSession(h.submit))
	h.mux.HandleFunc("PATCH /field", h.withSession(h.updateField))
	h.mux.HandleFunc("POST /reset", h.withSession(h.reset))
	h.mux.HandleFunc("GET /events", h.withSession(h.events))
	return h
}

// Sessions exposes the session set, mainly for sweeping and tests.
func (h *Handler) Sessions() *Sessions { return h.sessions }

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

type sessionHandler func(w http.ResponseWriter, r *http.Request, sess *Session)

func (h *Handler) withSession(next sessionHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, err := h.session(w, r)
		if err != nil {
			h.opts.Logger.Error("httpform session setup failed", "error", err)
			writeJSON(w, http.StatusInternalServerError, errorBody{Error: "session unavailable"})
			return
		}
		r.Body = http.MaxBytesReader(w, r.Body, h.opts.MaxBodyBytes)
		next(w, r, sess)
	}
}

func (h *Handler) session(w http.ResponseWriter, r *http.Request) (*Session, error) {
	if cookie, err := r.Cookie(h.opts.CookieName); err == nil {
		if sess, ok := h.sessions.Get(cookie.Value); ok {
			return sess, nil
		}
	}
	sess, err := h.sessions.Create(r.Context())
	if err != nil {
		return nil, err
	}
	http.SetCookie(w, h.opts.cookie(sess.ID))
	h.opts.Logger.Debug("httpform session created", "session", sess.ID)
	return sess, nil
}

func (h *Handler) getState(w http.ResponseWriter, _ *http.Request, sess *Session) {
	writeJSON(w, http.StatusOK, h.state(sess, nil))
}

func (h *Handler) submit(w http.ResponseWriter, r *http.Request, sess *Session) {
	known := knownFor(sess.Store.Values(), sess.Fields)
	updates, err := decodeValues(r, sess.Fields, known, h.opts.Sanitizer)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
		return
	}
	for _, u := range updates {
		if err := sess.Store.UpdateField(u.Name, u.Value); err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
			return
		}
	}

	submitted, err := sess.Store.Submit(r.Context())
	switch {
	case errors.Is(err, form.ErrSubmitInProgress):
		writeJSON(w, http.StatusConflict, errorBody{Error: err.Error()})
		return
	case err != nil:
		h.opts.Logger.Error("httpform submit failed", "session", sess.ID, "error", err)
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "validation unavailable"})
		return
	}

	status := http.StatusOK
	if !submitted {
		status = http.StatusUnprocessableEntity
	}
	writeJSON(w, status, h.state(sess, &submitted))
}

func (h *Handler) updateField(w http.ResponseWriter, r *http.Request, sess *Session) {
	body, err := decodeFieldUpdate(r, sess.Fields, h.opts.Sanitizer)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
		return
	}
	field, err := sess.Store.Field(body.Name)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
		return
	}
	if !knownFor(sess.Store.Values(), sess.Fields).accepts(field.Path()) {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: fmt.Sprintf("httpform: unknown field %q", body.Name)})
		return
	}
	if err := field.Update(body.Value); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
		return
	}
	if body.Validate {
		if _, err := sess.Store.Validate(r.Context()); err != nil {
			h.opts.Logger.Error("httpform validate failed", "session", sess.ID, "error", err)
			writeJSON(w, http.StatusInternalServerError, errorBody{Error: "validation unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, h.state(sess, nil))
}

func (h *Handler) reset(w http.ResponseWriter, r *http.Request, sess *Session) {
	body, err := decodeReset(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
		return
	}
	var opts []form.ResetOption
	if body.KeepValues {
		opts = append(opts, form.KeepValues())
	}
	if body.KeepErrors {
		opts = append(opts, form.KeepErrors())
	}
	if body.Name == "" {
		sess.Store.Reset(opts...)
	} else if err := sess.Store.ResetField(body.Name, opts...); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, h.state(sess, nil))
}

func (h *Handler) state(sess *Session, submitted *bool) State {
	return State{
		Session:   sess.ID,
		Submitted: submitted,
		Snapshot:  sess.Store.Snapshot(),
		Fields:    sess.Fields,
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// StaticFactory serves every session a store built by newStore, which is
// handy when the descriptors never change.
func StaticFactory(fields []schema.Field, newStore func() *form.Store) Factory {
	return func(context.Context) (*form.Store, []schema.Field, error) {
		return newStore(), fields, nil
	}
}
