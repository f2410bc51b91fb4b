package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"postdeck/internal/calendar"
	"postdeck/internal/failure"
	"postdeck/internal/ics"
	"postdeck/internal/lifecycle"
	logx "postdeck/pkg/logx"
)

const maxBodyBytes = 1 << 20

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("GET /api/snapshot", s.getSnapshot)
	mux.HandleFunc("GET /api/limits", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, failure.Limits())
	})
	mux.HandleFunc("GET /api/calendar.ics", s.getICS)

	mux.HandleFunc("POST /api/drops", s.postDrop)
	mux.HandleFunc("PATCH /api/events/{key}/{id}", s.patchEvent)
	mux.HandleFunc("DELETE /api/events/{key}/{id}", s.deleteEvent)
	mux.HandleFunc("POST /api/events/{key}/{id}/open", s.openEvent)

	mux.HandleFunc("POST /api/posts", s.createPost)
	mux.HandleFunc("PUT /api/posts/{id}/content", s.putContent)
	mux.HandleFunc("POST /api/posts/{id}/seed", s.seedPost)
	mux.HandleFunc("POST /api/posts/{id}/draft", s.saveDraft)
	mux.HandleFunc("POST /api/posts/{id}/publish", s.publishPost)
	mux.HandleFunc("POST /api/posts/{id}/schedule", s.schedulePost)
	mux.HandleFunc("POST /api/posts/{id}/clone", s.clonePost)
	mux.HandleFunc("DELETE /api/posts/{id}", s.closePost)

	mux.HandleFunc("POST /api/drafts/{id}/edit", s.editDraft)
	mux.HandleFunc("DELETE /api/drafts/{id}", s.deleteDraft)

	mux.HandleFunc("POST /api/failed/{id}/retry", s.retryFailed)
	mux.HandleFunc("POST /api/failed/{id}/open", s.openFailed)
	mux.HandleFunc("DELETE /api/failed/{id}", s.deleteFailed)

	if s.cfg.Pprof {
		mountPprof(mux)
	}
	return withAuth(s.cfg.Token, mux)
}

func (s *Server) getSnapshot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.ctl.Snapshot())
}

func (s *Server) getICS(w http.ResponseWriter, r *http.Request) {
	p := s.ctl.Placement()
	cal, skipped := ics.Build(s.ctl.Snapshot().Events, ics.Options{
		Location: p.Location(),
		Stamp:    p.Now(),
		Name:     "postdeck",
	})
	if skipped > 0 {
		s.log.Warn("ics export skipped events", logx.Int("skipped", skipped))
	}
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="postdeck.ics"`)
	_, _ = io.WriteString(w, cal.Serialize())
}

func (s *Server) postDrop(w http.ResponseWriter, r *http.Request) {
	var d calendar.Drop
	if !s.decode(w, r, &d, false) {
		return
	}
	loc, err := s.ctl.Drop(d)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	status := http.StatusOK
	if d.Kind == calendar.DropPlace {
		status = http.StatusCreated
	}
	writeJSON(w, status, loc)
}

type timeBody struct {
	Time string `json:"time"`
}

func (s *Server) patchEvent(w http.ResponseWriter, r *http.Request) {
	var body timeBody
	if !s.decode(w, r, &body, false) {
		return
	}
	ev, err := s.ctl.SetEventTime(calendar.DateKey(r.PathValue("key")), r.PathValue("id"), body.Time)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ev)
}

func (s *Server) deleteEvent(w http.ResponseWriter, r *http.Request) {
	s.ctl.DeleteEvent(calendar.DateKey(r.PathValue("key")), r.PathValue("id"))
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) openEvent(w http.ResponseWriter, r *http.Request) {
	p, err := s.ctl.OpenEvent(calendar.DateKey(r.PathValue("key")), r.PathValue("id"))
	s.reply(w, r, http.StatusOK, p, err)
}

func (s *Server) createPost(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Platform string `json:"platform"`
	}
	if !s.decode(w, r, &body, false) {
		return
	}
	p, err := s.ctl.CreatePost(body.Platform)
	s.reply(w, r, http.StatusCreated, p, err)
}

func (s *Server) putContent(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Content string `json:"content"`
	}
	if !s.decode(w, r, &body, false) {
		return
	}
	p, err := s.ctl.UpdateContent(r.PathValue("id"), body.Content)
	s.reply(w, r, http.StatusOK, p, err)
}

func (s *Server) seedPost(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Prompt string `json:"prompt"`
	}
	if !s.decode(w, r, &body, false) {
		return
	}
	p, err := s.ctl.SeedContent(r.Context(), r.PathValue("id"), body.Prompt)
	s.reply(w, r, http.StatusOK, p, err)
}

func (s *Server) saveDraft(w http.ResponseWriter, r *http.Request) {
	d, err := s.ctl.SaveDraft(r.PathValue("id"))
	s.reply(w, r, http.StatusOK, d, err)
}

func (s *Server) publishPost(w http.ResponseWriter, r *http.Request) {
	p, err := s.ctl.PublishNow(r.PathValue("id"))
	s.reply(w, r, http.StatusOK, p, err)
}

func (s *Server) schedulePost(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Date calendar.DateKey `json:"date"`
		Time string           `json:"time"`
	}
	if !s.decode(w, r, &body, false) {
		return
	}
	loc, err := s.ctl.Schedule(r.PathValue("id"), body.Date, body.Time)
	s.reply(w, r, http.StatusCreated, loc, err)
}

func (s *Server) clonePost(w http.ResponseWriter, r *http.Request) {
	p, err := s.ctl.ClonePost(r.PathValue("id"))
	s.reply(w, r, http.StatusCreated, p, err)
}

func (s *Server) closePost(w http.ResponseWriter, r *http.Request) {
	if err := s.ctl.ClosePost(r.PathValue("id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) editDraft(w http.ResponseWriter, r *http.Request) {
	p, err := s.ctl.EditDraft(r.PathValue("id"))
	s.reply(w, r, http.StatusOK, p, err)
}

func (s *Server) deleteDraft(w http.ResponseWriter, r *http.Request) {
	if err := s.ctl.DeleteDraft(r.PathValue("id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// retryFailed answers 422 with the editing post for content issues and 202
// while a transient retry runs in the background.
func (s *Server) retryFailed(w http.ResponseWriter, r *http.Request) {
	var opts lifecycle.RetryOptions
	if !s.decode(w, r, &opts, true) {
		return
	}
	res, err := s.ctl.Retry(r.PathValue("id"), opts)
	var ci *lifecycle.ContentIssueError
	switch {
	case errors.As(err, &ci):
		writeJSON(w, http.StatusUnprocessableEntity, retryIssueBody{
			errorBody: errorBody{Error: err.Error(), Kind: ci.Kind()},
			Result:    res,
		})
	case err != nil:
		s.writeError(w, r, err)
	case res.Action == lifecycle.RetryRescheduled:
		writeJSON(w, http.StatusCreated, res)
	default:
		writeJSON(w, http.StatusAccepted, res)
	}
}

func (s *Server) openFailed(w http.ResponseWriter, r *http.Request) {
	p, err := s.ctl.OpenFailed(r.PathValue("id"))
	s.reply(w, r, http.StatusOK, p, err)
}

func (s *Server) deleteFailed(w http.ResponseWriter, r *http.Request) {
	if err := s.ctl.DeleteFailed(r.PathValue("id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) reply(w http.ResponseWriter, r *http.Request, status int, v any, err error) {
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, status, v)
}

// decode reads a strict JSON body. An empty body is accepted when optional.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any, optional bool) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	err := dec.Decode(v)
	if err == nil || (optional && errors.Is(err, io.EOF)) {
		return true
	}
	writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid request body: " + err.Error(), Kind: kindValidation})
	return false
}
