package http

import (
	"errors"
	"fmt"
	"net/http"

	"kindlecrm/internal/core"
	"kindlecrm/internal/services"
	"kindlecrm/internal/storage"
)

// handleUpload loads a CSV into the caller's session. A file missing
// required columns is still echoed back, with a 422.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	sid := s.session(w, r)

	file, name, err := ReadUpload(w, r, s.maxUpload)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	defer file.Close()

	up, err := s.dashboard.Upload(r.Context(), sid, name, file)
	if err != nil && (up == nil || !core.IsValidationError(err)) {
		s.writeError(w, r, err)
		return
	}

	body, ok := s.render(w, r, "upload_result.html", newUploadView(up))
	if !ok {
		return
	}
	resp := NewHTMXResponse().BodyHTML(body)
	if err != nil {
		status, msg := errorStatus(err)
		resp.Status(status).
			TriggerDonationsLoaded(0, 0).
			TriggerErrorNotification(msg)
	} else {
		donors := len(core.Summarize(up.Table))
		msg := fmt.Sprintf("Loaded %d donations from %d donors", up.Table.Len(), donors)
		resp.TriggerDonationsLoaded(up.Table.Len(), donors)
		if up.InvalidDates > 0 || up.InvalidAmounts > 0 {
			resp.TriggerWarningNotification(fmt.Sprintf("%s. %d dates and %d amounts could not be read.", msg, up.InvalidDates, up.InvalidAmounts))
		} else {
			resp.TriggerSuccessNotification(msg)
		}
	}
	resp.Write(w)
}

// handleSummary renders the donor summary panel. Without a usable table it
// renders a notice rather than an error, since the page polls it on load.
func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	sid := s.session(w, r)
	view := summaryView{KeyPolicy: s.dashboard.Policy() == services.MatchKey}

	ov, err := s.dashboard.Overview(r.Context(), sid)
	switch {
	case err == nil:
		view.Overview = ov
	case errors.Is(err, services.ErrNoUpload), errors.Is(err, services.ErrTableInvalid):
		_, view.Notice = errorStatus(err)
	default:
		s.writeError(w, r, err)
		return
	}

	body, ok := s.render(w, r, "summary.html", view)
	if !ok {
		return
	}
	NewHTMXResponse().BodyHTML(body).Write(w)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	sid := s.session(w, r)
	params := ParseHistoryParams(r.URL.Query())
	if params.Name == "" {
		s.writeError(w, r, &core.ValidationError{Fields: []string{"name (required)"}})
		return
	}

	hv, err := s.dashboard.History(r.Context(), sid, params.Name, params.Email)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	body, ok := s.render(w, r, "history.html", hv)
	if !ok {
		return
	}
	NewHTMXResponse().BodyHTML(body).Write(w)
}

// handleCompose drafts a message. A composer failure is a 502 and leaves
// the dashboard as it was.
func (s *Server) handleCompose(w http.ResponseWriter, r *http.Request) {
	sid := s.session(w, r)
	p := NewRequestBodyParser(w, r)
	if p.Err() != nil {
		s.requestLogger(r).WarnContext(r.Context(), "Malformed compose request", "error", p.Err())
		BadRequestError("The request could not be read.").Write(w)
		return
	}

	res, err := s.dashboard.Compose(r.Context(), sid, ParseComposeInput(p))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	body, ok := s.render(w, r, "compose_result.html", res)
	if !ok {
		return
	}
	resp := NewHTMXResponse().BodyHTML(body)
	if res.Draft != nil {
		resp.TriggerDraftCreated(res.Draft.ID).
			TriggerSuccessNotification("Draft saved")
	} else {
		resp.TriggerWarningNotification("Message generated, but the draft could not be saved")
	}
	resp.Write(w)
}

func (s *Server) handleDrafts(w http.ResponseWriter, r *http.Request) {
	s.session(w, r)
	drafts, err := s.dashboard.RecentDrafts(r.Context(), ParseLimit(r.URL.Query(), storage.DefaultListLimit))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	body, ok := s.render(w, r, "drafts.html", drafts)
	if !ok {
		return
	}
	NewHTMXResponse().BodyHTML(body).Write(w)
}
