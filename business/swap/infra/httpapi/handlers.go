package httpapi

import (
	"encoding/json"
	"net/http"

	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/chswap-kiosk/business/swap/domain"
	"github.com/fd1az/chswap-kiosk/internal/apperror"
)

type directionRequest struct {
	Direction string `json:"direction"`
}

type inputRequest struct {
	Amount string `json:"amount"`
}

func (s *Server) getView(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.controls.View())
}

func (s *Server) postDirection(w http.ResponseWriter, r *http.Request) {
	var req directionRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	d, err := domain.ParseDirection(req.Direction)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.controls.SetDirection(r.Context(), d); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.controls.View())
}

func (s *Server) postInput(w http.ResponseWriter, r *http.Request) {
	var req inputRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	s.controls.SetInput(r.Context(), req.Amount)
	writeJSON(w, http.StatusOK, s.controls.View())
}

// postTrigger returns once the transaction is accepted or rejected. The
// confirmation is followed through the view.
func (s *Server) postTrigger(w http.ResponseWriter, r *http.Request) {
	if err := s.controls.Trigger(r.Context()); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, s.controls.View())
}

func (s *Server) postClearError(w http.ResponseWriter, r *http.Request) {
	if c, ok := s.controls.(ErrorClearer); ok {
		c.ClearError()
	}
	writeJSON(w, http.StatusOK, s.controls.View())
}

func decode(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return apperror.Validation(apperror.CodeInvalidInput, "request body")
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError renders err as a coded error body, tagged with the request's
// trace ID when one is recording.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	appErr := apperror.As(err)
	resp := appErr.ToResponse()
	if sc := trace.SpanContextFromContext(r.Context()); sc.HasTraceID() {
		resp.Error.TraceID = sc.TraceID().String()
	}
	writeJSON(w, appErr.StatusCode, resp)
}
