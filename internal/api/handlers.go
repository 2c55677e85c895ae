package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	apperrors "github.com/FocuswithJustin/JuniperAlign/core/errors"
	"github.com/FocuswithJustin/JuniperAlign/core/model"
	"github.com/FocuswithJustin/JuniperAlign/core/text"
	"github.com/FocuswithJustin/JuniperAlign/core/tree"
	"github.com/FocuswithJustin/JuniperAlign/internal/logging"
	"github.com/FocuswithJustin/JuniperAlign/internal/project"
	"github.com/FocuswithJustin/JuniperAlign/internal/server"
	"github.com/FocuswithJustin/JuniperAlign/internal/trainer"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 1 << 20

// APIResponse is the standard API response wrapper.
type APIResponse struct {
	Success bool      `json:"success"`
	Data    any       `json:"data,omitempty"`
	Error   *APIError `json:"error,omitempty"`
	Meta    *APIMeta  `json:"meta,omitempty"`
}

// APIError represents an API error.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// APIMeta contains response metadata.
type APIMeta struct {
	Timestamp string `json:"timestamp"`
}

// StartResult reports whether POST /training launched a run.
type StartResult struct {
	Launched bool           `json:"launched"`
	Reason   string         `json:"reason,omitempty"`
	Status   trainer.Status `json:"status"`
}

// PredictRequest carries plain source and target verse text.
type PredictRequest struct {
	Source string `json:"source"`
	Target string `json:"target"`
}

// TreeInfo summarizes the document tree.
type TreeInfo struct {
	InstanceCount int            `json:"instanceCount"`
	Fingerprint   string         `json:"fingerprint"`
	Groups        []string       `json:"groups"`
	States        map[string]int `json:"states"`
}

// AlignmentRequest replaces the alignment of one verse.
type AlignmentRequest struct {
	Ref        string              `json:"ref"`
	Alignments []project.Alignment `json:"alignments"`
}

// ReservationRequest reserves or releases verses for testing. Ref may name
// a group, book, chapter or verse.
type ReservationRequest struct {
	Ref      string `json:"ref"`
	Reserved bool   `json:"reserved"`
}

// handleNotFound keeps unknown paths inside the JSON envelope.
func handleNotFound(w http.ResponseWriter, r *http.Request) {
	respondError(w, http.StatusNotFound, "NOT_FOUND", "no route for "+r.Method+" "+r.URL.Path)
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	respond(w, http.StatusOK, map[string]any{
		"name":    "aligner",
		"version": s.version,
		"endpoints": []string{
			"GET /health",
			"GET|POST|DELETE /training",
			"GET|PUT /context",
			"POST /predict",
			"GET /tree",
			"PUT /tree/alignments",
			"POST /tree/reservations",
			"GET /metrics",
			"GET /ws",
		},
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respond(w, http.StatusOK, map[string]any{
		"status":            "ok",
		"uptime_seconds":    int(time.Since(s.started).Seconds()),
		"phase":             s.orch.Status().Phase,
		"websocket_clients": s.hub.ClientCount(),
	})
}

func (s *Server) handleTrainingStatus(w http.ResponseWriter, r *http.Request) {
	respond(w, http.StatusOK, s.orch.Status())
}

// handleStartTraining launches a run. ?force=true retrains an unchanged
// tree. Skipped runs are not errors.
func (s *Server) handleStartTraining(w http.ResponseWriter, r *http.Request) {
	force := r.URL.Query().Get("force") == "true"
	err := s.orch.StartTraining(r.Context(), force)
	switch {
	case err == nil:
		respond(w, http.StatusAccepted, StartResult{Launched: true, Status: s.orch.Status()})
	case errors.Is(err, trainer.ErrRunning):
		respondError(w, http.StatusConflict, "TRAINING_RUNNING", err.Error())
	case errors.Is(err, trainer.ErrUpToDate), errors.Is(err, apperrors.ErrInsufficientData):
		respond(w, http.StatusOK, StartResult{Reason: err.Error(), Status: s.orch.Status()})
	default:
		respondErr(w, err)
	}
}

func (s *Server) handleStopTraining(w http.ResponseWriter, r *http.Request) {
	if err := s.orch.Stop(r.Context()); err != nil {
		respondErr(w, err)
		return
	}
	respond(w, http.StatusOK, s.orch.Status())
}

func (s *Server) handleGetContext(w http.ResponseWriter, r *http.Request) {
	respond(w, http.StatusOK, s.orch.Status().Context)
}

func (s *Server) handleSetContext(w http.ResponseWriter, r *http.Request) {
	var c trainer.Context
	if !decode(w, r, &c) {
		return
	}
	for _, f := range []struct{ name, value string }{
		{"bibleId", c.BibleID},
		{"bookId", c.BookID},
		{"targetLanguage", c.TargetLanguage},
		{"sourceLanguage", c.SourceLanguage},
	} {
		if f.value == "" {
			respondErr(w, apperrors.NewValidation(f.name, "required"))
			return
		}
	}
	if err := s.orch.SetContext(r.Context(), c); err != nil {
		respondErr(w, err)
		return
	}
	respond(w, http.StatusOK, s.orch.Status())
}

func (s *Server) handlePredict(w http.ResponseWriter, r *http.Request) {
	var req PredictRequest
	if !decode(w, r, &req) {
		return
	}
	source := text.ToWords(text.FromPlain(req.Source))
	target := text.ToWords(text.FromPlain(req.Target))
	if len(source) == 0 || len(target) == 0 {
		respondErr(w, apperrors.NewValidation("source", "source and target text are required"))
		return
	}
	preds, err := s.orch.Predict(r.Context(), source, target)
	if err != nil {
		respondErr(w, err)
		return
	}
	if preds == nil {
		preds = []model.Prediction{}
	}
	respond(w, http.StatusOK, preds)
}

func (s *Server) handleTree(w http.ResponseWriter, r *http.Request) {
	c := s.tree.Get()
	states := make(map[string]int)
	for st, n := range c.StateCounts() {
		states[st.String()] = n
	}
	respond(w, http.StatusOK, TreeInfo{
		InstanceCount: c.InstanceCount(),
		Fingerprint:   c.Fingerprint(),
		Groups:        c.GroupNames(),
		States:        states,
	})
}

func (s *Server) handleAlignments(w http.ResponseWriter, r *http.Request) {
	var req AlignmentRequest
	if !decode(w, r, &req) {
		return
	}
	var err error
	c := s.tree.Update(func(c *tree.Collection) *tree.Collection {
		var nc *tree.Collection
		if nc, err = project.ApplyAlignment(c, req.Ref, req.Alignments); err != nil {
			return c
		}
		return nc
	})
	if err != nil {
		respondErr(w, err)
		return
	}
	logging.InfoContext(r.Context(), "alignment updated", "ref", req.Ref, "instance_count", c.InstanceCount())
	respond(w, http.StatusOK, map[string]any{"instanceCount": c.InstanceCount()})
}

func (s *Server) handleReservations(w http.ResponseWriter, r *http.Request) {
	var req ReservationRequest
	if !decode(w, r, &req) {
		return
	}
	ref, err := tree.ParseRef(req.Ref)
	if err != nil {
		respondErr(w, err)
		return
	}
	c := s.tree.Update(func(c *tree.Collection) *tree.Collection {
		var nc *tree.Collection
		if nc, err = c.SetTestReservation(ref.Selector(), req.Reserved); err != nil {
			return c
		}
		return nc
	})
	if err != nil {
		respondErr(w, err)
		return
	}
	respond(w, http.StatusOK, map[string]any{"instanceCount": c.InstanceCount()})
}

// decode reads a JSON body into v, answering the request itself on
// failure.
func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if !server.IsJSON(r.Header.Get("Content-Type")) {
		respondError(w, http.StatusUnsupportedMediaType, "UNSUPPORTED_MEDIA_TYPE", "Content-Type must be application/json")
		return false
	}
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_JSON", err.Error())
		return false
	}
	return true
}

// respondErr maps the error taxonomy onto HTTP statuses.
func respondErr(w http.ResponseWriter, err error) {
	var (
		verr *apperrors.ValidationError
		perr *apperrors.ParseError
	)
	switch {
	case errors.As(err, &verr), errors.As(err, &perr), errors.Is(err, apperrors.ErrInvalidInput):
		respondError(w, http.StatusBadRequest, "INVALID_INPUT", err.Error())
	case errors.Is(err, apperrors.ErrNotFound):
		respondError(w, http.StatusNotFound, "NOT_FOUND", err.Error())
	case errors.Is(err, apperrors.ErrAlignmentMerge):
		respondError(w, http.StatusUnprocessableEntity, "ALIGNMENT_MERGE", err.Error())
	case errors.Is(err, apperrors.ErrNotSelected):
		respondError(w, http.StatusBadRequest, "NOT_SELECTED", err.Error())
	case errors.Is(err, trainer.ErrNoModel):
		respondError(w, http.StatusNotFound, "NO_MODEL", err.Error())
	case errors.Is(err, trainer.ErrStopped):
		respondError(w, http.StatusServiceUnavailable, "UNAVAILABLE", err.Error())
	default:
		logging.Error("request failed", "error", err)
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error())
	}
}

// respond sends a JSON response.
func respond(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(APIResponse{
		Success: status < 400,
		Data:    data,
		Meta:    &APIMeta{Timestamp: time.Now().UTC().Format(time.RFC3339)},
	})
}

// respondError sends an error response.
func respondError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(APIResponse{
		Success: false,
		Error:   &APIError{Code: code, Message: message},
		Meta:    &APIMeta{Timestamp: time.Now().UTC().Format(time.RFC3339)},
	})
}
