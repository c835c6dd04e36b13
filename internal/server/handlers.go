package server

import (
	"errors"
	"net/http"

	"github.com/bobmcallan/tasktrace/internal/jobserr"
)

type submitRequest struct {
	Cmd string `json:"cmd"`
}

// handleSubmit enqueues the command verbatim; no shell validation is
// performed. Returns 200 with no body on success.
func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	var req submitRequest
	if !DecodeJSON(w, r, &req) {
		return
	}

	if _, err := s.queue.Enqueue(req.Cmd, ""); err != nil {
		if errors.Is(err, jobserr.ErrInvalid) {
			WriteError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.logger.Error().Err(err).Msg("enqueue failed")
		WriteError(w, http.StatusInternalServerError, "failed to enqueue job")
		return
	}

	w.WriteHeader(http.StatusOK)
}

type pruneRequest struct {
	IDs []string `json:"ids"`
}

// handlePrune removes the archive file for each requested id. Returns 200
// with no body on success. This is distinct from the queue's own prune
// (which removes terminal queue records and their dependency snapshots):
// this endpoint only ever touches archives.
func (s *Server) handlePrune(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	var req pruneRequest
	if !DecodeJSON(w, r, &req) {
		return
	}

	for _, id := range req.IDs {
		if err := s.archives.Delete(id); err != nil {
			s.logger.Warn().Err(err).Str("job_id", id).Msg("failed to prune archive")
		}
	}

	w.WriteHeader(http.StatusOK)
}
