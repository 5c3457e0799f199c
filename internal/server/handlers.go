package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/greenwave/gwupdate/internal/desktop"
	"github.com/greenwave/gwupdate/internal/probe"
	"github.com/greenwave/gwupdate/internal/types"
	"github.com/greenwave/gwupdate/internal/update"
)

type openRequest struct {
	Dir string `json:"dir"`
}

type openResponse struct {
	Result desktop.Result `json:"result"`
}

type jobAccepted struct {
	ID    string      `json:"id"`
	Phase types.Phase `json:"phase"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, "ok")
}

// handleProbe shares one probe between concurrent requests for the same directory.
func (s *Server) handleProbe(w http.ResponseWriter, r *http.Request) {
	dir := s.backend.ResolveDir(r.URL.Query().Get("dir"))

	ch := s.probes.DoChan(dir, func() (any, error) {
		return s.backend.Probe(s.baseCtx, dir), nil
	})
	select {
	case res := <-ch:
		writeJSON(w, http.StatusOK, res.Val.(probe.Result))
	case <-r.Context().Done():
	}
}

func (s *Server) handleInstall(w http.ResponseWriter, r *http.Request) {
	req, err := s.decodeInstall(w, r)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	res := s.backend.Install(r.Context(), req, nil)
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleStartJob(w http.ResponseWriter, r *http.Request) {
	req, err := s.decodeInstall(w, r)
	if err != nil {
		writeBadRequest(w, err)
		return
	}

	job := s.jobs.create(req)
	s.logger.Info("install job started",
		zap.String("job", job.ID),
		zap.String("dir", req.Dir),
		zap.String("version", req.Version))

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		res := s.backend.Install(s.baseCtx, req, func(e update.Event) {
			s.jobs.progress(job.ID, e)
		})
		s.jobs.finish(job.ID, res)
		s.logger.Info("install job finished", zap.String("job", job.ID), zap.String("outcome", res.Outcome.String()))
	}()

	writeJSON(w, http.StatusAccepted, jobAccepted{ID: job.ID, Phase: job.Phase})
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	job, ok := s.jobs.get(id)
	if !ok {
		writeNotFound(w, fmt.Sprintf("install job %q not found", id))
		return
	}
	writeJSON(w, http.StatusOK, job)
}

// handleOpen accepts an optional {"dir": ...} body or a dir query parameter.
func (s *Server) handleOpen(w http.ResponseWriter, r *http.Request) {
	var req openRequest
	if err := decodeBody(w, r, &req); err != nil && !errors.Is(err, io.EOF) {
		writeBadRequest(w, err)
		return
	}
	if req.Dir == "" {
		req.Dir = r.URL.Query().Get("dir")
	}
	writeJSON(w, http.StatusOK, openResponse{Result: s.backend.Open(req.Dir)})
}

func (s *Server) decodeInstall(w http.ResponseWriter, r *http.Request) (update.Request, error) {
	var req update.Request
	if err := decodeBody(w, r, &req); err != nil {
		if errors.Is(err, io.EOF) {
			return req, errors.New("request body is required")
		}
		return req, err
	}
	req.Dir = s.backend.ResolveDir(req.Dir)
	if err := req.Validate(); err != nil {
		return req, err
	}
	return req, nil
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return err
		}
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}
