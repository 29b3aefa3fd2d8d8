// server.go - REST interface over the verification pool.
//
// The HTTP layer is a thin adapter: it decodes wire encodings, maps the
// pool's error taxonomy onto status codes, and never holds state of its
// own. One slot protocol call per request.

package main

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	groth16bn254 "github.com/consensys/gnark/backend/groth16/bn254"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"shield/internal/merkle"
	"shield/internal/pool"
	"shield/internal/vm"
)

type server struct {
	pool  *pool.Pool
	reg   *prometheus.Registry
	log   zerolog.Logger
	start time.Time
}

func newServer(p *pool.Pool, reg *prometheus.Registry, log zerolog.Logger) *server {
	return &server{pool: p, reg: reg, log: log, start: time.Now()}
}

func (s *server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /computations", s.handleSubmit)
	mux.HandleFunc("GET /computations/{id}", s.handleStatus)
	mux.HandleFunc("POST /computations/{id}/advance", s.handleAdvance)
	mux.HandleFunc("POST /computations/{id}/finalize", s.handleFinalize)
	mux.HandleFunc("POST /computations/{id}/abort", s.handleAbort)
	mux.HandleFunc("GET /root", s.handleRoot)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.Handle("GET /metrics", promhttp.HandlerFor(s.reg, promhttp.HandlerOpts{}))
	return mux
}

type submitRequest struct {
	Kind         string   `json:"kind"`
	Proof        string   `json:"proof"`
	PublicInputs []string `json:"public_inputs"`
}

type submitResponse struct {
	ID     string `json:"id"`
	Rounds int    `json:"rounds"`
}

type advanceRequest struct {
	Round uint32 `json:"round"`
}

type statusResponse struct {
	Status string `json:"status"`
	Round  uint32 `json:"round"`
}

type finalizeResponse struct {
	Accepted  bool   `json:"accepted"`
	Kind      string `json:"kind"`
	NewRoot   string `json:"new_root,omitempty"`
	LeafIndex uint32 `json:"leaf_index,omitempty"`
	Nullifier string `json:"nullifier,omitempty"`
}

func parseKind(s string) (pool.Kind, error) {
	switch s {
	case "deposit":
		return pool.KindDeposit, nil
	case "withdraw":
		return pool.KindWithdraw, nil
	default:
		return 0, fmt.Errorf("%w: %q", pool.ErrUnknownKind, s)
	}
}

// parseProof decodes the canonical gnark proof serialization.
func parseProof(hexBytes string) (vm.Proof, error) {
	raw, err := hex.DecodeString(hexBytes)
	if err != nil {
		return vm.Proof{}, fmt.Errorf("%w: proof hex: %v", vm.ErrMalformedInput, err)
	}
	var p groth16bn254.Proof
	if _, err := p.ReadFrom(bytes.NewReader(raw)); err != nil {
		return vm.Proof{}, fmt.Errorf("%w: proof encoding: %v", vm.ErrMalformedInput, err)
	}
	return vm.Proof{A: p.Ar, B: p.Bs, C: p.Krs}, nil
}

func parseInputs(hexInputs []string) ([]fr.Element, error) {
	inputs := make([]fr.Element, len(hexInputs))
	for i, h := range hexInputs {
		raw, err := hex.DecodeString(h)
		if err != nil || len(raw) != 32 {
			return nil, fmt.Errorf("%w: public input %d", vm.ErrMalformedInput, i)
		}
		if err := inputs[i].SetBytesCanonical(raw); err != nil {
			return nil, fmt.Errorf("%w: public input %d not canonical", vm.ErrMalformedInput, i)
		}
	}
	return inputs, nil
}

func (s *server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, fmt.Errorf("%w: %v", vm.ErrMalformedInput, err))
		return
	}
	kind, err := parseKind(req.Kind)
	if err != nil {
		s.writeError(w, err)
		return
	}
	proof, err := parseProof(req.Proof)
	if err != nil {
		s.writeError(w, err)
		return
	}
	inputs, err := parseInputs(req.PublicInputs)
	if err != nil {
		s.writeError(w, err)
		return
	}

	id, err := s.pool.Submit(kind, proof, inputs)
	if err != nil {
		s.writeError(w, err)
		return
	}
	k, err := s.pool.K(kind)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, submitResponse{ID: id.String(), Rounds: k})
}

func (s *server) computationID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		s.writeError(w, fmt.Errorf("%w: computation id", vm.ErrMalformedInput))
		return uuid.Nil, false
	}
	return id, true
}

func (s *server) handleStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := s.computationID(w, r)
	if !ok {
		return
	}
	status, round, err := s.pool.Status(id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, statusResponse{Status: status.String(), Round: round})
}

func (s *server) handleAdvance(w http.ResponseWriter, r *http.Request) {
	id, ok := s.computationID(w, r)
	if !ok {
		return
	}
	var req advanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, fmt.Errorf("%w: %v", vm.ErrMalformedInput, err))
		return
	}
	status, err := s.pool.Advance(id, req.Round)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, statusResponse{Status: status.String(), Round: req.Round + 1})
}

func (s *server) handleFinalize(w http.ResponseWriter, r *http.Request) {
	id, ok := s.computationID(w, r)
	if !ok {
		return
	}
	res, err := s.pool.Finalize(id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	resp := finalizeResponse{Accepted: res.Accepted, Kind: res.Kind.String()}
	if res.Accepted {
		resp.NewRoot = hex.EncodeToString(res.NewRoot[:])
		if res.Kind == pool.KindDeposit {
			resp.LeafIndex = res.LeafIndex
		}
		if res.Kind == pool.KindWithdraw {
			resp.Nullifier = hex.EncodeToString(res.Nullifier[:])
		}
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *server) handleAbort(w http.ResponseWriter, r *http.Request) {
	id, ok := s.computationID(w, r)
	if !ok {
		return
	}
	if err := s.pool.Abort(id); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) handleRoot(w http.ResponseWriter, _ *http.Request) {
	root := s.pool.Root()
	s.writeJSON(w, http.StatusOK, map[string]string{"root": hex.EncodeToString(root[:])})
}

func (s *server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": version,
		"uptime":  time.Since(s.start).String(),
	})
}

func (s *server) writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Error().Err(err).Msg("write response")
	}
}

func (s *server) writeError(w http.ResponseWriter, err error) {
	code := http.StatusInternalServerError
	switch {
	case errors.Is(err, vm.ErrMalformedInput), errors.Is(err, pool.ErrUnknownKind):
		code = http.StatusBadRequest
	case errors.Is(err, pool.ErrNotFound):
		code = http.StatusNotFound
	case errors.Is(err, vm.ErrSequence),
		errors.Is(err, vm.ErrAlreadyFinished),
		errors.Is(err, pool.ErrDuplicateComputation),
		errors.Is(err, pool.ErrNotFinished):
		code = http.StatusConflict
	case errors.Is(err, pool.ErrUnknownRoot),
		errors.Is(err, pool.ErrDoubleSpend),
		errors.Is(err, merkle.ErrCapacityExceeded):
		code = http.StatusUnprocessableEntity
	}
	if code == http.StatusInternalServerError {
		s.log.Error().Err(err).Msg("request failed")
	}
	s.writeJSON(w, code, map[string]string{"error": err.Error()})
}
