package server

import (
	"net/http"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/go-chi/chi/v5"
	"golang.org/x/xerrors"

	"github.com/rqzrqh/multisig_coordinator/common"
	"github.com/rqzrqh/multisig_coordinator/engine"
)

type validator interface {
	Validate() error
}

// decode reads a JSON body into msg and validates it. It writes the error
// response itself and reports whether the handler should continue.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, msg validator) bool {
	if err := readJSON(w, r, msg); err != nil {
		s.fail(w, r, xerrors.Errorf("decode body: %v: %w", err, common.ErrInvalidInput))
		return false
	}
	if err := msg.Validate(); err != nil {
		s.fail(w, r, err)
		return false
	}
	return true
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	if !s.ready.Load() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]interface{}{"status": "starting"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "ok",
		"executing": s.executor.InFlight(),
	})
}

func (s *Server) linkOwner(w http.ResponseWriter, r *http.Request) {
	var msg engine.LinkOwnerMsg
	if !s.decode(w, r, &msg) {
		return
	}
	rec, err := s.engine.LinkOwnerToFactory(r.Context(), &msg)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) lookupOwner(w http.ResponseWriter, r *http.Request) {
	owner := r.URL.Query().Get("address")
	if owner == "" {
		s.fail(w, r, xerrors.Errorf("address query parameter required: %w", common.ErrInvalidInput))
		return
	}
	rec, err := s.engine.LookupOwner(r.Context(), owner)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) grantOwnership(w http.ResponseWriter, r *http.Request) {
	var msg engine.GrantOwnershipMsg
	if !s.decode(w, r, &msg) {
		return
	}
	added, err := s.engine.GrantOwnership(r.Context(), &msg)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"addedTo": added})
}

func (s *Server) propose(w http.ResponseWriter, r *http.Request) {
	var msg engine.ProposeMsg
	if !s.decode(w, r, &msg) {
		return
	}
	req, err := s.engine.ProposeTransaction(r.Context(), &msg)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, req)
}

func (s *Server) listRequests(w http.ResponseWriter, r *http.Request) {
	owner := r.URL.Query().Get("address")
	if owner == "" {
		s.fail(w, r, xerrors.Errorf("address query parameter required: %w", common.ErrInvalidInput))
		return
	}
	list, err := s.engine.GetAggregatedRequests(r.Context(), owner)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) getRequest(w http.ResponseWriter, r *http.Request) {
	agg, err := s.engine.GetAggregatedRequest(r.Context(), chi.URLParam(r, "account"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, agg)
}

func (s *Server) signingMessage(w http.ResponseWriter, r *http.Request) {
	msg, req, err := s.engine.SigningMessage(r.Context(), chi.URLParam(r, "account"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"account":  req.Account,
		"revision": req.Revision,
		"message":  hexutil.Encode(msg),
	})
}

func (s *Server) setStatus(w http.ResponseWriter, r *http.Request) {
	var msg engine.SetStatusMsg
	if err := readJSON(w, r, &msg); err != nil {
		s.fail(w, r, xerrors.Errorf("decode body: %v: %w", err, common.ErrInvalidInput))
		return
	}
	account := chi.URLParam(r, "account")
	if msg.Account != "" && msg.Account != account {
		s.fail(w, r, xerrors.Errorf("body account %s does not match path: %w", msg.Account, common.ErrInvalidInput))
		return
	}
	msg.Account = account
	if err := msg.Validate(); err != nil {
		s.fail(w, r, err)
		return
	}

	req, err := s.engine.SetStatus(r.Context(), &msg)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

func (s *Server) markExecuted(w http.ResponseWriter, r *http.Request) {
	req, err := s.engine.MarkExecuted(r.Context(), chi.URLParam(r, "account"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

func (s *Server) execute(w http.ResponseWriter, r *http.Request) {
	res, err := s.executor.Execute(r.Context(), chi.URLParam(r, "account"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) submitSignature(w http.ResponseWriter, r *http.Request) {
	var msg engine.SubmitSignatureMsg
	if !s.decode(w, r, &msg) {
		return
	}
	agg, err := s.engine.SubmitSignature(r.Context(), &msg)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, agg)
}
