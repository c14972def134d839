package server

import (
	"context"
	"net/http"

	"golang.org/x/xerrors"

	"github.com/rqzrqh/multisig_coordinator/common"
)

var errorCodes = []struct {
	err    error
	status int
	code   string
}{
	{common.ErrInvalidAddress, http.StatusBadRequest, "INVALID_ADDRESS"},
	{common.ErrInvalidInput, http.StatusBadRequest, "INVALID_INPUT"},
	{common.ErrMessageMismatch, http.StatusUnprocessableEntity, "MESSAGE_MISMATCH"},
	{common.ErrNotAnOwner, http.StatusForbidden, "NOT_AN_OWNER"},
	{common.ErrUnknownAccount, http.StatusNotFound, "UNKNOWN_ACCOUNT"},
	{common.ErrNotFound, http.StatusNotFound, "NOT_FOUND"},
	{common.ErrConflict, http.StatusConflict, "CONFLICT"},
	{common.ErrDuplicate, http.StatusConflict, "DUPLICATE"},
	{common.ErrInvalidTransition, http.StatusConflict, "INVALID_TRANSITION"},
	{common.ErrExecutionFailed, http.StatusBadGateway, "EXECUTION_FAILED"},
	{common.ErrChainUnavailable, http.StatusBadGateway, "CHAIN_UNAVAILABLE"},
	{common.ErrUnsupportedOperation, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED"},
	{context.DeadlineExceeded, http.StatusGatewayTimeout, "TIMEOUT"},
}

func statusOf(err error) (int, string) {
	for _, c := range errorCodes {
		if xerrors.Is(err, c.err) {
			return c.status, c.code
		}
	}
	return http.StatusInternalServerError, "INTERNAL"
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, code := statusOf(err)
	if status >= http.StatusInternalServerError {
		log.Errorw("request failed", "method", r.Method, "path", r.URL.Path, "err", err)
	} else {
		log.Debugw("request rejected", "method", r.Method, "path", r.URL.Path, "code", code, "err", err)
	}
	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = "internal error"
	}
	writeError(w, status, code, msg)
}
