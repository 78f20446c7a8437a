package api

import (
	"errors"
	"net/http"

	"github.com/pigeonworks-llc/txn-ledger/pkg/ledger"
	"go.uber.org/zap"
)

// writeLedgerError maps an engine error to a response. A FAILED transaction
// is returned as the body of a 422 so clients see the stored record.
func writeLedgerError(w http.ResponseWriter, logger *zap.SugaredLogger, err error) {
	if errors.Is(err, ledger.ErrFailureNotRecorded) {
		logger.Errorw("request failed", "error", err)
		writeJSONError(w, http.StatusInternalServerError, "server_error", "Transaction failed but the failure could not be recorded")
		return
	}
	if txn, ok := ledger.FailedTxn(err); ok {
		writeJSON(w, http.StatusUnprocessableEntity, txn)
		return
	}

	var le *ledger.Error
	if errors.As(err, &le) && le.Kind != ledger.KindUnclassified {
		writeJSONError(w, http.StatusBadRequest, string(le.Reason), le.Error())
		return
	}

	switch {
	case errors.Is(err, ledger.ErrInvalidAccount):
		writeJSONError(w, http.StatusBadRequest, "invalid_request", err.Error())
	case errors.Is(err, ledger.ErrNotFound), errors.Is(err, ledger.ErrInvalidID):
		writeJSONError(w, http.StatusNotFound, "not_found", "Record not found")
	default:
		logger.Errorw("request failed", "error", err)
		writeJSONError(w, http.StatusInternalServerError, "server_error", "Internal server error")
	}
}
