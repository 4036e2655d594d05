package service

import (
	"fmt"
	"net/http"

	domainerrors "github.com/rebase-energy/workspace-server/internal/errors"
	"github.com/rebase-energy/workspace-server/internal/store"
)

// storeError converts a gateway error into a coded domain error so handlers
// only deal with one error family. The store error stays in the chain.
func storeError(op string, err error) error {
	if err == nil {
		return nil
	}
	var se *store.Error
	if !domainerrors.As(err, &se) {
		return fmt.Errorf("%s: %w", op, err)
	}

	msg := op + ": " + se.Message
	switch se.Code {
	case http.StatusNotFound:
		return domainerrors.Wrap(err, domainerrors.CodeNotFound, msg)
	case http.StatusConflict:
		return domainerrors.Wrap(err, domainerrors.CodeAlreadyExists, msg)
	case http.StatusBadRequest:
		return domainerrors.Wrap(err, domainerrors.CodeValidation, msg)
	case http.StatusServiceUnavailable:
		return domainerrors.Wrap(err, domainerrors.CodeNotConfigured, msg)
	case http.StatusBadGateway:
		return domainerrors.Wrap(err, domainerrors.CodeTransport, msg)
	default:
		return domainerrors.Wrap(err, domainerrors.CodeInternal, msg)
	}
}
