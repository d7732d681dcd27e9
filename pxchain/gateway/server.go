/*******************************************************************************
 *
 *
 * (c) Copyright Merative US L.P. and others 2020-2022
 *
 * SPDX-Licence-Identifier: Apache 2.0
 *
 *******************************************************************************/

package gateway

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/choiwab/patient-x/pxchain/custom_errors"

	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"
)

// InvokeRequest is the body of POST /ledgers/{ledger}/invoke.
type InvokeRequest struct {
	Caller   string   `json:"caller"`
	Function string   `json:"function"`
	Args     []string `json:"args,omitempty"`
}

// InvokeResponse carries the payload of a successful invocation.
type InvokeResponse struct {
	Payload []byte `json:"payload"`
}

// ErrorResponse carries the descriptor of a failed invocation.
type ErrorResponse struct {
	Error custom_errors.ErrorDescriptor `json:"error"`
}

// NewHandler serves ledgers under /ledgers/{ledger}.
//
//	GET  /health
//	GET  /ledgers
//	POST /ledgers/{ledger}/invoke
func NewHandler(ledgers map[string]Ledger) http.Handler {
	r := chi.NewRouter()
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	})
	r.Get("/ledgers", func(w http.ResponseWriter, _ *http.Request) {
		names := make([]string, 0, len(ledgers))
		for name := range ledgers {
			names = append(names, name)
		}
		writeJSON(w, http.StatusOK, map[string]any{"ledgers": names})
	})
	r.Route("/ledgers/{ledger}", func(api chi.Router) {
		api.Post("/invoke", func(w http.ResponseWriter, r *http.Request) {
			name := chi.URLParam(r, "ledger")
			ledger, ok := ledgers[name]
			if !ok {
				writeError(w, &custom_errors.NotFoundError{Type: "ledger", ID: name})
				return
			}
			req := InvokeRequest{}
			if err := readJSON(r, &req); err != nil {
				writeError(w, &custom_errors.InvalidArgumentError{Argument: "body", Reason: err.Error()})
				return
			}
			if len(req.Function) == 0 || len(req.Caller) == 0 {
				writeError(w, &custom_errors.InvalidArgumentError{Argument: "body", Reason: "function and caller are required"})
				return
			}
			payload, err := ledger.Invoke(r.Context(), req.Caller, req.Function, req.Args...)
			if err != nil {
				logger.Debugf("%v %v by %v failed: %v", name, req.Function, req.Caller, err)
				writeError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, InvokeResponse{Payload: payload})
		})
	})
	return r
}

// StatusOf maps a failed invocation to an HTTP status.
func StatusOf(d custom_errors.ErrorDescriptor) int {
	if strings.HasSuffix(d.Code, "NotFound") {
		return http.StatusNotFound
	}
	switch d.Category {
	case custom_errors.CATEGORY_VALIDATION:
		return http.StatusBadRequest
	case custom_errors.CATEGORY_AUTHORIZATION:
		return http.StatusForbidden
	case custom_errors.CATEGORY_STATE:
		return http.StatusConflict
	case custom_errors.CATEGORY_POLICY:
		return http.StatusUnprocessableEntity
	case custom_errors.CATEGORY_TRANSPORT:
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func describe(err error) custom_errors.ErrorDescriptor {
	if d, ok := errors.Cause(err).(custom_errors.ErrorDescriptor); ok {
		return d
	}
	return custom_errors.Describe(err)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	d := describe(err)
	writeJSON(w, StatusOf(d), ErrorResponse{Error: d})
}

func readJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}
