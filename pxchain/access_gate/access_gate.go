/*******************************************************************************
 *
 *
 * (c) Copyright Merative US L.P. and others 2020-2022
 *
 * SPDX-Licence-Identifier: Apache 2.0
 *
 *******************************************************************************/

// Package access_gate enforces consent on the record ledger.
//
// A requester asks for access to a record; the gate sends a consent check to the
// consent ledger and waits for its decision. The request is granted, denied, or
// (when the consent ledger stays silent past the retry budget) denied with
// ConsentCheckTimeout. Grants are revoked when the governing policy is revoked or
// expires, when the record is removed, or when the requester relinquishes them.
// Each request reaches exactly one terminal state.
package access_gate

import (
	"encoding/json"

	"github.com/choiwab/patient-x/pxchain/cached_stub"
	"github.com/choiwab/patient-x/pxchain/custom_errors"
	"github.com/choiwab/patient-x/pxchain/data_model"
	"github.com/choiwab/patient-x/pxchain/identity"
	"github.com/choiwab/patient-x/pxchain/internal/access_gate_i"
	"github.com/choiwab/patient-x/pxchain/record_mgmt"
	"github.com/choiwab/patient-x/pxchain/utils"

	"github.com/hyperledger/fabric/core/chaincode/shim"
	"github.com/pkg/errors"
)

var logger = shim.NewLogger("access_gate")

// Gate is the access gate consulted by the record catalog.
// Register it with record_mgmt.SetAccessGate.
type Gate struct{}

// LiveGrant returns the granted, unexpired request of requesterID on recordRef.
func (Gate) LiveGrant(stub cached_stub.CachedStubInterface, requesterID string, recordRef string) (data_model.AccessRequest, bool, error) {
	return access_gate_i.LiveGrant(stub, requesterID, recordRef)
}

// OnRecordRemoved ends every request on a removed record.
func (Gate) OnRecordRemoved(stub cached_stub.CachedStubInterface, recordRef string, at int64) error {
	return access_gate_i.OnRecordRemoved(stub, recordRef, at)
}

// ------------------------------------------------------
// ---------------------- INIT FUNCTIONS ----------------
// ------------------------------------------------------

// Init sets up the access_gate package.
func Init(stub cached_stub.CachedStubInterface, logLevel ...shim.LoggingLevel) ([]byte, error) {
	if len(logLevel) > 0 {
		logger.SetLevel(logLevel[0])
	}
	defer utils.ExitFnLogger(logger, utils.EnterFnLogger(logger))
	return access_gate_i.Init(stub, logLevel...)
}

// RequestAccess asks for access to a record for a purpose.
//
// args = [ recordRef, purpose ]
//
// purpose is the JSON of a data_model.Purpose. Returns the request, pending its consent check.
func RequestAccess(stub cached_stub.CachedStubInterface, caller data_model.Identity, args []string) ([]byte, error) {
	defer utils.ExitFnLogger(logger, utils.EnterFnLogger(logger))
	logger.Debugf("callerID: %v", caller.ID)

	if len(args) != 2 {
		return nil, argsError("expected [recordRef, purpose]")
	}
	purpose := data_model.Purpose{}
	if err := json.Unmarshal([]byte(args[1]), &purpose); err != nil {
		custom_err := &custom_errors.InvalidArgumentError{Argument: "purpose", Reason: err.Error()}
		logger.Errorf("%v", custom_err)
		return nil, errors.WithStack(custom_err)
	}
	request, err := RequestAccessWithParams(stub, caller, args[0], purpose)
	if err != nil {
		return nil, err
	}
	return json.Marshal(request)
}

// RequestAccessWithParams asks for access to a record for a purpose.
func RequestAccessWithParams(stub cached_stub.CachedStubInterface, caller data_model.Identity, recordRef string, purpose data_model.Purpose) (data_model.AccessRequest, error) {
	return access_gate_i.RequestAccess(stub, caller, recordRef, purpose)
}

// CancelRequest withdraws a pending request or relinquishes a grant.
//
// args = [ requestID ]
func CancelRequest(stub cached_stub.CachedStubInterface, caller data_model.Identity, args []string) ([]byte, error) {
	defer utils.ExitFnLogger(logger, utils.EnterFnLogger(logger))

	if len(args) != 1 {
		return nil, argsError("expected [requestID]")
	}
	request, err := access_gate_i.CancelRequest(stub, caller, args[0])
	if err != nil {
		return nil, err
	}
	return json.Marshal(request)
}

// GetAccessRequest returns a request to its requester, the record owner or the ledger admin.
//
// args = [ requestID ]
func GetAccessRequest(stub cached_stub.CachedStubInterface, caller data_model.Identity, args []string) ([]byte, error) {
	if len(args) != 1 {
		return nil, argsError("expected [requestID]")
	}
	request, found, err := GetAccessRequestWithParams(stub, args[0])
	if err != nil {
		return nil, err
	}
	if !found {
		custom_err := &custom_errors.NotFoundError{Type: "AccessRequest", ID: args[0]}
		logger.Errorf("%v", custom_err)
		return nil, errors.WithStack(custom_err)
	}
	if caller.ID != request.RequesterID {
		record, _, err := record_mgmt.GetRecordWithParams(stub, request.RecordRef)
		if err != nil {
			return nil, err
		}
		isAdmin, err := identity.IsAdmin(stub, caller)
		if err != nil {
			return nil, err
		}
		if !isAdmin && caller.ID != record.OwnerID {
			custom_err := &custom_errors.NotRequesterError{RequestID: request.RequestID, CallerID: caller.ID}
			logger.Errorf("%v", custom_err)
			return nil, errors.WithStack(custom_err)
		}
	}
	return json.Marshal(request)
}

// GetAccessRequestWithParams returns a request.
func GetAccessRequestWithParams(stub cached_stub.CachedStubInterface, requestID string) (data_model.AccessRequest, bool, error) {
	return access_gate_i.GetAccessRequest(stub, requestID)
}

// GetAccessRequestsByRequester returns the requests made by the caller.
//
// args = [ ]
func GetAccessRequestsByRequester(stub cached_stub.CachedStubInterface, caller data_model.Identity, args []string) ([]byte, error) {
	requests, err := access_gate_i.GetAccessRequestsByRequester(stub, caller.ID)
	if err != nil {
		return nil, err
	}
	return json.Marshal(requests)
}

// CheckAccess reports whether a requester holds a live grant on a record.
//
// args = [ requesterID, recordRef ]
//
// Returns {"granted": bool, "request_id": string, "expires_at": int}.
func CheckAccess(stub cached_stub.CachedStubInterface, caller data_model.Identity, args []string) ([]byte, error) {
	if len(args) != 2 {
		return nil, argsError("expected [requesterID, recordRef]")
	}
	request, live, err := CheckAccessWithParams(stub, args[0], args[1])
	if err != nil {
		return nil, err
	}
	result := struct {
		Granted   bool   `json:"granted"`
		RequestID string `json:"request_id,omitempty"`
		ExpiresAt int64  `json:"expires_at,omitempty"`
	}{Granted: live}
	if live {
		result.RequestID = request.RequestID
		result.ExpiresAt = request.ExpiresAt
	}
	return json.Marshal(result)
}

// CheckAccessWithParams returns the live grant of requesterID on recordRef.
func CheckAccessWithParams(stub cached_stub.CachedStubInterface, requesterID string, recordRef string) (data_model.AccessRequest, bool, error) {
	return access_gate_i.LiveGrant(stub, requesterID, recordRef)
}

// CheckTimeouts re-sends or times out unanswered consent checks.
// Returns {"resent": n, "timed_out": n}.
func CheckTimeouts(stub cached_stub.CachedStubInterface) ([]byte, error) {
	resent, timedOut, err := access_gate_i.CheckTimeouts(stub)
	if err != nil {
		return nil, err
	}
	return json.Marshal(map[string]int{"resent": resent, "timed_out": timedOut})
}

// ReceiveConsentDecision applies a consent_decision message.
func ReceiveConsentDecision(stub cached_stub.CachedStubInterface, msg data_model.Message) error {
	return access_gate_i.ReceiveConsentDecision(stub, msg)
}

// ReceivePolicyStatus applies a policy_revoked or policy_expired message.
func ReceivePolicyStatus(stub cached_stub.CachedStubInterface, msg data_model.Message) error {
	return access_gate_i.ReceivePolicyStatus(stub, msg)
}

// ReceivePolicyRenewed applies a policy_renewed message.
func ReceivePolicyRenewed(stub cached_stub.CachedStubInterface, msg data_model.Message) error {
	return access_gate_i.ReceivePolicyRenewed(stub, msg)
}

// ReceiveProvenanceLogged applies a provenance_logged message.
func ReceiveProvenanceLogged(stub cached_stub.CachedStubInterface, msg data_model.Message) error {
	return access_gate_i.ReceiveProvenanceLogged(stub, msg)
}

// OnDeliveryFailed handles a message of the gate the relay gave up on.
func OnDeliveryFailed(stub cached_stub.CachedStubInterface, failure data_model.DeliveryFailure) error {
	return access_gate_i.OnDeliveryFailed(stub, failure)
}

func argsError(reason string) error {
	custom_err := &custom_errors.InvalidArgumentError{Argument: "args", Reason: reason}
	logger.Errorf("%v", custom_err)
	return errors.WithStack(custom_err)
}
