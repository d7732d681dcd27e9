/*******************************************************************************
 *
 *
 * (c) Copyright Merative US L.P. and others 2020-2022
 *
 * SPDX-Licence-Identifier: Apache 2.0
 *
 *******************************************************************************/

// Package access_gate_i is the access request state machine of the record ledger.
//
// Index rows kept per request:
//   - AccessByRequester (requester, request): every request
//   - AccessActivePair (requester, record, request): non-terminal requests
//   - AccessByRecord (record, request): non-terminal requests
//   - AccessPending (last sent, request): requests waiting for a consent decision
//   - AccessGrantByPolicy (policy, request): granted requests
package access_gate_i

import (
	"strconv"

	"github.com/choiwab/patient-x/pxchain/cached_stub"
	"github.com/choiwab/patient-x/pxchain/custom_errors"
	"github.com/choiwab/patient-x/pxchain/data_model"
	"github.com/choiwab/patient-x/pxchain/history"
	"github.com/choiwab/patient-x/pxchain/index"
	"github.com/choiwab/patient-x/pxchain/internal/common"
	"github.com/choiwab/patient-x/pxchain/internal/common/global"
	"github.com/choiwab/patient-x/pxchain/messenger"
	"github.com/choiwab/patient-x/pxchain/record_mgmt"
	"github.com/choiwab/patient-x/pxchain/utils"

	"github.com/google/uuid"
	"github.com/hyperledger/fabric/core/chaincode/shim"
	"github.com/pkg/errors"
)

var logger = shim.NewLogger("access_gate_i")

// ------------------------------------------------------
// ---------------------- INIT FUNCTIONS ----------------
// ------------------------------------------------------

// Init sets up the access_gate package.
func Init(stub cached_stub.CachedStubInterface, logLevel ...shim.LoggingLevel) ([]byte, error) {
	if len(logLevel) > 0 {
		logger.SetLevel(logLevel[0])
	}
	return nil, nil
}

// GetRequestID returns the id of the request requesterID makes on recordRef in
// transaction txID. It is a name-based uuid, so every endorser computes the same id.
func GetRequestID(requesterID string, recordRef string, txID string) string {
	return uuid.NewSHA1(global.PX_NAMESPACE, []byte(requesterID+"\x00"+recordRef+"\x00"+txID)).String()
}

// ------------------------------------------------------
// ---------------------- REQUESTER ACTIONS -------------
// ------------------------------------------------------

// RequestAccess opens a request of caller on recordRef and sends the consent check
// for it. The request is returned in pending_consent_check.
func RequestAccess(stub cached_stub.CachedStubInterface, caller data_model.Identity, recordRef string, purpose data_model.Purpose) (data_model.AccessRequest, error) {
	defer utils.ExitFnLogger(logger, utils.EnterFnLogger(logger))
	logger.Debugf("caller: %v record: %v purpose: %v", caller.ID, recordRef, purpose.Kind)

	request := data_model.AccessRequest{}
	if !purpose.IsValid() {
		custom_err := &custom_errors.InvalidArgumentError{Argument: "purpose", Reason: "unknown purpose " + purpose.Kind}
		logger.Errorf("%v", custom_err)
		return request, errors.WithStack(custom_err)
	}
	record, found, err := record_mgmt.GetRecordWithParams(stub, recordRef)
	if err != nil {
		return request, err
	}
	if !found || record.Status != data_model.RECORD_ACTIVE {
		custom_err := &custom_errors.NotFoundError{Type: "Record", ID: recordRef}
		logger.Errorf("%v", custom_err)
		return request, errors.WithStack(custom_err)
	}
	now, err := utils.GetTxTime(stub)
	if err != nil {
		return request, err
	}

	existing, found, err := getActiveForPair(stub, caller.ID, recordRef)
	if err != nil {
		return request, err
	}
	if found {
		if existing.State == data_model.ACCESS_GRANTED && !existing.IsLive(now) {
			if err := revoke(stub, &existing, existing.ExpiresAt, data_model.REVOKE_GRANT_EXPIRED); err != nil {
				return request, err
			}
		} else {
			custom_err := &custom_errors.DuplicateActiveRequestError{RequesterID: caller.ID, RecordRef: recordRef, RequestID: existing.RequestID}
			logger.Errorf("%v", custom_err)
			return request, errors.WithStack(custom_err)
		}
	}

	request = data_model.AccessRequest{
		RequestID:   GetRequestID(caller.ID, recordRef, stub.GetTxID()),
		RequesterID: caller.ID,
		RecordRef:   recordRef,
		PolicyID:    record.PolicyID,
		Purpose:     purpose,
		State:       data_model.ACCESS_REQUESTED,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := index.GetTable(stub, global.INDEX_ACCESS_REQUESTER).PutRow(request.RequesterID, request.RequestID); err != nil {
		return request, err
	}
	if err := index.GetTable(stub, global.INDEX_ACCESS_PAIR).PutRow(request.RequesterID, request.RecordRef, request.RequestID); err != nil {
		return request, err
	}
	if err := index.GetTable(stub, global.INDEX_ACCESS_RECORD).PutRow(request.RecordRef, request.RequestID); err != nil {
		return request, err
	}
	_, err = history.PutEvent(stub, data_model.Event{
		Type:      data_model.EVENT_ACCESS_REQUESTED,
		ActorID:   caller.ID,
		RequestID: request.RequestID,
		RecordRef: recordRef,
		PolicyID:  record.PolicyID,
		Data:      map[string]string{"purpose": purpose.Kind},
	})
	if err != nil {
		return request, err
	}

	request.State = data_model.ACCESS_PENDING_CONSENT_CHECK
	if err := sendConsentCheck(stub, &request, record.Categories, now); err != nil {
		return request, err
	}
	return request, nil
}

// CancelRequest ends a request of caller: a pending request is denied (Cancelled) and
// a granted one is revoked (Relinquished).
func CancelRequest(stub cached_stub.CachedStubInterface, caller data_model.Identity, requestID string) (data_model.AccessRequest, error) {
	defer utils.ExitFnLogger(logger, utils.EnterFnLogger(logger))

	request, found, err := GetAccessRequest(stub, requestID)
	if err != nil {
		return request, err
	}
	if !found {
		custom_err := &custom_errors.NotFoundError{Type: "AccessRequest", ID: requestID}
		logger.Errorf("%v", custom_err)
		return request, errors.WithStack(custom_err)
	}
	if request.RequesterID != caller.ID {
		custom_err := &custom_errors.NotRequesterError{RequestID: requestID, CallerID: caller.ID}
		logger.Errorf("%v", custom_err)
		return request, errors.WithStack(custom_err)
	}
	now, err := utils.GetTxTime(stub)
	if err != nil {
		return request, err
	}
	switch {
	case request.IsPending():
		err = deny(stub, &request, data_model.DENY_CANCELLED, now)
	case request.State == data_model.ACCESS_GRANTED:
		err = revoke(stub, &request, now, data_model.REVOKE_RELINQUISHED)
	default:
		custom_err := &custom_errors.AlreadyDecidedError{Type: "AccessRequest", ID: requestID, State: request.State}
		logger.Errorf("%v", custom_err)
		err = errors.WithStack(custom_err)
	}
	return request, err
}

// ------------------------------------------------------
// ---------------------- MESSAGE HANDLERS --------------
// ------------------------------------------------------

// ReceiveConsentDecision applies a consent_decision message to the request named by
// its correlation id.
func ReceiveConsentDecision(stub cached_stub.CachedStubInterface, msg data_model.Message) error {
	_, err := messenger.Receive(stub, msg, func(stub cached_stub.CachedStubInterface, msg data_model.Message) error {
		payload := data_model.ConsentDecisionPayload{}
		if err := messenger.DecodePayload(msg, &payload); err != nil {
			return err
		}
		return OnConsentResponse(stub, msg.CorrelationID, payload.Decision)
	})
	return err
}

// OnConsentResponse applies a consent decision. Replies for requests that are no
// longer pending (timed out, cancelled, record removed) are ignored. An allow for a
// policy this ledger already knows left active is turned into a deny (NotActive).
func OnConsentResponse(stub cached_stub.CachedStubInterface, requestID string, decision data_model.ConsentDecision) error {
	defer utils.ExitFnLogger(logger, utils.EnterFnLogger(logger))

	request, found, err := GetAccessRequest(stub, requestID)
	if err != nil {
		return err
	}
	if !found || !request.IsPending() {
		logger.Infof("ignoring consent decision for %v (found=%v state=%v)", requestID, found, request.State)
		return nil
	}
	now, err := utils.GetTxTime(stub)
	if err != nil {
		return err
	}
	if !decision.Allowed {
		return deny(stub, &request, decision.Reason, now)
	}
	inactive, err := isPolicyInactive(stub, request.PolicyID)
	if err != nil {
		return err
	}
	if inactive {
		logger.Infof("allow for %v arrived after policy %v left active", requestID, request.PolicyID)
		return deny(stub, &request, data_model.DENY_NOT_ACTIVE, now)
	}
	return grant(stub, &request, decision.ValidUntil, now)
}

// ReceivePolicyStatus applies a policy_revoked or policy_expired message.
func ReceivePolicyStatus(stub cached_stub.CachedStubInterface, msg data_model.Message) error {
	_, err := messenger.Receive(stub, msg, func(stub cached_stub.CachedStubInterface, msg data_model.Message) error {
		payload := data_model.PolicyStatusPayload{}
		if err := messenger.DecodePayload(msg, &payload); err != nil {
			return err
		}
		reason := data_model.REVOKE_POLICY_REVOKED
		if msg.Kind == data_model.MSG_POLICY_EXPIRED {
			reason = data_model.REVOKE_POLICY_EXPIRED
		}
		return OnPolicyRevoked(stub, payload, reason)
	})
	return err
}

// ReceivePolicyRenewed applies a policy_renewed message.
func ReceivePolicyRenewed(stub cached_stub.CachedStubInterface, msg data_model.Message) error {
	_, err := messenger.Receive(stub, msg, func(stub cached_stub.CachedStubInterface, msg data_model.Message) error {
		payload := data_model.PolicyStatusPayload{}
		if err := messenger.DecodePayload(msg, &payload); err != nil {
			return err
		}
		return OnPolicyRenewed(stub, payload)
	})
	return err
}

// OnPolicyRenewed moves the expiry of every granted request under the policy to the
// new end of its window. Grants of a policy known to have left active are not touched,
// and an expiry is never moved back.
func OnPolicyRenewed(stub cached_stub.CachedStubInterface, status data_model.PolicyStatusPayload) error {
	defer utils.ExitFnLogger(logger, utils.EnterFnLogger(logger))

	inactive, err := isPolicyInactive(stub, status.PolicyID)
	if err != nil || inactive {
		return err
	}
	now, err := utils.GetTxTime(stub)
	if err != nil {
		return err
	}
	requestIDs, err := index.GetTable(stub, global.INDEX_ACCESS_POLICY).GetLastFieldByPartialKey(status.PolicyID)
	if err != nil {
		return err
	}
	extended := 0
	for _, requestID := range requestIDs {
		request, found, err := GetAccessRequest(stub, requestID)
		if err != nil {
			return err
		}
		if !found || request.State != data_model.ACCESS_GRANTED || request.ExpiresAt == 0 || request.ExpiresAt >= status.Until {
			continue
		}
		request.ExpiresAt = status.Until
		request.UpdatedAt = now
		if err := putRequest(stub, request); err != nil {
			return err
		}
		_, err = history.PutEvent(stub, data_model.Event{
			Type:      data_model.EVENT_ACCESS_EXTENDED,
			ActorID:   request.RequesterID,
			RequestID: request.RequestID,
			RecordRef: request.RecordRef,
			PolicyID:  request.PolicyID,
			Data:      map[string]string{"expires_at": strconv.FormatInt(status.Until, 10)},
		})
		if err != nil {
			return err
		}
		extended++
	}
	logger.Infof("policy %v renewed until %v: %v grants extended", status.PolicyID, status.Until, extended)
	return nil
}

// OnPolicyRevoked revokes every granted request under the policy as of status.At and
// remembers the policy is no longer active. Applying it again changes nothing.
func OnPolicyRevoked(stub cached_stub.CachedStubInterface, status data_model.PolicyStatusPayload, reason string) error {
	defer utils.ExitFnLogger(logger, utils.EnterFnLogger(logger))

	key, err := common.CompositeKey(stub, global.ACCESS_REVOKED_POLICY_PREFIX, status.PolicyID)
	if err != nil {
		return err
	}
	if err := common.PutJSON(stub, key, status, "PolicyStatusPayload"); err != nil {
		return err
	}
	requestIDs, err := index.GetTable(stub, global.INDEX_ACCESS_POLICY).GetLastFieldByPartialKey(status.PolicyID)
	if err != nil {
		return err
	}
	for _, requestID := range requestIDs {
		request, found, err := GetAccessRequest(stub, requestID)
		if err != nil {
			return err
		}
		if !found || request.State != data_model.ACCESS_GRANTED {
			continue
		}
		if err := revoke(stub, &request, status.At, reason); err != nil {
			return err
		}
	}
	logger.Infof("policy %v: %v grants revoked", status.PolicyID, len(requestIDs))
	return nil
}

// ReceiveProvenanceLogged stores the provenance event hash of a granted request.
func ReceiveProvenanceLogged(stub cached_stub.CachedStubInterface, msg data_model.Message) error {
	_, err := messenger.Receive(stub, msg, func(stub cached_stub.CachedStubInterface, msg data_model.Message) error {
		payload := data_model.ProvenanceLoggedPayload{}
		if err := messenger.DecodePayload(msg, &payload); err != nil {
			return err
		}
		return OnProvenanceLogged(stub, msg.CorrelationID, payload)
	})
	return err
}

// OnProvenanceLogged stores the hash of the provenance event logged for a grant.
func OnProvenanceLogged(stub cached_stub.CachedStubInterface, requestID string, logged data_model.ProvenanceLoggedPayload) error {
	request, found, err := GetAccessRequest(stub, requestID)
	if err != nil || !found {
		return err
	}
	if len(logged.Error) > 0 {
		logger.Warningf("provenance of %v not logged: %v", requestID, logged.Error)
		return nil
	}
	request.ProvenanceHash = logged.EventHash
	return putRequest(stub, request)
}

// OnRecordRemoved ends every request on a removed record: grants are revoked as of at
// and pending requests are denied (RecordRemoved).
func OnRecordRemoved(stub cached_stub.CachedStubInterface, recordRef string, at int64) error {
	defer utils.ExitFnLogger(logger, utils.EnterFnLogger(logger))

	requestIDs, err := index.GetTable(stub, global.INDEX_ACCESS_RECORD).GetLastFieldByPartialKey(recordRef)
	if err != nil {
		return err
	}
	for _, requestID := range requestIDs {
		request, found, err := GetAccessRequest(stub, requestID)
		if err != nil {
			return err
		}
		if !found {
			continue
		}
		switch {
		case request.State == data_model.ACCESS_GRANTED:
			err = revoke(stub, &request, at, data_model.REVOKE_RECORD_REMOVED)
		case request.IsPending():
			err = deny(stub, &request, data_model.DENY_RECORD_REMOVED, at)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// OnDeliveryFailed handles a message of this ledger the relay gave up on.
// An undelivered consent check used up its attempt: it is sent again while the retry
// budget lasts, otherwise the request is denied (ConsentCheckTimeout). An undelivered
// provenance log is sent again within the same budget.
func OnDeliveryFailed(stub cached_stub.CachedStubInterface, failure data_model.DeliveryFailure) error {
	defer utils.ExitFnLogger(logger, utils.EnterFnLogger(logger))

	msg := failure.Message
	request, found, err := GetAccessRequest(stub, msg.CorrelationID)
	if err != nil || !found {
		return err
	}
	config, err := common.GetLedgerConfig(stub)
	if err != nil {
		return err
	}
	now, err := utils.GetTxTime(stub)
	if err != nil {
		return err
	}
	switch msg.Kind {
	case data_model.MSG_CONSENT_CHECK:
		if !request.IsPending() {
			return nil
		}
		return retryOrTimeout(stub, &request, config.RetryBudget, now)
	case data_model.MSG_PROVENANCE_LOG:
		if request.State != data_model.ACCESS_GRANTED || len(request.ProvenanceHash) > 0 {
			return nil
		}
		if request.ProvenanceSent >= config.RetryBudget {
			logger.Errorf("giving up logging provenance of %v after %v sends", request.RequestID, request.ProvenanceSent)
			return nil
		}
		return sendProvenanceLog(stub, &request)
	}
	return nil
}

// CheckTimeouts goes through the requests whose consent check has been unanswered for
// the configured timeout: the check is sent again with the same correlation id while
// the retry budget lasts, otherwise the request is denied (ConsentCheckTimeout).
// It returns the number of checks re-sent and of requests timed out.
func CheckTimeouts(stub cached_stub.CachedStubInterface) (int, int, error) {
	defer utils.ExitFnLogger(logger, utils.EnterFnLogger(logger))

	config, err := common.GetLedgerConfig(stub)
	if err != nil {
		return 0, 0, err
	}
	now, err := utils.GetTxTime(stub)
	if err != nil {
		return 0, 0, err
	}
	rows, err := index.GetTable(stub, global.INDEX_ACCESS_PENDING).GetRowsByPartialKey()
	if err != nil {
		return 0, 0, err
	}
	resent, timedOut := 0, 0
	for _, row := range rows {
		sentAt, err := utils.ParseSeq(row[0])
		if err != nil {
			return resent, timedOut, errors.Wrapf(err, "Bad send time %v", row[0])
		}
		// rows are sorted by send time
		if int64(sentAt)+config.ConsentTimeout > now {
			break
		}
		request, found, err := GetAccessRequest(stub, row[1])
		if err != nil {
			return resent, timedOut, err
		}
		if !found || !request.IsPending() {
			continue
		}
		if err := retryOrTimeout(stub, &request, config.RetryBudget, now); err != nil {
			return resent, timedOut, err
		}
		if request.IsPending() {
			resent++
		} else {
			timedOut++
		}
	}
	return resent, timedOut, nil
}

// ------------------------------------------------------
// ---------------------- QUERIES -----------------------
// ------------------------------------------------------

// GetAccessRequest returns a request.
func GetAccessRequest(stub cached_stub.CachedStubInterface, requestID string) (data_model.AccessRequest, bool, error) {
	request := data_model.AccessRequest{}
	key, err := common.CompositeKey(stub, global.ACCESS_REQUEST_PREFIX, requestID)
	if err != nil {
		return request, false, err
	}
	found, err := common.GetJSON(stub, key, &request, "AccessRequest")
	return request, found, err
}

// LiveGrant returns the granted, unexpired request of requesterID on recordRef.
func LiveGrant(stub cached_stub.CachedStubInterface, requesterID string, recordRef string) (data_model.AccessRequest, bool, error) {
	request, found, err := getActiveForPair(stub, requesterID, recordRef)
	if err != nil || !found {
		return request, false, err
	}
	now, err := utils.GetTxTime(stub)
	if err != nil {
		return request, false, err
	}
	return request, request.IsLive(now), nil
}

// GetAccessRequestsByRequester returns every request of requesterID.
func GetAccessRequestsByRequester(stub cached_stub.CachedStubInterface, requesterID string) ([]data_model.AccessRequest, error) {
	requestIDs, err := index.GetTable(stub, global.INDEX_ACCESS_REQUESTER).GetLastFieldByPartialKey(requesterID)
	if err != nil {
		return nil, err
	}
	requests := []data_model.AccessRequest{}
	for _, requestID := range requestIDs {
		request, found, err := GetAccessRequest(stub, requestID)
		if err != nil {
			return nil, err
		}
		if found {
			requests = append(requests, request)
		}
	}
	return requests, nil
}

// ------------------------------------------------------
// ---------------------- TRANSITIONS -------------------
// ------------------------------------------------------

func sendConsentCheck(stub cached_stub.CachedStubInterface, request *data_model.AccessRequest, categories []string, now int64) error {
	config, err := common.GetLedgerConfig(stub)
	if err != nil {
		return err
	}
	if request.LastSentAt > 0 {
		if err := index.GetTable(stub, global.INDEX_ACCESS_PENDING).DeleteRow(utils.PadSeq(uint64(request.LastSentAt)), request.RequestID); err != nil {
			return err
		}
	}
	payload := data_model.ConsentCheckPayload{
		PolicyID:    request.PolicyID,
		RequesterID: request.RequesterID,
		Purpose:     request.Purpose,
		Categories:  categories,
	}
	if _, err := messenger.Send(stub, config.ConsentLedger, data_model.MSG_CONSENT_CHECK, request.RequestID, payload); err != nil {
		return err
	}
	request.Attempts++
	request.LastSentAt = now
	request.UpdatedAt = now
	if err := index.GetTable(stub, global.INDEX_ACCESS_PENDING).PutRow(utils.PadSeq(uint64(now)), request.RequestID); err != nil {
		return err
	}
	logger.Debugf("consent check %v sent (attempt %v)", request.RequestID, request.Attempts)
	return putRequest(stub, *request)
}

func retryOrTimeout(stub cached_stub.CachedStubInterface, request *data_model.AccessRequest, budget int, now int64) error {
	if request.Attempts < budget {
		record, _, err := record_mgmt.GetRecordWithParams(stub, request.RecordRef)
		if err != nil {
			return err
		}
		return sendConsentCheck(stub, request, record.Categories, now)
	}
	logger.Warningf("consent check %v timed out after %v attempts", request.RequestID, request.Attempts)
	return deny(stub, request, data_model.DENY_CONSENT_CHECK_TIMEOUT, now)
}

func sendProvenanceLog(stub cached_stub.CachedStubInterface, request *data_model.AccessRequest) error {
	config, err := common.GetLedgerConfig(stub)
	if err != nil {
		return err
	}
	payload := data_model.ProvenanceLogPayload{
		RecordRef: request.RecordRef,
		Activity:  data_model.ACTIVITY_SHARING,
		AgentID:   request.RequesterID,
		Purpose:   request.Purpose,
		Reference: request.RequestID,
	}
	if _, err := messenger.Send(stub, config.RecordLedger, data_model.MSG_PROVENANCE_LOG, request.RequestID, payload); err != nil {
		return err
	}
	request.ProvenanceSent++
	return putRequest(stub, *request)
}

func grant(stub cached_stub.CachedStubInterface, request *data_model.AccessRequest, expiresAt int64, now int64) error {
	if err := index.GetTable(stub, global.INDEX_ACCESS_PENDING).DeleteRow(utils.PadSeq(uint64(request.LastSentAt)), request.RequestID); err != nil {
		return err
	}
	request.State = data_model.ACCESS_GRANTED
	request.ExpiresAt = expiresAt
	request.UpdatedAt = now
	if err := index.GetTable(stub, global.INDEX_ACCESS_POLICY).PutRow(request.PolicyID, request.RequestID); err != nil {
		return err
	}
	_, err := history.PutEvent(stub, data_model.Event{
		Type:      data_model.EVENT_ACCESS_GRANTED,
		ActorID:   request.RequesterID,
		RequestID: request.RequestID,
		RecordRef: request.RecordRef,
		PolicyID:  request.PolicyID,
		Data:      map[string]string{"expires_at": strconv.FormatInt(expiresAt, 10)},
	})
	if err != nil {
		return err
	}
	logger.Infof("access %v granted until %v", request.RequestID, expiresAt)
	return sendProvenanceLog(stub, request)
}

func deny(stub cached_stub.CachedStubInterface, request *data_model.AccessRequest, reason string, now int64) error {
	if request.LastSentAt > 0 {
		if err := index.GetTable(stub, global.INDEX_ACCESS_PENDING).DeleteRow(utils.PadSeq(uint64(request.LastSentAt)), request.RequestID); err != nil {
			return err
		}
	}
	request.State = data_model.ACCESS_DENIED
	request.DenyReason = reason
	request.UpdatedAt = now
	if err := leaveActive(stub, *request); err != nil {
		return err
	}
	_, err := history.PutEvent(stub, data_model.Event{
		Type:      data_model.EVENT_ACCESS_DENIED,
		ActorID:   request.RequesterID,
		RequestID: request.RequestID,
		RecordRef: request.RecordRef,
		PolicyID:  request.PolicyID,
		Reason:    reason,
	})
	logger.Infof("access %v denied: %v", request.RequestID, reason)
	return err
}

func revoke(stub cached_stub.CachedStubInterface, request *data_model.AccessRequest, at int64, reason string) error {
	now, err := utils.GetTxTime(stub)
	if err != nil {
		return err
	}
	if err := index.GetTable(stub, global.INDEX_ACCESS_POLICY).DeleteRow(request.PolicyID, request.RequestID); err != nil {
		return err
	}
	request.State = data_model.ACCESS_REVOKED
	request.RevokedAt = at
	request.RevokeReason = reason
	request.UpdatedAt = now
	if err := leaveActive(stub, *request); err != nil {
		return err
	}
	_, err = history.PutEvent(stub, data_model.Event{
		Type:      data_model.EVENT_ACCESS_REVOKED,
		ActorID:   request.RequesterID,
		RequestID: request.RequestID,
		RecordRef: request.RecordRef,
		PolicyID:  request.PolicyID,
		Reason:    reason,
		Data:      map[string]string{"revoked_at": strconv.FormatInt(at, 10)},
	})
	logger.Infof("access %v revoked: %v", request.RequestID, reason)
	return err
}

// leaveActive stores a request that reached a terminal state and drops its
// non-terminal index rows.
func leaveActive(stub cached_stub.CachedStubInterface, request data_model.AccessRequest) error {
	if err := index.GetTable(stub, global.INDEX_ACCESS_PAIR).DeleteRow(request.RequesterID, request.RecordRef, request.RequestID); err != nil {
		return err
	}
	if err := index.GetTable(stub, global.INDEX_ACCESS_RECORD).DeleteRow(request.RecordRef, request.RequestID); err != nil {
		return err
	}
	return putRequest(stub, request)
}

func getActiveForPair(stub cached_stub.CachedStubInterface, requesterID string, recordRef string) (data_model.AccessRequest, bool, error) {
	requestIDs, err := index.GetTable(stub, global.INDEX_ACCESS_PAIR).GetLastFieldByPartialKey(requesterID, recordRef)
	if err != nil || len(requestIDs) == 0 {
		return data_model.AccessRequest{}, false, err
	}
	if len(requestIDs) > 1 {
		logger.Errorf("%v non-terminal requests of %v on %v", len(requestIDs), requesterID, recordRef)
	}
	return GetAccessRequest(stub, requestIDs[0])
}

func isPolicyInactive(stub cached_stub.CachedStubInterface, policyID string) (bool, error) {
	key, err := common.CompositeKey(stub, global.ACCESS_REVOKED_POLICY_PREFIX, policyID)
	if err != nil {
		return false, err
	}
	status := data_model.PolicyStatusPayload{}
	return common.GetJSON(stub, key, &status, "PolicyStatusPayload")
}

func putRequest(stub cached_stub.CachedStubInterface, request data_model.AccessRequest) error {
	key, err := common.CompositeKey(stub, global.ACCESS_REQUEST_PREFIX, request.RequestID)
	if err != nil {
		return err
	}
	return common.PutJSON(stub, key, request, "AccessRequest")
}
