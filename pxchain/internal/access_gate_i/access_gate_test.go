/*******************************************************************************
 *
 *
 * (c) Copyright Merative US L.P. and others 2020-2022
 *
 * SPDX-Licence-Identifier: Apache 2.0
 *
 *******************************************************************************/

package access_gate_i

import (
	"encoding/json"
	"strconv"
	"testing"

	"github.com/choiwab/patient-x/pxchain/cached_stub"
	"github.com/choiwab/patient-x/pxchain/custom_errors"
	"github.com/choiwab/patient-x/pxchain/data_model"
	"github.com/choiwab/patient-x/pxchain/internal/common"
	"github.com/choiwab/patient-x/pxchain/internal/common/global"
	"github.com/choiwab/patient-x/pxchain/messenger"
	"github.com/choiwab/patient-x/pxchain/record_mgmt"
	"github.com/choiwab/patient-x/pxchain/test_utils"

	"github.com/hyperledger/fabric/core/chaincode/shim"
)

var patient = data_model.Identity{ID: "patient1", Role: global.ROLE_PATIENT}
var hospital = data_model.Identity{ID: "hospital", Role: global.ROLE_INSTITUTION}
var research = data_model.Purpose{Kind: data_model.PURPOSE_RESEARCH_GENERAL}

type testGate struct{}

func (testGate) LiveGrant(stub cached_stub.CachedStubInterface, requesterID string, recordRef string) (data_model.AccessRequest, bool, error) {
	return LiveGrant(stub, requesterID, recordRef)
}

func (testGate) OnRecordRemoved(stub cached_stub.CachedStubInterface, recordRef string, at int64) error {
	return OnRecordRemoved(stub, recordRef, at)
}

func setup(t *testing.T) *test_utils.NewMockStub {
	logger.SetLevel(shim.LogDebug)
	record_mgmt.SetAccessGate(testGate{})
	mstub := test_utils.CreateNewMockStub(t, global.LEDGER_HEALTH)
	mstub.SetTime(test_utils.T0)
	mstub.MockTransactionStart("t1")
	stub := cached_stub.NewCachedStub(mstub)
	Init(stub)
	common.PutLedgerConfig(stub, data_model.LedgerConfig{Ledger: global.LEDGER_HEALTH, AdminID: "admin"})
	_, err := record_mgmt.RegisterRecordWithParams(stub, patient, data_model.RecordInput{RecordRef: "rec1", PolicyID: "p1", Categories: []string{data_model.DATA_DIAGNOSTICS}, Content: []byte("ecg")})
	test_utils.AssertNilError(t, err, "RegisterRecord failed")
	mstub.MockTransactionEnd("t1")
	return mstub
}

// inTx runs fn in a committed transaction.
func inTx(t *testing.T, mstub *test_utils.NewMockStub, fn func(stub cached_stub.CachedStubInterface)) {
	txID := test_utils.GenerateTxID()
	mstub.MockTransactionStart(txID)
	fn(cached_stub.NewCachedStub(mstub))
	mstub.MockTransactionEnd(txID)
}

func request(t *testing.T, mstub *test_utils.NewMockStub) data_model.AccessRequest {
	var request data_model.AccessRequest
	inTx(t, mstub, func(stub cached_stub.CachedStubInterface) {
		var err error
		request, err = RequestAccess(stub, hospital, "rec1", research)
		test_utils.AssertNilError(t, err, "RequestAccess failed")
	})
	return request
}

func decide(t *testing.T, mstub *test_utils.NewMockStub, requestID string, decision data_model.ConsentDecision) {
	payload, _ := json.Marshal(data_model.ConsentDecisionPayload{Decision: decision})
	msg := data_model.Message{Channel: "consent>health", Seq: 1, From: global.LEDGER_CONSENT, To: global.LEDGER_HEALTH, Kind: data_model.MSG_CONSENT_DECISION, CorrelationID: requestID, Payload: payload}
	inTx(t, mstub, func(stub cached_stub.CachedStubInterface) {
		test_utils.AssertNilError(t, ReceiveConsentDecision(stub, msg), "ReceiveConsentDecision failed")
	})
}

func get(t *testing.T, mstub *test_utils.NewMockStub, requestID string) data_model.AccessRequest {
	var request data_model.AccessRequest
	inTx(t, mstub, func(stub cached_stub.CachedStubInterface) {
		var found bool
		var err error
		request, found, err = GetAccessRequest(stub, requestID)
		test_utils.AssertNilError(t, err, "GetAccessRequest failed")
		test_utils.AssertTrue(t, found, "Expected request "+requestID)
	})
	return request
}

func outbox(t *testing.T, mstub *test_utils.NewMockStub, to string) []data_model.Message {
	var msgs []data_model.Message
	inTx(t, mstub, func(stub cached_stub.CachedStubInterface) {
		var err error
		msgs, err = messenger.ReadOutbox(stub, to, 0, 0)
		test_utils.AssertNilError(t, err, "ReadOutbox failed")
	})
	return msgs
}

func TestRequestAccessGranted(t *testing.T) {
	mstub := setup(t)
	req := request(t, mstub)
	test_utils.AssertTrue(t, req.State == data_model.ACCESS_PENDING_CONSENT_CHECK && req.Attempts == 1, "Expected pending request")
	test_utils.AssertTrue(t, req.PolicyID == "p1", "Expected the record's policy")

	checks := outbox(t, mstub, global.LEDGER_CONSENT)
	test_utils.AssertTrue(t, len(checks) == 1 && checks[0].Kind == data_model.MSG_CONSENT_CHECK, "Expected one consent check")
	test_utils.AssertTrue(t, checks[0].CorrelationID == req.RequestID, "Expected request id as correlation id")
	check := data_model.ConsentCheckPayload{}
	test_utils.AssertNilError(t, json.Unmarshal(checks[0].Payload, &check), "Bad payload")
	test_utils.AssertListsEqual(t, []string{data_model.DATA_DIAGNOSTICS}, check.Categories)

	inTx(t, mstub, func(stub cached_stub.CachedStubInterface) {
		_, err := RequestAccess(stub, hospital, "rec1", research)
		test_utils.AssertTrue(t, custom_errors.Code(err) == "DuplicateActiveRequest", "Expected DuplicateActiveRequest")
		_, err = RequestAccess(stub, hospital, "missing", research)
		test_utils.AssertTrue(t, custom_errors.Code(err) == "NotFound", "Expected NotFound")
		_, err = RequestAccess(stub, hospital, "rec1", data_model.Purpose{Kind: data_model.PURPOSE_CUSTOM})
		test_utils.AssertTrue(t, custom_errors.Code(err) == "InvalidArgument", "Expected InvalidArgument for custom purpose without detail")
	})

	decide(t, mstub, req.RequestID, data_model.Allow("p1", test_utils.T0+test_utils.YEAR, test_utils.T0))
	decide(t, mstub, req.RequestID, data_model.Deny("p1", data_model.DENY_NOT_ACTIVE, test_utils.T0))
	granted := get(t, mstub, req.RequestID)
	test_utils.AssertTrue(t, granted.State == data_model.ACCESS_GRANTED, "Expected granted, duplicate decision ignored")
	test_utils.AssertTrue(t, granted.ExpiresAt == test_utils.T0+test_utils.YEAR, "Expected grant to end with the policy window")

	logs := outbox(t, mstub, global.LEDGER_HEALTH)
	test_utils.AssertTrue(t, len(logs) == 1 && logs[0].Kind == data_model.MSG_PROVENANCE_LOG, "Expected one provenance log")

	inTx(t, mstub, func(stub cached_stub.CachedStubInterface) {
		content, err := record_mgmt.FetchRecordWithParams(stub, hospital, "rec1")
		test_utils.AssertNilError(t, err, "Grantee fetch failed")
		test_utils.AssertTrue(t, string(content) == "ecg", "Expected record content")
		requests, err := GetAccessRequestsByRequester(stub, "hospital")
		test_utils.AssertNilError(t, err, "GetAccessRequestsByRequester failed")
		test_utils.AssertTrue(t, len(requests) == 1, "Expected one request")
	})
}

func TestRequestAccessDenied(t *testing.T) {
	mstub := setup(t)
	req := request(t, mstub)
	decide(t, mstub, req.RequestID, data_model.Deny("p1", data_model.DENY_PURPOSE_MISMATCH, test_utils.T0))
	denied := get(t, mstub, req.RequestID)
	test_utils.AssertTrue(t, denied.State == data_model.ACCESS_DENIED && denied.DenyReason == data_model.DENY_PURPOSE_MISMATCH, "Expected denied")

	inTx(t, mstub, func(stub cached_stub.CachedStubInterface) {
		_, err := record_mgmt.FetchRecordWithParams(stub, hospital, "rec1")
		test_utils.AssertTrue(t, custom_errors.Code(err) == "AccessNotGranted", "Expected AccessNotGranted")
	})

	again := request(t, mstub)
	test_utils.AssertTrue(t, again.RequestID != req.RequestID, "Expected a new request after a denial")
}

func TestConsentCheckTimeout(t *testing.T) {
	mstub := setup(t)
	req := request(t, mstub)

	for i := 0; i < 2; i++ {
		mstub.AdvanceTime(global.DEFAULT_CONSENT_TIMEOUT + 1)
		inTx(t, mstub, func(stub cached_stub.CachedStubInterface) {
			resent, timedOut, err := CheckTimeouts(stub)
			test_utils.AssertNilError(t, err, "CheckTimeouts failed")
			test_utils.AssertTrue(t, resent == 1 && timedOut == 0, "Expected a re-send")
		})
	}
	inTx(t, mstub, func(stub cached_stub.CachedStubInterface) {
		resent, timedOut, err := CheckTimeouts(stub)
		test_utils.AssertNilError(t, err, "CheckTimeouts failed")
		test_utils.AssertTrue(t, resent == 0 && timedOut == 0, "Expected nothing due before the timeout")
	})
	mstub.AdvanceTime(global.DEFAULT_CONSENT_TIMEOUT + 1)
	inTx(t, mstub, func(stub cached_stub.CachedStubInterface) {
		_, timedOut, err := CheckTimeouts(stub)
		test_utils.AssertNilError(t, err, "CheckTimeouts failed")
		test_utils.AssertTrue(t, timedOut == 1, "Expected a timeout")
	})

	denied := get(t, mstub, req.RequestID)
	test_utils.AssertTrue(t, denied.State == data_model.ACCESS_DENIED && denied.DenyReason == data_model.DENY_CONSENT_CHECK_TIMEOUT, "Expected ConsentCheckTimeout")
	test_utils.AssertTrue(t, denied.Attempts == global.DEFAULT_RETRY_BUDGET, "Expected the whole retry budget used")
	checks := outbox(t, mstub, global.LEDGER_CONSENT)
	test_utils.AssertTrue(t, len(checks) == global.DEFAULT_RETRY_BUDGET, "Expected one check per attempt")
	for _, check := range checks {
		test_utils.AssertTrue(t, check.CorrelationID == req.RequestID, "Expected the same correlation id on every attempt")
	}

	decide(t, mstub, req.RequestID, data_model.Allow("p1", 0, test_utils.T0))
	late := get(t, mstub, req.RequestID)
	test_utils.AssertTrue(t, late.State == data_model.ACCESS_DENIED, "Expected a late allow to be ignored")
}

func TestPolicyRevoked(t *testing.T) {
	mstub := setup(t)
	req := request(t, mstub)
	decide(t, mstub, req.RequestID, data_model.Allow("p1", 0, test_utils.T0))

	revokedAt := test_utils.T0 + 100
	payload, _ := json.Marshal(data_model.PolicyStatusPayload{PolicyID: "p1", OwnerID: "patient1", State: data_model.CONSENT_REVOKED, At: revokedAt})
	msg := data_model.Message{Channel: "consent>health", Seq: 2, From: global.LEDGER_CONSENT, To: global.LEDGER_HEALTH, Kind: data_model.MSG_POLICY_REVOKED, CorrelationID: "p1", Payload: payload}
	for i := 0; i < 2; i++ {
		inTx(t, mstub, func(stub cached_stub.CachedStubInterface) {
			test_utils.AssertNilError(t, ReceivePolicyStatus(stub, msg), "ReceivePolicyStatus failed")
		})
	}
	revoked := get(t, mstub, req.RequestID)
	test_utils.AssertTrue(t, revoked.State == data_model.ACCESS_REVOKED && revoked.RevokeReason == data_model.REVOKE_POLICY_REVOKED, "Expected revoked grant")
	test_utils.AssertTrue(t, revoked.RevokedAt == revokedAt, "Expected revocation time of the policy")

	inTx(t, mstub, func(stub cached_stub.CachedStubInterface) {
		_, live, err := LiveGrant(stub, "hospital", "rec1")
		test_utils.AssertNilError(t, err, "LiveGrant failed")
		test_utils.AssertFalse(t, live, "Expected no live grant")
	})

	// an allow evaluated before the revocation reached the consent ledger
	next := request(t, mstub)
	decide(t, mstub, next.RequestID, data_model.Allow("p1", 0, test_utils.T0))
	stale := get(t, mstub, next.RequestID)
	test_utils.AssertTrue(t, stale.State == data_model.ACCESS_DENIED && stale.DenyReason == data_model.DENY_NOT_ACTIVE, "Expected allow on a revoked policy to be denied")
}

func TestGrantExpiry(t *testing.T) {
	mstub := setup(t)
	req := request(t, mstub)
	decide(t, mstub, req.RequestID, data_model.Allow("p1", test_utils.T0+test_utils.DAY, test_utils.T0))

	mstub.AdvanceTime(2 * test_utils.DAY)
	inTx(t, mstub, func(stub cached_stub.CachedStubInterface) {
		_, live, err := LiveGrant(stub, "hospital", "rec1")
		test_utils.AssertNilError(t, err, "LiveGrant failed")
		test_utils.AssertFalse(t, live, "Expected expired grant")
	})
	next := request(t, mstub)
	test_utils.AssertTrue(t, next.State == data_model.ACCESS_PENDING_CONSENT_CHECK, "Expected a new request after expiry")
	expired := get(t, mstub, req.RequestID)
	test_utils.AssertTrue(t, expired.State == data_model.ACCESS_REVOKED && expired.RevokeReason == data_model.REVOKE_GRANT_EXPIRED, "Expected GrantExpired")
	test_utils.AssertTrue(t, expired.RevokedAt == test_utils.T0+test_utils.DAY, "Expected revocation at expiry")
}

func renewed(policyID string, until int64, seq uint64) data_model.Message {
	payload, _ := json.Marshal(data_model.PolicyStatusPayload{PolicyID: policyID, OwnerID: "patient1", State: data_model.CONSENT_ACTIVE, At: until - test_utils.DAY, Until: until})
	return data_model.Message{Channel: "consent>health", Seq: seq, From: global.LEDGER_CONSENT, To: global.LEDGER_HEALTH, Kind: data_model.MSG_POLICY_RENEWED, CorrelationID: policyID + "@" + strconv.FormatInt(until, 10), Payload: payload}
}

func TestPolicyRenewed(t *testing.T) {
	mstub := setup(t)
	req := request(t, mstub)
	decide(t, mstub, req.RequestID, data_model.Allow("p1", test_utils.T0+test_utils.DAY, test_utils.T0))

	mstub.AdvanceTime(2 * test_utils.DAY)
	inTx(t, mstub, func(stub cached_stub.CachedStubInterface) {
		test_utils.AssertNilError(t, ReceivePolicyRenewed(stub, renewed("p1", test_utils.T0+3*test_utils.DAY, 2)), "ReceivePolicyRenewed failed")
		_, live, err := LiveGrant(stub, "hospital", "rec1")
		test_utils.AssertNilError(t, err, "LiveGrant failed")
		test_utils.AssertTrue(t, live, "Expected the grant live again with the renewed window")
	})
	test_utils.AssertTrue(t, get(t, mstub, req.RequestID).ExpiresAt == test_utils.T0+3*test_utils.DAY, "Expected the new expiry")

	// an older renewal never moves the expiry back
	inTx(t, mstub, func(stub cached_stub.CachedStubInterface) {
		test_utils.AssertNilError(t, ReceivePolicyRenewed(stub, renewed("p1", test_utils.T0+test_utils.DAY, 3)), "ReceivePolicyRenewed failed")
	})
	test_utils.AssertTrue(t, get(t, mstub, req.RequestID).ExpiresAt == test_utils.T0+3*test_utils.DAY, "Expected the expiry kept")

	// once the policy is known revoked, renewals are ignored
	payload, _ := json.Marshal(data_model.PolicyStatusPayload{PolicyID: "p1", OwnerID: "patient1", State: data_model.CONSENT_REVOKED, At: test_utils.T0 + 2*test_utils.DAY})
	revokedMsg := data_model.Message{Channel: "consent>health", Seq: 4, From: global.LEDGER_CONSENT, To: global.LEDGER_HEALTH, Kind: data_model.MSG_POLICY_REVOKED, CorrelationID: "p1", Payload: payload}
	inTx(t, mstub, func(stub cached_stub.CachedStubInterface) {
		test_utils.AssertNilError(t, ReceivePolicyStatus(stub, revokedMsg), "ReceivePolicyStatus failed")
		test_utils.AssertNilError(t, ReceivePolicyRenewed(stub, renewed("p1", test_utils.T0+9*test_utils.DAY, 5)), "ReceivePolicyRenewed failed")
	})
	revoked := get(t, mstub, req.RequestID)
	test_utils.AssertTrue(t, revoked.State == data_model.ACCESS_REVOKED && revoked.ExpiresAt == test_utils.T0+3*test_utils.DAY, "Expected the revoked grant untouched")
}

func TestCancelRequest(t *testing.T) {
	mstub := setup(t)
	req := request(t, mstub)
	inTx(t, mstub, func(stub cached_stub.CachedStubInterface) {
		_, err := CancelRequest(stub, patient, req.RequestID)
		test_utils.AssertTrue(t, custom_errors.Code(err) == "NotRequester", "Expected NotRequester")
		_, err = CancelRequest(stub, hospital, "missing")
		test_utils.AssertTrue(t, custom_errors.Code(err) == "NotFound", "Expected NotFound")
		cancelled, err := CancelRequest(stub, hospital, req.RequestID)
		test_utils.AssertNilError(t, err, "CancelRequest failed")
		test_utils.AssertTrue(t, cancelled.State == data_model.ACCESS_DENIED && cancelled.DenyReason == data_model.DENY_CANCELLED, "Expected Cancelled")
	})
	inTx(t, mstub, func(stub cached_stub.CachedStubInterface) {
		_, err := CancelRequest(stub, hospital, req.RequestID)
		test_utils.AssertTrue(t, custom_errors.Code(err) == "AlreadyDecided", "Expected AlreadyDecided")
	})

	granted := request(t, mstub)
	decide(t, mstub, granted.RequestID, data_model.Allow("p1", 0, test_utils.T0))
	inTx(t, mstub, func(stub cached_stub.CachedStubInterface) {
		relinquished, err := CancelRequest(stub, hospital, granted.RequestID)
		test_utils.AssertNilError(t, err, "CancelRequest failed")
		test_utils.AssertTrue(t, relinquished.State == data_model.ACCESS_REVOKED && relinquished.RevokeReason == data_model.REVOKE_RELINQUISHED, "Expected Relinquished")
	})
}

func TestRecordRemoved(t *testing.T) {
	mstub := setup(t)
	req := request(t, mstub)
	decide(t, mstub, req.RequestID, data_model.Allow("p1", 0, test_utils.T0))

	mstub.AdvanceTime(60)
	inTx(t, mstub, func(stub cached_stub.CachedStubInterface) {
		_, err := record_mgmt.RemoveRecordWithParams(stub, patient, "rec1")
		test_utils.AssertNilError(t, err, "RemoveRecord failed")
	})
	revoked := get(t, mstub, req.RequestID)
	test_utils.AssertTrue(t, revoked.State == data_model.ACCESS_REVOKED && revoked.RevokeReason == data_model.REVOKE_RECORD_REMOVED, "Expected RecordRemoved")
	test_utils.AssertTrue(t, revoked.RevokedAt == test_utils.T0+60, "Expected removal time")

	inTx(t, mstub, func(stub cached_stub.CachedStubInterface) {
		_, err := RequestAccess(stub, hospital, "rec1", research)
		test_utils.AssertTrue(t, custom_errors.Code(err) == "NotFound", "Expected NotFound for a removed record")
	})
}

func TestDeliveryFailed(t *testing.T) {
	mstub := setup(t)
	req := request(t, mstub)
	checks := outbox(t, mstub, global.LEDGER_CONSENT)

	inTx(t, mstub, func(stub cached_stub.CachedStubInterface) {
		err := OnDeliveryFailed(stub, data_model.DeliveryFailure{Message: checks[0], Attempts: 5, Reason: "unreachable"})
		test_utils.AssertNilError(t, err, "OnDeliveryFailed failed")
	})
	resent := get(t, mstub, req.RequestID)
	test_utils.AssertTrue(t, resent.State == data_model.ACCESS_PENDING_CONSENT_CHECK && resent.Attempts == 2, "Expected the check sent again")
	test_utils.AssertTrue(t, len(outbox(t, mstub, global.LEDGER_CONSENT)) == 2, "Expected a second consent check")

	for i := 0; i < 2; i++ {
		inTx(t, mstub, func(stub cached_stub.CachedStubInterface) {
			err := OnDeliveryFailed(stub, data_model.DeliveryFailure{Message: checks[0], Attempts: 5, Reason: "unreachable"})
			test_utils.AssertNilError(t, err, "OnDeliveryFailed failed")
		})
	}
	timedOut := get(t, mstub, req.RequestID)
	test_utils.AssertTrue(t, timedOut.State == data_model.ACCESS_DENIED && timedOut.DenyReason == data_model.DENY_CONSENT_CHECK_TIMEOUT, "Expected ConsentCheckTimeout once the budget is used")
}
