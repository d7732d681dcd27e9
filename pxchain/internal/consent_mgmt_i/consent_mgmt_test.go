/*******************************************************************************
 *
 *
 * (c) Copyright Merative US L.P. and others 2020-2022
 *
 * SPDX-Licence-Identifier: Apache 2.0
 *
 *******************************************************************************/

package consent_mgmt_i

import (
	"encoding/json"
	"testing"

	"github.com/choiwab/patient-x/pxchain/cached_stub"
	"github.com/choiwab/patient-x/pxchain/custom_errors"
	"github.com/choiwab/patient-x/pxchain/data_model"
	"github.com/choiwab/patient-x/pxchain/identity"
	"github.com/choiwab/patient-x/pxchain/internal/common"
	"github.com/choiwab/patient-x/pxchain/internal/common/global"
	"github.com/choiwab/patient-x/pxchain/internal/consent_mgmt_i/consent_mgmt_c"
	"github.com/choiwab/patient-x/pxchain/messenger"
	"github.com/choiwab/patient-x/pxchain/test_utils"

	"github.com/hyperledger/fabric/core/chaincode/shim"
)

var patient = data_model.Identity{ID: "patient1", Role: global.ROLE_PATIENT}

func setup(t *testing.T) *test_utils.NewMockStub {
	logger.SetLevel(shim.LogDebug)
	mstub := test_utils.CreateNewMockStub(t, global.LEDGER_CONSENT)
	mstub.SetTime(test_utils.T0)
	mstub.MockTransactionStart("t1")
	stub := cached_stub.NewCachedStub(mstub)
	Init(stub)
	common.PutLedgerConfig(stub, data_model.LedgerConfig{Ledger: global.LEDGER_CONSENT, AdminID: "admin"})
	admin := data_model.Identity{ID: "admin"}
	_, err := identity.RegisterIdentityWithParams(stub, admin, test_utils.CreateTestIdentity("hospital", global.ROLE_INSTITUTION))
	test_utils.AssertNilError(t, err, "RegisterIdentity failed")
	_, err = identity.RegisterIdentityWithParams(stub, admin, test_utils.CreateTestIdentity("patient1", global.ROLE_PATIENT))
	test_utils.AssertNilError(t, err, "RegisterIdentity failed")
	mstub.MockTransactionEnd("t1")
	return mstub
}

func grant(t *testing.T, mstub *test_utils.NewMockStub, policy data_model.ConsentPolicy) data_model.ConsentPolicy {
	txID := test_utils.GenerateTxID()
	mstub.MockTransactionStart(txID)
	stub := cached_stub.NewCachedStub(mstub)
	policy, err := GrantConsent(stub, patient, policy)
	test_utils.AssertNilError(t, err, "GrantConsent failed")
	mstub.MockTransactionEnd(txID)
	return policy
}

func outbox(t *testing.T, mstub *test_utils.NewMockStub, to string) []data_model.Message {
	txID := test_utils.GenerateTxID()
	mstub.MockTransactionStart(txID)
	stub := cached_stub.NewCachedStub(mstub)
	msgs, err := messenger.ReadOutbox(stub, to, 0, 0)
	test_utils.AssertNilError(t, err, "ReadOutbox failed")
	mstub.MockTransactionEnd(txID)
	return msgs
}

func TestGrantConsent(t *testing.T) {
	mstub := setup(t)
	policy := grant(t, mstub, test_utils.CreateTestPolicy("patient1", "research", 0))
	test_utils.AssertTrue(t, policy.PolicyID == consent_mgmt_c.GetPolicyID("patient1", "research"), "Expected deterministic policy id")
	test_utils.AssertTrue(t, policy.Window.Start == test_utils.T0, "Expected start to default to tx time")

	mstub.MockTransactionStart("t2")
	stub := cached_stub.NewCachedStub(mstub)
	_, err := GrantConsent(stub, patient, test_utils.CreateTestPolicy("patient1", "research", 0))
	test_utils.AssertTrue(t, custom_errors.Code(err) == "DuplicatePolicy", "Expected DuplicatePolicy")

	_, err = GrantConsent(stub, data_model.Identity{ID: "mallory"}, test_utils.CreateTestPolicy("patient1", "other", 0))
	test_utils.AssertTrue(t, custom_errors.Code(err) == "NotOwner", "Expected NotOwner")

	bad := test_utils.CreateTestPolicy("patient1", "bad", test_utils.T0)
	bad.Window.End = bad.Window.Start
	_, err = GrantConsent(stub, patient, bad)
	test_utils.AssertTrue(t, custom_errors.Code(err) == "InvalidArgument", "Expected InvalidArgument for empty window")

	bad = test_utils.CreateTestPolicy("patient1", "bad", test_utils.T0)
	bad.DataCategories = []string{"horoscope"}
	_, err = GrantConsent(stub, patient, bad)
	test_utils.AssertTrue(t, custom_errors.Code(err) == "InvalidArgument", "Expected InvalidArgument for unknown category")

	views, err := GetPoliciesByOwner(stub, "patient1")
	test_utils.AssertNilError(t, err, "GetPoliciesByOwner failed")
	test_utils.AssertTrue(t, len(views) == 1 && views[0].Status.IsActive(), "Expected one active policy")
	mstub.MockTransactionEnd("t2")
}

func TestRevokeConsent(t *testing.T) {
	mstub := setup(t)
	policy := grant(t, mstub, test_utils.CreateTestPolicy("patient1", "research", 0))

	mstub.AdvanceTime(test_utils.DAY)
	mstub.MockTransactionStart("t2")
	stub := cached_stub.NewCachedStub(mstub)
	_, err := RevokeConsent(stub, data_model.Identity{ID: "hospital"}, policy.PolicyID, "")
	test_utils.AssertTrue(t, custom_errors.Code(err) == "NotOwner", "Expected NotOwner")
	_, err = RevokeConsent(stub, patient, "nope", "")
	test_utils.AssertTrue(t, custom_errors.Code(err) == "NotFound", "Expected NotFound")
	status, err := RevokeConsent(stub, patient, policy.PolicyID, "changed my mind")
	test_utils.AssertNilError(t, err, "RevokeConsent failed")
	test_utils.AssertTrue(t, status.State == data_model.CONSENT_REVOKED && status.At == test_utils.T0+test_utils.DAY, "Expected revoked status")
	mstub.MockTransactionEnd("t2")

	mstub.MockTransactionStart("t3")
	stub = cached_stub.NewCachedStub(mstub)
	_, err = RevokeConsent(stub, patient, policy.PolicyID, "")
	test_utils.AssertTrue(t, custom_errors.Code(err) == "PolicyNotActive", "Expected PolicyNotActive")
	_, err = UpdateConsent(stub, patient, policy.PolicyID, data_model.Compensation{Kind: data_model.COMPENSATION_FREE}, nil)
	test_utils.AssertTrue(t, custom_errors.Code(err) == "PolicyNotActive", "Expected PolicyNotActive on update")
	decision, err := CheckConsent(stub, policy.PolicyID, "hospital", research, nil)
	test_utils.AssertNilError(t, err, "CheckConsent failed")
	test_utils.AssertTrue(t, decision.Reason == data_model.DENY_NOT_ACTIVE, "Expected NotActive after revocation")
	mstub.MockTransactionEnd("t3")

	// subscribers (health by default) are told
	msgs := outbox(t, mstub, global.LEDGER_HEALTH)
	test_utils.AssertTrue(t, len(msgs) == 1, "Expected one revocation notice")
	test_utils.AssertTrue(t, msgs[0].Kind == data_model.MSG_POLICY_REVOKED && msgs[0].CorrelationID == policy.PolicyID, "Expected policy_revoked notice")
	payload := data_model.PolicyStatusPayload{}
	test_utils.AssertNilError(t, json.Unmarshal(msgs[0].Payload, &payload), "Bad payload")
	test_utils.AssertTrue(t, payload.At == test_utils.T0+test_utils.DAY, "Expected revocation time in notice")
}

func TestUpdateConsent(t *testing.T) {
	mstub := setup(t)
	policy := grant(t, mstub, test_utils.CreateTestPolicy("patient1", "research", 0))

	mstub.MockTransactionStart("t2")
	stub := cached_stub.NewCachedStub(mstub)
	updated, err := UpdateConsent(stub, patient, policy.PolicyID, data_model.Compensation{Kind: data_model.COMPENSATION_PERCENTAGE, Percent: 5}, []string{"EU"})
	test_utils.AssertNilError(t, err, "UpdateConsent failed")
	test_utils.AssertTrue(t, updated.Compensation.Percent == 5, "Expected compensation update")
	_, err = UpdateConsent(stub, patient, policy.PolicyID, data_model.Compensation{Kind: data_model.COMPENSATION_PERCENTAGE, Percent: 150}, nil)
	test_utils.AssertTrue(t, custom_errors.Code(err) == "InvalidArgument", "Expected InvalidArgument for percent > 100")
	mstub.MockTransactionEnd("t2")

	mstub.MockTransactionStart("t3")
	stub = cached_stub.NewCachedStub(mstub)
	decision, err := CheckConsent(stub, policy.PolicyID, "hospital", research, nil)
	test_utils.AssertNilError(t, err, "CheckConsent failed")
	test_utils.AssertTrue(t, decision.Reason == data_model.DENY_JURISDICTION_NOT_ALLOWED, "Expected jurisdiction change to apply")
	mstub.MockTransactionEnd("t3")
}

func TestExpirePolicies(t *testing.T) {
	mstub := setup(t)
	expiring := grant(t, mstub, test_utils.CreateTestPolicy("patient1", "expiring", test_utils.T0))
	renewing := test_utils.CreateTestPolicy("patient1", "renewing", test_utils.T0)
	renewing.Window.AutoRenew = true
	renewing = grant(t, mstub, renewing)
	open := test_utils.CreateTestPolicy("patient1", "open", test_utils.T0)
	open.Window.End = 0
	open = grant(t, mstub, open)

	mstub.MockTransactionStart("t2")
	stub := cached_stub.NewCachedStub(mstub)
	count, err := ExpirePolicies(stub)
	test_utils.AssertNilError(t, err, "ExpirePolicies failed")
	test_utils.AssertTrue(t, count == 0, "Nothing expires inside the window")
	mstub.MockTransactionEnd("t2")

	mstub.SetTime(test_utils.T0 + test_utils.YEAR + test_utils.DAY)
	mstub.MockTransactionStart("t3")
	stub = cached_stub.NewCachedStub(mstub)
	count, err = ExpirePolicies(stub)
	test_utils.AssertNilError(t, err, "ExpirePolicies failed")
	test_utils.AssertTrue(t, count == 1, "Expected one expiry")
	mstub.MockTransactionEnd("t3")

	mstub.MockTransactionStart("t4")
	stub = cached_stub.NewCachedStub(mstub)
	view, _, err := GetPolicy(stub, expiring.PolicyID)
	test_utils.AssertNilError(t, err, "GetPolicy failed")
	test_utils.AssertTrue(t, view.Status.State == data_model.CONSENT_EXPIRED, "Expected expired policy")
	view, _, err = GetPolicy(stub, renewing.PolicyID)
	test_utils.AssertNilError(t, err, "GetPolicy failed")
	test_utils.AssertTrue(t, view.Status.IsActive(), "Expected renewed policy to stay active")
	test_utils.AssertTrue(t, view.Policy.Window.Start == test_utils.T0+test_utils.YEAR && view.Policy.Window.End == test_utils.T0+2*test_utils.YEAR, "Expected window moved by one length")
	view, _, err = GetPolicy(stub, open.PolicyID)
	test_utils.AssertNilError(t, err, "GetPolicy failed")
	test_utils.AssertTrue(t, view.Status.IsActive(), "Expected unbounded policy to stay active")
	mstub.MockTransactionEnd("t4")

	msgs := outbox(t, mstub, global.LEDGER_HEALTH)
	test_utils.AssertTrue(t, len(msgs) == 1 && msgs[0].Kind == data_model.MSG_POLICY_EXPIRED, "Expected one policy_expired notice")
}

func TestReceiveConsentCheck(t *testing.T) {
	mstub := setup(t)
	policy := grant(t, mstub, test_utils.CreateTestPolicy("patient1", "research", 0))

	payload, _ := json.Marshal(data_model.ConsentCheckPayload{PolicyID: policy.PolicyID, RequesterID: "hospital", Purpose: research})
	check := data_model.Message{
		Channel:       "health>consent",
		Seq:           1,
		From:          global.LEDGER_HEALTH,
		To:            global.LEDGER_CONSENT,
		Kind:          data_model.MSG_CONSENT_CHECK,
		CorrelationID: "req1",
		Payload:       payload,
	}

	mstub.AdvanceTime(30 * test_utils.DAY)
	mstub.MockTransactionStart("t2")
	stub := cached_stub.NewCachedStub(mstub)
	test_utils.AssertNilError(t, ReceiveConsentCheck(stub, check), "ReceiveConsentCheck failed")
	mstub.MockTransactionEnd("t2")

	// a retried check with the same correlation id gets the original decision again
	mstub.MockTransactionStart("t3")
	stub = cached_stub.NewCachedStub(mstub)
	_, err := RevokeConsent(stub, patient, policy.PolicyID, "")
	test_utils.AssertNilError(t, err, "RevokeConsent failed")
	mstub.MockTransactionEnd("t3")
	mstub.MockTransactionStart("t4")
	stub = cached_stub.NewCachedStub(mstub)
	test_utils.AssertNilError(t, ReceiveConsentCheck(stub, check), "ReceiveConsentCheck retry failed")
	mstub.MockTransactionEnd("t4")

	msgs := outbox(t, mstub, global.LEDGER_HEALTH)
	decisions := []data_model.ConsentDecision{}
	for _, msg := range msgs {
		if msg.Kind == data_model.MSG_CONSENT_DECISION {
			test_utils.AssertTrue(t, msg.CorrelationID == "req1", "Expected correlation id of the check")
			reply := data_model.ConsentDecisionPayload{}
			test_utils.AssertNilError(t, json.Unmarshal(msg.Payload, &reply), "Bad payload")
			decisions = append(decisions, reply.Decision)
		}
	}
	test_utils.AssertTrue(t, len(decisions) == 2, "Expected original and repeated decision")
	test_utils.AssertTrue(t, decisions[0].Allowed && decisions[1].Allowed, "Expected the repeated decision to be the original one")
	test_utils.AssertTrue(t, decisions[0].ValidUntil == policy.Window.End, "Expected validity until window end")
}

func TestUnknownPolicyIsDenied(t *testing.T) {
	mstub := setup(t)
	mstub.MockTransactionStart("t2")
	stub := cached_stub.NewCachedStub(mstub)
	decision, err := CheckConsent(stub, "missing", "hospital", research, nil)
	test_utils.AssertNilError(t, err, "CheckConsent failed")
	test_utils.AssertTrue(t, decision.Reason == data_model.DENY_POLICY_NOT_FOUND, "Expected PolicyNotFound")
	mstub.MockTransactionEnd("t2")
}

func TestResendUndeliveredNotices(t *testing.T) {
	mstub := setup(t)
	policy := grant(t, mstub, test_utils.CreateTestPolicy("patient1", "research", 0))

	mstub.MockTransactionStart("t2")
	stub := cached_stub.NewCachedStub(mstub)
	_, err := RevokeConsent(stub, patient, policy.PolicyID, "")
	test_utils.AssertNilError(t, err, "RevokeConsent failed")
	mstub.MockTransactionEnd("t2")
	notice := outbox(t, mstub, global.LEDGER_HEALTH)[0]

	mstub.MockTransactionStart("t3")
	stub = cached_stub.NewCachedStub(mstub)
	test_utils.AssertNilError(t, OnDeliveryFailed(stub, data_model.DeliveryFailure{Message: notice, Attempts: 5}), "OnDeliveryFailed failed")
	mstub.MockTransactionEnd("t3")

	mstub.MockTransactionStart("t4")
	stub = cached_stub.NewCachedStub(mstub)
	sent, err := ResendNotices(stub)
	test_utils.AssertNilError(t, err, "ResendNotices failed")
	test_utils.AssertTrue(t, sent == 1, "Expected one resend")
	mstub.MockTransactionEnd("t4")

	mstub.MockTransactionStart("t5")
	stub = cached_stub.NewCachedStub(mstub)
	sent, err = ResendNotices(stub)
	test_utils.AssertNilError(t, err, "ResendNotices failed")
	test_utils.AssertTrue(t, sent == 0, "Expected nothing left to resend")
	mstub.MockTransactionEnd("t5")

	msgs := outbox(t, mstub, global.LEDGER_HEALTH)
	test_utils.AssertTrue(t, len(msgs) == 2, "Expected the notice to be sent twice")
	test_utils.AssertTrue(t, msgs[1].CorrelationID == notice.CorrelationID && msgs[1].Kind == notice.Kind, "Expected same correlation id on resend")
}
