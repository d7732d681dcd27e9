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
	"testing"

	"github.com/choiwab/patient-x/pxchain/data_model"
	"github.com/choiwab/patient-x/pxchain/internal/common/global"
	"github.com/choiwab/patient-x/pxchain/test_utils"
)

var active = data_model.ConsentStatus{PolicyID: "p1", State: data_model.CONSENT_ACTIVE}

var research = data_model.Purpose{Kind: data_model.PURPOSE_RESEARCH_GENERAL}

func institution() data_model.Requester {
	return test_utils.CreateTestIdentity("hospital", global.ROLE_INSTITUTION).ToRequester()
}

func testPolicy() data_model.ConsentPolicy {
	policy := test_utils.CreateTestPolicy("patient1", "research", test_utils.T0)
	policy.PolicyID = "p1"
	return policy
}

// Policy open to institutions for research during [t0, t0+1y].
func TestEvaluateScenario(t *testing.T) {
	policy := testPolicy()

	decision := Evaluate(policy, active, institution(), research, test_utils.T0+30*test_utils.DAY)
	test_utils.AssertTrue(t, decision.Allowed, "Expected allow at t0+30d")
	test_utils.AssertTrue(t, decision.ValidUntil == policy.Window.End, "Expected allow valid until window end")
	test_utils.AssertTrue(t, decision.EvaluatedAt == test_utils.T0+30*test_utils.DAY, "Expected evaluation time")

	decision = Evaluate(policy, active, institution(), research, test_utils.T0+400*test_utils.DAY)
	test_utils.AssertFalse(t, decision.Allowed, "Expected deny at t0+400d")
	test_utils.AssertTrue(t, decision.Reason == data_model.DENY_OUTSIDE_WINDOW, "Expected OutsideWindow, got "+decision.Reason)
}

func TestEvaluateOutsideWindowWins(t *testing.T) {
	policy := testPolicy()
	policy.Parties = data_model.PartyRule{Kind: data_model.PARTIES_UNRESTRICTED}
	for _, now := range []int64{policy.Window.End + 1, policy.Window.End + test_utils.YEAR, test_utils.T0 - 1} {
		decision := Evaluate(policy, active, institution(), research, now)
		test_utils.AssertTrue(t, decision.Reason == data_model.DENY_OUTSIDE_WINDOW, "Expected OutsideWindow outside the window")
	}
	// window bounds are inclusive
	test_utils.AssertTrue(t, Evaluate(policy, active, institution(), research, policy.Window.End).Allowed, "Expected allow at end")
	test_utils.AssertTrue(t, Evaluate(policy, active, institution(), research, policy.Window.Start).Allowed, "Expected allow at start")

	policy.Window.End = 0
	test_utils.AssertTrue(t, Evaluate(policy, active, institution(), research, test_utils.T0+100*test_utils.YEAR).Allowed, "Expected allow with unbounded window")
}

func TestEvaluateCheckOrder(t *testing.T) {
	policy := testPolicy()
	policy.Jurisdictions = []string{"EU"}
	outsider := data_model.Requester{ID: "someone", Role: global.ROLE_RESEARCHER, Jurisdiction: "US"}
	late := policy.Window.End + 1
	commercial := data_model.Purpose{Kind: data_model.PURPOSE_COMMERCIAL}
	revoked := data_model.ConsentStatus{PolicyID: "p1", State: data_model.CONSENT_REVOKED}

	// every rule fails; the first one is reported
	test_utils.AssertTrue(t, Evaluate(policy, revoked, outsider, commercial, late).Reason == data_model.DENY_NOT_ACTIVE, "Expected NotActive first")
	test_utils.AssertTrue(t, Evaluate(policy, active, outsider, commercial, late).Reason == data_model.DENY_OUTSIDE_WINDOW, "Expected OutsideWindow second")
	now := test_utils.T0 + test_utils.DAY
	test_utils.AssertTrue(t, Evaluate(policy, active, outsider, commercial, now).Reason == data_model.DENY_PURPOSE_MISMATCH, "Expected PurposeMismatch third")
	test_utils.AssertTrue(t, Evaluate(policy, active, outsider, research, now).Reason == data_model.DENY_PARTY_NOT_ALLOWED, "Expected PartyNotAllowed fourth")
	test_utils.AssertTrue(t, Evaluate(policy, active, institution(), research, now).Reason == data_model.DENY_JURISDICTION_NOT_ALLOWED, "Expected JurisdictionNotAllowed fifth")

	policy.Jurisdictions = []string{"EU", "US"}
	decision := Evaluate(policy, active, institution(), research, now, data_model.DATA_GENOMICS)
	test_utils.AssertTrue(t, decision.Reason == data_model.DENY_DATA_CATEGORY_NOT_ALLOWED, "Expected DataCategoryNotAllowed last")
	test_utils.AssertTrue(t, Evaluate(policy, active, institution(), research, now, data_model.DATA_DIAGNOSTICS).Allowed, "Expected allow for permitted category")

	expired := data_model.ConsentStatus{PolicyID: "p1", State: data_model.CONSENT_EXPIRED}
	test_utils.AssertTrue(t, Evaluate(policy, expired, institution(), research, now).Reason == data_model.DENY_NOT_ACTIVE, "Expected NotActive for expired policy")
}

func TestEvaluatePurpose(t *testing.T) {
	policy := testPolicy()
	policy.Parties = data_model.PartyRule{Kind: data_model.PARTIES_UNRESTRICTED}
	now := test_utils.T0 + test_utils.DAY
	study := data_model.Purpose{Kind: data_model.PURPOSE_RESEARCH_SPECIFIC_STUDY, Detail: "NCT0001"}

	test_utils.AssertTrue(t, Evaluate(policy, active, institution(), study, now).Allowed, "General research subsumes a specific study")

	policy.Purpose = data_model.Purpose{Kind: data_model.PURPOSE_RESEARCH_SPECIFIC_STUDY, Detail: "NCT0001"}
	test_utils.AssertTrue(t, Evaluate(policy, active, institution(), study, now).Allowed, "Expected same study to match")
	other := data_model.Purpose{Kind: data_model.PURPOSE_RESEARCH_SPECIFIC_STUDY, Detail: "NCT0002"}
	test_utils.AssertTrue(t, Evaluate(policy, active, institution(), other, now).Reason == data_model.DENY_PURPOSE_MISMATCH, "Expected other study to mismatch")
	test_utils.AssertTrue(t, Evaluate(policy, active, institution(), research, now).Reason == data_model.DENY_PURPOSE_MISMATCH, "A study policy does not cover general research")

	policy.Purpose = data_model.Purpose{Kind: data_model.PURPOSE_CUSTOM, Detail: "registry"}
	test_utils.AssertTrue(t, Evaluate(policy, active, institution(), data_model.Purpose{Kind: data_model.PURPOSE_CUSTOM, Detail: "registry"}, now).Allowed, "Expected custom detail to match")
	test_utils.AssertFalse(t, Evaluate(policy, active, institution(), data_model.Purpose{Kind: data_model.PURPOSE_CUSTOM, Detail: "marketing"}, now).Allowed, "Expected custom detail to mismatch")

	policy.Purpose = data_model.Purpose{Kind: data_model.PURPOSE_PUBLIC_HEALTH}
	test_utils.AssertTrue(t, Evaluate(policy, active, institution(), data_model.Purpose{Kind: data_model.PURPOSE_PUBLIC_HEALTH}, now).Allowed, "Expected public health to match")
}

func TestEvaluateParties(t *testing.T) {
	policy := testPolicy()
	now := test_utils.T0 + test_utils.DAY
	researcher := data_model.Requester{ID: "alice", Role: global.ROLE_RESEARCHER, Jurisdiction: "US"}

	policy.Parties = data_model.PartyRule{Kind: data_model.PARTIES_EXPLICIT, Accounts: []string{"alice"}}
	test_utils.AssertTrue(t, Evaluate(policy, active, researcher, research, now).Allowed, "Expected listed account to pass")
	test_utils.AssertFalse(t, Evaluate(policy, active, institution(), research, now).Allowed, "Expected unlisted account to fail")

	policy.Parties = data_model.PartyRule{Kind: data_model.PARTIES_UNRESTRICTED}
	test_utils.AssertTrue(t, Evaluate(policy, active, data_model.Requester{ID: "anon"}, research, now).Allowed, "Expected unrestricted to pass")

	policy.Parties = data_model.PartyRule{Kind: data_model.PARTIES_CATEGORY, Categories: []string{global.ROLE_INSTITUTION}}
	test_utils.AssertFalse(t, Evaluate(policy, active, data_model.Requester{ID: "anon"}, research, now).Allowed, "Expected requester without role to fail")
}
