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
	"github.com/choiwab/patient-x/pxchain/data_model"
	"github.com/choiwab/patient-x/pxchain/utils"
)

// Evaluate decides whether requester may access data under policy for purpose at now.
// It reads nothing but its arguments.
//
// Checks run in a fixed order and the first failure is the deny reason:
//  1. status is active (NotActive)
//  2. Window.Start <= now <= Window.End, End 0 being unbounded (OutsideWindow)
//  3. purpose equals or is subsumed by the policy purpose (PurposeMismatch)
//  4. requester satisfies the party rule (PartyNotAllowed)
//  5. requester jurisdiction is permitted, if the policy lists any (JurisdictionNotAllowed)
//  6. every requested data category is permitted (DataCategoryNotAllowed)
//
// An allow is valid until the end of the policy window.
func Evaluate(policy data_model.ConsentPolicy, status data_model.ConsentStatus, requester data_model.Requester, purpose data_model.Purpose, now int64, categories ...string) data_model.ConsentDecision {
	if !status.IsActive() {
		return data_model.Deny(policy.PolicyID, data_model.DENY_NOT_ACTIVE, now)
	}
	if !inWindow(policy.Window, now) {
		return data_model.Deny(policy.PolicyID, data_model.DENY_OUTSIDE_WINDOW, now)
	}
	if !purposeMatches(policy.Purpose, purpose) {
		return data_model.Deny(policy.PolicyID, data_model.DENY_PURPOSE_MISMATCH, now)
	}
	if !partyAllowed(policy.Parties, requester) {
		return data_model.Deny(policy.PolicyID, data_model.DENY_PARTY_NOT_ALLOWED, now)
	}
	if len(policy.Jurisdictions) > 0 && !utils.InList(policy.Jurisdictions, requester.Jurisdiction) {
		return data_model.Deny(policy.PolicyID, data_model.DENY_JURISDICTION_NOT_ALLOWED, now)
	}
	for _, category := range categories {
		if !utils.InList(policy.DataCategories, category) {
			return data_model.Deny(policy.PolicyID, data_model.DENY_DATA_CATEGORY_NOT_ALLOWED, now)
		}
	}
	return data_model.Allow(policy.PolicyID, policy.Window.End, now)
}

func inWindow(window data_model.Window, now int64) bool {
	if now < window.Start {
		return false
	}
	return window.End == 0 || now <= window.End
}

// purposeMatches returns true if asserted equals or is subsumed by granted.
// research_general covers every specific study; a specific-study policy without a
// study name covers any study.
func purposeMatches(granted data_model.Purpose, asserted data_model.Purpose) bool {
	switch granted.Kind {
	case data_model.PURPOSE_RESEARCH_GENERAL:
		return asserted.Kind == data_model.PURPOSE_RESEARCH_GENERAL || asserted.Kind == data_model.PURPOSE_RESEARCH_SPECIFIC_STUDY
	case data_model.PURPOSE_RESEARCH_SPECIFIC_STUDY:
		if asserted.Kind != data_model.PURPOSE_RESEARCH_SPECIFIC_STUDY {
			return false
		}
		return utils.IsStringEmpty(granted.Detail) || granted.Detail == asserted.Detail
	case data_model.PURPOSE_CUSTOM:
		return asserted.Kind == data_model.PURPOSE_CUSTOM && granted.Detail == asserted.Detail
	default:
		return granted.Kind == asserted.Kind
	}
}

func partyAllowed(rule data_model.PartyRule, requester data_model.Requester) bool {
	switch rule.Kind {
	case data_model.PARTIES_UNRESTRICTED:
		return true
	case data_model.PARTIES_EXPLICIT:
		return utils.InList(rule.Accounts, requester.ID)
	case data_model.PARTIES_CATEGORY:
		return !utils.IsStringEmpty(requester.Role) && utils.InList(rule.Categories, requester.Role)
	default:
		return false
	}
}
