/*******************************************************************************
 *
 *
 * (c) Copyright Merative US L.P. and others 2020-2022
 *
 * SPDX-Licence-Identifier: Apache 2.0
 *
 *******************************************************************************/

package data_model

// Purpose kinds.
const (
	PURPOSE_RESEARCH_GENERAL        = "research_general"
	PURPOSE_RESEARCH_SPECIFIC_STUDY = "research_specific_study"
	PURPOSE_COMMERCIAL              = "commercial"
	PURPOSE_PUBLIC_HEALTH           = "public_health"
	PURPOSE_CUSTOM                  = "custom"
)

// Data categories a policy can permit.
const (
	DATA_DEMOGRAPHICS = "demographics"
	DATA_DIAGNOSTICS  = "diagnostics"
	DATA_GENOMICS     = "genomics"
	DATA_IMAGING      = "imaging"
	DATA_LAB_RESULTS  = "lab_results"
	DATA_MEDICATIONS  = "medications"
	DATA_PROCEDURES   = "procedures"
	DATA_VITALS       = "vitals"
	DATA_CUSTOM       = "custom"
)

// Party rule kinds.
const (
	PARTIES_EXPLICIT     = "explicit"
	PARTIES_CATEGORY     = "category"
	PARTIES_UNRESTRICTED = "unrestricted"
)

// Compensation kinds.
const (
	COMPENSATION_FREE        = "free"
	COMPENSATION_FIXED_PRICE = "fixed_price"
	COMPENSATION_PERCENTAGE  = "percentage"
	COMPENSATION_NEGOTIABLE  = "negotiable"
)

// Consent status states.
const (
	CONSENT_ACTIVE  = "active"
	CONSENT_REVOKED = "revoked"
	CONSENT_EXPIRED = "expired"
)

// Deny reasons, in evaluation order.
const (
	DENY_NOT_ACTIVE                = "NotActive"
	DENY_OUTSIDE_WINDOW            = "OutsideWindow"
	DENY_PURPOSE_MISMATCH          = "PurposeMismatch"
	DENY_PARTY_NOT_ALLOWED         = "PartyNotAllowed"
	DENY_JURISDICTION_NOT_ALLOWED  = "JurisdictionNotAllowed"
	DENY_DATA_CATEGORY_NOT_ALLOWED = "DataCategoryNotAllowed"
	DENY_POLICY_NOT_FOUND          = "PolicyNotFound"
)

// Purpose is what an access is for. Detail names the study for
// research_specific_study and the category for custom.
type Purpose struct {
	Kind   string `json:"kind"`
	Detail string `json:"detail,omitempty"`
}

// IsValid returns true if the kind is known and a custom purpose names its category.
func (p Purpose) IsValid() bool {
	switch p.Kind {
	case PURPOSE_RESEARCH_GENERAL, PURPOSE_RESEARCH_SPECIFIC_STUDY, PURPOSE_COMMERCIAL, PURPOSE_PUBLIC_HEALTH:
		return true
	case PURPOSE_CUSTOM:
		return len(p.Detail) > 0
	}
	return false
}

// Window is the validity window of a policy. End 0 means unbounded.
type Window struct {
	Start     int64 `json:"start"`
	End       int64 `json:"end,omitempty"`
	AutoRenew bool  `json:"auto_renew,omitempty"`
}

// PartyRule says who may be granted access under a policy.
//   - explicit: requester id must be in Accounts
//   - category: requester role must be in Categories
//   - unrestricted: anyone
type PartyRule struct {
	Kind       string   `json:"kind"`
	Accounts   []string `json:"accounts,omitempty"`
	Categories []string `json:"categories,omitempty"`
}

// Compensation is the owner's compensation preference. Amount applies to fixed_price,
// Percent to percentage.
type Compensation struct {
	Kind    string `json:"kind"`
	Amount  uint64 `json:"amount,omitempty"`
	Percent uint8  `json:"percent,omitempty"`
}

// ConsentPolicy is a subject-authored rule governing who may access what data, for what
// purpose, during what window.
//
// PolicyID is hash(CONSENT_PREFIX + OwnerID + Label) and is computed by the ledger.
// Policies are never deleted; revocation and expiry are ConsentStatus transitions.
type ConsentPolicy struct {
	PolicyID       string       `json:"policy_id"`
	OwnerID        string       `json:"owner_id"`
	Label          string       `json:"label"`
	Purpose        Purpose      `json:"purpose"`
	Window         Window       `json:"window"`
	DataCategories []string     `json:"data_categories"`
	Parties        PartyRule    `json:"parties"`
	Jurisdictions  []string     `json:"jurisdictions,omitempty"`
	Compensation   Compensation `json:"compensation"`
	CreatedAt      int64        `json:"created_at"`
	UpdatedAt      int64        `json:"updated_at"`
}

// ConsentStatus is the status of a policy. Transitions are monotonic:
// active -> revoked and active -> expired.
type ConsentStatus struct {
	PolicyID string `json:"policy_id"`
	State    string `json:"state"`
	At       int64  `json:"at,omitempty"`
	Reason   string `json:"reason,omitempty"`
}

// IsActive returns true if the status is active.
func (s ConsentStatus) IsActive() bool {
	return s.State == CONSENT_ACTIVE
}

// Requester holds the attributes of an access requester the evaluator looks at.
type Requester struct {
	ID           string `json:"id"`
	Role         string `json:"role"`
	Jurisdiction string `json:"jurisdiction"`
}

// ConsentDecision is the result of evaluating a policy. Reason is set on deny.
// ValidUntil is the end of the policy window on allow (0 = unbounded).
type ConsentDecision struct {
	PolicyID    string `json:"policy_id"`
	Allowed     bool   `json:"allowed"`
	Reason      string `json:"reason,omitempty"`
	ValidUntil  int64  `json:"valid_until,omitempty"`
	EvaluatedAt int64  `json:"evaluated_at"`
}

// Allow returns an allow decision.
func Allow(policyID string, validUntil int64, now int64) ConsentDecision {
	return ConsentDecision{PolicyID: policyID, Allowed: true, ValidUntil: validUntil, EvaluatedAt: now}
}

// Deny returns a deny decision.
func Deny(policyID string, reason string, now int64) ConsentDecision {
	return ConsentDecision{PolicyID: policyID, Allowed: false, Reason: reason, EvaluatedAt: now}
}

// PolicyView is a policy together with its current status.
type PolicyView struct {
	Policy ConsentPolicy `json:"policy"`
	Status ConsentStatus `json:"status"`
}
