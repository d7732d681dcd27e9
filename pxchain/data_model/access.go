/*******************************************************************************
 *
 *
 * (c) Copyright Merative US L.P. and others 2020-2022
 *
 * SPDX-Licence-Identifier: Apache 2.0
 *
 *******************************************************************************/

package data_model

// Access request states.
const (
	ACCESS_REQUESTED             = "requested"
	ACCESS_PENDING_CONSENT_CHECK = "pending_consent_check"
	ACCESS_GRANTED               = "granted"
	ACCESS_DENIED                = "denied"
	ACCESS_REVOKED               = "revoked"
)

// Deny reasons produced by the access gate itself.
const (
	DENY_CONSENT_CHECK_TIMEOUT = "ConsentCheckTimeout"
	DENY_CANCELLED             = "Cancelled"
	DENY_RECORD_REMOVED        = "RecordRemoved"
)

// Revoke reasons.
const (
	REVOKE_POLICY_REVOKED = "PolicyRevoked"
	REVOKE_POLICY_EXPIRED = "PolicyExpired"
	REVOKE_GRANT_EXPIRED  = "GrantExpired"
	REVOKE_RECORD_REMOVED = "RecordRemoved"
	REVOKE_RELINQUISHED   = "Relinquished"
)

// AccessRequest is the enforcement-side record of an access to a record.
//
// State moves requested -> pending_consent_check -> granted | denied, and granted may
// later move to revoked. Denied and revoked are terminal.
// RequestID doubles as the correlation id of the consent check.
type AccessRequest struct {
	RequestID      string  `json:"request_id"`
	RequesterID    string  `json:"requester_id"`
	RecordRef      string  `json:"record_ref"`
	PolicyID       string  `json:"policy_id"`
	Purpose        Purpose `json:"purpose"`
	State          string  `json:"state"`
	ExpiresAt      int64   `json:"expires_at,omitempty"`
	DenyReason     string  `json:"deny_reason,omitempty"`
	RevokedAt      int64   `json:"revoked_at,omitempty"`
	RevokeReason   string  `json:"revoke_reason,omitempty"`
	Attempts       int     `json:"attempts"`
	LastSentAt     int64   `json:"last_sent_at,omitempty"`
	ProvenanceHash string  `json:"provenance_hash,omitempty"`
	ProvenanceSent int     `json:"provenance_sent,omitempty"`
	CreatedAt      int64   `json:"created_at"`
	UpdatedAt      int64   `json:"updated_at"`
}

// IsTerminal returns true for denied and revoked requests.
func (r AccessRequest) IsTerminal() bool {
	return r.State == ACCESS_DENIED || r.State == ACCESS_REVOKED
}

// IsPending returns true while a consent check is outstanding.
func (r AccessRequest) IsPending() bool {
	return r.State == ACCESS_REQUESTED || r.State == ACCESS_PENDING_CONSENT_CHECK
}

// IsLive returns true if the request is granted and not past its expiry at now.
func (r AccessRequest) IsLive(now int64) bool {
	return r.State == ACCESS_GRANTED && (r.ExpiresAt == 0 || now <= r.ExpiresAt)
}

// Record statuses.
const (
	RECORD_ACTIVE  = "active"
	RECORD_REMOVED = "removed"
)

// Record is a catalog entry for a sensitive record held by the record ledger.
// The content itself lives in the content store under ContentRef.
type Record struct {
	RecordRef  string   `json:"record_ref"`
	OwnerID    string   `json:"owner_id"`
	PolicyID   string   `json:"policy_id"`
	Categories []string `json:"categories,omitempty"`
	ContentRef string   `json:"content_ref,omitempty"`
	Status     string   `json:"status"`
	CreatedAt  int64    `json:"created_at"`
	RemovedAt  int64    `json:"removed_at,omitempty"`
}

// RecordInput is what an owner provides to register a record. Content is stored in
// the content store; only its reference is kept in the catalog.
type RecordInput struct {
	RecordRef  string   `json:"record_ref"`
	PolicyID   string   `json:"policy_id"`
	Categories []string `json:"categories,omitempty"`
	Content    []byte   `json:"content"`
}

// Provenance activity types.
const (
	ACTIVITY_ACCESS       = "access"
	ACTIVITY_MODIFICATION = "modification"
	ACTIVITY_DERIVATION   = "derivation"
	ACTIVITY_SHARING      = "sharing"
	ACTIVITY_EXPORT       = "export"
	ACTIVITY_DELETION     = "deletion"
)

// ProvenanceEvent is one link of a record's audit chain.
// Hash is sha256 over PrevHash and the event fields; it is computed by the ledger.
type ProvenanceEvent struct {
	RecordRef string  `json:"record_ref"`
	Seq       uint64  `json:"seq"`
	Activity  string  `json:"activity"`
	AgentID   string  `json:"agent_id"`
	Purpose   Purpose `json:"purpose"`
	Reference string  `json:"reference,omitempty"`
	At        int64   `json:"at"`
	TxID      string  `json:"tx_id"`
	PrevHash  string  `json:"prev_hash"`
	Hash      string  `json:"hash"`
}
