/*******************************************************************************
 *
 *
 * (c) Copyright Merative US L.P. and others 2020-2022
 *
 * SPDX-Licence-Identifier: Apache 2.0
 *
 *******************************************************************************/

package data_model

// EventType enumerates the events appended to a ledger's event log.
type EventType string

// Events for external observers.
const (
	EVENT_POLICY_GRANTED      EventType = "PolicyGranted"
	EVENT_POLICY_UPDATED      EventType = "PolicyUpdated"
	EVENT_POLICY_REVOKED      EventType = "PolicyRevoked"
	EVENT_POLICY_EXPIRED      EventType = "PolicyExpired"
	EVENT_POLICY_RENEWED      EventType = "PolicyRenewed"
	EVENT_CONSENT_CHECKED     EventType = "ConsentChecked"
	EVENT_ACCESS_REQUESTED    EventType = "AccessRequested"
	EVENT_ACCESS_GRANTED      EventType = "AccessGranted"
	EVENT_ACCESS_DENIED       EventType = "AccessDenied"
	EVENT_ACCESS_REVOKED      EventType = "AccessRevoked"
	EVENT_ACCESS_EXTENDED     EventType = "AccessExtended"
	EVENT_RECORD_REGISTERED   EventType = "RecordRegistered"
	EVENT_RECORD_REMOVED      EventType = "RecordRemoved"
	EVENT_PROVENANCE_APPENDED EventType = "ProvenanceAppended"
	EVENT_SUBMISSION_RECEIVED EventType = "SubmissionReceived"
	EVENT_SUBMISSION_VERIFIED EventType = "SubmissionVerified"
	EVENT_SUBMISSION_REJECTED EventType = "SubmissionRejected"
	EVENT_REWARD_PAID         EventType = "RewardPaid"
	EVENT_CITATION_ADDED      EventType = "CitationAdded"
	EVENT_CITATION_BONUS_PAID EventType = "CitationBonusPaid"
	EVENT_TREASURY_FUNDED     EventType = "TreasuryFunded"
	EVENT_IDENTITY_REGISTERED EventType = "IdentityRegistered"
	EVENT_MESSAGE_FAILED      EventType = "MessageFailed"
)

// Event is an entry of the append-only event log.
// Seq is gap-free per ledger; the id fields that apply to the event are set.
type Event struct {
	Seq          uint64            `json:"seq"`
	Type         EventType         `json:"type"`
	Ledger       string            `json:"ledger"`
	TxID         string            `json:"tx_id"`
	Timestamp    int64             `json:"timestamp"`
	ActorID      string            `json:"actor_id,omitempty"`
	PolicyID     string            `json:"policy_id,omitempty"`
	RequestID    string            `json:"request_id,omitempty"`
	RecordRef    string            `json:"record_ref,omitempty"`
	SubmissionID string            `json:"submission_id,omitempty"`
	Amount       uint64            `json:"amount,omitempty"`
	Reason       string            `json:"reason,omitempty"`
	Data         map[string]string `json:"data,omitempty"`
}
