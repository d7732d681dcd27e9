/*******************************************************************************
 *
 *
 * (c) Copyright Merative US L.P. and others 2020-2022
 *
 * SPDX-Licence-Identifier: Apache 2.0
 *
 *******************************************************************************/

package data_model

import (
	"encoding/json"
)

// Message kinds. Each kind has exactly one payload type.
const (
	// MSG_CONSENT_CHECK asks the consent ledger to evaluate a policy. Payload: ConsentCheckPayload.
	MSG_CONSENT_CHECK = "consent_check"
	// MSG_CONSENT_DECISION answers a consent check. Payload: ConsentDecisionPayload.
	MSG_CONSENT_DECISION = "consent_decision"
	// MSG_POLICY_REVOKED notifies subscribers that a policy left active. Payload: PolicyStatusPayload.
	MSG_POLICY_REVOKED = "policy_revoked"
	// MSG_POLICY_EXPIRED notifies subscribers that a policy expired. Payload: PolicyStatusPayload.
	MSG_POLICY_EXPIRED = "policy_expired"
	// MSG_POLICY_RENEWED notifies subscribers that an auto-renewing policy moved its
	// window. Payload: PolicyStatusPayload with Until set.
	MSG_POLICY_RENEWED = "policy_renewed"
	// MSG_PROVENANCE_LOG asks the record ledger to append a provenance event. Payload: ProvenanceLogPayload.
	MSG_PROVENANCE_LOG = "provenance_log"
	// MSG_PROVENANCE_LOGGED answers a provenance log request. Payload: ProvenanceLoggedPayload.
	MSG_PROVENANCE_LOGGED = "provenance_logged"
)

// Message is a cross-ledger message. Channel is "<From>><To>" and Seq is gap-free
// within the channel. CorrelationID is the receiver's idempotency key.
type Message struct {
	Channel       string          `json:"channel"`
	Seq           uint64          `json:"seq"`
	From          string          `json:"from"`
	To            string          `json:"to"`
	Kind          string          `json:"kind"`
	CorrelationID string          `json:"correlation_id"`
	Payload       json.RawMessage `json:"payload"`
	SentAt        int64           `json:"sent_at"`
	TxID          string          `json:"tx_id"`
}

// DeliveryFailure is reported back to the sending ledger when the relay gives up.
type DeliveryFailure struct {
	Message  Message `json:"message"`
	Attempts int     `json:"attempts"`
	Reason   string  `json:"reason"`
}

// ConsentCheckPayload asks whether RequesterID may access data under PolicyID.
type ConsentCheckPayload struct {
	PolicyID    string   `json:"policy_id"`
	RequesterID string   `json:"requester_id"`
	Purpose     Purpose  `json:"purpose"`
	Categories  []string `json:"categories,omitempty"`
}

// ConsentDecisionPayload carries the evaluator's decision.
type ConsentDecisionPayload struct {
	Decision ConsentDecision `json:"decision"`
}

// PolicyStatusPayload notifies a policy status change.
type PolicyStatusPayload struct {
	PolicyID string `json:"policy_id"`
	OwnerID  string `json:"owner_id"`
	State    string `json:"state"`
	At       int64  `json:"at"`
	Reason   string `json:"reason,omitempty"`
	// Until is the new end of the window of a renewed policy.
	Until int64 `json:"until,omitempty"`
}

// ProvenanceLogPayload asks the record ledger to log an activity on a record.
type ProvenanceLogPayload struct {
	RecordRef string  `json:"record_ref"`
	Activity  string  `json:"activity"`
	AgentID   string  `json:"agent_id"`
	Purpose   Purpose `json:"purpose"`
	Reference string  `json:"reference,omitempty"`
}

// ProvenanceLoggedPayload returns the hash of the appended event. Error is set when the
// record ledger could not log the activity.
type ProvenanceLoggedPayload struct {
	RecordRef string `json:"record_ref"`
	EventHash string `json:"event_hash,omitempty"`
	Error     string `json:"error,omitempty"`
}
