/*******************************************************************************
 *
 *
 * (c) Copyright Merative US L.P. and others 2020-2022
 *
 * SPDX-Licence-Identifier: Apache 2.0
 *
 *******************************************************************************/

package data_model

// Trial phases.
const (
	PHASE_PRECLINICAL = "preclinical"
	PHASE_1           = "phase1"
	PHASE_2           = "phase2"
	PHASE_3           = "phase3"
	PHASE_4           = "phase4"
)

// VALID_TRIAL_PHASES lists accepted OutcomeMetadata.TrialPhase values.
var VALID_TRIAL_PHASES = []string{PHASE_PRECLINICAL, PHASE_1, PHASE_2, PHASE_3, PHASE_4}

// Verification states.
const (
	VERIFICATION_PENDING  = "pending"
	VERIFICATION_VERIFIED = "verified"
	VERIFICATION_REJECTED = "rejected"
)

// Protocol consent states of a submission.
const (
	PROTOCOL_CONSENT_PENDING   = "pending"
	PROTOCOL_CONSENT_CONFIRMED = "confirmed"
	PROTOCOL_CONSENT_REFUSED   = "refused"
	PROTOCOL_CONSENT_TIMED_OUT = "timed_out"
)

// EfficacyData is the optional efficacy part of an outcome.
type EfficacyData struct {
	Summary         string  `json:"summary"`
	EffectSize      float64 `json:"effect_size,omitempty"`
	ConfidenceLevel float64 `json:"confidence_level,omitempty"`
}

// OutcomeMetadata describes a negative or abandoned research outcome.
// MonthsSinceDiscontinuation is the time between discontinuation and submission as
// declared by the submitter; the time bonus is computed from it.
type OutcomeMetadata struct {
	TrialPhase                 string        `json:"trial_phase"`
	DiseaseArea                string        `json:"disease_area"`
	DiscontinuationReason      string        `json:"discontinuation_reason"`
	PrimaryEndpoints           []string      `json:"primary_endpoints"`
	SampleSize                 uint32        `json:"sample_size"`
	SafetySignals              []string      `json:"safety_signals,omitempty"`
	EfficacyData               *EfficacyData `json:"efficacy_data,omitempty"`
	MonthsSinceDiscontinuation uint32        `json:"months_since_discontinuation"`
	Summary                    string        `json:"summary,omitempty"`
}

// Verification is the verifier's decision on a submission.
type Verification struct {
	State      string `json:"state"`
	VerifierID string `json:"verifier_id,omitempty"`
	At         int64  `json:"at,omitempty"`
	Reason     string `json:"reason,omitempty"`
}

// VerificationDecision is the input of a verifier.
type VerificationDecision struct {
	Approve bool   `json:"approve"`
	Reason  string `json:"reason,omitempty"`
}

// Citation is a publication citing a submission.
type Citation struct {
	PublicationRef string `json:"publication_ref"`
	CitedBy        string `json:"cited_by"`
	AddedAt        int64  `json:"added_at"`
	BonusPaid      uint64 `json:"bonus_paid"`
}

// Submission is a negative-data record entered for verification and reward.
//
// SubmissionID is base58(sha256(SubmitterID, RecordRef)), so resubmitting the same
// record is detected. RewardClaimed is write-once; Citations are append-only.
// SubmissionID is also the correlation id of the protocol consent check, tracked by
// CheckAttempts and CheckSentAt.
type Submission struct {
	SubmissionID     string          `json:"submission_id"`
	SubmitterID      string          `json:"submitter_id"`
	RecordRef        string          `json:"record_ref"`
	ProtocolPolicyID string          `json:"protocol_policy_id"`
	Metadata         OutcomeMetadata `json:"metadata"`
	ProvenanceHash   string          `json:"provenance_hash,omitempty"`
	ProtocolConsent  string          `json:"protocol_consent"`
	ConsentReason    string          `json:"consent_reason,omitempty"`
	CheckAttempts    int             `json:"check_attempts"`
	CheckSentAt      int64           `json:"check_sent_at,omitempty"`
	ProvenanceSent   int             `json:"provenance_sent,omitempty"`
	Verification     Verification    `json:"verification"`
	RewardClaimed    bool            `json:"reward_claimed"`
	RewardAmount     uint64          `json:"reward_amount,omitempty"`
	Citations        []Citation      `json:"citations"`
	SubmittedAt      int64           `json:"submitted_at"`
	UpdatedAt        int64           `json:"updated_at"`
}

// SubmissionInput is what a submitter provides.
type SubmissionInput struct {
	RecordRef        string          `json:"record_ref"`
	ProtocolPolicyID string          `json:"protocol_policy_id"`
	Metadata         OutcomeMetadata `json:"metadata"`
}

// RewardConfig holds the reward schedule of the market ledger.
type RewardConfig struct {
	Base             uint64   `json:"base"`
	QualityBonus     uint64   `json:"quality_bonus"`
	TimeBonus        uint64   `json:"time_bonus"`
	TimeBonusMonths  uint32   `json:"time_bonus_months"`
	RarityBonus      uint64   `json:"rarity_bonus"`
	RareDiseaseAreas []string `json:"rare_disease_areas"`
	CitationBonus    uint64   `json:"citation_bonus"`
	MaxCitations     int      `json:"max_citations"`
}

// RewardBreakdown shows how a reward was derived.
type RewardBreakdown struct {
	Base          uint64 `json:"base"`
	QualityBonus  uint64 `json:"quality_bonus"`
	TimeBonus     uint64 `json:"time_bonus"`
	RarityBonus   uint64 `json:"rarity_bonus"`
	CitationBonus uint64 `json:"citation_bonus"`
	Citations     int    `json:"citations"`
	Total         uint64 `json:"total"`
}

// SubmissionStats are registry-wide counters.
type SubmissionStats struct {
	Total          uint64 `json:"total"`
	Verified       uint64 `json:"verified"`
	Rejected       uint64 `json:"rejected"`
	RewardsClaimed uint64 `json:"rewards_claimed"`
	RewardsPaid    uint64 `json:"rewards_paid"`
	Citations      uint64 `json:"citations"`
	CitationsPaid  uint64 `json:"citations_paid"`
}

// TreasuryPool is the state of the reward treasury.
// Available funds are Balance - Reserved.
type TreasuryPool struct {
	Balance     uint64 `json:"balance"`
	Reserved    uint64 `json:"reserved"`
	TotalFunded uint64 `json:"total_funded"`
	TotalPaid   uint64 `json:"total_paid"`
}

// Available returns the unreserved balance.
func (p TreasuryPool) Available() uint64 {
	if p.Reserved > p.Balance {
		return 0
	}
	return p.Balance - p.Reserved
}

// Payout is a reward ledger entry. Ref is unique, so each payout happens once.
type Payout struct {
	Ref       string `json:"ref"`
	AccountID string `json:"account_id"`
	Amount    uint64 `json:"amount"`
	PaidAt    int64  `json:"paid_at"`
	TxID      string `json:"tx_id"`
}

// Reservation earmarks treasury funds for a future payout with the same ref.
type Reservation struct {
	Ref        string `json:"ref"`
	Amount     uint64 `json:"amount"`
	ReservedAt int64  `json:"reserved_at"`
}

// TreasuryAccount is the balance of an account paid by the treasury.
type TreasuryAccount struct {
	AccountID string `json:"account_id"`
	Balance   uint64 `json:"balance"`
}
