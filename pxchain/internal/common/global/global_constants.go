/*******************************************************************************
 *
 *
 * (c) Copyright Merative US L.P. and others 2020-2022
 *
 * SPDX-Licence-Identifier: Apache 2.0
 *
 *******************************************************************************/

// global package contains global data, variables, constants, or functions to be
// used across all pxchain packages.
// This should be the lowest level package (below data_model and common).
//
// In global package, only the following pxchain packages are allowed to be imported:
//	"github.com/choiwab/patient-x/pxchain/custom_errors"
//
package global

import (
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/hyperledger/fabric/core/chaincode/shim"
)

var logger = shim.NewLogger("common")

///////////////////////////////////////////////////////
// Common

const MIN_UNICODE_RUNE_VALUE = 0            //U+0000
const MAX_UNICODE_RUNE_VALUE = utf8.MaxRune //U+10FFFF - maximum (and unallocated) code point
const COMPOSITE_KEY_NAMESPACE = "\x00"

// INDEX_MARKER is stored as the value of index-only keys. The ledger treats an empty
// value as a delete, so markers must be non-empty.
var INDEX_MARKER = []byte{0x00}

// PX_NAMESPACE is the uuid namespace for ids derived on the ledger.
var PX_NAMESPACE = uuid.MustParse("6f0e2b7a-4c1d-5a8e-9b3f-2d7c1e0a9f64")

// SEQ_PAD_WIDTH is the width of zero-padded sequence numbers in keys.
const SEQ_PAD_WIDTH = 20

///////////////////////////////////////////////////////
// Ledgers

// LEDGER_CONSENT hosts consent policies and the evaluator.
const LEDGER_CONSENT = "consent"

// LEDGER_HEALTH hosts the record catalog, the access gate and provenance.
const LEDGER_HEALTH = "health"

// LEDGER_MARKET hosts submissions and the reward treasury.
const LEDGER_MARKET = "market"

// LEDGER_CONFIG_KEY stores the data_model.LedgerConfig of the ledger.
const LEDGER_CONFIG_KEY = "px_ledger_config"

///////////////////////////////////////////////////////
// Identity

// IDENTITY_PREFIX is the object type of identity keys.
const IDENTITY_PREFIX = "Identity"

// ROLE_PATIENT is a data owner.
const ROLE_PATIENT = "patient"

// ROLE_RESEARCHER can request access and submit outcomes.
const ROLE_RESEARCHER = "researcher"

// ROLE_INSTITUTION is an institutional verifier.
const ROLE_INSTITUTION = "institution"

// ROLE_AUDITOR can verify submissions and read audit trails.
const ROLE_AUDITOR = "auditor"

// ROLE_PUBLISHER adds citations.
const ROLE_PUBLISHER = "publisher"

// ROLE_REGULATOR can verify submissions.
const ROLE_REGULATOR = "regulator"

// ROLE_ADMIN administers a ledger.
const ROLE_ADMIN = "admin"

// ROLE_RELAY is the account the message relay invokes ledgers with.
const ROLE_RELAY = "relay"

// VERIFIER_ROLES may verify negative-data submissions.
var VERIFIER_ROLES = []string{ROLE_INSTITUTION, ROLE_AUDITOR, ROLE_REGULATOR}

// CITATION_ROLES may add citations to submissions.
var CITATION_ROLES = []string{ROLE_PUBLISHER, ROLE_RESEARCHER, ROLE_INSTITUTION}

// SELF_REGISTER_ROLES may be self-assigned without an admin.
var SELF_REGISTER_ROLES = []string{ROLE_PATIENT, ROLE_RESEARCHER, ROLE_PUBLISHER}

////////////////////////////////////////////////////////////
// Consent

// CONSENT_PREFIX is the prefix for all consent policy ids.
const CONSENT_PREFIX = "Consent"

// CONSENT_POLICY_PREFIX is the object type of policy keys.
const CONSENT_POLICY_PREFIX = "ConsentPolicy"

// CONSENT_STATUS_PREFIX is the object type of policy status keys.
const CONSENT_STATUS_PREFIX = "ConsentStatus"

// INDEX_CONSENT_OWNER indexes policies by owner.
const INDEX_CONSENT_OWNER = "ConsentByOwner"

// INDEX_CONSENT_ACTIVE indexes active policies that have an end instant.
const INDEX_CONSENT_ACTIVE = "ConsentActiveByEnd"

// CONSENT_REDELIVERY_PREFIX tracks undelivered revocation notices.
const CONSENT_REDELIVERY_PREFIX = "ConsentRedelivery"

// CONSENT_CHECK_RESULT_PREFIX keeps the decision sent for each consent check so a
// retried check is answered with the same decision.
const CONSENT_CHECK_RESULT_PREFIX = "ConsentCheckResult"

// REVOCATION_RESEND_BUDGET bounds re-sends of an undeliverable revocation notice.
const REVOCATION_RESEND_BUDGET = 10

/////////////////////////////////////////////////////////////
// Records and provenance

const RECORD_PREFIX = "Record"
const INDEX_RECORD_OWNER = "RecordByOwner"

const PROVENANCE_PREFIX = "Provenance"
const PROVENANCE_HEAD_PREFIX = "ProvenanceHead"

// PROVENANCE_LOG_RESULT_PREFIX keeps the reply sent for each provenance log request.
const PROVENANCE_LOG_RESULT_PREFIX = "ProvenanceLogResult"

// PROVENANCE_GENESIS_HASH is the previous hash of the first event of a trail.
const PROVENANCE_GENESIS_HASH = "0000000000000000000000000000000000000000000000000000000000000000"

/////////////////////////////////////////////////////////////
// Access gate

const ACCESS_REQUEST_PREFIX = "AccessRequest"
const INDEX_ACCESS_PAIR = "AccessActivePair"
const INDEX_ACCESS_PENDING = "AccessPending"
const INDEX_ACCESS_POLICY = "AccessGrantByPolicy"
const INDEX_ACCESS_RECORD = "AccessByRecord"
const INDEX_ACCESS_REQUESTER = "AccessByRequester"
const ACCESS_REVOKED_POLICY_PREFIX = "AccessRevokedPolicy"

// DEFAULT_CONSENT_TIMEOUT is how long (seconds) a consent check may stay unanswered.
const DEFAULT_CONSENT_TIMEOUT = 300

// DEFAULT_RETRY_BUDGET is the number of consent-check sends per request.
const DEFAULT_RETRY_BUDGET = 3

/////////////////////////////////////////////////////////////
// Submissions and treasury

const SUBMISSION_PREFIX = "Submission"
const INDEX_SUBMISSION_SUBMITTER = "SubmissionBySubmitter"
const INDEX_SUBMISSION_PENDING_CHECK = "SubmissionPendingCheck"
const SUBMISSION_STATS_KEY = "px_submission_stats"
const REWARD_CONFIG_KEY = "px_reward_config"

const TREASURY_POOL_KEY = "px_treasury_pool"
const TREASURY_ACCOUNT_PREFIX = "TreasuryAccount"
const TREASURY_PAYOUT_PREFIX = "TreasuryPayout"
const TREASURY_RESERVATION_PREFIX = "TreasuryReservation"

const PAYOUT_REWARD_PREFIX = "reward"
const PAYOUT_CITATION_PREFIX = "citation"

/////////////////////////////////////////////////////////////
// Messenger

const OUTBOX_PREFIX = "Outbox"
const OUTBOX_SEQ_PREFIX = "OutboxSeq"
const INBOX_PREFIX = "Inbox"
const FAILED_PREFIX = "MessageFailed"

// CHANNEL_SEPARATOR joins source and destination ledger names into a channel name.
const CHANNEL_SEPARATOR = ">"

/////////////////////////////////////////////////////////////
// History

// EVENT_PREFIX is the object type of event log keys.
const EVENT_PREFIX = "Event"

// EVENT_SEQ_KEY stores the last event sequence number.
const EVENT_SEQ_KEY = "px_event_seq"

// INDEX_EVENT_TYPE indexes events by type.
const INDEX_EVENT_TYPE = "EventByType"

/////////////////////////////////////////////////////////////
// Datastore

// DATASTORE_BLOB_PREFIX is the object type of blobs kept on the ledger.
const DATASTORE_BLOB_PREFIX = "Blob"

// DATASTORE_PIN_PREFIX counts the records referencing a blob.
const DATASTORE_PIN_PREFIX = "BlobPins"
