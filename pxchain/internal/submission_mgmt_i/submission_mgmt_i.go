/*******************************************************************************
 *
 *
 * (c) Copyright Merative US L.P. and others 2020-2022
 *
 * SPDX-Licence-Identifier: Apache 2.0
 *
 *******************************************************************************/

// Package submission_mgmt_i is the negative-data submission registry of the market ledger.
package submission_mgmt_i

import (
	"crypto/sha256"
	"strconv"

	"github.com/choiwab/patient-x/pxchain/cached_stub"
	"github.com/choiwab/patient-x/pxchain/custom_errors"
	"github.com/choiwab/patient-x/pxchain/data_model"
	"github.com/choiwab/patient-x/pxchain/history"
	"github.com/choiwab/patient-x/pxchain/identity"
	"github.com/choiwab/patient-x/pxchain/index"
	"github.com/choiwab/patient-x/pxchain/internal/common"
	"github.com/choiwab/patient-x/pxchain/internal/common/global"
	"github.com/choiwab/patient-x/pxchain/messenger"
	"github.com/choiwab/patient-x/pxchain/treasury"
	"github.com/choiwab/patient-x/pxchain/utils"

	"github.com/hyperledger/fabric/core/chaincode/shim"
	"github.com/mr-tron/base58"
	"github.com/pkg/errors"
)

var logger = shim.NewLogger("submission_mgmt_i")

// protocolPurpose is the purpose asserted when confirming a submission's protocol consent.
var protocolPurpose = data_model.Purpose{Kind: data_model.PURPOSE_RESEARCH_GENERAL}

// ------------------------------------------------------
// ---------------------- INIT FUNCTIONS ----------------
// ------------------------------------------------------

// Init sets up the submission_mgmt package.
func Init(stub cached_stub.CachedStubInterface, logLevel ...shim.LoggingLevel) ([]byte, error) {
	if len(logLevel) > 0 {
		logger.SetLevel(logLevel[0])
	}
	return nil, nil
}

// GetSubmissionID returns the id of the submission of recordRef by submitterID.
func GetSubmissionID(submitterID string, recordRef string) string {
	sum := sha256.Sum256([]byte(submitterID + "\x00" + recordRef))
	return base58.Encode(sum[:])
}

// ------------------------------------------------------
// ---------------------- SUBMITTER ACTIONS -------------
// ------------------------------------------------------

// Submit registers a submission of caller. The protocol consent check and the
// provenance log request are sent right away; the submission stays pending
// verification.
func Submit(stub cached_stub.CachedStubInterface, caller data_model.Identity, input data_model.SubmissionInput) (data_model.Submission, error) {
	defer utils.ExitFnLogger(logger, utils.EnterFnLogger(logger))
	logger.Debugf("caller: %v record: %v", caller.ID, input.RecordRef)

	submission := data_model.Submission{}
	if utils.IsStringEmpty(input.RecordRef) {
		return submission, invalid("record_ref", "record_ref is required")
	}
	if utils.IsStringEmpty(input.ProtocolPolicyID) {
		return submission, invalid("protocol_policy_id", "protocol_policy_id is required")
	}
	if err := validateMetadata(input.Metadata); err != nil {
		return submission, err
	}
	submissionID := GetSubmissionID(caller.ID, input.RecordRef)
	_, exists, err := GetSubmission(stub, submissionID)
	if err != nil {
		return submission, err
	}
	if exists {
		custom_err := &custom_errors.DuplicateSubmissionError{SubmissionID: submissionID}
		logger.Errorf("%v", custom_err)
		return submission, errors.WithStack(custom_err)
	}
	now, err := utils.GetTxTime(stub)
	if err != nil {
		return submission, err
	}

	submission = data_model.Submission{
		SubmissionID:     submissionID,
		SubmitterID:      caller.ID,
		RecordRef:        input.RecordRef,
		ProtocolPolicyID: input.ProtocolPolicyID,
		Metadata:         input.Metadata,
		ProtocolConsent:  data_model.PROTOCOL_CONSENT_PENDING,
		Verification:     data_model.Verification{State: data_model.VERIFICATION_PENDING},
		Citations:        []data_model.Citation{},
		SubmittedAt:      now,
		UpdatedAt:        now,
	}
	if err := index.GetTable(stub, global.INDEX_SUBMISSION_SUBMITTER).PutRow(caller.ID, submissionID); err != nil {
		return submission, err
	}
	if err := sendProtocolCheck(stub, &submission, now); err != nil {
		return submission, err
	}
	if err := sendProvenanceLog(stub, &submission); err != nil {
		return submission, err
	}
	if err := updateStats(stub, func(stats *data_model.SubmissionStats) { stats.Total++ }); err != nil {
		return submission, err
	}
	_, err = history.PutEvent(stub, data_model.Event{
		Type:         data_model.EVENT_SUBMISSION_RECEIVED,
		ActorID:      caller.ID,
		SubmissionID: submissionID,
		RecordRef:    input.RecordRef,
		PolicyID:     input.ProtocolPolicyID,
		Data:         map[string]string{"disease_area": input.Metadata.DiseaseArea, "trial_phase": input.Metadata.TrialPhase},
	})
	return submission, err
}

// UpdateMetadata replaces the metadata of a submission of caller that is still
// pending verification.
func UpdateMetadata(stub cached_stub.CachedStubInterface, caller data_model.Identity, submissionID string, metadata data_model.OutcomeMetadata) (data_model.Submission, error) {
	defer utils.ExitFnLogger(logger, utils.EnterFnLogger(logger))

	submission, err := getSubmitted(stub, caller, submissionID)
	if err != nil {
		return submission, err
	}
	if submission.Verification.State != data_model.VERIFICATION_PENDING {
		custom_err := &custom_errors.AlreadyDecidedError{Type: "Submission", ID: submissionID, State: submission.Verification.State}
		logger.Errorf("%v", custom_err)
		return submission, errors.WithStack(custom_err)
	}
	if err := validateMetadata(metadata); err != nil {
		return submission, err
	}
	now, err := utils.GetTxTime(stub)
	if err != nil {
		return submission, err
	}
	submission.Metadata = metadata
	submission.UpdatedAt = now
	return submission, putSubmission(stub, submission)
}

// ClaimReward pays the reward of a verified submission to its submitter, once.
func ClaimReward(stub cached_stub.CachedStubInterface, caller data_model.Identity, submissionID string) (data_model.RewardBreakdown, error) {
	defer utils.ExitFnLogger(logger, utils.EnterFnLogger(logger))

	breakdown := data_model.RewardBreakdown{}
	submission, err := getSubmitted(stub, caller, submissionID)
	if err != nil {
		return breakdown, err
	}
	if submission.Verification.State != data_model.VERIFICATION_VERIFIED {
		custom_err := &custom_errors.NotVerifiedError{SubmissionID: submissionID}
		logger.Errorf("%v", custom_err)
		return breakdown, errors.WithStack(custom_err)
	}
	if submission.RewardClaimed {
		custom_err := &custom_errors.AlreadyClaimedError{SubmissionID: submissionID}
		logger.Errorf("%v", custom_err)
		return breakdown, errors.WithStack(custom_err)
	}
	if err := checkEligible(submission); err != nil {
		return breakdown, err
	}

	config, err := GetRewardConfig(stub)
	if err != nil {
		return breakdown, err
	}
	breakdown = ComputeReward(config, submission.Metadata, len(submission.Citations))
	payout, err := treasury.Pay(stub, treasury.RewardRef(submissionID), submission.SubmitterID, breakdown.Total)
	if err != nil {
		return breakdown, err
	}
	submission.RewardClaimed = true
	submission.RewardAmount = breakdown.Total
	submission.UpdatedAt = payout.PaidAt
	if err := putSubmission(stub, submission); err != nil {
		return breakdown, err
	}
	err = updateStats(stub, func(stats *data_model.SubmissionStats) {
		stats.RewardsClaimed++
		stats.RewardsPaid += breakdown.Total
	})
	if err != nil {
		return breakdown, err
	}
	_, err = history.PutEvent(stub, data_model.Event{
		Type:         data_model.EVENT_REWARD_PAID,
		ActorID:      caller.ID,
		SubmissionID: submissionID,
		Amount:       breakdown.Total,
		Data:         map[string]string{"citations": strconv.Itoa(breakdown.Citations)},
	})
	logger.Infof("reward %v paid for %v", breakdown.Total, submissionID)
	return breakdown, err
}

// ------------------------------------------------------
// ---------------------- VERIFIER & PUBLISHER ----------
// ------------------------------------------------------

// Verify records the decision of a verifier on a pending submission. Only a submission
// with confirmed protocol consent and logged provenance can be approved. On approval the
// reward is reserved in the treasury if the pool can cover it.
func Verify(stub cached_stub.CachedStubInterface, caller data_model.Identity, submissionID string, decision data_model.VerificationDecision) (data_model.Submission, error) {
	defer utils.ExitFnLogger(logger, utils.EnterFnLogger(logger))

	submission, found, err := GetSubmission(stub, submissionID)
	if err != nil {
		return submission, err
	}
	if !found {
		custom_err := &custom_errors.NotFoundError{Type: "Submission", ID: submissionID}
		logger.Errorf("%v", custom_err)
		return submission, errors.WithStack(custom_err)
	}
	verifier, err := identity.GetDirectory(stub).HasRole(caller.ID, global.VERIFIER_ROLES...)
	if err != nil {
		return submission, err
	}
	if !verifier || caller.ID == submission.SubmitterID {
		custom_err := &custom_errors.UnauthorizedVerifierError{VerifierID: caller.ID}
		logger.Errorf("%v", custom_err)
		return submission, errors.WithStack(custom_err)
	}
	if submission.Verification.State != data_model.VERIFICATION_PENDING {
		custom_err := &custom_errors.AlreadyDecidedError{Type: "Submission", ID: submissionID, State: submission.Verification.State}
		logger.Errorf("%v", custom_err)
		return submission, errors.WithStack(custom_err)
	}
	if decision.Approve {
		if err := checkEligible(submission); err != nil {
			return submission, err
		}
	}
	now, err := utils.GetTxTime(stub)
	if err != nil {
		return submission, err
	}

	submission.Verification = data_model.Verification{VerifierID: caller.ID, At: now, Reason: decision.Reason}
	submission.UpdatedAt = now
	event := data_model.Event{ActorID: caller.ID, SubmissionID: submissionID, Reason: decision.Reason}
	if decision.Approve {
		submission.Verification.State = data_model.VERIFICATION_VERIFIED
		event.Type = data_model.EVENT_SUBMISSION_VERIFIED
		err = updateStats(stub, func(stats *data_model.SubmissionStats) { stats.Verified++ })
	} else {
		submission.Verification.State = data_model.VERIFICATION_REJECTED
		event.Type = data_model.EVENT_SUBMISSION_REJECTED
		err = updateStats(stub, func(stats *data_model.SubmissionStats) { stats.Rejected++ })
	}
	if err != nil {
		return submission, err
	}
	if err := putSubmission(stub, submission); err != nil {
		return submission, err
	}
	if decision.Approve {
		config, err := GetRewardConfig(stub)
		if err != nil {
			return submission, err
		}
		amount := ComputeReward(config, submission.Metadata, len(submission.Citations)).Total
		if _, err := treasury.Reserve(stub, treasury.RewardRef(submissionID), amount); err != nil {
			return submission, err
		}
	}
	_, err = history.PutEvent(stub, event)
	return submission, err
}

// AddCitation appends a citation to a verified submission and pays its bonus to the
// submitter. A publication already cited is a no-op.
func AddCitation(stub cached_stub.CachedStubInterface, caller data_model.Identity, submissionID string, publicationRef string) (data_model.Submission, error) {
	defer utils.ExitFnLogger(logger, utils.EnterFnLogger(logger))

	submission, found, err := GetSubmission(stub, submissionID)
	if err != nil {
		return submission, err
	}
	if !found {
		custom_err := &custom_errors.NotFoundError{Type: "Submission", ID: submissionID}
		logger.Errorf("%v", custom_err)
		return submission, errors.WithStack(custom_err)
	}
	if utils.IsStringEmpty(publicationRef) {
		return submission, invalid("publication_ref", "publication_ref is required")
	}
	citer, err := identity.GetDirectory(stub).HasRole(caller.ID, global.CITATION_ROLES...)
	if err != nil {
		return submission, err
	}
	if !citer {
		custom_err := &custom_errors.MissingRoleError{CallerID: caller.ID, Roles: global.CITATION_ROLES}
		logger.Errorf("%v", custom_err)
		return submission, errors.WithStack(custom_err)
	}
	if submission.Verification.State != data_model.VERIFICATION_VERIFIED {
		custom_err := &custom_errors.NotVerifiedError{SubmissionID: submissionID}
		logger.Errorf("%v", custom_err)
		return submission, errors.WithStack(custom_err)
	}
	for _, citation := range submission.Citations {
		if citation.PublicationRef == publicationRef {
			logger.Infof("%v already cites %v", publicationRef, submissionID)
			return submission, nil
		}
	}
	config, err := GetRewardConfig(stub)
	if err != nil {
		return submission, err
	}
	if len(submission.Citations) >= config.MaxCitations {
		custom_err := &custom_errors.TooManyCitationsError{SubmissionID: submissionID, Max: config.MaxCitations}
		logger.Errorf("%v", custom_err)
		return submission, errors.WithStack(custom_err)
	}
	payout, err := treasury.Pay(stub, treasury.CitationRef(submissionID, publicationRef), submission.SubmitterID, config.CitationBonus)
	if err != nil {
		return submission, err
	}

	submission.Citations = append(submission.Citations, data_model.Citation{
		PublicationRef: publicationRef,
		CitedBy:        caller.ID,
		AddedAt:        payout.PaidAt,
		BonusPaid:      payout.Amount,
	})
	submission.UpdatedAt = payout.PaidAt
	if err := putSubmission(stub, submission); err != nil {
		return submission, err
	}
	err = updateStats(stub, func(stats *data_model.SubmissionStats) {
		stats.Citations++
		stats.CitationsPaid += payout.Amount
	})
	if err != nil {
		return submission, err
	}
	data := map[string]string{"publication_ref": publicationRef}
	if _, err := history.PutEvent(stub, data_model.Event{Type: data_model.EVENT_CITATION_ADDED, ActorID: caller.ID, SubmissionID: submissionID, Data: data}); err != nil {
		return submission, err
	}
	_, err = history.PutEvent(stub, data_model.Event{Type: data_model.EVENT_CITATION_BONUS_PAID, ActorID: submission.SubmitterID, SubmissionID: submissionID, Amount: payout.Amount, Data: data})
	return submission, err
}

// ------------------------------------------------------
// ---------------------- MESSAGE HANDLERS --------------
// ------------------------------------------------------

// ReceiveConsentDecision applies the answer to a protocol consent check.
func ReceiveConsentDecision(stub cached_stub.CachedStubInterface, msg data_model.Message) error {
	_, err := messenger.Receive(stub, msg, func(stub cached_stub.CachedStubInterface, msg data_model.Message) error {
		payload := data_model.ConsentDecisionPayload{}
		if err := messenger.DecodePayload(msg, &payload); err != nil {
			return err
		}
		return OnProtocolConsentResponse(stub, msg.CorrelationID, payload.Decision)
	})
	return err
}

// OnProtocolConsentResponse settles the protocol consent of a submission. Answers for
// a check that is no longer pending are ignored.
func OnProtocolConsentResponse(stub cached_stub.CachedStubInterface, submissionID string, decision data_model.ConsentDecision) error {
	defer utils.ExitFnLogger(logger, utils.EnterFnLogger(logger))

	submission, found, err := GetSubmission(stub, submissionID)
	if err != nil {
		return err
	}
	if !found || submission.ProtocolConsent != data_model.PROTOCOL_CONSENT_PENDING {
		logger.Infof("ignoring protocol consent decision for %v", submissionID)
		return nil
	}
	if decision.Allowed {
		return settleProtocolCheck(stub, &submission, data_model.PROTOCOL_CONSENT_CONFIRMED, "")
	}
	return settleProtocolCheck(stub, &submission, data_model.PROTOCOL_CONSENT_REFUSED, decision.Reason)
}

// ReceiveProvenanceLogged applies a provenance_logged reply.
func ReceiveProvenanceLogged(stub cached_stub.CachedStubInterface, msg data_model.Message) error {
	_, err := messenger.Receive(stub, msg, func(stub cached_stub.CachedStubInterface, msg data_model.Message) error {
		payload := data_model.ProvenanceLoggedPayload{}
		if err := messenger.DecodePayload(msg, &payload); err != nil {
			return err
		}
		return OnProvenanceLogged(stub, msg.CorrelationID, payload)
	})
	return err
}

// OnProvenanceLogged links a submission to the provenance event of its record.
func OnProvenanceLogged(stub cached_stub.CachedStubInterface, submissionID string, logged data_model.ProvenanceLoggedPayload) error {
	submission, found, err := GetSubmission(stub, submissionID)
	if err != nil || !found {
		return err
	}
	if len(logged.Error) > 0 {
		logger.Warningf("provenance of %v not logged: %v", submissionID, logged.Error)
		return nil
	}
	if len(submission.ProvenanceHash) > 0 {
		return nil
	}
	submission.ProvenanceHash = logged.EventHash
	return putSubmission(stub, submission)
}

// OnDeliveryFailed handles a message of the registry the relay gave up on.
// An undelivered protocol check counts as one attempt and is sent again while the retry
// budget lasts; after that the protocol consent is timed_out. An undelivered provenance
// log request is sent again within the same budget.
func OnDeliveryFailed(stub cached_stub.CachedStubInterface, failure data_model.DeliveryFailure) error {
	defer utils.ExitFnLogger(logger, utils.EnterFnLogger(logger))

	msg := failure.Message
	submission, found, err := GetSubmission(stub, msg.CorrelationID)
	if err != nil || !found {
		return err
	}
	config, err := common.GetLedgerConfig(stub)
	if err != nil {
		return err
	}
	now, err := utils.GetTxTime(stub)
	if err != nil {
		return err
	}
	switch msg.Kind {
	case data_model.MSG_CONSENT_CHECK:
		if submission.ProtocolConsent != data_model.PROTOCOL_CONSENT_PENDING {
			return nil
		}
		return retryOrTimeout(stub, &submission, config.RetryBudget, now)
	case data_model.MSG_PROVENANCE_LOG:
		if len(submission.ProvenanceHash) > 0 {
			return nil
		}
		if submission.ProvenanceSent >= config.RetryBudget {
			logger.Errorf("giving up logging provenance of %v after %v sends", submission.SubmissionID, submission.ProvenanceSent)
			return nil
		}
		return sendProvenanceLog(stub, &submission)
	}
	return nil
}

// RetryProtocolChecks goes through the protocol checks unanswered for the configured
// timeout: each is sent again with the same correlation id while the retry budget
// lasts, otherwise the protocol consent becomes timed_out.
// It returns the number of checks re-sent and of checks timed out.
func RetryProtocolChecks(stub cached_stub.CachedStubInterface) (int, int, error) {
	defer utils.ExitFnLogger(logger, utils.EnterFnLogger(logger))

	config, err := common.GetLedgerConfig(stub)
	if err != nil {
		return 0, 0, err
	}
	now, err := utils.GetTxTime(stub)
	if err != nil {
		return 0, 0, err
	}
	rows, err := index.GetTable(stub, global.INDEX_SUBMISSION_PENDING_CHECK).GetRowsByPartialKey()
	if err != nil {
		return 0, 0, err
	}
	resent, timedOut := 0, 0
	for _, row := range rows {
		sentAt, err := utils.ParseSeq(row[0])
		if err != nil {
			return resent, timedOut, errors.Wrapf(err, "Bad send time %v", row[0])
		}
		if int64(sentAt)+config.ConsentTimeout > now {
			break
		}
		submission, found, err := GetSubmission(stub, row[1])
		if err != nil {
			return resent, timedOut, err
		}
		if !found || submission.ProtocolConsent != data_model.PROTOCOL_CONSENT_PENDING {
			continue
		}
		if err := retryOrTimeout(stub, &submission, config.RetryBudget, now); err != nil {
			return resent, timedOut, err
		}
		if submission.ProtocolConsent == data_model.PROTOCOL_CONSENT_PENDING {
			resent++
		} else {
			timedOut++
		}
	}
	return resent, timedOut, nil
}

// ------------------------------------------------------
// ---------------------- QUERIES -----------------------
// ------------------------------------------------------

// GetSubmission returns a submission.
func GetSubmission(stub cached_stub.CachedStubInterface, submissionID string) (data_model.Submission, bool, error) {
	submission := data_model.Submission{}
	key, err := common.CompositeKey(stub, global.SUBMISSION_PREFIX, submissionID)
	if err != nil {
		return submission, false, err
	}
	found, err := common.GetJSON(stub, key, &submission, "Submission")
	return submission, found, err
}

// GetSubmissionsBySubmitter returns every submission of submitterID.
func GetSubmissionsBySubmitter(stub cached_stub.CachedStubInterface, submitterID string) ([]data_model.Submission, error) {
	ids, err := index.GetTable(stub, global.INDEX_SUBMISSION_SUBMITTER).GetLastFieldByPartialKey(submitterID)
	if err != nil {
		return nil, err
	}
	submissions := []data_model.Submission{}
	for _, id := range ids {
		submission, found, err := GetSubmission(stub, id)
		if err != nil {
			return nil, err
		}
		if found {
			submissions = append(submissions, submission)
		}
	}
	return submissions, nil
}

// GetStats returns the registry counters.
func GetStats(stub cached_stub.CachedStubInterface) (data_model.SubmissionStats, error) {
	stats := data_model.SubmissionStats{}
	_, err := common.GetJSON(stub, global.SUBMISSION_STATS_KEY, &stats, "SubmissionStats")
	return stats, err
}

// ------------------------------------------------------
// ---------------------- HELPERS -----------------------
// ------------------------------------------------------

func sendProtocolCheck(stub cached_stub.CachedStubInterface, submission *data_model.Submission, now int64) error {
	config, err := common.GetLedgerConfig(stub)
	if err != nil {
		return err
	}
	table := index.GetTable(stub, global.INDEX_SUBMISSION_PENDING_CHECK)
	if submission.CheckSentAt > 0 {
		if err := table.DeleteRow(utils.PadSeq(uint64(submission.CheckSentAt)), submission.SubmissionID); err != nil {
			return err
		}
	}
	payload := data_model.ConsentCheckPayload{
		PolicyID:    submission.ProtocolPolicyID,
		RequesterID: submission.SubmitterID,
		Purpose:     protocolPurpose,
	}
	if _, err := messenger.Send(stub, config.ConsentLedger, data_model.MSG_CONSENT_CHECK, submission.SubmissionID, payload); err != nil {
		return err
	}
	submission.CheckAttempts++
	submission.CheckSentAt = now
	if err := table.PutRow(utils.PadSeq(uint64(now)), submission.SubmissionID); err != nil {
		return err
	}
	return putSubmission(stub, *submission)
}

func sendProvenanceLog(stub cached_stub.CachedStubInterface, submission *data_model.Submission) error {
	config, err := common.GetLedgerConfig(stub)
	if err != nil {
		return err
	}
	payload := data_model.ProvenanceLogPayload{
		RecordRef: submission.RecordRef,
		Activity:  data_model.ACTIVITY_DERIVATION,
		AgentID:   submission.SubmitterID,
		Purpose:   protocolPurpose,
		Reference: submission.SubmissionID,
	}
	if _, err := messenger.Send(stub, config.RecordLedger, data_model.MSG_PROVENANCE_LOG, submission.SubmissionID, payload); err != nil {
		return err
	}
	submission.ProvenanceSent++
	return putSubmission(stub, *submission)
}

func retryOrTimeout(stub cached_stub.CachedStubInterface, submission *data_model.Submission, budget int, now int64) error {
	if submission.CheckAttempts < budget {
		return sendProtocolCheck(stub, submission, now)
	}
	logger.Warningf("protocol check of %v timed out after %v attempts", submission.SubmissionID, submission.CheckAttempts)
	return settleProtocolCheck(stub, submission, data_model.PROTOCOL_CONSENT_TIMED_OUT, data_model.DENY_CONSENT_CHECK_TIMEOUT)
}

func settleProtocolCheck(stub cached_stub.CachedStubInterface, submission *data_model.Submission, state string, reason string) error {
	now, err := utils.GetTxTime(stub)
	if err != nil {
		return err
	}
	if err := index.GetTable(stub, global.INDEX_SUBMISSION_PENDING_CHECK).DeleteRow(utils.PadSeq(uint64(submission.CheckSentAt)), submission.SubmissionID); err != nil {
		return err
	}
	if state != data_model.PROTOCOL_CONSENT_CONFIRMED {
		if _, err := treasury.Release(stub, treasury.RewardRef(submission.SubmissionID)); err != nil {
			return err
		}
	}
	submission.ProtocolConsent = state
	submission.ConsentReason = reason
	submission.UpdatedAt = now
	logger.Infof("protocol consent of %v: %v %v", submission.SubmissionID, state, reason)
	return putSubmission(stub, *submission)
}

// checkEligible returns NotEligible unless the protocol consent of submission is
// confirmed and its provenance is logged.
func checkEligible(submission data_model.Submission) error {
	if submission.ProtocolConsent != data_model.PROTOCOL_CONSENT_CONFIRMED {
		custom_err := &custom_errors.NotEligibleError{SubmissionID: submission.SubmissionID, Reason: "protocol consent " + submission.ProtocolConsent}
		logger.Errorf("%v", custom_err)
		return errors.WithStack(custom_err)
	}
	if utils.IsStringEmpty(submission.ProvenanceHash) {
		custom_err := &custom_errors.NotEligibleError{SubmissionID: submission.SubmissionID, Reason: "provenance not logged"}
		logger.Errorf("%v", custom_err)
		return errors.WithStack(custom_err)
	}
	return nil
}

// getSubmitted returns a submission of caller.
func getSubmitted(stub cached_stub.CachedStubInterface, caller data_model.Identity, submissionID string) (data_model.Submission, error) {
	submission, found, err := GetSubmission(stub, submissionID)
	if err != nil {
		return submission, err
	}
	if !found {
		custom_err := &custom_errors.NotFoundError{Type: "Submission", ID: submissionID}
		logger.Errorf("%v", custom_err)
		return submission, errors.WithStack(custom_err)
	}
	if submission.SubmitterID != caller.ID {
		custom_err := &custom_errors.NotSubmitterError{SubmissionID: submissionID, CallerID: caller.ID}
		logger.Errorf("%v", custom_err)
		return submission, errors.WithStack(custom_err)
	}
	return submission, nil
}

func validateMetadata(metadata data_model.OutcomeMetadata) error {
	if !utils.InList(data_model.VALID_TRIAL_PHASES, metadata.TrialPhase) {
		return invalid("trial_phase", "unknown trial phase "+metadata.TrialPhase)
	}
	if utils.IsStringEmpty(metadata.DiseaseArea) {
		return invalid("disease_area", "disease_area is required")
	}
	if utils.IsStringEmpty(metadata.DiscontinuationReason) {
		return invalid("discontinuation_reason", "discontinuation_reason is required")
	}
	if len(metadata.PrimaryEndpoints) == 0 {
		return invalid("primary_endpoints", "at least one primary endpoint is required")
	}
	if metadata.SampleSize == 0 {
		return invalid("sample_size", "sample_size must be positive")
	}
	return nil
}

func putSubmission(stub cached_stub.CachedStubInterface, submission data_model.Submission) error {
	key, err := common.CompositeKey(stub, global.SUBMISSION_PREFIX, submission.SubmissionID)
	if err != nil {
		return err
	}
	return common.PutJSON(stub, key, submission, "Submission")
}

func updateStats(stub cached_stub.CachedStubInterface, update func(stats *data_model.SubmissionStats)) error {
	stats, err := GetStats(stub)
	if err != nil {
		return err
	}
	update(&stats)
	return common.PutJSON(stub, global.SUBMISSION_STATS_KEY, stats, "SubmissionStats")
}

func invalid(argument string, reason string) error {
	custom_err := &custom_errors.InvalidArgumentError{Argument: argument, Reason: reason}
	logger.Errorf("%v", custom_err)
	return errors.WithStack(custom_err)
}
