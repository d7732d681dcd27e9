/*******************************************************************************
 *
 *
 * (c) Copyright Merative US L.P. and others 2020-2022
 *
 * SPDX-Licence-Identifier: Apache 2.0
 *
 *******************************************************************************/

// Package submission_mgmt is the registry of negative and abandoned research outcomes.
//
// A submitter registers an outcome derived from a record. The registry confirms the
// protocol consent with the consent ledger and links the submission to the record's
// provenance trail through the record ledger. A verifier then approves or rejects it.
// The submitter of a verified, eligible submission claims its reward once; every
// citation pays a bonus once.
package submission_mgmt

import (
	"encoding/json"

	"github.com/choiwab/patient-x/pxchain/cached_stub"
	"github.com/choiwab/patient-x/pxchain/custom_errors"
	"github.com/choiwab/patient-x/pxchain/data_model"
	"github.com/choiwab/patient-x/pxchain/identity"
	"github.com/choiwab/patient-x/pxchain/internal/common/global"
	"github.com/choiwab/patient-x/pxchain/internal/submission_mgmt_i"
	"github.com/choiwab/patient-x/pxchain/utils"

	"github.com/hyperledger/fabric/core/chaincode/shim"
	"github.com/pkg/errors"
)

var logger = shim.NewLogger("submission_mgmt")

// ------------------------------------------------------
// ---------------------- INIT FUNCTIONS ----------------
// ------------------------------------------------------

// Init sets up the submission_mgmt package.
func Init(stub cached_stub.CachedStubInterface, logLevel ...shim.LoggingLevel) ([]byte, error) {
	if len(logLevel) > 0 {
		logger.SetLevel(logLevel[0])
	}
	defer utils.ExitFnLogger(logger, utils.EnterFnLogger(logger))
	return submission_mgmt_i.Init(stub, logLevel...)
}

// GetSubmissionID returns the id of the submission of recordRef by submitterID.
func GetSubmissionID(submitterID string, recordRef string) string {
	return submission_mgmt_i.GetSubmissionID(submitterID, recordRef)
}

// ComputeReward derives a reward from a reward schedule, outcome metadata and a
// citation count.
func ComputeReward(config data_model.RewardConfig, metadata data_model.OutcomeMetadata, citations int) data_model.RewardBreakdown {
	return submission_mgmt_i.ComputeReward(config, metadata, citations)
}

// Submit registers an outcome of the caller.
//
// args = [ submission ]
//
// submission is the JSON of a data_model.SubmissionInput. Returns the submission.
func Submit(stub cached_stub.CachedStubInterface, caller data_model.Identity, args []string) ([]byte, error) {
	defer utils.ExitFnLogger(logger, utils.EnterFnLogger(logger))
	logger.Debugf("callerID: %v", caller.ID)

	if len(args) != 1 {
		return nil, argsError("expected [submission]")
	}
	input := data_model.SubmissionInput{}
	if err := json.Unmarshal([]byte(args[0]), &input); err != nil {
		custom_err := &custom_errors.InvalidArgumentError{Argument: "submission", Reason: err.Error()}
		logger.Errorf("%v", custom_err)
		return nil, errors.WithStack(custom_err)
	}
	submission, err := SubmitWithParams(stub, caller, input)
	if err != nil {
		return nil, err
	}
	return json.Marshal(submission)
}

// SubmitWithParams registers an outcome of the caller.
func SubmitWithParams(stub cached_stub.CachedStubInterface, caller data_model.Identity, input data_model.SubmissionInput) (data_model.Submission, error) {
	return submission_mgmt_i.Submit(stub, caller, input)
}

// UpdateMetadata replaces the metadata of a pending submission of the caller.
//
// args = [ submissionID, metadata ]
func UpdateMetadata(stub cached_stub.CachedStubInterface, caller data_model.Identity, args []string) ([]byte, error) {
	defer utils.ExitFnLogger(logger, utils.EnterFnLogger(logger))

	if len(args) != 2 {
		return nil, argsError("expected [submissionID, metadata]")
	}
	metadata := data_model.OutcomeMetadata{}
	if err := json.Unmarshal([]byte(args[1]), &metadata); err != nil {
		custom_err := &custom_errors.InvalidArgumentError{Argument: "metadata", Reason: err.Error()}
		logger.Errorf("%v", custom_err)
		return nil, errors.WithStack(custom_err)
	}
	submission, err := submission_mgmt_i.UpdateMetadata(stub, caller, args[0], metadata)
	if err != nil {
		return nil, err
	}
	return json.Marshal(submission)
}

// Verify records the caller's decision on a submission.
//
// args = [ submissionID, decision ]
//
// decision is the JSON of a data_model.VerificationDecision.
func Verify(stub cached_stub.CachedStubInterface, caller data_model.Identity, args []string) ([]byte, error) {
	defer utils.ExitFnLogger(logger, utils.EnterFnLogger(logger))

	if len(args) != 2 {
		return nil, argsError("expected [submissionID, decision]")
	}
	decision := data_model.VerificationDecision{}
	if err := json.Unmarshal([]byte(args[1]), &decision); err != nil {
		custom_err := &custom_errors.InvalidArgumentError{Argument: "decision", Reason: err.Error()}
		logger.Errorf("%v", custom_err)
		return nil, errors.WithStack(custom_err)
	}
	submission, err := VerifyWithParams(stub, caller, args[0], decision)
	if err != nil {
		return nil, err
	}
	return json.Marshal(submission)
}

// VerifyWithParams records the caller's decision on a submission.
func VerifyWithParams(stub cached_stub.CachedStubInterface, caller data_model.Identity, submissionID string, decision data_model.VerificationDecision) (data_model.Submission, error) {
	return submission_mgmt_i.Verify(stub, caller, submissionID, decision)
}

// ClaimReward pays the reward of a verified submission to the caller, its submitter.
//
// args = [ submissionID ]
//
// Returns the data_model.RewardBreakdown of the amount paid.
func ClaimReward(stub cached_stub.CachedStubInterface, caller data_model.Identity, args []string) ([]byte, error) {
	defer utils.ExitFnLogger(logger, utils.EnterFnLogger(logger))

	if len(args) != 1 {
		return nil, argsError("expected [submissionID]")
	}
	breakdown, err := ClaimRewardWithParams(stub, caller, args[0])
	if err != nil {
		return nil, err
	}
	return json.Marshal(breakdown)
}

// ClaimRewardWithParams pays the reward of a verified submission to the caller.
func ClaimRewardWithParams(stub cached_stub.CachedStubInterface, caller data_model.Identity, submissionID string) (data_model.RewardBreakdown, error) {
	return submission_mgmt_i.ClaimReward(stub, caller, submissionID)
}

// AddCitation records a publication citing a submission and pays the citation bonus.
//
// args = [ submissionID, publicationRef ]
func AddCitation(stub cached_stub.CachedStubInterface, caller data_model.Identity, args []string) ([]byte, error) {
	defer utils.ExitFnLogger(logger, utils.EnterFnLogger(logger))

	if len(args) != 2 {
		return nil, argsError("expected [submissionID, publicationRef]")
	}
	submission, err := AddCitationWithParams(stub, caller, args[0], args[1])
	if err != nil {
		return nil, err
	}
	return json.Marshal(submission)
}

// AddCitationWithParams records a publication citing a submission.
func AddCitationWithParams(stub cached_stub.CachedStubInterface, caller data_model.Identity, submissionID string, publicationRef string) (data_model.Submission, error) {
	return submission_mgmt_i.AddCitation(stub, caller, submissionID, publicationRef)
}

// GetSubmission returns a submission.
//
// args = [ submissionID ]
func GetSubmission(stub cached_stub.CachedStubInterface, caller data_model.Identity, args []string) ([]byte, error) {
	if len(args) != 1 {
		return nil, argsError("expected [submissionID]")
	}
	submission, found, err := GetSubmissionWithParams(stub, args[0])
	if err != nil {
		return nil, err
	}
	if !found {
		custom_err := &custom_errors.NotFoundError{Type: "Submission", ID: args[0]}
		logger.Errorf("%v", custom_err)
		return nil, errors.WithStack(custom_err)
	}
	return json.Marshal(submission)
}

// GetSubmissionWithParams returns a submission.
func GetSubmissionWithParams(stub cached_stub.CachedStubInterface, submissionID string) (data_model.Submission, bool, error) {
	return submission_mgmt_i.GetSubmission(stub, submissionID)
}

// GetSubmissionsBySubmitter returns the submissions of a submitter; without args, the caller's.
//
// args = [ submitterID? ]
func GetSubmissionsBySubmitter(stub cached_stub.CachedStubInterface, caller data_model.Identity, args []string) ([]byte, error) {
	submitterID := caller.ID
	if len(args) > 0 && !utils.IsStringEmpty(args[0]) {
		submitterID = args[0]
	}
	submissions, err := submission_mgmt_i.GetSubmissionsBySubmitter(stub, submitterID)
	if err != nil {
		return nil, err
	}
	return json.Marshal(submissions)
}

// GetStats returns the registry counters.
//
// args = [ ]
func GetStats(stub cached_stub.CachedStubInterface, caller data_model.Identity, args []string) ([]byte, error) {
	stats, err := submission_mgmt_i.GetStats(stub)
	if err != nil {
		return nil, err
	}
	return json.Marshal(stats)
}

// GetRewardConfig returns the reward schedule.
//
// args = [ ]
func GetRewardConfig(stub cached_stub.CachedStubInterface, caller data_model.Identity, args []string) ([]byte, error) {
	config, err := submission_mgmt_i.GetRewardConfig(stub)
	if err != nil {
		return nil, err
	}
	return json.Marshal(config)
}

// SetRewardConfig replaces the reward schedule. Only the ledger admin can call it.
//
// args = [ config ]
//
// config is the JSON of a data_model.RewardConfig.
func SetRewardConfig(stub cached_stub.CachedStubInterface, caller data_model.Identity, args []string) ([]byte, error) {
	defer utils.ExitFnLogger(logger, utils.EnterFnLogger(logger))

	if len(args) != 1 {
		return nil, argsError("expected [config]")
	}
	config := data_model.RewardConfig{}
	if err := json.Unmarshal([]byte(args[0]), &config); err != nil {
		custom_err := &custom_errors.InvalidArgumentError{Argument: "config", Reason: err.Error()}
		logger.Errorf("%v", custom_err)
		return nil, errors.WithStack(custom_err)
	}
	return nil, SetRewardConfigWithParams(stub, caller, config)
}

// SetRewardConfigWithParams replaces the reward schedule.
func SetRewardConfigWithParams(stub cached_stub.CachedStubInterface, caller data_model.Identity, config data_model.RewardConfig) error {
	admin, err := identity.IsAdmin(stub, caller)
	if err != nil {
		return err
	}
	if !admin {
		custom_err := &custom_errors.MissingRoleError{CallerID: caller.ID, Roles: []string{global.ROLE_ADMIN}}
		logger.Errorf("%v", custom_err)
		return errors.WithStack(custom_err)
	}
	return submission_mgmt_i.SetRewardConfig(stub, config)
}

// RetryProtocolChecks re-sends or times out unanswered protocol consent checks.
// Returns {"resent": n, "timed_out": n}.
func RetryProtocolChecks(stub cached_stub.CachedStubInterface) ([]byte, error) {
	resent, timedOut, err := submission_mgmt_i.RetryProtocolChecks(stub)
	if err != nil {
		return nil, err
	}
	return json.Marshal(map[string]int{"resent": resent, "timed_out": timedOut})
}

// ReceiveConsentDecision applies the answer to a protocol consent check.
func ReceiveConsentDecision(stub cached_stub.CachedStubInterface, msg data_model.Message) error {
	return submission_mgmt_i.ReceiveConsentDecision(stub, msg)
}

// ReceiveProvenanceLogged applies a provenance_logged reply.
func ReceiveProvenanceLogged(stub cached_stub.CachedStubInterface, msg data_model.Message) error {
	return submission_mgmt_i.ReceiveProvenanceLogged(stub, msg)
}

// OnDeliveryFailed handles a message of the registry the relay gave up on.
func OnDeliveryFailed(stub cached_stub.CachedStubInterface, failure data_model.DeliveryFailure) error {
	return submission_mgmt_i.OnDeliveryFailed(stub, failure)
}

func argsError(reason string) error {
	custom_err := &custom_errors.InvalidArgumentError{Argument: "args", Reason: reason}
	logger.Errorf("%v", custom_err)
	return errors.WithStack(custom_err)
}
