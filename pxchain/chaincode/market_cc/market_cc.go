/*******************************************************************************
 *
 *
 * (c) Copyright Merative US L.P. and others 2020-2022
 *
 * SPDX-Licence-Identifier: Apache 2.0
 *
 *******************************************************************************/

// Package market_cc is the chaincode of the market ledger: negative-data submissions
// and the reward treasury.
//
// Functions (args after the caller id):
//   - Submit [submissionJSON], UpdateMetadata [submissionID, metadataJSON]
//   - Verify [submissionID, decisionJSON], ClaimReward [submissionID], AddCitation [submissionID, publicationRef]
//   - GetSubmission [submissionID], GetSubmissionsBySubmitter [submitterID?], GetStats
//   - GetRewardConfig, SetRewardConfig [configJSON]
//   - Fund [amount], GetPool, GetBalance [accountID?], GetPayout [ref]
//
// Messages accepted: consent_decision, provenance_logged. Tick re-sends or times out
// unanswered protocol consent checks.
package market_cc

import (
	"github.com/choiwab/patient-x/pxchain/cached_stub"
	"github.com/choiwab/patient-x/pxchain/chaincode"
	"github.com/choiwab/patient-x/pxchain/data_model"
	"github.com/choiwab/patient-x/pxchain/internal/common/global"
	"github.com/choiwab/patient-x/pxchain/submission_mgmt"
	"github.com/choiwab/patient-x/pxchain/treasury"

	"github.com/hyperledger/fabric/core/chaincode/shim"
)

var logger = shim.NewLogger("market_cc")

// New returns the market chaincode.
func New() *chaincode.Router {
	return chaincode.NewRouter(global.LEDGER_MARKET, initLedger).
		Function("Submit", submission_mgmt.Submit).
		Function("UpdateMetadata", submission_mgmt.UpdateMetadata).
		Function("Verify", submission_mgmt.Verify).
		Function("ClaimReward", submission_mgmt.ClaimReward).
		Function("AddCitation", submission_mgmt.AddCitation).
		Function("GetSubmission", submission_mgmt.GetSubmission).
		Function("GetSubmissionsBySubmitter", submission_mgmt.GetSubmissionsBySubmitter).
		Function("GetStats", submission_mgmt.GetStats).
		Function("GetRewardConfig", submission_mgmt.GetRewardConfig).
		Function("SetRewardConfig", submission_mgmt.SetRewardConfig).
		Function("Fund", treasury.Fund).
		Function("GetPool", treasury.GetPool).
		Function("GetBalance", treasury.GetBalance).
		Function("GetPayout", treasury.GetPayout).
		Receiver(data_model.MSG_CONSENT_DECISION, submission_mgmt.ReceiveConsentDecision).
		Receiver(data_model.MSG_PROVENANCE_LOGGED, submission_mgmt.ReceiveProvenanceLogged).
		OnDeliveryFailed(data_model.MSG_CONSENT_CHECK, submission_mgmt.OnDeliveryFailed).
		OnDeliveryFailed(data_model.MSG_PROVENANCE_LOG, submission_mgmt.OnDeliveryFailed).
		OnTick(submission_mgmt.RetryProtocolChecks)
}

func initLedger(stub cached_stub.CachedStubInterface, config data_model.LedgerConfig, logLevel shim.LoggingLevel) error {
	logger.SetLevel(logLevel)
	logger.Infof("market ledger retry budget: %v", config.RetryBudget)
	if _, err := treasury.Init(stub, logLevel); err != nil {
		return err
	}
	_, err := submission_mgmt.Init(stub, logLevel)
	return err
}
