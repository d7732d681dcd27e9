/*******************************************************************************
 *
 *
 * (c) Copyright Merative US L.P. and others 2020-2022
 *
 * SPDX-Licence-Identifier: Apache 2.0
 *
 *******************************************************************************/

// Package health_cc is the chaincode of the health ledger: the record catalog, the
// content store, provenance and the access gate.
//
// Functions (args after the caller id):
//   - RegisterRecord [recordJSON], RemoveRecord [recordRef], FetchRecord [recordRef]
//   - GetRecord [recordRef], GetRecordsByOwner [ownerID], GetRecordTrail [recordRef], VerifyTrail [recordRef]
//   - RequestAccess [recordRef, purposeJSON], CancelRequest [requestID]
//   - GetAccessRequest [requestID], GetAccessRequestsByRequester, CheckAccess [requesterID, recordRef]
//
// Messages accepted: consent_decision, policy_revoked, policy_expired, policy_renewed,
// provenance_log, provenance_logged. Tick re-sends or times out unanswered consent checks.
package health_cc

import (
	"github.com/choiwab/patient-x/pxchain/access_gate"
	"github.com/choiwab/patient-x/pxchain/cached_stub"
	"github.com/choiwab/patient-x/pxchain/chaincode"
	"github.com/choiwab/patient-x/pxchain/data_model"
	"github.com/choiwab/patient-x/pxchain/datastore"
	"github.com/choiwab/patient-x/pxchain/internal/common/global"
	"github.com/choiwab/patient-x/pxchain/provenance"
	"github.com/choiwab/patient-x/pxchain/record_mgmt"

	"github.com/hyperledger/fabric/core/chaincode/shim"
)

var logger = shim.NewLogger("health_cc")

// New returns the health chaincode.
func New() *chaincode.Router {
	// record removal revokes the grants of the record
	record_mgmt.SetAccessGate(access_gate.Gate{})

	return chaincode.NewRouter(global.LEDGER_HEALTH, initLedger).
		Function("RegisterRecord", record_mgmt.RegisterRecord).
		Function("RemoveRecord", record_mgmt.RemoveRecord).
		Function("FetchRecord", record_mgmt.FetchRecord).
		Function("GetRecord", record_mgmt.GetRecord).
		Function("GetRecordsByOwner", record_mgmt.GetRecordsByOwner).
		Function("GetRecordTrail", record_mgmt.GetRecordTrail).
		Function("VerifyTrail", provenance.VerifyTrail).
		Function("RequestAccess", access_gate.RequestAccess).
		Function("CancelRequest", access_gate.CancelRequest).
		Function("GetAccessRequest", access_gate.GetAccessRequest).
		Function("GetAccessRequestsByRequester", access_gate.GetAccessRequestsByRequester).
		Function("CheckAccess", access_gate.CheckAccess).
		Receiver(data_model.MSG_CONSENT_DECISION, access_gate.ReceiveConsentDecision).
		Receiver(data_model.MSG_POLICY_REVOKED, access_gate.ReceivePolicyStatus).
		Receiver(data_model.MSG_POLICY_EXPIRED, access_gate.ReceivePolicyStatus).
		Receiver(data_model.MSG_POLICY_RENEWED, access_gate.ReceivePolicyRenewed).
		Receiver(data_model.MSG_PROVENANCE_LOG, provenance.ReceiveProvenanceLog).
		Receiver(data_model.MSG_PROVENANCE_LOGGED, access_gate.ReceiveProvenanceLogged).
		OnDeliveryFailed(data_model.MSG_CONSENT_CHECK, access_gate.OnDeliveryFailed).
		OnDeliveryFailed(data_model.MSG_PROVENANCE_LOG, access_gate.OnDeliveryFailed).
		OnTick(access_gate.CheckTimeouts)
}

func initLedger(stub cached_stub.CachedStubInterface, config data_model.LedgerConfig, logLevel shim.LoggingLevel) error {
	logger.SetLevel(logLevel)
	logger.Infof("health ledger consent ledger: %v", config.ConsentLedger)
	inits := []func(cached_stub.CachedStubInterface, ...shim.LoggingLevel) ([]byte, error){
		datastore.Init,
		provenance.Init,
		record_mgmt.Init,
		access_gate.Init,
	}
	for _, initFn := range inits {
		if _, err := initFn(stub, logLevel); err != nil {
			return err
		}
	}
	return nil
}
