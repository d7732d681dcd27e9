/*******************************************************************************
 *
 *
 * (c) Copyright Merative US L.P. and others 2020-2022
 *
 * SPDX-Licence-Identifier: Apache 2.0
 *
 *******************************************************************************/

// Package consent_mgmt manages the consent policies of data subjects and evaluates
// proposed accesses against them.
//
// A policy is owned by the subject who created it and is never deleted: revocation and
// expiry are status transitions, and both are announced to the subscriber ledgers so
// that grants made under the policy are revoked there. Other ledgers ask for a decision
// by sending a consent_check message; the decision comes back as a consent_decision
// message with the same correlation id.
package consent_mgmt

import (
	"encoding/json"
	"strconv"

	"github.com/choiwab/patient-x/pxchain/cached_stub"
	"github.com/choiwab/patient-x/pxchain/custom_errors"
	"github.com/choiwab/patient-x/pxchain/data_model"
	"github.com/choiwab/patient-x/pxchain/internal/consent_mgmt_i"
	"github.com/choiwab/patient-x/pxchain/internal/consent_mgmt_i/consent_mgmt_c"
	"github.com/choiwab/patient-x/pxchain/utils"

	"github.com/hyperledger/fabric/core/chaincode/shim"
	"github.com/pkg/errors"
)

var logger = shim.NewLogger("consent_mgmt")

// ------------------------------------------------------
// ---------------------- INIT FUNCTIONS ----------------
// ------------------------------------------------------

// Init sets up the consent_mgmt package.
func Init(stub cached_stub.CachedStubInterface, logLevel ...shim.LoggingLevel) ([]byte, error) {
	if len(logLevel) > 0 {
		logger.SetLevel(logLevel[0])
	}
	defer utils.ExitFnLogger(logger, utils.EnterFnLogger(logger))
	return consent_mgmt_i.Init(stub, logLevel...)
}

// Evaluate decides whether requester may access data under policy for purpose at now.
// It is deterministic and has no side effects. See consent_mgmt_i.Evaluate for the order
// of the checks.
func Evaluate(policy data_model.ConsentPolicy, status data_model.ConsentStatus, requester data_model.Requester, purpose data_model.Purpose, now int64, categories ...string) data_model.ConsentDecision {
	return consent_mgmt_i.Evaluate(policy, status, requester, purpose, now, categories...)
}

// GetPolicyID returns the id of the policy ownerID creates with label.
func GetPolicyID(ownerID string, label string) string {
	return consent_mgmt_c.GetPolicyID(ownerID, label)
}

// GrantConsent creates a policy owned by the caller.
//
// args = [ policy ]
//
// policy is the JSON of a data_model.ConsentPolicy; PolicyID, CreatedAt and UpdatedAt
// are set by the ledger. Returns the stored policy.
func GrantConsent(stub cached_stub.CachedStubInterface, caller data_model.Identity, args []string) ([]byte, error) {
	defer utils.ExitFnLogger(logger, utils.EnterFnLogger(logger))
	logger.Debugf("callerID: %v, args: %v", caller.ID, args)

	if len(args) != 1 {
		return nil, argsError("expected [policy]")
	}
	policy := data_model.ConsentPolicy{}
	if err := json.Unmarshal([]byte(args[0]), &policy); err != nil {
		custom_err := &custom_errors.InvalidArgumentError{Argument: "policy", Reason: err.Error()}
		logger.Errorf("%v", custom_err)
		return nil, errors.WithStack(custom_err)
	}
	policy, err := GrantConsentWithParams(stub, caller, policy)
	if err != nil {
		return nil, err
	}
	return json.Marshal(policy)
}

// GrantConsentWithParams creates a policy owned by the caller.
// "WithParams" functions should only be called from within the chaincode.
func GrantConsentWithParams(stub cached_stub.CachedStubInterface, caller data_model.Identity, policy data_model.ConsentPolicy) (data_model.ConsentPolicy, error) {
	defer utils.ExitFnLogger(logger, utils.EnterFnLogger(logger))
	return consent_mgmt_i.GrantConsent(stub, caller, policy)
}

// RevokeConsent revokes an active policy of the caller.
//
// args = [ policyID, reason ]
//
// reason is optional.
func RevokeConsent(stub cached_stub.CachedStubInterface, caller data_model.Identity, args []string) ([]byte, error) {
	defer utils.ExitFnLogger(logger, utils.EnterFnLogger(logger))
	logger.Debugf("callerID: %v, args: %v", caller.ID, args)

	if len(args) < 1 || len(args) > 2 {
		return nil, argsError("expected [policyID, reason]")
	}
	reason := ""
	if len(args) == 2 {
		reason = args[1]
	}
	status, err := RevokeConsentWithParams(stub, caller, args[0], reason)
	if err != nil {
		return nil, err
	}
	return json.Marshal(status)
}

// RevokeConsentWithParams revokes an active policy of the caller.
func RevokeConsentWithParams(stub cached_stub.CachedStubInterface, caller data_model.Identity, policyID string, reason string) (data_model.ConsentStatus, error) {
	defer utils.ExitFnLogger(logger, utils.EnterFnLogger(logger))
	return consent_mgmt_i.RevokeConsent(stub, caller, policyID, reason)
}

// UpdateConsent changes the compensation preference and jurisdictions of an active policy.
//
// args = [ policyID, compensation, jurisdictions ]
//
// compensation is the JSON of a data_model.Compensation and jurisdictions a JSON list.
func UpdateConsent(stub cached_stub.CachedStubInterface, caller data_model.Identity, args []string) ([]byte, error) {
	defer utils.ExitFnLogger(logger, utils.EnterFnLogger(logger))
	logger.Debugf("callerID: %v, args: %v", caller.ID, args)

	if len(args) != 3 {
		return nil, argsError("expected [policyID, compensation, jurisdictions]")
	}
	compensation := data_model.Compensation{}
	if err := json.Unmarshal([]byte(args[1]), &compensation); err != nil {
		custom_err := &custom_errors.InvalidArgumentError{Argument: "compensation", Reason: err.Error()}
		logger.Errorf("%v", custom_err)
		return nil, errors.WithStack(custom_err)
	}
	jurisdictions := []string{}
	if err := json.Unmarshal([]byte(args[2]), &jurisdictions); err != nil {
		custom_err := &custom_errors.InvalidArgumentError{Argument: "jurisdictions", Reason: err.Error()}
		logger.Errorf("%v", custom_err)
		return nil, errors.WithStack(custom_err)
	}
	policy, err := consent_mgmt_i.UpdateConsent(stub, caller, args[0], compensation, jurisdictions)
	if err != nil {
		return nil, err
	}
	return json.Marshal(policy)
}

// GetPolicy returns a policy and its status.
//
// args = [ policyID ]
func GetPolicy(stub cached_stub.CachedStubInterface, caller data_model.Identity, args []string) ([]byte, error) {
	defer utils.ExitFnLogger(logger, utils.EnterFnLogger(logger))

	if len(args) != 1 {
		return nil, argsError("expected [policyID]")
	}
	view, found, err := GetPolicyWithParams(stub, args[0])
	if err != nil {
		return nil, err
	}
	if !found {
		custom_err := &custom_errors.NotFoundError{Type: "ConsentPolicy", ID: args[0]}
		logger.Errorf("%v", custom_err)
		return nil, errors.WithStack(custom_err)
	}
	return json.Marshal(view)
}

// GetPolicyWithParams returns a policy and its status.
func GetPolicyWithParams(stub cached_stub.CachedStubInterface, policyID string) (data_model.PolicyView, bool, error) {
	return consent_mgmt_i.GetPolicy(stub, policyID)
}

// GetPoliciesByOwner returns every policy of an owner.
//
// args = [ ownerID ]
func GetPoliciesByOwner(stub cached_stub.CachedStubInterface, caller data_model.Identity, args []string) ([]byte, error) {
	defer utils.ExitFnLogger(logger, utils.EnterFnLogger(logger))

	if len(args) != 1 {
		return nil, argsError("expected [ownerID]")
	}
	views, err := consent_mgmt_i.GetPoliciesByOwner(stub, args[0])
	if err != nil {
		return nil, err
	}
	return json.Marshal(views)
}

// CheckConsent evaluates a policy for a requester at the transaction time.
//
// args = [ policyID, requesterID, purpose, categories ]
//
// purpose is the JSON of a data_model.Purpose; categories is an optional JSON list.
func CheckConsent(stub cached_stub.CachedStubInterface, caller data_model.Identity, args []string) ([]byte, error) {
	defer utils.ExitFnLogger(logger, utils.EnterFnLogger(logger))

	if len(args) < 3 || len(args) > 4 {
		return nil, argsError("expected [policyID, requesterID, purpose, categories]")
	}
	purpose := data_model.Purpose{}
	if err := json.Unmarshal([]byte(args[2]), &purpose); err != nil {
		custom_err := &custom_errors.InvalidArgumentError{Argument: "purpose", Reason: err.Error()}
		logger.Errorf("%v", custom_err)
		return nil, errors.WithStack(custom_err)
	}
	categories := []string{}
	if len(args) == 4 && len(args[3]) > 0 {
		if err := json.Unmarshal([]byte(args[3]), &categories); err != nil {
			custom_err := &custom_errors.InvalidArgumentError{Argument: "categories", Reason: err.Error()}
			logger.Errorf("%v", custom_err)
			return nil, errors.WithStack(custom_err)
		}
	}
	decision, err := CheckConsentWithParams(stub, args[0], args[1], purpose, categories)
	if err != nil {
		return nil, err
	}
	return json.Marshal(decision)
}

// CheckConsentWithParams evaluates a policy for a requester at the transaction time.
func CheckConsentWithParams(stub cached_stub.CachedStubInterface, policyID string, requesterID string, purpose data_model.Purpose, categories []string) (data_model.ConsentDecision, error) {
	defer utils.ExitFnLogger(logger, utils.EnterFnLogger(logger))
	return consent_mgmt_i.CheckConsent(stub, policyID, requesterID, purpose, categories)
}

// ExpirePolicies expires or renews the active policies whose window has ended and
// returns the number expired.
func ExpirePolicies(stub cached_stub.CachedStubInterface, caller data_model.Identity, args []string) ([]byte, error) {
	defer utils.ExitFnLogger(logger, utils.EnterFnLogger(logger))
	count, err := consent_mgmt_i.ExpirePolicies(stub)
	if err != nil {
		return nil, err
	}
	return []byte(strconv.Itoa(count)), nil
}

// Tick runs the periodic work of the consent ledger: policy expiry and re-sending of
// undelivered status notices.
func Tick(stub cached_stub.CachedStubInterface) error {
	defer utils.ExitFnLogger(logger, utils.EnterFnLogger(logger))
	if _, err := consent_mgmt_i.ExpirePolicies(stub); err != nil {
		return err
	}
	_, err := consent_mgmt_i.ResendNotices(stub)
	return err
}

// ReceiveConsentCheck is the consent_check message handler.
func ReceiveConsentCheck(stub cached_stub.CachedStubInterface, msg data_model.Message) error {
	return consent_mgmt_i.ReceiveConsentCheck(stub, msg)
}

// OnDeliveryFailed handles a message of the consent ledger the relay could not deliver.
func OnDeliveryFailed(stub cached_stub.CachedStubInterface, failure data_model.DeliveryFailure) error {
	return consent_mgmt_i.OnDeliveryFailed(stub, failure)
}

func argsError(reason string) error {
	custom_err := &custom_errors.InvalidArgumentError{Argument: "args", Reason: reason}
	logger.Errorf("%v", custom_err)
	return errors.WithStack(custom_err)
}
