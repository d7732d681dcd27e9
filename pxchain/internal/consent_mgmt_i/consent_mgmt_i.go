/*******************************************************************************
 *
 *
 * (c) Copyright Merative US L.P. and others 2020-2022
 *
 * SPDX-Licence-Identifier: Apache 2.0
 *
 *******************************************************************************/

// Package consent_mgmt_i is the policy store and consent evaluator of the consent ledger.
package consent_mgmt_i

import (
	"encoding/json"
	"strconv"

	"github.com/choiwab/patient-x/pxchain/cached_stub"
	"github.com/choiwab/patient-x/pxchain/custom_errors"
	"github.com/choiwab/patient-x/pxchain/data_model"
	"github.com/choiwab/patient-x/pxchain/history"
	"github.com/choiwab/patient-x/pxchain/identity"
	"github.com/choiwab/patient-x/pxchain/index"
	"github.com/choiwab/patient-x/pxchain/internal/common"
	"github.com/choiwab/patient-x/pxchain/internal/common/global"
	"github.com/choiwab/patient-x/pxchain/internal/consent_mgmt_i/consent_mgmt_c"
	"github.com/choiwab/patient-x/pxchain/messenger"
	"github.com/choiwab/patient-x/pxchain/utils"

	"github.com/hyperledger/fabric/core/chaincode/shim"
	"github.com/pkg/errors"
)

var logger = shim.NewLogger("consent_mgmt_i")

var purposeKinds = []string{
	data_model.PURPOSE_RESEARCH_GENERAL,
	data_model.PURPOSE_RESEARCH_SPECIFIC_STUDY,
	data_model.PURPOSE_COMMERCIAL,
	data_model.PURPOSE_PUBLIC_HEALTH,
	data_model.PURPOSE_CUSTOM,
}

var dataCategories = []string{
	data_model.DATA_DEMOGRAPHICS,
	data_model.DATA_DIAGNOSTICS,
	data_model.DATA_GENOMICS,
	data_model.DATA_IMAGING,
	data_model.DATA_LAB_RESULTS,
	data_model.DATA_MEDICATIONS,
	data_model.DATA_PROCEDURES,
	data_model.DATA_VITALS,
	data_model.DATA_CUSTOM,
}

var compensationKinds = []string{
	data_model.COMPENSATION_FREE,
	data_model.COMPENSATION_FIXED_PRICE,
	data_model.COMPENSATION_PERCENTAGE,
	data_model.COMPENSATION_NEGOTIABLE,
}

// redelivery tracks a status notice the relay could not deliver to a subscriber.
type redelivery struct {
	Subscriber string                         `json:"subscriber"`
	Kind       string                         `json:"kind"`
	Payload    data_model.PolicyStatusPayload `json:"payload"`
	Resends    int                            `json:"resends"`
	Pending    bool                           `json:"pending"`
}

// ------------------------------------------------------
// ---------------------- INIT FUNCTIONS ----------------
// ------------------------------------------------------

// Init sets up the consent_mgmt package.
func Init(stub cached_stub.CachedStubInterface, logLevel ...shim.LoggingLevel) ([]byte, error) {
	if len(logLevel) > 0 {
		logger.SetLevel(logLevel[0])
	}
	logger.Debug("Init consent_mgmt")
	return nil, nil
}

// ------------------------------------------------------
// ---------------------- POLICY STORE ------------------
// ------------------------------------------------------

// GrantConsent stores a new active policy owned by caller.
// Start defaults to the transaction time.
func GrantConsent(stub cached_stub.CachedStubInterface, caller data_model.Identity, policy data_model.ConsentPolicy) (data_model.ConsentPolicy, error) {
	defer utils.ExitFnLogger(logger, utils.EnterFnLogger(logger))
	logger.Debugf("caller: %v label: %v", caller.ID, policy.Label)

	if utils.IsStringEmpty(policy.OwnerID) {
		policy.OwnerID = caller.ID
	}
	if policy.OwnerID != caller.ID {
		custom_err := &custom_errors.NotOwnerError{Type: "ConsentPolicy", ID: policy.Label, CallerID: caller.ID}
		logger.Errorf("%v", custom_err)
		return policy, errors.WithStack(custom_err)
	}

	now, err := utils.GetTxTime(stub)
	if err != nil {
		return policy, err
	}
	if policy.Window.Start == 0 {
		policy.Window.Start = now
	}
	if policy.Compensation.Kind == "" {
		policy.Compensation.Kind = data_model.COMPENSATION_FREE
	}
	policy.DataCategories = utils.GetSetFromList(policy.DataCategories)
	policy.Jurisdictions = utils.GetSetFromList(policy.Jurisdictions)
	if err := validatePolicy(policy); err != nil {
		return policy, err
	}

	policy.PolicyID = consent_mgmt_c.GetPolicyID(policy.OwnerID, policy.Label)
	_, exists, err := getPolicy(stub, policy.PolicyID)
	if err != nil {
		return policy, err
	}
	if exists {
		custom_err := &custom_errors.DuplicatePolicyError{PolicyID: policy.PolicyID}
		logger.Errorf("%v", custom_err)
		return policy, errors.WithStack(custom_err)
	}

	policy.CreatedAt = now
	policy.UpdatedAt = now
	if err := putPolicy(stub, policy); err != nil {
		return policy, err
	}
	status := data_model.ConsentStatus{PolicyID: policy.PolicyID, State: data_model.CONSENT_ACTIVE, At: now}
	if err := putStatus(stub, status); err != nil {
		return policy, err
	}
	if err := index.GetTable(stub, global.INDEX_CONSENT_OWNER).PutRow(policy.OwnerID, policy.PolicyID); err != nil {
		return policy, err
	}
	if err := putActiveRow(stub, policy); err != nil {
		return policy, err
	}
	_, err = history.PutEvent(stub, data_model.Event{
		Type:     data_model.EVENT_POLICY_GRANTED,
		ActorID:  caller.ID,
		PolicyID: policy.PolicyID,
		Data:     map[string]string{"purpose": policy.Purpose.Kind},
	})
	return policy, err
}

func validatePolicy(policy data_model.ConsentPolicy) error {
	invalid := func(argument string, reason string) error {
		custom_err := &custom_errors.InvalidArgumentError{Argument: argument, Reason: reason}
		logger.Errorf("%v", custom_err)
		return errors.WithStack(custom_err)
	}
	if utils.IsStringEmpty(policy.Label) {
		return invalid("label", "label is required")
	}
	if !utils.InList(purposeKinds, policy.Purpose.Kind) {
		return invalid("purpose", "unknown purpose "+policy.Purpose.Kind)
	}
	if policy.Purpose.Kind == data_model.PURPOSE_CUSTOM && utils.IsStringEmpty(policy.Purpose.Detail) {
		return invalid("purpose", "custom purpose needs a detail")
	}
	if policy.Window.End != 0 && policy.Window.End <= policy.Window.Start {
		return invalid("window", "end must be after start")
	}
	if policy.Window.AutoRenew && policy.Window.End == 0 {
		return invalid("window", "auto renewal needs an end")
	}
	if len(policy.DataCategories) == 0 {
		return invalid("data_categories", "at least one data category is required")
	}
	for _, category := range policy.DataCategories {
		if !utils.InList(dataCategories, category) {
			return invalid("data_categories", "unknown data category "+category)
		}
	}
	switch policy.Parties.Kind {
	case data_model.PARTIES_UNRESTRICTED:
	case data_model.PARTIES_EXPLICIT:
		if len(policy.Parties.Accounts) == 0 {
			return invalid("parties", "explicit party rule needs accounts")
		}
	case data_model.PARTIES_CATEGORY:
		if len(policy.Parties.Categories) == 0 {
			return invalid("parties", "category party rule needs categories")
		}
	default:
		return invalid("parties", "unknown party rule "+policy.Parties.Kind)
	}
	return validateCompensation(policy.Compensation)
}

func validateCompensation(compensation data_model.Compensation) error {
	if !utils.InList(compensationKinds, compensation.Kind) {
		custom_err := &custom_errors.InvalidArgumentError{Argument: "compensation", Reason: "unknown compensation " + compensation.Kind}
		logger.Errorf("%v", custom_err)
		return errors.WithStack(custom_err)
	}
	if compensation.Kind == data_model.COMPENSATION_PERCENTAGE && compensation.Percent > 100 {
		custom_err := &custom_errors.InvalidArgumentError{Argument: "compensation", Reason: "percent must be at most 100"}
		logger.Errorf("%v", custom_err)
		return errors.WithStack(custom_err)
	}
	return nil
}

// RevokeConsent moves an active policy owned by caller to revoked and notifies the
// subscriber ledgers.
func RevokeConsent(stub cached_stub.CachedStubInterface, caller data_model.Identity, policyID string, reason string) (data_model.ConsentStatus, error) {
	defer utils.ExitFnLogger(logger, utils.EnterFnLogger(logger))
	logger.Debugf("caller: %v policy: %v", caller.ID, policyID)

	policy, status, err := getOwnedActivePolicy(stub, caller, policyID)
	if err != nil {
		return status, err
	}
	now, err := utils.GetTxTime(stub)
	if err != nil {
		return status, err
	}
	if utils.IsStringEmpty(reason) {
		reason = "revoked by owner"
	}
	status = data_model.ConsentStatus{PolicyID: policyID, State: data_model.CONSENT_REVOKED, At: now, Reason: reason}
	if err := leaveActive(stub, policy, status); err != nil {
		return status, err
	}
	_, err = history.PutEvent(stub, data_model.Event{
		Type:     data_model.EVENT_POLICY_REVOKED,
		ActorID:  caller.ID,
		PolicyID: policyID,
		Reason:   reason,
	})
	if err != nil {
		return status, err
	}
	return status, notifySubscribers(stub, data_model.MSG_POLICY_REVOKED, policy, status)
}

// UpdateConsent replaces the compensation preference and permitted jurisdictions of an
// active policy. Purpose, parties and window cannot change; a new policy is needed.
func UpdateConsent(stub cached_stub.CachedStubInterface, caller data_model.Identity, policyID string, compensation data_model.Compensation, jurisdictions []string) (data_model.ConsentPolicy, error) {
	defer utils.ExitFnLogger(logger, utils.EnterFnLogger(logger))

	policy, _, err := getOwnedActivePolicy(stub, caller, policyID)
	if err != nil {
		return policy, err
	}
	if err := validateCompensation(compensation); err != nil {
		return policy, err
	}
	policy.Compensation = compensation
	policy.Jurisdictions = utils.GetSetFromList(jurisdictions)
	policy.UpdatedAt, err = utils.GetTxTime(stub)
	if err != nil {
		return policy, err
	}
	if err := putPolicy(stub, policy); err != nil {
		return policy, err
	}
	_, err = history.PutEvent(stub, data_model.Event{Type: data_model.EVENT_POLICY_UPDATED, ActorID: caller.ID, PolicyID: policyID})
	return policy, err
}

func getOwnedActivePolicy(stub cached_stub.CachedStubInterface, caller data_model.Identity, policyID string) (data_model.ConsentPolicy, data_model.ConsentStatus, error) {
	view, found, err := GetPolicy(stub, policyID)
	if err != nil {
		return view.Policy, view.Status, err
	}
	if !found {
		custom_err := &custom_errors.NotFoundError{Type: "ConsentPolicy", ID: policyID}
		logger.Errorf("%v", custom_err)
		return view.Policy, view.Status, errors.WithStack(custom_err)
	}
	if view.Policy.OwnerID != caller.ID {
		custom_err := &custom_errors.NotOwnerError{Type: "ConsentPolicy", ID: policyID, CallerID: caller.ID}
		logger.Errorf("%v", custom_err)
		return view.Policy, view.Status, errors.WithStack(custom_err)
	}
	if !view.Status.IsActive() {
		custom_err := &custom_errors.PolicyNotActiveError{PolicyID: policyID, State: view.Status.State}
		logger.Errorf("%v", custom_err)
		return view.Policy, view.Status, errors.WithStack(custom_err)
	}
	return view.Policy, view.Status, nil
}

// GetPolicy returns a policy and its status.
func GetPolicy(stub cached_stub.CachedStubInterface, policyID string) (data_model.PolicyView, bool, error) {
	view := data_model.PolicyView{}
	policy, found, err := getPolicy(stub, policyID)
	if err != nil || !found {
		return view, found, err
	}
	view.Policy = policy
	view.Status, err = getStatus(stub, policyID)
	return view, true, err
}

// GetPoliciesByOwner returns every policy of ownerID, whatever its status.
func GetPoliciesByOwner(stub cached_stub.CachedStubInterface, ownerID string) ([]data_model.PolicyView, error) {
	defer utils.ExitFnLogger(logger, utils.EnterFnLogger(logger))

	policyIDs, err := index.GetTable(stub, global.INDEX_CONSENT_OWNER).GetLastFieldByPartialKey(ownerID)
	if err != nil {
		return nil, err
	}
	views := []data_model.PolicyView{}
	for _, policyID := range policyIDs {
		view, found, err := GetPolicy(stub, policyID)
		if err != nil {
			return nil, err
		}
		if found {
			views = append(views, view)
		}
	}
	return views, nil
}

// ExpirePolicies handles every active policy whose window ended before the transaction
// time: auto-renewing policies get a new window of the same length, the others expire
// and the subscriber ledgers are notified. It returns the number of expired policies.
func ExpirePolicies(stub cached_stub.CachedStubInterface) (int, error) {
	defer utils.ExitFnLogger(logger, utils.EnterFnLogger(logger))

	now, err := utils.GetTxTime(stub)
	if err != nil {
		return 0, err
	}
	rows, err := index.GetTable(stub, global.INDEX_CONSENT_ACTIVE).GetRowsByPartialKey()
	if err != nil {
		return 0, err
	}
	expired := 0
	for _, row := range rows {
		end, err := utils.ParseSeq(row[0])
		if err != nil {
			return expired, errors.Wrapf(err, "Bad policy end %v", row[0])
		}
		// rows are sorted by end
		if int64(end) >= now {
			break
		}
		view, found, err := GetPolicy(stub, row[1])
		if err != nil {
			return expired, err
		}
		if !found || !view.Status.IsActive() {
			continue
		}
		renewed, err := renewIfDue(stub, &view.Policy, view.Status, now)
		if err != nil {
			return expired, err
		}
		if renewed {
			continue
		}
		status := data_model.ConsentStatus{PolicyID: view.Policy.PolicyID, State: data_model.CONSENT_EXPIRED, At: now, Reason: "window ended"}
		if err := leaveActive(stub, view.Policy, status); err != nil {
			return expired, err
		}
		_, err = history.PutEvent(stub, data_model.Event{Type: data_model.EVENT_POLICY_EXPIRED, PolicyID: view.Policy.PolicyID, Reason: status.Reason})
		if err != nil {
			return expired, err
		}
		if err := notifySubscribers(stub, data_model.MSG_POLICY_EXPIRED, view.Policy, status); err != nil {
			return expired, err
		}
		expired++
	}
	return expired, nil
}

// renewIfDue moves the window of an active auto-renewing policy forward until it
// contains now. It returns true if the policy renews.
func renewIfDue(stub cached_stub.CachedStubInterface, policy *data_model.ConsentPolicy, status data_model.ConsentStatus, now int64) (bool, error) {
	window := policy.Window
	if !status.IsActive() || !window.AutoRenew || window.End == 0 || now <= window.End {
		return false, nil
	}
	if err := index.GetTable(stub, global.INDEX_CONSENT_ACTIVE).DeleteRow(utils.PadSeq(uint64(window.End)), policy.PolicyID); err != nil {
		return false, err
	}
	length := window.End - window.Start
	for window.End < now {
		window.Start = window.End
		window.End += length
	}
	policy.Window = window
	policy.UpdatedAt = now
	if err := putPolicy(stub, *policy); err != nil {
		return false, err
	}
	if err := putActiveRow(stub, *policy); err != nil {
		return false, err
	}
	_, err := history.PutEvent(stub, data_model.Event{
		Type:     data_model.EVENT_POLICY_RENEWED,
		PolicyID: policy.PolicyID,
		Data:     map[string]string{"end": strconv.FormatInt(window.End, 10)},
	})
	if err != nil {
		return false, err
	}
	logger.Infof("policy %v renewed until %v", policy.PolicyID, utils.TimestampToDateString(window.End))
	return true, notifyRenewed(stub, *policy, now)
}

// notifyRenewed tells every subscriber the new end of the window of policy. Each
// renewal has its own correlation id, so a later renewal is not taken for a duplicate.
func notifyRenewed(stub cached_stub.CachedStubInterface, policy data_model.ConsentPolicy, now int64) error {
	config, err := common.GetLedgerConfig(stub)
	if err != nil {
		return err
	}
	payload := data_model.PolicyStatusPayload{PolicyID: policy.PolicyID, OwnerID: policy.OwnerID, State: data_model.CONSENT_ACTIVE, At: now, Until: policy.Window.End}
	correlationID := policy.PolicyID + "@" + strconv.FormatInt(policy.Window.End, 10)
	for _, subscriber := range config.Subscribers {
		if _, err := messenger.Send(stub, subscriber, data_model.MSG_POLICY_RENEWED, correlationID, payload); err != nil {
			return err
		}
	}
	return nil
}

func leaveActive(stub cached_stub.CachedStubInterface, policy data_model.ConsentPolicy, status data_model.ConsentStatus) error {
	if err := putStatus(stub, status); err != nil {
		return err
	}
	if policy.Window.End == 0 {
		return nil
	}
	return index.GetTable(stub, global.INDEX_CONSENT_ACTIVE).DeleteRow(utils.PadSeq(uint64(policy.Window.End)), policy.PolicyID)
}

// ------------------------------------------------------
// ---------------------- EVALUATION --------------------
// ------------------------------------------------------

// CheckConsent evaluates policyID for requesterID at the transaction time. Requester
// attributes come from the identity directory; an unknown requester has none.
// An unknown policy is denied with PolicyNotFound.
func CheckConsent(stub cached_stub.CachedStubInterface, policyID string, requesterID string, purpose data_model.Purpose, categories []string) (data_model.ConsentDecision, error) {
	defer utils.ExitFnLogger(logger, utils.EnterFnLogger(logger))

	now, err := utils.GetTxTime(stub)
	if err != nil {
		return data_model.ConsentDecision{}, err
	}
	decision := data_model.Deny(policyID, data_model.DENY_POLICY_NOT_FOUND, now)
	view, found, err := GetPolicy(stub, policyID)
	if err != nil {
		return decision, err
	}
	if found {
		if _, err := renewIfDue(stub, &view.Policy, view.Status, now); err != nil {
			return decision, err
		}
		requester := data_model.Requester{ID: requesterID}
		account, known, err := identity.GetDirectory(stub).GetIdentity(requesterID)
		if err != nil {
			return decision, err
		}
		if known {
			requester = account.ToRequester()
		}
		decision = Evaluate(view.Policy, view.Status, requester, purpose, now, categories...)
	}
	logger.Infof("consent check %v for %v: allowed=%v %v", policyID, requesterID, decision.Allowed, decision.Reason)
	_, err = history.PutEvent(stub, data_model.Event{
		Type:     data_model.EVENT_CONSENT_CHECKED,
		ActorID:  requesterID,
		PolicyID: policyID,
		Reason:   decision.Reason,
		Data:     map[string]string{"allowed": strconv.FormatBool(decision.Allowed)},
	})
	return decision, err
}

// ReceiveConsentCheck answers a consent_check message with a consent_decision message
// carrying the same correlation id. A check that was already answered is answered again
// with the original decision, so a requester that retried after a lost reply still
// gets one; the requesting ledger ignores the copy if it already has the decision.
func ReceiveConsentCheck(stub cached_stub.CachedStubInterface, msg data_model.Message) error {
	defer utils.ExitFnLogger(logger, utils.EnterFnLogger(logger))

	applied, err := messenger.Receive(stub, msg, handleConsentCheck)
	if err != nil || applied {
		return err
	}
	decision := data_model.ConsentDecision{}
	found, err := getCheckResult(stub, msg, &decision)
	if err != nil || !found {
		return err
	}
	logger.Infof("re-sending decision for %v", msg.CorrelationID)
	_, err = messenger.Send(stub, msg.From, data_model.MSG_CONSENT_DECISION, msg.CorrelationID, data_model.ConsentDecisionPayload{Decision: decision})
	return err
}

func handleConsentCheck(stub cached_stub.CachedStubInterface, msg data_model.Message) error {
	payload := data_model.ConsentCheckPayload{}
	if err := messenger.DecodePayload(msg, &payload); err != nil {
		return err
	}
	decision, err := CheckConsent(stub, payload.PolicyID, payload.RequesterID, payload.Purpose, payload.Categories)
	if err != nil {
		return err
	}
	key, err := common.CompositeKey(stub, global.CONSENT_CHECK_RESULT_PREFIX, msg.From, msg.CorrelationID)
	if err != nil {
		return err
	}
	if err := common.PutJSON(stub, key, decision, "ConsentDecision"); err != nil {
		return err
	}
	_, err = messenger.Send(stub, msg.From, data_model.MSG_CONSENT_DECISION, msg.CorrelationID, data_model.ConsentDecisionPayload{Decision: decision})
	return err
}

func getCheckResult(stub cached_stub.CachedStubInterface, msg data_model.Message, decision *data_model.ConsentDecision) (bool, error) {
	key, err := common.CompositeKey(stub, global.CONSENT_CHECK_RESULT_PREFIX, msg.From, msg.CorrelationID)
	if err != nil {
		return false, err
	}
	return common.GetJSON(stub, key, decision, "ConsentDecision")
}

// ------------------------------------------------------
// ---------------------- NOTICES -----------------------
// ------------------------------------------------------

// notifySubscribers sends a policy status notice to every subscriber ledger.
// The policy id is the correlation id; a policy leaves active only once.
func notifySubscribers(stub cached_stub.CachedStubInterface, kind string, policy data_model.ConsentPolicy, status data_model.ConsentStatus) error {
	config, err := common.GetLedgerConfig(stub)
	if err != nil {
		return err
	}
	payload := data_model.PolicyStatusPayload{PolicyID: policy.PolicyID, OwnerID: policy.OwnerID, State: status.State, At: status.At, Reason: status.Reason}
	for _, subscriber := range config.Subscribers {
		if _, err := messenger.Send(stub, subscriber, kind, policy.PolicyID, payload); err != nil {
			return err
		}
	}
	return nil
}

// OnDeliveryFailed handles a message of this ledger the relay gave up on. Undelivered
// status notices are queued for re-sending by ResendNotices; an undelivered decision
// needs nothing, since the requester retries its check and gets the stored decision.
func OnDeliveryFailed(stub cached_stub.CachedStubInterface, failure data_model.DeliveryFailure) error {
	defer utils.ExitFnLogger(logger, utils.EnterFnLogger(logger))

	msg := failure.Message
	if msg.Kind != data_model.MSG_POLICY_REVOKED && msg.Kind != data_model.MSG_POLICY_EXPIRED {
		logger.Infof("no action for failed %v %v", msg.Kind, msg.CorrelationID)
		return nil
	}
	payload := data_model.PolicyStatusPayload{}
	if err := messenger.DecodePayload(msg, &payload); err != nil {
		return err
	}
	key, err := common.CompositeKey(stub, global.CONSENT_REDELIVERY_PREFIX, payload.PolicyID, msg.To, msg.Kind)
	if err != nil {
		return err
	}
	entry := redelivery{Subscriber: msg.To, Kind: msg.Kind, Payload: payload}
	if _, err := common.GetJSON(stub, key, &entry, "redelivery"); err != nil {
		return err
	}
	if entry.Resends >= global.REVOCATION_RESEND_BUDGET {
		logger.Errorf("giving up on %v of %v to %v after %v resends", msg.Kind, payload.PolicyID, msg.To, entry.Resends)
		entry.Pending = false
	} else {
		entry.Pending = true
	}
	return common.PutJSON(stub, key, entry, "redelivery")
}

// ResendNotices re-sends the status notices queued by OnDeliveryFailed and returns how
// many were sent.
func ResendNotices(stub cached_stub.CachedStubInterface) (int, error) {
	defer utils.ExitFnLogger(logger, utils.EnterFnLogger(logger))

	type pending struct {
		key   string
		entry redelivery
	}
	queue := []pending{}
	err := common.ForEachByPartialKey(stub, global.CONSENT_REDELIVERY_PREFIX, []string{}, func(attrs []string, value []byte) error {
		key, err := common.CompositeKey(stub, global.CONSENT_REDELIVERY_PREFIX, attrs...)
		if err != nil {
			return err
		}
		entry := redelivery{}
		if err := json.Unmarshal(value, &entry); err != nil {
			custom_err := &custom_errors.UnmarshalError{Type: "redelivery"}
			logger.Errorf("%v: %v", custom_err, err)
			return errors.Wrap(err, custom_err.Error())
		}
		if entry.Pending {
			queue = append(queue, pending{key: key, entry: entry})
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	for _, p := range queue {
		if _, err := messenger.Send(stub, p.entry.Subscriber, p.entry.Kind, p.entry.Payload.PolicyID, p.entry.Payload); err != nil {
			return 0, err
		}
		p.entry.Pending = false
		p.entry.Resends++
		if err := common.PutJSON(stub, p.key, p.entry, "redelivery"); err != nil {
			return 0, err
		}
	}
	return len(queue), nil
}

// ------------------------------------------------------
// ---------------------- STORAGE -----------------------
// ------------------------------------------------------

func getPolicy(stub cached_stub.CachedStubInterface, policyID string) (data_model.ConsentPolicy, bool, error) {
	policy := data_model.ConsentPolicy{}
	key, err := common.CompositeKey(stub, global.CONSENT_POLICY_PREFIX, policyID)
	if err != nil {
		return policy, false, err
	}
	found, err := common.GetJSON(stub, key, &policy, "ConsentPolicy")
	return policy, found, err
}

func putPolicy(stub cached_stub.CachedStubInterface, policy data_model.ConsentPolicy) error {
	key, err := common.CompositeKey(stub, global.CONSENT_POLICY_PREFIX, policy.PolicyID)
	if err != nil {
		return err
	}
	return common.PutJSON(stub, key, policy, "ConsentPolicy")
}

func getStatus(stub cached_stub.CachedStubInterface, policyID string) (data_model.ConsentStatus, error) {
	status := data_model.ConsentStatus{}
	key, err := common.CompositeKey(stub, global.CONSENT_STATUS_PREFIX, policyID)
	if err != nil {
		return status, err
	}
	_, err = common.GetJSON(stub, key, &status, "ConsentStatus")
	return status, err
}

func putStatus(stub cached_stub.CachedStubInterface, status data_model.ConsentStatus) error {
	key, err := common.CompositeKey(stub, global.CONSENT_STATUS_PREFIX, status.PolicyID)
	if err != nil {
		return err
	}
	return common.PutJSON(stub, key, status, "ConsentStatus")
}

func putActiveRow(stub cached_stub.CachedStubInterface, policy data_model.ConsentPolicy) error {
	if policy.Window.End == 0 {
		return nil
	}
	return index.GetTable(stub, global.INDEX_CONSENT_ACTIVE).PutRow(utils.PadSeq(uint64(policy.Window.End)), policy.PolicyID)
}
