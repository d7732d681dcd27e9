/*******************************************************************************
 *
 *
 * (c) Copyright Merative US L.P. and others 2020-2022
 *
 * SPDX-Licence-Identifier: Apache 2.0
 *
 *******************************************************************************/

// Package record_mgmt_i is the record catalog of the record ledger.
package record_mgmt_i

import (
	"github.com/choiwab/patient-x/pxchain/cached_stub"
	"github.com/choiwab/patient-x/pxchain/custom_errors"
	"github.com/choiwab/patient-x/pxchain/data_model"
	"github.com/choiwab/patient-x/pxchain/datastore"
	"github.com/choiwab/patient-x/pxchain/history"
	"github.com/choiwab/patient-x/pxchain/identity"
	"github.com/choiwab/patient-x/pxchain/index"
	"github.com/choiwab/patient-x/pxchain/internal/common"
	"github.com/choiwab/patient-x/pxchain/internal/common/global"
	"github.com/choiwab/patient-x/pxchain/provenance"
	"github.com/choiwab/patient-x/pxchain/utils"

	"github.com/hyperledger/fabric/core/chaincode/shim"
	"github.com/pkg/errors"
)

var logger = shim.NewLogger("record_mgmt_i")

// AUDIT_ROLES may read any record's provenance trail.
var AUDIT_ROLES = []string{global.ROLE_AUDITOR, global.ROLE_REGULATOR, global.ROLE_ADMIN}

// AccessGate is what the catalog needs from the access gate.
type AccessGate interface {
	// LiveGrant returns the granted, unexpired request of requesterID on recordRef.
	LiveGrant(stub cached_stub.CachedStubInterface, requesterID string, recordRef string) (data_model.AccessRequest, bool, error)

	// OnRecordRemoved ends every request on recordRef.
	OnRecordRemoved(stub cached_stub.CachedStubInterface, recordRef string, at int64) error
}

var gate AccessGate

// Init sets up the record_mgmt package.
func Init(stub cached_stub.CachedStubInterface, logLevel ...shim.LoggingLevel) ([]byte, error) {
	if len(logLevel) > 0 {
		logger.SetLevel(logLevel[0])
	}
	return nil, nil
}

// SetAccessGate sets the access gate consulted on reads and told about removals.
func SetAccessGate(g AccessGate) {
	gate = g
}

// RegisterRecord stores the content of a new record owned by caller and catalogs it.
func RegisterRecord(stub cached_stub.CachedStubInterface, caller data_model.Identity, input data_model.RecordInput) (data_model.Record, error) {
	defer utils.ExitFnLogger(logger, utils.EnterFnLogger(logger))

	record := data_model.Record{}
	if utils.IsStringEmpty(input.RecordRef) {
		return record, invalid("record_ref", "record_ref is required")
	}
	if utils.IsStringEmpty(input.PolicyID) {
		return record, invalid("policy_id", "policy_id is required")
	}
	if len(input.Content) == 0 {
		return record, invalid("content", "content is required")
	}
	_, exists, err := GetRecord(stub, input.RecordRef)
	if err != nil {
		return record, err
	}
	if exists {
		custom_err := &custom_errors.DuplicateRecordError{RecordRef: input.RecordRef}
		logger.Errorf("%v", custom_err)
		return record, errors.WithStack(custom_err)
	}

	contentRef, err := datastore.GetContentStore(stub).Store(input.Content)
	if err != nil {
		return record, err
	}
	now, err := utils.GetTxTime(stub)
	if err != nil {
		return record, err
	}
	record = data_model.Record{
		RecordRef:  input.RecordRef,
		OwnerID:    caller.ID,
		PolicyID:   input.PolicyID,
		Categories: utils.GetSetFromList(input.Categories),
		ContentRef: contentRef,
		Status:     data_model.RECORD_ACTIVE,
		CreatedAt:  now,
	}
	if err := putRecord(stub, record); err != nil {
		return record, err
	}
	if err := index.GetTable(stub, global.INDEX_RECORD_OWNER).PutRow(record.OwnerID, record.RecordRef); err != nil {
		return record, err
	}
	_, err = history.PutEvent(stub, data_model.Event{
		Type:      data_model.EVENT_RECORD_REGISTERED,
		ActorID:   caller.ID,
		RecordRef: record.RecordRef,
		PolicyID:  record.PolicyID,
		Data:      map[string]string{"content_ref": contentRef},
	})
	return record, err
}

// RemoveRecord marks a record of caller removed, unpins its content and ends every
// access request on it.
func RemoveRecord(stub cached_stub.CachedStubInterface, caller data_model.Identity, recordRef string) (data_model.Record, error) {
	defer utils.ExitFnLogger(logger, utils.EnterFnLogger(logger))

	record, err := getActiveRecord(stub, recordRef)
	if err != nil {
		return record, err
	}
	if record.OwnerID != caller.ID {
		custom_err := &custom_errors.NotOwnerError{Type: "Record", ID: recordRef, CallerID: caller.ID}
		logger.Errorf("%v", custom_err)
		return record, errors.WithStack(custom_err)
	}
	now, err := utils.GetTxTime(stub)
	if err != nil {
		return record, err
	}
	if err := datastore.GetContentStore(stub).Unpin(record.ContentRef); err != nil {
		return record, err
	}
	record.Status = data_model.RECORD_REMOVED
	record.RemovedAt = now
	if err := putRecord(stub, record); err != nil {
		return record, err
	}
	if _, err := provenance.GetLogger(stub).Append(recordRef, data_model.ProvenanceEvent{Activity: data_model.ACTIVITY_DELETION, AgentID: caller.ID}); err != nil {
		return record, err
	}
	if _, err := history.PutEvent(stub, data_model.Event{Type: data_model.EVENT_RECORD_REMOVED, ActorID: caller.ID, RecordRef: recordRef}); err != nil {
		return record, err
	}
	if gate != nil {
		return record, gate.OnRecordRemoved(stub, recordRef, now)
	}
	return record, nil
}

// FetchRecord returns the content of a record to its owner or to a caller holding a
// live grant, and logs the access in the record's provenance trail.
func FetchRecord(stub cached_stub.CachedStubInterface, caller data_model.Identity, recordRef string) ([]byte, error) {
	defer utils.ExitFnLogger(logger, utils.EnterFnLogger(logger))

	record, err := getActiveRecord(stub, recordRef)
	if err != nil {
		return nil, err
	}
	event := data_model.ProvenanceEvent{Activity: data_model.ACTIVITY_ACCESS, AgentID: caller.ID}
	if record.OwnerID != caller.ID {
		granted := false
		if gate != nil {
			request, live, err := gate.LiveGrant(stub, caller.ID, recordRef)
			if err != nil {
				return nil, err
			}
			granted = live
			event.Purpose = request.Purpose
			event.Reference = request.RequestID
		}
		if !granted {
			custom_err := &custom_errors.AccessNotGrantedError{RecordRef: recordRef, CallerID: caller.ID}
			logger.Errorf("%v", custom_err)
			return nil, errors.WithStack(custom_err)
		}
	}
	content, err := datastore.GetContentStore(stub).Fetch(record.ContentRef)
	if err != nil {
		return nil, err
	}
	if _, err := provenance.GetLogger(stub).Append(recordRef, event); err != nil {
		return nil, err
	}
	return content, nil
}

// GetRecordTrail returns the provenance trail of a record to its owner or an auditor.
func GetRecordTrail(stub cached_stub.CachedStubInterface, caller data_model.Identity, recordRef string) ([]data_model.ProvenanceEvent, error) {
	defer utils.ExitFnLogger(logger, utils.EnterFnLogger(logger))

	record, found, err := GetRecord(stub, recordRef)
	if err != nil {
		return nil, err
	}
	if !found {
		custom_err := &custom_errors.NotFoundError{Type: "Record", ID: recordRef}
		logger.Errorf("%v", custom_err)
		return nil, errors.WithStack(custom_err)
	}
	if record.OwnerID != caller.ID {
		auditor, err := identity.GetDirectory(stub).HasRole(caller.ID, AUDIT_ROLES...)
		if err != nil {
			return nil, err
		}
		if !auditor {
			custom_err := &custom_errors.MissingRoleError{CallerID: caller.ID, Roles: AUDIT_ROLES}
			logger.Errorf("%v", custom_err)
			return nil, errors.WithStack(custom_err)
		}
	}
	return provenance.GetTrailWithParams(stub, recordRef)
}

// GetRecord returns a catalog entry.
func GetRecord(stub cached_stub.CachedStubInterface, recordRef string) (data_model.Record, bool, error) {
	record := data_model.Record{}
	key, err := common.CompositeKey(stub, global.RECORD_PREFIX, recordRef)
	if err != nil {
		return record, false, err
	}
	found, err := common.GetJSON(stub, key, &record, "Record")
	return record, found, err
}

// GetRecordsByOwner returns every record of ownerID, removed ones included.
func GetRecordsByOwner(stub cached_stub.CachedStubInterface, ownerID string) ([]data_model.Record, error) {
	refs, err := index.GetTable(stub, global.INDEX_RECORD_OWNER).GetLastFieldByPartialKey(ownerID)
	if err != nil {
		return nil, err
	}
	records := []data_model.Record{}
	for _, ref := range refs {
		record, found, err := GetRecord(stub, ref)
		if err != nil {
			return nil, err
		}
		if found {
			records = append(records, record)
		}
	}
	return records, nil
}

func getActiveRecord(stub cached_stub.CachedStubInterface, recordRef string) (data_model.Record, error) {
	record, found, err := GetRecord(stub, recordRef)
	if err != nil {
		return record, err
	}
	if !found {
		custom_err := &custom_errors.NotFoundError{Type: "Record", ID: recordRef}
		logger.Errorf("%v", custom_err)
		return record, errors.WithStack(custom_err)
	}
	if record.Status != data_model.RECORD_ACTIVE {
		custom_err := &custom_errors.RecordRemovedError{RecordRef: recordRef}
		logger.Errorf("%v", custom_err)
		return record, errors.WithStack(custom_err)
	}
	return record, nil
}

func putRecord(stub cached_stub.CachedStubInterface, record data_model.Record) error {
	key, err := common.CompositeKey(stub, global.RECORD_PREFIX, record.RecordRef)
	if err != nil {
		return err
	}
	return common.PutJSON(stub, key, record, "Record")
}

func invalid(argument string, reason string) error {
	custom_err := &custom_errors.InvalidArgumentError{Argument: argument, Reason: reason}
	logger.Errorf("%v", custom_err)
	return errors.WithStack(custom_err)
}
