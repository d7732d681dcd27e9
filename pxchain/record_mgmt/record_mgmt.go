/*******************************************************************************
 *
 *
 * (c) Copyright Merative US L.P. and others 2020-2022
 *
 * SPDX-Licence-Identifier: Apache 2.0
 *
 *******************************************************************************/

// Package record_mgmt is the catalog of sensitive records kept by the record ledger.
//
// A record names the consent policy that governs it and the data categories it holds.
// Its content lives in the content store; the catalog keeps the content reference.
// Only the owner and callers holding a live grant from the access gate can read the
// content, and every read is appended to the record's provenance trail.
package record_mgmt

import (
	"encoding/json"

	"github.com/choiwab/patient-x/pxchain/cached_stub"
	"github.com/choiwab/patient-x/pxchain/custom_errors"
	"github.com/choiwab/patient-x/pxchain/data_model"
	"github.com/choiwab/patient-x/pxchain/internal/record_mgmt_i"
	"github.com/choiwab/patient-x/pxchain/utils"

	"github.com/hyperledger/fabric/core/chaincode/shim"
	"github.com/pkg/errors"
)

var logger = shim.NewLogger("record_mgmt")

// AccessGate is implemented by the access gate; see SetAccessGate.
type AccessGate = record_mgmt_i.AccessGate

// ------------------------------------------------------
// ---------------------- INIT FUNCTIONS ----------------
// ------------------------------------------------------

// Init sets up the record_mgmt package.
func Init(stub cached_stub.CachedStubInterface, logLevel ...shim.LoggingLevel) ([]byte, error) {
	if len(logLevel) > 0 {
		logger.SetLevel(logLevel[0])
	}
	defer utils.ExitFnLogger(logger, utils.EnterFnLogger(logger))
	return record_mgmt_i.Init(stub, logLevel...)
}

// SetAccessGate sets the access gate consulted by FetchRecord and told about removals.
// Without one, only owners can read records.
func SetAccessGate(gate AccessGate) {
	record_mgmt_i.SetAccessGate(gate)
}

// RegisterRecord registers a record owned by the caller.
//
// args = [ record ]
//
// record is the JSON of a data_model.RecordInput. Returns the catalog entry.
func RegisterRecord(stub cached_stub.CachedStubInterface, caller data_model.Identity, args []string) ([]byte, error) {
	defer utils.ExitFnLogger(logger, utils.EnterFnLogger(logger))
	logger.Debugf("callerID: %v", caller.ID)

	if len(args) != 1 {
		return nil, argsError("expected [record]")
	}
	input := data_model.RecordInput{}
	if err := json.Unmarshal([]byte(args[0]), &input); err != nil {
		custom_err := &custom_errors.InvalidArgumentError{Argument: "record", Reason: err.Error()}
		logger.Errorf("%v", custom_err)
		return nil, errors.WithStack(custom_err)
	}
	record, err := RegisterRecordWithParams(stub, caller, input)
	if err != nil {
		return nil, err
	}
	return json.Marshal(record)
}

// RegisterRecordWithParams registers a record owned by the caller.
func RegisterRecordWithParams(stub cached_stub.CachedStubInterface, caller data_model.Identity, input data_model.RecordInput) (data_model.Record, error) {
	return record_mgmt_i.RegisterRecord(stub, caller, input)
}

// RemoveRecord removes a record of the caller.
//
// args = [ recordRef ]
func RemoveRecord(stub cached_stub.CachedStubInterface, caller data_model.Identity, args []string) ([]byte, error) {
	defer utils.ExitFnLogger(logger, utils.EnterFnLogger(logger))

	if len(args) != 1 {
		return nil, argsError("expected [recordRef]")
	}
	record, err := RemoveRecordWithParams(stub, caller, args[0])
	if err != nil {
		return nil, err
	}
	return json.Marshal(record)
}

// RemoveRecordWithParams removes a record of the caller.
func RemoveRecordWithParams(stub cached_stub.CachedStubInterface, caller data_model.Identity, recordRef string) (data_model.Record, error) {
	return record_mgmt_i.RemoveRecord(stub, caller, recordRef)
}

// FetchRecord returns the content of a record.
//
// args = [ recordRef ]
func FetchRecord(stub cached_stub.CachedStubInterface, caller data_model.Identity, args []string) ([]byte, error) {
	defer utils.ExitFnLogger(logger, utils.EnterFnLogger(logger))

	if len(args) != 1 {
		return nil, argsError("expected [recordRef]")
	}
	return FetchRecordWithParams(stub, caller, args[0])
}

// FetchRecordWithParams returns the content of a record.
func FetchRecordWithParams(stub cached_stub.CachedStubInterface, caller data_model.Identity, recordRef string) ([]byte, error) {
	return record_mgmt_i.FetchRecord(stub, caller, recordRef)
}

// GetRecord returns a catalog entry.
//
// args = [ recordRef ]
func GetRecord(stub cached_stub.CachedStubInterface, caller data_model.Identity, args []string) ([]byte, error) {
	if len(args) != 1 {
		return nil, argsError("expected [recordRef]")
	}
	record, found, err := GetRecordWithParams(stub, args[0])
	if err != nil {
		return nil, err
	}
	if !found {
		custom_err := &custom_errors.NotFoundError{Type: "Record", ID: args[0]}
		logger.Errorf("%v", custom_err)
		return nil, errors.WithStack(custom_err)
	}
	return json.Marshal(record)
}

// GetRecordWithParams returns a catalog entry.
func GetRecordWithParams(stub cached_stub.CachedStubInterface, recordRef string) (data_model.Record, bool, error) {
	return record_mgmt_i.GetRecord(stub, recordRef)
}

// GetRecordsByOwner returns the records of an owner.
//
// args = [ ownerID ]
func GetRecordsByOwner(stub cached_stub.CachedStubInterface, caller data_model.Identity, args []string) ([]byte, error) {
	if len(args) != 1 {
		return nil, argsError("expected [ownerID]")
	}
	records, err := record_mgmt_i.GetRecordsByOwner(stub, args[0])
	if err != nil {
		return nil, err
	}
	return json.Marshal(records)
}

// GetRecordTrail returns the provenance trail of a record to its owner or an auditor.
//
// args = [ recordRef ]
func GetRecordTrail(stub cached_stub.CachedStubInterface, caller data_model.Identity, args []string) ([]byte, error) {
	if len(args) != 1 {
		return nil, argsError("expected [recordRef]")
	}
	trail, err := record_mgmt_i.GetRecordTrail(stub, caller, args[0])
	if err != nil {
		return nil, err
	}
	return json.Marshal(trail)
}

func argsError(reason string) error {
	custom_err := &custom_errors.InvalidArgumentError{Argument: "args", Reason: reason}
	logger.Errorf("%v", custom_err)
	return errors.WithStack(custom_err)
}
