/*******************************************************************************
 *
 *
 * (c) Copyright Merative US L.P. and others 2020-2022
 *
 * SPDX-Licence-Identifier: Apache 2.0
 *
 *******************************************************************************/

// Package history handles the append-only event log of a ledger.
//
// Every state transition observers care about (policy grants and revocations, access
// decisions, submissions, payouts) is appended here with the transaction id and
// timestamp, suitable for audit export.
package history

import (
	"strconv"

	"github.com/choiwab/patient-x/pxchain/cached_stub"
	"github.com/choiwab/patient-x/pxchain/custom_errors"
	"github.com/choiwab/patient-x/pxchain/data_model"
	"github.com/choiwab/patient-x/pxchain/internal/history_i"
	"github.com/choiwab/patient-x/pxchain/utils"

	"github.com/hyperledger/fabric/core/chaincode/shim"
	"github.com/pkg/errors"
)

var logger = shim.NewLogger("history")

// ------------------------------------------------------
// ---------------------- INIT FUNCTIONS ----------------
// ------------------------------------------------------

// Init sets up the history package.
func Init(stub cached_stub.CachedStubInterface, logLevel ...shim.LoggingLevel) ([]byte, error) {
	if len(logLevel) > 0 {
		logger.SetLevel(logLevel[0])
	}
	defer utils.ExitFnLogger(logger, utils.EnterFnLogger(logger))
	return history_i.Init(stub, logLevel...)
}

// PutEvent appends an event to the log and returns it with its sequence number set.
func PutEvent(stub cached_stub.CachedStubInterface, event data_model.Event) (data_model.Event, error) {
	defer utils.ExitFnLogger(logger, utils.EnterFnLogger(logger))
	return history_i.PutEvent(stub, event)
}

// GetEvents returns up to limit events after afterSeq.
//
// args = [afterSeq, limit]
func GetEvents(stub cached_stub.CachedStubInterface, caller data_model.Identity, args []string) ([]byte, error) {
	defer utils.ExitFnLogger(logger, utils.EnterFnLogger(logger))

	if len(args) != 2 {
		custom_err := &custom_errors.InvalidArgumentError{Argument: "args", Reason: "expected [afterSeq, limit]"}
		logger.Errorf("%v", custom_err)
		return nil, errors.WithStack(custom_err)
	}
	afterSeq, err := strconv.ParseUint(args[0], 10, 64)
	if err != nil {
		custom_err := &custom_errors.InvalidArgumentError{Argument: "afterSeq", Reason: err.Error()}
		logger.Errorf("%v", custom_err)
		return nil, errors.WithStack(custom_err)
	}
	limit, err := strconv.Atoi(args[1])
	if err != nil {
		custom_err := &custom_errors.InvalidArgumentError{Argument: "limit", Reason: err.Error()}
		logger.Errorf("%v", custom_err)
		return nil, errors.WithStack(custom_err)
	}
	events, err := history_i.GetEvents(stub, afterSeq, limit)
	if err != nil {
		return nil, err
	}
	return history_i.MarshalEvents(events)
}

// GetEventsWithParams returns up to limit events after afterSeq.
func GetEventsWithParams(stub cached_stub.CachedStubInterface, afterSeq uint64, limit int) ([]data_model.Event, error) {
	defer utils.ExitFnLogger(logger, utils.EnterFnLogger(logger))
	return history_i.GetEvents(stub, afterSeq, limit)
}

// GetEventsByType returns every event of the given type.
func GetEventsByType(stub cached_stub.CachedStubInterface, eventType data_model.EventType) ([]data_model.Event, error) {
	defer utils.ExitFnLogger(logger, utils.EnterFnLogger(logger))
	return history_i.GetEventsByType(stub, eventType)
}
