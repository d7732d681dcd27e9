/*******************************************************************************
 *
 *
 * (c) Copyright Merative US L.P. and others 2020-2022
 *
 * SPDX-Licence-Identifier: Apache 2.0
 *
 *******************************************************************************/

// Package history_i handles the append-only event log of a ledger.
package history_i

import (
	"encoding/json"

	"github.com/choiwab/patient-x/pxchain/cached_stub"
	"github.com/choiwab/patient-x/pxchain/custom_errors"
	"github.com/choiwab/patient-x/pxchain/data_model"
	"github.com/choiwab/patient-x/pxchain/index"
	"github.com/choiwab/patient-x/pxchain/internal/common"
	"github.com/choiwab/patient-x/pxchain/internal/common/global"
	"github.com/choiwab/patient-x/pxchain/utils"

	"github.com/hyperledger/fabric/core/chaincode/shim"
	"github.com/pkg/errors"
)

var logger = shim.NewLogger("history_i")

// ------------------------------------------------------
// ---------------------- INIT FUNCTIONS ----------------
// ------------------------------------------------------

// Init sets up the history package.
func Init(stub cached_stub.CachedStubInterface, logLevel ...shim.LoggingLevel) ([]byte, error) {
	if len(logLevel) > 0 {
		logger.SetLevel(logLevel[0])
	}
	logger.Debug("Init history")
	return nil, nil
}

// PutEvent appends event to the log. Seq, Ledger, TxID and Timestamp are filled in
// from the transaction; Timestamp is kept if the caller set it.
func PutEvent(stub cached_stub.CachedStubInterface, event data_model.Event) (data_model.Event, error) {
	defer utils.ExitFnLogger(logger, utils.EnterFnLogger(logger))

	if utils.IsStringEmpty(string(event.Type)) {
		custom_err := &custom_errors.InvalidArgumentError{Argument: "event.Type"}
		logger.Errorf("%v", custom_err)
		return event, errors.WithStack(custom_err)
	}

	config, err := common.GetLedgerConfig(stub)
	if err != nil {
		return event, err
	}
	if event.Timestamp == 0 {
		event.Timestamp, err = utils.GetTxTime(stub)
		if err != nil {
			return event, err
		}
	}
	event.Ledger = config.Ledger
	event.TxID = stub.GetTxID()

	event.Seq, err = common.NextSeq(stub, global.EVENT_SEQ_KEY)
	if err != nil {
		return event, err
	}
	seq := utils.PadSeq(event.Seq)
	key, err := common.CompositeKey(stub, global.EVENT_PREFIX, seq)
	if err != nil {
		return event, err
	}
	if err := common.PutJSON(stub, key, event, "Event"); err != nil {
		return event, err
	}
	if err := index.GetTable(stub, global.INDEX_EVENT_TYPE).PutRow(string(event.Type), seq); err != nil {
		return event, err
	}
	logger.Infof("event %v #%v tx %v", event.Type, event.Seq, event.TxID)
	return event, nil
}

// GetEvents returns up to limit events with Seq > afterSeq in order.
// limit <= 0 means no limit.
func GetEvents(stub cached_stub.CachedStubInterface, afterSeq uint64, limit int) ([]data_model.Event, error) {
	defer utils.ExitFnLogger(logger, utils.EnterFnLogger(logger))

	last, err := GetLastSeq(stub)
	if err != nil {
		return nil, err
	}
	events := []data_model.Event{}
	for seq := afterSeq + 1; seq <= last; seq++ {
		if limit > 0 && len(events) >= limit {
			break
		}
		event, found, err := getEvent(stub, seq)
		if err != nil {
			return nil, err
		}
		if found {
			events = append(events, event)
		}
	}
	return events, nil
}

// GetEventsByType returns every event of the given type in order.
func GetEventsByType(stub cached_stub.CachedStubInterface, eventType data_model.EventType) ([]data_model.Event, error) {
	defer utils.ExitFnLogger(logger, utils.EnterFnLogger(logger))

	seqs, err := index.GetTable(stub, global.INDEX_EVENT_TYPE).GetLastFieldByPartialKey(string(eventType))
	if err != nil {
		return nil, err
	}
	events := []data_model.Event{}
	for _, s := range seqs {
		seq, err := utils.ParseSeq(s)
		if err != nil {
			return nil, errors.Wrapf(err, "Bad event sequence %v", s)
		}
		event, found, err := getEvent(stub, seq)
		if err != nil {
			return nil, err
		}
		if found {
			events = append(events, event)
		}
	}
	return events, nil
}

// GetLastSeq returns the sequence number of the last event, 0 if there is none.
func GetLastSeq(stub cached_stub.CachedStubInterface) (uint64, error) {
	var seq uint64
	_, err := common.GetJSON(stub, global.EVENT_SEQ_KEY, &seq, "sequence")
	return seq, err
}

func getEvent(stub cached_stub.CachedStubInterface, seq uint64) (data_model.Event, bool, error) {
	event := data_model.Event{}
	key, err := common.CompositeKey(stub, global.EVENT_PREFIX, utils.PadSeq(seq))
	if err != nil {
		return event, false, err
	}
	found, err := common.GetJSON(stub, key, &event, "Event")
	return event, found, err
}

// MarshalEvents returns the JSON encoding of events.
func MarshalEvents(events []data_model.Event) ([]byte, error) {
	bytes, err := json.Marshal(events)
	if err != nil {
		custom_err := &custom_errors.MarshalError{Type: "[]Event"}
		logger.Errorf("%v: %v", custom_err, err)
		return nil, errors.Wrap(err, custom_err.Error())
	}
	return bytes, nil
}
