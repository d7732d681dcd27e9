/*******************************************************************************
 *
 *
 * (c) Copyright Merative US L.P. and others 2020-2022
 *
 * SPDX-Licence-Identifier: Apache 2.0
 *
 *******************************************************************************/

// Package provenance_i keeps the per-record provenance hash chains of the record ledger.
package provenance_i

import (
	"strconv"

	"github.com/choiwab/patient-x/pxchain/cached_stub"
	"github.com/choiwab/patient-x/pxchain/custom_errors"
	"github.com/choiwab/patient-x/pxchain/data_model"
	"github.com/choiwab/patient-x/pxchain/history"
	"github.com/choiwab/patient-x/pxchain/internal/common"
	"github.com/choiwab/patient-x/pxchain/internal/common/global"
	"github.com/choiwab/patient-x/pxchain/messenger"
	"github.com/choiwab/patient-x/pxchain/utils"

	"github.com/hyperledger/fabric/core/chaincode/shim"
	"github.com/pkg/errors"
)

var logger = shim.NewLogger("provenance_i")

var activities = []string{
	data_model.ACTIVITY_ACCESS,
	data_model.ACTIVITY_MODIFICATION,
	data_model.ACTIVITY_DERIVATION,
	data_model.ACTIVITY_SHARING,
	data_model.ACTIVITY_EXPORT,
	data_model.ACTIVITY_DELETION,
}

// head is the last link of a record's chain.
type head struct {
	Seq  uint64 `json:"seq"`
	Hash string `json:"hash"`
}

// Init sets up the provenance package.
func Init(stub cached_stub.CachedStubInterface, logLevel ...shim.LoggingLevel) ([]byte, error) {
	if len(logLevel) > 0 {
		logger.SetLevel(logLevel[0])
	}
	return nil, nil
}

// Append links event to the chain of event.RecordRef and returns it with Seq, At, TxID,
// PrevHash and Hash set.
func Append(stub cached_stub.CachedStubInterface, event data_model.ProvenanceEvent) (data_model.ProvenanceEvent, error) {
	defer utils.ExitFnLogger(logger, utils.EnterFnLogger(logger))

	if utils.IsStringEmpty(event.RecordRef) {
		return event, invalid("record_ref", "record_ref is required")
	}
	if !utils.InList(activities, event.Activity) {
		return event, invalid("activity", "unknown activity "+event.Activity)
	}
	if utils.IsStringEmpty(event.AgentID) {
		return event, invalid("agent_id", "agent_id is required")
	}

	last, err := getHead(stub, event.RecordRef)
	if err != nil {
		return event, err
	}
	event.At, err = utils.GetTxTime(stub)
	if err != nil {
		return event, err
	}
	event.TxID = stub.GetTxID()
	event.Seq = last.Seq + 1
	event.PrevHash = last.Hash
	event.Hash = ComputeHash(event)

	key, err := common.CompositeKey(stub, global.PROVENANCE_PREFIX, event.RecordRef, utils.PadSeq(event.Seq))
	if err != nil {
		return event, err
	}
	if err := common.PutJSON(stub, key, event, "ProvenanceEvent"); err != nil {
		return event, err
	}
	if err := putHead(stub, event.RecordRef, head{Seq: event.Seq, Hash: event.Hash}); err != nil {
		return event, err
	}
	_, err = history.PutEvent(stub, data_model.Event{
		Type:      data_model.EVENT_PROVENANCE_APPENDED,
		ActorID:   event.AgentID,
		RecordRef: event.RecordRef,
		Data:      map[string]string{"activity": event.Activity, "hash": event.Hash},
	})
	return event, err
}

// ComputeHash returns sha256 over the previous hash and the fields of event.
func ComputeHash(event data_model.ProvenanceEvent) string {
	return utils.HashHex(
		event.PrevHash,
		event.RecordRef,
		strconv.FormatUint(event.Seq, 10),
		event.Activity,
		event.AgentID,
		event.Purpose.Kind,
		event.Purpose.Detail,
		event.Reference,
		strconv.FormatInt(event.At, 10),
		event.TxID,
	)
}

// GetTrail returns the chain of recordRef in order.
func GetTrail(stub cached_stub.CachedStubInterface, recordRef string) ([]data_model.ProvenanceEvent, error) {
	defer utils.ExitFnLogger(logger, utils.EnterFnLogger(logger))

	trail := []data_model.ProvenanceEvent{}
	err := common.ForEachByPartialKey(stub, global.PROVENANCE_PREFIX, []string{recordRef}, func(attrs []string, value []byte) error {
		event := data_model.ProvenanceEvent{}
		if err := common.UnmarshalJSON(value, &event, "ProvenanceEvent"); err != nil {
			return err
		}
		trail = append(trail, event)
		return nil
	})
	return trail, err
}

// VerifyTrail recomputes the chain of recordRef. It returns the sequence number of the
// first broken link, or 0 if the chain is intact.
func VerifyTrail(stub cached_stub.CachedStubInterface, recordRef string) (uint64, error) {
	defer utils.ExitFnLogger(logger, utils.EnterFnLogger(logger))

	trail, err := GetTrail(stub, recordRef)
	if err != nil {
		return 0, err
	}
	prev := global.PROVENANCE_GENESIS_HASH
	for i, event := range trail {
		if event.Seq != uint64(i+1) || event.PrevHash != prev || ComputeHash(event) != event.Hash {
			logger.Warningf("provenance chain of %v broken at %v", recordRef, event.Seq)
			return event.Seq, nil
		}
		prev = event.Hash
	}
	last, err := getHead(stub, recordRef)
	if err != nil {
		return 0, err
	}
	if last.Seq != uint64(len(trail)) || last.Hash != prev {
		return last.Seq, nil
	}
	return 0, nil
}

// ReceiveProvenanceLog appends the activity of a provenance_log message and answers
// with provenance_logged. A request that cannot be logged is still answered, with
// Error set. A repeated request is answered again with the original reply.
func ReceiveProvenanceLog(stub cached_stub.CachedStubInterface, msg data_model.Message) error {
	defer utils.ExitFnLogger(logger, utils.EnterFnLogger(logger))

	applied, err := messenger.Receive(stub, msg, handleProvenanceLog)
	if err != nil || applied {
		return err
	}
	reply := data_model.ProvenanceLoggedPayload{}
	key, err := common.CompositeKey(stub, global.PROVENANCE_LOG_RESULT_PREFIX, msg.From, msg.CorrelationID)
	if err != nil {
		return err
	}
	found, err := common.GetJSON(stub, key, &reply, "ProvenanceLoggedPayload")
	if err != nil || !found {
		return err
	}
	_, err = messenger.Send(stub, msg.From, data_model.MSG_PROVENANCE_LOGGED, msg.CorrelationID, reply)
	return err
}

func handleProvenanceLog(stub cached_stub.CachedStubInterface, msg data_model.Message) error {
	payload := data_model.ProvenanceLogPayload{}
	if err := messenger.DecodePayload(msg, &payload); err != nil {
		return err
	}
	reply := data_model.ProvenanceLoggedPayload{RecordRef: payload.RecordRef}
	event, err := Append(stub, data_model.ProvenanceEvent{
		RecordRef: payload.RecordRef,
		Activity:  payload.Activity,
		AgentID:   payload.AgentID,
		Purpose:   payload.Purpose,
		Reference: payload.Reference,
	})
	switch {
	case err == nil:
		reply.EventHash = event.Hash
	case custom_errors.Category(err) == custom_errors.CATEGORY_VALIDATION:
		reply.Error = custom_errors.Code(err)
	default:
		return err
	}
	key, err := common.CompositeKey(stub, global.PROVENANCE_LOG_RESULT_PREFIX, msg.From, msg.CorrelationID)
	if err != nil {
		return err
	}
	if err := common.PutJSON(stub, key, reply, "ProvenanceLoggedPayload"); err != nil {
		return err
	}
	_, err = messenger.Send(stub, msg.From, data_model.MSG_PROVENANCE_LOGGED, msg.CorrelationID, reply)
	return err
}

func getHead(stub cached_stub.CachedStubInterface, recordRef string) (head, error) {
	h := head{Hash: global.PROVENANCE_GENESIS_HASH}
	key, err := common.CompositeKey(stub, global.PROVENANCE_HEAD_PREFIX, recordRef)
	if err != nil {
		return h, err
	}
	_, err = common.GetJSON(stub, key, &h, "ProvenanceHead")
	return h, err
}

func putHead(stub cached_stub.CachedStubInterface, recordRef string, h head) error {
	key, err := common.CompositeKey(stub, global.PROVENANCE_HEAD_PREFIX, recordRef)
	if err != nil {
		return err
	}
	return common.PutJSON(stub, key, h, "ProvenanceHead")
}

func invalid(argument string, reason string) error {
	custom_err := &custom_errors.InvalidArgumentError{Argument: argument, Reason: reason}
	logger.Errorf("%v", custom_err)
	return errors.WithStack(custom_err)
}
