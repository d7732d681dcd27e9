/*******************************************************************************
 *
 *
 * (c) Copyright Merative US L.P. and others 2020-2022
 *
 * SPDX-Licence-Identifier: Apache 2.0
 *
 *******************************************************************************/

// Package messenger is the ledger side of cross-ledger messaging.
//
// A ledger never calls another ledger. It appends messages to a per-destination outbox
// (channel "<from>><to>") with a gap-free sequence, and an off-ledger relay copies them
// into the destination ledger's Deliver entry point in sequence order. Delivery is
// at-least-once, so receivers go through Receive, which uses (from, kind, correlation id)
// as the idempotency key: the inbox marker is written in the same transaction as the
// handler's effects, and only when the handler succeeded.
//
// When the relay runs out of attempts it reports the message back to the sending
// ledger, which records the failure once with RecordFailure and resolves the affected
// request through its own terminal transition.
package messenger

import (
	"encoding/json"
	"strconv"

	"github.com/choiwab/patient-x/pxchain/cached_stub"
	"github.com/choiwab/patient-x/pxchain/custom_errors"
	"github.com/choiwab/patient-x/pxchain/data_model"
	"github.com/choiwab/patient-x/pxchain/history"
	"github.com/choiwab/patient-x/pxchain/internal/common"
	"github.com/choiwab/patient-x/pxchain/internal/common/global"
	"github.com/choiwab/patient-x/pxchain/utils"

	"github.com/hyperledger/fabric/core/chaincode/shim"
	"github.com/pkg/errors"
)

var logger = shim.NewLogger("messenger")

// Handler applies a delivered message to ledger state.
type Handler func(stub cached_stub.CachedStubInterface, msg data_model.Message) error

// inboxEntry is the idempotency marker of a processed message.
type inboxEntry struct {
	Channel     string `json:"channel"`
	Seq         uint64 `json:"seq"`
	ProcessedAt int64  `json:"processed_at"`
	TxID        string `json:"tx_id"`
}

// Init sets up the messenger package.
func Init(stub cached_stub.CachedStubInterface, logLevel ...shim.LoggingLevel) ([]byte, error) {
	if len(logLevel) > 0 {
		logger.SetLevel(logLevel[0])
	}
	return nil, nil
}

// Channel returns the name of the channel from one ledger to another.
func Channel(from string, to string) string {
	return from + global.CHANNEL_SEPARATOR + to
}

// Send appends a message for ledger to to the outbox and returns it.
// payload is marshalled to JSON.
func Send(stub cached_stub.CachedStubInterface, to string, kind string, correlationID string, payload interface{}) (data_model.Message, error) {
	defer utils.ExitFnLogger(logger, utils.EnterFnLogger(logger))

	msg := data_model.Message{To: to, Kind: kind, CorrelationID: correlationID}
	if utils.IsStringEmpty(to) || utils.IsStringEmpty(kind) || utils.IsStringEmpty(correlationID) {
		custom_err := &custom_errors.InvalidArgumentError{Argument: "message", Reason: "to, kind and correlation id are required"}
		logger.Errorf("%v", custom_err)
		return msg, errors.WithStack(custom_err)
	}
	config, err := common.GetLedgerConfig(stub)
	if err != nil {
		return msg, err
	}
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		custom_err := &custom_errors.MarshalError{Type: kind + " payload"}
		logger.Errorf("%v: %v", custom_err, err)
		return msg, errors.Wrap(err, custom_err.Error())
	}
	msg.From = config.Ledger
	msg.Channel = Channel(config.Ledger, to)
	msg.Payload = payloadBytes
	msg.TxID = stub.GetTxID()
	msg.SentAt, err = utils.GetTxTime(stub)
	if err != nil {
		return msg, err
	}

	seqKey, err := common.CompositeKey(stub, global.OUTBOX_SEQ_PREFIX, msg.Channel)
	if err != nil {
		return msg, err
	}
	msg.Seq, err = common.NextSeq(stub, seqKey)
	if err != nil {
		return msg, err
	}
	key, err := common.CompositeKey(stub, global.OUTBOX_PREFIX, msg.Channel, utils.PadSeq(msg.Seq))
	if err != nil {
		return msg, err
	}
	if err := common.PutJSON(stub, key, msg, "Message"); err != nil {
		return msg, err
	}
	logger.Infof("send %v #%v %v corr=%v", msg.Channel, msg.Seq, msg.Kind, msg.CorrelationID)
	return msg, nil
}

// ReadOutbox returns up to limit messages for ledger to with Seq > afterSeq, in order.
// limit <= 0 means no limit.
func ReadOutbox(stub cached_stub.CachedStubInterface, to string, afterSeq uint64, limit int) ([]data_model.Message, error) {
	defer utils.ExitFnLogger(logger, utils.EnterFnLogger(logger))

	config, err := common.GetLedgerConfig(stub)
	if err != nil {
		return nil, err
	}
	channel := Channel(config.Ledger, to)
	last, err := LastSeq(stub, channel)
	if err != nil {
		return nil, err
	}
	msgs := []data_model.Message{}
	for seq := afterSeq + 1; seq <= last; seq++ {
		if limit > 0 && len(msgs) >= limit {
			break
		}
		msg, found, err := GetMessage(stub, channel, seq)
		if err != nil {
			return nil, err
		}
		if !found {
			// sequences are gap-free; a hole means the outbox was tampered with
			custom_err := &custom_errors.NotFoundError{Type: "Message", ID: channel + "#" + strconv.FormatUint(seq, 10)}
			logger.Errorf("%v", custom_err)
			return nil, errors.WithStack(custom_err)
		}
		msgs = append(msgs, msg)
	}
	return msgs, nil
}

// GetOutbox returns the JSON of the outbox messages for a destination ledger.
//
// args = [ to, afterSeq, limit ]
func GetOutbox(stub cached_stub.CachedStubInterface, caller data_model.Identity, args []string) ([]byte, error) {
	defer utils.ExitFnLogger(logger, utils.EnterFnLogger(logger))
	if len(args) != 3 {
		custom_err := &custom_errors.InvalidArgumentError{Argument: "args", Reason: "expected [to, afterSeq, limit]"}
		logger.Errorf("%v", custom_err)
		return nil, errors.WithStack(custom_err)
	}
	afterSeq, err := strconv.ParseUint(args[1], 10, 64)
	if err != nil {
		custom_err := &custom_errors.InvalidArgumentError{Argument: "afterSeq", Reason: err.Error()}
		logger.Errorf("%v", custom_err)
		return nil, errors.WithStack(custom_err)
	}
	limit, err := strconv.Atoi(args[2])
	if err != nil {
		custom_err := &custom_errors.InvalidArgumentError{Argument: "limit", Reason: err.Error()}
		logger.Errorf("%v", custom_err)
		return nil, errors.WithStack(custom_err)
	}
	msgs, err := ReadOutbox(stub, args[0], afterSeq, limit)
	if err != nil {
		return nil, err
	}
	return json.Marshal(msgs)
}

// LastSeq returns the last sequence number used on channel, 0 if none.
func LastSeq(stub cached_stub.CachedStubInterface, channel string) (uint64, error) {
	seqKey, err := common.CompositeKey(stub, global.OUTBOX_SEQ_PREFIX, channel)
	if err != nil {
		return 0, err
	}
	var seq uint64
	_, err = common.GetJSON(stub, seqKey, &seq, "sequence")
	return seq, err
}

// GetMessage returns an outbox message.
func GetMessage(stub cached_stub.CachedStubInterface, channel string, seq uint64) (data_model.Message, bool, error) {
	msg := data_model.Message{}
	key, err := common.CompositeKey(stub, global.OUTBOX_PREFIX, channel, utils.PadSeq(seq))
	if err != nil {
		return msg, false, err
	}
	found, err := common.GetJSON(stub, key, &msg, "Message")
	return msg, found, err
}

// Receive applies msg with handler unless a message with the same sender, kind and
// correlation id was already applied. It returns true if handler ran.
// If handler fails, no marker is written and the error is returned.
func Receive(stub cached_stub.CachedStubInterface, msg data_model.Message, handler Handler) (bool, error) {
	defer utils.ExitFnLogger(logger, utils.EnterFnLogger(logger))

	config, err := common.GetLedgerConfig(stub)
	if err != nil {
		return false, err
	}
	if msg.To != config.Ledger {
		custom_err := &custom_errors.InvalidArgumentError{Argument: "message.To", Reason: "message for " + msg.To + " delivered to " + config.Ledger}
		logger.Errorf("%v", custom_err)
		return false, errors.WithStack(custom_err)
	}
	if utils.IsStringEmpty(msg.From) || utils.IsStringEmpty(msg.Kind) || utils.IsStringEmpty(msg.CorrelationID) {
		custom_err := &custom_errors.InvalidArgumentError{Argument: "message", Reason: "from, kind and correlation id are required"}
		logger.Errorf("%v", custom_err)
		return false, errors.WithStack(custom_err)
	}

	processed, err := IsProcessed(stub, msg.From, msg.Kind, msg.CorrelationID)
	if err != nil {
		return false, err
	}
	if processed {
		logger.Infof("duplicate %v #%v %v corr=%v ignored", msg.Channel, msg.Seq, msg.Kind, msg.CorrelationID)
		return false, nil
	}

	if err := handler(stub, msg); err != nil {
		logger.Errorf("handler for %v corr=%v failed: %v", msg.Kind, msg.CorrelationID, err)
		return false, err
	}

	now, err := utils.GetTxTime(stub)
	if err != nil {
		return false, err
	}
	key, err := inboxKey(stub, msg.From, msg.Kind, msg.CorrelationID)
	if err != nil {
		return false, err
	}
	entry := inboxEntry{Channel: msg.Channel, Seq: msg.Seq, ProcessedAt: now, TxID: stub.GetTxID()}
	if err := common.PutJSON(stub, key, entry, "inboxEntry"); err != nil {
		return false, err
	}
	logger.Infof("applied %v #%v %v corr=%v", msg.Channel, msg.Seq, msg.Kind, msg.CorrelationID)
	return true, nil
}

// IsProcessed returns true if a message with the given key was applied on this ledger.
func IsProcessed(stub cached_stub.CachedStubInterface, from string, kind string, correlationID string) (bool, error) {
	key, err := inboxKey(stub, from, kind, correlationID)
	if err != nil {
		return false, err
	}
	value, err := stub.GetState(key)
	if err != nil {
		custom_err := &custom_errors.GetLedgerError{LedgerKey: key, LedgerItem: "inbox marker"}
		logger.Errorf("%v: %v", custom_err, err)
		return false, errors.Wrap(err, custom_err.Error())
	}
	return len(value) > 0, nil
}

func inboxKey(stub cached_stub.CachedStubInterface, from string, kind string, correlationID string) (string, error) {
	return common.CompositeKey(stub, global.INBOX_PREFIX, from, kind, correlationID)
}

// RecordFailure records that the relay gave up on one of this ledger's messages.
// The reported message must match the outbox entry. It returns false if the failure
// was already recorded, in which case the caller must not act on it again.
func RecordFailure(stub cached_stub.CachedStubInterface, failure data_model.DeliveryFailure) (bool, error) {
	defer utils.ExitFnLogger(logger, utils.EnterFnLogger(logger))

	reported := failure.Message
	msg, found, err := GetMessage(stub, reported.Channel, reported.Seq)
	if err != nil {
		return false, err
	}
	if !found || msg.CorrelationID != reported.CorrelationID || msg.Kind != reported.Kind {
		custom_err := &custom_errors.NotFoundError{Type: "Message", ID: reported.Channel + "#" + strconv.FormatUint(reported.Seq, 10)}
		logger.Errorf("%v", custom_err)
		return false, errors.WithStack(custom_err)
	}

	key, err := common.CompositeKey(stub, global.FAILED_PREFIX, msg.Channel, utils.PadSeq(msg.Seq))
	if err != nil {
		return false, err
	}
	existing := data_model.DeliveryFailure{}
	recorded, err := common.GetJSON(stub, key, &existing, "DeliveryFailure")
	if err != nil {
		return false, err
	}
	if recorded {
		logger.Infof("failure of %v #%v already recorded", msg.Channel, msg.Seq)
		return false, nil
	}

	// keep the ledger's copy of the message, not the reported one
	failure.Message = msg
	if err := common.PutJSON(stub, key, failure, "DeliveryFailure"); err != nil {
		return false, err
	}
	_, err = history.PutEvent(stub, data_model.Event{
		Type:   data_model.EVENT_MESSAGE_FAILED,
		Reason: failure.Reason,
		Data: map[string]string{
			"channel":        msg.Channel,
			"seq":            strconv.FormatUint(msg.Seq, 10),
			"kind":           msg.Kind,
			"correlation_id": msg.CorrelationID,
			"attempts":       strconv.Itoa(failure.Attempts),
		},
	})
	if err != nil {
		return false, err
	}
	logger.Warningf("delivery of %v #%v %v failed after %v attempts: %v", msg.Channel, msg.Seq, msg.Kind, failure.Attempts, failure.Reason)
	return true, nil
}

// GetFailure returns the recorded failure of an outbox message.
func GetFailure(stub cached_stub.CachedStubInterface, channel string, seq uint64) (data_model.DeliveryFailure, bool, error) {
	failure := data_model.DeliveryFailure{}
	key, err := common.CompositeKey(stub, global.FAILED_PREFIX, channel, utils.PadSeq(seq))
	if err != nil {
		return failure, false, err
	}
	found, err := common.GetJSON(stub, key, &failure, "DeliveryFailure")
	return failure, found, err
}

// DecodePayload unmarshals the payload of msg into v.
func DecodePayload(msg data_model.Message, v interface{}) error {
	if err := json.Unmarshal(msg.Payload, v); err != nil {
		custom_err := &custom_errors.InvalidArgumentError{Argument: msg.Kind + " payload", Reason: err.Error()}
		logger.Errorf("%v", custom_err)
		return errors.WithStack(custom_err)
	}
	return nil
}
