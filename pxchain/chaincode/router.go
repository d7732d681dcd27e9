/*******************************************************************************
 *
 *
 * (c) Copyright Merative US L.P. and others 2020-2022
 *
 * SPDX-Licence-Identifier: Apache 2.0
 *
 *******************************************************************************/

// Package chaincode contains the function router shared by the consent, health and
// market chaincodes.
//
// Every invocation has args [function, callerID, args...]. The router runs the handler
// against a write-buffering cached stub and flushes the buffered writes only when the
// handler succeeds, so a failed invocation leaves no partial state. Failures are
// returned as the JSON of custom_errors.Describe.
//
// Functions every ledger serves:
//   - Deliver [messageJSON]: relay only; applies an inbound message through the receiver
//     registered for its kind
//   - DeliveryFailed [failureJSON]: relay only; records that an outbox message could not
//     be delivered and resolves it through the ledger's failure handler
//   - Tick: relay or admin; runs the periodic work of the ledger
//   - GetOutbox [to, afterSeq, limit], GetEvents [afterSeq, limit]
//   - RegisterIdentity [identityJSON], SetVerified [id, verified], GetIdentity [id]
package chaincode

import (
	"encoding/json"
	"sort"

	"github.com/choiwab/patient-x/pxchain/cached_stub"
	"github.com/choiwab/patient-x/pxchain/custom_errors"
	"github.com/choiwab/patient-x/pxchain/data_model"
	"github.com/choiwab/patient-x/pxchain/history"
	"github.com/choiwab/patient-x/pxchain/identity"
	"github.com/choiwab/patient-x/pxchain/init_common"
	"github.com/choiwab/patient-x/pxchain/internal/common"
	"github.com/choiwab/patient-x/pxchain/internal/common/global"
	"github.com/choiwab/patient-x/pxchain/messenger"
	"github.com/choiwab/patient-x/pxchain/utils"

	"github.com/hyperledger/fabric/core/chaincode/shim"
	"github.com/hyperledger/fabric/protos/peer"
	"github.com/pkg/errors"
)

var logger = shim.NewLogger("chaincode")

// Function is a chaincode entry point.
type Function func(stub cached_stub.CachedStubInterface, caller data_model.Identity, args []string) ([]byte, error)

// InitFunction initializes the packages of one ledger.
type InitFunction func(stub cached_stub.CachedStubInterface, config data_model.LedgerConfig, logLevel shim.LoggingLevel) error

// FailureHandler resolves an undelivered outbox message.
type FailureHandler func(stub cached_stub.CachedStubInterface, failure data_model.DeliveryFailure) error

// TickFunction runs the periodic work of a ledger.
type TickFunction func(stub cached_stub.CachedStubInterface) ([]byte, error)

// Router implements shim.Chaincode for one ledger.
type Router struct {
	ledger    string
	init      InitFunction
	functions map[string]Function
	receivers map[string]messenger.Handler
	failures  map[string]FailureHandler
	tick      TickFunction
}

// NewRouter returns a router for ledger with the common functions registered.
func NewRouter(ledger string, init InitFunction) *Router {
	r := &Router{
		ledger:    ledger,
		init:      init,
		functions: make(map[string]Function),
		receivers: make(map[string]messenger.Handler),
		failures:  make(map[string]FailureHandler),
	}
	r.Function("Deliver", r.deliver)
	r.Function("DeliveryFailed", r.deliveryFailed)
	r.Function("Tick", r.runTick)
	r.Function("GetOutbox", messenger.GetOutbox)
	r.Function("GetEvents", history.GetEvents)
	r.Function("RegisterIdentity", identity.RegisterIdentity)
	r.Function("SetVerified", identity.SetVerified)
	r.Function("GetIdentity", identity.GetIdentity)
	return r
}

// Function registers fn under name.
func (r *Router) Function(name string, fn Function) *Router {
	r.functions[name] = fn
	return r
}

// Receiver registers the handler of inbound messages of kind. The handler applies the
// message through messenger.Receive, so a redelivery is not applied twice.
func (r *Router) Receiver(kind string, handler messenger.Handler) *Router {
	r.receivers[kind] = handler
	return r
}

// OnDeliveryFailed registers the handler of undelivered outbox messages of kind.
func (r *Router) OnDeliveryFailed(kind string, handler FailureHandler) *Router {
	r.failures[kind] = handler
	return r
}

// OnTick registers the periodic work of the ledger.
func (r *Router) OnTick(tick TickFunction) *Router {
	r.tick = tick
	return r
}

// Functions returns the names of the registered functions.
func (r *Router) Functions() []string {
	names := make([]string, 0, len(r.functions))
	for name := range r.functions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Init stores the ledger config and initializes the packages of the ledger.
func (r *Router) Init(stub shim.ChaincodeStubInterface) peer.Response {
	cstub := cached_stub.NewCachedStub(stub, true, true)
	config, logLevel, err := init_common.InitSetup(cstub)
	if err != nil {
		return shim.Error(custom_errors.DescribeJSON(err))
	}
	if config.Ledger != r.ledger {
		err := errors.WithStack(&custom_errors.InvalidArgumentError{Argument: "config.ledger", Reason: "chaincode serves " + r.ledger})
		logger.Errorf("%v", err)
		return shim.Error(custom_errors.DescribeJSON(err))
	}
	if r.init != nil {
		if err := r.init(cstub, config, logLevel); err != nil {
			return shim.Error(custom_errors.DescribeJSON(err))
		}
	}
	if err := cstub.Flush(); err != nil {
		return shim.Error(custom_errors.DescribeJSON(err))
	}
	return shim.Success(nil)
}

// Invoke routes the invocation to the registered function.
func (r *Router) Invoke(stub shim.ChaincodeStubInterface) peer.Response {
	cstub := cached_stub.NewCachedStub(stub, true, true)
	caller, function, args, err := init_common.InvokeSetup(cstub)
	if err != nil {
		return shim.Error(custom_errors.DescribeJSON(err))
	}
	fn, ok := r.functions[function]
	if !ok {
		err := errors.WithStack(&custom_errors.UnknownFunctionError{Function: function})
		logger.Errorf("%v", err)
		return shim.Error(custom_errors.DescribeJSON(err))
	}

	result, err := fn(cstub, caller, args)
	if err != nil {
		logger.Errorf("%v failed for %v: %v", function, caller.ID, err)
		return shim.Error(custom_errors.DescribeJSON(err))
	}
	if err := cstub.Flush(); err != nil {
		return shim.Error(custom_errors.DescribeJSON(err))
	}
	return shim.Success(result)
}

// deliver applies an inbound message. Returns {"applied": bool}; false means the
// message had already been processed.
func (r *Router) deliver(stub cached_stub.CachedStubInterface, caller data_model.Identity, args []string) ([]byte, error) {
	defer utils.ExitFnLogger(logger, utils.EnterFnLogger(logger))
	if err := requireRelay(stub, caller, false); err != nil {
		return nil, err
	}
	if len(args) != 1 {
		return nil, argsError("expected [message]")
	}
	msg := data_model.Message{}
	if err := common.UnmarshalJSON([]byte(args[0]), &msg, "Message"); err != nil {
		return nil, err
	}
	handler, ok := r.receivers[msg.Kind]
	if !ok {
		custom_err := &custom_errors.InvalidArgumentError{Argument: "message.kind", Reason: r.ledger + " does not accept " + msg.Kind}
		logger.Errorf("%v", custom_err)
		return nil, errors.WithStack(custom_err)
	}
	// receivers dedupe through messenger.Receive themselves, and some answer a
	// duplicate again with the stored reply
	processed, err := messenger.IsProcessed(stub, msg.From, msg.Kind, msg.CorrelationID)
	if err != nil {
		return nil, err
	}
	if err := handler(stub, msg); err != nil {
		return nil, err
	}
	return json.Marshal(map[string]bool{"applied": !processed})
}

// deliveryFailed records an undelivered message and resolves it once.
func (r *Router) deliveryFailed(stub cached_stub.CachedStubInterface, caller data_model.Identity, args []string) ([]byte, error) {
	defer utils.ExitFnLogger(logger, utils.EnterFnLogger(logger))
	if err := requireRelay(stub, caller, false); err != nil {
		return nil, err
	}
	if len(args) != 1 {
		return nil, argsError("expected [failure]")
	}
	failure := data_model.DeliveryFailure{}
	if err := common.UnmarshalJSON([]byte(args[0]), &failure, "DeliveryFailure"); err != nil {
		return nil, err
	}
	recorded, err := messenger.RecordFailure(stub, failure)
	if err != nil || !recorded {
		return nil, err
	}
	if handler, ok := r.failures[failure.Message.Kind]; ok {
		if err := handler(stub, failure); err != nil {
			return nil, err
		}
	}
	return nil, nil
}

func (r *Router) runTick(stub cached_stub.CachedStubInterface, caller data_model.Identity, args []string) ([]byte, error) {
	defer utils.ExitFnLogger(logger, utils.EnterFnLogger(logger))
	if err := requireRelay(stub, caller, true); err != nil {
		return nil, err
	}
	if r.tick == nil {
		return nil, nil
	}
	return r.tick(stub)
}

// requireRelay checks that caller is the relay of the ledger, or the admin when
// allowAdmin is set.
func requireRelay(stub cached_stub.CachedStubInterface, caller data_model.Identity, allowAdmin bool) error {
	config, err := common.GetLedgerConfig(stub)
	if err != nil {
		return err
	}
	if caller.ID == config.RelayID || caller.Role == global.ROLE_RELAY {
		return nil
	}
	if allowAdmin && caller.ID == config.AdminID {
		return nil
	}
	custom_err := &custom_errors.MissingRoleError{CallerID: caller.ID, Roles: []string{global.ROLE_RELAY}}
	logger.Errorf("%v", custom_err)
	return errors.WithStack(custom_err)
}

func argsError(reason string) error {
	custom_err := &custom_errors.InvalidArgumentError{Argument: "args", Reason: reason}
	logger.Errorf("%v", custom_err)
	return errors.WithStack(custom_err)
}
