/*******************************************************************************
 *
 *
 * (c) Copyright Merative US L.P. and others 2020-2022
 *
 * SPDX-Licence-Identifier: Apache 2.0
 *
 *******************************************************************************/

// Package gateway exposes ledgers to the off-ledger tools.
//
// A Ledger is anything that can run a chaincode function: a MemoryLedger running a
// chaincode in process, or a Client talking to the HTTP front served by NewHandler.
// Failed invocations return a custom_errors.ErrorDescriptor.
package gateway

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/choiwab/patient-x/pxchain/custom_errors"
	"github.com/choiwab/patient-x/pxchain/data_model"

	"github.com/google/uuid"
	"github.com/hyperledger/fabric/core/chaincode/shim"
	"github.com/pkg/errors"
)

var logger = shim.NewLogger("gateway")

// Ledger runs chaincode functions on behalf of caller.
type Ledger interface {
	Invoke(ctx context.Context, caller string, function string, args ...string) ([]byte, error)
}

// MemoryLedger runs a chaincode against an in-memory world state. Invocations are
// serialized, so each one sees the committed result of the previous one.
type MemoryLedger struct {
	mu   sync.Mutex
	name string
	stub *shim.MockStub
}

// NewMemoryLedger returns a ledger running cc.
func NewMemoryLedger(name string, cc shim.Chaincode) *MemoryLedger {
	return &MemoryLedger{name: name, stub: shim.NewMockStub(name, cc)}
}

// Name returns the ledger name.
func (l *MemoryLedger) Name() string {
	return l.name
}

// Init instantiates the chaincode with config.
func (l *MemoryLedger) Init(ctx context.Context, config data_model.LedgerConfig) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	configBytes, err := json.Marshal(config)
	if err != nil {
		return errors.Wrap(err, "marshal ledger config")
	}
	args := [][]byte{[]byte("init")}
	if len(config.LogLevel) > 0 {
		args = append(args, []byte("_loglevel"), []byte(config.LogLevel))
	}
	args = append(args, configBytes)

	l.mu.Lock()
	defer l.mu.Unlock()
	res := l.stub.MockInit(uuid.New().String(), args)
	if res.Status != shim.OK {
		return custom_errors.ParseDescriptor(res.Message)
	}
	logger.Infof("ledger %v initialized", l.name)
	return nil
}

// Invoke runs function as caller.
func (l *MemoryLedger) Invoke(ctx context.Context, caller string, function string, args ...string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	all := make([][]byte, 0, len(args)+2)
	all = append(all, []byte(function), []byte(caller))
	for _, arg := range args {
		all = append(all, []byte(arg))
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	res := l.stub.MockInvoke(uuid.New().String(), all)
	if res.Status != shim.OK {
		return nil, custom_errors.ParseDescriptor(res.Message)
	}
	return res.Payload, nil
}
