/*******************************************************************************
 *
 *
 * (c) Copyright Merative US L.P. and others 2020-2022
 *
 * SPDX-Licence-Identifier: Apache 2.0
 *
 *******************************************************************************/

package test_utils

import (
	"testing"

	"github.com/golang/protobuf/ptypes/timestamp"
	"github.com/hyperledger/fabric/core/chaincode/shim"
	"github.com/hyperledger/fabric/protos/peer"
	"github.com/pkg/errors"
)

func copyData(a []byte) []byte {
	if len(a) == 0 {
		return nil
	}
	b := make([]byte, len(a))
	copy(b, a)
	return b
}

// MockChaincode is a mock chaincode.
type MockChaincode struct {
}

// Init is mocked for MockChaincode.
func (t *MockChaincode) Init(shim.ChaincodeStubInterface) peer.Response {
	return shim.Success(nil)
}

// Invoke is mocked for MockChaincode.
func (t *MockChaincode) Invoke(stub shim.ChaincodeStubInterface) peer.Response {
	return shim.Success(nil)
}

// createMockStub creates a mock stub.
func createMockStub(t *testing.T, name string) *shim.MockStub {
	if len(name) == 0 {
		name = "mockStub"
	}
	stub := shim.NewMockStub(name, new(MockChaincode))
	AssertTrue(t, stub != nil, "MockStub creation failed")
	return stub
}

// MisbehavingMockStub returns errors for GetState, PutState, and DelState.
type MisbehavingMockStub struct {
	*shim.MockStub
}

// GetState returns an error for a MisbehavingMockStub.
func (stub *MisbehavingMockStub) GetState(key string) ([]byte, error) {
	return nil, errors.New("Misbehaving stub error!")
}

// GetStateByPartialCompositeKey returns an error for a MisbehavingMockStub.
func (stub *MisbehavingMockStub) GetStateByPartialCompositeKey(key string, value []string) (shim.StateQueryIteratorInterface, error) {
	return nil, errors.New("Misbehaving stub error!")
}

// PutState returns an error for a MisbehavingMockStub.
func (stub *MisbehavingMockStub) PutState(key string, value []byte) error {
	return errors.New("Misbehaving stub error!")
}

// DelState returns an error for a MisbehavingMockStub.
func (stub *MisbehavingMockStub) DelState(key string) error {
	return errors.New("Misbehaving stub error!")
}

// CreateMisbehavingMockStub returns a misbehaving mock stub which returns errors for GetState, PutState, and DelState.
func CreateMisbehavingMockStub(t *testing.T) *MisbehavingMockStub {
	return &MisbehavingMockStub{MockStub: createMockStub(t, "")}
}

// NewMockStub is a mock stub that buffers the writes of a transaction until
// MockTransactionEnd, like a peer only commits a transaction's write set after
// endorsement. Reads see committed state only.
// The transaction clock can be fixed with SetTime so time-dependent logic is testable.
type NewMockStub struct {
	*shim.MockStub
	cache   map[string][]byte
	deleted map[string]bool
	args    [][]byte
	cc      shim.Chaincode
	now     int64
}

// GetState returns an item stored in NewMockStub.
func (stub *NewMockStub) GetState(key string) ([]byte, error) {
	item := copyData(stub.State[key])
	return item, nil
}

// PutState adds a value for a mock stub.
func (stub *NewMockStub) PutState(key string, val []byte) error {
	if len(stub.TxID) == 0 {
		return errors.New("cannot PutState without a transaction - call stub.MockTransactionStart()?")
	}
	stub.cache[key] = copyData(val)
	stub.deleted[key] = false
	return nil
}

// DelState deletes a value for a mock stub.
func (stub *NewMockStub) DelState(key string) error {
	if len(stub.TxID) == 0 {
		return errors.New("cannot DelState without a transaction - call stub.MockTransactionStart()?")
	}
	stub.cache[key] = nil
	stub.deleted[key] = true
	return nil
}

// SetTime fixes the timestamp (unix seconds) of subsequent transactions.
// Zero restores the wall clock.
func (stub *NewMockStub) SetTime(now int64) {
	stub.now = now
}

// AdvanceTime moves the fixed transaction clock forward by seconds.
func (stub *NewMockStub) AdvanceTime(seconds int64) {
	stub.now += seconds
}

// Now returns the fixed transaction clock.
func (stub *NewMockStub) Now() int64 {
	return stub.now
}

// MockTransactionStart starts a transaction.
func (stub *NewMockStub) MockTransactionStart(txid string) {
	//reset state
	stub.cache = make(map[string][]byte)
	stub.deleted = make(map[string]bool)

	stub.MockStub.MockTransactionStart(txid)
	if stub.now != 0 {
		stub.MockStub.TxTimestamp = &timestamp.Timestamp{Seconds: stub.now}
	}
	logger.Infof(">>>>>>> starting transaction: %v", txid)
}

// MockTransactionEnd commits the buffered writes and ends the transaction.
func (stub *NewMockStub) MockTransactionEnd(txid string) {
	//save to state
	for k, d := range stub.deleted {
		if d {
			if err := stub.MockStub.DelState(k); err != nil {
				logger.Errorf("%v", err)
			}
		} else if err := stub.MockStub.PutState(k, stub.cache[k]); err != nil {
			logger.Errorf("%v", err)
		}
	}
	stub.MockTransactionAbort(txid)
	logger.Infof("<<<<<<< ending transaction: %v", txid)
}

// MockTransactionAbort drops the buffered writes and ends the transaction.
func (stub *NewMockStub) MockTransactionAbort(txid string) {
	stub.cache = make(map[string][]byte)
	stub.deleted = make(map[string]bool)
	stub.args = [][]byte{}
	stub.MockStub.MockTransactionEnd(txid)
}

// GetArgs returns arguments.
func (stub *NewMockStub) GetArgs() [][]byte {
	return stub.args
}

// GetStringArgs returns a slice of arguments.
func (stub *NewMockStub) GetStringArgs() []string {
	args := stub.GetArgs()
	strargs := make([]string, 0, len(args))
	for _, barg := range args {
		strargs = append(strargs, string(barg))
	}
	return strargs
}

// GetFunctionAndParameters returns function name and parameters.
func (stub *NewMockStub) GetFunctionAndParameters() (function string, params []string) {
	allargs := stub.GetStringArgs()
	function = ""
	params = []string{}
	if len(allargs) >= 1 {
		function = allargs[0]
		params = allargs[1:]
	}
	return
}

// MockInit initializes the chaincode in its own transaction.
func (stub *NewMockStub) MockInit(txid string, args [][]byte) peer.Response {
	stub.MockTransactionStart(txid)
	stub.args = args
	res := stub.cc.Init(stub)
	stub.finish(txid, res)
	return res
}

// MockInvoke invokes the chaincode in its own transaction. Writes are committed only
// when the response status is OK.
func (stub *NewMockStub) MockInvoke(txid string, args [][]byte) peer.Response {
	stub.MockTransactionStart(txid)
	stub.args = args
	res := stub.cc.Invoke(stub)
	stub.finish(txid, res)
	return res
}

// MockInvokeStrings is MockInvoke with string arguments.
func (stub *NewMockStub) MockInvokeStrings(txid string, args ...string) peer.Response {
	bargs := make([][]byte, 0, len(args))
	for _, a := range args {
		bargs = append(bargs, []byte(a))
	}
	return stub.MockInvoke(txid, bargs)
}

func (stub *NewMockStub) finish(txid string, res peer.Response) {
	if res.Status == shim.OK {
		stub.MockTransactionEnd(txid)
	} else {
		stub.MockTransactionAbort(txid)
	}
}

// CreateNewMockStub returns a mock stub.
// options = [name string, cc shim.Chaincode]
func CreateNewMockStub(t *testing.T, options ...interface{}) *NewMockStub {
	var name string = ""
	var cc shim.Chaincode = new(MockChaincode)
	if len(options) >= 1 {
		if val, ok := options[0].(string); ok {
			name = val
		}
	}
	if len(options) >= 2 {
		if val, ok := options[1].(shim.Chaincode); ok {
			cc = val
		}
	}
	return &NewMockStub{MockStub: createMockStub(t, name), cache: make(map[string][]byte), deleted: make(map[string]bool), cc: cc}
}
