/*******************************************************************************
 *
 *
 * (c) Copyright Merative US L.P. and others 2020-2022
 *
 * SPDX-Licence-Identifier: Apache 2.0
 *
 *******************************************************************************/

// Package cached_stub is used for caching ledger data and arbitrary data within a
// transaction, and for buffering writes so that a failed operation leaves no partial
// state behind.
//
// Writes made through a cached stub are always visible to later reads through the same
// stub, including partial composite key queries. With deferred writes enabled, nothing
// reaches the underlying stub until Flush is called.
package cached_stub

import (
	"sort"
	"strings"

	"github.com/choiwab/patient-x/pxchain/custom_errors"

	"github.com/hyperledger/fabric/core/chaincode/shim"
	"github.com/hyperledger/fabric/protos/ledger/queryresult"
	"github.com/pkg/errors"
)

var logger = shim.NewLogger("cached_stub")

// CachedStubInterface extends Fabric Shim's ChaincodeStubInterface, please refer to Shim's docs for more info.
type CachedStubInterface interface {
	shim.ChaincodeStubInterface

	// GetCache gets a stored object (interface{}) from the cache.
	// Returns nil and an error if key does not exist in the cache.
	GetCache(key string) (interface{}, error)

	// PutCache stores an object as an interface in the cache.
	PutCache(key string, value interface{}) error

	// DelCache deletes an object from the cache.
	DelCache(key string) error

	// Flush writes buffered state changes to the underlying stub in key order.
	// It is a no-op when writes are not deferred.
	Flush() error

	// PendingWrites returns the number of buffered state changes.
	PendingWrites() int
}

// NewCachedStub creates a new instance of cachedStub
//
// options: enable_get_cache (default: true), defer_writes (default: false)
// cache for storing arbitrary data is always enabled
func NewCachedStub(stub shim.ChaincodeStubInterface, options ...bool) CachedStubInterface {
	enable_get_cache := true
	defer_writes := false
	if len(options) >= 1 {
		enable_get_cache = options[0]
	}
	if len(options) >= 2 {
		defer_writes = options[1]
	}
	return &cachedStub{
		ChaincodeStubInterface: stub,
		stub:                   stub,
		read_cache:             make(map[string][]byte),
		written:                make(map[string][]byte),
		deleted:                make(map[string]bool),
		cache:                  make(map[string]interface{}),
		enable_get_cache:       enable_get_cache,
		defer_writes:           defer_writes,
	}
}

// cachedStub extends ChaincodeStubInterface and implements
// caching for both ledger data and arbitrary data.
type cachedStub struct {
	shim.ChaincodeStubInterface

	stub             shim.ChaincodeStubInterface
	read_cache       map[string][]byte
	written          map[string][]byte
	deleted          map[string]bool
	cache            map[string]interface{}
	enable_get_cache bool
	defer_writes     bool
}

func copyBytes(value []byte) []byte {
	if value == nil {
		return nil
	}
	tmp := make([]byte, len(value))
	copy(tmp, value)
	return tmp
}

// GetState returns the value of key, preferring values written in this transaction,
// then the read cache, then the ledger.
func (stub *cachedStub) GetState(key string) ([]byte, error) {
	if stub.deleted[key] {
		return nil, nil
	}
	if val, ok := stub.written[key]; ok {
		return copyBytes(val), nil
	}
	if stub.enable_get_cache {
		if val, ok := stub.read_cache[key]; ok {
			logger.Debugf("return from cache %v", key)
			return copyBytes(val), nil
		}
	}

	value, err := stub.stub.GetState(key)
	if err != nil {
		return nil, err
	}
	if stub.enable_get_cache {
		stub.read_cache[key] = copyBytes(value)
	}
	return value, nil
}

// PutState saves the key value pair, either directly or to the write buffer.
func (stub *cachedStub) PutState(key string, value []byte) error {
	if len(value) == 0 {
		return stub.DelState(key)
	}
	if !stub.defer_writes {
		if err := stub.stub.PutState(key, value); err != nil {
			return err
		}
	}
	stub.written[key] = copyBytes(value)
	delete(stub.deleted, key)
	return nil
}

// DelState deletes key, either directly or in the write buffer.
func (stub *cachedStub) DelState(key string) error {
	if !stub.defer_writes {
		if err := stub.stub.DelState(key); err != nil {
			return err
		}
	}
	delete(stub.written, key)
	stub.deleted[key] = true
	return nil
}

// Flush writes the buffered changes to the underlying stub.
func (stub *cachedStub) Flush() error {
	if !stub.defer_writes {
		return nil
	}
	keys := make([]string, 0, len(stub.written)+len(stub.deleted))
	for k := range stub.written {
		keys = append(keys, k)
	}
	for k := range stub.deleted {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if stub.deleted[k] {
			if err := stub.stub.DelState(k); err != nil {
				custom_err := &custom_errors.DeleteLedgerError{LedgerKey: k}
				logger.Errorf("%v: %v", custom_err, err)
				return errors.Wrap(err, custom_err.Error())
			}
			continue
		}
		if err := stub.stub.PutState(k, stub.written[k]); err != nil {
			custom_err := &custom_errors.PutLedgerError{LedgerKey: k}
			logger.Errorf("%v: %v", custom_err, err)
			return errors.Wrap(err, custom_err.Error())
		}
	}
	logger.Debugf("flushed %v keys", len(keys))
	stub.written = make(map[string][]byte)
	stub.deleted = make(map[string]bool)
	return nil
}

// PendingWrites returns the number of buffered changes.
func (stub *cachedStub) PendingWrites() int {
	if !stub.defer_writes {
		return 0
	}
	return len(stub.written) + len(stub.deleted)
}

// GetStateByPartialCompositeKey merges the ledger range with changes made in this
// transaction and returns the result in key order.
func (stub *cachedStub) GetStateByPartialCompositeKey(objectType string, attributes []string) (shim.StateQueryIteratorInterface, error) {
	prefix, err := stub.stub.CreateCompositeKey(objectType, attributes)
	if err != nil {
		custom_err := &custom_errors.CreateCompositeKeyError{Type: objectType}
		logger.Errorf("%v: %v", custom_err, err)
		return nil, errors.Wrap(err, custom_err.Error())
	}
	iter, err := stub.stub.GetStateByPartialCompositeKey(objectType, attributes)
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	merged := make(map[string][]byte)
	for iter.HasNext() {
		kv, err := iter.Next()
		if err != nil {
			custom_err := &custom_errors.IterError{}
			logger.Errorf("%v: %v", custom_err, err)
			return nil, errors.Wrap(err, custom_err.Error())
		}
		merged[kv.Key] = kv.Value
	}
	for k, v := range stub.written {
		if strings.HasPrefix(k, prefix) {
			merged[k] = v
		}
	}
	for k := range stub.deleted {
		delete(merged, k)
	}

	keys := make([]string, 0, len(merged))
	for k := range merged {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	kvs := make([]*queryresult.KV, 0, len(keys))
	for _, k := range keys {
		kvs = append(kvs, &queryresult.KV{Key: k, Value: copyBytes(merged[k])})
	}
	return &sliceIter{kvs: kvs}, nil
}

// GetCache gets a stored object from the cache.
func (stub *cachedStub) GetCache(key string) (interface{}, error) {
	if val, ok := stub.cache[key]; ok {
		return val, nil
	}
	return nil, errors.New("Cache doesn't exist")
}

// PutCache stores an object in the cache.
func (stub *cachedStub) PutCache(key string, value interface{}) error {
	stub.cache[key] = value
	return nil
}

// DelCache deletes an object from the cache.
func (stub *cachedStub) DelCache(key string) error {
	delete(stub.cache, key)
	return nil
}

// sliceIter iterates over a fixed list of key/value pairs.
type sliceIter struct {
	kvs    []*queryresult.KV
	pos    int
	closed bool
}

func (it *sliceIter) HasNext() bool {
	return !it.closed && it.pos < len(it.kvs)
}

func (it *sliceIter) Next() (*queryresult.KV, error) {
	if !it.HasNext() {
		return nil, errors.WithStack(&custom_errors.IterError{})
	}
	kv := it.kvs[it.pos]
	it.pos++
	return kv, nil
}

func (it *sliceIter) Close() error {
	it.closed = true
	return nil
}
