/*******************************************************************************
 *
 *
 * (c) Copyright Merative US L.P. and others 2020-2022
 *
 * SPDX-Licence-Identifier: Apache 2.0
 *
 *******************************************************************************/

// package common contains structs and functions to be used across all
// pxchain packages.
//
// In common package, only the following pxchain packages are allowed to be imported:
//	"github.com/choiwab/patient-x/pxchain/cached_stub"
//	"github.com/choiwab/patient-x/pxchain/custom_errors"
//	"github.com/choiwab/patient-x/pxchain/data_model"
//	"github.com/choiwab/patient-x/pxchain/internal/common/global"
//	"github.com/choiwab/patient-x/pxchain/utils"
//
package common

import (
	"encoding/json"

	"github.com/choiwab/patient-x/pxchain/cached_stub"
	"github.com/choiwab/patient-x/pxchain/custom_errors"
	"github.com/choiwab/patient-x/pxchain/data_model"
	"github.com/choiwab/patient-x/pxchain/internal/common/global"
	"github.com/choiwab/patient-x/pxchain/utils"

	"github.com/hyperledger/fabric/core/chaincode/shim"
	"github.com/pkg/errors"
)

var logger = shim.NewLogger("common")

// PutJSON marshals value and saves it under key.
func PutJSON(stub cached_stub.CachedStubInterface, key string, value interface{}, typeName string) error {
	bytes, err := json.Marshal(value)
	if err != nil {
		custom_err := &custom_errors.MarshalError{Type: typeName}
		logger.Errorf("%v: %v", custom_err, err)
		return errors.Wrap(err, custom_err.Error())
	}
	if err := stub.PutState(key, bytes); err != nil {
		custom_err := &custom_errors.PutLedgerError{LedgerKey: key}
		logger.Errorf("%v: %v", custom_err, err)
		return errors.Wrap(err, custom_err.Error())
	}
	return nil
}

// GetJSON reads key into value. It returns false if the key does not exist.
func GetJSON(stub cached_stub.CachedStubInterface, key string, value interface{}, typeName string) (bool, error) {
	bytes, err := stub.GetState(key)
	if err != nil {
		custom_err := &custom_errors.GetLedgerError{LedgerKey: key, LedgerItem: typeName}
		logger.Errorf("%v: %v", custom_err, err)
		return false, errors.Wrap(err, custom_err.Error())
	}
	if len(bytes) == 0 {
		return false, nil
	}
	if err := json.Unmarshal(bytes, value); err != nil {
		custom_err := &custom_errors.UnmarshalError{Type: typeName}
		logger.Errorf("%v: %v", custom_err, err)
		return false, errors.Wrap(err, custom_err.Error())
	}
	return true, nil
}

// UnmarshalJSON decodes a stored value, typically one returned by a range query.
func UnmarshalJSON(bytes []byte, value interface{}, typeName string) error {
	if err := json.Unmarshal(bytes, value); err != nil {
		custom_err := &custom_errors.UnmarshalError{Type: typeName}
		logger.Errorf("%v: %v", custom_err, err)
		return errors.Wrap(err, custom_err.Error())
	}
	return nil
}

// DelKey deletes key from the ledger.
func DelKey(stub cached_stub.CachedStubInterface, key string) error {
	if err := stub.DelState(key); err != nil {
		custom_err := &custom_errors.DeleteLedgerError{LedgerKey: key}
		logger.Errorf("%v: %v", custom_err, err)
		return errors.Wrap(err, custom_err.Error())
	}
	return nil
}

// CompositeKey creates a composite key of objectType and attributes.
func CompositeKey(stub cached_stub.CachedStubInterface, objectType string, attributes ...string) (string, error) {
	key, err := stub.CreateCompositeKey(objectType, attributes)
	if err != nil {
		custom_err := &custom_errors.CreateCompositeKeyError{Type: objectType}
		logger.Errorf("%v: %v", custom_err, err)
		return "", errors.Wrap(err, custom_err.Error())
	}
	return key, nil
}

// ForEachByPartialKey calls fn with the attributes and value of every key matching the
// partial composite key, in key order. Iteration stops at the first error.
func ForEachByPartialKey(stub cached_stub.CachedStubInterface, objectType string, attributes []string, fn func(attrs []string, value []byte) error) error {
	iter, err := stub.GetStateByPartialCompositeKey(objectType, attributes)
	if err != nil {
		custom_err := &custom_errors.GetLedgerError{LedgerKey: objectType, LedgerItem: "partial composite key"}
		logger.Errorf("%v: %v", custom_err, err)
		return errors.Wrap(err, custom_err.Error())
	}
	defer iter.Close()
	for iter.HasNext() {
		kv, err := iter.Next()
		if err != nil {
			custom_err := &custom_errors.IterError{}
			logger.Errorf("%v: %v", custom_err, err)
			return errors.Wrap(err, custom_err.Error())
		}
		_, attrs, err := stub.SplitCompositeKey(kv.Key)
		if err != nil {
			custom_err := &custom_errors.SplitCompositeKeyError{Key: kv.Key}
			logger.Errorf("%v: %v", custom_err, err)
			return errors.Wrap(err, custom_err.Error())
		}
		if err := fn(attrs, kv.Value); err != nil {
			return err
		}
	}
	return nil
}

// NextSeq increments the counter stored under key and returns the new value.
// Counters start at 1.
func NextSeq(stub cached_stub.CachedStubInterface, key string) (uint64, error) {
	var seq uint64
	if _, err := GetJSON(stub, key, &seq, "sequence"); err != nil {
		return 0, err
	}
	seq++
	if err := PutJSON(stub, key, seq, "sequence"); err != nil {
		return 0, err
	}
	return seq, nil
}

// PutLedgerConfig saves the ledger config.
func PutLedgerConfig(stub cached_stub.CachedStubInterface, config data_model.LedgerConfig) error {
	stub.DelCache(global.LEDGER_CONFIG_KEY)
	return PutJSON(stub, global.LEDGER_CONFIG_KEY, config, "LedgerConfig")
}

// GetLedgerConfig returns the ledger config with defaults applied.
func GetLedgerConfig(stub cached_stub.CachedStubInterface) (data_model.LedgerConfig, error) {
	config := data_model.LedgerConfig{}
	if cached, err := stub.GetCache(global.LEDGER_CONFIG_KEY); err == nil {
		if c, ok := cached.(data_model.LedgerConfig); ok {
			return c, nil
		}
	}
	if _, err := GetJSON(stub, global.LEDGER_CONFIG_KEY, &config, "LedgerConfig"); err != nil {
		return config, err
	}
	config = ApplyConfigDefaults(config)
	stub.PutCache(global.LEDGER_CONFIG_KEY, config)
	return config, nil
}

// ApplyConfigDefaults fills the unset fields of config.
func ApplyConfigDefaults(config data_model.LedgerConfig) data_model.LedgerConfig {
	if utils.IsStringEmpty(config.ConsentLedger) {
		config.ConsentLedger = global.LEDGER_CONSENT
	}
	if utils.IsStringEmpty(config.RecordLedger) {
		config.RecordLedger = global.LEDGER_HEALTH
	}
	if config.ConsentTimeout <= 0 {
		config.ConsentTimeout = global.DEFAULT_CONSENT_TIMEOUT
	}
	if config.RetryBudget <= 0 {
		config.RetryBudget = global.DEFAULT_RETRY_BUDGET
	}
	if config.Ledger == global.LEDGER_CONSENT && config.Subscribers == nil {
		config.Subscribers = []string{global.LEDGER_HEALTH}
	}
	return config
}
