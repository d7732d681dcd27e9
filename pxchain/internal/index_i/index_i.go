/*******************************************************************************
 *
 *
 * (c) Copyright Merative US L.P. and others 2020-2022
 *
 * SPDX-Licence-Identifier: Apache 2.0
 *
 *******************************************************************************/

// Package index_i implements index tables on top of composite keys.
package index_i

import (
	"github.com/choiwab/patient-x/pxchain/cached_stub"
	"github.com/choiwab/patient-x/pxchain/custom_errors"
	"github.com/choiwab/patient-x/pxchain/index/table_interface"
	"github.com/choiwab/patient-x/pxchain/internal/common"
	"github.com/choiwab/patient-x/pxchain/internal/common/global"
	"github.com/choiwab/patient-x/pxchain/utils"

	"github.com/hyperledger/fabric/core/chaincode/shim"
	"github.com/pkg/errors"
)

var logger = shim.NewLogger("index_i")

// Init sets up the index package.
func Init(stub cached_stub.CachedStubInterface, logLevel ...shim.LoggingLevel) ([]byte, error) {
	if len(logLevel) > 0 {
		logger.SetLevel(logLevel[0])
	}
	return nil, nil
}

type table struct {
	stub cached_stub.CachedStubInterface
	name string
}

// GetTable returns the index table with the given name.
func GetTable(stub cached_stub.CachedStubInterface, name string) table_interface.Table {
	return &table{stub: stub, name: name}
}

func (t *table) GetName() string {
	return t.name
}

func (t *table) key(values []string) (string, error) {
	if len(values) == 0 {
		custom_err := &custom_errors.InvalidArgumentError{Argument: "values", Reason: "index row needs at least one field"}
		logger.Errorf("%v", custom_err)
		return "", errors.WithStack(custom_err)
	}
	return common.CompositeKey(t.stub, t.name, values...)
}

func (t *table) PutRow(values ...string) error {
	defer utils.ExitFnLogger(logger, utils.EnterFnLogger(logger))
	key, err := t.key(values)
	if err != nil {
		return err
	}
	logger.Debugf("index %v put %v", t.name, values)
	if err := t.stub.PutState(key, global.INDEX_MARKER); err != nil {
		custom_err := &custom_errors.PutLedgerError{LedgerKey: key}
		logger.Errorf("%v: %v", custom_err, err)
		return errors.Wrap(err, custom_err.Error())
	}
	return nil
}

func (t *table) DeleteRow(values ...string) error {
	defer utils.ExitFnLogger(logger, utils.EnterFnLogger(logger))
	key, err := t.key(values)
	if err != nil {
		return err
	}
	logger.Debugf("index %v delete %v", t.name, values)
	return common.DelKey(t.stub, key)
}

func (t *table) HasRow(values ...string) (bool, error) {
	key, err := t.key(values)
	if err != nil {
		return false, err
	}
	value, err := t.stub.GetState(key)
	if err != nil {
		custom_err := &custom_errors.GetLedgerError{LedgerKey: key, LedgerItem: "index row"}
		logger.Errorf("%v: %v", custom_err, err)
		return false, errors.Wrap(err, custom_err.Error())
	}
	return len(value) > 0, nil
}

func (t *table) GetRowsByPartialKey(values ...string) ([][]string, error) {
	defer utils.ExitFnLogger(logger, utils.EnterFnLogger(logger))
	rows := [][]string{}
	err := common.ForEachByPartialKey(t.stub, t.name, values, func(attrs []string, value []byte) error {
		rows = append(rows, attrs)
		return nil
	})
	return rows, err
}

func (t *table) GetLastFieldByPartialKey(values ...string) ([]string, error) {
	rows, err := t.GetRowsByPartialKey(values...)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(rows))
	for _, row := range rows {
		if len(row) > 0 {
			ids = append(ids, row[len(row)-1])
		}
	}
	return ids, nil
}
