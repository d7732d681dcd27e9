/*******************************************************************************
 *
 *
 * (c) Copyright Merative US L.P. and others 2020-2022
 *
 * SPDX-Licence-Identifier: Apache 2.0
 *
 *******************************************************************************/

package datastore_i

import (
	"github.com/choiwab/patient-x/pxchain/cached_stub"
	"github.com/choiwab/patient-x/pxchain/custom_errors"
	"github.com/choiwab/patient-x/pxchain/internal/common"
	"github.com/choiwab/patient-x/pxchain/internal/common/global"
	"github.com/choiwab/patient-x/pxchain/utils"

	"github.com/hyperledger/fabric/core/chaincode/shim"
	"github.com/ipfs/go-cid"
	mh "github.com/multiformats/go-multihash"
	"github.com/pkg/errors"
)

var logger = shim.NewLogger("datastore_i")

var refPrefix = cid.Prefix{
	Version:  1,
	Codec:    cid.Raw,
	MhType:   mh.SHA2_256,
	MhLength: -1,
}

// LedgerStore keeps content on the ledger under its CID.
type LedgerStore struct {
	stub cached_stub.CachedStubInterface
}

// Init sets up the datastore package.
func Init(stub cached_stub.CachedStubInterface, logLevel ...shim.LoggingLevel) ([]byte, error) {
	if len(logLevel) > 0 {
		logger.SetLevel(logLevel[0])
	}
	return nil, nil
}

// NewLedgerStore returns a content store on the ledger of stub.
func NewLedgerStore(stub cached_stub.CachedStubInterface) *LedgerStore {
	return &LedgerStore{stub: stub}
}

// ComputeRef returns the CIDv1 (raw, sha2-256) of blob.
func ComputeRef(blob []byte) (string, error) {
	c, err := refPrefix.Sum(blob)
	if err != nil {
		custom_err := &custom_errors.InvalidArgumentError{Argument: "content", Reason: err.Error()}
		logger.Errorf("%v", custom_err)
		return "", errors.WithStack(custom_err)
	}
	return c.String(), nil
}

// ValidateRef returns an error if ref does not parse as a CID with the store's prefix.
func ValidateRef(ref string) error {
	c, err := cid.Decode(ref)
	if err != nil {
		custom_err := &custom_errors.InvalidArgumentError{Argument: "content_ref", Reason: err.Error()}
		logger.Errorf("%v", custom_err)
		return errors.WithStack(custom_err)
	}
	prefix := c.Prefix()
	if prefix.Version != refPrefix.Version || prefix.Codec != refPrefix.Codec || prefix.MhType != refPrefix.MhType {
		custom_err := &custom_errors.InvalidArgumentError{Argument: "content_ref", Reason: "expected a raw sha2-256 CIDv1"}
		logger.Errorf("%v", custom_err)
		return errors.WithStack(custom_err)
	}
	return nil
}

// ComputeRef returns the reference blob would be stored under.
func (s *LedgerStore) ComputeRef(blob []byte) (string, error) {
	return ComputeRef(blob)
}

// Store saves blob and adds a pin.
func (s *LedgerStore) Store(blob []byte) (string, error) {
	defer utils.ExitFnLogger(logger, utils.EnterFnLogger(logger))

	if len(blob) == 0 {
		custom_err := &custom_errors.InvalidArgumentError{Argument: "content", Reason: "content is empty"}
		logger.Errorf("%v", custom_err)
		return "", errors.WithStack(custom_err)
	}
	ref, err := ComputeRef(blob)
	if err != nil {
		return "", err
	}
	pins, err := s.getPins(ref)
	if err != nil {
		return "", err
	}
	if pins == 0 {
		key, err := common.CompositeKey(s.stub, global.DATASTORE_BLOB_PREFIX, ref)
		if err != nil {
			return "", err
		}
		if err := s.stub.PutState(key, blob); err != nil {
			custom_err := &custom_errors.PutLedgerError{LedgerKey: key}
			logger.Errorf("%v: %v", custom_err, err)
			return "", errors.Wrap(err, custom_err.Error())
		}
	}
	logger.Debugf("stored %v (%v bytes, pins %v)", ref, len(blob), pins+1)
	return ref, s.putPins(ref, pins+1)
}

// Fetch returns the content of ref after checking it hashes to ref.
func (s *LedgerStore) Fetch(ref string) ([]byte, error) {
	defer utils.ExitFnLogger(logger, utils.EnterFnLogger(logger))

	key, err := common.CompositeKey(s.stub, global.DATASTORE_BLOB_PREFIX, ref)
	if err != nil {
		return nil, err
	}
	blob, err := s.stub.GetState(key)
	if err != nil {
		custom_err := &custom_errors.GetLedgerError{LedgerKey: key, LedgerItem: "blob"}
		logger.Errorf("%v: %v", custom_err, err)
		return nil, errors.Wrap(err, custom_err.Error())
	}
	if len(blob) == 0 {
		custom_err := &custom_errors.NotFoundError{Type: "Content", ID: ref}
		logger.Errorf("%v", custom_err)
		return nil, errors.WithStack(custom_err)
	}
	actual, err := ComputeRef(blob)
	if err != nil {
		return nil, err
	}
	if actual != ref {
		custom_err := &custom_errors.ContentMismatchError{ContentRef: ref}
		logger.Errorf("%v: hashes to %v", custom_err, actual)
		return nil, errors.WithStack(custom_err)
	}
	return blob, nil
}

// Unpin removes a pin of ref and drops the content with the last one.
// Unpinning unknown content is a no-op.
func (s *LedgerStore) Unpin(ref string) error {
	defer utils.ExitFnLogger(logger, utils.EnterFnLogger(logger))

	pins, err := s.getPins(ref)
	if err != nil || pins == 0 {
		return err
	}
	if pins > 1 {
		return s.putPins(ref, pins-1)
	}
	key, err := common.CompositeKey(s.stub, global.DATASTORE_BLOB_PREFIX, ref)
	if err != nil {
		return err
	}
	if err := common.DelKey(s.stub, key); err != nil {
		return err
	}
	pinKey, err := common.CompositeKey(s.stub, global.DATASTORE_PIN_PREFIX, ref)
	if err != nil {
		return err
	}
	logger.Debugf("dropped %v", ref)
	return common.DelKey(s.stub, pinKey)
}

func (s *LedgerStore) getPins(ref string) (uint64, error) {
	key, err := common.CompositeKey(s.stub, global.DATASTORE_PIN_PREFIX, ref)
	if err != nil {
		return 0, err
	}
	var pins uint64
	_, err = common.GetJSON(s.stub, key, &pins, "pins")
	return pins, err
}

func (s *LedgerStore) putPins(ref string, pins uint64) error {
	key, err := common.CompositeKey(s.stub, global.DATASTORE_PIN_PREFIX, ref)
	if err != nil {
		return err
	}
	return common.PutJSON(s.stub, key, pins, "pins")
}
