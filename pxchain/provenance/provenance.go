/*******************************************************************************
 *
 *
 * (c) Copyright Merative US L.P. and others 2020-2022
 *
 * SPDX-Licence-Identifier: Apache 2.0
 *
 *******************************************************************************/

// Package provenance keeps an append-only audit chain per record.
//
// Each event links to the previous one of the same record: its hash is sha256 over the
// previous hash and the event fields, starting from an all-zero genesis hash. Changing
// or dropping a stored event breaks every later link, which VerifyTrail detects.
//
// Other ledgers log activities with a provenance_log message and get the event hash
// back in a provenance_logged message with the same correlation id.
package provenance

import (
	"encoding/json"

	"github.com/choiwab/patient-x/pxchain/cached_stub"
	"github.com/choiwab/patient-x/pxchain/custom_errors"
	"github.com/choiwab/patient-x/pxchain/data_model"
	"github.com/choiwab/patient-x/pxchain/internal/provenance_i"
	"github.com/choiwab/patient-x/pxchain/utils"

	"github.com/hyperledger/fabric/core/chaincode/shim"
	"github.com/pkg/errors"
)

var logger = shim.NewLogger("provenance")

// Logger appends provenance events.
type Logger interface {
	// Append links event to the chain of recordRef and returns the event hash.
	Append(recordRef string, event data_model.ProvenanceEvent) (string, error)
}

// TrailReport is the result of verifying a record's chain.
// BrokenAt is the first bad link, 0 when the chain is intact.
type TrailReport struct {
	RecordRef string `json:"record_ref"`
	Length    int    `json:"length"`
	Intact    bool   `json:"intact"`
	BrokenAt  uint64 `json:"broken_at,omitempty"`
}

type ledgerLogger struct {
	stub cached_stub.CachedStubInterface
}

// Init sets up the provenance package.
func Init(stub cached_stub.CachedStubInterface, logLevel ...shim.LoggingLevel) ([]byte, error) {
	if len(logLevel) > 0 {
		logger.SetLevel(logLevel[0])
	}
	return provenance_i.Init(stub, logLevel...)
}

// GetLogger returns the provenance logger of the ledger of stub.
func GetLogger(stub cached_stub.CachedStubInterface) Logger {
	return &ledgerLogger{stub: stub}
}

func (l *ledgerLogger) Append(recordRef string, event data_model.ProvenanceEvent) (string, error) {
	event.RecordRef = recordRef
	event, err := provenance_i.Append(l.stub, event)
	return event.Hash, err
}

// AppendWithParams links event to its record's chain and returns the stored event.
func AppendWithParams(stub cached_stub.CachedStubInterface, event data_model.ProvenanceEvent) (data_model.ProvenanceEvent, error) {
	defer utils.ExitFnLogger(logger, utils.EnterFnLogger(logger))
	return provenance_i.Append(stub, event)
}

// GetTrailWithParams returns the chain of recordRef in order.
func GetTrailWithParams(stub cached_stub.CachedStubInterface, recordRef string) ([]data_model.ProvenanceEvent, error) {
	return provenance_i.GetTrail(stub, recordRef)
}

// VerifyTrail recomputes the chain of a record.
//
// args = [ recordRef ]
func VerifyTrail(stub cached_stub.CachedStubInterface, caller data_model.Identity, args []string) ([]byte, error) {
	defer utils.ExitFnLogger(logger, utils.EnterFnLogger(logger))

	if len(args) != 1 {
		custom_err := &custom_errors.InvalidArgumentError{Argument: "args", Reason: "expected [recordRef]"}
		logger.Errorf("%v", custom_err)
		return nil, errors.WithStack(custom_err)
	}
	report, err := VerifyTrailWithParams(stub, args[0])
	if err != nil {
		return nil, err
	}
	return json.Marshal(report)
}

// VerifyTrailWithParams recomputes the chain of recordRef.
func VerifyTrailWithParams(stub cached_stub.CachedStubInterface, recordRef string) (TrailReport, error) {
	trail, err := provenance_i.GetTrail(stub, recordRef)
	if err != nil {
		return TrailReport{}, err
	}
	brokenAt, err := provenance_i.VerifyTrail(stub, recordRef)
	if err != nil {
		return TrailReport{}, err
	}
	return TrailReport{RecordRef: recordRef, Length: len(trail), Intact: brokenAt == 0, BrokenAt: brokenAt}, nil
}

// ReceiveProvenanceLog is the provenance_log message handler.
func ReceiveProvenanceLog(stub cached_stub.CachedStubInterface, msg data_model.Message) error {
	return provenance_i.ReceiveProvenanceLog(stub, msg)
}
