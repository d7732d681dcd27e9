/*******************************************************************************
 *
 *
 * (c) Copyright Merative US L.P. and others 2020-2022
 *
 * SPDX-Licence-Identifier: Apache 2.0
 *
 *******************************************************************************/

// Package audit_export copies the event log of each ledger into an external store for
// auditors. Export resumes after the highest sequence number already stored, so it can
// be run repeatedly.
package audit_export

import (
	"context"
	"encoding/json"
	"sort"
	"strconv"

	"github.com/choiwab/patient-x/pxchain/data_model"
	"github.com/choiwab/patient-x/pxchain/gateway"

	"github.com/hyperledger/fabric/core/chaincode/shim"
	"github.com/pkg/errors"
)

var logger = shim.NewLogger("audit_export")

// Sink stores exported events.
type Sink interface {
	LastSeq(ctx context.Context, ledger string) (uint64, error)
	WriteEvents(ctx context.Context, ledger string, events []data_model.Event) error
}

// Exporter reads GetEvents from ledgers into a Sink.
type Exporter struct {
	CallerID  string
	BatchSize int
	Ledgers   map[string]gateway.Ledger
	Sink      Sink
}

// ExportLedger exports the new events of one ledger and returns how many were written.
func (e *Exporter) ExportLedger(ctx context.Context, name string) (int, error) {
	ledger, ok := e.Ledgers[name]
	if !ok {
		return 0, errors.Errorf("unknown ledger %v", name)
	}
	batchSize := e.BatchSize
	if batchSize <= 0 {
		batchSize = 200
	}
	after, err := e.Sink.LastSeq(ctx, name)
	if err != nil {
		return 0, err
	}

	exported := 0
	for {
		payload, err := ledger.Invoke(ctx, e.CallerID, "GetEvents", strconv.FormatUint(after, 10), strconv.Itoa(batchSize))
		if err != nil {
			return exported, errors.Wrapf(err, "read events of %v", name)
		}
		events := []data_model.Event{}
		if err := json.Unmarshal(payload, &events); err != nil {
			return exported, errors.Wrapf(err, "decode events of %v", name)
		}
		if len(events) == 0 {
			break
		}
		if err := e.Sink.WriteEvents(ctx, name, events); err != nil {
			return exported, err
		}
		exported += len(events)
		after = events[len(events)-1].Seq
		if len(events) < batchSize {
			break
		}
	}
	logger.Infof("exported %v events of %v up to seq %v", exported, name, after)
	return exported, nil
}

// ExportAll exports every ledger in name order.
func (e *Exporter) ExportAll(ctx context.Context) (map[string]int, error) {
	names := make([]string, 0, len(e.Ledgers))
	for name := range e.Ledgers {
		names = append(names, name)
	}
	sort.Strings(names)

	counts := map[string]int{}
	for _, name := range names {
		n, err := e.ExportLedger(ctx, name)
		counts[name] = n
		if err != nil {
			return counts, err
		}
	}
	return counts, nil
}
