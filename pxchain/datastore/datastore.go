/*******************************************************************************
 *
 *
 * (c) Copyright Merative US L.P. and others 2020-2022
 *
 * SPDX-Licence-Identifier: Apache 2.0
 *
 *******************************************************************************/

// Package datastore is the content-addressed store for record content.
//
// Content is addressed by a CIDv1 (raw codec, sha2-256 multihash). The same content
// always gets the same reference, so storing it twice keeps one copy; a pin count
// tracks how many records reference it and Unpin drops the copy with the last pin.
// Fetch re-hashes the content and fails with ContentMismatch if it does not match
// its reference.
package datastore

import (
	"github.com/choiwab/patient-x/pxchain/cached_stub"
	"github.com/choiwab/patient-x/pxchain/internal/datastore_i"

	"github.com/hyperledger/fabric/core/chaincode/shim"
)

// ContentStore needs to be implemented by any backend holding record content.
type ContentStore interface {
	// Store saves blob and returns its content reference. Storing content that is
	// already present adds a pin and returns the same reference.
	Store(blob []byte) (string, error)

	// Fetch returns the content of ref. It verifies the content hashes to ref.
	Fetch(ref string) ([]byte, error)

	// Unpin removes one pin of ref; the content is dropped with its last pin.
	Unpin(ref string) error

	// ComputeRef returns the reference blob would be stored under.
	ComputeRef(blob []byte) (string, error)
}

// Init sets up the datastore package.
func Init(stub cached_stub.CachedStubInterface, logLevel ...shim.LoggingLevel) ([]byte, error) {
	return datastore_i.Init(stub, logLevel...)
}

// GetContentStore returns the content store kept on the ledger of stub.
func GetContentStore(stub cached_stub.CachedStubInterface) ContentStore {
	return datastore_i.NewLedgerStore(stub)
}

// ComputeRef returns the CIDv1 content reference of blob.
func ComputeRef(blob []byte) (string, error) {
	return datastore_i.ComputeRef(blob)
}

// ValidateRef returns an error if ref is not a raw sha2-256 CIDv1.
func ValidateRef(ref string) error {
	return datastore_i.ValidateRef(ref)
}
