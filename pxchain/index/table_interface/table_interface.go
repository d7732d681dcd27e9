/*******************************************************************************
 *
 *
 * (c) Copyright Merative US L.P. and others 2020-2022
 *
 * SPDX-Licence-Identifier: Apache 2.0
 *
 *******************************************************************************/

// Package table_interface provides an interface for index table related methods.
package table_interface

// Table represents an index table for querying items (represented by rows).
// A row is an ordered list of field values; the last field is usually the id of the
// indexed object. Rows are stored as composite keys, so a row exists at most once.
type Table interface {

	// GetName returns the name of the table.
	GetName() string

	// PutRow adds a row. Adding an existing row is a no-op.
	PutRow(values ...string) error

	// DeleteRow removes a row. Removing a missing row is a no-op.
	DeleteRow(values ...string) error

	// HasRow returns true if the row exists.
	HasRow(values ...string) (bool, error)

	// GetRowsByPartialKey returns every row starting with the given values, in key order.
	GetRowsByPartialKey(values ...string) ([][]string, error)

	// GetLastFieldByPartialKey returns the last field of every row starting with the
	// given values, in key order.
	GetLastFieldByPartialKey(values ...string) ([]string, error)
}
