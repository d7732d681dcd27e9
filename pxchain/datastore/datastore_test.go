/*******************************************************************************
 *
 *
 * (c) Copyright Merative US L.P. and others 2020-2022
 *
 * SPDX-Licence-Identifier: Apache 2.0
 *
 *******************************************************************************/

package datastore

import (
	"testing"

	"github.com/choiwab/patient-x/pxchain/cached_stub"
	"github.com/choiwab/patient-x/pxchain/custom_errors"
	"github.com/choiwab/patient-x/pxchain/internal/common/global"
	"github.com/choiwab/patient-x/pxchain/test_utils"

	"github.com/stretchr/testify/require"
)

func TestComputeRef(t *testing.T) {
	ref, err := ComputeRef([]byte("hello"))
	require.NoError(t, err)
	// CIDv1 raw sha2-256 in base32
	require.Equal(t, "bafkreibm6jg3ux5qumhcn2b3flc3tyu6dmlb4xa7u5bf44yegnrjhc4yeq", ref)
	require.NoError(t, ValidateRef(ref))

	again, err := ComputeRef([]byte("hello"))
	require.NoError(t, err)
	require.Equal(t, ref, again)

	other, err := ComputeRef([]byte("hello!"))
	require.NoError(t, err)
	require.NotEqual(t, ref, other)

	require.Error(t, ValidateRef("not-a-cid"))
}

func TestStoreFetchUnpin(t *testing.T) {
	mstub := test_utils.CreateNewMockStub(t)
	mstub.MockTransactionStart("t1")
	stub := cached_stub.NewCachedStub(mstub)
	store := GetContentStore(stub)

	ref, err := store.Store([]byte("lab panel 2024-01-02"))
	require.NoError(t, err)
	second, err := store.Store([]byte("lab panel 2024-01-02"))
	require.NoError(t, err)
	require.Equal(t, ref, second)

	_, err = store.Store(nil)
	require.Equal(t, "InvalidArgument", custom_errors.Code(err))
	mstub.MockTransactionEnd("t1")

	mstub.MockTransactionStart("t2")
	stub = cached_stub.NewCachedStub(mstub)
	store = GetContentStore(stub)
	blob, err := store.Fetch(ref)
	require.NoError(t, err)
	require.Equal(t, "lab panel 2024-01-02", string(blob))

	// two pins: the first unpin keeps the content
	require.NoError(t, store.Unpin(ref))
	_, err = store.Fetch(ref)
	require.NoError(t, err)
	require.NoError(t, store.Unpin(ref))
	_, err = store.Fetch(ref)
	require.Equal(t, "NotFound", custom_errors.Code(err))
	require.NoError(t, store.Unpin(ref))
	mstub.MockTransactionEnd("t2")
}

func TestFetchDetectsTampering(t *testing.T) {
	mstub := test_utils.CreateNewMockStub(t)
	mstub.MockTransactionStart("t1")
	stub := cached_stub.NewCachedStub(mstub)
	ref, err := GetContentStore(stub).Store([]byte("original"))
	require.NoError(t, err)
	key, err := stub.CreateCompositeKey(global.DATASTORE_BLOB_PREFIX, []string{ref})
	require.NoError(t, err)
	require.NoError(t, stub.PutState(key, []byte("tampered")))

	_, err = GetContentStore(stub).Fetch(ref)
	require.Equal(t, "ContentMismatch", custom_errors.Code(err))
	mstub.MockTransactionEnd("t1")
}
