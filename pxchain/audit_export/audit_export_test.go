/*******************************************************************************
 *
 *
 * (c) Copyright Merative US L.P. and others 2020-2022
 *
 * SPDX-Licence-Identifier: Apache 2.0
 *
 *******************************************************************************/

package audit_export

import (
	"context"
	"encoding/json"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/choiwab/patient-x/pxchain/config"
	"github.com/choiwab/patient-x/pxchain/data_model"
	"github.com/choiwab/patient-x/pxchain/devnet"
	"github.com/choiwab/patient-x/pxchain/internal/common/global"
	"github.com/choiwab/patient-x/pxchain/test_utils"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memorySink struct {
	mu     sync.Mutex
	events map[string][]data_model.Event
	fail   error
}

func newMemorySink() *memorySink {
	return &memorySink{events: map[string][]data_model.Event{}}
}

func (s *memorySink) LastSeq(_ context.Context, ledger string) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	events := s.events[ledger]
	if len(events) == 0 {
		return 0, nil
	}
	return events[len(events)-1].Seq, nil
}

func (s *memorySink) WriteEvents(_ context.Context, ledger string, events []data_model.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return s.fail
	}
	s.events[ledger] = append(s.events[ledger], events...)
	return nil
}

func newExporter(t *testing.T, batchSize int) (*Exporter, *memorySink, *devnet.Network) {
	t.Helper()
	network, err := devnet.Start(context.Background(), config.Devnet{AdminID: "admin"}, "relay", "ERROR")
	require.NoError(t, err)
	sink := newMemorySink()
	return &Exporter{CallerID: "admin", BatchSize: batchSize, Ledgers: network.Ledgers(), Sink: sink}, sink, network
}

func grant(t *testing.T, network *devnet.Network, owner string, label string) {
	t.Helper()
	ctx := context.Background()
	identityBytes, _ := json.Marshal(test_utils.CreateTestIdentity(owner, global.ROLE_PATIENT))
	_, err := network.Consent.Invoke(ctx, "admin", "RegisterIdentity", string(identityBytes))
	require.NoError(t, err)
	policyBytes, _ := json.Marshal(test_utils.CreateTestPolicy(owner, label, time.Now().Unix()))
	_, err = network.Consent.Invoke(ctx, owner, "GrantConsent", string(policyBytes))
	require.NoError(t, err)
}

func TestExportIsIncremental(t *testing.T) {
	exporter, sink, network := newExporter(t, 2)
	ctx := context.Background()
	grant(t, network, "patient1", "research")
	grant(t, network, "patient2", "research")

	counts, err := exporter.ExportAll(ctx)
	require.NoError(t, err)
	exported := sink.events[global.LEDGER_CONSENT]
	require.GreaterOrEqual(t, len(exported), 4)
	assert.Equal(t, len(exported), counts[global.LEDGER_CONSENT])
	for i, event := range exported {
		assert.Equal(t, uint64(i+1), event.Seq, "events are exported in order without gaps")
		assert.Equal(t, global.LEDGER_CONSENT, event.Ledger)
	}
	assert.Equal(t, data_model.EVENT_POLICY_GRANTED, exported[len(exported)-1].Type)

	counts, err = exporter.ExportAll(ctx)
	require.NoError(t, err)
	assert.Zero(t, counts[global.LEDGER_CONSENT], "nothing new to export")

	grant(t, network, "patient3", "research")
	n, err := exporter.ExportLedger(ctx, global.LEDGER_CONSENT)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, n, 2)
	assert.Equal(t, data_model.EVENT_POLICY_GRANTED, sink.events[global.LEDGER_CONSENT][len(sink.events[global.LEDGER_CONSENT])-1].Type)
}

func TestExportStopsOnSinkError(t *testing.T) {
	exporter, sink, network := newExporter(t, 0)
	grant(t, network, "patient1", "research")
	sink.fail = errors.New("disk full")

	_, err := exporter.ExportLedger(context.Background(), global.LEDGER_CONSENT)
	assert.EqualError(t, err, "disk full")

	_, err = exporter.ExportLedger(context.Background(), "nowhere")
	assert.Error(t, err)
}

// TestStore runs against the database named by PX_TEST_DSN.
func TestStore(t *testing.T) {
	dsn := os.Getenv("PX_TEST_DSN")
	if dsn == "" {
		t.Skip("PX_TEST_DSN not set")
	}
	ctx := context.Background()
	pool, err := Connect(ctx, dsn, 2)
	require.NoError(t, err)
	defer pool.Close()

	store := &Store{DB: pool}
	require.NoError(t, store.EnsureSchema(ctx))
	ledger := "test-" + time.Now().Format("150405.000000")
	events := []data_model.Event{
		{Seq: 1, Type: data_model.EVENT_POLICY_GRANTED, Ledger: ledger, TxID: "tx1", Timestamp: time.Now().Unix(), PolicyID: "p1"},
		{Seq: 2, Type: data_model.EVENT_REWARD_PAID, Ledger: ledger, TxID: "tx2", Timestamp: time.Now().Unix(), Amount: 2800, Data: map[string]string{"to": "r1"}},
	}
	require.NoError(t, store.WriteEvents(ctx, ledger, events))
	require.NoError(t, store.WriteEvents(ctx, ledger, events[1:]), "re-export is ignored")

	seq, err := store.LastSeq(ctx, ledger)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), seq)
}
