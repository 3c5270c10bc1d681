package resource

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	s := NewStore(opts...)
	s.Register("addresses", "orders")
	return s
}

func TestStore_BeginUnknownResource(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Begin("ghosts", FetchAll)
	assert.ErrorIs(t, err, ErrUnknownResource)
	assert.True(t, s.Status("ghosts", FetchAll).Idle())
}

func TestStore_PendingClearsErrorAndSuccess(t *testing.T) {
	s := newTestStore(t)
	s.SetStatus("addresses", Create, Fulfilled("Address created successfully"))

	_, err := s.Begin("addresses", Create)
	require.NoError(t, err)

	st := s.Status("addresses", Create)
	assert.True(t, st.Loading)
	assert.Empty(t, st.Error)
	assert.False(t, st.Success)
	assert.Equal(t, "Address created successfully", st.Message, "stale confirmation is kept")
}

func TestStore_SettleAppliesStatusAndMutation(t *testing.T) {
	s := newTestStore(t)
	tok, err := s.Begin("addresses", FetchAll)
	require.NoError(t, err)

	got := s.Settle("addresses", FetchAll, tok, Outcome{
		Patch:  Fulfilled("Loaded addresses"),
		Mutate: func(c *Collection) { c.ReplaceItems([]Entity{entity(1, nil)}) },
	})

	assert.Equal(t, Applied, got)
	assert.Equal(t, Status{Success: true, Message: "Loaded addresses"}, s.Status("addresses", FetchAll))
	assert.Equal(t, 1, s.Collection("addresses").Len())
}

func TestStore_SupersededResponses(t *testing.T) {
	s := newTestStore(t)
	first, _ := s.Begin("addresses", Create)
	second, _ := s.Begin("addresses", Create)

	got := s.Settle("addresses", Create, first, Outcome{
		Patch:               Fulfilled("first"),
		Mutate:              func(c *Collection) { c.Insert(entity(1, nil), InsertEnd) },
		ApplyWhenSuperseded: true,
	})
	assert.Equal(t, Superseded, got)
	assert.True(t, s.Status("addresses", Create).Loading, "status belongs to the newer request")
	assert.Equal(t, 1, s.Collection("addresses").Len())

	got = s.Settle("addresses", Create, second, Outcome{Patch: Fulfilled("second")})
	assert.Equal(t, Applied, got)
	assert.Equal(t, "second", s.Status("addresses", Create).Message)
}

func TestStore_SupersededSettleCountsAndKeepsLoadingExclusive(t *testing.T) {
	obs := NewMetricsObserver()
	s := newTestStore(t, WithObserver(obs))
	first, _ := s.Begin("addresses", Update)
	second, _ := s.Begin("addresses", Update)

	got := s.Settle("addresses", Update, first, Outcome{
		Patch:               Rejected("boom"),
		Mutate:              func(c *Collection) { c.Insert(entity(1, nil), InsertEnd) },
		ApplyWhenSuperseded: true,
	})
	require.Equal(t, Superseded, got)

	st := s.Status("addresses", Update)
	assert.True(t, st.Loading)
	assert.Empty(t, st.Error)
	assert.False(t, st.Success)

	snap := obs.Snapshot()
	assert.Equal(t, int64(1), snap.Superseded)
	assert.Equal(t, int64(0), snap.Discarded)
	assert.Equal(t, int64(1), snap.InFlight())

	s.Settle("addresses", Update, second, Outcome{Patch: Fulfilled("saved")})
	snap = obs.Snapshot()
	assert.Equal(t, int64(1), snap.Fulfilled)
	assert.Equal(t, int64(0), snap.InFlight())
}

func TestStore_SupersededFetchIsDiscarded(t *testing.T) {
	s := newTestStore(t)
	old, _ := s.Begin("addresses", FetchAll)
	_, _ = s.Begin("addresses", FetchAll)

	got := s.Settle("addresses", FetchAll, old, Outcome{
		Patch:  Fulfilled("old"),
		Mutate: func(c *Collection) { c.ReplaceItems([]Entity{entity(9, nil)}) },
	})
	assert.Equal(t, Discarded, got)
	assert.Equal(t, 0, s.Collection("addresses").Len())
}

func TestStore_ResetDiscardsInFlight(t *testing.T) {
	obs := NewMetricsObserver()
	s := newTestStore(t, WithObserver(obs))
	s.ApplyFetchAll("addresses", []Entity{entity(1, nil)})
	tok, _ := s.Begin("addresses", Delete)

	s.Reset("addresses")
	assert.Equal(t, 0, s.Collection("addresses").Len())
	assert.Empty(t, s.Statuses("addresses"))

	got := s.Settle("addresses", Delete, tok, Outcome{
		Patch:               Fulfilled("deleted"),
		Mutate:              func(c *Collection) { c.Insert(entity(5, nil), InsertEnd) },
		ApplyWhenSuperseded: true,
	})
	assert.Equal(t, Discarded, got)
	assert.Equal(t, 0, s.Collection("addresses").Len())
	assert.True(t, s.Status("addresses", Delete).Idle())

	snap := obs.Snapshot()
	assert.Equal(t, int64(1), snap.Resets)
	assert.Equal(t, int64(1), snap.Discarded)
	assert.Equal(t, int64(0), snap.InFlight())
}

func TestStore_ClearStatusIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	s.SetStatus("orders", Update, Rejected("Failed to update order"))

	s.ClearStatus("orders", Update)
	once := s.Status("orders", Update)
	s.ClearStatus("orders", Update)
	twice := s.Status("orders", Update)

	assert.Equal(t, once, twice)
	assert.Equal(t, Status{}, twice)
}

func TestStore_ClearStatusKeepsLoading(t *testing.T) {
	s := newTestStore(t)
	_, _ = s.Begin("orders", FetchAll)
	s.ClearStatus("orders", FetchAll)
	assert.True(t, s.Status("orders", FetchAll).Loading)
}

func TestStore_CategoriesAreIndependent(t *testing.T) {
	s := newTestStore(t)
	fetchTok, _ := s.Begin("addresses", FetchAll)
	createTok, _ := s.Begin("addresses", Create)

	s.Settle("addresses", Create, createTok, Outcome{Patch: Rejected("Failed to create address")})
	assert.Equal(t, Status{Loading: true}, s.Status("addresses", FetchAll))

	s.Settle("addresses", FetchAll, fetchTok, Outcome{Patch: Fulfilled("Loaded addresses")})
	assert.Equal(t, "Failed to create address", s.Status("addresses", Create).Error)
}

func TestStore_CollectionIsSnapshot(t *testing.T) {
	s := newTestStore(t)
	s.ApplyFetchAll("addresses", []Entity{entity(1, map[string]any{"label": "Home"})})

	c := s.Collection("addresses")
	c.Items[0].Fields["label"] = "Changed"
	c.Items = nil

	again := s.Collection("addresses")
	require.Equal(t, 1, again.Len())
	assert.Equal(t, "Home", again.Items[0].String("label"))
}

func TestStore_SubscribeAndCancel(t *testing.T) {
	s := newTestStore(t)
	var mu sync.Mutex
	var changes []Change
	cancel := s.Subscribe(func(ch Change) {
		mu.Lock()
		defer mu.Unlock()
		changes = append(changes, ch)
	})

	tok, _ := s.Begin("orders", ChangeStatus)
	s.Settle("orders", ChangeStatus, tok, Outcome{Patch: Fulfilled("ok")})
	s.Reset("orders")
	cancel()
	s.Reset("orders")

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []Change{
		{Resource: "orders", Category: ChangeStatus},
		{Resource: "orders", Category: ChangeStatus},
		{Resource: "orders"},
	}, changes)
}

func TestStore_ListenerMayReadStore(t *testing.T) {
	s := newTestStore(t)
	var seen Status
	s.Subscribe(func(ch Change) {
		if ch.Category == Create {
			seen = s.Status(ch.Resource, ch.Category)
		}
	})

	_, _ = s.Begin("addresses", Create)
	assert.True(t, seen.Loading)
}

func TestStore_ConcurrentDispatches(t *testing.T) {
	s := newTestStore(t)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int64) {
			defer wg.Done()
			cat := Categories[n%int64(len(Categories))]
			tok, err := s.Begin("orders", cat)
			if err != nil {
				return
			}
			s.Settle("orders", cat, tok, Outcome{
				Patch:               Fulfilled("done"),
				Mutate:              func(c *Collection) { c.Insert(entity(n, nil), InsertEnd) },
				ApplyWhenSuperseded: true,
			})
		}(int64(i))
	}
	wg.Wait()

	assert.Equal(t, 50, s.Collection("orders").Len())
	for _, cat := range Categories {
		assert.False(t, s.Status("orders", cat).Loading, cat)
	}
}

func TestStatus_LoadingExcludesSettlement(t *testing.T) {
	transitions := []StatusPatch{
		Pending(), Fulfilled("ok"), Pending(), Rejected("boom"), Pending(),
	}
	var st Status
	for _, p := range transitions {
		st = p.Apply(st)
		if st.Loading {
			assert.Empty(t, st.Error)
			assert.False(t, st.Success)
		}
	}
}
