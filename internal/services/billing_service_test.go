package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/novaops/nova-control/internal/core"
	"github.com/novaops/nova-control/internal/models"
)

// fakeBillingStore applies transaction effects only when the callback
// succeeds, mirroring commit/rollback.
type fakeBillingStore struct {
	users        map[int64]*models.User
	profiles     map[string]*core.ProfileBillingInfo
	ledger       []models.BillingEntry
	payments     []models.ProfilePayment
	trialStarted map[string]bool
	now          func() time.Time

	// snapshotInfo, when set, is what ProfileBillingInfo serves instead of the
	// committed rows: a read taken before a concurrent payment committed.
	snapshotInfo map[string]*core.ProfileBillingInfo

	failPaymentInsert bool
	failLedgerInsert  bool
}

func newFakeBillingStore() *fakeBillingStore {
	return &fakeBillingStore{
		users:        map[int64]*models.User{},
		profiles:     map[string]*core.ProfileBillingInfo{},
		trialStarted: map[string]bool{},
		now:          fixedNow,
	}
}

type fakeTx struct {
	s        *fakeBillingStore
	deltas   map[int64]float64
	entries  []models.BillingEntry
	payments []models.ProfilePayment
	paid     map[string]time.Time
}

func (s *fakeBillingStore) InTx(_ context.Context, fn func(core.BillingTx) error) error {
	tx := &fakeTx{s: s, deltas: map[int64]float64{}, paid: map[string]time.Time{}}
	if err := fn(tx); err != nil {
		return err // rollback: nothing applied
	}
	for id, d := range tx.deltas {
		s.users[id].Balance += d
	}
	s.ledger = append(s.ledger, tx.entries...)
	s.payments = append(s.payments, tx.payments...)
	for id, until := range tx.paid {
		u := until
		s.profiles[id].Profile.PaidUntil = &u
	}
	return nil
}

func (t *fakeTx) UserForUpdate(_ context.Context, id int64) (*models.User, error) {
	u, ok := t.s.users[id]
	if !ok {
		return nil, nil
	}
	cp := *u
	cp.Balance += t.deltas[id]
	return &cp, nil
}

func (t *fakeTx) AdjustBalance(_ context.Context, id int64, delta float64) error {
	t.deltas[id] += delta
	return nil
}

func (t *fakeTx) InsertBillingEntry(_ context.Context, e *models.BillingEntry) error {
	if t.s.failLedgerInsert {
		return errors.New("ledger insert failed")
	}
	t.entries = append(t.entries, *e)
	return nil
}

// ExtendProfilePaid works off the committed row plus this transaction's own
// staged writes, the way the SQL GREATEST(...) form does, not off whatever the
// caller read earlier.
func (t *fakeTx) ExtendProfilePaid(_ context.Context, id string, months int) (time.Time, error) {
	info, ok := t.s.profiles[id]
	if !ok {
		return time.Time{}, errors.New("profile not found")
	}
	base := t.s.now()
	if staged, ok := t.paid[id]; ok && staged.After(base) {
		base = staged
	} else if info.Profile.PaidUntil != nil && info.Profile.PaidUntil.After(base) {
		base = *info.Profile.PaidUntil
	}
	until := base.AddDate(0, 0, 30*months)
	t.paid[id] = until
	return until, nil
}

func (t *fakeTx) InsertProfilePayment(_ context.Context, p *models.ProfilePayment) error {
	if t.s.failPaymentInsert {
		return errors.New("payment insert failed")
	}
	t.payments = append(t.payments, *p)
	return nil
}

func (s *fakeBillingStore) ProfileBillingInfo(_ context.Context, id string) (*core.ProfileBillingInfo, error) {
	if s.snapshotInfo != nil {
		return s.snapshotInfo[id], nil
	}
	return s.profiles[id], nil
}

func (s *fakeBillingStore) StartTrial(_ context.Context, id string, until time.Time) (bool, error) {
	if s.trialStarted[id] {
		return false, nil
	}
	s.trialStarted[id] = true
	info := s.profiles[id]
	u := until
	info.Profile.IsTrial = true
	now := time.Now()
	info.Profile.TrialStartedAt = &now
	info.Profile.PaidUntil = &u
	return true, nil
}

func (s *fakeBillingStore) ListBillingHistory(context.Context, *models.User) ([]models.BillingEntry, error) {
	return s.ledger, nil
}

func fixedNow() time.Time {
	return time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC)
}

func newBillingService(s *fakeBillingStore) *BillingService {
	svc := NewBillingService(s, nil, 50, 3)
	svc.now = fixedNow
	return svc
}

func TestDerivePaymentStatus(t *testing.T) {
	now := fixedNow()

	t.Run("missing profile can trial", func(t *testing.T) {
		st := DerivePaymentStatus(nil, now)
		assert.False(t, st.IsPaid)
		assert.True(t, st.CanTrial)
	})

	t.Run("restricted admin is exempt", func(t *testing.T) {
		st := DerivePaymentStatus(&core.ProfileBillingInfo{AdminRestricted: true}, now)
		assert.True(t, st.IsPaid)
		assert.Equal(t, models.PayStatusExempt, st.Status)
	})

	t.Run("own translator is exempt", func(t *testing.T) {
		st := DerivePaymentStatus(&core.ProfileBillingInfo{TranslatorOwn: true}, now)
		assert.True(t, st.IsPaid)
	})

	t.Run("paid with daysLeft ceiling", func(t *testing.T) {
		until := now.Add(36 * time.Hour) // 1.5 days -> ceil 2
		st := DerivePaymentStatus(&core.ProfileBillingInfo{
			Profile: models.Profile{PaidUntil: &until},
		}, now)
		assert.True(t, st.IsPaid)
		assert.Equal(t, models.PayStatusPaid, st.Status)
		assert.Equal(t, 2, st.DaysLeft)
	})

	t.Run("daysLeft exact boundary", func(t *testing.T) {
		until := now.Add(24 * time.Hour)
		st := DerivePaymentStatus(&core.ProfileBillingInfo{
			Profile: models.Profile{PaidUntil: &until},
		}, now)
		assert.Equal(t, 1, st.DaysLeft)
	})

	t.Run("unpaid trial-unused offers trial", func(t *testing.T) {
		st := DerivePaymentStatus(&core.ProfileBillingInfo{Profile: models.Profile{}}, now)
		assert.False(t, st.IsPaid)
		assert.True(t, st.CanTrial)
		assert.Equal(t, models.PayStatusTrialAvailable, st.Status)
	})

	t.Run("trial spent requires payment", func(t *testing.T) {
		started := now.Add(-10 * 24 * time.Hour)
		expired := now.Add(-7 * 24 * time.Hour)
		st := DerivePaymentStatus(&core.ProfileBillingInfo{
			Profile: models.Profile{IsTrial: true, TrialStartedAt: &started, PaidUntil: &expired},
		}, now)
		assert.False(t, st.IsPaid)
		assert.False(t, st.CanTrial)
		assert.Equal(t, models.PayStatusPaymentRequired, st.Status)
	})
}

func TestPayProfile(t *testing.T) {
	store := newFakeBillingStore()
	store.users[1] = &models.User{ID: 1, Role: models.RoleAdmin, Balance: 120}
	store.profiles["p1"] = &core.ProfileBillingInfo{Profile: models.Profile{ProfileID: "p1"}}
	svc := newBillingService(store)

	until, err := svc.PayProfile(context.Background(), store.users[1], "p1", 1)
	require.NoError(t, err)
	require.NotNil(t, until)
	assert.Equal(t, fixedNow().AddDate(0, 0, 30), *until)
	assert.InDelta(t, 70, store.users[1].Balance, 0.001)
	require.Len(t, store.ledger, 1)
	assert.Equal(t, "charge", store.ledger[0].Kind)
	assert.InDelta(t, -50, store.ledger[0].Amount, 0.001)
	require.Len(t, store.payments, 1)
	assert.Equal(t, "payment", store.payments[0].Reason)
}

func TestPayProfile_ExtendsFromCurrentPaidUntil(t *testing.T) {
	store := newFakeBillingStore()
	store.users[1] = &models.User{ID: 1, Balance: 500}
	ahead := fixedNow().AddDate(0, 0, 10)
	store.profiles["p1"] = &core.ProfileBillingInfo{Profile: models.Profile{ProfileID: "p1", PaidUntil: &ahead}}
	svc := newBillingService(store)

	until, err := svc.PayProfile(context.Background(), store.users[1], "p1", 1)
	require.NoError(t, err)
	assert.Equal(t, ahead.AddDate(0, 0, 30), *until)
}

// Two payments whose profile reads both predate the first commit must still
// stack to 60 days: the extension base comes from inside the transaction, not
// from the stale snapshot.
func TestPayProfile_InterleavedPaymentsStack(t *testing.T) {
	store := newFakeBillingStore()
	store.users[1] = &models.User{ID: 1, Balance: 1000}
	store.profiles["p1"] = &core.ProfileBillingInfo{Profile: models.Profile{ProfileID: "p1"}}
	store.snapshotInfo = map[string]*core.ProfileBillingInfo{
		"p1": {Profile: models.Profile{ProfileID: "p1"}},
	}
	svc := newBillingService(store)

	_, err := svc.PayProfile(context.Background(), store.users[1], "p1", 1)
	require.NoError(t, err)
	until, err := svc.PayProfile(context.Background(), store.users[1], "p1", 1)
	require.NoError(t, err)

	assert.Equal(t, fixedNow().AddDate(0, 0, 60), *until)
	require.NotNil(t, store.profiles["p1"].Profile.PaidUntil)
	assert.Equal(t, fixedNow().AddDate(0, 0, 60), *store.profiles["p1"].Profile.PaidUntil)
	assert.InDelta(t, 900, store.users[1].Balance, 0.001)
	assert.Len(t, store.ledger, 2)
	require.Len(t, store.payments, 2)
	assert.Equal(t, fixedNow().AddDate(0, 0, 60), *store.payments[1].PaidUntil)
}

func TestPayProfile_InsufficientBalance(t *testing.T) {
	store := newFakeBillingStore()
	store.users[1] = &models.User{ID: 1, Balance: 10}
	store.profiles["p1"] = &core.ProfileBillingInfo{Profile: models.Profile{ProfileID: "p1"}}
	svc := newBillingService(store)

	_, err := svc.PayProfile(context.Background(), store.users[1], "p1", 1)
	assert.ErrorIs(t, err, ErrInsufficientBalance)
	assert.InDelta(t, 10, store.users[1].Balance, 0.001)
	assert.Empty(t, store.ledger)
}

// A failure after the debit must leave the balance at its pre-call value.
func TestPayProfile_RollbackOnLateFailure(t *testing.T) {
	store := newFakeBillingStore()
	store.users[1] = &models.User{ID: 1, Balance: 200}
	store.profiles["p1"] = &core.ProfileBillingInfo{Profile: models.Profile{ProfileID: "p1"}}
	store.failPaymentInsert = true
	svc := newBillingService(store)

	_, err := svc.PayProfile(context.Background(), store.users[1], "p1", 1)
	require.Error(t, err)
	assert.InDelta(t, 200, store.users[1].Balance, 0.001)
	assert.Empty(t, store.ledger)
	assert.Nil(t, store.profiles["p1"].Profile.PaidUntil)
}

func TestPayProfile_UnknownProfile(t *testing.T) {
	store := newFakeBillingStore()
	store.users[1] = &models.User{ID: 1, Balance: 200}
	svc := newBillingService(store)

	_, err := svc.PayProfile(context.Background(), store.users[1], "ghost", 1)
	assert.ErrorIs(t, err, ErrProfileNotFound)
}

func TestTopup(t *testing.T) {
	store := newFakeBillingStore()
	director := &models.User{ID: 1, Role: models.RoleDirector}
	store.users[1] = director
	store.users[2] = &models.User{ID: 2, Role: models.RoleAdmin, Balance: 5}
	svc := newBillingService(store)

	err := svc.Topup(context.Background(), director, 2, 100, "monthly")
	require.NoError(t, err)
	assert.InDelta(t, 105, store.users[2].Balance, 0.001)
	require.Len(t, store.ledger, 1)
	assert.Equal(t, "topup", store.ledger[0].Kind)
}

func TestTopup_RollbackWhenLedgerFails(t *testing.T) {
	store := newFakeBillingStore()
	director := &models.User{ID: 1, Role: models.RoleDirector}
	store.users[1] = director
	store.users[2] = &models.User{ID: 2, Balance: 5}
	store.failLedgerInsert = true
	svc := newBillingService(store)

	err := svc.Topup(context.Background(), director, 2, 100, "")
	require.Error(t, err)
	assert.InDelta(t, 5, store.users[2].Balance, 0.001)
}

func TestStartTrial_OnlyOnce(t *testing.T) {
	store := newFakeBillingStore()
	store.profiles["p1"] = &core.ProfileBillingInfo{Profile: models.Profile{ProfileID: "p1"}}
	svc := newBillingService(store)

	until, err := svc.StartTrial(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, fixedNow().AddDate(0, 0, 3), *until)

	_, err = svc.StartTrial(context.Background(), "p1")
	assert.ErrorIs(t, err, ErrTrialAlreadyUsed)
}

func TestCheckProfilePaymentStatus_UsesCache(t *testing.T) {
	store := newFakeBillingStore()
	svc := newBillingService(store)
	cached := &models.PaymentStatus{Status: models.PayStatusPaid, IsPaid: true}
	svc.cache = stubCache{st: cached}

	st, err := svc.CheckProfilePaymentStatus(context.Background(), "whatever")
	require.NoError(t, err)
	assert.Same(t, cached, st)
}

type stubCache struct{ st *models.PaymentStatus }

func (c stubCache) Get(context.Context, string) (*models.PaymentStatus, bool) { return c.st, true }
func (stubCache) Set(context.Context, string, *models.PaymentStatus)          {}
func (stubCache) Invalidate(context.Context, string)                          {}
