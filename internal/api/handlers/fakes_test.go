package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/novaops/nova-control/internal/core"
	"github.com/novaops/nova-control/internal/models"
)

// fakeUsers is an in-memory core.UserStore.
type fakeUsers struct {
	byID   map[int64]*models.User
	nextID int64
}

func newFakeUsers(users ...*models.User) *fakeUsers {
	f := &fakeUsers{byID: map[int64]*models.User{}, nextID: 1}
	for _, u := range users {
		f.byID[u.ID] = u
		if u.ID >= f.nextID {
			f.nextID = u.ID + 1
		}
	}
	return f
}

func (f *fakeUsers) GetUserByLogin(_ context.Context, login string) (*models.User, error) {
	for _, u := range f.byID {
		if u.Login == login {
			return u, nil
		}
	}
	return nil, nil
}

func (f *fakeUsers) GetUserByID(_ context.Context, id int64) (*models.User, error) {
	return f.byID[id], nil
}

func (f *fakeUsers) CreateUser(_ context.Context, u *models.User) (int64, error) {
	u.ID = f.nextID
	f.nextID++
	f.byID[u.ID] = u
	return u.ID, nil
}

func (f *fakeUsers) UpdateUser(_ context.Context, u *models.User) error {
	f.byID[u.ID] = u
	return nil
}

func (f *fakeUsers) DeleteUser(_ context.Context, id int64) error {
	delete(f.byID, id)
	return nil
}

func (f *fakeUsers) ListTeam(_ context.Context, viewer *models.User) ([]models.User, error) {
	var out []models.User
	for _, u := range f.byID {
		switch viewer.Role {
		case models.RoleDirector:
			out = append(out, *u)
		case models.RoleAdmin:
			if u.ID == viewer.ID || (u.OwnerID != nil && *u.OwnerID == viewer.ID) {
				out = append(out, *u)
			}
		default:
			if u.ID == viewer.ID {
				out = append(out, *u)
			}
		}
	}
	return out, nil
}

// fakeProfiles is an in-memory core.ProfileStore. Like the SQL store, Delete
// backs up a still-valid paid_until and Create restores it when the new row
// carries none of its own.
type fakeProfiles struct {
	byID    map[string]*models.Profile
	backups map[string]time.Time
}

func newFakeProfiles(profiles ...*models.Profile) *fakeProfiles {
	f := &fakeProfiles{
		byID:    map[string]*models.Profile{},
		backups: map[string]time.Time{},
	}
	for _, p := range profiles {
		f.byID[p.ProfileID] = p
	}
	return f
}

func (f *fakeProfiles) GetProfile(_ context.Context, id string) (*models.Profile, error) {
	return f.byID[id], nil
}

func (f *fakeProfiles) ListProfiles(_ context.Context, viewer *models.User) ([]models.Profile, error) {
	var out []models.Profile
	for _, p := range f.byID {
		switch viewer.Role {
		case models.RoleDirector:
			out = append(out, *p)
		case models.RoleAdmin:
			if p.AssignedAdminID != nil && *p.AssignedAdminID == viewer.ID {
				out = append(out, *p)
			}
		default:
			if p.AssignedTranslatorID != nil && *p.AssignedTranslatorID == viewer.ID {
				out = append(out, *p)
			}
		}
	}
	return out, nil
}

func (f *fakeProfiles) CreateProfile(_ context.Context, p *models.Profile) error {
	if p.PaidUntil == nil {
		if until, ok := f.backups[p.ProfileID]; ok {
			u := until
			p.PaidUntil = &u
		}
	}
	f.byID[p.ProfileID] = p
	return nil
}

func (f *fakeProfiles) UpdateProfile(_ context.Context, p *models.Profile) error {
	f.byID[p.ProfileID] = p
	return nil
}

func (f *fakeProfiles) DeleteProfile(_ context.Context, id string) error {
	if p := f.byID[id]; p != nil && p.PaidUntil != nil && p.PaidUntil.After(time.Now()) {
		f.backups[id] = *p.PaidUntil
	}
	delete(f.byID, id)
	return nil
}

func (f *fakeProfiles) TouchLastOnline(_ context.Context, id string, at time.Time) error {
	if p := f.byID[id]; p != nil {
		p.LastOnline = &at
	}
	return nil
}

// fakeBots is an in-memory core.BotStore.
type fakeBots struct {
	heartbeats []*models.Heartbeat
}

func (f *fakeBots) UpsertBot(context.Context, string, string, json.RawMessage, time.Time) error {
	return nil
}

func (f *fakeBots) InsertHeartbeat(_ context.Context, hb *models.Heartbeat) error {
	f.heartbeats = append(f.heartbeats, hb)
	return nil
}

func (f *fakeBots) ListRecentHeartbeats(context.Context, time.Time) ([]models.Heartbeat, error) {
	return nil, nil
}

func (f *fakeBots) DeleteHeartbeatsBefore(context.Context, time.Time) (int64, error) {
	return 0, nil
}

// fakeActivity is an in-memory core.ActivityStore recording what was written.
type fakeActivity struct {
	messages  []models.Message
	contents  []models.MessageContent
	activity  []models.ActivityRecord
	errorLogs []models.ErrorLog
	incoming  []models.IncomingMessage
	pings     []models.ActivityPing
}

func (f *fakeActivity) RecordMessage(_ context.Context, msg *models.Message, content *models.MessageContent, act *models.ActivityRecord) error {
	msg.ID = int64(len(f.messages) + 1)
	f.messages = append(f.messages, *msg)
	f.contents = append(f.contents, *content)
	f.activity = append(f.activity, *act)
	return nil
}

func (f *fakeActivity) RecordError(_ context.Context, e *models.ErrorLog) (int64, error) {
	e.ID = int64(len(f.errorLogs) + 1)
	f.errorLogs = append(f.errorLogs, *e)
	return e.ID, nil
}

func (f *fakeActivity) InsertActivity(_ context.Context, act *models.ActivityRecord) error {
	f.activity = append(f.activity, *act)
	return nil
}

func (f *fakeActivity) InsertIncoming(_ context.Context, im *models.IncomingMessage) error {
	f.incoming = append(f.incoming, *im)
	return nil
}

func (f *fakeActivity) InsertPing(_ context.Context, p *models.ActivityPing) error {
	f.pings = append(f.pings, *p)
	return nil
}

func (f *fakeActivity) DeletePingsBefore(context.Context, time.Time) (int64, error) {
	return 0, nil
}

// fakeBilling backs a BillingService with in-memory profile billing rows. It
// shares the profile map with a fakeProfiles so paid_until changes are seen by
// both sides, as they would be through Postgres.
type fakeBilling struct {
	profiles *fakeProfiles
	users    *fakeUsers
	history  []models.BillingEntry
}

func (f *fakeBilling) ProfileBillingInfo(_ context.Context, profileID string) (*core.ProfileBillingInfo, error) {
	p := f.profiles.byID[profileID]
	if p == nil {
		return nil, nil
	}
	info := &core.ProfileBillingInfo{Profile: *p}
	if p.AssignedAdminID != nil {
		if a := f.users.byID[*p.AssignedAdminID]; a != nil {
			info.AdminRestricted = a.IsRestricted
		}
	}
	if p.AssignedTranslatorID != nil {
		if t := f.users.byID[*p.AssignedTranslatorID]; t != nil {
			info.TranslatorOwn = t.IsOwnTranslator
		}
	}
	return info, nil
}

func (f *fakeBilling) StartTrial(_ context.Context, profileID string, until time.Time) (bool, error) {
	p := f.profiles.byID[profileID]
	if p == nil || p.TrialStartedAt != nil {
		return false, nil
	}
	now := time.Now()
	p.TrialStartedAt = &now
	p.IsTrial = true
	p.PaidUntil = &until
	return true, nil
}

func (f *fakeBilling) ListBillingHistory(_ context.Context, viewer *models.User) ([]models.BillingEntry, error) {
	if viewer.Role == models.RoleDirector {
		return f.history, nil
	}
	var out []models.BillingEntry
	for _, e := range f.history {
		if e.UserID == viewer.ID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeBilling) InTx(ctx context.Context, fn func(core.BillingTx) error) error {
	tx := &fakeBillingTx{f: f, balances: map[int64]float64{}}
	if err := fn(tx); err != nil {
		return err
	}
	tx.commit()
	return nil
}

// fakeBillingTx stages changes and applies them only on commit.
type fakeBillingTx struct {
	f        *fakeBilling
	balances map[int64]float64
	entries  []models.BillingEntry
	paid     map[string]time.Time
}

func (t *fakeBillingTx) UserForUpdate(_ context.Context, id int64) (*models.User, error) {
	return t.f.users.byID[id], nil
}

func (t *fakeBillingTx) AdjustBalance(_ context.Context, id int64, delta float64) error {
	t.balances[id] += delta
	return nil
}

func (t *fakeBillingTx) InsertBillingEntry(_ context.Context, e *models.BillingEntry) error {
	t.entries = append(t.entries, *e)
	return nil
}

func (t *fakeBillingTx) ExtendProfilePaid(_ context.Context, profileID string, months int) (time.Time, error) {
	p := t.f.profiles.byID[profileID]
	if p == nil {
		return time.Time{}, errors.New("profile not found")
	}
	base := time.Now()
	if staged, ok := t.paid[profileID]; ok && staged.After(base) {
		base = staged
	} else if p.PaidUntil != nil && p.PaidUntil.After(base) {
		base = *p.PaidUntil
	}
	until := base.AddDate(0, 0, 30*months)
	if t.paid == nil {
		t.paid = map[string]time.Time{}
	}
	t.paid[profileID] = until
	return until, nil
}

func (t *fakeBillingTx) InsertProfilePayment(context.Context, *models.ProfilePayment) error {
	return nil
}

func (t *fakeBillingTx) commit() {
	for id, delta := range t.balances {
		if u := t.f.users.byID[id]; u != nil {
			u.Balance += delta
		}
	}
	t.f.history = append(t.f.history, t.entries...)
	for id, until := range t.paid {
		if p := t.f.profiles.byID[id]; p != nil {
			u := until
			p.PaidUntil = &u
			p.IsTrial = false
		}
	}
}
