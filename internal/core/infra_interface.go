package core

import (
	"context"
	"encoding/json"
	"time"

	"github.com/novaops/nova-control/internal/models"
)

// StatsFilter is the resolved scope of a dashboard query: a date window plus
// the admin/translator restriction derived from the caller's role.
type StatsFilter struct {
	From         time.Time
	To           time.Time
	AdminID      *int64
	TranslatorID *int64
}

// DashboardTotals are the headline numbers of the dashboard.
type DashboardTotals struct {
	MessagesSent int64   `json:"messages_sent"`
	Errors       int64   `json:"errors"`
	UniqueMen    int64   `json:"unique_men"`
	Replies      int64   `json:"replies"`
	AIMessages   int64   `json:"ai_messages"`
	ReplyRate    float64 `json:"reply_rate"`
}

// DailyStat is one day of the dashboard series.
type DailyStat struct {
	Day      time.Time `json:"day"`
	Messages int64     `json:"messages"`
	Replies  int64     `json:"replies"`
	Errors   int64     `json:"errors"`
}

// ProfileStat is the per-profile dashboard breakdown.
type ProfileStat struct {
	ProfileID  string     `json:"profile_id"`
	Messages   int64      `json:"messages"`
	Errors     int64      `json:"errors"`
	LastOnline *time.Time `json:"last_online,omitempty"`
}

// ProfileBillingInfo joins a profile to its owners' exemption flags.
type ProfileBillingInfo struct {
	Profile         models.Profile
	AdminRestricted bool
	TranslatorOwn   bool
}

// UserStore covers dashboard accounts and team management.
type UserStore interface {
	GetUserByLogin(ctx context.Context, login string) (*models.User, error)
	GetUserByID(ctx context.Context, id int64) (*models.User, error)
	CreateUser(ctx context.Context, u *models.User) (int64, error)
	UpdateUser(ctx context.Context, u *models.User) error
	DeleteUser(ctx context.Context, id int64) error
	ListTeam(ctx context.Context, viewer *models.User) ([]models.User, error)
}

// ProfileStore covers allowed_profiles. Create restores a deletion backup for
// a re-added profile_id; Delete writes one when paid_until is still ahead.
type ProfileStore interface {
	GetProfile(ctx context.Context, profileID string) (*models.Profile, error)
	ListProfiles(ctx context.Context, viewer *models.User) ([]models.Profile, error)
	CreateProfile(ctx context.Context, p *models.Profile) error
	UpdateProfile(ctx context.Context, p *models.Profile) error
	DeleteProfile(ctx context.Context, profileID string) error
	TouchLastOnline(ctx context.Context, profileID string, at time.Time) error
}

// BotStore covers physical bot processes and their heartbeat time series.
type BotStore interface {
	UpsertBot(ctx context.Context, botID, profileID string, extended json.RawMessage, seen time.Time) error
	InsertHeartbeat(ctx context.Context, hb *models.Heartbeat) error
	ListRecentHeartbeats(ctx context.Context, since time.Time) ([]models.Heartbeat, error)
	DeleteHeartbeatsBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// ActivityStore covers write-side telemetry from bots.
type ActivityStore interface {
	// RecordMessage inserts content, message and its activity_log duplicate in
	// one transaction so the two tables cannot drift.
	RecordMessage(ctx context.Context, msg *models.Message, content *models.MessageContent, act *models.ActivityRecord) error
	RecordError(ctx context.Context, e *models.ErrorLog) (int64, error)
	InsertActivity(ctx context.Context, act *models.ActivityRecord) error
	InsertIncoming(ctx context.Context, im *models.IncomingMessage) error
	InsertPing(ctx context.Context, p *models.ActivityPing) error
	DeletePingsBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// BillingTx is the set of operations available inside a billing transaction.
// The payer row is locked before any balance math.
type BillingTx interface {
	UserForUpdate(ctx context.Context, userID int64) (*models.User, error)
	AdjustBalance(ctx context.Context, userID int64, delta float64) error
	InsertBillingEntry(ctx context.Context, e *models.BillingEntry) error
	// ExtendProfilePaid pushes paid_until forward by 30 days per month from
	// whichever is later, the current paid_until or now, computed against the
	// row as it is inside this transaction. Returns the new paid_until.
	ExtendProfilePaid(ctx context.Context, profileID string, months int) (time.Time, error)
	InsertProfilePayment(ctx context.Context, p *models.ProfilePayment) error
}

// BillingStore covers balances, ledgers and payment-status inputs.
type BillingStore interface {
	InTx(ctx context.Context, fn func(BillingTx) error) error
	ProfileBillingInfo(ctx context.Context, profileID string) (*ProfileBillingInfo, error)
	// StartTrial marks the trial consumed; returns false when it already was.
	StartTrial(ctx context.Context, profileID string, until time.Time) (bool, error)
	ListBillingHistory(ctx context.Context, viewer *models.User) ([]models.BillingEntry, error)
}

// StatsStore covers dashboard aggregation reads.
type StatsStore interface {
	DashboardTotals(ctx context.Context, f StatsFilter) (*DashboardTotals, error)
	DailySeries(ctx context.Context, f StatsFilter) ([]DailyStat, error)
	// PingTimes returns ordered activity-ping timestamps per profile for
	// work-time estimation.
	PingTimes(ctx context.Context, f StatsFilter) (map[string][]time.Time, error)
	ProfileStats(ctx context.Context, f StatsFilter) ([]ProfileStat, error)
}

// TemplateStore covers favorite templates.
type TemplateStore interface {
	ListTemplates(ctx context.Context, userID int64) ([]models.FavoriteTemplate, error)
	CreateTemplate(ctx context.Context, t *models.FavoriteTemplate) (int64, error)
	DeleteTemplate(ctx context.Context, userID, id int64) error
}

// Store is the full persistence surface the application wires once.
type Store interface {
	UserStore
	ProfileStore
	BotStore
	ActivityStore
	BillingStore
	StatsStore
	TemplateStore
	Close() error
}

// LLMProvider generates assisted reply/opener text.
type LLMProvider interface {
	Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error)
	Close() error
}

// ObjectClient stores media attachments and returns their public URL.
type ObjectClient interface {
	UploadFile(ctx context.Context, key string, data []byte, contentType string) (string, error)
	DeleteFile(ctx context.Context, key string) error
}

// PaymentCache is an optional short-TTL cache for derived payment status on
// the heartbeat hot path.
type PaymentCache interface {
	Get(ctx context.Context, profileID string) (*models.PaymentStatus, bool)
	Set(ctx context.Context, profileID string, st *models.PaymentStatus)
	Invalidate(ctx context.Context, profileID string)
}
