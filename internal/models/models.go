package models

import (
	"encoding/json"
	"time"
)

// Role of a dashboard user within the tenant hierarchy.
type Role string

const (
	RoleDirector   Role = "director"
	RoleAdmin      Role = "admin"
	RoleTranslator Role = "translator"
)

// User represents a dashboard account (director, admin or translator).
type User struct {
	ID              int64     `db:"id" json:"id"`
	Username        string    `db:"username" json:"username"`
	Login           string    `db:"login" json:"login"`
	PasswordHash    string    `db:"password" json:"-"`
	Role            Role      `db:"role" json:"role"`
	OwnerID         *int64    `db:"owner_id" json:"owner_id,omitempty"` // admin owning this translator
	Balance         float64   `db:"balance" json:"balance"`
	IsRestricted    bool      `db:"is_restricted" json:"is_restricted"` // "my admin": exempt from billing
	IsOwnTranslator bool      `db:"is_own_translator" json:"is_own_translator"`
	AIEnabled       bool      `db:"ai_enabled" json:"ai_enabled"`
	Salary          float64   `db:"salary" json:"salary"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
}

// Profile represents an allowed external dating-site account.
type Profile struct {
	ProfileID            string     `db:"profile_id" json:"profile_id"`
	Login                string     `db:"login" json:"login"`
	Password             string     `db:"password" json:"-"`
	Note                 string     `db:"note" json:"note"`
	Paused               bool       `db:"paused" json:"paused"`
	Proxy                string     `db:"proxy" json:"proxy"`
	AssignedAdminID      *int64     `db:"assigned_admin_id" json:"assigned_admin_id,omitempty"`
	AssignedTranslatorID *int64     `db:"assigned_translator_id" json:"assigned_translator_id,omitempty"`
	PaidUntil            *time.Time `db:"paid_until" json:"paid_until,omitempty"`
	IsTrial              bool       `db:"is_trial" json:"is_trial"`
	TrialStartedAt       *time.Time `db:"trial_started_at" json:"trial_started_at,omitempty"`
	Status               string     `db:"status" json:"status"`
	LastOnline           *time.Time `db:"last_online" json:"last_online,omitempty"`
	CreatedAt            time.Time  `db:"created_at" json:"created_at"`
}

// Bot is one physical bot process; it may host several profiles but pairs
// with exactly one verified profile (first write wins).
type Bot struct {
	BotID             string          `db:"bot_id" json:"bot_id"`
	VerifiedProfileID *string         `db:"verified_profile_id" json:"verified_profile_id,omitempty"`
	ExtendedData      json.RawMessage `db:"extended_data" json:"extended_data,omitempty"`
	FirstSeen         time.Time       `db:"first_seen" json:"first_seen"`
	LastSeen          time.Time       `db:"last_seen" json:"last_seen"`
}

// Heartbeat is one liveness report from a bot.
type Heartbeat struct {
	ID               int64     `db:"id" json:"id"`
	BotID            string    `db:"bot_id" json:"bot_id"`
	AccountDisplayID string    `db:"account_display_id" json:"account_display_id"`
	Status           string    `db:"status" json:"status"`
	IP               string    `db:"ip" json:"ip"`
	Version          string    `db:"version" json:"version"`
	ProfilesTotal    int       `db:"profiles_total" json:"profiles_total"`
	Timestamp        time.Time `db:"timestamp" json:"timestamp"`
}

// MessageContent holds the normalized text/media of a sent message.
type MessageContent struct {
	ID       string  `db:"id" json:"id"`
	Text     string  `db:"text" json:"text"`
	MediaURL *string `db:"media_url" json:"media_url,omitempty"`
}

// Message is one sent letter or chat message.
type Message struct {
	ID           int64     `db:"id" json:"id"`
	ProfileID    string    `db:"profile_id" json:"profile_id"`
	ManID        string    `db:"man_id" json:"man_id"`
	ContentID    string    `db:"content_id" json:"content_id"`
	Kind         string    `db:"kind" json:"kind"` // "letter" or "chat"
	AdminID      *int64    `db:"admin_id" json:"admin_id,omitempty"`           // denormalized at send time
	TranslatorID *int64    `db:"translator_id" json:"translator_id,omitempty"` // denormalized at send time
	ErrorLogID   *int64    `db:"error_log_id" json:"error_log_id,omitempty"`
	UsedAI       bool      `db:"used_ai" json:"used_ai"`
	IsReply      bool      `db:"is_reply" json:"is_reply"`
	SentAt       time.Time `db:"sent_at" json:"sent_at"`
}

// ErrorLog records a failed send for operator visibility.
type ErrorLog struct {
	ID        int64     `db:"id" json:"id"`
	ProfileID string    `db:"profile_id" json:"profile_id"`
	Code      string    `db:"code" json:"code"`
	Message   string    `db:"message" json:"message"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// ActivityRecord duplicates the key message fields so dashboard aggregation
// never joins back into messages. Written in the same transaction as the
// message row.
type ActivityRecord struct {
	ID              int64     `db:"id" json:"id"`
	ProfileID       string    `db:"profile_id" json:"profile_id"`
	ActionType      string    `db:"action_type" json:"action_type"`
	ManID           string    `db:"man_id" json:"man_id"`
	TemplateText    *string   `db:"template_text" json:"template_text,omitempty"`
	MessageText     *string   `db:"message_text" json:"message_text,omitempty"`
	ResponseTimeSec *int      `db:"response_time_sec" json:"response_time_sec,omitempty"`
	UsedAI          bool      `db:"used_ai" json:"used_ai"`
	IsReply         bool      `db:"is_reply" json:"is_reply"`
	AdminID         *int64    `db:"admin_id" json:"admin_id,omitempty"`
	TranslatorID    *int64    `db:"translator_id" json:"translator_id,omitempty"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
}

// IncomingMessage is an inbound message from the dating site.
type IncomingMessage struct {
	ID             int64     `db:"id" json:"id"`
	ProfileID      string    `db:"profile_id" json:"profile_id"`
	ManID          string    `db:"man_id" json:"man_id"`
	Text           string    `db:"text" json:"text"`
	IsFirstFromMan bool      `db:"is_first_from_man" json:"is_first_from_man"`
	ReceivedAt     time.Time `db:"received_at" json:"received_at"`
}

// ActivityPing is a lightweight liveness signal used only for work-time
// estimation, distinct from heartbeats.
type ActivityPing struct {
	ID           int64     `db:"id" json:"id"`
	ProfileID    string    `db:"profile_id" json:"profile_id"`
	TranslatorID *int64    `db:"translator_id" json:"translator_id,omitempty"`
	PingedAt     time.Time `db:"pinged_at" json:"pinged_at"`
}

// BillingEntry is one append-only billing_history row.
type BillingEntry struct {
	ID        int64     `db:"id" json:"id"`
	UserID    int64     `db:"user_id" json:"user_id"`
	Amount    float64   `db:"amount" json:"amount"` // positive topup, negative charge
	Kind      string    `db:"kind" json:"kind"`     // "topup" or "charge"
	Comment   string    `db:"comment" json:"comment"`
	CreatedBy *int64    `db:"created_by" json:"created_by,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// ProfilePayment is one append-only profile_payment_history row.
type ProfilePayment struct {
	ID        int64      `db:"id" json:"id"`
	ProfileID string     `db:"profile_id" json:"profile_id"`
	AdminID   *int64     `db:"admin_id" json:"admin_id,omitempty"`
	Amount    float64    `db:"amount" json:"amount"`
	PaidUntil *time.Time `db:"paid_until" json:"paid_until,omitempty"`
	Reason    string     `db:"reason" json:"reason"` // "payment", "trial", "deletion_backup", "restore"
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
}

// FavoriteTemplate is an operator-saved mailing/chat template.
type FavoriteTemplate struct {
	ID        int64     `db:"id" json:"id"`
	UserID    int64     `db:"user_id" json:"user_id"`
	Title     string    `db:"title" json:"title"`
	Text      string    `db:"text" json:"text"`
	Kind      string    `db:"kind" json:"kind"` // "letter" or "chat"
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Payment status values returned by billing derivation and heartbeats.
const (
	PayStatusPaid            = "paid"
	PayStatusExempt          = "exempt"
	PayStatusTrialAvailable  = "trial_available"
	PayStatusPaymentRequired = "payment_required"
)

// PaymentStatus is the derived billing state of a profile.
type PaymentStatus struct {
	Status   string `json:"status"`
	IsPaid   bool   `json:"isPaid"`
	CanTrial bool   `json:"canTrial"`
	DaysLeft int    `json:"daysLeft,omitempty"`
}
