package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/novaops/nova-control/internal/core"
	"github.com/novaops/nova-control/internal/models"
)

var (
	ErrProfileNotFound     = errors.New("profile not found")
	ErrUserNotFound        = errors.New("user not found")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrTrialAlreadyUsed    = errors.New("trial already used")
)

type BillingService struct {
	store     core.BillingStore
	cache     core.PaymentCache
	price     float64
	trialDays int
	now       func() time.Time
}

type noopCache struct{}

func (noopCache) Get(context.Context, string) (*models.PaymentStatus, bool) { return nil, false }
func (noopCache) Set(context.Context, string, *models.PaymentStatus)        {}
func (noopCache) Invalidate(context.Context, string)                        {}

func NewBillingService(store core.BillingStore, cache core.PaymentCache, price float64, trialDays int) *BillingService {
	if cache == nil {
		cache = noopCache{}
	}
	return &BillingService{
		store:     store,
		cache:     cache,
		price:     price,
		trialDays: trialDays,
		now:       time.Now,
	}
}

// DerivePaymentStatus applies the billing decision order to a profile row.
// info may be nil (unknown profile: not paid, trial open, auto-provisioned by
// the next heartbeat).
func DerivePaymentStatus(info *core.ProfileBillingInfo, now time.Time) *models.PaymentStatus {
	if info == nil {
		return &models.PaymentStatus{Status: models.PayStatusTrialAvailable, CanTrial: true}
	}
	if info.AdminRestricted || info.TranslatorOwn {
		return &models.PaymentStatus{Status: models.PayStatusExempt, IsPaid: true}
	}
	p := info.Profile
	if p.PaidUntil != nil && p.PaidUntil.After(now) {
		days := int(math.Ceil(p.PaidUntil.Sub(now).Hours() / 24))
		return &models.PaymentStatus{Status: models.PayStatusPaid, IsPaid: true, DaysLeft: days}
	}
	if !p.IsTrial && p.TrialStartedAt == nil {
		return &models.PaymentStatus{Status: models.PayStatusTrialAvailable, CanTrial: true}
	}
	return &models.PaymentStatus{Status: models.PayStatusPaymentRequired}
}

// CheckProfilePaymentStatus derives the payment status of a profile,
// cache-aside: heartbeats arrive every few seconds per bot, so a short TTL
// keeps the hot path off Postgres.
func (s *BillingService) CheckProfilePaymentStatus(ctx context.Context, profileID string) (*models.PaymentStatus, error) {
	if st, ok := s.cache.Get(ctx, profileID); ok {
		return st, nil
	}
	info, err := s.store.ProfileBillingInfo(ctx, profileID)
	if err != nil {
		return nil, err
	}
	st := DerivePaymentStatus(info, s.now())
	s.cache.Set(ctx, profileID, st)
	return st, nil
}

// Topup credits a user's balance and appends the ledger row atomically.
func (s *BillingService) Topup(ctx context.Context, actor *models.User, targetUserID int64, amount float64, comment string) error {
	if amount <= 0 {
		return fmt.Errorf("amount must be positive")
	}
	return s.store.InTx(ctx, func(tx core.BillingTx) error {
		target, err := tx.UserForUpdate(ctx, targetUserID)
		if err != nil {
			return err
		}
		if target == nil {
			return ErrUserNotFound
		}
		if err := tx.AdjustBalance(ctx, targetUserID, amount); err != nil {
			return err
		}
		return tx.InsertBillingEntry(ctx, &models.BillingEntry{
			UserID:    targetUserID,
			Amount:    amount,
			Kind:      "topup",
			Comment:   comment,
			CreatedBy: &actor.ID,
		})
	})
}

// PayProfile debits the payer and extends the profile's paid_until by 30 days
// per month paid. The payer row is locked first, so a concurrent payment
// cannot spend the same balance twice, and the extension base is read inside
// the same transaction, so two interleaved payments stack instead of one
// overwriting the other. Any later failure rolls the debit back.
func (s *BillingService) PayProfile(ctx context.Context, payer *models.User, profileID string, months int) (*time.Time, error) {
	if months <= 0 {
		months = 1
	}
	info, err := s.store.ProfileBillingInfo(ctx, profileID)
	if err != nil {
		return nil, err
	}
	if info == nil {
		return nil, ErrProfileNotFound
	}

	cost := s.price * float64(months)
	var newUntil time.Time
	err = s.store.InTx(ctx, func(tx core.BillingTx) error {
		u, err := tx.UserForUpdate(ctx, payer.ID)
		if err != nil {
			return err
		}
		if u == nil {
			return ErrUserNotFound
		}
		if u.Balance < cost {
			return ErrInsufficientBalance
		}
		if err := tx.AdjustBalance(ctx, payer.ID, -cost); err != nil {
			return err
		}
		if err := tx.InsertBillingEntry(ctx, &models.BillingEntry{
			UserID:    payer.ID,
			Amount:    -cost,
			Kind:      "charge",
			Comment:   fmt.Sprintf("profile %s, %d month(s)", profileID, months),
			CreatedBy: &payer.ID,
		}); err != nil {
			return err
		}
		newUntil, err = tx.ExtendProfilePaid(ctx, profileID, months)
		if err != nil {
			return err
		}
		return tx.InsertProfilePayment(ctx, &models.ProfilePayment{
			ProfileID: profileID,
			AdminID:   &payer.ID,
			Amount:    cost,
			PaidUntil: &newUntil,
			Reason:    "payment",
		})
	})
	if err != nil {
		return nil, err
	}

	s.cache.Invalidate(ctx, profileID)
	return &newUntil, nil
}

// StartTrial consumes the profile's single trial period.
func (s *BillingService) StartTrial(ctx context.Context, profileID string) (*time.Time, error) {
	info, err := s.store.ProfileBillingInfo(ctx, profileID)
	if err != nil {
		return nil, err
	}
	if info == nil {
		return nil, ErrProfileNotFound
	}
	until := s.now().AddDate(0, 0, s.trialDays)
	ok, err := s.store.StartTrial(ctx, profileID, until)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrTrialAlreadyUsed
	}
	s.cache.Invalidate(ctx, profileID)
	return &until, nil
}
