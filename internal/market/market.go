// Package market is the reward catalog and the request → approval →
// redemption state machine, including scarcity and cooldown rules.
package market

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/mhollis/chorecoin/internal/model"
	"github.com/mhollis/chorecoin/internal/store"
)

var (
	ErrRewardNotFound    = errors.New("reward not found")
	ErrRewardInactive    = errors.New("reward is not active")
	ErrInsufficientCoins = errors.New("insufficient coin balance")
	ErrDuplicatePending  = errors.New("a pending request for this reward already exists")
	ErrRewardExhausted   = errors.New("reward has reached its redemption limit")
	ErrCooldownActive    = errors.New("reward cooldown has not elapsed")
	ErrTitleRequired     = errors.New("title is required")
	ErrCostNotPositive   = errors.New("coin cost must be positive")
	ErrCashValueRequired = errors.New("monetary rewards require a cash value")
	ErrAlreadyResolved   = store.ErrAlreadyResolved
)

// coinCashRate converts coins to a cash-equivalent for legacy monetary
// rewards created before cash_value became mandatory.
const coinCashRate = 0.10

type Service struct {
	rewards  *store.RewardStore
	requests *store.RequestStore
	users    *store.UserStore
	logger   *slog.Logger
}

func NewService(rewards *store.RewardStore, requests *store.RequestStore, users *store.UserStore, logger *slog.Logger) *Service {
	return &Service{rewards: rewards, requests: requests, users: users, logger: logger}
}

// CreateReward validates and inserts a reward. Creation is idempotent by
// (title, category) within a household: a match against an existing active
// reward bumps that reward's popularity instead of inserting a duplicate.
// The returned bool is true when a new row was created.
func (s *Service) CreateReward(r *model.Reward) (*model.Reward, bool, error) {
	r.Title = strings.TrimSpace(r.Title)
	if r.Title == "" {
		return nil, false, ErrTitleRequired
	}
	if r.CoinCost <= 0 {
		return nil, false, ErrCostNotPositive
	}
	if r.Category == model.CategoryMoney && r.CashValue <= 0 {
		return nil, false, ErrCashValueRequired
	}

	existing, err := s.rewards.FindActiveByTitleCategory(r.HouseholdID, r.Title, r.Category)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		if err := s.rewards.IncrementPopularity(existing.ID); err != nil {
			return nil, false, err
		}
		updated, err := s.rewards.GetByID(existing.ID)
		return updated, false, err
	}

	created, err := s.rewards.Create(r)
	if err != nil {
		return nil, false, err
	}
	return created, true, nil
}

// Request runs the ordered precondition chain — balance, duplicate pending,
// scarcity, cooldown; first failure wins — then records a pending request
// snapshotting the reward. Rewards that don't require approval resolve
// immediately with the same ledger effects as an admin approval.
func (s *Service) Request(ctx context.Context, userID, rewardID int64) (*model.RewardRequest, error) {
	reward, err := s.rewards.GetByID(rewardID)
	if err != nil {
		return nil, err
	}
	if reward == nil {
		return nil, ErrRewardNotFound
	}
	if !reward.Active {
		// A reward retired by hitting its redemption cap reads as a
		// scarcity failure, not a generic inactive one.
		if reward.Exhausted() {
			return nil, ErrRewardExhausted
		}
		return nil, ErrRewardInactive
	}

	now := time.Now().UTC()

	balance, err := s.users.Balance(userID)
	if err != nil {
		return nil, err
	}
	if balance < reward.CoinCost {
		return nil, ErrInsufficientCoins
	}

	pending, err := s.requests.HasPending(userID, rewardID)
	if err != nil {
		return nil, err
	}
	if pending {
		return nil, ErrDuplicatePending
	}

	if reward.Exhausted() {
		return nil, ErrRewardExhausted
	}

	if reward.CooldownHours > 0 && reward.LastRequestedAt != nil {
		elapsed := now.Sub(*reward.LastRequestedAt)
		if elapsed < time.Duration(reward.CooldownHours)*time.Hour {
			return nil, ErrCooldownActive
		}
	}

	req, err := s.requests.Create(reward, userID, now)
	if err != nil {
		return nil, err
	}
	if err := s.rewards.IncrementPopularity(reward.ID); err != nil {
		s.logger.Error("bump popularity", "reward_id", reward.ID, "error", err)
	}

	s.logger.Info("reward requested",
		"request_id", req.ID, "reward_id", reward.ID, "user_id", userID, "coin_cost", req.CoinCost)

	if !reward.RequiresApproval {
		return s.Approve(ctx, req.ID, userID)
	}
	return req, nil
}

// Approve debits the snapshotted cost (clamped at zero), credits the
// cash-equivalent for monetary rewards, and advances the redemption counter —
// deactivating the reward atomically when the counter hits its cap. The
// ledger transition commits last, so a crash mid-operation leaves the
// request pending and safe to retry.
func (s *Service) Approve(ctx context.Context, requestID, processorID int64) (*model.RewardRequest, error) {
	req, err := s.requests.GetByID(requestID)
	if err != nil {
		return nil, err
	}
	if req == nil {
		return nil, store.ErrNotFound
	}
	if !req.Status.CanTransition(model.RequestApproved) {
		return nil, ErrAlreadyResolved
	}

	now := time.Now().UTC()

	// The reward may be gone; the snapshot still settles the ledger side.
	if req.RewardID != 0 {
		if err := s.recordRedemption(ctx, req.RewardID, now); err != nil {
			return nil, err
		}
	}

	approved, err := s.requests.Approve(requestID, processorID, s.cashValue(req))
	if err != nil {
		return nil, err
	}

	s.logger.Info("reward request approved",
		"request_id", approved.ID, "processor_id", processorID, "coin_cost", approved.CoinCost)
	return approved, nil
}

// recordRedemption is the optimistic-concurrency loop around the shared
// redemption counter: re-read, compare-and-swap, retry on conflict.
func (s *Service) recordRedemption(ctx context.Context, rewardID int64, now time.Time) error {
	backoff := retry.WithMaxRetries(5, retry.NewConstant(10*time.Millisecond))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		reward, err := s.rewards.GetByID(rewardID)
		if err != nil {
			return err
		}
		if reward == nil {
			// Deleted mid-flight; nothing left to count.
			return nil
		}
		if reward.Exhausted() {
			return ErrRewardExhausted
		}
		err = s.rewards.RecordRedemption(rewardID, reward.CurrentRedemptions, now)
		if errors.Is(err, store.ErrConflict) {
			return retry.RetryableError(err)
		}
		return err
	})
}

// cashValue resolves the cash-equivalent credited on approval: zero for
// non-monetary categories, the explicit snapshot value otherwise, with a
// fixed coin-conversion fallback for legacy rows that predate validation.
func (s *Service) cashValue(req *model.RewardRequest) float64 {
	if req.RewardCategory != model.CategoryMoney {
		return 0
	}
	if req.CashValue > 0 {
		return req.CashValue
	}
	s.logger.Warn("monetary reward missing cash value, using conversion rate",
		"request_id", req.ID, "coin_cost", req.CoinCost)
	return float64(req.CoinCost) * coinCashRate
}

// Deny closes a pending request with no balance effect.
func (s *Service) Deny(requestID, processorID int64) (*model.RewardRequest, error) {
	req, err := s.requests.Deny(requestID, processorID)
	if err != nil {
		return nil, err
	}
	s.logger.Info("reward request denied", "request_id", req.ID, "processor_id", processorID)
	return req, nil
}

// Fulfill acknowledges real-world delivery of an approved request.
func (s *Service) Fulfill(requestID, processorID int64) (*model.RewardRequest, error) {
	req, err := s.requests.Fulfill(requestID, processorID)
	if err != nil {
		if errors.Is(err, store.ErrAlreadyResolved) {
			return nil, fmt.Errorf("only approved requests can be fulfilled: %w", err)
		}
		return nil, err
	}
	s.logger.Info("reward request fulfilled", "request_id", req.ID, "processor_id", processorID)
	return req, nil
}
