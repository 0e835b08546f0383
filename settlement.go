package lottery

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// Totals summarizes a settled slip in coins
type Totals struct {
	Cost    decimal.Decimal `json:"cost"`
	Payout  decimal.Decimal `json:"payout"`
	Delta   decimal.Decimal `json:"delta"`
	Balance decimal.Decimal `json:"balance"`
}

// SettlementResult is the outcome of settling a slip against one draw
type SettlementResult struct {
	Seed      string      `json:"seed"`
	Timestamp string      `json:"timestamp"`
	Prizes    []Prize     `json:"prizes"`
	Legs      []LegResult `json:"legs"`
	Totals    Totals      `json:"totals"`
}

// PracticeResult is a single leg priced against a fresh draw with no balance involved
type PracticeResult struct {
	Seed      string    `json:"seed"`
	Timestamp string    `json:"timestamp"`
	Prizes    []Prize   `json:"prizes"`
	Leg       LegResult `json:"leg"`
}

// Settler prices slips against fresh draws and applies the net result to a balance store
type Settler struct {
	store   BalanceStore
	locker  Locker
	seeds   SeedSource
	config  *SettlementConfig
	logger  Logger
	monitor *SettlementMonitor

	mu    sync.RWMutex // 保护 rules
	rules Rules
}

// NewSettler creates a settler with default rules, an in-process locker and UUID seeds
func NewSettler(store BalanceStore) *Settler {
	return NewSettlerWithConfigAndLogger(store, DefaultRules(), DefaultSettlementConfig(), &DefaultLogger{})
}

// NewSettlerWithLogger creates a settler with default rules and a custom logger
func NewSettlerWithLogger(store BalanceStore, logger Logger) *Settler {
	return NewSettlerWithConfigAndLogger(store, DefaultRules(), DefaultSettlementConfig(), logger)
}

// NewSettlerWithConfigAndLogger creates a settler with custom rules, settlement config and logger
func NewSettlerWithConfigAndLogger(store BalanceStore, rules Rules, config *SettlementConfig, logger Logger) *Settler {
	if config == nil {
		config = DefaultSettlementConfig()
	}
	if logger == nil {
		logger = &SilentLogger{}
	}

	monitor := NewSettlementMonitor()
	return &Settler{
		store:   store,
		locker:  NewKeyedMutexLocker(config.LockTimeout, monitor),
		seeds:   NewUUIDSeedSource(),
		config:  config,
		logger:  logger,
		monitor: monitor,
		rules:   rules,
	}
}

// SetLocker replaces the per-identity locker
func (s *Settler) SetLocker(locker Locker) { s.locker = locker }

// SetSeedSource replaces the draw seed source
func (s *Settler) SetSeedSource(seeds SeedSource) { s.seeds = seeds }

// SetMonitor replaces the settlement monitor
func (s *Settler) SetMonitor(monitor *SettlementMonitor) { s.monitor = monitor }

// GetMonitor returns the settlement monitor
func (s *Settler) GetMonitor() *SettlementMonitor { return s.monitor }

// GetRules returns a copy of the active rules
func (s *Settler) GetRules() Rules {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r := s.rules
	r.Multipliers = make(MultiplierTable, len(s.rules.Multipliers))
	for k, v := range s.rules.Multipliers {
		r.Multipliers[k] = v
	}
	return r
}

// UpdateRules swaps the active rules; settlements already in flight keep the rules they started with
func (s *Settler) UpdateRules(rules Rules) error {
	s.logger.Debug("UpdateRules called")

	for _, m := range Modes {
		if rules.Multipliers[m] <= 0 {
			s.logger.Error("UpdateRules failed: missing multiplier for %s", m)
			return ErrConfigInvalid.WithDetails(fmt.Sprintf("missing multiplier for mode %s", m))
		}
	}
	if !rules.MaxStake.IsPositive() || rules.StartingBalance.IsNegative() {
		s.logger.Error("UpdateRules failed: invalid amounts")
		return ErrConfigInvalid.WithDetails("max stake must be positive and starting balance non-negative")
	}
	if rules.PlacementSeven != PlacementSevenReject && rules.PlacementSeven != PlacementSevenDrop {
		return ErrConfigInvalid.WithDetails(fmt.Sprintf("invalid placement seven policy %q", rules.PlacementSeven))
	}

	s.mu.Lock()
	s.rules = rules
	s.mu.Unlock()

	s.logger.Info("rules updated: table=%s, maxStake=%s, placementSeven=%s",
		rules.TableName, rules.MaxStake, rules.PlacementSeven)
	return nil
}

// NewDraw produces a fresh draw from the seed source
func (s *Settler) NewDraw() (Draw, error) {
	seed, timestamp, err := s.seeds.Next()
	if err != nil {
		s.logger.Error("seed source failed: %v", err)
		return Draw{}, ErrDrawFailed.WithCause(err)
	}
	return GenerateDraw(seed, timestamp), nil
}

// Settle validates every leg, draws once, prices the whole slip and applies payout minus cost
// to the identity's balance in a single increment. When the balance cannot cover the total cost
// the result is still returned, carrying the would-be totals and the unchanged balance, together
// with ErrInsufficientFunds.
func (s *Settler) Settle(ctx context.Context, id string, legs []Leg) (*SettlementResult, error) {
	start := time.Now()

	if id == "" {
		s.monitor.RecordSettlement(OutcomeRejected, 0, 0, 0, time.Since(start))
		return nil, ErrUnauthorized
	}
	if len(legs) == 0 {
		s.monitor.RecordSettlement(OutcomeRejected, 0, 0, 0, time.Since(start))
		return nil, ErrEmptySlip
	}

	rules := s.GetRules()

	normalized := make([]Leg, 0, len(legs))
	for i, leg := range legs {
		n, err := leg.Normalize(rules)
		if err != nil {
			s.monitor.RecordSettlement(OutcomeRejected, 0, 0, 0, time.Since(start))
			return nil, annotateLeg(err, i)
		}
		normalized = append(normalized, n)
	}

	unlock, err := s.locker.Lock(ctx, SettlementLockPrefix+identityHash(id))
	if err != nil {
		s.logger.Error("settlement lock failed: user=%s, error=%v", identityHash(id), err)
		s.monitor.RecordSettlement(OutcomeFailed, 0, 0, 0, time.Since(start))
		return nil, err
	}
	defer unlock()

	balance, err := s.getBalance(ctx, id)
	if err != nil {
		s.monitor.RecordSettlement(OutcomeFailed, 0, 0, 0, time.Since(start))
		return nil, err
	}

	draw, err := s.NewDraw()
	if err != nil {
		s.monitor.RecordSettlement(OutcomeFailed, 0, 0, 0, time.Since(start))
		return nil, err
	}

	prizes := draw.PrizeList()
	result := &SettlementResult{
		Seed:      draw.Seed,
		Timestamp: draw.Timestamp,
		Prizes:    prizes,
		Legs:      make([]LegResult, 0, len(normalized)),
	}

	var costCents, payoutCents int64
	for i, leg := range normalized {
		priced, err := PriceLeg(leg, prizes, rules.Multipliers)
		if err != nil {
			s.monitor.RecordSettlement(OutcomeRejected, 0, 0, 0, time.Since(start))
			return nil, annotateLeg(err, i)
		}
		costCents += priced.CostCents
		payoutCents += priced.PayoutCents
		result.Legs = append(result.Legs, priced)
	}

	result.Totals = Totals{
		Cost:    FromCents(costCents),
		Payout:  FromCents(payoutCents),
		Delta:   FromCents(payoutCents - costCents),
		Balance: balance,
	}

	if balance.LessThan(result.Totals.Cost) {
		s.logger.Info("insufficient funds: user=%s, balance=%s, cost=%s",
			identityHash(id), balance, result.Totals.Cost)
		s.monitor.RecordSettlement(OutcomeInsufficientFunds, len(normalized), costCents, payoutCents, time.Since(start))
		return result, ErrInsufficientFunds.
			WithMetadata("cost", result.Totals.Cost.StringFixed(StakeDecimalPlaces)).
			WithMetadata("balance", balance.StringFixed(StakeDecimalPlaces))
	}

	newBalance, err := s.incrementBalance(ctx, id, result.Totals.Delta)
	if err != nil {
		s.monitor.RecordSettlement(OutcomeFailed, len(normalized), costCents, payoutCents, time.Since(start))
		return nil, err
	}
	result.Totals.Balance = newBalance

	s.logger.Debug("slip settled: user=%s, legs=%d, cost=%d, payout=%d, seed=%s",
		identityHash(id), len(normalized), costCents, payoutCents, draw.Seed)
	s.monitor.RecordSettlement(OutcomeSettled, len(normalized), costCents, payoutCents, time.Since(start))
	return result, nil
}

// Practice prices a single leg against a fresh draw. No identity is needed and no balance moves.
func (s *Settler) Practice(ctx context.Context, leg Leg) (*PracticeResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rules := s.GetRules()
	normalized, err := leg.Normalize(rules)
	if err != nil {
		return nil, err
	}

	draw, err := s.NewDraw()
	if err != nil {
		return nil, err
	}

	prizes := draw.PrizeList()
	priced, err := PriceLeg(normalized, prizes, rules.Multipliers)
	if err != nil {
		return nil, err
	}

	s.monitor.RecordPractice()
	return &PracticeResult{
		Seed:      draw.Seed,
		Timestamp: draw.Timestamp,
		Prizes:    prizes,
		Leg:       priced,
	}, nil
}

// Balance returns the identity's current balance
func (s *Settler) Balance(ctx context.Context, id string) (decimal.Decimal, error) {
	if id == "" {
		return decimal.Zero, ErrUnauthorized
	}
	return s.getBalance(ctx, id)
}

// ResetBalance restores the identity's balance to the configured starting balance
func (s *Settler) ResetBalance(ctx context.Context, id string) (decimal.Decimal, error) {
	if id == "" {
		return decimal.Zero, ErrUnauthorized
	}

	unlock, err := s.locker.Lock(ctx, SettlementLockPrefix+identityHash(id))
	if err != nil {
		return decimal.Zero, err
	}
	defer unlock()

	starting := s.GetRules().StartingBalance

	storeCtx, cancel := context.WithTimeout(ctx, s.config.StoreTimeout)
	defer cancel()

	balance, err := s.store.SetBalance(storeCtx, id, starting)
	if err != nil {
		s.monitor.RecordStoreError()
		s.logger.Error("balance reset failed: user=%s, error=%v", identityHash(id), err)
		return decimal.Zero, storeError("set", err)
	}

	s.logger.Info("balance reset: user=%s, balance=%s", identityHash(id), balance)
	return balance, nil
}

func (s *Settler) getBalance(ctx context.Context, id string) (decimal.Decimal, error) {
	storeCtx, cancel := context.WithTimeout(ctx, s.config.StoreTimeout)
	defer cancel()

	balance, err := s.store.GetBalance(storeCtx, id)
	if err != nil {
		s.monitor.RecordStoreError()
		s.logger.Error("balance read failed: user=%s, error=%v", identityHash(id), err)
		return decimal.Zero, storeError("get", err)
	}
	return balance, nil
}

func (s *Settler) incrementBalance(ctx context.Context, id string, delta decimal.Decimal) (decimal.Decimal, error) {
	storeCtx, cancel := context.WithTimeout(ctx, s.config.StoreTimeout)
	defer cancel()

	balance, err := s.store.IncrementBalance(storeCtx, id, delta)
	if err != nil {
		s.monitor.RecordStoreError()
		s.logger.Error("balance increment failed: user=%s, delta=%s, error=%v", identityHash(id), delta, err)
		return decimal.Zero, storeError("increment", err)
	}
	return balance, nil
}

// annotateLeg tags a validation error with the index of the offending leg
func annotateLeg(err error, index int) error {
	var lotteryErr *LotteryError
	if errors.As(err, &lotteryErr) {
		return lotteryErr.WithMetadata("leg", index)
	}
	return err
}
