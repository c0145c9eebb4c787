package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/khedge/kimchi_hedge/internal/domain"
	"github.com/khedge/kimchi_hedge/internal/events"
)

// State is the engine's position in the trading lifecycle.
type State string

const (
	StateIdle          State = "IDLE"
	StateWaitEntry     State = "WAIT_ENTRY"
	StateEntering      State = "ENTERING"
	StatePositionOpen  State = "POSITION_OPEN"
	StateExiting       State = "EXITING"
	StateCooldown      State = "COOLDOWN"
	StateErrorRollback State = "ERROR_ROLLBACK"
)

// StateChange is the payload published on every transition.
type StateChange struct {
	From State `json:"from"`
	To   State `json:"to"`
}

// EngineStatus is a point-in-time snapshot for the control surface.
type EngineStatus struct {
	State             State                  `json:"state"`
	Enabled           bool                   `json:"enabled"`
	Settings          domain.TradingSettings `json:"settings"`
	Position          *domain.Position       `json:"position,omitempty"`
	LastPremium       *domain.PremiumData    `json:"last_premium,omitempty"`
	CooldownRemaining int                    `json:"cooldown_remaining_seconds"`
}

// TradingEngine drives the hedge lifecycle. Premium updates arriving while
// a decision cycle is in flight are coalesced latest-wins; at most one
// order sequence runs at a time.
type TradingEngine struct {
	evaluator *ConditionEvaluator
	executor  *OrderExecutor
	positions *PositionManager
	rollback  *RollbackService
	cooldown  *CooldownService
	bus       *events.Bus
	logger    *zap.Logger

	// runMu serializes decision cycles and control operations. It is held
	// across the network calls of an order sequence.
	runMu sync.Mutex

	// mu protects the fields below and is never held across network calls.
	mu          sync.Mutex
	state       State
	settings    domain.TradingSettings
	enabled     bool
	sequences   int
	pending     *domain.PremiumData
	lastPremium *domain.PremiumData
}

func NewTradingEngine(
	executor *OrderExecutor,
	positions *PositionManager,
	rollback *RollbackService,
	cooldown *CooldownService,
	settings domain.TradingSettings,
	bus *events.Bus,
	logger *zap.Logger,
) (*TradingEngine, error) {
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	e := &TradingEngine{
		evaluator: NewConditionEvaluator(),
		executor:  executor,
		positions: positions,
		rollback:  rollback,
		cooldown:  cooldown,
		bus:       bus,
		logger:    logger,
		state:     StateIdle,
		settings:  settings,
	}
	cooldown.SetDuration(settings.CooldownSeconds)
	cooldown.OnEnd(e.onCooldownEnd)
	return e, nil
}

// ToggleOn enables trading. Idempotent.
func (e *TradingEngine) ToggleOn() {
	e.runMu.Lock()
	defer e.runMu.Unlock()

	e.mu.Lock()
	if e.enabled {
		e.mu.Unlock()
		return
	}
	e.enabled = true
	e.mu.Unlock()

	if e.positions.HasPosition() {
		e.setState(StatePositionOpen)
	} else {
		e.setState(StateWaitEntry)
	}
	e.logger.Info("trading enabled")
}

// ToggleOff disables trading. An open position is closed at market first;
// the call waits for any in-flight order sequence to finish. A failed
// rollback leaves the engine parked in ErrorRollback with its half-built
// position intact: disabling never fabricates a close for legs nobody
// confirmed, the operator has to flatten the venues first.
func (e *TradingEngine) ToggleOff(ctx context.Context) {
	e.mu.Lock()
	if !e.enabled {
		e.mu.Unlock()
		return
	}
	e.enabled = false
	e.pending = nil
	premium := e.lastPremium
	e.sequences++
	e.mu.Unlock()
	defer e.finishSequence()

	e.runMu.Lock()
	defer e.runMu.Unlock()

	if e.currentState() == StateErrorRollback {
		e.cooldown.Cancel()
		e.logger.Warn("trading disabled while parked after failed rollback, venues may hold stray legs")
		return
	}

	if e.positions.HasPosition() {
		e.executeExit(ctx, closePremiumOf(premium), domain.CloseManual)
	}
	e.cooldown.Cancel()
	if e.currentState() != StateErrorRollback {
		e.setState(StateIdle)
	}
	e.logger.Info("trading disabled")
}

// ManualClose closes the open position at market without disabling trading.
func (e *TradingEngine) ManualClose(ctx context.Context) error {
	e.mu.Lock()
	premium := e.lastPremium
	e.sequences++
	e.mu.Unlock()
	defer e.finishSequence()

	e.runMu.Lock()
	defer e.runMu.Unlock()

	if e.currentState() == StateErrorRollback {
		return errors.New("rollback incomplete, manual intervention required")
	}
	if !e.positions.HasPosition() {
		return errors.New("no open position")
	}

	e.executeExit(ctx, closePremiumOf(premium), domain.CloseManual)
	return nil
}

// UpdateSettings validates and applies a full settings object atomically.
// Invalid settings leave the previous ones untouched.
func (e *TradingEngine) UpdateSettings(s domain.TradingSettings) error {
	if err := s.Validate(); err != nil {
		return fmt.Errorf("settings rejected: %w", err)
	}
	e.mu.Lock()
	e.settings = s
	e.mu.Unlock()
	e.cooldown.SetDuration(s.CooldownSeconds)
	e.logger.Info("settings updated",
		zap.String("entry", s.EntryPremium.String()),
		zap.String("take_profit", s.TakeProfitPremium.String()),
		zap.String("stop_loss", s.StopLossPremium.String()))
	return nil
}

// OnPremiumUpdate feeds one premium observation into the engine. The call
// never blocks behind an in-flight sequence, whether a decision cycle or a
// manual control operation: the newest observation is parked and processed
// when the sequence ends, superseding any older parked one.
func (e *TradingEngine) OnPremiumUpdate(data *domain.PremiumData) {
	e.mu.Lock()
	e.lastPremium = data
	if !e.enabled {
		e.mu.Unlock()
		return
	}
	if e.sequences > 0 {
		e.pending = data
		e.mu.Unlock()
		return
	}
	e.sequences++
	e.mu.Unlock()

	e.runCycle(data)
	e.finishSequence()
}

// finishSequence releases the caller's sequence slot. The last owner out
// drains any parked observation so it is never lost.
func (e *TradingEngine) finishSequence() {
	for {
		e.mu.Lock()
		if e.pending == nil || !e.enabled || e.sequences > 1 {
			if !e.enabled {
				e.pending = nil
			}
			e.sequences--
			e.mu.Unlock()
			return
		}
		data := e.pending
		e.pending = nil
		e.mu.Unlock()

		e.runCycle(data)
	}
}

// Status returns a snapshot for the control surface.
func (e *TradingEngine) Status() EngineStatus {
	e.mu.Lock()
	status := EngineStatus{
		State:       e.state,
		Enabled:     e.enabled,
		Settings:    e.settings,
		LastPremium: e.lastPremium,
	}
	e.mu.Unlock()
	status.Position = e.positions.Current()
	status.CooldownRemaining = e.cooldown.RemainingSeconds()
	return status
}

// Settings returns the active settings.
func (e *TradingEngine) Settings() domain.TradingSettings {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.settings
}

func (e *TradingEngine) runCycle(data *domain.PremiumData) {
	e.runMu.Lock()
	defer e.runMu.Unlock()

	e.mu.Lock()
	state := e.state
	settings := e.settings
	enabled := e.enabled
	e.mu.Unlock()
	if !enabled {
		return
	}

	ctx := context.Background()
	switch state {
	case StateWaitEntry:
		if e.evaluator.Evaluate(data.Premium, false, settings) == ActionEnter {
			e.executeEntry(ctx, data, settings)
		}
	case StatePositionOpen:
		switch e.evaluator.Evaluate(data.Premium, true, settings) {
		case ActionTakeProfit:
			e.executeExit(ctx, data.Premium, domain.CloseTakeProfit)
		case ActionStopLoss:
			e.executeExit(ctx, data.Premium, domain.CloseStopLoss)
		}
	}
}

// executeEntry runs the entry sequence: spot buy, leverage, futures short
// sized to the spot fill, then the leg tolerance check. A spot failure
// leaves nothing to unwind and goes straight to cooldown; any later failure
// triggers a rollback of whatever filled.
func (e *TradingEngine) executeEntry(ctx context.Context, data *domain.PremiumData, settings domain.TradingSettings) {
	e.setState(StateEntering)
	e.logger.Info("entry triggered", zap.String("premium", data.Premium.String()))
	e.bus.Publish(events.EventLog, fmt.Sprintf("entry triggered at premium %s%%", data.Premium))

	if _, err := e.positions.Create(data.Premium); err != nil {
		e.logger.Error("entry aborted", zap.Error(err))
		e.setState(StatePositionOpen)
		return
	}

	spot := e.executor.BuySpotMarket(ctx, settings.EntryRatio)
	if !spot.Success {
		e.publishError("entry spot buy failed: " + spot.Reason)
		e.positions.Clear()
		e.startCooldown()
		return
	}

	if err := e.executor.SetLeverage(ctx, settings.Leverage); err != nil {
		e.publishError("entry leverage failed: " + err.Error())
		e.runRollback(ctx, domain.CloseError)
		return
	}

	futures := e.executor.ShortFuturesMarket(ctx, spot.ExecutedQuantity)
	if !futures.Success {
		e.publishError("entry futures short failed: " + futures.Reason)
		e.runRollback(ctx, domain.CloseError)
		return
	}

	diff := spot.ExecutedQuantity.Sub(futures.ExecutedQuantity).Abs()
	if diff.GreaterThan(settings.QuantityTolerance) {
		e.publishError(fmt.Sprintf("entry leg mismatch: spot %s futures %s",
			spot.ExecutedQuantity, futures.ExecutedQuantity))
		e.runRollback(ctx, domain.CloseQuantityMismatch)
		return
	}

	e.positions.CompleteEntry(spot, futures)
	e.setState(StatePositionOpen)
}

// executeExit runs the exit sequence: futures close first, then spot
// sell-all. Each exit fill is checked against the recorded entry amount; a
// gap is flagged to the operator but never blocks completion. A failed leg
// triggers a rollback.
func (e *TradingEngine) executeExit(ctx context.Context, closePremium decimal.Decimal, reason domain.CloseReason) {
	e.setState(StateExiting)
	e.positions.SetStatus(domain.StatusClosing)
	e.logger.Info("exit triggered", zap.String("reason", string(reason)))
	e.bus.Publish(events.EventLog, fmt.Sprintf("exit triggered: %s", reason))

	futures := e.executor.CloseFuturesPosition(ctx)
	if !futures.Success {
		e.publishError("exit futures close failed: " + futures.Reason)
		e.runRollback(ctx, domain.CloseError)
		return
	}

	spot := e.executor.SellAllSpotMarket(ctx)
	if !spot.Success {
		e.publishError("exit spot sell failed: " + spot.Reason)
		e.runRollback(ctx, domain.CloseError)
		return
	}

	e.mu.Lock()
	tolerance := e.settings.QuantityTolerance
	e.mu.Unlock()
	if p := e.positions.Current(); p != nil {
		spotGap := spot.ExecutedQuantity.Sub(p.SpotAmount).Abs()
		futuresGap := futures.ExecutedQuantity.Sub(p.FuturesAmount).Abs()
		if spotGap.GreaterThan(tolerance) || futuresGap.GreaterThan(tolerance) {
			e.publishError(fmt.Sprintf(
				"exit quantity mismatch: spot filled %s of %s, futures filled %s of %s; close completed, reconcile venue balances",
				spot.ExecutedQuantity, p.SpotAmount,
				futures.ExecutedQuantity, p.FuturesAmount))
		}
	}

	e.positions.CompleteClose(spot, futures, closePremium, reason)
	e.startCooldown()
}

// runRollback flattens both venues. On success the position is recorded as
// rolled back and the cooldown starts; on failure the engine parks in
// ErrorRollback and waits for manual intervention.
func (e *TradingEngine) runRollback(ctx context.Context, reason domain.CloseReason) {
	e.setState(StateErrorRollback)

	if err := e.rollback.ExecuteRollback(ctx); err != nil {
		e.publishError("rollback failed, manual intervention required: " + err.Error())
		return
	}

	e.positions.MarkRolledBack(reason)
	e.startCooldown()
}

func (e *TradingEngine) startCooldown() {
	e.setState(StateCooldown)
	e.cooldown.Start()
}

func (e *TradingEngine) onCooldownEnd() {
	e.runMu.Lock()
	defer e.runMu.Unlock()

	e.mu.Lock()
	resume := e.state == StateCooldown && e.enabled
	e.mu.Unlock()
	if resume {
		e.setState(StateWaitEntry)
	}
}

func (e *TradingEngine) setState(to State) {
	e.mu.Lock()
	from := e.state
	e.state = to
	e.mu.Unlock()
	if from == to {
		return
	}
	e.logger.Info("state changed", zap.String("from", string(from)), zap.String("to", string(to)))
	e.bus.Publish(events.EventStateChanged, StateChange{From: from, To: to})
}

func (e *TradingEngine) currentState() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

func (e *TradingEngine) publishError(msg string) {
	e.logger.Error(msg)
	e.bus.Publish(events.EventError, msg)
}

func closePremiumOf(data *domain.PremiumData) decimal.Decimal {
	if data == nil {
		return decimal.Zero
	}
	return data.Premium
}
