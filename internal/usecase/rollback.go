package usecase

import (
	"context"
	"fmt"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/khedge/kimchi_hedge/internal/domain"
)

// RollbackService unwinds a half-built hedge. Both legs are inspected and
// unwound independently so a failure on one leg never prevents the attempt
// on the other.
type RollbackService struct {
	executor *OrderExecutor
	spot     domain.SpotExchange
	futures  domain.FuturesExchange
	cfg      ExecutorConfig
	logger   *zap.Logger
}

func NewRollbackService(
	executor *OrderExecutor,
	spot domain.SpotExchange,
	futures domain.FuturesExchange,
	cfg ExecutorConfig,
	logger *zap.Logger,
) *RollbackService {
	return &RollbackService{
		executor: executor,
		spot:     spot,
		futures:  futures,
		cfg:      cfg,
		logger:   logger,
	}
}

// ExecuteRollback flattens both venues: sell any spot base balance, close
// any futures position. Returns nil only when both legs ended flat; the
// combined error carries every leg failure.
func (r *RollbackService) ExecuteRollback(ctx context.Context) error {
	r.logger.Warn("rollback started")

	var combined error

	balance, err := r.spot.GetBalance(ctx, r.cfg.BaseAsset)
	switch {
	case err != nil:
		combined = multierr.Append(combined, fmt.Errorf("rollback spot balance query: %w", err))
	case balance.IsPositive():
		if result := r.executor.SellAllSpotMarket(ctx); !result.Success {
			combined = multierr.Append(combined, fmt.Errorf("rollback spot sell: %s", result.Reason))
		} else {
			r.logger.Info("rollback sold spot leg", zap.String("quantity", result.ExecutedQuantity.String()))
		}
	default:
		r.logger.Info("rollback: spot leg already flat")
	}

	position, err := r.futures.GetPosition(ctx, r.cfg.FuturesSymbol)
	switch {
	case err != nil:
		combined = multierr.Append(combined, fmt.Errorf("rollback futures position query: %w", err))
	case position != nil && !position.Quantity.IsZero():
		if result := r.executor.CloseFuturesPosition(ctx); !result.Success {
			combined = multierr.Append(combined, fmt.Errorf("rollback futures close: %s", result.Reason))
		} else {
			r.logger.Info("rollback closed futures leg", zap.String("quantity", result.ExecutedQuantity.String()))
		}
	default:
		r.logger.Info("rollback: futures leg already flat")
	}

	if combined != nil {
		r.logger.Error("rollback incomplete", zap.Error(combined))
		return combined
	}
	r.logger.Info("rollback complete, both venues flat")
	return nil
}
