package tokenmanager

import (
	"context"
	"time"

	"github.com/mr-tron/base58"

	"github.com/code-payments/token-manager-server/pkg/metrics"
)

const (
	metricsStructName = "tokenmanager.service"

	managerCreatedEventName    = "TokenManagerCreated"
	supplyMintedEventName      = "TokenManagerSupplyMinted"
	submitRetriedEventName     = "TokenManagerSubmitRetried"
	reconcileCompleteEventName = "TokenManagerReconcileComplete"

	confirmLatencyMetricName = "TokenManager/confirm_latency_ms"
	reconciledMetricName     = "TokenManager/reconciled_count"
)

func recordManagerCreatedEvent(ctx context.Context, manager *Manager, initialSupply uint64) {
	metrics.RecordEvent(ctx, managerCreatedEventName, map[string]interface{}{
		"address":        base58.Encode(manager.Address),
		"mint":           base58.Encode(manager.Mint),
		"seed_scheme":    manager.SeedScheme.String(),
		"mint_amount":    manager.MintAmount,
		"initial_supply": initialSupply,
	})
}

func recordSupplyMintedEvent(ctx context.Context, manager *Manager, recipient string) {
	metrics.RecordEvent(ctx, supplyMintedEventName, map[string]interface{}{
		"mint":             base58.Encode(manager.Mint),
		"recipient":        recipient,
		"amount":           manager.MintAmount,
		"total_mint_count": manager.TotalMintCount,
	})
}

func recordSubmitRetriedEvent(ctx context.Context, operation string, attempts uint, err error) {
	kvs := map[string]interface{}{
		"operation": operation,
		"attempts":  attempts,
	}
	if err != nil {
		kvs["error"] = err.Error()
	}
	metrics.RecordEvent(ctx, submitRetriedEventName, kvs)
}

func recordReconcileCompleteEvent(ctx context.Context, reconciled, failed int, elapsed time.Duration) {
	metrics.RecordEvent(ctx, reconcileCompleteEventName, map[string]interface{}{
		"reconciled": reconciled,
		"failed":     failed,
		"elapsed_ms": int(elapsed / time.Millisecond),
	})
	metrics.RecordCount(ctx, reconciledMetricName, uint64(reconciled))
}

func recordConfirmLatency(ctx context.Context, latency time.Duration) {
	metrics.RecordDuration(ctx, confirmLatencyMetricName, latency)
}
