package tasks

import (
	"context"
	"time"

	"healthplan_billing/internal/services"
)

// ReconcilePaymentsTaskName identifies the webhook safety-net task.
const ReconcilePaymentsTaskName = "reconcile_payments"

const (
	defaultReconcileCutoffMinutes = 15
	defaultReconcileBatchSize     = 100
)

// NewReconcilePaymentsHandler builds the handler that sweeps orders
// stuck in PROCESSING and settles them via the gateway status API.
// Arguments: cutoff_minutes (minimum order age), batch_size.
func NewReconcilePaymentsHandler(reconciler *services.ReconcileService) TaskHandler {
	return func(ctx context.Context, args map[string]interface{}) (map[string]interface{}, error) {
		cutoffMinutes := intArg(args, "cutoff_minutes", defaultReconcileCutoffMinutes)
		batchSize := intArg(args, "batch_size", defaultReconcileBatchSize)

		counts, err := reconciler.Run(ctx, time.Duration(cutoffMinutes)*time.Minute, batchSize)
		if err != nil {
			return nil, err
		}

		result := map[string]interface{}{"status": "success"}
		for outcome, n := range counts {
			result[string(outcome)] = n
		}
		return result, nil
	}
}

// intArg reads a numeric argument that arrived through JSON (float64)
// or was set programmatically (int).
func intArg(args map[string]interface{}, key string, fallback int) int {
	switch v := args[key].(type) {
	case float64:
		if v > 0 {
			return int(v)
		}
	case int:
		if v > 0 {
			return v
		}
	}
	return fallback
}
