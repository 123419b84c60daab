package tasks

import (
	"healthplan_billing/internal/services"
)

// DefineTasks registers all available tasks
func DefineTasks(reconciler *services.ReconcileService) {
	RegisterHandler(ReconcilePaymentsTaskName, NewReconcilePaymentsHandler(reconciler))
}
