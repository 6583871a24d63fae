package notify

import (
	"context"
	"fmt"

	"travel-concierge/internal/common/logger"
	"travel-concierge/internal/models"
)

// ProcessStarter is implemented by camunda.Client.
type ProcessStarter interface {
	StartProcess(ctx context.Context, processID string, variables interface{}) (int64, error)
}

// WorkflowNotifier hands a stored order to the fulfilment process, whose
// service tasks send the messages and sync the CRM.
type WorkflowNotifier struct {
	starter   ProcessStarter
	processID string
	logger    logger.Logger
}

func NewWorkflowNotifier(starter ProcessStarter, processID string, log logger.Logger) *WorkflowNotifier {
	return &WorkflowNotifier{
		starter:   starter,
		processID: processID,
		logger:    log.WithFields(map[string]interface{}{"component": "workflow_notifier", "processId": processID}),
	}
}

func (w *WorkflowNotifier) Name() string {
	return "fulfilment_workflow"
}

func (w *WorkflowNotifier) Apply(ctx context.Context, order *models.Order) error {
	vars := map[string]interface{}{
		"orderId":      order.ID,
		"notification": models.NewBookingNotification(order),
		"order":        order,
	}
	key, err := w.starter.StartProcess(ctx, w.processID, vars)
	if err != nil {
		return fmt.Errorf("%w: start %s: %v", ErrNotificationSendFailed, w.processID, err)
	}
	w.logger.Info("fulfilment process started", map[string]interface{}{
		"orderId":            order.ID,
		"processInstanceKey": key,
	})
	return nil
}
