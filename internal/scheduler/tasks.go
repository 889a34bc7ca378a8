package scheduler

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const TaskPaymentReconcile = "payments.reconcile"

const TaskPaymentSweep = "payments.sweep"

type PaymentReconcilePayload struct {
	IntentID string `json:"intentId"`
}

func NewPaymentReconcileTask(payload PaymentReconcilePayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskPaymentReconcile, data), nil
}

func ParsePaymentReconcilePayload(task *asynq.Task) (PaymentReconcilePayload, error) {
	var payload PaymentReconcilePayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return PaymentReconcilePayload{}, err
	}
	return payload, nil
}

func NewPaymentSweepTask() *asynq.Task {
	return asynq.NewTask(TaskPaymentSweep, nil)
}
