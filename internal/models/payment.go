package models

import "time"

// PaymentRecord запись об оплате. Только добавляется, не изменяется.
type PaymentRecord struct {
	ID                    int64     `json:"id"`
	UserUID               string    `json:"user_uid"`
	Amount                int64     `json:"amount"` // в минимальных единицах валюты
	CreatedAt             time.Time `json:"created_at"`
	Status                string    `json:"status"`
	ExternalTransactionID string    `json:"external_transaction_id"`
	PlanName              string    `json:"plan_name"`
}
