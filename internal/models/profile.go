package models

import "time"

// Profile состояние подписки пользователя, один к одному с User.
type Profile struct {
	UserUID                string     `json:"user_uid"`
	CurrentPlan            *Plan      `json:"current_plan,omitempty"`
	ExternalSubscriptionID *string    `json:"external_subscription_id,omitempty"`
	SubscriptionEnd        *time.Time `json:"subscription_end,omitempty"`
	CancelAtPeriodEnd      bool       `json:"cancel_at_period_end"`
}

// HasExternalSubscription сообщает, есть ли у профиля подписка у провайдера.
func (p *Profile) HasExternalSubscription() bool {
	return p != nil && p.ExternalSubscriptionID != nil && *p.ExternalSubscriptionID != ""
}

// Level текущий уровень доступа; -1 если плана нет.
func (p *Profile) Level() int {
	if p == nil || p.CurrentPlan == nil {
		return -1
	}
	return p.CurrentPlan.Level
}

// ExpiredAt сообщает, истёк ли платный период на момент now.
func (p *Profile) ExpiredAt(now time.Time) bool {
	if p == nil || p.SubscriptionEnd == nil {
		return false
	}
	return p.Level() > 0 && p.SubscriptionEnd.Before(now)
}

// Subscriber пользователь запроса вместе с профилем.
// nil означает анонимного посетителя.
type Subscriber struct {
	UserUID  string
	Username string
	Profile  *Profile
}
