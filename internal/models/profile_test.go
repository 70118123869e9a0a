package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func strPtr(s string) *string { return &s }

func TestProfile_ExpiredAt(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	yesterday := now.AddDate(0, 0, -1)
	inFiveDays := now.AddDate(0, 0, 5)
	paid := &Plan{ID: 2, Name: "Mecenas", Level: 3}
	free := &Plan{ID: 1, Name: FreePlanName, Level: 0}

	tests := []struct {
		name    string
		profile *Profile
		want    bool
	}{
		{name: "nil profile", profile: nil, want: false},
		{name: "no end date", profile: &Profile{CurrentPlan: paid}, want: false},
		{name: "paid ended yesterday", profile: &Profile{CurrentPlan: paid, SubscriptionEnd: &yesterday}, want: true},
		{name: "paid ends in five days", profile: &Profile{CurrentPlan: paid, SubscriptionEnd: &inFiveDays}, want: false},
		{name: "free plan with past end", profile: &Profile{CurrentPlan: free, SubscriptionEnd: &yesterday}, want: false},
		{name: "no plan with past end", profile: &Profile{SubscriptionEnd: &yesterday}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.profile.ExpiredAt(now))
		})
	}
}

func TestProfile_HasExternalSubscription(t *testing.T) {
	assert.False(t, (*Profile)(nil).HasExternalSubscription())
	assert.False(t, (&Profile{}).HasExternalSubscription())
	assert.False(t, (&Profile{ExternalSubscriptionID: strPtr("")}).HasExternalSubscription())
	assert.True(t, (&Profile{ExternalSubscriptionID: strPtr("sub_123")}).HasExternalSubscription())
}

func TestPlan_Helpers(t *testing.T) {
	var nilPlan *Plan
	assert.False(t, nilPlan.IsFree())
	assert.Equal(t, "", nilPlan.PriceRef())

	p := &Plan{Name: "Apoiador", Level: 1, ExternalPriceRef: strPtr("price_abc")}
	assert.False(t, p.IsFree())
	assert.Equal(t, "price_abc", p.PriceRef())
	assert.True(t, (&Plan{Level: 0}).IsFree())
}
