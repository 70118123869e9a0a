package access

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/magabrotheeeer/content-subscriptions/internal/models"
)

func subscriberWith(plan *models.Plan) *models.Subscriber {
	return &models.Subscriber{
		UserUID: "u1",
		Profile: &models.Profile{UserUID: "u1", CurrentPlan: plan},
	}
}

func TestCanAccess(t *testing.T) {
	free := &models.Plan{ID: 1, Name: models.FreePlanName, Level: 0}
	supporter := &models.Plan{ID: 2, Name: "Apoiador", Level: 1}
	unrestricted := &models.Plan{ID: 3, Name: "Irrestrito", Level: 2}
	patron := &models.Plan{ID: 4, Name: "Mecenas", Level: 3}

	tests := []struct {
		name     string
		sub      *models.Subscriber
		required *models.Plan
		want     bool
	}{
		{name: "no required plan, anonymous", sub: nil, required: nil, want: true},
		{name: "no required plan, subscriber", sub: subscriberWith(free), required: nil, want: true},
		{name: "level 0, anonymous", sub: nil, required: free, want: true},
		{name: "level 0, no profile", sub: &models.Subscriber{UserUID: "u1"}, required: free, want: true},
		{name: "paid, anonymous", sub: nil, required: supporter, want: false},
		{name: "paid, no profile", sub: &models.Subscriber{UserUID: "u1"}, required: supporter, want: false},
		{name: "paid, profile without plan", sub: subscriberWith(nil), required: supporter, want: false},
		{name: "paid, free plan", sub: subscriberWith(free), required: supporter, want: false},
		{name: "equal level", sub: subscriberWith(unrestricted), required: unrestricted, want: true},
		{name: "higher level", sub: subscriberWith(patron), required: supporter, want: true},
		{name: "lower level", sub: subscriberWith(supporter), required: patron, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CanAccess(tt.sub, tt.required))
		})
	}
}

func TestCanAccess_LevelOrdering(t *testing.T) {
	for a := 0; a <= 4; a++ {
		for b := 0; b <= 4; b++ {
			sub := subscriberWith(&models.Plan{Level: a})
			required := &models.Plan{Level: b}
			assert.Equalf(t, a >= b, CanAccess(sub, required), "subscriber level %d, required %d", a, b)
		}
	}
}

func TestEvaluate(t *testing.T) {
	paid := &models.Plan{Level: 2}

	assert.Equal(t, Allowed, Evaluate(nil, nil))
	assert.Equal(t, LoginRequired, Evaluate(nil, paid))
	assert.Equal(t, UpgradeRequired, Evaluate(subscriberWith(&models.Plan{Level: 1}), paid))
	assert.Equal(t, Allowed, Evaluate(subscriberWith(&models.Plan{Level: 2}), paid))
	assert.Equal(t, "upgrade_required", UpgradeRequired.String())
}
