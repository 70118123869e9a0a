package sl_test

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/magabrotheeeer/content-subscriptions/internal/lib/sl"
)

func TestErr_ReturnsCorrectAttr(t *testing.T) {
	err := fmt.Errorf("billing.Cancel: %w", errors.New("provider unavailable"))
	attr := sl.Err(err)

	assert.Equal(t, "error", attr.Key)
	assert.Equal(t, slog.StringValue("billing.Cancel: provider unavailable"), attr.Value)
}

func TestErr_NilError(t *testing.T) {
	assert.NotPanics(t, func() {
		attr := sl.Err(nil)
		assert.Equal(t, "<nil>", attr.Value.String())
	})
}

func TestErr_InLogger(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(slog.NewTextHandler(&buf, nil))

	log.Error("sweep failed", sl.Err(errors.New("free plan missing")))

	assert.Contains(t, buf.String(), `error="free plan missing"`)
}

func TestNew_LevelByEnv(t *testing.T) {
	tests := []struct {
		env       string
		wantDebug bool
	}{
		{sl.EnvLocal, true},
		{sl.EnvDev, true},
		{sl.EnvProd, false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.env, func(t *testing.T) {
			var buf bytes.Buffer
			log := sl.New(tt.env, &buf)

			log.Debug("debug line")
			log.Info("info line")

			assert.Equal(t, tt.wantDebug, bytes.Contains(buf.Bytes(), []byte("debug line")))
			assert.Contains(t, buf.String(), "info line")
		})
	}
}
