package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoad_Defaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, 8080, cfg.HTTPPort)
	assert.Equal(t, "storefront", cfg.MongoDBName)
	assert.Equal(t, "0.1", cfg.TaxRate.String())
	assert.Equal(t, 30*time.Second, cfg.RequestTimeout)
	assert.Empty(t, cfg.PaymentIntentURL)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("HTTP_PORT", "9090")
	t.Setenv("TAX_RATE", "0.08")
	t.Setenv("REQUEST_TIMEOUT", "5s")
	t.Setenv("PAYMENT_INTENT_URL", "http://payments.local")

	cfg := Load()

	assert.Equal(t, 9090, cfg.HTTPPort)
	assert.Equal(t, "0.08", cfg.TaxRate.String())
	assert.Equal(t, 5*time.Second, cfg.RequestTimeout)
	assert.Equal(t, "http://payments.local", cfg.PaymentIntentURL)
}

func TestLoad_InvalidValuesFallBack(t *testing.T) {
	t.Setenv("HTTP_PORT", "eighty")
	t.Setenv("TAX_RATE", "-1")
	t.Setenv("SHUTDOWN_TIMEOUT", "soon")

	cfg := Load()

	assert.Equal(t, 8080, cfg.HTTPPort)
	assert.Equal(t, "0.1", cfg.TaxRate.String())
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
}
