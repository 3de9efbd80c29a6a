package metrics

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecording_WithoutApplication(t *testing.T) {
	ctx := context.Background()

	_, ok := applicationFromContext(ctx)
	assert.False(t, ok)

	_, ok = applicationFromContext(NewContext(ctx, nil))
	assert.False(t, ok)

	RecordEvent(ctx, "TokenManagerCreated", map[string]interface{}{"mint": "mint"})
	RecordCount(ctx, "TokenManager/reconciled_count", 1)
	RecordDuration(ctx, "TokenManager/confirm_latency_ms", time.Second)

	tracer := TraceMethodCall(ctx, "tokenmanager.service", "MintSupply")
	assert.Nil(t, tracer)
	tracer.AddAttribute("mint", "mint")
	tracer.OnError(errors.New("failure"))
	tracer.End()
}

func TestRecording_WithApplication(t *testing.T) {
	app, err := newrelic.NewApplication(
		newrelic.ConfigAppName("token-manager-test"),
		newrelic.ConfigEnabled(false),
	)
	require.NoError(t, err)

	ctx := NewContext(context.Background(), app)
	actual, ok := applicationFromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, app, actual)

	RecordEvent(ctx, "TokenManagerCreated", map[string]interface{}{"mint": "mint"})
	RecordCount(ctx, "TokenManager/reconciled_count", 1)
	RecordDuration(ctx, "TokenManager/confirm_latency_ms", time.Second)

	txn := app.StartTransaction("test")
	defer txn.End()

	tracer := TraceMethodCall(newrelic.NewContext(ctx, txn), "tokenmanager.service", "MintSupply")
	require.NotNil(t, tracer)
	tracer.AddAttribute("mint", "mint")
	tracer.OnError(errors.New("failure"))
	tracer.End()
}

func TestForwardedMessage(t *testing.T) {
	entry := logrus.NewEntry(logrus.StandardLogger())

	entry.Message = "supply minted"
	assert.Equal(t, "supply minted", forwardedMessage(entry))

	entry = entry.WithFields(logrus.Fields{
		"mint":   "mint",
		"amount": 100,
		"error":  errors.New("failure"),
	})
	entry.Message = "supply minted"
	assert.Equal(t, `supply minted amount=100 error="failure" mint="mint"`, forwardedMessage(entry))
}

func TestNewRelicLogFormatter(t *testing.T) {
	app, err := newrelic.NewApplication(
		newrelic.ConfigAppName("token-manager-test"),
		newrelic.ConfigEnabled(false),
	)
	require.NoError(t, err)

	formatter := NewNewRelicLogFormatter(app, &logrus.TextFormatter{DisableTimestamp: true})

	entry := logrus.NewEntry(logrus.StandardLogger()).WithField("mint", "mint")
	entry.Message = "supply minted"
	entry.Level = logrus.InfoLevel

	formatted, err := formatter.Format(entry)
	require.NoError(t, err)
	assert.Contains(t, string(formatted), `msg="supply minted"`)
	assert.Contains(t, string(formatted), "mint=mint")
	assert.Equal(t, byte('\n'), formatted[len(formatted)-1])
}
