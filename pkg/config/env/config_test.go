package env

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/code-payments/token-manager-server/pkg/config"
)

func TestConfig(t *testing.T) {
	const key = "TOKEN_MANAGER_ENV_CONFIG_TEST"
	ctx := context.Background()

	t.Setenv(key, "mint")
	v, err := NewConfig(key).Get(ctx)
	assert.NoError(t, err)
	assert.Equal(t, []byte("mint"), v)

	// Keys are upper cased
	v, err = NewConfig("token_manager_env_config_test").Get(ctx)
	assert.NoError(t, err)
	assert.Equal(t, []byte("mint"), v)

	t.Setenv(key, "")
	v, err = NewConfig(key).Get(ctx)
	assert.Nil(t, v)
	assert.Equal(t, config.ErrNoValue, err)
}

func TestTypedConfigs(t *testing.T) {
	ctx := context.Background()

	t.Setenv("TOKEN_MANAGER_TEST_DECIMALS", "6")
	t.Setenv("TOKEN_MANAGER_TEST_RATE", "2.5")
	t.Setenv("TOKEN_MANAGER_TEST_TIMEOUT", "45s")
	t.Setenv("TOKEN_MANAGER_TEST_SCHEME", "mint_and_authority")
	t.Setenv("TOKEN_MANAGER_TEST_ENABLED", "true")

	assert.EqualValues(t, 6, NewUint64Config("TOKEN_MANAGER_TEST_DECIMALS", 9).Get(ctx))
	assert.Equal(t, 2.5, NewFloat64Config("TOKEN_MANAGER_TEST_RATE", 5).Get(ctx))
	assert.Equal(t, 45*time.Second, NewDurationConfig("TOKEN_MANAGER_TEST_TIMEOUT", time.Second).Get(ctx))
	assert.Equal(t, "mint_and_authority", NewStringConfig("TOKEN_MANAGER_TEST_SCHEME", "mint").Get(ctx))
	assert.True(t, NewBoolConfig("TOKEN_MANAGER_TEST_ENABLED", false).Get(ctx))

	assert.EqualValues(t, 9, NewUint64Config("TOKEN_MANAGER_TEST_UNSET", 9).Get(ctx))
}
