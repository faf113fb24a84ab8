package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func Test_TestObserved(t *testing.T) {
	t.Parallel()

	lggr, logs := TestObserved(t, zapcore.InfoLevel)

	lggr.Named("deployer").Infow("contract deployed", "type", "TokenLottery")
	lggr.Debugw("dropped below level")

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "contract deployed", entries[0].Message)
	assert.Equal(t, "TokenLottery", entries[0].ContextMap()["type"])
}

func Test_Named(t *testing.T) {
	t.Parallel()

	lggr := Test(t).Named("lottery").Named("draw")

	assert.Equal(t, "lottery.draw", lggr.Name())
}

func Test_With(t *testing.T) {
	t.Parallel()

	lggr, logs := TestObserved(t, zapcore.DebugLevel)
	lggr.With("player", "0xabc").Warn("balance read failed")

	entries := logs.FilterField(zapcore.Field{Key: "player", Type: zapcore.StringType, String: "0xabc"}).All()
	require.Len(t, entries, 1)
	assert.Equal(t, zapcore.WarnLevel, entries[0].Level)
}

func Test_ConfigNew(t *testing.T) {
	t.Parallel()

	cfg := Config{Level: zapcore.WarnLevel, Console: true}
	lggr, err := cfg.New()
	require.NoError(t, err)
	require.NotNil(t, lggr)

	lggr = Nop()
	lggr.Info("discarded")
	assert.Empty(t, lggr.Name())
}
