package main

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_ParseScenarioWeights(t *testing.T) {
	weights, err := parseScenarioWeights("50, 30,20")
	require.NoError(t, err)
	assert.Equal(t, []int{50, 30, 20}, weights)

	for _, invalid := range []string{"50,50", "50,30,30", "a,b,c", "120,-10,-10"} {
		_, err := parseScenarioWeights(invalid)
		assert.Error(t, err, invalid)
	}
}

func Test_LoadConfig_ReadsEnvironment(t *testing.T) {
	t.Setenv("EVENTLIST_WRITERS", "7")
	t.Setenv("EVENTLIST_SCENARIO_WEIGHTS", "100,0,0")

	cmd := newRootCommand()
	require.NoError(t, cmd.Flags().Set(keyRate, "42"))

	v := viper.New()
	require.NoError(t, v.BindPFlags(cmd.Flags()))
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(envKeyReplacer)
	v.AutomaticEnv()

	cfg, err := loadConfig(v)
	require.NoError(t, err)
	assert.Equal(t, 42, cfg.Rate)
	assert.Equal(t, 7, cfg.Writers)
	assert.Equal(t, []int{100, 0, 0}, cfg.ScenarioWeights)
	assert.Equal(t, observabilityNone, cfg.Observability)
}

func Test_LoadGenerator_ShortRun_KeepsTheChainConsistent(t *testing.T) {
	cfg := Config{
		Rate:            2000,
		Writers:         3,
		Readers:         2,
		InitialOrders:   200,
		ScenarioWeights: []int{60, 25, 15},
		WindowSize:      10,
		Observability:   observabilityNone,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	lg, err := NewLoadGenerator(context.Background(), cfg)
	require.NoError(t, err)

	lg.Run(ctx)

	stats := lg.Stats()
	var failed, runs int64
	for _, s := range stats.Scenarios {
		failed += s.Failed
		runs += s.Runs
	}
	assert.Zero(t, failed)
	assert.Positive(t, runs)
	assert.Equal(t, lg.sorted.Size(), stats.Sizes["picked.selected"]+stats.Sizes["picked.deselected"])
	assert.LessOrEqual(t, stats.Sizes["top-orders"], cfg.WindowSize)

	var out bytes.Buffer
	printStats(&out, stats)
	assert.Contains(t, out.String(), "writes")
	assert.Contains(t, out.String(), "top-orders")

	require.NoError(t, lg.Close(context.Background()))
}
