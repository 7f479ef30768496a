package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mind-engage/mindengage-motivation/internal/inference"
	"github.com/mind-engage/mindengage-motivation/internal/model/modeltest"
)

func modelsDir(t *testing.T) string {
	t.Helper()
	t.Setenv("MODELS_SOURCE", "fs")
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("MODEL_SUFFIX", modeltest.Suffix)
	t.Setenv("DUPLICATE_POLICY", "strict")
	t.Setenv("DERIVED_FEATURES", "duration_minutes=duration_minutes")
	dir := t.TempDir()
	modeltest.WriteArtifact(t, dir, "DualFlow_-1_10min", modeltest.Artifact())
	modeltest.WriteArtifact(t, dir, "Classic_2_5min", modeltest.Artifact())
	return dir
}

func runCmd(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var out, errOut bytes.Buffer
	code := run(context.Background(), args, &out, &errOut)
	return code, out.String(), errOut.String()
}

func TestValidateAndKeys(t *testing.T) {
	dir := modelsDir(t)

	code, out, _ := runCmd(t, "validate", "-models", dir)
	require.Equal(t, 0, code)
	assert.Contains(t, out, "DualFlow_-1_10min\t3 clusters\t4 features")
	assert.Contains(t, out, "ok: 2 models")

	code, out, _ = runCmd(t, "keys", "-models", dir)
	require.Equal(t, 0, code)
	assert.Equal(t, "Classic_2_5min\nDualFlow_-1_10min\n", out)

	code, out, _ = runCmd(t, "keys", "-models", dir, "-json")
	require.Equal(t, 0, code)
	assert.Contains(t, out, `"game_mode": "DualFlow"`)
}

func TestValidateFailsOnDuplicates(t *testing.T) {
	a := modelsDir(t)
	b := t.TempDir()
	modeltest.WriteArtifact(t, b, "DualFlow_-1_10min", modeltest.Artifact())

	code, _, errOut := runCmd(t, "validate", "-models", a+","+b)
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "duplicate key")

	code, _, _ = runCmd(t, "validate", "-models", a+","+b, "-policy", "permissive")
	assert.Equal(t, 0, code)
}

func TestPredict(t *testing.T) {
	dir := modelsDir(t)

	code, out, errOut := runCmd(t, "predict", "-models", dir,
		"-mode", "DualFlow", "-difficulty", "-1", "-duration", "10",
		"-data", `{"score":200000,"age":30,"startSpeed":4}`)
	require.Equal(t, 0, code, errOut)

	var got struct {
		ModelKey string           `json:"model_key"`
		Result   inference.Result `json:"result"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, "DualFlow_-1_10min", got.ModelKey)
	assert.Equal(t, 2, got.Result.Cluster)
	assert.InDelta(t, 180000, got.Result.Percentiles["score_p50"], 1e-9)

	code, _, errOut = runCmd(t, "predict", "-models", dir, "-mode", "DualFlow", "-difficulty", "3", "-duration", "10")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "available: Classic_2_5min, DualFlow_-1_10min")
}

func TestPublishThenServeFromSQL(t *testing.T) {
	dir := modelsDir(t)
	dsn := "file:" + filepath.Join(t.TempDir(), "models.db")

	code, out, errOut := runCmd(t, "publish", "-db-dsn", dsn,
		filepath.Join(dir, "DualFlow_-1_10min"+modeltest.Suffix),
		filepath.Join(dir, "Classic_2_5min"+modeltest.Suffix))
	require.Equal(t, 0, code, errOut)
	assert.Equal(t, "published 2 artifacts\n", out)

	code, out, errOut = runCmd(t, "keys", "-source", "sql", "-db-dsn", dsn)
	require.Equal(t, 0, code, errOut)
	assert.Equal(t, "Classic_2_5min\nDualFlow_-1_10min\n", out)
}

func TestPublishRejectsBadArtifact(t *testing.T) {
	dir := modelsDir(t)
	bad := modeltest.WriteRaw(t, dir, "Broken_1_1min"+modeltest.Suffix, []byte(`{"features":[]}`))
	dbPath := filepath.Join(t.TempDir(), "models.db")

	code, _, _ := runCmd(t, "publish", "-db-dsn", "file:"+dbPath, bad)
	assert.Equal(t, 1, code)
	_, err := os.Stat(dbPath)
	assert.True(t, os.IsNotExist(err), "nothing is written when validation fails")

	code, _, _ = runCmd(t, "publish", "-db-dsn", "file:"+dbPath)
	assert.Equal(t, 2, code)
}

func TestPredictWithoutDerivedDuration(t *testing.T) {
	dir := modelsDir(t)
	t.Setenv("DERIVED_FEATURES", "")

	code, _, errOut := runCmd(t, "predict", "-models", dir,
		"-mode", "DualFlow", "-difficulty", "-1", "-duration", "10",
		"-data", `{"score":200000,"age":30,"startSpeed":4}`)
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, `feature="duration_minutes"`)
}

func TestUsageErrors(t *testing.T) {
	dir := modelsDir(t)

	code, _, _ := runCmd(t)
	assert.Equal(t, 2, code)
	code, _, _ = runCmd(t, "frobnicate")
	assert.Equal(t, 2, code)
	code, _, _ = runCmd(t, "predict", "-models", dir, "-data", "{}")
	assert.Equal(t, 2, code)
	code, _, _ = runCmd(t, "predict", "-models", dir, "-mode", "DualFlow", "-data", "nope")
	assert.Equal(t, 2, code)
}
