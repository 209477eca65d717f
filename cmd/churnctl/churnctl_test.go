package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testModel = `kind: logistic_regression
feature_names: [spent_change_ratio]
intercept: -1
coefficients: [2]
`

func writeFixtures(t *testing.T) (dir, configPath, inputPath string) {
	t.Helper()
	dir = t.TempDir()
	modelPath := filepath.Join(dir, "model.yaml")
	thresholdsPath := filepath.Join(dir, "thresholds.yaml")
	require.NoError(t, os.WriteFile(modelPath, []byte(testModel), 0o600))
	require.NoError(t, os.WriteFile(thresholdsPath, []byte("T90: 0.5\nT95: 0.8\nT99: 0.95\n"), 0o600))

	configPath = filepath.Join(dir, "config.yaml")
	cfg := "artifacts:\n  modelPath: " + modelPath + "\n  thresholdsPath: " + thresholdsPath + "\n"
	require.NoError(t, os.WriteFile(configPath, []byte(cfg), 0o600))

	inputPath = filepath.Join(dir, "customers.csv")
	csv := "customer_id,spent_m1,spent_m2,spent_m3,spent_m4,spent_m5,spent_m6\n" +
		"B,0,0,0,0,0,0\n" +
		"A,30,30,30,0,0,0\n"
	require.NoError(t, os.WriteFile(inputPath, []byte(csv), 0o600))
	return dir, configPath, inputPath
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestScoreCommandWritesReport(t *testing.T) {
	dir, configPath, inputPath := writeFixtures(t)
	reportFile := filepath.Join(dir, "out", "report.json")

	out, err := execute(t, "score", "--config", configPath, "--input", inputPath, "--out", reportFile, "--top", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "Scored 2 customers")
	assert.Contains(t, out, "Exported to:")

	data, err := os.ReadFile(reportFile)
	require.NoError(t, err)
	var report scoreReport
	require.NoError(t, json.Unmarshal(data, &report))
	require.Len(t, report.Customers, 2)
	assert.Equal(t, "A", report.Customers[0].CustomerID)
	assert.Equal(t, "Tier 1", report.Customers[0].RiskTier)
	assert.Equal(t, "Tier 4", report.Customers[1].RiskTier)
	assert.Equal(t, 1, report.TierCounts["Tier 1"])
	assert.Equal(t, "customers.csv", report.Source)
}

func TestScoreCommandRequiresInput(t *testing.T) {
	_, configPath, _ := writeFixtures(t)
	_, err := execute(t, "score", "--config", configPath)
	assert.Error(t, err)
}

func TestThresholdsCommand(t *testing.T) {
	_, configPath, _ := writeFixtures(t)
	out, err := execute(t, "thresholds", "--config", configPath)
	require.NoError(t, err)
	assert.Contains(t, out, "strategy: labeled")
	assert.Contains(t, out, "0.950000")
}

func TestMigrateCommandNeedsDSN(t *testing.T) {
	_, configPath, _ := writeFixtures(t)
	_, err := execute(t, "migrate", "up", "--config", configPath)
	assert.ErrorContains(t, err, "no postgres DSN")
}

func TestReportPath(t *testing.T) {
	at := time.Date(2026, 10, 17, 9, 30, 5, 0, time.UTC)
	assert.Equal(t, "out/r.json", reportPath("out/r.json", "customers", at))
	assert.Equal(t, filepath.Join("reports", "customers_20261017_093005.json"), reportPath("reports", "customers", at))
}
