package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/Harshitk-cp/bdi/internal/agent"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunExample_ProgramsExist(t *testing.T) {
	programs := regexp.MustCompile(`-p (\S+)`).FindAllStringSubmatch(runCmd.Example, -1)
	require.NotEmpty(t, programs)
	for _, m := range programs {
		_, err := os.Stat(filepath.Join("..", "..", m[1]))
		assert.NoError(t, err, m[1])
	}
}

func TestWriteReports(t *testing.T) {
	reports := []agentReport{{
		ID:      "counter",
		Cycles:  3,
		Beliefs: []string{"count(3)"},
		Plans:   []agent.PlanStatistic{{Plan: "+!tick", Runs: 3, Fails: 1, State: agent.StateSuccess}},
	}}

	t.Run("json", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, writeReports(&buf, reports, true))

		var got []struct {
			ID    string `json:"id"`
			Plans []struct {
				Plan  string `json:"plan"`
				Runs  int64  `json:"runs"`
				Fails int64  `json:"fails"`
				State string `json:"state"`
			} `json:"plans"`
		}
		require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
		require.Len(t, got, 1)
		require.Len(t, got[0].Plans, 1)
		assert.Equal(t, "counter", got[0].ID)
		assert.Equal(t, "+!tick", got[0].Plans[0].Plan)
		assert.Equal(t, int64(1), got[0].Plans[0].Fails)
		assert.Equal(t, "SUCCESS", got[0].Plans[0].State)
	})

	t.Run("table", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, writeReports(&buf, reports, false))
		out := buf.String()
		assert.Contains(t, out, "agent counter")
		assert.Contains(t, out, "+!tick")
		assert.Contains(t, out, "SUCCESS")
		assert.Contains(t, out, "count(3)")
	})
}
