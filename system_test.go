package main

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestFilterMatch(t *testing.T) {
	require.True(t, Filter{}.Match("twitter", "autopush"))
	require.True(t, Filter{Experiment: "twitter"}.Match("twitter", "autopush"))
	require.False(t, Filter{Experiment: "hackernews"}.Match("twitter", "autopush"))
	require.True(t, Filter{Definition: "autopush"}.Match("twitter", "autopush"))
	require.False(t, Filter{Experiment: "twitter", Definition: "manual"}.Match("twitter", "autopush"))
}

func TestSystemRun(t *testing.T) {
	ok := testDefinition()
	failing := testDefinition()
	failing.Name = "failing"
	failing.PopulateCmd = "echo pqserver populate failed; exit 1"

	experiments := []Experiment{{Name: "twitter", Defs: []Definition{failing, ok}}}
	system := &System{benchmark: testBenchmark(t)}

	err := system.Run(context.Background(), experiments, Filter{Definition: "local"})
	require.Nil(t, err)

	err = system.Run(context.Background(), experiments, Filter{})
	require.ErrorContains(t, err, "populate failed")
}

func TestSystemRunRejectsInvalidCatalog(t *testing.T) {
	def := testDefinition()
	def.ClientCmd = "echo client"
	system := &System{benchmark: Benchmark{StartupDelay: time.Millisecond}}

	err := system.Run(context.Background(), []Experiment{{Name: "twitter", Defs: []Definition{def}}}, Filter{})
	require.ErrorContains(t, err, "invalid catalog")
}

func TestSystemRunNoMatch(t *testing.T) {
	system := &System{benchmark: testBenchmark(t)}
	err := system.Run(context.Background(), Experiments(), Filter{Experiment: "hackernews"})
	require.ErrorContains(t, err, "no definitions match")
}

func TestHostStat(t *testing.T) {
	info := HostStat()
	require.NotEmpty(t, info.Arch)
	t.Logf("host stat: %+v", info)
}

func TestSystemRunStoresResultsAfterCancel(t *testing.T) {
	def := testDefinition()
	def.ClientCmd = "echo pqserver client; sleep 30"
	results := "file:" + filepath.Join(t.TempDir(), "results.db")
	system := &System{benchmark: testBenchmark(t), storage: &Storage{}, results: results}

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	err := system.Run(ctx, []Experiment{{Name: "twitter", Defs: []Definition{def}}}, Filter{})
	require.True(t, errors.Is(err, context.DeadlineExceeded))
	require.NotContains(t, err.Error(), "failed to store results")

	db, err := system.storage.ConnectDb(results)
	require.Nil(t, err)
	defer db.Close()

	var client int
	require.Nil(t, db.QueryRow("SELECT COUNT(*) FROM measurements WHERE phase = 'client'").Scan(&client))
	require.Equal(t, 2, client)
}

func TestSystemRunRejectsForeignResultsDb(t *testing.T) {
	results := "file:" + filepath.Join(t.TempDir(), "results.db")
	storage := &Storage{}
	db, err := storage.ConnectDb(results)
	require.Nil(t, err)
	require.Nil(t, storage.InitResultsDb(db, map[string]any{"version": "v0"}))
	require.Nil(t, db.Close())

	system := &System{benchmark: testBenchmark(t), storage: storage, results: results}
	err = system.Run(context.Background(), []Experiment{{Name: "twitter", Defs: []Definition{testDefinition()}}}, Filter{})
	require.ErrorContains(t, err, "written by version v0")
}
