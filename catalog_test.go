package main

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestExperiments(t *testing.T) {
	experiments := Experiments()
	require.Len(t, experiments, 1)
	require.Equal(t, "twitter", experiments[0].Name)

	require.Len(t, experiments[0].Defs, 1)
	def := experiments[0].Defs[0]
	require.Equal(t, "autopush", def.Name)
	require.Equal(t, "twitternew", def.Part)
	require.Equal(t, "postgres", def.DbType)
	require.False(t, def.DbWritearound)

	for _, phase := range Phases {
		cmd := def.Command(phase)
		require.NotEmpty(t, cmd, phase.String())
		require.Contains(t, cmd, "pqserver", phase.String())
	}
	require.Equal(t, "./obj/pqserver --twitternew --verbose --no-execute --graph=twitter_graph_1.8M.dat", def.PopulateCmd)
	require.Equal(t, "./obj/pqserver --twitternew --verbose --no-populate --graph=twitter_graph_1.8M.dat --duration=1000000 --popduration=0", def.ClientCmd)
}

func TestExperimentsIdempotent(t *testing.T) {
	first, second := Experiments(), Experiments()
	require.Equal(t, first, second)

	first[0].Name = "changed"
	first[0].Defs[0].ClientCmd = "changed"
	require.Equal(t, Experiments(), second)
}

func TestFindExperiment(t *testing.T) {
	experiments := Experiments()
	experiment, ok := FindExperiment(experiments, "twitter")
	require.True(t, ok)

	def, ok := experiment.Definition("autopush")
	require.True(t, ok)
	require.True(t, def.SharedCache())

	_, ok = experiment.Definition("manual")
	require.False(t, ok)
	_, ok = FindExperiment(experiments, "hackernews")
	require.False(t, ok)
}

func TestPhases(t *testing.T) {
	names := make([]string, 0)
	for _, phase := range Phases {
		names = append(names, phase.String())
	}
	require.Equal(t, "backend cache populate client", strings.Join(names, " "))
	require.True(t, PhaseBackend.Background())
	require.True(t, PhaseCache.Background())
	require.False(t, PhasePopulate.Background())
	require.False(t, PhaseClient.Background())
	require.Equal(t, "", Definition{}.Command(Phase(42)))
}
