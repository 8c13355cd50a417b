package main

import (
	"testing"
)

func TestValidateCatalog(t *testing.T) {
	tests := []struct {
		name        string
		experiments func() []Experiment
		isErr       bool
	}{
		{
			name:        "built-in catalog",
			experiments: Experiments,
			isErr:       false,
		},
		{
			name:        "empty catalog",
			experiments: func() []Experiment { return nil },
			isErr:       true,
		},
		{
			name: "experiment without definitions",
			experiments: func() []Experiment {
				experiments := Experiments()
				experiments[0].Defs = []Definition{}
				return experiments
			},
			isErr: true,
		},
		{
			name: "missing client command",
			experiments: func() []Experiment {
				experiments := Experiments()
				experiments[0].Defs[0].ClientCmd = ""
				return experiments
			},
			isErr: true,
		},
		{
			name: "command without pqserver",
			experiments: func() []Experiment {
				experiments := Experiments()
				experiments[0].Defs[0].PopulateCmd = "./obj/other --no-execute"
				return experiments
			},
			isErr: true,
		},
		{
			name: "duplicate definition names",
			experiments: func() []Experiment {
				experiments := Experiments()
				experiments[0].Defs = append(experiments[0].Defs, experiments[0].Defs[0])
				return experiments
			},
			isErr: true,
		},
		{
			name: "duplicate experiment names",
			experiments: func() []Experiment {
				return append(Experiments(), Experiments()...)
			},
			isErr: true,
		},
		{
			name: "second experiment",
			experiments: func() []Experiment {
				experiments := Experiments()
				hackernews := Experiments()[0]
				hackernews.Name = "hackernews"
				return append(experiments, hackernews)
			},
			isErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateCatalog(tt.experiments())
			if (err != nil) != tt.isErr {
				t.Errorf("ValidateCatalog() error = %v, wantErr %v", err, tt.isErr)
			}
		})
	}
}
