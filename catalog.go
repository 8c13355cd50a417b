package main

import "fmt"

const (
	serverCmd = "./obj/pqserver"
	users     = "--graph=twitter_graph_1.8M.dat"
)

var (
	populateCmd = fmt.Sprintf("%v --twitternew --verbose --no-execute %v", serverCmd, users)
	clientCmd   = fmt.Sprintf("%v --twitternew --verbose --no-populate %v --duration=1000000 --popduration=0", serverCmd, users)
)

type Experiment struct {
	Name string       `json:"name" validate:"required"`
	Defs []Definition `json:"defs" validate:"required,min=1,unique=Name,dive"`
}

// Definition is one configuration variant of an experiment. Commands are complete
// shell strings, executed relative to the pequod checkout.
type Definition struct {
	Name          string `json:"name" validate:"required"`
	Part          string `json:"def_part" validate:"required"`
	DbType        string `json:"def_db_type" validate:"required"`
	DbWritearound bool   `json:"def_db_writearound"`
	BackendCmd    string `json:"backendcmd" validate:"required,pqserver_cmd"`
	CacheCmd      string `json:"cachecmd" validate:"required,pqserver_cmd"`
	PopulateCmd   string `json:"populatecmd" validate:"required,pqserver_cmd"`
	ClientCmd     string `json:"clientcmd" validate:"required,pqserver_cmd"`
}

// Experiments builds the built-in catalog. Every call returns a fresh copy.
func Experiments() []Experiment {
	return []Experiment{
		{
			Name: "twitter",
			Defs: []Definition{
				{
					Name:          "autopush",
					Part:          "twitternew",
					DbType:        "postgres",
					DbWritearound: false,
					BackendCmd:    serverCmd,
					CacheCmd:      serverCmd,
					PopulateCmd:   populateCmd,
					ClientCmd:     clientCmd,
				},
			},
		},
	}
}

func FindExperiment(experiments []Experiment, name string) (Experiment, bool) {
	for _, experiment := range experiments {
		if experiment.Name == name {
			return experiment, true
		}
	}
	return Experiment{}, false
}

func (e Experiment) Definition(name string) (Definition, bool) {
	for _, def := range e.Defs {
		if def.Name == name {
			return def, true
		}
	}
	return Definition{}, false
}
