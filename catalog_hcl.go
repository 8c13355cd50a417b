package main

import (
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"
)

type catalogFile struct {
	Experiments []experimentBlock `hcl:"experiment,block"`
}

type experimentBlock struct {
	Name string            `hcl:"name,label"`
	Defs []definitionBlock `hcl:"definition,block"`
}

type definitionBlock struct {
	Name          string `hcl:"name,label"`
	Part          string `hcl:"part"`
	DbType        string `hcl:"db_type"`
	DbWritearound bool   `hcl:"db_writearound,optional"`
	BackendCmd    string `hcl:"backend_cmd"`
	CacheCmd      string `hcl:"cache_cmd,optional"`
	PopulateCmd   string `hcl:"populate_cmd"`
	ClientCmd     string `hcl:"client_cmd"`
}

// DefaultVariables are visible to catalog files as plain identifiers.
func DefaultVariables() map[string]string {
	return map[string]string{
		"pqserver": serverCmd,
		"users":    users,
	}
}

func evalContext(vars map[string]string) *hcl.EvalContext {
	values := make(map[string]cty.Value)
	for name, value := range DefaultVariables() {
		values[name] = cty.StringVal(value)
	}
	for name, value := range vars {
		values[name] = cty.StringVal(value)
	}
	return &hcl.EvalContext{Variables: values}
}

// ParseCatalog decodes an HCL catalog. A definition without cache_cmd reuses backend_cmd.
func ParseCatalog(src []byte, filename string, vars map[string]string) ([]Experiment, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse catalog %v: %s", filename, diags.Error())
	}
	return decodeCatalog(file, filename, vars)
}

func LoadCatalog(path string, vars map[string]string) ([]Experiment, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(path)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse catalog %v: %s", path, diags.Error())
	}
	return decodeCatalog(file, path, vars)
}

func decodeCatalog(file *hcl.File, filename string, vars map[string]string) ([]Experiment, error) {
	var config catalogFile
	diags := gohcl.DecodeBody(file.Body, evalContext(vars), &config)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode catalog %v: %s", filename, diags.Error())
	}

	experiments := make([]Experiment, 0, len(config.Experiments))
	for _, block := range config.Experiments {
		experiment := Experiment{Name: block.Name, Defs: make([]Definition, 0, len(block.Defs))}
		for _, def := range block.Defs {
			cacheCmd := def.CacheCmd
			if cacheCmd == "" {
				cacheCmd = def.BackendCmd
			}
			experiment.Defs = append(experiment.Defs, Definition{
				Name:          def.Name,
				Part:          def.Part,
				DbType:        def.DbType,
				DbWritearound: def.DbWritearound,
				BackendCmd:    def.BackendCmd,
				CacheCmd:      cacheCmd,
				PopulateCmd:   def.PopulateCmd,
				ClientCmd:     def.ClientCmd,
			})
		}
		experiments = append(experiments, experiment)
	}
	Logger.Debugf("decoded catalog %v with %v experiments", filename, len(experiments))
	return experiments, nil
}
