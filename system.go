package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"runtime"
	"time"

	"github.com/google/uuid"
	"github.com/shirou/gopsutil/cpu"
	"github.com/shirou/gopsutil/host"
	"github.com/shirou/gopsutil/mem"
)

const (
	Version = "v1"
	// storeTimeout bounds writing results after the run context is cancelled.
	storeTimeout = 30 * time.Second
)

type System struct {
	storage   *Storage
	benchmark Benchmark
	// results is the name of an existing results database; a new one is created when empty.
	results string
}

type Filter struct {
	Experiment string
	Definition string
}

func (f Filter) Match(experiment string, def string) bool {
	if f.Experiment != "" && f.Experiment != experiment {
		return false
	}
	if f.Definition != "" && f.Definition != def {
		return false
	}
	return true
}

type SysInfo struct {
	Arch     string
	Hostname string
	Platform string
	CPUCount int
	CPUFreq  float64
	RAM      float64
}

func HostStat() SysInfo {
	info := SysInfo{Arch: runtime.GOARCH}
	if hostStat, err := host.Info(); err == nil {
		info.Hostname = hostStat.Hostname
		info.Platform = hostStat.Platform
	}
	if cpuStat, err := cpu.Info(); err == nil && len(cpuStat) > 0 {
		totalFreq := 0.0
		for _, cpu := range cpuStat {
			totalFreq += cpu.Mhz
		}
		info.CPUCount = len(cpuStat)
		info.CPUFreq = totalFreq / float64(len(cpuStat)) * 1000
	}
	if vmStat, err := mem.VirtualMemory(); err == nil {
		info.RAM = float64(vmStat.Total) / 1024 / 1024 / 1024
	}
	return info
}

func (s *System) openResults(run string, info SysInfo) (*sql.DB, error) {
	name := s.results
	if name == "" {
		name = fmt.Sprintf("pqbench-%v-%v-%v", Version, time.Now().Unix(), run[:8])
		if err := s.storage.CreateDatabase(name); err != nil {
			return nil, fmt.Errorf("unable to create results db %v: %w", name, err)
		}
	}
	db, err := s.storage.ConnectDb(name)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to the results db %v: %w", name, err)
	}
	if s.results != "" {
		if err := s.checkExisting(db, name); err != nil {
			db.Close()
			return nil, err
		}
	}
	err = s.storage.InitResultsDb(db, map[string]any{
		"run":      run,
		"version":  Version,
		"arch":     info.Arch,
		"hostname": info.Hostname,
		"platform": info.Platform,
		"ram":      info.RAM,
		"cpu":      info.CPUCount,
		"freq":     info.CPUFreq,
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("unable to initialize results db %v: %w", name, err)
	}
	Logger.Infof("results will be written to %v", name)
	return db, nil
}

// checkExisting refuses to append to a results db written by another version.
// A db without a parameters table is treated as empty.
func (s *System) checkExisting(db *sql.DB, name string) error {
	parameters, err := s.storage.Parameters(db)
	if err != nil {
		Logger.Infof("results db %v has no parameters yet: %v", name, err)
		return nil
	}
	Logger.Infof("appending to results db %v with parameters %v", name, parameters)
	if version, ok := parameters["version"]; ok && version != Version {
		return fmt.Errorf("results db %v was written by version %v, current version is %v", name, version, Version)
	}
	return nil
}

func (s *System) store(ctx context.Context, db *sql.DB, run string, results []PhaseResult) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), storeTimeout)
	defer cancel()
	return s.storage.UpdateResultsDb(ctx, db, run, results)
}

// Run executes every definition matching the filter in catalog order. A failed
// definition does not stop the remaining ones unless the context is cancelled.
func (s *System) Run(ctx context.Context, experiments []Experiment, filter Filter) error {
	if err := ValidateCatalog(experiments); err != nil {
		return err
	}

	type target struct {
		experiment string
		def        Definition
	}
	targets := make([]target, 0)
	for _, experiment := range experiments {
		for _, def := range experiment.Defs {
			if filter.Match(experiment.Name, def.Name) {
				targets = append(targets, target{experiment: experiment.Name, def: def})
			}
		}
	}
	if len(targets) == 0 {
		return fmt.Errorf("no definitions match experiment=%q definition=%q", filter.Experiment, filter.Definition)
	}

	run := uuid.NewString()
	Logger.Infof("start run %v with %v definitions", run, len(targets))
	info := HostStat()
	Logger.Infof("host stat: %+v", info)

	var db *sql.DB
	if s.storage != nil {
		var err error
		db, err = s.openResults(run, info)
		if err != nil {
			return err
		}
		defer db.Close()
	}

	var errs []error
	for _, t := range targets {
		results, err := s.benchmark.Run(ctx, t.experiment, t.def)
		if db != nil && len(results) > 0 {
			if err := s.store(ctx, db, run, results); err != nil {
				errs = append(errs, fmt.Errorf("failed to store results of %v/%v: %w", t.experiment, t.def.Name, err))
			}
		}
		for _, result := range results {
			Logger.Infof("%v/%v attempt #%v %v: exit=%v elapsed=%v", result.Experiment, result.Definition, result.Attempt, result.Phase, result.ExitCode, result.Elapsed)
		}
		if err != nil {
			Logger.Errorf("failed to execute %v/%v: %v", t.experiment, t.def.Name, err)
			errs = append(errs, err)
			if ctx.Err() != nil {
				break
			}
		}
	}
	return errors.Join(errs...)
}
