package main

import (
	"context"
	"fmt"
	"os/exec"
	"runtime"
	"time"
)

type Benchmark struct {
	Dir          string
	Attempts     int
	StartupDelay time.Duration
	StopGrace    time.Duration
	ClearCaches  bool
}

type PhaseResult struct {
	Experiment string
	Definition string
	Phase      Phase
	Attempt    int
	ExitCode   int
	Elapsed    time.Duration
	Lines      []string
	// Shared is set for the cache phase when it ran inside the backend process.
	Shared bool
}

func clearCaches() error {
	switch runtime.GOOS {
	case "linux":
		if err := exec.Command("sync").Run(); err != nil {
			return err
		}
		if err := exec.Command("sh", "-c", "echo 3 | sudo tee /proc/sys/vm/drop_caches").Run(); err != nil {
			return err
		}
		return nil
	case "darwin":
		if err := exec.Command("sync").Run(); err != nil {
			return err
		}
		if err := exec.Command("purge").Run(); err != nil {
			return err
		}
		return nil
	}
	return fmt.Errorf("unable to clear caches for platform '%v'", runtime.GOOS)
}

func (b *Benchmark) clearCachesIfNeeded() error {
	if !b.ClearCaches {
		return nil
	}
	Logger.Info("clear caches")
	return clearCaches()
}

func (b *Benchmark) attempts() int {
	return max(1, b.Attempts)
}

// Run executes every attempt of the definition and returns the per-phase results
// gathered so far, even when an attempt fails.
func (b *Benchmark) Run(ctx context.Context, experiment string, def Definition) ([]PhaseResult, error) {
	if err := Preflight(b.Dir, def); err != nil {
		return nil, err
	}
	results := make([]PhaseResult, 0, b.attempts()*len(Phases))
	for attempt := 1; attempt <= b.attempts(); attempt++ {
		Logger.Infof("running %v/%v attempt #%v/%v", experiment, def.Name, attempt, b.attempts())
		local, err := b.runAttempt(ctx, experiment, def, attempt)
		results = append(results, local...)
		if err != nil {
			return results, fmt.Errorf("attempt #%v of %v/%v failed: %w", attempt, experiment, def.Name, err)
		}
	}
	return results, nil
}

func (b *Benchmark) runAttempt(ctx context.Context, experiment string, def Definition, attempt int) (results []PhaseResult, err error) {
	if err := b.clearCachesIfNeeded(); err != nil {
		return nil, err
	}

	byPhase := make(map[Phase]PhaseResult)
	record := func(phase Phase, result ProcessResult) {
		byPhase[phase] = PhaseResult{
			Experiment: experiment,
			Definition: def.Name,
			Phase:      phase,
			Attempt:    attempt,
			ExitCode:   result.ExitCode,
			Elapsed:    result.Elapsed,
			Lines:      result.Lines,
		}
	}

	type server struct {
		phase   Phase
		process *Process
	}
	servers := make([]server, 0, 2)
	defer func() {
		for i := len(servers) - 1; i >= 0; i-- {
			record(servers[i].phase, servers[i].process.Stop(b.StopGrace))
		}
		if def.SharedCache() {
			if backend, ok := byPhase[PhaseBackend]; ok {
				backend.Phase = PhaseCache
				backend.Shared = true
				byPhase[PhaseCache] = backend
			}
		}
		for _, phase := range Phases {
			if result, ok := byPhase[phase]; ok {
				results = append(results, result)
			}
		}
	}()

	background, foreground := splitPhases()
	for _, phase := range background {
		if phase == PhaseCache && def.SharedCache() {
			continue
		}
		process, err := StartProcess(b.Dir, phaseName(def, phase), def.Command(phase))
		if err != nil {
			return nil, err
		}
		servers = append(servers, server{phase: phase, process: process})
	}

	select {
	case <-time.After(b.StartupDelay):
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	for _, s := range servers {
		if s.process.Exited() {
			result, _ := s.process.Wait()
			return nil, fmt.Errorf("%v exited during startup with code %v: %v", s.process.Name, result.ExitCode, result.Tail(outputTailLines))
		}
	}

	for _, phase := range foreground {
		process, err := StartProcess(b.Dir, phaseName(def, phase), def.Command(phase))
		if err != nil {
			return nil, err
		}
		select {
		case <-process.Done():
		case <-ctx.Done():
			record(phase, process.Stop(b.StopGrace))
			return nil, ctx.Err()
		}
		result, err := process.Wait()
		record(phase, result)
		if err != nil {
			return nil, err
		}
		Logger.Infof("%v finished in %v", process.Name, result.Elapsed)
	}
	return nil, nil
}

// splitPhases keeps the catalog order inside each group.
func splitPhases() (background []Phase, foreground []Phase) {
	for _, phase := range Phases {
		if phase.Background() {
			background = append(background, phase)
		} else {
			foreground = append(foreground, phase)
		}
	}
	return background, foreground
}

func phaseName(def Definition, phase Phase) string {
	return fmt.Sprintf("%v[%v]", def.Name, phase)
}
