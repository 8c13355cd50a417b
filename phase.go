package main

import "fmt"

type Phase int

const (
	PhaseBackend Phase = iota
	PhaseCache
	PhasePopulate
	PhaseClient
)

var Phases = []Phase{PhaseBackend, PhaseCache, PhasePopulate, PhaseClient}

func (p Phase) String() string {
	switch p {
	case PhaseBackend:
		return "backend"
	case PhaseCache:
		return "cache"
	case PhasePopulate:
		return "populate"
	case PhaseClient:
		return "client"
	}
	return fmt.Sprintf("phase(%d)", int(p))
}

// Background phases run a server for the lifetime of an attempt.
func (p Phase) Background() bool {
	return p == PhaseBackend || p == PhaseCache
}

func (d Definition) Command(phase Phase) string {
	switch phase {
	case PhaseBackend:
		return d.BackendCmd
	case PhaseCache:
		return d.CacheCmd
	case PhasePopulate:
		return d.PopulateCmd
	case PhaseClient:
		return d.ClientCmd
	}
	return ""
}

// SharedCache reports whether the cache phase reuses the backend server process.
func (d Definition) SharedCache() bool {
	return d.CacheCmd == d.BackendCmd
}
