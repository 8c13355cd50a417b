package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Preflight checks that the files a definition refers to exist before any server is
// started: the executable of every command when it is given as a path, and the
// --graph= dataset.
func Preflight(dir string, def Definition) error {
	for _, phase := range Phases {
		fields := strings.Fields(def.Command(phase))
		if len(fields) == 0 {
			return fmt.Errorf("%v: empty %v command", def.Name, phase)
		}
		if strings.Contains(fields[0], "/") {
			if err := checkFile(dir, fields[0]); err != nil {
				return fmt.Errorf("%v: %v executable: %w", def.Name, phase, err)
			}
		}
		for _, field := range fields[1:] {
			if graph, ok := strings.CutPrefix(field, "--graph="); ok {
				if err := checkFile(dir, graph); err != nil {
					return fmt.Errorf("%v: %v graph must be generated in advance: %w", def.Name, phase, err)
				}
			}
		}
	}
	return nil
}

func checkFile(dir string, name string) error {
	path := name
	if !filepath.IsAbs(path) {
		path = filepath.Join(dir, name)
	}
	_, err := os.Stat(path)
	return err
}
