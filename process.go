package main

import (
	"bytes"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"
)

const outputTailLines = 20

type ProcessResult struct {
	ExitCode int
	Elapsed  time.Duration
	Lines    []string
}

// Tail returns the last n output lines joined for error messages.
func (r ProcessResult) Tail(n int) string {
	lines := r.Lines
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n")
}

type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) Lines() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	output := strings.TrimRight(b.buf.String(), "\n")
	if output == "" {
		return nil
	}
	return strings.Split(output, "\n")
}

// Process is a single phase command running under `sh -c` in its own process group,
// so stopping it also stops whatever the shell spawned.
type Process struct {
	Name    string
	Command string

	cmd    *exec.Cmd
	output *lockedBuffer
	start  time.Time
	done   chan struct{}
	result ProcessResult
	err    error
}

func StartProcess(dir string, name string, command string) (*Process, error) {
	if command == "" {
		return nil, fmt.Errorf("empty command for %v", name)
	}
	output := &lockedBuffer{}
	cmd := exec.Command("sh", "-c", command)
	cmd.Dir = dir
	cmd.Stdout = output
	cmd.Stderr = output
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	Logger.Infof("start %v: %v", name, command)
	p := &Process{
		Name:    name,
		Command: command,
		cmd:     cmd,
		output:  output,
		start:   time.Now(),
		done:    make(chan struct{}),
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start %v: %w", name, err)
	}
	go p.wait()
	return p, nil
}

func (p *Process) wait() {
	err := p.cmd.Wait()
	p.result = ProcessResult{
		ExitCode: p.cmd.ProcessState.ExitCode(),
		Elapsed:  time.Since(p.start),
		Lines:    p.output.Lines(),
	}
	if err != nil {
		p.err = fmt.Errorf("%v failed: err=%w, out=%v", p.Name, err, p.result.Tail(outputTailLines))
	}
	for _, line := range p.result.Lines {
		Logger.Debugf("%v: %v", p.Name, line)
	}
	close(p.done)
}

func (p *Process) Done() <-chan struct{} { return p.done }

func (p *Process) Exited() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}

// Wait blocks until the process exits. A non-zero exit status is an error.
func (p *Process) Wait() (ProcessResult, error) {
	<-p.done
	return p.result, p.err
}

// Stop interrupts the process group and kills it if it is still alive after grace.
// The exit status caused by the signal is not reported as an error.
func (p *Process) Stop(grace time.Duration) ProcessResult {
	if p.Exited() {
		return p.result
	}
	Logger.Infof("stop %v", p.Name)
	if err := p.signal(syscall.SIGINT); err != nil {
		Logger.Warnf("failed to interrupt %v: %v", p.Name, err)
	}
	select {
	case <-p.done:
	case <-time.After(grace):
		Logger.Warnf("%v did not exit after %v, kill", p.Name, grace)
		if err := p.signal(syscall.SIGKILL); err != nil {
			Logger.Warnf("failed to kill %v: %v", p.Name, err)
		}
		<-p.done
	}
	return p.result
}

func (p *Process) signal(sig syscall.Signal) error {
	err := syscall.Kill(-p.cmd.Process.Pid, sig)
	if errors.Is(err, syscall.ESRCH) {
		return nil
	}
	return err
}
