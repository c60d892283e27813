package process

import (
	"bufio"
	"errors"
	"io"
	"os/exec"
	"sync"
	"time"
)

const (
	// outputBufferSize is the initial scanner buffer for child output.
	outputBufferSize = 4096

	// maxLineSize is the longest output line accepted. A reader that hits
	// it stops recording and drains the pipe.
	maxLineSize = 1 << 20

	// outputDrainTimeout bounds how long the reaper waits for buffered
	// output after the child exits. Descendants that escaped the process
	// group can keep the pipes open indefinitely.
	outputDrainTimeout = 500 * time.Millisecond
)

// captureOutput pumps one output stream into the process log, one entry
// per non-empty line, tagged with the stream name. It owns r and closes
// it on EOF.
func (s *Supervisor) captureOutput(tag string, r io.ReadCloser, done *sync.WaitGroup) {
	defer done.Done()
	defer r.Close()

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, outputBufferSize), maxLineSize)

	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		s.processLog("[" + tag + "] " + line)
	}

	if err := scanner.Err(); err != nil {
		s.logger.Debug("output reader stopped", "stream", tag, "error", err)
		// Keep the child from blocking on a full pipe
		_, _ = io.Copy(io.Discard, r)
	}
}

func readersDone(readers *sync.WaitGroup) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		readers.Wait()
		close(done)
	}()
	return done
}

// reap collects the exit status as soon as the child exits. Output still
// in the pipes is given outputDrainTimeout to land in the process log
// before the exit is reported; readers that outlive it keep running.
func (s *Supervisor) reap(c *child, readers <-chan struct{}) {
	err := c.cmd.Wait()

	timer := time.NewTimer(outputDrainTimeout)
	select {
	case <-readers:
	case <-timer.C:
		s.logger.Debug("output still open after exit", "pid", c.run.PID)
	}
	timer.Stop()

	status := describeExit(c.cmd, err)
	c.mu.Lock()
	c.exitStatus = status
	c.mu.Unlock()
	close(c.exited)

	s.logger.Info("rustfs process exited", "pid", c.run.PID, "run_id", c.run.ID, "status", status)
	s.eachObserver(func(o Observer) { o.ProcessExited(c.run, status) })
	close(c.reaped)
}

func describeExit(cmd *exec.Cmd, err error) string {
	var exitErr *exec.ExitError
	switch {
	case err == nil, errors.As(err, &exitErr):
		if cmd.ProcessState != nil {
			return cmd.ProcessState.String()
		}
		return "exited"
	default:
		return err.Error()
	}
}
