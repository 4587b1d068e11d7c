package runner

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	craftparts "github.com/mensylisir/craftkit/pkg/craftparts/errors"
	"github.com/mensylisir/craftkit/pkg/part"
	"github.com/mensylisir/craftkit/pkg/plugin"
	"github.com/mensylisir/craftkit/pkg/step"
)

// Builtins are the four built-in step implementations a Runner dispatches
// to, either directly (no override scriptlet) or through a scriptlet's
// control-FIFO calls.
type Builtins struct {
	Pull  func(ctx context.Context) error
	Build func(ctx context.Context) error
	Stage func(ctx context.Context) error
	Prime func(ctx context.Context) error
}

// Runner executes one part's one step: the built-in handler, or a user
// override scriptlet wired to the same built-ins via a control channel.
type Runner struct {
	Part     *part.Part
	Step     step.Step
	Plugin   plugin.Plugin
	Builtins Builtins
	Env      Environment
}

// RunBuiltin runs the default handler for r.Step with no scriptlet
// involved.
func (r *Runner) RunBuiltin(ctx context.Context) error {
	switch r.Step {
	case step.Pull:
		return r.Builtins.Pull(ctx)
	case step.Build:
		return r.Builtins.Build(ctx)
	case step.Stage:
		return r.Builtins.Stage(ctx)
	case step.Prime:
		return r.Builtins.Prime(ctx)
	default:
		return &craftparts.InternalError{Reason: fmt.Sprintf("invalid step %v", r.Step)}
	}
}

// RunScriptlet executes a user override scriptlet in workDir, wiring its
// CRAFT_PARTS_CALL_FIFO/CRAFT_PARTS_FEEDBACK_FIFO control channel back to
// r's built-ins. scriptletName identifies the override in error messages
// (e.g. "override-build").
func (r *Runner) RunScriptlet(ctx context.Context, scriptlet, scriptletName, workDir string) error {
	tmpDir, err := os.MkdirTemp("", "craftkit-scriptlet-"+uuid.NewString())
	if err != nil {
		return errors.Wrap(err, "create scriptlet control directory")
	}
	defer os.RemoveAll(tmpDir)

	callFifo, err := newNonBlockingFifo(filepath.Join(tmpDir, "function_call"))
	if err != nil {
		return errors.Wrap(err, "create call fifo")
	}
	defer callFifo.Close()

	feedbackFifo, err := newNonBlockingFifo(filepath.Join(tmpDir, "call_feedback"))
	if err != nil {
		return errors.Wrap(err, "create feedback fifo")
	}
	defer feedbackFifo.Close()

	interpreter, err := os.Executable()
	if err != nil {
		return errors.Wrap(err, "resolve own executable path")
	}

	script := fmt.Sprintf(
		"set -e\nexport CRAFT_PARTS_CALL_FIFO=%s\nexport CRAFT_PARTS_FEEDBACK_FIFO=%s\nexport CRAFT_PARTS_INTERPRETER=%s\n\n%s\n\n%s\n",
		callFifo.path, feedbackFifo.path, interpreter, r.Env.Script(), scriptlet,
	)

	cmd := exec.CommandContext(ctx, "/bin/sh")
	cmd.Stdin = strings.NewReader(script)
	cmd.Dir = workDir
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		return errors.Wrapf(err, "start scriptlet %s", scriptletName)
	}

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	var controlErr error
loop:
	for {
		select {
		case waitErr := <-done:
			if controlErr != nil {
				return controlErr
			}
			if waitErr != nil {
				return &craftparts.ScriptletRunError{ScriptletName: scriptletName, Code: exitCode(waitErr)}
			}
			break loop
		default:
		}

		if line, ok := callFifo.ReadLine(); ok {
			if err := r.handleControlCall(ctx, scriptletName, line); err != nil {
				controlErr = err
				feedbackFifo.Write(err.Error() + "\n")
			} else {
				feedbackFifo.Write("\n")
			}
		}

		time.Sleep(100 * time.Millisecond)
	}

	return controlErr
}

func (r *Runner) handleControlCall(ctx context.Context, scriptletName, raw string) error {
	call, err := parseControlCall(scriptletName, raw)
	if err != nil {
		var parseErr *craftparts.InternalError
		if stderrors.As(err, &parseErr) {
			return &craftparts.InvalidControlAPICall{PartName: r.Part.Name, Reason: parseErr.Reason}
		}
		return err
	}

	switch call.Function {
	case "pull":
		return r.Builtins.Pull(ctx)
	case "build":
		return r.Builtins.Build(ctx)
	case "stage":
		return r.Builtins.Stage(ctx)
	case "prime":
		return r.Builtins.Prime(ctx)
	default:
		return &craftparts.InvalidControlAPICall{PartName: r.Part.Name, Reason: fmt.Sprintf("invalid function %q", call.Function)}
	}
}

// WriteBuildScript renders the plugin build commands, preceded by the
// part environment, to runDir/build.sh, chmod 0755.
func WriteBuildScript(env Environment, plugin plugin.Plugin, runDir string) (string, error) {
	path := filepath.Join(runDir, "build.sh")

	var b strings.Builder
	b.WriteString(env.Script())
	b.WriteString("set -x\n")
	for _, cmd := range plugin.BuildCommands() {
		b.WriteString(cmd)
		b.WriteByte('\n')
	}

	if err := os.WriteFile(path, []byte(b.String()), 0o755); err != nil {
		return "", errors.Wrapf(err, "write build script %s", path)
	}
	return path, nil
}

// RunBuildScript executes the script written by WriteBuildScript in
// buildWorkDir, wrapping a nonzero exit in PluginBuildError.
func RunBuildScript(ctx context.Context, partName, scriptPath, buildWorkDir string) error {
	cmd := exec.CommandContext(ctx, scriptPath)
	cmd.Dir = buildWorkDir
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return &craftparts.PluginBuildError{PartName: partName, Err: err}
	}
	return nil
}

// nonBlockingFifo is a named pipe opened O_RDWR|O_NONBLOCK on both ends
// so creation never blocks waiting for a peer to open the other side.
type nonBlockingFifo struct {
	path string
	file *os.File

	mu  sync.Mutex
	buf bytes.Buffer
}

func newNonBlockingFifo(path string) (*nonBlockingFifo, error) {
	if err := syscall.Mkfifo(path, 0o600); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_RDWR, 0o600)
	if err != nil {
		return nil, err
	}
	if err := syscall.SetNonblock(int(f.Fd()), true); err != nil {
		f.Close()
		return nil, err
	}
	return &nonBlockingFifo{path: path, file: f}, nil
}

// ReadLine drains whatever is currently available and returns the first
// complete newline-terminated line, if any.
func (f *nonBlockingFifo) ReadLine() (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	chunk := make([]byte, 4096)
	for {
		n, err := f.file.Read(chunk)
		if n > 0 {
			f.buf.Write(chunk[:n])
		}
		if err != nil {
			break
		}
		if n < len(chunk) {
			break
		}
	}

	data := f.buf.Bytes()
	idx := bytes.IndexByte(data, '\n')
	if idx < 0 {
		return "", false
	}
	line := string(data[:idx])
	f.buf.Next(idx + 1)
	return strings.TrimSpace(line), true
}

func (f *nonBlockingFifo) Write(s string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.file.Write([]byte(s))
}

func (f *nonBlockingFifo) Close() {
	f.file.Close()
	os.Remove(f.path)
}

func exitCode(err error) int {
	var exitErr *exec.ExitError
	if stderrors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}
