// Package callbacks replaces the process-wide callback registry
// (register_pre_step/register_prologue/...) with a value passed explicitly
// through the lifecycle manager, so two lifecycle runs in the same process
// never share hooks by accident.
package callbacks

import (
	"context"
	"reflect"

	"github.com/mensylisir/craftkit/pkg/part"
	"github.com/mensylisir/craftkit/pkg/step"
)

// StepHook runs before or after a step executes for a part.
type StepHook func(ctx context.Context, p *part.Part, s step.Step) error

// ExecutionHook runs once at the start or end of an entire lifecycle run.
type ExecutionHook func(ctx context.Context) error

// Bundle holds every hook registered for one lifecycle run. The zero value
// is usable and has no hooks registered.
type Bundle struct {
	prologue  []ExecutionHook
	epilogue  []ExecutionHook
	preStep   []StepHook
	postStep  []StepHook
}

// New returns an empty Bundle.
func New() *Bundle {
	return &Bundle{}
}

// RegisterPrologue adds hook to run once before any action in a run,
// rejecting a hook already registered (compared by identity, since Go funcs
// aren't otherwise comparable).
func (b *Bundle) RegisterPrologue(hook ExecutionHook) bool {
	if containsExecutionHook(b.prologue, hook) {
		return false
	}
	b.prologue = append(b.prologue, hook)
	return true
}

// RegisterEpilogue adds hook to run once after every action in a run.
func (b *Bundle) RegisterEpilogue(hook ExecutionHook) bool {
	if containsExecutionHook(b.epilogue, hook) {
		return false
	}
	b.epilogue = append(b.epilogue, hook)
	return true
}

// RegisterPreStep adds hook to run before each step action executes.
func (b *Bundle) RegisterPreStep(hook StepHook) bool {
	if containsStepHook(b.preStep, hook) {
		return false
	}
	b.preStep = append(b.preStep, hook)
	return true
}

// RegisterPostStep adds hook to run after each step action executes
// successfully.
func (b *Bundle) RegisterPostStep(hook StepHook) bool {
	if containsStepHook(b.postStep, hook) {
		return false
	}
	b.postStep = append(b.postStep, hook)
	return true
}

// Clear drops every registered hook, the equivalent of the source's
// module-level clear().
func (b *Bundle) Clear() {
	b.prologue = nil
	b.epilogue = nil
	b.preStep = nil
	b.postStep = nil
}

// RunPrologue invokes every registered prologue hook in registration order,
// stopping at the first error.
func (b *Bundle) RunPrologue(ctx context.Context) error {
	for _, hook := range b.prologue {
		if err := hook(ctx); err != nil {
			return err
		}
	}
	return nil
}

// RunEpilogue invokes every registered epilogue hook in registration order,
// stopping at the first error.
func (b *Bundle) RunEpilogue(ctx context.Context) error {
	for _, hook := range b.epilogue {
		if err := hook(ctx); err != nil {
			return err
		}
	}
	return nil
}

// RunPreStep invokes every registered pre-step hook for (p, s).
func (b *Bundle) RunPreStep(ctx context.Context, p *part.Part, s step.Step) error {
	for _, hook := range b.preStep {
		if err := hook(ctx, p, s); err != nil {
			return err
		}
	}
	return nil
}

// RunPostStep invokes every registered post-step hook for (p, s).
func (b *Bundle) RunPostStep(ctx context.Context, p *part.Part, s step.Step) error {
	for _, hook := range b.postStep {
		if err := hook(ctx, p, s); err != nil {
			return err
		}
	}
	return nil
}

func containsExecutionHook(hooks []ExecutionHook, hook ExecutionHook) bool {
	target := reflect.ValueOf(hook).Pointer()
	for _, h := range hooks {
		if reflect.ValueOf(h).Pointer() == target {
			return true
		}
	}
	return false
}

func containsStepHook(hooks []StepHook, hook StepHook) bool {
	target := reflect.ValueOf(hook).Pointer()
	for _, h := range hooks {
		if reflect.ValueOf(h).Pointer() == target {
			return true
		}
	}
	return false
}
