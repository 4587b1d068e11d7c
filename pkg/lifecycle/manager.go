// Package lifecycle wires the Sequencer, State Manager, Part Handler and
// Callbacks bundle into the single facade a caller (the CLI, or an
// embedding application) drives.
package lifecycle

import (
	"context"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/mensylisir/craftkit/pkg/callbacks"
	craftparts "github.com/mensylisir/craftkit/pkg/craftparts"
	"github.com/mensylisir/craftkit/pkg/part"
	"github.com/mensylisir/craftkit/pkg/parthandler"
	"github.com/mensylisir/craftkit/pkg/pkgrepo"
	"github.com/mensylisir/craftkit/pkg/plugin"
	"github.com/mensylisir/craftkit/pkg/sequencer"
	"github.com/mensylisir/craftkit/pkg/source"
	"github.com/mensylisir/craftkit/pkg/state"
	"github.com/mensylisir/craftkit/pkg/statemanager"
	"github.com/mensylisir/craftkit/pkg/step"
)

// PluginFactory resolves the Plugin implementation for a part, given its
// declared plugin name and unmarshaled properties.
type PluginFactory func(p *part.Part) (plugin.Plugin, error)

// Options configures a Manager.
type Options struct {
	WorkDir string
	Parts   []*part.Part
	Project craftparts.ProjectInfo

	// CacheRoot is the root directory for the stage-packages content
	// cache shared across every part's Handler. Defaults to
	// <WorkDir>/cache when empty.
	CacheRoot string

	SourceFactory    statemanager.SourceHandlerFactory
	PluginFactory    PluginFactory
	PackageRepo      pkgrepo.Repository
	ManifestProvider craftparts.MachineManifestProvider
	ArchTriplet      string

	Callbacks *callbacks.Bundle
}

// Manager is the top-level facade over one lifecycle run: it plans
// actions via the Sequencer and executes them via one parthandler.Handler
// per part, sharing a single staging-collision map and a single
// Callbacks bundle across the whole run.
type Manager struct {
	opts      Options
	sequencer *sequencer.Sequencer
	stagedBy  map[string]string
	handlers  map[string]*parthandler.Handler
	callbacks *callbacks.Bundle
}

// NewManager constructs a Manager, failing with CycleDetected if the
// parts' dependency graph is not a DAG.
func NewManager(opts Options) (*Manager, error) {
	seq, err := sequencer.New(
		opts.WorkDir,
		opts.Parts,
		opts.Project,
		opts.SourceFactory,
		nil,
		opts.ManifestProvider,
		opts.PackageRepo,
	)
	if err != nil {
		return nil, err
	}

	cb := opts.Callbacks
	if cb == nil {
		cb = callbacks.New()
	}

	m := &Manager{
		opts:      opts,
		sequencer: seq,
		stagedBy:  map[string]string{},
		handlers:  map[string]*parthandler.Handler{},
		callbacks: cb,
	}
	return m, nil
}

// Plan returns the action list for target across partNames (or every
// part when empty), without executing anything. update additionally
// checks already-run PULL steps for upstream source changes.
func (m *Manager) Plan(ctx context.Context, target step.Step, partNames []string, update bool) ([]sequencer.Action, error) {
	return m.sequencer.Plan(ctx, target, partNames, update)
}

// Run plans and then executes every action for target across partNames,
// running the prologue/epilogue callbacks once around the whole run and
// the pre/post-step callbacks around each non-Skip action, stopping at
// the first error.
func (m *Manager) Run(ctx context.Context, target step.Step, partNames []string, update bool) ([]sequencer.Action, error) {
	actions, err := m.sequencer.Plan(ctx, target, partNames, update)
	if err != nil {
		return nil, err
	}

	if err := m.callbacks.RunPrologue(ctx); err != nil {
		return nil, err
	}

	for _, a := range actions {
		if err := m.execute(ctx, a); err != nil {
			return nil, err
		}
	}

	if err := m.callbacks.RunEpilogue(ctx); err != nil {
		return nil, err
	}
	return actions, nil
}

func (m *Manager) execute(ctx context.Context, a sequencer.Action) error {
	p, ok := part.ByName(m.opts.Parts)[a.PartName]
	if !ok {
		return errors.Errorf("lifecycle: unknown part %q in plan", a.PartName)
	}

	if a.Type != sequencer.Skip {
		if err := m.callbacks.RunPreStep(ctx, p, a.Step); err != nil {
			return errors.Wrapf(err, "pre-step hook for %s:%s", a.PartName, a.Step)
		}
	}

	h, err := m.handlerFor(p)
	if err != nil {
		return err
	}

	if err := h.Execute(ctx, a); err != nil {
		return errors.Wrapf(err, "execute %s:%s", a.PartName, a.Step)
	}

	if a.Type != sequencer.Skip {
		if err := m.callbacks.RunPostStep(ctx, p, a.Step); err != nil {
			return errors.Wrapf(err, "post-step hook for %s:%s", a.PartName, a.Step)
		}
	}
	return nil
}

func (m *Manager) handlerFor(p *part.Part) (*parthandler.Handler, error) {
	if h, ok := m.handlers[p.Name]; ok {
		return h, nil
	}

	var pl plugin.Plugin
	if m.opts.PluginFactory != nil {
		var err error
		pl, err = m.opts.PluginFactory(p)
		if err != nil {
			return nil, errors.Wrapf(err, "build plugin for part %q", p.Name)
		}
	}

	var src source.Handler
	if m.opts.SourceFactory != nil {
		var err error
		src, err = m.opts.SourceFactory(p)
		if err != nil {
			return nil, errors.Wrapf(err, "build source handler for part %q", p.Name)
		}
	}

	cacheRoot := m.opts.CacheRoot
	if cacheRoot == "" {
		cacheRoot = filepath.Join(m.opts.WorkDir, "cache")
	}

	h := &parthandler.Handler{
		Part:             p,
		Plugin:           pl,
		Source:           src,
		PackageRepo:      m.opts.PackageRepo,
		Project:          m.opts.Project,
		CacheRoot:        cacheRoot,
		StateManager:     m.sequencer.StateManager(),
		ManifestProvider: m.opts.ManifestProvider,
		ArchTriplet:      m.opts.ArchTriplet,
		StagedBy:         m.stagedBy,
	}
	m.handlers[p.Name] = h
	return h, nil
}

// Clean removes persisted state for partNames (or every part when empty)
// from target onward, along with the on-disk directories that target's
// steps produced, then reloads state from disk so the next Plan sees the
// cleaned result. Stage and prime are shared across every part, so they
// are only removed when partNames is empty (a whole-project clean) and
// target reaches that far; a named-parts clean only ever touches those
// parts' own source/build/install directories.
func (m *Manager) Clean(ctx context.Context, target step.Step, partNames []string) error {
	wholeProject := len(partNames) == 0

	names := partNames
	if wholeProject {
		for _, p := range m.opts.Parts {
			names = append(names, p.Name)
		}
	}

	byName := part.ByName(m.opts.Parts)
	for _, name := range names {
		for _, s := range append([]step.Step{target}, target.NextSteps()...) {
			path := state.FilePath(m.opts.WorkDir, name, s)
			if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
				return errors.Wrapf(err, "remove state file for %s:%s", name, s)
			}
		}

		p, ok := byName[name]
		if !ok {
			continue
		}
		if target <= step.Build {
			if err := removeDir(p.Dirs.Install); err != nil {
				return err
			}
			if err := removeDir(p.Dirs.Build); err != nil {
				return err
			}
		}
		if target <= step.Pull {
			if err := removeDir(p.Dirs.Source); err != nil {
				return err
			}
			if err := removeDir(p.Dirs.StagePackages); err != nil {
				return err
			}
		}
	}

	if wholeProject {
		if err := removeDir(sharedDir(m.opts.Parts, func(d part.Directories) string { return d.Prime })); err != nil {
			return err
		}
		if target <= step.Stage {
			if err := removeDir(sharedDir(m.opts.Parts, func(d part.Directories) string { return d.Stage })); err != nil {
				return err
			}
		}
	}

	return m.sequencer.ReloadState()
}

func removeDir(dir string) error {
	if dir == "" {
		return nil
	}
	if err := os.RemoveAll(dir); err != nil {
		return errors.Wrapf(err, "remove directory %s", dir)
	}
	return nil
}

// sharedDir returns the stage or prime directory from the first part,
// since that directory is identical across every part sharing one run.
func sharedDir(parts []*part.Part, pick func(part.Directories) string) string {
	if len(parts) == 0 {
		return ""
	}
	return pick(parts[0].Dirs)
}

// ReloadState re-reads persisted state from disk and discards ephemeral
// state, e.g. after an externally triggered clean.
func (m *Manager) ReloadState() error {
	return m.sequencer.ReloadState()
}

// Callbacks returns the bundle this run's hooks register against.
func (m *Manager) Callbacks() *callbacks.Bundle {
	return m.callbacks
}
