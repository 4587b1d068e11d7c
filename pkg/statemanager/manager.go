package statemanager

import (
	"context"
	stderrors "errors"
	"sort"

	"github.com/pkg/errors"

	craftparts "github.com/mensylisir/craftkit/pkg/craftparts/errors"
	"github.com/mensylisir/craftkit/pkg/part"
	"github.com/mensylisir/craftkit/pkg/source"
	"github.com/mensylisir/craftkit/pkg/state"
	"github.com/mensylisir/craftkit/pkg/step"
)

// SourceHandlerFactory builds the source handler for a part, or returns
// (nil, nil) if the part has no source (e.g. a pure metadata part).
type SourceHandlerFactory func(p *part.Part) (source.Handler, error)

// Manager keeps track of every part's per-step state: what is persisted
// from a prior run, what has been written ephemerally this run, and the
// dirty/outdated analysis the Sequencer consults to decide each action.
type Manager struct {
	workDir        string
	parts          []*part.Part
	byName         map[string]*part.Part
	projectOptions map[string]any

	state map[string]map[step.Step]*Wrapper

	serials *SerialGenerator

	sourceHandlerFactory SourceHandlerFactory
	sourceHandlerCache   map[string]source.Handler
	sourceHandlerLoaded  map[string]bool
}

// NewManager constructs a Manager and loads all persisted state from
// workDir. serials should be shared across every Manager created in a
// single process run (see SerialGenerator).
func NewManager(
	workDir string,
	parts []*part.Part,
	projectOptions map[string]any,
	sourceHandlerFactory SourceHandlerFactory,
	serials *SerialGenerator,
) (*Manager, error) {
	m := &Manager{
		workDir:              workDir,
		parts:                parts,
		byName:               part.ByName(parts),
		projectOptions:       projectOptions,
		serials:              serials,
		sourceHandlerFactory: sourceHandlerFactory,
		sourceHandlerCache:   map[string]source.Handler{},
		sourceHandlerLoaded:  map[string]bool{},
	}
	if err := m.loadPersisted(); err != nil {
		return nil, err
	}
	return m, nil
}

// Reload re-reads persisted state from disk and discards every ephemeral
// wrapper. The serial generator is left untouched so any ephemeral
// states written after this call keep advancing.
func (m *Manager) Reload() error {
	m.state = nil
	m.sourceHandlerCache = map[string]source.Handler{}
	m.sourceHandlerLoaded = map[string]bool{}
	return m.loadPersisted()
}

func (m *Manager) loadPersisted() error {
	m.state = make(map[string]map[step.Step]*Wrapper, len(m.parts))
	for _, p := range m.parts {
		for _, s := range step.Steps {
			path := state.FilePath(m.workDir, p.Name, s)
			st, modTime, err := state.Load(path)
			if err != nil {
				return errors.Wrapf(err, "load state for %s:%s", p.Name, s)
			}
			if st == nil {
				continue
			}
			m.setWrapper(p.Name, s, NewPersistedWrapper(st, modTime))
		}
	}
	return nil
}

func (m *Manager) setWrapper(partName string, s step.Step, w *Wrapper) {
	if m.state[partName] == nil {
		m.state[partName] = make(map[step.Step]*Wrapper)
	}
	if w == nil {
		delete(m.state[partName], s)
		return
	}
	m.state[partName][s] = w
}

func (m *Manager) getWrapper(partName string, s step.Step) *Wrapper {
	steps, ok := m.state[partName]
	if !ok {
		return nil
	}
	return steps[s]
}

// HasStepRun reports whether state exists for (partName, s), persisted
// or ephemeral.
func (m *Manager) HasStepRun(partName string, s step.Step) bool {
	return m.getWrapper(partName, s) != nil
}

// ProjectOptions returns the project-wide option map every part's state
// is diffed against.
func (m *Manager) ProjectOptions() map[string]any {
	return m.projectOptions
}

// Persist writes the current in-memory state for (partName, s) to disk
// and rewraps it as a persisted wrapper carrying the file's new
// modification time, so subsequent IsNewerThan comparisons against it
// use the same timestamp ordering a freshly loaded Manager would see.
// Called by the Part Handler once it has actually performed the step
// (the Sequencer's own SetState only records the synthetic plan-time
// state in memory).
func (m *Manager) Persist(partName string, s step.Step) error {
	w := m.getWrapper(partName, s)
	if w == nil {
		return &craftparts.InternalError{Reason: partName + ":" + s.String() + " has no state to persist"}
	}

	path := state.FilePath(m.workDir, partName, s)
	if err := state.Save(path, w.State); err != nil {
		return err
	}

	ps, modTime, err := state.Load(path)
	if err != nil {
		return err
	}

	m.setWrapper(partName, s, NewPersistedWrapper(ps, modTime))
	return nil
}

// SetState stores an ephemeral wrapper for (partName, s) using the next
// serial.
func (m *Manager) SetState(partName string, s step.Step, st state.PartState) {
	m.setWrapper(partName, s, NewEphemeralWrapper(m.serials, st, false))
}

// UpdateStateTimestamp rewraps the existing state at (partName, s) with a
// fresh ephemeral serial, regardless of whether it was previously
// persisted or ephemeral. This never writes to disk: the state stays
// ephemeral-only until an explicit Persist call.
func (m *Manager) UpdateStateTimestamp(partName string, s step.Step) {
	w := m.getWrapper(partName, s)
	if w == nil {
		return
	}
	m.setWrapper(partName, s, NewEphemeralWrapper(m.serials, w.State, w.Updated))
}

// MarkStepUpdated sets the Updated flag on the wrapper at (partName, s),
// rewrapping it as ephemeral in the process (mirroring
// UpdateStateTimestamp's rewrap behavior).
func (m *Manager) MarkStepUpdated(partName string, s step.Step) {
	w := m.getWrapper(partName, s)
	if w == nil {
		return
	}
	m.setWrapper(partName, s, NewEphemeralWrapper(m.serials, w.State, true))
}

func (m *Manager) wasUpdated(partName string, s step.Step) bool {
	w := m.getWrapper(partName, s)
	return w != nil && w.Updated
}

// CleanPart removes the wrapper for (partName, s) and every later step
// of that part.
func (m *Manager) CleanPart(partName string, s step.Step) {
	m.setWrapper(partName, s, nil)
	for _, later := range s.NextSteps() {
		m.setWrapper(partName, later, nil)
	}
}

// ShouldStepRun reports whether (partName, s) should run: it hasn't run
// yet, it's dirty, it's outdated, or the same holds for any earlier step
// of the same part.
func (m *Manager) ShouldStepRun(ctx context.Context, partName string, s step.Step) (bool, error) {
	if !m.HasStepRun(partName, s) {
		return true, nil
	}

	dirty, err := m.DirtyReport(ctx, partName, s)
	if err != nil {
		return false, err
	}
	if !dirty.Empty() {
		return true, nil
	}

	outdated, err := m.OutdatedReport(ctx, partName, s)
	if err != nil {
		return false, err
	}
	if !outdated.Empty() {
		return true, nil
	}

	prev := s.PreviousSteps()
	if len(prev) > 0 {
		return m.ShouldStepRun(ctx, partName, prev[len(prev)-1])
	}
	return false, nil
}

// DirtyReport returns the dirty report for (partName, s), or nil if the
// step is clean.
func (m *Manager) DirtyReport(ctx context.Context, partName string, s step.Step) (*DirtyReport, error) {
	if report := m.dirtyReportForPart(partName, s); !report.Empty() {
		return report, nil
	}

	prerequisite, ok := step.DependencyPrerequisiteStep(s)
	if !ok {
		return nil, nil
	}

	p, ok := m.byName[partName]
	if !ok {
		return nil, &craftparts.InvalidPartName{Name: partName}
	}

	deps, err := part.PartDependencies(p.Name, m.parts, true)
	if err != nil {
		return nil, err
	}

	stw := m.getWrapper(partName, s)
	if stw == nil {
		return nil, &craftparts.InternalError{Reason: partName + ":" + s.String() + " should already have been run"}
	}

	var changed []Dependency
	depNames := sortedNames(deps)
	for _, depName := range depNames {
		prereqWrapper := m.getWrapper(depName, prerequisite)
		dependencyChanged := prereqWrapper == nil || prereqWrapper.IsNewerThan(stw)

		shouldRun, err := m.ShouldStepRun(ctx, depName, prerequisite)
		if err != nil {
			return nil, err
		}

		if dependencyChanged || shouldRun {
			changed = append(changed, Dependency{PartName: depName, Step: prerequisite})
		}
	}

	if len(changed) == 0 {
		return nil, nil
	}
	return &DirtyReport{ChangedDependencies: changed}, nil
}

func (m *Manager) dirtyReportForPart(partName string, s step.Step) *DirtyReport {
	stw := m.getWrapper(partName, s)
	if stw == nil {
		return nil
	}

	p, ok := m.byName[partName]
	if !ok {
		return nil
	}

	properties := stw.State.DiffPropertiesOfInterest(p.Properties())
	options := stw.State.DiffProjectOptionsOfInterest(m.projectOptions)

	if len(properties) == 0 && len(options) == 0 {
		return nil
	}
	return &DirtyReport{DirtyProperties: properties, DirtyProjectOptions: options}
}

// OutdatedReport returns the outdated report for (partName, s), or nil if
// the step is up to date. A step already marked Updated never reports
// outdated again.
func (m *Manager) OutdatedReport(ctx context.Context, partName string, s step.Step) (*OutdatedReport, error) {
	if m.wasUpdated(partName, s) {
		return nil, nil
	}
	return m.outdatedReportForPart(ctx, partName, s)
}

func (m *Manager) outdatedReportForPart(ctx context.Context, partName string, s step.Step) (*OutdatedReport, error) {
	stw := m.getWrapper(partName, s)
	if stw == nil {
		return nil, nil
	}

	if s == step.Pull {
		handler, err := m.sourceHandlerFor(partName)
		if err != nil {
			return nil, err
		}
		if handler == nil {
			return nil, nil
		}

		statePath := state.FilePath(m.workDir, partName, step.Pull)
		changed, err := handler.Check(ctx, statePath)
		if err != nil {
			if stderrors.Is(err, source.ErrCheckUnsupported) {
				return nil, nil
			}
			return nil, errors.Wrapf(err, "check source for part %q", partName)
		}
		if changed {
			return &OutdatedReport{SourceUpdated: true}, nil
		}
		return nil, nil
	}

	prev := s.PreviousSteps()
	for i := len(prev) - 1; i >= 0; i-- {
		previousStep := prev[i]
		previousWrapper := m.getWrapper(partName, previousStep)
		if previousWrapper != nil && previousWrapper.IsNewerThan(stw) {
			ps := previousStep
			return &OutdatedReport{PreviousStepModified: &ps}, nil
		}
	}
	return nil, nil
}

func (m *Manager) sourceHandlerFor(partName string) (source.Handler, error) {
	if m.sourceHandlerLoaded[partName] {
		return m.sourceHandlerCache[partName], nil
	}
	m.sourceHandlerLoaded[partName] = true

	if m.sourceHandlerFactory == nil {
		return nil, nil
	}

	p, ok := m.byName[partName]
	if !ok {
		return nil, &craftparts.InvalidPartName{Name: partName}
	}

	handler, err := m.sourceHandlerFactory(p)
	if err != nil {
		return nil, errors.Wrapf(err, "build source handler for part %q", partName)
	}
	m.sourceHandlerCache[partName] = handler
	return handler, nil
}

func sortedNames(deps map[string]*part.Part) []string {
	names := make([]string, 0, len(deps))
	for n := range deps {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
