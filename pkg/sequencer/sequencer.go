package sequencer

import (
	"context"
	"fmt"
	"sort"

	"github.com/pkg/errors"

	craftparts "github.com/mensylisir/craftkit/pkg/craftparts"
	craftpartserrors "github.com/mensylisir/craftkit/pkg/craftparts/errors"
	"github.com/mensylisir/craftkit/pkg/part"
	"github.com/mensylisir/craftkit/pkg/pkgrepo"
	"github.com/mensylisir/craftkit/pkg/state"
	"github.com/mensylisir/craftkit/pkg/statemanager"
	"github.com/mensylisir/craftkit/pkg/step"
)

// Sequencer obtains the list of actions to execute from the declared
// parts and accumulated state.
type Sequencer struct {
	parts       []*part.Part
	projectInfo craftparts.ProjectInfo

	workDir               string
	sourceHandlerFactory  statemanager.SourceHandlerFactory
	serials               *statemanager.SerialGenerator
	manifestProvider      craftparts.MachineManifestProvider
	packageRepo           pkgrepo.Repository

	sm *statemanager.Manager

	actions []Action
}

// New builds a Sequencer over parts, failing with CycleDetected if the
// dependency graph is not a DAG.
func New(
	workDir string,
	parts []*part.Part,
	projectInfo craftparts.ProjectInfo,
	sourceHandlerFactory statemanager.SourceHandlerFactory,
	serials *statemanager.SerialGenerator,
	manifestProvider craftparts.MachineManifestProvider,
	packageRepo pkgrepo.Repository,
) (*Sequencer, error) {
	sorted, err := part.SortParts(parts)
	if err != nil {
		return nil, err
	}

	if serials == nil {
		serials = statemanager.NewSerialGenerator()
	}

	sm, err := statemanager.NewManager(workDir, sorted, projectInfo.ProjectOptions, sourceHandlerFactory, serials)
	if err != nil {
		return nil, err
	}

	return &Sequencer{
		parts:                sorted,
		projectInfo:          projectInfo,
		workDir:              workDir,
		sourceHandlerFactory: sourceHandlerFactory,
		serials:              serials,
		manifestProvider:     manifestProvider,
		packageRepo:          packageRepo,
		sm:                   sm,
	}, nil
}

// StateManager exposes the underlying state manager, e.g. so the
// executor can query dependency directories or clean state after
// performing a clean action.
func (s *Sequencer) StateManager() *statemanager.Manager { return s.sm }

// Plan determines the list of actions to execute for target, across
// partNames (or every part, if empty). update additionally checks
// already-run PULL steps for upstream source changes; without it,
// already-run steps that aren't locally dirty are left alone.
func (s *Sequencer) Plan(ctx context.Context, target step.Step, partNames []string, update bool) ([]Action, error) {
	s.actions = nil
	if err := s.addAllActions(ctx, target, partNames, "", update); err != nil {
		return nil, err
	}
	return s.actions, nil
}

// ReloadState reloads persisted state from disk and discards ephemerals,
// e.g. after a global clean.
func (s *Sequencer) ReloadState() error {
	return s.sm.Reload()
}

// ResolvePackageDependencies expands packageNames to include transitive
// dependencies and pinned versions via the injected package repository,
// for callers that want a manifest before any part runs.
func (s *Sequencer) ResolvePackageDependencies(ctx context.Context, packageNames []string) ([]pkgrepo.NameVersion, error) {
	if s.packageRepo == nil {
		return nil, &craftpartserrors.InternalError{Reason: "no package repository configured"}
	}
	return s.packageRepo.FetchStagePackages(ctx, pkgrepo.FetchOptions{
		ApplicationName: s.projectInfo.ApplicationName,
		PackageNames:    packageNames,
		TargetArch:      s.projectInfo.TargetArch,
		Base:            s.projectInfo.Base,
		ListOnly:        true,
	})
}

func (s *Sequencer) addAllActions(ctx context.Context, target step.Step, partNames []string, reason string, update bool) error {
	selected, err := part.SelectByName(partNames, s.parts)
	if err != nil {
		return err
	}

	steps := append(target.PreviousSteps(), target)
	for _, current := range steps {
		for _, p := range selected {
			if err := s.addStepActions(ctx, current, target, p, partNames, reason, update); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *Sequencer) addStepActions(ctx context.Context, current, target step.Step, p *part.Part, partNames []string, reason string, update bool) error {
	if !s.sm.HasStepRun(p.Name, current) {
		return s.runStep(ctx, p, current, reason, false, update)
	}

	if len(partNames) > 0 && current == target && containsName(partNames, p.Name) {
		r := reason
		if r == "" {
			r = "requested step"
		}
		return s.rerunStep(ctx, p, current, r, update)
	}

	dirty, err := s.sm.DirtyReport(ctx, p.Name, current)
	if err != nil {
		return err
	}
	if !dirty.Empty() {
		return s.rerunStep(ctx, p, current, dirty.Summary(), update)
	}

	if !update {
		s.addAction(p.Name, current, Skip, "already ran")
		return nil
	}

	outdated, err := s.sm.OutdatedReport(ctx, p.Name, current)
	if err != nil {
		return err
	}
	if !outdated.Empty() {
		if current == step.Pull || current == step.Build {
			s.updateStep(p, current, outdated.Summary())
		} else if err := s.rerunStep(ctx, p, current, outdated.Summary(), update); err != nil {
			return err
		}
		s.sm.MarkStepUpdated(p.Name, current)
		return nil
	}

	s.addAction(p.Name, current, Skip, "already ran")
	return nil
}

// prepareStep ensures every transitive dependency of p has reached the
// prerequisite step for s before s itself runs.
func (s *Sequencer) prepareStep(ctx context.Context, p *part.Part, st step.Step, update bool) error {
	prerequisite, ok := step.DependencyPrerequisiteStep(st)
	if !ok {
		return nil
	}

	allDeps, err := part.PartDependencies(p.Name, s.parts, true)
	if err != nil {
		return err
	}

	names := make([]string, 0, len(allDeps))
	for n := range allDeps {
		names = append(names, n)
	}
	sort.Strings(names)

	for _, depName := range names {
		shouldRun, err := s.sm.ShouldStepRun(ctx, depName, prerequisite)
		if err != nil {
			return err
		}
		if !shouldRun {
			continue
		}
		reason := fmt.Sprintf("required to %s '%s'", st.Verb(), p.Name)
		if err := s.addAllActions(ctx, prerequisite, []string{depName}, reason, update); err != nil {
			return err
		}
	}
	return nil
}

func (s *Sequencer) runStep(ctx context.Context, p *part.Part, st step.Step, reason string, rerun, update bool) error {
	if err := s.prepareStep(ctx, p, st, update); err != nil {
		return err
	}

	actionType := Run
	if rerun {
		actionType = Rerun
	}
	s.addAction(p.Name, st, actionType, reason)

	newState, err := s.buildState(p, st)
	if err != nil {
		return err
	}
	s.sm.SetState(p.Name, st, newState)
	return nil
}

func (s *Sequencer) rerunStep(ctx context.Context, p *part.Part, st step.Step, reason string, update bool) error {
	s.sm.CleanPart(p.Name, st)
	return s.runStep(ctx, p, st, reason, true, update)
}

func (s *Sequencer) updateStep(p *part.Part, st step.Step, reason string) {
	s.addAction(p.Name, st, Update, reason)
	s.sm.UpdateStateTimestamp(p.Name, st)
}

func (s *Sequencer) addAction(partName string, st step.Step, t ActionType, reason string) {
	s.actions = append(s.actions, Action{PartName: partName, Step: st, Type: t, Reason: reason})
}

// buildState constructs the synthetic ephemeral state the planner writes
// eagerly for a RUN/RERUN action, using the part's *current* properties
// and project options. files/directories start empty; the executor
// replaces them with real content once it actually performs the step.
func (s *Sequencer) buildState(p *part.Part, st step.Step) (state.PartState, error) {
	props := p.Properties()
	opts := s.projectInfo.ProjectOptions

	switch st {
	case step.Pull:
		return state.NewPullState(props, opts), nil
	case step.Build:
		assets := map[string]any{}
		if s.manifestProvider != nil {
			for k, v := range s.manifestProvider.MachineManifest() {
				assets[k] = v
			}
		}
		return state.NewBuildState(props, opts, assets), nil
	case step.Stage:
		return state.NewStageState(props, opts, nil, nil), nil
	case step.Prime:
		return state.NewPrimeState(props, opts, nil, nil), nil
	default:
		return nil, errors.WithStack(&craftpartserrors.InternalError{Reason: fmt.Sprintf("invalid step %v", st)})
	}
}

func containsName(names []string, name string) bool {
	for _, n := range names {
		if n == name {
			return true
		}
	}
	return false
}
