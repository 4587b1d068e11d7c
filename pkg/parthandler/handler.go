// Package parthandler executes a single Sequencer action: it dispatches
// to the built-in step behavior (or a scriptlet override via pkg/runner),
// migrates files between directories, persists the resulting state, and
// enforces the staging collision rule.
package parthandler

import (
	"context"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	craftparts "github.com/mensylisir/craftkit/pkg/craftparts"
	craftpartserrors "github.com/mensylisir/craftkit/pkg/craftparts/errors"
	"github.com/mensylisir/craftkit/pkg/fileset"
	"github.com/mensylisir/craftkit/pkg/migrate"
	"github.com/mensylisir/craftkit/pkg/part"
	"github.com/mensylisir/craftkit/pkg/pkgcache"
	"github.com/mensylisir/craftkit/pkg/pkgrepo"
	"github.com/mensylisir/craftkit/pkg/plugin"
	"github.com/mensylisir/craftkit/pkg/runner"
	"github.com/mensylisir/craftkit/pkg/sequencer"
	"github.com/mensylisir/craftkit/pkg/source"
	"github.com/mensylisir/craftkit/pkg/state"
	"github.com/mensylisir/craftkit/pkg/statemanager"
	"github.com/mensylisir/craftkit/pkg/step"
)

// maxStagePackageFetchParallel bounds the internal fan-out when caching
// one Pull action's independently-fetched stage-package archives.
const maxStagePackageFetchParallel = 4

// Handler executes actions for a single part, persisting state after
// each successful step.
type Handler struct {
	Part             *part.Part
	Plugin           plugin.Plugin
	Source           source.Handler
	PackageRepo      pkgrepo.Repository
	Project          craftparts.ProjectInfo
	CacheRoot        string
	StateManager     *statemanager.Manager
	ManifestProvider craftparts.MachineManifestProvider
	ArchTriplet      string

	// StagedBy is shared across every part's Handler in one execution
	// run: relative stage path -> owning part name, consulted and
	// updated by Stage actions to enforce the collision rule. The caller
	// (the lifecycle facade) constructs one map and passes it to every
	// Handler.
	StagedBy map[string]string

	lastStageFiles, lastStageDirs []string
	lastPrimeFiles, lastPrimeDirs []string
}

// Execute dispatches a to the appropriate step handler and persists the
// resulting state, except for Skip actions which do nothing.
func (h *Handler) Execute(ctx context.Context, a sequencer.Action) error {
	if a.Type == sequencer.Skip {
		return nil
	}

	env := runner.Environment{Part: h.Part, Step: a.Step, Plugin: h.Plugin, ArchTriplet: h.ArchTriplet}
	r := &runner.Runner{
		Part:   h.Part,
		Step:   a.Step,
		Plugin: h.Plugin,
		Env:    env,
		Builtins: runner.Builtins{
			Pull:  h.builtinPull,
			Build: h.builtinBuild,
			Stage: h.builtinStage,
			Prime: h.builtinPrime,
		},
	}

	scriptletName := "override-" + a.Step.String()
	if body, ok := h.Part.Override(a.Step.String()); ok {
		if err := r.RunScriptlet(ctx, body, scriptletName, h.workDirFor(a.Step)); err != nil {
			return err
		}
	} else if err := r.RunBuiltin(ctx); err != nil {
		return err
	}

	return h.persist(a.Step)
}

func (h *Handler) workDirFor(s step.Step) string {
	if s == step.Build {
		return h.Part.Dirs.Build
	}
	return h.Part.Dirs.Source
}

func (h *Handler) builtinPull(ctx context.Context) error {
	if h.Source != nil {
		if err := h.Source.Pull(ctx); err != nil {
			return &craftpartserrors.PullError{PartName: h.Part.Name, Err: err}
		}
	}

	if len(h.Part.StagePackages) == 0 || h.PackageRepo == nil {
		return nil
	}
	if err := h.fetchStagePackages(ctx); err != nil {
		return &craftpartserrors.PullError{PartName: h.Part.Name, Err: err}
	}
	return nil
}

// fetchStagePackages downloads the part's declared stage-packages into
// its per-part stage-packages directory, runs each archive through the
// content-addressed cache so identical packages fetched by other parts
// or projects are never copied twice, then delegates the actual
// package-manager-aware unpack into the install directory to
// PackageRepo. Normalization runs last, once install holds every
// unpacked file.
func (h *Handler) fetchStagePackages(ctx context.Context) error {
	stagePackagesDir := h.Part.Dirs.StagePackages
	if err := os.MkdirAll(stagePackagesDir, 0o755); err != nil {
		return errors.Wrapf(err, "create stage-packages directory for %s", h.Part.Name)
	}

	if _, err := h.PackageRepo.FetchStagePackages(ctx, pkgrepo.FetchOptions{
		ApplicationName:  h.Project.ApplicationName,
		PackageNames:     h.Part.StagePackages,
		TargetArch:       h.Project.TargetArch,
		Base:             h.Project.Base,
		StagePackagesDir: stagePackagesDir,
	}); err != nil {
		return errors.Wrapf(err, "fetch stage-packages for %s", h.Part.Name)
	}

	entries, err := os.ReadDir(stagePackagesDir)
	if err != nil {
		return errors.Wrapf(err, "list stage-packages directory for %s", h.Part.Name)
	}
	fetched := make([]pkgcache.FetchedPackage, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		fetched = append(fetched, pkgcache.FetchedPackage{
			Name:        e.Name(),
			ArchivePath: filepath.Join(stagePackagesDir, e.Name()),
		})
	}

	cache := pkgcache.New(h.CacheRoot, "stage-packages")
	if _, err := pkgcache.StoreAll(ctx, cache, fetched, maxStagePackageFetchParallel); err != nil {
		return errors.Wrapf(err, "cache stage-packages for %s", h.Part.Name)
	}

	if err := h.PackageRepo.UnpackStagePackages(ctx, stagePackagesDir, h.Part.Dirs.Install); err != nil {
		return errors.Wrapf(err, "unpack stage-packages for %s", h.Part.Name)
	}

	if err := migrate.Normalize(h.Part.Dirs.Install); err != nil {
		return errors.Wrapf(err, "normalize install directory for %s", h.Part.Name)
	}
	return nil
}

func (h *Handler) builtinBuild(ctx context.Context) error {
	if len(h.Part.BuildPackages) > 0 && h.PackageRepo != nil {
		if _, err := h.PackageRepo.InstallBuildPackages(ctx, h.Part.BuildPackages); err != nil {
			return errors.Wrapf(err, "install build-packages for %s", h.Part.Name)
		}
	}

	env := runner.Environment{Part: h.Part, Step: step.Build, Plugin: h.Plugin, ArchTriplet: h.ArchTriplet}
	path, err := runner.WriteBuildScript(env, h.Plugin, h.Part.Dirs.Build)
	if err != nil {
		return err
	}
	return runner.RunBuildScript(ctx, h.Part.Name, path, h.Part.Dirs.Build)
}

func (h *Handler) builtinStage(ctx context.Context) error {
	stageFileset := fileset.New(h.Part.StageFileset)
	files, dirs, err := fileset.MigratableFilesets(stageFileset, h.Part.Dirs.Install)
	if err != nil {
		return err
	}

	if err := CheckCollisions(h.Part.Name, files, h.Part.Dirs.Install, h.Part.Dirs.Stage, h.StagedBy); err != nil {
		return err
	}

	if err := migrate.Files(files, dirs, h.Part.Dirs.Install, h.Part.Dirs.Stage, migrate.Options{}); err != nil {
		return err
	}

	for _, f := range files {
		h.StagedBy[f] = h.Part.Name
	}

	h.lastStageFiles, h.lastStageDirs = files, dirs
	return nil
}

func (h *Handler) builtinPrime(ctx context.Context) error {
	primeFileset := fileset.New(h.Part.PrimeFileset)
	if primeFileset.IsWildcardOrEmpty() {
		primeFileset.Combine(fileset.New(h.Part.StageFileset))
	}

	// Membership is decided by walking the part's own install directory
	// with the combined fileset, so a part's prime output is unaffected
	// by what other parts staged alongside it; the files themselves are
	// then migrated from the shared stage directory, since stage (not
	// install) is where other parts' overlays already landed.
	files, dirs, err := fileset.MigratableFilesets(primeFileset, h.Part.Dirs.Install)
	if err != nil {
		return err
	}

	if err := migrate.Files(files, dirs, h.Part.Dirs.Stage, h.Part.Dirs.Prime, migrate.Options{}); err != nil {
		return err
	}

	h.lastPrimeFiles, h.lastPrimeDirs = files, dirs
	return nil
}

func (h *Handler) persist(s step.Step) error {
	props := h.Part.Properties()
	opts := h.StateManager.ProjectOptions()

	var st state.PartState
	switch s {
	case step.Pull:
		st = state.NewPullState(props, opts)
	case step.Build:
		assets := map[string]any{}
		if h.ManifestProvider != nil {
			for k, v := range h.ManifestProvider.MachineManifest() {
				assets[k] = v
			}
		}
		st = state.NewBuildState(props, opts, assets)
	case step.Stage:
		st = state.NewStageState(props, opts, h.lastStageFiles, h.lastStageDirs)
	case step.Prime:
		st = state.NewPrimeState(props, opts, h.lastPrimeFiles, h.lastPrimeDirs)
	default:
		return &craftpartserrors.InternalError{Reason: "invalid step in persist"}
	}

	h.StateManager.SetState(h.Part.Name, s, st)
	return h.StateManager.Persist(h.Part.Name, s)
}
