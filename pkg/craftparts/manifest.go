// Package craftparts holds small cross-cutting collaborator interfaces
// shared by the sequencer and executor that don't belong to any single
// subsystem package.
package craftparts

// MachineManifestProvider reports host identification data the Sequencer
// attaches to a part's BuildState assets, so a persisted build state
// records what machine actually built it. An external collaborator: the
// core never inspects the host itself.
type MachineManifestProvider interface {
	MachineManifest() map[string]any
}

// ProjectInfo is the read-only project-wide context the Sequencer and
// State Manager consult: project options (e.g. target-arch) and identity
// fields used to key caches.
type ProjectInfo struct {
	ApplicationName string
	TargetArch      string
	Base            string
	ProjectOptions  map[string]any
}
