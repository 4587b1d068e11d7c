// Package runner executes a part's step: the built-in handler when no
// override scriptlet is declared, or the user's scriptlet with a
// FIFO-based control channel back into the built-in handlers.
package runner

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/mensylisir/craftkit/pkg/part"
	"github.com/mensylisir/craftkit/pkg/plugin"
	"github.com/mensylisir/craftkit/pkg/step"
)

// Environment is the PATH/CPPFLAGS/CFLAGS/CXXFLAGS/LDFLAGS/PKG_CONFIG_PATH
// augmentation, plugin environment (build step only) and user
// build-environment entries every build and scriptlet sees.
type Environment struct {
	Part        *part.Part
	Step        step.Step
	Plugin      plugin.Plugin
	ArchTriplet string
}

// Script renders the environment as a sequence of shell "export" lines,
// preceded by a shebang and "set -e", for embedding at the top of a
// generated build script or scriptlet.
func (e Environment) Script() string {
	var b strings.Builder
	fmt.Fprintln(&b, "#!/bin/sh")
	fmt.Fprintln(&b, "set -e")
	fmt.Fprintln(&b, "# Environment")

	fmt.Fprintln(&b, "## Part Environment")
	writeSorted(&b, e.partEnvironment())

	fmt.Fprintln(&b, "## Plugin Environment")
	if e.Step == step.Build && e.Plugin != nil {
		writeSorted(&b, e.Plugin.BuildEnvironment())
	}

	fmt.Fprintln(&b, "## User Environment")
	for _, kv := range e.Part.BuildEnvironment {
		fmt.Fprintf(&b, "export %s=%q\n", kv.Key, kv.Value)
	}

	return b.String()
}

func writeSorted(b *strings.Builder, env map[string]string) {
	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(b, "export %s=%q\n", k, env[k])
	}
}

// partEnvironment computes PATH/CPPFLAGS/CFLAGS/CXXFLAGS/LDFLAGS/
// PKG_CONFIG_PATH augmentation from the part's install and stage
// directories, mirroring the built-in part environment every step sees
// regardless of plugin.
func (e Environment) partEnvironment() map[string]string {
	env := map[string]string{}
	roots := []string{e.Part.Dirs.Install, e.Part.Dirs.Stage}

	var binPaths []string
	for _, root := range roots {
		binPaths = append(binPaths, existingSubdirs(root, "usr/bin", "usr/sbin", "bin", "sbin")...)
	}
	if len(binPaths) > 0 {
		env["PATH"] = strings.Join(append(binPaths, "$PATH"), ":")
	}

	var includePaths []string
	for _, root := range roots {
		includePaths = append(includePaths, existingSubdirs(root, archJoin("usr/include", e.ArchTriplet), "usr/include")...)
	}
	if len(includePaths) > 0 {
		flags := combine(includePaths, "-isystem ", " ")
		env["CPPFLAGS"] = flags
		env["CFLAGS"] = flags
		env["CXXFLAGS"] = flags
	}

	var libPaths []string
	for _, root := range roots {
		libPaths = append(libPaths, existingSubdirs(root, archJoin("usr/lib", e.ArchTriplet), "usr/lib", "lib")...)
	}
	if len(libPaths) > 0 {
		env["LDFLAGS"] = combine(libPaths, "-L", " ")
	}

	var pkgConfigPaths []string
	for _, root := range roots {
		pkgConfigPaths = append(pkgConfigPaths, existingSubdirs(root, archJoin("usr/lib", e.ArchTriplet)+"/pkgconfig", "usr/lib/pkgconfig", "usr/share/pkgconfig")...)
	}
	if len(pkgConfigPaths) > 0 {
		env["PKG_CONFIG_PATH"] = strings.Join(pkgConfigPaths, ":")
	}

	return env
}

func archJoin(base, triplet string) string {
	if triplet == "" {
		return base
	}
	parts := strings.SplitN(base, "/", 2)
	if len(parts) != 2 {
		return base
	}
	return filepath.Join(parts[0], parts[1], triplet)
}

func existingSubdirs(root string, subdirs ...string) []string {
	if root == "" {
		return nil
	}
	var out []string
	seen := map[string]bool{}
	for _, sub := range subdirs {
		full := filepath.Join(root, sub)
		if seen[full] {
			continue
		}
		seen[full] = true
		if info, err := os.Stat(full); err == nil && info.IsDir() {
			out = append(out, full)
		}
	}
	return out
}

func combine(paths []string, prepend, sep string) string {
	parts := make([]string, len(paths))
	for i, p := range paths {
		parts[i] = prepend + p
	}
	return strings.Join(parts, sep)
}
