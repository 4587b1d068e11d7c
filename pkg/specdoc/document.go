// Package specdoc loads a parts document: the YAML file naming every part,
// its plugin, source, filesets and dependencies, in the shape the original
// "parts: {name: {...}}" top-level mapping used.
package specdoc

import (
	"os"
	"path/filepath"
	"sort"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/mensylisir/craftkit/pkg/part"
)

// rawPart mirrors the YAML shape of one entry under "parts:". Field names
// use yaml tags matching the document's kebab-case keys.
type rawPart struct {
	Plugin           string            `yaml:"plugin"`
	PluginProperties map[string]any    `yaml:",inline"`
	Source           string            `yaml:"source"`
	SourceType       string            `yaml:"source-type"`
	SourceChecksum   string            `yaml:"source-checksum"`
	SourceBranch     string            `yaml:"source-branch"`
	SourceTag        string            `yaml:"source-tag"`
	SourceCommit     string            `yaml:"source-commit"`
	SourceDepth      int               `yaml:"source-depth"`
	SourceSubmodules []string          `yaml:"source-submodules"`
	After            []string          `yaml:"after"`
	Stage            []string          `yaml:"stage"`
	Prime            []string          `yaml:"prime"`
	BuildPackages    []string          `yaml:"build-packages"`
	BuildSnaps       []string          `yaml:"build-snaps"`
	StagePackages    []string          `yaml:"stage-packages"`
	BuildAttributes  []string          `yaml:"build-attributes"`
	BuildEnvironment []map[string]string `yaml:"build-environment"`
	Organize         map[string]string `yaml:"organize"`
	OverridePull     string            `yaml:"override-pull"`
	OverrideBuild    string            `yaml:"override-build"`
	OverrideStage    string            `yaml:"override-stage"`
	OverridePrime    string            `yaml:"override-prime"`
}

type rawDocument struct {
	Parts map[string]rawPart `yaml:"parts"`
}

// knownKeys lists the YAML keys consumed explicitly above, so the
// remaining inline map holds only plugin-specific properties.
var knownKeys = map[string]bool{
	"plugin": true, "source": true, "source-type": true, "source-checksum": true,
	"source-branch": true, "source-tag": true, "source-commit": true, "source-depth": true,
	"source-submodules": true, "after": true, "stage": true, "prime": true,
	"build-packages": true, "build-snaps": true, "stage-packages": true,
	"build-attributes": true, "build-environment": true, "organize": true,
	"override-pull": true, "override-build": true, "override-stage": true, "override-prime": true,
}

// Load parses a parts document from path and resolves each part's
// directory layout under workDir, matching the <workDir>/parts/<name>/{src,
// build,install} layout and the shared <workDir>/stage, <workDir>/prime
// directories.
func Load(path, workDir string) ([]*part.Part, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read parts document %s", path)
	}
	return Parse(data, workDir)
}

// Parse parses parts-document YAML already in memory.
func Parse(data []byte, workDir string) ([]*part.Part, error) {
	var doc rawDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, errors.Wrap(err, "parse parts document")
	}

	names := make([]string, 0, len(doc.Parts))
	for name := range doc.Parts {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]*part.Part, 0, len(names))
	for _, name := range names {
		rp := doc.Parts[name]
		p, err := toPart(name, rp, workDir)
		if err != nil {
			return nil, errors.Wrapf(err, "part %q", name)
		}
		parts = append(parts, p)
	}
	return parts, nil
}

func toPart(name string, rp rawPart, workDir string) (*part.Part, error) {
	props := map[string]any{}
	for k, v := range rp.PluginProperties {
		if !knownKeys[k] {
			props[k] = v
		}
	}

	var env []part.KV
	for _, entry := range rp.BuildEnvironment {
		keys := make([]string, 0, len(entry))
		for k := range entry {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			env = append(env, part.KV{Key: k, Value: entry[k]})
		}
	}

	overrides := map[string]string{}
	if rp.OverridePull != "" {
		overrides["pull"] = rp.OverridePull
	}
	if rp.OverrideBuild != "" {
		overrides["build"] = rp.OverrideBuild
	}
	if rp.OverrideStage != "" {
		overrides["stage"] = rp.OverrideStage
	}
	if rp.OverridePrime != "" {
		overrides["prime"] = rp.OverridePrime
	}

	partsDir := filepath.Join(workDir, "parts", name)

	return &part.Part{
		Name:             name,
		Plugin:           rp.Plugin,
		PluginProperties: props,
		Source: part.Source{
			URL:        rp.Source,
			Type:       rp.SourceType,
			Checksum:   rp.SourceChecksum,
			Branch:     rp.SourceBranch,
			Tag:        rp.SourceTag,
			Commit:     rp.SourceCommit,
			Depth:      rp.SourceDepth,
			Submodules: rp.SourceSubmodules,
		},
		After:            rp.After,
		StageFileset:     rp.Stage,
		PrimeFileset:     rp.Prime,
		BuildPackages:    rp.BuildPackages,
		BuildSnaps:       rp.BuildSnaps,
		StagePackages:    rp.StagePackages,
		BuildAttributes:  rp.BuildAttributes,
		BuildEnvironment: env,
		Organize:         rp.Organize,
		Overrides:        overrides,
		Dirs: part.Directories{
			Source:        filepath.Join(partsDir, "src"),
			Build:         filepath.Join(partsDir, "build"),
			Install:       filepath.Join(partsDir, "install"),
			StagePackages: filepath.Join(partsDir, "stage_packages"),
			Stage:         filepath.Join(workDir, "stage"),
			Prime:         filepath.Join(workDir, "prime"),
		},
	}, nil
}
