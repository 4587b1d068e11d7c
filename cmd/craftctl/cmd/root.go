// Package cmd implements the craftctl command tree: pull/build/stage/
// prime/clean/version over a parts document.
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mensylisir/craftkit/pkg/craftlog"
	craftparts "github.com/mensylisir/craftkit/pkg/craftparts"
	"github.com/mensylisir/craftkit/pkg/lifecycle"
	"github.com/mensylisir/craftkit/pkg/part"
	"github.com/mensylisir/craftkit/pkg/plugin"
	"github.com/mensylisir/craftkit/pkg/source"
	"github.com/mensylisir/craftkit/pkg/specdoc"

	_ "github.com/mensylisir/craftkit/pkg/plugin/nilplugin"
	_ "github.com/mensylisir/craftkit/pkg/source/localsource"
)

var (
	verboseFlag bool
	fileFlag    string
	updateFlag  bool
)

var rootCmd = &cobra.Command{
	Use:   "craftctl",
	Short: "craftctl drives a parts document through the pull/build/stage/prime lifecycle.",
	Long: `craftctl is a command-line front-end over the parts lifecycle engine:
it loads a parts document, plans the actions needed to reach a target
step, and executes them.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		opts := craftlog.DefaultOptions()
		if verboseFlag {
			opts.ConsoleLevel = craftlog.DebugLevel
		}
		craftlog.Init(opts)
		return nil
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&fileFlag, "file", "f", "craft-parts.yaml", "Path to the parts document")
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().BoolVar(&updateFlag, "update", false, "Refresh outdated steps (source update checks) before planning")
}

// buildManager loads the parts document at fileFlag and wires a
// lifecycle.Manager over it, resolving each part's plugin by its
// declared plugin name (or its own part name, when no plugin key is
// given) and its source by source-type.
func buildManager(workDir string) (*lifecycle.Manager, []*part.Part, error) {
	parts, err := specdoc.Load(fileFlag, workDir)
	if err != nil {
		return nil, nil, err
	}

	m, err := lifecycle.NewManager(lifecycle.Options{
		WorkDir: workDir,
		Parts:   parts,
		Project: craftparts.ProjectInfo{
			ApplicationName: "craftctl",
			ProjectOptions:  map[string]any{},
		},
		SourceFactory: func(p *part.Part) (source.Handler, error) {
			if p.Source.URL == "" {
				return nil, nil
			}
			sourceType := p.Source.Type
			if sourceType == "" {
				sourceType = "local"
			}
			factory, ok := source.Lookup(sourceType)
			if !ok {
				return nil, fmt.Errorf("craftctl: no source handler registered for type %q", sourceType)
			}
			return factory(sourceType, p.Source.URL, p.Source.Checksum, p.Dirs.Source)
		},
		PluginFactory: func(p *part.Part) (plugin.Plugin, error) {
			name := p.Plugin
			if name == "" {
				name = p.Name
			}
			factory, ok := plugin.Lookup(name)
			if !ok {
				return nil, fmt.Errorf("craftctl: no plugin registered for %q", name)
			}
			return factory(p.PluginProperties)
		},
	})
	if err != nil {
		return nil, nil, err
	}
	return m, parts, nil
}
