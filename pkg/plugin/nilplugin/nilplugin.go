// Package nilplugin registers the "nil" plugin: a part with no build step
// of its own, used for metadata-only parts or parts entirely driven by
// scriptlet overrides.
package nilplugin

import "github.com/mensylisir/craftkit/pkg/plugin"

func init() {
	plugin.Register("nil", func(properties map[string]any) (plugin.Plugin, error) {
		return &Plugin{}, nil
	})
}

// Plugin contributes no packages, no environment, and no build commands.
type Plugin struct{}

func (p *Plugin) UnmarshalProperties(raw map[string]any) (any, error) { return nil, nil }
func (p *Plugin) Schema() (map[string]any, error)                     { return map[string]any{}, nil }
func (p *Plugin) BuildSnaps() map[string]bool                         { return nil }
func (p *Plugin) BuildPackages() map[string]bool                      { return nil }
func (p *Plugin) BuildEnvironment() map[string]string                 { return nil }
func (p *Plugin) BuildCommands() []string                             { return nil }
