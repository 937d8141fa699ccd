// Package version reports the snowhook build identity.
package version

import (
	"runtime/debug"
	"strings"
	"time"

	"charm.land/lipgloss/v2"
	"github.com/yaklabco/snowhook/pkg/ui"
)

// Version, Commit and BuildDate can be set at build time, e.g.
//
//	-ldflags "-X github.com/yaklabco/snowhook/cmd/snowhook/version.Version=v0.1.0"
//
//nolint:gochecknoglobals // Populated by goreleaser ldflags.
var (
	Version   = "dev"
	Commit    = ""
	BuildDate = ""
)

// Info is the resolved build identity.
type Info struct {
	Version string
	Commit  string
	Built   time.Time
}

// Resolve combines the ldflags values with Go build info. Values injected
// through ldflags win; "(devel)" module versions are ignored.
func Resolve() Info {
	info := Info{
		Version: strings.TrimSpace(Version),
		Commit:  strings.TrimSpace(Commit),
	}
	if t, ok := parseTime(BuildDate); ok {
		info.Built = t
	}

	bi, ok := debug.ReadBuildInfo()
	if !ok || bi == nil {
		return info.withFallbacks("")
	}

	var rev, dirty string
	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			rev = s.Value
		case "vcs.modified":
			if s.Value == "true" {
				dirty = "-dirty"
			}
		case "vcs.time":
			if t, ok := parseTime(s.Value); ok && info.Built.IsZero() {
				info.Built = t
			}
		}
	}

	if info.Version == "" || info.Version == "dev" {
		if mv := strings.TrimSpace(bi.Main.Version); mv != "" && mv != "(devel)" {
			info.Version = mv
		} else if rev != "" {
			info.Version = rev + dirty
		}
	}
	return info.withFallbacks(rev)
}

func (i Info) withFallbacks(rev string) Info {
	if i.Version == "" {
		i.Version = "dev"
	}
	if i.Commit == "" {
		i.Commit = rev
	}
	return i
}

func parseTime(v string) (time.Time, bool) {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{time.RFC3339, time.RFC3339Nano} {
		if t, err := time.Parse(layout, v); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// parts returns the version, commit and build time fields that are known.
func (i Info) parts() []string {
	parts := []string{i.Version}
	if i.Commit != "" && i.Commit != i.Version && !strings.HasPrefix(i.Version, i.Commit) {
		parts = append(parts, i.Commit)
	}
	if !i.Built.IsZero() {
		parts = append(parts, i.Built.In(time.Local).Format(time.RFC3339))
	}
	return parts
}

// String joins the known fields with "-".
func (i Info) String() string {
	return strings.Join(i.parts(), "-")
}

// Colorized renders the version line in the fang help palette.
func (i Info) Colorized() string {
	cs := ui.GetFangScheme()
	styles := []lipgloss.Style{
		lipgloss.NewStyle().Foreground(cs.QuotedString),
		lipgloss.NewStyle().Foreground(cs.Program),
		lipgloss.NewStyle().Foreground(cs.Flag),
	}
	sep := lipgloss.NewStyle().Foreground(cs.Base).Render("-")

	parts := i.parts()
	for idx := range parts {
		parts[idx] = styles[min(idx, len(styles)-1)].Render(parts[idx])
	}
	return strings.Join(parts, sep)
}
