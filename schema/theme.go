package schema

import "strings"

// DefaultTheme is the default frontend theme name.
const DefaultTheme ThemeName = "default"

var themeNames = []ThemeName{
	"default",
	"orca",
	"mono",
}

// AvailableThemes returns the supported theme names.
func AvailableThemes() []ThemeName {
	out := make([]ThemeName, len(themeNames))
	copy(out, themeNames)
	return out
}

// NormalizeThemeName returns a canonical theme name if supported.
func NormalizeThemeName(name string) (ThemeName, bool) {
	normalized := strings.ToLower(strings.TrimSpace(name))
	normalized = strings.ReplaceAll(normalized, "_", "-")
	switch normalized {
	case "default", "vibrant":
		return "default", true
	case "orca", "muted":
		return "orca", true
	case "mono", "monochrome", "none":
		return "mono", true
	default:
		return "", false
	}
}
