package deps

import "strings"

// chromeNames are the executables Chrome and Chromium install under on Linux
// and macOS (via PATH shims).
var chromeNames = []string{
	"google-chrome",
	"google-chrome-stable",
	"chromium",
	"chromium-browser",
}

// ChromeRequirement describes the browser the studio driver launches. A
// configured path is tried first, then the usual binary names.
func ChromeRequirement(configured string) Requirement {
	configured = strings.TrimSpace(configured)
	req := Requirement{
		Name:        "Chrome",
		Command:     configured,
		Description: "Required for studio automation",
	}
	for _, name := range chromeNames {
		if name != configured {
			req.Alternatives = append(req.Alternatives, name)
		}
	}
	return req
}

// ResolveChrome returns the browser executable path, or the configured value
// unchanged when nothing is found so the driver reports the failure.
func ResolveChrome(configured string) string {
	status := check(ChromeRequirement(configured))
	if status.Available {
		return status.Path
	}
	return strings.TrimSpace(configured)
}
