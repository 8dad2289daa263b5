package deps

import (
	"fmt"
	"os/exec"
	"strings"
)

// Requirement defines an external binary studiocast relies on. Alternatives
// are tried in order when Command is not found.
type Requirement struct {
	Name         string
	Command      string
	Alternatives []string
	Description  string
	Optional     bool
}

// Status reports the availability of a dependency.
type Status struct {
	Name        string
	Command     string
	Path        string
	Description string
	Optional    bool
	Available   bool
	Detail      string
}

// CheckBinaries evaluates the provided requirements and reports availability.
func CheckBinaries(requirements []Requirement) []Status {
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		results = append(results, check(req))
	}
	return results
}

func check(req Requirement) Status {
	cmd := strings.TrimSpace(req.Command)
	status := Status{
		Name:        req.Name,
		Command:     cmd,
		Description: strings.TrimSpace(req.Description),
		Optional:    req.Optional,
	}
	candidates := make([]string, 0, 1+len(req.Alternatives))
	if cmd != "" {
		candidates = append(candidates, cmd)
	}
	for _, alt := range req.Alternatives {
		if alt = strings.TrimSpace(alt); alt != "" {
			candidates = append(candidates, alt)
		}
	}
	if len(candidates) == 0 {
		status.Detail = "command not configured"
		return status
	}
	for _, candidate := range candidates {
		if path, err := exec.LookPath(candidate); err == nil {
			status.Command = candidate
			status.Path = path
			status.Available = true
			return status
		}
	}
	if len(candidates) == 1 {
		status.Detail = fmt.Sprintf("binary %q not found", candidates[0])
	} else {
		status.Detail = fmt.Sprintf("none of %s found", strings.Join(candidates, ", "))
	}
	return status
}
