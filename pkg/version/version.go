// Package version provides version metadata for kiln and the model API
// version plugins declare compatibility against.
package version

import (
	"fmt"
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"
)

// These variables are typically injected at build time using -ldflags
var (
	// Version holds the current version of kiln.
	Version = "dev"
	// Commit holds the current version commit of kiln.
	Commit = "none"
	// BuildDate holds the build date of kiln.
	BuildDate = "unknown"
	// StartDate holds the start date of kiln.
	StartDate = time.Now()
)

// APIVersion is the version of the model API: type tokens, rule
// declarations and the catalog. Plugin manifests constrain against it.
const APIVersion = "1.0.0"

// Struct returns version information in a structured format.
type Struct struct {
	Version    string `json:"version" yaml:"version"`
	APIVersion string `json:"apiVersion" yaml:"apiVersion"`
	Commit     string `json:"commit" yaml:"commit"`
	BuildDate  string `json:"buildDate" yaml:"buildDate"`
}

// Info returns a formatted version string.
func Info() string {
	return fmt.Sprintf("Kiln %s (model API %s, commit: %s, date: %s)", Version, APIVersion, Commit, BuildDate)
}

// Get returns version information as a Struct.
func Get() Struct {
	return Struct{
		Version:    Version,
		APIVersion: APIVersion,
		Commit:     Commit,
		BuildDate:  BuildDate,
	}
}

// CheckCompatible reports whether the model API satisfies constraint, a
// semver range such as ">= 1.0.0, < 2.0.0". An empty constraint always
// matches.
func CheckCompatible(constraint string) error {
	return checkCompatible(APIVersion, constraint)
}

func checkCompatible(apiVersion, constraint string) error {
	if strings.TrimSpace(constraint) == "" {
		return nil
	}
	c, err := semver.NewConstraint(constraint)
	if err != nil {
		return fmt.Errorf("invalid version constraint %q: %w", constraint, err)
	}
	v, err := semver.NewVersion(apiVersion)
	if err != nil {
		return fmt.Errorf("invalid model API version %q: %w", apiVersion, err)
	}
	if ok, reasons := c.Validate(v); !ok {
		msgs := make([]string, len(reasons))
		for i, r := range reasons {
			msgs[i] = r.Error()
		}
		return fmt.Errorf("model API %s does not satisfy %q: %s", apiVersion, constraint, strings.Join(msgs, "; "))
	}
	return nil
}
