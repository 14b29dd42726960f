package suite

import (
	"fmt"
	"runtime"

	"elmtorture/internal/condition"
	"elmtorture/internal/config"
)

// StdlibVariant is the flavour of standard library a compiler ships with.
type StdlibVariant string

const (
	VariantOfficial StdlibVariant = "official"
	VariantAnother  StdlibVariant = "another"
)

// UnmarshalText implements encoding.TextUnmarshaler.
func (v *StdlibVariant) UnmarshalText(text []byte) error {
	switch StdlibVariant(text) {
	case VariantOfficial, VariantAnother:
		*v = StdlibVariant(text)
		return nil
	default:
		return fmt.Errorf("unknown stdlib variant %q", string(text))
	}
}

// Platform is the operating system a run happens on.
type Platform string

const (
	PlatformLinux   Platform = "linux"
	PlatformMacOS   Platform = "macos"
	PlatformWindows Platform = "windows"
)

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *Platform) UnmarshalText(text []byte) error {
	switch Platform(text) {
	case PlatformLinux, PlatformMacOS, PlatformWindows:
		*p = Platform(text)
		return nil
	default:
		return fmt.Errorf("unknown platform %q", string(text))
	}
}

// CurrentPlatform maps runtime.GOOS onto a Platform.
func CurrentPlatform() (Platform, error) {
	return platformFor(runtime.GOOS)
}

func platformFor(goos string) (Platform, error) {
	switch goos {
	case "linux":
		return PlatformLinux, nil
	case "darwin":
		return PlatformMacOS, nil
	case "windows":
		return PlatformWindows, nil
	default:
		return "", fmt.Errorf("unsupported platform %s", goos)
	}
}

// CompileFacts are the facts compile conditions are evaluated against.
type CompileFacts struct {
	OptLevel config.OptimizationLevel
	Platform Platform
}

// RunFacts are the facts run conditions are evaluated against.
type RunFacts struct {
	OptLevel      config.OptimizationLevel
	StdlibVariant StdlibVariant
	Platform      Platform
}

// CompileFailsIf is the leaf of compile-fails-if conditions.
type CompileFailsIf struct {
	OptLevel condition.AnyOneOf[config.OptimizationLevel] `json:"opt-level"`
	Platform condition.AnyOneOf[Platform]                 `json:"platform"`
}

// IsMet implements condition.Leaf.
func (c CompileFailsIf) IsMet(f CompileFacts) bool {
	return c.OptLevel.Matches(f.OptLevel) && c.Platform.Matches(f.Platform)
}

// RunFailsIf is the leaf of run-fails-if and skip-run-if conditions.
type RunFailsIf struct {
	StdlibVariant condition.AnyOneOf[StdlibVariant]            `json:"stdlib-variant"`
	OptLevel      condition.AnyOneOf[config.OptimizationLevel] `json:"opt-level"`
	Platform      condition.AnyOneOf[Platform]                 `json:"platform"`
}

// IsMet implements condition.Leaf.
func (r RunFailsIf) IsMet(f RunFacts) bool {
	return r.StdlibVariant.Matches(f.StdlibVariant) &&
		r.OptLevel.Matches(f.OptLevel) &&
		r.Platform.Matches(f.Platform)
}

// CompileCondition is a compile-fails-if tree.
type CompileCondition = condition.Collection[CompileFacts, CompileFailsIf]

// RunCondition is a run-fails-if or skip-run-if tree.
type RunCondition = condition.Collection[RunFacts, RunFailsIf]
