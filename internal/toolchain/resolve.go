package toolchain

import (
	"bytes"
	"context"
	"fmt"

	"elmtorture/internal/process"
	"elmtorture/internal/suite"
	"elmtorture/pkg/logging"
)

const (
	// variantProbeFlag is only understood by compilers that ship an alternative standard library.
	variantProbeFlag = "--stdlib-variant"
	anotherElmMarker = "another-elm"
)

// Handle is a resolved compiler. It is immutable and shared by every matrix cell.
type Handle struct {
	// Name is the compiler as the user spelled it.
	Name string
	// Path is the absolute path of the executable.
	Path string
	// Variant is the standard library the compiler ships with.
	Variant suite.StdlibVariant
}

func (h *Handle) String() string {
	return h.Name
}

// ResolveErrorKind classifies ResolveError.
type ResolveErrorKind int

const (
	NotFound ResolveErrorKind = iota
	ProbeIO
	UnexpectedOutput
)

// ResolveError is returned by Resolve.
type ResolveError struct {
	Kind   ResolveErrorKind
	Name   string
	Err    error
	Stdout []byte
}

func (e *ResolveError) Error() string {
	switch e.Kind {
	case NotFound:
		return fmt.Sprintf("could not find compiler %q: %v", e.Name, e.Err)
	case ProbeIO:
		return fmt.Sprintf("could not run compiler %q to detect its stdlib variant: %v", e.Name, e.Err)
	default:
		return fmt.Sprintf("unexpected stdlib variant reported by compiler %q: %q", e.Name, e.Stdout)
	}
}

func (e *ResolveError) Unwrap() error {
	return e.Err
}

// Resolve locates the named compiler on PATH and detects its stdlib variant.
//
// The probe flag is only supported by the alternative toolchain, so a failing
// probe means the official compiler. A succeeding probe must print the
// alternative marker.
func Resolve(ctx context.Context, name string) (*Handle, error) {
	path, err := process.LookPath(name)
	if err != nil {
		return nil, &ResolveError{Kind: NotFound, Name: name, Err: err}
	}

	probe := process.Command{
		Path: path,
		Args: []string{variantProbeFlag},
		Env:  process.Inherit(process.ElmHomeEnv),
	}
	logging.Debug("Toolchain", "Invoking compiler to detect stdlib variant: %s", probe)

	out, err := process.Run(ctx, probe)
	if err != nil {
		return nil, &ResolveError{Kind: ProbeIO, Name: name, Err: err}
	}

	variant := suite.VariantOfficial
	if out.Success() {
		if !bytes.HasPrefix(bytes.TrimSpace(out.Stdout), []byte(anotherElmMarker)) {
			return nil, &ResolveError{Kind: UnexpectedOutput, Name: name, Stdout: out.Stdout}
		}
		variant = suite.VariantAnother
	}

	logging.Info("Toolchain", "Resolved compiler %s to %s (stdlib variant %s)", name, path, variant)
	return &Handle{Name: name, Path: path, Variant: variant}, nil
}

// ResolveAll resolves every name in order and stops at the first failure.
func ResolveAll(ctx context.Context, names []string) ([]*Handle, error) {
	handles := make([]*Handle, 0, len(names))
	for _, name := range names {
		h, err := Resolve(ctx, name)
		if err != nil {
			return nil, err
		}
		handles = append(handles, h)
	}
	return handles, nil
}
