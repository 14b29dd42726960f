package suite

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"strings"

	"github.com/tailscale/hujson"
)

// ReservedFlagsKey is the flags key carrying the mock server parameters.
const ReservedFlagsKey = "suite"

// PortType is the direction of a port event.
type PortType string

const (
	PortCommand      PortType = "command"
	PortSubscription PortType = "subscription"
)

// Port is one expected port event, written in JSON as [type, name, value].
type Port struct {
	Type PortType
	Name string
	Arg  json.RawMessage
}

// MarshalJSON implements json.Marshaler.
func (p Port) MarshalJSON() ([]byte, error) {
	arg := p.Arg
	if len(arg) == 0 {
		arg = json.RawMessage("null")
	}
	return json.Marshal([]any{p.Type, p.Name, arg})
}

// UnmarshalJSON implements json.Unmarshaler.
func (p *Port) UnmarshalJSON(data []byte) error {
	var tuple []json.RawMessage
	if err := json.Unmarshal(data, &tuple); err != nil {
		return fmt.Errorf("port must be a [type, name, value] list: %w", err)
	}
	if len(tuple) != 3 {
		return fmt.Errorf("port must be a [type, name, value] list, got %d elements", len(tuple))
	}
	var kind PortType
	if err := json.Unmarshal(tuple[0], &kind); err != nil {
		return fmt.Errorf("port type: %w", err)
	}
	if kind != PortCommand && kind != PortSubscription {
		return fmt.Errorf("port type must be %q or %q, got %q", PortCommand, PortSubscription, kind)
	}
	var name string
	if err := json.Unmarshal(tuple[1], &name); err != nil {
		return fmt.Errorf("port name: %w", err)
	}
	*p = Port{Type: kind, Name: name, Arg: tuple[2]}
	return nil
}

// Request is the request half of a scripted network exchange.
type Request struct {
	Method string `json:"method"`
	URL    string `json:"url"`
}

// NetworkItem is one scripted request and the body served in response.
type NetworkItem struct {
	Request  Request `json:"request"`
	Response string  `json:"response"`
}

// Raw is a suite declaration as read from disk. It cannot be run until it has
// been turned into a Ready declaration with MakeReady.
type Raw struct {
	Ports          []Port                     `json:"ports,omitempty"`
	Flags          map[string]json.RawMessage `json:"flags,omitempty"`
	Network        []NetworkItem              `json:"network,omitempty"`
	Logs           *string                    `json:"logs,omitempty"`
	CompileFailsIf *CompileCondition          `json:"compile-fails-if,omitempty"`
	RunFailsIf     *RunCondition              `json:"run-fails-if,omitempty"`
	SkipRunIf      *RunCondition              `json:"skip-run-if,omitempty"`
}

// Validate checks the parts of the declaration the JSON shape cannot express.
func (r *Raw) Validate() error {
	for i, item := range r.Network {
		if !strings.EqualFold(item.Request.Method, "get") {
			return fmt.Errorf("network item %d: unsupported request method %q", i+1, item.Request.Method)
		}
		if item.Request.URL == "" {
			return fmt.Errorf("network item %d: request url is empty", i+1)
		}
	}
	return nil
}

// NeedsServer reports whether the suite scripts network traffic.
func (r *Raw) NeedsServer() bool {
	return len(r.Network) > 0
}

// ServerInfo describes a started mock server to the running program.
type ServerInfo struct {
	URL      string `json:"url"`
	Protocol string `json:"protocol"`
}

// ErrReservedFlag is returned by MakeReady when the suite's flags already use ReservedFlagsKey.
var ErrReservedFlag = errors.New("flags cannot have the key " + ReservedFlagsKey + " (it is reserved for suite params)")

// Ready is a declaration that can be handed to the run stage.
type Ready struct {
	decl Raw
}

// MakeReady folds the mock server parameters (if any) into the flags. The Raw
// declaration is not modified.
func MakeReady(raw *Raw, server *ServerInfo) (*Ready, error) {
	if _, ok := raw.Flags[ReservedFlagsKey]; ok {
		return nil, ErrReservedFlag
	}

	decl := *raw
	decl.Flags = maps.Clone(raw.Flags)
	if decl.Flags == nil {
		decl.Flags = map[string]json.RawMessage{}
	}
	if server != nil {
		encoded, err := json.Marshal(server)
		if err != nil {
			return nil, err
		}
		decl.Flags[ReservedFlagsKey] = encoded
	}
	return &Ready{decl: decl}, nil
}

// Network returns the scripted exchanges.
func (r *Ready) Network() []NetworkItem { return r.decl.Network }

// Flags returns the flags passed to the program.
func (r *Ready) Flags() map[string]json.RawMessage { return r.decl.Flags }

// CompileFailsIf returns the compile-fails-if tree, nil when undeclared.
func (r *Ready) CompileFailsIf() *CompileCondition { return r.decl.CompileFailsIf }

// RunFailsIf returns the run-fails-if tree, nil when undeclared.
func (r *Ready) RunFailsIf() *RunCondition { return r.decl.RunFailsIf }

// SkipRunIf returns the skip-run-if tree, nil when undeclared.
func (r *Ready) SkipRunIf() *RunCondition { return r.decl.SkipRunIf }

// MarshalJSON writes the declaration in the form the harness script reads.
// Flags are always present.
func (r *Ready) MarshalJSON() ([]byte, error) {
	type readyJSON struct {
		Raw
		Flags map[string]json.RawMessage `json:"flags"`
	}
	return json.Marshal(readyJSON{Raw: r.decl, Flags: r.decl.Flags})
}

// DeclarationErrorKind classifies DeclarationError.
type DeclarationErrorKind int

const (
	CannotRead DeclarationErrorKind = iota
	ParseError
)

// DeclarationError is returned by LoadDeclaration.
type DeclarationError struct {
	Kind DeclarationErrorKind
	Path string
	Err  error
}

func (e *DeclarationError) Error() string {
	switch e.Kind {
	case CannotRead:
		return fmt.Sprintf("cannot read %s: %v", e.Path, e.Err)
	default:
		return fmt.Sprintf("cannot parse %s: %v", e.Path, e.Err)
	}
}

func (e *DeclarationError) Unwrap() error {
	return e.Err
}

// LoadDeclaration reads and validates the declaration of the suite in dir.
// Comments and trailing commas are allowed, unknown keys are not.
func LoadDeclaration(dir string) (*Raw, error) {
	path := filepath.Join(dir, DeclarationFile)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &DeclarationError{Kind: CannotRead, Path: path, Err: err}
	}
	raw, err := ParseDeclaration(data)
	if err != nil {
		return nil, &DeclarationError{Kind: ParseError, Path: path, Err: err}
	}
	return raw, nil
}

// ParseDeclaration decodes a declaration document.
func ParseDeclaration(data []byte) (*Raw, error) {
	// hujson rejects a line comment that is not newline terminated.
	standard, err := hujson.Standardize(append(bytes.Clone(data), '\n'))
	if err != nil {
		return nil, err
	}

	var raw Raw
	decoder := json.NewDecoder(bytes.NewReader(standard))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&raw); err != nil {
		return nil, err
	}
	if decoder.More() {
		return nil, errors.New("unexpected data after the declaration")
	}
	if err := raw.Validate(); err != nil {
		return nil, err
	}
	return &raw, nil
}
