package account

import (
	"encoding/json"
	"fmt"
	"strings"

	"weft/internal/version"
)

// EndpointKind selects which transactor address the account service returns.
type EndpointKind string

const (
	EndpointInternal EndpointKind = "internal"
	EndpointExternal EndpointKind = "external"
)

// ParseEndpointKind validates a user supplied endpoint kind.
func ParseEndpointKind(value string) (EndpointKind, error) {
	switch kind := EndpointKind(strings.ToLower(strings.TrimSpace(value))); kind {
	case EndpointInternal, EndpointExternal:
		return kind, nil
	case "":
		return EndpointInternal, nil
	default:
		return "", fmt.Errorf("unknown endpoint kind %q (expected internal or external)", value)
	}
}

// Operation filters which pending work a worker accepts.
type Operation string

const (
	OperationCreate  Operation = "create"
	OperationUpgrade Operation = "upgrade"
	OperationAll     Operation = "all"
)

// ParseOperation validates a user supplied operation filter.
func ParseOperation(value string) (Operation, error) {
	switch op := Operation(strings.ToLower(strings.TrimSpace(value))); op {
	case OperationCreate, OperationUpgrade, OperationAll:
		return op, nil
	case "":
		return OperationAll, nil
	default:
		return "", fmt.Errorf("unknown operation %q (expected create, upgrade, or all)", value)
	}
}

// Endpoint holds the transactor addresses assigned to a workspace.
type Endpoint struct {
	Internal string `json:"internalUrl,omitempty"`
	External string `json:"externalUrl,omitempty"`
	Region   string `json:"region,omitempty"`
}

// WorkspaceInfo describes a workspace as owned by the account service. Only
// the fields below are interpreted; the full payload is kept in Raw.
type WorkspaceInfo struct {
	Workspace     string          `json:"workspace,omitempty"`
	WorkspaceID   string          `json:"workspaceId,omitempty"`
	WorkspaceName string          `json:"workspaceName,omitempty"`
	Endpoint      Endpoint        `json:"endpoint"`
	Region        string          `json:"region,omitempty"`
	Mode          string          `json:"mode,omitempty"`
	Progress      float64         `json:"progress,omitempty"`
	Version       *version.Vector `json:"version,omitempty"`

	Raw json.RawMessage `json:"-"`
}

// UnmarshalJSON decodes the known fields and retains the original payload.
func (w *WorkspaceInfo) UnmarshalJSON(data []byte) error {
	type plain WorkspaceInfo
	var decoded plain
	if err := json.Unmarshal(data, &decoded); err != nil {
		return err
	}
	*w = WorkspaceInfo(decoded)
	w.Raw = append(json.RawMessage(nil), data...)
	return nil
}

// MarshalJSON re-emits the original payload when one was decoded.
func (w WorkspaceInfo) MarshalJSON() ([]byte, error) {
	if len(w.Raw) > 0 {
		return w.Raw, nil
	}
	type plain WorkspaceInfo
	return json.Marshal(plain(w))
}

// ID returns the identifier lifecycle calls should reference.
func (w WorkspaceInfo) ID() string {
	if id := strings.TrimSpace(w.WorkspaceID); id != "" {
		return id
	}
	return strings.TrimSpace(w.Workspace)
}

// EndpointFor returns the internal or external transactor address.
func (w WorkspaceInfo) EndpointFor(kind EndpointKind) string {
	if kind == EndpointInternal {
		return w.Endpoint.Internal
	}
	return w.Endpoint.External
}
