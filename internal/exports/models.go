package exports

import (
	"fmt"
	"strconv"
	"strings"
)

// Status represents the lifecycle of one export asset.
type Status string

const (
	StatusQueued    Status = "queued"
	StatusRequested Status = "requested"
	StatusStable    Status = "stable"
	StatusError     Status = "error"
)

var allStatuses = []Status{StatusQueued, StatusRequested, StatusStable, StatusError}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// Asset is one configured export target: a (scale, format, suffix) triple with
// its last-known status. A stable asset carries the written file path; an
// errored asset carries an empty path.
type Asset struct {
	Scale    float64 `json:"scale"`
	Format   string  `json:"format"`
	Suffix   string  `json:"suffix"`
	Status   Status  `json:"status"`
	FilePath string  `json:"filePath,omitempty"`
}

// DefaultSuffix derives the conventional filename suffix for a scale. Scale 1
// exports carry no suffix; everything else is tagged "@<scale>x".
func DefaultSuffix(scale float64) string {
	if scale == 1 {
		return ""
	}
	return "@" + FormatScale(scale) + "x"
}

// FormatScale renders a scale value without trailing zeros.
func FormatScale(scale float64) string {
	return strconv.FormatFloat(scale, 'f', -1, 64)
}

// NewAsset builds an asset with derived defaults for unset fields.
func NewAsset(scale float64, format string) Asset {
	return Asset{
		Scale:  scale,
		Format: format,
		Suffix: DefaultSuffix(scale),
		Status: StatusQueued,
	}
}

// Validate checks the asset invariants.
func (a Asset) Validate() error {
	if a.Scale <= 0 {
		return fmt.Errorf("scale must be positive, got %v", a.Scale)
	}
	if strings.TrimSpace(a.Format) == "" {
		return fmt.Errorf("format is required")
	}
	if a.Status != "" {
		if _, ok := statusSet[a.Status]; !ok {
			return fmt.Errorf("unknown status %q", a.Status)
		}
	}
	if a.Status == StatusError && a.FilePath != "" {
		return fmt.Errorf("errored asset must carry an empty path")
	}
	return nil
}

// Patch is a typed partial update merged into an asset at a known index.
// Nil fields are left untouched.
type Patch struct {
	Scale    *float64
	Format   *string
	Suffix   *string
	Status   *Status
	FilePath *string
}

// Apply merges the patch into a copy of the asset and validates the result.
func (p Patch) Apply(asset Asset) (Asset, error) {
	if p.Scale != nil {
		asset.Scale = *p.Scale
	}
	if p.Format != nil {
		asset.Format = *p.Format
	}
	if p.Suffix != nil {
		asset.Suffix = *p.Suffix
	}
	if p.Status != nil {
		asset.Status = *p.Status
	}
	if p.FilePath != nil {
		asset.FilePath = *p.FilePath
	}
	if err := asset.Validate(); err != nil {
		return Asset{}, err
	}
	return asset, nil
}

// StablePatch is the canonical post-export success update.
func StablePatch(filePath string) Patch {
	status := StatusStable
	return Patch{Status: &status, FilePath: &filePath}
}

// ErrorPatch is the canonical post-export failure update.
func ErrorPatch() Patch {
	status := StatusError
	empty := ""
	return Patch{Status: &status, FilePath: &empty}
}

// Target addresses one asset list: a document root or a specific layer.
type Target struct {
	DocumentID string
	LayerID    string
}

// RootTarget addresses the document-level asset list.
func RootTarget(documentID string) Target {
	return Target{DocumentID: documentID}
}

// LayerTarget addresses a per-layer asset list.
func LayerTarget(documentID, layerID string) Target {
	return Target{DocumentID: documentID, LayerID: layerID}
}

// IsRoot reports whether the target addresses the document root list.
func (t Target) IsRoot() bool {
	return t.LayerID == ""
}

func (t Target) String() string {
	if t.IsRoot() {
		return t.DocumentID + "/root"
	}
	return t.DocumentID + "/" + t.LayerID
}
