package domain

import "fmt"

// TargetFormat is the identifier format a target list is homogeneous in.
type TargetFormat string

const (
	FormatScreenName TargetFormat = "screen_name"
	FormatUserID     TargetFormat = "user_id"
)

// Valid reports whether f is one of the two accepted literal formats.
func (f TargetFormat) Valid() bool {
	return f == FormatScreenName || f == FormatUserID
}

// TargetList is the parsed contents of the target-list file.
type TargetList struct {
	Format TargetFormat `yaml:"format" json:"format" validate:"required,oneof=screen_name user_id"`
	Users  []string     `yaml:"users" json:"users" validate:"required,min=1,dive,required"`
}

// Target identifies one account in the list, before or after resolution.
// Exactly one of Handle/NumericID is guaranteed non-empty at construction
// from a TargetList; both may be populated once resolved.
type Target struct {
	Handle    string
	NumericID string
}

// Key returns the persistence lookup key for this target: the numeric id
// when known, else the handle.
func (t Target) Key() string {
	if t.NumericID != "" {
		return t.NumericID
	}
	return t.Handle
}

func (t Target) String() string {
	if t.Handle != "" && t.NumericID != "" {
		return fmt.Sprintf("%s(%s)", t.Handle, t.NumericID)
	}
	if t.Handle != "" {
		return t.Handle
	}
	return t.NumericID
}

// TargetsFromList expands a TargetList into homogeneous Target values.
func TargetsFromList(list *TargetList) []Target {
	targets := make([]Target, 0, len(list.Users))
	for _, u := range list.Users {
		switch list.Format {
		case FormatUserID:
			targets = append(targets, Target{NumericID: u})
		default:
			targets = append(targets, Target{Handle: u})
		}
	}
	return targets
}
