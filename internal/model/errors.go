package model

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies failures surfaced by the registry and the inference engine.
type Kind string

const (
	KindRegistryLoad      Kind = "registry_load"
	KindModelNotFound     Kind = "model_not_found"
	KindMissingFeature    Kind = "missing_feature"
	KindInvalidFeature    Kind = "invalid_feature"
	KindFeatureShape      Kind = "feature_shape"
	KindInconsistentModel Kind = "inconsistent_model"
)

// Sentinels for errors.Is. Each *Error matches the sentinel of its Kind.
var (
	ErrRegistryLoad      = errors.New("registry load failed")
	ErrModelNotFound     = errors.New("model not found")
	ErrMissingFeature    = errors.New("missing feature")
	ErrInvalidFeature    = errors.New("invalid feature value")
	ErrFeatureShape      = errors.New("feature shape mismatch")
	ErrInconsistentModel = errors.New("inconsistent model")
)

var sentinels = map[Kind]error{
	KindRegistryLoad:      ErrRegistryLoad,
	KindModelNotFound:     ErrModelNotFound,
	KindMissingFeature:    ErrMissingFeature,
	KindInvalidFeature:    ErrInvalidFeature,
	KindFeatureShape:      ErrFeatureShape,
	KindInconsistentModel: ErrInconsistentModel,
}

// Error carries the kind of failure and the context it happened in.
type Error struct {
	Kind    Kind
	Key     string // model key, when known
	Feature string // offending feature, for feature errors
	Origin  string // artifact location, for load errors
	Err     error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	var b strings.Builder
	b.WriteString(sentinels[e.Kind].Error())
	if e.Key != "" {
		fmt.Fprintf(&b, " key=%q", e.Key)
	}
	if e.Feature != "" {
		fmt.Fprintf(&b, " feature=%q", e.Feature)
	}
	if e.Origin != "" {
		fmt.Fprintf(&b, " origin=%s", e.Origin)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is matches the sentinel for e.Kind.
func (e *Error) Is(target error) bool {
	if e == nil {
		return false
	}
	s, ok := sentinels[e.Kind]
	return ok && s == target
}

// Recoverable reports whether the failure is the caller's to fix (unknown
// configuration, incomplete player data) rather than a serving-side defect.
func (e *Error) Recoverable() bool {
	switch e.Kind {
	case KindModelNotFound, KindMissingFeature, KindInvalidFeature:
		return true
	}
	return false
}

// KindOf returns the Kind of the first *Error in err's chain.
func KindOf(err error) (Kind, bool) {
	var me *Error
	if errors.As(err, &me) {
		return me.Kind, true
	}
	return "", false
}
