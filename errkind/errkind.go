// Package errkind defines the typed error kinds the core reports, per the
// error handling design: validation failures drop a field and continue,
// referential failures name the missing id, conflicts serialise on the
// listing row, and deadlocks exhaust a retry budget before failing loudly.
package errkind

import "fmt"

// ValidationError records a single field dropped by the Normaliser because
// it fell outside its accepted range or grammar. It is never fatal — the
// listing proceeds with the remaining fields.
type ValidationError struct {
	Field  string
	Value  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: field %q value %q: %s", e.Field, e.Value, e.Reason)
}

// ReferentialError is raised when an operator (merge, split, move) is given
// an id that no longer identifies a live entity, naming the id that
// absorbed it when that is discoverable from MergeHistory.
type ReferentialError struct {
	Kind         string // "building" | "master_property" | "listing"
	MissingID    string
	AbsorbedByID string // empty if unknown
}

func (e *ReferentialError) Error() string {
	if e.AbsorbedByID != "" {
		return fmt.Sprintf("referential: %s %s not found (absorbed by %s)", e.Kind, e.MissingID, e.AbsorbedByID)
	}
	return fmt.Sprintf("referential: %s %s not found", e.Kind, e.MissingID)
}

// ConflictError records a listing (source_site, site_property_id) collision
// with a different master_property_id. Policy: the later write wins and
// this is logged as an anomaly, not rolled back.
type ConflictError struct {
	SourceSite     string
	SitePropertyID string
	ExistingOwner  string
	IncomingOwner  string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("conflict: listing (%s, %s) owned by %s, incoming write claims %s",
		e.SourceSite, e.SitePropertyID, e.ExistingOwner, e.IncomingOwner)
}

// DeadlockError is returned once the retry budget (§5) is exhausted.
type DeadlockError struct {
	Attempts int
	Cause    error
}

func (e *DeadlockError) Error() string {
	return fmt.Sprintf("deadlock: exhausted %d attempts: %v", e.Attempts, e.Cause)
}

func (e *DeadlockError) Unwrap() error { return e.Cause }
