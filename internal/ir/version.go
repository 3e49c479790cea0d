package ir

// Version constants for the definition schema and the service.
const (
	// SchemaVersion is the definition schema version.
	SchemaVersion = "1"

	// Version is the squealy release version.
	Version = "0.2.0"
)
