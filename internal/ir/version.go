package ir

// Version constants for persisted formats.
const (
	// PayloadVersion is the record payload encoding version.
	PayloadVersion = "1"

	// SchemaFormatVersion is the version of the persisted schema description
	// used by stores to detect model changes at open time.
	SchemaFormatVersion = "1"
)
