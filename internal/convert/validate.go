package convert

import (
	"bytes"
	"encoding/json"
	"regexp"
)

// FailureKind classifies a rejected payload.
type FailureKind string

// Validation failure kinds, checked in this order.
const (
	KindMalformedPayload FailureKind = "malformed_payload"
	KindMissingField     FailureKind = "missing_field"
	KindInvalidURL       FailureKind = "invalid_url"
	KindInvalidUUID      FailureKind = "invalid_uuid"
)

// User-facing rejection reasons.
const (
	ReasonNotJSON        = "Request is not JSON"
	ReasonURLRequired    = "URL is required"
	ReasonFolderRequired = "Folder is required"
	ReasonUUIDRequired   = "UUID is required"
	ReasonInvalidURL     = "Invalid URL"
	ReasonInvalidUUID    = "Invalid UUID"
)

var (
	urlPattern  = regexp.MustCompile(`^https://[a-zA-Z0-9\-.]+\.[a-zA-Z]{2,}(:[0-9]{1,5})?(/.*)?$`)
	uuidPattern = regexp.MustCompile(
		`^[a-fA-F0-9]{8}-[a-fA-F0-9]{4}-[1-5][a-fA-F0-9]{3}-[89abAB][a-fA-F0-9]{3}-[a-fA-F0-9]{12}$`,
	)
)

// requiredFields is ordered; the first missing one is reported.
var requiredFields = []struct {
	name   string
	reason string
}{
	{name: "url", reason: ReasonURLRequired},
	{name: "folder", reason: ReasonFolderRequired},
	{name: "uuid", reason: ReasonUUIDRequired},
}

// ValidationError rejects an untrusted job payload. Reason is safe to return
// to the submitting client verbatim.
type ValidationError struct {
	Kind   FailureKind
	Field  string
	Reason string
}

// Error implements error.
func (e *ValidationError) Error() string {
	return e.Reason
}

// ParseJob decodes a flat JSON object and validates it into a Job.
func ParseJob(payload []byte) (Job, error) {
	if len(bytes.TrimSpace(payload)) == 0 {
		return Job{}, &ValidationError{Kind: KindMalformedPayload, Reason: ReasonNotJSON}
	}
	var doc map[string]any
	if err := json.Unmarshal(payload, &doc); err != nil || doc == nil {
		return Job{}, &ValidationError{Kind: KindMalformedPayload, Reason: ReasonNotJSON}
	}

	values := make(map[string]string, len(requiredFields))
	for _, field := range requiredFields {
		// Non-string values count as absent.
		values[field.name], _ = doc[field.name].(string)
	}
	return validate(values)
}

// ValidateFields applies the presence and shape checks to already-decoded fields.
func ValidateFields(rawURL, folder, id string) (Job, error) {
	return validate(map[string]string{"url": rawURL, "folder": folder, "uuid": id})
}

func validate(values map[string]string) (Job, error) {
	for _, field := range requiredFields {
		if values[field.name] == "" {
			return Job{}, &ValidationError{Kind: KindMissingField, Field: field.name, Reason: field.reason}
		}
	}
	rawURL, id := values["url"], values["uuid"]
	if !urlPattern.MatchString(rawURL) {
		return Job{}, &ValidationError{Kind: KindInvalidURL, Field: "url", Reason: ReasonInvalidURL}
	}
	if !uuidPattern.MatchString(id) {
		return Job{}, &ValidationError{Kind: KindInvalidUUID, Field: "uuid", Reason: ReasonInvalidUUID}
	}
	return Job{URL: rawURL, Folder: values["folder"], UUID: id}, nil
}
