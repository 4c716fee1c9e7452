package errors

// Error codes for the bridge contracts. Keep stable; used across adapters and the bridge.
const (
	ErrCodeDuplicateCorrelationID = "bridge.duplicate_correlation_id"
	ErrCodeRequestTimeout         = "bridge.request_timeout"
	ErrCodeResponseConversion     = "bridge.response_conversion"
	ErrCodePublishFailed          = "bridge.publish_failed"
	ErrCodeSubscribeFailed        = "bridge.subscribe_failed"
	ErrCodeSerializationFailed    = "bridge.serialization_failed"
	ErrCodeMalformedEnvelope      = "bridge.malformed_envelope"
	ErrCodeNotConfigured          = "bridge.not_configured"
)

// Code returns an error value that carries only a code string.
// It implements error by returning the code string in Error().
func Code(code string) error { return codedError(code) }

type codedError string

func (e codedError) Error() string { return string(e) }

var (
	ErrDuplicateCorrelationID = Code(ErrCodeDuplicateCorrelationID)
	ErrRequestTimeout         = Code(ErrCodeRequestTimeout)
	ErrResponseConversion     = Code(ErrCodeResponseConversion)
	ErrPublishFailed          = Code(ErrCodePublishFailed)
	ErrSubscribeFailed        = Code(ErrCodeSubscribeFailed)
	ErrSerializationFailed    = Code(ErrCodeSerializationFailed)
	ErrMalformedEnvelope      = Code(ErrCodeMalformedEnvelope)
	ErrNotConfigured          = Code(ErrCodeNotConfigured)
)
