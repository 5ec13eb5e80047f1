package observability

import "testing"

func TestRegisterAndRecordersAreSafe(t *testing.T) {
	Register()
	Register()

	ObserveEncodedPart("text", 5)
	ObserveEncodedPart("stream", 1024)
	ObserveDecodedEntry(5)
	ObserveDecodeFailure("malformed_header")
}
