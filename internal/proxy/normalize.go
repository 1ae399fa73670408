package proxy

import (
	"encoding/json"
	"mime"
	"strings"
)

// maxRawExcerpt bounds the size of the raw-body excerpt included in
// malformed-JSON diagnostics.
const maxRawExcerpt = 500

// NormalizedResponse is the response contract handed to the client:
// always a JSON body, always carrying the upstream status code.
type NormalizedResponse struct {
	StatusCode int
	Body       []byte
}

// malformedEnvelope wraps an upstream body that claimed to be JSON but
// failed to parse.
type malformedEnvelope struct {
	Error string `json:"error"`
	Raw   string `json:"raw"`
}

// textEnvelope wraps a non-JSON upstream body.
type textEnvelope struct {
	Data        string `json:"data"`
	ContentType string `json:"content_type"`
}

// Normalize converts an upstream response into the client-facing JSON
// contract. Valid JSON bodies pass through byte-for-byte, so the
// operation is idempotent: normalizing an already-normalized response
// changes nothing. The upstream status code always propagates
// unchanged, whatever shape the body takes.
func Normalize(result AttemptResult) NormalizedResponse {
	if isJSONMediaType(result.ContentType) {
		if json.Valid(result.Body) {
			return NormalizedResponse{
				StatusCode: result.StatusCode,
				Body:       result.Body,
			}
		}
		return NormalizedResponse{
			StatusCode: result.StatusCode,
			Body: mustMarshal(malformedEnvelope{
				Error: "upstream returned malformed JSON",
				Raw:   truncate(string(result.Body), maxRawExcerpt),
			}),
		}
	}

	contentType := result.ContentType
	if contentType == "" {
		contentType = "unknown"
	}

	return NormalizedResponse{
		StatusCode: result.StatusCode,
		Body: mustMarshal(textEnvelope{
			Data:        string(result.Body),
			ContentType: contentType,
		}),
	}
}

// isJSONMediaType reports whether the content type declares a JSON
// body, including structured-syntax suffixes like
// application/problem+json.
func isJSONMediaType(contentType string) bool {
	if contentType == "" {
		return false
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mediaType == ContentTypeJSON || strings.HasSuffix(mediaType, "+json")
}

// truncate returns at most limit characters of s, cutting on a rune
// boundary so the excerpt stays valid UTF-8.
func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	runes := 0
	for i := range s {
		if runes == limit {
			return s[:i]
		}
		runes++
	}
	return s
}

// mustMarshal marshals envelope structs whose fields are plain strings
// and cannot fail to encode.
func mustMarshal(v any) []byte {
	body, err := json.Marshal(v)
	if err != nil {
		return []byte(`{"error":"response encoding failed"}`)
	}
	return body
}
