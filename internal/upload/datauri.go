package upload

import "regexp"

// Inline image payloads arrive as data URIs:
// data:image/<type>;base64,<payload>. Only the image types the pipeline
// accepts are allowed in the prefix; anything else is rejected before
// decoding a single byte.
var dataURIRe = regexp.MustCompile(`^data:image/(jpeg|jpg|png|gif|webp);base64,`)

// splitDataURI validates the prefix and separates the declared image
// type from the raw base64 payload. ok is false for any malformed or
// non-image prefix.
func splitDataURI(uri string) (declared, payload string, ok bool) {
	m := dataURIRe.FindStringSubmatch(uri)
	if m == nil {
		return "", "", false
	}
	return m[1], uri[len(m[0]):], true
}
