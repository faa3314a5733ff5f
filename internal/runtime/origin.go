package runtime

import "strings"

// OriginValidator decides whether a frame message origin may be dispatched.
type OriginValidator struct {
	selfOrigin         string
	trustedFrameOrigin string
}

// NewOriginValidator builds a validator for an extension whose base URL is
// selfOrigin. trustedFrameOrigin may be empty when no host page is trusted.
func NewOriginValidator(selfOrigin, trustedFrameOrigin string) OriginValidator {
	return OriginValidator{selfOrigin: selfOrigin, trustedFrameOrigin: trustedFrameOrigin}
}

// IsTrusted accepts the extension's own origin and the configured host page
// origin. Browsers report origins without the trailing slash the extension
// base URL carries, so the own-origin check is a containment test.
func (v OriginValidator) IsTrusted(origin string) bool {
	if origin == "" {
		return false
	}
	if strings.Contains(v.selfOrigin, origin) {
		return true
	}
	return v.trustedFrameOrigin != "" && v.trustedFrameOrigin == origin
}
