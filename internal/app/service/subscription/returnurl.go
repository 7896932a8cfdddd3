package subscription

import (
	"fmt"
	"net/url"
)

// ResolveReturnURL confines the post-checkout redirect target to the
// application's own origin. An empty candidate passes trivially (the caller
// supplies the default in-app path). Relative candidates resolve against the
// base; any resulting origin mismatch (scheme, host or port) is rejected.
// Must run before any gateway call so a reject has no side effects.
func ResolveReturnURL(candidate string, base *url.URL) (string, error) {
	if candidate == "" {
		return "", nil
	}
	ref, err := url.Parse(candidate)
	if err != nil {
		return "", fmt.Errorf("%w: malformed URL", ErrInvalidReturnURL)
	}
	resolved := base.ResolveReference(ref)
	if resolved.Scheme != base.Scheme || resolved.Host != base.Host {
		return "", fmt.Errorf("%w: redirect target outside application origin", ErrInvalidReturnURL)
	}
	return resolved.String(), nil
}
