package orgs

import "strings"

// generateSlug derives a URL-safe slug from an organization name:
// lowercase, every run of non-alphanumeric characters becomes a single
// hyphen. Slugs are immutable after creation.
func generateSlug(name string) string {
	var b strings.Builder
	lastHyphen := true // suppress leading hyphen
	for _, r := range strings.ToLower(name) {
		switch {
		case (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9'):
			b.WriteRune(r)
			lastHyphen = false
		default:
			if !lastHyphen {
				b.WriteByte('-')
				lastHyphen = true
			}
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}
