package deck

import "strings"

// FilterFunc returns true when a reference should be kept.
type FilterFunc func(string) bool

// FilterForScheme returns a filter keeping references of one kind:
// "http" (http and https URLs), "file" (everything that is not a URL) or
// "any".
func FilterForScheme(scheme string) FilterFunc {
	switch strings.ToLower(scheme) {
	case "http", "https":
		return isHTTP
	case "file":
		return func(ref string) bool { return !isURL(ref) }
	default:
		return func(string) bool { return true }
	}
}

// Filter returns the references accepted by keep, in order.
func Filter(refs []string, keep FilterFunc) []string {
	out := make([]string, 0, len(refs))
	for _, r := range refs {
		if keep(r) {
			out = append(out, r)
		}
	}
	return out
}

func isHTTP(ref string) bool {
	lower := strings.ToLower(ref)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}

func isURL(ref string) bool {
	return strings.Contains(ref, "://")
}
