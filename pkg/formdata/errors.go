package formdata

import "fmt"

// InvalidPathError is returned by Resolve when a path segment carries array
// semantics without a name to attach the array to ("[]", "[3]"). It is the
// only error the resolver produces.
type InvalidPathError struct {
	// Segment is the offending path segment as written.
	Segment string

	// Path is the full path the segment appeared in.
	Path string
}

// Error includes both the failing segment and the full path, since scope
// strings are often built dynamically and the segment alone rarely
// identifies the call site.
func (e *InvalidPathError) Error() string {
	return fmt.Sprintf("formdata: unnamed array not allowed. failed parsing '%s' in '%s'", e.Segment, e.Path)
}
