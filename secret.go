package prism

// maskedRendering is the fixed-length form every non-empty secret
// projects to, regardless of content or length.
const maskedRendering = "**********"

// Secret is a string whose projected and printed form is always the
// fixed masked rendering. The underlying value is only reachable
// through Reveal, so a secret cannot leak through logs or dumps by
// accident.
type Secret string

// String returns the masked rendering, never the content.
func (s Secret) String() string {
	if s == "" {
		return ""
	}
	return maskedRendering
}

// Reveal returns the underlying value.
func (s Secret) Reveal() string {
	return string(s)
}

// SecretBytes is the byte-slice counterpart of Secret.
type SecretBytes []byte

// String returns the masked rendering, never the content.
func (s SecretBytes) String() string {
	if len(s) == 0 {
		return ""
	}
	return maskedRendering
}

// Reveal returns the underlying bytes.
func (s SecretBytes) Reveal() []byte {
	return []byte(s)
}
