package cfb

import "errors"

// Every error returned by this package wraps exactly one of these, so callers
// can classify failures with errors.Is.
var (
	// ErrorInvalidCFB reports a malformed container: bad magic, byte order,
	// sector shift, cutoff, or a broken allocation chain.
	ErrorInvalidCFB = errors.New("invalid cfb file")

	// ErrorUnsupportedVersion reports a major version other than 3 or 4.
	ErrorUnsupportedVersion = errors.New("unsupported cfb version")

	// ErrorTruncated reports a chain that points past the available sectors
	// or ends before the declared stream length.
	ErrorTruncated = errors.New("truncated cfb file")

	// ErrorCorruptTree reports cyclic, duplicated or out-of-range directory
	// references.
	ErrorCorruptTree = errors.New("corrupt cfb directory tree")

	// ErrorCapacity reports that the writer's sector budget was exceeded.
	ErrorCapacity = errors.New("cfb sector budget exceeded")

	ErrorInvalidName = errors.New("invalid cfb entry name")
	ErrorNotFound    = errors.New("cfb entry not found")
	ErrorNotStream   = errors.New("cfb entry is not a stream")
)
