package graph

// Version constants for the graph encoding and the compiler.
const (
	// IRVersion is the graph schema version baked into canonical encodings.
	IRVersion = "1"

	// CompilerVersion is the decor compiler version.
	CompilerVersion = "0.1.0"
)
