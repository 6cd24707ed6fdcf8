package kb

import (
	"context"
	"strings"
)

// Source supplies the flat list of relation records a snapshot is built
// from. Implementations read a static source exactly once per load; the
// store never writes back.
type Source interface {
	// Facts returns every record in the source. Read or parse failures
	// surface as *LoadError.
	Facts(ctx context.Context) ([]Fact, error)
	// Descriptor identifies the source for error messages and logs.
	Descriptor() string
}

// OpenSource resolves a source descriptor to a Source. Supported schemes:
//
//	embedded:            the knowledge base compiled into the binary
//	file:<path>          a YAML fact file on disk
//	postgres://<dsn>     a kb_fact triples table read via pgx
func OpenSource(descriptor string) (Source, error) {
	switch {
	case descriptor == "embedded:" || descriptor == "embedded":
		return embeddedSource{}, nil
	case strings.HasPrefix(descriptor, "file:"):
		return fileSource{path: strings.TrimPrefix(descriptor, "file:")}, nil
	case strings.HasPrefix(descriptor, "postgres://"), strings.HasPrefix(descriptor, "postgresql://"):
		return &pgSource{dsn: descriptor}, nil
	}
	return nil, &LoadError{Source: descriptor, Reason: "unsupported source descriptor"}
}
