package schema

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
)

// Source identifies where a schema or form definition document lives so
// loaders can read files, fs.FS entries or URLs behind one contract.
type Source interface {
	Kind() SourceKind
	Location() string
}

// SourceKind enumerates the loader modalities.
type SourceKind string

const (
	SourceKindFile SourceKind = "file"
	SourceKindFS   SourceKind = "fs"
	SourceKindURL  SourceKind = "url"
)

type source struct {
	kind     SourceKind
	location string
}

func (s source) Kind() SourceKind { return s.kind }
func (s source) Location() string { return s.location }

// SourceFromFile returns a Source pointing to a file path.
func SourceFromFile(path string) Source {
	return source{kind: SourceKindFile, location: filepath.Clean(path)}
}

// SourceFromFS returns a Source identifying a resource inside an fs.FS.
func SourceFromFS(name string) Source {
	return source{kind: SourceKindFS, location: name}
}

// SourceFromURL validates raw and returns a URL Source.
func SourceFromURL(raw string) (Source, error) {
	if raw == "" {
		return nil, errors.New("schema: empty URL source")
	}
	if _, err := url.ParseRequestURI(raw); err != nil {
		return nil, fmt.Errorf("schema: invalid URL %q: %w", raw, err)
	}
	return source{kind: SourceKindURL, location: raw}, nil
}

// ResolveSource picks a URL or file Source from a user supplied string.
func ResolveSource(raw string) (Source, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, errors.New("schema: source is required")
	}
	if strings.HasPrefix(trimmed, "http://") || strings.HasPrefix(trimmed, "https://") {
		return SourceFromURL(trimmed)
	}
	return SourceFromFile(trimmed), nil
}

// RelativeTo resolves a file source relative to the directory of base when
// base is itself a file source. Other combinations are returned as is.
func RelativeTo(base Source, raw string) (Source, error) {
	src, err := ResolveSource(raw)
	if err != nil {
		return nil, err
	}
	if base == nil || src.Kind() != SourceKindFile || filepath.IsAbs(src.Location()) {
		return src, nil
	}
	switch base.Kind() {
	case SourceKindFile:
		return SourceFromFile(filepath.Join(filepath.Dir(base.Location()), src.Location())), nil
	case SourceKindFS:
		return SourceFromFS(filepath.ToSlash(filepath.Join(filepath.Dir(base.Location()), src.Location()))), nil
	case SourceKindURL:
		u, err := url.Parse(base.Location())
		if err != nil {
			return src, nil
		}
		ref, err := url.Parse(filepath.ToSlash(raw))
		if err != nil {
			return src, nil
		}
		return SourceFromURL(u.ResolveReference(ref).String())
	}
	return src, nil
}

// Document wraps a raw payload and its origin.
type Document struct {
	source Source
	raw    []byte
}

// NewDocument copies raw and pairs it with its Source.
func NewDocument(src Source, raw []byte) (Document, error) {
	if src == nil {
		return Document{}, errors.New("schema: source is required")
	}
	if len(raw) == 0 {
		return Document{}, fmt.Errorf("schema: document %s is empty", src.Location())
	}
	return Document{source: src, raw: append([]byte(nil), raw...)}, nil
}

// MustNewDocument panics if the document cannot be created. Useful for tests.
func MustNewDocument(src Source, raw []byte) Document {
	doc, err := NewDocument(src, raw)
	if err != nil {
		panic(err)
	}
	return doc
}

func (d Document) Source() Source { return d.source }

// Raw returns a copy of the payload.
func (d Document) Raw() []byte {
	return append([]byte(nil), d.raw...)
}

func (d Document) Location() string {
	if d.source == nil {
		return ""
	}
	return d.source.Location()
}

// Loader fetches documents from a Source.
type Loader interface {
	Load(ctx context.Context, src Source) (Document, error)
}
