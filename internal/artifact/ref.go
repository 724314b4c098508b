// Package artifact resolves artifact references (scheme://bucket/key) and
// provides the object stores that own artifact bytes.
package artifact

import (
	"fmt"
	"net/url"
	"path"
	"strings"
)

// Ref is a parsed artifact reference. Bucket is the URI authority and Key the
// path without its leading slash, with any query suffix kept verbatim.
type Ref struct {
	Scheme string
	Bucket string
	Key    string
}

func ParseRef(raw string) (Ref, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Ref{}, fmt.Errorf("empty artifact reference")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return Ref{}, fmt.Errorf("parse artifact reference %q: %w", raw, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return Ref{}, fmt.Errorf("artifact reference %q: want scheme://bucket/key", raw)
	}
	key := strings.TrimPrefix(u.Path, "/")
	if u.RawQuery != "" {
		key += "?" + u.RawQuery
	}
	return Ref{Scheme: strings.ToLower(u.Scheme), Bucket: u.Host, Key: key}, nil
}

// MustParseRef is ParseRef for constants and tests.
func MustParseRef(raw string) Ref {
	r, err := ParseRef(raw)
	if err != nil {
		panic(err)
	}
	return r
}

func (r Ref) String() string {
	return r.Scheme + "://" + r.Bucket + "/" + r.Key
}

func (r Ref) IsZero() bool { return r == Ref{} }

// IsFolder reports whether the key denotes a folder (empty or slash-terminated).
func (r Ref) IsFolder() bool {
	return r.Key == "" || strings.HasSuffix(r.Key, "/")
}

// Base returns the last key segment, or the bucket for a bucket-root ref.
func (r Ref) Base() string {
	key := strings.TrimSuffix(r.Key, "/")
	if key == "" {
		return r.Bucket
	}
	return path.Base(key)
}

// Stem returns the file name without its extension.
func (r Ref) Stem() string {
	b := r.Base()
	return strings.TrimSuffix(b, path.Ext(b))
}

// Parent returns the enclosing folder, slash-terminated.
func (r Ref) Parent() Ref {
	key := strings.TrimSuffix(r.Key, "/")
	i := strings.LastIndex(key, "/")
	if i < 0 {
		return Ref{Scheme: r.Scheme, Bucket: r.Bucket}
	}
	return Ref{Scheme: r.Scheme, Bucket: r.Bucket, Key: key[:i+1]}
}

// AsFolder returns r with a trailing slash on a non-empty key.
func (r Ref) AsFolder() Ref {
	if r.Key != "" && !strings.HasSuffix(r.Key, "/") {
		r.Key += "/"
	}
	return r
}

// Join appends path elements below r.
func (r Ref) Join(elem ...string) Ref {
	parts := append([]string{strings.TrimSuffix(r.Key, "/")}, elem...)
	key := strings.TrimPrefix(path.Join(parts...), "/")
	return Ref{Scheme: r.Scheme, Bucket: r.Bucket, Key: key}
}
