package handlers

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ebogdum/hdfscache/internal/pathutil"
)

// ParseFileName extracts the logical filename from the {name} URL segment.
// chi matches against the escaped path when the request carried escapes the
// default encoding would not produce (such as %2F), so the segment is
// unescaped in that case only.
func ParseFileName(r *http.Request) (string, error) {
	name := chi.URLParam(r, "name")
	if r.URL.RawPath != "" {
		unescaped, err := pathutil.UnescapeName(name)
		if err != nil {
			return "", fmt.Errorf("%w: %v", pathutil.ErrInvalidName, err)
		}
		name = unescaped
	}

	if err := pathutil.ValidateName(name); err != nil {
		return "", err
	}

	return name, nil
}
