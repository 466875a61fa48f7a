package validators

import (
	"net/http"
	"strconv"
	"strings"

	pkgerrors "github.com/rank0/digimenu-backend/pkg/errors"
)

// QueryBool reads an optional flag such as ?available=true.
func QueryBool(r *http.Request, key string, defaultVal bool) (bool, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return defaultVal, nil
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		return false, pkgerrors.New(pkgerrors.CodeValidation, key+" must be a boolean").WithDetails(map[string]any{"field": key})
	}
	return value, nil
}

// QueryString returns a sanitized query value capped at maxLen runes.
func QueryString(r *http.Request, key string, maxLen int) string {
	return SanitizeString(r.URL.Query().Get(key), maxLen)
}
