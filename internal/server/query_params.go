package server

import (
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/smallbiznis/authr/internal/storage"
)

const (
	containsPrefix = "contains["
	containsSuffix = "]"
)

// parsePredicates turns a query string into predicates. Plain keys are
// equality filters typed by the schema; contains[field]=v is a substring
// filter. Repeated keys are ANDed.
func parsePredicates(schema storage.Schema, query url.Values) ([]storage.Predicate, error) {
	keys := make([]string, 0, len(query))
	for key := range query {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var preds []storage.Predicate
	for _, key := range keys {
		if field, ok := containsField(key); ok {
			for _, value := range query[key] {
				preds = append(preds, storage.Containing(field, value))
			}
			continue
		}
		for _, raw := range query[key] {
			value, err := schema.ParseValue(key, raw)
			if err != nil {
				return nil, err
			}
			preds = append(preds, storage.Equal(key, value))
		}
	}
	return preds, nil
}

func containsField(key string) (string, bool) {
	if !strings.HasPrefix(key, containsPrefix) || !strings.HasSuffix(key, containsSuffix) {
		return "", false
	}
	field := strings.TrimSuffix(strings.TrimPrefix(key, containsPrefix), containsSuffix)
	return field, field != ""
}

func parseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id <= 0 {
		return 0, &storage.ValidationError{Kind: storage.InvalidValue, Field: "id"}
	}
	return id, nil
}
