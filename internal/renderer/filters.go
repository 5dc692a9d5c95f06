package renderer

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/flosch/pongo2/v6"
	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html"
)

var (
	filtersOnce sync.Once
	ugcPolicy   *bluemonday.Policy
)

// registerFilters adds the tagforge filters to pongo2's global filter table.
func registerFilters() {
	filtersOnce.Do(func() {
		ugcPolicy = bluemonday.UGCPolicy()
		if !pongo2.FilterExists("sanitize") {
			_ = pongo2.RegisterFilter("sanitize", filterSanitize)
		}
		if !pongo2.FilterExists("attrs") {
			_ = pongo2.RegisterFilter("attrs", filterAttrs)
		}
	})
}

// filterSanitize strips markup that is unsafe in user content and marks the
// result safe: {{ html|sanitize }}.
func filterSanitize(in *pongo2.Value, _ *pongo2.Value) (*pongo2.Value, *pongo2.Error) {
	return pongo2.AsSafeValue(ugcPolicy.Sanitize(in.String())), nil
}

// filterAttrs renders a string map as attributes sorted by key, optionally
// prefixing every key: {{ data|attrs:"data-" }}.
func filterAttrs(in *pongo2.Value, param *pongo2.Value) (*pongo2.Value, *pongo2.Error) {
	prefix := ""
	if param != nil && !param.IsNil() {
		prefix = param.String()
	}

	values := make(map[string]string)
	switch m := in.Interface().(type) {
	case nil:
	case map[string]any:
		for k, v := range m {
			values[k] = fmt.Sprint(v)
		}
	case map[string]string:
		for k, v := range m {
			values[k] = v
		}
	default:
		return nil, &pongo2.Error{
			Sender:    "filter:attrs",
			OrigError: fmt.Errorf("attrs expects a map, got %T", m),
		}
	}

	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, prefix+k+`="`+html.EscapeString(values[k])+`"`)
	}

	return pongo2.AsSafeValue(strings.Join(parts, " ")), nil
}
