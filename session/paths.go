package session

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// SchemaPointerPaths lists the JSON pointers a form described by schema can
// hold. Array elements appear as "-" and free-form object keys as "*".
func SchemaPointerPaths(schema map[string]any) []string {
	paths := make([]string, 0)
	collectSchemaPaths(schema, "", &paths, 0)
	return paths
}

const maxSchemaDepth = 32

func collectSchemaPaths(node map[string]any, prefix string, paths *[]string, depth int) {
	if node == nil || depth > maxSchemaDepth {
		return
	}
	props, _ := node["properties"].(map[string]any)
	keys := make([]string, 0, len(props))
	for key := range props {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		fieldPath := prefix + "/" + escapePointerToken(key)
		*paths = append(*paths, fieldPath)
		child, _ := props[key].(map[string]any)
		collectSchemaPaths(child, fieldPath, paths, depth+1)
	}

	switch extra := node["additionalProperties"].(type) {
	case bool:
		if extra {
			*paths = append(*paths, prefix+"/*")
		}
	case map[string]any:
		mapPath := prefix + "/*"
		*paths = append(*paths, mapPath)
		collectSchemaPaths(extra, mapPath, paths, depth+1)
	default:
		if typ, _ := node["type"].(string); typ == "object" && props == nil && prefix != "" {
			*paths = append(*paths, prefix+"/*")
		}
	}

	if items, ok := node["items"].(map[string]any); ok {
		arrayPath := prefix + "/-"
		*paths = append(*paths, arrayPath)
		collectSchemaPaths(items, arrayPath, paths, depth+1)
	}
}

func escapePointerToken(token string) string {
	token = strings.ReplaceAll(token, "~", "~0")
	return strings.ReplaceAll(token, "/", "~1")
}

// ValidateOperations checks every operation targets one of allowed. An empty
// allowed set accepts everything.
func ValidateOperations(ops []Operation, allowed []string) error {
	if len(allowed) == 0 {
		return nil
	}
	for i, op := range ops {
		if !pathAllowed(op.Path, allowed) {
			return fmt.Errorf("operation %d: path %q is not part of the form", i, op.Path)
		}
	}
	return nil
}

func pathAllowed(path string, allowed []string) bool {
	segments := strings.Split(path, "/")
	for _, pattern := range allowed {
		if pattern == path {
			return true
		}
		if matchPattern(segments, strings.Split(pattern, "/")) {
			return true
		}
	}
	return false
}

// "-" stands for any array index, "*" for any object key.
func matchPattern(segments, pattern []string) bool {
	if len(segments) != len(pattern) {
		return false
	}
	for i, want := range pattern {
		got := segments[i]
		switch want {
		case got, "*":
		case "-":
			if got == "-" {
				continue
			}
			if n, err := strconv.Atoi(got); err != nil || n < 0 {
				return false
			}
		default:
			return false
		}
	}
	return true
}
