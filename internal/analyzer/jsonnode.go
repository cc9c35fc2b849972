package analyzer

import (
	"bytes"
	"encoding/json"
	"sort"
	"strconv"
)

// maxJSONDepth bounds the recursion into nested JSON objects.
const maxJSONDepth = 4

// jsonNode is a large value inside a JSON script payload.
type jsonNode struct {
	// key is the dotted path of the value, e.g. "props.pageProps".
	key string

	// identifier is the script identifier followed by the path.
	identifier string

	// excerpt is the start of the raw value.
	excerpt string

	// size is the raw byte size of the value.
	size int
}

// jsonNodes breaks a JSON payload down into the values that reach
// threshold. Objects at least twice the threshold are searched for
// larger children; the parent is reported alongside its children. Invalid
// JSON yields no nodes.
func jsonNodes(content, scriptID string, threshold int) []jsonNode {
	raw := json.RawMessage(bytes.TrimSpace([]byte(content)))
	if threshold <= 0 || !json.Valid(raw) {
		return nil
	}

	var nodes []jsonNode
	var visit func(prefix string, value json.RawMessage, depth int)
	visit = func(prefix string, value json.RawMessage, depth int) {
		for _, child := range children(value) {
			key := child.key
			if prefix != "" {
				key = prefix + "." + key
			}
			size := len(child.value)
			if size < threshold {
				continue
			}
			nodes = append(nodes, jsonNode{
				key:        key,
				identifier: scriptID + " " + key,
				excerpt:    shorten(collapseSpace(string(child.value)), excerptLength),
				size:       size,
			})
			if size >= 2*threshold && depth+1 < maxJSONDepth {
				visit(key, child.value, depth+1)
			}
		}
	}
	visit("", raw, 0)
	return nodes
}

type jsonChild struct {
	key   string
	value json.RawMessage
}

// children lists the members of an object in key order, or the elements of
// an array by index. Scalars have no children.
func children(value json.RawMessage) []jsonChild {
	trimmed := bytes.TrimSpace(value)
	if len(trimmed) == 0 {
		return nil
	}

	switch trimmed[0] {
	case '{':
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(trimmed, &obj); err != nil {
			return nil
		}
		keys := make([]string, 0, len(obj))
		for k := range obj {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		out := make([]jsonChild, 0, len(keys))
		for _, k := range keys {
			out = append(out, jsonChild{key: k, value: obj[k]})
		}
		return out
	case '[':
		var arr []json.RawMessage
		if err := json.Unmarshal(trimmed, &arr); err != nil {
			return nil
		}
		out := make([]jsonChild, 0, len(arr))
		for i, v := range arr {
			out = append(out, jsonChild{key: "[" + strconv.Itoa(i) + "]", value: v})
		}
		return out
	}
	return nil
}
