package frontmatter

import (
	"bytes"
	"fmt"
	"sort"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Serialize renders frontmatter fields as YAML bytes (without delimiters).
//
// Keys are sorted recursively so output is stable across runs; the newline
// style of the original document is preserved. An empty map serializes to an
// empty slice.
func Serialize(fields map[string]any, style Style) ([]byte, error) {
	if len(fields) == 0 {
		return []byte{}, nil
	}

	node, err := mapNode(fields)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(node); err != nil {
		_ = enc.Close()
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}

	out := buf.Bytes()
	if style.Newline != "" && style.Newline != "\n" {
		out = bytes.ReplaceAll(out, []byte("\n"), []byte(style.Newline))
	}
	return out, nil
}

func mapNode(m map[string]any) (*yaml.Node, error) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	node := &yaml.Node{Kind: yaml.MappingNode}
	for _, k := range keys {
		val, err := valueNode(m[k])
		if err != nil {
			return nil, err
		}
		node.Content = append(node.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: k},
			val)
	}
	return node, nil
}

func valueNode(v any) (*yaml.Node, error) {
	switch vv := v.(type) {
	case nil:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!null", Value: "null"}, nil
	case string:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: vv}, nil
	case bool:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!bool", Value: strconv.FormatBool(vv)}, nil
	case int:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!int", Value: strconv.Itoa(vv)}, nil
	case int64:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!int", Value: strconv.FormatInt(vv, 10)}, nil
	case float64:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!float", Value: fmt.Sprintf("%v", vv)}, nil
	case map[string]any:
		return mapNode(vv)
	case map[any]any:
		converted := make(map[string]any, len(vv))
		for k, val := range vv {
			converted[fmt.Sprint(k)] = val
		}
		return mapNode(converted)
	case []string:
		seq := &yaml.Node{Kind: yaml.SequenceNode}
		for _, item := range vv {
			seq.Content = append(seq.Content, &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: item})
		}
		return seq, nil
	case []any:
		seq := &yaml.Node{Kind: yaml.SequenceNode}
		for _, item := range vv {
			n, err := valueNode(item)
			if err != nil {
				return nil, err
			}
			seq.Content = append(seq.Content, n)
		}
		return seq, nil
	default:
		// Uncommon scalar types go through yaml's own encoding.
		data, err := yaml.Marshal(v)
		if err != nil {
			return nil, err
		}
		var doc yaml.Node
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, err
		}
		if len(doc.Content) == 0 {
			return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!null", Value: "null"}, nil
		}
		return doc.Content[0], nil
	}
}
