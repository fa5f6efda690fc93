package verify

import (
	"encoding/json"
	"fmt"
	"os"
)

// LoadSidebarIDs parses a Docusaurus sidebars.json file and returns every
// document ID it references, across all sidebars.
//
// Items come in three shapes: a bare string doc ID, a {"type": "doc"}
// object, and a {"type": "category"} object with nested items. Link items
// point outside the docs tree and are ignored.
func LoadSidebarIDs(path string) (map[string]struct{}, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read sidebars file: %w", err)
	}

	var sidebars map[string]any
	if err := json.Unmarshal(data, &sidebars); err != nil {
		return nil, fmt.Errorf("failed to parse sidebars file: %w", err)
	}

	ids := make(map[string]struct{})
	for _, items := range sidebars {
		collectSidebarIDs(items, ids)
	}
	return ids, nil
}

func collectSidebarIDs(node any, ids map[string]struct{}) {
	switch v := node.(type) {
	case string:
		ids[v] = struct{}{}
	case []any:
		for _, item := range v {
			collectSidebarIDs(item, ids)
		}
	case map[string]any:
		typ, _ := v["type"].(string)
		switch typ {
		case "doc", "ref":
			if id, ok := v["id"].(string); ok {
				ids[id] = struct{}{}
			}
		case "category":
			collectSidebarIDs(v["items"], ids)
			// Category index pages appear as a link object.
			if link, ok := v["link"].(map[string]any); ok {
				if id, ok := link["id"].(string); ok {
					ids[id] = struct{}{}
				}
			}
		}
	}
}
