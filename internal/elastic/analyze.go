package elastic

import (
	"context"
	"fmt"
	"maps"
	"reflect"
	"slices"
	"strings"

	"github.com/meigma/nastydata/internal/document"
	"github.com/meigma/nastydata/internal/jsonl"
)

// AnalyzeIndex compares the mapping Elasticsearch built for index, including
// dynamically added fields, with the mapping k defines. It creates a temporary
// index from k to obtain the induced mapping and deletes it afterwards. The
// differences are logged and returned.
func (c *Client) AnalyzeIndex(ctx context.Context, index string, k document.Kind) ([]string, error) {
	if err := c.EnsureIndexExists(ctx, index); err != nil {
		return nil, err
	}
	c.logger.Debug("comparing current and induced mapping", "index", index, "kind", k.Name())

	induced, err := c.NewIndex(ctx, index+"-induced", k, NewIndexOptions{})
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := c.DeleteIndex(context.WithoutCancel(ctx), induced); err != nil {
			c.logger.Warn("failed to delete induced index", "index", induced, "error", err)
		}
	}()

	current, err := c.properties(ctx, index)
	if err != nil {
		return nil, err
	}
	want, err := c.properties(ctx, induced)
	if err != nil {
		return nil, err
	}

	lines := MappingDiff(current, want)
	for _, line := range lines {
		c.logger.Info(line)
	}
	return lines, nil
}

// properties returns the top-level mapping properties of index. For an
// alias it returns those of the first index behind it.
func (c *Client) properties(ctx context.Context, index string) (map[string]any, error) {
	var resp map[string]struct {
		Mappings struct {
			Properties map[string]any `json:"properties"`
		} `json:"mappings"`
	}
	res, err := c.es.Indices.GetMapping(
		c.es.Indices.GetMapping.WithContext(ctx),
		c.es.Indices.GetMapping.WithIndex(index),
	)
	if err := decode("get mapping", res, err, &resp); err != nil {
		return nil, err
	}
	if len(resp) == 0 {
		return nil, fmt.Errorf("get mapping: no mapping returned for %s", index)
	}
	first := slices.Sorted(maps.Keys(resp))[0]
	return resp[first].Mappings.Properties, nil
}

// MappingDiff lists the differences between two mapping property trees,
// descending into fields both sides define as objects. Nesting is indented
// by two spaces per level.
func MappingDiff(current, induced map[string]any) []string {
	var lines []string
	diffProperties(&lines, current, induced, 0)
	return lines
}

func diffProperties(lines *[]string, current, induced map[string]any, depth int) {
	indent := strings.Repeat("  ", depth)
	remaining := maps.Clone(induced)

	for _, field := range slices.Sorted(maps.Keys(current)) {
		cur := current[field]
		ind, ok := remaining[field]
		delete(remaining, field)
		if ok && reflect.DeepEqual(cur, ind) {
			continue
		}

		indMap, _ := ind.(map[string]any)
		if len(indMap) == 0 {
			*lines = append(*lines, indent+field+": only exists in current dynamic mapping.", indent+"  [current]")
			*lines = append(*lines, fieldLines(cur, depth+1)...)
			continue
		}

		*lines = append(*lines, indent+field+":")
		curProps, curOK := propertiesOf(cur)
		indProps, indOK := propertiesOf(ind)
		if curOK && indOK {
			diffProperties(lines, curProps, indProps, depth+1)
			continue
		}
		*lines = append(*lines, indent+"  [current]")
		*lines = append(*lines, fieldLines(cur, depth+1)...)
		*lines = append(*lines, indent+"  [induced]")
		*lines = append(*lines, fieldLines(ind, depth+1)...)
	}

	for _, field := range slices.Sorted(maps.Keys(remaining)) {
		*lines = append(*lines, indent+field+": only exists in induced mapping.", indent+"  [induced]")
		*lines = append(*lines, fieldLines(remaining[field], depth+1)...)
	}
}

func propertiesOf(field any) (map[string]any, bool) {
	m, ok := field.(map[string]any)
	if !ok {
		return nil, false
	}
	props, ok := m["properties"].(map[string]any)
	return props, ok
}

// fieldLines renders a field mapping as indented JSON without its outer braces.
func fieldLines(field any, depth int) []string {
	indent := strings.Repeat("  ", depth)
	data, err := jsonl.JSON.MarshalIndent(field, "", "  ")
	if err != nil {
		return []string{indent + fmt.Sprint(field)}
	}
	var out []string
	for _, line := range strings.Split(string(data), "\n") {
		if line == "{" || line == "}" {
			continue
		}
		out = append(out, indent+line)
	}
	return out
}
