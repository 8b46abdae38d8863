package plan

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Print renders a Step's document as the literal GraphQL text the executor
// sends to its subgraph: a root query/mutation for Kind != ResolverEntity,
// or an `_entities` batch query otherwise. Argument values are inlined
// rather than hoisted into variables; the wire format this gateway speaks
// to subgraphs doesn't need to avoid re-parsing on every unique literal the
// way a client-facing API would (spec §4.6 dispatch only cares about the
// bytes it sends).
func (s *Step) Print() string {
	var b strings.Builder
	if s.EntityKey == 0 {
		b.WriteString("{")
		printChildren(&b, s.Root.Children, 1)
		b.WriteString("\n}")
		return b.String()
	}

	b.WriteString("query($representations: [_Any!]!) {\n  _entities(representations: $representations) {\n    ... on ")
	b.WriteString(s.entityTypeName)
	b.WriteString(" {")
	if s.KeySelection != nil {
		printChildren(&b, s.KeySelection.Children, 3)
	}
	printChildren(&b, s.Root.Children, 3)
	b.WriteString("\n    }\n  }\n}")
	return b.String()
}

func printChildren(b *strings.Builder, children []*SelectionNode, level int) {
	for i := 0; i < len(children); {
		c := children[i]
		if c.TypeCondition == "" {
			printField(b, c, level)
			i++
			continue
		}

		// Every consecutive child sharing this type condition came from the
		// same `... on Type { }` (or equivalent fragment spread) in the
		// client's document; print them back under one inline fragment so
		// the subgraph only ever sees a field at the concrete type that
		// actually declares it.
		j := i + 1
		for j < len(children) && children[j].TypeCondition == c.TypeCondition {
			j++
		}
		b.WriteString("\n")
		b.WriteString(strings.Repeat("  ", level))
		b.WriteString("... on ")
		b.WriteString(c.TypeCondition)
		b.WriteString(" {")
		printChildren(b, children[i:j], level+1)
		b.WriteString("\n")
		b.WriteString(strings.Repeat("  ", level))
		b.WriteString("}")
		i = j
	}
}

func printField(b *strings.Builder, c *SelectionNode, level int) {
	b.WriteString("\n")
	b.WriteString(strings.Repeat("  ", level))
	if c.Alias != "" && c.Alias != c.FieldName {
		b.WriteString(c.Alias)
		b.WriteString(": ")
	}
	b.WriteString(c.FieldName)
	if len(c.Arguments) > 0 {
		b.WriteString(printArguments(c.Arguments))
	}
	if len(c.Children) > 0 {
		b.WriteString(" {")
		printChildren(b, c.Children, level+1)
		b.WriteString("\n")
		b.WriteString(strings.Repeat("  ", level))
		b.WriteString("}")
	}
}

func printArguments(args map[string]interface{}) string {
	keys := make([]string, 0, len(args))
	for k := range args {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString("(")
	for i, k := range keys {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(k)
		b.WriteString(": ")
		b.WriteString(printValue(args[k]))
	}
	b.WriteString(")")
	return b.String()
}

func printValue(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return "null"
	case string:
		return strconv.Quote(val)
	case bool:
		return strconv.FormatBool(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case float64:
		return strconv.FormatFloat(val, 'g', -1, 64)
	case []interface{}:
		parts := make([]string, len(val))
		for i, item := range val {
			parts[i] = printValue(item)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case map[string]interface{}:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, len(keys))
		for i, k := range keys {
			parts[i] = fmt.Sprintf("%s: %s", k, printValue(val[k]))
		}
		return "{" + strings.Join(parts, ", ") + "}"
	default:
		return fmt.Sprintf("%v", val)
	}
}
