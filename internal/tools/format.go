package tools

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// TableFormatter renders rows of key/value data as a markdown table.
type TableFormatter struct{}

// NewTableFormatter creates the table formatting tool.
func NewTableFormatter() *TableFormatter { return &TableFormatter{} }

func (t *TableFormatter) Name() string       { return "format_table" }
func (t *TableFormatter) Category() Category { return CategoryFormatting }

func (t *TableFormatter) Description() string {
	return "Format data as a markdown table"
}

func (t *TableFormatter) Parameters() []Parameter {
	return []Parameter{
		{Name: "data", Type: "array", Description: "List of objects to format as table rows", Required: true, Items: "object"},
	}
}

// Execute implements Tool. Column order comes from the first row's keys,
// sorted for determinism since JSON objects decode unordered.
func (t *TableFormatter) Execute(_ context.Context, args map[string]any) Result {
	raw, ok := args["data"].([]any)
	if !ok {
		return Failure("format_table: data must be an array of objects")
	}
	if len(raw) == 0 {
		return Success("(empty table)")
	}

	rows := make([]map[string]any, 0, len(raw))
	for i, item := range raw {
		row, ok := item.(map[string]any)
		if !ok {
			return Failure("format_table: row %d is not an object", i)
		}
		rows = append(rows, row)
	}

	headers := make([]string, 0, len(rows[0]))
	for key := range rows[0] {
		headers = append(headers, key)
	}
	sort.Strings(headers)

	var b strings.Builder
	b.WriteString("| " + strings.Join(headers, " | ") + " |\n")
	b.WriteString("| " + strings.Join(repeat("---", len(headers)), " | ") + " |\n")
	for _, row := range rows {
		cells := make([]string, len(headers))
		for i, h := range headers {
			if v, ok := row[h]; ok {
				cells[i] = fmt.Sprintf("%v", v)
			}
		}
		b.WriteString("| " + strings.Join(cells, " | ") + " |\n")
	}
	return Success(b.String())
}

func repeat(s string, n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = s
	}
	return out
}

// ListFormatter renders items as a markdown bullet list.
type ListFormatter struct{}

// NewListFormatter creates the bullet list formatting tool.
func NewListFormatter() *ListFormatter { return &ListFormatter{} }

func (l *ListFormatter) Name() string       { return "format_list" }
func (l *ListFormatter) Category() Category { return CategoryFormatting }

func (l *ListFormatter) Description() string {
	return "Format items as a markdown list, bulleted or numbered"
}

func (l *ListFormatter) Parameters() []Parameter {
	return []Parameter{
		{Name: "items", Type: "array", Description: "List of items to format", Required: true, Items: "string"},
		{Name: "style", Type: "string", Description: "List style: bullet or numbered", Default: "bullet"},
	}
}

// Execute implements Tool.
func (l *ListFormatter) Execute(_ context.Context, args map[string]any) Result {
	raw, ok := args["items"].([]any)
	if !ok {
		return Failure("format_list: items must be an array")
	}
	numbered := stringArg(args, "style", "bullet") == "numbered"
	lines := make([]string, 0, len(raw))
	for i, item := range raw {
		if numbered {
			lines = append(lines, fmt.Sprintf("%d. %v", i+1, item))
		} else {
			lines = append(lines, fmt.Sprintf("- %v", item))
		}
	}
	return Success(strings.Join(lines, "\n"))
}
