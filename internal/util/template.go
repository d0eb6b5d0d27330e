package util

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"text/template"
)

var (
	templateCache sync.Map // source -> *template.Template

	templateFuncs = template.FuncMap{
		"default": func(fallback, v any) any {
			if v == nil || v == "" {
				return fallback
			}
			return v
		},
		"upper": strings.ToUpper,
		"lower": strings.ToLower,
		"json": func(v any) (string, error) {
			b, err := json.Marshal(v)
			return string(b), err
		},
		"join": func(sep string, items []any) string {
			parts := make([]string, len(items))
			for i, item := range items {
				parts[i] = fmt.Sprint(item)
			}
			return strings.Join(parts, sep)
		},
	}
)

// RenderTemplate executes text as a text/template with state as dot. Text
// without actions is returned unchanged. Parsed templates are cached by
// source, instructions being rendered once per model call. Missing keys
// render as empty strings.
func RenderTemplate(text string, state map[string]any) (string, error) {
	if !strings.Contains(text, "{{") {
		return text, nil
	}

	tmpl, err := parseTemplate(text)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	if err := tmpl.Execute(&sb, state); err != nil {
		return "", err
	}

	return strings.ReplaceAll(sb.String(), "<no value>", ""), nil
}

func parseTemplate(text string) (*template.Template, error) {
	if t, ok := templateCache.Load(text); ok {
		return t.(*template.Template), nil
	}

	t, err := template.New("instruction").Funcs(templateFuncs).Parse(text)
	if err != nil {
		return nil, err
	}

	actual, _ := templateCache.LoadOrStore(text, t)

	return actual.(*template.Template), nil
}
