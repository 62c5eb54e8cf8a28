package hooks

import (
	"bytes"
	stderrors "errors"
	"text/template"

	"github.com/rs/zerolog"

	"github.com/coral-mesh/apitrace/internal/config"
	"github.com/coral-mesh/apitrace/internal/errors"
	"github.com/coral-mesh/apitrace/internal/model"
)

// Table holds the rendered snippets of every command, in registration order.
type Table struct {
	prologues map[string][]string
	epilogues map[string][]string
}

// Prologues returns the snippets spliced before the call of name.
func (t *Table) Prologues(name string) []string { return t.prologues[name] }

// Epilogues returns the snippets spliced after the call of name.
func (t *Table) Epilogues(name string) []string { return t.epilogues[name] }

// Apply copies the snippets of cmd into it.
func (t *Table) Apply(cmd *model.Command) {
	cmd.Prologues = t.Prologues(cmd.Name())
	cmd.Epilogues = t.Epilogues(cmd.Name())
}

// snippetData is the template data of a snippet.
type snippetData struct {
	Name     string
	Provider string
}

type hook struct {
	index     int
	functions map[string]bool
	selector  *Selector
	prologue  *template.Template
	epilogue  *template.Template
}

func (h *hook) selects(attrs Attributes) (bool, error) {
	if h.functions[attrs.Name] {
		return true, nil
	}
	if h.selector == nil {
		return false, nil
	}
	return h.selector.Match(attrs)
}

// Build renders the hooks of cfg for commands. Snippets may call
// {{ pointer "clFoo" }} and {{ pointer_type "clFoo" }} for any command in
// commands, and read {{ .Name }} and {{ .Provider }}.
func Build(cfg *config.Config, commands []*model.Command, logger zerolog.Logger) (*Table, error) {
	known := make(map[string]bool, len(commands))
	for _, cmd := range commands {
		known[cmd.Name()] = true
	}

	hooks, err := compileHooks(cfg.Hooks, known)
	if err != nil {
		return nil, err
	}

	t := &Table{
		prologues: make(map[string][]string),
		epilogues: make(map[string][]string),
	}
	for _, cmd := range commands {
		attrs := AttributesOf(cmd)
		data := snippetData{Name: cmd.Name(), Provider: cfg.Provider}
		for _, h := range hooks {
			ok, err := h.selects(attrs)
			if err != nil {
				return nil, err
			}
			if !ok {
				continue
			}
			if h.prologue != nil {
				s, err := render(h.prologue, data)
				if err != nil {
					return nil, err
				}
				t.prologues[cmd.Name()] = append(t.prologues[cmd.Name()], s)
			}
			if h.epilogue != nil {
				s, err := render(h.epilogue, data)
				if err != nil {
					return nil, err
				}
				t.epilogues[cmd.Name()] = append(t.epilogues[cmd.Name()], s)
			}
			logger.Debug().
				Str("function", cmd.Name()).
				Int("hook", h.index).
				Msg("Hook selected")
		}
	}
	return t, nil
}

func compileHooks(entries []config.HookEntry, known map[string]bool) ([]*hook, error) {
	env, err := newEnv()
	if err != nil {
		return nil, err
	}

	funcs := template.FuncMap{
		"pointer": func(name string) (string, error) {
			if !known[name] {
				return "", errors.New(errors.PhaseConfig, errors.KindMissingParameter).
					Function(name).
					Detail("snippet references unknown command").
					Build()
			}
			return name + "_ptr", nil
		},
		"pointer_type": func(name string) (string, error) {
			if !known[name] {
				return "", errors.New(errors.PhaseConfig, errors.KindMissingParameter).
					Function(name).
					Detail("snippet references unknown command").
					Build()
			}
			return name + "_t", nil
		},
	}

	out := make([]*hook, 0, len(entries))
	for i, e := range entries {
		h := &hook{index: i, functions: make(map[string]bool, len(e.Functions))}
		for _, fn := range e.Functions {
			if !known[fn] {
				return nil, errors.New(errors.PhaseConfig, errors.KindMissingParameter).
					Function(fn).
					Field("hooks.functions").
					Detail("hook %d selects unknown command", i).
					Build()
			}
			h.functions[fn] = true
		}
		if e.When != "" {
			if h.selector, err = compile(env, e.When); err != nil {
				return nil, err
			}
		}
		if h.prologue, err = parse(funcs, i, "prologue", e.Prologue); err != nil {
			return nil, err
		}
		if h.epilogue, err = parse(funcs, i, "epilogue", e.Epilogue); err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, nil
}

func parse(funcs template.FuncMap, index int, kind, body string) (*template.Template, error) {
	if body == "" {
		return nil, nil
	}
	tmpl, err := template.New(kind).Funcs(funcs).Option("missingkey=error").Parse(body)
	if err != nil {
		return nil, errors.New(errors.PhaseConfig, errors.KindInvalidConfig).
			Field("hooks." + kind).
			Cause(err).
			Detail("hook %d: invalid snippet", index).
			Build()
	}
	return tmpl, nil
}

func render(tmpl *template.Template, data snippetData) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		var cfgErr *errors.Error
		if stderrors.As(err, &cfgErr) {
			return "", cfgErr
		}
		return "", errors.New(errors.PhaseConfig, errors.KindInvalidConfig).
			Function(data.Name).
			Field("hooks." + tmpl.Name()).
			Cause(err).
			Detail("render snippet").
			Build()
	}
	return buf.String(), nil
}
