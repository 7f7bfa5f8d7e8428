package keymap

import (
	"slices"

	"github.com/charmbracelet/bubbles/key"
)

// Resolver maps key strings to actions and exposes the bindings in the
// form bubbles/help renders.
type Resolver struct {
	actions map[string]Action
	help    map[Action]key.Binding
	order   []Action
}

// NewResolver creates a resolver from bindings. A key bound twice resolves
// to its last binding. An action bound in several contexts keeps the
// description of its first binding.
func NewResolver(bindings []Binding) *Resolver {
	r := &Resolver{
		actions: make(map[string]Action),
		help:    make(map[Action]key.Binding),
	}
	keys := make(map[Action][]string)
	desc := make(map[Action]string)
	for _, b := range bindings {
		for _, k := range b.Keys {
			r.actions[k] = b.Action
		}
		if _, ok := desc[b.Action]; !ok {
			desc[b.Action] = b.Description
			r.order = append(r.order, b.Action)
		}
		for _, k := range b.Keys {
			if !slices.Contains(keys[b.Action], k) {
				keys[b.Action] = append(keys[b.Action], k)
			}
		}
	}
	for _, a := range r.order {
		r.help[a] = key.NewBinding(
			key.WithKeys(keys[a]...),
			key.WithHelp(helpLabel(keys[a]), desc[a]),
		)
	}
	return r
}

// Default returns a resolver for Bindings.
func Default() *Resolver {
	return NewResolver(Bindings)
}

// Resolve returns the action for a key, or empty string if not bound.
func (r *Resolver) Resolve(k string) Action {
	return r.actions[k]
}

// KeysFor returns the keys bound to an action in binding order.
func (r *Resolver) KeysFor(action Action) []string {
	b, ok := r.help[action]
	if !ok {
		return nil
	}
	return b.Keys()
}

// Binding returns the help binding for action. The zero binding is
// returned for unbound actions and renders nothing.
func (r *Resolver) Binding(action Action) key.Binding {
	return r.help[action]
}

// BindingsFor returns help bindings for the given actions, skipping
// unbound ones.
func (r *Resolver) BindingsFor(actions ...Action) []key.Binding {
	out := make([]key.Binding, 0, len(actions))
	for _, a := range actions {
		if b, ok := r.help[a]; ok {
			out = append(out, b)
		}
	}
	return out
}

// helpLabel shows at most the first two keys, e.g. "n/pgdown".
func helpLabel(keys []string) string {
	if len(keys) == 0 {
		return ""
	}
	label := DisplayKey(keys[0])
	if len(keys) > 1 {
		label += "/" + DisplayKey(keys[1])
	}
	return label
}
