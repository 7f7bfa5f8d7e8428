package app

import (
	"github.com/charmbracelet/bubbles/key"

	"github.com/llehouerou/cassette/internal/keymap"
)

var shortHelpActions = []keymap.Action{
	keymap.ActionPlayPause, keymap.ActionStop, keymap.ActionNextTrack,
	keymap.ActionPrevTrack, keymap.ActionSelect, keymap.ActionHelp, keymap.ActionQuit,
}

// helpKeyMap adapts the keymap bindings to bubbles/help.
type helpKeyMap struct {
	short []key.Binding
	full  [][]key.Binding
}

func newHelpKeyMap(r *keymap.Resolver) helpKeyMap {
	h := helpKeyMap{short: r.BindingsFor(shortHelpActions...)}
	for _, context := range []string{"playback", "list", "global"} {
		var actions []keymap.Action
		for _, b := range keymap.ByContext(context) {
			actions = append(actions, b.Action)
		}
		h.full = append(h.full, r.BindingsFor(actions...))
	}
	return h
}

// ShortHelp implements help.KeyMap.
func (h helpKeyMap) ShortHelp() []key.Binding { return h.short }

// FullHelp implements help.KeyMap.
func (h helpKeyMap) FullHelp() [][]key.Binding { return h.full }
