// Package configio loads and saves a MachineConfig as YAML (spec.md §2
// AMBIENT STACK "Configuration"), so a machine definition can be authored
// as data instead of Go code. Implementations (actions/guards/delays/
// invocation logic) are never part of the document: only symbolic string
// references travel through YAML, resolved later via Machine.Provide.
//
// Grounded on the teacher's MachineConfig/StateConfig `yaml:` struct tags
// (internal/primitives/machineconfig.go, internal/primitives/stateconfig.go),
// here made load-bearing end to end via gopkg.in/yaml.v3 instead of staying
// decorative.
package configio

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/kestrelhq/statecraft/internal/model"
)

// document is the on-disk shape of a MachineConfig.
type document struct {
	ID      string   `yaml:"id"`
	Context any      `yaml:"context,omitempty"`
	Root    stateDoc `yaml:"root"`
}

type stateDoc struct {
	ID            string              `yaml:"id"`
	Kind          string              `yaml:"kind"`
	Initial       string              `yaml:"initial,omitempty"`
	History       string              `yaml:"history,omitempty"`
	HistoryTarget string              `yaml:"historyTarget,omitempty"`
	On            map[string][]transDoc `yaml:"on,omitempty"`
	Always        []transDoc          `yaml:"always,omitempty"`
	After         map[string][]transDoc `yaml:"after,omitempty"`
	Entry         []string            `yaml:"entry,omitempty"`
	Exit          []string            `yaml:"exit,omitempty"`
	Invoke        []invokeDoc         `yaml:"invoke,omitempty"`
	States        []stateDoc          `yaml:"states,omitempty"`
}

type transDoc struct {
	Target  string   `yaml:"target,omitempty"`
	Guard   string   `yaml:"guard,omitempty"`
	Actions []string `yaml:"actions,omitempty"`
}

type invokeDoc struct {
	ID      string    `yaml:"id"`
	Src     string    `yaml:"src"`
	Input   any       `yaml:"input,omitempty"`
	OnDone  *transDoc `yaml:"onDone,omitempty"`
	OnError *transDoc `yaml:"onError,omitempty"`
}

// Marshal renders config as YAML. Any Entry/Exit/Guard/Actions/Invoke.Src
// reference that is not already a string (a symbolic name) is rejected:
// only named, re-resolvable implementations survive a round trip.
func Marshal(config *model.MachineConfig) ([]byte, error) {
	doc := document{ID: config.ID, Context: config.Context}
	root, err := stateToDoc(config.Root)
	if err != nil {
		return nil, err
	}
	doc.Root = root
	return yaml.Marshal(doc)
}

// Unmarshal parses data into a MachineConfig whose Entry/Exit/Guard/
// Actions/Invoke.Src fields are all symbolic string references, ready for
// machinedef.Build once the caller supplies matching Implementations.
func Unmarshal(data []byte) (*model.MachineConfig, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("configio: parse yaml: %w", err)
	}
	return &model.MachineConfig{
		ID:      doc.ID,
		Context: doc.Context,
		Root:    docToState(doc.Root),
	}, nil
}

func stateToDoc(n *model.StateNode) (stateDoc, error) {
	if n == nil {
		return stateDoc{}, fmt.Errorf("configio: nil state node")
	}
	doc := stateDoc{
		ID:            n.ID,
		Kind:          string(n.Kind),
		Initial:       n.Initial,
		HistoryTarget: n.HistoryTarget,
	}
	if n.Kind == model.History {
		doc.History = string(n.HistoryFlavor)
	}

	entry, err := refsToNames(n.Entry)
	if err != nil {
		return stateDoc{}, fmt.Errorf("configio: state %q entry: %w", n.ID, err)
	}
	doc.Entry = entry

	exit, err := refsToNames(n.Exit)
	if err != nil {
		return stateDoc{}, fmt.Errorf("configio: state %q exit: %w", n.ID, err)
	}
	doc.Exit = exit

	if len(n.On) > 0 {
		doc.On = make(map[string][]transDoc, len(n.On))
		for eventType, transitions := range n.On {
			tds, err := transitionsToDocs(transitions)
			if err != nil {
				return stateDoc{}, fmt.Errorf("configio: state %q on %q: %w", n.ID, eventType, err)
			}
			doc.On[eventType] = tds
		}
	}
	if len(n.Always) > 0 {
		tds, err := transitionsToDocs(n.Always)
		if err != nil {
			return stateDoc{}, fmt.Errorf("configio: state %q always: %w", n.ID, err)
		}
		doc.Always = tds
	}
	if len(n.After) > 0 {
		doc.After = make(map[string][]transDoc, len(n.After))
		for key, transitions := range n.After {
			tds, err := transitionsToDocs(transitions)
			if err != nil {
				return stateDoc{}, fmt.Errorf("configio: state %q after %q: %w", n.ID, key, err)
			}
			doc.After[key] = tds
		}
	}

	for _, inv := range n.Invoke {
		src, ok := inv.Src.(string)
		if !ok {
			return stateDoc{}, fmt.Errorf("configio: state %q invoke %q: src is not a named reference", n.ID, inv.ID)
		}
		id := invokeDoc{ID: inv.ID, Src: src, Input: inv.Input}
		if inv.OnDone != nil {
			td, err := transitionToDoc(*inv.OnDone)
			if err != nil {
				return stateDoc{}, fmt.Errorf("configio: state %q invoke %q onDone: %w", n.ID, inv.ID, err)
			}
			id.OnDone = &td
		}
		if inv.OnError != nil {
			td, err := transitionToDoc(*inv.OnError)
			if err != nil {
				return stateDoc{}, fmt.Errorf("configio: state %q invoke %q onError: %w", n.ID, inv.ID, err)
			}
			id.OnError = &td
		}
		doc.Invoke = append(doc.Invoke, id)
	}

	for _, child := range n.Children {
		childDoc, err := stateToDoc(child)
		if err != nil {
			return stateDoc{}, err
		}
		doc.States = append(doc.States, childDoc)
	}
	return doc, nil
}

func docToState(d stateDoc) *model.StateNode {
	n := &model.StateNode{
		ID:            d.ID,
		Kind:          model.Kind(d.Kind),
		Initial:       d.Initial,
		HistoryFlavor: model.HistoryFlavor(d.History),
		HistoryTarget: d.HistoryTarget,
		Entry:         namesToRefs(d.Entry),
		Exit:          namesToRefs(d.Exit),
	}
	if len(d.On) > 0 {
		n.On = make(map[string][]model.TransitionConfig, len(d.On))
		for eventType, tds := range d.On {
			n.On[eventType] = docsToTransitions(tds)
		}
	}
	if len(d.Always) > 0 {
		n.Always = docsToTransitions(d.Always)
	}
	if len(d.After) > 0 {
		n.After = make(map[string][]model.TransitionConfig, len(d.After))
		for key, tds := range d.After {
			n.After[key] = docsToTransitions(tds)
		}
	}
	for _, id := range d.Invoke {
		inv := model.InvokeConfig{ID: id.ID, Src: id.Src, Input: id.Input}
		if id.OnDone != nil {
			t := docToTransition(*id.OnDone)
			inv.OnDone = &t
		}
		if id.OnError != nil {
			t := docToTransition(*id.OnError)
			inv.OnError = &t
		}
		n.Invoke = append(n.Invoke, inv)
	}
	for _, child := range d.States {
		n.Children = append(n.Children, docToState(child))
	}
	return n
}

func transitionsToDocs(ts []model.TransitionConfig) ([]transDoc, error) {
	out := make([]transDoc, 0, len(ts))
	for _, t := range ts {
		td, err := transitionToDoc(t)
		if err != nil {
			return nil, err
		}
		out = append(out, td)
	}
	return out, nil
}

func transitionToDoc(t model.TransitionConfig) (transDoc, error) {
	td := transDoc{Target: t.Target}
	if t.Guard != nil {
		name, ok := t.Guard.(string)
		if !ok {
			return transDoc{}, fmt.Errorf("guard is not a named reference")
		}
		td.Guard = name
	}
	actions, err := refsToNames(t.Actions)
	if err != nil {
		return transDoc{}, err
	}
	td.Actions = actions
	return td, nil
}

func docsToTransitions(tds []transDoc) []model.TransitionConfig {
	out := make([]model.TransitionConfig, 0, len(tds))
	for _, td := range tds {
		out = append(out, docToTransition(td))
	}
	return out
}

func docToTransition(td transDoc) model.TransitionConfig {
	t := model.TransitionConfig{Target: td.Target, Actions: namesToRefs(td.Actions)}
	if td.Guard != "" {
		t.Guard = td.Guard
	}
	return t
}

func refsToNames(refs []model.ActionRef) ([]string, error) {
	if len(refs) == 0 {
		return nil, nil
	}
	names := make([]string, 0, len(refs))
	for _, ref := range refs {
		name, ok := ref.(string)
		if !ok {
			return nil, fmt.Errorf("action/guard reference is not a named reference (got %T)", ref)
		}
		names = append(names, name)
	}
	return names, nil
}

func namesToRefs(names []string) []model.ActionRef {
	if len(names) == 0 {
		return nil
	}
	refs := make([]model.ActionRef, 0, len(names))
	for _, name := range names {
		refs = append(refs, name)
	}
	return refs
}
