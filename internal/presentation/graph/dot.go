package graph

import (
	"fmt"
	"strconv"

	"github.com/aretw0/fsmsim/pkg/domain"
	"github.com/awalterschulze/gographviz"
)

// GenerateDOT produces a Graphviz digraph for a machine. Each superstate is
// drawn together with its nested machine inside a "cluster_" subgraph; initial
// states get a point-shaped entry marker and final states a double border.
func GenerateDOT(m domain.Machine, overlay *GraphOverlay) (string, error) {
	g := gographviz.NewGraph()
	name := "fsm"
	if m.Name != "" {
		name = sanitizeID(m.Name)
	}
	if err := g.SetName(name); err != nil {
		return "", err
	}
	if err := g.SetDir(true); err != nil {
		return "", err
	}
	if err := g.AddAttr(name, "rankdir", "LR"); err != nil {
		return "", err
	}

	d := &dotBuilder{g: g, active: map[string]bool{}, breakpoints: map[string]bool{}}
	if overlay != nil {
		prefix := ""
		for _, state := range overlay.ActivePath {
			id := stateID(prefix, state)
			d.active[id] = true
			prefix = id
		}
		for _, state := range overlay.Breakpoints {
			d.breakpoints[state] = true
		}
	}
	if len(m.States) == 0 {
		return g.String(), nil
	}
	if err := d.level(name, m.States, m.Transitions, ""); err != nil {
		return "", err
	}
	return g.String(), nil
}

type dotBuilder struct {
	g           *gographviz.Graph
	active      map[string]bool
	breakpoints map[string]bool
}

func (d *dotBuilder) level(parent string, states []domain.StateDef, transitions []domain.TransitionDef, prefix string) error {
	ids := make(map[string]string, len(states))
	initial := ""

	for _, st := range states {
		id := stateID(prefix, st.Name)
		ids[st.Name] = id
		graph := parent

		sub, isSuper := st.Sub()
		if isSuper {
			graph = "cluster_" + id
			if err := d.g.AddSubGraph(parent, graph, map[string]string{
				"label": strconv.Quote(st.Name),
				"style": "rounded",
			}); err != nil {
				return err
			}
		}
		if err := d.g.AddNode(graph, id, d.nodeAttrs(id, st)); err != nil {
			return err
		}
		if isSuper {
			if err := d.level(graph, sub.States, sub.Transitions, id); err != nil {
				return err
			}
		}
		if st.IsInitial && initial == "" {
			initial = id
		}
	}
	if initial == "" {
		initial = ids[states[0].Name]
	}

	start := initial + "__start"
	if err := d.g.AddNode(parent, start, map[string]string{
		"shape": "point",
		"label": `""`,
	}); err != nil {
		return err
	}
	if err := d.g.AddEdge(start, initial, true, nil); err != nil {
		return err
	}

	for _, t := range transitions {
		src, okSrc := ids[t.Source]
		dst, okDst := ids[t.Target]
		if !okSrc || !okDst {
			continue
		}
		attrs := map[string]string{}
		if label := transitionLabel(t); label != "" {
			attrs["label"] = strconv.Quote(label)
		}
		if t.Event == "" {
			attrs["style"] = "dashed"
		}
		if err := d.g.AddEdge(src, dst, true, attrs); err != nil {
			return fmt.Errorf("edge %s -> %s: %w", t.Source, t.Target, err)
		}
	}
	return nil
}

func (d *dotBuilder) nodeAttrs(id string, st domain.StateDef) map[string]string {
	label := st.Name
	for _, line := range actionLines(st) {
		label += "\n" + line
	}
	attrs := map[string]string{
		"label": strconv.Quote(label),
		"shape": "box",
		"style": `"rounded"`,
	}
	if st.IsFinal {
		attrs["peripheries"] = "2"
	}
	if d.active[id] {
		attrs["style"] = `"rounded,filled"`
		attrs["fillcolor"] = `"#ffeb3b"`
	}
	if d.breakpoints[st.Name] {
		attrs["color"] = `"#d32f2f"`
		attrs["penwidth"] = "2"
	}
	return attrs
}
