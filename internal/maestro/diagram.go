package maestro

import "fmt"

// NodeType categorises a diagram node.
type NodeType string

const (
	NodeUser      NodeType = "user"
	NodeAgent     NodeType = "agent"
	NodeContainer NodeType = "container"
	NodeDatabase  NodeType = "database"
	NodeExternal  NodeType = "external"
	NodeService   NodeType = "service"
)

// Node is one component of the architecture graph.
type Node struct {
	ID    string   `json:"id"`
	Label string   `json:"label"`
	Type  NodeType `json:"type"`
}

// Link is a directed relationship between two nodes.
type Link struct {
	Source string `json:"source"`
	Target string `json:"target"`
	Label  string `json:"label,omitempty"`
}

// Diagram is the architecture graph of a system.
type Diagram struct {
	Nodes []Node `json:"nodes"`
	Links []Link `json:"links"`
}

func validNodeType(t NodeType) bool {
	switch t {
	case NodeUser, NodeAgent, NodeContainer, NodeDatabase, NodeExternal, NodeService:
		return true
	}
	return false
}

// Clean drops nodes with an empty id, an unknown type or a repeated id
// (first wins), then drops links whose ends are not nodes. It reports what
// was removed.
func (d *Diagram) Clean() []string {
	var dropped []string
	seen := make(map[string]bool, len(d.Nodes))
	nodes := d.Nodes[:0]
	for _, n := range d.Nodes {
		switch {
		case n.ID == "":
			dropped = append(dropped, fmt.Sprintf("node %q without id", n.Label))
		case !validNodeType(n.Type):
			dropped = append(dropped, fmt.Sprintf("node %s with type %q", n.ID, n.Type))
		case seen[n.ID]:
			dropped = append(dropped, fmt.Sprintf("duplicate node %s", n.ID))
		default:
			seen[n.ID] = true
			nodes = append(nodes, n)
		}
	}
	d.Nodes = nodes

	links := d.Links[:0]
	for _, l := range d.Links {
		if seen[l.Source] && seen[l.Target] {
			links = append(links, l)
			continue
		}
		dropped = append(dropped, fmt.Sprintf("link %s -> %s", l.Source, l.Target))
	}
	d.Links = links
	if d.Nodes == nil {
		d.Nodes = []Node{}
	}
	if d.Links == nil {
		d.Links = []Link{}
	}
	return dropped
}
