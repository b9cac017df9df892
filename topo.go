package flowmon

// topo.go verifies the experiment topology before any traffic is
// installed.  The approach converts the platform's device connectivity
// into the data structures of a graph package with built-in path
// discovery, weights every edge by 1, and checks that a shortest path
// exists between every pair of endpoints.  On the single shared network
// this amounts to every endpoint reaching the hub vertex, but the check
// is written over the graph so it keeps working if topologies grow.

import (
	"fmt"
	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/path"
	"gonum.org/v1/gonum/graph/simple"
	"math"
	"strings"
)

// buildConnGraph returns a graph.Graph built from the platform's
// representation: one vertex per endpoint, one vertex for the shared
// network, an edge between each endpoint and the network it faces
func buildConnGraph(np *NetPlatform) graph.Graph {
	connGraph := simple.NewWeightedUndirectedGraph(0, math.Inf(1))

	hub := simple.Node(np.net.number)
	for _, endpt := range np.net.netEndpts {
		weightedEdge := simple.WeightedEdge{F: simple.Node(endpt.endptID), T: hub, W: 1.0}
		connGraph.SetWeightedEdge(weightedEdge)
	}

	return connGraph
}

// CheckConnections confirms that every endpoint can reach every other
// endpoint through the connection graph.  A partitioned topology is a
// configuration defect, reported with the names of the unreachable pairs
func CheckConnections(np *NetPlatform) error {
	if len(np.net.netEndpts) == 0 {
		return &ConfigurationError{Field: "numnodes", Msg: "no endpoints attached to the network"}
	}

	connGraph := buildConnGraph(np)

	// a tree of shortest paths from one endpoint covers reachability to all
	// others, since the graph is undirected
	root := np.net.netEndpts[0]
	spTree := path.DijkstraFrom(simple.Node(root.endptID), connGraph)

	missed := []string{}
	for _, endpt := range np.net.netEndpts[1:] {
		if nodes, _ := spTree.To(int64(endpt.endptID)); len(nodes) == 0 {
			missed = append(missed, endpt.endptName)
		}
	}

	if len(missed) > 0 {
		return &ConfigurationError{Field: "topology",
			Msg: fmt.Sprintf("missing paths from %s to %s", root.endptName, strings.Join(missed, ","))}
	}

	return nil
}
