package dag

import (
	"strings"
	"testing"

	"github.com/HORNET-Storage/dht-hop-tracer/trace"
)

func parseEvents(t *testing.T, lines ...string) []trace.Event {
	t.Helper()

	events, err := trace.ParseAll(strings.NewReader(strings.Join(lines, "\n")))
	if err != nil {
		t.Fatalf("Failed to parse trace: %v", err)
	}
	return events
}

func ids(f *Forest, list []NodeIndex) []string {
	out := make([]string, 0, len(list))
	for _, index := range list {
		out = append(out, f.Nodes[index].ID)
	}
	return out
}

func TestEndToEndScenario(t *testing.T) {
	forest := Build(parseEvents(t,
		"0: querying provider record for cid QmRoot",
		"1: Qm1 says use QmX QmY",
		"2: querying provider record for cid QmX",
		"3: provider: QmProv1",
	))

	if got := ids(forest, forest.Roots); strings.Join(got, ",") != "QmRoot" {
		t.Fatalf("Expected single root QmRoot, got %v", got)
	}

	root := forest.Nodes[forest.Roots[0]]
	if got := ids(forest, root.Answers); strings.Join(got, ",") != "QmX,QmY" {
		t.Errorf("Expected root answers [QmX QmY], got %v", got)
	}
	if got := ids(forest, root.Children); strings.Join(got, ",") != "QmX" {
		t.Errorf("Expected root children [QmX], got %v", got)
	}

	x, ok := forest.FindQuery("QmX")
	if !ok {
		t.Fatalf("Expected query QmX in forest")
	}
	if got := ids(forest, forest.Nodes[x].Parents); strings.Join(got, ",") != "QmRoot" {
		t.Errorf("Expected QmX parents [QmRoot], got %v", got)
	}

	if _, ok := forest.FindResponse("QmX"); !ok {
		t.Errorf("Expected QmX to also exist as a response")
	}

	if got := forest.ProviderIDs(); strings.Join(got, ",") != "QmProv1" {
		t.Errorf("Expected providers [QmProv1], got %v", got)
	}
}

func TestResponseDeduplication(t *testing.T) {
	forest := Build(parseEvents(t,
		"0: querying QmA",
		"1: querying QmB",
		"2: QmA says use QmShared",
		"3: QmB says use QmShared QmOther",
		"4: QmA says use QmShared",
	))

	if len(forest.Responses) != 2 {
		t.Fatalf("Expected 2 distinct responses, got %d", len(forest.Responses))
	}

	shared, ok := forest.FindResponse("QmShared")
	if !ok {
		t.Fatalf("Expected QmShared response")
	}

	if got := ids(forest, forest.Nodes[shared].Parents); strings.Join(got, ",") != "QmA,QmB" {
		t.Errorf("Expected QmShared parents [QmA QmB] in first-seen order, got %v", got)
	}

	a, _ := forest.FindQuery("QmA")
	if got := ids(forest, forest.Nodes[a].Answers); strings.Join(got, ",") != "QmShared" {
		t.Errorf("Expected QmA answers [QmShared], got %v", got)
	}
}

func TestRootDependsOnOrder(t *testing.T) {
	tests := []struct {
		name  string
		lines []string
		roots string
	}{
		{
			name: "answer_before_query",
			lines: []string{
				"0: querying QmA",
				"1: QmA says use QmB",
				"2: querying QmB",
			},
			roots: "QmA",
		},
		{
			name: "query_before_answer",
			lines: []string{
				"0: querying QmA",
				"1: querying QmB",
				"2: QmA says use QmB",
			},
			roots: "QmA,QmB",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			forest := Build(parseEvents(t, tt.lines...))
			if got := strings.Join(ids(forest, forest.Roots), ","); got != tt.roots {
				t.Errorf("Expected roots %s, got %s", tt.roots, got)
			}
		})
	}
}

func TestMultipleParents(t *testing.T) {
	forest := Build(parseEvents(t,
		"0: querying QmA",
		"1: querying QmR",
		"2: QmR says use QmB",
		"3: querying QmB",
		"4: QmA says use QmC",
		"5: QmB says use QmC",
		"6: querying QmC",
	))

	c, ok := forest.FindQuery("QmC")
	if !ok {
		t.Fatalf("Expected query QmC")
	}

	if got := ids(forest, forest.Nodes[c].Parents); strings.Join(got, ",") != "QmA,QmB" {
		t.Errorf("Expected QmC parents [QmA QmB], got %v", got)
	}

	if got := ids(forest, forest.Roots); strings.Join(got, ",") != "QmA,QmR" {
		t.Errorf("Expected roots [QmA QmR], got %v", got)
	}

	for _, parent := range []string{"QmA", "QmB"} {
		p, _ := forest.FindQuery(parent)
		count := 0
		for _, child := range forest.Nodes[p].Children {
			if child == c {
				count++
			}
		}
		if count != 1 {
			t.Errorf("Expected QmC once under %s, got %d", parent, count)
		}
	}
}

func TestUnknownOrigin(t *testing.T) {
	lines := []string{
		"0: QmGhost says use QmA",
		"1: querying QmRoot",
		"2: QmStranger says use QmB",
	}

	t.Run("fallback", func(t *testing.T) {
		forest := Build(parseEvents(t, lines...))
		if forest.Dropped != 1 {
			t.Errorf("Expected the response before any query to be dropped, got %d", forest.Dropped)
		}
		root, _ := forest.FindQuery("QmRoot")
		if got := ids(forest, forest.Nodes[root].Answers); strings.Join(got, ",") != "QmB" {
			t.Errorf("Expected QmRoot answers [QmB], got %v", got)
		}
	})

	t.Run("strict", func(t *testing.T) {
		forest := Build(parseEvents(t, lines...), WithStrictOrigins())
		if forest.Dropped != 2 {
			t.Errorf("Expected 2 dropped responses, got %d", forest.Dropped)
		}
		if len(forest.Responses) != 0 {
			t.Errorf("Expected no responses, got %d", len(forest.Responses))
		}
	})
}

func TestUIDsIncrease(t *testing.T) {
	forest := Build(parseEvents(t,
		"0: querying QmRoot",
		"1: QmRoot says use QmA QmB",
		"2: provider: QmP",
		"3: querying QmA",
	))

	for i := 1; i < len(forest.Nodes); i++ {
		if forest.Nodes[i].UID <= forest.Nodes[i-1].UID {
			t.Fatalf("UID not increasing at node %d", i)
		}
	}
}

func TestIterateQueries(t *testing.T) {
	forest := Build(parseEvents(t,
		"0: querying QmRoot",
		"1: QmRoot says use QmA QmB",
		"2: querying QmA",
		"3: querying QmB",
		"4: QmA says use QmC",
		"5: QmB says use QmC",
		"6: querying QmC",
	))

	var visited []string
	err := forest.IterateQueries(func(query *Node, parent *Node) error {
		visited = append(visited, query.ID)
		return nil
	})
	if err != nil {
		t.Fatalf("Iteration failed: %v", err)
	}

	if got := strings.Join(visited, ","); got != "QmRoot,QmA,QmC,QmB" {
		t.Errorf("Unexpected visit order %s", got)
	}
}

func TestFindResponseWithoutIndex(t *testing.T) {
	built := Build(parseEvents(t,
		"0: querying QmA",
		"1: QmA says use QmB QmC",
	))

	forest := &Forest{
		Nodes:     built.Nodes,
		Roots:     built.Roots,
		Queries:   built.Queries,
		Responses: built.Responses,
	}

	c, ok := forest.FindResponse("QmC")
	if !ok || forest.Nodes[c].ID != "QmC" {
		t.Fatalf("Expected QmC response, got %d %v", c, ok)
	}
	if _, ok := forest.FindResponse("QmA"); ok {
		t.Errorf("Expected no response for the query QmA")
	}
	if forest.responseByID != nil {
		t.Errorf("Lookup should not build an index")
	}
}
