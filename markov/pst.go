// ABOUTME: Probabilistic suffix tree for history-suffix to state lookup
// ABOUTME: Also drives variable-order model learning from symbol sequences

package markov

// pstNode is a node of the suffix tree. Children are keyed by the symbol
// immediately preceding the node's suffix, so walking a history backwards
// finds the longest stored suffix in O(len(label)).
type pstNode struct {
	children map[Symbol]*pstNode
	// terminal marks suffixes that name a state
	terminal bool
	label    Label
	count    int
}

func newPSTNode() *pstNode {
	return &pstNode{children: make(map[Symbol]*pstNode)}
}

// addLeaf registers a state label in the tree.
func (n *pstNode) addLeaf(l Label) {
	node := n
	for i := len(l) - 1; i >= 0; i-- {
		sym := l[i]

		child, ok := node.children[sym]
		if !ok {
			child = newPSTNode()
			node.children[sym] = child
		}

		node = child
	}

	node.terminal = true
	node.label = l
}

// longestSuffix returns the longest stored label that is a suffix of the
// history, or nil when no suffix matches.
func (n *pstNode) longestSuffix(history []Symbol) Label {
	var best Label

	node := n
	for i := len(history) - 1; i >= 0; i-- {
		child, ok := node.children[history[i]]
		if !ok {
			break
		}

		node = child
		if node.terminal {
			best = node.label
		}
	}

	return best
}

// countingNode accumulates context statistics during learning.
type countingNode struct {
	children map[Symbol]*countingNode
	// next counts symbols observed after this context
	next  map[Symbol]int
	total int
	ctx   Label
}

func newCountingNode(ctx Label) *countingNode {
	return &countingNode{
		children: make(map[Symbol]*countingNode),
		next:     make(map[Symbol]int),
		ctx:      ctx,
	}
}

// prob returns the conditional probability of sym after this context.
func (c *countingNode) prob(sym Symbol) float64 {
	if c.total == 0 {
		return 0
	}

	return float64(c.next[sym]) / float64(c.total)
}

// buildCounts walks the sample once and, at each position, records the next
// symbol under every context length up to the bound.
func buildCounts(sample []Symbol, bound int) *countingNode {
	root := newCountingNode(nil)

	for i := range sample {
		// register the next-symbol observation for every context length
		// ending just before position i
		for order := 0; order <= bound && order <= i; order++ {
			ctx := sample[i-order : i]

			node := root
			for j := len(ctx) - 1; j >= 0; j-- {
				sym := ctx[j]

				child, ok := node.children[sym]
				if !ok {
					child = newCountingNode(append(Label{}, ctx[j:]...))
					node.children[sym] = child
				}

				node = child
			}

			node.next[sample[i]]++
			node.total++
		}
	}

	return root
}
