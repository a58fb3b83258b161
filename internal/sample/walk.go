package sample

import "log"

// MaxDepth bounds traversal depth. Engine-produced trees are acyclic
// and shallow in practice; anything deeper is treated as pathological
// and its subtree is skipped rather than risking a stack overflow.
const MaxDepth = 128

// Walk visits root and every descendant in pre-order, matching the
// child ordering of each node, and calls fn once per node with the
// node's parent label. The root is visited with an empty parent label.
//
// Emission order is an observable contract: documents are indexed in
// visit order.
func Walk(root *Result, fn func(Record)) {
	if root == nil {
		return
	}
	walk(root, "", 0, fn)
}

func walk(r *Result, parentLabel string, depth int, fn func(Record)) {
	if depth >= MaxDepth {
		log.Printf("sample tree exceeds depth %d at %q; skipping subtree", MaxDepth, r.Label)
		return
	}
	fn(Record{Result: r, ParentLabel: parentLabel})
	for _, child := range r.Children {
		if child == nil {
			continue
		}
		walk(child, r.Label, depth+1, fn)
	}
}
