package tree

import "bytes"

// Compare orders trees structurally: by kind, id, text, then children in
// order. Ignore lists and attributes are not compared.
func Compare(a, b *Tree) int {
	type pair struct{ a, b *Tree }
	stack := []pair{{a, b}}
	for len(stack) > 0 {
		p := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if c := compareHeader(p.a, p.b); c != 0 {
			return c
		}
		if p.a == nil || p.a == p.b {
			continue
		}

		as, bs := elements(p.a), elements(p.b)
		if len(as) != len(bs) {
			if len(as) < len(bs) {
				return -1
			}
			return 1
		}
		for i := len(as) - 1; i >= 0; i-- {
			stack = append(stack, pair{as[i], bs[i]})
		}
	}
	return 0
}

func compareHeader(a, b *Tree) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	case a.Kind != b.Kind:
		return cmpInt(int(a.Kind), int(b.Kind))
	case a.ID != b.ID:
		return cmpInt(a.ID, b.ID)
	}
	var at, bt []byte
	if a.Text != nil {
		at = a.Text.Data
	}
	if b.Text != nil {
		bt = b.Text.Data
	}
	return bytes.Compare(at, bt)
}

func elements(t *Tree) []*Tree {
	switch t.Kind {
	case KindList:
		return ListValues(t)
	case KindMap:
		var out []*Tree
		MapEach(t, func(k, v *Tree) bool {
			out = append(out, k, v)
			return true
		})
		return out
	case KindIgnore:
		return t.IgnoreTokens()
	case KindString:
		return nil
	}
	return t.Children()
}

func cmpInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
