package tree

// CompareFunc orders map keys.
type CompareFunc func(a, b *Tree) int

type mapBody struct {
	root *mapEl
	n    int
	cmp  CompareFunc
}

// mapEl is a node of an AVL tree.
type mapEl struct {
	key    *Tree
	value  *Tree
	left   *mapEl
	right  *mapEl
	height int
}

func height(el *mapEl) int {
	if el == nil {
		return 0
	}
	return el.height
}

func (el *mapEl) fix() {
	el.height = 1 + max(height(el.left), height(el.right))
}

func (el *mapEl) balance() int {
	return height(el.left) - height(el.right)
}

func rotateRight(el *mapEl) *mapEl {
	l := el.left
	el.left = l.right
	l.right = el
	el.fix()
	l.fix()
	return l
}

func rotateLeft(el *mapEl) *mapEl {
	r := el.right
	el.right = r.left
	r.left = el
	el.fix()
	r.fix()
	return r
}

func rebalance(el *mapEl) *mapEl {
	el.fix()
	switch b := el.balance(); {
	case b > 1:
		if el.left.balance() < 0 {
			el.left = rotateLeft(el.left)
		}
		return rotateRight(el)
	case b < -1:
		if el.right.balance() > 0 {
			el.right = rotateRight(el.right)
		}
		return rotateLeft(el)
	}
	return el
}

func (m *mapBody) find(key *Tree) *mapEl {
	el := m.root
	for el != nil {
		switch c := m.cmp(key, el.key); {
		case c < 0:
			el = el.left
		case c > 0:
			el = el.right
		default:
			return el
		}
	}
	return nil
}

func (m *mapBody) insert(el, n *mapEl) *mapEl {
	if el == nil {
		return n
	}
	if m.cmp(n.key, el.key) < 0 {
		el.left = m.insert(el.left, n)
	} else {
		el.right = m.insert(el.right, n)
	}
	return rebalance(el)
}

func removeMin(el *mapEl) (*mapEl, *mapEl) {
	if el.left == nil {
		return el.right, el
	}
	var first *mapEl
	el.left, first = removeMin(el.left)
	return rebalance(el), first
}

func (m *mapBody) remove(el *mapEl, key *Tree) (*mapEl, *mapEl) {
	if el == nil {
		return nil, nil
	}
	var gone *mapEl
	switch c := m.cmp(key, el.key); {
	case c < 0:
		el.left, gone = m.remove(el.left, key)
	case c > 0:
		el.right, gone = m.remove(el.right, key)
	default:
		gone = el
		if el.left == nil {
			return el.right, gone
		}
		if el.right == nil {
			return el.left, gone
		}
		rest, succ := removeMin(el.right)
		succ.left = el.left
		succ.right = rest
		return rebalance(succ), gone
	}
	if gone == nil {
		return el, nil
	}
	return rebalance(el), gone
}

// each visits elements in key order until fn returns false.
func (m *mapBody) each(fn func(el *mapEl) bool) {
	var stack []*mapEl
	el := m.root
	for el != nil || len(stack) > 0 {
		for el != nil {
			stack = append(stack, el)
			el = el.left
		}
		el = stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if !fn(el) {
			return
		}
		el = el.right
	}
}

func (m *mapBody) copy() *mapBody {
	c := &mapBody{n: m.n, cmp: m.cmp}
	if m.root == nil {
		return c
	}
	type pair struct{ from, to *mapEl }
	c.root = &mapEl{}
	stack := []pair{{m.root, c.root}}
	for len(stack) > 0 {
		p := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		*p.to = mapEl{key: p.from.key, value: p.from.value, height: p.from.height}
		if p.from.left != nil {
			p.to.left = &mapEl{}
			stack = append(stack, pair{p.from.left, p.to.left})
		}
		if p.from.right != nil {
			p.to.right = &mapEl{}
			stack = append(stack, pair{p.from.right, p.to.right})
		}
	}
	return c
}

// NewMap returns an empty map ordered by cmp. A nil cmp orders keys with
// Compare.
func (s *Store) NewMap(cmp CompareFunc) *Tree {
	if cmp == nil {
		cmp = Compare
	}
	t := s.alloc(KindMap, 0)
	t.m = &mapBody{cmp: cmp}
	return t
}

func checkMap(op string, m *Tree) {
	if m == nil || m.Kind != KindMap {
		violate(op, m, "not a map")
	}
}

// MapLen reports the number of entries.
func MapLen(m *Tree) int {
	checkMap("map len", m)
	return m.m.n
}

// MapFind returns the value stored under key without taking a reference.
func MapFind(m, key *Tree) *Tree {
	checkMap("map find", m)
	if el := m.m.find(key); el != nil {
		return el.value
	}
	return nil
}

// MapEach visits entries in key order until fn returns false.
func MapEach(m *Tree, fn func(key, value *Tree) bool) {
	checkMap("map each", m)
	m.m.each(func(el *mapEl) bool {
		return fn(el.key, el.value)
	})
}

// MapInsert adds key and value unless key is present. It reports whether
// the entry was added and returns the map that now holds it. The map takes
// its own references.
func (s *Store) MapInsert(m, key, value *Tree) (*Tree, bool) {
	checkMap("map insert", m)
	if m.m.find(key) != nil {
		return m, false
	}
	m = s.Split(m)
	s.Upref(key)
	s.Upref(value)
	m.m.root = m.m.insert(m.m.root, &mapEl{key: key, value: value, height: 1})
	m.m.n++
	return m, true
}

// MapStore sets the value of key, adding the entry if needed. The previous
// value, if any, is handed to the caller with its reference.
func (s *Store) MapStore(m, key, value *Tree) (*Tree, *Tree) {
	checkMap("map store", m)
	if m.m.find(key) == nil {
		m, _ = s.MapInsert(m, key, value)
		return m, nil
	}
	m = s.Split(m)
	el := m.m.find(key)
	s.Upref(value)
	old := el.value
	el.value = value
	return m, old
}

// MapRemove deletes key. The removed key and value are handed to the
// caller with their references; both are nil when key was absent.
func (s *Store) MapRemove(m, key *Tree) (*Tree, *Tree, *Tree) {
	checkMap("map remove", m)
	if m.m.find(key) == nil {
		return m, nil, nil
	}
	m = s.Split(m)
	var gone *mapEl
	m.m.root, gone = m.m.remove(m.m.root, key)
	m.m.n--
	return m, gone.key, gone.value
}
