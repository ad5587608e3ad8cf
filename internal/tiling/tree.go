package tiling

import (
	"errors"
	"math"
	"sort"

	"github.com/1broseidon/panewm/internal/platform"
)

// ErrLayoutFull means no template slot has spare capacity.
var ErrLayoutFull = errors.New("layout is full")

// Node is one element of a materialized layout tree.
type Node struct {
	Kind        Kind        `json:"kind"`
	Orientation Orientation `json:"orientation,omitempty"`
	// Proportions has one entry per child of a split and sums to 1.
	Proportions []float64 `json:"proportions,omitempty"`
	Children    []*Node   `json:"children,omitempty"`
	// Window is set on leaves; zero marks an empty root leaf.
	Window platform.WindowID `json:"window,omitempty"`
	// Active indexes the visible child of a stack.
	Active int `json:"active,omitempty"`
	// Overflow marks a stack created by converting a full leaf.
	Overflow bool `json:"overflow,omitempty"`

	// Template is the layout node this one instantiates. Stack members
	// have none.
	Template *Template `json:"-"`
	parent   *Node
}

func newNode(t *Template) *Node {
	return &Node{Kind: t.Type, Orientation: t.Orientation, Template: t}
}

func (n *Node) indexOf(c *Node) int {
	for i, ch := range n.Children {
		if ch == c {
			return i
		}
	}
	return -1
}

// Windows returns every window under n in depth-first order.
func (n *Node) Windows() []platform.WindowID {
	if n == nil {
		return nil
	}
	if n.Kind == KindLeaf {
		if n.Window == 0 {
			return nil
		}
		return []platform.WindowID{n.Window}
	}
	var out []platform.WindowID
	for _, c := range n.Children {
		out = append(out, c.Windows()...)
	}
	return out
}

func (n *Node) find(w platform.WindowID) *Node {
	if n == nil {
		return nil
	}
	if n.Kind == KindLeaf {
		if n.Window == w {
			return n
		}
		return nil
	}
	for _, c := range n.Children {
		if found := c.find(w); found != nil {
			return found
		}
	}
	return nil
}

func (n *Node) findTemplate(t *Template) *Node {
	if n == nil {
		return nil
	}
	if n.Template == t {
		return n
	}
	if n.Kind != KindSplit {
		return nil
	}
	for _, c := range n.Children {
		if found := c.findTemplate(t); found != nil {
			return found
		}
	}
	return nil
}

func (n *Node) firstOf(kind Kind) *Node {
	if n == nil {
		return nil
	}
	if n.Kind == kind {
		return n
	}
	if n.Kind != KindSplit {
		return nil
	}
	for _, c := range n.Children {
		if found := c.firstOf(kind); found != nil {
			return found
		}
	}
	return nil
}

// Clone deep-copies the subtree. Template pointers are shared.
func (n *Node) Clone() *Node {
	if n == nil {
		return nil
	}
	out := *n
	out.parent = nil
	out.Proportions = append([]float64(nil), n.Proportions...)
	out.Children = make([]*Node, len(n.Children))
	for i, c := range n.Children {
		out.Children[i] = c.Clone()
		out.Children[i].parent = &out
	}
	if len(n.Children) == 0 {
		out.Children = nil
	}
	return &out
}

// Tree is the tiling state of one workspace. A nil Layout means the
// workspace is float-only.
type Tree struct {
	Layout  *LayoutDefinition
	Root    *Node
	focused platform.WindowID
}

// NewTree creates an empty tree for def. def may be nil.
func NewTree(def *LayoutDefinition) *Tree {
	return &Tree{Layout: def}
}

// Contains reports whether the window is tiled in this tree.
func (t *Tree) Contains(w platform.WindowID) bool {
	return w != 0 && t.Root.find(w) != nil
}

// Windows lists the tiled windows in depth-first order.
func (t *Tree) Windows() []platform.WindowID {
	return t.Root.Windows()
}

// TryAddWindow places w in the first template slot with spare capacity,
// materializing pruned ancestors on the way. It returns ErrLayoutFull when
// every slot is occupied.
func (t *Tree) TryAddWindow(w platform.WindowID) error {
	if t.Layout == nil {
		return ErrLayoutFull
	}
	if t.Contains(w) {
		return nil
	}
	for _, slot := range t.Layout.Structure.slots() {
		n := t.Root.findTemplate(slot)
		switch {
		case n == nil:
			n = t.materialize(slot)
		case n.Kind == KindLeaf && n.Window == 0:
		case n.Kind == KindStack && !n.Overflow && (slot.Capacity == 0 || len(n.Children) < slot.Capacity):
		default:
			continue
		}
		t.place(n, w)
		return nil
	}
	return ErrLayoutFull
}

func (t *Tree) place(n *Node, w platform.WindowID) {
	if n.Kind == KindLeaf {
		n.Window = w
		return
	}
	n.Children = append(n.Children, &Node{Kind: KindLeaf, Window: w, parent: n})
	n.Active = len(n.Children) - 1
}

// materialize builds the nodes on the template path to slot that are
// missing from the tree and returns the node for slot.
func (t *Tree) materialize(slot *Template) *Node {
	path := slot.path()
	if t.Root == nil {
		t.Root = newNode(path[0])
	}
	parent := t.Root
	for _, tpl := range path[1:] {
		child := parent.findChildTemplate(tpl)
		if child == nil {
			child = newNode(tpl)
			parent.insertTemplated(child)
		}
		parent = child
	}
	return parent
}

func (n *Node) findChildTemplate(t *Template) *Node {
	for _, c := range n.Children {
		if c.Template == t {
			return c
		}
	}
	return nil
}

// insertTemplated adds c to split n at its template position. The new child
// gets its template share; existing children keep their relative sizes.
func (n *Node) insertTemplated(c *Node) {
	order := n.Template.childIndex(c.Template)
	at := len(n.Children)
	for i, existing := range n.Children {
		if n.Template.childIndex(existing.Template) > order {
			at = i
			break
		}
	}
	c.parent = n

	total := c.Template.weight()
	for _, existing := range n.Children {
		total += existing.Template.weight()
	}
	share := c.Template.weight() / total
	if len(n.Children) == 0 {
		share = 1
	}
	props := make([]float64, 0, len(n.Proportions)+1)
	for _, p := range n.Proportions {
		props = append(props, p*(1-share))
	}
	props = append(props[:at], append([]float64{share}, props[at:]...)...)
	n.Proportions = props
	n.Children = append(n.Children[:at], append([]*Node{c}, n.Children[at:]...)...)
}

// AddFallback inserts w ignoring declared capacity: into the nearest stack
// searching upward from the focused leaf, else the first stack, else by
// converting the nearest leaf into an overflow stack.
func (t *Tree) AddFallback(w platform.WindowID) bool {
	if t.Layout == nil {
		return false
	}
	var anchor *Node
	if t.focused != 0 {
		anchor = t.Root.find(t.focused)
	}
	for n := anchor; n != nil; n = n.parent {
		if s := n.firstOf(KindStack); s != nil {
			t.place(s, w)
			return true
		}
	}
	if s := t.Root.firstOf(KindStack); s != nil {
		t.place(s, w)
		return true
	}
	if anchor == nil {
		anchor = t.Root.firstOf(KindLeaf)
	}
	if anchor == nil || anchor.Window == 0 {
		return t.TryAddWindow(w) == nil
	}
	prev := anchor.Window
	anchor.Kind = KindStack
	anchor.Overflow = true
	anchor.Window = 0
	anchor.Children = []*Node{
		{Kind: KindLeaf, Window: prev, parent: anchor},
		{Kind: KindLeaf, Window: w, parent: anchor},
	}
	anchor.Active = 1
	return true
}

// Add tries the layout first and applies its fallback on ErrLayoutFull. It
// reports whether the window is now tiled.
func (t *Tree) Add(w platform.WindowID) bool {
	if t.Layout == nil {
		return false
	}
	if err := t.TryAddWindow(w); err == nil {
		return true
	}
	if t.Layout.Fallback != FallbackStack {
		return false
	}
	return t.AddFallback(w)
}

// RemoveWindow drops w's leaf and prunes emptied containers.
func (t *Tree) RemoveWindow(w platform.WindowID) bool {
	n := t.Root.find(w)
	if n == nil || w == 0 {
		return false
	}
	if t.focused == w {
		t.focused = 0
	}
	if n == t.Root {
		n.Window = 0
		return true
	}
	t.detach(n)
	return true
}

func (t *Tree) detach(n *Node) {
	p := n.parent
	i := p.indexOf(n)
	p.Children = append(p.Children[:i], p.Children[i+1:]...)

	switch p.Kind {
	case KindSplit:
		p.Proportions = append(p.Proportions[:i], p.Proportions[i+1:]...)
		normalize(p.Proportions)
	case KindStack:
		if i < p.Active || p.Active >= len(p.Children) {
			p.Active--
		}
		if p.Active < 0 {
			p.Active = 0
		}
		if p.Overflow && len(p.Children) == 1 {
			p.Kind = KindLeaf
			p.Window = p.Children[0].Window
			p.Children = nil
			p.Active = 0
			p.Overflow = false
			return
		}
	}
	if len(p.Children) == 0 && p != t.Root {
		t.detach(p)
	}
}

// ReplaceWindow hands old's leaf to replacement.
func (t *Tree) ReplaceWindow(old, replacement platform.WindowID) bool {
	n := t.Root.find(old)
	if n == nil || old == 0 {
		return false
	}
	n.Window = replacement
	if t.focused == old {
		t.focused = replacement
	}
	return true
}

// Focus records the focused window and activates its stack slot. It
// reports whether the visible layout changed.
func (t *Tree) Focus(w platform.WindowID) bool {
	n := t.Root.find(w)
	if n == nil || w == 0 {
		return false
	}
	t.focused = w
	if p := n.parent; p != nil && p.Kind == KindStack {
		if i := p.indexOf(n); i != p.Active {
			p.Active = i
			return true
		}
	}
	return false
}

// CycleStack moves the active slot of w's stack by delta, wrapping around,
// and returns the newly visible window.
func (t *Tree) CycleStack(w platform.WindowID, delta int) (platform.WindowID, bool) {
	n := t.Root.find(w)
	if n == nil || w == 0 || n.parent == nil || n.parent.Kind != KindStack {
		return 0, false
	}
	p := n.parent
	size := len(p.Children)
	p.Active = ((p.Active+delta)%size + size) % size
	active := p.Children[p.Active].Window
	t.focused = active
	return active, true
}

// ComputeRects partitions bounds over the subtree. Split children tile
// their parent exactly; a stack yields bounds for its active child only.
func ComputeRects(n *Node, bounds platform.Rect) map[platform.WindowID]platform.Rect {
	out := make(map[platform.WindowID]platform.Rect)
	computeRects(n, bounds, out)
	return out
}

func computeRects(n *Node, bounds platform.Rect, out map[platform.WindowID]platform.Rect) {
	if n == nil {
		return
	}
	switch n.Kind {
	case KindLeaf:
		if n.Window != 0 {
			out[n.Window] = bounds
		}
	case KindStack:
		if n.Active >= 0 && n.Active < len(n.Children) {
			computeRects(n.Children[n.Active], bounds, out)
		}
	case KindSplit:
		total := bounds.Width
		if n.Orientation == Vertical {
			total = bounds.Height
		}
		offset := 0
		for i, size := range Partition(total, n.Proportions) {
			r := bounds
			if n.Orientation == Vertical {
				r.Y, r.Height = bounds.Y+offset, size
			} else {
				r.X, r.Width = bounds.X+offset, size
			}
			offset += size
			computeRects(n.Children[i], r, out)
		}
	}
}

// Partition splits total into integer parts proportional to props using the
// largest-remainder method, so the parts always sum to total. Ties go to
// the lower index.
func Partition(total int, props []float64) []int {
	out := make([]int, len(props))
	if len(props) == 0 {
		return out
	}
	sum := 0.0
	for _, p := range props {
		sum += math.Max(p, 0)
	}
	type rem struct {
		i    int
		frac float64
	}
	rems := make([]rem, len(props))
	used := 0
	for i, p := range props {
		exact := float64(total) / float64(len(props))
		if sum > 0 {
			exact = math.Max(p, 0) / sum * float64(total)
		}
		out[i] = int(math.Floor(exact))
		used += out[i]
		rems[i] = rem{i: i, frac: exact - float64(out[i])}
	}
	sort.SliceStable(rems, func(a, b int) bool { return rems[a].frac > rems[b].frac })
	for k := 0; used < total; k++ {
		out[rems[k%len(rems)].i]++
		used++
	}
	return out
}

func normalize(props []float64) {
	sum := 0.0
	for _, p := range props {
		sum += p
	}
	if sum <= 0 {
		for i := range props {
			props[i] = 1 / float64(len(props))
		}
		return
	}
	for i := range props {
		props[i] /= sum
	}
}
