// Package flow models a survey platform flow definition: a tree of flow elements, each with
// a unique FlowID, a Type and free-form properties. Nodes live in an arena indexed by FlowID;
// callers work with Node handles and never hold references into the tree's maps.
package flow

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"
)

const (
	FLOW_TYPE_ROOT          = "Root"
	FLOW_TYPE_BLOCK         = "Block"
	FLOW_TYPE_STANDARD      = "Standard"
	FLOW_TYPE_BRANCH        = "Branch"
	FLOW_TYPE_EMBEDDED_DATA = "EmbeddedData"
	FLOW_TYPE_END_SURVEY    = "EndSurvey"
)

const (
	keyFlowID     = "FlowID"
	keyType       = "Type"
	keyFlow       = "Flow"
	keyProperties = "Properties"
	keyCount      = "Count"
	flowIDPrefix  = "FL_"
	noParent      = -1
)

var (
	ErrReservedKey  = errors.New("key is managed by the tree")
	ErrNodeRemoved  = errors.New("node was removed from the tree")
	ErrUnknownFlow  = errors.New("flow element not found")
	ErrDuplicateID  = errors.New("duplicate FlowID")
	ErrRemoveRoot   = errors.New("root cannot be removed")
	ErrInvalidInput = errors.New("invalid flow")
)

type node struct {
	flowID   string
	flowType string
	// Type as found on the wire, encoded back unchanged when hasType is set
	rawType  any
	hasType  bool
	props    map[string]any
	children []int
	parent   int
	// whether the element carried a Flow key, and whether it was null
	hasFlow  bool
	flowNull bool
}

type Tree struct {
	nodes []*node
	index map[string]int
	root  int
}

// Node is a handle to one flow element of a Tree.
type Node struct {
	tree *Tree
	idx  int
}

// Decode parses a flow definition as returned by the survey platform.
func Decode(data []byte) (*Tree, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	t := &Tree{index: map[string]int{}}
	root, err := t.add(raw, noParent)
	if err != nil {
		return nil, err
	}
	t.root = root
	return t, nil
}

// FromMap builds a tree from an already decoded flow. The input is not retained.
func FromMap(m map[string]any) (*Tree, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return Decode(data)
}

func (t *Tree) add(raw map[string]any, parent int) (int, error) {
	flowID, ok := raw[keyFlowID].(string)
	if !ok || flowID == "" {
		return 0, fmt.Errorf("%w: element without FlowID", ErrInvalidInput)
	}
	if _, exists := t.index[flowID]; exists {
		return 0, fmt.Errorf("%w: %s", ErrDuplicateID, flowID)
	}
	rawType, hasType := raw[keyType]
	flowType, _ := rawType.(string)

	n := &node{
		flowID:   flowID,
		flowType: flowType,
		rawType:  rawType,
		hasType:  hasType,
		props:    map[string]any{},
		parent:   parent,
	}
	for k, v := range raw {
		switch k {
		case keyFlowID, keyType, keyFlow:
			continue
		}
		n.props[k] = v
	}

	idx := len(t.nodes)
	t.nodes = append(t.nodes, n)
	t.index[flowID] = idx

	children, hasFlow := raw[keyFlow]
	if !hasFlow || children == nil {
		n.hasFlow = hasFlow
		n.flowNull = hasFlow
		return idx, nil
	}
	n.hasFlow = true
	list, ok := children.([]any)
	if !ok {
		return 0, fmt.Errorf("%w: Flow of %s is not a list", ErrInvalidInput, flowID)
	}
	for _, c := range list {
		child, ok := c.(map[string]any)
		if !ok {
			return 0, fmt.Errorf("%w: Flow of %s contains a non object", ErrInvalidInput, flowID)
		}
		childIdx, err := t.add(child, idx)
		if err != nil {
			return 0, err
		}
		n.children = append(n.children, childIdx)
	}
	return idx, nil
}

// ToMap returns the wire representation of the whole tree.
func (t *Tree) ToMap() map[string]any {
	return t.toMap(t.root)
}

func (t *Tree) toMap(idx int) map[string]any {
	n := t.nodes[idx]
	m := make(map[string]any, len(n.props)+3)
	for k, v := range n.props {
		m[k] = deepCopy(v)
	}
	m[keyFlowID] = n.flowID
	if n.hasType {
		m[keyType] = deepCopy(n.rawType)
	}
	switch {
	case len(n.children) > 0 || (n.hasFlow && !n.flowNull):
		children := make([]any, 0, len(n.children))
		for _, c := range n.children {
			children = append(children, t.toMap(c))
		}
		m[keyFlow] = children
	case n.flowNull:
		m[keyFlow] = nil
	}
	return m
}

// Encode returns the JSON wire representation. Object keys come out sorted.
func (t *Tree) Encode() ([]byte, error) {
	return json.Marshal(t.ToMap())
}

// Clone returns an independent copy of the tree.
func (t *Tree) Clone() *Tree {
	c := &Tree{
		nodes: make([]*node, len(t.nodes)),
		index: make(map[string]int, len(t.index)),
		root:  t.root,
	}
	for i, n := range t.nodes {
		if n == nil {
			continue
		}
		c.nodes[i] = &node{
			flowID:   n.flowID,
			flowType: n.flowType,
			rawType:  deepCopy(n.rawType),
			hasType:  n.hasType,
			props:    deepCopy(n.props).(map[string]any),
			children: append([]int(nil), n.children...),
			parent:   n.parent,
			hasFlow:  n.hasFlow,
			flowNull: n.flowNull,
		}
	}
	for k, v := range t.index {
		c.index[k] = v
	}
	return c
}

// StructurallyEqual compares two trees by content, unlike Node.SameID.
func StructurallyEqual(a *Tree, b *Tree) bool {
	return reflect.DeepEqual(a.ToMap(), b.ToMap())
}

func (t *Tree) Root() Node {
	return Node{tree: t, idx: t.root}
}

// Lookup finds an element by FlowID.
func (t *Tree) Lookup(flowID string) (Node, bool) {
	idx, ok := t.index[flowID]
	if !ok {
		return Node{}, false
	}
	return Node{tree: t, idx: idx}, true
}

// Len returns the number of elements in the tree.
func (t *Tree) Len() int {
	return len(t.index)
}

// Walk visits elements depth first in flow order until fn returns false.
func (t *Tree) Walk(fn func(n Node) bool) {
	var walk func(idx int) bool
	walk = func(idx int) bool {
		if !fn(Node{tree: t, idx: idx}) {
			return false
		}
		for _, c := range t.nodes[idx].children {
			if !walk(c) {
				return false
			}
		}
		return true
	}
	walk(t.root)
}

// NextFlowID returns an unused FlowID following the FL_<n> numbering.
func (t *Tree) NextFlowID() string {
	highest := 0
	for id := range t.index {
		if n, ok := flowIDNumber(id); ok && n > highest {
			highest = n
		}
	}
	return flowIDPrefix + strconv.Itoa(highest+1)
}

func flowIDNumber(flowID string) (int, bool) {
	rest, ok := strings.CutPrefix(flowID, flowIDPrefix)
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(rest)
	return n, err == nil
}

// InsertChild creates a new element under parentID at position (clamped to the child list).
func (t *Tree) InsertChild(parentID string, position int, flowType string, props map[string]any) (Node, error) {
	parentIdx, ok := t.index[parentID]
	if !ok {
		return Node{}, fmt.Errorf("%w: %s", ErrUnknownFlow, parentID)
	}
	normalized := map[string]any{}
	for k, v := range props {
		switch k {
		case keyFlowID, keyType, keyFlow:
			return Node{}, fmt.Errorf("%w: %s", ErrReservedKey, k)
		}
		nv, err := normalizeValue(v)
		if err != nil {
			return Node{}, err
		}
		normalized[k] = nv
	}

	n := &node{
		flowID:   t.NextFlowID(),
		flowType: flowType,
		rawType:  flowType,
		hasType:  true,
		props:    normalized,
		parent:   parentIdx,
	}
	idx := len(t.nodes)
	t.nodes = append(t.nodes, n)
	t.index[n.flowID] = idx

	parent := t.nodes[parentIdx]
	if position < 0 {
		position = 0
	}
	if position > len(parent.children) {
		position = len(parent.children)
	}
	parent.children = append(parent.children, 0)
	copy(parent.children[position+1:], parent.children[position:])
	parent.children[position] = idx
	parent.hasFlow = true
	parent.flowNull = false

	t.updateCount()
	return Node{tree: t, idx: idx}, nil
}

// AppendChild creates a new element as the last child of parentID.
func (t *Tree) AppendChild(parentID string, flowType string, props map[string]any) (Node, error) {
	parentIdx, ok := t.index[parentID]
	if !ok {
		return Node{}, fmt.Errorf("%w: %s", ErrUnknownFlow, parentID)
	}
	return t.InsertChild(parentID, len(t.nodes[parentIdx].children), flowType, props)
}

// Remove deletes an element and its subtree.
func (t *Tree) Remove(flowID string) error {
	idx, ok := t.index[flowID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownFlow, flowID)
	}
	if idx == t.root {
		return ErrRemoveRoot
	}
	parent := t.nodes[t.nodes[idx].parent]
	for i, c := range parent.children {
		if c == idx {
			parent.children = append(parent.children[:i], parent.children[i+1:]...)
			break
		}
	}
	t.drop(idx)
	return nil
}

func (t *Tree) drop(idx int) {
	n := t.nodes[idx]
	for _, c := range n.children {
		t.drop(c)
	}
	delete(t.index, n.flowID)
	t.nodes[idx] = nil
}

// updateCount keeps the root's Properties.Count in line with the highest FlowID number,
// if the flow carries one.
func (t *Tree) updateCount() {
	props, ok := t.nodes[t.root].props[keyProperties].(map[string]any)
	if !ok {
		return
	}
	if _, ok := props[keyCount]; !ok {
		return
	}
	highest := 0
	for id := range t.index {
		if n, ok := flowIDNumber(id); ok && n > highest {
			highest = n
		}
	}
	props[keyCount] = json.Number(strconv.Itoa(highest))
}

func (n Node) get() (*node, error) {
	if n.tree == nil || n.idx < 0 || n.idx >= len(n.tree.nodes) || n.tree.nodes[n.idx] == nil {
		return nil, ErrNodeRemoved
	}
	return n.tree.nodes[n.idx], nil
}

// Valid reports whether the handle still points to an element of its tree.
func (n Node) Valid() bool {
	_, err := n.get()
	return err == nil
}

func (n Node) FlowID() string {
	nd, err := n.get()
	if err != nil {
		return ""
	}
	return nd.flowID
}

func (n Node) Type() string {
	nd, err := n.get()
	if err != nil {
		return ""
	}
	return nd.flowType
}

// SameID reports whether both handles name the same flow element. Content is not compared.
func (n Node) SameID(other Node) bool {
	return n.Valid() && other.Valid() && n.FlowID() == other.FlowID()
}

// Get returns a copy of a property.
func (n Node) Get(key string) (any, bool) {
	nd, err := n.get()
	if err != nil {
		return nil, false
	}
	v, ok := nd.props[key]
	if !ok {
		return nil, false
	}
	return deepCopy(v), true
}

// Set stores a copy of value as property key. FlowID, Type and Flow are not properties.
func (n Node) Set(key string, value any) error {
	nd, err := n.get()
	if err != nil {
		return err
	}
	switch key {
	case keyFlowID, keyType, keyFlow:
		return fmt.Errorf("%w: %s", ErrReservedKey, key)
	}
	v, err := normalizeValue(value)
	if err != nil {
		return err
	}
	nd.props[key] = v
	return nil
}

// Delete removes a property. Deleting an absent key is a no-op.
func (n Node) Delete(key string) error {
	nd, err := n.get()
	if err != nil {
		return err
	}
	switch key {
	case keyFlowID, keyType, keyFlow:
		return fmt.Errorf("%w: %s", ErrReservedKey, key)
	}
	delete(nd.props, key)
	return nil
}

// Keys lists the property keys, sorted.
func (n Node) Keys() []string {
	nd, err := n.get()
	if err != nil {
		return nil
	}
	keys := make([]string, 0, len(nd.props))
	for k := range nd.props {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Properties returns a copy of all properties.
func (n Node) Properties() map[string]any {
	nd, err := n.get()
	if err != nil {
		return nil
	}
	return deepCopy(nd.props).(map[string]any)
}

func (n Node) Children() []Node {
	nd, err := n.get()
	if err != nil {
		return nil
	}
	children := make([]Node, len(nd.children))
	for i, c := range nd.children {
		children[i] = Node{tree: n.tree, idx: c}
	}
	return children
}

func (n Node) Parent() (Node, bool) {
	nd, err := n.get()
	if err != nil || nd.parent == noParent {
		return Node{}, false
	}
	return Node{tree: n.tree, idx: nd.parent}, true
}
