package flow

import (
	"fmt"
	"strings"

	ddsTypes "github.com/ddsurveys/dds-backend/pkg/dds/types"
)

const (
	keyEmbeddedData      = "EmbeddedData"
	keyEntryDescription  = "Description"
	keyEntryType         = "Type"
	keyEntryField        = "Field"
	keyEntryVariableType = "VariableType"
	keyEntryValue        = "Value"
	keyEntryVisibility   = "DataVisibility"
	keyEntryAnalyzeText  = "AnalyzeText"

	ENTRY_TYPE_CUSTOM = "Custom"
)

// EmbeddedDataEntry is a copy of one entry of an EmbeddedData element.
type EmbeddedDataEntry struct {
	Description  string
	Type         string
	Field        string
	VariableType string
	Value        string
}

// IsCustomVariable reports whether the entry belongs to the dds.<provider>.<category> namespace.
func (e EmbeddedDataEntry) IsCustomVariable() bool {
	return strings.HasPrefix(e.Field, ddsTypes.VARIABLE_NAME_PREFIX)
}

func entryFromMap(m map[string]any) EmbeddedDataEntry {
	str := func(k string) string {
		s, _ := m[k].(string)
		return s
	}
	return EmbeddedDataEntry{
		Description:  str(keyEntryDescription),
		Type:         str(keyEntryType),
		Field:        str(keyEntryField),
		VariableType: str(keyEntryVariableType),
		Value:        str(keyEntryValue),
	}
}

func (t *Tree) embeddedDataNode(flowID string) (*node, error) {
	idx, ok := t.index[flowID]
	if !ok {
		return nil, ddsTypes.NewFlowLookupError("embedded data element "+flowID+" not found", ErrUnknownFlow)
	}
	n := t.nodes[idx]
	if n.flowType != FLOW_TYPE_EMBEDDED_DATA {
		return nil, ddsTypes.NewFlowLookupError(fmt.Sprintf("flow element %s is of type %s", flowID, n.flowType), nil)
	}
	return n, nil
}

func entriesOf(n *node) ([]any, error) {
	raw, ok := n.props[keyEmbeddedData]
	if !ok || raw == nil {
		return []any{}, nil
	}
	list, ok := raw.([]any)
	if !ok {
		return nil, ddsTypes.NewFlowLookupError("EmbeddedData of "+n.flowID+" is not a list", nil)
	}
	return list, nil
}

// Variables returns copies of the entries of an EmbeddedData element, in flow order.
func (t *Tree) Variables(flowID string) ([]EmbeddedDataEntry, error) {
	n, err := t.embeddedDataNode(flowID)
	if err != nil {
		return nil, err
	}
	list, err := entriesOf(n)
	if err != nil {
		return nil, err
	}
	entries := make([]EmbeddedDataEntry, 0, len(list))
	for _, item := range list {
		if m, ok := item.(map[string]any); ok {
			entries = append(entries, entryFromMap(m))
		}
	}
	return entries, nil
}

// FindEmbeddedDataBlock returns the first EmbeddedData element, in flow order, holding an
// entry of the custom variable namespace.
func (t *Tree) FindEmbeddedDataBlock() (Node, bool) {
	var found Node
	ok := false
	t.Walk(func(n Node) bool {
		if n.Type() != FLOW_TYPE_EMBEDDED_DATA {
			return true
		}
		entries, err := t.Variables(n.FlowID())
		if err != nil {
			return true
		}
		for _, e := range entries {
			if e.IsCustomVariable() {
				found, ok = n, true
				return false
			}
		}
		return true
	})
	return found, ok
}

// EnsureEmbeddedDataBlock finds the custom variable block or creates an empty one as the
// first element of the root, so the variables are set before any block is shown.
func (t *Tree) EnsureEmbeddedDataBlock() (Node, error) {
	if n, ok := t.FindEmbeddedDataBlock(); ok {
		return n, nil
	}
	root := t.Root()
	if root.Type() != FLOW_TYPE_ROOT {
		return Node{}, ddsTypes.NewFlowLookupError(fmt.Sprintf("flow root %s is of type %q", root.FlowID(), root.Type()), nil)
	}
	n, err := t.InsertChild(root.FlowID(), 0, FLOW_TYPE_EMBEDDED_DATA, map[string]any{
		keyEmbeddedData: []any{},
	})
	if err != nil {
		return Node{}, ddsTypes.NewFlowLookupError("creating embedded data element", err)
	}
	return n, nil
}

// UpsertVariable writes one entry into an EmbeddedData element. An entry with the same Field
// is updated in place, otherwise the entry is appended. Further entries with the same Field
// are dropped, so the element holds exactly one entry per field afterwards.
func (t *Tree) UpsertVariable(flowID string, description string, field string, variableType string, value string) error {
	return t.upsertVariable(flowID, description, field, variableType, value, true)
}

// DeclareVariable makes sure an entry for field exists without touching the Value of an
// existing entry. New entries get an empty Value.
func (t *Tree) DeclareVariable(flowID string, description string, field string, variableType string) error {
	return t.upsertVariable(flowID, description, field, variableType, "", false)
}

func (t *Tree) upsertVariable(flowID string, description string, field string, variableType string, value string, setValue bool) error {
	n, err := t.embeddedDataNode(flowID)
	if err != nil {
		return err
	}
	list, err := entriesOf(n)
	if err != nil {
		return err
	}

	updated := make([]any, 0, len(list)+1)
	written := false
	for _, item := range list {
		m, ok := item.(map[string]any)
		if !ok || m[keyEntryField] != field {
			updated = append(updated, item)
			continue
		}
		if written {
			continue
		}
		m[keyEntryDescription] = description
		m[keyEntryVariableType] = variableType
		if _, ok := m[keyEntryValue]; setValue || !ok {
			m[keyEntryValue] = value
		}
		if _, ok := m[keyEntryType]; !ok {
			m[keyEntryType] = ENTRY_TYPE_CUSTOM
		}
		updated = append(updated, m)
		written = true
	}
	if !written {
		updated = append(updated, map[string]any{
			keyEntryDescription:  description,
			keyEntryType:         ENTRY_TYPE_CUSTOM,
			keyEntryField:        field,
			keyEntryVariableType: variableType,
			keyEntryVisibility:   []any{},
			keyEntryAnalyzeText:  false,
			keyEntryValue:        value,
		})
	}
	n.props[keyEmbeddedData] = updated
	return nil
}
