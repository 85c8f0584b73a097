package expr

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"horse.fit/feedsift/internal/query"
)

func lit(id, text string) *Wrapper {
	return &Wrapper{ID: id, Node: Literal(text)}
}

func sampleTree() *Wrapper {
	return &Wrapper{ID: "root", Node: &AllOf{Children: []*Wrapper{
		lit("foo", "foo"),
		{ID: "any", Node: &AnyOf{Children: []*Wrapper{lit("bar", "bar")}}},
	}}}
}

func TestWireRoundTrip(t *testing.T) {
	t.Parallel()

	root := sampleTree()
	data, err := json.Marshal(root)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"id": "root",
		"expr": {"allOf": [
			{"id": "foo", "expr": {"pred": {"type": "LITERAL", "param": {"text": "foo"}}}},
			{"id": "any", "expr": {"anyOf": [
				{"id": "bar", "expr": {"pred": {"type": "LITERAL", "param": {"text": "bar"}}}}
			]}}
		]}
	}`, string(data))

	decoded, err := Parse(data)
	require.NoError(t, err)
	assert.True(t, Equal(root, decoded))
}

func TestWirePlaceholders(t *testing.T) {
	t.Parallel()

	data, err := json.Marshal(&Wrapper{ID: "p"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"p"}`, string(data))

	data, err = json.Marshal(Wrapper{})
	require.NoError(t, err)
	assert.JSONEq(t, `{}`, string(data))

	data, err = json.Marshal(&Wrapper{ID: "n", Node: &Not{}})
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"n","expr":{"notTrue":null}}`, string(data))

	data, err = json.Marshal(&Wrapper{ID: "a", Node: &AllOf{}})
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"a","expr":{"allOf":[]}}`, string(data))

	decoded, err := Parse([]byte(`{"id":"p"}`))
	require.NoError(t, err)
	assert.True(t, decoded.IsPlaceholder())
	assert.False(t, IsValid(decoded))
}

func TestParseRejectsMalformed(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"two shapes":     `{"expr":{"allOf":[],"anyOf":[]}}`,
		"no shape":       `{"expr":{}}`,
		"unknown member": `{"expr":{"oneOf":[]}}`,
		"pred sans type": `{"expr":{"pred":{"param":{"text":"x"}}}}`,
		"nested":         `{"expr":{"allOf":[{"expr":{"bogus":1}}]}}`,
		"not an object":  `[1,2]`,
	}
	for name, payload := range cases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			_, err := Parse([]byte(payload))
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrMalformed)
		})
	}
}

func TestParseEmptyIsNil(t *testing.T) {
	t.Parallel()

	for _, payload := range []string{"", "null", "  "} {
		root, err := Parse([]byte(payload))
		require.NoError(t, err)
		assert.Nil(t, root)
	}
}

func TestNewPlaceholderIDsAreUnique(t *testing.T) {
	t.Parallel()

	a, b := NewPlaceholder(), NewPlaceholder()
	assert.NotEmpty(t, a.ID)
	assert.NotEqual(t, a.ID, b.ID)
	assert.True(t, a.IsPlaceholder())
}

func TestAttachFillsPlaceholder(t *testing.T) {
	t.Parallel()

	hole := &Wrapper{ID: "hole"}
	root := &Wrapper{ID: "root", Node: &AllOf{Children: []*Wrapper{lit("a", "a"), hole}}}

	require.NoError(t, Attach(root, "hole", Literal("b")))
	assert.Equal(t, "b", hole.Node.(*Predicate).Param[ParamText])
	assert.True(t, IsValid(root))
}

func TestEditsReportNotFound(t *testing.T) {
	t.Parallel()

	root := sampleTree()

	err := Attach(root, "missing", Literal("x"))
	assert.ErrorIs(t, err, ErrNotFound)

	var nodeErr *NodeError
	require.True(t, errors.As(err, &nodeErr))
	assert.Equal(t, "attach", nodeErr.Op)
	assert.Equal(t, "missing", nodeErr.ID)

	_, err = Replace(root, "missing", lit("x", "x"))
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = Remove(root, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = Remove(nil, "anything")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = Remove(root, "")
	assert.ErrorIs(t, err, ErrEmptyID)

	assert.True(t, Equal(sampleTree(), root), "failed edits must leave the tree untouched")
}

func TestEditsRejectNilNodePointers(t *testing.T) {
	t.Parallel()

	root := sampleTree()
	for _, node := range []Node{(*AllOf)(nil), (*AnyOf)(nil), (*Not)(nil), (*Predicate)(nil)} {
		err := Attach(root, "any", node)
		assert.ErrorIs(t, err, ErrMalformed, "attach %T", node)
	}

	_, err := Replace(root, "foo", &Wrapper{ID: "x", Node: &AnyOf{Children: []*Wrapper{{ID: "y", Node: (*Not)(nil)}}}})
	assert.ErrorIs(t, err, ErrMalformed)

	err = Append(root, "root", &Wrapper{ID: "z", Node: (*AllOf)(nil)})
	assert.ErrorIs(t, err, ErrMalformed)

	assert.True(t, IsValid(root))
	assert.False(t, IsValid(&Wrapper{ID: "n", Node: (*AllOf)(nil)}))
	assert.Nil(t, Clone(&Wrapper{ID: "n", Node: (*Not)(nil)}).Node)
}

func TestAttachRejectsCycles(t *testing.T) {
	t.Parallel()

	root := sampleTree()
	target := Find(root, "any")
	require.NotNil(t, target)

	err := Attach(root, "any", &Not{Child: target})
	assert.ErrorIs(t, err, ErrCycle)

	err = Attach(root, "foo", &AllOf{Children: []*Wrapper{root}})
	assert.ErrorIs(t, err, ErrCycle)

	shared := lit("s", "s")
	err = Attach(root, "foo", &AnyOf{Children: []*Wrapper{shared, shared}})
	assert.ErrorIs(t, err, ErrCycle)
}

func TestAttachRejectsDuplicateIDs(t *testing.T) {
	t.Parallel()

	root := sampleTree()
	err := Attach(root, "foo", &AnyOf{Children: []*Wrapper{lit("bar", "again")}})
	assert.ErrorIs(t, err, ErrDuplicateID)

	// Ids below the target are discarded by the attach, so they may be reused.
	require.NoError(t, Attach(root, "any", &AnyOf{Children: []*Wrapper{lit("bar", "new")}}))
	assert.Equal(t, "new", Find(root, "bar").Node.(*Predicate).Param[ParamText])
}

func TestReplace(t *testing.T) {
	t.Parallel()

	root := sampleTree()
	next, err := Replace(root, "bar", lit("baz", "baz"))
	require.NoError(t, err)
	assert.Same(t, root, next)
	assert.Nil(t, Find(root, "bar"))
	assert.NotNil(t, Find(root, "baz"))

	// The replaced subtree's ids are free again.
	next, err = Replace(root, "any", lit("bar", "bar"))
	require.NoError(t, err)
	assert.NotNil(t, Find(next, "bar"))
	assert.Nil(t, Find(next, "baz"))

	_, err = Replace(root, "foo", lit("root", "clash"))
	assert.ErrorIs(t, err, ErrDuplicateID)

	_, err = Replace(root, "foo", root)
	assert.ErrorIs(t, err, ErrCycle)

	_, err = Replace(root, "foo", nil)
	assert.ErrorIs(t, err, ErrMalformed)

	replacement := lit("new-root", "x")
	next, err = Replace(root, "root", replacement)
	require.NoError(t, err)
	assert.Same(t, replacement, next)
}

func TestRemove(t *testing.T) {
	t.Parallel()

	root := sampleTree()
	next, err := Remove(root, "foo")
	require.NoError(t, err)
	group := next.Node.(*AllOf)
	require.Len(t, group.Children, 1)
	assert.Equal(t, "any", group.Children[0].ID)

	next, err = Remove(root, "bar")
	require.NoError(t, err)
	assert.Empty(t, Find(next, "any").Node.(*AnyOf).Children)
	assert.False(t, IsValid(next))

	next, err = Remove(next, "root")
	require.NoError(t, err)
	assert.Nil(t, next)
}

func TestRemoveNotChildLeavesPlaceholder(t *testing.T) {
	t.Parallel()

	root := &Wrapper{ID: "root", Node: &AllOf{Children: []*Wrapper{
		lit("keep", "keep"),
		{ID: "neg", Node: &Not{Child: lit("gone", "gone")}},
	}}}

	next, err := Remove(root, "gone")
	require.NoError(t, err)

	neg := Find(next, "neg")
	require.NotNil(t, neg)
	assert.True(t, neg.IsPlaceholder())
	assert.Nil(t, Find(next, "gone"))
	assert.True(t, IsValid(next), "a placeholder beside a filled sibling is tolerated")

	require.NoError(t, Attach(next, "neg", &Not{Child: lit("back", "back")}))
	assert.True(t, IsValid(next))
}

func TestAppend(t *testing.T) {
	t.Parallel()

	root := sampleTree()
	require.NoError(t, Append(root, "any", lit("qux", "qux")))
	assert.Len(t, Find(root, "any").Node.(*AnyOf).Children, 2)

	err := Append(root, "foo", lit("x", "x"))
	assert.ErrorIs(t, err, ErrNotContainer)

	err = Append(root, "any", lit("foo", "dup"))
	assert.ErrorIs(t, err, ErrDuplicateID)

	neg := &Wrapper{ID: "neg", Node: &Not{}}
	require.NoError(t, Append(root, "root", neg))
	require.NoError(t, Append(root, "neg", lit("inner", "inner")))
	assert.ErrorIs(t, Append(root, "neg", lit("more", "more")), ErrNotContainer)
}

func TestIsValid(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		root *Wrapper
		want bool
	}{
		{name: "nil", root: nil, want: false},
		{name: "placeholder root", root: &Wrapper{ID: "p"}, want: false},
		{name: "single predicate", root: lit("a", "a"), want: true},
		{name: "sample", root: sampleTree(), want: true},
		{name: "empty all", root: &Wrapper{Node: &AllOf{}}, want: false},
		{
			name: "only placeholders",
			root: &Wrapper{Node: &AnyOf{Children: []*Wrapper{{ID: "p1"}, {ID: "p2"}}}},
			want: false,
		},
		{
			name: "placeholder with filled sibling",
			root: &Wrapper{Node: &AnyOf{Children: []*Wrapper{{ID: "p1"}, lit("a", "a")}}},
			want: true,
		},
		{name: "not without child", root: &Wrapper{Node: &Not{}}, want: false},
		{name: "not over placeholder", root: &Wrapper{Node: &Not{Child: &Wrapper{ID: "p"}}}, want: false},
		{name: "not over literal", root: &Wrapper{Node: &Not{Child: lit("a", "a")}}, want: true},
		{name: "blank literal", root: lit("a", "  "), want: false},
		{
			name: "unknown predicate",
			root: &Wrapper{Node: &Predicate{Type: "REGEX", Param: map[string]string{ParamText: "a"}}},
			want: false,
		},
		{
			name: "nil child",
			root: &Wrapper{Node: &AllOf{Children: []*Wrapper{lit("a", "a"), nil}}},
			want: false,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, IsValid(tc.root))
		})
	}
}

func TestIsValidSurvivesSharedWrappers(t *testing.T) {
	t.Parallel()

	shared := lit("s", "s")
	root := &Wrapper{Node: &AllOf{Children: []*Wrapper{shared, shared}}}
	assert.False(t, IsValid(root))

	loop := &Wrapper{ID: "loop"}
	loop.Node = &Not{Child: loop}
	assert.NotPanics(t, func() { IsValid(loop) })
	assert.False(t, IsValid(loop))
}

func TestCloneIsIndependent(t *testing.T) {
	t.Parallel()

	root := sampleTree()
	copied := Clone(root)
	require.True(t, Equal(root, copied))

	require.NoError(t, Attach(copied, "foo", Literal("changed")))
	assert.False(t, Equal(root, copied))
	assert.Equal(t, "foo", Find(root, "foo").Node.(*Predicate).Param[ParamText])
}

func TestFromTerms(t *testing.T) {
	t.Parallel()

	terms := query.Tokenize(`rust owner:facebook,styled-components -"exact phrase" -label:`)
	root := FromTerms(terms)
	require.NotNil(t, root)
	require.True(t, IsValid(root))

	group, ok := root.Node.(*AllOf)
	require.True(t, ok)
	require.Len(t, group.Children, 4)

	first := group.Children[0].Node.(*Predicate)
	assert.Equal(t, map[string]string{ParamText: "rust"}, first.Param)

	owners := group.Children[1].Node.(*AnyOf)
	require.Len(t, owners.Children, 2)
	assert.Equal(t, map[string]string{ParamText: "facebook", ParamField: "owner"}, owners.Children[0].Node.(*Predicate).Param)
	assert.Equal(t, "styled-components", owners.Children[1].Node.(*Predicate).Param[ParamText])

	negated := group.Children[2].Node.(*Not)
	assert.Equal(t, "exact phrase", negated.Child.Node.(*Predicate).Param[ParamText])

	keyOnly := group.Children[3].Node.(*Not)
	assert.Equal(t, map[string]string{ParamText: "label"}, keyOnly.Child.Node.(*Predicate).Param)

	ids := map[string]struct{}{}
	Walk(root, func(w *Wrapper) bool {
		assert.NotEmpty(t, w.ID)
		ids[w.ID] = struct{}{}
		return true
	})
	assert.Len(t, ids, 9)
}

func TestFromTermsEmpty(t *testing.T) {
	t.Parallel()

	assert.Nil(t, FromTerms(nil))
	assert.Nil(t, FromTerms(query.Tokenize("  ")))
	assert.Nil(t, FromTerms([]query.Term{{}}))
}

func TestFromTermsKeyOnly(t *testing.T) {
	t.Parallel()

	root := FromTerms([]query.Term{{Key: "label"}, {Key: "label", Value: "bug"}})
	require.NotNil(t, root)
	require.True(t, IsValid(root))

	group := root.Node.(*AllOf)
	require.Len(t, group.Children, 2)
	assert.Equal(t, map[string]string{ParamText: "label"}, group.Children[0].Node.(*Predicate).Param)
	assert.Equal(t, map[string]string{ParamText: "bug", ParamField: "label"}, group.Children[1].Node.(*Predicate).Param)
}
