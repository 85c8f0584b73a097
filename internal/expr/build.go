package expr

import "horse.fit/feedsift/internal/query"

// FromTerms turns a tokenized query into an expression.
//
// The result is an AllOf over the terms in order. Keyed terms become literal
// predicates restricted to the key's field; a run of consecutive terms with
// the same key and negation, as produced by comma expansion, becomes one
// AnyOf. Negated terms are wrapped in Not. A key typed without a value, such
// as "label:", matches the key as plain text. A query with no usable terms
// yields nil, the empty filter.
func FromTerms(terms []query.Term) *Wrapper {
	root := &AllOf{}

	for i := 0; i < len(terms); {
		term := terms[i]
		if term.IsZero() {
			i++
			continue
		}

		j := i + 1
		if term.HasKey() && term.Value != "" {
			for j < len(terms) && sameGroup(term, terms[j]) {
				j++
			}
		}

		var node *Wrapper
		if j-i == 1 {
			node = Wrap(termPredicate(term))
		} else {
			group := &AnyOf{Children: make([]*Wrapper, 0, j-i)}
			for _, t := range terms[i:j] {
				group.Children = append(group.Children, Wrap(termPredicate(t)))
			}
			node = Wrap(group)
		}
		if term.Negated {
			node = Wrap(&Not{Child: node})
		}

		root.Children = append(root.Children, node)
		i = j
	}

	if len(root.Children) == 0 {
		return nil
	}
	return Wrap(root)
}

func sameGroup(head, next query.Term) bool {
	return next.Value != "" && next.Key == head.Key && next.Negated == head.Negated
}

func termPredicate(t query.Term) *Predicate {
	if t.Value == "" {
		return Literal(t.Key)
	}
	pred := Literal(t.Value)
	if t.HasKey() {
		pred.Param[ParamField] = t.Key
	}
	return pred
}
