package trip

// Resolved is the planner's view of the human selections, matched against
// the researched candidates.
type Resolved struct {
	Lodging            *Lodging
	IntercityTransport *IntercityTransport
	Activities         []Activity
	Food               []Food

	// Notes are trace lines about how each selection was matched.
	Notes []string
}

// ResolveSelections matches each selection to the stored candidate that is
// the same entity. A selection with no stored match is validated and used as
// submitted. Empty activity or food selections offer the whole researched
// list to the planner.
func ResolveSelections(s State) (Resolved, error) {
	var (
		r   Resolved
		sel Selections
	)
	if s.Selections != nil {
		sel = *s.Selections
	}

	if sel.Lodging != nil {
		l, note, err := resolveOne(s.Lodging, *sel.Lodging)
		if err != nil {
			return Resolved{}, prefixed("lodging", err)
		}
		r.Lodging = &l
		r.Notes = append(r.Notes, "lodging: "+note)
	}
	if sel.IntercityTransport != nil {
		t, note, err := resolveOne(s.IntercityTransport, *sel.IntercityTransport)
		if err != nil {
			return Resolved{}, prefixed("intercity_transport", err)
		}
		r.IntercityTransport = &t
		r.Notes = append(r.Notes, "intercity_transport: "+note)
	}

	var err error
	if r.Activities, err = resolveMany(s.Activities, sel.Activities, "activities", &r.Notes); err != nil {
		return Resolved{}, err
	}
	if r.Food, err = resolveMany(s.Food, sel.Food, "food", &r.Notes); err != nil {
		return Resolved{}, err
	}
	return r, nil
}

func resolveOne[T Candidate](stored []T, chosen T) (T, string, error) {
	if i := IndexOf(stored, chosen.Base()); i >= 0 {
		return stored[i], "matched " + describe(stored[i].Base()), nil
	}
	if err := chosen.Validate(); err != nil {
		var zero T
		return zero, "", err
	}
	return chosen, "using submitted " + describe(chosen.Base()) + " (not among researched candidates)", nil
}

func resolveMany[T Candidate](stored, chosen []T, field string, notes *[]string) ([]T, error) {
	if len(chosen) == 0 {
		if len(stored) > 0 {
			*notes = append(*notes, field+": no selection, offering all researched candidates")
		}
		return append([]T(nil), stored...), nil
	}
	out := make([]T, 0, len(chosen))
	for i, c := range chosen {
		v, note, err := resolveOne(stored, c)
		if err != nil {
			return nil, prefixed(indexed(field, i), err)
		}
		*notes = append(*notes, field+": "+note)
		out = MergeCandidates(out, []T{v})
	}
	return out, nil
}
