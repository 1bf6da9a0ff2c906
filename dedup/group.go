package dedup

import (
	"sort"

	"github.com/google/uuid"
	"gopkg.in/guregu/null.v3"

	"github.com/testwise/runcore/lib"
)

// DefaultThreshold is the minimum similarity score for two elements to be
// considered the same logical element, unless the caller overrides it.
const DefaultThreshold = 0.7

// Member is one element reference inside a duplicate group, retaining where
// in the action batch it came from. Element points into the caller's slice
// so that id backfill mutates the original.
type Member struct {
	ActionIndex  int
	ElementIndex int
	ActionType   lib.ActionType
	Description  string
	Element      *lib.Element
}

// Group is a derived, non-persistent set of elements whose similarity to
// the group seed met the threshold. SimilarityScore is the minimum pairwise
// score observed while the group was built, a conservative bound.
type Group struct {
	Members         []Member
	SimilarityScore float64
}

// FindGroups partitions the elements of the given actions into duplicate
// groups.
//
// The clustering is single-pass and greedy: each not-yet-assigned element
// seeds a group and claims every later unassigned element whose score
// against the seed meets the threshold. Membership is single-linkage from
// the seed, deliberately not a full clique: two claimed elements are never
// compared with each other. The pass is deterministic for a given input
// order and threshold. Groups with fewer than two members are not emitted;
// the result is sorted by descending score.
func FindGroups(actions []lib.Action, threshold float64) []Group {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}

	var flat []Member
	for ai := range actions {
		for ei := range actions[ai].Elements {
			el := &actions[ai].Elements[ei]
			if el.Data == nil {
				continue
			}
			flat = append(flat, Member{
				ActionIndex:  ai,
				ElementIndex: ei,
				ActionType:   actions[ai].Type,
				Description:  actions[ai].Description,
				Element:      el,
			})
		}
	}

	assigned := make([]bool, len(flat))
	var groups []Group

	for i := range flat {
		if assigned[i] {
			continue
		}

		group := Group{Members: []Member{flat[i]}}
		minScore := 1.0
		for j := i + 1; j < len(flat); j++ {
			if assigned[j] {
				continue
			}
			s := Score(flat[i].Element.Data, flat[j].Element.Data)
			if s >= threshold {
				group.Members = append(group.Members, flat[j])
				assigned[j] = true
				if s < minScore {
					minScore = s
				}
			}
		}

		if len(group.Members) >= 2 {
			group.SimilarityScore = minScore
			assigned[i] = true
			groups = append(groups, group)
		}
	}

	sort.SliceStable(groups, func(i, j int) bool {
		return groups[i].SimilarityScore > groups[j].SimilarityScore
	})
	return groups
}

// AssignElementIDs gives every member of each group the same element id: an
// existing id found among the members, else a freshly generated one. Only
// the ElementID field is mutated; attribute maps and owning actions are
// untouched.
func AssignElementIDs(groups []Group) {
	for _, g := range groups {
		id := ""
		for _, m := range g.Members {
			if m.Element.ElementID.Valid && m.Element.ElementID.String != "" {
				id = m.Element.ElementID.String
				break
			}
		}
		if id == "" {
			id = uuid.NewString()
		}
		for _, m := range g.Members {
			m.Element.ElementID = null.StringFrom(id)
		}
	}
}
