package prd

// FeatureRef is one feature with its position in the PRD tree. Index is a
// stable zero-based position assigned in document order (epics, then
// stories, then features).
type FeatureRef struct {
	Index        int
	EpicName     string
	EpicPriority string
	StoryTitle   string
	Feature      Feature
}

// Flatten walks epics, stories and features in document order and returns
// an indexed feature list. The same traversal order is used by Select, so
// a selection can be re-expanded into semantically equivalent features.
func Flatten(doc *Document) []FeatureRef {
	if doc == nil {
		return nil
	}
	var refs []FeatureRef
	idx := 0
	for _, epic := range doc.Epics {
		for _, story := range epic.Stories {
			for _, f := range story.Features {
				refs = append(refs, FeatureRef{
					Index:        idx,
					EpicName:     epic.Name,
					EpicPriority: epic.Priority,
					StoryTitle:   story.Title,
					Feature:      f,
				})
				idx++
			}
		}
	}
	return refs
}

// Select filters the flattened list by the given index set, preserving the
// original relative order. Indices outside the list are ignored. An empty
// selection is legal and returns an empty slice.
func Select(all []FeatureRef, indices []int) []FeatureRef {
	wanted := make(map[int]bool, len(indices))
	for _, i := range indices {
		wanted[i] = true
	}
	selected := make([]FeatureRef, 0, len(indices))
	for _, ref := range all {
		if wanted[ref.Index] {
			selected = append(selected, ref)
		}
	}
	return selected
}

// AllIndices returns the full index set for a flattened feature list.
func AllIndices(all []FeatureRef) []int {
	indices := make([]int, len(all))
	for i := range all {
		indices[i] = all[i].Index
	}
	return indices
}
