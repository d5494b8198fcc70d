package models

import "fmt"

// Frame is a Skylight display device tied to a user account
type Frame struct {
	ID   string `json:"id" yaml:"id"`
	Name string `json:"name" yaml:"name"`
}

// DisplayName returns the frame name, or a generated one when the API gave none
func (f Frame) DisplayName() string {
	if f.Name != "" {
		return f.Name
	}
	return fmt.Sprintf("Skylight Frame %s", f.ID)
}

// MergeFrames returns the union of existing and discovered keyed by frame ID.
// Existing frames keep their position and stored name; unseen discovered
// frames are appended in discovery order.
func MergeFrames(existing, discovered []Frame) []Frame {
	merged := make([]Frame, 0, len(existing)+len(discovered))
	seen := make(map[string]struct{}, len(existing)+len(discovered))

	for _, list := range [][]Frame{existing, discovered} {
		for _, frame := range list {
			if _, ok := seen[frame.ID]; ok {
				continue
			}
			seen[frame.ID] = struct{}{}
			merged = append(merged, frame)
		}
	}

	return merged
}

// SelectFrames returns the frames whose IDs are in ids, preserving the order of frames
func SelectFrames(frames []Frame, ids []string) []Frame {
	wanted := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		wanted[id] = struct{}{}
	}

	selected := make([]Frame, 0, len(ids))
	for _, frame := range frames {
		if _, ok := wanted[frame.ID]; ok {
			selected = append(selected, frame)
		}
	}
	return selected
}
