package sequencer

// Progress is the position within an ordered exercise battery. Index is
// always a valid position in Exercises; finishing the last exercise sets
// Complete instead of moving Index past the end.
type Progress struct {
	Exercises []string `json:"exercises"`
	Index     int      `json:"index"`
	Complete  bool     `json:"complete"`
}

// NewProgress starts a battery at its first exercise.
func NewProgress(exerciseIDs []string) Progress {
	ids := make([]string, len(exerciseIDs))
	copy(ids, exerciseIDs)
	return Progress{Exercises: ids}
}

// Current returns the exercise at the cursor. ok is false once the battery
// is complete.
func (p Progress) Current() (exerciseID string, ok bool) {
	if p.Complete || !p.valid() {
		return "", false
	}
	return p.Exercises[p.Index], true
}

// Position is the 1-based cursor position, as shown to the user.
func (p Progress) Position() int { return p.Index + 1 }

func (p Progress) Total() int { return len(p.Exercises) }

func (p Progress) IsLast() bool { return p.Index == len(p.Exercises)-1 }

// next returns the progress after the current exercise is done.
func (p Progress) next() Progress {
	out := p.clone()
	if out.Complete {
		return out
	}
	if out.IsLast() {
		out.Complete = true
		return out
	}
	out.Index++
	return out
}

func (p Progress) clone() Progress {
	out := p
	out.Exercises = make([]string, len(p.Exercises))
	copy(out.Exercises, p.Exercises)
	return out
}

func (p Progress) valid() bool {
	return p.Index >= 0 && p.Index < len(p.Exercises)
}

func (p Progress) sameBattery(ids []string) bool {
	if len(p.Exercises) != len(ids) {
		return false
	}
	for i := range ids {
		if p.Exercises[i] != ids[i] {
			return false
		}
	}
	return true
}
