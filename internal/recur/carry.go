package recur

import (
	"motido/internal/model"
)

// CarrySubtasks computes the next instance's subtask list from the completed
// instance's list. The result never aliases the input.
//
//   - default: when every subtask was completed the whole list carries
//     forward reset to incomplete (the cycle advances); otherwise the list
//     is inherited as-is, incomplete entries included.
//   - partial: only completed subtasks carry forward, still complete.
//   - always: the whole list carries forward reset to incomplete.
func CarrySubtasks(subs []model.Subtask, mode model.SubtaskMode) []model.Subtask {
	if len(subs) == 0 {
		return nil
	}

	switch mode {
	case model.SubtaskPartial:
		out := make([]model.Subtask, 0, len(subs))
		for _, s := range subs {
			if s.Complete {
				out = append(out, s)
			}
		}
		if len(out) == 0 {
			return nil
		}
		return out

	case model.SubtaskAlways:
		return resetAll(subs)

	default: // model.SubtaskDefault
		for _, s := range subs {
			if !s.Complete {
				return append([]model.Subtask(nil), subs...)
			}
		}
		return resetAll(subs)
	}
}

func resetAll(subs []model.Subtask) []model.Subtask {
	out := make([]model.Subtask, len(subs))
	for i, s := range subs {
		out[i] = model.Subtask{Text: s.Text}
	}
	return out
}
