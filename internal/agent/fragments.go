package agent

import (
	"encoding/json"
	"strings"

	"github.com/orbit-agents/orbit/pkg/models"
)

// fragmentSlot accumulates the pieces of one streamed tool call. Providers
// deliver a call's id and name first and its JSON arguments as a series of
// string fragments after that.
type fragmentSlot struct {
	id    string
	name  string
	args  strings.Builder
	order int
}

// fragmentAssembler reconstructs complete tool calls from interleaved stream
// fragments. Fragments arrive keyed by a provider-assigned slot index; the
// assembler also indexes slots by call id so a fragment carrying a known id
// under a surprising index still lands in the right call.
type fragmentAssembler struct {
	byIndex map[int]*fragmentSlot
	byID    map[string]*fragmentSlot
	seen    int
}

func newFragmentAssembler() *fragmentAssembler {
	return &fragmentAssembler{
		byIndex: make(map[int]*fragmentSlot),
		byID:    make(map[string]*fragmentSlot),
	}
}

// add routes one fragment into its slot. Routing rules, in order: a fragment
// naming a known call id goes to that call's slot regardless of index; a
// fragment for a known index goes to that slot; otherwise a fresh slot opens
// for the index. A dropped or reordered index therefore corrupts at most the
// call it belonged to, never its neighbors.
func (a *fragmentAssembler) add(index int, id, name, argsFragment string) {
	var slot *fragmentSlot
	if id != "" {
		if s, ok := a.byID[id]; ok {
			slot = s
			// Keep the id index current even if the provider moved the call.
			a.byIndex[index] = s
		}
	}
	if slot == nil {
		if s, ok := a.byIndex[index]; ok {
			slot = s
		}
	}
	if slot == nil {
		slot = &fragmentSlot{order: a.seen}
		a.seen++
		a.byIndex[index] = slot
	}

	if id != "" {
		slot.id = id
		a.byID[id] = slot
	}
	if name != "" {
		slot.name = name
	}
	if argsFragment != "" {
		slot.args.WriteString(argsFragment)
	}
}

// calls returns the assembled tool calls in first-seen order. Slots that
// never received a name are dropped; an unnamed call cannot be dispatched.
// Empty or malformed argument buffers become an empty JSON object so the
// resolver's inference fallback gets a chance instead of a parse error.
func (a *fragmentAssembler) calls() []models.ToolCall {
	slots := make([]*fragmentSlot, 0, len(a.byIndex))
	for _, s := range a.byIndex {
		slots = append(slots, s)
	}
	// Dedup: the same slot can be reachable from several indexes.
	uniq := slots[:0]
	taken := make(map[*fragmentSlot]bool, len(slots))
	for _, s := range slots {
		if !taken[s] {
			taken[s] = true
			uniq = append(uniq, s)
		}
	}
	slots = uniq

	for i := 0; i < len(slots); i++ {
		for j := i + 1; j < len(slots); j++ {
			if slots[j].order < slots[i].order {
				slots[i], slots[j] = slots[j], slots[i]
			}
		}
	}

	out := make([]models.ToolCall, 0, len(slots))
	for _, s := range slots {
		if s.name == "" {
			continue
		}
		raw := strings.TrimSpace(s.args.String())
		if raw == "" || !json.Valid([]byte(raw)) {
			raw = "{}"
		}
		out = append(out, models.ToolCall{
			ID:    s.id,
			Name:  s.name,
			Input: json.RawMessage(raw),
		})
	}
	return out
}
