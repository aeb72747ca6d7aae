package harness

import "github.com/humanbeeng/codelocbench/internal/llmclient"

// maxHistoryMessages bounds how much conversation a single turn sends
// back to the model. Beyond this, sanitize keeps the leading system
// and user messages (the task framing) plus the most recent coherent
// block, rather than truncating blindly from the front or back.
const maxHistoryMessages = 400

// repairOrphanToolCalls restores conversation integrity around two
// kinds of half-finished tool turns: a function_call whose matching
// function_output never arrived (the turn errored out mid-flight
// before the tool finished) gets a synthetic error function_output
// injected right after it, rather than being dropped, so the model
// sees its call failed instead of the call silently vanishing; a
// function_output whose function_call is missing is dropped outright,
// since the Responses API rejects a dangling result with no call to
// attach to.
func repairOrphanToolCalls(conversation []llmclient.Message) []llmclient.Message {
	calledIDs := make(map[string]bool)
	answeredIDs := make(map[string]bool)
	for _, m := range conversation {
		switch m.Kind {
		case llmclient.KindFunctionCall:
			calledIDs[m.CallID] = true
		case llmclient.KindFunctionOutput:
			answeredIDs[m.CallID] = true
		}
	}

	repaired := make([]llmclient.Message, 0, len(conversation))
	for _, m := range conversation {
		if m.Kind == llmclient.KindFunctionOutput && !calledIDs[m.CallID] {
			continue
		}
		repaired = append(repaired, m)
		if m.Kind == llmclient.KindFunctionCall && !answeredIDs[m.CallID] {
			repaired = append(repaired, llmclient.Message{
				Kind:    llmclient.KindFunctionOutput,
				CallID:  m.CallID,
				Content: "Error: tool call did not complete before the turn ended",
			})
		}
	}
	return repaired
}

// sanitizeHistory keeps the conversation within maxHistoryMessages by
// preserving the leading system/user messages and the most recent
// coherent block, so a long-running turn budget never forces the
// model to reason over a context window it can't hold.
func sanitizeHistory(conversation []llmclient.Message) []llmclient.Message {
	if len(conversation) <= maxHistoryMessages {
		return conversation
	}

	var head []llmclient.Message
	i := 0
	for i < len(conversation) && conversation[i].Kind == llmclient.KindMessage &&
		(conversation[i].Role == "system" || conversation[i].Role == "user") {
		head = append(head, conversation[i])
		i++
		if len(head) >= maxHistoryMessages/4 {
			break
		}
	}

	tailBudget := maxHistoryMessages - len(head)
	tailStart := len(conversation) - tailBudget
	if tailStart < i {
		tailStart = i
	}
	tail := conversation[tailStart:]

	// A function_output at the very start of the tail with no matching
	// function_call in that window would be rejected upstream; repair
	// drops it rather than sending a dangling tool result.
	merged := append(append([]llmclient.Message{}, head...), tail...)
	return repairOrphanToolCalls(merged)
}
