// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package agent

import (
	"strings"
)

// decision is one parsed model turn: either a tool call or a final
// answer.
type decision struct {
	Thought     string
	Action      string
	ActionInput string
	FinalAnswer string
	IsFinal     bool
}

const (
	markerThought     = "Thought:"
	markerAction      = "Action:"
	markerActionInput = "Action Input:"
	markerFinal       = "Final Answer:"
	markerObservation = "Observation:"
)

// parseDecision interprets a raw model turn in the Thought / Action /
// Action Input / Final Answer text protocol.
//
// A "Final Answer:" marker wins over everything after it. A turn with
// an Action but no parseable input still dispatches (tools report their
// own input errors). A turn with neither marker is treated as a final
// answer: models occasionally skip the protocol for trivial questions,
// and swallowing the text would look like a hang to the user.
func parseDecision(output string) decision {
	d := decision{}

	if idx := strings.Index(output, markerFinal); idx >= 0 {
		d.IsFinal = true
		d.FinalAnswer = strings.TrimSpace(output[idx+len(markerFinal):])
		d.Thought = extractThought(output[:idx])
		return d
	}

	actionIdx := strings.Index(output, markerAction)
	if actionIdx < 0 {
		d.IsFinal = true
		d.FinalAnswer = strings.TrimSpace(output)
		return d
	}

	d.Thought = extractThought(output[:actionIdx])

	rest := output[actionIdx+len(markerAction):]
	if inputIdx := strings.Index(rest, markerActionInput); inputIdx >= 0 {
		d.Action = strings.TrimSpace(rest[:inputIdx])
		input := rest[inputIdx+len(markerActionInput):]
		// The model may keep generating past its own observation
		// placeholder; cut there.
		if obsIdx := strings.Index(input, markerObservation); obsIdx >= 0 {
			input = input[:obsIdx]
		}
		d.ActionInput = strings.TrimSpace(input)
	} else {
		if nlIdx := strings.Index(rest, "\n"); nlIdx >= 0 {
			d.Action = strings.TrimSpace(rest[:nlIdx])
		} else {
			d.Action = strings.TrimSpace(rest)
		}
	}
	return d
}

func extractThought(text string) string {
	if idx := strings.Index(text, markerThought); idx >= 0 {
		return strings.TrimSpace(text[idx+len(markerThought):])
	}
	return strings.TrimSpace(text)
}
