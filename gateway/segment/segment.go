// Package segment splits raw model output into an optional reasoning
// section and the final answer. Reasoning models such as deepseek-r1 emit
// their chain of thought between <think> and </think> markers ahead of the
// actual reply.
package segment

import "strings"

const (
	openMarker  = "<think>"
	closeMarker = "</think>"
)

// Response is the result of splitting one raw completion. Reasoning is nil
// when no well-formed reasoning section was found; Answer always holds the
// text to present to the caller.
type Response struct {
	Reasoning *string `json:"reasoning,omitempty"`
	Answer    string  `json:"answer"`
}

func (r Response) HasReasoning() bool {
	return r.Reasoning != nil
}

// Split never fails. Anything that is not an opening marker strictly before
// a closing marker degrades to the raw text untouched, so a truncated or
// malformed completion still reaches the caller verbatim.
func Split(raw string) Response {
	start := strings.Index(raw, openMarker)
	end := strings.Index(raw, closeMarker)
	if start < 0 || end < 0 || start >= end {
		return Response{Answer: raw}
	}

	reasoning := strings.TrimSpace(raw[start+len(openMarker) : end])
	answer := strings.TrimSpace(raw[end+len(closeMarker):])
	return Response{Reasoning: &reasoning, Answer: answer}
}
