package service

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/lgscvb/Brain-sub000/internal/knowledge"
)

// DraftSystemInstruction frames the draft generator. The model must answer
// in the customer's language and expose its reasoning in a separate section
// so the agent sees why the reply was shaped that way.
const DraftSystemInstruction = `You are a customer-service reply assistant for a property rental company.
Write a reply draft to the customer's message. Always answer in the same
language the customer used. Be polite, concrete and concise. Use the
provided knowledge snippets when they are relevant; never invent facts
that contradict them.

Respond in exactly this format:

Reply:
<the reply draft>

Strategy:
<one or two sentences describing the approach taken>`

// RefineSystemInstruction frames the refinement engine. Output is the
// revised reply only; the caller keeps its own history.
const RefineSystemInstruction = `You are revising a customer-service reply draft according to an agent's
instruction. Keep everything that the instruction does not ask to change.
Always answer in the same language as the draft. Output only the revised
reply text, nothing else.`

// SuggestionSystemInstruction frames the best-effort knowledge-suggestion
// detector. It must answer with strict JSON.
const SuggestionSystemInstruction = `You monitor refinement instructions from customer-service agents and spot
reusable facts worth saving to a knowledge base (prices, policies,
procedures, contact details). Respond with strict JSON only:
{"has_suggestion": true|false, "content": "<the fact>", "category": "<short category>"}
If the exchange contains no reusable fact, return {"has_suggestion": false}.`

// BuildDraftPrompt assembles the generation prompt from the message and
// retrieved knowledge context.
func BuildDraftPrompt(messageContent string, chunks []knowledge.Chunk) string {
	var b strings.Builder
	if len(chunks) > 0 {
		b.WriteString("Knowledge snippets:\n")
		for i, chunk := range chunks {
			fmt.Fprintf(&b, "%d. %s\n", i+1, chunk.Content)
		}
		b.WriteString("\n")
	}
	b.WriteString("Customer message:\n")
	b.WriteString(messageContent)
	return b.String()
}

// BuildRefinePrompt assembles the refinement prompt from the original
// message, the content being revised, and the agent's instruction.
func BuildRefinePrompt(messageContent, currentContent, instruction string) string {
	var b strings.Builder
	b.WriteString("Customer message:\n")
	b.WriteString(messageContent)
	b.WriteString("\n\nCurrent reply draft:\n")
	b.WriteString(currentContent)
	b.WriteString("\n\nAgent instruction:\n")
	b.WriteString(instruction)
	return b.String()
}

// BuildSuggestionPrompt assembles the knowledge-suggestion detector prompt.
func BuildSuggestionPrompt(instruction, revisedContent string) string {
	var b strings.Builder
	b.WriteString("Agent instruction:\n")
	b.WriteString(instruction)
	b.WriteString("\n\nRevised reply:\n")
	b.WriteString(revisedContent)
	return b.String()
}

// parseSection extracts the text between a "Label:" marker and the next
// known marker (or end of text). Markers may appear at line starts only.
func parseSection(raw, label string, otherLabels ...string) string {
	idx := sectionIndex(raw, label)
	if idx < 0 {
		return ""
	}
	body := raw[idx+len(label):]

	end := len(body)
	for _, other := range otherLabels {
		if j := sectionIndex(body, other); j >= 0 && j < end {
			end = j
		}
	}
	return strings.TrimSpace(body[:end])
}

func sectionIndex(raw, label string) int {
	if strings.HasPrefix(raw, label) {
		return 0
	}
	if j := strings.Index(raw, "\n"+label); j >= 0 {
		return j + 1
	}
	return -1
}

type suggestionPayload struct {
	HasSuggestion bool   `json:"has_suggestion"`
	Content       string `json:"content"`
	Category      string `json:"category"`
}

// parseSuggestion parses the detector's JSON answer, tolerating markdown
// code fences around it.
func parseSuggestion(raw string) (*suggestionPayload, error) {
	clean := strings.TrimSpace(raw)
	clean = strings.TrimPrefix(clean, "```json")
	clean = strings.TrimPrefix(clean, "```")
	clean = strings.TrimSuffix(clean, "```")
	clean = strings.TrimSpace(clean)

	var payload suggestionPayload
	if err := json.Unmarshal([]byte(clean), &payload); err != nil {
		return nil, fmt.Errorf("failed to parse suggestion response: %w", err)
	}
	return &payload, nil
}
