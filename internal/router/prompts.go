package router

import (
	"fmt"
	"strings"

	"github.com/flemzord/policychat/internal/retrieval"
)

const classifySystemPrompt = `You classify messages sent to a customer service assistant that answers questions about a privacy policy. Reply with exactly one category name and nothing else.

GREETING - the user says hello or starts the conversation
FOLLOWUP - the user wants more details about the previous topic ("tell me more", "more info", "elaborate")
QUERY - the user asks a specific question about the privacy policy, data collection, cookies, or their rights
GOODBYE - the user ends the conversation, including any thanks or sign of satisfaction ("thanks", "that's all", "bye", "perfect")
UNCLEAR - anything else

Be very sensitive to goodbye hints: any sign the user is satisfied or leaving is GOODBYE.`

func classifyPrompt(utterance string) string {
	return fmt.Sprintf("User message: %q\n\nCategory (GREETING, FOLLOWUP, QUERY, GOODBYE or UNCLEAR):", utterance)
}

func personaPrompt(persona string) string {
	return fmt.Sprintf("You are %s, speaking on behalf of the company about its privacy policy. "+
		"Always say \"we\", \"our\" and \"us\" when referring to the company.", persona)
}

const greetingPrompt = "A user just greeted you. Respond warmly, introduce yourself, and say you can help with questions about our privacy policy. Two or three sentences at most."

const goodbyePrompt = "The user is ending the conversation. Say goodbye warmly and thank them for their interest in our privacy practices. One or two sentences."

func unclearPrompt(utterance string) string {
	return fmt.Sprintf("The user wrote: %q\n\n"+
		"It is not clear what they want. Politely ask them to rephrase, refer to what they wrote, "+
		"and mention that you can help with data collection, cookies and privacy rights. Two sentences at most.", utterance)
}

func answerPrompt(question string, passages []retrieval.Passage) string {
	var b strings.Builder
	fmt.Fprintf(&b, "User question: %s\n\nRelevant information from our privacy policy:\n%s\n", question, contextBlock(passages))
	b.WriteString(`
Instructions:
- Answer naturally and conversationally using only the information above.
- Explain it in a friendly, easy-to-understand way; use bullet points when listing several items.
- If something is not covered, say so plainly.
- Do not start with a greeting such as "Hi there!" or "Hello!"; go straight to the answer.`)
	return b.String()
}

func followupPrompt(previous string, passages []retrieval.Passage) string {
	var b strings.Builder
	fmt.Fprintf(&b, "The user previously asked: %q\nThey now want MORE DETAILS about this topic.\n\nRelevant information from our privacy policy:\n%s\n", previous, contextBlock(passages))
	b.WriteString(`
Instructions:
- Give a more thorough answer than before, covering every relevant specific in the information above.
- Keep it conversational; break it down with examples where helpful.
- Do not start with a greeting such as "Hi there!" or "Hello!"; go straight to the details.`)
	return b.String()
}

func contextBlock(passages []retrieval.Passage) string {
	parts := make([]string, 0, len(passages))
	for i, p := range passages {
		parts = append(parts, fmt.Sprintf("Context %d: %s", i+1, strings.TrimSpace(p.Content)))
	}
	return strings.Join(parts, "\n\n")
}

// followupCue is appended to the previous question to broaden retrieval.
const followupCue = " - provide more detailed information and additional context"

// engagementMinLength is the length an answer must exceed before an
// engagement question is appended.
const engagementMinLength = 100

var queryEngagement = []string{
	"Is there anything else you'd like to know about this topic, or do you have other privacy questions?",
	"Would you like more information on this, or do you have any other questions about our privacy practices?",
	"Do you need more details about this, or is there something else regarding our privacy policy you'd like to know?",
	"Is there anything else about this topic you'd like me to clarify, or do you have other privacy-related questions?",
}

var followupEngagement = []string{
	"Does this answer your question completely, or would you like even more details about any specific aspect?",
	"Is this the level of detail you were looking for, or would you like me to elaborate on any particular point?",
	"Does this cover what you wanted to know, or do you have follow-up questions about any of these points?",
	"Is there anything specific you'd like me to expand on further?",
}

// greetingPrefixes are stripped from the start of generated answers.
var greetingPrefixes = []string{
	"Hi there!", "Hello there!", "Hey there!", "Hello!", "Hi!", "Hey!",
	"Good morning!", "Good afternoon!", "Good evening!", "Greetings!",
}

// stripGreeting removes one leading greeting phrase from an answer.
func stripGreeting(text string) string {
	text = strings.TrimSpace(text)
	for _, g := range greetingPrefixes {
		if strings.HasPrefix(text, g) {
			return strings.TrimSpace(text[len(g):])
		}
	}
	return text
}
