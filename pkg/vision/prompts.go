package vision

import "fmt"

// describePrompt asks for a short, factual scene description suitable for
// speech synthesis: one or two sentences, present tense, no speculation.
const describePrompt = `Describe this camera frame for a person who cannot see it.
Be concrete and brief: one or two sentences, present tense.
Mention people, their activity and notable objects. Do not speculate
about anything outside the frame.`

// answerPrompt embeds the last known scene description so the model can
// answer a follow-up question without re-seeing the frame.
func answerPrompt(sceneContext, question string) string {
	return fmt.Sprintf(`The camera currently shows the following scene:
%s

Answer this question about the scene in one or two sentences.
If the scene does not contain the answer, say so plainly.

Question: %s`, sceneContext, question)
}
