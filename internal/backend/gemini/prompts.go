package gemini

import "fmt"

const (
	emotionPrompt = "Analyze the primary emotion of the person in this image. Respond with a single, clear emotion word (e.g., Joy, Sadness, Surprise)."

	affirmationSystemInstruction = "You are a poetic and wise guide. You reframe emotions into strengths."
)

func affirmationPrompt(emotion string) string {
	return fmt.Sprintf("Write a short, powerful, poetic affirmation for someone feeling %s. The tone should be empowering and transformative.", emotion)
}

func artPrompt(emotion, affirmation string) string {
	return fmt.Sprintf("Taking inspiration from the emotion \"%s\" and the affirmation \"%s\", transform this photo into an inspiring and artistic piece. "+
		"Enhance the person's image with surreal, beautiful, and empowering visual elements that reflect their inner strength. "+
		"The person should remain the focus, but the background and atmosphere should be dreamlike and motivational.", emotion, affirmation)
}
