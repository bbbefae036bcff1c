package core

import "time"

const (
	StepDetecting  = "Detecting your emotion..."
	StepCrafting   = "Crafting your affirmation..."
	StepPainting   = "Painting your inner masterpiece..."
	loaderRotation = 2500 * time.Millisecond
	LoaderHeadline = "Creating Your Reflection..."
)

var loaderMessages = map[string][]string{
	StepDetecting: {
		"Reading the colors of your spirit...",
		"Listening to your silent story...",
		"Translating your unique expression...",
	},
	StepCrafting: {
		"Crafting a mantra just for you...",
		"Weaving words of power...",
		"Finding your inner anthem...",
	},
	StepPainting: {
		"Painting your inner landscape...",
		"Gathering starlight for your reflection...",
		"Revealing your masterpiece...",
	},
}

// LoaderMessage picks the message shown for a step that has been running for elapsed.
// Unknown steps show the step label itself.
func LoaderMessage(step string, elapsed time.Duration) string {
	messages, ok := loaderMessages[step]
	if !ok {
		return step
	}
	if elapsed < 0 {
		elapsed = 0
	}
	return messages[int(elapsed/loaderRotation)%len(messages)]
}
