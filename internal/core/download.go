package core

import (
	"fmt"
	"regexp"

	"github.com/jo-hoe/emotionmirror/internal/backend/database"
)

var unsafeFilenameChars = regexp.MustCompile(`[^A-Za-z0-9]`)

// DownloadFilename names the downloaded art after its emotion and creation time in epoch milliseconds
func DownloadFilename(entry *database.Entry) string {
	safeEmotion := unsafeFilenameChars.ReplaceAllString(entry.Emotion, "_")
	return fmt.Sprintf("EmotionMirror_%s_%d.png", safeEmotion, entry.Timestamp.UnixMilli())
}
