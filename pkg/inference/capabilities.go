// Package inference defines the polymorphic backend contract and the shared
// result and capability types its implementations produce.
package inference

// Capabilities declares what a loaded (or registered) model can produce.
// It is attached to every ModelSpec and is also returned by a live Backend
// once loaded, so the admission layer can gate requests before a swap is
// incurred.
type Capabilities struct {
	Timestamp      bool `json:"timestamp"`
	Diarization    bool `json:"diarization"`
	EmotionTags    bool `json:"emotion_tags"`
	LanguageDetect bool `json:"language_detect"`
}
