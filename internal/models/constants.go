package models

// Unknown is the sentinel stored when a probe or directory entry reports no
// value for a descriptive field.
const Unknown = "Unknown"

// PopularityListWeight is the weight of one saved-list membership relative to
// one played minute in the search ranking formula inList*weight + playMinutes.
// One save counts roughly as half an hour of listening.
const PopularityListWeight int64 = 30

// AudioContentTypes is the allow list of stream content types accepted during
// ingestion and required by search filtering.
var AudioContentTypes = []string{
	"audio/mpeg",
	"audio/aac",
	"audio/aacp",
	"audio/ogg",
	"audio/opus",
	"audio/flac",
	"audio/x-mpegurl",
}

// IsAudioContentType reports whether ct is in the allow list. The comparison
// ignores any ";charset=..." style parameters.
func IsAudioContentType(ct string) bool {
	for i := 0; i < len(ct); i++ {
		if ct[i] == ';' {
			ct = ct[:i]
			break
		}
	}
	for _, a := range AudioContentTypes {
		if ct == a {
			return true
		}
	}
	return false
}
