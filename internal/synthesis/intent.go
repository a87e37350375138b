package synthesis

import "regexp"

type Intent string

const (
	IntentGeneral        Intent = "general"
	IntentOfferStructure Intent = "offer_structure"
)

var (
	offerKeywords = regexp.MustCompile(`(?i)\b(offer|pricing|price|plans?|packages?|tiers?|bundle|subscription|cost|rate)\b`)
	// Catches "offer ... structure" phrasing split across words.
	offerCompound = regexp.MustCompile(`(?i)\b(offer|pricing|price)\b.*\bstructure\b|\bstructure\b.*\b(offer|pricing|price)\b`)
)

// DetectIntent classifies a question as offer_structure or general.
func DetectIntent(question string) Intent {
	if offerKeywords.MatchString(question) || offerCompound.MatchString(question) {
		return IntentOfferStructure
	}
	return IntentGeneral
}
