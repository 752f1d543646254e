package guard

// ReasonCode identifies why a request was blocked, independent of the
// response copy shown to the customer. Decision logic deals only in
// codes; the text below can change without touching detection.
type ReasonCode string

const (
	ReasonNone           ReasonCode = ""
	ReasonRateLimited    ReasonCode = "rate_limited"
	ReasonKeywordBlocked ReasonCode = "keyword_blocked"
	ReasonPatternBlocked ReasonCode = "pattern_blocked"
)

// cannedResponses maps reason codes to the safe response text the chat
// pipeline shows in place of AI-generated content.
var cannedResponses = map[ReasonCode]string{
	ReasonRateLimited: "You've reached the hourly limit for code generation requests. " +
		"Your quota resets automatically; please try again later.",
	ReasonKeywordBlocked: "I can't help with questions about how this platform is built " +
		"internally. I'm happy to help you get the most out of your AI employees instead " +
		"- just let me know what you'd like them to do.",
	ReasonPatternBlocked: "This request touches on restricted implementation details and " +
		"needs manual review before I can respond. Our team has been notified and will " +
		"follow up with you.",
}

// ResponseFor returns the canned response for a reason code, or the
// empty string for allowed requests.
func ResponseFor(code ReasonCode) string {
	return cannedResponses[code]
}
