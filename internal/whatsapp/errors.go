package whatsapp

// Category is the stable reason a send was rejected.
type Category string

const (
	CategoryInvalidRecipient      Category = "invalid_recipient"
	CategoryOutsideWindow         Category = "outside_window"
	CategoryTemplateNotFound      Category = "template_not_found"
	CategoryMediaFailure          Category = "media_failure"
	CategoryBusinessVerification  Category = "business_verification"
	CategoryBillingLimit          Category = "billing_limit"
	CategoryTemplateParamMismatch Category = "template_param_mismatch"
	CategoryTemplatePaused        Category = "template_paused"
	CategoryRateLimited           Category = "rate_limited"
	CategoryTokenExpired          Category = "token_expired"
	CategoryOAuthFailure          Category = "oauth_failure"
	CategoryUnknown               Category = "unknown"
)

type Translation struct {
	Category Category `json:"category"`
	Message  string   `json:"message"`
}

const (
	msgInvalidRecipient      = "The recipient phone number is not a valid WhatsApp number. Check the number and country code."
	msgOutsideWindow         = "More than 24 hours have passed since the customer last replied. Use an approved template message to re-open the conversation."
	msgTemplateNotFound      = "The template does not exist or is not approved for this language."
	msgMediaFailure          = "WhatsApp could not download the media. Make sure the URL is public and the file type and size are supported."
	msgBusinessVerification  = "Your WhatsApp Business account needs verification (or is restricted) before it can send this message."
	msgBillingLimit          = "Messaging limit or payment issue on the WhatsApp Business account. Check billing and messaging limits in Business Manager."
	msgTemplateParamMismatch = "The template parameters do not match the template definition. Check the number and format of variables."
	msgTemplatePaused        = "The template is paused or disabled because of low quality ratings."
	msgRateLimited           = "Too many messages sent in a short time. Wait a moment and try again."
	msgTokenExpired          = "The WhatsApp access token has expired. Reconnect the WhatsApp number."
	msgOAuthFailure          = "WhatsApp authorization failed. Reconnect the WhatsApp number to refresh its permissions."
)

type codeKey struct {
	code    int
	subcode int
}

// subcodeTable rows win over codeTable rows for the same code.
var subcodeTable = map[codeKey]Translation{
	{190, 463}: {CategoryTokenExpired, msgTokenExpired},
	{190, 467}: {CategoryTokenExpired, msgTokenExpired},
	{190, 460}: {CategoryOAuthFailure, msgOAuthFailure},
}

var codeTable = map[int]Translation{
	// recipient
	131026: {CategoryInvalidRecipient, msgInvalidRecipient},
	131030: {CategoryInvalidRecipient, msgInvalidRecipient},
	131021: {CategoryInvalidRecipient, msgInvalidRecipient},
	133010: {CategoryInvalidRecipient, msgInvalidRecipient},

	// customer service window
	131047: {CategoryOutsideWindow, msgOutsideWindow},

	// templates
	132001: {CategoryTemplateNotFound, msgTemplateNotFound},
	132000: {CategoryTemplateParamMismatch, msgTemplateParamMismatch},
	132012: {CategoryTemplateParamMismatch, msgTemplateParamMismatch},
	131008: {CategoryTemplateParamMismatch, msgTemplateParamMismatch},
	132015: {CategoryTemplatePaused, msgTemplatePaused},
	132016: {CategoryTemplatePaused, msgTemplatePaused},

	// media
	131052: {CategoryMediaFailure, msgMediaFailure},
	131053: {CategoryMediaFailure, msgMediaFailure},

	// account standing
	131031: {CategoryBusinessVerification, msgBusinessVerification},
	368:    {CategoryBusinessVerification, msgBusinessVerification},
	131042: {CategoryBillingLimit, msgBillingLimit},
	131045: {CategoryBillingLimit, msgBillingLimit},

	// throughput
	4:      {CategoryRateLimited, msgRateLimited},
	80007:  {CategoryRateLimited, msgRateLimited},
	130429: {CategoryRateLimited, msgRateLimited},
	131048: {CategoryRateLimited, msgRateLimited},
	131056: {CategoryRateLimited, msgRateLimited},

	// auth
	190: {CategoryTokenExpired, msgTokenExpired},
	10:  {CategoryOAuthFailure, msgOAuthFailure},
	200: {CategoryOAuthFailure, msgOAuthFailure},
}

// Translate maps a Graph API error onto one user-facing string. Unmapped codes
// pass the provider message through unchanged.
func Translate(code, subcode int, message, errType string) Translation {
	if subcode != 0 {
		if t, ok := subcodeTable[codeKey{code, subcode}]; ok {
			return t
		}
	}
	if t, ok := codeTable[code]; ok {
		return t
	}
	// platform-level auth and permission codes sit below 1000; 100 is "invalid parameter"
	if errType == "OAuthException" && code > 0 && code < 1000 && code != 100 {
		return Translation{CategoryOAuthFailure, msgOAuthFailure}
	}
	return Translation{CategoryUnknown, message}
}
