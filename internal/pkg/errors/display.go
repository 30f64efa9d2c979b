package errors

// Display is the user-facing description of an error: which icon/title set the
// exam UI renders and what it suggests to the student.
type Display struct {
	Category   string `json:"category"`
	Title      string `json:"title"`
	Suggestion string `json:"suggestion"`
}

const (
	CategoryConnection         = "connection"
	CategoryExpired            = "expired"
	CategoryInvalidCredentials = "invalid_credentials"
	CategoryNotFound           = "not_found"
	CategoryRestricted         = "restricted"
	CategoryIncomplete         = "incomplete"
	CategoryValidation         = "validation"
	CategoryGeneric            = "generic"
)

var displays = map[Kind]Display{
	KindNetwork: {
		Category:   CategoryConnection,
		Title:      "Connection problem",
		Suggestion: "Check your internet connection and try again.",
	},
	KindExpired: {
		Category:   CategoryExpired,
		Title:      "Access expired",
		Suggestion: "The exam or your credentials are no longer valid. Contact your administrator for new access.",
	},
	KindInvalidCredentials: {
		Category:   CategoryInvalidCredentials,
		Title:      "Invalid credentials",
		Suggestion: "Check your username and password and try again.",
	},
	KindNotFound: {
		Category:   CategoryNotFound,
		Title:      "Exam not found",
		Suggestion: "Verify the access link or ask your administrator to confirm your assignment.",
	},
	KindAlreadyCompleted: {
		Category:   CategoryRestricted,
		Title:      "Evaluation already completed",
		Suggestion: "This evaluation has already been submitted. No further attempts are allowed.",
	},
	KindRestricted: {
		Category:   CategoryRestricted,
		Title:      "Access restricted",
		Suggestion: "Your access to the portal has been closed. Contact support if you think this is a mistake.",
	},
	KindIncompleteSubmission: {
		Category:   CategoryIncomplete,
		Title:      "Unanswered questions",
		Suggestion: "Answer every question before finishing the exam.",
	},
	KindValidation: {
		Category:   CategoryValidation,
		Title:      "Invalid data",
		Suggestion: "Review the submitted data and try again.",
	},
}

var genericDisplay = Display{
	Category:   CategoryGeneric,
	Title:      "Something went wrong",
	Suggestion: "Retry in a moment or contact support.",
}

// Describe maps an error to its user-facing display set.
func Describe(err error) Display {
	if err == nil {
		return genericDisplay
	}
	if d, ok := displays[KindOf(err)]; ok {
		return d
	}
	return genericDisplay
}
