package handler

const (
	errInternalServer = "Internal server error"
	errNotSignedIn    = "Sign in required"
	errTokenNotFound  = "Token not found"
	errLinkInvalid    = "Link is invalid"
	errLinkUsed       = "Link has already been used"
	errLinkExpired    = "Link has expired"
)
