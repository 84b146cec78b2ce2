package domain

// User is the identity carried by an access token.
// The blog has a single author, so only the admin flag matters.
type User struct {
	Id    int64
	Admin bool
}
