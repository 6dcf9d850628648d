package model

// Profile holds the editable profile fields of a user account.
type Profile struct {
	FullName string `json:"fullName"`
	Phone    string `json:"phone"`
}

// User is the authenticated account projection returned by the backend.
type User struct {
	ID       string  `json:"id"`
	Email    string  `json:"email"`
	Username string  `json:"username"`
	Role     string  `json:"role"`
	Profile  Profile `json:"profile"`
}
