package model

// Credentials is the body of /auth/login and /auth/signup.
type Credentials struct {
	Username string `json:"username" validate:"required,max=50"`
	Password string `json:"password" validate:"required"`
}

// BirdInput is the "bird" part of a catalog create or update.
type BirdInput struct {
	CommonName     string `json:"commonName" validate:"required,min=2,max=100"`
	ScientificName string `json:"scientificName,omitempty"`
	ImageURL       string `json:"imageURL,omitempty" validate:"omitempty,url"`
}

// PostInput is the "post" part of a sighting create or update.
type PostInput struct {
	Header   string  `json:"header" validate:"required,max=100"`
	TextBody string  `json:"textBody" validate:"required,max=280"`
	Bird     *string `json:"bird"`
	Group    *string `json:"group,omitempty"`
	Help     bool    `json:"help"`
	Tags     *Tags   `json:"tags,omitempty"`
}

// CommentInput is the body of a new comment.
type CommentInput struct {
	TextBody string `json:"textBody" validate:"required,max=280"`
}

// GroupInput is the "group" part of a group create.
type GroupInput struct {
	Name        string     `json:"name" validate:"required,max=40"`
	Description string     `json:"description"`
	Tags        []string   `json:"tags"`
	Members     []PostUser `json:"members"`
	Requests    []PostUser `json:"requests"`
}

// GroupRename is the body of a group update.
type GroupRename struct {
	Name string `json:"name" validate:"required,max=40"`
}

// ProfileInput is the "user" part of a profile update. Empty fields are left unchanged.
type ProfileInput struct {
	Username  string `json:"username,omitempty" validate:"omitempty,max=50"`
	FirstName string `json:"firstName,omitempty" validate:"omitempty,max=50"`
	LastName  string `json:"lastName,omitempty" validate:"omitempty,max=50"`
}

// OnboardingInput is the form sent to /users/onboard.
type OnboardingInput struct {
	FirstName string `validate:"required,max=50"`
	LastName  string `validate:"required,max=50"`
	Location  string `validate:"required"`
}

// RoleChange is the body of a role update.
type RoleChange struct {
	Role string `json:"role" validate:"required,oneof=GUEST BASIC_USER ADMIN_USER SUPER_USER"`
}
