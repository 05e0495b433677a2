package users

// CreateUserRequest represents the data needed to create a new user
type CreateUserRequest struct {
	Username   string   `json:"username" yaml:"username"`
	Privileges []string `json:"privileges" yaml:"privileges"`
}
