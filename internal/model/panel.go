package model

// Panel is an account created on a remote panel. The password is only ever
// held in memory for the response that returns it.
type Panel struct {
	ID       int      `json:"id"`
	Username string   `json:"username"`
	Email    string   `json:"email"`
	Password string   `json:"password"`
	Server   ServerID `json:"server"`
	RAMLimit int      `json:"ramLimit"`
}
