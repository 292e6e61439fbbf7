package model

// Category is a server-side expense category used to populate form pickers.
type Category struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Icon        string `json:"icon,omitempty"`
	Description string `json:"description,omitempty"`
}

// Client is a billable client. A negative ID marks a placeholder created
// locally while offline; it is not known server-side and is replaced
// wholesale by the next successful client-list refresh.
type Client struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// IsLocal reports whether the client is an offline-created placeholder.
func (c Client) IsLocal() bool {
	return c.ID < 0
}
