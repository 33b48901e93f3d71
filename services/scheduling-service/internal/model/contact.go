package model

// Contact is where notifications for a patient's owner or a provider go.
type Contact struct {
	ID    string
	Name  string
	Email string
	Phone string
}
