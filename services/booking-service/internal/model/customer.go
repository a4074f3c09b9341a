package model

// Customer is keyed by Phone; repeated bookings overwrite Name and Instagram.
type Customer struct {
	ID        string
	Name      string
	Phone     string
	Instagram string
}

type AdminUser struct {
	ID           string
	PasswordHash string
}
