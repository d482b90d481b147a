package shared

const (
	UserID        = "user_id"
	Username      = "username"
	UserRole      = "user_role"
	UserGroups    = "user_groups"
	TokenID       = "token_id"
	RemainingUses = "remaining_uses"

	RoleAdmin = "admin"
	RoleUser  = "user"

	HeaderAuthPrimary   = "X-Authorization"
	HeaderAuthAlternate = "Authorization"
	BearerPrefix        = "Bearer "
)
