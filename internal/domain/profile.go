package domain

import "time"

// ============================================================
// Profile: authorization record owned by the backend
// ============================================================

// Role is the authorization level stored on a profile.
type Role string

const (
	RoleSuperadmin Role = "superadmin"
	RoleGestor     Role = "gestor"
	RoleAdmin      Role = "admin"
	RoleCliente    Role = "cliente"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleSuperadmin, RoleGestor, RoleAdmin, RoleCliente:
		return true
	}
	return false
}

// Profile mirrors a row of the `profiles` table.
type Profile struct {
	UserID        string     `json:"user_id"`
	Email         *string    `json:"email"`
	Nome          *string    `json:"nome"`
	Telefone      *string    `json:"telefone"`
	Role          Role       `json:"role"`
	Org           *string    `json:"org"`
	Orgs          []string   `json:"orgs"`
	DefaultTable  *string    `json:"default_table"`
	AllowedTables []string   `json:"allowed_tables"`
	IsActive      bool       `json:"is_active"`
	CreatedAt     *time.Time `json:"created_at,omitempty"`
}

// IsSuperadmin reports whether the profile holds the privileged role.
func (p *Profile) IsSuperadmin() bool {
	return p != nil && p.Role == RoleSuperadmin
}

// TableOption is a dataset descriptor returned by rpc_list_crm_tables.
type TableOption struct {
	TableName   string `json:"table_name"`
	DisplayName string `json:"display_name"`
}

// AuthUser is the identity behind a verified access token.
type AuthUser struct {
	ID          string `json:"id"`
	Email       string `json:"email,omitempty"`
	AccessToken string `json:"-"`
}

// ============================================================
// Request / Response types (matches the dashboard's API contract)
// ============================================================

// CreateUserRequest is the body for POST /api/admin/create-user.
type CreateUserRequest struct {
	Email         string   `json:"email"`
	Nome          string   `json:"nome"`
	Telefone      string   `json:"telefone"`
	Role          Role     `json:"role"`
	Orgs          []string `json:"orgs"`
	AllowedTables []string `json:"allowedTables"`
	DefaultTable  string   `json:"defaultTable"`
}

// CreateUserResponse is returned after a successful invitation.
type CreateUserResponse struct {
	UserID        string   `json:"user_id"`
	Email         string   `json:"email"`
	AllowedTables []string `json:"allowed_tables"`
	DefaultTable  string   `json:"default_table"`
}

// SetDefaultTableRequest is the body for PATCH /api/me.
type SetDefaultTableRequest struct {
	DefaultTable string `json:"defaultTable"`
}

// GrantTablesRequest is the body for PATCH /api/me/allowed-tables.
// Older clients send the list as `tables` or `tablesToAdd`.
type GrantTablesRequest struct {
	Add          []string `json:"add"`
	Tables       []string `json:"tables,omitempty"`
	TablesToAdd  []string `json:"tablesToAdd,omitempty"`
	DefaultTable string   `json:"defaultTable,omitempty"`
}

// Names returns the tables to add, honoring the legacy aliases.
func (r *GrantTablesRequest) Names() []string {
	var raw []string
	switch {
	case len(r.Add) > 0:
		raw = r.Add
	case len(r.Tables) > 0:
		raw = r.Tables
	default:
		raw = r.TablesToAdd
	}
	out := make([]string, 0, len(raw))
	for _, t := range raw {
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

// GrantTablesResponse is the data returned by a table grant.
type GrantTablesResponse struct {
	AllowedTables []string `json:"allowed_tables"`
	DefaultTable  *string  `json:"default_table"`
}

// SetActiveRequest is the body for PATCH /api/admin/users/{userId}/active.
type SetActiveRequest struct {
	IsActive *bool `json:"is_active"`
}

// ProfileUpsert is the payload written to `profiles` when provisioning a user.
type ProfileUpsert struct {
	UserID        string   `json:"user_id"`
	Email         string   `json:"email"`
	Nome          string   `json:"nome,omitempty"`
	Telefone      string   `json:"telefone,omitempty"`
	Role          Role     `json:"role"`
	Org           *string  `json:"org"`
	Orgs          []string `json:"orgs"`
	AllowedTables []string `json:"allowed_tables"`
	DefaultTable  string   `json:"default_table"`
	IsActive      bool     `json:"is_active"`
}
