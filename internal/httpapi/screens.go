package httpapi

import "flowbit.dev/internal/auth"

type screen struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	URL         string      `json:"url"`
	Icon        string      `json:"icon"`
	Permissions []auth.Role `json:"permissions"`
}

type tenantConfig struct {
	Name    string
	Theme   string
	Screens []screen
}

var tenantConfigs = map[string]tenantConfig{
	"LogisticsCo": {
		Name:  "Logistics Corporation",
		Theme: "blue",
		Screens: []screen{
			{ID: "support-tickets", Name: "Support Tickets", URL: "/support-tickets", Icon: "ticket", Permissions: []auth.Role{auth.RoleUser, auth.RoleAdmin}},
			{ID: "admin-dashboard", Name: "Admin Dashboard", URL: "/admin", Icon: "dashboard", Permissions: []auth.Role{auth.RoleAdmin}},
		},
	},
	"RetailGmbH": {
		Name:  "Retail GmbH",
		Theme: "green",
		Screens: []screen{
			{ID: "support-tickets", Name: "Customer Support", URL: "/support-tickets", Icon: "support", Permissions: []auth.Role{auth.RoleUser, auth.RoleAdmin}},
		},
	},
}

func tenantUI(tenantID string) (tenantConfig, bool) {
	cfg, ok := tenantConfigs[tenantID]
	return cfg, ok
}

// screensFor keeps the screens whose permissions list role exactly.
func (c tenantConfig) screensFor(role auth.Role) []screen {
	out := make([]screen, 0, len(c.Screens))
	for _, s := range c.Screens {
		if auth.HasRole(role, s.Permissions...) {
			out = append(out, s)
		}
	}
	return out
}
