package search

import (
	"strings"

	"github.com/amityadav/clipping/internal/store"
)

// stateNames maps the 27 Brazilian federative unit codes to full names.
var stateNames = map[string]string{
	"AC": "Acre",
	"AL": "Alagoas",
	"AP": "Amapá",
	"AM": "Amazonas",
	"BA": "Bahia",
	"CE": "Ceará",
	"DF": "Distrito Federal",
	"ES": "Espírito Santo",
	"GO": "Goiás",
	"MA": "Maranhão",
	"MT": "Mato Grosso",
	"MS": "Mato Grosso do Sul",
	"MG": "Minas Gerais",
	"PA": "Pará",
	"PB": "Paraíba",
	"PR": "Paraná",
	"PE": "Pernambuco",
	"PI": "Piauí",
	"RJ": "Rio de Janeiro",
	"RN": "Rio Grande do Norte",
	"RS": "Rio Grande do Sul",
	"RO": "Rondônia",
	"RR": "Roraima",
	"SC": "Santa Catarina",
	"SP": "São Paulo",
	"SE": "Sergipe",
	"TO": "Tocantins",
}

// StateName resolves a two-letter state code, case-insensitively.
func StateName(code string) (string, bool) {
	name, ok := stateNames[strings.ToUpper(strings.TrimSpace(code))]
	return name, ok
}

// Localize rewrites a keyword for the tenant's scope. Only the state scope
// changes the keyword; unknown state codes leave it untouched.
func Localize(keyword string, scope store.SearchScope, state string) string {
	if scope != store.ScopeState {
		return keyword
	}
	name, ok := StateName(state)
	if !ok {
		return keyword
	}
	return keyword + " " + name
}

// NewQuery builds the query for one keyword under a tenant's settings.
func NewQuery(keyword string, settings store.TenantSettings) Query {
	scope := settings.SearchScope
	if scope == "" {
		scope = store.ScopeBrazil
	}
	return Query{
		Keyword:  Localize(keyword, scope, settings.SearchState),
		Original: keyword,
		Scope:    scope,
		State:    settings.SearchState,
	}
}
