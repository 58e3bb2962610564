package portal

// Semantic element roles used across the navigation and extraction code.
// Centralising them makes future updates trivial.
const (
	RoleCookieAccept = "cookie-accept"

	RoleLoginUsername   = "login-username"
	RoleLoginPassword   = "login-password"
	RoleLoginSubmit     = "login-submit"
	RoleLoginError      = "login-error"
	RolePostLoginMarker = "post-login-marker"
	RoleBookCTA         = "book-cta"

	RoleDestinationDropdown = "destination-dropdown"
	RoleDestinationPanel    = "destination-panel"
	RoleDestinationOption   = "destination-option"
	RoleUnitSizeDropdown    = "unit-size-dropdown"
	RoleUnitSizeOption      = "unit-size-option"
	RoleGuestCount          = "guest-count"
	RoleGuestPlus           = "guest-plus"
	RoleGuestMinus          = "guest-minus"
	RoleNightsInput         = "nights-input"
	RoleDatePicker          = "date-picker"
	RoleCalendarDay         = "calendar-day"
	RoleCalendarNextMonth   = "calendar-next-month"
	RoleMonthPicker         = "month-picker"
	RoleMonthOption         = "month-option"
	RoleYearPicker          = "year-picker"
	RoleYearOption          = "year-option"
	RoleDateDone            = "date-done"
	RoleDateConfirm         = "date-confirm"
	RoleSearchSubmit        = "search-submit"

	RoleResultsContainer = "results-container"
	RoleResultsRow       = "results-row"
	RoleResultResort     = "result-resort"
	RoleResultLocation   = "result-location"
	RoleResultUnit       = "result-unit"
	RoleResultPoints     = "result-points"
	RoleResultDateRange  = "result-date-range"
	RoleNextPage         = "next-page-control"
)

// Strategy is one independent way of locating a role's element. Strategies
// are ordered: stable test attributes first, text-content matches next,
// structural positions last.
type Strategy struct {
	Name  string
	CSS   string
	Text  string
	Exact bool
}

// strategyTables maps each role to its ordered strategy list. The portal's
// markup drifts between releases; a role survives as long as one strategy
// still yields a unique match.
var strategyTables = map[string][]Strategy{
	RoleCookieAccept: {
		{Name: "uitest", CSS: `button[data-uitest="cookie-accept"]`},
		{Name: "text", CSS: `button`, Text: "I Agree", Exact: true},
	},

	RoleLoginUsername: {
		{Name: "okta-id", CSS: `#okta-signin-username`},
		{Name: "name-attr", CSS: `input[name="username"]`},
		{Name: "type-attr", CSS: `form input[type="text"]`},
	},
	RoleLoginPassword: {
		{Name: "okta-id", CSS: `#okta-signin-password`},
		{Name: "name-attr", CSS: `input[name="password"]`},
		{Name: "type-attr", CSS: `form input[type="password"]`},
	},
	RoleLoginSubmit: {
		{Name: "okta-id", CSS: `#okta-signin-submit`},
		{Name: "type-attr", CSS: `form input[type="submit"]`},
		{Name: "text", CSS: `form button`, Text: "Sign In"},
	},
	RoleLoginError: {
		{Name: "okta-class", CSS: `.okta-form-infobox-error`},
		{Name: "role-alert", CSS: `[role="alert"]`},
	},
	RolePostLoginMarker: {
		{Name: "book-cta", CSS: `[data-uitest="book-my-vacation"]`},
		{Name: "text", CSS: `button, a`, Text: "Book My Vacation"},
		{Name: "account-menu", CSS: `[data-uitest="member-account-menu"]`},
	},
	RoleBookCTA: {
		{Name: "uitest", CSS: `[data-uitest="book-my-vacation"]`},
		{Name: "text", CSS: `button, a`, Text: "Book My Vacation"},
	},

	RoleDestinationDropdown: {
		{Name: "id", CSS: `#resorts-dropdown`},
		{Name: "uitest", CSS: `button[data-uitest="multi-select-button"]`},
		{Name: "aria", CSS: `[aria-label="Open multi select."]`},
	},
	RoleDestinationPanel: {
		{Name: "uitest", CSS: `ul[data-uitest="ul-resorts"][role="listbox"]`},
		{Name: "listbox", CSS: `ul[role="listbox"]`},
	},
	RoleDestinationOption: {
		{Name: "option", CSS: `ul[data-uitest="ul-resorts"] li[role="option"]`},
		{Name: "any-option", CSS: `li[role="option"]`},
	},
	RoleUnitSizeDropdown: {
		{Name: "id", CSS: `#unit-size-dropdown`},
		{Name: "uitest", CSS: `button[data-uitest="unit-size-button"]`},
	},
	RoleUnitSizeOption: {
		{Name: "option", CSS: `ul[data-uitest="ul-unit-sizes"] li[role="option"]`},
		{Name: "any-option", CSS: `li[role="option"]`},
	},
	RoleGuestCount: {
		{Name: "uitest", CSS: `[data-uitest="number-of-adults-number-of-guests"]`},
	},
	RoleGuestPlus: {
		{Name: "uitest", CSS: `[data-uitest="number-of-adults-right-icon-button"]`},
	},
	RoleGuestMinus: {
		{Name: "uitest", CSS: `[data-uitest="number-of-adults-left-icon-button"]`},
	},
	RoleNightsInput: {
		{Name: "id", CSS: `#number-of-nights`},
		{Name: "name-attr", CSS: `input[name="nights"]`},
	},
	RoleDatePicker: {
		{Name: "id", CSS: `#date-picker`},
		{Name: "uitest", CSS: `button[data-uitest="date-picker"]`},
		{Name: "text", CSS: `button`, Text: "Select Check-In Date"},
	},
	RoleCalendarDay: {
		{Name: "uitest", CSS: `div.rdp-month button[data-uitest*="calendar-day"]:not([disabled])`},
		{Name: "class", CSS: `div.rdp-month button[class*="rdp-day"]:not([disabled])`},
	},
	RoleCalendarNextMonth: {
		{Name: "uitest", CSS: `[data-uitest="next-month"]`},
	},
	RoleMonthPicker: {
		{Name: "id", CSS: `#month-picker`},
	},
	RoleMonthOption: {
		{Name: "role-button", CSS: `p[role="button"]`},
	},
	RoleYearPicker: {
		{Name: "id", CSS: `#year-picker`},
	},
	RoleYearOption: {
		{Name: "role-button", CSS: `p[role="button"]`},
	},
	RoleDateDone: {
		{Name: "text", CSS: `button`, Text: "Done", Exact: true},
	},
	RoleDateConfirm: {
		{Name: "uitest", CSS: `button[data-uitest="select-check-in-cta"]`},
		{Name: "text", CSS: `button`, Text: "Confirm Dates"},
	},
	RoleSearchSubmit: {
		{Name: "uitest", CSS: `button[data-uitest="search-submit"]`},
		{Name: "text", CSS: `button`, Text: "Search"},
		{Name: "type-attr", CSS: `form button[type="submit"]`},
	},

	RoleResultsContainer: {
		{Name: "uitest", CSS: `[data-uitest="availability-results"]`},
		{Name: "heading", CSS: `main section`, Text: "Book a Villa"},
	},
	RoleResultsRow: {
		{Name: "uitest-card", CSS: `[data-uitest="availability-result-card"]`},
		{Name: "uitest-resort", CSS: `[data-uitest="availability-resort-result"]`},
		{Name: "structural", CSS: `section article`},
	},
	RoleResultResort: {
		{Name: "uitest", CSS: `[data-uitest="resort-name"]`},
		{Name: "heading", CSS: `h2`},
	},
	RoleResultLocation: {
		{Name: "uitest", CSS: `[data-uitest="resort-location"]`},
		{Name: "subtitle", CSS: `[class*="location"]`},
		{Name: "structural", CSS: `header p`},
	},
	RoleResultUnit: {
		{Name: "uitest", CSS: `[data-uitest*="unit-name"]`},
		{Name: "heading", CSS: `h3`},
		{Name: "fallback", CSS: `h4`},
	},
	RoleResultPoints: {
		{Name: "uitest", CSS: `[data-uitest="points-value"]`},
		{Name: "text", CSS: `span`, Text: "points"},
	},
	RoleResultDateRange: {
		{Name: "uitest", CSS: `[data-uitest="availability-date-range"]`},
		{Name: "text", CSS: `p, h2, div`, Text: "Showing availability for"},
	},
	RoleNextPage: {
		{Name: "uitest", CSS: `[data-uitest="pagination-next-button"]`},
		{Name: "aria", CSS: `a[aria-label="Next"]`},
		{Name: "text", CSS: `nav a, nav button`, Text: "Next"},
	},
}
