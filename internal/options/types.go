package options

// Category is a built-in class of sensitive information the service can redact
type Category string

const (
	CategoryNames         Category = "names"
	CategoryOrganizations Category = "organizations"
	CategoryLocations     Category = "locations"
	CategoryDates         Category = "dates"
	CategoryEmails        Category = "emails"
	CategoryPhones        Category = "phones"
	CategorySSN           Category = "ssn"
	CategoryCreditCards   Category = "credit_cards"
	CategoryURLs          Category = "urls"
)

// Field names a single editable entry of a Set. Category fields share the
// category's wire key.
type Field string

const (
	FieldCustomPattern     Field = "customRegex"
	FieldCustomReplacement Field = "customReplacement"
)

// DefaultCustomReplacement is the token used for custom pattern matches
const DefaultCustomReplacement = "[CUSTOM]"

// Set is the redaction option set sent along with every request.
// It is a value type: every update returns a new Set.
type Set struct {
	Names         bool   `json:"names" mapstructure:"names"`
	Organizations bool   `json:"organizations" mapstructure:"organizations"`
	Locations     bool   `json:"locations" mapstructure:"locations"`
	Dates         bool   `json:"dates" mapstructure:"dates"`
	Emails        bool   `json:"emails" mapstructure:"emails"`
	Phones        bool   `json:"phones" mapstructure:"phones"`
	SSN           bool   `json:"ssn" mapstructure:"ssn"`
	CreditCards   bool   `json:"credit_cards" mapstructure:"credit_cards"`
	URLs          bool   `json:"urls" mapstructure:"urls"`
	CustomPattern string `json:"customRegex" mapstructure:"custom_regex"`
	// CustomReplacement only applies while CustomPattern is non-empty
	CustomReplacement string `json:"customReplacement" mapstructure:"custom_replacement"`
}
