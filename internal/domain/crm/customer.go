package crm

// Communication channel states accepted by the CRM users API
const (
	CommunicationEnabled  = "enabled"
	CommunicationDisabled = "disabled"
	DisabledReasonOther   = "other"
)

// TagReviewEmail marks customers whose email domain could not be verified
const TagReviewEmail = "review_email"

// Customer is the CRM users-API record. Empty fields are omitted from the
// serialized payload so uploads never carry null or empty members.
type Customer struct {
	Email                string         `json:"email,omitempty"`
	Document             string         `json:"document,omitempty"`
	DocumentType         string         `json:"document_type,omitempty"`
	FirstName            string         `json:"first_name,omitempty"`
	LastName             string         `json:"last_name,omitempty"`
	Phone                string         `json:"phone,omitempty"`
	Telephone            string         `json:"telephone,omitempty"`
	Birthdate            string         `json:"birthdate,omitempty"`
	Street               string         `json:"street,omitempty"`
	Postcode             string         `json:"postcode,omitempty"`
	City                 string         `json:"city,omitempty"`
	State                string         `json:"state,omitempty"`
	Country              string         `json:"country,omitempty"`
	MailingEnabled       string         `json:"mailing_enabled,omitempty"`
	MailingEnabledReason string         `json:"mailing_enabled_reason,omitempty"`
	SMSEnabled           string         `json:"sms_enabled,omitempty"`
	SMSEnabledReason     string         `json:"sms_enabled_reason,omitempty"`
	Tags                 []string       `json:"tags,omitempty"`
	CustomAttributes     map[string]any `json:"custom_attributes,omitempty"`
}

// Identity returns the fields the CRM uses to locate an existing user.
type Identity struct {
	Email    string
	Document string
}

// Identity extracts the lookup identity of the customer.
func (c *Customer) Identity() Identity {
	return Identity{Email: c.Email, Document: c.Document}
}

// HasIdentity reports whether the customer can be matched or created at all.
func (c *Customer) HasIdentity() bool {
	return c.Email != "" || c.Document != ""
}

// Clean prunes empty values that omitempty cannot reach, such as empty
// custom attribute entries and blank tags.
func (c *Customer) Clean() {
	c.CustomAttributes = CleanAttributes(c.CustomAttributes)
	c.Tags = cleanStrings(c.Tags)
}
