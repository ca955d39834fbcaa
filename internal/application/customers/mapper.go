package customers

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/woowup/vtex-connector/internal/domain/crm"
	"github.com/woowup/vtex-connector/internal/infrastructure/crmapi"
	"github.com/woowup/vtex-connector/internal/infrastructure/vtex"
)

// Mapper translates master-data profiles into CRM customers. Profiles
// without email and document map to nothing.
type Mapper struct {
	vtex   *vtex.Connector
	users  *crmapi.UsersResource
	policy crm.EmailPolicy
	logger *zap.Logger
}

// NewMapper creates a customer mapper. users may be nil, which disables
// the check against manually disabled mailing.
func NewMapper(connector *vtex.Connector, users *crmapi.UsersResource, policy crm.EmailPolicy, logger *zap.Logger) *Mapper {
	return &Mapper{vtex: connector, users: users, policy: policy, logger: logger}
}

// Map builds the CRM customer for one profile.
func (m *Mapper) Map(ctx context.Context, profile *vtex.Profile) ([]*crm.Customer, error) {
	if profile.Email == "" && profile.Document == "" {
		return nil, nil
	}

	customer := &crm.Customer{
		Email:        profile.Email,
		Document:     profile.Document,
		DocumentType: profile.DocumentType,
		FirstName:    crm.NormalizeName(profile.FirstName),
		LastName:     crm.NormalizeName(profile.LastName),
		Phone:        profile.HomePhone,
		Birthdate:    normalizeBirthdate(profile.BirthDate),
	}

	m.applyOptIn(ctx, customer, profile)
	m.applyEmailPolicy(customer)
	m.applyAddress(ctx, customer, profile.ID)

	customer.Clean()
	return []*crm.Customer{customer}, nil
}

// applyOptIn mirrors the newsletter opt-in into the communication flags,
// unless the CRM has the customer manually disabled already.
func (m *Mapper) applyOptIn(ctx context.Context, customer *crm.Customer, profile *vtex.Profile) {
	if profile.IsNewsletterOptIn == nil {
		return
	}

	if optedIn := *profile.IsNewsletterOptIn; optedIn {
		customer.CustomAttributes = map[string]any{"opt_in_vtex": "True"}
	} else {
		customer.CustomAttributes = map[string]any{"opt_in_vtex": "False"}
	}

	if m.manuallyDisabled(ctx, customer.Identity()) {
		return
	}

	if *profile.IsNewsletterOptIn {
		customer.MailingEnabled = crm.CommunicationEnabled
		customer.SMSEnabled = crm.CommunicationEnabled
	} else {
		customer.MailingEnabled = crm.CommunicationDisabled
		customer.SMSEnabled = crm.CommunicationDisabled
		customer.MailingEnabledReason = crm.DisabledReasonOther
		customer.SMSEnabledReason = crm.DisabledReasonOther
	}
}

// manuallyDisabled reports whether the CRM already disabled mailing for
// this identity by hand. Lookup failures don't block the import.
func (m *Mapper) manuallyDisabled(ctx context.Context, identity crm.Identity) bool {
	if m.users == nil {
		return false
	}
	record, err := m.users.Find(ctx, identity)
	if err != nil {
		if !crmapi.IsNotFound(err) {
			m.logger.Info("could not check mailing status", zap.Error(err))
		}
		return false
	}
	return record.MailingEnabledReason == crm.DisabledReasonOther
}

// applyEmailPolicy reroutes relay and blacklisted addresses to a
// placeholder and flags suspicious ones for review.
func (m *Mapper) applyEmailPolicy(customer *crm.Customer) {
	switch m.policy.Classify(customer.Email) {
	case crm.EmailBlacklisted:
		customer.Email = m.policy.Placeholder(customer.Document)
		customer.MailingEnabled = crm.CommunicationDisabled
		customer.MailingEnabledReason = crm.DisabledReasonOther
	case crm.EmailReview:
		customer.Tags = append(customer.Tags, crm.TagReviewEmail)
	}
}

// applyAddress copies the most recent master-data address, best effort.
func (m *Mapper) applyAddress(ctx context.Context, customer *crm.Customer, profileID string) {
	if profileID == "" {
		return
	}
	address, err := m.vtex.GetAddress(ctx, profileID)
	if err != nil {
		m.logger.Info("could not get address", zap.String("customer_id", profileID), zap.Error(err))
		return
	}
	customer.Street = crm.JoinStreet(address.Street, address.Number)
	customer.Postcode = address.PostalCode
	customer.City = crm.NormalizeName(address.City)
	customer.State = crm.NormalizeName(address.State)
	customer.Country = address.Country
}

// normalizeBirthdate trims a profile birth date down to YYYY-MM-DD.
func normalizeBirthdate(raw string) string {
	if raw == "" {
		return ""
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.Format("2006-01-02")
		}
	}
	return ""
}
