package domain

import (
	"unicode/utf8"

	"github.com/google/uuid"

	dErrors "testament/pkg/domain-errors"
)

// AccountID identifies a party that can call operations or receive funds:
// owners, doctors, beneficiaries and deployers share the same identity space.
// The nil UUID is the null identity and is never a valid role or beneficiary.
type AccountID uuid.UUID

// TestamentID identifies one deployed testament.
type TestamentID uuid.UUID

// EventID identifies one emitted notification.
type EventID uuid.UUID

// ParseAccountID parses an account identity at a trust boundary.
//
// Unlike the other parsers it accepts the nil UUID: whether the null identity is
// acceptable is a domain decision (bequeathing to it is a validation failure with
// its own reason), so it is rejected by the service rather than here.
func ParseAccountID(s string) (AccountID, error) {
	u, err := parseUUID(s)
	if err != nil {
		return AccountID{}, err
	}
	return AccountID(u), nil
}

// ParseTestamentID parses a testament identifier; the nil UUID is rejected.
func ParseTestamentID(s string) (TestamentID, error) {
	u, err := parseNonNilUUID(s)
	if err != nil {
		return TestamentID{}, err
	}
	return TestamentID(u), nil
}

// ParseEventID parses a notification identifier; the nil UUID is rejected.
func ParseEventID(s string) (EventID, error) {
	u, err := parseNonNilUUID(s)
	if err != nil {
		return EventID{}, err
	}
	return EventID(u), nil
}

// NewTestamentID returns a fresh random testament identifier.
func NewTestamentID() TestamentID { return TestamentID(uuid.New()) }

// NewEventID returns a fresh random event identifier.
func NewEventID() EventID { return EventID(uuid.New()) }

func parseUUID(s string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeBadRequest, "id cannot be empty")
	}
	if !utf8.ValidString(s) {
		return uuid.Nil, dErrors.New(dErrors.CodeBadRequest, "invalid id format")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeBadRequest, "invalid id format")
	}
	return u, nil
}

func parseNonNilUUID(s string) (uuid.UUID, error) {
	u, err := parseUUID(s)
	if err != nil {
		return uuid.Nil, err
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeBadRequest, "id cannot be nil")
	}
	return u, nil
}

func (id AccountID) String() string   { return uuid.UUID(id).String() }
func (id TestamentID) String() string { return uuid.UUID(id).String() }
func (id EventID) String() string     { return uuid.UUID(id).String() }

// IsNil reports whether the account is the null identity.
func (id AccountID) IsNil() bool   { return uuid.UUID(id) == uuid.Nil }
func (id TestamentID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id EventID) IsNil() bool     { return uuid.UUID(id) == uuid.Nil }

func (id AccountID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }

func (id *AccountID) UnmarshalText(b []byte) error {
	parsed, err := ParseAccountID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func (id TestamentID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }

func (id *TestamentID) UnmarshalText(b []byte) error {
	parsed, err := ParseTestamentID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func (id EventID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }

func (id *EventID) UnmarshalText(b []byte) error {
	parsed, err := ParseEventID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}
