package models

import (
	"errors"
	"fmt"
	"regexp"
)

// Role tags which kind of participant an identity belongs to
type Role string

const (
	RoleVictim    Role = "Victim"
	RoleAnonymous Role = "Anonymous"
	RoleAdmin     Role = "Admin"
	RoleCounselor Role = "Counselor"
)

var (
	ErrInvalidIdentity    = errors.New("invalid identity")
	ErrInvalidCounterpart = errors.New("invalid counterpart")
)

// identifiers end up in room ids, storage paths and URLs
var identifierPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,128}$`)

// registered victims are addressed by their account object id
var objectIDPattern = regexp.MustCompile(`^[0-9a-fA-F]{24}$`)

// ParseRole converts a role tag into a Role
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleVictim, RoleAnonymous, RoleAdmin, RoleCounselor:
		return Role(s), nil
	}
	return "", fmt.Errorf("%w: unknown role %q", ErrInvalidIdentity, s)
}

// IsStaff reports whether the role belongs to the support side
func (r Role) IsStaff() bool {
	return r == RoleAdmin || r == RoleCounselor
}

// IsVictimSide reports whether the role belongs to the counterpart side
func (r Role) IsVictimSide() bool {
	return r == RoleVictim || r == RoleAnonymous
}

// Identity is a participant: a role tag plus the id issued for that role
type Identity struct {
	Role Role   `json:"type"`
	ID   string `json:"id"`
}

func Victim(id string) Identity    { return Identity{Role: RoleVictim, ID: id} }
func Anonymous(id string) Identity { return Identity{Role: RoleAnonymous, ID: id} }
func Admin(id string) Identity     { return Identity{Role: RoleAdmin, ID: id} }
func Counselor(id string) Identity { return Identity{Role: RoleCounselor, ID: id} }

// NewIdentity builds an identity from an untrusted role tag and id
func NewIdentity(role, id string) (Identity, error) {
	r, err := ParseRole(role)
	if err != nil {
		return Identity{}, err
	}
	identity := Identity{Role: r, ID: id}
	if err := identity.Validate(); err != nil {
		return Identity{}, err
	}
	return identity, nil
}

// Validate checks the role tag and the id shape
func (i Identity) Validate() error {
	if _, err := ParseRole(string(i.Role)); err != nil {
		return err
	}
	if !identifierPattern.MatchString(i.ID) {
		return fmt.Errorf("%w: malformed id for %s", ErrInvalidIdentity, i.Role)
	}
	return nil
}

func (i Identity) IsZero() bool       { return i.Role == "" && i.ID == "" }
func (i Identity) IsStaff() bool      { return i.Role.IsStaff() }
func (i Identity) IsVictimSide() bool { return i.Role.IsVictimSide() }

func (i Identity) String() string {
	return string(i.Role) + ":" + i.ID
}

// CounterpartType distinguishes registered victims from anonymous ones
type CounterpartType string

const (
	CounterpartRegistered CounterpartType = "registered"
	CounterpartAnonymous  CounterpartType = "anonymous"
)

// Counterpart is the victim side of a room. Only the constructors below
// produce a valid value, so the id shape always matches the type.
type Counterpart struct {
	kind CounterpartType
	id   string
}

// NewRegisteredCounterpart builds the counterpart for a registered victim id
func NewRegisteredCounterpart(id string) (Counterpart, error) {
	if !objectIDPattern.MatchString(id) {
		return Counterpart{}, fmt.Errorf("%w: registered victim id must be a 24 character object id", ErrInvalidCounterpart)
	}
	return Counterpart{kind: CounterpartRegistered, id: id}, nil
}

// NewAnonymousCounterpart builds the counterpart for an anonymous session token
func NewAnonymousCounterpart(token string) (Counterpart, error) {
	if !identifierPattern.MatchString(token) {
		return Counterpart{}, fmt.Errorf("%w: malformed anonymous token", ErrInvalidCounterpart)
	}
	return Counterpart{kind: CounterpartAnonymous, id: token}, nil
}

// CounterpartFor maps a victim-side identity to its counterpart
func CounterpartFor(identity Identity) (Counterpart, error) {
	switch identity.Role {
	case RoleVictim:
		return NewRegisteredCounterpart(identity.ID)
	case RoleAnonymous:
		return NewAnonymousCounterpart(identity.ID)
	}
	return Counterpart{}, fmt.Errorf("%w: %s cannot own a room", ErrInvalidCounterpart, identity.Role)
}

func (c Counterpart) Type() CounterpartType { return c.kind }
func (c Counterpart) ID() string            { return c.id }
func (c Counterpart) IsZero() bool          { return c.kind == "" }

// Identity returns the identity the counterpart sends messages as
func (c Counterpart) Identity() Identity {
	if c.kind == CounterpartAnonymous {
		return Anonymous(c.id)
	}
	return Victim(c.id)
}
