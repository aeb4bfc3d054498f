// Package shared contains common domain types, errors, events, and value objects
// that are used across all domain packages.
package shared

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

// ═══════════════════════════════════════════════════════════════════════════
// ID Value Objects
// ═══════════════════════════════════════════════════════════════════════════

// UserID represents a unique user identifier (UUID format).
type UserID string

// UUID validation regex (simple version).
var uuidRegex = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`)

// IsValid checks if the user ID is a valid UUID.
func (u UserID) IsValid() bool {
	return uuidRegex.MatchString(string(u))
}

// String returns the string representation.
func (u UserID) String() string {
	return string(u)
}

// IsEmpty checks if the ID is empty.
func (u UserID) IsEmpty() bool {
	return u == ""
}

// NewUserID creates a new UserID with validation.
func NewUserID(id string) (UserID, error) {
	uid := UserID(strings.ToLower(strings.TrimSpace(id)))
	if !uid.IsValid() {
		return "", ErrInvalidUserID
	}
	return uid, nil
}

// FormatID renders a numeric entity ID the way it appears in file names and group keys.
func FormatID(id int64) string {
	return strconv.FormatInt(id, 10)
}

// ═══════════════════════════════════════════════════════════════════════════
// Role & Principal
// ═══════════════════════════════════════════════════════════════════════════

// Role is the platform role of a user.
type Role string

const (
	RoleStudent Role = "student"
	RoleTeacher Role = "teacher"
	RoleAdmin   Role = "admin"
)

// IsValid checks if the role is one of the known roles.
func (r Role) IsValid() bool {
	switch r {
	case RoleStudent, RoleTeacher, RoleAdmin:
		return true
	}
	return false
}

// String returns the string representation.
func (r Role) String() string {
	return string(r)
}

// ParseRole parses a role, defaulting to student for an empty value.
func ParseRole(value string) (Role, error) {
	v := Role(strings.ToLower(strings.TrimSpace(value)))
	if v == "" {
		return RoleStudent, nil
	}
	if !v.IsValid() {
		return "", ErrInvalidRole
	}
	return v, nil
}

// Principal is the authenticated caller of a workflow operation.
type Principal struct {
	ID       UserID
	Username string
	Role     Role
}

// IsStudent reports whether the principal has the student role.
func (p Principal) IsStudent() bool { return p.Role == RoleStudent }

// CanAuthor reports whether the principal may create catalog content.
func (p Principal) CanAuthor() bool { return p.Role == RoleTeacher || p.Role == RoleAdmin }

// Validate checks that the principal identifies someone.
func (p Principal) Validate() error {
	if !p.ID.IsValid() {
		return NewDomainError("shared", "Principal", ErrUnauthenticated, "principal has no valid id")
	}
	if !p.Role.IsValid() {
		return NewDomainError("shared", "Principal", ErrUnauthenticated, "principal has no valid role")
	}
	return nil
}

// RequireRole returns ErrRoleRequired unless the principal has one of roles.
func (p Principal) RequireRole(roles ...Role) error {
	for _, r := range roles {
		if p.Role == r {
			return nil
		}
	}
	return ErrRoleRequired
}

// ═══════════════════════════════════════════════════════════════════════════
// Money Value Object
// ═══════════════════════════════════════════════════════════════════════════

// Money is an amount in minor units (two decimal places).
type Money int64

// ParseMoney parses a decimal string such as "199.90" or "-5.00".
func ParseMoney(value string) (Money, error) {
	v := strings.TrimSpace(value)
	if v == "" {
		return 0, NewDomainError("shared", "ParseMoney", ErrInvalidArgument, "empty amount")
	}
	neg := strings.HasPrefix(v, "-")
	v = strings.TrimPrefix(strings.TrimPrefix(v, "-"), "+")

	whole, frac, _ := strings.Cut(v, ".")
	if len(frac) > 2 {
		return 0, NewDomainError("shared", "ParseMoney", ErrInvalidArgument, "at most two decimal places")
	}
	frac += strings.Repeat("0", 2-len(frac))
	if whole == "" {
		whole = "0"
	}
	w, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return 0, WrapError("shared", "ParseMoney", ErrInvalidArgument, "invalid amount", err)
	}
	f, err := strconv.ParseInt(frac, 10, 64)
	if err != nil {
		return 0, WrapError("shared", "ParseMoney", ErrInvalidArgument, "invalid amount", err)
	}
	m := Money(w*100 + f)
	if neg {
		m = -m
	}
	return m, nil
}

// IsNegative reports whether the amount is below zero.
func (m Money) IsNegative() bool {
	return m < 0
}

// String renders the amount with two decimal places.
func (m Money) String() string {
	sign := ""
	v := int64(m)
	if v < 0 {
		sign = "-"
		v = -v
	}
	return fmt.Sprintf("%s%d.%02d", sign, v/100, v%100)
}

// ═══════════════════════════════════════════════════════════════════════════
// Slug
// ═══════════════════════════════════════════════════════════════════════════

// Slugify derives a URL slug: lowercase ASCII letters and digits separated by single hyphens.
func Slugify(title string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(strings.TrimSpace(title)) {
		switch {
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)):
			b.WriteRune(r)
			dash = false
		case r == '_' || r == '-' || unicode.IsSpace(r):
			if b.Len() > 0 && !dash {
				b.WriteByte('-')
				dash = true
			}
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}

// ═══════════════════════════════════════════════════════════════════════════
// Rating Value Object (for course feedback)
// ═══════════════════════════════════════════════════════════════════════════

// Rating represents a feedback rating (0-5).
type Rating int

const (
	MinRating Rating = 0
	MaxRating Rating = 5
)

// IsValid checks if the rating is within valid range.
func (r Rating) IsValid() bool {
	return r >= MinRating && r <= MaxRating
}

// Int returns the underlying int value.
func (r Rating) Int() int {
	return int(r)
}

// NewRating creates a new Rating with validation.
func NewRating(value int) (Rating, error) {
	if value < int(MinRating) || value > int(MaxRating) {
		return 0, ErrInvalidRating
	}
	return Rating(value), nil
}

// ═══════════════════════════════════════════════════════════════════════════
// Pagination Value Object
// ═══════════════════════════════════════════════════════════════════════════

// Pagination represents pagination parameters.
type Pagination struct {
	Page     int
	PageSize int
}

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Offset returns the offset for database queries.
func (p Pagination) Offset() int {
	if p.Page <= 0 {
		return 0
	}
	return (p.Page - 1) * p.Limit()
}

// Limit returns the limit for database queries.
func (p Pagination) Limit() int {
	if p.PageSize <= 0 {
		return DefaultPageSize
	}
	if p.PageSize > MaxPageSize {
		return MaxPageSize
	}
	return p.PageSize
}

// NewPagination creates a new Pagination with defaults.
func NewPagination(page, pageSize int) Pagination {
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}
	return Pagination{Page: page, PageSize: pageSize}
}

// DefaultPagination returns default pagination.
func DefaultPagination() Pagination {
	return NewPagination(1, DefaultPageSize)
}
