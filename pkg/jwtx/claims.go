package jwtx

import "github.com/golang-jwt/jwt/v5"

// Kind tags which half of the token pair a JWT is. The two kinds are signed
// with independent secrets, so a refresh token can never pass for an access
// token even if the tag check were skipped.
type Kind string

const (
	KindAccess  Kind = "access"
	KindRefresh Kind = "refresh"
)

// SubjectKind disambiguates the two identity spaces of the directory. It is
// resolved once at issuance and carried on every token thereafter.
type SubjectKind string

const (
	SubjectPatient SubjectKind = "patient"
	SubjectDoctor  SubjectKind = "doctor"
)

// Payload is the identity snapshot embedded in access tokens. It is captured
// at login and replayed verbatim on refresh; live directory state is only
// consulted by the trust checks, never re-folded into claims.
type Payload struct {
	SubjectID   string      `json:"subject_id"`
	SubjectKind SubjectKind `json:"subject_kind"`
	Role        string      `json:"role,omitempty"`
	Email       string      `json:"email,omitempty"`
	ClinicID    string      `json:"clinic_id,omitempty"`
	BranchID    string      `json:"branch_id,omitempty"`
}

// Claims is the single claims shape for both token kinds. Access tokens carry
// the Payload fields; refresh tokens carry only the subject and TokenID.
type Claims struct {
	SubjectKind SubjectKind `json:"skd,omitempty"`
	Role        string      `json:"role,omitempty"`
	Email       string      `json:"email,omitempty"`
	ClinicID    string      `json:"clinic_id,omitempty"`
	BranchID    string      `json:"branch_id,omitempty"`
	Kind        Kind        `json:"kind"`
	TokenID     string      `json:"token_id,omitempty"`

	jwt.RegisteredClaims
}

// Payload reconstructs the identity snapshot from access token claims.
func (c *Claims) Payload() Payload {
	return Payload{
		SubjectID:   c.Subject,
		SubjectKind: c.SubjectKind,
		Role:        c.Role,
		Email:       c.Email,
		ClinicID:    c.ClinicID,
		BranchID:    c.BranchID,
	}
}
