package interfaces

import "errors"

// ErrInvalidRequest is returned when caller input fails validation.
var ErrInvalidRequest = errors.New("invalid request")

// IssueRequest describes a credential an institute wants to issue.
type IssueRequest struct {
	StudentName   string     `json:"student_name" validate:"notblank,max=200"`
	StudentEmail  string     `json:"student_email" validate:"required,email,max=254"`
	Course        string     `json:"course" validate:"notblank,max=200"`
	WalletAddress string     `json:"wallet_address" validate:"required,eth_addr"`
	AnchorType    AnchorType `json:"anchor_type,omitempty" validate:"omitempty,oneof=ethereum hash"`
}

// RevokeRequest carries the reason recorded with a revocation.
type RevokeRequest struct {
	Reason string `json:"reason" validate:"notblank,max=500"`
}

// RegisterAccountRequest binds the calling wallet to a role.
// Students register with an email and their institute; institutes with a name only.
type RegisterAccountRequest struct {
	Role      Role   `json:"role" validate:"required,oneof=student institute"`
	Name      string `json:"name" validate:"notblank,max=200"`
	Email     string `json:"email,omitempty" validate:"required_if=Role student,omitempty,email,max=254"`
	Institute string `json:"institute,omitempty" validate:"max=200"`
}
