package members

import "errors"

// Error is an application-layer error that can be mapped to an HTTP response.
type Error struct {
	Status  int
	Code    string
	Message string
	Details map[string]any
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Message != "" {
		return e.Message
	}
	return e.Code
}

const (
	CodeNotFound          = "NOT_FOUND"
	CodeNotSuspended      = "NOT_SUSPENDED"
	CodeMembershipRevoked = "MEMBERSHIP_REVOKED"
	CodeDuplicateWallet   = "DUPLICATE_WALLET"
	CodeValidation        = "VALIDATION_ERROR"
	CodeProfileNotFound   = "PROFILE_NOT_FOUND"
	CodeDisplayNameTaken  = "DISPLAY_NAME_TAKEN"
)

func errNotFound() *Error {
	return &Error{Status: 404, Code: CodeNotFound, Message: "No member identity exists for this wallet."}
}

func errRevoked() *Error {
	return &Error{Status: 403, Code: CodeMembershipRevoked, Message: "Membership has been revoked."}
}

func errProfileNotFound() *Error {
	return &Error{Status: 404, Code: CodeProfileNotFound, Message: "No profile exists for this member."}
}

func validation(field, reason string) *Error {
	return &Error{
		Status:  422,
		Code:    CodeValidation,
		Message: "invalid " + field,
		Details: map[string]any{field: reason},
	}
}

// IsCode reports whether err is an *Error carrying code.
func IsCode(err error, code string) bool {
	var e *Error
	return errors.As(err, &e) && e.Code == code
}
