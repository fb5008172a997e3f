package failure

import (
	"net/mail"
	"strings"
)

// Required returns a *ValidationError when v is blank.
func Required(field, v string) error {
	if strings.TrimSpace(v) == "" {
		return Invalid(field, "is required")
	}
	return nil
}

// Email returns a *ValidationError when v is not a bare e-mail address.
func Email(field, v string) error {
	if err := Required(field, v); err != nil {
		return err
	}
	addr, err := mail.ParseAddress(v)
	if err != nil || addr.Address != strings.TrimSpace(v) {
		return Invalid(field, "must be a valid email address")
	}
	return nil
}

// First returns the first non-nil error.
func First(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
