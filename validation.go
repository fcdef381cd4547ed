package conduitauth

import (
	"errors"
	"fmt"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
)

// accountFields holds the trimmed account values of a registration or profile
// update. A nil field was not part of the request.
type accountFields struct {
	Username *string `json:"username"`
	Email    *string `json:"email"`
	Password *string `json:"password"`
}

// accountFieldOrder fixes which field is reported when several fail.
var accountFieldOrder = []string{"username", "email", "password"}

func (f accountFields) Validate() error {
	err := validation.ValidateStruct(&f,
		validation.Field(&f.Username, validation.NilOrNotEmpty, validation.Length(1, 255)),
		validation.Field(&f.Email, validation.NilOrNotEmpty, validation.Length(3, 254), is.EmailFormat),
		validation.Field(&f.Password, validation.NilOrNotEmpty),
	)
	if err == nil {
		return nil
	}
	return invalidInput(err)
}

func invalidInput(err error) error {
	var fieldErrs validation.Errors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	for _, name := range accountFieldOrder {
		fieldErr, ok := fieldErrs[name]
		if !ok || fieldErr == nil {
			continue
		}
		var ruleErr validation.Error
		if errors.As(fieldErr, &ruleErr) && isBlankCode(ruleErr.Code()) {
			return blankField(name)
		}
		return fmt.Errorf("%w: %s is invalid", ErrInvalidInput, name)
	}
	return fmt.Errorf("%w: %v", ErrInvalidInput, err)
}

func isBlankCode(code string) bool {
	return code == validation.ErrNilOrNotEmpty.Code() || code == validation.ErrRequired.Code()
}

func blankField(name string) error {
	return fmt.Errorf("%w: %s can't be blank", ErrInvalidInput, name)
}
