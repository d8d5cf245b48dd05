package user

import (
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/masomo/portal/core"
)

type (
	// Credentials is what the login form posts.
	Credentials struct {
		Username string `json:"username" form:"username" validate:"required"`
		Password string `json:"password" form:"password" validate:"required"`
	}

	// NewAccount contains information needed to register a new account.
	NewAccount struct {
		GivenName       string `json:"given_name" form:"given_name" validate:"required"`
		FamilyName      string `json:"family_name" form:"family_name" validate:"required"`
		Email           string `json:"email" form:"email" validate:"required,email"`
		Password        string `json:"password" form:"password" validate:"required,min=8"`
		PasswordConfirm string `json:"password_confirm" form:"password_confirm" validate:"required,eqfield=Password"`
	}

	PasswordResetRequest struct {
		Email string `json:"email" form:"email" validate:"required,email"`
	}
)

func (c *Credentials) Validate(validate *validator.Validate, translator ut.Translator) error {
	c.Username = core.CleanString(c.Username, true /* lower */)
	return core.TranslateErrors(validate.Struct(c), translator)
}

func (na *NewAccount) Validate(validate *validator.Validate, translator ut.Translator) error {
	na.GivenName = core.CleanString(na.GivenName)
	na.FamilyName = core.CleanString(na.FamilyName)
	na.Email = core.CleanString(na.Email, true /* lower */)
	return core.TranslateErrors(validate.Struct(na), translator)
}

func (pr *PasswordResetRequest) Validate(validate *validator.Validate, translator ut.Translator) error {
	pr.Email = core.CleanString(pr.Email, true /* lower */)
	return core.TranslateErrors(validate.Struct(pr), translator)
}
