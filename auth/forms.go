package auth

import (
	"context"
	"errors"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
)

// FormState is what a form view renders after a submission
type FormState struct {
	Email  string            `json:"email"`
	Error  string            `json:"error,omitempty"`
	Fields map[string]string `json:"fields,omitempty"`
}

// SignInInput is the sign in form payload
type SignInInput struct {
	Email    string `form:"email" json:"email"`
	Password string `form:"password" json:"password"`
}

// Validate will run validation rules
func (r SignInInput) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(
			&r.Email,
			validation.Required,
			is.Email,
		),
		validation.Field(
			&r.Password,
			validation.Required,
		),
	)
}

// SignUpInput is the sign up form payload
type SignUpInput struct {
	Email           string `form:"email" json:"email"`
	Password        string `form:"password" json:"password"`
	ConfirmPassword string `form:"confirm_password" json:"confirm_password"`
}

// Validate will run validation rules. The confirmation is checked first.
func (r SignUpInput) Validate() error {
	if r.Password != r.ConfirmPassword {
		return &ValidationError{
			Message: MsgPasswordMismatch,
			Fields:  map[string]string{"confirm_password": MsgPasswordMismatch},
		}
	}

	err := validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, validation.Length(3, 254), is.Email),
		validation.Field(&r.Password, validation.Required, validation.Length(6, 72)),
		validation.Field(
			&r.ConfirmPassword,
			validation.Required,
			validation.By(ValidateStringEquals(r.Password)),
		),
	)
	if err != nil {
		return toValidationError(err)
	}
	return nil
}

// ValidateStringEquals will check that both values match
func ValidateStringEquals(str string) validation.RuleFunc {
	return func(value any) error {
		s, _ := value.(string)
		if s != str {
			return errors.New(MsgPasswordMismatch)
		}
		return nil
	}
}

// SignInForm submits credentials through the provider
type SignInForm struct {
	provider *Provider
	nav      Navigator
	home     string
}

// NewSignInForm returns a form that navigates to home on success. An empty
// home means HomePath.
func NewSignInForm(provider *Provider, nav Navigator, home string) *SignInForm {
	if home == "" {
		home = HomePath
	}
	return &SignInForm{provider: provider, nav: nav, home: home}
}

// Submit signs in. On failure the returned state carries the message and
// the email so the user can retry.
func (f *SignInForm) Submit(ctx context.Context, in SignInInput) (FormState, error) {
	in.Email = strings.TrimSpace(in.Email)
	state := FormState{Email: in.Email}

	if err := in.Validate(); err != nil {
		vErr := toValidationError(err)
		state.Error = vErr.Message
		state.Fields = vErr.Fields
		return state, vErr
	}

	if err := f.provider.SignIn(ctx, in.Email, in.Password); err != nil {
		state.Error = ErrorMessage(err)
		return state, err
	}

	f.nav.Navigate(f.home)
	return state, nil
}

// SignUpForm registers an account, then signs in with it
type SignUpForm struct {
	provider   *Provider
	register   *RegisterAccountHandler
	nav        Navigator
	redirectTo string
	home       string
}

// NewSignUpForm returns a sign up form. redirectTo is the email
// confirmation target handed to the auth service.
func NewSignUpForm(provider *Provider, client Client, nav Navigator, redirectTo string) *SignUpForm {
	return &SignUpForm{
		provider:   provider,
		register:   NewRegisterAccountHandler(client),
		nav:        nav,
		redirectTo: redirectTo,
		home:       HomePath,
	}
}

// Submit validates locally, registers, signs in and navigates home.
func (f *SignUpForm) Submit(ctx context.Context, in SignUpInput) (FormState, error) {
	in.Email = strings.TrimSpace(in.Email)
	state := FormState{Email: in.Email}

	if err := in.Validate(); err != nil {
		vErr := toValidationError(err)
		state.Error = vErr.Message
		state.Fields = vErr.Fields
		return state, vErr
	}

	err := f.register.Execute(ctx, RegisterAccountMessage{
		Email:      in.Email,
		Password:   in.Password,
		RedirectTo: f.redirectTo,
	})
	if err != nil {
		recordActivity(ctx, f.provider.activity, f.provider.logger, ActivityEvent{
			EventType: ActivityEventSignUpFailure,
			Email:     in.Email,
			Metadata:  map[string]any{"error": ErrorMessage(err)},
		})
		state.Error = ErrorMessage(err)
		return state, err
	}

	recordActivity(ctx, f.provider.activity, f.provider.logger, ActivityEvent{
		EventType: ActivityEventSignUpSuccess,
		Email:     in.Email,
	})

	if err := f.provider.SignIn(ctx, in.Email, in.Password); err != nil {
		state.Error = ErrorMessage(err)
		return state, err
	}

	f.nav.Navigate(f.home)
	return state, nil
}

func toValidationError(err error) *ValidationError {
	var vErr *ValidationError
	if errors.As(err, &vErr) {
		return vErr
	}

	fields := map[string]string{}
	var errs validation.Errors
	if errors.As(err, &errs) {
		for field, fieldErr := range errs {
			if fieldErr != nil {
				fields[field] = fieldErr.Error()
			}
		}
	}

	return &ValidationError{
		Message: err.Error(),
		Fields:  fields,
	}
}
