package auth

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/v2t/web/internal/gateway"
	"github.com/v2t/web/internal/models"
)

// Backend is the subset of the gateway used by the auth flows.
type Backend interface {
	Signup(ctx context.Context, req models.SignupRequest) error
	VerifyOTP(ctx context.Context, req models.VerifyOTPRequest) error
	ResendOTP(ctx context.Context, email string) error
	Login(ctx context.Context, req models.LoginRequest) (models.AuthResponse, error)
}

// Action names an auth form submission for message selection.
type Action string

const (
	ActionSignup Action = "signup"
	ActionVerify Action = "verify"
	ActionResend Action = "resend"
	ActionLogin  Action = "login"
)

var fallbacks = map[Action]string{
	ActionSignup: "Signup failed. Please try again.",
	ActionVerify: "OTP verification failed. Please try again.",
	ActionResend: "Failed to resend OTP. Please try again.",
	ActionLogin:  "Login failed. Please try again.",
}

// Fallback is the message shown when an action fails without a usable detail.
func (a Action) Fallback() string {
	return fallbacks[a]
}

const (
	msgPasswordMismatch = "Passwords do not match"
	msgPasswordTooShort = "Password must be at least 8 characters long"
	minPasswordLength   = 8
)

// errMissingToken is returned when the backend accepts a login but issues no token.
var errMissingToken = errors.New("login response carried no access token")

// ValidationError is a local form problem detected before any backend call.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// DisplayMessage renders err for the form that produced it.
func DisplayMessage(action Action, err error) string {
	var verr *ValidationError
	if errors.As(err, &verr) {
		return verr.Message
	}
	return gateway.Message(err, action.Fallback())
}

// SignupForm is the signup submission including the confirmation field.
type SignupForm struct {
	Name            string `label:"Name" validate:"required"`
	Username        string `label:"Username" validate:"required"`
	Email           string `label:"Email" validate:"required,email"`
	Password        string `label:"Password" validate:"required"`
	ConfirmPassword string `label:"Confirm password"`
	Role            string `label:"Role" validate:"required,oneof=Student Teacher Others"`
}

// LoginForm is the login submission.
type LoginForm struct {
	UsernameOrEmail string `label:"Username or email" validate:"required"`
	Password        string `label:"Password" validate:"required"`
}

type otpForm struct {
	Email string `label:"Email" validate:"required,email"`
	OTP   string `label:"OTP" validate:"required"`
}

type resendForm struct {
	Email string `label:"Email" validate:"required,email"`
}

// Flow runs the signup, verification and login flows against the backend.
type Flow struct {
	backend  Backend
	validate *validator.Validate
}

// NewFlow constructs a Flow.
func NewFlow(backend Backend) *Flow {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		if label := f.Tag.Get("label"); label != "" {
			return label
		}
		return f.Name
	})
	return &Flow{backend: backend, validate: v}
}

// Signup checks the form locally and registers the account.
func (f *Flow) Signup(ctx context.Context, form SignupForm) error {
	form.Name = strings.TrimSpace(form.Name)
	form.Username = strings.TrimSpace(form.Username)
	form.Email = strings.TrimSpace(form.Email)

	if form.Password != form.ConfirmPassword {
		return &ValidationError{Message: msgPasswordMismatch}
	}
	if len(form.Password) < minPasswordLength {
		return &ValidationError{Message: msgPasswordTooShort}
	}
	if err := f.check(form); err != nil {
		return err
	}

	err := f.backend.Signup(ctx, models.SignupRequest{
		Name:     form.Name,
		Username: form.Username,
		Email:    form.Email,
		Password: form.Password,
		Role:     form.Role,
	})
	if err != nil {
		return fmt.Errorf("signup: %w", err)
	}
	return nil
}

// VerifyOTP confirms the code e-mailed at signup.
func (f *Flow) VerifyOTP(ctx context.Context, email, otp string) error {
	form := otpForm{Email: strings.TrimSpace(email), OTP: strings.TrimSpace(otp)}
	if err := f.check(form); err != nil {
		return err
	}
	if err := f.backend.VerifyOTP(ctx, models.VerifyOTPRequest{Email: form.Email, OTP: form.OTP}); err != nil {
		return fmt.Errorf("verify otp: %w", err)
	}
	return nil
}

// ResendOTP asks the backend to send a fresh code.
func (f *Flow) ResendOTP(ctx context.Context, email string) error {
	form := resendForm{Email: strings.TrimSpace(email)}
	if err := f.check(form); err != nil {
		return err
	}
	if err := f.backend.ResendOTP(ctx, form.Email); err != nil {
		return fmt.Errorf("resend otp: %w", err)
	}
	return nil
}

// Login authenticates the user. The caller establishes the session from the
// returned token.
func (f *Flow) Login(ctx context.Context, form LoginForm) (models.AuthResponse, error) {
	form.UsernameOrEmail = strings.TrimSpace(form.UsernameOrEmail)
	if err := f.check(form); err != nil {
		return models.AuthResponse{}, err
	}

	resp, err := f.backend.Login(ctx, models.LoginRequest{
		UsernameOrEmail: form.UsernameOrEmail,
		Password:        form.Password,
	})
	if err != nil {
		return models.AuthResponse{}, fmt.Errorf("login: %w", err)
	}
	if strings.TrimSpace(resp.AccessToken) == "" {
		return models.AuthResponse{}, errMissingToken
	}
	return resp, nil
}

func (f *Flow) check(form any) error {
	err := f.validate.Struct(form)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return &ValidationError{Message: err.Error()}
	}

	messages := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		messages = append(messages, describe(fe))
	}
	return &ValidationError{Message: strings.Join(messages, ", ")}
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "email":
		return fmt.Sprintf("%s must be a valid email address", fe.Field())
	case "oneof":
		return fmt.Sprintf("%s must be one of %s", fe.Field(), strings.Join(strings.Fields(fe.Param()), ", "))
	default:
		return fmt.Sprintf("%s is invalid", fe.Field())
	}
}
