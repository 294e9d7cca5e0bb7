package auth

import (
	"context"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

// RegisterAccountMessage asks the auth service to create an account
type RegisterAccountMessage struct {
	Email      string `json:"email"`
	Password   string `json:"password"`
	RedirectTo string `json:"redirect_to"`
}

func (e RegisterAccountMessage) Type() string { return "account.register" }

// RegisterAccountHandler registers accounts through a Client
type RegisterAccountHandler struct {
	client Client
}

// NewRegisterAccountHandler returns a handler backed by client
func NewRegisterAccountHandler(client Client) *RegisterAccountHandler {
	return &RegisterAccountHandler{client: client}
}

func (h *RegisterAccountHandler) Execute(ctx context.Context, event RegisterAccountMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during account registration",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *RegisterAccountHandler) execute(ctx context.Context, event RegisterAccountMessage) error {
	email := strings.TrimSpace(event.Email)
	return h.client.SignUp(ctx, email, event.Password, event.RedirectTo)
}
