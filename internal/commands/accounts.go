package commands

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/pokedi/edfc/internal/accounts"
	"github.com/pokedi/edfc/internal/capi"
	"github.com/pokedi/edfc/internal/session"
	"github.com/pokedi/edfc/internal/tokens"
)

// Services are the components handlers call into.
type Services struct {
	Sessions *session.Manager
	Accounts *accounts.Registry
	Tokens   *tokens.Manager
	Fetcher  *capi.Fetcher
}

// RegisterAll registers every command and component.
func RegisterAll(r *Registry, svc Services) {
	h := &handlers{svc: svc}

	r.Register(&Command{
		Name:        "login",
		Description: "Link your Frontier account",
		Handler:     HandlerFunc(h.login),
	})
	r.Register(&Command{
		Name:          "logout",
		Description:   "Unlink a Frontier account",
		Options:       []OptionSpec{accountOption},
		RequiresLogin: true,
		Handler:       HandlerFunc(h.logout),
	})
	r.Register(&Command{
		Name:          "accounts",
		Description:   "Manage your linked Frontier accounts",
		RequiresLogin: true,
		Handler:       HandlerFunc(h.accounts),
	})

	r.RegisterComponent(&Command{Name: "add_account", Handler: HandlerFunc(h.linkAccount)})
	r.RegisterComponent(&Command{Name: "link_account", Handler: HandlerFunc(h.linkAccount)})
	r.RegisterComponent(&Command{Name: "select_default_account", RequiresLogin: true, Handler: HandlerFunc(h.selectDefault)})
	r.RegisterComponent(&Command{Name: "remove_account", RequiresLogin: true, Handler: HandlerFunc(h.removeAccount)})

	registerResourceCommands(r, h)
}

var accountOption = OptionSpec{Name: OptionAccount, Description: "Linked account id", Kind: OptionInteger}

type handlers struct {
	svc Services
}

func (h *handlers) login(ctx context.Context, req *Request) (*Reply, error) {
	linked, err := h.svc.Accounts.ListAccounts(ctx, req.UserID)
	if err != nil {
		return nil, err
	}
	if len(linked) > 0 {
		names := make([]string, 0, len(linked))
		for i := range linked {
			names = append(names, linked[i].DisplayName())
		}
		return &Reply{
			Ephemeral: true,
			Embeds: []Embed{{
				Title:       "Already logged in",
				Description: "Linked: " + strings.Join(names, ", ") + "\nUse /accounts to manage accounts or add another one.",
				Color:       colorInfo,
			}},
			Components: []Component{{Kind: ComponentButton, CustomID: "add_account", Label: "Add account"}},
		}, nil
	}
	return h.linkAccount(ctx, req)
}

// linkAccount starts a new PKCE session and returns the authorization link.
func (h *handlers) linkAccount(ctx context.Context, req *Request) (*Reply, error) {
	login, err := h.svc.Sessions.CreateSession(ctx, req.UserID, "")
	if err != nil {
		return nil, err
	}
	description := "Click the button below to log in with Frontier."
	if login.ExpiresAt != nil {
		description += fmt.Sprintf("\nThe link expires <t:%d:R>.", login.ExpiresAt.Unix())
	}
	return &Reply{
		Ephemeral: true,
		Embeds: []Embed{{
			Title:       "Link Frontier Account",
			Description: description,
			Color:       colorInfo,
		}},
		Components: []Component{{Kind: ComponentLinkButton, Label: "Log in with Frontier", URL: login.AuthorizationURL}},
	}, nil
}

func (h *handlers) logout(ctx context.Context, req *Request) (*Reply, error) {
	target := req.AccountID
	var name string
	if target != 0 {
		acc, err := h.svc.Accounts.GetAccount(ctx, req.UserID, target)
		if err != nil {
			return nil, err
		}
		name = acc.DisplayName()
	} else {
		def, err := h.svc.Accounts.GetDefaultAccountID(ctx, req.UserID)
		if err != nil {
			return nil, err
		}
		if acc, err := h.svc.Accounts.GetAccount(ctx, req.UserID, def); err == nil {
			name = acc.DisplayName()
		}
		target = def
	}

	_, removed, err := h.svc.Tokens.Revoke(ctx, req.UserID, target)
	if err != nil {
		return nil, err
	}
	if !removed {
		return textReply(notLoggedIn), nil
	}
	return &Reply{
		Ephemeral: true,
		Embeds: []Embed{{
			Title:       "Logged out",
			Description: fmt.Sprintf("%s has been unlinked.", name),
			Color:       colorSuccess,
		}},
	}, nil
}

func (h *handlers) accounts(ctx context.Context, req *Request) (*Reply, error) {
	linked, err := h.svc.Accounts.ListAccounts(ctx, req.UserID)
	if err != nil {
		return nil, err
	}
	def, err := h.svc.Accounts.GetDefaultAccountID(ctx, req.UserID)
	if err != nil {
		return nil, err
	}

	fields := make([]Field, 0, len(linked))
	options := make([]SelectOption, 0, len(linked))
	for i := range linked {
		acc := &linked[i]
		value := fmt.Sprintf("ID: %d", acc.ID)
		if acc.CarrierID != "" {
			value += "\nCarrier: " + acc.CarrierID
		}
		label := acc.DisplayName()
		if acc.ID == def {
			label += " (default)"
		}
		fields = append(fields, Field{Name: label, Value: value})
		options = append(options, SelectOption{
			Label:   acc.DisplayName(),
			Value:   strconv.FormatInt(acc.ID, 10),
			Default: acc.ID == def,
		})
	}

	components := []Component{
		{Kind: ComponentSelect, CustomID: "select_default_account", Label: "Select default account", Options: options},
	}
	if len(linked) > 1 {
		components = append(components, Component{Kind: ComponentSelect, CustomID: "remove_account", Label: "Remove an account", Options: options})
	}
	components = append(components, Component{Kind: ComponentButton, CustomID: "add_account", Label: "Add account"})

	return &Reply{
		Ephemeral: true,
		Embeds: []Embed{{
			Title:  "Linked Frontier accounts",
			Color:  colorInfo,
			Fields: fields,
		}},
		Components: components,
	}, nil
}

func (h *handlers) selectDefault(ctx context.Context, req *Request) (*Reply, error) {
	id, err := selectedAccount(req)
	if err != nil {
		return errorReply(err.Error()), nil
	}
	if err := h.svc.Accounts.SetDefaultAccount(ctx, req.UserID, id); err != nil {
		return nil, err
	}
	acc, err := h.svc.Accounts.GetAccount(ctx, req.UserID, id)
	if err != nil {
		return nil, err
	}
	return &Reply{
		Ephemeral: true,
		Embeds: []Embed{{
			Title:       "Default account updated",
			Description: acc.DisplayName() + " is now your default account.",
			Color:       colorSuccess,
		}},
	}, nil
}

func (h *handlers) removeAccount(ctx context.Context, req *Request) (*Reply, error) {
	id, err := selectedAccount(req)
	if err != nil {
		return errorReply(err.Error()), nil
	}
	acc, err := h.svc.Accounts.GetAccount(ctx, req.UserID, id)
	if err != nil {
		return nil, err
	}
	if err := h.svc.Accounts.RemoveAccount(ctx, req.UserID, id); err != nil {
		return nil, err
	}
	return &Reply{
		Ephemeral: true,
		Embeds: []Embed{{
			Title:       "Account removed",
			Description: acc.DisplayName() + " has been unlinked.",
			Color:       colorSuccess,
		}},
	}, nil
}

func selectedAccount(req *Request) (int64, error) {
	if len(req.Values) == 0 {
		return 0, fmt.Errorf("no account selected")
	}
	id, err := strconv.ParseInt(req.Values[0], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid account selection")
	}
	return id, nil
}
