package commands

import (
	"context"
	"fmt"

	"github.com/pokedi/edfc/internal/capi"
	"github.com/pokedi/edfc/internal/models"
)

// resourceView is a command that shows one CAPI resource.
type resourceView struct {
	name        string
	description string
	resource    models.Resource
	render      func(payload []byte) (Embed, error)
}

var resourceViews = []resourceView{
	{"profile", "View your commander profile", models.ResourceProfile, renderProfile},
	{"carrier", "View your fleet carrier", models.ResourceFleetCarrier, renderCarrier},
	{"cargo", "View the cargo on your fleet carrier", models.ResourceFleetCarrier, renderCargo},
	{"market", "View the market at your last starport", models.ResourceMarket, renderMarket},
	{"shipyard", "View the shipyard at your last starport", models.ResourceShipyard, renderShipyard},
	{"communitygoals", "View active community goals", models.ResourceCommunityGoals, renderCommunityGoals},
	{"ships", "View your ships", models.ResourceProfile, profileView(renderShips)},
	{"squadron", "View your squadron", models.ResourceProfile, profileView(renderSquadron)},
	{"laststarport", "View your last docked starport", models.ResourceProfile, profileView(renderLastStarport)},
	{"lastsystem", "View your last visited system", models.ResourceProfile, profileView(renderLastSystem)},
	{"suit", "View your current suit", models.ResourceProfile, profileView(renderSuit)},
}

// profileActions are the buttons under a profile reply.
var profileActions = []struct{ command, label string }{
	{"carrier", "Carrier"},
	{"cargo", "Cargo"},
	{"market", "Market"},
	{"shipyard", "Shipyard"},
	{"ships", "Ships"},
	{"squadron", "Squadron"},
	{"laststarport", "Starport"},
	{"lastsystem", "System"},
	{"suit", "Suit"},
	{"communitygoals", "Goals"},
	{"journal", "Journal"},
}

var resourceOptions = []OptionSpec{
	accountOption,
	{Name: OptionBeta, Description: "Use the beta (PTS) server", Kind: OptionBoolean},
}

func registerResourceCommands(r *Registry, h *handlers) {
	for _, view := range resourceViews {
		r.Register(&Command{
			Name:          view.name,
			Description:   view.description,
			Options:       resourceOptions,
			RequiresLogin: true,
			Deferred:      true,
			Handler:       h.resourceHandler(view),
		})
	}

	r.Register(&Command{
		Name:        "journal",
		Description: "View journal events",
		Options: append([]OptionSpec{
			{Name: OptionYear, Description: "Year (e.g. 2025)", Kind: OptionInteger},
			{Name: OptionMonth, Description: "Month (1-12)", Kind: OptionInteger},
			{Name: OptionDay, Description: "Day (1-31)", Kind: OptionInteger},
		}, resourceOptions...),
		RequiresLogin: true,
		Deferred:      true,
		Handler:       HandlerFunc(h.journal),
	})
}

func (h *handlers) resourceHandler(view resourceView) Handler {
	return HandlerFunc(func(ctx context.Context, req *Request) (*Reply, error) {
		payload, err := h.svc.Fetcher.FetchResource(ctx, view.resource, req.UserID, req.AccountID, req.Env)
		if err != nil {
			return nil, err
		}
		if payload == nil {
			return textReply(notLoggedIn), nil
		}

		embed, err := view.render(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s payload: %w", view.resource, err)
		}
		reply := &Reply{Embeds: []Embed{embed}}

		if view.name == "profile" {
			for _, action := range profileActions {
				reply.Components = append(reply.Components, Component{
					Kind:     ComponentButton,
					CustomID: actionPrefix + action.command,
					Label:    action.label,
				})
			}
		}

		picker, err := h.picker(ctx, view.name, req)
		if err != nil {
			return nil, err
		}
		if picker != nil {
			reply.Components = append(reply.Components, *picker)
		}
		return reply, nil
	})
}

func (h *handlers) journal(ctx context.Context, req *Request) (*Reply, error) {
	year, _, err := req.IntOption(OptionYear)
	if err != nil {
		return errorReply(err.Error()), nil
	}
	month, _, err := req.IntOption(OptionMonth)
	if err != nil {
		return errorReply(err.Error()), nil
	}
	day, _, err := req.IntOption(OptionDay)
	if err != nil {
		return errorReply(err.Error()), nil
	}
	date, err := capi.ParseJournalDate(int(year), int(month), int(day))
	if err != nil {
		return errorReply(err.Error()), nil
	}

	payload, err := h.svc.Fetcher.FetchJournal(ctx, req.UserID, req.AccountID, req.Env, date)
	if err != nil {
		return nil, err
	}
	if payload == nil {
		return textReply(notLoggedIn), nil
	}

	when := "today"
	if date != nil {
		when = date.String()
	}
	return &Reply{
		Embeds: []Embed{{
			Title:       "Journal",
			Description: fmt.Sprintf("%d event(s) found for %s.", capi.CountJournalEvents(payload), when),
			Color:       colorInfo,
		}},
	}, nil
}

// picker returns an account select menu when the user has several accounts.
func (h *handlers) picker(ctx context.Context, command string, req *Request) (*Component, error) {
	multiple, err := h.svc.Accounts.HasMultipleAccounts(ctx, req.UserID)
	if err != nil || !multiple {
		return nil, err
	}
	linked, err := h.svc.Accounts.ListAccounts(ctx, req.UserID)
	if err != nil {
		return nil, err
	}
	current := req.AccountID
	if current == 0 {
		if current, err = h.svc.Accounts.GetDefaultAccountID(ctx, req.UserID); err != nil {
			return nil, err
		}
	}
	picker := accountPicker(command, linked, current)
	return &picker, nil
}
