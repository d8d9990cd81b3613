package capi

import (
	"context"
	"fmt"

	"github.com/pokedi/edfc/internal/models"
)

// ResolveIdentity reads /profile and /fleetcarrier on the live server to find
// out which commander a fresh token belongs to. The profile is required; the
// carrier is optional since most commanders do not own one.
func (c *Client) ResolveIdentity(ctx context.Context, accessToken string) (*models.Identity, error) {
	payload, err := c.Fetch(ctx, models.ResourceProfile, models.EnvLive, accessToken)
	if err != nil {
		return nil, err
	}
	profile, err := ParseProfile(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to parse profile: %w", err)
	}

	identity := &models.Identity{
		CustomerID:    profile.CustomerID(),
		CommanderName: profile.Commander.Name,
		Payloads:      map[models.Resource][]byte{models.ResourceProfile: payload},
	}

	carrierPayload, err := c.Fetch(ctx, models.ResourceFleetCarrier, models.EnvLive, accessToken)
	if err != nil {
		return identity, nil
	}
	if carrier, err := ParseCarrier(carrierPayload); err == nil {
		identity.CarrierName = carrier.DisplayName()
		identity.CarrierID = carrier.Name.Callsign
		identity.Payloads[models.ResourceFleetCarrier] = carrierPayload
	}
	return identity, nil
}
