package mocks

import (
	"encoding/hex"
	"net/http"
)

// ProfileResponse is a /profile payload for the given commander.
func ProfileResponse(commanderID int, name string) *MockResponse {
	return &MockResponse{
		StatusCode: http.StatusOK,
		Body: map[string]interface{}{
			"commander": map[string]interface{}{
				"id":      commanderID,
				"name":    name,
				"credits": 1250000,
				"debt":    0,
				"docked":  true,
				"rank": map[string]interface{}{
					"combat": 3, "trade": 5, "explore": 7,
				},
			},
			"lastSystem": map[string]interface{}{
				"id": 10477373803, "name": "Sol", "faction": "Federation",
			},
			"lastStarport": map[string]interface{}{
				"id": 128016640, "name": "Abraham Lincoln", "faction": "Federation",
			},
			"ship": map[string]interface{}{
				"id": 1, "name": "Krait_MkII", "shipName": "Wanderer", "shipID": "WND-01",
				"health": map[string]interface{}{"hull": 1000000},
			},
			"ships": map[string]interface{}{
				"1": map[string]interface{}{
					"id": 1, "name": "Krait_MkII", "shipName": "Wanderer",
					"starsystem": map[string]interface{}{"name": "Sol"},
				},
				"2": map[string]interface{}{
					"id": 2, "name": "SideWinder", "shipName": "",
					"starsystem": map[string]interface{}{"name": "Shinrarta Dezhra"},
				},
			},
			"squadron": map[string]interface{}{
				"id": 42, "name": "Test Wing", "tag": "TSTW", "rank": 2,
			},
			"suit": map[string]interface{}{
				"name": "tacticalsuit_class1", "locName": "Dominator Suit",
			},
		},
	}
}

// FleetCarrierResponse is a /fleetcarrier payload with a hex-encoded vanity name.
func FleetCarrierResponse(callsign, vanityName string) *MockResponse {
	return &MockResponse{
		StatusCode: http.StatusOK,
		Body: map[string]interface{}{
			"name": map[string]interface{}{
				"callsign":   callsign,
				"vanityName": hex.EncodeToString([]byte(vanityName)),
			},
			"currentStarSystem": "Sol",
			"balance":           "5000000000",
			"fuel":              "800",
			"state":             "normalOperation",
			"dockingAccess":     "all",
		},
	}
}

// JSONResponse wraps any body in a 200 response.
func JSONResponse(body interface{}) *MockResponse {
	return &MockResponse{StatusCode: http.StatusOK, Body: body}
}
