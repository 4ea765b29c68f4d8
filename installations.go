package securitas

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/exp/slices"
)

// sentinelNames maps request languages to the request code Sentinel
// comfort services carry.
var sentinelNames = map[string]string{
	"es": "CONFORT",
	"br": "COMFORTO",
	"pt": "COMFORTO",
}

func sentinelName(lang string) string {
	if name, ok := sentinelNames[lang]; ok {
		return name
	}
	return "CONFORT"
}

// perimetralRequests are the service request codes that imply exterior
// zones exist on the installation.
var perimetralRequests = []string{
	string(RequestArmPerimeter),
	string(RequestArmTotal),
	string(RequestDisarmTotal),
}

type rawInstallation struct {
	Numinst  string `json:"numinst"`
	Alias    string `json:"alias"`
	Panel    string `json:"panel"`
	Type     string `json:"type"`
	Name     string `json:"name"`
	Surname  string `json:"surname"`
	Address  string `json:"address"`
	City     string `json:"city"`
	Postcode string `json:"postcode"`
	Province string `json:"province"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
}

// ResolveInstallations lists the account's installations and resolves
// each one's services, panel metadata, capabilities token, Sentinel
// device set, and perimetral support. Installations are all-or-nothing:
// any malformed one fails the resolution with a ResolutionError.
func (c *Client) ResolveInstallations(ctx context.Context) ([]Installation, error) {
	sess, err := c.EnsureValid(ctx)
	if err != nil {
		return nil, err
	}

	env, err := c.transport.execute(ctx, opInstallationList, nil, requestMeta{session: sess})
	if err != nil {
		return nil, fmt.Errorf("could not list installations: %w", err)
	}
	var payload struct {
		Installations []rawInstallation `json:"installations"`
	}
	if err := env.unmarshal("xSInstallations", &payload); err != nil {
		return nil, &ResolutionError{Msg: err.Error()}
	}

	result := make([]Installation, 0, len(payload.Installations))
	for _, raw := range payload.Installations {
		if raw.Numinst == "" || raw.Panel == "" {
			return nil, &ResolutionError{
				Installation: raw.Numinst,
				Msg:          "missing installation number or panel",
			}
		}
		inst := Installation{
			Number:     raw.Numinst,
			Alias:      raw.Alias,
			Panel:      raw.Panel,
			Type:       raw.Type,
			Name:       raw.Name,
			Surname:    raw.Surname,
			Address:    raw.Address,
			City:       raw.City,
			PostalCode: raw.Postcode,
			Province:   raw.Province,
			Email:      raw.Email,
			Phone:      raw.Phone,
		}
		services, err := c.resolveServices(ctx, &inst)
		if err != nil {
			return nil, err
		}
		inst.Services = services
		for _, svc := range services {
			if !svc.Active {
				continue
			}
			if slices.Contains(perimetralRequests, svc.Request) {
				inst.Perimetral = true
			}
			if svc.Request == sentinelName(c.transport.lang) {
				inst.Sentinels = append(inst.Sentinels, svc)
			}
		}
		log.Info(
			"resolved installation",
			"numinst", inst.Number,
			"panel", inst.Panel,
			"perimetral", inst.Perimetral,
			"services", len(inst.Services),
			"sentinels", len(inst.Sentinels),
		)
		result = append(result, inst)
	}
	return result, nil
}

type rawService struct {
	IDService string `json:"idService"`
	Active    bool   `json:"active"`
	Visible   bool   `json:"visible"`
	IsPremium bool   `json:"isPremium"`
	Request   string `json:"request"`
	Attrs     *struct {
		Attributes []struct {
			Name   string `json:"name"`
			Value  string `json:"value"`
			Active bool   `json:"active"`
		} `json:"attributes"`
	} `json:"attributes"`
}

// resolveServices queries Srv for the installation and refreshes its
// capabilities token as a side effect.
func (c *Client) resolveServices(ctx context.Context, inst *Installation) ([]Service, error) {
	sess, err := c.EnsureValid(ctx)
	if err != nil {
		return nil, err
	}

	env, err := c.transport.execute(ctx, opServices, map[string]any{
		"numinst": inst.Number,
		"uuid":    c.transport.device.UUID,
	}, requestMeta{session: sess})
	if err != nil {
		return nil, fmt.Errorf("could not get services for %s: %w", inst.Number, err)
	}

	var payload struct {
		Res          string `json:"res"`
		Msg          string `json:"msg"`
		Installation *struct {
			Services     []rawService `json:"services"`
			Capabilities string       `json:"capabilities"`
		} `json:"installation"`
	}
	if err := env.unmarshal("xSSrv", &payload); err != nil {
		return nil, &ResolutionError{Installation: inst.Number, Msg: err.Error()}
	}
	if payload.Installation == nil {
		return nil, &ResolutionError{Installation: inst.Number, Msg: "no installation data"}
	}
	if payload.Installation.Capabilities == "" {
		return nil, &ResolutionError{Installation: inst.Number, Msg: "no capabilities token"}
	}

	c.setCapability(inst.Number, capabilityToken{
		token: payload.Installation.Capabilities,
		exp:   tokenExpiry(payload.Installation.Capabilities),
	})

	services := make([]Service, 0, len(payload.Installation.Services))
	for _, raw := range payload.Installation.Services {
		id, err := strconv.Atoi(strings.TrimSpace(raw.IDService))
		if err != nil {
			return nil, &ResolutionError{
				Installation: inst.Number,
				Msg:          fmt.Sprintf("bad service id %q", raw.IDService),
			}
		}
		svc := Service{
			ID:      id,
			Active:  raw.Active,
			Visible: raw.Visible,
			Premium: raw.IsPremium,
			Request: raw.Request,
		}
		if raw.Attrs != nil {
			for _, attr := range raw.Attrs.Attributes {
				svc.Attributes = append(svc.Attributes, Attribute(attr))
			}
		}
		services = append(services, svc)
	}
	return services, nil
}
