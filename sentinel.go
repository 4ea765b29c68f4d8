package securitas

import (
	"context"
	"fmt"
	"time"
)

// SentinelData reads the current temperature and humidity of the Sentinel
// behind the given comfort service.
func (c *Client) SentinelData(ctx context.Context, inst Installation, svc Service) (Sentinel, error) {
	sess, err := c.EnsureValid(ctx)
	if err != nil {
		return Sentinel{}, err
	}
	caps, err := c.ensureCapabilities(ctx, &inst)
	if err != nil {
		return Sentinel{}, err
	}

	env, err := c.transport.execute(ctx, opSentinel, map[string]any{
		"numinst": inst.Number,
	}, requestMeta{session: sess, installation: &inst, capabilities: caps})
	if err != nil {
		return Sentinel{}, fmt.Errorf("could not read sentinel: %w", err)
	}

	var payload struct {
		Res     string `json:"res"`
		Devices []struct {
			Alias  string `json:"alias"`
			Zone   string `json:"zone"`
			Status struct {
				Temperature int `json:"temperature"`
				Humidity    int `json:"humidity"`
			} `json:"status"`
		} `json:"devices"`
	}
	if err := env.unmarshal("xSComfort", &payload); err != nil {
		return Sentinel{}, fmt.Errorf("could not read sentinel: %w", err)
	}

	zone := svc.Zone()
	for _, device := range payload.Devices {
		if device.Zone != zone {
			continue
		}
		return Sentinel{
			Alias:       device.Alias,
			Temperature: device.Status.Temperature,
			Humidity:    device.Status.Humidity,
			ReadAt:      time.Now(),
		}, nil
	}
	return Sentinel{}, fmt.Errorf("no sentinel in zone %q", zone)
}

// AirQualityData reads the current air quality of the Sentinel behind the
// given comfort service.
func (c *Client) AirQualityData(ctx context.Context, inst Installation, svc Service) (AirQuality, error) {
	sess, err := c.EnsureValid(ctx)
	if err != nil {
		return AirQuality{}, err
	}
	caps, err := c.ensureCapabilities(ctx, &inst)
	if err != nil {
		return AirQuality{}, err
	}

	env, err := c.transport.execute(ctx, opAirQuality, map[string]any{
		"numinst": inst.Number,
		"zone":    svc.Zone(),
	}, requestMeta{session: sess, installation: &inst, capabilities: caps})
	if err != nil {
		return AirQuality{}, fmt.Errorf("could not read air quality: %w", err)
	}

	var payload struct {
		GraphData struct {
			Status struct {
				Current    int    `json:"current"`
				CurrentMsg string `json:"currentMsg"`
			} `json:"status"`
		} `json:"graphData"`
	}
	if err := env.unmarshal("xSAirQ", &payload); err != nil {
		return AirQuality{}, fmt.Errorf("could not read air quality: %w", err)
	}
	return AirQuality{
		Current: payload.GraphData.Status.Current,
		Message: payload.GraphData.Status.CurrentMsg,
		ReadAt:  time.Now(),
	}, nil
}
