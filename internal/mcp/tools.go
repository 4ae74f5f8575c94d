package mcp

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/claude/summitchronicles/internal/ingest/schedule"
	"github.com/mark3labs/mcp-go/mcp"
)

var toolGetTrainingWeek = mcp.NewTool("get_training_week",
	mcp.WithDescription("Planned workouts for one training week, keyed by weekday. Each workout has type, duration in minutes, intensity, heart-rate zones and phase timings."),
	mcp.WithNumber("week", mcp.Description("Plan week number (1-based). Defaults to the current week.")),
)

var toolGetTrainingSchedule = mcp.NewTool("get_training_schedule",
	mcp.WithDescription("The full training plan: every week with its start date and workouts, plus which source the plan was loaded from."),
)

var toolGetWeather = mcp.NewTool("get_weather",
	mcp.WithDescription("Current conditions (temperature, wind, gusts, precipitation) at a location, for judging outdoor sessions."),
	mcp.WithNumber("lat", mcp.Required(), mcp.Description("Latitude in degrees")),
	mcp.WithNumber("lon", mcp.Required(), mcp.Description("Longitude in degrees")),
)

func (h *handlers) getTrainingWeek(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sched, err := h.ds.Schedule(ctx)
	if err != nil {
		h.log.Error("mcp get_training_week", "error", err)
		return mcp.NewToolResultError("schedule unavailable: " + err.Error()), nil
	}

	week := req.GetInt("week", 0)
	if week == 0 {
		return jsonResult(sched.CurrentWeek)
	}
	ws, ok := schedule.FindWeek(sched.Weeks, week)
	if !ok {
		return mcp.NewToolResultError("week not in plan"), nil
	}
	return jsonResult(ws)
}

func (h *handlers) getTrainingSchedule(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sched, err := h.ds.Schedule(ctx)
	if err != nil {
		h.log.Error("mcp get_training_schedule", "error", err)
		return mcp.NewToolResultError("schedule unavailable: " + err.Error()), nil
	}
	return jsonResult(sched)
}

func (h *handlers) getWeather(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	lat, err := req.RequireFloat("lat")
	if err != nil {
		return mcp.NewToolResultError("lat parameter is required"), nil
	}
	lon, err := req.RequireFloat("lon")
	if err != nil {
		return mcp.NewToolResultError("lon parameter is required"), nil
	}

	raw, err := h.ds.Weather(ctx, lat, lon)
	if err != nil {
		if !errors.Is(err, ErrWeatherDisabled) {
			h.log.Error("mcp get_weather", "error", err)
		}
		return mcp.NewToolResultError("weather lookup failed: " + err.Error()), nil
	}
	return mcp.NewToolResultText(string(raw)), nil
}

func (h *handlers) currentWeek(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	sched, err := h.ds.Schedule(ctx)
	if err != nil {
		return nil, err
	}
	data, err := json.Marshal(sched.CurrentWeek)
	if err != nil {
		return nil, err
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      req.Params.URI,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	result, err := mcp.NewToolResultJSON(v)
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}
