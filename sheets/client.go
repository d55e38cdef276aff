// Package sheets reads the two external Google Sheets the bot depends on:
// the member roster (registration code → name) and the daily schedule
// (date → usage time range). Both are consumed read-only through the
// spreadsheets.values REST endpoint with an API key.
package sheets

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"keynow/service"
)

const defaultBaseURL = "https://sheets.googleapis.com/v4/spreadsheets"

type Client struct {
	APIKey  string
	BaseURL string

	RosterSpreadsheetID   string
	RosterRange           string
	ScheduleSpreadsheetID string
	ScheduleRange         string

	httpClient *http.Client
}

func NewClient(apiKey, rosterID, rosterRange, scheduleID, scheduleRange string) *Client {
	return &Client{
		APIKey:                apiKey,
		BaseURL:               defaultBaseURL,
		RosterSpreadsheetID:   rosterID,
		RosterRange:           rosterRange,
		ScheduleSpreadsheetID: scheduleID,
		ScheduleRange:         scheduleRange,
		httpClient:            &http.Client{Timeout: 10 * time.Second},
	}
}

type valuesResponse struct {
	Values [][]string `json:"values"`
}

func (c *Client) values(ctx context.Context, spreadsheetID, readRange string) ([][]string, error) {
	url := fmt.Sprintf("%s/%s/values/%s?key=%s", c.BaseURL, spreadsheetID, readRange, c.APIKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sheets fetch %s: %w", readRange, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("sheets fetch %s: status %d", readRange, resp.StatusCode)
	}
	var vr valuesResponse
	if err := json.NewDecoder(resp.Body).Decode(&vr); err != nil {
		return nil, fmt.Errorf("sheets decode %s: %w", readRange, err)
	}
	return vr.Values, nil
}

// Ping fetches both ranges once. Used at startup: an unreachable sheet is a
// fatal configuration error, not something to limp along without.
func (c *Client) Ping(ctx context.Context) error {
	if _, err := c.values(ctx, c.RosterSpreadsheetID, c.RosterRange); err != nil {
		return fmt.Errorf("roster sheet: %w", err)
	}
	if _, err := c.values(ctx, c.ScheduleSpreadsheetID, c.ScheduleRange); err != nil {
		return fmt.Errorf("schedule sheet: %w", err)
	}
	return nil
}

// Resolve looks a registration code up on the roster, case-insensitively.
// The name sits in the cell to the right of the code.
func (c *Client) Resolve(ctx context.Context, code string) (string, error) {
	rows, err := c.values(ctx, c.RosterSpreadsheetID, c.RosterRange)
	if err != nil {
		return "", err
	}
	for _, row := range rows {
		if len(row) >= 2 && strings.EqualFold(strings.TrimSpace(row[0]), code) {
			return strings.TrimSpace(row[1]), nil
		}
	}
	return "", service.ErrCodeNotFound
}

// EndHoursFor returns every parseable end hour recorded for the date.
// Schedule rows look like ["2026/08/31", "18-20"]; unparseable ranges are
// skipped, matching how the schedule sheet is actually filled in.
func (c *Client) EndHoursFor(ctx context.Context, date time.Time) ([]int, error) {
	rows, err := c.values(ctx, c.ScheduleSpreadsheetID, c.ScheduleRange)
	if err != nil {
		return nil, err
	}
	day := date.Format("2006/01/02")

	var hours []int
	for _, row := range rows {
		if len(row) < 2 || strings.TrimSpace(row[0]) != day {
			continue
		}
		_, end, ok := strings.Cut(row[1], "-")
		if !ok {
			continue
		}
		h, err := strconv.Atoi(strings.TrimSpace(end))
		if err != nil {
			continue
		}
		hours = append(hours, h)
	}
	return hours, nil
}
