package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sweeney/thermostat-sim/internal/logic"
)

// maxErrorBody bounds how much of a failed response ends up in an error.
const maxErrorBody = 512

// RealStore talks to a Supabase project through its PostgREST endpoint.
type RealStore struct {
	baseURL    string
	key        string
	httpClient *http.Client
}

// NewRealStore creates a store client for the project at projectURL
// authenticated with the given API key.
func NewRealStore(projectURL, key string, httpClient *http.Client) (*RealStore, error) {
	if projectURL == "" || key == "" {
		return nil, fmt.Errorf("store url and key are required")
	}
	u, err := url.Parse(projectURL)
	if err != nil {
		return nil, fmt.Errorf("parse store url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("store url %q must be absolute", projectURL)
	}
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &RealStore{
		baseURL:    strings.TrimRight(projectURL, "/") + "/rest/v1",
		key:        key,
		httpClient: httpClient,
	}, nil
}

type manualRow struct {
	SetTemp *float64 `json:"current_set_temp"`
	Mode    *string  `json:"current_mode"`
}

// ManualSetting reads the device row.
func (s *RealStore) ManualSetting(ctx context.Context, deviceID int) (logic.ManualSetting, error) {
	q := url.Values{}
	q.Set("select", "current_set_temp,current_mode")
	q.Set("device_id", "eq."+strconv.Itoa(deviceID))

	var rows []manualRow
	if err := s.do(ctx, http.MethodGet, TableDevices, q, nil, &rows); err != nil {
		return logic.ManualSetting{}, fmt.Errorf("read %s: %w", TableDevices, err)
	}
	if len(rows) == 0 {
		return logic.ManualSetting{}, fmt.Errorf("device %d: %w", deviceID, ErrNotFound)
	}
	row := rows[0]
	if row.SetTemp == nil || row.Mode == nil {
		return logic.ManualSetting{}, fmt.Errorf("device %d: incomplete row", deviceID)
	}
	return logic.ManualSetting{
		SetTemperature: *row.SetTemp,
		Mode:           logic.Mode(*row.Mode),
	}, nil
}

type partyRequest struct {
	DeviceID int    `json:"input_device_id"`
	Now      string `json:"input_now"`
}

type partyRow struct {
	From *string `json:"from_ts"`
	To   *string `json:"to_ts"`
}

// PartyWindow calls the store function that picks the current or next window.
func (s *RealStore) PartyWindow(ctx context.Context, deviceID int, now time.Time) (*logic.PartyWindow, error) {
	body := partyRequest{DeviceID: deviceID, Now: now.Format(time.RFC3339)}

	var raw json.RawMessage
	if err := s.do(ctx, http.MethodPost, "rpc/"+RPCParty, nil, body, &raw); err != nil {
		return nil, fmt.Errorf("call %s: %w", RPCParty, err)
	}
	return parsePartyWindow(raw)
}

// parsePartyWindow accepts an object, a single-row array or null.
func parsePartyWindow(raw json.RawMessage) (*logic.PartyWindow, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}

	var row partyRow
	if trimmed[0] == '[' {
		var rows []partyRow
		if err := json.Unmarshal(trimmed, &rows); err != nil {
			return nil, fmt.Errorf("decode party window: %w", err)
		}
		if len(rows) == 0 {
			return nil, nil
		}
		row = rows[0]
	} else if err := json.Unmarshal(trimmed, &row); err != nil {
		return nil, fmt.Errorf("decode party window: %w", err)
	}

	if row.From == nil || row.To == nil {
		return nil, nil
	}
	from, err := parseTimestamp(*row.From)
	if err != nil {
		return nil, fmt.Errorf("party from_ts: %w", err)
	}
	to, err := parseTimestamp(*row.To)
	if err != nil {
		return nil, fmt.Errorf("party to_ts: %w", err)
	}
	if to.Before(from) {
		return nil, fmt.Errorf("party window ends before it starts: %s > %s", *row.From, *row.To)
	}
	return &logic.PartyWindow{From: from, To: to}, nil
}

// Postgres renders timestamptz in a handful of ISO-8601 shapes.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05Z07",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05Z07",
}

func parseTimestamp(s string) (time.Time, error) {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("parse timestamp %q", s)
}

type weekPlanRow struct {
	Weekday     string  `json:"weekday"`
	Time        string  `json:"time"`
	Temperature float64 `json:"temperature"`
}

// WeekPlan reads all schedule rows for the device.
func (s *RealStore) WeekPlan(ctx context.Context, deviceID int) ([]logic.WeekPlanEntry, error) {
	q := url.Values{}
	q.Set("select", "weekday,time,temperature")
	q.Set("device_id", "eq."+strconv.Itoa(deviceID))
	q.Set("order", "weekday,time")

	var rows []weekPlanRow
	if err := s.do(ctx, http.MethodGet, TableWeekPlans, q, nil, &rows); err != nil {
		return nil, fmt.Errorf("read %s: %w", TableWeekPlans, err)
	}

	entries := make([]logic.WeekPlanEntry, 0, len(rows))
	for i, row := range rows {
		day, err := logic.ParseWeekday(row.Weekday)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		clock, err := logic.ParseTimeOfDay(row.Time)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		entries = append(entries, logic.WeekPlanEntry{
			Weekday:     day,
			TimeOfDay:   clock,
			Temperature: row.Temperature,
		})
	}
	return entries, nil
}

// InsertReading appends one row to the readings table.
func (s *RealStore) InsertReading(ctx context.Context, r logic.Reading) error {
	if err := s.do(ctx, http.MethodPost, TableReadings, nil, r, nil); err != nil {
		return fmt.Errorf("insert %s: %w", TableReadings, err)
	}
	return nil
}

// do performs one PostgREST call. A nil out discards the response body.
func (s *RealStore) do(ctx context.Context, method, path string, query url.Values, in, out any) error {
	endpoint := s.baseURL + "/" + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request body: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	s.setHeaders(req)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if out == nil {
		req.Header.Set("Prefer", "return=minimal")
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		excerpt, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(excerpt)))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			// empty body, e.g. a void function
			return nil
		}
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// setHeaders adds the authentication headers PostgREST expects.
func (s *RealStore) setHeaders(req *http.Request) {
	req.Header.Set("apikey", s.key)
	req.Header.Set("Authorization", "Bearer "+s.key)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "thermostat-sim")
}
