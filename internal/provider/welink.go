package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/communitymeet/backend/config"
	"github.com/communitymeet/backend/internal/errs"
)

// WeLink talks to the Huawei WeLink conferencing REST API. All calls run
// under a short-lived app access token; cancellation must be performed as
// the hosting account, which is why Cancel requires the host id.
type WeLink struct {
	cfg    config.WeLinkConfig
	client *http.Client
	logger *zap.Logger

	mu          sync.Mutex
	token       string
	tokenExpiry time.Time
}

// NewWeLink creates a WeLink gateway.
func NewWeLink(cfg config.WeLinkConfig, logger *zap.Logger) *WeLink {
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := time.Duration(cfg.TimeoutS) * time.Second
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &WeLink{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
		logger: logger,
	}
}

type welinkAuthResp struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

// accessToken returns a cached app token, refreshing when within a minute of
// expiry.
func (w *WeLink) accessToken(ctx context.Context) (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.token != "" && time.Until(w.tokenExpiry) > time.Minute {
		return w.token, nil
	}
	body, _ := json.Marshal(map[string]string{
		"client_id":     w.cfg.ClientID,
		"client_secret": w.cfg.ClientSecret,
	})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		w.cfg.APIBase+"/api/auth/v2/tickets", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create auth request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := w.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", errs.ErrProvider, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: welink auth status %d", errs.ErrProvider, resp.StatusCode)
	}
	var auth welinkAuthResp
	if err := json.NewDecoder(resp.Body).Decode(&auth); err != nil || auth.AccessToken == "" {
		return "", fmt.Errorf("%w: decode welink auth response", errs.ErrProvider)
	}
	w.token = auth.AccessToken
	w.tokenExpiry = time.Now().Add(time.Duration(auth.ExpiresIn) * time.Second)
	return w.token, nil
}

type welinkConference struct {
	ConferenceID string `json:"conferenceID"`
	VMRID        string `json:"vmrID"`
	GuestJoinURI string `json:"guestJoinUri"`
}

type welinkCreateResp struct {
	Conferences []welinkConference `json:"conferenceData"`
}

// Create books a conference on behalf of the host account.
func (w *WeLink) Create(ctx context.Context, req CreateRequest) (*CreateResult, error) {
	startUTC, length, err := welinkTimes(req.Date, req.Start, req.End)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrValidation, err)
	}
	body := map[string]interface{}{
		"startTime":      startUTC,
		"length":         length,
		"subject":        req.Topic,
		"mediaTypes":     "HDVideo",
		"isAutoRecord":   boolToInt(req.Record),
		"recordType":     recordType(req.Record),
		"timeZoneID":     "56",
		"vmrFlag":        0,
		"concurrentType": 1,
	}
	var out welinkCreateResp
	path := "/v1/mmc/management/conferences?userUUID=" + url.QueryEscape(req.HostID)
	if err := w.do(ctx, http.MethodPost, path, body, &out); err != nil {
		return nil, err
	}
	if len(out.Conferences) == 0 {
		return nil, fmt.Errorf("%w: welink returned no conference data", errs.ErrProvider)
	}
	conf := out.Conferences[0]
	return &CreateResult{
		MeetingCode: conf.ConferenceID,
		MeetingID:   conf.VMRID,
		JoinURL:     conf.GuestJoinURI,
	}, nil
}

// Cancel cancels a conference. WeLink authorizes the cancellation as the
// hosting account, so the host id is mandatory here.
func (w *WeLink) Cancel(ctx context.Context, mid, hostID string) error {
	if hostID == "" {
		return fmt.Errorf("%w: welink cancel requires the host account", errs.ErrValidation)
	}
	path := fmt.Sprintf("/v1/mmc/management/conferences?conferenceID=%s&userUUID=%s",
		url.QueryEscape(mid), url.QueryEscape(hostID))
	return w.do(ctx, http.MethodDelete, path, nil, nil)
}

type welinkAttendeesResp struct {
	Data []struct {
		DisplayName string `json:"displayName"`
		JoinTime    string `json:"joinTime"`
		LeftTime    string `json:"leftTime"`
	} `json:"data"`
}

// Participants lists attendee records for a conference.
func (w *WeLink) Participants(ctx context.Context, mid string) ([]Participant, error) {
	var out welinkAttendeesResp
	path := "/v1/mmc/management/conferences/history/confAttendeeRecord?confUUID=" + url.QueryEscape(mid)
	if err := w.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	list := make([]Participant, 0, len(out.Data))
	for _, p := range out.Data {
		list = append(list, Participant{Name: p.DisplayName, JoinTime: p.JoinTime, LeftTime: p.LeftTime})
	}
	return list, nil
}

// RecordDownloadURL is not exposed by WeLink's open API; recordings arrive
// through the Tencent webhook path only.
func (w *WeLink) RecordDownloadURL(_ context.Context, recordFileID, _ string) (string, error) {
	return "", fmt.Errorf("%w: welink does not expose record file %s", errs.ErrProvider, recordFileID)
}

func (w *WeLink) do(ctx context.Context, method, path string, body, out interface{}) error {
	token, err := w.accessToken(ctx)
	if err != nil {
		return err
	}
	var payload []byte
	if body != nil {
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal body: %w", err)
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, w.cfg.APIBase+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Access-Token", token)
	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", errs.ErrProvider, err)
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		w.logger.Warn("welink api error",
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
			zap.ByteString("body", raw))
		return fmt.Errorf("%w: welink status %d", errs.ErrProvider, resp.StatusCode)
	}
	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("%w: decode welink response: %v", errs.ErrProvider, err)
		}
	}
	return nil
}

// welinkTimes converts local wall-clock to the UTC "yyyy-MM-dd HH:mm" start
// WeLink expects, plus the meeting length in minutes.
func welinkTimes(date, start, end string) (string, int, error) {
	s, err := time.ParseInLocation("2006-01-02 15:04", date+" "+start, time.Local)
	if err != nil {
		return "", 0, err
	}
	e, err := time.ParseInLocation("2006-01-02 15:04", date+" "+end, time.Local)
	if err != nil {
		return "", 0, err
	}
	return s.UTC().Format("2006-01-02 15:04"), int(e.Sub(s).Minutes()), nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func recordType(record bool) int {
	if record {
		return 2 // cloud recording
	}
	return 0
}
