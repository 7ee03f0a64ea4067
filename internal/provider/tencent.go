package provider

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/communitymeet/backend/config"
	"github.com/communitymeet/backend/internal/errs"
)

// Tencent talks to the Tencent Meeting REST API. Requests are signed with
// HMAC-SHA256 over the canonical request per the platform's open API rules.
type Tencent struct {
	cfg    config.TencentConfig
	client *http.Client
	logger *zap.Logger
}

// NewTencent creates a Tencent Meeting gateway.
func NewTencent(cfg config.TencentConfig, logger *zap.Logger) *Tencent {
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := time.Duration(cfg.TimeoutS) * time.Second
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Tencent{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
		logger: logger,
	}
}

type tencentCreateBody struct {
	UserID     string            `json:"userid"`
	InstanceID int               `json:"instanceid"`
	Subject    string            `json:"subject"`
	Type       int               `json:"type"`
	StartTime  string            `json:"start_time"`
	EndTime    string            `json:"end_time"`
	Settings   map[string]string `json:"settings,omitempty"`
}

type tencentMeetingInfo struct {
	MeetingID   string `json:"meeting_id"`
	MeetingCode string `json:"meeting_code"`
	JoinURL     string `json:"join_url"`
}

type tencentCreateResp struct {
	MeetingInfoList []tencentMeetingInfo `json:"meeting_info_list"`
}

// Create books a meeting on the given host account.
func (t *Tencent) Create(ctx context.Context, req CreateRequest) (*CreateResult, error) {
	start, end, err := unixRange(req.Date, req.Start, req.End)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrValidation, err)
	}
	body := tencentCreateBody{
		UserID:     req.HostID,
		InstanceID: 1,
		Subject:    req.Topic,
		Type:       0, // scheduled meeting
		StartTime:  strconv.FormatInt(start, 10),
		EndTime:    strconv.FormatInt(end, 10),
	}
	if req.Record {
		body.Settings = map[string]string{"auto_record_type": "cloud"}
	}
	var out tencentCreateResp
	if err := t.do(ctx, http.MethodPost, "/v1/meetings", body, &out); err != nil {
		return nil, err
	}
	if len(out.MeetingInfoList) == 0 {
		return nil, fmt.Errorf("%w: tencent returned no meeting info", errs.ErrProvider)
	}
	info := out.MeetingInfoList[0]
	return &CreateResult{
		MeetingCode: info.MeetingCode,
		MeetingID:   info.MeetingID,
		JoinURL:     info.JoinURL,
	}, nil
}

// Cancel cancels a meeting by meeting code. Tencent authorizes cancellation
// via the signed app credentials, not the host account.
func (t *Tencent) Cancel(ctx context.Context, mid, _ string) error {
	body := map[string]interface{}{"meeting_code": mid, "reason_code": 1}
	return t.do(ctx, http.MethodPost, fmt.Sprintf("/v1/meetings/%s/cancel", mid), body, nil)
}

type tencentParticipantsResp struct {
	Participants []struct {
		UserName string `json:"user_name"`
		JoinTime string `json:"join_time"`
		LeftTime string `json:"left_time"`
	} `json:"participants"`
}

// Participants lists attendees of a meeting by meeting code.
func (t *Tencent) Participants(ctx context.Context, mid string) ([]Participant, error) {
	var out tencentParticipantsResp
	if err := t.do(ctx, http.MethodGet, fmt.Sprintf("/v1/meetings/%s/participants", mid), nil, &out); err != nil {
		return nil, err
	}
	list := make([]Participant, 0, len(out.Participants))
	for _, p := range out.Participants {
		list = append(list, Participant{Name: p.UserName, JoinTime: p.JoinTime, LeftTime: p.LeftTime})
	}
	return list, nil
}

type tencentAddressResp struct {
	RecordFiles []struct {
		DownloadAddress string `json:"download_address"`
	} `json:"record_files"`
}

// RecordDownloadURL resolves the download address of a cloud recording file.
func (t *Tencent) RecordDownloadURL(ctx context.Context, recordFileID, userID string) (string, error) {
	var out tencentAddressResp
	path := fmt.Sprintf("/v1/addresses/%s?userid=%s", recordFileID, userID)
	if err := t.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return "", err
	}
	if len(out.RecordFiles) == 0 || out.RecordFiles[0].DownloadAddress == "" {
		return "", fmt.Errorf("%w: no download address for record file %s", errs.ErrProvider, recordFileID)
	}
	return out.RecordFiles[0].DownloadAddress, nil
}

func (t *Tencent) do(ctx context.Context, method, path string, body, out interface{}) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal body: %w", err)
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, t.cfg.APIBase+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	t.sign(req, payload)
	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", errs.ErrProvider, err)
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		t.logger.Warn("tencent api error",
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
			zap.ByteString("body", raw))
		return fmt.Errorf("%w: tencent status %d", errs.ErrProvider, resp.StatusCode)
	}
	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("%w: decode tencent response: %v", errs.ErrProvider, err)
		}
	}
	return nil
}

// sign sets the TC3-style signature headers on the request.
func (t *Tencent) sign(req *http.Request, payload []byte) {
	ts := strconv.FormatInt(time.Now().Unix(), 10)
	nonce := randomNonce()
	headerString := fmt.Sprintf("X-TC-Key=%s&X-TC-Nonce=%s&X-TC-Timestamp=%s", t.cfg.SecretID, nonce, ts)
	toSign := fmt.Sprintf("%s\n%s\n%s\n%s", req.Method, headerString, req.URL.RequestURI(), string(payload))
	mac := hmac.New(sha256.New, []byte(t.cfg.SecretKey))
	mac.Write([]byte(toSign))
	sig := hex.EncodeToString(mac.Sum(nil))

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("AppId", t.cfg.AppID)
	req.Header.Set("SdkId", t.cfg.SDKID)
	req.Header.Set("X-TC-Key", t.cfg.SecretID)
	req.Header.Set("X-TC-Timestamp", ts)
	req.Header.Set("X-TC-Nonce", nonce)
	req.Header.Set("X-TC-Signature", sig)
	req.Header.Set("X-TC-Registered", "1")
}

func randomNonce() string {
	b := make([]byte, 8)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

// unixRange converts wall-clock date/start/end to unix seconds.
func unixRange(date, start, end string) (int64, int64, error) {
	s, err := time.ParseInLocation("2006-01-02 15:04", date+" "+start, time.Local)
	if err != nil {
		return 0, 0, err
	}
	e, err := time.ParseInLocation("2006-01-02 15:04", date+" "+end, time.Local)
	if err != nil {
		return 0, 0, err
	}
	return s.Unix(), e.Unix(), nil
}
