// Package wechat wraps the WeChat mini-program HTTP API: login session
// exchange, subscription push messages and page QR codes.
package wechat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"github.com/communitymeet/backend/config"
)

const (
	apiBase       = "https://api.weixin.qq.com"
	tokenCacheKey = "wechat:access_token"
)

// Client calls the WeChat API. The app access token is cached in-process and
// refreshed shortly before WeChat's two-hour expiry.
type Client struct {
	cfg    config.WeChatConfig
	http   *http.Client
	cache  *gocache.Cache
	logger *zap.Logger
}

// NewClient creates a WeChat API client.
func NewClient(cfg config.WeChatConfig, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		cfg:    cfg,
		http:   &http.Client{Timeout: 10 * time.Second},
		cache:  gocache.New(90*time.Minute, 10*time.Minute),
		logger: logger,
	}
}

// Session is the result of a code2session login exchange.
type Session struct {
	OpenID  string `json:"openid"`
	UnionID string `json:"unionid"`
	ErrCode int    `json:"errcode"`
	ErrMsg  string `json:"errmsg"`
}

// Code2Session exchanges a mini-program login code for the user identity.
func (c *Client) Code2Session(ctx context.Context, code string) (*Session, error) {
	u := fmt.Sprintf("%s/sns/jscode2session?appid=%s&secret=%s&js_code=%s&grant_type=authorization_code",
		apiBase, c.cfg.AppID, c.cfg.Secret, url.QueryEscape(code))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("code2session: %w", err)
	}
	defer resp.Body.Close()
	var s Session
	if err := json.NewDecoder(resp.Body).Decode(&s); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	if s.ErrCode != 0 || s.OpenID == "" {
		return nil, fmt.Errorf("code2session errcode %d: %s", s.ErrCode, s.ErrMsg)
	}
	return &s, nil
}

type tokenResp struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
	ErrCode     int    `json:"errcode"`
	ErrMsg      string `json:"errmsg"`
}

// AccessToken returns the cached app access token, fetching a fresh one when
// needed.
func (c *Client) AccessToken(ctx context.Context) (string, error) {
	if tok, ok := c.cache.Get(tokenCacheKey); ok {
		return tok.(string), nil
	}
	u := fmt.Sprintf("%s/cgi-bin/token?appid=%s&secret=%s&grant_type=client_credential",
		apiBase, c.cfg.AppID, c.cfg.Secret)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch access token: %w", err)
	}
	defer resp.Body.Close()
	var t tokenResp
	if err := json.NewDecoder(resp.Body).Decode(&t); err != nil {
		return "", fmt.Errorf("decode access token: %w", err)
	}
	if t.AccessToken == "" {
		return "", fmt.Errorf("access token errcode %d: %s", t.ErrCode, t.ErrMsg)
	}
	ttl := time.Duration(t.ExpiresIn) * time.Second
	if ttl > 5*time.Minute {
		ttl -= 5 * time.Minute
	}
	c.cache.Set(tokenCacheKey, t.AccessToken, ttl)
	return t.AccessToken, nil
}

// SubscribeMessage is one push to a single recipient.
type SubscribeMessage struct {
	ToUser     string            `json:"touser"`
	TemplateID string            `json:"template_id"`
	Page       string            `json:"page"`
	Lang       string            `json:"lang"`
	Data       map[string]Datum  `json:"data"`
}

// Datum is one template field value.
type Datum struct {
	Value string `json:"value"`
}

type sendResp struct {
	ErrCode int    `json:"errcode"`
	ErrMsg  string `json:"errmsg"`
}

// SendSubscribe delivers one subscription push message under the given
// access token. Delivery errors come back as errors for per-recipient
// logging; they never carry partial state.
func (c *Client) SendSubscribe(ctx context.Context, accessToken string, msg SubscribeMessage) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	u := apiBase + "/cgi-bin/message/subscribe/send?access_token=" + url.QueryEscape(accessToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("send subscribe: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("send subscribe: status %d", resp.StatusCode)
	}
	var out sendResp
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return fmt.Errorf("decode send response: %w", err)
	}
	if out.ErrCode != 0 {
		return fmt.Errorf("send subscribe errcode %d: %s", out.ErrCode, out.ErrMsg)
	}
	return nil
}

// PageQRCode generates a mini-program QR code image pointing at the given
// page scene (e.g. an activity id) and returns the raw image bytes.
func (c *Client) PageQRCode(ctx context.Context, scene, page string) ([]byte, error) {
	token, err := c.AccessToken(ctx)
	if err != nil {
		return nil, err
	}
	body, _ := json.Marshal(map[string]interface{}{
		"scene": scene,
		"page":  page,
		"width": 430,
	})
	u := apiBase + "/wxa/getwxacodeunlimit?access_token=" + url.QueryEscape(token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("generate qr code: %w", err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	// An error comes back as a JSON body instead of image bytes.
	if len(raw) > 0 && raw[0] == '{' {
		var e sendResp
		if json.Unmarshal(raw, &e) == nil && e.ErrCode != 0 {
			return nil, fmt.Errorf("qr code errcode %d: %s", e.ErrCode, e.ErrMsg)
		}
	}
	return raw, nil
}

// StartTemplate builds the "meeting about to start" push for one recipient.
func (c *Client) StartTemplate(openid, topic, when string) SubscribeMessage {
	return SubscribeMessage{
		ToUser:     openid,
		TemplateID: c.cfg.StartTemplateID,
		Page:       "/pages/index/index",
		Lang:       "zh-CN",
		Data: map[string]Datum{
			"thing1": {Value: truncate(topic, 20)},
			"time2":  {Value: when},
		},
	}
}

// CancelTemplate builds the "meeting cancelled" push for one recipient.
func (c *Client) CancelTemplate(openid, topic, when, mid string) SubscribeMessage {
	return SubscribeMessage{
		ToUser:     openid,
		TemplateID: c.cfg.CancelTemplateID,
		Page:       "/pages/index/index",
		Lang:       "zh-CN",
		Data: map[string]Datum{
			"thing1": {Value: truncate(topic, 20)},
			"time2":  {Value: when},
			"thing4": {Value: "meeting " + mid + " has been cancelled"},
		},
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
