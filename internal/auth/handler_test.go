package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/communitymeet/backend/internal/models"
	"github.com/communitymeet/backend/internal/wechat"
	"github.com/communitymeet/backend/pkg/response"
)

type fakeUserStore struct {
	user    *models.User
	profile []string
}

func (f *fakeUserStore) Upsert(ctx context.Context, openid, unionid, nickname, avatar string) (*models.User, error) {
	f.user = &models.User{ID: uuid.New(), OpenID: openid, Nickname: nickname, Level: models.LevelUser, ActivityLevel: models.LevelUser}
	return f.user, nil
}

func (f *fakeUserStore) UpdateProfile(ctx context.Context, id uuid.UUID, giteeName, email, telephone, company, signature string) (*models.User, error) {
	f.profile = []string{giteeName, email, telephone, company, signature}
	return &models.User{ID: id, GiteeName: giteeName, Email: email, Telephone: telephone, Company: company, Signature: signature}, nil
}

func (f *fakeUserStore) ListByActivityLevel(ctx context.Context, level int, search string) ([]models.User, error) {
	return nil, nil
}

func (f *fakeUserStore) SetActivityLevel(ctx context.Context, ids []uuid.UUID, from, to int) error {
	return nil
}

type fakeExchanger struct {
	sess *wechat.Session
	err  error
}

func (f *fakeExchanger) Code2Session(ctx context.Context, code string) (*wechat.Session, error) {
	return f.sess, f.err
}

func testContext(method, path, body string) (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(method, path, strings.NewReader(body))
	return c, rec
}

func TestLoginIssuesValidToken(t *testing.T) {
	store := &fakeUserStore{}
	jwtSvc := NewJWTService("test-secret", 1)
	h := NewHandler(store, jwtSvc, &fakeExchanger{sess: &wechat.Session{OpenID: "oid-1"}}, zap.NewNop())

	c, rec := testContext(http.MethodPost, "/auth/login", `{"code":"abc","nickname":"alice"}`)
	h.Login(c)
	require.Equal(t, http.StatusOK, rec.Code)

	var body response.Body
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	data, ok := body.Data.(map[string]interface{})
	require.True(t, ok)
	claims, err := jwtSvc.Validate(data["access"].(string))
	require.NoError(t, err)
	assert.Equal(t, store.user.ID, claims.UserID)
}

func TestLoginRequiresCode(t *testing.T) {
	h := NewHandler(&fakeUserStore{}, NewJWTService("test-secret", 1), &fakeExchanger{}, zap.NewNop())
	c, rec := testContext(http.MethodPost, "/auth/login", `{}`)
	h.Login(c)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMeReadsContextUser(t *testing.T) {
	h := NewHandler(&fakeUserStore{}, NewJWTService("test-secret", 1), &fakeExchanger{}, zap.NewNop())

	c, rec := testContext(http.MethodGet, "/me", "")
	c.Set(ContextUser, &models.User{ID: uuid.New(), Nickname: "alice"})
	h.Me(c)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "alice")

	c, rec = testContext(http.MethodGet, "/me", "")
	h.Me(c)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestUpdateProfileReturnsUpdatedUser(t *testing.T) {
	store := &fakeUserStore{}
	h := NewHandler(store, NewJWTService("test-secret", 1), &fakeExchanger{}, zap.NewNop())

	id := uuid.New()
	c, rec := testContext(http.MethodPut, "/me", `{"gitee_name":"alice-g","email":"alice@example.com"}`)
	c.Set(ContextUserID, id)
	h.UpdateProfile(c)
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, []string{"alice-g", "alice@example.com", "", "", ""}, store.profile)
	assert.Contains(t, rec.Body.String(), "alice@example.com")
	assert.Contains(t, rec.Body.String(), id.String())
}
