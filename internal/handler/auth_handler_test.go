package handler

import (
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/civic-complaints-api/internal/models"
	"github.com/noah-isme/civic-complaints-api/internal/service"
	appErrors "github.com/noah-isme/civic-complaints-api/pkg/errors"
)

type authServiceMock struct {
	loginReq    models.LoginRequest
	loginErr    error
	meta        service.SessionMeta
	logoutToken string
	profileReq  models.ProfileUpdateRequest
	avatar      *multipart.FileHeader
}

func (m *authServiceMock) Register(ctx context.Context, req models.RegisterRequest, meta service.SessionMeta) (*models.LoginResponse, error) {
	m.meta = meta
	if req.Role == models.RoleAdmin {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "admin role cannot be assigned")
	}
	return &models.LoginResponse{AccessToken: "access", User: models.UserInfo{Email: req.Email, Role: models.RoleUser}}, nil
}

func (m *authServiceMock) Login(ctx context.Context, req models.LoginRequest) (*models.LoginResponse, error) {
	m.loginReq = req
	if m.loginErr != nil {
		return nil, m.loginErr
	}
	return &models.LoginResponse{AccessToken: "access", RefreshToken: "refresh"}, nil
}

func (m *authServiceMock) RefreshToken(ctx context.Context, req models.RefreshTokenRequest) (*models.RefreshTokenResponse, error) {
	return &models.RefreshTokenResponse{AccessToken: "access-2"}, nil
}

func (m *authServiceMock) Logout(ctx context.Context, refreshToken, userID string, meta service.SessionMeta) error {
	m.logoutToken = refreshToken
	return nil
}

func (m *authServiceMock) Profile(ctx context.Context, userID string) (*models.User, error) {
	return &models.User{ID: userID, Name: "Dana"}, nil
}

func (m *authServiceMock) UpdateProfile(ctx context.Context, userID string, req models.ProfileUpdateRequest, avatar *multipart.FileHeader) (*models.User, error) {
	m.profileReq = req
	m.avatar = avatar
	user := &models.User{ID: userID}
	if req.Name != nil {
		user.Name = *req.Name
	}
	return user, nil
}

func TestAuthHandlerLoginCapturesClient(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &authServiceMock{}
	handler := NewAuthHandler(mockSvc)

	payload, _ := json.Marshal(map[string]string{"email": "dana@example.com", "password": "secret1"})
	c, w := newGinContext(http.MethodPost, "/auth/login", payload)
	c.Request.Header.Set("User-Agent", "test-agent")

	handler.Login(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "dana@example.com", mockSvc.loginReq.Email)
	assert.Equal(t, "test-agent", mockSvc.loginReq.UserAgent)

	mockSvc.loginErr = appErrors.ErrInvalidCredentials
	c, w = newGinContext(http.MethodPost, "/auth/login", payload)
	handler.Login(c)
	require.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, decodeEnvelope(t, w).Error.Code)
}

func TestAuthHandlerRegister(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewAuthHandler(&authServiceMock{})

	payload, _ := json.Marshal(models.RegisterRequest{Name: "Dana", Email: "dana@example.com", Password: "secret1"})
	c, w := newGinContext(http.MethodPost, "/auth/register", payload)
	handler.Register(c)
	require.Equal(t, http.StatusCreated, w.Code)

	payload, _ = json.Marshal(models.RegisterRequest{Name: "Eve", Email: "eve@example.com", Password: "secret1", Role: models.RoleAdmin})
	c, w = newGinContext(http.MethodPost, "/auth/register", payload)
	handler.Register(c)
	require.Equal(t, http.StatusForbidden, w.Code)
}

func TestAuthHandlerLogout(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &authServiceMock{}
	handler := NewAuthHandler(mockSvc)

	c, w := newGinContext(http.MethodPost, "/auth/logout", []byte(`{"refresh_token":"r1"}`))
	handler.Logout(c)
	require.Equal(t, http.StatusUnauthorized, w.Code)

	c, w = newGinContext(http.MethodPost, "/auth/logout", []byte(`{}`))
	withClaims(c, "u1", models.RoleUser)
	handler.Logout(c)
	require.Equal(t, http.StatusBadRequest, w.Code)

	c, w = newGinContext(http.MethodPost, "/auth/logout", []byte(`{"refresh_token":"r1"}`))
	withClaims(c, "u1", models.RoleUser)
	handler.Logout(c)
	require.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "r1", mockSvc.logoutToken)
}

func TestAuthHandlerUpdateProfile(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &authServiceMock{}
	handler := NewAuthHandler(mockSvc)

	c, w := newGinContext(http.MethodPut, "/auth/profile", []byte(`{"name":"Dana J"}`))
	withClaims(c, "u1", models.RoleUser)
	handler.UpdateProfile(c)
	require.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, mockSvc.profileReq.Name)
	assert.Equal(t, "Dana J", *mockSvc.profileReq.Name)
	assert.Nil(t, mockSvc.avatar)

	c, w = newMultipartContext(t, http.MethodPut, "/auth/profile", map[string]string{"phone": "555"},
		"avatar", map[string][]byte{"me.png": {0x89, 'P', 'N', 'G'}})
	withClaims(c, "u1", models.RoleUser)
	handler.UpdateProfile(c)
	require.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, mockSvc.profileReq.Phone)
	assert.Equal(t, "555", *mockSvc.profileReq.Phone)
	require.NotNil(t, mockSvc.avatar)
	assert.Equal(t, "me.png", mockSvc.avatar.Filename)
}
