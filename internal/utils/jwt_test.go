package utils

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/suite"
)

// JWTTestSuite JWT管理器测试套件
type JWTTestSuite struct {
	suite.Suite
	manager *JWTManager
}

// SetupTest 设置测试环境
func (suite *JWTTestSuite) SetupTest() {
	suite.manager = NewJWTManager("test-secret-key", time.Hour, 24*time.Hour)
}

// 测试生成并验证访问令牌
func (suite *JWTTestSuite) TestAccessToken() {
	token, err := suite.manager.GenerateAccessToken(1, "admin", "admin@example.com", "admin", "sess-1")
	suite.NoError(err)
	suite.NotEmpty(token)

	claims, err := suite.manager.ValidateToken(token)
	suite.NoError(err)
	suite.Equal(uint(1), claims.UserID)
	suite.Equal("admin", claims.Username)
	suite.Equal("admin@example.com", claims.Email)
	suite.Equal("admin", claims.Role)
	suite.Equal("sess-1", claims.SessionID)
	suite.Equal(TokenTypeAccess, claims.TokenType)
	suite.Equal("cctalk-service", claims.Issuer)
}

// 测试刷新令牌不携带身份属性
func (suite *JWTTestSuite) TestRefreshToken() {
	token, err := suite.manager.GenerateRefreshToken(2, "sess-2")
	suite.NoError(err)

	claims, err := suite.manager.ValidateToken(token)
	suite.NoError(err)
	suite.Equal(uint(2), claims.UserID)
	suite.Equal("sess-2", claims.SessionID)
	suite.Equal(TokenTypeRefresh, claims.TokenType)
	suite.Empty(claims.Username)
	suite.Empty(claims.Role)
}

// 测试过期令牌返回专用错误
func (suite *JWTTestSuite) TestExpiredToken() {
	expired := NewJWTManager("test-secret-key", -time.Minute, -time.Minute)

	token, err := expired.GenerateAccessToken(1, "admin", "", "admin", "sess-1")
	suite.NoError(err)

	_, err = suite.manager.ValidateToken(token)
	suite.ErrorIs(err, ErrExpiredToken)
}

// 测试密钥不匹配的令牌被拒绝
func (suite *JWTTestSuite) TestWrongSecret() {
	other := NewJWTManager("another-secret", time.Hour, 24*time.Hour)
	token, err := other.GenerateAccessToken(1, "admin", "", "admin", "sess-1")
	suite.NoError(err)

	_, err = suite.manager.ValidateToken(token)
	suite.ErrorIs(err, ErrInvalidToken)
}

// 测试issuer不匹配的令牌被拒绝：同密钥其他服务签的令牌不可用
func (suite *JWTTestSuite) TestWrongIssuer() {
	claims := &JWTClaims{
		UserID:    1,
		TokenType: TokenTypeAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Issuer:    "other-service",
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).
		SignedString([]byte("test-secret-key"))
	suite.NoError(err)

	_, err = suite.manager.ValidateToken(token)
	suite.ErrorIs(err, ErrInvalidToken)
}

// 测试非HS256签名算法被拒绝
func (suite *JWTTestSuite) TestAlgNoneRejected() {
	claims := &JWTClaims{
		UserID:    1,
		TokenType: TokenTypeAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			Issuer:    "cctalk-service",
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	suite.NoError(err)

	_, err = suite.manager.ValidateToken(token)
	suite.ErrorIs(err, ErrInvalidToken)
}

// 测试畸形令牌
func (suite *JWTTestSuite) TestMalformedToken() {
	for _, token := range []string{"", "not-a-token", "a.b.c"} {
		_, err := suite.manager.ValidateToken(token)
		suite.ErrorIs(err, ErrInvalidToken, token)
	}
}

// 测试令牌有效期查询
func (suite *JWTTestSuite) TestGetTokenExpiry() {
	suite.Equal(time.Hour, suite.manager.GetTokenExpiry(TokenTypeAccess))
	suite.Equal(24*time.Hour, suite.manager.GetTokenExpiry(TokenTypeRefresh))
}

func TestJWTTestSuite(t *testing.T) {
	suite.Run(t, new(JWTTestSuite))
}
