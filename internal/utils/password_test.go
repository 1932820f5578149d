package utils

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/suite"
)

// PasswordTestSuite 密码工具测试套件
type PasswordTestSuite struct {
	suite.Suite
}

// 测试密码策略校验
func (suite *PasswordTestSuite) TestValidatePassword() {
	suite.NoError(ValidatePassword("admin", "admin123456"))

	// 太短
	suite.Error(ValidatePassword("admin", "12345"))

	// 太长
	suite.Error(ValidatePassword("admin", strings.Repeat("a", MaxPasswordLen+1)))

	// 与用户名相同（不区分大小写）
	suite.Error(ValidatePassword("Operator1", "operator1"))

	// 无用户名上下文时只校验长度
	suite.NoError(ValidatePassword("", "abcdef"))
}

// 测试密码哈希格式与加盐唯一性
func (suite *PasswordTestSuite) TestHashPassword() {
	hash, err := HashPassword("operator123")
	suite.NoError(err)
	suite.True(strings.HasPrefix(hash, "$argon2id$v=19$m=32768,t=3,p=2$"))

	// 相同密码因盐不同生成不同哈希
	hash2, err := HashPassword("operator123")
	suite.NoError(err)
	suite.NotEqual(hash, hash2)
}

// 测试密码验证
func (suite *PasswordTestSuite) TestVerifyPassword() {
	hash, _ := HashPassword("correct-password")

	valid, err := VerifyPassword("correct-password", hash)
	suite.NoError(err)
	suite.True(valid)

	valid, err = VerifyPassword("wrong-password", hash)
	suite.NoError(err)
	suite.False(valid)

	// 大小写敏感
	valid, err = VerifyPassword("Correct-Password", hash)
	suite.NoError(err)
	suite.False(valid)
}

// 测试旧参数哈希仍可验证：参数从编码串读取而不是常量
func (suite *PasswordTestSuite) TestVerifyLegacyParams() {
	// 旧部署用 m=65536,t=1,p=4 生成的哈希（密码 admin123456）
	legacy := "$argon2id$v=19$m=65536,t=1,p=4$" +
		"c29tZXNhbHRzb21lc2FsdA$" +
		"bm90LWEtcmVhbC1oYXNo"

	// 参数能解析、验证正常返回（结果为false因为哈希是伪造的）
	valid, err := VerifyPassword("admin123456", legacy)
	suite.NoError(err)
	suite.False(valid)
}

// 测试畸形哈希的错误分支
func (suite *PasswordTestSuite) TestVerifyPasswordMalformedHash() {
	cases := []struct {
		encoded string
		wantErr error
	}{
		{"", ErrHashMalformed},
		{"not-a-hash", ErrHashMalformed},
		{"$argon2$v=19$m=1,t=1,p=1$c2FsdA$aGFzaA", ErrHashUnsupported},
		{"$argon2id$v=18$m=1,t=1,p=1$c2FsdA$aGFzaA", ErrHashIncompatible},
		{"$argon2id$v=19$bogus$c2FsdA$aGFzaA", ErrHashMalformed},
		{"$argon2id$v=19$m=1,t=1,p=1$!!!$aGFzaA", ErrHashMalformed},
	}

	for _, tc := range cases {
		valid, err := VerifyPassword("password", tc.encoded)
		suite.ErrorIs(err, tc.wantErr, tc.encoded)
		suite.False(valid)
	}
}

// 测试特殊字符密码
func (suite *PasswordTestSuite) TestSpecialCharacterPassword() {
	passwords := []string{
		"P@$$w0rd!",
		"密码123456",
		"Tab\tSpace New\nLine",
	}

	for _, password := range passwords {
		hash, err := HashPassword(password)
		suite.NoError(err)

		valid, err := VerifyPassword(password, hash)
		suite.NoError(err)
		suite.True(valid, "密码 %q 应该验证成功", password)
	}
}

// 测试会话ID生成
func (suite *PasswordTestSuite) TestGenerateSessionID() {
	id, err := GenerateSessionID()
	suite.NoError(err)
	suite.Equal(32, len(id))
	// URL安全，可直接放进请求参数
	suite.NotContains(id, "+")
	suite.NotContains(id, "/")
	suite.NotContains(id, "=")

	id2, err := GenerateSessionID()
	suite.NoError(err)
	suite.NotEqual(id, id2)
}

// 测试初始密码：长度、字符集与策略合规
func (suite *PasswordTestSuite) TestGenerateInitialPassword() {
	password, err := GenerateInitialPassword()
	suite.NoError(err)
	suite.Equal(16, len(password))

	// 不包含易混字符
	for _, c := range "0O1lI" {
		suite.NotContains(password, string(c))
	}
	for _, c := range password {
		suite.Contains(initialPasswordAlphabet, string(c))
	}

	suite.NoError(ValidatePassword("admin", password))

	password2, err := GenerateInitialPassword()
	suite.NoError(err)
	suite.NotEqual(password, password2)
}

func TestPasswordSuite(t *testing.T) {
	suite.Run(t, new(PasswordTestSuite))
}
