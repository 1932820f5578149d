package utils

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

// Argon2id参数。服务跑在机柜工控机上，内存预算有限且登录频率很低，
// 用较小的内存窗口换更多迭代次数。
const (
	argonTime    = 3
	argonMemory  = 32 * 1024 // KiB
	argonThreads = 2
	argonKeyLen  = 32
	argonSaltLen = 16
)

// 密码策略。账号只有场地管理员和操作员，规则从简。
const (
	MinPasswordLen = 6
	MaxPasswordLen = 64
)

// 哈希解析错误
var (
	ErrHashMalformed    = errors.New("密码哈希格式错误")
	ErrHashUnsupported  = errors.New("不支持的哈希算法")
	ErrHashIncompatible = errors.New("argon2版本不兼容")
)

// ValidatePassword 校验密码是否符合账号策略
func ValidatePassword(username, password string) error {
	if len(password) < MinPasswordLen {
		return fmt.Errorf("密码长度至少%d个字符", MinPasswordLen)
	}
	if len(password) > MaxPasswordLen {
		return fmt.Errorf("密码长度不能超过%d个字符", MaxPasswordLen)
	}
	if username != "" && strings.EqualFold(username, password) {
		return errors.New("密码不能与用户名相同")
	}
	return nil
}

// HashPassword 用Argon2id哈希密码，
// 输出格式 $argon2id$v=19$m=..,t=..,p=..$salt$hash
func HashPassword(password string) (string, error) {
	salt := make([]byte, argonSaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}

	hash := argon2.IDKey([]byte(password), salt, argonTime, argonMemory, argonThreads, argonKeyLen)

	encoded := fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, argonMemory, argonTime, argonThreads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(hash))

	return encoded, nil
}

// argonParams 编码串中携带的哈希参数
type argonParams struct {
	time    uint32
	memory  uint32
	threads uint8
}

// parseHash 解析编码串，返回参数、盐和哈希值
func parseHash(encoded string) (*argonParams, []byte, []byte, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 {
		return nil, nil, nil, ErrHashMalformed
	}
	if parts[1] != "argon2id" {
		return nil, nil, nil, ErrHashUnsupported
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return nil, nil, nil, ErrHashMalformed
	}
	if version != argon2.Version {
		return nil, nil, nil, ErrHashIncompatible
	}

	params := &argonParams{}
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d",
		&params.memory, &params.time, &params.threads); err != nil {
		return nil, nil, nil, ErrHashMalformed
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return nil, nil, nil, ErrHashMalformed
	}
	hash, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return nil, nil, nil, ErrHashMalformed
	}

	return params, salt, hash, nil
}

// VerifyPassword 验证密码。按编码串里的参数重算哈希，
// 旧参数生成的哈希升级参数后仍然可验证。
func VerifyPassword(password, encoded string) (bool, error) {
	params, salt, hash, err := parseHash(encoded)
	if err != nil {
		return false, err
	}

	comparison := argon2.IDKey([]byte(password), salt,
		params.time, params.memory, params.threads, uint32(len(hash)))

	return subtle.ConstantTimeCompare(hash, comparison) == 1, nil
}

// GenerateSessionID 生成会话ID
func GenerateSessionID() (string, error) {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// 初始密码字符集。管理员密码在首次启动时打印到日志，现场人员
// 经常要手抄后在小键盘上输入，去掉易混字符 0/O/1/l/I。
const initialPasswordAlphabet = "23456789abcdefghijkmnpqrstuvwxyzABCDEFGHJKLMNPQRSTUVWXYZ"

// GenerateInitialPassword 生成默认管理员的初始密码
func GenerateInitialPassword() (string, error) {
	const length = 16
	buf := make([]byte, length)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	out := make([]byte, length)
	for i, b := range buf {
		out[i] = initialPasswordAlphabet[int(b)%len(initialPasswordAlphabet)]
	}
	return string(out), nil
}
