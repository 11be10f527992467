// Package credentials 管理 Provider 凭据的读写与持久化。
// 凭据只在内存与持久化文件之间流转，任何日志与错误信息都不得包含明文密钥。
package credentials

// Store 是凭据持久化协作方的契约：整表读入、整表写出。
// 具体存储介质（文件、keychain 等）由实现决定。
type Store interface {
	// Load 读取 provider id -> secret 的完整映射。
	// 存储尚不存在时返回空映射而不是错误。
	Load() (map[string]string, error)

	// Save 持久化完整映射，覆盖既有内容。
	Save(creds map[string]string) error
}

// Masked 返回密钥的掩码形式，用于日志与调试输出。
func Masked(secret string) string {
	if secret == "" {
		return ""
	}
	if len(secret) <= 8 {
		return "***"
	}
	return secret[:4] + "***" + secret[len(secret)-2:]
}
