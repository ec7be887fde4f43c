package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
)

// generateSessionID は暗号的に安全なセッションIDを生成する。
func generateSessionID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// generateToken はリフレッシュトークン・アクショントークン用の不透明トークンを生成する。
// トークン本体はクライアントにのみ渡し、DBにはHashTokenの結果だけを保存する。
func generateToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// HashToken はトークンのSHA-256ハッシュを16進文字列で返す。
// DB側が漏洩してもトークン本体を復元できないようにするための一方向変換。
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
