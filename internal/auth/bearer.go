package auth

import "strings"

// ExtractBearerToken はAuthorizationヘッダーの値からBearerトークンを取り出す。
// 半角スペースで区切られた2要素で、1要素目が大文字小文字を区別せず "bearer" の場合のみ有効とする。
// それ以外（スキームの誤り、要素数の不一致、空トークン）はトークンなしとして扱う。
func ExtractBearerToken(header string) (string, bool) {
	if header == "" {
		return "", false
	}

	parts := strings.Split(header, " ")
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}
