package model

import (
	"encoding/json"
	"fmt"
)

// ExternalIdentity は外部IdPが検証済みとして返した利用者情報を表す。
// リクエストごとに生成され、永続化されない。
type ExternalIdentity struct {
	Subject     string // IdPが払い出す安定したsubject ID
	Email       string
	Name        string
	Provider    string // "email", "google" 等のリンク済みプロバイダ名
	RawMetadata json.RawMessage
}

// String はログ出力用にsubjectのみを含む表現を返す。
func (i *ExternalIdentity) String() string {
	if i == nil {
		return "<nil>"
	}
	return fmt.Sprintf("ExternalIdentity{Subject:%q}", i.Subject)
}
