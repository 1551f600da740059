package domain

import "unicode/utf8"

// MaxAutoReplyFieldLength 主题和正文的最大字符数
const MaxAutoReplyFieldLength = 255

// AutoReply 自动回复设置，每个地址一行
type AutoReply struct {
	Address      string `json:"-" db:"address" gorm:"primaryKey;type:varchar(255)"`
	Name         string `json:"name" db:"name" gorm:"type:varchar(255)"`
	Subject      string `json:"subject" db:"subject" gorm:"type:varchar(255)"`
	Message      string `json:"message" db:"message" gorm:"type:varchar(1024)"`
	SourcePrefix string `json:"source_prefix" db:"source_prefix" gorm:"type:varchar(255)"`
	Enabled      bool   `json:"enabled" db:"enabled"`
}

// TableName 指定表名
func (AutoReply) TableName() string {
	return "auto_reply_mails"
}

// Validate 启用时主题和正文必填；无论是否启用，二者都不能超过 255 个字符
func (a AutoReply) Validate() error {
	if a.Enabled && (a.Subject == "" || a.Message == "") {
		return ErrMissingFields
	}
	if utf8.RuneCountInString(a.Subject) > MaxAutoReplyFieldLength ||
		utf8.RuneCountInString(a.Message) > MaxAutoReplyFieldLength {
		return ErrTooLong
	}
	return nil
}
