package domain

import "time"

// Mail 邮件表中的一行，由外部投递流程写入。
type Mail struct {
	ID        int64     `json:"id" db:"id" gorm:"primaryKey;autoIncrement"`
	Address   string    `json:"address" db:"address" gorm:"type:varchar(255);index;not null"`
	Source    string    `json:"source" db:"source" gorm:"type:varchar(255)"`
	Subject   string    `json:"subject" db:"subject"`
	Message   string    `json:"message" db:"message"`
	MessageID *string   `json:"-" db:"message_id" gorm:"type:varchar(255);index"`
	CreatedAt time.Time `json:"created_at" db:"created_at" gorm:"not null"`
}

// TableName 指定表名
func (Mail) TableName() string {
	return "mails"
}

// MailSummary 列表接口返回的邮件，内部 message_id 不对外暴露。
type MailSummary struct {
	ID           int64     `json:"id"`
	Address      string    `json:"address,omitempty"`
	Source       string    `json:"source"`
	Subject      string    `json:"subject"`
	Message      string    `json:"message"`
	CreatedAt    time.Time `json:"created_at"`
	AttachmentID string    `json:"attachment_id,omitempty"`
}

// MailPage 一页邮件
type MailPage struct {
	Results []MailSummary `json:"results"`
	Count   int64         `json:"count"`
}

// AddressPage 一页地址，Name 已换算为展示名
type AddressPage struct {
	Results []Address `json:"results"`
	Count   int64     `json:"count"`
}

// Summarize 转为对外的摘要，attachmentID 为空表示没有附件
func (m Mail) Summarize(attachmentID string) MailSummary {
	return MailSummary{
		ID:           m.ID,
		Address:      m.Address,
		Source:       m.Source,
		Subject:      m.Subject,
		Message:      m.Message,
		CreatedAt:    m.CreatedAt,
		AttachmentID: attachmentID,
	}
}
