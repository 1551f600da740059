package domain

// Attachment 附件表中的一行。多个附件可以共享同一个 MessageID。
type Attachment struct {
	ID        string `json:"id" db:"id" gorm:"primaryKey;type:varchar(64)"`
	MessageID string `json:"-" db:"message_id" gorm:"type:varchar(255);index;not null"`
	Data      string `json:"-" db:"data"` // 序列化后的附件内容，服务端不解析
}

// TableName 指定表名
func (Attachment) TableName() string {
	return "attachments"
}

// AttachmentRef 批量富化时使用的 (附件ID, 邮件 message_id) 对
type AttachmentRef struct {
	ID        string `db:"id"`
	MessageID string `db:"message_id"`
}

// FirstAttachments 为每个 message_id 选出第一个附件 ID，refs 的顺序即匹配顺序
func FirstAttachments(refs []AttachmentRef) map[string]string {
	first := make(map[string]string, len(refs))
	for _, ref := range refs {
		if _, ok := first[ref.MessageID]; !ok {
			first[ref.MessageID] = ref.ID
		}
	}
	return first
}
