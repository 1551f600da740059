package httptransport

// 非业务错误时返回的通用消息，细节只写日志
const (
	MsgInvalidRequest      = "Invalid request"
	MsgInvalidAutoReply    = "Invalid auto_reply settings"
	MsgInvalidAddressID    = "Invalid address id"
	MsgCreateAddressFailed = "Failed to create address"
	MsgDeleteAddressFailed = "Failed to delete address"
	MsgListMailsFailed     = "Failed to list mails"
	MsgAttachmentFailed    = "Failed to get attachment"
	MsgLoadSettingsFailed  = "Failed to load settings"
	MsgSaveSettingsFailed  = "Failed to save settings"
	MsgListAddressFailed   = "Failed to list addresses"
	MsgStatisticsFailed    = "Failed to load statistics"
	MsgIssueTokenFailed    = "Failed to issue token"
)
