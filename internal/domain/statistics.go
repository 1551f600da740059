package domain

import "time"

// ActiveWindow 活跃地址统计窗口
const ActiveWindow = 7 * 24 * time.Hour

// Statistics 管理后台统计数据
type Statistics struct {
	MailCount          int64 `json:"mailCount"`
	AddressCount       int64 `json:"userCount"`
	ActiveAddressCount int64 `json:"activeUserCount7days"`
}
